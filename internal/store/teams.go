// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/teamarr/teamarr/internal/domain"
)

// FollowedTeam is a team the operator follows for schedule EPG. The team
// gets a permanent channel whose programmes come from its schedule in the
// primary league plus any additional leagues (soccer sides playing
// multiple competitions).
type FollowedTeam struct {
	ID                int64
	Provider          domain.Provider
	ProviderTeamID    string
	Name              string
	League            domain.League
	AdditionalLeagues []domain.League
	// TemplateID selects the team template; nil uses the default.
	TemplateID *int64
	Enabled    bool
}

// ListFollowedTeams returns all followed teams, enabled or not, ordered
// by name.
func (s *Store) ListFollowedTeams(ctx context.Context) ([]FollowedTeam, error) {
	query := `
	SELECT id, provider, provider_team_id, name, league, additional_leagues, template_id, enabled
	FROM teams
	ORDER BY name
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list teams: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var teams []FollowedTeam
	for rows.Next() {
		var (
			t          FollowedTeam
			additional string
			templateID sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Provider, &t.ProviderTeamID, &t.Name, &t.League, &additional, &templateID, &t.Enabled); err != nil {
			return nil, fmt.Errorf("scan team: %w", err)
		}
		if err := json.Unmarshal([]byte(additional), &t.AdditionalLeagues); err != nil {
			return nil, fmt.Errorf("decode additional leagues for %q: %w", t.Name, err)
		}
		if templateID.Valid {
			t.TemplateID = &templateID.Int64
		}
		teams = append(teams, t)
	}
	return teams, rows.Err()
}

// EnabledFollowedTeams returns the teams the generator should emit.
func (s *Store) EnabledFollowedTeams(ctx context.Context) ([]FollowedTeam, error) {
	all, err := s.ListFollowedTeams(ctx)
	if err != nil {
		return nil, err
	}
	teams := all[:0]
	for _, t := range all {
		if t.Enabled {
			teams = append(teams, t)
		}
	}
	return teams, nil
}

// UpsertFollowedTeam inserts or updates a followed team, keyed by
// (provider, provider team id, league). The row id is written back.
func (s *Store) UpsertFollowedTeam(ctx context.Context, t *FollowedTeam) error {
	additional, err := json.Marshal(leaguesOrEmpty(t.AdditionalLeagues))
	if err != nil {
		return fmt.Errorf("encode additional leagues: %w", err)
	}

	now := fmtTime(timeNow())
	query := `
	INSERT INTO teams (provider, provider_team_id, name, league, additional_leagues, template_id, enabled, created_at, updated_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(provider, provider_team_id, league) DO UPDATE SET
		name = excluded.name,
		additional_leagues = excluded.additional_leagues,
		template_id = excluded.template_id,
		enabled = excluded.enabled,
		updated_at = excluded.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query,
		t.Provider, t.ProviderTeamID, t.Name, t.League, string(additional),
		nullInt64(t.TemplateID), t.Enabled, now, now); err != nil {
		return fmt.Errorf("upsert team %q: %w", t.Name, err)
	}

	return s.db.QueryRowContext(ctx,
		`SELECT id FROM teams WHERE provider = ? AND provider_team_id = ? AND league = ?`,
		t.Provider, t.ProviderTeamID, t.League).Scan(&t.ID)
}

// DeleteFollowedTeam removes a followed team by row id.
func (s *Store) DeleteFollowedTeam(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM teams WHERE id = ?`, id)
	return err
}

func leaguesOrEmpty(ls []domain.League) []domain.League {
	if ls == nil {
		return []domain.League{}
	}
	return ls
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
