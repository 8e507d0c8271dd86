// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"github.com/teamarr/teamarr/internal/domain"
)

// ErrNoDefaultTemplate is returned when no template is flagged default.
var ErrNoDefaultTemplate = errors.New("store: no default template")

// Templates are stored as one JSON document per row. The store never
// queries inside a template, so a body column beats thirty sparse ones;
// id and name stay relational for lookups and uniqueness.

// GetTemplate loads a template by id. Returns nil when absent.
func (s *Store) GetTemplate(ctx context.Context, id int64) (*domain.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, body FROM templates WHERE id = ?`, id)
	return scanTemplate(row)
}

// DefaultTemplate loads the template flagged is_default.
func (s *Store) DefaultTemplate(ctx context.Context) (*domain.Template, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, body FROM templates WHERE is_default = 1 LIMIT 1`)
	t, err := scanTemplate(row)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, ErrNoDefaultTemplate
	}
	return t, nil
}

// ListTemplates returns all templates ordered by name.
func (s *Store) ListTemplates(ctx context.Context) ([]domain.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, body FROM templates ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var templates []domain.Template
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, err
		}
		templates = append(templates, *t)
	}
	return templates, rows.Err()
}

// SaveTemplate inserts (ID zero) or updates a template. The row id is
// written back on insert.
func (s *Store) SaveTemplate(ctx context.Context, t *domain.Template, isDefault bool) error {
	body, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode template %q: %w", t.Name, err)
	}
	now := fmtTime(timeNow())

	return s.WithTx(ctx, func(tx *sql.Tx) error {
		if isDefault {
			// Single default invariant.
			if _, err := tx.ExecContext(ctx, `UPDATE templates SET is_default = 0`); err != nil {
				return fmt.Errorf("clear default template: %w", err)
			}
		}
		if t.ID == 0 {
			res, err := tx.ExecContext(ctx,
				`INSERT INTO templates (name, body, is_default, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
				t.Name, string(body), isDefault, now, now)
			if err != nil {
				return fmt.Errorf("insert template %q: %w", t.Name, err)
			}
			id, err := res.LastInsertId()
			if err != nil {
				return fmt.Errorf("template id: %w", err)
			}
			t.ID = id
			return nil
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE templates SET name = ?, body = ?, is_default = ?, updated_at = ? WHERE id = ?`,
			t.Name, string(body), isDefault, now, t.ID)
		if err != nil {
			return fmt.Errorf("update template %q: %w", t.Name, err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTemplate(row rowScanner) (*domain.Template, error) {
	var (
		id   int64
		name string
		body string
	)
	err := row.Scan(&id, &name, &body)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan template: %w", err)
	}

	var t domain.Template
	if err := json.Unmarshal([]byte(body), &t); err != nil {
		return nil, fmt.Errorf("decode template %q: %w", name, err)
	}
	// Columns are authoritative over whatever the body carries.
	t.ID = id
	t.Name = name
	return &t, nil
}
