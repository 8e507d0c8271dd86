// SPDX-License-Identifier: MIT

package template

import (
	"sort"
	"strings"

	"github.com/teamarr/teamarr/internal/domain"
)

// Description resolves the event programme description: the lowest
// priority matching conditional wins, else the plain description
// template.
func Description(tpl domain.Template, ctx *Context) string {
	return ResolveConditional(tpl.ConditionalDescriptions, tpl.DescriptionTemplate, ctx)
}

// IdleDescription resolves the description for idle filler on days
// without a game.
func IdleDescription(tpl domain.Template, ctx *Context) string {
	return ResolveConditional(tpl.IdleConditional, tpl.IdleContent.Description, ctx)
}

// PostgameDescription resolves the postgame description. The two-way
// final/not_final switch takes precedence over the fallback when
// enabled; it keys off the event the postgame follows, which sits in
// the .last slot for filler contexts.
func PostgameDescription(tpl domain.Template, ctx *Context) string {
	if tpl.PostgameSwitch.Enabled {
		ev := ctx.recent()
		if ev != nil && ev.Status.IsFinal() {
			return Resolve(tpl.PostgameSwitch.Final, ctx)
		}
		return Resolve(tpl.PostgameSwitch.NotFinal, ctx)
	}
	return Resolve(tpl.PostgameFallback.Description, ctx)
}

// ResolveConditional walks conds by ascending priority (ties keep user
// order) and resolves the first whose condition holds; fallback resolves
// when none do.
func ResolveConditional(conds []domain.ConditionalDescription, fallback string, ctx *Context) string {
	if len(conds) > 0 {
		ordered := make([]domain.ConditionalDescription, len(conds))
		copy(ordered, conds)
		sort.SliceStable(ordered, func(i, j int) bool {
			return ordered[i].Priority < ordered[j].Priority
		})
		for _, cd := range ordered {
			if Evaluate(cd.Condition, ctx) {
				return Resolve(cd.Template, ctx)
			}
		}
	}
	return Resolve(fallback, ctx)
}

// Evaluate checks one condition of the form `lhs == rhs` or `lhs != rhs`
// over the context. Operands are either condition keys (is_final,
// game_date, status, ...) or literals (true, today, "final").
// Malformed or unknown conditions evaluate false so a typo can never
// promote a description.
func Evaluate(cond string, ctx *Context) bool {
	lhs, rhs, negate, ok := splitCondition(cond)
	if !ok {
		return false
	}
	equal := strings.EqualFold(operand(lhs, ctx), operand(rhs, ctx))
	if negate {
		return !equal
	}
	return equal
}

func splitCondition(cond string) (lhs, rhs string, negate, ok bool) {
	if l, r, found := strings.Cut(cond, "!="); found {
		return strings.TrimSpace(l), strings.TrimSpace(r), true, true
	}
	if l, r, found := strings.Cut(cond, "=="); found {
		return strings.TrimSpace(l), strings.TrimSpace(r), false, true
	}
	return "", "", false, false
}

// operand resolves one side of a condition to a comparable string.
// Known keys read the context; anything else is a literal (quotes
// stripped).
func operand(token string, ctx *Context) string {
	token = strings.Trim(token, `"'`)
	ev := ctx.Event

	switch strings.ToLower(token) {
	case "is_final":
		return boolToken(ev != nil && ev.Status.IsFinal())
	case "is_live":
		return boolToken(ev != nil && ev.Status.IsLive())
	case "is_overtime":
		return boolToken(ev != nil && overtimeText(ev) != "")
	case "has_odds":
		return boolToken(ev != nil && ev.Odds != nil)
	case "has_score":
		return boolToken(ev != nil && ev.HomeScore != nil && ev.AwayScore != nil)
	case "status":
		if ev == nil {
			return ""
		}
		return string(ev.Status.State)
	case "league":
		if ev == nil {
			return ""
		}
		return string(ev.League)
	case "sport":
		if ev == nil {
			return ""
		}
		return string(ev.Sport)
	case "game_date":
		if ev == nil {
			return ""
		}
		return ev.LocalDate(ctx.loc()).Format("2006-01-02")
	case "game_day":
		if ev == nil {
			return ""
		}
		return ev.StartTime.In(ctx.loc()).Format("Monday")
	case "today":
		return ctx.now().In(ctx.loc()).Format("2006-01-02")
	case "yesterday":
		return ctx.now().In(ctx.loc()).AddDate(0, 0, -1).Format("2006-01-02")
	case "tomorrow":
		return ctx.now().In(ctx.loc()).AddDate(0, 0, 1).Format("2006-01-02")
	default:
		return token
	}
}

func boolToken(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
