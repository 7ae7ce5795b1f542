// Package identity decides which side of a battle belongs to the user.
package identity

import (
	"sort"
	"strings"

	"github.com/pable/go-showdown-tracker/internal/model"
)

// NameSet is a case-insensitive set of the user's known display names.
type NameSet struct {
	names map[string]struct{}
}

// NewNameSet normalises names (trimmed, lower-cased); empty names are dropped.
func NewNameSet(names ...string) NameSet {
	s := NameSet{names: make(map[string]struct{}, len(names))}
	for _, n := range names {
		if k := normalize(n); k != "" {
			s.names[k] = struct{}{}
		}
	}
	return s
}

// Len returns the number of distinct names.
func (s NameSet) Len() int { return len(s.names) }

// Names returns the normalised names in sorted order.
func (s NameSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

func (s NameSet) exact(name string) bool {
	_, ok := s.names[normalize(name)]
	return ok
}

// loose reports whether a known name contains, or is contained in, name.
func (s NameSet) loose(name string) bool {
	n := normalize(name)
	if n == "" {
		return false
	}
	for k := range s.names {
		if strings.Contains(n, k) || strings.Contains(k, n) {
			return true
		}
	}
	return false
}

func normalize(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Resolve returns rec with UserSide, OpponentSide, Result, and OpponentLabel
// set. Any earlier classification on rec is discarded, so Resolve is
// idempotent. An exact match on exactly one side wins; otherwise a substring
// match on exactly one side; otherwise the result is unknown.
func Resolve(rec model.BattleRecord, names NameSet) model.BattleRecord {
	rec.UserSide, rec.OpponentSide = model.SideNone, model.SideNone
	rec.Result = model.ResultUnknown

	p1, p2 := rec.Participants[model.Side1], rec.Participants[model.Side2]

	user := pick(names.exact(p1), names.exact(p2))
	if user == model.SideNone {
		user = pick(names.loose(p1), names.loose(p2))
	}
	if user == model.SideNone {
		rec.OpponentLabel = p1 + " vs " + p2
		return rec
	}

	rec.UserSide = user
	rec.OpponentSide = user.Other()
	rec.OpponentLabel = rec.Participants[rec.OpponentSide]
	// An unfinished battle with a known user still scores as a loss.
	if rec.HasWinner && strings.EqualFold(strings.TrimSpace(rec.WinnerName), strings.TrimSpace(rec.Participants[user])) {
		rec.Result = model.ResultWin
	} else {
		rec.Result = model.ResultLoss
	}
	return rec
}

// pick returns the single matching side, or SideNone when zero or both match.
func pick(side1, side2 bool) model.Side {
	switch {
	case side1 && !side2:
		return model.Side1
	case side2 && !side1:
		return model.Side2
	default:
		return model.SideNone
	}
}
