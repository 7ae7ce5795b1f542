// Package aggregator derives best-of-three series and usage statistics from a
// team's parsed battle history. Everything here is a pure function of its
// inputs.
package aggregator

import (
	"crypto/sha256"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pable/go-showdown-tracker/internal/model"
)

// seriesLength is the maximum number of games in one series.
const seriesLength = 3

// winsNeeded is the majority of a best-of-three.
const winsNeeded = 2

type groupConfig struct {
	window time.Duration
}

// GroupOption configures GroupMatches.
type GroupOption func(*groupConfig)

// WithSeriesWindow closes a series when two consecutive timestamped games are
// further apart than d. Zero disables the check.
func WithSeriesWindow(d time.Duration) GroupOption {
	return func(c *groupConfig) { c.window = d }
}

// GroupMatches groups a team's records into best-of-three series with a single
// chronological scan. A new series starts when the opponent label changes, the
// current series already holds three games, or the series window elapses.
// Records are ordered by PlayedAt when every record carries a timestamp;
// otherwise the input order is taken as chronological.
func GroupMatches(teamID string, records []model.BattleRecord, opts ...GroupOption) []model.MatchGroup {
	var cfg groupConfig
	for _, o := range opts {
		o(&cfg)
	}

	ordered := chronological(records)

	var (
		groups []model.MatchGroup
		active *model.MatchGroup
	)
	for _, rec := range ordered {
		if active == nil || startsNewSeries(active, rec, cfg) {
			groups = append(groups, model.MatchGroup{
				TeamID:        teamID,
				OpponentLabel: rec.OpponentLabel,
			})
			active = &groups[len(groups)-1]
		}
		active.Games = append(active.Games, model.MatchGame{
			GameNumber: len(active.Games) + 1,
			Record:     rec,
		})
		active.Score = seriesScore(active.Games)
		active.Result = seriesResult(active.Score, len(active.Games))
	}

	for i := range groups {
		groups[i].ID = groupID(groups[i].Games)
	}
	return groups
}

func chronological(records []model.BattleRecord) []model.BattleRecord {
	out := make([]model.BattleRecord, len(records))
	copy(out, records)
	for _, r := range out {
		if r.PlayedAt.IsZero() {
			return out
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].PlayedAt.Before(out[j].PlayedAt)
	})
	return out
}

func startsNewSeries(active *model.MatchGroup, rec model.BattleRecord, cfg groupConfig) bool {
	if !strings.EqualFold(strings.TrimSpace(active.OpponentLabel), strings.TrimSpace(rec.OpponentLabel)) {
		return true
	}
	if len(active.Games) >= seriesLength {
		return true
	}
	last := active.Games[len(active.Games)-1].Record
	if cfg.window > 0 && !last.PlayedAt.IsZero() && !rec.PlayedAt.IsZero() &&
		rec.PlayedAt.Sub(last.PlayedAt) > cfg.window {
		return true
	}
	return false
}

// seriesScore counts definite results; unknown games count toward neither side.
func seriesScore(games []model.MatchGame) model.SeriesScore {
	var s model.SeriesScore
	for _, g := range games {
		switch g.Record.Result {
		case model.ResultWin:
			s.Wins++
		case model.ResultLoss:
			s.Losses++
		}
	}
	return s
}

func seriesResult(s model.SeriesScore, games int) model.MatchResult {
	switch {
	case s.Wins >= winsNeeded:
		return model.MatchWin
	case s.Losses >= winsNeeded:
		return model.MatchLoss
	case games < seriesLength:
		return model.MatchIncomplete
	case s.Wins == s.Losses && s.Wins > 0:
		return model.MatchTie
	case s.Wins > s.Losses:
		return model.MatchWin
	case s.Losses > s.Wins:
		return model.MatchLoss
	default:
		// Three games with no definite result.
		return model.MatchIncomplete
	}
}

// groupID hashes the sorted constituent game ids, so it does not depend on
// insertion order or wall-clock time.
func groupID(games []model.MatchGame) string {
	ids := make([]string, len(games))
	for i, g := range games {
		ids[i] = g.Record.ID
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "\x00")))
	return fmt.Sprintf("%x", sum[:8])
}

// MergeAnnotations copies Notes and Tags from previous groups onto fresh groups
// with the same ID. Annotations of groups that no longer exist are dropped.
func MergeAnnotations(fresh, previous []model.MatchGroup) []model.MatchGroup {
	byID := make(map[string]model.MatchGroup, len(previous))
	for _, g := range previous {
		byID[g.ID] = g
	}
	out := make([]model.MatchGroup, len(fresh))
	for i, g := range fresh {
		if prev, ok := byID[g.ID]; ok {
			g.Notes = prev.Notes
			g.Tags = append([]string(nil), prev.Tags...)
		}
		out[i] = g
	}
	return out
}
