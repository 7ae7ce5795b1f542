package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/pable/go-showdown-tracker/internal/model"
)

// ErrIncompleteLog is returned when a log does not announce both participants.
var ErrIncompleteLog = errors.New("log does not name both participants")

// ratingPattern matches "<name>'s rating: <before> → <after>", including the
// HTML-escaped arrow and <strong> wrapper the replay server emits.
var ratingPattern = regexp.MustCompile(`^(.+)'s rating: (\d+) (?:→|&rarr;|->) (?:<strong>)?(\d+)`)

// Builder folds an event sequence into a BattleRecord.
type Builder struct {
	logger *slog.Logger
}

// NewBuilder returns a Builder that logs through logger (slog.Default() if nil).
func NewBuilder(logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{logger: logger}
}

// activeSlot remembers what last switched into a field position, so a
// mechanic line that only names a nickname can be attributed to a species.
type activeSlot struct {
	nickname string
	species  string
}

// Build consumes events in order and returns the parsed record. Identity
// fields are left unresolved. The only error is ErrIncompleteLog.
func (b *Builder) Build(id string, events []model.RawEvent) (*model.BattleRecord, error) {
	rec := model.NewBattleRecord(id)
	active := make(map[string]activeSlot)

	for _, ev := range events {
		switch ev.Kind {
		case model.KindParticipant:
			b.onParticipant(rec, ev)
		case model.KindRoster:
			side, ok := model.ParseSide(ev.Field(0))
			if !ok {
				continue
			}
			if species := speciesFromDetails(ev.Field(1)); species != "" {
				rec.RevealedRoster[side] = append(rec.RevealedRoster[side], species)
			}
		case model.KindSwitch:
			side, ok := model.ParseSide(ev.Field(0))
			if !ok {
				continue
			}
			species := speciesFromDetails(ev.Field(1))
			if species == "" {
				continue
			}
			if !rec.HasPick(side, species) {
				rec.ActualPicks[side] = append(rec.ActualPicks[side], species)
			}
			active[slotKey(ev.Field(0))] = activeSlot{nickname: slotName(ev.Field(0)), species: species}
		case model.KindMechanic:
			side, ok := model.ParseSide(ev.Field(0))
			if !ok {
				continue
			}
			species := slotName(ev.Field(0))
			if a, ok := active[slotKey(ev.Field(0))]; ok && a.nickname == species {
				species = a.species
			}
			if species == "" {
				continue
			}
			var variant string
			if len(ev.Fields) > 1 {
				variant = strings.ToLower(strings.TrimSpace(ev.Fields[len(ev.Fields)-1]))
			}
			rec.SpecialMechanicEvents[side] = append(rec.SpecialMechanicEvents[side], model.MechanicEvent{
				Species: species,
				Variant: variant,
			})
		case model.KindRating:
			b.onRating(rec, ev)
		case model.KindWin:
			rec.WinnerName = strings.TrimSpace(ev.Field(0))
			rec.HasWinner = rec.WinnerName != ""
		case model.KindFormat:
			if rec.Format == "" {
				rec.Format = strings.TrimSpace(ev.Field(0))
			}
		case model.KindTimestamp:
			if !rec.PlayedAt.IsZero() {
				continue
			}
			if sec, err := strconv.ParseInt(strings.TrimSpace(ev.Field(0)), 10, 64); err == nil && sec > 0 {
				rec.PlayedAt = time.Unix(sec, 0).UTC()
			}
		}
	}

	if len(rec.Participants) < 2 {
		return rec, fmt.Errorf("%s: %w (found %d)", id, ErrIncompleteLog, len(rec.Participants))
	}
	return rec, nil
}

func (b *Builder) onParticipant(rec *model.BattleRecord, ev model.RawEvent) {
	side, ok := model.ParseSide(ev.Field(0))
	if !ok {
		return
	}
	name := strings.TrimSpace(ev.Field(1))
	if name == "" {
		return // player left; the slot keeps its original name
	}
	if prev, ok := rec.Participants[side]; ok && prev != name {
		b.logger.Warn("participant re-announced",
			"record", rec.ID, "side", side, "previous", prev, "name", name, "line", ev.Line)
	}
	rec.Participants[side] = name
}

func (b *Builder) onRating(rec *model.BattleRecord, ev model.RawEvent) {
	m := ratingPattern.FindStringSubmatch(strings.TrimSpace(ev.Field(0)))
	if m == nil {
		return
	}
	before, err1 := strconv.Atoi(m[2])
	after, err2 := strconv.Atoi(m[3])
	if err1 != nil || err2 != nil {
		return
	}
	name := strings.TrimSpace(m[1])
	for _, side := range model.Sides {
		if p, ok := rec.Participants[side]; ok && strings.EqualFold(p, name) {
			rec.RatingChanges[side] = &model.RatingChange{Before: before, After: after, Delta: after - before}
			return
		}
	}
	b.logger.Debug("rating line for unknown participant", "record", rec.ID, "name", name, "line", ev.Line)
}

// speciesFromDetails extracts the species from a details string such as
// "Pikachu, L50, M" or "Urshifu-*".
func speciesFromDetails(details string) string {
	if i := strings.IndexByte(details, ','); i >= 0 {
		details = details[:i]
	}
	return strings.TrimSpace(details)
}

// slotName returns the free text after "p1a: ".
func slotName(slot string) string {
	if i := strings.IndexByte(slot, ':'); i >= 0 {
		return strings.TrimSpace(slot[i+1:])
	}
	return ""
}

// slotKey returns the normalised field position ("p1a") of a slot token.
func slotKey(slot string) string {
	if i := strings.IndexByte(slot, ':'); i >= 0 {
		slot = slot[:i]
	}
	return strings.ToLower(strings.TrimSpace(slot))
}
