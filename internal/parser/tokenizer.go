package parser

import (
	"strings"

	"github.com/pable/go-showdown-tracker/internal/model"
)

// fieldSep separates positional fields in a protocol line.
const fieldSep = "|"

// kindByTag maps protocol tags to event kinds. Tags not listed decode as KindOther.
var kindByTag = map[string]model.EventKind{
	"player":        model.KindParticipant,
	"poke":          model.KindRoster,
	"switch":        model.KindSwitch,
	"drag":          model.KindSwitch,
	"-terastallize": model.KindMechanic,
	"raw":           model.KindRating,
	"win":           model.KindWin,
	"tier":          model.KindFormat,
	"t:":            model.KindTimestamp,
}

// Tokenize splits a raw battle log into one RawEvent per line. It never fails:
// blank, unprefixed, and unrecognised lines are kept as KindOther.
func Tokenize(text string) []model.RawEvent {
	lines := strings.Split(text, "\n")
	// A trailing newline does not produce an extra event.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	events := make([]model.RawEvent, 0, len(lines))
	for i, line := range lines {
		line = strings.TrimRight(line, "\r")
		events = append(events, tokenizeLine(i+1, line))
	}
	return events
}

func tokenizeLine(n int, line string) model.RawEvent {
	ev := model.RawEvent{Line: n, Kind: model.KindOther, Raw: line}
	if !strings.HasPrefix(line, fieldSep) {
		if line != "" {
			ev.Fields = []string{line}
		}
		return ev
	}

	parts := strings.Split(line, fieldSep)
	// parts[0] is the empty string before the leading separator.
	ev.Tag = parts[1]
	ev.Fields = parts[2:]
	// "|win|Ash|" carries an empty trailing field; drop it so Field(last) is meaningful.
	if n := len(ev.Fields); n > 0 && ev.Fields[n-1] == "" {
		ev.Fields = ev.Fields[:n-1]
	}
	if kind, ok := kindByTag[ev.Tag]; ok {
		ev.Kind = kind
	}
	return ev
}
