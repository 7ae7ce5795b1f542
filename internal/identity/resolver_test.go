package identity

import (
	"reflect"
	"testing"

	"github.com/pable/go-showdown-tracker/internal/model"
)

// makeRecord returns a two-player record with the given winner ("" for none).
func makeRecord(p1, p2, winner string) model.BattleRecord {
	rec := model.NewBattleRecord("g")
	rec.Participants[model.Side1] = p1
	rec.Participants[model.Side2] = p2
	if winner != "" {
		rec.WinnerName = winner
		rec.HasWinner = true
	}
	return *rec
}

func TestResolve(t *testing.T) {
	tests := []struct {
		name      string
		p1, p2    string
		winner    string
		known     []string
		wantSide  model.Side
		wantRes   model.Result
		wantLabel string
	}{
		{"exact side-1 win", "Ash", "Gary", "Ash", []string{"ash"}, model.Side1, model.ResultWin, "Gary"},
		{"exact side-2 loss", "Gary", "Ash", "Gary", []string{"ASH"}, model.Side2, model.ResultLoss, "Gary"},
		{"substring fallback", "xXAshXx", "Gary", "xxashxx", []string{"ash"}, model.Side1, model.ResultWin, "Gary"},
		{"known name contains display name", "Ash", "Gary", "Gary", []string{"ash ketchum"}, model.Side1, model.ResultLoss, "Gary"},
		{"exact beats substring", "Ashley", "Ash", "Ashley", []string{"ash"}, model.Side2, model.ResultLoss, "Ashley"},
		{"both substring → unknown", "Ash1", "Ash2", "Ash1", []string{"ash"}, model.SideNone, model.ResultUnknown, "Ash1 vs Ash2"},
		{"both exact → unknown", "Ash", "Misty", "Ash", []string{"ash", "misty"}, model.SideNone, model.ResultUnknown, "Ash vs Misty"},
		{"no match", "Brock", "Gary", "Gary", []string{"ash"}, model.SideNone, model.ResultUnknown, "Brock vs Gary"},
		{"unfinished with identity is a loss", "Ash", "Gary", "", []string{"ash"}, model.Side1, model.ResultLoss, "Gary"},
		{"empty known names", "Ash", "Gary", "Ash", []string{"", "  "}, model.SideNone, model.ResultUnknown, "Ash vs Gary"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Resolve(makeRecord(tt.p1, tt.p2, tt.winner), NewNameSet(tt.known...))
			if got.UserSide != tt.wantSide {
				t.Errorf("user side: got %s, want %s", got.UserSide, tt.wantSide)
			}
			if got.Result != tt.wantRes {
				t.Errorf("result: got %s, want %s", got.Result, tt.wantRes)
			}
			if got.OpponentLabel != tt.wantLabel {
				t.Errorf("label: got %q, want %q", got.OpponentLabel, tt.wantLabel)
			}
			if got.UserSide != model.SideNone && got.OpponentSide != got.UserSide.Other() {
				t.Errorf("opponent side %s is not the other side of %s", got.OpponentSide, got.UserSide)
			}
			// result is unknown exactly when the user side is absent.
			if (got.Result == model.ResultUnknown) != (got.UserSide == model.SideNone) {
				t.Errorf("unknown/user-side invariant broken: result=%s side=%s", got.Result, got.UserSide)
			}
		})
	}
}

func TestResolve_Idempotent(t *testing.T) {
	names := NewNameSet("ash", "ash alt")
	once := Resolve(makeRecord("Ash", "Gary", "Ash"), names)
	twice := Resolve(once, names)
	if !reflect.DeepEqual(once, twice) {
		t.Errorf("second resolution changed the record:\n%+v\n%+v", once, twice)
	}

	// A stale classification is discarded.
	stale := makeRecord("Brock", "Gary", "Gary")
	stale.UserSide, stale.Result = model.Side1, model.ResultWin
	got := Resolve(stale, names)
	if got.UserSide != model.SideNone || got.Result != model.ResultUnknown {
		t.Errorf("stale classification survived: %+v", got)
	}
}

func TestNameSet_OrderIndependent(t *testing.T) {
	a := NewNameSet("Ash", "Red", "ash")
	b := NewNameSet("red", "ASH")
	if !reflect.DeepEqual(a.Names(), b.Names()) {
		t.Errorf("name sets differ: %q vs %q", a.Names(), b.Names())
	}
	if a.Len() != 2 {
		t.Errorf("expected 2 distinct names, got %d", a.Len())
	}
}
