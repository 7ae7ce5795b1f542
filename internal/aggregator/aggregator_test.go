package aggregator

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/pable/go-showdown-tracker/internal/model"
)

// makeGame creates a resolved record where the user (side-1) played opponent
// with the given result and picks in switch-in order.
func makeGame(id, opponent string, result model.Result, picks ...string) model.BattleRecord {
	rec := model.NewBattleRecord(id)
	rec.Participants[model.Side1] = "Ash"
	rec.Participants[model.Side2] = opponent
	rec.ActualPicks[model.Side1] = picks
	rec.Result = result
	rec.OpponentLabel = opponent
	if result != model.ResultUnknown {
		rec.UserSide, rec.OpponentSide = model.Side1, model.Side2
	}
	return *rec
}

// makeSeries builds n games against one opponent from a result list.
func makeSeries(opponent string, results ...model.Result) []model.BattleRecord {
	out := make([]model.BattleRecord, len(results))
	for i, r := range results {
		out[i] = makeGame(fmt.Sprintf("%s-%d", opponent, i+1), opponent, r)
	}
	return out
}

const (
	W = model.ResultWin
	L = model.ResultLoss
	U = model.ResultUnknown
)

// ---- Series grouping tests ----

// TestGroupMatches_FiveGames: [W, W, L, L, W] → games 1–3 (2–1 win) and 4–5 (1–1 incomplete).
func TestGroupMatches_FiveGames(t *testing.T) {
	groups := GroupMatches("team", makeSeries("Gary", W, W, L, L, W))
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}

	g1, g2 := groups[0], groups[1]
	if len(g1.Games) != 3 || g1.Score != (model.SeriesScore{Wins: 2, Losses: 1}) || g1.Result != model.MatchWin {
		t.Errorf("group 1: games=%d score=%s result=%s", len(g1.Games), g1.Score, g1.Result)
	}
	if len(g2.Games) != 2 || g2.Score != (model.SeriesScore{Wins: 1, Losses: 1}) || g2.Result != model.MatchIncomplete {
		t.Errorf("group 2: games=%d score=%s result=%s", len(g2.Games), g2.Score, g2.Result)
	}
	if g2.Games[0].Record.ID != "Gary-4" {
		t.Errorf("group 2 should start at game 4, got %s", g2.Games[0].Record.ID)
	}
	for _, g := range groups {
		if g.TeamID != "team" || g.OpponentLabel != "Gary" {
			t.Errorf("group metadata: %+v", g)
		}
		for i, game := range g.Games {
			if game.GameNumber != i+1 {
				t.Errorf("game numbers must be contiguous from 1, got %d at %d", game.GameNumber, i)
			}
		}
	}
}

func TestGroupMatches_OpponentChange(t *testing.T) {
	records := append(makeSeries("Gary", W), makeSeries("Misty", L, L)...)
	records = append(records, makeSeries("gary", W)...)
	groups := GroupMatches("team", records)
	if len(groups) != 3 {
		t.Fatalf("expected 3 groups, got %d", len(groups))
	}
	if groups[0].Result != model.MatchIncomplete || groups[1].Result != model.MatchLoss {
		t.Errorf("results: %s, %s", groups[0].Result, groups[1].Result)
	}
	if groups[2].OpponentLabel != "gary" {
		t.Errorf("third group label: %q", groups[2].OpponentLabel)
	}

	// Label comparison is case-insensitive.
	same := GroupMatches("team", append(makeSeries("Gary", W), makeSeries("GARY", L)...))
	if len(same) != 1 {
		t.Errorf("case-differing labels should share a group, got %d groups", len(same))
	}
}

func TestSeriesResult(t *testing.T) {
	tests := []struct {
		results []model.Result
		want    model.MatchResult
		score   model.SeriesScore
	}{
		{[]model.Result{W}, model.MatchIncomplete, model.SeriesScore{Wins: 1}},
		{[]model.Result{W, W}, model.MatchWin, model.SeriesScore{Wins: 2}},
		{[]model.Result{L, L}, model.MatchLoss, model.SeriesScore{Losses: 2}},
		{[]model.Result{W, L}, model.MatchIncomplete, model.SeriesScore{Wins: 1, Losses: 1}},
		{[]model.Result{W, L, U}, model.MatchTie, model.SeriesScore{Wins: 1, Losses: 1}},
		{[]model.Result{L, W, L}, model.MatchLoss, model.SeriesScore{Wins: 1, Losses: 2}},
		{[]model.Result{W, U, U}, model.MatchWin, model.SeriesScore{Wins: 1}},
		{[]model.Result{U, U, U}, model.MatchIncomplete, model.SeriesScore{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.results), func(t *testing.T) {
			groups := GroupMatches("team", makeSeries("Gary", tt.results...))
			if len(groups) != 1 {
				t.Fatalf("expected 1 group, got %d", len(groups))
			}
			if groups[0].Result != tt.want {
				t.Errorf("result: got %s, want %s", groups[0].Result, tt.want)
			}
			if groups[0].Score != tt.score {
				t.Errorf("score: got %s, want %s", groups[0].Score, tt.score)
			}
		})
	}
}

// TestGroupMatches_Idempotent: grouping the same list twice yields identical ids, scores, results.
func TestGroupMatches_Idempotent(t *testing.T) {
	records := append(makeSeries("Gary", W, L, W, L), makeSeries("Misty", U, W)...)
	a := GroupMatches("team", records)
	b := GroupMatches("team", records)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("re-grouping produced different groups")
	}
	seen := make(map[string]bool)
	for _, g := range a {
		if g.ID == "" || seen[g.ID] {
			t.Errorf("group id %q is empty or duplicated", g.ID)
		}
		seen[g.ID] = true
	}
}

func TestGroupMatches_TimestampOrderAndWindow(t *testing.T) {
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	records := makeSeries("Gary", W, L, W)
	records[0].PlayedAt = base.Add(10 * time.Minute)
	records[1].PlayedAt = base
	records[2].PlayedAt = base.Add(5 * time.Hour)

	groups := GroupMatches("team", records)
	if len(groups) != 1 || groups[0].Games[0].Record.ID != "Gary-2" {
		t.Fatalf("timestamped records should be sorted, got %+v", groups)
	}

	groups = GroupMatches("team", records, WithSeriesWindow(time.Hour))
	if len(groups) != 2 {
		t.Fatalf("5h gap should split the series with a 1h window, got %d groups", len(groups))
	}
	if len(groups[0].Games) != 2 || len(groups[1].Games) != 1 {
		t.Errorf("unexpected split: %d + %d", len(groups[0].Games), len(groups[1].Games))
	}
}

func TestMergeAnnotations(t *testing.T) {
	groups := GroupMatches("team", makeSeries("Gary", W, W))
	prev := []model.MatchGroup{
		{ID: groups[0].ID, Notes: "won on time", Tags: []string{"regional"}},
		{ID: "stale", Notes: "gone"},
	}
	merged := MergeAnnotations(groups, prev)
	if merged[0].Notes != "won on time" || len(merged[0].Tags) != 1 {
		t.Errorf("annotations not carried: %+v", merged[0])
	}
	if groups[0].Notes != "" {
		t.Error("MergeAnnotations must not mutate its input")
	}
}

// ---- Usage tests ----

func TestComputeUsage(t *testing.T) {
	roster := []string{"Pikachu", "Incineroar", "Urshifu-Rapid-Strike", "Amoonguss"}

	g1 := makeGame("1", "Gary", W, "Pikachu", "Incineroar", "Urshifu")
	g1.SpecialMechanicEvents[model.Side1] = []model.MechanicEvent{{Species: "Pikachu", Variant: "water"}}
	g2 := makeGame("2", "Gary", L, "Incineroar", "Pikachu", "Amoonguss")
	g3 := makeGame("3", "Gary", W, "Urshifu-*", "Amoonguss")
	g3.SpecialMechanicEvents[model.Side1] = []model.MechanicEvent{{Species: "Urshifu-Rapid-Strike", Variant: "water"}}
	// Unknown results are excluded from every count.
	g4 := makeGame("4", "Gary", U, "Pikachu", "Incineroar")

	stats := ComputeUsage(roster, []model.BattleRecord{g1, g2, g3, g4}, 0)
	if stats.Games != 3 {
		t.Fatalf("expected 3 scored games, got %d", stats.Games)
	}

	by := make(map[string]model.PokemonUsage)
	for _, p := range stats.Pokemon {
		by[p.Species] = p
	}
	if len(by) != 4 {
		t.Fatalf("expected 4 roster entries, got %+v", stats.Pokemon)
	}

	pika := by["Pikachu"]
	if pika.Usage != 2 || pika.Wins != 1 || pika.LeadUsage != 2 || pika.TeraUsage != 1 {
		t.Errorf("Pikachu: %+v", pika)
	}
	if !pika.WinRate.Valid || pika.WinRate.Value != 0.5 {
		t.Errorf("Pikachu win rate: %+v", pika.WinRate)
	}
	if !pika.TeraWinRate.Valid || pika.TeraWinRate.Value != 1 {
		t.Errorf("Pikachu tera win rate: %+v", pika.TeraWinRate)
	}

	// All Urshifu formes collapse to one key.
	ursh, ok := by["Urshifu"]
	if !ok {
		t.Fatalf("expected canonical Urshifu entry, got %+v", stats.Pokemon)
	}
	if ursh.Usage != 2 || ursh.Wins != 2 || ursh.LeadUsage != 1 || ursh.TeraUsage != 1 {
		t.Errorf("Urshifu: %+v", ursh)
	}

	amoon := by["Amoonguss"]
	if amoon.LeadUsage != 1 || amoon.LeadWins != 1 {
		t.Errorf("Amoonguss leads: %+v", amoon)
	}
	// No tera: explicit no-data, never zero.
	if amoon.TeraUsage != 0 || amoon.TeraWinRate.Valid {
		t.Errorf("Amoonguss tera rate should be no-data: %+v", amoon.TeraWinRate)
	}
	if amoon.TeraWinRate.Percent() != "—" {
		t.Errorf("no-data rate should render as a dash, got %q", amoon.TeraWinRate.Percent())
	}

	// Pikachu+Incineroar led twice in either order: one key.
	if len(stats.MostCommonLeads) != 2 {
		t.Fatalf("expected 2 lead pairs, got %+v", stats.MostCommonLeads)
	}
	top := stats.MostCommonLeads[0]
	if top.Pair != [2]string{"Incineroar", "Pikachu"} || top.Usage != 2 || top.Wins != 1 {
		t.Errorf("most common lead: %+v", top)
	}
	best := stats.BestLeads[0]
	if best.Pair != [2]string{"Amoonguss", "Urshifu"} || best.WinRate.Value != 1 {
		t.Errorf("best lead: %+v", best)
	}
}

func TestComputeUsage_NoGames(t *testing.T) {
	stats := ComputeUsage([]string{"Pikachu"}, nil, 5)
	if stats.Games != 0 || len(stats.Pokemon) != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	p := stats.Pokemon[0]
	if p.UsageRate.Valid || p.WinRate.Valid || p.LeadWinRate.Valid || p.TeraWinRate.Valid {
		t.Errorf("every rate should be no-data with zero games: %+v", p)
	}
	if len(stats.MostCommonLeads) != 0 || len(stats.BestLeads) != 0 {
		t.Errorf("expected no lead pairs")
	}
}

func TestComputeUsage_TopN(t *testing.T) {
	var records []model.BattleRecord
	leads := [][2]string{{"A", "B"}, {"A", "B"}, {"C", "D"}, {"E", "F"}}
	for i, l := range leads {
		records = append(records, makeGame(fmt.Sprint(i), "Gary", W, l[0], l[1]))
	}
	stats := ComputeUsage(nil, records, 2)
	if len(stats.MostCommonLeads) != 2 || len(stats.BestLeads) != 2 {
		t.Fatalf("topN not applied: %d / %d", len(stats.MostCommonLeads), len(stats.BestLeads))
	}
	// All win 100%: ties broken by usage, then name.
	if stats.BestLeads[0].Label() != "A + B" || stats.BestLeads[1].Label() != "C + D" {
		t.Errorf("best ordering: %s, %s", stats.BestLeads[0].Label(), stats.BestLeads[1].Label())
	}
}

func TestCanonicalSpecies(t *testing.T) {
	tests := map[string]string{
		"Urshifu-*":            "Urshifu",
		"urshifu-rapid-strike": "Urshifu",
		"Tatsugiri-Droopy":     "Tatsugiri",
		"  Flutter   Mane ":    "Flutter Mane",
		"Indeedee-F":           "Indeedee-F",
	}
	for in, want := range tests {
		if got := CanonicalSpecies(in); got != want {
			t.Errorf("CanonicalSpecies(%q) = %q, want %q", in, got, want)
		}
	}
}
