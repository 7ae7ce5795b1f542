package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/pable/go-showdown-tracker/internal/model"
)

const dateLayout = "2006-01-02 15:04"

func newTable(w io.Writer) *tablewriter.Table {
	return tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))
}

// PrintRecordSummary prints a one-line header for a parsed battle.
func PrintRecordSummary(w io.Writer, rec model.BattleRecord) {
	played := "—"
	if !rec.PlayedAt.IsZero() {
		played = rec.PlayedAt.Format(dateLayout)
	}
	hash := rec.LogHash
	if len(hash) > 12 {
		hash = hash[:12]
	}
	winner := "—"
	if rec.HasWinner {
		winner = rec.WinnerName
	}
	fmt.Fprintf(w, "\nReplay: %s  |  Format: %s  |  Date: %s  |  Winner: %s  |  Result: %s  |  Hash: %s\n\n",
		rec.ID, orDash(rec.Format), played, winner, rec.Result, orDash(hash))
}

// PrintRecordSides prints both sides of a battle: preview, picks, tera and
// rating change. The user's side is marked with ">".
func PrintRecordSides(w io.Writer, rec model.BattleRecord) {
	table := tablewriter.NewTable(w, tablewriter.WithConfig(tablewriter.Config{
		Row: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignLeft},
		},
		Header: tw.CellConfig{
			Alignment: tw.CellAlignment{Global: tw.AlignCenter},
		},
	}))
	table.Header(" ", "SIDE", "PLAYER", "PREVIEW", "PICKS", "TERA", "RATING")

	for _, side := range model.Sides {
		marker := " "
		if side == rec.UserSide {
			marker = ">"
		}
		var tera []string
		for _, ev := range rec.SpecialMechanicEvents[side] {
			if ev.Variant != "" {
				tera = append(tera, ev.Species+" ("+ev.Variant+")")
			} else {
				tera = append(tera, ev.Species)
			}
		}
		rating := "—"
		if rc := rec.RatingChanges[side]; rc != nil {
			rating = fmt.Sprintf("%d → %d (%+d)", rc.Before, rc.After, rc.Delta)
		}
		table.Append(
			marker,
			side.String(),
			rec.Participants[side],
			joinOrDash(rec.RevealedRoster[side]),
			joinOrDash(rec.ActualPicks[side]),
			joinOrDash(tera),
			rating,
		)
	}
	table.Render()
}

// PrintReplayTable prints a team's replay history. Failed entries are
// marked with "!".
func PrintReplayTable(w io.Writer, entries []model.ReplayEntry) {
	table := newTable(w)
	table.Header(" ", "REF", "STATE", "DATE", "OPPONENT", "RESULT", "PICKS", "ERROR")

	for _, e := range entries {
		marker := " "
		if e.State == model.StateFailed {
			marker = "!"
		}
		date, opponent, result, picks := "—", "—", "—", "—"
		if r := e.Record; r != nil {
			if !r.PlayedAt.IsZero() {
				date = r.PlayedAt.Format(dateLayout)
			}
			opponent = orDash(r.OpponentLabel)
			result = string(r.Result)
			if r.UserSide != model.SideNone {
				picks = joinOrDash(r.ActualPicks[r.UserSide])
			}
		}
		table.Append(marker, e.Ref, string(e.State), date, opponent, result, picks, truncate(e.Error, 40))
	}
	table.Render()
}

// PrintMatchTable prints best-of-three groups with their game results.
func PrintMatchTable(w io.Writer, groups []model.MatchGroup) {
	table := newTable(w)
	table.Header("MATCH", "OPPONENT", "GAMES", "SCORE", "RESULT", "SEQUENCE", "NOTES")

	for _, g := range groups {
		seq := make([]string, 0, len(g.Games))
		for _, game := range g.Games {
			seq = append(seq, resultLetter(game.Record.Result))
		}
		notes := g.Notes
		if len(g.Tags) > 0 {
			notes = strings.TrimSpace(notes + " [" + strings.Join(g.Tags, ", ") + "]")
		}
		table.Append(
			g.ID,
			g.OpponentLabel,
			strconv.Itoa(len(g.Games)),
			g.Score.String(),
			string(g.Result),
			strings.Join(seq, " "),
			truncate(notes, 40),
		)
	}
	table.Render()
}

// PrintMatchSummary prints the overall series record for a set of groups.
func PrintMatchSummary(w io.Writer, groups []model.MatchGroup) {
	counts := make(map[model.MatchResult]int)
	for _, g := range groups {
		counts[g.Result]++
	}
	fmt.Fprintf(w, "\nSeries: %d  |  Won: %d  |  Lost: %d  |  Tied: %d  |  Incomplete: %d\n\n",
		len(groups), counts[model.MatchWin], counts[model.MatchLoss], counts[model.MatchTie], counts[model.MatchIncomplete])
}

// PrintUsageTable prints per-Pokémon usage, lead and tera rates.
func PrintUsageTable(w io.Writer, stats model.UsageStats) {
	fmt.Fprintf(w, "\nGames counted: %d\n\n", stats.Games)

	table := newTable(w)
	table.Header("POKEMON", "USED", "USE%", "WIN%", "LEAD", "LEAD_WIN%", "TERA", "TERA_WIN%")
	for _, p := range stats.Pokemon {
		table.Append(
			p.Species,
			strconv.Itoa(p.Usage),
			p.UsageRate.Percent(),
			p.WinRate.Percent(),
			strconv.Itoa(p.LeadUsage),
			p.LeadWinRate.Percent(),
			strconv.Itoa(p.TeraUsage),
			p.TeraWinRate.Percent(),
		)
	}
	table.Render()
}

// PrintLeadTable prints one lead-pair table under title.
func PrintLeadTable(w io.Writer, title string, pairs []model.LeadPair) {
	fmt.Fprintf(w, "\n%s\n", title)
	if len(pairs) == 0 {
		fmt.Fprintln(w, "  (no lead data)")
		return
	}
	table := newTable(w)
	table.Header("LEAD", "USED", "WINS", "WIN%")
	for _, p := range pairs {
		table.Append(p.Label(), strconv.Itoa(p.Usage), strconv.Itoa(p.Wins), p.WinRate.Percent())
	}
	table.Render()
}

// PrintTrendTable prints games in the given order with a running record and
// the user's rating after each rated game.
func PrintTrendTable(w io.Writer, records []model.BattleRecord) {
	table := newTable(w)
	table.Header("#", "DATE", "OPPONENT", "RESULT", "RECORD", "RATING", "DELTA")

	var wins, losses int
	for i, r := range records {
		switch r.Result {
		case model.ResultWin:
			wins++
		case model.ResultLoss:
			losses++
		}
		date := "—"
		if !r.PlayedAt.IsZero() {
			date = r.PlayedAt.Format(dateLayout)
		}
		rating, delta := "—", "—"
		if rc := r.RatingChanges[r.UserSide]; r.UserSide != model.SideNone && rc != nil {
			rating = strconv.Itoa(rc.After)
			delta = fmt.Sprintf("%+d", rc.Delta)
		}
		table.Append(
			strconv.Itoa(i+1),
			date,
			orDash(r.OpponentLabel),
			resultLetter(r.Result),
			strconv.Itoa(wins)+"-"+strconv.Itoa(losses),
			rating,
			delta,
		)
	}
	table.Render()
}

// PrintTeamTable prints the registered teams.
func PrintTeamTable(w io.Writer, teams []model.Team) {
	table := newTable(w)
	table.Header("ID", "NAME", "ROSTER", "CREATED")
	for _, t := range teams {
		table.Append(t.ID[:min(8, len(t.ID))], t.Name, joinOrDash(t.Roster), t.CreatedAt.Format(dateLayout))
	}
	table.Render()
}

func resultLetter(r model.Result) string {
	switch r {
	case model.ResultWin:
		return "W"
	case model.ResultLoss:
		return "L"
	default:
		return "?"
	}
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "—"
	}
	return strings.Join(items, ", ")
}

func orDash(s string) string {
	if s == "" {
		return "—"
	}
	return s
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
