package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"

	"github.com/pable/go-showdown-tracker/internal/model"
	"github.com/pable/go-showdown-tracker/internal/storage"
)

// summaryCmd is the cobra command for displaying a high-level database overview.
var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Show a high-level overview of the database",
	Long: `Display per-team totals: replays by fetch state, game record, date range and
the best-of-three record from the last 'matches' run.`,
	Args: cobra.NoArgs,
	RunE: runSummary,
}

func runSummary(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	teams, err := storage.ListTeams(db)
	if err != nil {
		return fmt.Errorf("list teams: %w", err)
	}
	if len(teams) == 0 {
		fmt.Fprintln(os.Stdout, "No teams yet. Run 'sdtrack team add <name> --roster a,b,c' to add one.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "\n=== Database Summary ===\n\n")
	fmt.Fprintf(os.Stdout, "  Database : %s\n", dbPath)
	fmt.Fprintf(os.Stdout, "  Teams    : %d\n\n", len(teams))

	t := tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))
	t.Header("TEAM", "REPLAYS", "PARSED", "FAILED", "PENDING", "GAMES W-L", "SERIES W-L-T", "FIRST", "LAST")
	for _, team := range teams {
		entries, err := storage.TeamReplays(db, team.ID)
		if err != nil {
			return fmt.Errorf("team %s: %w", team.Name, err)
		}
		groups, err := storage.LoadMatches(db, team.ID)
		if err != nil {
			return fmt.Errorf("team %s: %w", team.Name, err)
		}

		states := make(map[model.ReplayState]int)
		var wins, losses int
		var first, last time.Time
		for _, e := range entries {
			states[e.State]++
			if e.State != model.StateParsed || e.Record == nil {
				continue
			}
			switch e.Record.Result {
			case model.ResultWin:
				wins++
			case model.ResultLoss:
				losses++
			}
			if at := e.Record.PlayedAt; !at.IsZero() {
				if first.IsZero() || at.Before(first) {
					first = at
				}
				if at.After(last) {
					last = at
				}
			}
		}
		series := make(map[model.MatchResult]int)
		for _, g := range groups {
			series[g.Result]++
		}

		t.Append(
			team.Name,
			fmt.Sprintf("%d", len(entries)),
			fmt.Sprintf("%d", states[model.StateParsed]),
			fmt.Sprintf("%d", states[model.StateFailed]),
			fmt.Sprintf("%d", states[model.StateRegistered]+states[model.StateFetching]),
			fmt.Sprintf("%d-%d", wins, losses),
			fmt.Sprintf("%d-%d-%d", series[model.MatchWin], series[model.MatchLoss], series[model.MatchTie]),
			dateOrDash(first),
			dateOrDash(last),
		)
	}
	t.Render()
	return nil
}

func dateOrDash(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Format("2006-01-02")
}
