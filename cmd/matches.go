package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pable/go-showdown-tracker/internal/aggregator"
	"github.com/pable/go-showdown-tracker/internal/model"
	"github.com/pable/go-showdown-tracker/internal/report"
	"github.com/pable/go-showdown-tracker/internal/storage"
)

var (
	matchesWindow time.Duration
	noteTags      []string
)

var matchesCmd = &cobra.Command{
	Use:   "matches <team>",
	Short: "Group a team's games into best-of-three series",
	Long: `Regroups every parsed replay of the team into best-of-three series against the
same opponent, stores the groups and prints them. Notes and tags attached with
'matches note' survive regrouping.`,
	Args: cobra.ExactArgs(1),
	RunE: runMatches,
}

var matchesNoteCmd = &cobra.Command{
	Use:   "note <team> <match-id> <text>",
	Short: "Attach a note and tags to a series",
	Args:  cobra.MinimumNArgs(3),
	RunE:  runMatchesNote,
}

func init() {
	matchesCmd.Flags().DurationVar(&matchesWindow, "window", 0, "max gap between games of one series (default from config; 0 disables)")
	matchesNoteCmd.Flags().StringSliceVar(&noteTags, "tag", nil, "tags to set on the series")
	matchesCmd.AddCommand(matchesNoteCmd)
}

func runMatches(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	window := cfg.SeriesWindowDuration()
	if cmd.Flags().Changed("window") {
		window = matchesWindow
	}
	return showMatches(os.Stdout, db, args[0], window)
}

// regroup rebuilds and stores the team's series, keeping annotations.
func regroup(kv storage.KV, team *model.Team, window time.Duration) ([]model.MatchGroup, error) {
	records, err := storage.TeamRecords(kv, team.ID)
	if err != nil {
		return nil, fmt.Errorf("load records: %w", err)
	}
	previous, err := storage.LoadMatches(kv, team.ID)
	if err != nil {
		return nil, fmt.Errorf("load matches: %w", err)
	}
	groups := aggregator.MergeAnnotations(
		aggregator.GroupMatches(team.ID, records, aggregator.WithSeriesWindow(window)),
		previous,
	)
	if err := storage.SaveMatches(kv, team.ID, groups); err != nil {
		return nil, fmt.Errorf("save matches: %w", err)
	}
	return groups, nil
}

func showMatches(w io.Writer, kv storage.KV, teamQuery string, window time.Duration) error {
	team, err := storage.FindTeam(kv, teamQuery)
	if err != nil {
		return err
	}
	groups, err := regroup(kv, team, window)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		fmt.Fprintf(w, "No parsed games for %s yet.\n", team.Name)
		return nil
	}
	report.PrintMatchSummary(w, groups)
	report.PrintMatchTable(w, groups)
	return nil
}

func runMatchesNote(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	team, err := storage.FindTeam(db, args[0])
	if err != nil {
		return err
	}
	groups, err := storage.LoadMatches(db, team.ID)
	if err != nil {
		return fmt.Errorf("load matches: %w", err)
	}

	id := args[1]
	var target *model.MatchGroup
	for i := range groups {
		if strings.HasPrefix(groups[i].ID, id) {
			if target != nil {
				return fmt.Errorf("match id %q is ambiguous", id)
			}
			target = &groups[i]
		}
	}
	if target == nil {
		return fmt.Errorf("no series %q for %s; run 'sdtrack matches %q' first", id, team.Name, team.Name)
	}
	target.Notes = strings.Join(args[2:], " ")
	if cmd.Flags().Changed("tag") {
		target.Tags = noteTags
	}
	if err := storage.SaveMatches(db, team.ID, groups); err != nil {
		return fmt.Errorf("save matches: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Noted series %s vs %s\n", target.ID, target.OpponentLabel)
	return nil
}
