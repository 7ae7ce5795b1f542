package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-showdown-tracker/internal/report"
	"github.com/pable/go-showdown-tracker/internal/storage"
)

var listCmd = &cobra.Command{
	Use:   "list <team>",
	Short: "List a team's replays and their fetch state",
	Args:  cobra.ExactArgs(1),
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	return listReplays(os.Stdout, db, args[0])
}

func listReplays(w io.Writer, kv storage.KV, teamQuery string) error {
	team, err := storage.FindTeam(kv, teamQuery)
	if err != nil {
		return err
	}
	entries, err := storage.TeamReplays(kv, team.ID)
	if err != nil {
		return fmt.Errorf("list replays: %w", err)
	}
	if len(entries) == 0 {
		fmt.Fprintf(w, "No replays for %s yet. Run 'sdtrack ingest %q <ref>' to add one.\n", team.Name, team.Name)
		return nil
	}
	report.PrintReplayTable(w, entries)
	return nil
}
