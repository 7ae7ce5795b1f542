package cmd

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/pable/go-showdown-tracker/internal/report"
	"github.com/pable/go-showdown-tracker/internal/storage"
)

var trendCmd = &cobra.Command{
	Use:   "trend <team>",
	Short: "Chronological results and rating for a team",
	Args:  cobra.ExactArgs(1),
	RunE:  runTrend,
}

func runTrend(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	team, err := storage.FindTeam(db, args[0])
	if err != nil {
		return err
	}
	records, err := storage.TeamRecords(db, team.ID)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}
	if len(records) == 0 {
		fmt.Println("no games found")
		return nil
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].PlayedAt.Before(records[j].PlayedAt)
	})

	report.PrintTrendTable(os.Stdout, records)
	return nil
}
