package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-showdown-tracker/internal/aggregator"
	"github.com/pable/go-showdown-tracker/internal/report"
	"github.com/pable/go-showdown-tracker/internal/storage"
)

var statsTop int

var statsCmd = &cobra.Command{
	Use:   "stats <team>",
	Short: "Usage, lead and tera statistics for a team",
	Args:  cobra.ExactArgs(1),
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().IntVar(&statsTop, "top", 0, "rows per lead table (default from config; 0 with no config means all)")
}

func runStats(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	top := cfg.TopLeads
	if cmd.Flags().Changed("top") {
		top = statsTop
	}
	return showStats(os.Stdout, db, args[0], top)
}

func showStats(w io.Writer, kv storage.KV, teamQuery string, top int) error {
	team, err := storage.FindTeam(kv, teamQuery)
	if err != nil {
		return err
	}
	records, err := storage.TeamRecords(kv, team.ID)
	if err != nil {
		return fmt.Errorf("load records: %w", err)
	}

	stats := aggregator.ComputeUsage(team.Roster, records, top)
	fmt.Fprintf(w, "\n%s\n", team.Name)
	report.PrintUsageTable(w, stats)
	report.PrintLeadTable(w, "Most common leads", stats.MostCommonLeads)
	report.PrintLeadTable(w, "Best leads", stats.BestLeads)
	return nil
}
