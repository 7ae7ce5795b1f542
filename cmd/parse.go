package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-showdown-tracker/internal/fetch"
	"github.com/pable/go-showdown-tracker/internal/identity"
	"github.com/pable/go-showdown-tracker/internal/parser"
	"github.com/pable/go-showdown-tracker/internal/report"
)

var parseNames []string

var parseCmd = &cobra.Command{
	Use:   "parse <file.log>",
	Short: "Parse a local replay log and print the record",
	Long:  "Parse a saved battle log (.log, .json, optionally .gz/.zst) without storing it. Useful for checking what the tracker will see.",
	Args:  cobra.ExactArgs(1),
	RunE:  runParse,
}

func init() {
	parseCmd.Flags().StringSliceVar(&parseNames, "name", nil, "extra account names that identify you")
}

func runParse(cmd *cobra.Command, args []string) error {
	path := args[0]

	replay, err := fetch.FileFetcher{}.Fetch(context.Background(), path)
	if err != nil {
		return err
	}
	rec, err := parser.ParseLog(replay.ID, replay.Log, slog.Default())
	if err != nil {
		return err
	}
	if rec.PlayedAt.IsZero() {
		rec.PlayedAt = replay.UploadedAt
	}

	names := identity.NewNameSet(append(append([]string(nil), cfg.KnownNames...), parseNames...)...)
	resolved := identity.Resolve(*rec, names)

	report.PrintRecordSummary(os.Stdout, resolved)
	report.PrintRecordSides(os.Stdout, resolved)
	if names.Len() == 0 {
		fmt.Fprintln(os.Stderr, "\nNo known names configured; pass --name to pick your side.")
	}
	return nil
}
