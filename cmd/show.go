package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pable/go-showdown-tracker/internal/report"
	"github.com/pable/go-showdown-tracker/internal/storage"
)

var showCmd = &cobra.Command{
	Use:   "show <ref>",
	Short: "Show a stored replay record",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()
	return showReplay(os.Stdout, db, args[0])
}

func showReplay(w io.Writer, kv storage.KV, ref string) error {
	entry, ok, err := storage.LoadReplay(kv, ref)
	if err != nil {
		return fmt.Errorf("load replay: %w", err)
	}
	if !ok {
		fmt.Fprintf(w, "No replay stored under %q\n", ref)
		return nil
	}
	fmt.Fprintf(w, "State: %s", entry.State)
	if entry.Error != "" {
		fmt.Fprintf(w, "  |  Error: %s", entry.Error)
	}
	fmt.Fprintln(w)
	if entry.Record == nil {
		return nil
	}
	report.PrintRecordSummary(w, *entry.Record)
	report.PrintRecordSides(w, *entry.Record)
	return nil
}
