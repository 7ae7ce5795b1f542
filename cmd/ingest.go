package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pable/go-showdown-tracker/internal/fetch"
	"github.com/pable/go-showdown-tracker/internal/model"
	"github.com/pable/go-showdown-tracker/internal/storage"
)

var (
	cMuted = color.New(color.Faint)
	cError = color.New(color.FgRed, color.Bold)
	cWarn  = color.New(color.FgYellow)
	cOK    = color.New(color.FgGreen)
	cWin   = color.New(color.FgGreen, color.Bold)
	cLoss  = color.New(color.FgRed)
)

// ingest command flags.
var (
	// ingestLocal treats references as paths to local .log/.json files.
	ingestLocal bool
	// ingestNames adds account names to the configured known names.
	ingestNames []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <team> <ref> [ref...]",
	Short: "Fetch replays into a team's history",
	Long: `Registers each replay reference against the team, then downloads, parses and
classifies them in the background. A reference is a replay id, a replay page URL,
or a direct .json/.log URL.

Examples:
  sdtrack ingest "Rain Reg G" gen9vgc2024regg-2134917355 gen9vgc2024regg-2134922876
  sdtrack ingest rain https://replay.pokemonshowdown.com/gen9vgc2024regg-2134917355?p2
  sdtrack ingest rain --local ./saved/*.log`,
	Args: cobra.MinimumNArgs(2),
	RunE: runIngest,
}

var retryCmd = &cobra.Command{
	Use:   "retry <team> <ref>",
	Short: "Re-run fetch and parse for one replay",
	Args:  cobra.ExactArgs(2),
	RunE:  runRetry,
}

func init() {
	for _, c := range []*cobra.Command{ingestCmd, retryCmd} {
		c.Flags().BoolVar(&ingestLocal, "local", false, "references are local file paths")
		c.Flags().StringSliceVar(&ingestNames, "name", nil, "extra account names that identify you")
	}
}

func runIngest(cmd *cobra.Command, args []string) error {
	return doIngest(args[0], args[1:], false)
}

func runRetry(cmd *cobra.Command, args []string) error {
	return doIngest(args[0], args[1:], true)
}

// doIngest is the shared implementation for ingest and retry.
func doIngest(teamQuery string, refs []string, retry bool) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	team, err := storage.FindTeam(db, teamQuery)
	if err != nil {
		return err
	}
	names := append(append([]string(nil), cfg.KnownNames...), ingestNames...)
	if len(names) == 0 {
		cWarn.Fprintln(os.Stderr, "no known_names configured; every replay will resolve as unknown")
	}

	var fetcher fetch.Fetcher = fetch.NewClient(cfg.ReplayBaseURL, cfg.TimeoutDuration())
	if ingestLocal {
		fetcher = fetch.FileFetcher{}
	}

	o := fetch.New(fetcher, db, fetch.Config{
		Concurrency: cfg.Concurrency,
		Pacing:      cfg.PacingDuration(),
		Timeout:     cfg.TimeoutDuration(),
		KnownNames:  names,
		TeamID:      team.ID,
	}, printEvent, fetch.WithLogger(slog.Default()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	var b *fetch.Batch
	if retry {
		b, err = o.Retry(ctx, refs[0])
	} else {
		b, err = o.Start(ctx, refs)
	}
	if err != nil {
		return err
	}
	last := b.Wait()

	var parsed, failed []string
	for ref, ev := range last {
		switch ev.State {
		case model.StateParsed:
			parsed = append(parsed, ref)
		case model.StateFailed:
			failed = append(failed, ref)
		}
	}
	sort.Strings(failed)

	fmt.Println()
	fmt.Printf("Team %s: %d parsed, %d failed\n", team.Name, len(parsed), len(failed))
	for _, ref := range failed {
		cMuted.Printf("  sdtrack retry %q %s\n", team.Name, ref)
	}
	return nil
}

// printEvent is the orchestrator observer for terminal output.
func printEvent(ev fetch.Event) {
	switch ev.State {
	case model.StateRegistered:
		cMuted.Printf("  [queued]  %s\n", ev.Ref)
	case model.StateFetching:
		cMuted.Printf("  [fetch]   %s\n", ev.Ref)
	case model.StateFailed:
		cError.Printf("  [failed]  %s: %v\n", ev.Ref, ev.Err)
	case model.StateParsed:
		rec := ev.Entry.Record
		cOK.Printf("  [parsed]  %s  ", ev.Ref)
		fmt.Printf("vs %-20s ", rec.OpponentLabel)
		switch rec.Result {
		case model.ResultWin:
			cWin.Println("W")
		case model.ResultLoss:
			cLoss.Println("L")
		default:
			cWarn.Println("? (could not tell which side was yours)")
		}
	}
}
