package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pable/go-showdown-tracker/internal/report"
	"github.com/pable/go-showdown-tracker/internal/storage"
)

var (
	cPrompt   = color.New(color.FgCyan, color.Bold)
	cCmd      = color.New(color.FgYellow, color.Bold)
	cGreeting = color.New(color.Bold)
)

var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive REPL session",
	Long:  "Open a persistent session against the database. Type 'help' for available commands.",
	Args:  cobra.NoArgs,
	RunE:  runShell,
}

func runShell(_ *cobra.Command, _ []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	cGreeting.Println("sdtrack shell")
	cMuted.Println("type 'help' or 'exit'")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		cPrompt.Print("sdtrack")
		cMuted.Print("> ")
		if !scanner.Scan() {
			fmt.Println()
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		cmd, rest, _ := strings.Cut(line, " ")
		arg := strings.Trim(strings.TrimSpace(rest), `"`)

		var err error
		switch cmd {
		case "exit", "quit":
			return nil
		case "help":
			shellHelp()
		case "teams":
			err = shellTeams(db)
		case "list", "matches", "stats", "show":
			if arg == "" {
				cError.Fprintf(os.Stderr, "usage: %s <%s>\n", cmd, shellArgName(cmd))
				continue
			}
			switch cmd {
			case "list":
				err = listReplays(os.Stdout, db, arg)
			case "matches":
				err = showMatches(os.Stdout, db, arg, cfg.SeriesWindowDuration())
			case "stats":
				err = showStats(os.Stdout, db, arg, cfg.TopLeads)
			case "show":
				err = showReplay(os.Stdout, db, arg)
			}
		default:
			cWarn.Fprintf(os.Stderr, "unknown command %q (type 'help')\n", cmd)
		}
		if err != nil {
			cError.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
	return nil
}

func shellArgName(cmd string) string {
	if cmd == "show" {
		return "ref"
	}
	return "team"
}

func shellHelp() {
	fmt.Println()
	type entry struct{ cmd, desc string }
	rows := []entry{
		{"teams", "list registered teams"},
		{"list <team>", "a team's replays and fetch state"},
		{"matches <team>", "regroup and show best-of-three series"},
		{"stats <team>", "usage, lead and tera statistics"},
		{"show <ref>", "one stored replay record"},
		{"help", "show this message"},
		{"exit / quit", "close the session"},
	}
	for _, r := range rows {
		fmt.Print("  ")
		cCmd.Printf("%-24s", r.cmd)
		fmt.Println(r.desc)
	}
	fmt.Println()
}

func shellTeams(db *storage.DB) error {
	teams, err := storage.ListTeams(db)
	if err != nil {
		return err
	}
	if len(teams) == 0 {
		cMuted.Println("No teams yet.")
		return nil
	}
	report.PrintTeamTable(os.Stdout, teams)
	return nil
}
