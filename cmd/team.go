package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/pable/go-showdown-tracker/internal/model"
	"github.com/pable/go-showdown-tracker/internal/report"
	"github.com/pable/go-showdown-tracker/internal/storage"
)

var teamRoster []string

var teamCmd = &cobra.Command{
	Use:   "team",
	Short: "Manage teams",
	Long:  "A team is a named roster. Replays are ingested into a team's history and stats are computed against its roster.",
}

var teamAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Register a team",
	Example: `  sdtrack team add "Rain Reg G" --roster Pelipper,Archaludon,Urshifu-Rapid-Strike,Amoonguss,Rillaboom,Incineroar`,
	Args: cobra.ExactArgs(1),
	RunE: runTeamAdd,
}

var teamListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered teams",
	Args:  cobra.NoArgs,
	RunE:  runTeamList,
}

func init() {
	teamAddCmd.Flags().StringSliceVar(&teamRoster, "roster", nil, "comma-separated species on the team (required)")
	_ = teamAddCmd.MarkFlagRequired("roster")

	teamCmd.AddCommand(teamAddCmd)
	teamCmd.AddCommand(teamListCmd)
}

func runTeamAdd(cmd *cobra.Command, args []string) error {
	db, err := openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	var roster []string
	for _, s := range teamRoster {
		if s = strings.TrimSpace(s); s != "" {
			roster = append(roster, s)
		}
	}
	if len(roster) == 0 {
		return fmt.Errorf("roster is empty")
	}

	team := model.Team{
		ID:        uuid.NewString(),
		Name:      strings.TrimSpace(args[0]),
		Roster:    roster,
		CreatedAt: time.Now().UTC(),
	}
	if err := storage.SaveTeam(db, team); err != nil {
		return fmt.Errorf("save team: %w", err)
	}
	fmt.Fprintf(os.Stdout, "Team %q registered (id %s)\n", team.Name, team.ID[:8])
	return nil
}

func runTeamList(cmd *cobra.Command, args []string) error {
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
	report.PrintTeamTable(os.Stdout, teams)
	return nil
}
