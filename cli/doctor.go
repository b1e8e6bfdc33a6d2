package cli

import (
	"fmt"

	"github.com/javanhut/gam/internal/colors"
	"github.com/javanhut/gam/internal/repository"
	"github.com/spf13/cobra"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check repository health",
	Long: `Inspects the .gam directory for missing directories, a broken HEAD and
timelines that point at missing snapshots. With --fix, repairable problems
are repaired.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		fix, _ := cmd.Flags().GetBool("fix")

		checks, err := repository.Doctor(repoPath, fix)
		if err != nil {
			return err
		}

		problems := 0
		for _, c := range checks {
			switch {
			case c.OK:
				fmt.Printf("%s %s\n", colors.Green("✓"), c.Name)
			case c.Fixed:
				fmt.Printf("%s %s: %s %s\n", colors.Yellow("✓"), c.Name, c.Problem, colors.Green("(fixed)"))
			default:
				problems++
				fmt.Printf("%s %s: %s\n", colors.Red("✗"), c.Name, c.Problem)
			}
		}

		fmt.Println()
		if problems == 0 {
			fmt.Println(colors.SuccessText("No problems found"))
			return nil
		}
		if !fix {
			return fmt.Errorf("%s found; run gam doctor --fix to repair what can be repaired", pluralize(problems, "problem"))
		}
		return fmt.Errorf("%s could not be repaired", pluralize(problems, "problem"))
	},
}

func init() {
	doctorCmd.Flags().Bool("fix", false, "repair problems where possible")
}
