package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/javanhut/gam/internal/colors"
	"github.com/spf13/cobra"
)

var ignoreCmd = &cobra.Command{
	Use:   "ignore",
	Short: "Manage ignore patterns",
	Long: `Manage the patterns in .gam/.gamignore that keep files out of snapshots.

Pattern forms:
  *.log          glob matched against the file name and the full path
  /settings.ini  only at the top of the save directory
  cache/         a directory and everything below it
  **/backup/*    recursive glob
  !keep.log      negation; re-includes a previously ignored path

Without a .gamignore file a built-in set of defaults applies.`,
}

var ignoreInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create .gamignore with the default patterns",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		if err := repo.InitIgnoreFile(force); err != nil {
			if errors.Is(err, os.ErrExist) {
				return fmt.Errorf(".gamignore already exists; use --force to overwrite")
			}
			return err
		}
		fmt.Println(colors.SuccessText("Created .gamignore"))
		return nil
	},
}

var ignoreAddCmd = &cobra.Command{
	Use:   "add <pattern>...",
	Short: "Add ignore patterns",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		for _, p := range args {
			if err := repo.AddIgnorePattern(p); err != nil {
				return err
			}
			fmt.Printf("%s %s\n", colors.Added("+"), p)
		}
		return nil
	},
}

var ignoreRemoveCmd = &cobra.Command{
	Use:     "remove <pattern>...",
	Aliases: []string{"rm"},
	Short:   "Remove ignore patterns",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		for _, p := range args {
			removed, err := repo.RemoveIgnorePattern(p)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Printf("%s %s not found\n", colors.WarningText("!"), p)
				continue
			}
			fmt.Printf("%s %s\n", colors.Deleted("-"), p)
		}
		return nil
	},
}

var ignoreListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List active ignore patterns",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		engine, err := repo.IgnoreEngine()
		if err != nil {
			return err
		}
		if !repo.Config().Core.UseGamignore {
			fmt.Println(colors.WarningText("core.use_gamignore is false; no patterns apply"))
			return nil
		}
		if _, err := os.Stat(repo.IgnoreFilePath()); os.IsNotExist(err) {
			fmt.Println(colors.Gray("No .gamignore; using defaults"))
		}
		for _, p := range engine.Patterns() {
			fmt.Printf("  %-24s %s\n", p.String(), colors.Gray(p.Kind.String()))
		}
		return nil
	},
}

var ignoreCheckCmd = &cobra.Command{
	Use:   "check <path>...",
	Short: "Show whether paths would be ignored",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		for _, path := range args {
			ignored, matched, err := repo.CheckIgnored(path)
			if err != nil {
				return err
			}
			names := make([]string, 0, len(matched))
			for _, p := range matched {
				names = append(names, p.String())
			}
			if ignored {
				fmt.Printf("%s %s", colors.Deleted("ignored"), path)
			} else {
				fmt.Printf("%s %s", colors.Added("tracked"), path)
			}
			if len(names) > 0 {
				fmt.Print(colors.Dim(" (" + strings.Join(names, ", ") + ")"))
			}
			fmt.Println()
		}
		return nil
	},
}

func init() {
	ignoreInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing .gamignore")
}
