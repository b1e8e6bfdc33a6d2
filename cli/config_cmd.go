package cli

import (
	"fmt"
	"strings"

	"github.com/javanhut/gam/internal/colors"
	"github.com/javanhut/gam/internal/config"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Get and set configuration options",
	Long: `Get and set repository configuration stored in .gam/config.

Keys:
  core.game_path          directory being versioned
  core.default_timeline   timeline created by init and used by doctor --fix
  core.use_gamignore      apply .gam/.gamignore (true/false)
  storage.strategy        "deduplication" or "compression" (zstd)
  color.ui                colored output (true/false)

Examples:
  gam config --list
  gam config storage.strategy
  gam config storage.strategy compression`,
	Args: cobra.MaximumNArgs(2),
	RunE: runConfig,
}

var configList bool

func init() {
	configCmd.Flags().BoolVar(&configList, "list", false, "List all configuration")
}

func runConfig(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	switch {
	case configList || len(args) == 0:
		return listConfig(repo.Config())
	case len(args) == 1:
		value, err := repo.Config().GetValue(args[0])
		if err != nil {
			return err
		}
		if value == "" {
			fmt.Printf("%s is %s\n", args[0], colors.Gray("(not set)"))
			return nil
		}
		fmt.Println(value)
		return nil
	default:
		if err := repo.SetConfig(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("%s %s = %s\n", colors.SuccessText("Set"), colors.Bold(args[0]), colors.InfoText(args[1]))
		return nil
	}
}

func listConfig(cfg *config.Config) error {
	section := ""
	for _, key := range config.Keys() {
		prefix, _, _ := strings.Cut(key, ".")
		if prefix != section {
			if section != "" {
				fmt.Println()
			}
			fmt.Println(colors.SectionHeader("[" + prefix + "]"))
			section = prefix
		}
		value, err := cfg.GetValue(key)
		if err != nil {
			return err
		}
		if value == "" {
			value = colors.Gray("(not set)")
		} else {
			value = colors.InfoText(value)
		}
		fmt.Printf("  %s = %s\n", key, value)
	}
	return nil
}
