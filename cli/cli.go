package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/javanhut/gam/internal/logging"
	"github.com/javanhut/gam/internal/repository"
	"github.com/spf13/cobra"
)

var (
	repoPath string
	verbose  bool
	logger   = logging.Discard()
)

var rootCmd = &cobra.Command{
	Use:   "gam",
	Short: "gam is a version control system for game saves",
	Long: `gam snapshots a game's save directory into a local content-addressed
store so earlier saves can be restored, compared and branched into timelines.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		logger = logging.New(os.Stderr, level, logging.NewOpID()).With("command", cmd.CommandPath())
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a repository in the save directory",
	Long:  "Creates the .gam directory inside the directory given by --path (default: current directory) and starts the main timeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		repo, err := repository.Init(repoPath, force, repository.Options{Logger: logger})
		if err != nil {
			return err
		}
		defer repo.Close()

		current, _ := repo.CurrentTimeline()
		fmt.Printf("Initialized gam repository in %s\n", repo.GamDir())
		fmt.Printf("Tracking: %s\n", repo.WorkDir())
		fmt.Printf("Timeline: %s\n", current)
		return nil
	},
}

// Execute runs the root command and exits with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&repoPath, "path", "C", ".", "directory containing the .gam repository")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output to stderr")

	initCmd.Flags().BoolP("force", "f", false, "reinitialize an existing repository")
	rootCmd.AddCommand(initCmd)

	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.AddCommand(snapshotSaveCmd, snapshotListCmd, snapshotInfoCmd, snapshotDeleteCmd,
		snapshotTagCmd, snapshotUntagCmd, snapshotTagsCmd)

	rootCmd.AddCommand(timelineCmd)
	timelineCmd.AddCommand(createTimelineCmd, listTimelineCmd, switchTimelineCmd,
		renameTimelineCmd, removeTimelineCmd, currentTimelineCmd)

	rootCmd.AddCommand(restoreCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(activityCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diffCmd)
	rootCmd.AddCommand(gcCmd)

	rootCmd.AddCommand(ignoreCmd)
	ignoreCmd.AddCommand(ignoreInitCmd, ignoreAddCmd, ignoreRemoveCmd, ignoreListCmd, ignoreCheckCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(doctorCmd)
}
