package cli

import (
	"fmt"

	"github.com/javanhut/gam/internal/activity"
	"github.com/javanhut/gam/internal/colors"
	"github.com/javanhut/gam/internal/snapshot"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:     "history [options]",
	Aliases: []string{"log"},
	Short:   "Show snapshot history",
	Long: `Display the snapshots of the current timeline, newest first.

Examples:
  gam history                  # Show all snapshots on this timeline
  gam history --oneline        # Show concise one-line format
  gam history --limit 10       # Show only the last 10 snapshots
  gam history --all            # Show snapshots from all timelines`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

var activityCmd = &cobra.Command{
	Use:   "activity",
	Short: "Show the activity log",
	Long:  `Display recorded operations (saves, restores, timeline changes, gc), oldest first`,
	Args:  cobra.NoArgs,
	RunE:  runActivity,
}

var (
	historyOneline bool
	historyLimit   int
	historyAll     bool

	activityLimit    int
	activityTimeline string
)

func init() {
	historyCmd.Flags().BoolVar(&historyOneline, "oneline", false, "Show one line per snapshot")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 0, "Limit number of snapshots to show")
	historyCmd.Flags().BoolVar(&historyAll, "all", false, "Show snapshots from all timelines")

	activityCmd.Flags().IntVarP(&activityLimit, "limit", "n", 20, "Show the last n entries (0 for all)")
	activityCmd.Flags().StringVarP(&activityTimeline, "timeline", "t", "", "Only entries for this timeline")
}

func runHistory(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	var snaps []*snapshot.Snapshot
	if historyAll {
		snaps, err = repo.ListSnapshots("")
	} else {
		snaps, err = repo.History()
	}
	if err != nil {
		return err
	}

	if len(snaps) == 0 {
		fmt.Println("No snapshots yet.")
		return nil
	}
	if historyLimit > 0 && len(snaps) > historyLimit {
		snaps = snaps[:historyLimit]
	}

	head, _ := repo.Refs().HeadSnapshot()
	for i, s := range snaps {
		names, err := repo.TagsFor(s.ID)
		if err != nil {
			return err
		}
		if historyOneline {
			printSnapshotLine(s, names, s.ID == head)
			continue
		}
		displaySnapshotFull(s, names, s.ID == head)
		if i < len(snaps)-1 {
			fmt.Println()
		}
	}
	return nil
}

// displaySnapshotFull displays a snapshot in full format
func displaySnapshotFull(s *snapshot.Snapshot, tagNames []string, isHead bool) {
	header := fmt.Sprintf("%s %s", colors.Yellow("snapshot"), colors.Yellow(s.ID))
	if isHead {
		header += " " + colors.Green("(HEAD)")
	}
	for _, name := range tagNames {
		header += " " + colors.Cyan("tag: "+name)
	}
	fmt.Println(header)
	fmt.Printf("Timeline: %s\n", s.Timeline)
	fmt.Printf("Date:     %s\n", formatTime(s))
	fmt.Printf("Files:    %s, %s\n", pluralize(len(s.Files), "file"), formatSize(s.Size))
	fmt.Println()
	fmt.Printf("    %s\n", s.Name)
	if s.Description != "" {
		fmt.Printf("    %s\n", s.Description)
	}
}

func runActivity(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	var entries []activity.Entry
	if activityTimeline != "" {
		entries, err = repo.Activity().ByTimeline(activityTimeline, activityLimit)
	} else {
		entries, err = repo.Activity().Entries(activityLimit)
	}
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No activity recorded.")
		return nil
	}

	for _, e := range entries {
		line := fmt.Sprintf("%s  %-16s", colors.Gray(e.Timestamp.Local().Format("2006-01-02 15:04:05")), colors.Bold(e.Action.Label()))
		if e.Timeline != "" {
			line += " " + colors.Cyan(e.Timeline)
		}
		if e.Target != "" {
			line += " " + e.Target
		}
		if e.Source != "" {
			line += colors.Dim(" (from " + e.Source + ")")
		}
		fmt.Println(line)
	}
	return nil
}
