package cli

import (
	"fmt"

	"github.com/javanhut/gam/internal/colors"
	"github.com/javanhut/gam/internal/snapshot"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the save directory status",
	Long:  `Shows the current timeline, the latest snapshot and files changed since it`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		st, err := repo.Status()
		if err != nil {
			return err
		}

		fmt.Printf("Save directory: %s\n", repo.WorkDir())
		if st.Head.Detached() {
			fmt.Printf("HEAD:           %s\n", colors.WarningText("detached at "+snapshot.ShortID(st.Head.Snapshot)))
		} else {
			fmt.Printf("Timeline:       %s (%s)\n", colors.Bold(st.Head.Timeline), pluralize(st.TimelineSnapshots, "snapshot"))
		}
		if st.MissingHead != "" {
			fmt.Printf("Latest:         %s\n", colors.ErrorText("snapshot "+snapshot.ShortID(st.MissingHead)+" is missing; run gam doctor"))
		} else if st.HeadSnapshot != nil {
			fmt.Printf("Latest:         %s %s (%s)\n", colors.Yellow(st.HeadSnapshot.ShortID()), st.HeadSnapshot.Name, formatTime(st.HeadSnapshot))
		} else {
			fmt.Printf("Latest:         %s\n", colors.Gray("(no snapshots yet)"))
		}
		fmt.Printf("Tracked:        %s, %s\n", pluralize(st.TrackedFiles, "file"), formatSize(st.TrackedBytes))
		fmt.Printf("Snapshots:      %d total\n", st.TotalSnapshots)
		if st.DedupSavings > 0 {
			fmt.Printf("Dedup savings:  %s\n", formatSize(st.DedupSavings))
		}
		fmt.Println()

		if !st.Changes.HasChanges() {
			fmt.Println(colors.SuccessText("No changes since the latest snapshot"))
			return nil
		}
		fmt.Println(colors.SectionHeader("Changes since the latest snapshot:"))
		for _, c := range st.Changes.Changes() {
			fmt.Printf("  %s %s\n", colors.ChangePrefix(c.Type.String()), c.Path)
		}
		return nil
	},
}
