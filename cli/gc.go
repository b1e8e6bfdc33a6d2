package cli

import (
	"fmt"

	"github.com/javanhut/gam/internal/colors"
	"github.com/javanhut/gam/internal/gc"
	"github.com/spf13/cobra"
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove content no snapshot uses",
	Long: `Deletes stored file content that no snapshot references.

With --aggressive, snapshots that no timeline and no detached HEAD point at
are deleted as well, and empty content directories are pruned.

Examples:
  gam gc --dry-run             # Report what would be removed
  gam gc                       # Remove orphaned content
  gam gc --aggressive          # Also remove unreferenced snapshots`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

var (
	gcAggressive bool
	gcDryRun     bool
)

func init() {
	gcCmd.Flags().BoolVar(&gcAggressive, "aggressive", false, "Also delete unreferenced snapshots")
	gcCmd.Flags().BoolVar(&gcDryRun, "dry-run", false, "Show what would be removed without deleting")
}

func runGC(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	report, err := repo.GC(gc.Options{Aggressive: gcAggressive, DryRun: gcDryRun})
	if err != nil {
		return err
	}

	verb := "Removed"
	if report.DryRun {
		verb = "Would remove"
		fmt.Println(colors.WarningText("Dry run: nothing was deleted"))
	}

	fmt.Printf("%s %s (%s)\n", verb, pluralize(len(report.OrphanedContent), "orphaned blob"), formatSize(report.ContentBytes))
	if len(report.OrphanedSnapshots) > 0 {
		if report.Aggressive {
			fmt.Printf("%s %s (%s)\n", verb, pluralize(len(report.OrphanedSnapshots), "unreferenced snapshot"), formatSize(report.SnapshotBytes))
		} else {
			fmt.Printf("Found %s (%s); run with --aggressive to remove them\n",
				pluralize(len(report.OrphanedSnapshots), "unreferenced snapshot"), formatSize(report.SnapshotBytes))
		}
		if verbose {
			for _, id := range report.OrphanedSnapshots {
				fmt.Printf("  %s\n", colors.Gray(id))
			}
		}
	}
	if report.PrunedDirs > 0 {
		fmt.Printf("Pruned %s\n", pluralize(report.PrunedDirs, "empty directory"))
	}
	fmt.Printf("Total: %s\n", colors.Bold(formatSize(report.TotalBytes())))
	return nil
}
