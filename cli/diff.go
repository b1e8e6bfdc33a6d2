package cli

import (
	"errors"
	"fmt"

	"github.com/javanhut/gam/internal/colors"
	"github.com/javanhut/gam/internal/diff"
	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff [<snapshot>] [<snapshot>]",
	Short: "Show differences between snapshots or the save directory",
	Long: `Show which files were added, modified or deleted.

Examples:
  gam diff                     # save directory vs HEAD's snapshot
  gam diff <snap>              # <snap> vs HEAD's snapshot
  gam diff <snap1> <snap2>     # between two snapshots
  gam diff --stat a1b2 c3d4    # counts only`,
	Args: cobra.MaximumNArgs(2),
	RunE: runDiff,
}

var diffStat bool

func init() {
	diffCmd.Flags().BoolVar(&diffStat, "stat", false, "Show only statistics")
}

func runDiff(cmd *cobra.Command, args []string) error {
	repo, err := openRepo()
	if err != nil {
		return err
	}
	defer repo.Close()

	var result *diff.Result
	switch len(args) {
	case 0:
		st, err := repo.Status()
		if err != nil {
			return err
		}
		result = st.Changes
		fmt.Println(colors.SectionHeader("Save directory vs HEAD"))
	case 1:
		head, err := repo.Refs().HeadSnapshot()
		if err != nil {
			return err
		}
		if head == "" {
			return errors.New("HEAD has no snapshot to compare against")
		}
		cmp, err := repo.Diff(args[0], head)
		if err != nil {
			return err
		}
		result = cmp.Result
		fmt.Println(colors.SectionHeader(fmt.Sprintf("%s vs HEAD (%s)", cmp.From.ShortID(), cmp.To.ShortID())))
	default:
		cmp, err := repo.Diff(args[0], args[1])
		if err != nil {
			return err
		}
		result = cmp.Result
		fmt.Println(colors.SectionHeader(fmt.Sprintf("%s (%s) -> %s (%s)", cmp.From.ShortID(), cmp.From.Name, cmp.To.ShortID(), cmp.To.Name)))
	}

	if !diffStat {
		for _, c := range result.Changes() {
			line := fmt.Sprintf("%s %s", colors.ChangePrefix(c.Type.String()), c.Path)
			if d := c.SizeDelta(); d != 0 {
				line += colors.Dim(" (" + formatDelta(d) + ")")
			}
			fmt.Println(line)
		}
		if result.HasChanges() {
			fmt.Println()
		}
	}

	fmt.Printf("%s, %s, %s, %d unchanged\n",
		colors.Added(fmt.Sprintf("%d added", len(result.Added))),
		colors.Modified(fmt.Sprintf("%d modified", len(result.Modified))),
		colors.Deleted(fmt.Sprintf("%d deleted", len(result.Deleted))),
		len(result.Unchanged))
	fmt.Printf("Size: %s -> %s (%s)\n", formatSize(result.OldSize), formatSize(result.NewSize), formatDelta(result.SizeDelta()))
	return nil
}
