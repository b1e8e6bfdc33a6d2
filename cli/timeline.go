package cli

import (
	"fmt"

	"github.com/javanhut/gam/internal/colors"
	"github.com/javanhut/gam/internal/snapshot"
	"github.com/spf13/cobra"
)

var timelineCmd = &cobra.Command{
	Use:     "timeline",
	Aliases: []string{"tl"},
	Short:   "Manage timelines",
	Long:    `Create, list, switch, rename and remove timelines`,
}

var createTimelineCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a new timeline",
	Long:  "Creates a timeline starting at --from, or at HEAD's snapshot when omitted. HEAD is not moved.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		from, _ := cmd.Flags().GetString("from")
		description, _ := cmd.Flags().GetString("description")

		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		tl, err := repo.CreateTimeline(args[0], from, description)
		if err != nil {
			return err
		}
		fmt.Printf("Created timeline %s", colors.Bold(tl.Name))
		if tl.Head != "" {
			fmt.Printf(" at %s", colors.Yellow(snapshot.ShortID(tl.Head)))
		}
		fmt.Println()
		return nil
	},
}

var listTimelineCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all timelines",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		timelines, err := repo.Timelines()
		if err != nil {
			return err
		}
		current, _ := repo.CurrentTimeline()

		for _, tl := range timelines {
			marker := "  "
			name := tl.Name
			if tl.Name == current {
				marker = colors.Green("* ")
				name = colors.Green(tl.Name)
			}
			head := colors.Gray("(empty)")
			if tl.Head != "" {
				head = colors.Yellow(snapshot.ShortID(tl.Head))
			}
			fmt.Printf("%s%-20s %s", marker, name, head)
			if tl.Description != "" {
				fmt.Printf("  %s", colors.Dim(tl.Description))
			}
			fmt.Println()
		}
		if current == "" {
			fmt.Println(colors.WarningText("HEAD is detached"))
		}
		return nil
	},
}

var switchTimelineCmd = &cobra.Command{
	Use:   "switch <timeline|snapshot>",
	Short: "Point HEAD at a timeline, or detach it at a snapshot",
	Long:  "Moves HEAD only. Use 'gam restore' to write a snapshot's files into the save directory.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		res, err := repo.Switch(args[0])
		if err != nil {
			return err
		}
		if res.Timeline != "" {
			fmt.Printf("Switched to timeline %s\n", colors.Bold(res.Timeline))
			return nil
		}
		fmt.Printf("HEAD detached at %s (%s)\n", colors.Yellow(res.Snapshot.ShortID()), res.Snapshot.Name)
		return nil
	},
}

var renameTimelineCmd = &cobra.Command{
	Use:   "rename <old> <new>",
	Short: "Rename a timeline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		if err := repo.RenameTimeline(args[0], args[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed timeline %s to %s\n", args[0], colors.Bold(args[1]))
		return nil
	},
}

var removeTimelineCmd = &cobra.Command{
	Use:     "delete <name>",
	Aliases: []string{"rm", "remove"},
	Short:   "Delete a timeline (its snapshots are kept until gc)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		if !force && !confirm(fmt.Sprintf("Delete timeline %s?", args[0])) {
			fmt.Println("Aborted")
			return nil
		}
		if err := repo.DeleteTimeline(args[0], force); err != nil {
			return err
		}
		fmt.Printf("Deleted timeline %s\n", args[0])
		return nil
	},
}

var currentTimelineCmd = &cobra.Command{
	Use:   "current",
	Short: "Print the current timeline",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		head, err := repo.Refs().ReadHead()
		if err != nil {
			return err
		}
		if head.Detached() {
			fmt.Printf("HEAD detached at %s\n", snapshot.ShortID(head.Snapshot))
			return nil
		}
		fmt.Println(head.Timeline)
		return nil
	},
}

func init() {
	createTimelineCmd.Flags().String("from", "", "snapshot to start the timeline at")
	createTimelineCmd.Flags().StringP("description", "d", "", "timeline description")
	removeTimelineCmd.Flags().BoolP("force", "f", false, "skip confirmation and allow deleting the current timeline")
}
