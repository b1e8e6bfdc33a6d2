package cli

import (
	"fmt"

	"github.com/javanhut/gam/internal/colors"
	"github.com/javanhut/gam/internal/repository"
	"github.com/javanhut/gam/internal/snapshot"
	"github.com/spf13/cobra"
)

var snapshotCmd = &cobra.Command{
	Use:     "snapshot",
	Aliases: []string{"snap"},
	Short:   "Save, inspect and delete snapshots",
}

var snapshotSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Snapshot the save directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		message, _ := cmd.Flags().GetString("message")
		description, _ := cmd.Flags().GetString("description")
		timeline, _ := cmd.Flags().GetString("timeline")

		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		snap, err := repo.Save(repository.SaveOptions{Timeline: timeline, Name: message, Description: description})
		if err != nil {
			return err
		}
		if snap == nil {
			fmt.Println(colors.InfoText("Nothing to save: the save directory has no tracked files"))
			return nil
		}

		fmt.Printf("%s %s on %s\n", colors.SuccessText("Saved snapshot"), colors.Yellow(snap.ShortID()), colors.Bold(snap.Timeline))
		fmt.Printf("  %s, %s\n", pluralize(len(snap.Files), "file"), formatSize(snap.Size))
		if snap.Parent != "" {
			fmt.Printf("  parent %s\n", snapshot.ShortID(snap.Parent))
		}
		return nil
	},
}

var snapshotListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List snapshots on a timeline",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		timeline, _ := cmd.Flags().GetString("timeline")
		all, _ := cmd.Flags().GetBool("all")

		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		if timeline == "" && !all {
			if timeline, err = repo.CurrentTimeline(); err != nil {
				return err
			}
		}
		if all {
			timeline = ""
		}

		snaps, err := repo.ListSnapshots(timeline)
		if err != nil {
			return err
		}
		if len(snaps) == 0 {
			fmt.Println("No snapshots")
			return nil
		}
		head, _ := repo.Refs().HeadSnapshot()
		for _, s := range snaps {
			names, err := repo.TagsFor(s.ID)
			if err != nil {
				return err
			}
			printSnapshotLine(s, names, s.ID == head)
		}
		return nil
	},
}

var snapshotInfoCmd = &cobra.Command{
	Use:   "info <snapshot>",
	Short: "Show a snapshot and its files",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		s, err := repo.ResolveSnapshot(args[0])
		if err != nil {
			return err
		}
		names, err := repo.TagsFor(s.ID)
		if err != nil {
			return err
		}

		fmt.Printf("%s %s\n", colors.SectionHeader("Snapshot"), colors.Yellow(s.ID))
		fmt.Printf("Name:        %s\n", s.Name)
		if s.Description != "" {
			fmt.Printf("Description: %s\n", s.Description)
		}
		fmt.Printf("Timeline:    %s\n", s.Timeline)
		if s.Parent != "" {
			fmt.Printf("Parent:      %s\n", s.Parent)
		}
		fmt.Printf("Created:     %s\n", formatTime(s))
		fmt.Printf("Size:        %s in %s\n", formatSize(s.Size), pluralize(len(s.Files), "file"))
		fmt.Printf("Compression: %s\n", s.Compression)
		if len(names) > 0 {
			fmt.Printf("Tags:        %v\n", names)
		}
		fmt.Println()
		for _, f := range s.Files {
			stored := ""
			if f.CompressedSize != nil {
				stored = fmt.Sprintf(" (%s stored)", formatSize(*f.CompressedSize))
			}
			fmt.Printf("  %s  %10s%s  %s\n", colors.Gray(f.Digest.Short()), formatSize(f.Size), stored, f.Path)
		}
		return nil
	},
}

var snapshotDeleteCmd = &cobra.Command{
	Use:     "delete <snapshot>",
	Aliases: []string{"rm"},
	Short:   "Delete a snapshot's metadata (blobs are reclaimed by gc)",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")

		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		s, err := repo.ResolveSnapshot(args[0])
		if err != nil {
			return err
		}
		referenced, err := repo.Refs().IsSnapshotReferenced(s.ID)
		if err != nil {
			return err
		}
		if !force {
			question := fmt.Sprintf("Delete snapshot %s (%s)?", s.ShortID(), s.Name)
			if referenced {
				question = fmt.Sprintf("Snapshot %s is a timeline head or HEAD. Delete it anyway?", s.ShortID())
			}
			if !confirm(question) {
				fmt.Println("Aborted")
				return nil
			}
		}

		if _, err := repo.DeleteSnapshot(s.ID, true); err != nil {
			return err
		}
		fmt.Printf("%s %s\n", colors.SuccessText("Deleted snapshot"), s.ShortID())
		fmt.Println(colors.Dim("Run 'gam gc' to reclaim its content."))
		return nil
	},
}

var snapshotTagCmd = &cobra.Command{
	Use:   "tag <snapshot> <name>",
	Short: "Bookmark a snapshot under a name",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		s, err := repo.AddTag(args[1], args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Tagged %s as %s\n", colors.Yellow(s.ShortID()), colors.Cyan(args[1]))
		return nil
	},
}

var snapshotUntagCmd = &cobra.Command{
	Use:   "untag <name>",
	Short: "Remove a tag",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		if err := repo.RemoveTag(args[0]); err != nil {
			return err
		}
		fmt.Printf("Removed tag %s\n", args[0])
		return nil
	},
}

var snapshotTagsCmd = &cobra.Command{
	Use:   "tags",
	Short: "List tags",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repo, err := openRepo()
		if err != nil {
			return err
		}
		defer repo.Close()

		all, err := repo.Tags()
		if err != nil {
			return err
		}
		if len(all) == 0 {
			fmt.Println("No tags")
			return nil
		}
		for _, t := range all {
			fmt.Printf("  %-20s %s\n", colors.Cyan(t.Name), colors.Yellow(snapshot.ShortID(t.Snapshot)))
		}
		return nil
	},
}

func init() {
	snapshotSaveCmd.Flags().StringP("message", "m", "", "snapshot name")
	snapshotSaveCmd.Flags().StringP("description", "d", "", "longer description")
	snapshotSaveCmd.Flags().StringP("timeline", "t", "", "timeline to save on (default: current)")

	snapshotListCmd.Flags().StringP("timeline", "t", "", "timeline to list (default: current)")
	snapshotListCmd.Flags().BoolP("all", "a", false, "list snapshots of every timeline")

	snapshotDeleteCmd.Flags().BoolP("force", "f", false, "delete without confirmation")
}
