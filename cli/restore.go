package cli

import (
	"fmt"

	"github.com/javanhut/gam/internal/colors"
	"github.com/spf13/cobra"
)

var restoreCmd = &cobra.Command{
	Use:   "restore <snapshot>",
	Short: "Write a snapshot's files into the save directory",
	Long: `Copies every file of the snapshot over the save directory. Files that are
not part of the snapshot are left alone. The snapshot can be an id, an id
prefix or refs/tags/<name>.`,
	Args: cobra.ExactArgs(1),
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
		if !force {
			question := fmt.Sprintf("Overwrite %s with snapshot %s (%s)?", pluralize(len(s.Files), "file"), s.ShortID(), s.Name)
			if !confirm(question) {
				fmt.Println("Aborted")
				return nil
			}
		}

		res, err := repo.Restore(s.ID)
		if err != nil {
			return err
		}
		fmt.Printf("%s %s (%s)\n", colors.SuccessText("Restored"), colors.Yellow(s.ShortID()), pluralize(res.Files, "file"))
		if res.HeadMoved {
			fmt.Printf("HEAD moved to %s\n", s.ShortID())
		}
		return nil
	},
}

func init() {
	restoreCmd.Flags().BoolP("force", "f", false, "restore without confirmation")
}
