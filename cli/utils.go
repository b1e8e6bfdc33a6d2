package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/javanhut/gam/internal/colors"
	"github.com/javanhut/gam/internal/repository"
	"github.com/javanhut/gam/internal/snapshot"
	"golang.org/x/term"
)

// openRepo opens the repository selected by --path and applies its color
// setting. The caller must Close it.
func openRepo() (*repository.Repository, error) {
	repo, err := repository.Open(repoPath, repository.Options{Logger: logger})
	if err != nil {
		return nil, err
	}
	if !repo.Config().Color.UI {
		colors.SetColorEnabled(false)
	}
	return repo, nil
}

// confirm asks a yes/no question on the terminal. Without a terminal on
// stdin it answers no, so destructive commands need --force in scripts.
func confirm(question string) bool {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintln(os.Stderr, "stdin is not a terminal; pass --force to skip confirmation")
		return false
	}
	fmt.Printf("%s (y/n): ", question)
	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}

func formatSize(n int64) string {
	if n < 0 {
		return "-" + humanize.IBytes(uint64(-n))
	}
	return humanize.IBytes(uint64(n))
}

func formatDelta(n int64) string {
	if n > 0 {
		return "+" + formatSize(n)
	}
	return formatSize(n)
}

func formatTime(s *snapshot.Snapshot) string {
	return s.Timestamp.Local().Format("2006-01-02 15:04:05")
}

// printSnapshotLine writes the one-line summary used by list and history.
func printSnapshotLine(s *snapshot.Snapshot, tagNames []string, isHead bool) {
	marker := "  "
	if isHead {
		marker = colors.Green("* ")
	}
	line := fmt.Sprintf("%s%s  %s  %-24s %4d files  %s",
		marker, colors.Yellow(s.ShortID()), formatTime(s), s.Name, len(s.Files), formatSize(s.Size))
	if len(tagNames) > 0 {
		line += "  " + colors.Cyan("("+strings.Join(tagNames, ", ")+")")
	}
	fmt.Println(line)
}

func pluralize(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
