// Package diff compares two file sets by path and content digest.
package diff

import (
	"slices"
	"strings"

	"github.com/javanhut/gam/internal/snapshot"
)

// ChangeType represents the type of change in a diff.
type ChangeType uint8

const (
	Unchanged ChangeType = iota
	Added
	Modified
	Deleted
)

func (c ChangeType) String() string {
	switch c {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Deleted:
		return "deleted"
	default:
		return "unchanged"
	}
}

// FileChange represents a change to a single file.
type FileChange struct {
	Type ChangeType
	Path string
	Old  *snapshot.FileEntry // nil for Added
	New  *snapshot.FileEntry // nil for Deleted
}

// SizeDelta is the change in logical size for this path.
func (c FileChange) SizeDelta() int64 {
	var d int64
	if c.New != nil {
		d += c.New.Size
	}
	if c.Old != nil {
		d -= c.Old.Size
	}
	return d
}

// Result classifies every path present in either side. Each list is sorted
// by path.
type Result struct {
	Added     []FileChange
	Deleted   []FileChange
	Modified  []FileChange
	Unchanged []FileChange

	OldSize int64
	NewSize int64
}

// SizeDelta is NewSize minus OldSize.
func (r *Result) SizeDelta() int64 { return r.NewSize - r.OldSize }

// HasChanges reports whether anything was added, deleted or modified.
func (r *Result) HasChanges() bool {
	return len(r.Added)+len(r.Deleted)+len(r.Modified) > 0
}

// Changes returns added, modified and deleted entries merged in path order.
func (r *Result) Changes() []FileChange {
	all := slices.Concat(r.Added, r.Modified, r.Deleted)
	slices.SortFunc(all, byPath)
	return all
}

// Paths extracts the paths from a change list.
func Paths(changes []FileChange) []string {
	out := make([]string, len(changes))
	for i, c := range changes {
		out[i] = c.Path
	}
	return out
}

// Files compares an old and a new file list.
func Files(oldFiles, newFiles []snapshot.FileEntry) *Result {
	r := &Result{}
	oldMap := make(map[string]*snapshot.FileEntry, len(oldFiles))
	for i := range oldFiles {
		oldMap[oldFiles[i].Path] = &oldFiles[i]
		r.OldSize += oldFiles[i].Size
	}

	seen := make(map[string]bool, len(newFiles))
	for i := range newFiles {
		nf := &newFiles[i]
		r.NewSize += nf.Size
		seen[nf.Path] = true

		of, ok := oldMap[nf.Path]
		switch {
		case !ok:
			r.Added = append(r.Added, FileChange{Type: Added, Path: nf.Path, New: nf})
		case of.Digest != nf.Digest:
			r.Modified = append(r.Modified, FileChange{Type: Modified, Path: nf.Path, Old: of, New: nf})
		default:
			r.Unchanged = append(r.Unchanged, FileChange{Type: Unchanged, Path: nf.Path, Old: of, New: nf})
		}
	}
	for i := range oldFiles {
		if !seen[oldFiles[i].Path] {
			r.Deleted = append(r.Deleted, FileChange{Type: Deleted, Path: oldFiles[i].Path, Old: &oldFiles[i]})
		}
	}

	for _, list := range [][]FileChange{r.Added, r.Deleted, r.Modified, r.Unchanged} {
		slices.SortFunc(list, byPath)
	}
	return r
}

// Snapshots compares two snapshots.
func Snapshots(oldSnap, newSnap *snapshot.Snapshot) *Result {
	return Files(oldSnap.Files, newSnap.Files)
}

func byPath(a, b FileChange) int { return strings.Compare(a.Path, b.Path) }
