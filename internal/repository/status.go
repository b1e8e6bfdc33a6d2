package repository

import (
	"errors"

	"github.com/javanhut/gam/internal/diff"
	"github.com/javanhut/gam/internal/refs"
	"github.com/javanhut/gam/internal/snapshot"
	"github.com/javanhut/gam/internal/workspace"
)

// Status summarizes the repository and the tracked directory.
type Status struct {
	Head refs.Head
	// HeadSnapshot is nil when HEAD's timeline has no snapshots yet.
	HeadSnapshot *snapshot.Snapshot
	// MissingHead is the id HEAD resolves to when that snapshot has been
	// deleted. Changes are then reported against an empty base.
	MissingHead string
	// TimelineSnapshots counts snapshots on the attached timeline, or all
	// snapshots when HEAD is detached.
	TimelineSnapshots int
	TotalSnapshots    int

	TrackedFiles int
	TrackedBytes int64
	DedupSavings int64

	// Changes compares the tracked directory against HeadSnapshot.
	Changes *diff.Result
}

// Status hashes the tracked directory and compares it against HEAD's
// snapshot. Nothing is written to the content store.
func (r *Repository) Status() (*Status, error) {
	head, err := r.refs.ReadHead()
	if err != nil {
		return nil, err
	}
	st := &Status{Head: head}

	headID, err := r.refs.HeadSnapshot()
	if err != nil {
		return nil, err
	}
	var base []snapshot.FileEntry
	if headID != "" {
		snap, err := r.snapshots.Get(headID)
		switch {
		case err == nil:
			st.HeadSnapshot = snap
			base = snap.Files
		case errors.Is(err, snapshot.ErrNotFound):
			r.log.Warn("head snapshot missing", "id", headID)
			st.MissingHead = headID
		default:
			return nil, err
		}
	}

	all, err := r.snapshots.ListAll()
	if err != nil {
		return nil, err
	}
	st.TotalSnapshots = len(all)
	if head.Detached() {
		st.TimelineSnapshots = len(all)
	} else {
		for _, s := range all {
			if s.Timeline == head.Timeline {
				st.TimelineSnapshots++
			}
		}
	}

	files, err := r.scan()
	if err != nil {
		return nil, err
	}
	st.TrackedFiles = len(files)
	st.TrackedBytes = workspace.TotalSize(files)

	current, err := workspace.Fingerprint(files)
	if err != nil {
		return nil, err
	}
	st.Changes = diff.Files(base, current)

	if st.DedupSavings, err = r.content.DeduplicationSavings(); err != nil {
		return nil, err
	}
	return st, nil
}
