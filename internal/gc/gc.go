// Package gc reclaims blobs no snapshot references and snapshots no
// timeline or detached HEAD references.
//
// The live set is always rebuilt by scanning snapshot metadata. The advisory
// reference counts in the content index are never consulted.
package gc

import (
	"fmt"
	"log/slog"

	"github.com/javanhut/gam/internal/cas"
	"github.com/javanhut/gam/internal/snapshot"
)

// ContentStore is the part of the blob store the collector sweeps.
type ContentStore interface {
	Walk(fn func(hash cas.Hash, size int64) error) error
	Remove(hash cas.Hash) error
	PruneEmptyDirs() (int, error)
}

// SnapshotStore is the part of the snapshot store the collector reads and
// sweeps.
type SnapshotStore interface {
	ListAll() ([]*snapshot.Snapshot, error)
	FileSize(id string) (int64, error)
	Delete(id string) error
}

// RefTracker reports which snapshots are reachable from refs.
type RefTracker interface {
	ReferencedSnapshots() (map[string]bool, error)
}

// Options selects what a run may delete.
type Options struct {
	// Aggressive also deletes unreferenced snapshots and prunes empty
	// content directories.
	Aggressive bool
	// DryRun measures without deleting anything.
	DryRun bool
}

// Report is the outcome of a run. Dry runs report exactly what a real run
// over the same state would.
type Report struct {
	DryRun     bool
	Aggressive bool

	OrphanedContent []cas.Hash
	ContentBytes    int64

	OrphanedSnapshots []string
	// SnapshotBytes is the on-disk size of the orphaned snapshot records.
	SnapshotBytes    int64
	SnapshotsRemoved bool

	PrunedDirs int
}

// TotalBytes is ContentBytes plus SnapshotBytes. Outside aggressive mode the
// snapshot share is counted even though those records stay on disk.
func (r *Report) TotalBytes() int64 {
	return r.ContentBytes + r.SnapshotBytes
}

// Collector runs mark-and-sweep over the three stores.
type Collector struct {
	content   ContentStore
	snapshots SnapshotStore
	refs      RefTracker
	log       *slog.Logger
}

// New returns a collector. A nil logger discards output.
func New(content ContentStore, snapshots SnapshotStore, refs RefTracker, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Collector{content: content, snapshots: snapshots, refs: refs, log: logger}
}

// Run performs one collection.
func (c *Collector) Run(opts Options) (*Report, error) {
	report := &Report{DryRun: opts.DryRun, Aggressive: opts.Aggressive}

	// Refs are read before anything is swept so a broken HEAD stops the
	// run with nothing deleted.
	referenced, err := c.refs.ReferencedSnapshots()
	if err != nil {
		return nil, fmt.Errorf("read refs: %w", err)
	}

	all, err := c.snapshots.ListAll()
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}

	live := make(map[cas.Hash]struct{})
	for _, snap := range all {
		for _, f := range snap.Files {
			live[f.Digest] = struct{}{}
		}
	}

	err = c.content.Walk(func(hash cas.Hash, size int64) error {
		if _, ok := live[hash]; ok {
			return nil
		}
		report.OrphanedContent = append(report.OrphanedContent, hash)
		report.ContentBytes += size
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan content: %w", err)
	}

	if !opts.DryRun {
		for _, hash := range report.OrphanedContent {
			if err := c.content.Remove(hash); err != nil {
				return report, err
			}
		}
	}
	c.log.Debug("content swept", "orphans", len(report.OrphanedContent), "bytes", report.ContentBytes, "dry_run", opts.DryRun)

	for _, snap := range all {
		if referenced[snap.ID] {
			continue
		}
		size, err := c.snapshots.FileSize(snap.ID)
		if err != nil {
			return report, err
		}
		report.OrphanedSnapshots = append(report.OrphanedSnapshots, snap.ID)
		report.SnapshotBytes += size
	}

	if opts.Aggressive && !opts.DryRun {
		for _, id := range report.OrphanedSnapshots {
			if err := c.snapshots.Delete(id); err != nil {
				return report, err
			}
		}
		report.SnapshotsRemoved = true

		pruned, err := c.content.PruneEmptyDirs()
		if err != nil {
			return report, err
		}
		report.PrunedDirs = pruned
	}
	c.log.Debug("snapshots swept", "orphans", len(report.OrphanedSnapshots), "removed", report.SnapshotsRemoved)

	return report, nil
}
