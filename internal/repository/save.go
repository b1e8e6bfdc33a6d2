package repository

import (
	"fmt"

	"github.com/javanhut/gam/internal/activity"
	"github.com/javanhut/gam/internal/diff"
	"github.com/javanhut/gam/internal/refs"
	"github.com/javanhut/gam/internal/snapshot"
	"github.com/javanhut/gam/internal/tags"
	"github.com/javanhut/gam/internal/workspace"
)

// SaveOptions describes a snapshot to take.
type SaveOptions struct {
	// Timeline defaults to the timeline HEAD is attached to.
	Timeline string
	// Name defaults to "Snapshot <date time>".
	Name        string
	Description string
}

// Save records the tracked directory as a new snapshot on the resolved
// timeline and advances that timeline. When the directory holds no tracked
// files nothing is written and Save returns a nil snapshot.
func (r *Repository) Save(opts SaveOptions) (*snapshot.Snapshot, error) {
	timeline := opts.Timeline
	if timeline == "" {
		current, err := r.refs.Current()
		if err != nil {
			return nil, err
		}
		if current == "" {
			return nil, fmt.Errorf("%w: name a timeline to save on", refs.ErrDetachedHead)
		}
		timeline = current
	}
	tl, err := r.refs.Get(timeline)
	if err != nil {
		return nil, err
	}

	files, err := r.scan()
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", r.workDir, err)
	}
	if len(files) == 0 {
		r.log.Info("nothing to save", "path", r.workDir)
		return nil, nil
	}

	entries, err := workspace.NewMaterializer(r.content, r.workDir).Capture(files)
	if err != nil {
		return nil, err
	}

	compression := snapshot.CompressionNone
	for _, e := range entries {
		if e.CompressedSize != nil {
			compression = snapshot.CompressionZstd
			break
		}
	}

	name := opts.Name
	if name == "" {
		name = "Snapshot " + r.clock.Now().Format("2006-01-02 15:04")
	}

	snap, err := r.snapshots.Create(snapshot.CreateParams{
		Files:       entries,
		Timeline:    tl.Name,
		Parent:      tl.Head,
		Name:        name,
		Description: opts.Description,
		Compression: compression,
	})
	if err != nil {
		return nil, err
	}
	if err := r.refs.UpdateHead(tl.Name, snap.ID); err != nil {
		return nil, err
	}
	if err := r.activity.Record(activity.SnapshotSave, tl.Name, snap.ShortID(), ""); err != nil {
		return nil, err
	}
	r.log.Info("snapshot saved", "id", snap.ShortID(), "timeline", tl.Name, "files", len(snap.Files), "size", snap.Size)
	return snap, nil
}

// ResolveSnapshot finds a snapshot by full id, unambiguous id prefix, or a
// tag reference of the form refs/tags/<name>.
func (r *Repository) ResolveSnapshot(ref string) (*snapshot.Snapshot, error) {
	if name, ok := tags.ParseRef(ref); ok {
		ts, err := r.tags()
		if err != nil {
			return nil, err
		}
		id, found := ts.Get(name)
		if !found {
			return nil, fmt.Errorf("%w: %s", tags.ErrNotFound, name)
		}
		return r.snapshots.Get(id)
	}

	snap, err := r.snapshots.GetByPrefix(ref)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, fmt.Errorf("%w: %s", snapshot.ErrNotFound, ref)
	}
	return snap, nil
}

// RestoreResult reports what Restore did.
type RestoreResult struct {
	Snapshot *snapshot.Snapshot
	Files    int
	// HeadMoved is set when a detached HEAD was repointed at the snapshot.
	HeadMoved bool
}

// Restore copies every file of the snapshot into the tracked directory.
// Files not in the snapshot are left in place. An attached HEAD is not
// touched; a detached HEAD is moved to the restored snapshot.
func (r *Repository) Restore(ref string) (*RestoreResult, error) {
	snap, err := r.ResolveSnapshot(ref)
	if err != nil {
		return nil, err
	}

	n, err := workspace.NewMaterializer(r.content, r.workDir).Restore(snap.Files)
	if err != nil {
		return nil, fmt.Errorf("restore %s (%d of %d files written): %w", snap.ShortID(), n, len(snap.Files), err)
	}

	res := &RestoreResult{Snapshot: snap, Files: n}
	head, err := r.refs.ReadHead()
	if err != nil {
		return nil, err
	}
	if head.Detached() {
		if err := r.refs.Detach(snap.ID); err != nil {
			return nil, err
		}
		res.HeadMoved = true
	}

	if err := r.activity.Record(activity.Restore, snap.Timeline, snap.ShortID(), ""); err != nil {
		return nil, err
	}
	r.log.Info("snapshot restored", "id", snap.ShortID(), "files", n)
	return res, nil
}

// Comparison is the result of diffing two snapshots.
type Comparison struct {
	From *snapshot.Snapshot
	To   *snapshot.Snapshot
	*diff.Result
}

// Diff compares two snapshot references. Files only in to are added, files
// only in from are deleted.
func (r *Repository) Diff(from, to string) (*Comparison, error) {
	a, err := r.ResolveSnapshot(from)
	if err != nil {
		return nil, err
	}
	b, err := r.ResolveSnapshot(to)
	if err != nil {
		return nil, err
	}
	return &Comparison{From: a, To: b, Result: diff.Snapshots(a, b)}, nil
}

// History returns the current timeline's snapshots, newest first. With a
// detached HEAD every snapshot is returned.
func (r *Repository) History() ([]*snapshot.Snapshot, error) {
	current, err := r.refs.Current()
	if err != nil {
		return nil, err
	}
	return r.ListSnapshots(current)
}

// ListSnapshots returns the snapshots of timeline, or all snapshots when
// timeline is empty, newest first.
func (r *Repository) ListSnapshots(timeline string) ([]*snapshot.Snapshot, error) {
	if timeline == "" {
		return r.snapshots.ListAll()
	}
	if !r.refs.Exists(timeline) {
		return nil, fmt.Errorf("%w: %s", refs.ErrTimelineNotFound, timeline)
	}
	return r.snapshots.ListByTimeline(timeline)
}

// DeleteSnapshot removes a snapshot's metadata and any tags naming it. A
// snapshot that a timeline head or detached HEAD points at is refused unless
// force is set. Its blobs stay until the next gc.
func (r *Repository) DeleteSnapshot(ref string, force bool) (*snapshot.Snapshot, error) {
	snap, err := r.ResolveSnapshot(ref)
	if err != nil {
		return nil, err
	}
	referenced, err := r.refs.IsSnapshotReferenced(snap.ID)
	if err != nil {
		return nil, err
	}
	if referenced && !force {
		return nil, fmt.Errorf("%w: %s is a timeline head or HEAD", ErrSnapshotReferenced, snap.ShortID())
	}

	if err := r.snapshots.Delete(snap.ID); err != nil {
		return nil, err
	}
	ts, err := r.tags()
	if err != nil {
		return nil, err
	}
	dropped, err := ts.RemoveSnapshot(snap.ID)
	if err != nil {
		return nil, err
	}
	if err := r.activity.Record(activity.SnapshotDelete, snap.Timeline, snap.ShortID(), ""); err != nil {
		return nil, err
	}
	r.log.Info("snapshot deleted", "id", snap.ShortID(), "tags_dropped", len(dropped), "forced", referenced)
	return snap, nil
}
