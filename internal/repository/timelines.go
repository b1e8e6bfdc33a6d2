package repository

import (
	"errors"
	"fmt"

	"github.com/javanhut/gam/internal/activity"
	"github.com/javanhut/gam/internal/refs"
	"github.com/javanhut/gam/internal/snapshot"
	"github.com/javanhut/gam/internal/tags"
)

// CreateTimeline adds a timeline. from is a snapshot reference to start
// at; when empty the new timeline starts at HEAD's snapshot, which is
// empty for a fresh repository.
func (r *Repository) CreateTimeline(name, from, description string) (*refs.Timeline, error) {
	if err := refs.ValidateName(name); err != nil {
		return nil, err
	}

	var start string
	if from != "" {
		snap, err := r.ResolveSnapshot(from)
		if err != nil {
			return nil, err
		}
		start = snap.ID
	} else {
		head, err := r.refs.HeadSnapshot()
		if err != nil {
			return nil, err
		}
		start = head
	}

	current, err := r.refs.Current()
	if err != nil {
		return nil, err
	}
	tl, err := r.refs.Create(name, start, description)
	if err != nil {
		return nil, err
	}
	if err := r.activity.Record(activity.TimelineCreate, name, snapshot.ShortID(start), current); err != nil {
		return nil, err
	}
	return tl, nil
}

// Timelines lists every timeline sorted by name.
func (r *Repository) Timelines() ([]refs.Timeline, error) {
	return r.refs.List()
}

// CurrentTimeline returns the timeline HEAD is attached to, or "" when
// detached.
func (r *Repository) CurrentTimeline() (string, error) {
	return r.refs.Current()
}

// SwitchResult reports where HEAD ended up after Switch.
type SwitchResult struct {
	// Timeline is set when HEAD was attached to a timeline.
	Timeline string
	// Snapshot is set when HEAD was detached at a snapshot.
	Snapshot *snapshot.Snapshot
}

// Switch attaches HEAD to the timeline called target. When no such
// timeline exists target is resolved as a snapshot reference and HEAD is
// detached there. The tracked directory is not modified.
func (r *Repository) Switch(target string) (*SwitchResult, error) {
	previous, err := r.refs.Current()
	if err != nil && !errors.Is(err, refs.ErrInvalidHead) {
		return nil, err
	}

	if r.refs.Exists(target) {
		if err := r.refs.SetCurrent(target); err != nil {
			return nil, err
		}
		if err := r.activity.Record(activity.TimelineSwitch, target, "", previous); err != nil {
			return nil, err
		}
		return &SwitchResult{Timeline: target}, nil
	}

	snap, err := r.ResolveSnapshot(target)
	if err != nil {
		if errors.Is(err, snapshot.ErrNotFound) || (errors.Is(err, snapshot.ErrInvalidID) && !isAmbiguous(err)) {
			return nil, fmt.Errorf("%w: %s is neither a timeline nor a snapshot", refs.ErrTimelineNotFound, target)
		}
		return nil, err
	}
	if err := r.refs.Detach(snap.ID); err != nil {
		return nil, err
	}
	if err := r.activity.Record(activity.TimelineSwitch, snap.Timeline, snap.ShortID(), previous); err != nil {
		return nil, err
	}
	return &SwitchResult{Snapshot: snap}, nil
}

// RenameTimeline renames a timeline, moving HEAD along if attached to it.
func (r *Repository) RenameTimeline(oldName, newName string) error {
	if err := r.refs.Rename(oldName, newName); err != nil {
		return err
	}
	return r.activity.Record(activity.TimelineRename, newName, newName, oldName)
}

// DeleteTimeline removes a timeline. The timeline HEAD is attached to is
// refused unless force is set, which leaves HEAD pointing at a missing ref
// until the next switch. Snapshots on the timeline stay until gc.
func (r *Repository) DeleteTimeline(name string, force bool) error {
	if !r.refs.Exists(name) {
		return fmt.Errorf("%w: %s", refs.ErrTimelineNotFound, name)
	}
	current, err := r.refs.Current()
	if err != nil && !errors.Is(err, refs.ErrInvalidHead) {
		return err
	}
	if current == name && !force {
		return fmt.Errorf("cannot delete the current timeline %q; switch first or force", name)
	}
	if err := r.refs.Delete(name); err != nil {
		return err
	}
	return r.activity.Record(activity.TimelineDelete, name, name, "")
}

// AddTag bookmarks the snapshot ref resolves to.
func (r *Repository) AddTag(name, ref string) (*snapshot.Snapshot, error) {
	if err := tags.ValidateName(name); err != nil {
		return nil, err
	}
	snap, err := r.ResolveSnapshot(ref)
	if err != nil {
		return nil, err
	}
	ts, err := r.tags()
	if err != nil {
		return nil, err
	}
	if err := ts.Add(name, snap.ID); err != nil {
		return nil, err
	}
	if err := r.activity.Record(activity.TagAdd, snap.Timeline, name, snap.ShortID()); err != nil {
		return nil, err
	}
	return snap, nil
}

// RemoveTag deletes a tag.
func (r *Repository) RemoveTag(name string) error {
	ts, err := r.tags()
	if err != nil {
		return err
	}
	if err := ts.Remove(name); err != nil {
		return err
	}
	return r.activity.Record(activity.TagRemove, "", name, "")
}

// Tags lists every tag sorted by name.
func (r *Repository) Tags() ([]tags.Tag, error) {
	ts, err := r.tags()
	if err != nil {
		return nil, err
	}
	return ts.All(), nil
}

// TagsFor returns the tag names pointing at a snapshot id.
func (r *Repository) TagsFor(id string) ([]string, error) {
	ts, err := r.tags()
	if err != nil {
		return nil, err
	}
	return ts.ForSnapshot(id), nil
}

func isAmbiguous(err error) bool {
	var amb *snapshot.AmbiguousError
	return errors.As(err, &amb)
}
