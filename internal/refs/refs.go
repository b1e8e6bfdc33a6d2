// Package refs manages timelines, the named mutable pointers to snapshot
// ids kept under refs/timelines, and the HEAD pointer.
package refs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/javanhut/gam/internal/clock"
)

const headPrefix = "ref: refs/timelines/"

var (
	ErrTimelineNotFound = errors.New("timeline not found")
	ErrTimelineExists   = errors.New("timeline already exists")
	ErrInvalidName      = errors.New("invalid timeline name")
	ErrDetachedHead     = errors.New("HEAD is detached")
	ErrInvalidHead      = errors.New("invalid HEAD")
)

// Timeline is a named pointer to the latest snapshot of a history.
type Timeline struct {
	Name string
	// Head is the id of the newest snapshot, empty for a new timeline.
	Head        string
	CreatedAt   time.Time
	Description string
}

// Head is the parsed HEAD file. Exactly one of Timeline and Snapshot is set.
type Head struct {
	Timeline string
	Snapshot string
}

// Detached reports whether HEAD holds a snapshot id directly.
func (h Head) Detached() bool { return h.Timeline == "" }

// timelineMeta is what refs/timelines.json keeps per timeline; the ref file
// itself holds only the head id.
type timelineMeta struct {
	CreatedAt   time.Time `json:"created_at"`
	Description string    `json:"description,omitempty"`
}

// Options configures a RefsManager.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

// RefsManager handles timeline and HEAD management.
type RefsManager struct {
	timelinesDir string
	headPath     string
	metaPath     string
	clock        clock.Clock
	log          *slog.Logger
}

// NewRefsManager creates a refs manager for the repository directory gamDir.
func NewRefsManager(gamDir string, opts Options) (*RefsManager, error) {
	timelinesDir := filepath.Join(gamDir, "refs", "timelines")
	if err := os.MkdirAll(timelinesDir, 0755); err != nil {
		return nil, fmt.Errorf("create refs dir: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RefsManager{
		timelinesDir: timelinesDir,
		headPath:     filepath.Join(gamDir, "HEAD"),
		metaPath:     filepath.Join(gamDir, "refs", "timelines.json"),
		clock:        clock.OrReal(opts.Clock),
		log:          logger,
	}, nil
}

// ValidateName checks that name can be used as a ref file name.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func (rm *RefsManager) refPath(name string) string {
	return filepath.Join(rm.timelinesDir, name)
}

// Create adds a timeline pointing at fromSnapshot, or at nothing when
// fromSnapshot is empty.
func (rm *RefsManager) Create(name, fromSnapshot, description string) (*Timeline, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	if rm.Exists(name) {
		return nil, fmt.Errorf("%w: %s", ErrTimelineExists, name)
	}
	if err := rm.writeRef(name, fromSnapshot); err != nil {
		return nil, err
	}

	tl := &Timeline{Name: name, Head: fromSnapshot, CreatedAt: rm.clock.Now(), Description: description}
	err := rm.updateMeta(func(meta map[string]timelineMeta) {
		meta[name] = timelineMeta{CreatedAt: tl.CreatedAt, Description: description}
	})
	if err != nil {
		return nil, err
	}
	rm.log.Debug("timeline created", "name", name, "head", fromSnapshot)
	return tl, nil
}

// Exists reports whether a ref file exists for name.
func (rm *RefsManager) Exists(name string) bool {
	if ValidateName(name) != nil {
		return false
	}
	info, err := os.Stat(rm.refPath(name))
	return err == nil && info.Mode().IsRegular()
}

// Get reads the timeline called name.
func (rm *RefsManager) Get(name string) (*Timeline, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	meta, err := rm.loadMeta()
	if err != nil {
		return nil, err
	}
	return rm.get(name, meta)
}

func (rm *RefsManager) get(name string, meta map[string]timelineMeta) (*Timeline, error) {
	path := rm.refPath(name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTimelineNotFound, name)
		}
		return nil, fmt.Errorf("read timeline %s: %w", name, err)
	}

	tl := &Timeline{Name: name, Head: strings.TrimSpace(string(data))}
	if m, ok := meta[name]; ok {
		tl.CreatedAt = m.CreatedAt
		tl.Description = m.Description
	} else if info, err := os.Stat(path); err == nil {
		tl.CreatedAt = info.ModTime()
	}
	return tl, nil
}

// List returns every timeline sorted by name.
func (rm *RefsManager) List() ([]Timeline, error) {
	entries, err := os.ReadDir(rm.timelinesDir)
	if err != nil {
		return nil, fmt.Errorf("read timelines: %w", err)
	}
	meta, err := rm.loadMeta()
	if err != nil {
		return nil, err
	}

	var timelines []Timeline
	for _, e := range entries {
		if !e.Type().IsRegular() || ValidateName(e.Name()) != nil {
			continue
		}
		tl, err := rm.get(e.Name(), meta)
		if err != nil {
			return nil, err
		}
		timelines = append(timelines, *tl)
	}
	slices.SortFunc(timelines, func(a, b Timeline) int { return strings.Compare(a.Name, b.Name) })
	return timelines, nil
}

// ReadHead parses the HEAD file.
func (rm *RefsManager) ReadHead() (Head, error) {
	data, err := os.ReadFile(rm.headPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Head{}, fmt.Errorf("%w: HEAD file missing", ErrInvalidHead)
		}
		return Head{}, fmt.Errorf("read HEAD: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if name, ok := strings.CutPrefix(content, headPrefix); ok {
		if err := ValidateName(name); err != nil {
			return Head{}, fmt.Errorf("%w: %v", ErrInvalidHead, err)
		}
		return Head{Timeline: name}, nil
	}
	if isSnapshotID(content) {
		return Head{Snapshot: content}, nil
	}
	return Head{}, fmt.Errorf("%w: %q", ErrInvalidHead, content)
}

// SetCurrent points HEAD at the timeline called name.
func (rm *RefsManager) SetCurrent(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.WriteFile(rm.headPath, []byte(headPrefix+name+"\n"), 0644); err != nil {
		return fmt.Errorf("write HEAD: %w", err)
	}
	rm.log.Debug("HEAD attached", "timeline", name)
	return nil
}

// Detach points HEAD directly at a snapshot id.
func (rm *RefsManager) Detach(snapshotID string) error {
	if !isSnapshotID(snapshotID) {
		return fmt.Errorf("%w: cannot detach at %q", ErrInvalidHead, snapshotID)
	}
	if err := os.WriteFile(rm.headPath, []byte(snapshotID), 0644); err != nil {
		return fmt.Errorf("write HEAD: %w", err)
	}
	rm.log.Debug("HEAD detached", "snapshot", snapshotID)
	return nil
}

// Current returns the timeline HEAD points at, or "" when HEAD is detached.
func (rm *RefsManager) Current() (string, error) {
	head, err := rm.ReadHead()
	if err != nil {
		return "", err
	}
	return head.Timeline, nil
}

// HeadSnapshot returns the snapshot id HEAD resolves to, which is empty
// for a timeline without snapshots.
func (rm *RefsManager) HeadSnapshot() (string, error) {
	head, err := rm.ReadHead()
	if err != nil {
		return "", err
	}
	if head.Detached() {
		return head.Snapshot, nil
	}
	tl, err := rm.Get(head.Timeline)
	if err != nil {
		return "", err
	}
	return tl.Head, nil
}

// Rename moves timeline oldName to newName, rewriting HEAD first when it
// points at oldName. The two writes are not atomic.
func (rm *RefsManager) Rename(oldName, newName string) error {
	if err := ValidateName(newName); err != nil {
		return err
	}
	if !rm.Exists(oldName) {
		return fmt.Errorf("%w: %s", ErrTimelineNotFound, oldName)
	}
	if rm.Exists(newName) {
		return fmt.Errorf("%w: %s", ErrTimelineExists, newName)
	}

	if head, err := rm.ReadHead(); err == nil && head.Timeline == oldName {
		if err := rm.SetCurrent(newName); err != nil {
			return err
		}
	}

	if err := os.Rename(rm.refPath(oldName), rm.refPath(newName)); err != nil {
		return fmt.Errorf("rename timeline %s: %w", oldName, err)
	}

	err := rm.updateMeta(func(meta map[string]timelineMeta) {
		if m, ok := meta[oldName]; ok {
			meta[newName] = m
			delete(meta, oldName)
		}
	})
	if err != nil {
		return err
	}
	rm.log.Debug("timeline renamed", "from", oldName, "to", newName)
	return nil
}

// Delete removes the timeline's ref file. Whether name is the current
// timeline is not checked here.
func (rm *RefsManager) Delete(name string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := os.Remove(rm.refPath(name)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete timeline %s: %w", name, err)
	}
	if err := rm.updateMeta(func(meta map[string]timelineMeta) { delete(meta, name) }); err != nil {
		return err
	}
	rm.log.Debug("timeline deleted", "name", name)
	return nil
}

// UpdateHead overwrites the timeline's head pointer. The last writer wins.
func (rm *RefsManager) UpdateHead(name, snapshotID string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if err := rm.writeRef(name, snapshotID); err != nil {
		return err
	}
	rm.log.Debug("timeline advanced", "name", name, "head", snapshotID)
	return nil
}

// ReferencedSnapshots returns the ids reachable from a timeline head or a
// detached HEAD. An unreadable HEAD is an error: the snapshot it pointed
// at cannot be known, so nothing may be treated as unreferenced.
func (rm *RefsManager) ReferencedSnapshots() (map[string]bool, error) {
	refs := make(map[string]bool)
	head, err := rm.ReadHead()
	if err != nil {
		return nil, fmt.Errorf("%w (run gam doctor --fix)", err)
	}
	if head.Detached() {
		refs[head.Snapshot] = true
	}

	timelines, err := rm.List()
	if err != nil {
		return nil, err
	}
	for _, tl := range timelines {
		if tl.Head != "" {
			refs[tl.Head] = true
		}
	}
	return refs, nil
}

// IsSnapshotReferenced reports whether id is a timeline head or the
// detached HEAD.
func (rm *RefsManager) IsSnapshotReferenced(id string) (bool, error) {
	refs, err := rm.ReferencedSnapshots()
	if err != nil {
		return false, err
	}
	return refs[id], nil
}

func (rm *RefsManager) writeRef(name, snapshotID string) error {
	if err := os.WriteFile(rm.refPath(name), []byte(snapshotID), 0644); err != nil {
		return fmt.Errorf("write timeline %s: %w", name, err)
	}
	return nil
}

func (rm *RefsManager) loadMeta() (map[string]timelineMeta, error) {
	meta := make(map[string]timelineMeta)
	data, err := os.ReadFile(rm.metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return meta, nil
		}
		return nil, fmt.Errorf("read timeline metadata: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode timeline metadata: %w", err)
	}
	return meta, nil
}

func (rm *RefsManager) updateMeta(fn func(map[string]timelineMeta)) error {
	meta, err := rm.loadMeta()
	if err != nil {
		return err
	}
	fn(meta)
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encode timeline metadata: %w", err)
	}
	if err := os.WriteFile(rm.metaPath, data, 0644); err != nil {
		return fmt.Errorf("write timeline metadata: %w", err)
	}
	return nil
}

func isSnapshotID(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
