package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/javanhut/gam/internal/cas"
	"github.com/javanhut/gam/internal/clock"
)

var (
	// ErrNotFound is returned when no snapshot has the requested id.
	ErrNotFound = errors.New("snapshot not found")
	// ErrInvalidID is returned for malformed ids and ambiguous prefixes.
	ErrInvalidID = errors.New("invalid snapshot id")
)

// AmbiguousError reports every snapshot id matching a prefix.
type AmbiguousError struct {
	Prefix  string
	Matches []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("prefix %q matches %d snapshots: %s", e.Prefix, len(e.Matches), strings.Join(e.Matches, ", "))
}

// Is makes an ambiguity match ErrInvalidID.
func (e *AmbiguousError) Is(target error) bool {
	return target == ErrInvalidID
}

// Options configures a Store.
type Options struct {
	Clock  clock.Clock
	Logger *slog.Logger
}

// Store persists snapshots as JSON files at <root>/<id[0:2]>/<id[2:]>.
type Store struct {
	root  string
	clock clock.Clock
	log   *slog.Logger
}

// NewStore opens the snapshot tree rooted at root.
func NewStore(root string, opts Options) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create snapshot directory: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{root: root, clock: clock.OrReal(opts.Clock), log: logger}, nil
}

// CreateParams describes a new snapshot.
type CreateParams struct {
	Files       []FileEntry
	Timeline    string
	Parent      string
	Name        string
	Description string
	// Compression defaults to CompressionNone.
	Compression string
}

// Create builds, identifies and persists a new snapshot stamped with the
// store's clock.
func (s *Store) Create(p CreateParams) (*Snapshot, error) {
	ts := s.clock.Now()
	id, err := ComputeID(p.Files, p.Timeline, p.Parent, ts, p.Name)
	if err != nil {
		return nil, err
	}

	var size int64
	for _, f := range p.Files {
		size += f.Size
	}
	compression := p.Compression
	if compression == "" {
		compression = CompressionNone
	}

	snap := &Snapshot{
		ID:          id,
		Parent:      p.Parent,
		Timeline:    p.Timeline,
		Timestamp:   ts,
		Name:        p.Name,
		Description: p.Description,
		Files:       p.Files,
		ContentHash: ComputeContentHash(p.Files),
		Size:        size,
		Compression: compression,
		Version:     FormatVersion,
	}
	if err := s.Save(snap); err != nil {
		return nil, err
	}
	s.log.Debug("snapshot created", "id", snap.ShortID(), "timeline", snap.Timeline, "files", len(snap.Files))
	return snap, nil
}

// Save writes snap to its id-derived path.
func (s *Store) Save(snap *Snapshot) error {
	if err := validateID(snap.ID); err != nil {
		return err
	}
	path := s.Path(snap.ID)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot %s: %w", snap.ShortID(), err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("write snapshot %s: %w", snap.ShortID(), err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename snapshot %s: %w", snap.ShortID(), err)
	}
	return nil
}

// Path returns the metadata file location for id.
func (s *Store) Path(id string) string {
	return filepath.Join(s.root, id[:2], id[2:])
}

// Get loads the snapshot with exactly this id.
func (s *Store) Get(id string) (*Snapshot, error) {
	id = strings.ToLower(id)
	if err := validateID(id); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("read snapshot %s: %w", ShortID(id), err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot %s: %w", ShortID(id), err)
	}
	return &snap, nil
}

// GetByPrefix returns the single snapshot whose id starts with prefix, nil
// when nothing matches, or an *AmbiguousError naming every candidate.
func (s *Store) GetByPrefix(prefix string) (*Snapshot, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix == "" || len(prefix) > cas.HexLen || !isHex(prefix) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidID, prefix)
	}

	matches, err := s.matchIDs(prefix)
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, nil
	case 1:
		return s.Get(matches[0])
	default:
		return nil, &AmbiguousError{Prefix: prefix, Matches: matches}
	}
}

// IDs returns every persisted snapshot id in lexical order.
func (s *Store) IDs() ([]string, error) {
	return s.matchIDs("")
}

func (s *Store) matchIDs(prefix string) ([]string, error) {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read snapshot directory: %w", err)
	}

	var ids []string
	for _, d := range dirs {
		if !d.IsDir() || len(d.Name()) != 2 || !isHex(d.Name()) {
			continue
		}
		if len(prefix) >= 2 && d.Name() != prefix[:2] {
			continue
		}
		if len(prefix) < 2 && !strings.HasPrefix(d.Name(), prefix) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.root, d.Name()))
		if err != nil {
			return nil, fmt.Errorf("read snapshot directory %s: %w", d.Name(), err)
		}
		for _, f := range files {
			id := d.Name() + f.Name()
			if f.IsDir() || validateID(id) != nil {
				continue
			}
			if strings.HasPrefix(id, prefix) {
				ids = append(ids, id)
			}
		}
	}
	slices.Sort(ids)
	return ids, nil
}

// ListAll returns every snapshot, most recent first.
func (s *Store) ListAll() ([]*Snapshot, error) {
	ids, err := s.IDs()
	if err != nil {
		return nil, err
	}
	snaps := make([]*Snapshot, 0, len(ids))
	for _, id := range ids {
		snap, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	slices.SortStableFunc(snaps, func(a, b *Snapshot) int {
		if c := b.Timestamp.Compare(a.Timestamp); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return snaps, nil
}

// ListByTimeline returns the snapshots created on timeline, most recent first.
func (s *Store) ListByTimeline(timeline string) ([]*Snapshot, error) {
	all, err := s.ListAll()
	if err != nil {
		return nil, err
	}
	var out []*Snapshot
	for _, snap := range all {
		if snap.Timeline == timeline {
			out = append(out, snap)
		}
	}
	return out, nil
}

// FileSize returns the size of the snapshot's metadata file on disk.
func (s *Store) FileSize(id string) (int64, error) {
	if err := validateID(id); err != nil {
		return 0, err
	}
	info, err := os.Stat(s.Path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return 0, fmt.Errorf("stat snapshot %s: %w", ShortID(id), err)
	}
	return info.Size(), nil
}

// Delete removes the snapshot's metadata file. Blobs it references are left
// for the garbage collector. Deleting a missing snapshot succeeds.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := os.Remove(s.Path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete snapshot %s: %w", ShortID(id), err)
	}
	s.log.Debug("snapshot deleted", "id", ShortID(id))
	return nil
}

func validateID(id string) error {
	if len(id) != cas.HexLen || !isHex(id) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}

func isHex(s string) bool {
	for _, c := range s {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}
