// Package tags stores name -> snapshot bookmarks in refs/tags.json together
// with a reverse index used when listing snapshots.
package tags

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/javanhut/gam/internal/refs"
)

// RefPrefix marks a snapshot reference that names a tag.
const RefPrefix = "refs/tags/"

var (
	ErrInvalidName = errors.New("invalid tag name")
	ErrExists      = errors.New("tag already exists")
	ErrNotFound    = errors.New("tag not found")
)

// Tag is one bookmark.
type Tag struct {
	Name     string
	Snapshot string
}

type document struct {
	Tags    map[string]string   `json:"tags"`
	Reverse map[string][]string `json:"reverse"`
}

// Store is the in-memory view of refs/tags.json. Mutations are written
// back immediately.
type Store struct {
	path string
	doc  document
}

// Open loads the tag file at path. A missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, doc: document{Tags: map[string]string{}, Reverse: map[string][]string{}}}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read tags: %w", err)
	}
	if err := json.Unmarshal(data, &s.doc); err != nil {
		return nil, fmt.Errorf("decode tags %s: %w", path, err)
	}
	if s.doc.Tags == nil {
		s.doc.Tags = map[string]string{}
	}
	s.rebuildReverse()
	return s, nil
}

// ValidateName applies the same rules as timeline names.
func ValidateName(name string) error {
	if refs.ValidateName(name) != nil {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

// ParseRef returns the tag name in a "refs/tags/<name>" reference.
func ParseRef(ref string) (string, bool) {
	name, ok := strings.CutPrefix(ref, RefPrefix)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// Add bookmarks snapshotID under name.
func (s *Store) Add(name, snapshotID string) error {
	if err := ValidateName(name); err != nil {
		return err
	}
	if _, ok := s.doc.Tags[name]; ok {
		return fmt.Errorf("%w: %s", ErrExists, name)
	}
	s.doc.Tags[name] = snapshotID
	s.rebuildReverse()
	return s.save()
}

// Remove deletes the tag called name.
func (s *Store) Remove(name string) error {
	if _, ok := s.doc.Tags[name]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	delete(s.doc.Tags, name)
	s.rebuildReverse()
	return s.save()
}

// RemoveSnapshot drops every tag pointing at snapshotID and returns their
// names.
func (s *Store) RemoveSnapshot(snapshotID string) ([]string, error) {
	names := s.ForSnapshot(snapshotID)
	if len(names) == 0 {
		return nil, nil
	}
	for _, name := range names {
		delete(s.doc.Tags, name)
	}
	s.rebuildReverse()
	return names, s.save()
}

// Get returns the snapshot a tag points at.
func (s *Store) Get(name string) (string, bool) {
	id, ok := s.doc.Tags[name]
	return id, ok
}

// ForSnapshot returns the sorted tag names pointing at snapshotID.
func (s *Store) ForSnapshot(snapshotID string) []string {
	return slices.Clone(s.doc.Reverse[snapshotID])
}

// All returns every tag sorted by name.
func (s *Store) All() []Tag {
	out := make([]Tag, 0, len(s.doc.Tags))
	for name, id := range s.doc.Tags {
		out = append(out, Tag{Name: name, Snapshot: id})
	}
	slices.SortFunc(out, func(a, b Tag) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (s *Store) rebuildReverse() {
	s.doc.Reverse = make(map[string][]string)
	for name, id := range s.doc.Tags {
		s.doc.Reverse[id] = append(s.doc.Reverse[id], name)
	}
	for _, names := range s.doc.Reverse {
		slices.Sort(names)
	}
}

func (s *Store) save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("create refs directory: %w", err)
	}
	data, err := json.MarshalIndent(s.doc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode tags: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0644); err != nil {
		return fmt.Errorf("write tags: %w", err)
	}
	return nil
}
