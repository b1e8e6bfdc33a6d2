// Package snapshot defines snapshot records and the store that keeps them
// under objects/snapshot, addressed by a digest of their own metadata.
package snapshot

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/javanhut/gam/internal/cas"
)

// FormatVersion is written into every snapshot record.
const FormatVersion = "2.0.0"

// Compression tags recorded on a snapshot.
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// FileEntry maps a path relative to the tracked directory to its content.
type FileEntry struct {
	Path   string   `json:"path"`
	Digest cas.Hash `json:"hash"`
	Size   int64    `json:"size"`
	// CompressedSize is set when the blob is stored compressed.
	CompressedSize *int64 `json:"compressed_size,omitempty"`
}

// Snapshot is an immutable record of a directory's file set.
type Snapshot struct {
	ID          string      `json:"id"`
	Parent      string      `json:"parent,omitempty"`
	Timeline    string      `json:"timeline"`
	Timestamp   time.Time   `json:"timestamp"`
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	Files       []FileEntry `json:"files"`
	// ContentHash covers paths and digests only, so two snapshots holding
	// the same files share it even though their ids differ.
	ContentHash cas.Hash `json:"content_hash"`
	Size        int64    `json:"size"`
	Compression string   `json:"compression"`
	Version     string   `json:"version"`
}

// ShortID returns the first eight characters of the id.
func (s *Snapshot) ShortID() string {
	return ShortID(s.ID)
}

// FileMap returns path -> entry for the snapshot's files.
func (s *Snapshot) FileMap() map[string]FileEntry {
	m := make(map[string]FileEntry, len(s.Files))
	for _, f := range s.Files {
		m[f.Path] = f
	}
	return m
}

// ShortID truncates an id for display.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// idInput is the canonical form hashed into a snapshot id. Field order is
// fixed by the struct, which keeps the encoding stable.
type idInput struct {
	Files     []FileEntry `json:"files"`
	Timeline  string      `json:"timeline"`
	Parent    string      `json:"parent"`
	Timestamp string      `json:"timestamp"`
	Name      string      `json:"name"`
}

// ComputeID derives a snapshot id from its file list, timeline, parent,
// timestamp and name.
func ComputeID(files []FileEntry, timeline, parent string, ts time.Time, name string) (string, error) {
	if files == nil {
		files = []FileEntry{}
	}
	data, err := json.Marshal(idInput{
		Files:     files,
		Timeline:  timeline,
		Parent:    parent,
		Timestamp: ts.UTC().Format(time.RFC3339Nano),
		Name:      name,
	})
	if err != nil {
		return "", fmt.Errorf("encode snapshot metadata: %w", err)
	}
	return cas.SumB3(data).String(), nil
}

// ComputeContentHash digests the sorted (path, digest) pairs of files.
func ComputeContentHash(files []FileEntry) cas.Hash {
	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, f.Path+"\x00"+f.Digest.String())
	}
	slices.Sort(lines)
	return cas.SumB3([]byte(strings.Join(lines, "\n")))
}
