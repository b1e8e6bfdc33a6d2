// Package workspace moves files between the tracked directory and the
// content store.
//
// It provides:
// - Scanning the directory through an ignore matcher
// - Hashing and storing scanned files as snapshot entries
// - Writing snapshot entries back to disk on restore
package workspace

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/javanhut/gam/internal/cas"
	"github.com/javanhut/gam/internal/snapshot"
)

// Matcher decides whether a relative path is excluded.
type Matcher interface {
	IsIgnored(path string) bool
}

// BlobStore is the content store as seen by the materializer.
type BlobStore interface {
	StoreWithHash(path string, hash cas.Hash) (cas.Blob, error)
	Open(hash cas.Hash) (io.ReadCloser, error)
}

// ScannedFile is a regular file found under the work directory.
type ScannedFile struct {
	// Path is relative to the work directory, with forward slashes.
	Path    string
	AbsPath string
	Size    int64
}

// Scan walks workDir in lexical order. Directories whose name starts with
// "." are skipped outright; everything else goes through ignore, which may
// be nil. Symlinks and other non-regular files are not tracked.
func Scan(workDir string, ignore Matcher) ([]ScannedFile, error) {
	var files []ScannedFile

	err := filepath.WalkDir(workDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == workDir {
			return nil
		}

		relPath, err := filepath.Rel(workDir, path)
		if err != nil {
			return err
		}
		relPath = filepath.ToSlash(relPath)

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if ignore != nil && ignore.IsIgnored(relPath) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}
		if ignore != nil && ignore.IsIgnored(relPath) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		files = append(files, ScannedFile{Path: relPath, AbsPath: path, Size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan workspace: %w", err)
	}
	return files, nil
}

// TotalSize sums the sizes of files.
func TotalSize(files []ScannedFile) int64 {
	var total int64
	for _, f := range files {
		total += f.Size
	}
	return total
}

// Fingerprint hashes files without storing them.
func Fingerprint(files []ScannedFile) ([]snapshot.FileEntry, error) {
	entries := make([]snapshot.FileEntry, 0, len(files))
	for _, f := range files {
		hash, size, err := cas.HashFile(f.AbsPath)
		if err != nil {
			return nil, err
		}
		entries = append(entries, snapshot.FileEntry{Path: f.Path, Digest: hash, Size: size})
	}
	return entries, nil
}

// Materializer stores and restores file sets for one work directory.
type Materializer struct {
	Store   BlobStore
	WorkDir string
}

// NewMaterializer creates a new Materializer.
func NewMaterializer(store BlobStore, workDir string) *Materializer {
	return &Materializer{Store: store, WorkDir: workDir}
}

// Capture hashes and stores every file and returns the snapshot entries in
// the same order. Compressed blobs record their on-disk size.
func (m *Materializer) Capture(files []ScannedFile) ([]snapshot.FileEntry, error) {
	entries := make([]snapshot.FileEntry, 0, len(files))
	for _, f := range files {
		hash, size, err := cas.HashFile(f.AbsPath)
		if err != nil {
			return nil, err
		}
		blob, err := m.Store.StoreWithHash(f.AbsPath, hash)
		if err != nil {
			return nil, fmt.Errorf("store %s: %w", f.Path, err)
		}

		entry := snapshot.FileEntry{Path: f.Path, Digest: hash, Size: size}
		if blob.Compressed {
			stored := blob.StoredSize
			entry.CompressedSize = &stored
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Restore writes every entry to its path under the work directory,
// creating parent directories as needed. Files not in entries are left
// alone. A failure part way leaves earlier files restored.
func (m *Materializer) Restore(entries []snapshot.FileEntry) (int, error) {
	restored := 0
	for _, e := range entries {
		if err := m.restoreFile(e); err != nil {
			return restored, err
		}
		restored++
	}
	return restored, nil
}

func (m *Materializer) restoreFile(e snapshot.FileEntry) error {
	rel := filepath.FromSlash(e.Path)
	if !filepath.IsLocal(rel) {
		return fmt.Errorf("refusing to restore %q outside the work directory", e.Path)
	}
	dest := filepath.Join(m.WorkDir, rel)

	src, err := m.Store.Open(e.Digest)
	if err != nil {
		return fmt.Errorf("restore %s: %w", e.Path, err)
	}
	defer src.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", e.Path, err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", e.Path, err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return fmt.Errorf("failed to write %s: %w", e.Path, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", e.Path, err)
	}
	return nil
}
