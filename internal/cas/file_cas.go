package cas

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/javanhut/gam/internal/store"
	"github.com/klauspost/compress/zstd"
)

// IndexFile is the name of the index database inside the content root.
const IndexFile = "index"

// ErrNotFound is returned when no blob exists for a digest.
var ErrNotFound = errors.New("blob not found")

var zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}

// Options configures a ContentStore.
type Options struct {
	// Compress makes new blobs zstd-compressed on disk. Existing blobs keep
	// whatever encoding they were written with.
	Compress bool
	Logger   *slog.Logger
}

// Blob describes the outcome of storing one file.
type Blob struct {
	Hash Hash
	// Size is the logical (uncompressed) size.
	Size int64
	// StoredSize is the number of bytes the blob occupies on disk.
	StoredSize   int64
	Compressed   bool
	Deduplicated bool
}

// ContentStore is a deduplicating blob store laid out as
// <root>/<hex[0:2]>/<hex[2:]> with a bbolt index at <root>/index.
type ContentStore struct {
	root     string
	index    *store.DB
	compress bool
	log      *slog.Logger
}

// NewContentStore opens the content store rooted at root, creating the
// directory and index if needed.
func NewContentStore(root string, opts Options) (*ContentStore, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}
	index, err := store.Open(filepath.Join(root, IndexFile))
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ContentStore{root: root, index: index, compress: opts.Compress, log: logger}, nil
}

// Close releases the index database.
func (s *ContentStore) Close() error {
	return s.index.Close()
}

// Root returns the content directory.
func (s *ContentStore) Root() string { return s.root }

// getPath returns the file path for a given hash.
// Uses a two-level directory structure to avoid too many files in one directory.
func (s *ContentStore) getPath(hash Hash) string {
	hexStr := hash.String()
	return filepath.Join(s.root, hexStr[:2], hexStr[2:])
}

// Store hashes the file at path and stores it.
func (s *ContentStore) Store(path string) (Blob, error) {
	hash, _, err := HashFile(path)
	if err != nil {
		return Blob{}, err
	}
	return s.StoreWithHash(path, hash)
}

// StoreWithHash stores the file at path under a digest the caller already
// computed. If the blob exists only its reference count is bumped.
func (s *ContentStore) StoreWithHash(path string, hash Hash) (Blob, error) {
	info, err := os.Stat(path)
	if err != nil {
		return Blob{}, fmt.Errorf("stat %s: %w", path, err)
	}

	dest := s.getPath(hash)
	if destInfo, err := os.Stat(dest); err == nil {
		fallback := store.Entry{Size: info.Size()}
		if _, err := s.index.Get(hash.String()); errors.Is(err, store.ErrNoEntry) {
			if fallback.Compressed, err = detectCompressed(dest, hash); err != nil {
				return Blob{}, err
			}
		}
		entry, err := s.index.Touch(hash.String(), fallback)
		if err != nil {
			return Blob{}, fmt.Errorf("update index for %s: %w", hash, err)
		}
		s.log.Debug("blob deduplicated", "digest", hash.Short(), "refs", entry.RefCount)
		return Blob{
			Hash:         hash,
			Size:         entry.Size,
			StoredSize:   destInfo.Size(),
			Compressed:   entry.Compressed,
			Deduplicated: true,
		}, nil
	} else if !os.IsNotExist(err) {
		return Blob{}, fmt.Errorf("failed to check blob: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return Blob{}, fmt.Errorf("failed to create directory: %w", err)
	}

	stored, err := s.writeBlob(path, dest)
	if err != nil {
		return Blob{}, err
	}

	if err := s.index.Put(hash.String(), store.Entry{Size: info.Size(), Compressed: s.compress}); err != nil {
		return Blob{}, fmt.Errorf("update index for %s: %w", hash, err)
	}
	s.log.Debug("blob stored", "digest", hash.Short(), "size", info.Size(), "stored", stored)

	return Blob{Hash: hash, Size: info.Size(), StoredSize: stored, Compressed: s.compress}, nil
}

// writeBlob copies src to dest through a temporary file and returns the
// number of bytes written to disk.
func (s *ContentStore) writeBlob(src, dest string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	tmpPath := dest + ".tmp"
	out, err := os.Create(tmpPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}

	if s.compress {
		var enc *zstd.Encoder
		enc, err = zstd.NewWriter(out)
		if err == nil {
			_, err = io.Copy(enc, in)
			if closeErr := enc.Close(); err == nil {
				err = closeErr
			}
		}
	} else {
		_, err = io.Copy(out, in)
	}
	closeErr := out.Close()

	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to write data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to close file: %w", closeErr)
	}

	info, err := os.Stat(tmpPath)
	if err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("stat temp file: %w", err)
	}

	if err := os.Rename(tmpPath, dest); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to rename file: %w", err)
	}
	return info.Size(), nil
}

// Get returns the on-disk path of the blob for hash.
func (s *ContentStore) Get(hash Hash) (string, error) {
	path := s.getPath(hash)
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, hash)
		}
		return "", fmt.Errorf("failed to check blob: %w", err)
	}
	return path, nil
}

// Open returns a reader over the original bytes of the blob, decompressing
// when the blob was stored compressed.
func (s *ContentStore) Open(hash Hash) (io.ReadCloser, error) {
	path, err := s.Get(hash)
	if err != nil {
		return nil, err
	}

	compressed := false
	entry, err := s.index.Get(hash.String())
	switch {
	case err == nil:
		compressed = entry.Compressed
	case errors.Is(err, store.ErrNoEntry):
		if compressed, err = detectCompressed(path, hash); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("read index for %s: %w", hash, err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open blob %s: %w", hash, err)
	}
	if !compressed {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	return &zstdReadCloser{dec: dec, f: f}, nil
}

// Exists reports whether a blob is stored for hash.
func (s *ContentStore) Exists(hash Hash) bool {
	_, err := os.Stat(s.getPath(hash))
	return err == nil
}

// Entry returns the index entry for hash.
func (s *ContentStore) Entry(hash Hash) (store.Entry, error) {
	e, err := s.index.Get(hash.String())
	if errors.Is(err, store.ErrNoEntry) {
		return e, fmt.Errorf("%w: %s", ErrNotFound, hash)
	}
	return e, err
}

// DeduplicationSavings estimates the bytes saved by deduplication from the
// advisory reference counts.
func (s *ContentStore) DeduplicationSavings() (int64, error) {
	var referenced, unique int64
	err := s.index.ForEach(func(_ string, e store.Entry) error {
		refs := max(e.RefCount, 1)
		referenced += e.Size * refs
		unique += e.Size
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan index: %w", err)
	}
	return referenced - unique, nil
}

// Walk calls fn for every blob file present on disk, with its on-disk size.
// Files that are not blobs (the index, temp files) are skipped.
func (s *ContentStore) Walk(fn func(hash Hash, size int64) error) error {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("read content directory: %w", err)
	}
	for _, d := range dirs {
		if !d.IsDir() || !isHexPrefix(d.Name()) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(s.root, d.Name()))
		if err != nil {
			return fmt.Errorf("read %s: %w", d.Name(), err)
		}
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			hash, err := ParseHash(d.Name() + f.Name())
			if err != nil {
				continue
			}
			info, err := f.Info()
			if err != nil {
				return fmt.Errorf("stat blob %s: %w", hash, err)
			}
			if err := fn(hash, info.Size()); err != nil {
				return err
			}
		}
	}
	return nil
}

// Remove deletes the blob and its index entry. Removing an absent blob is
// not an error.
func (s *ContentStore) Remove(hash Hash) error {
	if err := os.Remove(s.getPath(hash)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove blob %s: %w", hash, err)
	}
	if err := s.index.Delete(hash.String()); err != nil {
		return fmt.Errorf("remove index entry %s: %w", hash, err)
	}
	s.log.Debug("blob removed", "digest", hash.Short())
	return nil
}

// PruneEmptyDirs removes prefix directories that no longer hold any blob
// and returns how many were removed.
func (s *ContentStore) PruneEmptyDirs() (int, error) {
	dirs, err := os.ReadDir(s.root)
	if err != nil {
		return 0, fmt.Errorf("read content directory: %w", err)
	}
	removed := 0
	for _, d := range dirs {
		if !d.IsDir() || !isHexPrefix(d.Name()) {
			continue
		}
		dir := filepath.Join(s.root, d.Name())
		entries, err := os.ReadDir(dir)
		if err != nil {
			return removed, fmt.Errorf("read %s: %w", dir, err)
		}
		if len(entries) > 0 {
			continue
		}
		if err := os.Remove(dir); err != nil && !os.IsNotExist(err) {
			return removed, fmt.Errorf("remove %s: %w", dir, err)
		}
		removed++
	}
	return removed, nil
}

func isHexPrefix(name string) bool {
	if len(name) != 2 {
		return false
	}
	for _, c := range name {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

// detectCompressed decides the encoding of a blob that has no index entry.
// A blob is compressed only when its raw bytes do not hash to the digest
// and its zstd-decoded bytes do, so stored files that happen to be zstd
// streams round-trip unchanged.
func detectCompressed(path string, hash Hash) (bool, error) {
	raw, _, err := HashFile(path)
	if err != nil {
		return false, err
	}
	if raw == hash {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, fmt.Errorf("open blob: %w", err)
	}
	defer f.Close()
	head := make([]byte, len(zstdMagic))
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, fmt.Errorf("read blob header: %w", err)
	}
	if n != len(zstdMagic) || !bytes.Equal(head, zstdMagic) {
		return false, nil
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return false, fmt.Errorf("rewind blob: %w", err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		return false, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()
	decoded, _, err := HashReader(dec)
	if err != nil {
		return false, nil
	}
	return decoded == hash, nil
}

type zstdReadCloser struct {
	dec *zstd.Decoder
	f   *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.dec.Read(p) }

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.f.Close()
}
