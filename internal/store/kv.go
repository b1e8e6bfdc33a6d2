// Package store keeps the content index: a small bbolt database mapping each
// blob digest to its size, advisory reference count and storage encoding.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.etcd.io/bbolt"
)

// BucketContent holds digest hex -> JSON encoded Entry.
var BucketContent = []byte("content")

// ErrNoEntry is returned when a digest has no index entry.
var ErrNoEntry = errors.New("no index entry")

// Entry is the index record for one blob.
type Entry struct {
	Size       int64 `json:"size"`
	RefCount   int64 `json:"ref_count"`
	Compressed bool  `json:"compressed,omitempty"`
}

type DB struct{ *bbolt.DB }

// lockTimeout bounds the wait for another process holding the index.
const lockTimeout = 2 * time.Second

// Open opens (creating if necessary) the index database at path.
func Open(path string) (*DB, error) {
	db, err := bbolt.Open(path, 0644, &bbolt.Options{Timeout: lockTimeout})
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		_, e := tx.CreateBucketIfNotExists(BucketContent)
		return e
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create index bucket: %w", err)
	}
	return &DB{db}, nil
}

func (db *DB) Close() error { return db.DB.Close() }

// Put writes the entry for digest, replacing any previous one.
func (db *DB) Put(digest string, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketContent).Put([]byte(digest), data)
	})
}

// Get returns the entry for digest or ErrNoEntry.
func (db *DB) Get(digest string) (Entry, error) {
	var e Entry
	err := db.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(BucketContent).Get([]byte(digest))
		if raw == nil {
			return ErrNoEntry
		}
		return json.Unmarshal(raw, &e)
	})
	return e, err
}

// Touch increments the reference count of digest. A missing entry is
// recreated from fallback first, so a blob written before a crash gets
// tracked again on its next store.
func (db *DB) Touch(digest string, fallback Entry) (Entry, error) {
	var e Entry
	err := db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(BucketContent)
		if raw := b.Get([]byte(digest)); raw != nil {
			if err := json.Unmarshal(raw, &e); err != nil {
				return fmt.Errorf("decode entry %s: %w", digest, err)
			}
		} else {
			e = fallback
		}
		e.RefCount++
		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		return b.Put([]byte(digest), data)
	})
	return e, err
}

// Delete removes the entry for digest. Deleting a missing entry is not an
// error.
func (db *DB) Delete(digest string) error {
	return db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketContent).Delete([]byte(digest))
	})
}

// ForEach calls fn for every entry in key order.
func (db *DB) ForEach(fn func(digest string, e Entry) error) error {
	return db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(BucketContent).ForEach(func(k, v []byte) error {
			var e Entry
			if err := json.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode entry %s: %w", k, err)
			}
			return fn(string(k), e)
		})
	})
}

// Len returns the number of indexed blobs.
func (db *DB) Len() (int, error) {
	var n int
	err := db.View(func(tx *bbolt.Tx) error {
		n = tx.Bucket(BucketContent).Stats().KeyN
		return nil
	})
	return n, err
}
