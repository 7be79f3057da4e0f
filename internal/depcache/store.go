// Package depcache maintains the reusable compiled-dependency caches. A
// cache entry is keyed by (target, manifest digest): edits to application
// code never invalidate it, only a change to the dependency manifests does.
package depcache

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	bolt "go.etcd.io/bbolt"

	"github.com/biblecomputer/bible/internal/toolchain"
)

// ErrStaleCache indicates a cache entry whose manifest digest no longer
// matches the sources, or whose artifacts are gone. A stale cache is never
// used silently; the caller must rebuild or abort.
var ErrStaleCache = errors.New("stale dependency cache")

var bucketEntries = []byte("entries")

// Entry records one compiled-dependency artifact set.
type Entry struct {
	Key            string    `msgpack:"key"`
	Target         string    `msgpack:"target"`
	ManifestDigest string    `msgpack:"manifest_digest"`
	Path           string    `msgpack:"path"` // artifact directory (CARGO_TARGET_DIR)
	BuildID        string    `msgpack:"build_id"`
	CreatedAt      time.Time `msgpack:"created_at"`
	LastUsed       time.Time `msgpack:"last_used"`
}

// Validate checks the entry against the current target and manifest digest
// and that its artifacts still exist on disk.
func (e *Entry) Validate(target toolchain.Target, manifestDigest string) error {
	if e.Target != string(target) {
		return fmt.Errorf("%w: built for target %s, need %s", ErrStaleCache, e.Target, target)
	}
	if e.ManifestDigest != manifestDigest {
		return fmt.Errorf("%w: manifest digest %.12s does not match cache %.12s", ErrStaleCache, manifestDigest, e.ManifestDigest)
	}
	if _, err := os.Stat(e.Path); err != nil {
		return fmt.Errorf("%w: artifact directory missing: %s", ErrStaleCache, e.Path)
	}
	return nil
}

// Key derives the cache key for a target and manifest digest.
func Key(target toolchain.Target, manifestDigest string) string {
	return string(target) + "-" + manifestDigest
}

// Store is the bbolt-backed cache index. Artifact directories live next to
// the index under deps/<key>/.
type Store struct {
	db  *bolt.DB
	dir string
}

// Open opens (creating if needed) the cache index in cacheDir.
func Open(cacheDir string) (*Store, error) {
	if err := os.MkdirAll(cacheDir, 0o750); err != nil {
		return nil, fmt.Errorf("create cache dir %s: %w", cacheDir, err)
	}
	db, err := bolt.Open(filepath.Join(cacheDir, "depcache.db"), 0o600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open cache index: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, berr := tx.CreateBucketIfNotExists(bucketEntries)
		return berr
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize cache index: %w", err)
	}
	return &Store{db: db, dir: cacheDir}, nil
}

// Close releases the index.
func (s *Store) Close() error { return s.db.Close() }

// ArtifactDir returns the artifact directory for a cache key.
func (s *Store) ArtifactDir(key string) string {
	return filepath.Join(s.dir, "deps", key)
}

// Get fetches an entry by key.
func (s *Store) Get(key string) (*Entry, bool, error) {
	var e *Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(bucketEntries).Get([]byte(key))
		if data == nil {
			return nil
		}
		e = &Entry{}
		return msgpack.Unmarshal(data, e)
	})
	if err != nil {
		return nil, false, fmt.Errorf("read cache entry %s: %w", key, err)
	}
	return e, e != nil, nil
}

// Put stores an entry under its key.
func (s *Store) Put(e *Entry) error {
	data, err := msgpack.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Put([]byte(e.Key), data)
	})
	if err != nil {
		return fmt.Errorf("write cache entry %s: %w", e.Key, err)
	}
	return nil
}

// Delete removes an entry and its artifact directory. Used by cache-bypass
// builds to force fresh dependency compilation.
func (s *Store) Delete(key string) error {
	if err := os.RemoveAll(s.ArtifactDir(key)); err != nil {
		return fmt.Errorf("remove cache artifacts %s: %w", key, err)
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	return nil
}

// Touch updates LastUsed for hit tracking; failures are logged only.
func (s *Store) Touch(key string) {
	e, ok, err := s.Get(key)
	if err != nil || !ok {
		return
	}
	e.LastUsed = time.Now()
	if err := s.Put(e); err != nil {
		slog.Debug("cache touch failed", "key", key, "error", err)
	}
}

// Prune removes entries unused for longer than maxAge together with their
// artifact directories. Returns the number of entries removed.
func (s *Store) Prune(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)
	var stale []*Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketEntries).ForEach(func(_, v []byte) error {
			e := &Entry{}
			if err := msgpack.Unmarshal(v, e); err != nil {
				return err
			}
			if e.LastUsed.Before(cutoff) {
				stale = append(stale, e)
			}
			return nil
		})
	})
	if err != nil {
		return 0, fmt.Errorf("scan cache entries: %w", err)
	}

	removed := 0
	for _, e := range stale {
		if err := os.RemoveAll(e.Path); err != nil {
			slog.Warn("Failed to remove cache artifacts", "key", e.Key, "path", e.Path, "error", err)
			continue
		}
		err := s.db.Update(func(tx *bolt.Tx) error {
			return tx.Bucket(bucketEntries).Delete([]byte(e.Key))
		})
		if err != nil {
			return removed, fmt.Errorf("delete cache entry %s: %w", e.Key, err)
		}
		removed++
	}
	if removed > 0 {
		slog.Info("Pruned dependency cache", "removed", removed, "max_age", maxAge)
	}
	return removed, nil
}
