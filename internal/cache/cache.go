// Package cache provides a persistent store for toolchain probe results.
//
// Probing a compiler spawns a process per unique probe key, which adds up over
// repeated runs on large compilation databases. The cache keeps results
// across runs:
//
//  1. Keys are SHA256 hashes of the compiler binary's content and the probe
//     command as invoked, so upgrading a compiler invalidates its entries
//  2. Entries are stored as JSON in a BoltDB bucket
//  3. A compiler that cannot be located or read bypasses the cache
//
// Cache implements toolchain.Store and is safe for concurrent use.
package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"go.etcd.io/bbolt"

	"github.com/Norgate-AV/cdbpatch/internal/compiler"
)

const (
	// DefaultCacheDir is the default cache directory name
	DefaultCacheDir = ".cdbpatch-cache"

	// bucketName is the BoltDB bucket name for probe entries
	bucketName = "probes"

	dbFile = "probes.db"
)

// Cache manages probe results using BoltDB
type Cache struct {
	db   *bbolt.DB
	root string // Root directory for cache (.cdbpatch-cache/)

	compilers sync.Map // executable name -> *compilerDigest
}

type compilerDigest struct {
	path string
	hash string
	err  error
}

// New creates a new cache instance
// If cacheDir is empty, uses DefaultCacheDir in current working directory
func New(cacheDir string) (*Cache, error) {
	if cacheDir == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}

		cacheDir = filepath.Join(cwd, DefaultCacheDir)
	}

	// Ensure cache directory exists
	if err := os.MkdirAll(cacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	dbPath := filepath.Join(cacheDir, dbFile)
	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create cache bucket: %w", err)
	}

	return &Cache{
		db:   db,
		root: cacheDir,
	}, nil
}

// Close closes the cache database
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}

	return nil
}

// Root returns the cache directory
func (c *Cache) Root() string {
	return c.root
}

// Lookup returns the cached includes for key
// A compiler that cannot be hashed is always a miss
func (c *Cache) Lookup(key compiler.ProbeKey) ([]string, bool, error) {
	digest := c.compiler(key.Compiler())
	if digest.err != nil {
		return nil, false, nil
	}

	hash := HashProbe(digest.hash, key)

	var entry Entry
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data := b.Get([]byte(hash))
		if data == nil {
			return nil // Cache miss
		}

		return json.Unmarshal(data, &entry)
	})
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	if entry.Hash == "" {
		return nil, false, nil // Cache miss
	}

	return entry.Includes, true, nil
}

// Save stores the includes discovered for key
func (c *Cache) Save(key compiler.ProbeKey, includes []string) error {
	digest := c.compiler(key.Compiler())
	if digest.err != nil {
		return nil
	}

	hash := HashProbe(digest.hash, key)
	entry := Entry{
		Hash:         hash,
		Compiler:     digest.path,
		CompilerHash: digest.hash,
		Args:         key.Args(),
		Includes:     includes,
		Timestamp:    time.Now(),
	}

	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		data, err := json.Marshal(entry)
		if err != nil {
			return err
		}

		return b.Put([]byte(hash), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store cache entry: %w", err)
	}

	return nil
}

// compiler resolves and hashes an executable once per cache instance
func (c *Cache) compiler(name string) *compilerDigest {
	if v, ok := c.compilers.Load(name); ok {
		return v.(*compilerDigest)
	}

	digest := &compilerDigest{}
	digest.path, digest.err = exec.LookPath(name)
	if digest.err == nil {
		digest.hash, digest.err = HashFile(digest.path)
	}

	v, loaded := c.compilers.LoadOrStore(name, digest)
	if !loaded && digest.err != nil {
		log.Warnf("Not caching probes for %s: %v", name, digest.err)
	}

	return v.(*compilerDigest)
}

// Clear removes all cache entries
func (c *Cache) Clear() error {
	err := c.db.Update(func(tx *bbolt.Tx) error {
		return tx.DeleteBucket([]byte(bucketName))
	})
	if err != nil {
		return err
	}

	// Recreate bucket
	return c.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucket([]byte(bucketName))
		return err
	})
}

// Stats returns the number of entries and the database size in bytes
func (c *Cache) Stats() (int, int64, error) {
	var count int

	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))

		count = b.Stats().KeyN
		return nil
	})
	if err != nil {
		return 0, 0, err
	}

	info, err := os.Stat(filepath.Join(c.root, dbFile))
	if err != nil {
		return 0, 0, err
	}

	return count, info.Size(), nil
}
