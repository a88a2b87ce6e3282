package toolchain

import (
	"slices"
	"sync"

	"github.com/Norgate-AV/cdbpatch/internal/compiler"
)

// Store caches include directories by probe key
type Store interface {
	// Lookup returns the cached includes for key and whether key was present
	Lookup(key compiler.ProbeKey) ([]string, bool, error)

	// Save records the includes discovered for key
	Save(key compiler.ProbeKey, includes []string) error
}

// MemoryStore is an in-memory Store owned by a single worker.
// It is not safe for concurrent use.
type MemoryStore struct {
	entries map[string][]string
}

// NewMemoryStore creates an empty MemoryStore
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string][]string)}
}

func (s *MemoryStore) Lookup(key compiler.ProbeKey) ([]string, bool, error) {
	includes, ok := s.entries[key.String()]
	return includes, ok, nil
}

func (s *MemoryStore) Save(key compiler.ProbeKey, includes []string) error {
	s.entries[key.String()] = slices.Clone(includes)
	return nil
}

// Len returns the number of cached keys
func (s *MemoryStore) Len() int {
	return len(s.entries)
}

// SharedStore is an in-memory Store shared by all workers of a run
type SharedStore struct {
	mu      sync.RWMutex
	entries map[string][]string
}

// NewSharedStore creates an empty SharedStore
func NewSharedStore() *SharedStore {
	return &SharedStore{entries: make(map[string][]string)}
}

func (s *SharedStore) Lookup(key compiler.ProbeKey) ([]string, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	includes, ok := s.entries[key.String()]
	return includes, ok, nil
}

func (s *SharedStore) Save(key compiler.ProbeKey, includes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries[key.String()] = slices.Clone(includes)
	return nil
}

// Len returns the number of cached keys
func (s *SharedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.entries)
}

// LayeredStore consults Front first and falls back to Back.
// Hits in Back are copied into Front; saves go to both.
type LayeredStore struct {
	Front Store
	Back  Store
}

func (s *LayeredStore) Lookup(key compiler.ProbeKey) ([]string, bool, error) {
	includes, ok, err := s.Front.Lookup(key)
	if err != nil || ok {
		return includes, ok, err
	}

	includes, ok, err = s.Back.Lookup(key)
	if err != nil || !ok {
		return nil, false, err
	}

	if err := s.Front.Save(key, includes); err != nil {
		return nil, false, err
	}

	return includes, true, nil
}

func (s *LayeredStore) Save(key compiler.ProbeKey, includes []string) error {
	if err := s.Front.Save(key, includes); err != nil {
		return err
	}

	return s.Back.Save(key, includes)
}
