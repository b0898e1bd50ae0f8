package cache

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/l3aro/go-liveness/pkg/lva"
	"github.com/vmihailenco/msgpack/v5"
)

// FormatVersion is the version of the on-disk cache layout.
const FormatVersion = "1.1.0"

// formatConstraint lists the layouts this build can read.
const formatConstraint = "^1.0.0"

// ErrIncompatibleFormat is returned when a cache file was written by an
// incompatible layout version.
var ErrIncompatibleFormat = errors.New("incompatible cache format")

type fileHeader struct {
	Format  string  `msgpack:"format"`
	Entries []Entry `msgpack:"entries"`
}

// Save writes every entry to w, least recently used first.
func (c *LRUCache) Save(w io.Writer) error {
	data := fileHeader{
		Format:  FormatVersion,
		Entries: c.entries(),
	}
	if err := msgpack.NewEncoder(w).Encode(&data); err != nil {
		return fmt.Errorf("failed to encode cache: %w", err)
	}
	return nil
}

// Load replaces the cache contents with the entries read from r.
func (c *LRUCache) Load(r io.Reader) error {
	var data fileHeader
	if err := msgpack.NewDecoder(r).Decode(&data); err != nil {
		return fmt.Errorf("failed to decode cache: %w", err)
	}
	if err := checkFormat(data.Format); err != nil {
		return err
	}
	c.restore(data.Entries)
	return nil
}

func checkFormat(format string) error {
	v, err := semver.NewVersion(format)
	if err != nil {
		return fmt.Errorf("%w: bad version %q", ErrIncompatibleFormat, format)
	}
	constraint, err := semver.NewConstraint(formatConstraint)
	if err != nil {
		return err
	}
	if !constraint.Check(v) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrIncompatibleFormat, v, formatConstraint)
	}
	return nil
}

// Store is an LRU cache bound to a file on disk. It memoizes liveness
// summaries by graph fingerprint.
type Store struct {
	cache *LRUCache
	mu    sync.Mutex
	path  string
	dirty bool
}

// NewStore creates a store. An empty path disables persistence.
func NewStore(opts Options, path string) *Store {
	return &Store{
		cache: New(opts),
		path:  path,
	}
}

// Cache returns the underlying LRU cache.
func (s *Store) Cache() *LRUCache {
	return s.cache
}

// Path returns the persistence path.
func (s *Store) Path() string {
	return s.path
}

// Analyze returns the summary for g, solving it only on a cache miss.
// The boolean reports whether the summary came from the cache.
func (s *Store) Analyze(g *cfg.Graph) (*lva.Summary, bool) {
	key := g.Fingerprint()
	if sum, ok := s.cache.Get(key); ok {
		return sum, true
	}
	sum := lva.Solve(g).Summary()
	s.cache.Set(key, sum)

	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
	return sum, false
}

// Clear drops every entry.
func (s *Store) Clear() {
	s.cache.Clear()
	s.mu.Lock()
	s.dirty = true
	s.mu.Unlock()
}

// Load restores the store from disk. A missing file is not an error.
func (s *Store) Load() error {
	if s.path == "" {
		return nil
	}
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to open cache file: %w", err)
	}
	defer f.Close()

	if err := s.cache.Load(f); err != nil {
		return fmt.Errorf("%s: %w", s.path, err)
	}
	return nil
}

// Save persists the store when it changed since the last Load or Save.
func (s *Store) Save() error {
	if s.path == "" {
		return errors.New("no persistence path set")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dirty {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create cache file: %w", err)
	}
	if err := s.cache.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write cache file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace cache file: %w", err)
	}
	s.dirty = false
	return nil
}
