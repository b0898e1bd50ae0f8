// Package dirty tracks which input files changed content since they were
// last analyzed. The watch loop uses it to skip events that leave a file's
// bytes untouched, such as editor saves without edits or chmod churn.
package dirty

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Tracker remembers the content hash of every file it has seen.
type Tracker struct {
	mu     sync.Mutex
	hashes map[string]string // absolute path -> sha256
}

// New creates an empty Tracker.
func New() *Tracker {
	return &Tracker{hashes: make(map[string]string)}
}

func computeHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file %s: %w", path, err)
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", fmt.Errorf("failed to hash file %s: %w", path, err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// Seen records the current content of path without reporting a change.
func (t *Tracker) Seen(path string) error {
	_, err := t.Changed(path)
	return err
}

// Changed hashes path and reports whether its content differs from the last
// recorded hash. A file seen for the first time counts as changed.
func (t *Tracker) Changed(path string) (bool, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false, fmt.Errorf("failed to get absolute path: %w", err)
	}
	hash, err := computeHash(absPath)
	if err != nil {
		return false, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if prev, ok := t.hashes[absPath]; ok && prev == hash {
		return false, nil
	}
	t.hashes[absPath] = hash
	return true, nil
}

// Filter returns the paths whose content changed, sorted. Files that can no
// longer be read are forgotten and left out.
func (t *Tracker) Filter(paths []string) []string {
	var changed []string
	for _, p := range paths {
		ok, err := t.Changed(p)
		if err != nil {
			t.Forget(p)
			continue
		}
		if ok {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)
	return changed
}

// Forget drops a file from tracking.
func (t *Tracker) Forget(path string) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.hashes, absPath)
}

// Len returns the number of tracked files.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.hashes)
}
