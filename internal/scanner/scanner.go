// Package scanner finds analyzable inputs (C# sources and YAML graph
// descriptions) under a set of paths. It respects .lvaignore files with
// gitignore-style patterns.
package scanner

import (
	"bufio"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FileInfo represents information about a discovered file.
type FileInfo struct {
	Path     string // Relative path from the scan root
	FullPath string
	Kind     Kind
	Size     int64
}

// Options configures the scanner behavior.
type Options struct {
	SkipHidden      bool     // Skip hidden files and directories (starting with .)
	Extensions      []string // Accepted extensions; empty accepts every known Kind
	DefaultExcludes []string // Directory names never entered
	IgnoreFileName  string
}

// DefaultOptions returns scanner options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		SkipHidden:     true,
		IgnoreFileName: ".lvaignore",
		DefaultExcludes: []string{
			".git",
			".vs",
			".idea",
			".vscode",
			"bin",
			"obj",
			"packages",
			"node_modules",
			"TestResults",
		},
	}
}

// Scanner provides file tree scanning capabilities.
type Scanner struct {
	opts Options
}

// New creates a new Scanner with the given options.
func New(opts Options) *Scanner {
	return &Scanner{opts: opts}
}

// Accepts reports whether a file name is an input this scanner collects.
func (s *Scanner) Accepts(path string) bool {
	if DetectKind(path) == KindUnknown {
		return false
	}
	if len(s.opts.Extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range s.opts.Extensions {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// Scan recursively scans root and returns the accepted files sorted by path.
func (s *Scanner) Scan(root string) ([]FileInfo, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	var files []FileInfo
	err = s.walk(absRoot, func(path string, d fs.DirEntry) {
		if path == absRoot || d.IsDir() || !d.Type().IsRegular() || !s.Accepts(path) {
			return
		}
		info, err := d.Info()
		if err != nil {
			return
		}
		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return
		}
		files = append(files, FileInfo{
			Path:     filepath.ToSlash(relPath),
			FullPath: path,
			Kind:     DetectKind(path),
			Size:     info.Size(),
		})
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })
	return files, nil
}

// Dirs returns root and every directory below it that Scan would enter,
// sorted. Watchers register these to see files created later.
func (s *Scanner) Dirs(root string) ([]string, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("getting absolute path: %w", err)
	}

	var dirs []string
	err = s.walk(absRoot, func(path string, d fs.DirEntry) {
		if d.IsDir() {
			dirs = append(dirs, path)
		}
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(dirs)
	return dirs, nil
}

// walk visits absRoot and every entry below it that survives the hidden,
// default-exclude and ignore-file rules.
func (s *Scanner) walk(absRoot string, visit func(path string, d fs.DirEntry)) error {
	ignore := map[string][]IgnorePattern{}
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped
			return nil
		}
		if path == absRoot {
			if d.IsDir() {
				ignore[path] = s.loadIgnorePatterns(path)
			}
			visit(path, d)
			return nil
		}

		if s.opts.SkipHidden && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() && s.isDefaultExcluded(d.Name()) {
			return filepath.SkipDir
		}
		if s.ignored(absRoot, path, d.IsDir(), ignore) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			ignore[path] = s.loadIgnorePatterns(path)
		}
		visit(path, d)
		return nil
	})
	if err != nil {
		return fmt.Errorf("walking directory: %w", err)
	}
	return nil
}

// ScanPaths expands a mix of files and directories. Files named explicitly
// are kept when their kind is known, whatever the extension filter says.
func (s *Scanner) ScanPaths(paths []string) ([]FileInfo, error) {
	var out []FileInfo
	seen := map[string]bool{}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			kind := DetectKind(p)
			if kind == KindUnknown {
				return nil, fmt.Errorf("%s: unsupported input kind", p)
			}
			full, err := filepath.Abs(p)
			if err != nil {
				return nil, fmt.Errorf("getting absolute path: %w", err)
			}
			if !seen[full] {
				seen[full] = true
				out = append(out, FileInfo{Path: filepath.ToSlash(p), FullPath: full, Kind: kind, Size: info.Size()})
			}
			continue
		}
		found, err := s.Scan(p)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			if !seen[f.FullPath] {
				seen[f.FullPath] = true
				out = append(out, f)
			}
		}
	}
	return out, nil
}

func (s *Scanner) isDefaultExcluded(name string) bool {
	for _, exclude := range s.opts.DefaultExcludes {
		if strings.EqualFold(name, exclude) {
			return true
		}
	}
	return false
}

// ignored applies the ignore files of every directory between root and
// path, outermost first, so that deeper files and later lines win.
func (s *Scanner) ignored(root, path string, isDir bool, patterns map[string][]IgnorePattern) bool {
	result := false
	dir := filepath.Dir(path)
	var chain []string
	for {
		chain = append(chain, dir)
		if dir == root || len(dir) <= len(root) {
			break
		}
		dir = filepath.Dir(dir)
	}
	for i := len(chain) - 1; i >= 0; i-- {
		base := chain[i]
		rel, err := filepath.Rel(base, path)
		if err != nil {
			continue
		}
		for _, p := range patterns[base] {
			if p.Match(filepath.ToSlash(rel), isDir) {
				result = !p.IsNegation()
			}
		}
	}
	return result
}

func (s *Scanner) loadIgnorePatterns(dir string) []IgnorePattern {
	if s.opts.IgnoreFileName == "" {
		return nil
	}
	file, err := os.Open(filepath.Join(dir, s.opts.IgnoreFileName))
	if err != nil {
		return nil
	}
	defer file.Close()

	var patterns []IgnorePattern
	sc := bufio.NewScanner(file)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, ParseIgnorePattern(line))
	}
	return patterns
}

// Scan is a convenience function that scans a directory with default options.
func Scan(root string) ([]FileInfo, error) {
	return New(DefaultOptions()).Scan(root)
}
