package scanner

import (
	"path"
	"strings"
)

// IgnorePattern is one line of a gitignore-style ignore file.
type IgnorePattern struct {
	raw      string
	negate   bool
	dirOnly  bool // trailing slash
	anchored bool // leading slash or a slash inside the pattern
	segments []string
}

// ParseIgnorePattern parses a gitignore-style pattern string.
func ParseIgnorePattern(line string) IgnorePattern {
	p := IgnorePattern{raw: line}
	if strings.HasPrefix(line, "!") {
		p.negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.dirOnly = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.anchored = true
		line = line[1:]
	} else if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") {
		p.anchored = true
	}
	p.segments = strings.Split(line, "/")
	return p
}

// String returns the pattern as written.
func (p IgnorePattern) String() string {
	return p.raw
}

// IsNegation reports whether the pattern re-includes what it matches.
func (p IgnorePattern) IsNegation() bool {
	return p.negate
}

// Match reports whether the slash-separated relative path is covered by
// the pattern, either directly or because one of its parent directories is.
func (p IgnorePattern) Match(rel string, isDir bool) bool {
	segs := strings.Split(strings.Trim(rel, "/"), "/")
	last := len(segs) - 1
	if p.anchored {
		last = 0
	}
	for start := 0; start <= last; start++ {
		for end := start + 1; end <= len(segs); end++ {
			if p.dirOnly && end == len(segs) && !isDir {
				continue
			}
			if matchSegments(p.segments, segs[start:end]) {
				return true
			}
		}
	}
	return false
}

// matchSegments matches the whole of segs; "**" spans any number of segments.
func matchSegments(pattern, segs []string) bool {
	if len(pattern) == 0 {
		return len(segs) == 0
	}
	if pattern[0] == "**" {
		for i := 0; i <= len(segs); i++ {
			if matchSegments(pattern[1:], segs[i:]) {
				return true
			}
		}
		return false
	}
	if len(segs) == 0 {
		return false
	}
	if ok, err := path.Match(pattern[0], segs[0]); err != nil || !ok {
		return false
	}
	return matchSegments(pattern[1:], segs[1:])
}
