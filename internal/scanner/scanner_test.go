package scanner

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for path, content := range files {
		fullPath := filepath.Join(root, path)
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			t.Fatalf("Failed to create directory: %v", err)
		}
		if err := os.WriteFile(fullPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to create file: %v", err)
		}
	}
}

func paths(files []FileInfo) []string {
	out := make([]string, 0, len(files))
	for _, f := range files {
		out = append(out, f.Path)
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestScannerScan(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"Program.cs":             "class P {}",
		"Lib/Util.cs":            "class U {}",
		"graphs/early.yaml":      "method: M",
		"graphs/loop.yml":        "method: L",
		"README.md":              "# Test",
		".hidden/Secret.cs":      "class S {}",
		"bin/Debug/Generated.cs": "class G {}",
		"obj/Temp.cs":            "class T {}",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	want := []string{"Lib/Util.cs", "Program.cs", "graphs/early.yaml", "graphs/loop.yml"}
	if got := paths(results); !equal(got, want) {
		t.Fatalf("Scan() = %v, want %v", got, want)
	}

	kinds := map[string]Kind{}
	for _, f := range results {
		kinds[f.Path] = f.Kind
		if !filepath.IsAbs(f.FullPath) {
			t.Errorf("FullPath %q is not absolute", f.FullPath)
		}
	}
	if kinds["Program.cs"] != KindCSharp || kinds["graphs/loop.yml"] != KindGraph {
		t.Errorf("unexpected kinds: %v", kinds)
	}
}

func TestScannerExtensionFilter(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"A.cs":       "class A {}",
		"g.yaml":     "method: M",
		"notes.txt":  "x",
		"sub/B.CS":   "class B {}",
		"sub/h.yaml": "method: H",
	})

	opts := DefaultOptions()
	opts.Extensions = []string{".cs"}
	results, err := New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got, want := paths(results), []string{"A.cs", "sub/B.CS"}; !equal(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}

func TestScannerWithLvaignore(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		".lvaignore":              "# generated code\n*.g.cs\ngenerated/\n!keep.g.cs\n",
		"App.cs":                  "class A {}",
		"App.g.cs":                "class AG {}",
		"keep.g.cs":               "class K {}",
		"generated/Model.cs":      "class M {}",
		"src/.lvaignore":          "/Legacy.cs\n",
		"src/Legacy.cs":           "class L {}",
		"src/Current.cs":          "class C {}",
		"src/deep/Legacy.cs":      "class DL {}",
		"src/deep/View.g.cs":      "class V {}",
		"other/generated/Keep.cs": "class X {}",
	})

	results, err := New(DefaultOptions()).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	want := []string{"App.cs", "keep.g.cs", "src/Current.cs", "src/deep/Legacy.cs"}
	if got := paths(results); !equal(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}

func TestScannerDirs(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		".lvaignore":         "generated/\n",
		"App.cs":             "class A {}",
		"src/deep/Deep.cs":   "class D {}",
		"generated/Model.cs": "class M {}",
		".git/HEAD":          "ref",
		"obj/Temp.cs":        "class T {}",
	})
	// empty directories are watched too
	if err := os.MkdirAll(filepath.Join(tmpDir, "empty", "nested"), 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	dirs, err := New(DefaultOptions()).Dirs(tmpDir)
	if err != nil {
		t.Fatalf("Dirs failed: %v", err)
	}
	root, err := filepath.Abs(tmpDir)
	if err != nil {
		t.Fatal(err)
	}
	var got []string
	for _, d := range dirs {
		rel, err := filepath.Rel(root, d)
		if err != nil {
			t.Fatalf("Rel(%s): %v", d, err)
		}
		got = append(got, filepath.ToSlash(rel))
	}
	want := []string{".", "empty", "empty/nested", "src", "src/deep"}
	if !equal(got, want) {
		t.Errorf("Dirs() = %v, want %v", got, want)
	}
}

func TestScannerSkipHidden(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"Visible.cs":        "class V {}",
		".Hidden.cs":        "class H {}",
		".config/Inside.cs": "class I {}",
	})

	opts := DefaultOptions()
	opts.SkipHidden = false
	results, err := New(opts).Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got, want := paths(results), []string{".Hidden.cs", ".config/Inside.cs", "Visible.cs"}; !equal(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}

	results, err = Scan(tmpDir)
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if got, want := paths(results), []string{"Visible.cs"}; !equal(got, want) {
		t.Errorf("Scan() = %v, want %v", got, want)
	}
}

func TestScanPaths(t *testing.T) {
	tmpDir := t.TempDir()
	writeTree(t, tmpDir, map[string]string{
		"dir/A.cs":   "class A {}",
		"dir/B.cs":   "class B {}",
		"single.yml": "method: M",
		"notes.txt":  "x",
	})

	s := New(DefaultOptions())
	results, err := s.ScanPaths([]string{
		filepath.Join(tmpDir, "dir"),
		filepath.Join(tmpDir, "single.yml"),
		filepath.Join(tmpDir, "dir", "A.cs"),
	})
	if err != nil {
		t.Fatalf("ScanPaths failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("ScanPaths() returned %d files, want 3 (duplicates folded)", len(results))
	}
	if results[2].Kind != KindGraph {
		t.Errorf("explicit file kind = %q, want graph", results[2].Kind)
	}

	if _, err := s.ScanPaths([]string{filepath.Join(tmpDir, "notes.txt")}); err == nil {
		t.Error("ScanPaths(notes.txt) expected an unsupported kind error")
	}
	if _, err := s.ScanPaths([]string{filepath.Join(tmpDir, "missing")}); err == nil {
		t.Error("ScanPaths(missing) expected an error")
	}
}

func TestDetectKind(t *testing.T) {
	tests := []struct {
		path string
		want Kind
	}{
		{"a.cs", KindCSharp},
		{"A.CS", KindCSharp},
		{"g.yaml", KindGraph},
		{"g.yml", KindGraph},
		{"main.go", KindUnknown},
		{"Makefile", KindUnknown},
	}
	for _, tt := range tests {
		if got := DetectKind(tt.path); got != tt.want {
			t.Errorf("DetectKind(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestIgnorePattern(t *testing.T) {
	tests := []struct {
		pattern string
		path    string
		isDir   bool
		match   bool
	}{
		{"*.cs", "File.cs", false, true},
		{"*.cs", "dir/File.cs", false, true},
		{"*.cs", "file.txt", false, false},
		{"build/", "build/file.cs", false, true},
		{"build/", "other/build/file.cs", false, true},
		{"build/", "builder.cs", false, false},
		{"build/", "build", true, true},
		{"build/", "build", false, false},

		{"/build/", "build/file.cs", false, true},
		{"/build/", "src/build/file.cs", false, false},

		{"*.g.cs", "View.g.cs", false, true},
		{"*.g.cs", "deep/View.g.cs", false, true},
		{"src/*.cs", "src/app.cs", false, true},
		{"src/*.cs", "src/deep/app.cs", false, false},
		{"src/*.cs", "other/src/app.cs", false, false},

		{"**/test/**", "test/file.cs", false, true},
		{"**/test/**", "src/test/file.cs", false, true},
		{"**/test/**", "src/deep/test/file.cs", false, true},
		{"**/test/**", "testing/file.cs", false, false},

		{"file?.cs", "file1.cs", false, true},
		{"file?.cs", "file12.cs", false, false},
		{"[ab].cs", "a.cs", false, true},

		{"!*.cs", "file.cs", false, true},
	}

	for _, tt := range tests {
		pattern := ParseIgnorePattern(tt.pattern)
		if got := pattern.Match(tt.path, tt.isDir); got != tt.match {
			t.Errorf("Pattern %q matching %q (dir=%v): got %v, want %v", tt.pattern, tt.path, tt.isDir, got, tt.match)
		}
	}
	if !ParseIgnorePattern("!x").IsNegation() {
		t.Error("!x should be a negation")
	}
}
