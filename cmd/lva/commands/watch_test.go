package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/l3aro/go-liveness/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatchDirsIncludesSubdirectories(t *testing.T) {
	dir := sandbox(t)
	src := filepath.Join(dir, "src")
	require.NoError(t, os.MkdirAll(filepath.Join(src, "deep", "empty"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(src, "bin"), 0755))
	writeFile(t, src, "A.cs", sample)
	other := filepath.Join(dir, "other")
	require.NoError(t, os.MkdirAll(other, 0755))
	single := writeFile(t, other, "B.cs", sample)

	w := &watcher{scanner: scanner.New(scanner.DefaultOptions())}
	dirs, err := w.watchDirs([]string{"src", single})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{
		src,
		filepath.Join(src, "deep"),
		filepath.Join(src, "deep", "empty"),
		other,
	}, dirs)
	assert.Equal(t, []string{src}, w.roots)
	assert.Equal(t, []string{single}, w.files)
}

func TestWatchDirsMissingInput(t *testing.T) {
	sandbox(t)
	w := &watcher{scanner: scanner.New(scanner.DefaultOptions())}
	_, err := w.watchDirs([]string{"missing"})
	assert.Error(t, err)
}

func TestWatcherInScope(t *testing.T) {
	dir := sandbox(t)
	root := filepath.Join(dir, "src")
	named := filepath.Join(dir, "other", "Named.cs")

	opts := scanner.DefaultOptions()
	opts.Extensions = []string{".cs"}
	w := &watcher{
		scanner: scanner.New(opts),
		roots:   []string{root},
		files:   []string{named},
	}

	tests := []struct {
		name string
		path string
		want bool
	}{
		{"file under root", filepath.Join(root, "A.cs"), true},
		{"file in nested directory", filepath.Join(root, "deep", "er", "B.cs"), true},
		{"relative path under root", filepath.Join("src", "C.cs"), true},
		{"named file", named, true},
		{"sibling of named file", filepath.Join(dir, "other", "Sibling.cs"), false},
		{"root prefix is not a parent", filepath.Join(dir, "src2", "D.cs"), false},
		{"filtered extension", filepath.Join(root, "graph.yaml"), false},
		{"unknown kind", filepath.Join(root, "notes.txt"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, w.inScope(tt.path))
		})
	}
}
