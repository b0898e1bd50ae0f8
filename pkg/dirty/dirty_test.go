package dirty

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_Changed(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "A.cs")
	require.NoError(t, os.WriteFile(testFile, []byte("class A { }"), 0644))

	tracker := New()

	changed, err := tracker.Changed(testFile)
	require.NoError(t, err)
	assert.True(t, changed, "first sighting counts as a change")

	changed, err = tracker.Changed(testFile)
	require.NoError(t, err)
	assert.False(t, changed)

	require.NoError(t, os.WriteFile(testFile, []byte("class A { void M() { } }"), 0644))
	changed, err = tracker.Changed(testFile)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, 1, tracker.Len())
}

func TestTracker_ChangedMissingFile(t *testing.T) {
	tracker := New()
	_, err := tracker.Changed(filepath.Join(t.TempDir(), "missing.cs"))
	assert.Error(t, err)
	assert.Equal(t, 0, tracker.Len())
}

func TestTracker_Seen(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "A.cs")
	require.NoError(t, os.WriteFile(testFile, []byte("class A { }"), 0644))

	tracker := New()
	require.NoError(t, tracker.Seen(testFile))

	changed, err := tracker.Changed(testFile)
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestTracker_Filter(t *testing.T) {
	tmpDir := t.TempDir()
	a := filepath.Join(tmpDir, "a.cs")
	b := filepath.Join(tmpDir, "b.cs")
	gone := filepath.Join(tmpDir, "gone.cs")
	for _, p := range []string{a, b, gone} {
		require.NoError(t, os.WriteFile(p, []byte(p), 0644))
	}

	tracker := New()
	assert.Equal(t, []string{a, b, gone}, tracker.Filter([]string{gone, b, a}))

	require.NoError(t, os.WriteFile(b, []byte("edited"), 0644))
	require.NoError(t, os.Remove(gone))

	assert.Equal(t, []string{b}, tracker.Filter([]string{a, b, gone}))
	assert.Equal(t, 2, tracker.Len())
}

func TestTracker_Forget(t *testing.T) {
	tmpDir := t.TempDir()
	testFile := filepath.Join(tmpDir, "A.cs")
	require.NoError(t, os.WriteFile(testFile, []byte("class A { }"), 0644))

	tracker := New()
	require.NoError(t, tracker.Seen(testFile))
	tracker.Forget(testFile)
	assert.Equal(t, 0, tracker.Len())

	changed, err := tracker.Changed(testFile)
	require.NoError(t, err)
	assert.True(t, changed)
}
