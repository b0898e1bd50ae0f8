package cache

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/l3aro/go-liveness/pkg/lva"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func summary(method string) *lva.Summary {
	return &lva.Summary{
		Method:      method,
		Fingerprint: "fp-" + method,
		Blocks: []lva.BlockSummary{
			{Ordinal: 0, Kind: cfg.BlockKindEntry, LiveIn: []string{"x"}, LiveOut: []string{"x"}},
			{Ordinal: 1, Kind: cfg.BlockKindExit},
		},
	}
}

// if (p) return; Use(x);
func earlyReturn(name string) *cfg.Graph {
	b := cfg.NewBuilder(name)
	p := b.Parameter("p")
	x := b.Parameter("x")
	b1 := b.NewBlock()
	b2 := b.NewBlock(cfg.Call(cfg.Ref(x)))
	b.Goto(b.Entry(), b1)
	b.Branch(b1, cfg.Ref(p), cfg.ConditionWhenFalse, b2)
	b.Return(b1, nil)
	b.Goto(b2, b.Exit())
	return b.MustBuild()
}

func TestLRUCache_Basic(t *testing.T) {
	c := New(Options{MaxSize: 3})

	a, b := summary("A"), summary("B")
	c.Set("a", a)
	c.Set("b", b)
	assert.Equal(t, 2, c.Len())

	got, found := c.Get("a")
	require.True(t, found)
	assert.Same(t, a, got)

	_, err := c.Lookup("missing")
	assert.ErrorIs(t, err, ErrKeyNotFound)
}

func TestLRUCache_LRU_Eviction(t *testing.T) {
	var evicted []string
	c := New(Options{
		MaxSize: 3,
		OnEvict: func(key string, _ *lva.Summary) { evicted = append(evicted, key) },
	})

	c.Set("a", summary("A"))
	c.Set("b", summary("B"))
	c.Set("c", summary("C"))

	// a becomes most recently used
	c.Get("a")
	c.Set("d", summary("D"))

	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []string{"b"}, evicted)
	assert.Equal(t, []string{"d", "a", "c"}, c.Keys())
	assert.Equal(t, int64(1), c.Stats().Evictions)
}

func TestLRUCache_MaxBytes(t *testing.T) {
	one := estimateSize(summary("A"))
	require.Greater(t, one, 0)

	c := New(Options{MaxBytes: int64(2*one + one/2)})
	c.Set("a", summary("A"))
	c.Set("b", summary("B"))
	c.Set("c", summary("C"))

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"c", "b"}, c.Keys())
	assert.LessOrEqual(t, c.CurrentBytes(), int64(2*one+one/2))
}

func TestLRUCache_DeleteAndUpdate(t *testing.T) {
	c := New(Options{MaxSize: 10})
	c.Set("a", summary("A"))
	c.Set("b", summary("B"))

	c.Delete("a")
	c.Delete("missing")
	assert.Equal(t, []string{"b"}, c.Keys())

	updated := summary("B2")
	c.Set("b", updated)
	got, _ := c.Get("b")
	assert.Same(t, updated, got)
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, int64(estimateSize(updated)), c.CurrentBytes())
}

func TestLRUCache_Stats(t *testing.T) {
	c := New(Options{MaxSize: 10})
	c.Set("a", summary("A"))
	c.Get("a")
	c.Get("b")

	stats := c.Stats()
	assert.Equal(t, 1, stats.Length)
	assert.Equal(t, int64(1), stats.HitCount)
	assert.Equal(t, int64(1), stats.MissCount)
	assert.Equal(t, 0.5, c.HitRate())

	c.Clear()
	assert.Equal(t, Stats{}, c.Stats())
	assert.Equal(t, float64(0), c.HitRate())
}

func TestLRUCache_SaveLoad(t *testing.T) {
	c := New(Options{MaxSize: 10})
	c.Set("a", summary("A"))
	c.Set("b", summary("B"))
	c.Get("a")

	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	c2 := New(Options{MaxSize: 10})
	require.NoError(t, c2.Load(&buf))

	assert.Equal(t, []string{"a", "b"}, c2.Keys())
	got, found := c2.Get("b")
	require.True(t, found)
	assert.Equal(t, summary("B").String(), got.String())
	assert.Equal(t, c.CurrentBytes(), c2.CurrentBytes())
}

func TestLRUCache_LoadAppliesLimits(t *testing.T) {
	c := New(Options{})
	for i := 0; i < 5; i++ {
		c.Set(fmt.Sprintf("k%d", i), summary(fmt.Sprintf("M%d", i)))
	}
	var buf bytes.Buffer
	require.NoError(t, c.Save(&buf))

	small := New(Options{MaxSize: 2})
	require.NoError(t, small.Load(&buf))
	assert.Equal(t, []string{"k4", "k3"}, small.Keys())
}

func TestLoadRejectsIncompatibleFormat(t *testing.T) {
	tests := []struct {
		name   string
		format string
	}{
		{"next major", "2.0.0"},
		{"not a version", "latest"},
		{"missing", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := msgpack.Marshal(&fileHeader{Format: tt.format})
			require.NoError(t, err)

			c := New(Options{})
			err = c.Load(bytes.NewReader(data))
			assert.ErrorIs(t, err, ErrIncompatibleFormat)
		})
	}
}

func TestLoadAcceptsOlderMinor(t *testing.T) {
	data, err := msgpack.Marshal(&fileHeader{
		Format:  "1.0.0",
		Entries: []Entry{{Key: "a", Summary: summary("A")}},
	})
	require.NoError(t, err)

	c := New(Options{})
	require.NoError(t, c.Load(bytes.NewReader(data)))
	assert.Equal(t, 1, c.Len())
}

func TestLoadRejectsGarbage(t *testing.T) {
	c := New(Options{})
	assert.Error(t, c.Load(bytes.NewReader([]byte{0xc1})))
}

func TestStore_Analyze(t *testing.T) {
	s := NewStore(Options{MaxSize: 10}, "")

	first, cached := s.Analyze(earlyReturn("EarlyReturn"))
	assert.False(t, cached)
	assert.Equal(t, "EarlyReturn", first.Method)

	// a structurally identical graph shares the fingerprint
	second, cached := s.Analyze(earlyReturn("EarlyReturn"))
	assert.True(t, cached)
	assert.Same(t, first, second)

	_, cached = s.Analyze(earlyReturn("Renamed"))
	assert.False(t, cached)
	assert.Equal(t, 2, s.Cache().Len())

	assert.Error(t, s.Save(), "no path configured")
}

func TestStore_Persistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "lva.cache")

	s := NewStore(Options{MaxSize: 10}, path)
	require.NoError(t, s.Load(), "missing file is not an error")
	want, _ := s.Analyze(earlyReturn("EarlyReturn"))
	require.NoError(t, s.Save())
	_, err := os.Stat(path)
	require.NoError(t, err)

	s2 := NewStore(Options{MaxSize: 10}, path)
	require.NoError(t, s2.Load())
	got, cached := s2.Analyze(earlyReturn("EarlyReturn"))
	assert.True(t, cached)
	assert.Equal(t, want.String(), got.String())

	s2.Clear()
	require.NoError(t, s2.Save())
	s3 := NewStore(Options{}, path)
	require.NoError(t, s3.Load())
	assert.Equal(t, 0, s3.Cache().Len())
}

func TestStore_LoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "lva.cache")
	require.NoError(t, os.WriteFile(path, []byte("not msgpack"), 0644))

	s := NewStore(Options{}, path)
	err := s.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
}
