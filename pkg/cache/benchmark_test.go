package cache

import (
	"fmt"
	"testing"
)

func BenchmarkCacheGet(b *testing.B) {
	c := New(Options{MaxSize: 10000})
	for i := 0; i < 1000; i++ {
		c.Set(fmt.Sprintf("key%d", i), summary(fmt.Sprintf("M%d", i)))
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("key999")
	}
}

func BenchmarkStoreAnalyze(b *testing.B) {
	s := NewStore(Options{MaxSize: 10000}, "")
	g := earlyReturn("EarlyReturn")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Analyze(g)
	}
}
