package lva

import (
	"testing"

	"github.com/l3aro/go-liveness/pkg/cfg"
	"github.com/stretchr/testify/assert"
)

func ordinals(blocks []*cfg.BasicBlock) []int {
	out := make([]int, len(blocks))
	for i, b := range blocks {
		out[i] = b.Ordinal
	}
	return out
}

// try { try { B2 } finally { B3 } } finally { B4 } B5
func TestSuccessorsNestedFinally(t *testing.T) {
	b := cfg.NewBuilder("NestedFinally")
	b1 := b.NewBlock()
	b.EnterRegion(cfg.RegionTryAndFinally)
	b.EnterRegion(cfg.RegionTry)
	b.EnterRegion(cfg.RegionTryAndFinally)
	b.EnterRegion(cfg.RegionTry)
	b2 := b.NewBlock()
	b.LeaveRegion()
	b.EnterRegion(cfg.RegionFinally)
	b3 := b.NewBlock()
	b.LeaveRegion()
	b.LeaveRegion()
	b.LeaveRegion()
	b.EnterRegion(cfg.RegionFinally)
	b4 := b.NewBlock()
	b.LeaveRegion()
	b.LeaveRegion()
	b5 := b.NewBlock()
	b.Goto(b.Entry(), b1)
	b.Goto(b1, b2)
	b.Goto(b2, b5)
	b.EndHandler(b3)
	b.EndHandler(b4)
	b.Goto(b5, b.Exit())
	g := b.MustBuild()

	s := ResolveSuccessors(g)
	assert.Equal(t, []int{2}, ordinals(s.Of(b1)))
	// Only the innermost finally is reached directly from the try.
	assert.Equal(t, []int{3, 5}, ordinals(s.Of(b2)))
	assert.Equal(t, []int{4, 5}, ordinals(s.Of(b3)))
	assert.Equal(t, []int{5}, ordinals(s.Of(b4)))
	assert.Empty(t, s.Of(g.Exit()))
	assert.Equal(t, []int{2, 3, 4}, ordinals(s.Predecessors(b5)))
}

// try { try { B2 } catch { B3 } } catch { B4 } B5
func TestSuccessorsNestedCatch(t *testing.T) {
	b := cfg.NewBuilder("NestedCatch")
	b1 := b.NewBlock()
	b.EnterRegion(cfg.RegionTryAndCatch)
	b.EnterRegion(cfg.RegionTry)
	b.EnterRegion(cfg.RegionTryAndCatch)
	b.EnterRegion(cfg.RegionTry)
	b2 := b.NewBlock()
	b.LeaveRegion()
	b.EnterRegion(cfg.RegionCatch)
	b3 := b.NewBlock()
	b.LeaveRegion()
	b.LeaveRegion()
	b.LeaveRegion()
	b.EnterRegion(cfg.RegionCatch)
	b4 := b.NewBlock()
	b.LeaveRegion()
	b.LeaveRegion()
	b5 := b.NewBlock()
	b.Goto(b.Entry(), b1)
	b.Goto(b1, b2)
	b.Goto(b2, b5)
	b.Goto(b3, b5)
	b.Goto(b4, b5)
	b.Goto(b5, b.Exit())
	g := b.MustBuild()

	s := ResolveSuccessors(g)
	// A catch may not match, so the walk continues to the outer handler.
	assert.Equal(t, []int{3, 4, 5}, ordinals(s.Of(b2)))
	assert.Equal(t, []int{4, 5}, ordinals(s.Of(b3)))
	assert.Equal(t, []int{5}, ordinals(s.Of(b4)))
}

// try { B1 } catch when (B2) { B3 } catch { B4 } B5
func TestSuccessorsFilter(t *testing.T) {
	b := cfg.NewBuilder("Filter")
	e := b.Local("e")
	b.EnterRegion(cfg.RegionTryAndCatch)
	b.EnterRegion(cfg.RegionTry)
	b1 := b.NewBlock()
	b.LeaveRegion()
	b.EnterRegion(cfg.RegionFilter)
	b2 := b.NewBlock(cfg.Assign(cfg.Ref(e), cfg.CaughtException()))
	b.LeaveRegion()
	b.EnterRegion(cfg.RegionCatch)
	b3 := b.NewBlock(cfg.Call(cfg.Ref(e)))
	b.LeaveRegion()
	b.EnterRegion(cfg.RegionCatch)
	b4 := b.NewBlock()
	b.LeaveRegion()
	b.LeaveRegion()
	b5 := b.NewBlock()
	b.Goto(b.Entry(), b1)
	b.Goto(b1, b5)
	b.FilterReject(b2, cfg.Member(cfg.Ref(e), "Handled"))
	b.Goto(b2, b3)
	b.Goto(b3, b5)
	b.Goto(b4, b5)
	b.Goto(b5, b.Exit())
	g := b.MustBuild()

	s := ResolveSuccessors(g)
	// The filter replaces its catch as the handler entry.
	assert.Equal(t, []int{2, 4, 5}, ordinals(s.Of(b1)))
	// A rejecting filter moves on to the next handler.
	assert.Equal(t, []int{3, 4}, ordinals(s.Of(b2)))

	r := Solve(g)
	assert.False(t, r.IsLiveIn(b2, e))
	assert.True(t, r.IsLiveOut(b2, e))
	assert.True(t, r.IsLiveIn(b3, e))
}

// A throw inside a try with only catch handlers reaches the handler and no
// continuation is added for blocks outside any finally.
func TestSuccessorsThrowInTry(t *testing.T) {
	b := cfg.NewBuilder("Throw")
	x := b.Parameter("x")
	b.EnterRegion(cfg.RegionTryAndCatch)
	b.EnterRegion(cfg.RegionTry)
	b1 := b.NewBlock()
	b.LeaveRegion()
	b.EnterRegion(cfg.RegionCatch)
	b2 := b.NewBlock(cfg.Call(cfg.Ref(x)))
	b.LeaveRegion()
	b.LeaveRegion()
	b3 := b.NewBlock()
	b.Goto(b.Entry(), b1)
	b.Throw(b1, cfg.New())
	b.Throw(b2, nil)
	b.Goto(b3, b.Exit())
	g := b.MustBuild()

	s := ResolveSuccessors(g)
	assert.Equal(t, []int{2}, ordinals(s.Of(b1)))
	assert.Empty(t, s.Of(b2))

	r := Solve(g)
	assert.True(t, r.IsLiveIn(b1, x))
	assert.Empty(t, r.LiveIn(b3))
}
