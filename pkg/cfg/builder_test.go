package cfg

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// if (p) return; Use(x);
func earlyReturn() *Graph {
	b := NewBuilder("EarlyReturn")
	p := b.Parameter("p")
	x := b.Parameter("x")
	b1 := b.NewBlock()
	b2 := b.NewBlock(Call(Ref(x)))
	b.Goto(b.Entry(), b1)
	b.Branch(b1, Ref(p), ConditionWhenFalse, b2)
	b.Return(b1, nil)
	b.Goto(b2, b.Exit())
	return b.MustBuild()
}

func TestBuilder(t *testing.T) {
	g := earlyReturn()

	require.Len(t, g.Blocks, 4)
	assert.Equal(t, BlockKindEntry, g.Entry().Kind)
	assert.Equal(t, BlockKindExit, g.Exit().Kind)
	assert.Equal(t, 3, g.Exit().Ordinal)
	for i, blk := range g.Blocks {
		assert.Equal(t, i, blk.Ordinal)
		assert.Same(t, g, blk.Graph())
		assert.Same(t, g.Root, blk.EnclosingRegion)
	}
	assert.Equal(t, 0, g.Root.FirstBlockOrdinal)
	assert.Equal(t, 3, g.Root.LastBlockOrdinal)

	b1 := g.Blocks[1]
	assert.Equal(t, []*BasicBlock{g.Blocks[2], g.Exit()}, b1.Successors())
	assert.Equal(t, SemanticsReturn, b1.FallThrough.Semantics)
	assert.Equal(t, []*BasicBlock{b1, g.Blocks[2]}, g.Exit().Predecessors)

	assert.Equal(t, []string{"p", "x"}, []string{g.Parameters[0].Name, g.Parameters[1].Name})
	assert.Empty(t, g.Locals)
	assert.True(t, g.Declares(g.Parameters[0]))
	assert.False(t, g.Declares(nil))
	assert.False(t, g.Declares(&Symbol{Name: "p"}))
	assert.Len(t, g.Symbols(), 2)
}

func TestBuilderPredecessorsAreUnique(t *testing.T) {
	b := NewBuilder("Diamond")
	c := b.Parameter("c")
	b1 := b.NewBlock()
	b2 := b.NewBlock()
	b.Goto(b.Entry(), b1)
	b.Branch(b1, Ref(c), ConditionWhenTrue, b2)
	b.Goto(b1, b2)
	b.Goto(b2, b.Exit())
	g := b.MustBuild()

	assert.Equal(t, []*BasicBlock{b1}, b2.Predecessors)
	assert.Equal(t, []*BasicBlock{b2, b2}, b1.Successors())
	assert.True(t, g.Owns(b2))
}

func TestBuilderRegions(t *testing.T) {
	b := NewBuilder("Regions")
	b.NewBlock()
	tf := b.EnterRegion(RegionTryAndFinally)
	try := b.EnterRegion(RegionTry)
	b2 := b.NewBlock()
	b3 := b.NewBlock()
	b.LeaveRegion()
	fin := b.EnterRegion(RegionFinally)
	b4 := b.NewBlock()
	b.LeaveRegion()
	b.LeaveRegion()
	assert.Same(t, b.Region(), b.Entry().EnclosingRegion)
	b.NewBlock()
	g := b.MustBuild()

	assert.Equal(t, []*Region{tf}, g.Root.NestedRegions)
	assert.Equal(t, []*Region{try, fin}, tf.NestedRegions)
	assert.Equal(t, 2, try.FirstBlockOrdinal)
	assert.Equal(t, 3, try.LastBlockOrdinal)
	assert.Equal(t, 4, fin.FirstBlockOrdinal)
	assert.Equal(t, 2, tf.FirstBlockOrdinal)
	assert.Equal(t, 4, tf.LastBlockOrdinal)
	assert.Same(t, try, b2.EnclosingRegion)
	assert.Same(t, try, b3.EnclosingRegion)
	assert.Same(t, fin, b4.EnclosingRegion)
	assert.True(t, tf.Contains(3))
	assert.False(t, tf.Contains(5))
}

func TestBuilderErrors(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *Builder)
		want  string
	}{
		{
			name: "open region",
			build: func(b *Builder) {
				b.EnterRegion(RegionLocalLifetime)
				b.NewBlock()
			},
			want: "still open",
		},
		{
			name: "empty region",
			build: func(b *Builder) {
				b.EnterRegion(RegionTryAndFinally)
				b.EnterRegion(RegionTry)
				b.LeaveRegion()
				b.EnterRegion(RegionFinally)
				b.NewBlock()
				b.LeaveRegion()
				b.LeaveRegion()
			},
			want: "try region has no blocks",
		},
		{
			name: "try without handler",
			build: func(b *Builder) {
				b.EnterRegion(RegionTry)
				b.NewBlock()
				b.LeaveRegion()
			},
			want: "try region nested in root",
		},
		{
			name: "filter without catch",
			build: func(b *Builder) {
				b.EnterRegion(RegionTryAndCatch)
				b.EnterRegion(RegionTry)
				b.NewBlock()
				b.LeaveRegion()
				b.EnterRegion(RegionFilter)
				b.NewBlock()
				b.LeaveRegion()
				b.LeaveRegion()
			},
			want: "filter region must be followed by its catch region",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder("Broken")
			tt.build(b)
			_, err := b.Build()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestBuilderLeaveRootPanics(t *testing.T) {
	b := NewBuilder("Root")
	assert.Panics(t, func() { b.LeaveRegion() })
}

func TestValidateRejectsOperationsInEntry(t *testing.T) {
	b := NewBuilder("Entry")
	b.Entry().Operations = append(b.Entry().Operations, Lit("1"))
	_, err := b.Build()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidGraph))
}

func TestValidateRejectsForeignDestination(t *testing.T) {
	other := earlyReturn()
	b := NewBuilder("Foreign")
	b1 := b.NewBlock()
	b.Goto(b.Entry(), b1)
	b.Goto(b1, other.Blocks[1])
	_, err := b.Build()
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidGraph)
	assert.Contains(t, err.Error(), "branches outside the graph")
}
