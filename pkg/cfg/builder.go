package cfg

import (
	"fmt"
)

// Builder assembles a Graph block by block. Blocks receive ordinals in
// creation order and belong to the region that is current when they are
// created. The exit block is created up front so branches can target it, and
// receives the last ordinal on Build.
type Builder struct {
	name    string
	blocks  []*BasicBlock
	exit    *BasicBlock
	root    *Region
	current *Region
	params  []*Symbol
	locals  []*Symbol
	symbols int
}

// NewBuilder creates a builder holding the entry block.
func NewBuilder(name string) *Builder {
	root := &Region{Kind: RegionRoot}
	b := &Builder{
		name:    name,
		root:    root,
		current: root,
	}
	b.newBlock(BlockKindEntry)
	b.exit = &BasicBlock{Kind: BlockKindExit, EnclosingRegion: root, Ordinal: -1}
	return b
}

// Entry returns the entry block.
func (b *Builder) Entry() *BasicBlock {
	return b.blocks[0]
}

// Exit returns the exit block.
func (b *Builder) Exit() *BasicBlock {
	return b.exit
}

// Parameter declares a method parameter.
func (b *Builder) Parameter(name string) *Symbol {
	s := b.NewSymbol(name, SymbolParameter)
	b.params = append(b.params, s)
	return s
}

// Local declares a method-level local.
func (b *Builder) Local(name string) *Symbol {
	s := b.NewSymbol(name, SymbolLocal)
	b.locals = append(b.locals, s)
	return s
}

// NewSymbol creates a symbol that is not declared by the method itself, such
// as a lambda parameter.
func (b *Builder) NewSymbol(name string, kind SymbolKind) *Symbol {
	s := &Symbol{Ordinal: b.symbols, Name: name, Kind: kind}
	b.symbols++
	return s
}

// NewBlock appends a regular block to the current region.
func (b *Builder) NewBlock(ops ...*Operation) *BasicBlock {
	blk := b.newBlock(BlockKindBlock)
	blk.Operations = append(blk.Operations, ops...)
	return blk
}

func (b *Builder) newBlock(kind BlockKind) *BasicBlock {
	blk := &BasicBlock{
		Ordinal:         len(b.blocks),
		Kind:            kind,
		EnclosingRegion: b.current,
	}
	b.blocks = append(b.blocks, blk)
	return blk
}

// Region returns the current region.
func (b *Builder) Region() *Region {
	return b.current
}

// EnterRegion opens a region nested in the current one.
func (b *Builder) EnterRegion(kind RegionKind) *Region {
	r := &Region{Kind: kind, EnclosingRegion: b.current}
	b.current.NestedRegions = append(b.current.NestedRegions, r)
	b.current = r
	return r
}

// LeaveRegion closes the current region.
func (b *Builder) LeaveRegion() {
	if b.current == b.root {
		panic("cfg: LeaveRegion called on the root region")
	}
	b.current = b.current.EnclosingRegion
}

// Jump sets the fall-through branch of from.
func (b *Builder) Jump(from, to *BasicBlock, semantics BranchSemantics) {
	from.FallThrough = &Branch{Source: from, Destination: to, Semantics: semantics}
}

// Goto is Jump with regular semantics.
func (b *Builder) Goto(from, to *BasicBlock) {
	b.Jump(from, to, SemanticsRegular)
}

// Return jumps to the exit block, optionally returning value.
func (b *Builder) Return(from *BasicBlock, value *Operation) {
	if value != nil {
		from.BranchValue = value
	}
	b.Jump(from, b.exit, SemanticsReturn)
}

// Throw ends from with a throw of value, or a rethrow when value is nil.
func (b *Builder) Throw(from *BasicBlock, value *Operation) {
	if value == nil {
		b.Jump(from, nil, SemanticsRethrow)
		return
	}
	from.BranchValue = value
	b.Jump(from, nil, SemanticsThrow)
}

// EndHandler ends a finally block or a filter's rejecting path.
func (b *Builder) EndHandler(from *BasicBlock) {
	b.Jump(from, nil, SemanticsStructuredExceptionHandling)
}

// Branch sets the conditional branch of from, taken to `to` depending on cond.
func (b *Builder) Branch(from *BasicBlock, value *Operation, cond ConditionKind, to *BasicBlock) {
	from.BranchValue = value
	from.ConditionKind = cond
	from.Conditional = &Branch{Source: from, Destination: to, Semantics: SemanticsRegular}
}

// FilterReject sets a filter's conditional branch leaving the handler chain
// when the filter evaluates to false.
func (b *Builder) FilterReject(from *BasicBlock, value *Operation) {
	from.BranchValue = value
	from.ConditionKind = ConditionWhenFalse
	from.Conditional = &Branch{Source: from, Semantics: SemanticsStructuredExceptionHandling}
}

// Build finalizes the graph: the exit block is appended, region ranges and
// predecessors are computed and the result is validated.
func (b *Builder) Build() (*Graph, error) {
	if b.current != b.root {
		return nil, fmt.Errorf("building %s: region %s is still open", b.name, b.current.Kind)
	}
	b.exit.Ordinal = len(b.blocks)
	b.blocks = append(b.blocks, b.exit)

	g := &Graph{
		Name:       b.name,
		Blocks:     b.blocks,
		Root:       b.root,
		Parameters: b.params,
		Locals:     b.locals,
	}
	for _, blk := range g.Blocks {
		blk.graph = g
	}
	if err := assignRegionRanges(g); err != nil {
		return nil, fmt.Errorf("building %s: %w", b.name, err)
	}
	linkPredecessors(g)
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("building %s: %w", b.name, err)
	}
	return g, nil
}

// MustBuild is Build that panics on error. Intended for tests and fixtures.
func (b *Builder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

// assignRegionRanges derives first/last ordinals from block membership.
func assignRegionRanges(g *Graph) error {
	type span struct{ first, last, count int }
	spans := make(map[*Region]*span)
	for _, blk := range g.Blocks {
		for r := blk.EnclosingRegion; r != nil; r = r.EnclosingRegion {
			s, ok := spans[r]
			if !ok {
				spans[r] = &span{first: blk.Ordinal, last: blk.Ordinal, count: 1}
				continue
			}
			s.count++
			if blk.Ordinal < s.first {
				s.first = blk.Ordinal
			}
			if blk.Ordinal > s.last {
				s.last = blk.Ordinal
			}
		}
	}

	var visit func(r *Region) error
	visit = func(r *Region) error {
		s, ok := spans[r]
		if !ok {
			return fmt.Errorf("%s region has no blocks", r.Kind)
		}
		if s.last-s.first+1 != s.count {
			return fmt.Errorf("%s region blocks %d..%d are not contiguous", r.Kind, s.first, s.last)
		}
		r.FirstBlockOrdinal = s.first
		r.LastBlockOrdinal = s.last
		for _, nested := range r.NestedRegions {
			if err := visit(nested); err != nil {
				return err
			}
		}
		return nil
	}
	return visit(g.Root)
}

func linkPredecessors(g *Graph) {
	for _, blk := range g.Blocks {
		blk.Predecessors = nil
	}
	for _, blk := range g.Blocks {
		for _, succ := range blk.Successors() {
			if !containsBlock(succ.Predecessors, blk) {
				succ.Predecessors = append(succ.Predecessors, blk)
			}
		}
	}
}

func containsBlock(blocks []*BasicBlock, b *BasicBlock) bool {
	for _, x := range blocks {
		if x == b {
			return true
		}
	}
	return false
}
