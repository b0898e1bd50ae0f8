// Package cfg defines data structures for representing Control Flow Graphs (CFGs)
// of a single method body: basic blocks, branches, the exception-handling region
// tree and the abstract operations each block evaluates.
package cfg

// BlockKind represents the kind of a CFG block.
type BlockKind string

const (
	BlockKindEntry BlockKind = "entry" // Method entry point, never holds operations
	BlockKindBlock BlockKind = "block" // Regular basic block
	BlockKindExit  BlockKind = "exit"  // Method exit point, never holds operations
)

// BranchSemantics describes how control leaves a block through a branch.
type BranchSemantics string

const (
	SemanticsRegular                     BranchSemantics = "regular" // Jump or fall-through to another block
	SemanticsReturn                      BranchSemantics = "return"  // Return to the caller through the exit block
	SemanticsThrow                       BranchSemantics = "throw"   // Unconditional throw, no destination
	SemanticsRethrow                     BranchSemantics = "rethrow" // throw; inside a catch, no destination
	SemanticsStructuredExceptionHandling BranchSemantics = "seh"     // End of a finally or a rejecting filter
)

// ConditionKind tells when the conditional branch of a block is taken.
type ConditionKind string

const (
	ConditionNone      ConditionKind = ""           // No conditional branch
	ConditionWhenTrue  ConditionKind = "when_true"  // Taken when the branch value is true
	ConditionWhenFalse ConditionKind = "when_false" // Taken when the branch value is false
)

// RegionKind represents the kind of a region in the region tree.
type RegionKind string

const (
	RegionRoot          RegionKind = "root"
	RegionTry           RegionKind = "try"
	RegionCatch         RegionKind = "catch"
	RegionFilter        RegionKind = "filter"
	RegionFinally       RegionKind = "finally"
	RegionTryAndCatch   RegionKind = "try_and_catch"
	RegionTryAndFinally RegionKind = "try_and_finally"
	RegionLocalLifetime RegionKind = "local_lifetime"
)

// SymbolKind represents what kind of declaration a symbol stands for.
type SymbolKind string

const (
	SymbolLocal     SymbolKind = "local"
	SymbolParameter SymbolKind = "parameter"
)

// Symbol is a declared local or parameter. Two symbols are equal iff they are
// the same pointer. A nil *Symbol is the "no symbol" value.
type Symbol struct {
	Ordinal int        `json:"ordinal"` // Declaration order within the method
	Name    string     `json:"name"`    // Source name
	Kind    SymbolKind `json:"kind"`    // local or parameter
}

func (s *Symbol) String() string {
	if s == nil {
		return "<none>"
	}
	return s.Name
}

// CaptureID identifies a compiler-synthesized flow-capture temporary.
type CaptureID int

// Branch is a directed control transfer out of a block.
type Branch struct {
	Source      *BasicBlock
	Destination *BasicBlock // nil when control leaves the graph (throw, end of finally)
	Semantics   BranchSemantics
}

// BasicBlock is a straight-line sequence of operations with an optional
// branch value deciding between the conditional and fall-through successors.
type BasicBlock struct {
	Ordinal         int
	Kind            BlockKind
	Operations      []*Operation
	BranchValue     *Operation
	ConditionKind   ConditionKind
	Conditional     *Branch
	FallThrough     *Branch
	Predecessors    []*BasicBlock
	EnclosingRegion *Region

	graph *Graph
}

// Graph returns the graph the block belongs to.
func (b *BasicBlock) Graph() *Graph {
	return b.graph
}

// Successors returns the declared successor blocks, conditional first.
func (b *BasicBlock) Successors() []*BasicBlock {
	var succs []*BasicBlock
	for _, br := range []*Branch{b.Conditional, b.FallThrough} {
		if br != nil && br.Destination != nil {
			succs = append(succs, br.Destination)
		}
	}
	return succs
}

// Branches returns the non-nil outgoing branches, conditional first.
func (b *BasicBlock) Branches() []*Branch {
	var branches []*Branch
	if b.Conditional != nil {
		branches = append(branches, b.Conditional)
	}
	if b.FallThrough != nil {
		branches = append(branches, b.FallThrough)
	}
	return branches
}

// Region is a node of the region tree. Regions nest properly and cover a
// contiguous range of block ordinals.
type Region struct {
	Kind              RegionKind
	EnclosingRegion   *Region
	NestedRegions     []*Region
	FirstBlockOrdinal int
	LastBlockOrdinal  int
}

// Contains reports whether the ordinal lies inside the region.
func (r *Region) Contains(ordinal int) bool {
	return ordinal >= r.FirstBlockOrdinal && ordinal <= r.LastBlockOrdinal
}

// Graph is the complete CFG of one method body.
type Graph struct {
	Name       string        // Method name
	Blocks     []*BasicBlock // Indexed by ordinal
	Root       *Region
	Parameters []*Symbol
	Locals     []*Symbol // Locals declared by the method itself, not by nested functions
}

// Entry returns the entry block.
func (g *Graph) Entry() *BasicBlock {
	return g.Blocks[0]
}

// Exit returns the exit block.
func (g *Graph) Exit() *BasicBlock {
	return g.Blocks[len(g.Blocks)-1]
}

// Owns reports whether b is one of the graph's blocks.
func (g *Graph) Owns(b *BasicBlock) bool {
	return b != nil && b.graph == g && b.Ordinal >= 0 && b.Ordinal < len(g.Blocks) && g.Blocks[b.Ordinal] == b
}

// Declares reports whether s is a parameter or method-level local of the graph.
func (g *Graph) Declares(s *Symbol) bool {
	if s == nil {
		return false
	}
	for _, p := range g.Parameters {
		if p == s {
			return true
		}
	}
	for _, l := range g.Locals {
		if l == s {
			return true
		}
	}
	return false
}

// Symbols returns parameters followed by locals.
func (g *Graph) Symbols() []*Symbol {
	syms := make([]*Symbol, 0, len(g.Parameters)+len(g.Locals))
	syms = append(syms, g.Parameters...)
	return append(syms, g.Locals...)
}
