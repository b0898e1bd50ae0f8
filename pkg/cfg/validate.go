package cfg

import (
	"errors"
	"fmt"
)

// ErrInvalidGraph is wrapped by every error returned from Validate.
var ErrInvalidGraph = errors.New("invalid graph")

// Validate checks the structural invariants the analyses rely on: an entry
// block first, an exit block last, branches that stay inside the graph and a
// properly nested region tree rooted at a single Root region.
func (g *Graph) Validate() error {
	if len(g.Blocks) < 2 {
		return fmt.Errorf("%w: need at least entry and exit blocks, got %d", ErrInvalidGraph, len(g.Blocks))
	}
	if g.Root == nil || g.Root.Kind != RegionRoot || g.Root.EnclosingRegion != nil {
		return fmt.Errorf("%w: missing root region", ErrInvalidGraph)
	}
	if g.Entry().Kind != BlockKindEntry {
		return fmt.Errorf("%w: block 0 is %s, want entry", ErrInvalidGraph, g.Entry().Kind)
	}
	if g.Exit().Kind != BlockKindExit {
		return fmt.Errorf("%w: last block is %s, want exit", ErrInvalidGraph, g.Exit().Kind)
	}

	for i, blk := range g.Blocks {
		if blk.Ordinal != i {
			return fmt.Errorf("%w: block at index %d has ordinal %d", ErrInvalidGraph, i, blk.Ordinal)
		}
		if blk.Kind != BlockKindBlock && (len(blk.Operations) > 0 || blk.BranchValue != nil) {
			return fmt.Errorf("%w: %s block %d holds operations", ErrInvalidGraph, blk.Kind, i)
		}
		if blk.Kind == BlockKindBlock && (i == 0 || i == len(g.Blocks)-1) {
			return fmt.Errorf("%w: block %d must be entry or exit", ErrInvalidGraph, i)
		}
		if blk.Kind == BlockKindExit && len(blk.Branches()) > 0 {
			return fmt.Errorf("%w: exit block has outgoing branches", ErrInvalidGraph)
		}
		for _, br := range blk.Branches() {
			if br.Destination != nil && !g.Owns(br.Destination) {
				return fmt.Errorf("%w: block %d branches outside the graph", ErrInvalidGraph, i)
			}
		}
		if (blk.Conditional == nil) != (blk.ConditionKind == ConditionNone) {
			return fmt.Errorf("%w: block %d has inconsistent conditional branch", ErrInvalidGraph, i)
		}
		if err := g.checkRegionChain(blk); err != nil {
			return err
		}
	}
	return g.checkRegionTree(g.Root)
}

func (g *Graph) checkRegionChain(blk *BasicBlock) error {
	r := blk.EnclosingRegion
	if r == nil {
		return fmt.Errorf("%w: block %d has no region", ErrInvalidGraph, blk.Ordinal)
	}
	for ; r.EnclosingRegion != nil; r = r.EnclosingRegion {
		if !r.Contains(blk.Ordinal) {
			return fmt.Errorf("%w: block %d lies outside its %s region", ErrInvalidGraph, blk.Ordinal, r.Kind)
		}
	}
	if r != g.Root {
		return fmt.Errorf("%w: block %d region chain does not end at root", ErrInvalidGraph, blk.Ordinal)
	}
	return nil
}

func (g *Graph) checkRegionTree(r *Region) error {
	prevLast := r.FirstBlockOrdinal - 1
	for _, nested := range r.NestedRegions {
		if nested.EnclosingRegion != r {
			return fmt.Errorf("%w: %s region has a wrong parent", ErrInvalidGraph, nested.Kind)
		}
		if nested.FirstBlockOrdinal < r.FirstBlockOrdinal || nested.LastBlockOrdinal > r.LastBlockOrdinal {
			return fmt.Errorf("%w: %s region %d..%d escapes its %s parent", ErrInvalidGraph,
				nested.Kind, nested.FirstBlockOrdinal, nested.LastBlockOrdinal, r.Kind)
		}
		if nested.FirstBlockOrdinal <= prevLast {
			return fmt.Errorf("%w: %s region %d..%d overlaps a sibling", ErrInvalidGraph,
				nested.Kind, nested.FirstBlockOrdinal, nested.LastBlockOrdinal)
		}
		if err := checkRegionShape(nested); err != nil {
			return err
		}
		prevLast = nested.LastBlockOrdinal
		if err := g.checkRegionTree(nested); err != nil {
			return err
		}
	}
	return nil
}

// checkRegionShape enforces the composite region layouts: try/catch holds a
// leading try followed by handlers, try/finally holds exactly try + finally.
func checkRegionShape(r *Region) error {
	switch r.Kind {
	case RegionTryAndCatch:
		if len(r.NestedRegions) < 2 || r.NestedRegions[0].Kind != RegionTry {
			return fmt.Errorf("%w: try_and_catch must start with a try region and hold a handler", ErrInvalidGraph)
		}
		for i, h := range r.NestedRegions[1:] {
			switch h.Kind {
			case RegionCatch:
			case RegionFilter:
				next := i + 2
				if next >= len(r.NestedRegions) || r.NestedRegions[next].Kind != RegionCatch {
					return fmt.Errorf("%w: filter region must be followed by its catch region", ErrInvalidGraph)
				}
			default:
				return fmt.Errorf("%w: unexpected %s region in try_and_catch", ErrInvalidGraph, h.Kind)
			}
		}
	case RegionTryAndFinally:
		if len(r.NestedRegions) != 2 || r.NestedRegions[0].Kind != RegionTry || r.NestedRegions[1].Kind != RegionFinally {
			return fmt.Errorf("%w: try_and_finally must hold a try and a finally region", ErrInvalidGraph)
		}
	case RegionTry, RegionCatch, RegionFilter, RegionFinally:
		if r.EnclosingRegion == nil {
			return fmt.Errorf("%w: %s region without parent", ErrInvalidGraph, r.Kind)
		}
		parent := r.EnclosingRegion.Kind
		if parent != RegionTryAndCatch && parent != RegionTryAndFinally {
			return fmt.Errorf("%w: %s region nested in %s", ErrInvalidGraph, r.Kind, parent)
		}
	case RegionRoot:
		return fmt.Errorf("%w: nested root region", ErrInvalidGraph)
	}
	return nil
}
