package lva

import (
	"sort"

	"github.com/l3aro/go-liveness/pkg/cfg"
)

// Successors holds the effective successors of every block: the declared
// CFG successors plus the conservative exceptional edges into enclosing
// finally and catch handlers. It is computed once per graph and indexed by
// block ordinal.
type Successors struct {
	graph *cfg.Graph
	succ  [][]*cfg.BasicBlock
	pred  [][]*cfg.BasicBlock
}

// ResolveSuccessors computes the effective successor arena of g.
func ResolveSuccessors(g *cfg.Graph) *Successors {
	s := &Successors{
		graph: g,
		succ:  make([][]*cfg.BasicBlock, len(g.Blocks)),
		pred:  make([][]*cfg.BasicBlock, len(g.Blocks)),
	}
	handlers := make(map[*cfg.Region][]*cfg.BasicBlock)
	continuations := make(map[*cfg.Region][]*cfg.BasicBlock)

	for _, blk := range g.Blocks {
		if blk.Kind == cfg.BlockKindExit {
			continue
		}
		set := make(map[*cfg.BasicBlock]struct{})
		for _, succ := range blk.Successors() {
			set[succ] = struct{}{}
		}

		region := blk.EnclosingRegion
		targets, ok := handlers[region]
		if !ok {
			targets = exceptionalTargets(g, region)
			handlers[region] = targets
		}
		for _, t := range targets {
			set[t] = struct{}{}
		}

		if fin := enclosingFinally(region); fin != nil && leavesHandler(blk) {
			targets, ok := continuations[fin]
			if !ok {
				targets = finallyContinuations(g, fin)
				continuations[fin] = targets
			}
			for _, t := range targets {
				set[t] = struct{}{}
			}
		}

		s.succ[blk.Ordinal] = sortedBlocks(set)
	}

	for _, blk := range g.Blocks {
		for _, succ := range s.succ[blk.Ordinal] {
			s.pred[succ.Ordinal] = append(s.pred[succ.Ordinal], blk)
		}
	}
	return s
}

// Of returns the effective successors of b.
func (s *Successors) Of(b *cfg.BasicBlock) []*cfg.BasicBlock {
	mustOwn(s.graph, b)
	return s.succ[b.Ordinal]
}

// Predecessors returns the blocks that have b as an effective successor.
func (s *Successors) Predecessors(b *cfg.BasicBlock) []*cfg.BasicBlock {
	mustOwn(s.graph, b)
	return s.pred[b.Ordinal]
}

// exceptionalTargets walks outwards from region and collects the handler
// entries an exception raised inside it can reach. Catch handlers do not stop
// the walk since the exception may not match them; the innermost finally
// does, because the finally carries the outer edges itself.
func exceptionalTargets(g *cfg.Graph, region *cfg.Region) []*cfg.BasicBlock {
	var targets []*cfg.BasicBlock

	// Inside a filter, a rejected exception moves on to the following handlers.
	if region.Kind == cfg.RegionFilter {
		targets = append(targets, followingHandlers(g, region)...)
	}

	for r := region; r != nil; r = r.EnclosingRegion {
		if r.Kind != cfg.RegionTry || r.EnclosingRegion == nil {
			continue
		}
		parent := r.EnclosingRegion
		switch parent.Kind {
		case cfg.RegionTryAndCatch:
			targets = append(targets, handlerEntries(g, parent.NestedRegions[1:])...)
		case cfg.RegionTryAndFinally:
			return append(targets, entryOf(g, parent.NestedRegions[1]))
		}
	}
	return targets
}

// handlerEntries returns the entry of each handler: the filter when a catch
// is guarded by one, otherwise the catch itself.
func handlerEntries(g *cfg.Graph, handlers []*cfg.Region) []*cfg.BasicBlock {
	var entries []*cfg.BasicBlock
	for i, h := range handlers {
		switch h.Kind {
		case cfg.RegionFilter:
			entries = append(entries, entryOf(g, h))
		case cfg.RegionCatch:
			if i == 0 || handlers[i-1].Kind != cfg.RegionFilter {
				entries = append(entries, entryOf(g, h))
			}
		}
	}
	return entries
}

func followingHandlers(g *cfg.Graph, filter *cfg.Region) []*cfg.BasicBlock {
	siblings := filter.EnclosingRegion.NestedRegions
	for i, r := range siblings {
		if r == filter && i+2 < len(siblings) {
			return handlerEntries(g, siblings[i+2:])
		}
	}
	return nil
}

func entryOf(g *cfg.Graph, r *cfg.Region) *cfg.BasicBlock {
	return g.Blocks[r.FirstBlockOrdinal]
}

// enclosingFinally returns the innermost finally around region, unless a
// filter is closer: a filter's rejecting branch does not end the finally.
func enclosingFinally(region *cfg.Region) *cfg.Region {
	for r := region; r != nil; r = r.EnclosingRegion {
		switch r.Kind {
		case cfg.RegionFinally:
			return r
		case cfg.RegionFilter:
			return nil
		}
	}
	return nil
}

// leavesHandler reports whether b ends its handler, which is how the last
// block of a finally hands control back to wherever the try was left for.
func leavesHandler(b *cfg.BasicBlock) bool {
	for _, br := range b.Branches() {
		if br.Destination == nil && br.Semantics == cfg.SemanticsStructuredExceptionHandling {
			return true
		}
	}
	return false
}

// finallyContinuations returns the destinations of every declared branch
// that leaves the try guarded by fin. Those are the places control resumes
// after the finally completes normally.
func finallyContinuations(g *cfg.Graph, fin *cfg.Region) []*cfg.BasicBlock {
	guarded := fin.EnclosingRegion
	try := guarded.NestedRegions[0]
	set := make(map[*cfg.BasicBlock]struct{})
	for ord := try.FirstBlockOrdinal; ord <= try.LastBlockOrdinal; ord++ {
		for _, succ := range g.Blocks[ord].Successors() {
			if !guarded.Contains(succ.Ordinal) {
				set[succ] = struct{}{}
			}
		}
	}
	return sortedBlocks(set)
}

func sortedBlocks(set map[*cfg.BasicBlock]struct{}) []*cfg.BasicBlock {
	blocks := make([]*cfg.BasicBlock, 0, len(set))
	for b := range set {
		blocks = append(blocks, b)
	}
	sort.Slice(blocks, func(i, j int) bool { return blocks[i].Ordinal < blocks[j].Ordinal })
	return blocks
}
