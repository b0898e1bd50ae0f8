package lva

import (
	"fmt"
	"sort"

	"github.com/l3aro/go-liveness/pkg/cfg"
	"golang.org/x/tools/container/intsets"
)

// Result holds the converged liveness sets of one graph. Only symbols are
// exposed; flow captures stay internal.
type Result struct {
	graph      *cfg.Graph
	vars       *varTable
	successors *Successors
	steps      [][]step
	liveIn     []intsets.Sparse
	liveOut    []intsets.Sparse
	captured   []*cfg.Symbol

	// Iterations counts the blocks processed until the fixed point.
	Iterations int
}

// Graph returns the analyzed graph.
func (r *Result) Graph() *cfg.Graph {
	return r.graph
}

// Successors returns the effective successors used by the analysis.
func (r *Result) Successors() *Successors {
	return r.successors
}

// LiveIn returns the symbols live on entry to b, ordered by declaration.
// It panics if b does not belong to the analyzed graph.
func (r *Result) LiveIn(b *cfg.BasicBlock) []*cfg.Symbol {
	mustOwn(r.graph, b)
	return r.vars.symbols(&r.liveIn[b.Ordinal])
}

// LiveOut returns the symbols live on exit from b, ordered by declaration.
// It panics if b does not belong to the analyzed graph.
func (r *Result) LiveOut(b *cfg.BasicBlock) []*cfg.Symbol {
	mustOwn(r.graph, b)
	return r.vars.symbols(&r.liveOut[b.Ordinal])
}

// IsLiveIn reports whether s is live on entry to b.
func (r *Result) IsLiveIn(b *cfg.BasicBlock, s *cfg.Symbol) bool {
	mustOwn(r.graph, b)
	return r.has(&r.liveIn[b.Ordinal], SymbolVar(s))
}

// IsLiveOut reports whether s is live on exit from b.
func (r *Result) IsLiveOut(b *cfg.BasicBlock, s *cfg.Symbol) bool {
	mustOwn(r.graph, b)
	return r.has(&r.liveOut[b.Ordinal], SymbolVar(s))
}

// has reports symbol membership. The "no symbol" value is never live.
func (r *Result) has(set *intsets.Sparse, v VarID) bool {
	if !v.isCapture && v.symbol == nil {
		return false
	}
	n, ok := r.vars.index[v]
	return ok && set.Has(n)
}

// CapturedVariables returns the symbols captured by closures in the method.
func (r *Result) CapturedVariables() []*cfg.Symbol {
	return append([]*cfg.Symbol(nil), r.captured...)
}

// IsCaptured reports whether s is captured by a closure.
func (r *Result) IsCaptured(s *cfg.Symbol) bool {
	for _, c := range r.captured {
		if c == s {
			return true
		}
	}
	return false
}

// mustOwn fails fast when a caller passes a block of another graph.
func mustOwn(g *cfg.Graph, b *cfg.BasicBlock) {
	if !g.Owns(b) {
		if b == nil {
			panic(fmt.Sprintf("lva: nil block queried on graph %s", g.Name))
		}
		panic(fmt.Sprintf("lva: block %d does not belong to graph %s", b.Ordinal, g.Name))
	}
}

func sortedSymbolSet(set map[*cfg.Symbol]struct{}) []*cfg.Symbol {
	syms := make([]*cfg.Symbol, 0, len(set))
	for s := range set {
		syms = append(syms, s)
	}
	sortSymbols(syms)
	return syms
}

func sortSymbols(syms []*cfg.Symbol) {
	sort.Slice(syms, func(i, j int) bool {
		if syms[i].Ordinal != syms[j].Ordinal {
			return syms[i].Ordinal < syms[j].Ordinal
		}
		return syms[i].Name < syms[j].Name
	})
}
