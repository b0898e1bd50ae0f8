// Package lva implements Live Variable Analysis over a method's control flow
// graph. For every block it computes the variables whose current value may
// still be read later (LiveIn on entry, LiveOut on exit), honoring
// exceptional control flow through try/catch/finally regions, the evaluation
// order of sub-expressions and flow-capture temporaries. Variables captured
// by closures are excluded from flow-sensitive liveness and reported
// separately.
package lva

import (
	"container/list"

	"github.com/l3aro/go-liveness/pkg/cfg"
	"golang.org/x/tools/container/intsets"
)

// step is one effect reduced to what the backward transfer needs.
type step struct {
	kill bool
	v    int
}

// Solve runs the analysis on g. It is a pure function of g: it allocates its
// own working sets and only reads the graph, so independent graphs can be
// solved concurrently.
func Solve(g *cfg.Graph) *Result {
	captured := CollectCaptures(g)
	classifier := NewClassifier(captured)
	r := &Result{
		graph:      g,
		vars:       newVarTable(),
		successors: ResolveSuccessors(g),
		liveIn:     make([]intsets.Sparse, len(g.Blocks)),
		liveOut:    make([]intsets.Sparse, len(g.Blocks)),
		captured:   sortedSymbolSet(captured),
	}
	r.steps = make([][]step, len(g.Blocks))
	for _, blk := range g.Blocks {
		r.steps[blk.Ordinal] = r.blockSteps(classifier, blk)
	}
	r.solve()
	return r
}

// blockSteps flattens the block's operations and branch value into steps.
func (r *Result) blockSteps(c *Classifier, blk *cfg.BasicBlock) []step {
	var steps []step
	for _, op := range blockOperations(blk) {
		for _, e := range c.Effects(op) {
			switch e.Kind {
			case EffectWrite, EffectFlowCaptureWrite:
				steps = append(steps, step{kill: true, v: r.vars.id(e.Var)})
			case EffectRead, EffectReadWrite, EffectFlowCaptureRead:
				steps = append(steps, step{v: r.vars.id(e.Var)})
			}
		}
	}
	return steps
}

// solve iterates the backward equations to their fixed point. The worklist
// starts at the exit and visits blocks in reverse ordinal order, which is
// reverse topological for acyclic graphs; when LiveIn of a block changes, its
// effective predecessors are queued again.
func (r *Result) solve() {
	g := r.graph
	queued := make([]bool, len(g.Blocks))
	worklist := list.New()
	for i := len(g.Blocks) - 1; i >= 0; i-- {
		worklist.PushBack(g.Blocks[i])
		queued[i] = true
	}

	var in intsets.Sparse
	for worklist.Len() > 0 {
		blk := worklist.Remove(worklist.Front()).(*cfg.BasicBlock)
		queued[blk.Ordinal] = false
		r.Iterations++

		if blk.Kind == cfg.BlockKindExit {
			continue
		}

		out := &r.liveOut[blk.Ordinal]
		out.Clear()
		for _, succ := range r.successors.succ[blk.Ordinal] {
			out.UnionWith(&r.liveIn[succ.Ordinal])
		}

		r.transfer(blk.Ordinal, out, &in)
		if in.Equals(&r.liveIn[blk.Ordinal]) {
			continue
		}
		r.liveIn[blk.Ordinal].Copy(&in)
		for _, pred := range r.successors.pred[blk.Ordinal] {
			if !queued[pred.Ordinal] {
				queued[pred.Ordinal] = true
				worklist.PushBack(pred)
			}
		}
	}
}

// transfer computes LiveIn from LiveOut by replaying the block's steps
// backwards: a write kills the variable, a read makes it live again.
func (r *Result) transfer(ordinal int, out, in *intsets.Sparse) {
	in.Copy(out)
	steps := r.steps[ordinal]
	for i := len(steps) - 1; i >= 0; i-- {
		if steps[i].kill {
			in.Remove(steps[i].v)
		} else {
			in.Insert(steps[i].v)
		}
	}
}

// Stable re-applies the dataflow equations once to every block and reports
// whether all sets are unchanged, i.e. whether the result is a fixed point.
func (r *Result) Stable() bool {
	var out, in intsets.Sparse
	for _, blk := range r.graph.Blocks {
		out.Clear()
		if blk.Kind != cfg.BlockKindExit {
			for _, succ := range r.successors.succ[blk.Ordinal] {
				out.UnionWith(&r.liveIn[succ.Ordinal])
			}
		}
		if !out.Equals(&r.liveOut[blk.Ordinal]) {
			return false
		}
		if blk.Kind == cfg.BlockKindExit {
			in.Clear()
		} else {
			r.transfer(blk.Ordinal, &out, &in)
		}
		if !in.Equals(&r.liveIn[blk.Ordinal]) {
			return false
		}
	}
	return true
}
