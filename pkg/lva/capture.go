package lva

import (
	"github.com/l3aro/go-liveness/pkg/cfg"
)

// CollectCaptures returns the method's parameters and locals that are
// referenced inside a non-static lambda or local function. Symbols declared
// by the function itself, or by a function nested in between, are local to it
// and not reported. Static functions cannot capture and contribute nothing.
func CollectCaptures(g *cfg.Graph) map[*cfg.Symbol]struct{} {
	captured := make(map[*cfg.Symbol]struct{})
	for _, blk := range g.Blocks {
		for _, op := range blockOperations(blk) {
			cfg.Walk(op, false, func(o *cfg.Operation) bool {
				if !isFunction(o) {
					return true
				}
				if !o.Static {
					collectFunction(g, o, declaredBy(o, nil), captured)
				}
				return false
			})
		}
	}
	return captured
}

func collectFunction(g *cfg.Graph, fn *cfg.Operation, declared map[*cfg.Symbol]struct{}, captured map[*cfg.Symbol]struct{}) {
	for _, op := range fn.Body {
		cfg.Walk(op, false, func(o *cfg.Operation) bool {
			if isFunction(o) {
				if !o.Static {
					collectFunction(g, o, declaredBy(o, declared), captured)
				}
				return false
			}
			if o.IsSymbolReference() || o.Kind == cfg.OpVariableDeclarator {
				s := o.Symbol
				if _, local := declared[s]; !local && g.Declares(s) {
					captured[s] = struct{}{}
				}
			}
			return true
		})
	}
}

func declaredBy(fn *cfg.Operation, outer map[*cfg.Symbol]struct{}) map[*cfg.Symbol]struct{} {
	declared := make(map[*cfg.Symbol]struct{}, len(outer)+len(fn.Locals))
	for s := range outer {
		declared[s] = struct{}{}
	}
	for _, s := range fn.Locals {
		declared[s] = struct{}{}
	}
	return declared
}

func isFunction(op *cfg.Operation) bool {
	return op.Kind == cfg.OpAnonymousFunction || op.Kind == cfg.OpLocalFunction
}

// blockOperations returns the block's operations followed by its branch value.
func blockOperations(blk *cfg.BasicBlock) []*cfg.Operation {
	if blk.BranchValue == nil {
		return blk.Operations
	}
	ops := make([]*cfg.Operation, 0, len(blk.Operations)+1)
	ops = append(ops, blk.Operations...)
	return append(ops, blk.BranchValue)
}
