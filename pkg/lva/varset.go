package lva

import (
	"github.com/l3aro/go-liveness/pkg/cfg"
	"golang.org/x/tools/container/intsets"
)

// VarID is either a program symbol or a flow-capture temporary. The two
// namespaces are disjoint; the solver does not care which one it handles.
type VarID struct {
	symbol    *cfg.Symbol
	capture   cfg.CaptureID
	isCapture bool
}

// SymbolVar wraps a symbol.
func SymbolVar(s *cfg.Symbol) VarID {
	return VarID{symbol: s}
}

// CaptureVar wraps a flow-capture id.
func CaptureVar(id cfg.CaptureID) VarID {
	return VarID{capture: id, isCapture: true}
}

// Symbol returns the symbol, or nil for a flow capture.
func (v VarID) Symbol() *cfg.Symbol {
	return v.symbol
}

// IsCapture reports whether v is a flow capture.
func (v VarID) IsCapture() bool {
	return v.isCapture
}

// varTable interns VarIDs into the dense integers stored in intsets.
type varTable struct {
	index map[VarID]int
	vars  []VarID
}

func newVarTable() *varTable {
	return &varTable{index: make(map[VarID]int)}
}

func (t *varTable) id(v VarID) int {
	if n, ok := t.index[v]; ok {
		return n
	}
	n := len(t.vars)
	t.index[v] = n
	t.vars = append(t.vars, v)
	return n
}

func (t *varTable) lookup(n int) VarID {
	return t.vars[n]
}

// symbols returns the symbol members of set, skipping flow captures.
func (t *varTable) symbols(set *intsets.Sparse) []*cfg.Symbol {
	var syms []*cfg.Symbol
	for _, n := range set.AppendTo(nil) {
		if v := t.vars[n]; !v.isCapture && v.symbol != nil {
			syms = append(syms, v.symbol)
		}
	}
	sortSymbols(syms)
	return syms
}
