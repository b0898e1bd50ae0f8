package lva

import (
	"fmt"
	"strings"

	"github.com/l3aro/go-liveness/pkg/cfg"
)

// BlockSummary is the name-level liveness of one block.
type BlockSummary struct {
	Ordinal int           `json:"ordinal" msgpack:"ordinal"`
	Kind    cfg.BlockKind `json:"kind" msgpack:"kind"`
	LiveIn  []string      `json:"live_in" msgpack:"live_in"`
	LiveOut []string      `json:"live_out" msgpack:"live_out"`
}

// Summary is a pointer-free rendering of a Result that can be cached,
// serialized and diffed in tests. It is not a stable wire format.
type Summary struct {
	Method      string         `json:"method" msgpack:"method"`
	Fingerprint string         `json:"fingerprint" msgpack:"fingerprint"`
	Blocks      []BlockSummary `json:"blocks" msgpack:"blocks"`
	Captured    []string       `json:"captured" msgpack:"captured"`
}

// Summary builds the name-level summary of r.
func (r *Result) Summary() *Summary {
	s := &Summary{
		Method:      r.graph.Name,
		Fingerprint: r.graph.Fingerprint(),
		Captured:    names(r.captured),
	}
	for _, blk := range r.graph.Blocks {
		s.Blocks = append(s.Blocks, BlockSummary{
			Ordinal: blk.Ordinal,
			Kind:    blk.Kind,
			LiveIn:  names(r.LiveIn(blk)),
			LiveOut: names(r.LiveOut(blk)),
		})
	}
	return s
}

// Dump renders per-block LiveIn/LiveOut and the captured variables.
func (r *Result) Dump() string {
	return r.Summary().String()
}

func (s *Summary) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== Liveness for method: %s ===\n", s.Method)
	for _, b := range s.Blocks {
		fmt.Fprintf(&sb, "B%d (%s)\n", b.Ordinal, b.Kind)
		fmt.Fprintf(&sb, "  LiveIn:  %s\n", strings.Join(b.LiveIn, ", "))
		fmt.Fprintf(&sb, "  LiveOut: %s\n", strings.Join(b.LiveOut, ", "))
	}
	fmt.Fprintf(&sb, "Captured: %s\n", strings.Join(s.Captured, ", "))
	return sb.String()
}

// Block returns the summary of the block with the given ordinal.
func (s *Summary) Block(ordinal int) (BlockSummary, bool) {
	for _, b := range s.Blocks {
		if b.Ordinal == ordinal {
			return b, true
		}
	}
	return BlockSummary{}, false
}

func names(syms []*cfg.Symbol) []string {
	out := make([]string, len(syms))
	for i, s := range syms {
		out[i] = s.Name
	}
	return out
}
