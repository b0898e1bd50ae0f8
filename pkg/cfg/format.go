package cfg

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Format renders the graph in a stable human-readable form: symbols, the
// region tree, then every block with its operations and branches.
func Format(g *Graph) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "=== CFG for method: %s ===\n", g.Name)
	writeSymbols(&sb, "Parameters", g.Parameters)
	writeSymbols(&sb, "Locals", g.Locals)

	sb.WriteString("Regions:\n")
	writeRegion(&sb, g.Root, 1)

	fmt.Fprintf(&sb, "Blocks (%d):\n", len(g.Blocks))
	for _, blk := range g.Blocks {
		fmt.Fprintf(&sb, "  B%d (%s, region %s)\n", blk.Ordinal, blk.Kind, blk.EnclosingRegion.Kind)
		for _, op := range blk.Operations {
			fmt.Fprintf(&sb, "    %s\n", op)
		}
		if blk.BranchValue != nil {
			fmt.Fprintf(&sb, "    branch value: %s\n", blk.BranchValue)
		}
		if blk.Conditional != nil {
			fmt.Fprintf(&sb, "    --%s/%s--> %s\n", blk.ConditionKind, blk.Conditional.Semantics, destinationName(blk.Conditional))
		}
		if blk.FallThrough != nil {
			fmt.Fprintf(&sb, "    --%s--> %s\n", blk.FallThrough.Semantics, destinationName(blk.FallThrough))
		}
	}
	return sb.String()
}

func writeSymbols(sb *strings.Builder, title string, syms []*Symbol) {
	names := make([]string, len(syms))
	for i, s := range syms {
		names[i] = s.Name
	}
	fmt.Fprintf(sb, "%s: [%s]\n", title, strings.Join(names, ", "))
}

func writeRegion(sb *strings.Builder, r *Region, depth int) {
	fmt.Fprintf(sb, "%s%s B%d..B%d\n", strings.Repeat("  ", depth), r.Kind, r.FirstBlockOrdinal, r.LastBlockOrdinal)
	for _, nested := range r.NestedRegions {
		writeRegion(sb, nested, depth+1)
	}
}

func destinationName(br *Branch) string {
	if br.Destination == nil {
		return "<none>"
	}
	return fmt.Sprintf("B%d", br.Destination.Ordinal)
}

// Fingerprint returns a content-stable identity of the graph, suitable as a
// cache key: equal renderings produce equal fingerprints.
func (g *Graph) Fingerprint() string {
	sum := sha256.Sum256([]byte(Format(g)))
	return hex.EncodeToString(sum[:])
}
