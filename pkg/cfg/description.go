package cfg

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// GraphDescription is the YAML form of a Graph, used to feed hand-written or
// externally produced graphs to the analyses and to dump lowered graphs.
type GraphDescription struct {
	Method     string              `yaml:"method"`
	Parameters []string            `yaml:"parameters,omitempty"`
	Locals     []string            `yaml:"locals,omitempty"`
	Regions    []RegionDescription `yaml:"regions,omitempty"`
	Blocks     []BlockDescription  `yaml:"blocks"`
}

// RegionDescription describes a region nested in the root region or in its
// parent description. Composite regions may omit their range, which is then
// derived from the nested regions.
type RegionDescription struct {
	Kind    RegionKind          `yaml:"kind"`
	First   *int                `yaml:"first,omitempty"`
	Last    *int                `yaml:"last,omitempty"`
	Regions []RegionDescription `yaml:"regions,omitempty"`
}

// BlockDescription describes one block. Blocks are listed in ordinal order,
// the first must be the entry block and the last the exit block.
type BlockDescription struct {
	Kind   BlockKind              `yaml:"kind,omitempty"`
	Ops    []OperationDescription `yaml:"ops,omitempty"`
	Branch *BranchDescription     `yaml:"branch,omitempty"`
	Next   *BranchDescription     `yaml:"next,omitempty"`
}

// BranchDescription describes a conditional (Branch) or fall-through (Next)
// transfer. Value and When only apply to the conditional branch; Value on a
// fall-through holds the returned or thrown value.
type BranchDescription struct {
	To        *int                  `yaml:"to,omitempty"`
	Semantics BranchSemantics       `yaml:"semantics,omitempty"`
	When      ConditionKind         `yaml:"when,omitempty"`
	Value     *OperationDescription `yaml:"value,omitempty"`
}

// OperationDescription is the YAML form of an Operation. Symbol names are
// resolved against the method's parameters and locals and the locals of the
// enclosing function descriptions; unknown names stay unresolved.
type OperationDescription struct {
	Kind     OperationKind          `yaml:"kind"`
	Symbol   string                 `yaml:"symbol,omitempty"`
	Capture  int                    `yaml:"capture,omitempty"`
	Ref      RefKind                `yaml:"ref,omitempty"`
	Static   bool                   `yaml:"static,omitempty"`
	Instance *OperationDescription  `yaml:"instance,omitempty"`
	Target   *OperationDescription  `yaml:"target,omitempty"`
	Value    *OperationDescription  `yaml:"value,omitempty"`
	Children []OperationDescription `yaml:"children,omitempty"`
	Body     []OperationDescription `yaml:"body,omitempty"`
	Locals   []string               `yaml:"locals,omitempty"`
	Syntax   string                 `yaml:"syntax,omitempty"`
}

// LoadGraph reads and decodes a YAML graph description file.
func LoadGraph(path string) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading graph file %s: %w", path, err)
	}
	g, err := DecodeGraph(data)
	if err != nil {
		return nil, fmt.Errorf("decoding graph file %s: %w", path, err)
	}
	return g, nil
}

// DecodeGraph decodes and validates a YAML graph description.
func DecodeGraph(data []byte) (*Graph, error) {
	var desc GraphDescription
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("parsing graph description: %w", err)
	}
	return desc.Graph()
}

// Graph converts the description into a validated Graph.
func (d *GraphDescription) Graph() (*Graph, error) {
	if len(d.Blocks) < 2 {
		return nil, fmt.Errorf("%w: need at least entry and exit blocks", ErrInvalidGraph)
	}

	g := &Graph{Name: d.Method}
	sc := newScope(nil)
	ordinal := 0
	for _, name := range d.Parameters {
		s := &Symbol{Ordinal: ordinal, Name: name, Kind: SymbolParameter}
		ordinal++
		g.Parameters = append(g.Parameters, s)
		sc.declare(s)
	}
	for _, name := range d.Locals {
		s := &Symbol{Ordinal: ordinal, Name: name, Kind: SymbolLocal}
		ordinal++
		g.Locals = append(g.Locals, s)
		sc.declare(s)
	}
	dec := &opDecoder{nextOrdinal: ordinal}

	last := len(d.Blocks) - 1
	g.Root = &Region{Kind: RegionRoot, FirstBlockOrdinal: 0, LastBlockOrdinal: last}
	for _, rd := range d.Regions {
		r, err := rd.region(g.Root)
		if err != nil {
			return nil, err
		}
		g.Root.NestedRegions = append(g.Root.NestedRegions, r)
	}

	g.Blocks = make([]*BasicBlock, len(d.Blocks))
	for i, bd := range d.Blocks {
		kind := bd.Kind
		if kind == "" {
			switch i {
			case 0:
				kind = BlockKindEntry
			case last:
				kind = BlockKindExit
			default:
				kind = BlockKindBlock
			}
		}
		g.Blocks[i] = &BasicBlock{
			Ordinal:         i,
			Kind:            kind,
			EnclosingRegion: innermostRegion(g.Root, i),
			graph:           g,
		}
	}

	for i, bd := range d.Blocks {
		blk := g.Blocks[i]
		for _, od := range bd.Ops {
			blk.Operations = append(blk.Operations, dec.operation(od, sc))
		}
		if bd.Branch != nil {
			dest, err := destination(g, bd.Branch.To)
			if err != nil {
				return nil, fmt.Errorf("block %d branch: %w", i, err)
			}
			if bd.Branch.Value == nil {
				return nil, fmt.Errorf("%w: block %d conditional branch has no value", ErrInvalidGraph, i)
			}
			when := bd.Branch.When
			if when == ConditionNone {
				when = ConditionWhenTrue
			}
			blk.BranchValue = dec.operation(*bd.Branch.Value, sc)
			blk.ConditionKind = when
			blk.Conditional = &Branch{Source: blk, Destination: dest, Semantics: semanticsOrRegular(bd.Branch.Semantics)}
		}
		if bd.Next != nil {
			dest, err := destination(g, bd.Next.To)
			if err != nil {
				return nil, fmt.Errorf("block %d next: %w", i, err)
			}
			if bd.Next.Value != nil {
				if blk.BranchValue != nil {
					return nil, fmt.Errorf("%w: block %d has two branch values", ErrInvalidGraph, i)
				}
				blk.BranchValue = dec.operation(*bd.Next.Value, sc)
			}
			blk.FallThrough = &Branch{Source: blk, Destination: dest, Semantics: semanticsOrRegular(bd.Next.Semantics)}
		}
	}

	linkPredecessors(g)
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func semanticsOrRegular(s BranchSemantics) BranchSemantics {
	if s == "" {
		return SemanticsRegular
	}
	return s
}

func destination(g *Graph, to *int) (*BasicBlock, error) {
	if to == nil {
		return nil, nil
	}
	if *to < 0 || *to >= len(g.Blocks) {
		return nil, fmt.Errorf("%w: destination %d out of range", ErrInvalidGraph, *to)
	}
	return g.Blocks[*to], nil
}

func (rd RegionDescription) region(parent *Region) (*Region, error) {
	r := &Region{Kind: rd.Kind, EnclosingRegion: parent}
	for _, nd := range rd.Regions {
		nested, err := nd.region(r)
		if err != nil {
			return nil, err
		}
		r.NestedRegions = append(r.NestedRegions, nested)
	}
	switch {
	case rd.First != nil && rd.Last != nil:
		r.FirstBlockOrdinal, r.LastBlockOrdinal = *rd.First, *rd.Last
	case len(r.NestedRegions) > 0:
		r.FirstBlockOrdinal = r.NestedRegions[0].FirstBlockOrdinal
		r.LastBlockOrdinal = r.NestedRegions[len(r.NestedRegions)-1].LastBlockOrdinal
	default:
		return nil, fmt.Errorf("%w: %s region needs first and last", ErrInvalidGraph, rd.Kind)
	}
	if r.FirstBlockOrdinal > r.LastBlockOrdinal {
		return nil, fmt.Errorf("%w: %s region range %d..%d is empty", ErrInvalidGraph,
			rd.Kind, r.FirstBlockOrdinal, r.LastBlockOrdinal)
	}
	return r, nil
}

func innermostRegion(r *Region, ordinal int) *Region {
	for _, nested := range r.NestedRegions {
		if nested.Contains(ordinal) {
			return innermostRegion(nested, ordinal)
		}
	}
	return r
}

// scope resolves symbol names, innermost declarations first.
type scope struct {
	parent  *scope
	symbols map[string]*Symbol
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, symbols: make(map[string]*Symbol)}
}

func (s *scope) declare(sym *Symbol) {
	s.symbols[sym.Name] = sym
}

func (s *scope) lookup(name string) *Symbol {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols[name]; ok {
			return sym
		}
	}
	return nil
}

type opDecoder struct {
	nextOrdinal int
}

func (d *opDecoder) operation(od OperationDescription, sc *scope) *Operation {
	op := &Operation{
		Kind:    od.Kind,
		Capture: CaptureID(od.Capture),
		RefKind: od.Ref,
		Static:  od.Static,
		Syntax:  od.Syntax,
	}
	if od.Symbol != "" {
		op.Symbol = sc.lookup(od.Symbol)
		if op.Syntax == "" {
			op.Syntax = od.Symbol
		}
	}
	if op.Kind == OpLocalReference && op.Symbol != nil && op.Symbol.Kind == SymbolParameter {
		op.Kind = OpParameterReference
	}

	inner := sc
	if len(od.Locals) > 0 {
		inner = newScope(sc)
		for _, name := range od.Locals {
			s := &Symbol{Ordinal: d.nextOrdinal, Name: name, Kind: SymbolLocal}
			d.nextOrdinal++
			op.Locals = append(op.Locals, s)
			inner.declare(s)
		}
	}

	if od.Instance != nil {
		op.Instance = d.operation(*od.Instance, sc)
	}
	if od.Target != nil {
		op.Target = d.operation(*od.Target, sc)
	}
	if od.Value != nil {
		op.Value = d.operation(*od.Value, sc)
	}
	for _, cd := range od.Children {
		op.Children = append(op.Children, d.operation(cd, sc))
	}
	for _, bd := range od.Body {
		op.Body = append(op.Body, d.operation(bd, inner))
	}
	return op
}

// EncodeGraph renders g as a YAML graph description.
func EncodeGraph(g *Graph) ([]byte, error) {
	desc := Describe(g)
	data, err := yaml.Marshal(desc)
	if err != nil {
		return nil, fmt.Errorf("encoding graph %s: %w", g.Name, err)
	}
	return data, nil
}

// Describe converts g into its description form.
func Describe(g *Graph) *GraphDescription {
	desc := &GraphDescription{Method: g.Name}
	for _, p := range g.Parameters {
		desc.Parameters = append(desc.Parameters, p.Name)
	}
	for _, l := range g.Locals {
		desc.Locals = append(desc.Locals, l.Name)
	}
	for _, r := range g.Root.NestedRegions {
		desc.Regions = append(desc.Regions, describeRegion(r))
	}
	for _, blk := range g.Blocks {
		bd := BlockDescription{Kind: blk.Kind}
		for _, op := range blk.Operations {
			bd.Ops = append(bd.Ops, describeOperation(op))
		}
		if blk.Conditional != nil {
			bd.Branch = &BranchDescription{
				To:        ordinalOf(blk.Conditional.Destination),
				Semantics: blk.Conditional.Semantics,
				When:      blk.ConditionKind,
			}
			if blk.BranchValue != nil {
				v := describeOperation(blk.BranchValue)
				bd.Branch.Value = &v
			}
		}
		if blk.FallThrough != nil {
			bd.Next = &BranchDescription{
				To:        ordinalOf(blk.FallThrough.Destination),
				Semantics: blk.FallThrough.Semantics,
			}
			if blk.Conditional == nil && blk.BranchValue != nil {
				v := describeOperation(blk.BranchValue)
				bd.Next.Value = &v
			}
		}
		desc.Blocks = append(desc.Blocks, bd)
	}
	return desc
}

func ordinalOf(b *BasicBlock) *int {
	if b == nil {
		return nil
	}
	n := b.Ordinal
	return &n
}

func describeRegion(r *Region) RegionDescription {
	first, last := r.FirstBlockOrdinal, r.LastBlockOrdinal
	rd := RegionDescription{Kind: r.Kind, First: &first, Last: &last}
	for _, nested := range r.NestedRegions {
		rd.Regions = append(rd.Regions, describeRegion(nested))
	}
	return rd
}

func describeOperation(op *Operation) OperationDescription {
	od := OperationDescription{
		Kind:    op.Kind,
		Capture: int(op.Capture),
		Ref:     op.RefKind,
		Static:  op.Static,
		Syntax:  op.Syntax,
	}
	if op.Symbol != nil {
		od.Symbol = op.Symbol.Name
		if od.Syntax == od.Symbol {
			od.Syntax = ""
		}
	}
	if op.Instance != nil {
		v := describeOperation(op.Instance)
		od.Instance = &v
	}
	if op.Target != nil {
		v := describeOperation(op.Target)
		od.Target = &v
	}
	if op.Value != nil {
		v := describeOperation(op.Value)
		od.Value = &v
	}
	for _, c := range op.Children {
		od.Children = append(od.Children, describeOperation(c))
	}
	for _, b := range op.Body {
		od.Body = append(od.Body, describeOperation(b))
	}
	for _, l := range op.Locals {
		od.Locals = append(od.Locals, l.Name)
	}
	return od
}
