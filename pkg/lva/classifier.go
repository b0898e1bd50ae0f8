package lva

import (
	"fmt"

	"github.com/l3aro/go-liveness/pkg/cfg"
)

// EffectKind classifies what an operation does to a variable.
type EffectKind int

const (
	EffectRead EffectKind = iota
	EffectWrite
	EffectReadWrite
	EffectFlowCaptureWrite
	EffectFlowCaptureRead
	EffectCaptureBoundary
)

func (k EffectKind) String() string {
	switch k {
	case EffectRead:
		return "read"
	case EffectWrite:
		return "write"
	case EffectReadWrite:
		return "read-write"
	case EffectFlowCaptureWrite:
		return "capture-write"
	case EffectFlowCaptureRead:
		return "capture-read"
	case EffectCaptureBoundary:
		return "boundary"
	default:
		return "unknown"
	}
}

// Effect is one classified variable access. Boundary is set for
// EffectCaptureBoundary and points at the function operation.
type Effect struct {
	Kind     EffectKind
	Var      VarID
	Boundary *cfg.Operation
}

func (e Effect) String() string {
	switch {
	case e.Kind == EffectCaptureBoundary:
		return e.Kind.String()
	case e.Var.IsCapture():
		return fmt.Sprintf("%s #%d", e.Kind, e.Var.capture)
	default:
		return fmt.Sprintf("%s %s", e.Kind, e.Var.symbol)
	}
}

// Classifier turns operation trees into execution-ordered effects. Symbols in
// the excluded set (captured by closures) and unresolved references never
// produce effects.
type Classifier struct {
	excluded map[*cfg.Symbol]struct{}
}

// NewClassifier creates a classifier that ignores the excluded symbols.
func NewClassifier(excluded map[*cfg.Symbol]struct{}) *Classifier {
	if excluded == nil {
		excluded = make(map[*cfg.Symbol]struct{})
	}
	return &Classifier{excluded: excluded}
}

// Effects returns the effects of op in evaluation order.
func (c *Classifier) Effects(op *cfg.Operation) []Effect {
	var effects []Effect
	c.visit(op, &effects)
	return effects
}

func (c *Classifier) tracked(s *cfg.Symbol) bool {
	if s == nil {
		return false
	}
	_, excluded := c.excluded[s]
	return !excluded
}

func (c *Classifier) symbolEffect(kind EffectKind, s *cfg.Symbol, effects *[]Effect) {
	if c.tracked(s) {
		*effects = append(*effects, Effect{Kind: kind, Var: SymbolVar(s)})
	}
}

func (c *Classifier) visit(op *cfg.Operation, effects *[]Effect) {
	if op == nil {
		return
	}
	switch op.Kind {
	case cfg.OpNameOf, cfg.OpDiscard, cfg.OpLiteral, cfg.OpDefaultValue,
		cfg.OpConditionalAccessInstance, cfg.OpCaughtException:
		// No variable is read. ConditionalAccessInstance refers to the
		// receiver capture implicitly and is deliberately not a read.

	case cfg.OpLocalReference, cfg.OpParameterReference:
		c.symbolEffect(EffectRead, op.Symbol, effects)

	case cfg.OpFlowCaptureReference:
		*effects = append(*effects, Effect{Kind: EffectFlowCaptureRead, Var: CaptureVar(op.Capture)})

	case cfg.OpFlowCapture:
		c.visit(op.Value, effects)
		*effects = append(*effects, Effect{Kind: EffectFlowCaptureWrite, Var: CaptureVar(op.Capture)})

	case cfg.OpSimpleAssignment, cfg.OpDeconstruction:
		writes := c.assignmentTargets(op.Target, effects)
		c.visit(op.Value, effects)
		for _, s := range writes {
			c.symbolEffect(EffectWrite, s, effects)
		}

	case cfg.OpCompoundAssignment, cfg.OpCoalesceAssignment, cfg.OpIncrement:
		if s, ok := symbolTarget(op.Target); ok {
			c.symbolEffect(EffectReadWrite, s, effects)
		} else {
			c.visit(op.Target, effects)
		}
		c.visit(op.Value, effects)

	case cfg.OpVariableDeclarator:
		if op.Value != nil {
			c.visit(op.Value, effects)
			c.symbolEffect(EffectWrite, op.Symbol, effects)
		}

	case cfg.OpAnonymousFunction, cfg.OpLocalFunction:
		if !op.Static {
			*effects = append(*effects, Effect{Kind: EffectCaptureBoundary, Boundary: op})
		}

	case cfg.OpMemberReference, cfg.OpMethodReference:
		// The receiver must survive until the member is used, even when the
		// member is only turned into a delegate here.
		c.visit(op.Instance, effects)

	case cfg.OpInvocation:
		c.visit(op.Instance, effects)
		c.arguments(op.Children, effects)

	default:
		c.arguments(op.Operands(), effects)
	}
}

// arguments evaluates operands left to right. Out arguments are written once
// all operands have been evaluated, when the callee returns.
func (c *Classifier) arguments(ops []*cfg.Operation, effects *[]Effect) {
	var outs []*cfg.Symbol
	for _, op := range ops {
		if op.Kind != cfg.OpArgument {
			c.visit(op, effects)
			continue
		}
		switch op.RefKind {
		case cfg.RefOut:
			if s, ok := symbolTarget(op.Value); ok {
				outs = append(outs, s)
			} else if op.Value != nil && op.Value.Kind != cfg.OpDiscard {
				c.visit(op.Value, effects)
			}
		case cfg.RefRef:
			if s, ok := symbolTarget(op.Value); ok {
				c.symbolEffect(EffectReadWrite, s, effects)
			} else {
				c.visit(op.Value, effects)
			}
		default:
			c.visit(op.Value, effects)
		}
	}
	for _, s := range outs {
		c.symbolEffect(EffectWrite, s, effects)
	}
}

// assignmentTargets evaluates the parts of an assignment target that are read
// before the value (member receivers) and returns the symbols written after it.
func (c *Classifier) assignmentTargets(target *cfg.Operation, effects *[]Effect) []*cfg.Symbol {
	if target == nil {
		return nil
	}
	if s, ok := symbolTarget(target); ok {
		return []*cfg.Symbol{s}
	}
	switch target.Kind {
	case cfg.OpDiscard:
		return nil
	case cfg.OpTuple:
		var writes []*cfg.Symbol
		for _, element := range target.Children {
			writes = append(writes, c.assignmentTargets(element, effects)...)
		}
		return writes
	default:
		c.visit(target, effects)
		return nil
	}
}

// symbolTarget reports whether op denotes a symbol as a storage location.
// The symbol is nil when the reference could not be resolved.
func symbolTarget(op *cfg.Operation) (*cfg.Symbol, bool) {
	if op == nil {
		return nil, false
	}
	switch op.Kind {
	case cfg.OpLocalReference, cfg.OpParameterReference, cfg.OpVariableDeclarator:
		return op.Symbol, true
	}
	return nil, false
}
