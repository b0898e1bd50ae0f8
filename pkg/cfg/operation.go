package cfg

import (
	"fmt"
	"strings"
)

// OperationKind is the closed set of abstract operation kinds a block can hold.
type OperationKind string

const (
	OpInvalid                   OperationKind = "invalid"
	OpLiteral                   OperationKind = "literal"
	OpLocalReference            OperationKind = "local"
	OpParameterReference        OperationKind = "parameter"
	OpFlowCapture               OperationKind = "flow_capture"
	OpFlowCaptureReference      OperationKind = "flow_capture_reference"
	OpSimpleAssignment          OperationKind = "assign"
	OpCompoundAssignment        OperationKind = "compound_assign"
	OpCoalesceAssignment        OperationKind = "coalesce_assign"
	OpIncrement                 OperationKind = "increment"
	OpDeconstruction            OperationKind = "deconstruct"
	OpTuple                     OperationKind = "tuple"
	OpVariableDeclarator        OperationKind = "declarator"
	OpInvocation                OperationKind = "invocation"
	OpArgument                  OperationKind = "argument"
	OpMemberReference           OperationKind = "member"
	OpMethodReference           OperationKind = "method_reference"
	OpDelegateCreation          OperationKind = "delegate"
	OpNameOf                    OperationKind = "nameof"
	OpDiscard                   OperationKind = "discard"
	OpAnonymousFunction         OperationKind = "lambda"
	OpLocalFunction             OperationKind = "local_function"
	OpCaughtException           OperationKind = "caught_exception"
	OpIsNull                    OperationKind = "is_null"
	OpDefaultValue              OperationKind = "default"
	OpConditionalAccessInstance OperationKind = "conditional_access_instance"
	OpUnary                     OperationKind = "unary"
	OpBinary                    OperationKind = "binary"
	OpConversion                OperationKind = "conversion"
	OpObjectCreation            OperationKind = "new"
	OpOther                     OperationKind = "other"
)

// RefKind is the passing mode of an invocation argument.
type RefKind string

const (
	RefNone RefKind = ""
	RefRef  RefKind = "ref"
	RefOut  RefKind = "out"
	RefIn   RefKind = "in"
)

// Operation is one node of an abstract operation tree. Which fields are
// meaningful depends on Kind:
//
//	LocalReference, ParameterReference   Symbol (nil when unresolved)
//	VariableDeclarator                   Symbol, Value (optional initializer)
//	FlowCapture                          Capture, Value
//	FlowCaptureReference                 Capture
//	SimpleAssignment, CompoundAssignment,
//	CoalesceAssignment, Deconstruction   Target, Value
//	Increment                            Target
//	Invocation                           Instance (optional), Children (arguments)
//	Argument                             RefKind, Value
//	MemberReference, MethodReference     Instance (optional)
//	AnonymousFunction, LocalFunction     Static, Body, Locals
//
// Every other kind evaluates Children left to right.
type Operation struct {
	Kind     OperationKind
	Symbol   *Symbol
	Capture  CaptureID
	RefKind  RefKind
	Static   bool
	Instance *Operation
	Target   *Operation
	Value    *Operation
	Children []*Operation
	Body     []*Operation
	Locals   []*Symbol
	Syntax   string // Source anchor, for debugging only
}

// Operands returns the direct sub-operations in evaluation order, excluding
// the bodies of nested functions.
func (o *Operation) Operands() []*Operation {
	var ops []*Operation
	add := func(op *Operation) {
		if op != nil {
			ops = append(ops, op)
		}
	}
	add(o.Instance)
	add(o.Target)
	add(o.Value)
	for _, c := range o.Children {
		add(c)
	}
	return ops
}

// IsSymbolReference reports whether the operation references a local or parameter.
func (o *Operation) IsSymbolReference() bool {
	return o != nil && (o.Kind == OpLocalReference || o.Kind == OpParameterReference)
}

// String renders the operation as a compact s-expression.
func (o *Operation) String() string {
	if o == nil {
		return "<nil>"
	}
	var sb strings.Builder
	o.write(&sb)
	return sb.String()
}

func (o *Operation) write(sb *strings.Builder) {
	sb.WriteString(string(o.Kind))
	switch o.Kind {
	case OpLocalReference, OpParameterReference, OpVariableDeclarator:
		sb.WriteString(" ")
		sb.WriteString(o.Symbol.String())
	case OpFlowCapture, OpFlowCaptureReference:
		fmt.Fprintf(sb, " #%d", o.Capture)
	case OpArgument:
		if o.RefKind != RefNone {
			sb.WriteString(" ")
			sb.WriteString(string(o.RefKind))
		}
	case OpAnonymousFunction, OpLocalFunction:
		if o.Static {
			sb.WriteString(" static")
		}
		if len(o.Locals) > 0 {
			names := make([]string, len(o.Locals))
			for i, s := range o.Locals {
				names[i] = s.String()
			}
			fmt.Fprintf(sb, " [%s]", strings.Join(names, ", "))
		}
	}
	operands := o.Operands()
	if len(operands) == 0 && len(o.Body) == 0 {
		return
	}
	sb.WriteString("(")
	for i, op := range operands {
		if i > 0 {
			sb.WriteString(", ")
		}
		op.write(sb)
	}
	if len(o.Body) > 0 {
		if len(operands) > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("{")
		for i, op := range o.Body {
			if i > 0 {
				sb.WriteString("; ")
			}
			op.write(sb)
		}
		sb.WriteString("}")
	}
	sb.WriteString(")")
}

// Walk visits op and its operands depth first, parents before children.
// Function bodies are visited only when intoBodies is set. Returning false
// from visit skips the operation's operands.
func Walk(op *Operation, intoBodies bool, visit func(*Operation) bool) {
	if op == nil || !visit(op) {
		return
	}
	for _, child := range op.Operands() {
		Walk(child, intoBodies, visit)
	}
	if intoBodies {
		for _, child := range op.Body {
			Walk(child, intoBodies, visit)
		}
	}
}
