package cfg

// Constructors for the common operation shapes. They keep hand-built graphs
// in fixtures and front ends readable.

// Ref references a symbol, picking the local or parameter kind from it. A nil
// symbol yields an unresolved local reference.
func Ref(s *Symbol) *Operation {
	kind := OpLocalReference
	if s != nil && s.Kind == SymbolParameter {
		kind = OpParameterReference
	}
	return &Operation{Kind: kind, Symbol: s, Syntax: s.String()}
}

// Lit is a literal with the given source text.
func Lit(syntax string) *Operation {
	return &Operation{Kind: OpLiteral, Syntax: syntax}
}

// Assign is target = value.
func Assign(target, value *Operation) *Operation {
	return &Operation{Kind: OpSimpleAssignment, Target: target, Value: value}
}

// CompoundAssign is target op= value.
func CompoundAssign(target, value *Operation) *Operation {
	return &Operation{Kind: OpCompoundAssignment, Target: target, Value: value}
}

// CoalesceAssign is target ??= value.
func CoalesceAssign(target, value *Operation) *Operation {
	return &Operation{Kind: OpCoalesceAssignment, Target: target, Value: value}
}

// Increment is target++ or target--.
func Increment(target *Operation) *Operation {
	return &Operation{Kind: OpIncrement, Target: target}
}

// Deconstruct is (a, b) = value.
func Deconstruct(value *Operation, elements ...*Operation) *Operation {
	return &Operation{Kind: OpDeconstruction, Target: Tuple(elements...), Value: value}
}

// Tuple groups elements.
func Tuple(elements ...*Operation) *Operation {
	return &Operation{Kind: OpTuple, Children: elements}
}

// Declare is a variable declarator with an optional initializer.
func Declare(s *Symbol, init *Operation) *Operation {
	return &Operation{Kind: OpVariableDeclarator, Symbol: s, Value: init, Syntax: s.String()}
}

// Capture stores value into flow capture id.
func Capture(id CaptureID, value *Operation) *Operation {
	return &Operation{Kind: OpFlowCapture, Capture: id, Value: value}
}

// CaptureRef reads flow capture id.
func CaptureRef(id CaptureID) *Operation {
	return &Operation{Kind: OpFlowCaptureReference, Capture: id}
}

// Invoke calls a method on an optional receiver.
func Invoke(instance *Operation, args ...*Operation) *Operation {
	return &Operation{Kind: OpInvocation, Instance: instance, Children: args}
}

// Call invokes a static or implicit-this method passing values by value.
func Call(values ...*Operation) *Operation {
	args := make([]*Operation, len(values))
	for i, v := range values {
		args[i] = Arg(v)
	}
	return Invoke(nil, args...)
}

// Arg is a by-value argument.
func Arg(value *Operation) *Operation {
	return &Operation{Kind: OpArgument, Value: value}
}

// RefArg is a ref argument.
func RefArg(value *Operation) *Operation {
	return &Operation{Kind: OpArgument, RefKind: RefRef, Value: value}
}

// OutArg is an out argument.
func OutArg(value *Operation) *Operation {
	return &Operation{Kind: OpArgument, RefKind: RefOut, Value: value}
}

// Member accesses a field or property of instance.
func Member(instance *Operation, name string) *Operation {
	return &Operation{Kind: OpMemberReference, Instance: instance, Syntax: name}
}

// MethodRef names a method group, optionally bound to instance.
func MethodRef(instance *Operation, name string) *Operation {
	return &Operation{Kind: OpMethodReference, Instance: instance, Syntax: name}
}

// Delegate converts target into a delegate.
func Delegate(target *Operation) *Operation {
	return &Operation{Kind: OpDelegateCreation, Children: []*Operation{target}}
}

// NameOf is nameof(arg).
func NameOf(arg *Operation) *Operation {
	return &Operation{Kind: OpNameOf, Children: []*Operation{arg}}
}

// Discard is the _ designation.
func Discard() *Operation {
	return &Operation{Kind: OpDiscard, Syntax: "_"}
}

// Lambda is an anonymous function declaring locals and evaluating body.
func Lambda(static bool, locals []*Symbol, body ...*Operation) *Operation {
	return &Operation{Kind: OpAnonymousFunction, Static: static, Locals: locals, Body: body}
}

// LocalFunc is a local function declaring locals and evaluating body.
func LocalFunc(static bool, locals []*Symbol, body ...*Operation) *Operation {
	return &Operation{Kind: OpLocalFunction, Static: static, Locals: locals, Body: body}
}

// CaughtException is the exception value bound by a catch clause.
func CaughtException() *Operation {
	return &Operation{Kind: OpCaughtException}
}

// IsNull tests operand against null.
func IsNull(operand *Operation) *Operation {
	return &Operation{Kind: OpIsNull, Children: []*Operation{operand}}
}

// Default is a default(T) value.
func Default() *Operation {
	return &Operation{Kind: OpDefaultValue}
}

// ConditionalAccessInstance is the implicit receiver inside a?.B.
func ConditionalAccessInstance() *Operation {
	return &Operation{Kind: OpConditionalAccessInstance}
}

// Binary combines two operands.
func Binary(op string, left, right *Operation) *Operation {
	return &Operation{Kind: OpBinary, Children: []*Operation{left, right}, Syntax: op}
}

// Unary applies op to operand.
func Unary(op string, operand *Operation) *Operation {
	return &Operation{Kind: OpUnary, Children: []*Operation{operand}, Syntax: op}
}

// New creates an object from constructor arguments.
func New(args ...*Operation) *Operation {
	return &Operation{Kind: OpObjectCreation, Children: args}
}

// Invalid wraps operands the front end could not bind.
func Invalid(children ...*Operation) *Operation {
	return &Operation{Kind: OpInvalid, Children: children}
}
