package cfg

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
)

// expr lowers an expression. Conditional operators split the current block
// and leave their value in a flow capture, except inside nested functions,
// whose bodies are flattened.
func (l *csharpLowerer) expr(n *sitter.Node) *Operation {
	if n == nil {
		return nil
	}
	typ := n.Type()
	switch typ {
	case "parenthesized_expression":
		return l.expr(firstNamed(n))

	case "identifier":
		return l.reference(n)

	case "discard":
		return Discard()

	case "this_expression", "base_expression", "typeof_expression", "sizeof_expression":
		return Lit(l.text(n))

	case "default_expression":
		return Default()

	case "assignment_expression":
		return l.assignment(n)

	case "binary_expression":
		left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
		op := l.operator(n)
		if op == "??" {
			return l.coalesce(left, right)
		}
		lv := l.expr(left)
		if l.splits(right) {
			lv = l.spill(lv)
		}
		rv := l.expr(right)
		return Binary(op, lv, rv)

	case "prefix_unary_expression", "postfix_unary_expression":
		op := l.operator(n)
		operand := firstNamed(n)
		switch op {
		case "++", "--":
			inc := Increment(l.target(operand))
			inc.Syntax = op
			return inc
		case "!":
			if typ == "postfix_unary_expression" {
				return l.expr(operand)
			}
		}
		return Unary(op, l.expr(operand))

	case "invocation_expression":
		return l.invocation(n)

	case "member_access_expression":
		recv := l.expr(n.ChildByFieldName("expression"))
		return Member(recv, l.fieldText(n, "name"))

	case "element_access_expression":
		recv := l.expr(n.ChildByFieldName("expression"))
		return &Operation{Kind: OpOther, Syntax: "[]", Instance: recv, Children: l.arguments(n.ChildByFieldName("subscript"))}

	case "conditional_expression":
		return l.conditional(n)

	case "conditional_access_expression":
		return l.conditionalAccess(n)

	case "lambda_expression", "anonymous_method_expression":
		return l.function(n, OpAnonymousFunction)

	case "tuple_expression":
		var elements []*Operation
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if arg := n.NamedChild(i); arg.Type() == "argument" {
				elements = append(elements, l.expr(argumentValue(arg)))
			}
		}
		return Tuple(elements...)

	case "declaration_expression":
		return l.designation(n)

	case "cast_expression":
		value := n.ChildByFieldName("value")
		if value == nil {
			value = lastNamed(n)
		}
		return &Operation{Kind: OpConversion, Children: []*Operation{l.expr(value)}, Syntax: "cast"}

	case "as_expression", "is_expression":
		left := n.ChildByFieldName("left")
		if left == nil {
			left = firstNamed(n)
		}
		return Binary(strings.TrimSuffix(typ, "_expression"), l.expr(left), nil)

	case "is_pattern_expression":
		return l.isPattern(n)

	case "object_creation_expression", "implicit_object_creation_expression":
		return l.objectCreation(n)
	}

	if strings.HasSuffix(typ, "_literal") {
		return Lit(l.text(n))
	}

	var children []*Operation
	for i := 0; i < int(n.NamedChildCount()); i++ {
		child := n.NamedChild(i)
		if isTypeNode(child) {
			continue
		}
		if op := l.expr(child); op != nil {
			children = append(children, op)
		}
	}
	return &Operation{Kind: OpOther, Syntax: typ, Children: children}
}

// reference resolves an identifier used as a value. Names that resolve to no
// local or parameter (fields, types, method groups) stay unresolved.
func (l *csharpLowerer) reference(n *sitter.Node) *Operation {
	name := l.text(n)
	if s := l.lookup(name); s != nil {
		return Ref(s)
	}
	if name == "_" {
		return Discard()
	}
	op := Ref(nil)
	op.Syntax = name
	return op
}

// target lowers the left side of an assignment or a ref/out argument.
func (l *csharpLowerer) target(n *sitter.Node) *Operation {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "identifier":
		return l.reference(n)
	case "discard":
		return Discard()
	case "parenthesized_expression":
		return l.target(firstNamed(n))
	case "declaration_expression":
		return l.designation(n)
	case "tuple_expression":
		var elements []*Operation
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if arg := n.NamedChild(i); arg.Type() == "argument" {
				elements = append(elements, l.target(argumentValue(arg)))
			}
		}
		return Tuple(elements...)
	}
	return l.expr(n)
}

// designation declares the variables a declaration expression, pattern or
// foreach variable introduces.
func (l *csharpLowerer) designation(n *sitter.Node) *Operation {
	switch n.Type() {
	case "identifier", "single_variable_designation":
		name := l.text(n)
		if name == "_" {
			return Discard()
		}
		return Declare(l.declare(name), nil)
	case "discard":
		return Discard()
	case "declaration_expression", "declaration_pattern", "var_pattern":
		if name := n.ChildByFieldName("name"); name != nil {
			return l.designation(name)
		}
		if last := lastNamed(n); last != nil && !isTypeNode(last) {
			return l.designation(last)
		}
		return Discard()
	case "parenthesized_variable_designation", "tuple_pattern":
		var elements []*Operation
		for i := 0; i < int(n.NamedChildCount()); i++ {
			if c := n.NamedChild(i); !isTypeNode(c) {
				elements = append(elements, l.designation(c))
			}
		}
		return Tuple(elements...)
	}
	return l.target(n)
}

func (l *csharpLowerer) assignment(n *sitter.Node) *Operation {
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	op := l.operator(n)
	target := l.target(left)
	if target != nil && target.Kind == OpMemberReference && l.splits(right) {
		target.Instance = l.spill(target.Instance)
	}
	value := l.expr(right)
	switch op {
	case "=":
		if target != nil && target.Kind == OpTuple {
			return &Operation{Kind: OpDeconstruction, Target: target, Value: value}
		}
		return Assign(target, value)
	case "??=":
		return CoalesceAssign(target, value)
	}
	assign := CompoundAssign(target, value)
	assign.Syntax = op
	return assign
}

func (l *csharpLowerer) invocation(n *sitter.Node) *Operation {
	fn := n.ChildByFieldName("function")
	argList := n.ChildByFieldName("arguments")

	switch fn.Type() {
	case "identifier":
		name := l.text(fn)
		s := l.lookup(name)
		if s == nil && name == "nameof" {
			return NameOf(l.expr(argumentValue(firstNamed(argList))))
		}
		var recv *Operation
		if s != nil {
			recv = Ref(s)
		}
		call := Invoke(recv, l.arguments(argList)...)
		call.Syntax = name
		return call
	case "member_access_expression":
		recv := l.expr(fn.ChildByFieldName("expression"))
		if l.splits(argList) {
			recv = l.spill(recv)
		}
		call := Invoke(recv, l.arguments(argList)...)
		call.Syntax = l.fieldText(fn, "name")
		return call
	case "generic_name":
		call := Invoke(nil, l.arguments(argList)...)
		call.Syntax = l.text(fn)
		return call
	}
	recv := l.expr(fn)
	return Invoke(recv, l.arguments(argList)...)
}

// arguments lowers an argument list in source order.
func (l *csharpLowerer) arguments(list *sitter.Node) []*Operation {
	if list == nil {
		return nil
	}
	var args []*Operation
	for i := 0; i < int(list.NamedChildCount()); i++ {
		arg := list.NamedChild(i)
		if arg.Type() != "argument" {
			continue
		}
		value := argumentValue(arg)
		if l.splits(value) {
			for _, prev := range args {
				if prev.RefKind == RefNone || prev.RefKind == RefIn {
					prev.Value = l.spill(prev.Value)
				}
			}
		}
		switch refKind(arg) {
		case RefOut:
			args = append(args, OutArg(l.target(value)))
		case RefRef:
			args = append(args, RefArg(l.target(value)))
		case RefIn:
			a := Arg(l.expr(value))
			a.RefKind = RefIn
			args = append(args, a)
		default:
			args = append(args, Arg(l.expr(value)))
		}
	}
	return args
}

// splits reports whether lowering n opens new blocks, which happens for ?:,
// ?? and ?. outside nested functions.
func (l *csharpLowerer) splits(n *sitter.Node) bool {
	if n == nil || l.inFunction() {
		return false
	}
	switch n.Type() {
	case "lambda_expression", "anonymous_method_expression", "local_function_statement":
		return false
	case "conditional_expression", "conditional_access_expression":
		return true
	case "binary_expression":
		if l.operator(n) == "??" {
			return true
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if l.splits(n.NamedChild(i)) {
			return true
		}
	}
	return false
}

// spill evaluates an already lowered operand into a flow capture in the
// current block, so its effects precede the blocks a later operand opens.
func (l *csharpLowerer) spill(op *Operation) *Operation {
	if op == nil {
		return nil
	}
	switch op.Kind {
	case OpLiteral, OpDefaultValue, OpDiscard, OpFlowCaptureReference:
		return op
	}
	id := l.nextCapture()
	l.emit(Capture(id, op))
	return CaptureRef(id)
}

func refKind(arg *sitter.Node) RefKind {
	for i := 0; i < int(arg.ChildCount()); i++ {
		c := arg.Child(i)
		if c.IsNamed() {
			continue
		}
		switch c.Type() {
		case "ref":
			return RefRef
		case "out":
			return RefOut
		case "in":
			return RefIn
		}
	}
	return RefNone
}

func argumentValue(arg *sitter.Node) *sitter.Node {
	if arg == nil {
		return nil
	}
	if arg.Type() != "argument" {
		return arg
	}
	for i := int(arg.NamedChildCount()) - 1; i >= 0; i-- {
		if c := arg.NamedChild(i); c.Type() != "name_colon" && c.Type() != "comment" {
			return c
		}
	}
	return nil
}

// coalesce lowers left ?? right: the left value is captured, tested for null,
// and the result capture receives either it or the right value.
func (l *csharpLowerer) coalesce(left, right *sitter.Node) *Operation {
	if l.inFunction() {
		lv := l.expr(left)
		rv := l.expr(right)
		return Binary("??", lv, rv)
	}
	tested := l.nextCapture()
	l.emit(Capture(tested, l.expr(left)))
	toRight := l.branchOn(IsNull(CaptureRef(tested)), ConditionWhenTrue)

	result := l.nextCapture()
	l.startBlock()
	l.emit(Capture(result, CaptureRef(tested)))
	toJoin := l.leave()

	toRight.Destination = l.startBlock()
	value := l.expr(right)
	l.emit(Capture(result, value))
	patch([]*Branch{toJoin}, l.startBlock())
	return CaptureRef(result)
}

func (l *csharpLowerer) conditional(n *sitter.Node) *Operation {
	condition := n.ChildByFieldName("condition")
	consequence := n.ChildByFieldName("consequence")
	alternative := n.ChildByFieldName("alternative")
	if l.inFunction() {
		c := l.expr(condition)
		t := l.expr(consequence)
		f := l.expr(alternative)
		return &Operation{Kind: OpOther, Syntax: "?:", Children: []*Operation{c, t, f}}
	}

	toElse := l.branchOn(l.expr(condition), ConditionWhenFalse)
	result := l.nextCapture()

	l.startBlock()
	whenTrue := l.expr(consequence)
	l.emit(Capture(result, whenTrue))
	toJoin := l.leave()

	toElse.Destination = l.startBlock()
	whenFalse := l.expr(alternative)
	l.emit(Capture(result, whenFalse))
	patch([]*Branch{toJoin}, l.startBlock())
	return CaptureRef(result)
}

// conditionalAccess lowers a?.B. The receiver is captured and tested for
// null; the access itself goes through the implicit conditional-access
// instance, and the null path yields a default value.
func (l *csharpLowerer) conditionalAccess(n *sitter.Node) *Operation {
	receiver := n.ChildByFieldName("condition")
	if receiver == nil {
		receiver = firstNamed(n)
	}
	var binding *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c != receiver {
			binding = c
		}
	}

	if l.inFunction() {
		recv := l.expr(receiver)
		return &Operation{Kind: OpOther, Syntax: "?.", Children: []*Operation{recv, l.binding(binding)}}
	}

	tested := l.nextCapture()
	l.emit(Capture(tested, l.expr(receiver)))
	toNull := l.branchOn(IsNull(CaptureRef(tested)), ConditionWhenTrue)

	result := l.nextCapture()
	l.startBlock()
	access := l.binding(binding)
	l.emit(Capture(result, access))
	toJoin := l.leave()

	toNull.Destination = l.startBlock()
	l.emit(Capture(result, Default()))
	patch([]*Branch{toJoin}, l.startBlock())
	return CaptureRef(result)
}

func (l *csharpLowerer) binding(n *sitter.Node) *Operation {
	if n == nil {
		return ConditionalAccessInstance()
	}
	switch n.Type() {
	case "member_binding_expression":
		name := n.ChildByFieldName("name")
		if name == nil {
			name = lastNamed(n)
		}
		return Member(ConditionalAccessInstance(), l.text(name))
	case "element_binding_expression":
		return &Operation{Kind: OpOther, Syntax: "[]", Instance: ConditionalAccessInstance(), Children: l.arguments(firstNamed(n))}
	}
	return &Operation{Kind: OpOther, Syntax: n.Type(), Instance: ConditionalAccessInstance(), Children: []*Operation{l.expr(n)}}
}

// isPattern lowers x is T y: the tested value is read, then the pattern's
// designations are written.
func (l *csharpLowerer) isPattern(n *sitter.Node) *Operation {
	left := n.ChildByFieldName("expression")
	if left == nil {
		left = firstNamed(n)
	}
	pattern := n.ChildByFieldName("pattern")
	value := l.expr(left)

	var targets []*Operation
	l.patternDesignations(pattern, &targets)
	if len(targets) == 0 {
		return Binary("is", value, nil)
	}
	var target *Operation
	if len(targets) == 1 {
		target = Assign(targets[0], value)
	} else {
		target = &Operation{Kind: OpDeconstruction, Target: Tuple(targets...), Value: value}
	}
	return Binary("is", target, nil)
}

func (l *csharpLowerer) patternDesignations(n *sitter.Node, targets *[]*Operation) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "declaration_pattern", "var_pattern":
		if d := l.designation(n); d.Kind != OpDiscard {
			*targets = append(*targets, d)
		}
		return
	case "constant_pattern":
		return
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		l.patternDesignations(n.NamedChild(i), targets)
	}
}

func (l *csharpLowerer) objectCreation(n *sitter.Node) *Operation {
	create := New(l.arguments(n.ChildByFieldName("arguments"))...)
	init := n.ChildByFieldName("initializer")
	if init == nil {
		init = childOfType(n, "initializer_expression")
	}
	if init == nil {
		return create
	}
	for i := 0; i < int(init.NamedChildCount()); i++ {
		c := init.NamedChild(i)
		// Member initializers name properties, only their values are evaluated.
		if c.Type() == "assignment_expression" {
			c = c.ChildByFieldName("right")
		}
		if op := l.expr(c); op != nil {
			create.Children = append(create.Children, op)
		}
	}
	return create
}

// function lowers a lambda, anonymous method or local function into a single
// operation whose body is the flattened sequence of its statements.
func (l *csharpLowerer) function(n *sitter.Node, kind OperationKind) *Operation {
	fn := &function{}
	l.funcs = append(l.funcs, fn)
	l.pushScope()

	params := n.ChildByFieldName("parameters")
	if params == nil {
		params = childOfType(n, "parameter_list")
	}
	l.declareParameters(params, func(name string) *Symbol {
		s := l.b.NewSymbol(name, SymbolParameter)
		fn.locals = append(fn.locals, s)
		return s
	})

	body := n.ChildByFieldName("body")
	if body == nil {
		body = childOfType(n, "block")
	}
	var ops []*Operation
	l.flatten(body, &ops)

	l.popScope()
	l.funcs = l.funcs[:len(l.funcs)-1]

	op := &Operation{Kind: kind, Static: hasModifier(n, l.content, "static"), Locals: fn.locals, Body: ops}
	if kind == OpLocalFunction {
		op.Syntax = l.fieldText(n, "name")
	}
	return op
}

// flatten appends the operations of a nested function body in source order.
// Control flow inside the function is irrelevant to the enclosing method.
func (l *csharpLowerer) flatten(n *sitter.Node, ops *[]*Operation) {
	if n == nil || isTypeNode(n) {
		return
	}
	switch n.Type() {
	case "local_declaration_statement":
		for i := 0; i < int(n.NamedChildCount()); i++ {
			l.flatten(n.NamedChild(i), ops)
		}
	case "variable_declaration":
		*ops = append(*ops, l.declarators(n)...)
	case "local_function_statement":
		*ops = append(*ops, l.function(n, OpLocalFunction))
	case "catch_declaration":
		if name := n.ChildByFieldName("name"); name != nil {
			*ops = append(*ops, Assign(Ref(l.declare(l.text(name))), CaughtException()))
		}
	case "foreach_statement":
		l.pushScope()
		collection := l.expr(n.ChildByFieldName("right"))
		*ops = append(*ops, Assign(l.designation(n.ChildByFieldName("left")), collection))
		l.flatten(n.ChildByFieldName("body"), ops)
		l.popScope()
	case "block", "for_statement", "catch_clause", "using_statement", "switch_section":
		l.pushScope()
		for i := 0; i < int(n.NamedChildCount()); i++ {
			l.flatten(n.NamedChild(i), ops)
		}
		l.popScope()
	default:
		if !isStatement(n) && !isClause(n) {
			if op := l.expr(n); op != nil {
				*ops = append(*ops, op)
			}
			return
		}
		for i := 0; i < int(n.NamedChildCount()); i++ {
			l.flatten(n.NamedChild(i), ops)
		}
	}
}

// operator returns the operator token of a unary, binary or assignment node.
func (l *csharpLowerer) operator(n *sitter.Node) string {
	if op := n.ChildByFieldName("operator"); op != nil {
		return l.text(op)
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if !c.IsNamed() || c.Type() == "assignment_operator" {
			return l.text(c)
		}
	}
	return ""
}

func (l *csharpLowerer) fieldText(n *sitter.Node, field string) string {
	if f := n.ChildByFieldName(field); f != nil {
		return l.text(f)
	}
	return ""
}

func hasModifier(n *sitter.Node, content []byte, modifier string) bool {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch c.Type() {
		case "modifier", modifier:
			if c.Content(content) == modifier {
				return true
			}
		case "parameter_list", "block", "arrow_expression_clause", "=>":
			return false
		}
	}
	return false
}

func isClause(n *sitter.Node) bool {
	switch n.Type() {
	case "catch_clause", "finally_clause", "catch_filter_clause", "else_clause",
		"switch_body", "switch_section", "arrow_expression_clause":
		return true
	}
	return false
}

func lastNamed(n *sitter.Node) *sitter.Node {
	for i := int(n.NamedChildCount()) - 1; i >= 0; i-- {
		if c := n.NamedChild(i); c.Type() != "comment" {
			return c
		}
	}
	return nil
}
