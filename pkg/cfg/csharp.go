package cfg

import (
	"errors"
	"fmt"
	"os"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/csharp"
)

// ErrMethodNotFound is returned when the requested method is not declared in
// the parsed source.
var ErrMethodNotFound = errors.New("method not found")

// NewCSharpParser creates a new tree-sitter parser for C#.
func NewCSharpParser() *sitter.Parser {
	parser := sitter.NewParser()
	parser.SetLanguage(csharp.GetLanguage())
	return parser
}

// ExtractCSharpCFG lowers the named method of a C# file into a Graph.
func ExtractCSharpCFG(filePath string, method string) (*Graph, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("reading file %s: %w", filePath, err)
	}
	g, err := ExtractCSharpCFGFromBytes(content, method)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filePath, err)
	}
	return g, nil
}

// ExtractCSharpCFGFromBytes lowers the named method of C# source into a Graph.
// The first declaration wins when the method is overloaded.
func ExtractCSharpCFGFromBytes(content []byte, method string) (*Graph, error) {
	tree := NewCSharpParser().Parse(nil, content)
	if tree == nil {
		return nil, fmt.Errorf("parsing C# source failed")
	}
	defer tree.Close()

	var decl *sitter.Node
	walkMethods(tree.RootNode(), content, func(name string, n *sitter.Node) bool {
		if name == method {
			decl = n
			return false
		}
		return true
	})
	if decl == nil {
		return nil, fmt.Errorf("%q: %w", method, ErrMethodNotFound)
	}

	l := newCSharpLowerer(content, method)
	return l.lowerMethod(decl)
}

// ExtractCSharpMethods lists the methods and constructors declared in C#
// source, in declaration order.
func ExtractCSharpMethods(content []byte) ([]string, error) {
	tree := NewCSharpParser().Parse(nil, content)
	if tree == nil {
		return nil, fmt.Errorf("parsing C# source failed")
	}
	defer tree.Close()

	var names []string
	seen := make(map[string]bool)
	walkMethods(tree.RootNode(), content, func(name string, _ *sitter.Node) bool {
		if !seen[name] {
			seen[name] = true
			names = append(names, name)
		}
		return true
	})
	return names, nil
}

// ExtractCSharpCFGs lowers every method of C# source from a single parse,
// in declaration order. Overloads after the first are skipped.
func ExtractCSharpCFGs(content []byte) ([]*Graph, error) {
	tree := NewCSharpParser().Parse(nil, content)
	if tree == nil {
		return nil, fmt.Errorf("parsing C# source failed")
	}
	defer tree.Close()

	var (
		graphs []*Graph
		err    error
	)
	seen := make(map[string]bool)
	walkMethods(tree.RootNode(), content, func(name string, n *sitter.Node) bool {
		if seen[name] {
			return true
		}
		seen[name] = true
		var g *Graph
		g, err = newCSharpLowerer(content, name).lowerMethod(n)
		if err != nil {
			err = fmt.Errorf("%s: %w", name, err)
			return false
		}
		graphs = append(graphs, g)
		return true
	})
	if err != nil {
		return nil, err
	}
	return graphs, nil
}

// walkMethods calls visit for every method or constructor with a body until
// visit returns false. Local functions are not methods and are skipped.
func walkMethods(node *sitter.Node, content []byte, visit func(name string, n *sitter.Node) bool) bool {
	if node == nil {
		return true
	}
	switch node.Type() {
	case "method_declaration", "constructor_declaration":
		if node.ChildByFieldName("body") != nil {
			if name := node.ChildByFieldName("name"); name != nil {
				if !visit(name.Content(content), node) {
					return false
				}
			}
		}
		return true
	case "local_function_statement":
		return true
	}
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if !walkMethods(node.NamedChild(i), content, visit) {
			return false
		}
	}
	return true
}

// jumpFrame tracks the pending exits of a loop or switch.
type jumpFrame struct {
	breaks      []*Branch
	continues   []*Branch
	continuable bool
}

// function collects the locals a lambda or local function declares.
type function struct {
	locals []*Symbol
}

// csharpLowerer turns a tree-sitter method into blocks and operations. It
// keeps the block under construction in cur; cur is nil after a statement
// that does not complete normally.
type csharpLowerer struct {
	content  []byte
	b        *Builder
	cur      *BasicBlock
	scopes   []map[string]*Symbol
	jumps    []*jumpFrame
	funcs    []*function
	captures CaptureID
}

func newCSharpLowerer(content []byte, method string) *csharpLowerer {
	return &csharpLowerer{
		content: content,
		b:       NewBuilder(method),
	}
}

func (l *csharpLowerer) lowerMethod(decl *sitter.Node) (*Graph, error) {
	l.pushScope()
	defer l.popScope()
	l.declareParameters(decl.ChildByFieldName("parameters"), func(name string) *Symbol {
		return l.b.Parameter(name)
	})

	first := l.b.NewBlock()
	l.b.Goto(l.b.Entry(), first)
	l.cur = first

	body := decl.ChildByFieldName("body")
	if body.Type() == "arrow_expression_clause" {
		value := l.expr(firstNamed(body))
		l.ensureBlock()
		l.b.Return(l.cur, value)
		l.cur = nil
	} else {
		l.stmt(body)
	}
	if l.cur != nil {
		l.b.Goto(l.cur, l.b.Exit())
	}
	return l.b.Build()
}

func (l *csharpLowerer) text(n *sitter.Node) string {
	return n.Content(l.content)
}

func (l *csharpLowerer) pushScope() {
	l.scopes = append(l.scopes, make(map[string]*Symbol))
}

func (l *csharpLowerer) popScope() {
	l.scopes = l.scopes[:len(l.scopes)-1]
}

func (l *csharpLowerer) lookup(name string) *Symbol {
	for i := len(l.scopes) - 1; i >= 0; i-- {
		if s, ok := l.scopes[i][name]; ok {
			return s
		}
	}
	return nil
}

// declare introduces a local in the innermost scope. Inside a nested function
// the local belongs to the function, not to the method.
func (l *csharpLowerer) declare(name string) *Symbol {
	var s *Symbol
	if len(l.funcs) > 0 {
		s = l.b.NewSymbol(name, SymbolLocal)
		fn := l.funcs[len(l.funcs)-1]
		fn.locals = append(fn.locals, s)
	} else {
		s = l.b.Local(name)
	}
	l.scopes[len(l.scopes)-1][name] = s
	return s
}

func (l *csharpLowerer) declareParameters(list *sitter.Node, declare func(name string) *Symbol) {
	if list == nil {
		return
	}
	if list.Type() == "identifier" {
		l.scopes[len(l.scopes)-1][l.text(list)] = declare(l.text(list))
		return
	}
	for i := 0; i < int(list.NamedChildCount()); i++ {
		p := list.NamedChild(i)
		if p.Type() != "parameter" {
			continue
		}
		if name := p.ChildByFieldName("name"); name != nil {
			l.scopes[len(l.scopes)-1][l.text(name)] = declare(l.text(name))
		}
	}
}

// inFunction reports whether lowering happens inside a lambda or local
// function body, where control flow is flattened into the function's body.
func (l *csharpLowerer) inFunction() bool {
	return len(l.funcs) > 0
}

func (l *csharpLowerer) ensureBlock() {
	if l.cur == nil {
		l.cur = l.b.NewBlock()
	}
}

// startBlock opens a new block that the current one falls through to.
func (l *csharpLowerer) startBlock() *BasicBlock {
	next := l.b.NewBlock()
	if l.cur != nil {
		l.b.Goto(l.cur, next)
	}
	l.cur = next
	return next
}

func (l *csharpLowerer) emit(op *Operation) {
	if op == nil {
		return
	}
	l.ensureBlock()
	l.cur.Operations = append(l.cur.Operations, op)
}

// leave ends the current block with a regular jump whose destination is
// patched once it exists.
func (l *csharpLowerer) leave() *Branch {
	if l.cur == nil {
		return nil
	}
	br := &Branch{Source: l.cur, Semantics: SemanticsRegular}
	l.cur.FallThrough = br
	l.cur = nil
	return br
}

// branchOn ends the current block with a conditional jump on value.
func (l *csharpLowerer) branchOn(value *Operation, cond ConditionKind) *Branch {
	l.ensureBlock()
	br := &Branch{Source: l.cur, Semantics: SemanticsRegular}
	l.cur.BranchValue = value
	l.cur.ConditionKind = cond
	l.cur.Conditional = br
	return br
}

func patch(branches []*Branch, to *BasicBlock) {
	for _, br := range branches {
		if br != nil {
			br.Destination = to
		}
	}
}

func (l *csharpLowerer) nextCapture() CaptureID {
	id := l.captures
	l.captures++
	return id
}

func (l *csharpLowerer) stmt(n *sitter.Node) {
	if n == nil {
		return
	}
	switch n.Type() {
	case "block":
		l.pushScope()
		for i := 0; i < int(n.NamedChildCount()); i++ {
			l.stmt(n.NamedChild(i))
		}
		l.popScope()

	case "local_declaration_statement":
		l.localDeclaration(n)

	case "variable_declaration":
		for _, op := range l.declarators(n) {
			l.emit(op)
		}

	case "expression_statement":
		if e := firstNamed(n); e != nil {
			l.emit(l.expr(e))
		}

	case "local_function_statement":
		l.emit(l.function(n, OpLocalFunction))

	case "if_statement":
		l.ifStatement(n)

	case "while_statement":
		l.whileStatement(n)

	case "do_statement":
		l.doStatement(n)

	case "for_statement":
		l.forStatement(n)

	case "foreach_statement":
		l.foreachStatement(n)

	case "switch_statement":
		l.switchStatement(n)

	case "break_statement":
		if f := l.innermostJump(false); f != nil {
			f.breaks = append(f.breaks, l.leave())
		}
		l.cur = nil

	case "continue_statement":
		if f := l.innermostJump(true); f != nil {
			f.continues = append(f.continues, l.leave())
		}
		l.cur = nil

	case "return_statement":
		var value *Operation
		if e := firstNamed(n); e != nil {
			value = l.expr(e)
		}
		l.ensureBlock()
		l.b.Return(l.cur, value)
		l.cur = nil

	case "throw_statement":
		var value *Operation
		if e := firstNamed(n); e != nil {
			value = l.expr(e)
		}
		l.ensureBlock()
		l.b.Throw(l.cur, value)
		l.cur = nil

	case "try_statement":
		l.tryStatement(n)

	case "empty_statement", "comment":

	default:
		// using, lock, checked, labeled and friends run their parts in order.
		for i := 0; i < int(n.NamedChildCount()); i++ {
			child := n.NamedChild(i)
			if isStatement(child) || child.Type() == "variable_declaration" {
				l.stmt(child)
			} else if !isTypeNode(child) {
				l.emit(l.expr(child))
			}
		}
	}
}

func (l *csharpLowerer) innermostJump(continuable bool) *jumpFrame {
	for i := len(l.jumps) - 1; i >= 0; i-- {
		if !continuable || l.jumps[i].continuable {
			return l.jumps[i]
		}
	}
	return nil
}

func (l *csharpLowerer) localDeclaration(n *sitter.Node) {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if child := n.NamedChild(i); child.Type() == "variable_declaration" {
			for _, op := range l.declarators(child) {
				l.emit(op)
			}
		}
	}
}

// declarators lowers each declarator of a variable declaration. The
// initializer is evaluated before the name comes into scope.
func (l *csharpLowerer) declarators(n *sitter.Node) []*Operation {
	var ops []*Operation
	for i := 0; i < int(n.NamedChildCount()); i++ {
		d := n.NamedChild(i)
		if d.Type() != "variable_declarator" {
			continue
		}
		name := d.ChildByFieldName("name")
		if name == nil {
			name = childOfType(d, "identifier")
		}
		if name == nil {
			continue
		}
		var value *Operation
		if init := initializer(d); init != nil {
			value = l.expr(init)
		}
		ops = append(ops, Declare(l.declare(l.text(name)), value))
	}
	return ops
}

// initializer returns the expression after '=' in a declarator.
func initializer(d *sitter.Node) *sitter.Node {
	if clause := childOfType(d, "equals_value_clause"); clause != nil {
		return firstNamed(clause)
	}
	for i := 0; i < int(d.ChildCount()); i++ {
		if c := d.Child(i); !c.IsNamed() && c.Type() == "=" {
			for j := i + 1; j < int(d.ChildCount()); j++ {
				if next := d.Child(j); next.IsNamed() {
					return next
				}
			}
		}
	}
	return nil
}

func (l *csharpLowerer) ifStatement(n *sitter.Node) {
	cond := l.expr(n.ChildByFieldName("condition"))
	toElse := l.branchOn(cond, ConditionWhenFalse)
	l.startBlock()
	l.stmt(n.ChildByFieldName("consequence"))

	alt := n.ChildByFieldName("alternative")
	if alt == nil {
		join := l.startBlock()
		toElse.Destination = join
		return
	}
	toJoin := l.leave()
	toElse.Destination = l.startBlock()
	if alt.Type() == "else_clause" {
		alt = firstNamed(alt)
	}
	l.stmt(alt)
	join := l.startBlock()
	patch([]*Branch{toJoin}, join)
}

func (l *csharpLowerer) loop(body func()) *jumpFrame {
	f := &jumpFrame{continuable: true}
	l.jumps = append(l.jumps, f)
	body()
	l.jumps = l.jumps[:len(l.jumps)-1]
	return f
}

func (l *csharpLowerer) whileStatement(n *sitter.Node) {
	header := l.startBlock()
	exit := l.branchOn(l.expr(n.ChildByFieldName("condition")), ConditionWhenFalse)
	l.startBlock()
	f := l.loop(func() { l.stmt(n.ChildByFieldName("body")) })
	if l.cur != nil {
		l.b.Goto(l.cur, header)
	}
	patch(f.continues, header)
	l.cur = nil
	after := l.startBlock()
	patch(append(f.breaks, exit), after)
}

func (l *csharpLowerer) doStatement(n *sitter.Node) {
	body := l.startBlock()
	f := l.loop(func() { l.stmt(n.ChildByFieldName("body")) })
	cond := l.startBlock()
	patch(f.continues, cond)
	again := l.expr(n.ChildByFieldName("condition"))
	l.branchOn(again, ConditionWhenTrue).Destination = body
	after := l.startBlock()
	patch(f.breaks, after)
}

// forStatement splits the header on its semicolons, which works whether or
// not the grammar names the initializer, condition and update fields.
func (l *csharpLowerer) forStatement(n *sitter.Node) {
	l.pushScope()
	defer l.popScope()

	var parts [3][]*sitter.Node
	var body *sitter.Node
	part := 0
	closed := false
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		switch {
		case !c.IsNamed() && c.Type() == ";":
			part++
		case !c.IsNamed() && c.Type() == ")":
			closed = true
		case c.IsNamed() && closed:
			body = c
		case c.IsNamed() && part < 3 && c.Type() != "comment":
			parts[part] = append(parts[part], c)
		}
	}

	for _, init := range parts[0] {
		if init.Type() == "variable_declaration" {
			for _, op := range l.declarators(init) {
				l.emit(op)
			}
		} else {
			l.emit(l.expr(init))
		}
	}

	header := l.startBlock()
	var exit *Branch
	if len(parts[1]) > 0 {
		exit = l.branchOn(l.expr(parts[1][0]), ConditionWhenFalse)
	}
	l.startBlock()
	f := l.loop(func() { l.stmt(body) })
	update := l.startBlock()
	patch(f.continues, update)
	for _, u := range parts[2] {
		l.emit(l.expr(u))
	}
	l.b.Goto(l.cur, header)
	l.cur = nil
	after := l.startBlock()
	patch(append(f.breaks, exit), after)
}

// foreachStatement iterates through an enumerator held in a flow capture.
func (l *csharpLowerer) foreachStatement(n *sitter.Node) {
	l.pushScope()
	defer l.popScope()

	enumerator := l.nextCapture()
	collection := l.expr(n.ChildByFieldName("right"))
	l.emit(Capture(enumerator, Invoke(collection)))

	header := l.startBlock()
	moveNext := Invoke(CaptureRef(enumerator))
	moveNext.Syntax = "MoveNext"
	exit := l.branchOn(moveNext, ConditionWhenFalse)
	l.startBlock()

	current := Member(CaptureRef(enumerator), "Current")
	if left := n.ChildByFieldName("left"); left != nil {
		l.emit(Assign(l.designation(left), current))
	}
	f := l.loop(func() { l.stmt(n.ChildByFieldName("body")) })
	if l.cur != nil {
		l.b.Goto(l.cur, header)
	}
	patch(f.continues, header)
	l.cur = nil
	after := l.startBlock()
	patch(append(f.breaks, exit), after)
}

// switchStatement tests the sections one after another against the governing
// value. Sections do not fall through in C#, so each one ends the switch.
func (l *csharpLowerer) switchStatement(n *sitter.Node) {
	value := l.nextCapture()
	l.emit(Capture(value, l.expr(n.ChildByFieldName("value"))))

	f := &jumpFrame{}
	l.jumps = append(l.jumps, f)
	defer func() { l.jumps = l.jumps[:len(l.jumps)-1] }()

	var sections []*sitter.Node
	if body := n.ChildByFieldName("body"); body != nil {
		for i := 0; i < int(body.NamedChildCount()); i++ {
			if s := body.NamedChild(i); s.Type() == "switch_section" {
				sections = append(sections, s)
			}
		}
	}

	var next []*Branch
	var defaultSection *sitter.Node
	for _, section := range sections {
		var labels []*Operation
		var stmts []*sitter.Node
		isDefault := false
		for i := 0; i < int(section.ChildCount()); i++ {
			c := section.Child(i)
			switch {
			case !c.IsNamed():
				isDefault = isDefault || c.Type() == "default"
			case c.Type() == "default_switch_label":
				isDefault = true
			case isStatement(c):
				stmts = append(stmts, c)
			case c.Type() == "comment" || c.Type() == "when_clause":
			case strings.HasSuffix(c.Type(), "_label"):
				for j := 0; j < int(c.NamedChildCount()); j++ {
					labels = append(labels, l.expr(c.NamedChild(j)))
				}
			default:
				labels = append(labels, l.expr(c))
			}
		}
		if isDefault && len(labels) == 0 {
			defaultSection = section
			continue
		}
		l.startBlock()
		patch(next, l.cur)
		test := &Operation{Kind: OpBinary, Syntax: "case", Children: append([]*Operation{CaptureRef(value)}, labels...)}
		next = []*Branch{l.branchOn(test, ConditionWhenFalse)}
		l.startBlock()
		l.pushScope()
		for _, s := range stmts {
			l.stmt(s)
		}
		l.popScope()
		f.breaks = append(f.breaks, l.leave())
	}

	if defaultSection != nil {
		l.startBlock()
		patch(next, l.cur)
		next = nil
		l.pushScope()
		for i := 0; i < int(defaultSection.NamedChildCount()); i++ {
			if c := defaultSection.NamedChild(i); isStatement(c) {
				l.stmt(c)
			}
		}
		l.popScope()
		f.breaks = append(f.breaks, l.leave())
	}

	after := l.startBlock()
	patch(append(f.breaks, next...), after)
}

// tryStatement lays out try/catch/finally as nested regions. A statement with
// both handlers and a finally becomes a try-and-finally whose try holds a
// try-and-catch.
func (l *csharpLowerer) tryStatement(n *sitter.Node) {
	var catches []*sitter.Node
	var finally *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		switch c := n.NamedChild(i); c.Type() {
		case "catch_clause":
			catches = append(catches, c)
		case "finally_clause":
			finally = c
		}
	}

	if finally != nil {
		l.b.EnterRegion(RegionTryAndFinally)
		l.b.EnterRegion(RegionTry)
	}
	if len(catches) > 0 {
		l.b.EnterRegion(RegionTryAndCatch)
		l.b.EnterRegion(RegionTry)
	}

	l.startBlock()
	l.stmt(n.ChildByFieldName("body"))
	exits := []*Branch{l.leave()}

	if len(catches) > 0 {
		l.b.LeaveRegion()
		for _, c := range catches {
			exits = append(exits, l.catchClause(c))
		}
		l.b.LeaveRegion()
	}

	if finally != nil {
		l.b.LeaveRegion()
		l.b.EnterRegion(RegionFinally)
		l.startBlock()
		l.stmt(firstNamed(finally))
		if l.cur != nil {
			l.b.EndHandler(l.cur)
			l.cur = nil
		}
		l.b.LeaveRegion()
		l.b.LeaveRegion()
	}

	patch(exits, l.startBlock())
}

// catchClause lowers one handler and returns its exit. The caught exception is
// stored into the declared variable on entry, in the filter when there is one.
func (l *csharpLowerer) catchClause(n *sitter.Node) *Branch {
	l.pushScope()
	defer l.popScope()

	var bind *Operation
	if decl := childOfType(n, "catch_declaration"); decl != nil {
		if name := decl.ChildByFieldName("name"); name != nil {
			bind = Assign(Ref(l.declare(l.text(name))), CaughtException())
		}
	}

	var accept *Branch
	if filter := childOfType(n, "catch_filter_clause"); filter != nil {
		l.b.EnterRegion(RegionFilter)
		l.cur = l.b.NewBlock()
		l.emit(bind)
		bind = nil
		cond := l.expr(firstNamed(filter))
		l.b.FilterReject(l.cur, cond)
		accept = l.leave()
		l.b.LeaveRegion()
	}

	l.b.EnterRegion(RegionCatch)
	l.cur = l.b.NewBlock()
	patch([]*Branch{accept}, l.cur)
	l.emit(bind)
	l.stmt(n.ChildByFieldName("body"))
	exit := l.leave()
	l.b.LeaveRegion()
	return exit
}

func firstNamed(n *sitter.Node) *sitter.Node {
	if n == nil || n.NamedChildCount() == 0 {
		return nil
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			return c
		}
	}
	return nil
}

func childOfType(n *sitter.Node, typ string) *sitter.Node {
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() == typ {
			return c
		}
	}
	return nil
}

func isStatement(n *sitter.Node) bool {
	switch n.Type() {
	case "block", "local_declaration_statement", "expression_statement", "if_statement",
		"while_statement", "do_statement", "for_statement", "foreach_statement",
		"switch_statement", "break_statement", "continue_statement", "return_statement",
		"throw_statement", "try_statement", "empty_statement", "local_function_statement",
		"using_statement", "lock_statement", "checked_statement", "unsafe_statement",
		"fixed_statement", "labeled_statement", "goto_statement", "yield_statement":
		return true
	}
	return false
}

func isTypeNode(n *sitter.Node) bool {
	switch n.Type() {
	case "predefined_type", "generic_name", "qualified_name", "nullable_type",
		"array_type", "pointer_type", "tuple_type", "type_argument_list", "implicit_type",
		"comment", "modifier", "attribute_list":
		return true
	}
	return false
}
