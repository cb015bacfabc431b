package bminor

import (
	"errors"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Programs are read from a YAML rendering of the syntax tree. A program is a
// sequence of declarations:
//
//	- name: x
//	  type: integer
//	  value: 3
//	- name: main
//	  type: {kind: function, returns: integer, params: [{name: a, type: integer}]}
//	  body:
//	    - print: [x, {str: "\n"}]
//	    - return: {op: "+", left: x, right: 1}
//
// Plain scalars are shorthands: integers and booleans are literals, any other
// word is an identifier.

var errEmptyDocument = errors.New("empty document")

// LoadProgram decodes a YAML program into its declarations.
func LoadProgram(data []byte) ([]*Decl, error) {
	root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	return loadDecls(root)
}

// LoadExpr decodes a single YAML expression.
func LoadExpr(data []byte) (Expr, error) {
	root, err := parseDocument(data)
	if err != nil {
		return nil, err
	}
	return loadExpr(root)
}

func parseDocument(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errEmptyDocument
	}
	return doc.Content[0], nil
}

func nodeErrorf(n *yaml.Node, format string, args ...interface{}) error {
	return fmt.Errorf("line %d: %s", n.Line, fmt.Sprintf(format, args...))
}

// field returns the value under key in a mapping node, or nil.
func field(n *yaml.Node, key string) *yaml.Node {
	if n.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if n.Content[i].Value == key {
			return n.Content[i+1]
		}
	}
	return nil
}

func isNull(n *yaml.Node) bool {
	return n == nil || (n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null")
}

func loadDecls(n *yaml.Node) ([]*Decl, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, nodeErrorf(n, "expected a list of declarations")
	}
	decls := make([]*Decl, 0, len(n.Content))
	for _, item := range n.Content {
		d, err := loadDecl(item)
		if err != nil {
			return nil, err
		}
		decls = append(decls, d)
	}
	return decls, nil
}

func loadDecl(n *yaml.Node) (*Decl, error) {
	name := field(n, "name")
	if name == nil || name.Kind != yaml.ScalarNode {
		return nil, nodeErrorf(n, "declaration without a name")
	}
	typ, err := loadType(field(n, "type"))
	if err != nil {
		return nil, err
	}
	value, err := loadOptionalExpr(field(n, "value"))
	if err != nil {
		return nil, err
	}
	d := NewVarDecl(name.Value, typ, value)
	if body := field(n, "body"); body != nil {
		if d.Body, err = loadBlock(body); err != nil {
			return nil, err
		}
	}
	return d, nil
}

var atomicKinds = map[string]Kind{
	"void":    VoidKind,
	"boolean": BooleanKind,
	"char":    CharKind,
	"integer": IntegerKind,
	"string":  StringKind,
}

func loadType(n *yaml.Node) (*Type, error) {
	if n == nil {
		return nil, errors.New("declaration without a type")
	}
	if n.Kind == yaml.ScalarNode {
		kind, ok := atomicKinds[n.Value]
		if !ok {
			return nil, nodeErrorf(n, "unknown type %q", n.Value)
		}
		return NewAtomicType(kind), nil
	}
	kind := field(n, "kind")
	if kind == nil {
		return nil, nodeErrorf(n, "type without a kind")
	}
	switch kind.Value {
	case "array":
		elem, err := loadType(field(n, "elem"))
		if err != nil {
			return nil, err
		}
		size, err := loadOptionalExpr(field(n, "size"))
		if err != nil {
			return nil, err
		}
		return NewArrayType(elem, size), nil
	case "function":
		var returns *Type
		if r := field(n, "returns"); r != nil {
			var err error
			if returns, err = loadType(r); err != nil {
				return nil, err
			}
		}
		params, err := loadDecls(field(n, "params"))
		if err != nil {
			return nil, err
		}
		return NewFunctionType(returns, params), nil
	}
	if atomic, ok := atomicKinds[kind.Value]; ok {
		return NewAtomicType(atomic), nil
	}
	return nil, nodeErrorf(kind, "unknown type kind %q", kind.Value)
}

func loadOptionalExpr(n *yaml.Node) (Expr, error) {
	if isNull(n) {
		return nil, nil
	}
	return loadExpr(n)
}

func loadExprs(n *yaml.Node) ([]Expr, error) {
	if isNull(n) {
		return nil, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, nodeErrorf(n, "expected a list of expressions")
	}
	es := make([]Expr, 0, len(n.Content))
	for _, item := range n.Content {
		e, err := loadExpr(item)
		if err != nil {
			return nil, err
		}
		es = append(es, e)
	}
	return es, nil
}

var opNames = map[string]Op{
	"=": OpAssign, "||": OpOr, "&&": OpAnd,
	"<": OpLt, "<=": OpLtEq, ">": OpGt, ">=": OpGtEq, "==": OpEq, "!=": OpNotEq,
	"+": OpAdd, "-": OpSub, "*": OpMul, "/": OpDiv, "%": OpMod, "^": OpExp,
	"!": OpNot, "++": OpPostInc, "--": OpPostDec,
}

func loadExpr(n *yaml.Node) (Expr, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		return loadScalar(n)
	case yaml.MappingNode:
	default:
		return nil, nodeErrorf(n, "expected an expression")
	}

	if s := field(n, "str"); s != nil {
		return &StrLit{Value: s.Value}, nil
	}
	if c := field(n, "char"); c != nil {
		if len(c.Value) != 1 {
			return nil, nodeErrorf(c, "char literal %q is not a single byte", c.Value)
		}
		return &CharLit{Value: c.Value[0]}, nil
	}
	if elems := field(n, "elems"); elems != nil {
		es, err := loadExprs(elems)
		if err != nil {
			return nil, err
		}
		return &ArrayLit{Elems: es}, nil
	}
	if callee := field(n, "call"); callee != nil {
		fn, err := loadExpr(callee)
		if err != nil {
			return nil, err
		}
		args, err := loadExprs(field(n, "args"))
		if err != nil {
			return nil, err
		}
		return &CallExpr{Callee: fn, Args: args}, nil
	}
	if array := field(n, "array"); array != nil {
		return loadIndex(n, array)
	}
	if op := field(n, "op"); op != nil {
		return loadOp(n, op)
	}
	return nil, nodeErrorf(n, "unknown expression form")
}

func loadScalar(n *yaml.Node) (Expr, error) {
	switch n.ShortTag() {
	case "!!int":
		var v int64
		if err := n.Decode(&v); err != nil {
			return nil, nodeErrorf(n, "%s", err)
		}
		return &IntLit{Value: v}, nil
	case "!!bool":
		var v bool
		if err := n.Decode(&v); err != nil {
			return nil, nodeErrorf(n, "%s", err)
		}
		return &BoolLit{Value: v}, nil
	case "!!str":
		return &Ident{Name: n.Value}, nil
	}
	return nil, nodeErrorf(n, "unexpected scalar %q", n.Value)
}

func loadIndex(n, array *yaml.Node) (Expr, error) {
	a, err := loadExpr(array)
	if err != nil {
		return nil, err
	}
	index := field(n, "index")
	if index == nil {
		return nil, nodeErrorf(n, "array access without an index")
	}
	i, err := loadExpr(index)
	if err != nil {
		return nil, err
	}
	return &IndexExpr{Array: a, Index: i}, nil
}

func loadOp(n, opNode *yaml.Node) (Expr, error) {
	op, ok := opNames[opNode.Value]
	if !ok {
		return nil, nodeErrorf(opNode, "unknown operator %q", opNode.Value)
	}
	if operand := field(n, "operand"); operand != nil {
		switch op {
		case OpAdd:
			op = OpPlus
		case OpSub:
			op = OpMinus
		case OpNot, OpPostInc, OpPostDec:
		default:
			return nil, nodeErrorf(opNode, "'%s' is not a unary operator", op)
		}
		e, err := loadExpr(operand)
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: op, Operand: e}, nil
	}
	if op.IsUnary() {
		return nil, nodeErrorf(n, "'%s' needs an operand", op)
	}
	left, right := field(n, "left"), field(n, "right")
	if left == nil || right == nil {
		return nil, nodeErrorf(n, "'%s' needs a left and a right operand", op)
	}
	l, err := loadExpr(left)
	if err != nil {
		return nil, err
	}
	r, err := loadExpr(right)
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: op, Left: l, Right: r}, nil
}

func loadBlock(n *yaml.Node) (*BlockStmt, error) {
	if isNull(n) {
		return &BlockStmt{}, nil
	}
	if n.Kind != yaml.SequenceNode {
		return nil, nodeErrorf(n, "expected a list of statements")
	}
	block := &BlockStmt{Stmts: make([]Stmt, 0, len(n.Content))}
	for _, item := range n.Content {
		s, err := loadStmt(item)
		if err != nil {
			return nil, err
		}
		block.Stmts = append(block.Stmts, s)
	}
	return block, nil
}

// loadBody reads the body of an if or for: a list is a block, a mapping a
// single statement.
func loadBody(n *yaml.Node) (Stmt, error) {
	if n != nil && n.Kind == yaml.MappingNode {
		return loadStmt(n)
	}
	return loadBlock(n)
}

func loadStmt(n *yaml.Node) (Stmt, error) {
	if n.Kind != yaml.MappingNode {
		return nil, nodeErrorf(n, "expected a statement")
	}
	if d := field(n, "decl"); d != nil {
		decl, err := loadDecl(d)
		if err != nil {
			return nil, err
		}
		return &DeclStmt{Decl: decl}, nil
	}
	if e := field(n, "expr"); e != nil {
		expr, err := loadExpr(e)
		if err != nil {
			return nil, err
		}
		return &ExprStmt{Expr: expr}, nil
	}
	if cond := field(n, "if"); cond != nil {
		return loadIf(n, cond)
	}
	if clauses := field(n, "for"); clauses != nil {
		return loadFor(n, clauses)
	}
	if p := field(n, "print"); p != nil {
		es, err := loadExprs(p)
		if err != nil {
			return nil, err
		}
		return &PrintStmt{Exprs: es}, nil
	}
	if r := field(n, "return"); r != nil {
		value, err := loadOptionalExpr(r)
		if err != nil {
			return nil, err
		}
		return &ReturnStmt{Value: value}, nil
	}
	if b := field(n, "block"); b != nil {
		return loadBlock(b)
	}
	return nil, nodeErrorf(n, "unknown statement form")
}

func loadIf(n, cond *yaml.Node) (Stmt, error) {
	c, err := loadExpr(cond)
	if err != nil {
		return nil, err
	}
	body, err := loadBody(field(n, "then"))
	if err != nil {
		return nil, err
	}
	st := &IfStmt{Cond: c, Body: body}
	if e := field(n, "else"); e != nil {
		if st.Else, err = loadBody(e); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func loadFor(n, clauses *yaml.Node) (Stmt, error) {
	st := &ForStmt{}
	var err error
	for _, c := range []struct {
		key string
		dst *Expr
	}{{"init", &st.Init}, {"cond", &st.Cond}, {"step", &st.Step}} {
		*c.dst, err = loadOptionalExpr(field(clauses, c.key))
		if err != nil {
			return nil, err
		}
		if *c.dst == nil {
			*c.dst = &EmptyExpr{}
		}
	}
	if st.Body, err = loadBody(field(n, "body")); err != nil {
		return nil, err
	}
	return st, nil
}
