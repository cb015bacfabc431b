package bminor

import (
	"fmt"
	"io"
	"strings"
)

type printer struct {
	strings.Builder
}

// FormatExpr renders e in source form, parenthesised only where precedence
// or associativity requires it.
func FormatExpr(e Expr) string {
	var p printer
	p.expr(e)
	return p.String()
}

// FormatDecl renders a declaration without its function body.
func FormatDecl(d *Decl) string {
	var p printer
	p.declHead(d)
	return p.String()
}

// PrintProgram writes decls back out as BMinor source.
func PrintProgram(w io.Writer, decls []*Decl) error {
	var p printer
	for _, d := range decls {
		p.decl(d, 0)
		p.WriteString("\n")
	}
	_, err := io.WriteString(w, p.String())
	return err
}

func precedence(e Expr) int {
	switch ex := e.(type) {
	case *BinaryExpr:
		switch ex.Op {
		case OpAssign:
			return 1
		case OpOr:
			return 2
		case OpAnd:
			return 3
		case OpLt, OpLtEq, OpGt, OpGtEq, OpEq, OpNotEq:
			return 4
		case OpAdd, OpSub:
			return 5
		case OpMul, OpDiv, OpMod:
			return 6
		case OpExp:
			return 7
		}
	case *UnaryExpr:
		if ex.Op.IsPostfix() {
			return 9
		}
		return 8
	}
	return 10
}

func (p *printer) subexpr(e Expr, wrap bool) {
	if wrap {
		p.WriteString("(")
	}
	p.expr(e)
	if wrap {
		p.WriteString(")")
	}
}

func (p *printer) expr(e Expr) {
	switch ex := e.(type) {
	case nil, *EmptyExpr:
	case *BinaryExpr:
		prec := precedence(ex)
		lp, rp := precedence(ex.Left), precedence(ex.Right)
		// assignment groups to the right, everything else to the left
		if ex.Op == OpAssign {
			p.subexpr(ex.Left, lp <= prec)
		} else {
			p.subexpr(ex.Left, lp < prec)
		}
		p.WriteString(" " + ex.Op.String() + " ")
		if ex.Op == OpAssign {
			p.subexpr(ex.Right, rp < prec)
		} else {
			p.subexpr(ex.Right, rp <= prec)
		}
	case *UnaryExpr:
		prec := precedence(ex)
		if ex.Op.IsPostfix() {
			p.subexpr(ex.Operand, precedence(ex.Operand) < prec)
			p.WriteString(ex.Op.String())
			return
		}
		p.WriteString(ex.Op.String())
		wrap := precedence(ex.Operand) <= prec
		if lit, ok := ex.Operand.(*IntLit); ok && lit.Value < 0 {
			wrap = true
		}
		p.subexpr(ex.Operand, wrap)
	case *IndexExpr:
		p.subexpr(ex.Array, precedence(ex.Array) < 10)
		p.WriteString("[")
		p.expr(ex.Index)
		p.WriteString("]")
	case *ArrayLit:
		p.WriteString("{")
		p.exprList(ex.Elems, ", ")
		p.WriteString("}")
	case *CallExpr:
		p.subexpr(ex.Callee, precedence(ex.Callee) < 10)
		p.WriteString("(")
		p.exprList(ex.Args, ", ")
		p.WriteString(")")
	case *Ident:
		p.WriteString(ex.Name)
	case *IntLit:
		fmt.Fprintf(p, "%d", ex.Value)
	case *StrLit:
		p.WriteString(quote(ex.Value, '"'))
	case *CharLit:
		p.WriteString(quote(string([]byte{ex.Value}), '\''))
	case *BoolLit:
		if ex.Value {
			p.WriteString("true")
		} else {
			p.WriteString("false")
		}
	default:
		panic(internalErrorf("cannot print expression %T", e))
	}
}

func (p *printer) exprList(es []Expr, sep string) {
	for i, e := range es {
		if i > 0 {
			p.WriteString(sep)
		}
		p.expr(e)
	}
}

func quote(s string, delim byte) string {
	var b strings.Builder
	b.WriteByte(delim)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\n':
			b.WriteString(`\n`)
		case '\\':
			b.WriteString(`\\`)
		case 0:
			b.WriteString(`\0`)
		default:
			if c == delim {
				b.WriteByte('\\')
			}
			b.WriteByte(c)
		}
	}
	b.WriteByte(delim)
	return b.String()
}

func (p *printer) typ(t *Type) {
	if t == nil {
		p.WriteString("void")
		return
	}
	p.WriteString(t.Kind.String())
	switch t.Kind {
	case ArrayKind:
		p.WriteString(" [")
		p.expr(t.Size)
		p.WriteString("] ")
		p.typ(t.Elem)
	case FunctionKind:
		p.WriteString(" ")
		p.typ(t.ReturnType())
		p.WriteString(" (")
		for i, param := range t.Params {
			if i > 0 {
				p.WriteString(", ")
			}
			p.WriteString(param.Name + ": ")
			p.typ(param.Type)
		}
		p.WriteString(")")
	}
}

func (p *printer) declHead(d *Decl) {
	p.WriteString(d.Name + ": ")
	p.typ(d.Type)
	if d.Value != nil {
		p.WriteString(" = ")
		p.expr(d.Value)
	}
}

func (p *printer) indent(n int) {
	p.WriteString(strings.Repeat("\t", n))
}

func (p *printer) decl(d *Decl, depth int) {
	p.indent(depth)
	p.declHead(d)
	if d.Body == nil {
		p.WriteString(";")
		return
	}
	p.WriteString(" = ")
	p.block(d.Body, depth)
}

func (p *printer) block(b *BlockStmt, depth int) {
	p.WriteString("{\n")
	for _, s := range b.Stmts {
		p.stmt(s, depth+1)
		p.WriteString("\n")
	}
	p.indent(depth)
	p.WriteString("}")
}

// body prints a statement nested under if/for: blocks stay on the same line.
func (p *printer) body(s Stmt, depth int) {
	if b, ok := s.(*BlockStmt); ok {
		p.WriteString(" ")
		p.block(b, depth)
		return
	}
	p.WriteString("\n")
	p.stmt(s, depth+1)
}

func (p *printer) stmt(s Stmt, depth int) {
	switch st := s.(type) {
	case *DeclStmt:
		p.decl(st.Decl, depth)
	case *ExprStmt:
		p.indent(depth)
		p.expr(st.Expr)
		p.WriteString(";")
	case *IfStmt:
		p.indent(depth)
		p.ifStmt(st, depth)
	case *ForStmt:
		p.indent(depth)
		p.WriteString("for (")
		p.expr(st.Init)
		p.WriteString("; ")
		p.expr(st.Cond)
		p.WriteString("; ")
		p.expr(st.Step)
		p.WriteString(")")
		p.body(st.Body, depth)
	case *PrintStmt:
		p.indent(depth)
		p.WriteString("print ")
		p.exprList(st.Exprs, ", ")
		p.WriteString(";")
	case *ReturnStmt:
		p.indent(depth)
		if st.Value == nil {
			p.WriteString("return;")
			return
		}
		p.WriteString("return ")
		p.expr(st.Value)
		p.WriteString(";")
	case *BlockStmt:
		p.indent(depth)
		p.block(st, depth)
	default:
		panic(internalErrorf("cannot print statement %T", s))
	}
}

func (p *printer) ifStmt(st *IfStmt, depth int) {
	p.WriteString("if (")
	p.expr(st.Cond)
	p.WriteString(")")
	p.body(st.Body, depth)
	if st.Else == nil {
		return
	}
	p.WriteString("\n")
	p.indent(depth)
	p.WriteString("else")
	if elif, ok := st.Else.(*IfStmt); ok {
		p.WriteString(" ")
		p.ifStmt(elif, depth)
		return
	}
	p.body(st.Else, depth)
}
