package bminor

// Lower rewrites function bodies so that only plain calls reach the code
// generator: every print statement becomes a block of calls to the print
// helper for each operand's type, and `^` becomes a call to the power helper.
// Global initializers are left alone, they are folded at compile time.
// Lowering an already lowered program changes nothing.
func Lower(decls []*Decl, target *Target) {
	l := &lowerer{
		target:  target,
		helpers: make(map[string]*Symbol),
	}
	for _, d := range decls {
		if d.Body != nil {
			l.lowerStmts(d.Body.Stmts)
		}
	}
}

type lowerer struct {
	target  *Target
	helpers map[string]*Symbol
}

// helper returns the runtime function symbol name, creating it with typ on
// first use.
func (l *lowerer) helper(name string, typ *Type) *Ident {
	sym, ok := l.helpers[name]
	if !ok {
		sym = NewSymbol(SymbolGlobal, typ, name, true)
		l.helpers[name] = sym
	}
	return &Ident{Name: name, Symbol: sym}
}

func (l *lowerer) powCall(left, right Expr) Expr {
	typ := NewFunctionType(NewAtomicType(IntegerKind), []*Decl{
		NewVarDecl("base", NewAtomicType(IntegerKind), nil),
		NewVarDecl("exp", NewAtomicType(IntegerKind), nil),
	})
	return &CallExpr{
		Callee: l.helper(l.target.PowFunc, typ),
		Args:   []Expr{left, right},
	}
}

func (l *lowerer) printCall(e Expr) Stmt {
	kind := TypeOf(e).Kind
	typ := NewFunctionType(nil, []*Decl{NewVarDecl("value", NewAtomicType(kind), nil)})
	return &ExprStmt{Expr: &CallExpr{
		Callee: l.helper(l.target.PrintPrefix+kind.String(), typ),
		Args:   []Expr{l.lowerExpr(e)},
	}}
}

func (l *lowerer) lowerStmts(stmts []Stmt) {
	for i, s := range stmts {
		stmts[i] = l.lowerStmt(s)
	}
}

func (l *lowerer) lowerStmt(s Stmt) Stmt {
	switch st := s.(type) {
	case nil:
		return nil
	case *DeclStmt:
		st.Decl.Value = l.lowerExpr(st.Decl.Value)
	case *ExprStmt:
		st.Expr = l.lowerExpr(st.Expr)
	case *IfStmt:
		st.Cond = l.lowerExpr(st.Cond)
		st.Body = l.lowerStmt(st.Body)
		st.Else = l.lowerStmt(st.Else)
	case *ForStmt:
		st.Init = l.lowerExpr(st.Init)
		st.Cond = l.lowerExpr(st.Cond)
		st.Step = l.lowerExpr(st.Step)
		st.Body = l.lowerStmt(st.Body)
	case *PrintStmt:
		block := &BlockStmt{}
		for _, e := range st.Exprs {
			block.Stmts = append(block.Stmts, l.printCall(e))
		}
		return block
	case *ReturnStmt:
		st.Value = l.lowerExpr(st.Value)
	case *BlockStmt:
		l.lowerStmts(st.Stmts)
	default:
		panic(internalErrorf("cannot lower statement %T", s))
	}
	return s
}

func (l *lowerer) lowerExprs(es []Expr) {
	for i, e := range es {
		es[i] = l.lowerExpr(e)
	}
}

func (l *lowerer) lowerExpr(e Expr) Expr {
	switch ex := e.(type) {
	case *BinaryExpr:
		ex.Left = l.lowerExpr(ex.Left)
		ex.Right = l.lowerExpr(ex.Right)
		if ex.Op == OpExp {
			return l.powCall(ex.Left, ex.Right)
		}
	case *UnaryExpr:
		ex.Operand = l.lowerExpr(ex.Operand)
	case *IndexExpr:
		ex.Array = l.lowerExpr(ex.Array)
		ex.Index = l.lowerExpr(ex.Index)
	case *ArrayLit:
		l.lowerExprs(ex.Elems)
	case *CallExpr:
		l.lowerExprs(ex.Args)
	}
	return e
}
