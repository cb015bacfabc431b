package bminor

// Resolver binds declarations into scopes and identifiers to the symbols
// they refer to.
type Resolver struct {
	diag *Diagnostics
}

func NewResolver(diag *Diagnostics) *Resolver {
	return &Resolver{diag: diag}
}

// Resolve resolves a whole program in a fresh global scope and returns the
// number of errors found.
func Resolve(decls []*Decl, diag *Diagnostics) int {
	r := NewResolver(diag)
	return r.ResolveDecls(decls, NewGlobalScope(), false)
}

// ResolveDecls resolves decls into sc in order and returns the number of
// errors it found. A failed declaration does not stop the ones after it.
func (r *Resolver) ResolveDecls(decls []*Decl, sc *Scope, isParam bool) int {
	errs := 0
	for _, d := range decls {
		errs += r.resolveDecl(d, sc, isParam)
	}
	return errs
}

func (r *Resolver) resolveDecl(d *Decl, sc *Scope, isParam bool) int {
	// the initializer sees the scope before d is bound: `x: integer = x;` fails
	errs := r.resolveExpr(d.Value, sc)
	errs += r.resolveTypeSizes(d.Type, sc)

	kind := SymbolLocal
	if sc.IsGlobal() {
		kind = SymbolGlobal
	} else if isParam {
		kind = SymbolParam
	}
	sym := NewSymbol(kind, d.Type, d.Name, d.IsFunction() && d.Body != nil)
	bound, ok := sc.Bind(sym)
	if !ok {
		d.Symbol = nil
		r.diag.Errorf(StageResolve, "%s has either a redeclaration or a duplicate function definition (`%s`)", d.Name, FormatDecl(d))
		errs++
	} else {
		d.Symbol = bound
		r.diag.Tracef("%s declared as %s", d.Name, bound)
	}

	if d.IsFunction() {
		inner := sc.Enter()
		errs += r.ResolveDecls(d.Type.Params, inner, true)
		if d.Body != nil {
			// parameters and the outermost locals share one scope
			errs += r.resolveStmts(d.Body.Stmts, inner)
		}
		d.NumLocals = inner.NumLocals()
		inner.Exit()
	}
	return errs
}

// resolveTypeSizes resolves identifiers in array size expressions.
func (r *Resolver) resolveTypeSizes(t *Type, sc *Scope) int {
	errs := 0
	for ; t != nil && t.Kind == ArrayKind; t = t.Elem {
		errs += r.resolveExpr(t.Size, sc)
	}
	return errs
}

func (r *Resolver) resolveStmts(stmts []Stmt, sc *Scope) int {
	errs := 0
	for _, s := range stmts {
		errs += r.resolveStmt(s, sc)
	}
	return errs
}

func (r *Resolver) resolveStmt(s Stmt, sc *Scope) int {
	switch st := s.(type) {
	case nil:
		return 0
	case *DeclStmt:
		return r.resolveDecl(st.Decl, sc, false)
	case *ExprStmt:
		return r.resolveExpr(st.Expr, sc)
	case *IfStmt:
		errs := r.resolveExpr(st.Cond, sc)
		errs += r.resolveStmt(st.Body, sc)
		errs += r.resolveStmt(st.Else, sc)
		return errs
	case *ForStmt:
		errs := r.resolveExpr(st.Init, sc)
		errs += r.resolveExpr(st.Cond, sc)
		errs += r.resolveExpr(st.Step, sc)
		errs += r.resolveStmt(st.Body, sc)
		return errs
	case *PrintStmt:
		return r.resolveExprs(st.Exprs, sc)
	case *ReturnStmt:
		return r.resolveExpr(st.Value, sc)
	case *BlockStmt:
		inner := sc.Enter()
		errs := r.resolveStmts(st.Stmts, inner)
		inner.Exit()
		return errs
	}
	panic(internalErrorf("cannot resolve statement %T", s))
}

func (r *Resolver) resolveExprs(es []Expr, sc *Scope) int {
	errs := 0
	for _, e := range es {
		errs += r.resolveExpr(e, sc)
	}
	return errs
}

func (r *Resolver) resolveExpr(e Expr, sc *Scope) int {
	switch ex := e.(type) {
	case nil, *EmptyExpr, *IntLit, *StrLit, *CharLit, *BoolLit:
		return 0
	case *Ident:
		ex.Symbol = sc.Lookup(ex.Name)
		if ex.Symbol == nil {
			r.diag.Errorf(StageResolve, "%s used before declaration", ex.Name)
			return 1
		}
		r.diag.Tracef("%s resolved to %s", ex.Name, ex.Symbol)
		return 0
	case *BinaryExpr:
		return r.resolveExpr(ex.Left, sc) + r.resolveExpr(ex.Right, sc)
	case *UnaryExpr:
		return r.resolveExpr(ex.Operand, sc)
	case *IndexExpr:
		return r.resolveExpr(ex.Array, sc) + r.resolveExpr(ex.Index, sc)
	case *ArrayLit:
		return r.resolveExprs(ex.Elems, sc)
	case *CallExpr:
		return r.resolveExpr(ex.Callee, sc) + r.resolveExprs(ex.Args, sc)
	}
	panic(internalErrorf("cannot resolve expression %T", e))
}
