package bminor

import "strings"

// Checker validates a resolved program. It reports every problem it finds
// through its Diagnostics and never stops at the first one.
type Checker struct {
	diag *Diagnostics
	// fn is the function whose body is being checked, nil at global level.
	fn *Decl
}

func NewChecker(diag *Diagnostics) *Checker {
	return &Checker{diag: diag}
}

// Typecheck checks a resolved program and returns the number of errors.
func Typecheck(decls []*Decl, diag *Diagnostics) int {
	before := diag.Count()
	c := NewChecker(diag)
	for _, d := range decls {
		c.CheckDecl(d, true)
	}
	return diag.Count() - before
}

// TypeOf computes the type of a checked expression without reporting
// anything.
func TypeOf(e Expr) *Type {
	c := NewChecker(NewDiagnostics(nil))
	return c.ExprType(e)
}

func (c *Checker) errorf(format string, args ...interface{}) {
	c.diag.Errorf(StageTypecheck, format, args...)
}

func article(t *Type) string {
	if t != nil && strings.ContainsRune("aeiou", rune(t.Kind.String()[0])) {
		return "an"
	}
	return "a"
}

func typeAndExpr(t *Type, e Expr) string {
	return t.String() + " (`" + FormatExpr(e) + "`)"
}

// CheckDecl checks one declaration, including a function's body.
func (c *Checker) CheckDecl(d *Decl, global bool) {
	c.checkType(d.Type, d)

	if d.Symbol != nil && d.Symbol.Type != d.Type && !Equal(d.Symbol.Type, d.Type) {
		c.errorf("%s was declared as %s and is now redeclared as %s (`%s`). Every declaration of a function must have the same type.",
			d.Name, d.Symbol.Type, d.Type, FormatDecl(d))
	}

	if d.Type.Kind == VoidKind {
		c.errorf("You declared %s as void (`%s`). The void type may only be used as the return type of a function.", d.Name, FormatDecl(d))
	}

	if d.Value == nil {
		c.checkArrayDims(d)
	}

	if d.Value != nil {
		vt := c.ExprType(d.Value)
		if !Equal(vt, d.Type) {
			c.errorf("You initialized %s of type %s with %s %s.", d.Name, d.Type, article(vt), typeAndExpr(vt, d.Value))
		}
		if global && !vt.IsConst {
			c.errorf("You initialized global %s with %s, which is not a constant. Global initializers must be computable at compile time.", d.Name, typeAndExpr(vt, d.Value))
		} else if global {
			var ev Evaluator
			if _, err := ev.Evaluate(d.Value); err != nil {
				c.errorf("The initializer of global %s (`%s`) cannot be evaluated: %s.", d.Name, FormatExpr(d.Value), err)
			}
		}
	}

	if d.Body != nil {
		enclosing := c.fn
		c.fn = d
		c.checkStmts(d.Body.Stmts)
		c.fn = enclosing
	}
}

// checkArrayDims reports every unsized dimension of an array declared without
// an initializer, since nothing else can give it a size.
func (c *Checker) checkArrayDims(d *Decl) {
	if d.Type.Kind == ArrayKind && d.Type.Size == nil {
		c.errorf("You declared array %s without a size or an initializer (`%s`). Its size cannot be determined.", d.Name, FormatDecl(d))
	}
	for t := d.Type; t.Kind == ArrayKind && t.Elem != nil; t = t.Elem {
		if t.Elem.Kind == ArrayKind && t.Elem.Size == nil {
			c.errorf("You declared array %s with elements of type %s, which has no size (`%s`). Every dimension of an array without an initializer needs a size.", d.Name, t.Elem, FormatDecl(d))
		}
	}
}

// checkType rejects types BMinor cannot express. ctx names the declaration
// the type appears in.
func (c *Checker) checkType(t *Type, ctx *Decl) {
	if t == nil {
		return
	}
	switch t.Kind {
	case FunctionKind:
		for _, param := range t.Params {
			c.checkType(param.Type, ctx)
			switch param.Type.Kind {
			case FunctionKind:
				c.errorf("You declared a function which takes a function parameter %s (`%s`). Functions cannot be passed as parameters.", param.Name, FormatDecl(ctx))
			case VoidKind:
				c.errorf("You declared parameter %s as void (`%s`). The void type may only be used as the return type of a function.", param.Name, FormatDecl(ctx))
			case ArrayKind:
				if param.Type.Size != nil {
					c.diag.Warnf(StageTypecheck, "You declared a size for array parameter %s of function %s (`%s`). The size has no effect: an array of any size with the same element type is accepted.", param.Name, ctx.Name, FormatDecl(ctx))
				}
			}
		}
		ret := t.ReturnType()
		if ret.IsCompound() {
			c.errorf("You declared a function returning %s %s (`%s`). Functions cannot return functions or arrays.", article(ret), ret.Kind, FormatDecl(ctx))
		}
		c.checkType(ret, ctx)
	case ArrayKind:
		switch t.Elem.Kind {
		case FunctionKind:
			c.errorf("You declared an array of functions (`%s`). Arrays cannot hold functions.", FormatDecl(ctx))
		case VoidKind:
			c.errorf("You declared an array of void (`%s`). The void type may only be used as the return type of a function.", FormatDecl(ctx))
		}
		c.checkArraySize(t, ctx)
		c.checkType(t.Elem, ctx)
	}
}

func (c *Checker) checkArraySize(t *Type, ctx *Decl) {
	if t.Size == nil {
		return
	}
	st := c.ExprType(t.Size)
	switch {
	case st.Kind != IntegerKind:
		c.errorf("You declared an array with %s size %s (`%s`). Array sizes must be positive integer constants.", article(st), typeAndExpr(st, t.Size), FormatDecl(ctx))
	case !st.IsConst:
		c.errorf("You declared an array with a variable size (`%s`). Array sizes must be positive integer constants.", FormatDecl(ctx))
	default:
		var ev Evaluator
		lit, err := ev.Evaluate(t.Size)
		if err != nil {
			c.errorf("The size of array `%s` cannot be evaluated: %s.", FormatDecl(ctx), err)
			return
		}
		if n, ok := lit.(*IntLit); ok && n.Value <= 0 {
			c.errorf("You declared an array with size %d (`%s`). Array sizes must be positive integer constants.", n.Value, FormatDecl(ctx))
		}
	}
}

func (c *Checker) checkStmts(stmts []Stmt) {
	for _, s := range stmts {
		c.checkStmt(s)
	}
}

func (c *Checker) checkStmt(s Stmt) {
	switch st := s.(type) {
	case nil:
	case *DeclStmt:
		c.CheckDecl(st.Decl, false)
		if st.Decl.IsFunction() {
			c.errorf("You declared function %s inside function %s (`%s`). Functions may only be declared at global scope.", st.Decl.Name, c.fnName(), FormatDecl(st.Decl))
		}
	case *ExprStmt:
		c.ExprType(st.Expr)
	case *IfStmt:
		c.checkCondition(st.Cond, "if statement")
		c.checkStmt(st.Body)
		c.checkStmt(st.Else)
	case *ForStmt:
		if !isEmpty(st.Init) {
			c.ExprType(st.Init)
		}
		if !isEmpty(st.Cond) {
			c.checkCondition(st.Cond, "for loop")
		}
		if !isEmpty(st.Step) {
			c.ExprType(st.Step)
		}
		c.checkStmt(st.Body)
	case *PrintStmt:
		for _, e := range st.Exprs {
			t := c.ExprType(e)
			if t.IsCompound() || t.Kind == VoidKind {
				c.errorf("You attempted to print %s %s. Only integers, chars, strings and booleans can be printed.", article(t), typeAndExpr(t, e))
			}
		}
	case *ReturnStmt:
		c.checkReturn(st)
	case *BlockStmt:
		c.checkStmts(st.Stmts)
	default:
		panic(internalErrorf("cannot check statement %T", s))
	}
}

func (c *Checker) fnName() string {
	if c.fn == nil {
		return "<global>"
	}
	return c.fn.Name
}

func (c *Checker) checkCondition(cond Expr, what string) {
	t := c.ExprType(cond)
	if t.Kind != BooleanKind {
		c.errorf("You used %s %s as the condition of a %s. Conditions must be boolean.", article(t), typeAndExpr(t, cond), what)
	}
}

func (c *Checker) checkReturn(st *ReturnStmt) {
	if c.fn == nil {
		c.errorf("You used a return statement outside of a function.")
		return
	}
	want := c.fn.Type.ReturnType()
	if st.Value == nil {
		if want.Kind != VoidKind {
			c.errorf("You returned without a value from function %s, which returns %s (`%s`).", c.fn.Name, want, FormatDecl(c.fn))
		}
		return
	}
	got := c.ExprType(st.Value)
	if want.Kind == VoidKind {
		c.errorf("You returned %s %s from function %s, which returns void (`%s`). A void function may only use return without a value.",
			article(got), typeAndExpr(got, st.Value), c.fn.Name, FormatDecl(c.fn))
		return
	}
	if !Equal(got, want) {
		c.errorf("You returned %s %s from function %s, which returns %s (`%s`).",
			article(got), typeAndExpr(got, st.Value), c.fn.Name, want, FormatDecl(c.fn))
	}
}

// ExprType infers the type of e, reporting every rule it breaks. The result
// is always a fresh Type owned by the caller.
func (c *Checker) ExprType(e Expr) *Type {
	switch ex := e.(type) {
	case nil, *EmptyExpr:
		return NewAtomicType(VoidKind)
	case *IntLit:
		return &Type{Kind: IntegerKind, IsConst: true}
	case *StrLit:
		return &Type{Kind: StringKind, IsConst: true}
	case *CharLit:
		return &Type{Kind: CharKind, IsConst: true}
	case *BoolLit:
		return &Type{Kind: BooleanKind, IsConst: true}
	case *Ident:
		if ex.Symbol == nil {
			c.errorf("%s is not resolved to a declaration.", ex.Name)
			return NewAtomicType(VoidKind)
		}
		t := ex.Symbol.Type.Copy()
		t.IsLvalue = !t.IsCompound()
		t.IsConst = false
		return t
	case *ArrayLit:
		return c.arrayLitType(ex)
	case *CallExpr:
		return c.callType(ex)
	case *IndexExpr:
		return c.indexType(ex)
	case *UnaryExpr:
		return c.unaryType(ex)
	case *BinaryExpr:
		return c.binaryType(ex)
	}
	panic(internalErrorf("cannot check expression %T", e))
}

func (c *Checker) arrayLitType(a *ArrayLit) *Type {
	if len(a.Elems) == 0 {
		c.errorf("You wrote an empty array literal. Array literals need at least one element.")
		return &Type{Kind: ArrayKind, Elem: NewAtomicType(VoidKind), Size: &IntLit{Value: 0}}
	}
	elem := c.ExprType(a.Elems[0])
	isConst := elem.IsConst
	for _, e := range a.Elems[1:] {
		t := c.ExprType(e)
		if !Equal(t, elem) {
			c.errorf("You wrote an array literal with elements of different types, including %s and %s. All elements of an array must have the same type.",
				typeAndExpr(elem, a.Elems[0]), typeAndExpr(t, e))
		}
		isConst = isConst && t.IsConst
	}
	elem.IsLvalue = false
	elem.IsConst = false
	return &Type{
		Kind:    ArrayKind,
		Elem:    elem,
		Size:    &IntLit{Value: int64(len(a.Elems))},
		IsConst: isConst,
	}
}

func (c *Checker) callType(call *CallExpr) *Type {
	id, ok := call.Callee.(*Ident)
	if !ok {
		c.errorf("You called `%s`, which is not a function name (`%s`).", FormatExpr(call.Callee), FormatExpr(call))
		c.argTypes(call.Args)
		return NewAtomicType(VoidKind)
	}
	if id.Symbol == nil {
		c.errorf("%s is not resolved to a declaration.", id.Name)
		c.argTypes(call.Args)
		return NewAtomicType(VoidKind)
	}
	ft := id.Symbol.Type
	if ft.Kind != FunctionKind {
		c.errorf("You called %s, which is %s %s and not a function (`%s`).", id.Name, article(ft), ft, FormatExpr(call))
		c.argTypes(call.Args)
		return NewAtomicType(VoidKind)
	}
	for i, arg := range call.Args {
		if i >= len(ft.Params) {
			c.errorf("You passed too many arguments to function %s (`%s`): it takes %d.", id.Name, FormatExpr(call), len(ft.Params))
			break
		}
		at := c.ExprType(arg)
		pt := ft.Params[i].Type
		if !Equal(at, pt) {
			c.errorf("You passed %s %s as argument %d to %s where %s %s was expected.", article(at), typeAndExpr(at, arg), i+1, id.Name, article(pt), pt)
		}
	}
	if len(call.Args) < len(ft.Params) {
		c.errorf("You passed too few arguments to function %s (`%s`): it takes %d.", id.Name, FormatExpr(call), len(ft.Params))
	}
	t := ft.ReturnType().Copy()
	t.IsLvalue = false
	t.IsConst = false
	return t
}

func (c *Checker) argTypes(args []Expr) {
	for _, arg := range args {
		c.ExprType(arg)
	}
}

func (c *Checker) indexType(x *IndexExpr) *Type {
	at := c.ExprType(x.Array)
	it := c.ExprType(x.Index)
	if at.Kind != ArrayKind || it.Kind != IntegerKind {
		c.binaryError("[]", "a left operand of array type and a right operand of integer type", at, x.Array, it, x.Index)
	}
	var t *Type
	if at.Kind == ArrayKind {
		t = at.Elem.Copy()
	} else {
		t = NewAtomicType(IntegerKind)
	}
	t.IsLvalue = true
	t.IsConst = at.IsConst && it.IsConst
	return t
}

func (c *Checker) unaryType(u *UnaryExpr) *Type {
	ot := c.ExprType(u.Operand)
	result := &Type{Kind: IntegerKind, IsConst: ot.IsConst}
	switch u.Op {
	case OpNot:
		if ot.Kind != BooleanKind {
			c.unaryError(u, "boolean", ot)
		}
		result.Kind = BooleanKind
	case OpPlus, OpMinus:
		if ot.Kind != IntegerKind {
			c.unaryError(u, "integer", ot)
		}
	case OpPostInc, OpPostDec:
		if !ot.IsLvalue {
			c.errorf("You applied '%s' to `%s`, which cannot be assigned to (`%s`). Only variables and array elements can be assigned to.", u.Op, FormatExpr(u.Operand), FormatExpr(u))
		}
		if ot.Kind != IntegerKind {
			c.unaryError(u, "integer", ot)
		}
		result.IsConst = false
	default:
		panic(internalErrorf("unexpected unary operator %s", u.Op))
	}
	return result
}

func (c *Checker) binaryType(b *BinaryExpr) *Type {
	lt := c.ExprType(b.Left)
	rt := c.ExprType(b.Right)
	isConst := lt.IsConst && rt.IsConst
	switch b.Op {
	case OpAssign:
		if !lt.IsLvalue {
			c.errorf("You assigned to `%s`, which cannot be assigned to (`%s`). Only variables and array elements can be assigned to.", FormatExpr(b.Left), FormatExpr(b))
		}
		if !Equal(lt, rt) {
			c.symmetricError(b, "same", lt, rt)
		}
		t := rt.Copy()
		t.IsLvalue = false
		t.IsConst = rt.IsConst
		return t
	case OpEq, OpNotEq:
		if lt.Kind == VoidKind || lt.IsCompound() || !Equal(lt, rt) {
			c.symmetricError(b, "same non-void atomic (non-array, non-function)", lt, rt)
		}
		return &Type{Kind: BooleanKind, IsConst: isConst}
	case OpOr, OpAnd:
		if lt.Kind != BooleanKind || rt.Kind != BooleanKind {
			c.symmetricError(b, "boolean", lt, rt)
		}
		return &Type{Kind: BooleanKind, IsConst: isConst}
	case OpLt, OpLtEq, OpGt, OpGtEq:
		if lt.Kind != IntegerKind || rt.Kind != IntegerKind {
			c.symmetricError(b, "integer", lt, rt)
		}
		return &Type{Kind: BooleanKind, IsConst: isConst}
	case OpAdd, OpSub, OpMul, OpDiv, OpMod, OpExp:
		if lt.Kind != IntegerKind || rt.Kind != IntegerKind {
			c.symmetricError(b, "integer", lt, rt)
		}
		return &Type{Kind: IntegerKind, IsConst: isConst}
	}
	panic(internalErrorf("unexpected binary operator %s", b.Op))
}

func (c *Checker) symmetricError(b *BinaryExpr, expected string, lt, rt *Type) {
	c.binaryError(b.Op.String(), "two operands of the "+expected+" type", lt, b.Left, rt, b.Right)
}

func (c *Checker) binaryError(op, expected string, lt *Type, left Expr, rt *Type, right Expr) {
	c.errorf("You passed the '%s' operator %s %s left operand (`%s`) and %s %s right operand (`%s`). The '%s' operator accepts %s.",
		op, article(lt), lt, FormatExpr(left), article(rt), rt, FormatExpr(right), op, expected)
}

func (c *Checker) unaryError(u *UnaryExpr, expected string, ot *Type) {
	side := "right"
	if u.Op.IsPostfix() {
		side = "left"
	}
	c.errorf("You passed the '%s' operator %s %s. The '%s' operator accepts a single operand of %s type, placed to the %s.",
		u.Op, article(ot), typeAndExpr(ot, u.Operand), u.Op, expected, side)
}
