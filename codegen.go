package bminor

import (
	"fmt"
	"io"
	"strings"
)

// Codegen lowers decls and writes x86-64 assembly in AT&T syntax to w. The
// program must have passed resolution and type checking: any shape the
// generator does not expect panics with an InternalError.
func Codegen(decls []*Decl, w io.Writer, target *Target) error {
	g := NewGenerator(target)
	_, err := io.WriteString(w, g.Generate(decls))
	return err
}

type Generator struct {
	target *Target
	regs   *Registers

	rodata strings.Builder
	data   strings.Builder
	text   strings.Builder

	labels    int
	strLabels int

	fn *frame
}

// frame is the state of the function being generated. Its body is buffered
// because the prologue depends on how much array storage the body needs.
type frame struct {
	decl *Decl
	body strings.Builder
	ret  string
	// storage counts the words reserved below the locals for array literals
	// and uninitialized local arrays.
	storage int
	// depth counts words pushed below the frame, for call alignment.
	depth int
}

func NewGenerator(target *Target) *Generator {
	return &Generator{
		target: target,
		regs:   NewRegisters(target.Scratch),
	}
}

// Generate returns the assembly for decls. Output depends only on decls, so
// generating the same program twice gives identical text.
func (g *Generator) Generate(decls []*Decl) string {
	Lower(decls, g.target)
	for _, d := range decls {
		switch {
		case d.Body != nil:
			g.function(d)
		case d.IsFunction():
			// prototypes are resolved by the linker
		default:
			g.global(d)
		}
	}
	var out strings.Builder
	out.WriteString(".section .rodata\n")
	out.WriteString(g.rodata.String())
	out.WriteString(".data\n")
	out.WriteString(g.data.String())
	out.WriteString(".text\n")
	out.WriteString(g.text.String())
	return out.String()
}

func (g *Generator) label() string {
	l := fmt.Sprintf(".L%d", g.labels)
	g.labels++
	return l
}

func (g *Generator) stringLabel(s string) string {
	l := fmt.Sprintf(".LS%d", g.strLabels)
	g.strLabels++
	fmt.Fprintf(&g.rodata, "%s:\n\t.string %s\n", l, quote(s, '"'))
	return l
}

func (g *Generator) emit(format string, args ...interface{}) {
	fmt.Fprintf(&g.fn.body, "\t"+format+"\n", args...)
}

func (g *Generator) emitLabel(l string) {
	fmt.Fprintf(&g.fn.body, "%s:\n", l)
}

func slot(n int) string {
	return fmt.Sprintf("%d(%%rbp)", -8*n)
}

// global emits a data definition. Arrays are a block of words plus a word
// holding the block's address, so array values are addresses everywhere.
func (g *Generator) global(d *Decl) {
	var value Expr
	if d.Value != nil {
		value = EvalConst(d.Value)
	}
	fmt.Fprintf(&g.data, ".globl %s\n%s:\n\t.quad %s\n", d.Name, d.Name, g.dataWord(d.Type, value))
}

// dataWord returns the initial word of a global of type t, emitting any
// blocks it points to.
func (g *Generator) dataWord(t *Type, value Expr) string {
	switch t.Kind {
	case StringKind:
		s := ""
		if lit, ok := value.(*StrLit); ok {
			s = lit.Value
		}
		return g.stringLabel(s)
	case ArrayKind:
		return g.dataBlock(t, value)
	}
	if value == nil {
		return "0"
	}
	n, ok := scalar(value)
	if !ok {
		panic(internalErrorf("cannot emit %T as a %s", value, t))
	}
	return fmt.Sprint(n)
}

func (g *Generator) dataBlock(t *Type, value Expr) string {
	var elems []Expr
	n := 0
	if lit, ok := value.(*ArrayLit); ok {
		elems = lit.Elems
		n = len(elems)
	} else {
		n = int(EvalConstInt(t.Size))
	}
	words := make([]string, n)
	for i := range words {
		var elem Expr
		if i < len(elems) {
			elem = elems[i]
		}
		words[i] = g.dataWord(t.Elem, elem)
	}
	l := g.label()
	fmt.Fprintf(&g.data, "%s:\n\t.quad %s\n", l, strings.Join(words, ", "))
	return l
}

func (g *Generator) function(d *Decl) {
	g.fn = &frame{decl: d, ret: g.label()}
	g.stmts(d.Body.Stmts)
	if n := g.regs.InUse(); n != 0 {
		panic(internalErrorf("%d scratch registers still in use after %s", n, d.Name))
	}

	// the frame is padded to an even number of words so that calls made
	// with an even push depth see a 16-byte aligned stack
	words := d.NumLocals + g.fn.storage
	if (ArgRegisters+words+len(g.target.CalleeSaved))%2 != 0 {
		words++
	}
	t := &g.text
	fmt.Fprintf(t, ".globl %s\n%s:\n", d.Name, d.Name)
	fmt.Fprintf(t, "\tPUSHQ %%rbp\n\tMOVQ %%rsp, %%rbp\n")
	for _, r := range g.target.Arguments {
		fmt.Fprintf(t, "\tPUSHQ %%%s\n", r)
	}
	if words > 0 {
		fmt.Fprintf(t, "\tSUBQ $%d, %%rsp\n", 8*words)
	}
	for _, r := range g.target.CalleeSaved {
		fmt.Fprintf(t, "\tPUSHQ %%%s\n", r)
	}
	t.WriteString(g.fn.body.String())

	fmt.Fprintf(t, "%s:\n", g.fn.ret)
	fmt.Fprintf(t, "\tLEAQ %s, %%rsp\n", slot(ArgRegisters+words+len(g.target.CalleeSaved)))
	for i := len(g.target.CalleeSaved) - 1; i >= 0; i-- {
		fmt.Fprintf(t, "\tPOPQ %%%s\n", g.target.CalleeSaved[i])
	}
	t.WriteString("\tMOVQ %rbp, %rsp\n\tPOPQ %rbp\n\tRET\n")
	g.fn = nil
}

// reserve returns the slot of the lowest word of n fresh storage words.
// Word i of the block lives at 8*i above it.
func (g *Generator) reserve(n int) int {
	g.fn.storage += n
	return ArgRegisters + g.fn.decl.NumLocals + g.fn.storage
}

func (g *Generator) stmts(stmts []Stmt) {
	for _, s := range stmts {
		g.stmt(s)
	}
}

func (g *Generator) stmt(s Stmt) {
	switch st := s.(type) {
	case nil:
	case *DeclStmt:
		g.localDecl(st.Decl)
	case *ExprStmt:
		g.regs.Free(g.expr(st.Expr))
	case *IfStmt:
		elseLabel, end := g.label(), g.label()
		g.cond(st.Cond, elseLabel)
		g.stmt(st.Body)
		g.emit("JMP %s", end)
		g.emitLabel(elseLabel)
		g.stmt(st.Else)
		g.emitLabel(end)
	case *ForStmt:
		top, end := g.label(), g.label()
		if !isEmpty(st.Init) {
			g.regs.Free(g.expr(st.Init))
		}
		g.emitLabel(top)
		if !isEmpty(st.Cond) {
			g.cond(st.Cond, end)
		}
		g.stmt(st.Body)
		if !isEmpty(st.Step) {
			g.regs.Free(g.expr(st.Step))
		}
		g.emit("JMP %s", top)
		g.emitLabel(end)
	case *ReturnStmt:
		if st.Value != nil {
			r := g.expr(st.Value)
			g.emit("MOVQ %s, %%rax", g.regs.Name(r))
			g.regs.Free(r)
		}
		g.emit("JMP %s", g.fn.ret)
	case *BlockStmt:
		g.stmts(st.Stmts)
	default:
		panic(internalErrorf("cannot generate statement %T", s))
	}
}

// cond jumps to target when e is false.
func (g *Generator) cond(e Expr, target string) {
	r := g.expr(e)
	g.emit("CMPQ $0, %s", g.regs.Name(r))
	g.regs.Free(r)
	g.emit("JE %s", target)
}

func (g *Generator) localDecl(d *Decl) {
	if d.IsFunction() || d.Symbol == nil {
		panic(internalErrorf("cannot generate local declaration %s", FormatDecl(d)))
	}
	dst := slot(d.Symbol.Offset)
	switch {
	case d.Value != nil:
		r := g.expr(d.Value)
		g.emit("MOVQ %s, %s", g.regs.Name(r), dst)
		g.regs.Free(r)
	case d.Type.Kind == ArrayKind:
		r := g.zeroArray(d.Type)
		g.emit("MOVQ %s, %s", g.regs.Name(r), dst)
		g.regs.Free(r)
	case d.Type.Kind == StringKind:
		r := g.regs.Allocate()
		g.emit("LEAQ %s(%%rip), %s", g.stringLabel(""), g.regs.Name(r))
		g.emit("MOVQ %s, %s", g.regs.Name(r), dst)
		g.regs.Free(r)
	default:
		g.emit("MOVQ $0, %s", dst)
	}
}

// zeroArray reserves and clears storage for an array of type t and returns a
// register holding its address. Nested arrays get their own blocks.
func (g *Generator) zeroArray(t *Type) Register {
	n := int(EvalConstInt(t.Size))
	base := g.reserve(n)
	// clearing runs at statement level, where no call arguments are live
	g.emit("LEAQ %s, %%rdi", slot(base))
	g.emit("MOVQ $%d, %%rcx", n)
	g.emit("XORQ %%rax, %%rax")
	g.emit("REP STOSQ")
	r := g.regs.Allocate()
	g.emit("LEAQ %s, %s", slot(base), g.regs.Name(r))
	if t.Elem.Kind == ArrayKind || t.Elem.Kind == StringKind {
		for i := 0; i < n; i++ {
			var elem Register
			if t.Elem.Kind == ArrayKind {
				elem = g.zeroArray(t.Elem)
			} else {
				elem = g.regs.Allocate()
				g.emit("LEAQ %s(%%rip), %s", g.stringLabel(""), g.regs.Name(elem))
			}
			g.emit("MOVQ %s, %d(%s)", g.regs.Name(elem), 8*i, g.regs.Name(r))
			g.regs.Free(elem)
		}
	}
	return r
}

// expr generates e and returns the register holding its value. Binary
// operators reuse the left operand's register for the result.
func (g *Generator) expr(e Expr) Register {
	switch ex := e.(type) {
	case *IntLit:
		return g.load(fmt.Sprintf("$%d", ex.Value))
	case *BoolLit:
		if ex.Value {
			return g.load("$1")
		}
		return g.load("$0")
	case *CharLit:
		return g.load(fmt.Sprintf("$%d", ex.Value))
	case *StrLit:
		r := g.regs.Allocate()
		g.emit("LEAQ %s(%%rip), %s", g.stringLabel(ex.Value), g.regs.Name(r))
		return r
	case *Ident:
		if ex.Symbol != nil && ex.Symbol.Type.Kind == FunctionKind {
			r := g.regs.Allocate()
			g.emit("LEAQ %s(%%rip), %s", ex.Name, g.regs.Name(r))
			return r
		}
		return g.load(g.operand(ex))
	case *BinaryExpr:
		return g.binary(ex)
	case *UnaryExpr:
		return g.unary(ex)
	case *IndexExpr:
		base := g.expr(ex.Array)
		idx := g.expr(ex.Index)
		g.emit("MOVQ (%s,%s,8), %s", g.regs.Name(base), g.regs.Name(idx), g.regs.Name(base))
		g.regs.Free(idx)
		return base
	case *ArrayLit:
		return g.arrayLit(ex)
	case *CallExpr:
		id, ok := ex.Callee.(*Ident)
		if !ok {
			panic(internalErrorf("cannot call `%s`, only function names can be called", FormatExpr(ex.Callee)))
		}
		return g.call(id.Name, ex.Args)
	}
	panic(internalErrorf("cannot generate expression %T", e))
}

func (g *Generator) load(src string) Register {
	r := g.regs.Allocate()
	g.emit("MOVQ %s, %s", src, g.regs.Name(r))
	return r
}

// operand returns the memory operand of a variable.
func (g *Generator) operand(id *Ident) string {
	if id.Symbol == nil {
		panic(internalErrorf("%s is not resolved", id.Name))
	}
	if id.Symbol.Kind == SymbolGlobal {
		return id.Name + "(%rip)"
	}
	return slot(id.Symbol.Offset)
}

// lvalue returns the memory operand e is stored at. The returned register,
// if valid, holds part of the address and must be freed after the store.
func (g *Generator) lvalue(e Expr) (string, Register, bool) {
	switch ex := e.(type) {
	case *Ident:
		return g.operand(ex), 0, false
	case *IndexExpr:
		base := g.expr(ex.Array)
		idx := g.expr(ex.Index)
		g.emit("LEAQ (%s,%s,8), %s", g.regs.Name(base), g.regs.Name(idx), g.regs.Name(base))
		g.regs.Free(idx)
		return "(" + g.regs.Name(base) + ")", base, true
	}
	panic(internalErrorf("`%s` is not assignable", FormatExpr(e)))
}

func (g *Generator) store(src Register, dst Expr) {
	addr, r, ok := g.lvalue(dst)
	g.emit("MOVQ %s, %s", g.regs.Name(src), addr)
	if ok {
		g.regs.Free(r)
	}
}

var arithOps = map[Op]string{
	OpAdd: "ADDQ",
	OpSub: "SUBQ",
	OpAnd: "ANDQ",
	OpOr:  "ORQ",
}

func (g *Generator) binary(b *BinaryExpr) Register {
	if b.Op == OpAssign {
		v := g.expr(b.Right)
		g.store(v, b.Left)
		return v
	}
	if b.Op == OpExp {
		return g.call(g.target.PowFunc, []Expr{b.Left, b.Right})
	}
	l := g.expr(b.Left)
	r := g.expr(b.Right)
	ln, rn := g.regs.Name(l), g.regs.Name(r)
	switch {
	case arithOps[b.Op] != "":
		g.emit("%s %s, %s", arithOps[b.Op], rn, ln)
	case b.Op == OpMul:
		g.emit("MOVQ %s, %%rax", ln)
		g.emit("IMULQ %s", rn)
		g.emit("MOVQ %%rax, %s", ln)
	case b.Op == OpDiv || b.Op == OpMod:
		g.emit("MOVQ %s, %%rax", ln)
		g.emit("CQO")
		g.emit("IDIVQ %s", rn)
		if b.Op == OpDiv {
			g.emit("MOVQ %%rax, %s", ln)
		} else {
			g.emit("MOVQ %%rdx, %s", ln)
		}
	case b.Op.IsComparison():
		g.compare(b.Op, ln, rn)
	default:
		panic(internalErrorf("cannot generate operator %s", b.Op))
	}
	g.regs.Free(r)
	return l
}

// compare leaves 1 in left when `left op right` holds, 0 otherwise. The sign
// and zero flags of left-right are captured with LAHF: %al gets the sign bit
// and %ah the zero bit.
func (g *Generator) compare(op Op, left, right string) {
	g.emit("CMPQ %s, %s", right, left)
	g.emit("LAHF")
	g.emit("MOVB %%ah, %%al")
	g.emit("SHRB $7, %%al")
	g.emit("SHLB $1, %%ah")
	g.emit("SHRB $7, %%ah")
	switch op {
	case OpLt:
	case OpLtEq:
		g.emit("ORB %%ah, %%al")
	case OpGt:
		g.emit("ORB %%ah, %%al")
		g.emit("NOTB %%al")
	case OpGtEq:
		g.emit("NOTB %%al")
	case OpEq:
		g.emit("MOVB %%ah, %%al")
	case OpNotEq:
		g.emit("MOVB %%ah, %%al")
		g.emit("NOTB %%al")
	}
	g.emit("MOVZBQ %%al, %s", left)
	g.emit("ANDQ $1, %s", left)
}

func (g *Generator) unary(u *UnaryExpr) Register {
	switch u.Op {
	case OpPlus:
		return g.expr(u.Operand)
	case OpMinus:
		r := g.expr(u.Operand)
		g.emit("NEGQ %s", g.regs.Name(r))
		return r
	case OpNot:
		r := g.expr(u.Operand)
		g.emit("XORQ $1, %s", g.regs.Name(r))
		return r
	case OpPostInc, OpPostDec:
		// the address is computed once so side effects in an index run once
		addr, base, ok := g.lvalue(u.Operand)
		r := g.regs.Allocate()
		g.emit("MOVQ %s, %s", addr, g.regs.Name(r))
		if u.Op == OpPostInc {
			g.emit("INCQ %s", addr)
		} else {
			g.emit("DECQ %s", addr)
		}
		if ok {
			g.regs.Free(base)
		}
		return r
	}
	panic(internalErrorf("cannot generate operator %s", u.Op))
}

// arrayLit stores the elements in reserved frame storage and returns the
// address of element 0. Elements sit at ascending addresses.
func (g *Generator) arrayLit(a *ArrayLit) Register {
	base := g.reserve(len(a.Elems))
	for i, elem := range a.Elems {
		r := g.expr(elem)
		g.emit("MOVQ %s, %s", g.regs.Name(r), slot(base-i))
		g.regs.Free(r)
	}
	r := g.regs.Allocate()
	g.emit("LEAQ %s, %s", slot(base), g.regs.Name(r))
	return r
}

// call evaluates args right to left onto the stack, pops the leading ones
// into argument registers and calls name. Caller-saved registers are
// restored before the result leaves %rax.
func (g *Generator) call(name string, args []Expr) Register {
	saved := g.target.CallerSaved
	for _, r := range saved {
		g.emit("PUSHQ %%%s", r)
	}
	g.fn.depth += len(saved)

	inRegs := len(args)
	if inRegs > len(g.target.Arguments) {
		inRegs = len(g.target.Arguments)
	}
	onStack := len(args) - inRegs
	pad := (g.fn.depth + onStack) % 2
	if pad != 0 {
		g.emit("SUBQ $8, %%rsp")
		g.fn.depth++
	}

	for i := len(args) - 1; i >= 0; i-- {
		r := g.expr(args[i])
		g.emit("PUSHQ %s", g.regs.Name(r))
		g.regs.Free(r)
		g.fn.depth++
	}
	for i := 0; i < inRegs; i++ {
		g.emit("POPQ %%%s", g.target.Arguments[i])
	}
	g.fn.depth -= inRegs

	g.emit("CALL %s", name)
	if n := onStack + pad; n > 0 {
		g.emit("ADDQ $%d, %%rsp", 8*n)
	}
	g.fn.depth -= onStack + pad
	for i := len(saved) - 1; i >= 0; i-- {
		g.emit("POPQ %%%s", saved[i])
	}
	g.fn.depth -= len(saved)

	r := g.regs.Allocate()
	g.emit("MOVQ %%rax, %s", g.regs.Name(r))
	return r
}
