package bminor

// Decl binds a name to a variable or a function. Lists of declarations model
// both a program's globals and a function's parameters.
type Decl struct {
	Name  string
	Type  *Type
	Value Expr
	Body  *BlockStmt
	// Symbol is set by the resolver.
	Symbol *Symbol
	// NumLocals is the function's total local count, set by the resolver.
	NumLocals int
}

func NewVarDecl(name string, typ *Type, value Expr) *Decl {
	return &Decl{Name: name, Type: typ, Value: value}
}

func NewFuncDecl(name string, typ *Type, body *BlockStmt) *Decl {
	return &Decl{Name: name, Type: typ, Body: body}
}

func (d *Decl) IsFunction() bool {
	return d.Type != nil && d.Type.Kind == FunctionKind
}

type Stmt interface {
	stmt()
}

type DeclStmt struct {
	Decl *Decl
}

type ExprStmt struct {
	Expr Expr
}

type IfStmt struct {
	Cond Expr
	Body Stmt
	// Else is nil, a *BlockStmt or an *IfStmt.
	Else Stmt
}

// ForStmt clauses may be nil or *EmptyExpr.
type ForStmt struct {
	Init Expr
	Cond Expr
	Step Expr
	Body Stmt
}

type PrintStmt struct {
	Exprs []Expr
}

type ReturnStmt struct {
	Value Expr
}

type BlockStmt struct {
	Stmts []Stmt
}

func (*DeclStmt) stmt()   {}
func (*ExprStmt) stmt()   {}
func (*IfStmt) stmt()     {}
func (*ForStmt) stmt()    {}
func (*PrintStmt) stmt()  {}
func (*ReturnStmt) stmt() {}
func (*BlockStmt) stmt()  {}

type Op int

const (
	OpAssign Op = iota
	OpOr
	OpAnd
	OpLt
	OpLtEq
	OpGt
	OpGtEq
	OpEq
	OpNotEq
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpExp
	OpNot
	OpPlus
	OpMinus
	OpPostInc
	OpPostDec
)

var opStrings = [...]string{
	"=", "||", "&&", "<", "<=", ">", ">=", "==", "!=",
	"+", "-", "*", "/", "%", "^", "!", "+", "-", "++", "--",
}

func (o Op) String() string {
	if int(o) < 0 || int(o) >= len(opStrings) {
		return "?"
	}
	return opStrings[o]
}

func (o Op) IsUnary() bool {
	return o >= OpNot
}

func (o Op) IsPostfix() bool {
	return o == OpPostInc || o == OpPostDec
}

func (o Op) IsComparison() bool {
	return o >= OpLt && o <= OpNotEq
}

type Expr interface {
	expr()
}

// EmptyExpr stands for an omitted for-loop clause.
type EmptyExpr struct{}

type BinaryExpr struct {
	Op    Op
	Left  Expr
	Right Expr
}

type UnaryExpr struct {
	Op      Op
	Operand Expr
}

type IndexExpr struct {
	Array Expr
	Index Expr
}

type ArrayLit struct {
	Elems []Expr
}

type CallExpr struct {
	Callee Expr
	Args   []Expr
}

type Ident struct {
	Name string
	// Symbol is set by the resolver.
	Symbol *Symbol
}

type IntLit struct {
	Value int64
}

type StrLit struct {
	Value string
}

type CharLit struct {
	Value byte
}

type BoolLit struct {
	Value bool
}

func (*EmptyExpr) expr()  {}
func (*BinaryExpr) expr() {}
func (*UnaryExpr) expr()  {}
func (*IndexExpr) expr()  {}
func (*ArrayLit) expr()   {}
func (*CallExpr) expr()   {}
func (*Ident) expr()      {}
func (*IntLit) expr()     {}
func (*StrLit) expr()     {}
func (*CharLit) expr()    {}
func (*BoolLit) expr()    {}

func isEmpty(e Expr) bool {
	if e == nil {
		return true
	}
	_, ok := e.(*EmptyExpr)
	return ok
}
