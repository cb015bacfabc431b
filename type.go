package bminor

type Kind int

const (
	VoidKind Kind = iota
	BooleanKind
	CharKind
	IntegerKind
	StringKind
	ArrayKind
	FunctionKind
)

var kindNames = [...]string{"void", "boolean", "char", "integer", "string", "array", "function"}

func (k Kind) String() string {
	if int(k) < 0 || int(k) >= len(kindNames) {
		return "unknown"
	}
	return kindNames[k]
}

// Type describes the type of a declaration or of one expression occurrence.
// IsLvalue and IsConst belong to the occurrence: declared types leave them
// false and the checker sets them on its own copies.
type Type struct {
	Kind Kind
	// Elem is the element type of an array or the return type of a function.
	Elem *Type
	// Size is the declared array size, nil when omitted.
	Size   Expr
	Params []*Decl

	IsLvalue bool
	IsConst  bool
}

func NewAtomicType(kind Kind) *Type {
	return &Type{Kind: kind}
}

func NewArrayType(elem *Type, size Expr) *Type {
	return &Type{Kind: ArrayKind, Elem: elem, Size: size}
}

func NewFunctionType(returns *Type, params []*Decl) *Type {
	if returns == nil {
		returns = NewAtomicType(VoidKind)
	}
	return &Type{Kind: FunctionKind, Elem: returns, Params: params}
}

// Copy returns a deep copy of the element chain. The size expression and the
// parameter declarations are shared, they belong to the AST.
func (t *Type) Copy() *Type {
	if t == nil {
		return nil
	}
	c := *t
	c.Elem = t.Elem.Copy()
	return &c
}

// ReturnType is the declared return type of a function type.
func (t *Type) ReturnType() *Type {
	if t.Elem == nil {
		return NewAtomicType(VoidKind)
	}
	return t.Elem
}

func (t *Type) IsCompound() bool {
	return t.Kind == ArrayKind || t.Kind == FunctionKind
}

// Equal reports structural equality. Array sizes only matter when both are
// known integer constants; parameter lists must match pairwise in order.
func Equal(t, s *Type) bool {
	if t == nil || s == nil {
		return t == s
	}
	if t.Kind != s.Kind {
		return false
	}
	switch t.Kind {
	case ArrayKind:
		if n, ok := constSize(t.Size); ok {
			if m, ok := constSize(s.Size); ok && n != m {
				return false
			}
		}
		return Equal(t.Elem, s.Elem)
	case FunctionKind:
		if len(t.Params) != len(s.Params) {
			return false
		}
		for i := range t.Params {
			if !Equal(t.Params[i].Type, s.Params[i].Type) {
				return false
			}
		}
		return Equal(t.ReturnType(), s.ReturnType())
	}
	return true
}

func constSize(size Expr) (int64, bool) {
	if size == nil || !IsConstExpr(size) {
		return 0, false
	}
	var ev Evaluator
	lit, err := ev.Evaluate(size)
	if err != nil {
		return 0, false
	}
	n, ok := lit.(*IntLit)
	if !ok {
		return 0, false
	}
	return n.Value, true
}

func (t *Type) String() string {
	if t == nil {
		return "void"
	}
	var p printer
	p.typ(t)
	return p.String()
}
