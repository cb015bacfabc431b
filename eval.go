package bminor

import (
	"errors"
	"fmt"
	"math"

	"github.com/cznic/mathutil"
)

var (
	ErrDivisionByZero = errors.New("division by zero in constant expression")
	ErrEmptyIndex     = errors.New("indexing an empty array literal")
)

// Evaluator folds constant expressions into literal trees.
type Evaluator struct{}

func NewEvaluator() Evaluator {
	return Evaluator{}
}

// IsConstExpr reports whether e is built only from literals, so that it can
// be folded at compile time.
func IsConstExpr(e Expr) bool {
	switch ex := e.(type) {
	case *IntLit, *StrLit, *CharLit, *BoolLit:
		return true
	case *ArrayLit:
		for _, elem := range ex.Elems {
			if !IsConstExpr(elem) {
				return false
			}
		}
		return true
	case *BinaryExpr:
		if ex.Op == OpAssign {
			return IsConstExpr(ex.Right)
		}
		return IsConstExpr(ex.Left) && IsConstExpr(ex.Right)
	case *UnaryExpr:
		return !ex.Op.IsPostfix() && IsConstExpr(ex.Operand)
	case *IndexExpr:
		return IsConstExpr(ex.Array) && IsConstExpr(ex.Index)
	}
	return false
}

// EvalConst folds e into a literal (or an array literal of literals). It is
// only called on trees the checker accepted as constant, so anything it
// cannot fold is a compiler defect.
func EvalConst(e Expr) Expr {
	var ev Evaluator
	lit, err := ev.Evaluate(e)
	if err != nil {
		panic(internalErrorf("constant evaluation of `%s`: %s", FormatExpr(e), err))
	}
	return lit
}

func EvalConstInt(e Expr) int64 {
	lit, ok := EvalConst(e).(*IntLit)
	if !ok {
		panic(internalErrorf("`%s` is not an integer constant", FormatExpr(e)))
	}
	return lit.Value
}

func (ev *Evaluator) Evaluate(e Expr) (Expr, error) {
	switch ex := e.(type) {
	case *IntLit:
		return &IntLit{Value: ex.Value}, nil
	case *StrLit:
		return &StrLit{Value: ex.Value}, nil
	case *CharLit:
		return &CharLit{Value: ex.Value}, nil
	case *BoolLit:
		return &BoolLit{Value: ex.Value}, nil
	case *ArrayLit:
		return ev.evaluateArrayLit(ex)
	case *UnaryExpr:
		return ev.evaluateUnaryExpr(ex)
	case *BinaryExpr:
		return ev.evaluateBinaryExpr(ex)
	case *IndexExpr:
		return ev.evaluateIndexExpr(ex)
	}
	return nil, fmt.Errorf("`%s` is not a constant expression", FormatExpr(e))
}

func (ev *Evaluator) evaluateArrayLit(a *ArrayLit) (Expr, error) {
	elems := make([]Expr, 0, len(a.Elems))
	for _, elem := range a.Elems {
		lit, err := ev.Evaluate(elem)
		if err != nil {
			return nil, err
		}
		elems = append(elems, lit)
	}
	return &ArrayLit{Elems: elems}, nil
}

func (ev *Evaluator) evaluateUnaryExpr(u *UnaryExpr) (Expr, error) {
	operand, err := ev.Evaluate(u.Operand)
	if err != nil {
		return nil, err
	}
	switch u.Op {
	case OpPlus:
		if i, ok := operand.(*IntLit); ok {
			return i, nil
		}
	case OpMinus:
		if i, ok := operand.(*IntLit); ok {
			return &IntLit{Value: -i.Value}, nil
		}
	case OpNot:
		if b, ok := operand.(*BoolLit); ok {
			return &BoolLit{Value: !b.Value}, nil
		}
	}
	return nil, fmt.Errorf("operator '%s' is not implemented for %T", u.Op, operand)
}

// scalar maps a scalar literal to the integer the generated code would hold.
func scalar(e Expr) (int64, bool) {
	switch lit := e.(type) {
	case *IntLit:
		return lit.Value, true
	case *CharLit:
		return int64(lit.Value), true
	case *BoolLit:
		if lit.Value {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func (ev *Evaluator) evaluateBinaryExpr(b *BinaryExpr) (Expr, error) {
	if b.Op == OpAssign {
		// the left side is discarded, only the assigned value is constant
		return ev.Evaluate(b.Right)
	}
	left, err := ev.Evaluate(b.Left)
	if err != nil {
		return nil, err
	}
	right, err := ev.Evaluate(b.Right)
	if err != nil {
		return nil, err
	}
	switch b.Op {
	case OpOr, OpAnd:
		l, lok := left.(*BoolLit)
		r, rok := right.(*BoolLit)
		if lok && rok {
			if b.Op == OpOr {
				return &BoolLit{Value: l.Value || r.Value}, nil
			}
			return &BoolLit{Value: l.Value && r.Value}, nil
		}
	case OpEq, OpNotEq:
		// strings and arrays compare by address at run time, so two
		// literals are never equal
		l, lok := scalar(left)
		r, rok := scalar(right)
		eq := lok && rok && l == r
		if b.Op == OpEq {
			return &BoolLit{Value: eq}, nil
		}
		return &BoolLit{Value: !eq}, nil
	default:
		l, lok := left.(*IntLit)
		r, rok := right.(*IntLit)
		if lok && rok {
			return evaluateIntOp(b.Op, l.Value, r.Value)
		}
	}
	return nil, fmt.Errorf("operator '%s' is not implemented for types %T and %T", b.Op, left, right)
}

func evaluateIntOp(op Op, l, r int64) (Expr, error) {
	switch op {
	case OpAdd:
		return &IntLit{Value: l + r}, nil
	case OpSub:
		return &IntLit{Value: l - r}, nil
	case OpMul:
		return &IntLit{Value: l * r}, nil
	case OpDiv:
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		return &IntLit{Value: l / r}, nil
	case OpMod:
		if r == 0 {
			return nil, ErrDivisionByZero
		}
		return &IntLit{Value: l % r}, nil
	case OpExp:
		return &IntLit{Value: IntPow(l, r)}, nil
	case OpLt:
		return &BoolLit{Value: l < r}, nil
	case OpLtEq:
		return &BoolLit{Value: l <= r}, nil
	case OpGt:
		return &BoolLit{Value: l > r}, nil
	case OpGtEq:
		return &BoolLit{Value: l >= r}, nil
	}
	return nil, fmt.Errorf("operator '%s' is not implemented for integers", op)
}

// IntPow computes base^exp through floating point and truncates toward zero,
// matching the runtime helper: 2^-1 is 0 and results beyond float64
// precision are approximate.
func IntPow(base, exp int64) int64 {
	return int64(math.Pow(float64(base), float64(exp)))
}

// evaluateIndexExpr clamps out-of-range indexes to the nearest element.
func (ev *Evaluator) evaluateIndexExpr(x *IndexExpr) (Expr, error) {
	array, err := ev.Evaluate(x.Array)
	if err != nil {
		return nil, err
	}
	index, err := ev.Evaluate(x.Index)
	if err != nil {
		return nil, err
	}
	arr, ok := array.(*ArrayLit)
	if !ok {
		return nil, fmt.Errorf("cannot index %T", array)
	}
	i, ok := index.(*IntLit)
	if !ok {
		return nil, fmt.Errorf("cannot index with %T", index)
	}
	if len(arr.Elems) == 0 {
		return nil, ErrEmptyIndex
	}
	n := int64(len(arr.Elems))
	return arr.Elems[mathutil.MaxInt64(0, mathutil.MinInt64(i.Value, n-1))], nil
}
