package symcanon

import "github.com/pkg/errors"

// ============================================================
// Differentiation
// ============================================================

// Differentiate returns the canonical derivative of y with respect to x.
// x may be any non-constant expression; a constant target panics with
// ErrInvalidDiffTarget.
func Differentiate(y, x *Node) *Node {
	if x.IsConst() {
		fail(errors.Wrapf(ErrInvalidDiffTarget, "differentiate by %s", x))
	}
	return Simplify(derive(y, x))
}

func (n *Node) Differentiate(x *Node) *Node { return Differentiate(n, x) }

func derive(y, x *Node) *Node {
	if Sub(y, x).IsZero() {
		return Const(1)
	}
	switch y.kind {
	case KindNegate:
		return NewNegate(derive(y.ops[0], x))
	case KindAdd:
		ops := make([]*Node, len(y.ops))
		for i, o := range y.ops {
			ops[i] = derive(o, x)
		}
		return NewAdd(ops...)
	case KindMultiply:
		terms := make([]*Node, len(y.ops))
		for i := range y.ops {
			ops := y.Operands()
			ops[i] = derive(y.ops[i], x)
			terms[i] = NewMultiply(ops...)
		}
		return NewAdd(terms...)
	case KindPower:
		// (f^g)' = f^g * (f'g/f + g' log f)
		f, g := y.ops[0], y.ops[1]
		fp, gp := Simplify(derive(f, x)), Simplify(derive(g, x))
		var terms []*Node
		if !fp.IsZero() {
			terms = append(terms, Div(Mul(fp, g), f))
		}
		if !gp.IsZero() {
			terms = append(terms, Mul(gp, Log(f)))
		}
		return NewMultiply(y, NewAdd(terms...))
	case KindLog:
		f := y.ops[0]
		return NewMultiply(derive(f, x), NewInverse(f))
	}
	return Const(0)
}

// DiffN differentiates y with respect to x n times.
func DiffN(y, x *Node, n int) *Node {
	result := Simplify(y)
	for i := 0; i < n; i++ {
		result = Differentiate(result, x)
	}
	return result
}

// Gradient returns the partial derivatives of y, one per target.
func Gradient(y *Node, xs ...*Node) []*Node {
	result := make([]*Node, len(xs))
	for i, x := range xs {
		result[i] = Differentiate(y, x)
	}
	return result
}
