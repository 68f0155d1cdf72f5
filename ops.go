package symcanon

import "math"

// ============================================================
// Operator surface
// ============================================================

// Operand is anything the operators accept: an expression or a bare number.
type Operand interface {
	*Node | float64 | int
}

func toNode[T Operand](v T) *Node {
	switch x := any(v).(type) {
	case *Node:
		return x
	case float64:
		return Const(x)
	case int:
		return Const(float64(x))
	}
	panic("unreachable")
}

// Every operator builds the raw node and returns its canonical form.

func Neg[A Operand](a A) *Node {
	return Simplify(NewNegate(toNode(a)))
}

func Add[A, B Operand](a A, b B) *Node {
	return Simplify(NewAdd(toNode(a), toNode(b)))
}

// Sub returns a + (-b).
func Sub[A, B Operand](a A, b B) *Node {
	return Simplify(NewAdd(toNode(a), Neg(b)))
}

func Mul[A, B Operand](a A, b B) *Node {
	return Simplify(NewMultiply(toNode(a), toNode(b)))
}

// Div returns a * b^-1.
func Div[A, B Operand](a A, b B) *Node {
	return Simplify(NewMultiply(toNode(a), NewInverse(toNode(b))))
}

func Pow[A, B Operand](a A, b B) *Node {
	return Simplify(NewPower(toNode(a), toNode(b)))
}

// Log is the natural logarithm. It panics on a non-positive constant.
func Log[A Operand](a A) *Node {
	return Simplify(NewLog(toNode(a)))
}

// Sum adds any number of operands; Sum() is 0.
func Sum(ops ...*Node) *Node { return Simplify(NewAdd(ops...)) }

// Product multiplies any number of operands; Product() is 1.
func Product(ops ...*Node) *Node { return Simplify(NewMultiply(ops...)) }

// ============================================================
// Comparison surface
// ============================================================

// Equal reports whether n - o canonicalizes to zero.
func (n *Node) Equal(o *Node) bool { return Sub(n, o).IsZero() }

// EqualString compares the canonical serialization of n with s.
func (n *Node) EqualString(s string) bool { return n.String() == s }

// EqualValue compares the evaluated value of n with c. Two NaNs are equal.
func (n *Node) EqualValue(c float64) bool {
	v := n.Evaluate()
	if math.IsNaN(v) || math.IsNaN(c) {
		return math.IsNaN(v) && math.IsNaN(c)
	}
	return nearlyEqual(v, c)
}
