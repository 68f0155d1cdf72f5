package symcanon

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/floats/scalar"
)

// DerivativeCheck compares a symbolic derivative with a finite-difference
// estimate at one point.
type DerivativeCheck struct {
	At       float64 `json:"at"`
	Symbolic float64 `json:"symbolic"`
	Numeric  float64 `json:"numeric"`
	AbsError float64 `json:"abs_error"`
	Agrees   bool    `json:"agrees"`
}

// DefaultCheckTolerance is the absolute-or-relative tolerance of CheckDerivative.
const DefaultCheckTolerance = 1e-4

// CheckDerivative evaluates dy/dx at the current leaf values and compares it
// with a central difference taken by perturbing x. x must be a variable leaf
// of y; its value is restored before returning.
func CheckDerivative(y, x *Node, tol float64) DerivativeCheck {
	if tol <= 0 {
		tol = DefaultCheckTolerance
	}
	d := Differentiate(y, x)
	if x.kind != KindVariable {
		fail(errors.Wrapf(ErrInvalidAssignTarget, "assign to %s", x))
	}
	x0 := x.Value()
	defer x.Assign(x0)

	sym := d.Evaluate()
	num := fd.Derivative(func(v float64) float64 {
		x.Assign(v)
		return y.Evaluate()
	}, x0, &fd.Settings{Formula: fd.Central, Step: 1e-6})

	return DerivativeCheck{
		At:       x0,
		Symbolic: sym,
		Numeric:  num,
		AbsError: math.Abs(sym - num),
		Agrees:   scalar.EqualWithinAbsOrRel(sym, num, tol, tol),
	}
}
