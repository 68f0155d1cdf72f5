package symcanon

import (
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats/scalar"
)

// Epsilon is the absolute tolerance used by every numeric comparison.
const Epsilon = 1e-5

func nearlyEqual(a, b float64) bool { return scalar.EqualWithinAbs(a, b, Epsilon) }

func isInteger(v float64) bool {
	ip, _ := math.Modf(v)
	return nearlyEqual(v, ip)
}

// ============================================================
// Canonical serialization
// ============================================================

// String renders n in the canonical textual form. Two canonical nodes are
// considered identical exactly when their strings are equal.
func (n *Node) String() string { return n.render(false) }

// render emits n; bracket is set when n is embedded in a parent.
func (n *Node) render(bracket bool) string {
	var s string
	switch n.kind {
	case KindConst:
		if n.IsZero() {
			return "0"
		}
		if n.IsOne() {
			return "1"
		}
		v := n.Value()
		mag := formatMagnitude(math.Abs(v))
		if !n.IsNegative() {
			return mag
		}
		s = " - " + mag
	case KindVariable:
		return n.name
	case KindNegate:
		s = " - " + n.ops[0].render(true)
	case KindAdd:
		var b strings.Builder
		for _, o := range n.ops {
			if o.IsNegative() || o.kind == KindNegate {
				b.WriteString(o.render(false))
				continue
			}
			if b.Len() > 0 {
				b.WriteString(" + ")
			}
			b.WriteString(o.render(true))
		}
		s = b.String()
	case KindMultiply:
		parts := make([]string, len(n.ops))
		for i, o := range n.ops {
			parts[i] = o.render(true)
		}
		s = strings.Join(parts, " * ")
	case KindPower:
		s = n.ops[0].render(true) + " ^ " + n.ops[1].render(true)
	case KindLog:
		return "log(" + n.ops[0].render(false) + ")"
	}
	if bracket {
		return "(" + s + ")"
	}
	return s
}

func formatMagnitude(v float64) string {
	if isInteger(v) {
		return strconv.FormatFloat(v, 'f', 0, 64)
	}
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// ============================================================
// LaTeX
// ============================================================

// LaTeX renders n for display. It is not canonical and never used as a key.
func (n *Node) LaTeX() string { return n.latex(false) }

func (n *Node) latex(wrap bool) string {
	var s string
	switch n.kind {
	case KindConst:
		v := n.Value()
		if isInteger(v) {
			if v = math.Round(v); v == 0 {
				v = 0
			}
			s = strconv.FormatFloat(v, 'f', 0, 64)
		} else {
			s = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if v >= 0 || !wrap {
			return s
		}
	case KindVariable:
		return n.name
	case KindNegate:
		o := n.ops[0]
		s = "-" + o.latex(o.kind != KindMultiply)
	case KindAdd:
		var b strings.Builder
		for i, o := range n.ops {
			t := o.latex(false)
			switch {
			case i == 0:
				b.WriteString(t)
			case strings.HasPrefix(t, "-"):
				b.WriteString(" - " + t[1:])
			default:
				b.WriteString(" + " + t)
			}
		}
		s = b.String()
	case KindMultiply:
		parts := make([]string, len(n.ops))
		for i, o := range n.ops {
			parts[i] = o.latex(o.kind == KindAdd || o.kind == KindNegate || o.IsNegative())
		}
		s = strings.Join(parts, " \\cdot ")
	case KindPower:
		b, e := n.ops[0], n.ops[1]
		if e.IsConst() && nearlyEqual(e.Value(), -1) {
			return "\\frac{1}{" + b.latex(false) + "}"
		}
		return b.latex(!b.kind.IsLeaf() || b.IsNegative()) + "^{" + e.latex(false) + "}"
	case KindLog:
		return "\\ln\\left(" + n.ops[0].latex(false) + "\\right)"
	}
	if wrap {
		return "\\left(" + s + "\\right)"
	}
	return s
}
