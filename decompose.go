package symcanon

// term2 is a node split as coeff * base.
type term2 struct {
	coeff float64
	base  *Node
}

// term3 is a node split as coeff * base ^ exp.
type term3 struct {
	coeff float64
	base  *Node
	exp   *Node
}

// decompose2 splits n into a numeric coefficient and a symbolic base:
//
//	c         -> (c, 1)
//	-X        -> (-k, B) where X = k * B
//	c * a * b -> (c, a * b)
//	other     -> (1, n)
//
// The input is never mutated.
func decompose2(n *Node) term2 {
	switch n.kind {
	case KindConst:
		return term2{coeff: n.Value(), base: Const(1)}
	case KindNegate:
		t := decompose2(n.ops[0])
		t.coeff = -t.coeff
		return t
	case KindMultiply:
		coeff := 1.0
		rest := make([]*Node, 0, len(n.ops))
		for _, o := range n.ops {
			if o.IsConst() {
				coeff *= o.Value()
			} else {
				rest = append(rest, o)
			}
		}
		return term2{coeff: coeff, base: NewMultiply(rest...)}
	}
	return term2{coeff: 1, base: n}
}

// decompose3 splits n into coefficient, base and exponent:
//
//	c         -> (c, 0, 0)
//	X ^ Y     -> (1, X, Y)
//	-X        -> decompose3(X) with the coefficient negated
//	c * a * b -> (c, a * b, 1)
//	other     -> (1, n, 1)
func decompose3(n *Node) term3 {
	switch n.kind {
	case KindConst:
		return term3{coeff: n.Value(), base: Const(0), exp: Const(0)}
	case KindPower:
		return term3{coeff: 1, base: n.ops[0], exp: n.ops[1]}
	case KindNegate:
		t := decompose3(n.ops[0])
		t.coeff = -t.coeff
		return t
	case KindMultiply:
		t := decompose2(n)
		return term3{coeff: t.coeff, base: t.base, exp: Const(1)}
	}
	return term3{coeff: 1, base: n, exp: Const(1)}
}
