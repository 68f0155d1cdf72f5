package symcanon

import (
	"math"
	"sort"

	"github.com/pkg/errors"
)

// ============================================================
// Evaluation and assignment
// ============================================================

// Evaluate computes n with the current leaf values. Unset variables
// evaluate to NaN, which propagates. The walk keeps its own stack so very
// deep trees do not grow the goroutine stack.
func (n *Node) Evaluate() float64 {
	type frame struct {
		n    *Node
		next int
	}
	stack := []frame{{n: n}}
	var vals []float64
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.n.ops) {
			child := top.n.ops[top.next]
			top.next++
			stack = append(stack, frame{n: child})
			continue
		}
		cur := top.n
		stack = stack[:len(stack)-1]
		k := len(vals) - len(cur.ops)
		v := apply(cur, vals[k:])
		vals = append(vals[:k], v)
	}
	return vals[0]
}

func apply(n *Node, args []float64) float64 {
	switch n.kind {
	case KindConst, KindVariable:
		return n.Value()
	case KindNegate:
		return -args[0]
	case KindAdd:
		acc := 0.0
		for _, a := range args {
			acc += a
		}
		return acc
	case KindMultiply:
		acc := 1.0
		for _, a := range args {
			acc *= a
		}
		return acc
	case KindPower:
		return math.Pow(args[0], args[1])
	case KindLog:
		return math.Log(args[0])
	}
	return math.NaN()
}

// Assign sets the value of a leaf in place and returns it. Every expression
// sharing this leaf sees the new value. Assigning to a compound node panics
// with ErrInvalidAssignTarget.
func (n *Node) Assign(v float64) *Node {
	switch n.kind {
	case KindVariable:
		n.cell.store(v)
	case KindConst:
		n.cell.store(v)
		constGeneration.Add(1)
	default:
		fail(errors.Wrapf(ErrInvalidAssignTarget, "assign to %s", n))
	}
	return n
}

// FreeVariables returns the sorted, distinct variable names in n.
func FreeVariables(n *Node) []string {
	seen := map[string]struct{}{}
	visited := map[*Node]struct{}{}
	stack := []*Node{n}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, ok := visited[cur]; ok {
			continue
		}
		visited[cur] = struct{}{}
		if cur.kind == KindVariable {
			seen[cur.name] = struct{}{}
		}
		stack = append(stack, cur.ops...)
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
