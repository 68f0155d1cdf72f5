// Package symcanon provides a canonicalizing symbolic algebra core for Go.
//
// Design goals:
//   - Closed operator set: negate, add, multiply, power, natural log
//   - Every operator result is driven to a unique canonical normal form
//   - Deterministic serialization usable as an equality key
//   - Symbolic differentiation and float64 evaluation over shared DAGs
//   - JSON tree codec and MCP-ready tool dispatch
package symcanon

import (
	"encoding/binary"
	"math"
	"sync/atomic"

	"github.com/cespare/xxhash/v2"
)

// ============================================================
// Kind: closed set of node cases
// ============================================================

type Kind uint8

const (
	KindConst Kind = iota
	KindVariable
	KindNegate
	KindAdd
	KindMultiply
	KindPower
	KindLog
)

var kindNames = [...]string{
	KindConst:    "const",
	KindVariable: "var",
	KindNegate:   "neg",
	KindAdd:      "add",
	KindMultiply: "mul",
	KindPower:    "pow",
	KindLog:      "log",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// IsLeaf reports whether nodes of this kind carry a value cell.
func (k Kind) IsLeaf() bool { return k == KindConst || k == KindVariable }

// ============================================================
// Node: element of an expression DAG
// ============================================================

// Node is one vertex of an expression DAG. Compound nodes are immutable once
// built; leaves own a value cell that Assign mutates in place, so every parent
// sharing the same leaf pointer observes the new value.
type Node struct {
	kind  Kind
	name  string
	cell  *cell
	ops   []*Node
	id    uint64
	hash  uint64
	depth int
	size  int
}

// cell stores float64 bits atomically. An unset variable holds NaN.
type cell struct{ bits atomic.Uint64 }

func newCell(v float64) *cell {
	c := &cell{}
	c.store(v)
	return c
}

func (c *cell) load() float64   { return math.Float64frombits(c.bits.Load()) }
func (c *cell) store(v float64) { c.bits.Store(math.Float64bits(v)) }

var nextID atomic.Uint64

// Const returns a numeric constant leaf.
func Const(c float64) *Node {
	return newLeaf(KindConst, "", c)
}

// Var returns a fresh, unbound variable. Two calls with the same name yield
// distinct leaves; use a Scope for name-interned variables.
func Var(name string) *Node {
	if name == "" {
		fail(&ConstructionError{Kind: KindVariable, Reason: "variable name must be non-empty", Index: -1})
	}
	return newLeaf(KindVariable, name, math.NaN())
}

// VarValue returns a fresh variable bound to c.
func VarValue(name string, c float64) *Node {
	n := Var(name)
	n.cell.store(c)
	return n
}

func newLeaf(k Kind, name string, v float64) *Node {
	n := &Node{kind: k, name: name, cell: newCell(v), id: nextID.Add(1), depth: 1, size: 1}
	n.hash = structuralHash(n)
	return n
}

// Build is the single construction gate for compound nodes. It panics with a
// *ConstructionError when operands violate the arity of k, when an operand is
// nil, or when a log is taken of a non-positive constant.
func Build(k Kind, ops ...*Node) *Node {
	if err := checkOperands(k, ops); err != nil {
		fail(err)
	}
	n := &Node{kind: k, ops: append([]*Node(nil), ops...), id: nextID.Add(1), size: 1}
	for _, o := range n.ops {
		n.depth = max(n.depth, o.depth)
		n.size += o.size
	}
	n.depth++
	n.hash = structuralHash(n)
	return n
}

func checkOperands(k Kind, ops []*Node) *ConstructionError {
	for i, o := range ops {
		if o == nil {
			return &ConstructionError{Kind: k, Reason: "operand is nil", Index: i}
		}
	}
	switch k {
	case KindConst, KindVariable:
		return &ConstructionError{Kind: k, Reason: "leaves are built with Const or Var", Index: -1}
	case KindNegate:
		if len(ops) != 1 {
			return &ConstructionError{Kind: k, Reason: "requires exactly one operand", Index: -1}
		}
	case KindPower:
		if len(ops) != 2 {
			return &ConstructionError{Kind: k, Reason: "requires exactly two operands", Index: -1}
		}
	case KindAdd, KindMultiply:
		if len(ops) < 2 {
			return &ConstructionError{Kind: k, Reason: "requires at least two operands", Index: -1}
		}
	case KindLog:
		if len(ops) != 1 {
			return &ConstructionError{Kind: k, Reason: "requires exactly one operand", Index: -1}
		}
		if ops[0].IsConst() && !ops[0].IsPositive() {
			return &ConstructionError{Kind: k, Reason: "operand must be greater than zero", Index: 0}
		}
	default:
		return &ConstructionError{Kind: k, Reason: "unknown kind", Index: -1}
	}
	return nil
}

// NewNegate, NewAdd, NewMultiply, NewPower and NewLog build raw nodes without
// canonicalizing them.
func NewNegate(o *Node) *Node { return Build(KindNegate, o) }

// NewAdd returns Const(0) for no operands and the operand itself for one.
func NewAdd(ops ...*Node) *Node {
	switch len(ops) {
	case 0:
		return Const(0)
	case 1:
		return ops[0]
	}
	return Build(KindAdd, ops...)
}

// NewMultiply returns Const(1) for no operands and the operand itself for one.
func NewMultiply(ops ...*Node) *Node {
	switch len(ops) {
	case 0:
		return Const(1)
	case 1:
		return ops[0]
	}
	return Build(KindMultiply, ops...)
}

func NewPower(base, exp *Node) *Node { return Build(KindPower, base, exp) }
func NewLog(o *Node) *Node           { return Build(KindLog, o) }

// NewInverse returns o ^ -1.
func NewInverse(o *Node) *Node { return NewPower(o, Const(-1)) }

// structuralHash mixes kind, leaf identity and child hashes. Leaves hash by
// id, never by value.
func structuralHash(n *Node) uint64 {
	var buf [8]byte
	d := xxhash.New()
	_, _ = d.Write([]byte{byte(n.kind)})
	if n.kind.IsLeaf() {
		binary.LittleEndian.PutUint64(buf[:], n.id)
		_, _ = d.Write(buf[:])
		return d.Sum64()
	}
	for _, o := range n.ops {
		binary.LittleEndian.PutUint64(buf[:], o.hash)
		_, _ = d.Write(buf[:])
	}
	return d.Sum64()
}

// sameShape reports whether a and b are the same tree: identical leaves by
// pointer and equal kinds and operand shapes elsewhere.
func sameShape(a, b *Node) bool {
	if a == b {
		return true
	}
	if a.kind != b.kind || a.kind.IsLeaf() || a.hash != b.hash || len(a.ops) != len(b.ops) {
		return false
	}
	for i := range a.ops {
		if !sameShape(a.ops[i], b.ops[i]) {
			return false
		}
	}
	return true
}

// ============================================================
// Accessors and predicates
// ============================================================

func (n *Node) Kind() Kind { return n.kind }

// Name returns the variable name, or "" for other kinds.
func (n *Node) Name() string { return n.name }

// Value returns the current leaf value; NaN for compound nodes and unset variables.
func (n *Node) Value() float64 {
	if n.cell == nil {
		return math.NaN()
	}
	return n.cell.load()
}

// Operands returns a copy of the operand list.
func (n *Node) Operands() []*Node { return append([]*Node(nil), n.ops...) }

func (n *Node) ID() uint64 { return n.id }
func (n *Node) Depth() int { return n.depth }
func (n *Node) Size() int  { return n.size }

func (n *Node) IsConst() bool { return n.kind == KindConst }

func (n *Node) IsZero() bool { return n.IsConst() && nearlyEqual(n.Value(), 0) }
func (n *Node) IsOne() bool  { return n.IsConst() && nearlyEqual(n.Value(), 1) }

func (n *Node) IsPositive() bool {
	return n.IsConst() && !n.IsZero() && n.Value() > 0
}

func (n *Node) IsNegative() bool {
	return n.IsConst() && !n.IsZero() && n.Value() < 0
}
