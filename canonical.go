package symcanon

import (
	"math"
	"sort"
	"sync/atomic"

	"go.uber.org/zap"
)

// ============================================================
// Canonicalizer: fixed-point rewrite pipeline
// ============================================================

// Options tunes a Canonicalizer.
type Options struct {
	// MaxIterations caps every fixed-point loop. Hitting the cap panics with
	// a *NonConvergenceError.
	MaxIterations int
	// CacheSize bounds the normal-form cache; zero disables it.
	CacheSize int
	// MaxUnroll is the largest integer exponent a sum is multiplied out to.
	// Larger powers stay as base ^ n.
	MaxUnroll int
}

func DefaultOptions() Options {
	return Options{MaxIterations: 256, CacheSize: 4096, MaxUnroll: 16}
}

// Canonicalizer rewrites expression trees into their canonical normal form.
// It is safe for concurrent use.
type Canonicalizer struct {
	opts   Options
	cache  *normalFormCache
	passes atomic.Uint64
}

// Stats is a snapshot of a Canonicalizer's counters.
type Stats struct {
	Passes       uint64 `json:"passes"`
	CacheHits    uint64 `json:"cache_hits"`
	CacheMisses  uint64 `json:"cache_misses"`
	CacheEntries int    `json:"cache_entries"`
}

func NewCanonicalizer(opts Options) *Canonicalizer {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultOptions().MaxIterations
	}
	if opts.MaxUnroll <= 0 {
		opts.MaxUnroll = DefaultOptions().MaxUnroll
	}
	return &Canonicalizer{opts: opts, cache: newNormalFormCache(opts.CacheSize)}
}

func (c *Canonicalizer) Options() Options { return c.opts }

func (c *Canonicalizer) Stats() Stats {
	s := Stats{Passes: c.passes.Load()}
	if c.cache != nil {
		s.CacheHits, s.CacheMisses, s.CacheEntries = c.cache.stats()
	}
	return s
}

var defaultCanonicalizer atomic.Pointer[Canonicalizer]

func init() { defaultCanonicalizer.Store(NewCanonicalizer(DefaultOptions())) }

// Default returns the Canonicalizer behind the operator surface.
func Default() *Canonicalizer { return defaultCanonicalizer.Load() }

// SetDefault replaces the Canonicalizer behind the operator surface.
func SetDefault(c *Canonicalizer) {
	if c == nil {
		c = NewCanonicalizer(DefaultOptions())
	}
	defaultCanonicalizer.Store(c)
	logger().Debug("canonicalizer configured",
		zap.Int("max_iterations", c.opts.MaxIterations),
		zap.Int("cache_size", c.opts.CacheSize),
		zap.Int("max_unroll", c.opts.MaxUnroll))
}

// Simplify canonicalizes n with the default Canonicalizer.
func Simplify(n *Node) *Node { return Default().Simplify(n) }

// Simplify returns the canonical form of n. The result is a fixed point:
// simplifying it again yields the same serialized form.
func (c *Canonicalizer) Simplify(n *Node) *Node {
	if n.kind.IsLeaf() {
		return n
	}
	if r, ok := c.cache.get(n); ok {
		return r
	}
	cur := n
	before := cur.String()
	for i := 0; ; i++ {
		if i == c.opts.MaxIterations {
			c.diverged("simplify", i, cur)
		}
		next := c.pass(cur)
		after := next.String()
		cur = next
		if after == before {
			break
		}
		before = after
	}
	c.cache.put(n, cur)
	c.cache.put(cur, cur)
	return cur
}

// pass runs one round of operands, {flatten, expand}, {merge} and sort.
func (c *Canonicalizer) pass(n *Node) *Node {
	c.passes.Add(1)
	n = c.simplifyOperands(n)
	n = c.fixpoint("flatten/expand", n, func(m *Node) *Node { return c.expand(flatten(m)) })
	n = c.fixpoint("merge", n, c.merge)
	return sortOperands(n)
}

func (c *Canonicalizer) fixpoint(stage string, n *Node, step func(*Node) *Node) *Node {
	before := n.String()
	for i := 0; ; i++ {
		if i == c.opts.MaxIterations {
			c.diverged(stage, i, n)
		}
		n = step(n)
		after := n.String()
		if after == before {
			return n
		}
		before = after
	}
}

func (c *Canonicalizer) diverged(stage string, iterations int, last *Node) {
	logger().Warn("iteration cap reached",
		zap.String("stage", stage),
		zap.Int("iterations", iterations),
		zap.Int("size", last.size))
	fail(&NonConvergenceError{Stage: stage, Iterations: iterations, Last: last.String()})
}

func (c *Canonicalizer) simplifyOperands(n *Node) *Node {
	if n.kind.IsLeaf() {
		return n
	}
	var ops []*Node
	for i, o := range n.ops {
		s := c.Simplify(o)
		if s != o && ops == nil {
			ops = make([]*Node, len(n.ops))
			copy(ops, n.ops[:i])
		}
		if ops != nil {
			ops[i] = s
		}
	}
	if ops == nil {
		return n
	}
	return Build(n.kind, ops...)
}

// ============================================================
// flatten
// ============================================================

func flatten(n *Node) *Node {
	switch n.kind {
	case KindNegate:
		o := n.ops[0]
		switch o.kind {
		case KindNegate:
			return o.ops[0]
		case KindConst:
			return Const(-o.Value())
		}
	case KindAdd, KindMultiply:
		nested := false
		for _, o := range n.ops {
			if o.kind == n.kind {
				nested = true
				break
			}
		}
		if !nested {
			return n
		}
		flat := make([]*Node, 0, len(n.ops)+2)
		for _, o := range n.ops {
			if o.kind == n.kind {
				flat = append(flat, o.ops...)
			} else {
				flat = append(flat, o)
			}
		}
		return Build(n.kind, flat...)
	}
	return n
}

// ============================================================
// expand
// ============================================================

func (c *Canonicalizer) expand(n *Node) *Node {
	switch n.kind {
	case KindNegate:
		return expandNegate(n)
	case KindMultiply:
		return expandMultiply(n)
	case KindPower:
		return c.expandPower(n)
	case KindLog:
		return expandLog(n)
	}
	return n
}

// -(a + b) -> -a + -b
func expandNegate(n *Node) *Node {
	o := n.ops[0]
	if o.kind != KindAdd {
		return n
	}
	ops := make([]*Node, len(o.ops))
	for i, t := range o.ops {
		ops[i] = NewNegate(t)
	}
	return NewAdd(ops...)
}

// expandMultiply distributes a product over every sum among its factors.
func expandMultiply(n *Node) *Node {
	var sums [][]*Node
	var rest []*Node
	for _, o := range n.ops {
		if o.kind == KindAdd {
			sums = append(sums, o.ops)
		} else {
			rest = append(rest, o)
		}
	}
	if len(sums) == 0 {
		return n
	}
	var terms []*Node
	if len(rest) == 0 {
		terms = sums[len(sums)-1]
		sums = sums[:len(sums)-1]
	} else {
		terms = []*Node{NewMultiply(rest...)}
	}
	for _, sum := range sums {
		next := make([]*Node, 0, len(sum)*len(terms))
		for _, s := range sum {
			for _, t := range terms {
				next = append(next, NewMultiply(t, s))
			}
		}
		terms = next
	}
	return NewAdd(terms...)
}

// (x * y) ^ a -> x^a * y^a; x ^ n -> x * ... * x for positive integer n up
// to MaxUnroll. Larger powers are kept whole.
func (c *Canonicalizer) expandPower(n *Node) *Node {
	base, exp := n.ops[0], n.ops[1]
	if base.kind == KindMultiply {
		ops := make([]*Node, len(base.ops))
		for i, o := range base.ops {
			ops[i] = NewPower(o, exp)
		}
		return NewMultiply(ops...)
	}
	if exp.IsConst() {
		if v := exp.Value(); v > 0 && v <= float64(c.opts.MaxUnroll) && isInteger(v) {
			k := int(math.Round(v))
			ops := make([]*Node, k)
			for i := range ops {
				ops[i] = base
			}
			return NewMultiply(ops...)
		}
	}
	return n
}

// log(x * y) -> log x + log y; log(x ^ y) -> y * log x. Neither rewrite fires
// when it would take the log of a non-positive constant.
func expandLog(n *Node) *Node {
	o := n.ops[0]
	switch o.kind {
	case KindMultiply:
		for _, f := range o.ops {
			if f.IsConst() && !f.IsPositive() {
				return n
			}
		}
		ops := make([]*Node, len(o.ops))
		for i, f := range o.ops {
			ops[i] = NewLog(f)
		}
		return NewAdd(ops...)
	case KindPower:
		base := o.ops[0]
		if base.IsConst() && !base.IsPositive() {
			return n
		}
		return NewMultiply(o.ops[1], NewLog(base))
	}
	return n
}

// ============================================================
// merge
// ============================================================

func (c *Canonicalizer) merge(n *Node) *Node {
	switch n.kind {
	case KindAdd:
		return mergeAdd(n)
	case KindMultiply:
		return c.mergeMultiply(n)
	case KindPower:
		return mergePower(n)
	case KindLog:
		if n.ops[0].IsOne() {
			return Const(0)
		}
	}
	return n
}

// mergeAdd folds constants and collects like terms: 2x + 3x -> 5x.
func mergeAdd(n *Node) *Node {
	constant := 0.0
	var terms []term2
	index := map[string]int{}
	for _, o := range n.ops {
		if o.IsConst() {
			constant += o.Value()
			continue
		}
		t := decompose2(o)
		key := t.base.String()
		if i, ok := index[key]; ok {
			terms[i].coeff += t.coeff
			continue
		}
		index[key] = len(terms)
		terms = append(terms, t)
	}
	ops := make([]*Node, 0, len(terms)+1)
	if !nearlyEqual(constant, 0) {
		ops = append(ops, Const(constant))
	}
	for _, t := range terms {
		switch {
		case nearlyEqual(t.coeff, 0):
		case nearlyEqual(t.coeff, 1):
			ops = append(ops, t.base)
		case nearlyEqual(t.coeff, -1):
			ops = append(ops, NewNegate(t.base))
		case t.base.kind == KindMultiply:
			ops = append(ops, NewMultiply(append([]*Node{Const(t.coeff)}, t.base.ops...)...))
		default:
			ops = append(ops, NewMultiply(Const(t.coeff), t.base))
		}
	}
	return NewAdd(ops...)
}

// mergeMultiply folds constants and sums exponents of like bases: x * x -> x ^ 2.
func (c *Canonicalizer) mergeMultiply(n *Node) *Node {
	coeff := 1.0
	var factors []term3
	index := map[string]int{}
	for _, o := range n.ops {
		t := decompose3(o)
		coeff *= t.coeff
		key := t.base.String()
		if i, ok := index[key]; ok {
			factors[i].exp = c.Simplify(NewAdd(factors[i].exp, t.exp))
			continue
		}
		index[key] = len(factors)
		factors = append(factors, t)
	}
	if nearlyEqual(coeff, 0) {
		return Const(0)
	}
	ops := make([]*Node, 0, len(factors)+1)
	if !nearlyEqual(coeff, 1) {
		ops = append(ops, Const(coeff))
	}
	for _, f := range factors {
		switch {
		case f.exp.IsZero(), f.base.IsOne():
		case f.exp.IsOne():
			ops = append(ops, f.base)
		default:
			ops = append(ops, NewPower(f.base, f.exp))
		}
	}
	return NewMultiply(ops...)
}

func mergePower(n *Node) *Node {
	base, exp := n.ops[0], n.ops[1]
	switch {
	case base.IsConst() && exp.IsConst():
		return Const(math.Pow(base.Value(), exp.Value()))
	case base.IsOne(), exp.IsZero():
		return Const(1)
	case exp.IsOne():
		return base
	}
	return n
}

// ============================================================
// sort
// ============================================================

// sortOperands orders commutative operands: constants first, then by
// ascending serialized form. Power operands keep their order.
func sortOperands(n *Node) *Node {
	if n.kind != KindAdd && n.kind != KindMultiply {
		return n
	}
	type keyed struct {
		n     *Node
		isC   bool
		key   string
		index int
	}
	ks := make([]keyed, len(n.ops))
	for i, o := range n.ops {
		ks[i] = keyed{n: o, isC: o.IsConst(), key: o.String(), index: i}
	}
	sort.SliceStable(ks, func(i, j int) bool {
		if ks[i].isC != ks[j].isC {
			return ks[i].isC
		}
		return ks[i].key < ks[j].key
	})
	moved := false
	ops := make([]*Node, len(ks))
	for i := range ks {
		ops[i] = ks[i].n
		moved = moved || ks[i].index != i
	}
	if !moved {
		return n
	}
	return Build(n.kind, ops...)
}
