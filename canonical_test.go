package symcanon_test

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/njchilds90/symcanon"
)

func vars() (x, y, z *symcanon.Node) {
	return symcanon.Var("x"), symcanon.Var("y"), symcanon.Var("z")
}

// ============================================================
// Canonical form tests
// ============================================================

func TestSimplify_Commutativity(t *testing.T) {
	x, y, _ := vars()
	assert.Equal(t, "x + y", symcanon.Add(x, y).String())
	assert.Equal(t, "x + y", symcanon.Add(y, x).String())
	assert.Equal(t, "x * y", symcanon.Mul(y, x).String())
	assert.True(t, symcanon.Add(x, y).Equal(symcanon.Add(y, x)))
	assert.True(t, symcanon.Mul(x, y).Equal(symcanon.Mul(y, x)))
}

func TestSimplify_Associativity(t *testing.T) {
	x, y, z := vars()
	assert.Equal(t, "x + y + z", symcanon.Add(symcanon.Add(x, y), z).String())
	assert.Equal(t, "x + y + z", symcanon.Add(x, symcanon.Add(y, z)).String())
	assert.Equal(t, "x * y * z", symcanon.Mul(symcanon.Mul(x, y), z).String())
	assert.Equal(t, "x * y * z", symcanon.Mul(x, symcanon.Mul(z, y)).String())
}

func TestSimplify_IdentityElimination(t *testing.T) {
	x, _, _ := vars()
	assert.Equal(t, "x", symcanon.Add(x, 0).String())
	assert.Equal(t, "x", symcanon.Mul(x, 1).String())
	assert.Equal(t, "0", symcanon.Mul(x, 0).String())
	assert.Equal(t, "1", symcanon.Pow(x, 0).String())
	assert.Equal(t, "x", symcanon.Pow(x, 1).String())
	assert.Equal(t, "1", symcanon.Pow(1, x).String())
	assert.Equal(t, "0", symcanon.Pow(0, 3).String())
	assert.Equal(t, "0", symcanon.Pow(0, 0.5).String())
}

func TestSimplify_ConstantFolding(t *testing.T) {
	assert.Equal(t, "6", symcanon.Mul(2, 3).String())
	assert.Equal(t, "8", symcanon.Pow(2, 3).String())
	assert.Equal(t, "5", symcanon.Add(2, 3).String())
	assert.Equal(t, " - 1", symcanon.Sub(2, 3).String())
	assert.Equal(t, "0.500", symcanon.Div(1, 2).String())
	assert.Equal(t, "0", symcanon.Log(1).String())
}

func TestSimplify_LikeTerms(t *testing.T) {
	x, y, _ := vars()
	assert.Equal(t, "2 * x", symcanon.Add(x, x).String())
	assert.Equal(t, "3 * x", symcanon.Sum(x, x, x).String())
	assert.Equal(t, "x ^ 2", symcanon.Mul(x, x).String())
	assert.Equal(t, "x", symcanon.Sub(symcanon.Mul(2, x), x).String())
	assert.Equal(t, "0", symcanon.Sub(x, x).String())
	assert.Equal(t, "1", symcanon.Div(x, x).String())
	assert.Equal(t, " - x", symcanon.Sub(symcanon.Mul(2, x), symcanon.Mul(3, x)).String())

	// Same-named variables merge even when they are distinct leaves.
	assert.Equal(t, "2 * x", symcanon.Add(x, symcanon.Var("x")).String())
	assert.True(t, symcanon.Add(x, y).Equal(symcanon.Add(symcanon.Var("y"), symcanon.Var("x"))))
}

func TestSimplify_Distribution(t *testing.T) {
	x, y, z := vars()

	square := symcanon.Pow(symcanon.Add(x, y), 2)
	expected := symcanon.Sum(symcanon.Mul(x, x), symcanon.Product(symcanon.Const(2), x, y), symcanon.Mul(y, y))
	assert.True(t, square.Equal(expected), "got %s", square)
	assert.True(t, square.Equal(symcanon.Sum(symcanon.Mul(x, x), symcanon.Mul(x, y), symcanon.Mul(y, x), symcanon.Mul(y, y))))
	assert.Equal(t, 3, len(square.Operands()), "expected three merged terms in %s", square)

	assert.True(t, symcanon.Mul(2, symcanon.Add(x, y)).Equal(symcanon.Add(symcanon.Mul(2, x), symcanon.Mul(2, y))))
	assert.True(t, symcanon.Pow(x, 2).Equal(symcanon.Mul(x, x)))

	lhs := symcanon.Mul(-3, symcanon.Mul(symcanon.Add(x, z), symcanon.Sub(x, z)))
	rhs := symcanon.Add(symcanon.Mul(3, symcanon.Mul(x, symcanon.Neg(x))), symcanon.Product(z, symcanon.Const(3), z))
	assert.True(t, lhs.Equal(rhs), "%s vs %s", lhs, rhs)
}

func TestSimplify_Powers(t *testing.T) {
	x, y, z := vars()
	assert.True(t, symcanon.Mul(symcanon.Pow(x, y), symcanon.Pow(z, y)).Equal(symcanon.Pow(symcanon.Mul(x, z), y)))
	assert.True(t, symcanon.Mul(symcanon.Pow(x, 2), symcanon.Mul(4, x)).Equal(symcanon.Mul(x, symcanon.Pow(symcanon.Mul(2, x), 2))))
	assert.Equal(t, "4 * (x ^ 3)", symcanon.Mul(symcanon.Pow(x, 2), symcanon.Mul(4, x)).String())
	assert.Equal(t, "x ^ ( - 1)", symcanon.Div(1, x).String())
	assert.Equal(t, "x ^ (1 + y)", symcanon.Mul(symcanon.Pow(x, y), x).String())
}

func TestSimplify_NotEqual(t *testing.T) {
	x, _, _ := vars()
	assert.False(t, symcanon.Const(0).Equal(symcanon.Sub(x, symcanon.Mul(1.01, x))))
	assert.False(t, x.Equal(symcanon.Var("y")))
}

func TestSimplify_LogLaws(t *testing.T) {
	x, y, _ := vars()
	assert.Equal(t, "0", symcanon.Log(1).String())
	assert.True(t, symcanon.Log(symcanon.Mul(x, y)).Equal(symcanon.Add(symcanon.Log(x), symcanon.Log(y))))
	assert.True(t, symcanon.Log(symcanon.Pow(x, y)).Equal(symcanon.Mul(y, symcanon.Log(x))))
	assert.Equal(t, "log(x) + log(y)", symcanon.Log(symcanon.Mul(x, y)).String())
}

func TestSimplify_LogOfNegativeFactorIsKept(t *testing.T) {
	x, _, _ := vars()
	var n *symcanon.Node
	require.NoError(t, symcanon.Catch(func() { n = symcanon.Log(symcanon.Mul(-2, x)) }))
	assert.Equal(t, "log(( - 2) * x)", n.String())
}

func TestSimplify_Idempotence(t *testing.T) {
	x, y, z := vars()
	exprs := []*symcanon.Node{
		symcanon.Pow(symcanon.Add(x, y), 2),
		symcanon.Pow(symcanon.Add(x, y), 3),
		symcanon.Sub(symcanon.Neg(symcanon.Mul(x, y)), symcanon.Mul(y, x)),
		symcanon.Div(symcanon.Add(x, 1), symcanon.Mul(y, z)),
		symcanon.Log(symcanon.Mul(x, symcanon.Pow(y, z))),
		symcanon.Mul(symcanon.Pow(x, y), symcanon.Pow(x, z)),
	}
	for _, e := range exprs {
		once := symcanon.Simplify(e).String()
		assert.Equal(t, e.String(), once)
		assert.Equal(t, once, symcanon.Simplify(symcanon.Simplify(e)).String())

		c := symcanon.NewCanonicalizer(symcanon.Options{CacheSize: 0})
		assert.Equal(t, once, c.Simplify(e).String(), "uncached canonicalizer disagrees on %s", once)
	}
}

func TestSimplify_EndToEnd(t *testing.T) {
	x1, x2 := symcanon.Var("x1"), symcanon.Var("x2")
	e := symcanon.Sub(symcanon.Neg(symcanon.Mul(x1, x2)), symcanon.Mul(x2, x1))

	assert.Equal(t, "( - 2) * x1 * x2", e.String())
	assert.True(t, e.Equal(symcanon.Product(symcanon.Const(-2), x1, x2)))

	for _, b := range [][2]float64{{1, 1}, {2, 3}, {-4, 0.5}} {
		x1.Assign(b[0])
		x2.Assign(b[1])
		assert.InDelta(t, -2*b[0]*b[1], e.Evaluate(), 1e-9)
		assert.True(t, e.EqualValue(-2*b[0]*b[1]))
	}

	d := e.Differentiate(x1)
	assert.True(t, d.Equal(symcanon.Mul(-2, x2)), "got %s", d)
	assert.Equal(t, "( - 2) * x2", d.String())
}

func TestSimplify_Determinism(t *testing.T) {
	z, a, m := symcanon.Var("z"), symcanon.Var("a"), symcanon.Var("m")
	want := symcanon.Sum(z, a, m, symcanon.Const(1)).String()
	assert.Equal(t, "1 + a + m + z", want)
	for i := 0; i < 10; i++ {
		assert.Equal(t, want, symcanon.Sum(m, symcanon.Const(1), z, a).String(), "iteration %d", i)
	}
}

// ============================================================
// Canonicalizer configuration
// ============================================================

func TestCanonicalizer_IterationCap(t *testing.T) {
	v, w := symcanon.Var("v"), symcanon.Var("w")
	c := symcanon.NewCanonicalizer(symcanon.Options{MaxIterations: 1})

	err := symcanon.Catch(func() { c.Simplify(symcanon.NewAdd(v, symcanon.NewNegate(w))) })
	require.Error(t, err)
	assert.ErrorIs(t, err, symcanon.ErrNonConvergent)

	var nce *symcanon.NonConvergenceError
	require.ErrorAs(t, err, &nce)
	assert.Equal(t, "simplify", nce.Stage)
}

func TestCanonicalizer_LargePowersStayWhole(t *testing.T) {
	x, _, _ := vars()

	var huge, sum *symcanon.Node
	require.NoError(t, symcanon.Catch(func() {
		huge = symcanon.Pow(x, 1e19)
		sum = symcanon.Pow(symcanon.Add(x, 1), 1e9)
	}))
	assert.Equal(t, symcanon.KindPower, huge.Kind())
	assert.Equal(t, "x ^ 10000000000000000000", huge.String())
	assert.Equal(t, "(1 + x) ^ 1000000000", sum.String())
	assert.Equal(t, "x ^ 1000000", symcanon.Pow(x, 1e6).String())
}

func TestCanonicalizer_MaxUnroll(t *testing.T) {
	x, _, _ := vars()
	cube := symcanon.NewPower(symcanon.NewAdd(x, symcanon.Const(1)), symcanon.Const(3))

	assert.Equal(t, 16, symcanon.NewCanonicalizer(symcanon.Options{}).Options().MaxUnroll)

	kept := symcanon.NewCanonicalizer(symcanon.Options{MaxUnroll: 2}).Simplify(cube)
	assert.Equal(t, "(1 + x) ^ 3", kept.String())

	expanded := symcanon.NewCanonicalizer(symcanon.Options{MaxUnroll: 3}).Simplify(cube)
	assert.Equal(t, symcanon.KindAdd, expanded.Kind())
	assert.True(t, expanded.Equal(kept))
}

func TestCanonicalizer_Cache(t *testing.T) {
	x, y, _ := vars()
	c := symcanon.NewCanonicalizer(symcanon.Options{CacheSize: 64})

	n := c.Simplify(symcanon.NewAdd(x, y, x))
	before := c.Stats()
	again := c.Simplify(n)

	assert.Same(t, n, again)
	assert.Greater(t, c.Stats().CacheHits, before.CacheHits)
	assert.Positive(t, c.Stats().CacheEntries)

	c.Purge()
	assert.Zero(t, c.Stats().CacheEntries)
}

func TestCanonicalizer_CacheSeesConstAssignment(t *testing.T) {
	x, _, _ := vars()
	k := symcanon.Const(2)
	c := symcanon.NewCanonicalizer(symcanon.Options{CacheSize: 64})

	p := c.Simplify(symcanon.NewPower(k, x))
	assert.Equal(t, "2 ^ x", p.String())
	assert.Same(t, p, c.Simplify(p))

	k.Assign(1)
	assert.Equal(t, "1", c.Simplify(p).String())
}

func TestCanonicalizer_Concurrent(t *testing.T) {
	var wg sync.WaitGroup
	results := make([]string, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			x, y, _ := vars()
			results[i] = symcanon.Pow(symcanon.Add(x, y), 3).String()
		}(i)
	}
	wg.Wait()
	for _, r := range results[1:] {
		assert.Equal(t, results[0], r)
	}
}

func TestSetDefault(t *testing.T) {
	prev := symcanon.Default()
	defer symcanon.SetDefault(prev)

	c := symcanon.NewCanonicalizer(symcanon.Options{MaxIterations: 32, CacheSize: 8})
	symcanon.SetDefault(c)
	assert.Same(t, c, symcanon.Default())
	assert.Equal(t, 32, symcanon.Default().Options().MaxIterations)

	x, _, _ := vars()
	symcanon.Add(x, x)
	assert.Positive(t, c.Stats().Passes)
}
