package output_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvot/matrix"
	"github.com/katalvlaran/lvot/output"
)

func mustRows(t *testing.T, rows [][]float64) *matrix.Dense {
	t.Helper()
	m, err := matrix.NewFromRows(rows)
	require.NoError(t, err)

	return m
}

func randomBatch(t *testing.T, seed int64, n, k int) *matrix.Dense {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	d, err := matrix.NewDense(n, k)
	require.NoError(t, err)
	require.NoError(t, d.Apply(func(_, _ int, _ float64) float64 { return rng.Float64() }))

	return d
}

// factoredFixture returns matching factors and their dense product.
func factoredFixture(t *testing.T) (q, r *matrix.Dense, g []float64, p *matrix.Dense) {
	t.Helper()
	q = mustRows(t, [][]float64{{0.1, 0.05}, {0.2, 0.05}, {0.0, 0.1}, {0.2, 0.3}})
	r = mustRows(t, [][]float64{{0.25, 0.1}, {0.15, 0.2}, {0.1, 0.2}})
	g = []float64{0.5, 0.5}
	qg, err := matrix.ScaleCols(q, []float64{2, 2})
	require.NoError(t, err)
	rt, err := matrix.Transpose(r)
	require.NoError(t, err)
	p, err = matrix.Mul(qg, rt)
	require.NoError(t, err)

	return q, r, g, p
}

func TestDenseOutput_Accessors(t *testing.T) {
	p := mustRows(t, [][]float64{{0.1, 0.2, 0.0}, {0.3, 0.0, 0.4}})
	out, err := output.NewSinkhorn(p, output.Marginals{}, nil, nil, output.Stats{Cost: 1.5, Converged: true, Iterations: 20, Errors: []float64{0.1, 1e-4}})
	require.NoError(t, err)

	n, m := out.Shape()
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, m)
	assert.InDeltaSlice(t, []float64{0.3, 0.7}, out.A(), 1e-15)
	assert.InDeltaSlice(t, []float64{0.4, 0.2, 0.4}, out.B(), 1e-15)
	assert.Equal(t, 1.5, out.Cost())
	assert.True(t, out.Converged())
	assert.False(t, out.IsLowRank())
	assert.Equal(t, -1, out.Rank())
	assert.Equal(t, 20, out.Iterations())
	assert.Equal(t, []float64{0.1, 1e-4}, out.Errors())

	// the output owns its plan
	require.NoError(t, p.Set(0, 0, 9))
	first := out.TransportMatrix()
	v, _ := first.At(0, 0)
	assert.Equal(t, 0.1, v)

	// mutating a returned matrix does not leak back
	require.NoError(t, first.Set(0, 0, 7))
	second := out.TransportMatrix()
	v, _ = second.At(0, 0)
	assert.Equal(t, 0.1, v)
	assert.Equal(t, out.Cost(), out.Cost())
	assert.Equal(t, out.Converged(), out.Converged())
}

func TestPushPull_Shapes(t *testing.T) {
	q, r, g, p := factoredFixture(t)
	dense, err := output.NewSinkhorn(p, output.Marginals{}, nil, nil, output.Stats{})
	require.NoError(t, err)
	lr, err := output.NewLRSinkhorn(q, r, g, output.Marginals{}, output.Stats{})
	require.NoError(t, err)

	for name, out := range map[string]output.Output{"dense": dense, "lowrank": lr} {
		t.Run(name, func(t *testing.T) {
			pushed, err := out.Push(randomBatch(t, 1, 4, 5), false)
			require.NoError(t, err)
			rows, cols := pushed.Shape()
			assert.Equal(t, 3, rows)
			assert.Equal(t, 5, cols)

			pulled, err := out.Pull(randomBatch(t, 2, 3, 2), false)
			require.NoError(t, err)
			rows, cols = pulled.Shape()
			assert.Equal(t, 4, rows)
			assert.Equal(t, 2, cols)

			v, err := out.PushVec([]float64{1, 0, 0, 0}, false)
			require.NoError(t, err)
			assert.Len(t, v, 3)
			w, err := out.PullVec([]float64{1, 0, 0}, false)
			require.NoError(t, err)
			assert.Len(t, w, 4)

			_, err = out.Push(randomBatch(t, 3, 3, 1), false)
			require.ErrorIs(t, err, output.ErrShapeMismatch)
			_, err = out.Pull(randomBatch(t, 3, 4, 1), true)
			require.ErrorIs(t, err, output.ErrShapeMismatch)
			_, err = out.PushVec([]float64{1}, false)
			require.ErrorIs(t, err, output.ErrShapeMismatch)
			_, err = out.Push(nil, false)
			require.ErrorIs(t, err, matrix.ErrNilMatrix)
		})
	}
}

func TestFactoredMatchesDense(t *testing.T) {
	q, r, g, p := factoredFixture(t)
	dense, err := output.NewSinkhorn(p, output.Marginals{}, nil, nil, output.Stats{})
	require.NoError(t, err)
	lr, err := output.NewLRSinkhorn(q, r, g, output.Marginals{}, output.Stats{})
	require.NoError(t, err)

	assert.True(t, lr.IsLowRank())
	assert.Equal(t, 2, lr.Rank())
	ok, err := matrix.AllClose(lr.TransportMatrix(), p, 1e-12, 1e-15)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.InDeltaSlice(t, dense.A(), lr.A(), 1e-15)
	assert.InDeltaSlice(t, dense.B(), lr.B(), 1e-15)

	for _, scale := range []bool{false, true} {
		z := randomBatch(t, 4, 4, 3)
		dp, err := dense.Push(z, scale)
		require.NoError(t, err)
		lp, err := lr.Push(z, scale)
		require.NoError(t, err)
		ok, err = matrix.AllClose(lp, dp, 1e-12, 1e-15)
		require.NoError(t, err)
		assert.True(t, ok, "push scale=%v", scale)

		w := randomBatch(t, 5, 3, 3)
		dl, err := dense.Pull(w, scale)
		require.NoError(t, err)
		ll, err := lr.Pull(w, scale)
		require.NoError(t, err)
		ok, err = matrix.AllClose(ll, dl, 1e-12, 1e-15)
		require.NoError(t, err)
		assert.True(t, ok, "pull scale=%v", scale)
	}
}

func TestScaleByMarginals_ConservesMass(t *testing.T) {
	q, r, g, p := factoredFixture(t)
	dense, err := output.NewSinkhorn(p, output.Marginals{}, nil, nil, output.Stats{})
	require.NoError(t, err)
	lr, err := output.NewLRSinkhorn(q, r, g, output.Marginals{}, output.Stats{})
	require.NoError(t, err)

	for name, out := range map[string]output.Output{"dense": dense, "lowrank": lr} {
		t.Run(name, func(t *testing.T) {
			z := randomBatch(t, 6, 4, 4)
			pushed, err := out.Push(z, true)
			require.NoError(t, err)
			assert.InDeltaSlice(t, matrix.ColSums(z), matrix.ColSums(pushed), 1e-12)

			w := randomBatch(t, 7, 3, 2)
			pulled, err := out.Pull(w, true)
			require.NoError(t, err)
			assert.InDeltaSlice(t, matrix.ColSums(w), matrix.ColSums(pulled), 1e-12)

			v := []float64{0.5, 1, 2, 0.25}
			pv, err := out.PushVec(v, true)
			require.NoError(t, err)
			assert.InDelta(t, matrix.VecSum(v), matrix.VecSum(pv), 1e-12)
		})
	}
}

func TestScaleByMarginals_ZeroMassStaysZero(t *testing.T) {
	p := mustRows(t, [][]float64{{0.5, 0.0}, {0.0, 0.5}})
	out, err := output.FromPlan(p, 0, true)
	require.NoError(t, err)

	z, err := matrix.NewFromRows([][]float64{{0, 1}, {0, 1}})
	require.NoError(t, err)
	pushed, err := out.Push(z, true)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0}, pushed.Col(0))
	assert.InDelta(t, 2.0, matrix.VecSum(pushed.Col(1)), 1e-15)
}

func TestConstructorsRejectBadPlans(t *testing.T) {
	neg := mustRows(t, [][]float64{{0.5, -0.1}})
	_, err := output.NewSinkhorn(neg, output.Marginals{}, nil, nil, output.Stats{})
	require.ErrorIs(t, err, output.ErrNegativeMass)

	ok := mustRows(t, [][]float64{{0.5, 0.5}})
	_, err = output.NewSinkhorn(ok, output.Marginals{}, []float64{1, 2}, nil, output.Stats{})
	require.ErrorIs(t, err, output.ErrShapeMismatch)

	q := mustRows(t, [][]float64{{1}})
	_, err = output.NewLRSinkhorn(q, q, []float64{0}, output.Marginals{}, output.Stats{})
	require.ErrorIs(t, err, output.ErrNegativeMass)
	_, err = output.NewLowRankGW(q, q, []float64{1, 1}, output.Marginals{}, output.Stats{}, true)
	require.ErrorIs(t, err, output.ErrShapeMismatch)

	_, err = output.NewSinkhorn(ok, output.Marginals{A: []float64{0.5, 0.5}}, nil, nil, output.Stats{})
	require.ErrorIs(t, err, output.ErrShapeMismatch)
	_, err = output.NewGW(ok, output.Marginals{B: []float64{1.5, -0.5}}, output.Stats{}, true)
	require.ErrorIs(t, err, output.ErrNegativeMass)

	gw, err := output.NewGW(ok, output.Marginals{}, output.Stats{Cost: -1e-18}, false)
	require.NoError(t, err)
	assert.Equal(t, 0.0, gw.Cost())
	assert.False(t, gw.LinearConverged())
}

func TestConstructorsKeepGivenMarginals(t *testing.T) {
	// the plan sums are (0.3, 0.7) and (0.4, 0.2, 0.4); a and b are what
	// the solve was asked to match
	p := mustRows(t, [][]float64{{0.1, 0.2, 0.0}, {0.3, 0.0, 0.4}})
	a := []float64{0.5, 0.5}
	b := []float64{1.0 / 3, 1.0 / 3, 1.0 / 3}
	mu := output.Marginals{A: a, B: b}

	dense, err := output.NewSinkhorn(p, mu, nil, nil, output.Stats{})
	require.NoError(t, err)
	gw, err := output.NewGW(p, mu, output.Stats{}, true)
	require.NoError(t, err)

	q, r, g, _ := factoredFixture(t)
	lrA := []float64{0.25, 0.25, 0.25, 0.25}
	lrMu := output.Marginals{A: lrA, B: b}
	lr, err := output.NewLRSinkhorn(q, r, g, lrMu, output.Stats{})
	require.NoError(t, err)
	lrgw, err := output.NewLowRankGW(q, r, g, lrMu, output.Stats{}, false)
	require.NoError(t, err)

	for name, out := range map[string]output.Output{"dense": dense, "gw": gw} {
		assert.Equal(t, a, out.A(), name)
		assert.Equal(t, b, out.B(), name)
	}
	for name, out := range map[string]output.Output{"lowrank": lr, "lowrank gw": lrgw} {
		assert.Equal(t, lrA, out.A(), name)
		assert.Equal(t, b, out.B(), name)
	}

	// inputs are copied on the way in and on the way out
	a[0] = 9
	got := dense.A()
	assert.Equal(t, 0.5, got[0])
	got[1] = 7
	assert.Equal(t, []float64{0.5, 0.5}, dense.A())

	// FromPlan has no solve marginals and reports the plan sums
	fp, err := output.FromPlan(p, 0, true)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0.3, 0.7}, fp.A(), 1e-15)
	assert.InDeltaSlice(t, []float64{0.4, 0.2, 0.4}, fp.B(), 1e-15)
}

func TestScaleByMarginals_UsesGivenMarginals(t *testing.T) {
	// identity-like plan whose first row carries half of a_0
	p := mustRows(t, [][]float64{{0.25, 0.0}, {0.0, 0.5}})
	out, err := output.NewSinkhorn(p, output.Marginals{A: []float64{0.5, 0.5}, B: []float64{0.5, 0.5}}, nil, nil, output.Stats{})
	require.NoError(t, err)

	// z/a = (2, 2), Pᵀ(z/a) = (0.5, 1), rescaled to the input mass of 2
	pushed, err := out.PushVec([]float64{1, 1}, true)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{2.0 / 3, 4.0 / 3}, pushed, 1e-12)
}
