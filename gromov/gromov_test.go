package gromov_test

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvot/geometry"
	"github.com/katalvlaran/lvot/gromov"
	"github.com/katalvlaran/lvot/initializer"
	"github.com/katalvlaran/lvot/matrix"
)

func cloud(t *testing.T, seed int64, n, d int) *matrix.Dense {
	t.Helper()
	rng := rand.New(rand.NewSource(seed))
	data := make([]float64, n*d)
	for k := range data {
		data[k] = rng.NormFloat64()
	}
	m, err := matrix.NewDenseFrom(n, d, data)
	require.NoError(t, err)

	return m
}

func uniform(n int) []float64 {
	v := make([]float64, n)
	for k := range v {
		v[k] = 1 / float64(n)
	}

	return v
}

func intra(t *testing.T, x *matrix.Dense) geometry.Geometry {
	t.Helper()
	g, err := geometry.NewPointCloud(x, nil, geometry.WithScaleCost(geometry.ScaleMax()))
	require.NoError(t, err)

	return g
}

// gwObjective evaluates Σ (Cx_ik − Cy_jl)² T_ij T_kl by brute force.
func gwObjective(cx, cy, tp *matrix.Dense) float64 {
	n, m := tp.Shape()
	var s float64
	for i := 0; i < n; i++ {
		for j := 0; j < m; j++ {
			tij := tp.RowView(i)[j]
			for k := 0; k < n; k++ {
				for l := 0; l < m; l++ {
					d := cx.RowView(i)[k] - cy.RowView(j)[l]
					s += d * d * tij * tp.RowView(k)[l]
				}
			}
		}
	}

	return s
}

func TestSolve_DecreasesObjective(t *testing.T) {
	x := cloud(t, 1, 8, 2)
	y := cloud(t, 2, 9, 3)
	gx, gy := intra(t, x), intra(t, y)
	a, b := uniform(8), uniform(9)

	qi, err := initializer.Quadratic("", nil)
	require.NoError(t, err)
	t0, err := qi.Coupling(a, b)
	require.NoError(t, err)

	res, err := gromov.Solve(gx, gy, nil, a, b, t0, gromov.DefaultOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Plan)
	require.Nil(t, res.Factors)

	n, m := res.Plan.Shape()
	assert.Equal(t, 8, n)
	assert.Equal(t, 9, m)
	assert.GreaterOrEqual(t, res.Cost, 0.0)
	assert.NotEmpty(t, res.Errors)
	assert.Greater(t, res.Epsilon, 0.0)

	cx, cy := gx.Cost(), gy.Cost()
	assert.InDelta(t, gwObjective(cx, cy, res.Plan), res.Cost, 1e-9)
	assert.Less(t, res.Cost, gwObjective(cx, cy, t0))

	for i, v := range matrix.RowSums(res.Plan) {
		assert.InDelta(t, a[i], v, 1e-9)
	}
}

func TestSolve_IsometricCopyIsCheap(t *testing.T) {
	x := cloud(t, 3, 7, 2)
	// rotate by 90° and shift: intra-domain distances are unchanged
	rows := make([][]float64, 7)
	for i := range rows {
		p := x.Row(i)
		rows[i] = []float64{-p[1] + 5, p[0] - 2}
	}
	y, err := matrix.NewFromRows(rows)
	require.NoError(t, err)

	gx, gy := intra(t, x), intra(t, y)
	a := uniform(7)
	qi, err := initializer.Quadratic("", nil)
	require.NoError(t, err)
	t0, err := qi.Coupling(a, a)
	require.NoError(t, err)

	opts := gromov.DefaultOptions()
	opts.Epsilon = geometry.FixedEpsilon(1e-3)
	opts.OuterIterations = 50
	res, err := gromov.Solve(gx, gy, nil, a, a, t0, opts)
	require.NoError(t, err)

	cx, cy := gx.Cost(), gy.Cost()
	assert.Less(t, res.Cost, 0.25*gwObjective(cx, cy, t0))
}

func TestSolve_LowRank(t *testing.T) {
	x := cloud(t, 4, 10, 2)
	y := cloud(t, 5, 12, 2)
	gx, gy := intra(t, x), intra(t, y)
	a, b := uniform(10), uniform(12)

	li, err := initializer.LowRank("", nil)
	require.NoError(t, err)
	f0, err := li.Factors(a, b, 3)
	require.NoError(t, err)

	opts := gromov.DefaultOptions()
	opts.Rank = 3
	opts.InitialFactors = f0
	res, err := gromov.Solve(gx, gy, nil, a, b, nil, opts)
	require.NoError(t, err)
	require.Nil(t, res.Plan)
	require.NotNil(t, res.Factors)
	assert.Equal(t, 3, res.Factors.Rank())
	assert.GreaterOrEqual(t, res.Cost, 0.0)
	assert.False(t, math.IsNaN(res.Cost))
}

func TestSolve_Fused(t *testing.T) {
	x := cloud(t, 6, 6, 2)
	y := cloud(t, 7, 5, 2)
	gx, gy := intra(t, x), intra(t, y)
	gxy, err := geometry.NewPointCloud(x, y)
	require.NoError(t, err)
	a, b := uniform(6), uniform(5)
	qi, err := initializer.Quadratic("", nil)
	require.NoError(t, err)
	t0, err := qi.Coupling(a, b)
	require.NoError(t, err)

	opts := gromov.DefaultOptions()
	opts.FusedPenalty = 2
	res, err := gromov.Solve(gx, gy, gxy, a, b, t0, opts)
	require.NoError(t, err)

	lin, err := matrix.Dot(gxy.Cost(), res.Plan)
	require.NoError(t, err)
	quad := gwObjective(gx.Cost(), gy.Cost(), res.Plan)
	assert.InDelta(t, quad+2*lin, res.Cost, 1e-9)
}

func TestSolve_Errors(t *testing.T) {
	gx := intra(t, cloud(t, 1, 4, 2))
	gy := intra(t, cloud(t, 2, 5, 2))
	a, b := uniform(4), uniform(5)
	t0, err := matrix.NewFilled(4, 5, 0.05)
	require.NoError(t, err)

	bad, err := geometry.NewPointCloud(cloud(t, 3, 5, 2), cloud(t, 4, 4, 2))
	require.NoError(t, err)
	_, err = gromov.Solve(gx, gy, bad, a, b, t0, gromov.DefaultOptions())
	require.ErrorIs(t, err, gromov.ErrShapeMismatch)

	_, err = gromov.Solve(gx, gy, nil, b, a, t0, gromov.DefaultOptions())
	require.ErrorIs(t, err, gromov.ErrShapeMismatch)

	opts := gromov.DefaultOptions()
	opts.OuterIterations = 0
	_, err = gromov.Solve(gx, gy, nil, a, b, t0, opts)
	require.ErrorIs(t, err, gromov.ErrInvalidOptions)

	opts = gromov.DefaultOptions()
	opts.Rank = 2
	_, err = gromov.Solve(gx, gy, nil, a, b, nil, opts)
	require.ErrorIs(t, err, gromov.ErrShapeMismatch)
}
