package matrix_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/lvot/matrix"
)

func TestLogSumExp(t *testing.T) {
	negInf := math.Inf(-1)
	cases := []struct {
		name string
		in   []float64
		want float64
	}{
		{"empty", nil, negInf},
		{"all -Inf", []float64{negInf, negInf}, negInf},
		{"single", []float64{2}, 2},
		{"pair", []float64{0, 0}, math.Log(2)},
		{"mixed", []float64{negInf, 1, 1}, 1 + math.Log(2)},
		{"large", []float64{1000, 1000}, 1000 + math.Log(2)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := matrix.LogSumExp(tc.in)
			if math.IsInf(tc.want, -1) {
				assert.True(t, math.IsInf(got, -1))
				return
			}
			assert.InDelta(t, tc.want, got, 1e-12)
		})
	}
}

func TestAllClose(t *testing.T) {
	a := mustRows(t, [][]float64{{1, 100}})
	b := mustRows(t, [][]float64{{1.001, 100.5}})

	ok, err := matrix.AllClose(a, b, 0, 1e-3)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = matrix.AllClose(a, b, 1e-2, 1e-3)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = matrix.AllClose(a, mustRows(t, [][]float64{{1}}), 0, 0)
	require.ErrorIs(t, err, matrix.ErrDimensionMismatch)
}

func TestDistancesAndNorms(t *testing.T) {
	a := mustRows(t, [][]float64{{1, -2}, {3, 0}})
	b := mustRows(t, [][]float64{{0, 1}, {1, 1}})

	d, err := matrix.L1Distance(a, b)
	require.NoError(t, err)
	assert.Equal(t, 7.0, d)

	dot, err := matrix.Dot(a, b)
	require.NoError(t, err)
	assert.Equal(t, 1.0, dot)

	assert.Equal(t, 3.0, matrix.SupNorm(a))
	assert.Equal(t, 2.0, matrix.VecSum([]float64{0.5, 1.5}))

	_, err = matrix.Dot(a, nil)
	require.ErrorIs(t, err, matrix.ErrNilMatrix)
}
