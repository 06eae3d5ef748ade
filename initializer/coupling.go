package initializer

import (
	"math/rand"

	"github.com/katalvlaran/lvot/matrix"
)

const defaultScalingIterations = 50

// productInit starts Gromov-Wasserstein from the independent coupling a bᵀ.
type productInit struct{}

func (productInit) Name() string { return NameDefault }

func (productInit) Coupling(a, b []float64) (*matrix.Dense, error) {
	out, err := matrix.NewDense(len(a), len(b))
	if err != nil {
		return nil, initErrorf(NameDefault, err)
	}
	for i, ai := range a {
		row := out.RowView(i)
		for j, bj := range b {
			row[j] = ai * bj
		}
	}

	return out, nil
}

// randomCouplingInit draws a seeded positive matrix and balances it onto
// the marginals with alternating row/column scaling.
type randomCouplingInit struct {
	seed       int64
	iterations int
}

func (randomCouplingInit) Name() string { return NameRandom }

func (r randomCouplingInit) Coupling(a, b []float64) (*matrix.Dense, error) {
	out, err := matrix.NewDense(len(a), len(b))
	if err != nil {
		return nil, initErrorf(NameRandom, err)
	}
	rng := rand.New(rand.NewSource(r.seed))
	for i := range a {
		row := out.RowView(i)
		for j := range row {
			row[j] = 0.1 + rng.Float64()
		}
	}
	scaleToMarginals(out, a, b, r.iterations)

	return out, nil
}

// scaleToMarginals alternately rescales rows to a and columns to b in
// place; the last pass fixes the columns exactly. Zero-sum lines stay zero.
func scaleToMarginals(p *matrix.Dense, a, b []float64, iterations int) {
	if iterations < 1 {
		iterations = 1
	}
	for it := 0; it < iterations; it++ {
		for i, s := range matrix.RowSums(p) {
			if s == 0 {
				continue
			}
			row := p.RowView(i)
			for j := range row {
				row[j] *= a[i] / s
			}
		}
		cols := matrix.ColSums(p)
		for i := 0; i < p.Rows(); i++ {
			row := p.RowView(i)
			for j, s := range cols {
				if s != 0 {
					row[j] *= b[j] / s
				}
			}
		}
	}
}
