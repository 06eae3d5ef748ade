package cli

import (
	"math/rand"

	"github.com/katalvlaran/lvot/matrix"
	"github.com/katalvlaran/lvot/solver"
)

// featureDims is the width of the shared feature space of fused problems.
const featureDims = 2

// cloud draws an n×d standard Gaussian cloud shifted by shift on every axis.
func cloud(rng *rand.Rand, n, d int, shift float64) (*matrix.Dense, error) {
	data := make([]float64, n*d)
	for k := range data {
		data[k] = rng.NormFloat64() + shift
	}

	return matrix.NewDenseFrom(n, d, data)
}

// syntheticProblem builds a reproducible problem for family: a source cloud
// and a shifted target cloud, plus shared features and alpha when fused.
func syntheticProblem(family solver.Family, n, m, dims int, seed int64, alpha float64) (solver.Problem, error) {
	rng := rand.New(rand.NewSource(seed))
	x, err := cloud(rng, n, dims, 0)
	if err != nil {
		return solver.Problem{}, err
	}
	y, err := cloud(rng, m, dims, 1)
	if err != nil {
		return solver.Problem{}, err
	}
	p := solver.Problem{X: x, Y: y}
	if family != solver.FamilyFused {
		return p, nil
	}

	if p.XX, err = cloud(rng, n, featureDims, 0); err != nil {
		return solver.Problem{}, err
	}
	if p.YY, err = cloud(rng, m, featureDims, 0.5); err != nil {
		return solver.Problem{}, err
	}
	p.Alpha = alpha

	return p, nil
}
