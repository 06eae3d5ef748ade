package initializer

import (
	"math"
	"math/rand"

	"github.com/katalvlaran/lvot/lowrank"
	"github.com/katalvlaran/lvot/matrix"
)

// rank2Init is the rank-2 construction of Scetbon, Cuturi & Peyré (2021):
// with λ = ½·min(min a, min b, 1/r), g₁ ∝ (1..r), x ∝ (1..n),
// Q = λ x g₁ᵀ + (1 − λ) y g₂ᵀ where y = (a − λx)/(1 − λ) and
// g₂ = (1/r − λ g₁)/(1 − λ). For unit-mass marginals Q1 = a and Qᵀ1 = 1/r
// hold exactly.
type rank2Init struct{}

func (rank2Init) Name() string { return NameRank2 }

func (rank2Init) Factors(a, b []float64, rank int) (lowrank.Factors, error) {
	if rank < 1 {
		return lowrank.Factors{}, initErrorf(NameRank2, lowrank.ErrInvalidRank)
	}
	g := make([]float64, rank)
	for k := range g {
		g[k] = 1 / float64(rank)
	}
	lambda := 0.5 * math.Min(math.Min(minOf(a), minOf(b)), g[0])

	q, err := rank2Factor(a, g, lambda)
	if err != nil {
		return lowrank.Factors{}, initErrorf(NameRank2, err)
	}
	r, err := rank2Factor(b, g, lambda)
	if err != nil {
		return lowrank.Factors{}, initErrorf(NameRank2, err)
	}

	return lowrank.Factors{Q: q, R: r, G: g}, nil
}

func rank2Factor(marginal, g []float64, lambda float64) (*matrix.Dense, error) {
	n, r := len(marginal), len(g)
	g1 := ramp(r)
	x := ramp(n)
	out, err := matrix.NewDense(n, r)
	if err != nil {
		return nil, err
	}
	for i := 0; i < n; i++ {
		yi := (marginal[i] - lambda*x[i]) / (1 - lambda)
		row := out.RowView(i)
		for k := 0; k < r; k++ {
			g2 := (g[k] - lambda*g1[k]) / (1 - lambda)
			row[k] = lambda*x[i]*g1[k] + (1-lambda)*yi*g2
		}
	}

	return out, nil
}

// ramp returns (1, 2, ..., n) normalised to sum 1.
func ramp(n int) []float64 {
	v := make([]float64, n)
	total := float64(n*(n+1)) / 2
	for k := range v {
		v[k] = float64(k+1) / total
	}

	return v
}

func minOf(v []float64) float64 {
	best := math.Inf(1)
	for _, x := range v {
		if x < best {
			best = x
		}
	}

	return best
}

// randomFactorsInit draws positive factors from a seeded generator and
// rescales their rows to the marginals; g is uniform.
type randomFactorsInit struct {
	seed int64
}

func (randomFactorsInit) Name() string { return NameRandom }

func (r randomFactorsInit) Factors(a, b []float64, rank int) (lowrank.Factors, error) {
	if rank < 1 {
		return lowrank.Factors{}, initErrorf(NameRandom, lowrank.ErrInvalidRank)
	}
	rng := rand.New(rand.NewSource(r.seed))
	q, err := randomRows(rng, a, rank)
	if err != nil {
		return lowrank.Factors{}, initErrorf(NameRandom, err)
	}
	rr, err := randomRows(rng, b, rank)
	if err != nil {
		return lowrank.Factors{}, initErrorf(NameRandom, err)
	}
	g := make([]float64, rank)
	for k := range g {
		g[k] = 1 / float64(rank)
	}

	return lowrank.Factors{Q: q, R: rr, G: g}, nil
}

// randomRows returns a len(marginal)×rank matrix with positive entries whose
// rows sum to marginal.
func randomRows(rng *rand.Rand, marginal []float64, rank int) (*matrix.Dense, error) {
	out, err := matrix.NewDense(len(marginal), rank)
	if err != nil {
		return nil, err
	}
	for i, target := range marginal {
		row := out.RowView(i)
		var s float64
		for k := range row {
			row[k] = 0.1 + rng.Float64()
			s += row[k]
		}
		for k := range row {
			row[k] *= target / s
		}
	}

	return out, nil
}
