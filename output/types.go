package output

import (
	"github.com/katalvlaran/lvot/matrix"
)

// Sinkhorn is the output of a full-rank linear solve.
type Sinkhorn struct {
	base
	f, g []float64
}

// LRSinkhorn is the output of a low-rank linear solve.
type LRSinkhorn struct {
	base
}

// GW is the output of a (fused) Gromov-Wasserstein solve; its plan is
// dense or factored depending on the solve rank.
type GW struct {
	base
	linearConverged bool
}

var (
	_ Output = (*Sinkhorn)(nil)
	_ Output = (*LRSinkhorn)(nil)
	_ Output = (*GW)(nil)
)

// NewSinkhorn wraps a dense plan, the marginals it was solved for and its
// dual potentials (all copied).
//
// Errors:
//   - ErrNegativeMass, matrix.ErrNaNInf, ErrShapeMismatch (marginal or potential lengths).
func NewSinkhorn(p *matrix.Dense, mu Marginals, f, g []float64, st Stats) (*Sinkhorn, error) {
	pl, err := newDensePlan(p)
	if err != nil {
		return nil, outputErrorf(opNew, err)
	}
	n, m := pl.shape()
	if (f != nil && len(f) != n) || (g != nil && len(g) != m) {
		return nil, outputErrorf(opNew, ErrShapeMismatch)
	}

	b, err := newBase(pl, mu, st)
	if err != nil {
		return nil, outputErrorf(opNew, err)
	}

	return &Sinkhorn{
		base: b,
		f:    append([]float64(nil), f...),
		g:    append([]float64(nil), g...),
	}, nil
}

// Potentials returns copies of the dual potentials (nil when unknown).
func (s *Sinkhorn) Potentials() (f, g []float64) {
	if len(s.f) == 0 {
		return nil, nil
	}

	return append([]float64(nil), s.f...), append([]float64(nil), s.g...)
}

// NewLRSinkhorn wraps factors Q (n×r), R (m×r) and g (r) (copied).
func NewLRSinkhorn(q, r *matrix.Dense, g []float64, mu Marginals, st Stats) (*LRSinkhorn, error) {
	pl, err := newFactoredPlan(q, r, g)
	if err != nil {
		return nil, outputErrorf(opNew, err)
	}
	b, err := newBase(pl, mu, st)
	if err != nil {
		return nil, outputErrorf(opNew, err)
	}

	return &LRSinkhorn{base: b}, nil
}

// NewGW wraps a dense GW coupling.
func NewGW(p *matrix.Dense, mu Marginals, st Stats, linearConverged bool) (*GW, error) {
	pl, err := newDensePlan(p)
	if err != nil {
		return nil, outputErrorf(opNew, err)
	}
	b, err := newBase(pl, mu, st)
	if err != nil {
		return nil, outputErrorf(opNew, err)
	}

	return &GW{base: b, linearConverged: linearConverged}, nil
}

// NewLowRankGW wraps a factored GW coupling.
func NewLowRankGW(q, r *matrix.Dense, g []float64, mu Marginals, st Stats, linearConverged bool) (*GW, error) {
	pl, err := newFactoredPlan(q, r, g)
	if err != nil {
		return nil, outputErrorf(opNew, err)
	}
	b, err := newBase(pl, mu, st)
	if err != nil {
		return nil, outputErrorf(opNew, err)
	}

	return &GW{base: b, linearConverged: linearConverged}, nil
}

// LinearConverged reports whether the last linearised sub-problem converged.
func (g *GW) LinearConverged() bool { return g.linearConverged }

// FromPlan wraps an externally computed dense plan, e.g. for analyses over
// couplings produced elsewhere. Its marginals are the plan's row and column
// sums.
func FromPlan(p *matrix.Dense, cost float64, converged bool) (Output, error) {
	return NewSinkhorn(p, Marginals{}, nil, nil, Stats{Cost: cost, Converged: converged})
}
