package output

import (
	"fmt"
	"math"

	"github.com/katalvlaran/lvot/matrix"
)

// Output is the read-only result of one solve. Downstream code depends only
// on this interface, never on how the plan is stored.
type Output interface {
	// TransportMatrix returns the dense n×m coupling (a fresh copy). A
	// factored plan is rebuilt as Q diag(1/g) Rᵀ.
	TransportMatrix() *matrix.Dense

	// A and B return the source (length n) and target (length m) marginals
	// the plan was solved for. The plan's own row and column sums only
	// approximate them when the solve is unbalanced or stopped early.
	A() []float64
	B() []float64

	// Cost returns the non-negative objective value.
	Cost() float64

	// Converged reports whether the solver met its tolerance.
	Converged() bool

	// Shape returns (n, m).
	Shape() (int, int)

	// Push propagates an n×k source batch forward: Pᵀz, m×k.
	Push(z *matrix.Dense, scaleByMarginals bool) (*matrix.Dense, error)

	// Pull propagates an m×k target batch backward: P z, n×k.
	Pull(z *matrix.Dense, scaleByMarginals bool) (*matrix.Dense, error)

	// PushVec and PullVec are the 1-D forms of Push and Pull.
	PushVec(z []float64, scaleByMarginals bool) ([]float64, error)
	PullVec(z []float64, scaleByMarginals bool) ([]float64, error)

	// IsLowRank reports whether the plan is stored as factors.
	IsLowRank() bool

	// Rank returns the number of factor columns, or -1 for a dense plan.
	// A low-rank request at or above min(n, m) is solved densely and then
	// factored, so its Rank is min(n, m) rather than the requested value.
	Rank() int

	// Iterations and Errors expose the solver trace.
	Iterations() int
	Errors() []float64
}

// Stats carries the scalar outcome of a solve.
type Stats struct {
	Cost       float64
	Converged  bool
	Iterations int
	Errors     []float64
}

// Marginals are the source and target weights a solve was run against.
// A nil side falls back to the matching sums of the plan.
type Marginals struct {
	A, B []float64
}

// base implements Output over a plan strategy.
type base struct {
	pl    plan
	a, b  []float64
	stats Stats
}

func newBase(pl plan, mu Marginals, st Stats) (base, error) {
	n, m := pl.shape()
	a, err := marginal(mu.A, n, pl.rowSums)
	if err != nil {
		return base{}, err
	}
	b, err := marginal(mu.B, m, pl.colSums)
	if err != nil {
		return base{}, err
	}

	st.Errors = append([]float64(nil), st.Errors...)
	if st.Cost < 0 {
		st.Cost = 0
	}

	return base{pl: pl, a: a, b: b, stats: st}, nil
}

// marginal copies w after checking it against the plan side of length n.
func marginal(w []float64, n int, sums func() []float64) ([]float64, error) {
	if w == nil {
		return sums(), nil
	}
	if len(w) != n {
		return nil, ErrShapeMismatch
	}
	for _, v := range w {
		if !(v >= 0) {
			return nil, ErrNegativeMass
		}
	}

	return append([]float64(nil), w...), nil
}

// TransportMatrix implements Output.
func (o *base) TransportMatrix() *matrix.Dense { return o.pl.materialise() }

// A implements Output.
func (o *base) A() []float64 { return append([]float64(nil), o.a...) }

// B implements Output.
func (o *base) B() []float64 { return append([]float64(nil), o.b...) }

// Cost implements Output.
func (o *base) Cost() float64 { return o.stats.Cost }

// Converged implements Output.
func (o *base) Converged() bool { return o.stats.Converged }

// Shape implements Output.
func (o *base) Shape() (int, int) { return o.pl.shape() }

// IsLowRank implements Output.
func (o *base) IsLowRank() bool { return o.pl.rank() > 0 }

// Rank implements Output.
func (o *base) Rank() int { return o.pl.rank() }

// Iterations implements Output.
func (o *base) Iterations() int { return o.stats.Iterations }

// Errors implements Output.
func (o *base) Errors() []float64 { return append([]float64(nil), o.stats.Errors...) }

// Push implements Output.
//
// With scaleByMarginals, row i of z is divided by a_i (zero marginal → zero
// row) before propagation, and every output column is then rescaled so its
// sum equals the sum of the matching input column. A column that carries
// no mass after propagation stays zero.
//
// Errors:
//   - ErrShapeMismatch when z.Rows() != n; matrix.ErrNilMatrix for nil z.
func (o *base) Push(z *matrix.Dense, scaleByMarginals bool) (*matrix.Dense, error) {
	n, _ := o.pl.shape()

	return propagate(opPush, z, n, o.a, scaleByMarginals, o.pl.forward)
}

// Pull implements Output; it mirrors Push with b and P z.
func (o *base) Pull(z *matrix.Dense, scaleByMarginals bool) (*matrix.Dense, error) {
	_, m := o.pl.shape()

	return propagate(opPull, z, m, o.b, scaleByMarginals, o.pl.backward)
}

// PushVec implements Output.
func (o *base) PushVec(z []float64, scaleByMarginals bool) ([]float64, error) {
	n, _ := o.pl.shape()

	return propagateVec(opPush, z, n, func(c *matrix.Dense) (*matrix.Dense, error) {
		return o.Push(c, scaleByMarginals)
	})
}

// PullVec implements Output.
func (o *base) PullVec(z []float64, scaleByMarginals bool) ([]float64, error) {
	_, m := o.pl.shape()

	return propagateVec(opPull, z, m, func(c *matrix.Dense) (*matrix.Dense, error) {
		return o.Pull(c, scaleByMarginals)
	})
}

func propagate(tag string, z *matrix.Dense, want int, marginal []float64, scale bool,
	apply func(*matrix.Dense) (*matrix.Dense, error)) (*matrix.Dense, error) {
	if z == nil {
		return nil, outputErrorf(tag, matrix.ErrNilMatrix)
	}
	if z.Rows() != want {
		return nil, outputErrorf(tag, fmt.Errorf("input has %d rows, want %d: %w", z.Rows(), want, ErrShapeMismatch))
	}
	if !scale {
		out, err := apply(z)
		if err != nil {
			return nil, outputErrorf(tag, err)
		}

		return out, nil
	}

	inv := make([]float64, len(marginal))
	for i, v := range marginal {
		if v > 0 {
			inv[i] = 1 / v
		}
	}
	scaled, err := matrix.ScaleRows(z, inv)
	if err != nil {
		return nil, outputErrorf(tag, err)
	}
	out, err := apply(scaled)
	if err != nil {
		return nil, outputErrorf(tag, err)
	}

	target := matrix.ColSums(z)
	got := matrix.ColSums(out)
	factor := make([]float64, len(got))
	for k, s := range got {
		if s != 0 {
			factor[k] = target[k] / s
		}
	}
	out, err = matrix.ScaleCols(out, factor)
	if err != nil {
		return nil, outputErrorf(tag, err)
	}

	return out, nil
}

func propagateVec(tag string, z []float64, want int, fn func(*matrix.Dense) (*matrix.Dense, error)) ([]float64, error) {
	if len(z) != want {
		return nil, outputErrorf(tag, fmt.Errorf("input has length %d, want %d: %w", len(z), want, ErrShapeMismatch))
	}
	col, err := matrix.NewColumn(z)
	if err != nil {
		return nil, outputErrorf(tag, err)
	}
	out, err := fn(col)
	if err != nil {
		return nil, err
	}

	return out.Col(0), nil
}

// checkMass rejects negative or non-finite entries.
func checkMass(m *matrix.Dense) error {
	if err := matrix.ValidateNotNil(m); err != nil {
		return err
	}
	for i := 0; i < m.Rows(); i++ {
		for _, v := range m.RowView(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return matrix.ErrNaNInf
			}
			if v < 0 {
				return ErrNegativeMass
			}
		}
	}

	return nil
}

// newFactoredPlan validates and copies factors.
func newFactoredPlan(q, r *matrix.Dense, g []float64) (factoredPlan, error) {
	if err := checkMass(q); err != nil {
		return factoredPlan{}, err
	}
	if err := checkMass(r); err != nil {
		return factoredPlan{}, err
	}
	if q.Cols() != len(g) || r.Cols() != len(g) {
		return factoredPlan{}, fmt.Errorf("Q %dx%d, R %dx%d, |g|=%d: %w", q.Rows(), q.Cols(), r.Rows(), r.Cols(), len(g), ErrShapeMismatch)
	}
	inv := make([]float64, len(g))
	for k, v := range g {
		if !(v > 0) || math.IsInf(v, 0) {
			return factoredPlan{}, fmt.Errorf("g[%d]=%g: %w", k, v, ErrNegativeMass)
		}
		inv[k] = 1 / v
	}

	return factoredPlan{q: q.Clone(), r: r.Clone(), invG: inv}, nil
}

// newDensePlan validates and copies a dense plan.
func newDensePlan(p *matrix.Dense) (densePlan, error) {
	if err := checkMass(p); err != nil {
		return densePlan{}, err
	}

	return densePlan{p: p.Clone()}, nil
}
