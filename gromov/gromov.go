package gromov

import (
	"errors"
	"fmt"
	"math"

	"github.com/charmbracelet/log"

	"github.com/katalvlaran/lvot/geometry"
	"github.com/katalvlaran/lvot/lowrank"
	"github.com/katalvlaran/lvot/matrix"
	"github.com/katalvlaran/lvot/sinkhorn"
)

var (
	// ErrShapeMismatch indicates geometries, marginals or initial couplings
	// that do not line up (Cx n×n, Cy m×m, Cxy n×m).
	ErrShapeMismatch = errors.New("gromov: shape mismatch")

	// ErrInvalidOptions indicates out-of-range outer-loop options.
	ErrInvalidOptions = errors.New("gromov: invalid options")
)

// Defaults of the outer loop.
const (
	DefaultOuterIterations = 20
	DefaultThreshold       = 1e-3
)

// Options configures a (fused) Gromov-Wasserstein run.
//   - Epsilon: regularisation of every linearised problem; unset resolves to
//     DefaultRelativeEpsilon × mean of the first linearised cost and is then
//     held fixed.
//   - Rank: 0 solves the linear sub-problems with Sinkhorn, k > 0 with
//     low-rank Sinkhorn starting from InitialFactors.
//   - Threshold: stop when ‖T_k − T_{k−1}‖₁ drops below it and the last
//     inner solve converged.
//   - FusedPenalty: weight of the linear cost Cxy (ignored without Cxy).
type Options struct {
	Epsilon         geometry.Epsilon
	Linear          sinkhorn.Options
	LowRank         lowrank.Options
	Rank            int
	InitialFactors  lowrank.Factors
	OuterIterations int
	Threshold       float64
	FusedPenalty    float64
	Logger          *log.Logger
}

// DefaultOptions returns a full-rank configuration.
func DefaultOptions() Options {
	return Options{
		Epsilon:         geometry.DefaultEpsilon(),
		Linear:          sinkhorn.DefaultOptions(),
		LowRank:         lowrank.DefaultOptions(),
		OuterIterations: DefaultOuterIterations,
		Threshold:       DefaultThreshold,
	}
}

// Result is the raw outcome of a GW run. Exactly one of Plan (full rank)
// and Factors (low rank) is set.
type Result struct {
	Plan            *matrix.Dense
	Factors         *lowrank.Factors
	Cost            float64
	Epsilon         float64
	Errors          []float64
	Iterations      int
	Converged       bool
	LinearConverged bool
}

// coupling is the current iterate in either representation.
type coupling struct {
	dense   *matrix.Dense
	factors *lowrank.Factors
}

func (c coupling) materialise() (*matrix.Dense, error) {
	if c.dense != nil {
		return c.dense, nil
	}
	f := c.factors
	inv := make([]float64, len(f.G))
	for k, v := range f.G {
		inv[k] = 1 / v
	}
	qg, err := matrix.ScaleCols(f.Q, inv)
	if err != nil {
		return nil, err
	}
	rt, err := matrix.Transpose(f.R)
	if err != nil {
		return nil, err
	}

	return matrix.Mul(qg, rt)
}

// Solve runs entropic (fused) Gromov-Wasserstein with the square loss.
// gx (n×n) and gy (m×m) are the intra-domain geometries; gxy (n×m) is the
// optional linear term of the fused problem (nil for pure GW). initial is the
// starting coupling of a full-rank run and is ignored at low rank.
//
// Implementation:
//   - Stage 1: linearise at T: L(T) = (Cx⊙Cx)·T1 ⊕ (Cy⊙Cy)·Tᵀ1 − 2·Cx T Cyᵀ,
//     plus FusedPenalty·Cxy; a low-rank T is applied factor by factor.
//   - Stage 2: solve the linear problem on L(T) (Sinkhorn warm-started from
//     the previous source potential, or low-rank Sinkhorn from the
//     previous factors).
//   - Stage 3: stop when ‖ΔT‖₁ < Threshold and the inner solve converged,
//     or after OuterIterations.
//   - Stage 4: Cost = max(0, ⟨L_sq(T), T⟩) + FusedPenalty·⟨Cxy, T⟩.
//
// Errors:
//   - ErrShapeMismatch, ErrInvalidOptions, and inner solver errors.
func Solve(gx, gy, gxy geometry.Geometry, a, b []float64, initial *matrix.Dense, opts Options) (*Result, error) {
	n, nx := gx.Shape()
	m, my := gy.Shape()
	if n != nx || m != my || len(a) != n || len(b) != m {
		return nil, fmt.Errorf("Cx %dx%d, Cy %dx%d, |a|=%d, |b|=%d: %w", n, nx, m, my, len(a), len(b), ErrShapeMismatch)
	}
	if gxy != nil {
		if r, c := gxy.Shape(); r != n || c != m {
			return nil, fmt.Errorf("Cxy %dx%d, want %dx%d: %w", r, c, n, m, ErrShapeMismatch)
		}
	}
	if opts.OuterIterations <= 0 || !(opts.Threshold > 0) || opts.Rank < 0 || opts.FusedPenalty < 0 {
		return nil, fmt.Errorf("outer=%d threshold=%g rank=%d penalty=%g: %w",
			opts.OuterIterations, opts.Threshold, opts.Rank, opts.FusedPenalty, ErrInvalidOptions)
	}
	if err := opts.Epsilon.Validate(); err != nil {
		return nil, err
	}

	var cur coupling
	if opts.Rank > 0 {
		f := opts.InitialFactors
		if f.Rank() != opts.Rank || f.Q == nil || f.R == nil {
			return nil, fmt.Errorf("initial factors of rank %d, want %d: %w", f.Rank(), opts.Rank, ErrShapeMismatch)
		}
		cur.factors = &lowrank.Factors{Q: f.Q.Clone(), R: f.R.Clone(), G: append([]float64(nil), f.G...)}
	} else {
		if initial == nil || initial.Rows() != n || initial.Cols() != m {
			return nil, fmt.Errorf("initial coupling: %w", ErrShapeMismatch)
		}
		cur.dense = initial.Clone()
	}

	var cxy *matrix.Dense
	if gxy != nil && opts.FusedPenalty > 0 {
		cxy = gxy.Cost()
	}

	res := &Result{}
	eps, epsSet := opts.Epsilon.Value()
	var fPrev []float64
	var it int
	for it = 1; it <= opts.OuterIterations; it++ {
		lin, err := linearise(gx, gy, cur)
		if err != nil {
			return nil, err
		}
		if cxy != nil {
			if err = addScaled(lin, cxy, opts.FusedPenalty); err != nil {
				return nil, err
			}
		}
		if !epsSet {
			eps = opts.Epsilon.Resolve(matrix.Mean(lin))
			epsSet = true
		}
		geom, err := geometry.NewCostMatrix(lin, geometry.WithEpsilon(geometry.FixedEpsilon(eps)))
		if err != nil {
			return nil, err
		}

		var next coupling
		if opts.Rank > 0 {
			lr, err := lowrank.Solve(geom, a, b, *cur.factors, opts.LowRank)
			if err != nil {
				return nil, err
			}
			f := lr.Factors
			next.factors = &f
			res.LinearConverged = lr.Converged
		} else {
			sk, err := sinkhorn.Solve(geom, a, b, fPrev, opts.Linear)
			if err != nil {
				return nil, err
			}
			fPrev = sk.F
			next.dense = sk.Plan
			res.LinearConverged = sk.Converged
		}

		delta, err := change(cur, next)
		if err != nil {
			return nil, err
		}
		cur = next
		res.Errors = append(res.Errors, delta)
		if opts.Logger != nil {
			opts.Logger.Debug("gromov outer step", "iteration", it, "delta", delta, "inner_converged", res.LinearConverged)
		}
		if delta < opts.Threshold && res.LinearConverged {
			res.Converged = true
			break
		}
	}
	if it > opts.OuterIterations {
		it = opts.OuterIterations
	}
	res.Iterations = it
	res.Epsilon = eps

	cost, err := objective(gx, gy, cxy, cur, opts.FusedPenalty)
	if err != nil {
		return nil, err
	}
	res.Cost = cost
	if cur.factors != nil {
		res.Factors = cur.factors
	} else {
		res.Plan = cur.dense
	}

	return res, nil
}

// linearise returns the square-loss linearisation at cur.
func linearise(gx, gy geometry.Geometry, cur coupling) (*matrix.Dense, error) {
	cross, ra, rb, err := crossTerm(gx, gy, cur)
	if err != nil {
		return nil, err
	}
	sx, err := gx.ApplySquaredCost(ra)
	if err != nil {
		return nil, err
	}
	sy, err := gy.ApplySquaredCost(rb)
	if err != nil {
		return nil, err
	}
	for i := 0; i < cross.Rows(); i++ {
		row := cross.RowView(i)
		for j := range row {
			row[j] = sx[i] + sy[j] - 2*row[j]
		}
	}

	return cross, nil
}

// crossTerm returns Cx T Cyᵀ and the marginals of T.
func crossTerm(gx, gy geometry.Geometry, cur coupling) (*matrix.Dense, []float64, []float64, error) {
	if f := cur.factors; f != nil {
		cq, err := gx.ApplyCost(f.Q)
		if err != nil {
			return nil, nil, nil, err
		}
		cr, err := gy.ApplyCost(f.R)
		if err != nil {
			return nil, nil, nil, err
		}
		inv := make([]float64, len(f.G))
		for k, v := range f.G {
			inv[k] = 1 / v
		}
		cq, err = matrix.ScaleCols(cq, inv)
		if err != nil {
			return nil, nil, nil, err
		}
		crT, err := matrix.Transpose(cr)
		if err != nil {
			return nil, nil, nil, err
		}
		cross, err := matrix.Mul(cq, crT)
		if err != nil {
			return nil, nil, nil, err
		}
		// Q1 and R1 are the marginals of Q diag(1/g) Rᵀ once Qᵀ1 = Rᵀ1 = g.
		return cross, matrix.RowSums(f.Q), matrix.RowSums(f.R), nil
	}

	t := cur.dense
	cxt, err := gx.ApplyCost(t) // n×m
	if err != nil {
		return nil, nil, nil, err
	}
	tt, err := matrix.Transpose(cxt) // m×n
	if err != nil {
		return nil, nil, nil, err
	}
	cyT, err := gy.ApplyCost(tt) // Cy (Cx T)ᵀ, m×n
	if err != nil {
		return nil, nil, nil, err
	}
	cross, err := matrix.Transpose(cyT)
	if err != nil {
		return nil, nil, nil, err
	}

	return cross, matrix.RowSums(t), matrix.ColSums(t), nil
}

// objective evaluates the final (fused) GW cost at cur.
func objective(gx, gy geometry.Geometry, cxy *matrix.Dense, cur coupling, penalty float64) (float64, error) {
	t, err := cur.materialise()
	if err != nil {
		return 0, err
	}
	lin, err := linearise(gx, gy, cur)
	if err != nil {
		return 0, err
	}
	quad, err := matrix.Dot(lin, t)
	if err != nil {
		return 0, err
	}
	cost := math.Max(0, quad)
	if cxy != nil {
		lc, err := matrix.Dot(cxy, t)
		if err != nil {
			return 0, err
		}
		cost += penalty * lc
	}

	return cost, nil
}

// change returns ‖next − cur‖₁ on the materialised couplings.
func change(cur, next coupling) (float64, error) {
	c, err := cur.materialise()
	if err != nil {
		return 0, err
	}
	nx, err := next.materialise()
	if err != nil {
		return 0, err
	}

	return matrix.L1Distance(c, nx)
}

// addScaled performs dst += w·src in place.
func addScaled(dst, src *matrix.Dense, w float64) error {
	if err := matrix.ValidateSameShape(dst, src); err != nil {
		return err
	}
	for i := 0; i < dst.Rows(); i++ {
		d, s := dst.RowView(i), src.RowView(i)
		for j := range d {
			d[j] += w * s[j]
		}
	}

	return nil
}
