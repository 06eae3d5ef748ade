package lowrank

import (
	"fmt"
	"math"

	"github.com/katalvlaran/lvot/geometry"
	"github.com/katalvlaran/lvot/matrix"
)

// Solve runs low-rank Sinkhorn (mirror descent on the factors Q, R, g with
// a Dykstra projection onto the coupling constraints) starting at init.
//
// Implementation:
//   - Stage 1: gradients ∇Q = C R diag(1/g), ∇R = Cᵀ Q diag(1/g),
//     ∇g = −diag(Qᵀ C R)/g², computed through the geometry products so
//     online clouds never materialise C.
//   - Stage 2: step = Gamma / max(‖∇Q‖∞, ‖∇R‖∞, ‖∇g‖∞)²; the kernels are
//     log K = −step·∇ + (1 − step·ε)·log(current).
//   - Stage 3: project the kernels with Dykstra onto
//     {Q1 = a, R1 = b, Qᵀ1 = Rᵀ1 = g, g ≥ 1e-10}.
//   - Stage 4: every InnerIterations steps, stop when the relative change
//     of ⟨C, Q diag(1/g) Rᵀ⟩ falls below Threshold.
//
// Errors:
//   - ErrInvalidOptions, ErrInvalidRank, ErrShapeMismatch.
//
// Complexity:
//   - Time O(iterations·(n·m·r + DykstraIters·(n+m)·r)), Space O((n+m)·r).
func Solve(geom geometry.Geometry, a, b []float64, init Factors, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	n, m := geom.Shape()
	r := init.Rank()
	if r < 1 {
		return nil, ErrInvalidRank
	}
	if init.Q == nil || init.R == nil || init.Q.Rows() != n || init.Q.Cols() != r ||
		init.R.Rows() != m || init.R.Cols() != r {
		return nil, fmt.Errorf("initial factors for %dx%d geometry at rank %d: %w", n, m, r, ErrShapeMismatch)
	}
	if len(a) != n || len(b) != m {
		return nil, fmt.Errorf("marginals %d/%d for %dx%d geometry: %w", len(a), len(b), n, m, ErrShapeMismatch)
	}

	q, rr := init.Q.Clone(), init.R.Clone()
	g := append([]float64(nil), init.G...)
	cr, err := geom.ApplyCost(rr)
	if err != nil {
		return nil, err
	}
	cost := factoredCost(q, cr, g)

	res := &Result{}
	prev := cost
	var it int
	for it = 1; it <= opts.MaxIterations; it++ {
		ctq, err := geom.ApplyCostT(q)
		if err != nil {
			return nil, err
		}
		logKQ, logKR, logKG := mirrorKernels(q, rr, g, cr, ctq, opts)
		q, rr, g = dykstra(logKQ, logKR, logKG, a, b, opts)

		if cr, err = geom.ApplyCost(rr); err != nil {
			return nil, err
		}
		cost = factoredCost(q, cr, g)

		if it%opts.InnerIterations != 0 {
			continue
		}
		rel := math.Abs(prev-cost) / math.Max(math.Abs(prev), 1e-12)
		res.Errors = append(res.Errors, rel)
		if opts.Logger != nil {
			opts.Logger.Debug("low-rank check", "iteration", it, "cost", cost, "error", rel)
		}
		if math.IsNaN(rel) {
			break
		}
		if rel < opts.Threshold {
			res.Converged = true
			break
		}
		prev = cost
	}
	if it > opts.MaxIterations {
		it = opts.MaxIterations
	}
	res.Iterations = it
	res.Factors = Factors{Q: q, R: rr, G: g}
	res.Cost = cost

	return res, nil
}

// factoredCost returns ⟨C, Q diag(1/g) Rᵀ⟩ = Σ_k (Qᵀ C R)_kk / g_k given CR.
func factoredCost(q, cr *matrix.Dense, g []float64) float64 {
	diag := columnDots(q, cr)
	var s float64
	for k, d := range diag {
		s += d / g[k]
	}

	return s
}

// columnDots returns Σ_i x_ik y_ik for every column k.
func columnDots(x, y *matrix.Dense) []float64 {
	out := make([]float64, x.Cols())
	for i := 0; i < x.Rows(); i++ {
		yi := y.RowView(i)
		for k, v := range x.RowView(i) {
			out[k] += v * yi[k]
		}
	}

	return out
}

// mirrorKernels assembles the log-kernels of one mirror-descent step.
func mirrorKernels(q, rr *matrix.Dense, g []float64, cr, ctq *matrix.Dense, opts Options) (*matrix.Dense, *matrix.Dense, []float64) {
	invG := make([]float64, len(g))
	for k, v := range g {
		invG[k] = 1 / v
	}
	gradQ, _ := matrix.ScaleCols(cr, invG)
	gradR, _ := matrix.ScaleCols(ctq, invG)
	gradG := columnDots(q, cr)
	for k := range gradG {
		gradG[k] = -gradG[k] * invG[k] * invG[k]
	}

	norm := math.Max(matrix.SupNorm(gradQ), matrix.SupNorm(gradR))
	for _, v := range gradG {
		norm = math.Max(norm, math.Abs(v))
	}
	step := opts.Gamma
	if norm > 0 {
		step /= norm * norm
	}
	keep := 1 - step*opts.Epsilon

	logKQ := logStep(gradQ, q, step, keep)
	logKR := logStep(gradR, rr, step, keep)
	logKG := make([]float64, len(g))
	for k, v := range g {
		logKG[k] = -step*gradG[k] + keep*math.Log(v)
	}

	return logKQ, logKR, logKG
}

// logStep returns −step·grad + keep·log(x) entry-wise (grad is reused).
func logStep(grad, x *matrix.Dense, step, keep float64) *matrix.Dense {
	for i := 0; i < grad.Rows(); i++ {
		gr, xr := grad.RowView(i), x.RowView(i)
		for k, v := range gr {
			gr[k] = -step*v + keep*math.Log(xr[k])
		}
	}

	return grad
}

// expKernel exponentiates a log-kernel shifted by its maximum, flooring the
// exponent at logFloor. The projection is invariant to the shift because
// every factor has a fixed total mass.
func expKernel(logK []float64) {
	best := math.Inf(-1)
	for _, v := range logK {
		if v > best {
			best = v
		}
	}
	for k, v := range logK {
		d := v - best
		if d < logFloor || math.IsNaN(d) {
			d = logFloor
		}
		logK[k] = math.Exp(d)
	}
}

// dykstra projects the kernels onto the low-rank coupling polytope
// (Scetbon, Cuturi & Peyré 2021, Algorithm 2). The kernels are consumed.
func dykstra(logKQ, logKR *matrix.Dense, logKG, a, b []float64, opts Options) (*matrix.Dense, *matrix.Dense, []float64) {
	kq := denseKernel(logKQ)
	kr := denseKernel(logKR)
	expKernel(logKG)
	r := len(logKG)

	gOld := append([]float64(nil), logKG...)
	g := make([]float64, r)
	v1, v2 := ones(r), ones(r)
	qq, qr := ones(r), ones(r)
	qgi, qgp := ones(r), ones(r)
	u1, u2 := make([]float64, len(a)), make([]float64, len(b))

	for it := 0; it < opts.DykstraIters; it++ {
		kv1, _ := matrix.MatVec(kq, v1)
		kv2, _ := matrix.MatVec(kr, v2)
		for i := range u1 {
			u1[i] = a[i] / kv1[i]
		}
		for j := range u2 {
			u2[j] = b[j] / kv2[j]
		}

		for k := range g {
			g[k] = math.Max(minWeight, gOld[k]*qgi[k])
			qgi[k] = gOld[k] * qgi[k] / g[k]
			gOld[k] = g[k]
		}

		ktu1, _ := matrix.VecMat(kq, u1)
		ktu2, _ := matrix.VecMat(kr, u2)
		for k := range g {
			g[k] = math.Cbrt(gOld[k] * qgp[k] * v1[k] * qq[k] * ktu1[k] * v2[k] * qr[k] * ktu2[k])
			nv1, nv2 := g[k]/ktu1[k], g[k]/ktu2[k]
			qq[k] = v1[k] * qq[k] / nv1
			qr[k] = v2[k] * qr[k] / nv2
			v1[k], v2[k] = nv1, nv2
			qgp[k] = gOld[k] * qgp[k] / g[k]
			gOld[k] = g[k]
		}

		if marginalError(kq, u1, v1, a)+marginalError(kr, u2, v2, b) < opts.DykstraTol {
			break
		}
	}

	return scaleKernel(kq, u1, v1), scaleKernel(kr, u2, v2), append([]float64(nil), g...)
}

// denseKernel exponentiates a log-kernel matrix in place.
func denseKernel(logK *matrix.Dense) *matrix.Dense {
	buf := make([]float64, 0, logK.Rows()*logK.Cols())
	for i := 0; i < logK.Rows(); i++ {
		buf = append(buf, logK.RowView(i)...)
	}
	expKernel(buf)
	for i := 0; i < logK.Rows(); i++ {
		copy(logK.RowView(i), buf[i*logK.Cols():(i+1)*logK.Cols()])
	}

	return logK
}

// marginalError returns ‖u ⊙ (K v) − p‖₁.
func marginalError(k *matrix.Dense, u, v, p []float64) float64 {
	kv, _ := matrix.MatVec(k, v)
	var e float64
	for i, x := range kv {
		e += math.Abs(u[i]*x - p[i])
	}

	return e
}

// scaleKernel returns diag(u) K diag(v).
func scaleKernel(k *matrix.Dense, u, v []float64) *matrix.Dense {
	out, _ := matrix.ScaleRows(k, u)
	out, _ = matrix.ScaleCols(out, v)

	return out
}

func ones(n int) []float64 {
	v := make([]float64, n)
	for k := range v {
		v[k] = 1
	}

	return v
}

// FactorDense writes a dense plan P as exact factors. When n ≤ m it uses
// Q = diag(P1), g = P1, R = Pᵀ; otherwise Q = P, g = Pᵀ1, R = diag(Pᵀ1).
// Empty rows (columns) get a unit weight so 1/g stays finite; their factor
// columns are zero and contribute nothing to P.
func FactorDense(p *matrix.Dense) (Factors, error) {
	if err := matrix.ValidateNotNil(p); err != nil {
		return Factors{}, err
	}
	n, m := p.Shape()
	if n <= m {
		rows := matrix.RowSums(p)
		q, _ := matrix.NewDense(n, n)
		g := make([]float64, n)
		for i, s := range rows {
			_ = q.Set(i, i, s)
			g[i] = positiveOr1(s)
		}
		rt, err := matrix.Transpose(p)
		if err != nil {
			return Factors{}, err
		}

		return Factors{Q: q, R: rt, G: g}, nil
	}

	cols := matrix.ColSums(p)
	rm, _ := matrix.NewDense(m, m)
	g := make([]float64, m)
	for j, s := range cols {
		_ = rm.Set(j, j, s)
		g[j] = positiveOr1(s)
	}

	return Factors{Q: p.Clone(), R: rm, G: g}, nil
}

func positiveOr1(v float64) float64 {
	if v > 0 {
		return v
	}

	return 1
}
