package sinkhorn

import (
	"fmt"
	"math"

	"github.com/katalvlaran/lvot/geometry"
	"github.com/katalvlaran/lvot/matrix"
)

// Solve runs log-domain Sinkhorn on geom with marginals a (length n) and
// b (length m). fInit seeds the source potential; nil means zeros.
//
// Implementation:
//   - Stage 1: g_j ← τ_b·(ε log b_j − ε LSE_i((f_i − C_ij)/ε)), the column
//     log-sum-exp accumulated while streaming cost rows.
//   - Stage 2: f_i ← τ_a·(ε log a_i − ε LSE_j((g_j − C_ij)/ε)).
//   - Stage 3: every InnerIterations updates, measure the error: the L1
//     column-marginal error when τ_b = 1, otherwise the largest change of
//     g; plus the largest change of f when τ_a < 1. Stop below Threshold.
//   - Stage 4: materialise P and its cost ⟨C, P⟩.
//
// Zero-mass entries of a or b get −Inf potentials and carry no mass.
// Non-convergence is reported through Result.Converged, never as an error.
//
// Errors:
//   - ErrShapeMismatch, ErrInvalidOptions.
//
// Complexity:
//   - Time O(iterations·n·m) cost evaluations, Space O(n·m) for the plan.
func Solve(geom geometry.Geometry, a, b, fInit []float64, opts Options) (*Result, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	n, m := geom.Shape()
	if len(a) != n || len(b) != m {
		return nil, fmt.Errorf("marginals %d/%d for %dx%d geometry: %w", len(a), len(b), n, m, ErrShapeMismatch)
	}
	if fInit != nil && len(fInit) != n {
		return nil, fmt.Errorf("initial potential length %d, want %d: %w", len(fInit), n, ErrShapeMismatch)
	}

	ws := opts.Workspace
	if !ws.Fits(n, m) {
		ws = NewWorkspace(n, m)
	}
	eps := geom.Epsilon()
	for i, v := range a {
		ws.logA[i] = math.Log(v)
	}
	for j, v := range b {
		ws.logB[j] = math.Log(v)
	}
	if fInit != nil {
		copy(ws.f, fInit)
	} else {
		zero(ws.f)
	}
	zero(ws.g)

	res := &Result{}
	var it int
	for it = 1; it <= opts.MaxIterations; it++ {
		copy(ws.prevF, ws.f)
		copy(ws.prevG, ws.g)
		updateG(geom, ws, eps, opts.TauB)
		updateF(geom, ws, eps, opts.TauA)

		if it%opts.InnerIterations != 0 {
			continue
		}
		e := measureError(geom, ws, b, eps, opts)
		res.Errors = append(res.Errors, e)
		if opts.Logger != nil {
			opts.Logger.Debug("sinkhorn check", "iteration", it, "error", e)
		}
		if math.IsNaN(e) {
			break
		}
		if e < opts.Threshold {
			res.Converged = true
			break
		}
	}
	if it > opts.MaxIterations {
		it = opts.MaxIterations
	}
	res.Iterations = it

	res.F = append([]float64(nil), ws.f...)
	res.G = append([]float64(nil), ws.g...)
	res.Plan, res.Cost = materialise(geom, res.F, res.G, eps)

	return res, nil
}

// updateG performs the target-side update with a streaming column LSE.
func updateG(geom geometry.Geometry, ws *Workspace, eps, tau float64) {
	invEps := 1 / eps
	for j := range ws.colMax {
		ws.colMax[j] = math.Inf(-1)
		ws.colSum[j] = 0
	}
	geom.ForEachRow(func(i int, row []float64) {
		fi := ws.f[i]
		if math.IsInf(fi, -1) {
			return
		}
		for j, c := range row {
			v := (fi - c) * invEps
			if v > ws.colMax[j] {
				ws.colSum[j] = ws.colSum[j]*math.Exp(ws.colMax[j]-v) + 1
				ws.colMax[j] = v
			} else {
				ws.colSum[j] += math.Exp(v - ws.colMax[j])
			}
		}
	})
	for j := range ws.g {
		if math.IsInf(ws.logB[j], -1) || math.IsInf(ws.colMax[j], -1) {
			ws.g[j] = math.Inf(-1)
			continue
		}
		lse := ws.colMax[j] + math.Log(ws.colSum[j])
		ws.g[j] = tau * (eps*ws.logB[j] - eps*lse)
	}
}

// updateF performs the source-side update row by row.
func updateF(geom geometry.Geometry, ws *Workspace, eps, tau float64) {
	invEps := 1 / eps
	geom.ForEachRow(func(i int, row []float64) {
		if math.IsInf(ws.logA[i], -1) {
			ws.f[i] = math.Inf(-1)
			return
		}
		for j, c := range row {
			ws.row[j] = (ws.g[j] - c) * invEps
		}
		lse := matrix.LogSumExp(ws.row)
		if math.IsInf(lse, -1) {
			ws.f[i] = math.Inf(-1)
			return
		}
		ws.f[i] = tau * (eps*ws.logA[i] - eps*lse)
	})
}

// measureError returns the convergence error after a (g, f) update.
func measureError(geom geometry.Geometry, ws *Workspace, b []float64, eps float64, opts Options) float64 {
	var e float64
	if opts.TauB == 1 {
		invEps := 1 / eps
		sums := ws.colSum
		zero(sums)
		geom.ForEachRow(func(i int, row []float64) {
			fi := ws.f[i]
			if math.IsInf(fi, -1) {
				return
			}
			for j, c := range row {
				sums[j] += math.Exp((fi + ws.g[j] - c) * invEps)
			}
		})
		for j, s := range sums {
			e += math.Abs(s - b[j])
		}
	} else {
		e = maxChange(ws.g, ws.prevG)
	}
	if opts.TauA < 1 {
		e += maxChange(ws.f, ws.prevF)
	}

	return e
}

// materialise builds P and ⟨C, P⟩.
func materialise(geom geometry.Geometry, f, g []float64, eps float64) (*matrix.Dense, float64) {
	n, m := geom.Shape()
	plan, _ := matrix.NewDense(n, m)
	invEps := 1 / eps
	var cost float64
	geom.ForEachRow(func(i int, row []float64) {
		dst := plan.RowView(i)
		if math.IsInf(f[i], -1) {
			return
		}
		for j, c := range row {
			p := math.Exp((f[i] + g[j] - c) * invEps)
			dst[j] = p
			cost += c * p
		}
	})

	return plan, cost
}

// maxChange returns max_k |cur_k − prev_k|, treating equal infinities as 0.
func maxChange(cur, prev []float64) float64 {
	var best float64
	for k, v := range cur {
		if v == prev[k] {
			continue
		}
		if d := math.Abs(v - prev[k]); d > best {
			best = d
		}
	}

	return best
}

func zero(v []float64) {
	for k := range v {
		v[k] = 0
	}
}
