// SPDX-License-Identifier: MIT
// Package: matrix
//
// Purpose:
//   - Small vector/element-wise helpers shared by the solver kernels:
//     numerically stable log-sum-exp, tolerant comparisons, L1 distances.
//   - Keep tight loops centralised so every solver uses the same numerics.
//
// AI-Hints:
//   - LogSumExp handles -Inf entries (zero mass) and returns -Inf for an
//     all -Inf input instead of NaN.

package matrix

import "math"

// LogSumExp returns log(Σ exp(v_k)) computed stably around max(v).
// An empty or all -Inf input yields -Inf.
// Complexity: O(n).
func LogSumExp(v []float64) float64 {
	best := math.Inf(-1)
	for _, x := range v {
		if x > best {
			best = x
		}
	}
	if math.IsInf(best, -1) {
		return best
	}
	var s float64
	for _, x := range v {
		s += math.Exp(x - best)
	}

	return best + math.Log(s)
}

// AllClose reports |a-b| <= atol + rtol*|b| for every entry (numpy semantics).
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch.
func AllClose(a, b *Dense, rtol, atol float64) (bool, error) {
	if err := ValidateSameShape(a, b); err != nil {
		return false, matrixErrorf(opAllClose, err)
	}
	for k, av := range a.data {
		if math.Abs(av-b.data[k]) > atol+rtol*math.Abs(b.data[k]) {
			return false, nil
		}
	}

	return true, nil
}

// L1Distance returns Σ|a_k - b_k| for equally shaped matrices.
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch.
func L1Distance(a, b *Dense) (float64, error) {
	if err := ValidateSameShape(a, b); err != nil {
		return 0, err
	}
	var s float64
	for k, av := range a.data {
		s += math.Abs(av - b.data[k])
	}

	return s, nil
}

// Dot returns ⟨a, b⟩ (Frobenius inner product) for equally shaped matrices.
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch.
func Dot(a, b *Dense) (float64, error) {
	if err := ValidateSameShape(a, b); err != nil {
		return 0, err
	}
	var s float64
	for k, av := range a.data {
		s += av * b.data[k]
	}

	return s, nil
}

// SupNorm returns max |m[i,j]|.
func SupNorm(m *Dense) float64 {
	var best float64
	for _, v := range m.data {
		if a := math.Abs(v); a > best {
			best = a
		}
	}

	return best
}

// VecSum returns Σ v_k.
func VecSum(v []float64) float64 {
	var s float64
	for _, x := range v {
		s += x
	}

	return s
}
