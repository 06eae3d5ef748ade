// SPDX-License-Identifier: MIT
// Package: matrix
//
// Purpose:
//   - Reductions used by marginals and cost scaling: Sum, RowSums, ColSums,
//     Mean, Max, Median.
//   - Column statistics used by the Gaussian initializer: ColumnMeans, Covariance.
//
// Determinism & Performance:
//   - Fixed i→j traversal for all explicit loops over the flat buffer.
//   - Median copies the data once and sorts it; no in-place mutation of inputs.

package matrix

import "sort"

// Sum returns Σ m[i,j].
// Complexity: O(r*c).
func Sum(m *Dense) float64 {
	var s float64
	for _, v := range m.data {
		s += v
	}

	return s
}

// RowSums returns the vector of per-row sums (len = Rows).
// Complexity: O(r*c).
func RowSums(m *Dense) []float64 {
	out := make([]float64, m.r)
	var i, base int
	for i = 0; i < m.r; i++ {
		base = i * m.c
		for j := 0; j < m.c; j++ {
			out[i] += m.data[base+j]
		}
	}

	return out
}

// ColSums returns the vector of per-column sums (len = Cols).
// Complexity: O(r*c).
func ColSums(m *Dense) []float64 {
	out := make([]float64, m.c)
	var i, base int
	for i = 0; i < m.r; i++ {
		base = i * m.c
		for j := 0; j < m.c; j++ {
			out[j] += m.data[base+j]
		}
	}

	return out
}

// Mean returns the arithmetic mean of all entries.
func Mean(m *Dense) float64 { return Sum(m) / float64(len(m.data)) }

// Max returns the largest entry.
func Max(m *Dense) float64 {
	best := m.data[0]
	for _, v := range m.data[1:] {
		if v > best {
			best = v
		}
	}

	return best
}

// Median returns the median of all entries (mean of the two middle values
// for an even count).
// Complexity: O(rc log rc) time, O(rc) space.
func Median(m *Dense) float64 { return MedianOf(m.data) }

// MedianOf returns the median of v without mutating it. v must be non-empty.
func MedianOf(v []float64) float64 {
	buf := make([]float64, len(v))
	copy(buf, v)
	sort.Float64s(buf)
	mid := len(buf) / 2
	if len(buf)%2 == 1 {
		return buf[mid]
	}

	return 0.5 * (buf[mid-1] + buf[mid])
}

// ColumnMeans returns the per-column means of X (len = Cols).
func ColumnMeans(X *Dense) []float64 {
	means := ColSums(X)
	invR := 1.0 / float64(X.r)
	for j := range means {
		means[j] *= invR
	}

	return means
}

// Covariance returns the sample covariance of the columns of X
// ((Xcᵀ Xc)/(r-1)) together with the column means.
// A single-row X yields the zero matrix (no spread).
//
// Errors:
//   - ErrNilMatrix.
//
// Complexity:
//   - Time O(r*c^2), Space O(r*c + c^2).
func Covariance(X *Dense) (*Dense, []float64, error) {
	if err := ValidateNotNil(X); err != nil {
		return nil, nil, matrixErrorf(opCovariance, err)
	}
	means := ColumnMeans(X)
	Xc := X.Clone()
	var i, base int
	for i = 0; i < Xc.r; i++ {
		base = i * Xc.c
		for j := 0; j < Xc.c; j++ {
			Xc.data[base+j] -= means[j]
		}
	}
	cov, err := MulTA(Xc, Xc)
	if err != nil {
		return nil, nil, matrixErrorf(opCovariance, err)
	}
	if X.r > 1 {
		inv := 1.0 / float64(X.r-1)
		for k := range cov.data {
			cov.data[k] *= inv
		}
	}

	return cov, means, nil
}
