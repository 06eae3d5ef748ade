// SPDX-License-Identifier: MIT
// Package matrix: symmetric eigen-decomposition (Jacobi) and the symmetric
// square root built on top of it.
//
// Purpose:
//   - Eigen: classical Jacobi rotations with largest-pivot selection.
//   - SqrtSym: A^{1/2} and A^{-1/2} of a symmetric positive semi-definite
//     matrix, used by the Gaussian initializer (Bures/Brenier maps).
//
// Determinism:
//   - Fixed i→j pivot scan and fixed update order produce stable results.

package matrix

import "math"

// Jacobi defaults tuned for small covariance matrices (d ≤ a few hundred).
const (
	DefaultEigenTol     = 1e-12
	DefaultEigenMaxIter = 10000

	// sqrtFloor clamps tiny/negative eigenvalues before taking roots.
	sqrtFloor = 1e-12
)

// Eigen computes eigenvalues and eigenvectors of a symmetric matrix via Jacobi rotations.
// Implementation:
//   - Stage 1: Validate symmetric square input within tol.
//   - Stage 2: Repeatedly pick (p,q) with the largest |A[p,q]| and rotate it to zero.
//   - Stage 3: Return diag(A) and the accumulated rotations Q (columns = eigenvectors).
//
// Errors:
//   - ErrNilMatrix, ErrNonSquare, ErrAsymmetry, ErrEigenFailed (off-diagonal ≥ tol after maxIter).
//
// Complexity:
//   - Time O(maxIter * n^2) (pivot scan dominates), Space O(n^2).
func Eigen(m *Dense, tol float64, maxIter int) ([]float64, *Dense, error) {
	if err := ValidateSymmetric(m, math.Max(tol, DefaultEigenTol)*symmetryScale(m)); err != nil {
		return nil, nil, matrixErrorf(opEigen, err)
	}
	n := m.r
	A := m.Clone()
	Q, err := NewDense(n, n)
	if err != nil {
		return nil, nil, matrixErrorf(opEigen, err)
	}
	var i, j, k int
	for i = 0; i < n; i++ {
		Q.data[i*n+i] = 1.0
	}

	var (
		iter, p, q         int
		maxOff, off        float64
		app, aqq, apq      float64
		theta, t, c, s     float64
		akp, akq, qkp, qkq float64
	)
	converged := n == 1
	scaledTol := tol * math.Max(1, frobenius(A))
	for iter = 0; iter < maxIter && !converged; iter++ {
		// Largest off-diagonal pivot (upper triangle, i→j order).
		maxOff = 0
		for i = 0; i < n; i++ {
			for j = i + 1; j < n; j++ {
				off = math.Abs(A.data[i*n+j])
				if off > maxOff {
					maxOff = off
					p, q = i, j
				}
			}
		}
		if maxOff <= scaledTol {
			converged = true
			break
		}

		app = A.data[p*n+p]
		aqq = A.data[q*n+q]
		apq = A.data[p*n+q]
		theta = (aqq - app) / (2 * apq)
		t = math.Copysign(1.0/(math.Abs(theta)+math.Sqrt(theta*theta+1)), theta)
		c = 1.0 / math.Sqrt(t*t+1)
		s = t * c

		for k = 0; k < n; k++ {
			if k == p || k == q {
				continue
			}
			akp = A.data[k*n+p]
			akq = A.data[k*n+q]
			A.data[k*n+p] = c*akp - s*akq
			A.data[p*n+k] = A.data[k*n+p]
			A.data[k*n+q] = s*akp + c*akq
			A.data[q*n+k] = A.data[k*n+q]
		}
		A.data[p*n+p] = app - t*apq
		A.data[q*n+q] = aqq + t*apq
		A.data[p*n+q] = 0
		A.data[q*n+p] = 0

		for k = 0; k < n; k++ {
			qkp = Q.data[k*n+p]
			qkq = Q.data[k*n+q]
			Q.data[k*n+p] = c*qkp - s*qkq
			Q.data[k*n+q] = s*qkp + c*qkq
		}
	}
	if !converged {
		return nil, nil, matrixErrorf(opEigen, ErrEigenFailed)
	}

	eigs := make([]float64, n)
	for i = 0; i < n; i++ {
		eigs[i] = A.data[i*n+i]
	}

	return eigs, Q, nil
}

// SqrtSym returns (A^{1/2}, A^{-1/2}) for a symmetric PSD matrix A.
// Eigenvalues below sqrtFloor are clamped so the inverse root stays finite.
//
// Errors:
//   - Those of Eigen.
//
// Complexity:
//   - Eigen cost + O(n^3) for the two reconstructions.
func SqrtSym(m *Dense) (*Dense, *Dense, error) {
	eigs, Q, err := Eigen(m, DefaultEigenTol, DefaultEigenMaxIter)
	if err != nil {
		return nil, nil, matrixErrorf(opSqrtSym, err)
	}
	n := len(eigs)
	root := make([]float64, n)
	invRoot := make([]float64, n)
	for i, e := range eigs {
		e = math.Max(e, sqrtFloor)
		root[i] = math.Sqrt(e)
		invRoot[i] = 1 / root[i]
	}

	sq, err := reconstruct(Q, root)
	if err != nil {
		return nil, nil, matrixErrorf(opSqrtSym, err)
	}
	isq, err := reconstruct(Q, invRoot)
	if err != nil {
		return nil, nil, matrixErrorf(opSqrtSym, err)
	}

	return sq, isq, nil
}

// reconstruct returns Q·diag(d)·Qᵀ.
func reconstruct(Q *Dense, d []float64) (*Dense, error) {
	QD, err := ScaleCols(Q, d)
	if err != nil {
		return nil, err
	}
	Qt, err := Transpose(Q)
	if err != nil {
		return nil, err
	}

	return Mul(QD, Qt)
}

// frobenius returns the Frobenius norm of m.
func frobenius(m *Dense) float64 {
	var s float64
	for _, v := range m.data {
		s += v * v
	}

	return math.Sqrt(s)
}

// symmetryScale makes the symmetry guard relative to the matrix magnitude.
func symmetryScale(m *Dense) float64 {
	if m == nil {
		return 1
	}

	return math.Max(1, frobenius(m)) * 1e3
}
