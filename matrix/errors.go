// SPDX-License-Identifier: MIT
// Package matrix: sentinel error set.
// This file defines ONLY package-level sentinel errors used across the matrix
// package. All kernels return these sentinels (optionally wrapped with an
// operation tag via matrixErrorf) and tests check them via errors.Is.
// No kernel panics on user-triggered error conditions.

package matrix

import (
	"errors"
	"fmt"
)

// NOTE ON NAMING & PREFIXING
// --------------------------
// Every message is prefixed with "matrix: ..." for consistency and easy grepping.
// Context is attached at the detection site with matrixErrorf("Op", ErrX);
// callers still match with errors.Is.
//
// ERROR PRIORITY (enforced in tests):
// nil -> shape/dimensions -> index -> NaN/Inf -> structural (symmetry) -> convergence.

var (
	// ErrNilMatrix indicates that a nil *Dense (receiver or argument) was used.
	ErrNilMatrix = errors.New("matrix: nil matrix")

	// ErrInvalidDimensions indicates that requested matrix dimensions are non-positive.
	ErrInvalidDimensions = errors.New("matrix: dimensions must be > 0")

	// ErrDimensionMismatch indicates incompatible dimensions between operands,
	// e.g. Mul where a.Cols != b.Rows, or a vector of the wrong length.
	ErrDimensionMismatch = errors.New("matrix: dimension mismatch")

	// ErrOutOfRange indicates that an index (row or column) is outside valid bounds.
	ErrOutOfRange = errors.New("matrix: index out of range")

	// ErrNonSquare signals that a square matrix was required but the input wasn't.
	ErrNonSquare = errors.New("matrix: matrix is not square")

	// ErrAsymmetry signals that a matrix expected to be symmetric violated symmetry
	// within the supplied tolerance.
	ErrAsymmetry = errors.New("matrix: matrix is not symmetric within tolerance")

	// ErrNaNInf signals a NaN or ±Inf value where finite values are required.
	ErrNaNInf = errors.New("matrix: NaN or Inf encountered")

	// ErrEmpty indicates an empty vector or an empty row set on ingestion.
	ErrEmpty = errors.New("matrix: empty input")

	// ErrEigenFailed indicates that the Jacobi eigen routine failed to converge
	// under the given tolerance/iterations.
	ErrEigenFailed = errors.New("matrix: eigen decomposition failed")
)

// Operation tags for uniform error wrapping (no magic strings at call sites).
const (
	opNewDense   = "NewDense"
	opFromRows   = "NewFromRows"
	opMul        = "Mul"
	opMulTA      = "MulTA"
	opTranspose  = "Transpose"
	opScale      = "Scale"
	opHadamard   = "Hadamard"
	opMatVec     = "MatVec"
	opVecMat     = "VecMat"
	opScaleRows  = "ScaleRows"
	opScaleCols  = "ScaleCols"
	opEigen      = "Eigen"
	opSqrtSym    = "SqrtSym"
	opCovariance = "Covariance"
	opMedian     = "Median"
	opAllClose   = "AllClose"
)

// matrixErrorf wraps err with an operation tag, preserving the sentinel via %w.
// Use only when err != nil.
func matrixErrorf(tag string, err error) error {
	return fmt.Errorf("%s: %w", tag, err)
}
