// SPDX-License-Identifier: MIT
// Package matrix: canonical linear-algebra kernels over *Dense.
//
// Purpose:
//   - Products (Mul, MulTA, MatVec, VecMat), Transpose, Scale, Hadamard and
//     broadcast scalings (ScaleRows, ScaleCols) used by the transport solvers.
//   - Every kernel allocates a fresh result; operands are never mutated.
//
// Determinism & Performance:
//   - Fixed loop orders (i→k→j for products) over flat row-major buffers.
//   - Zero entries of the left operand are skipped in products; transport plans
//     and indicator batches are frequently sparse.

package matrix

// ZeroSum is the initial accumulator value for dot products.
const ZeroSum = 0.0

// Mul returns the matrix product a × b.
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch (a.Cols != b.Rows).
//
// Complexity:
//   - Time O(r*n*c), Space O(r*c).
func Mul(a, b *Dense) (*Dense, error) {
	if err := ValidateMulCompatible(a, b); err != nil {
		return nil, matrixErrorf(opMul, err)
	}
	res, err := NewDense(a.r, b.c)
	if err != nil {
		return nil, matrixErrorf(opMul, err)
	}

	var (
		i, k             int
		av               float64
		rowA, rowB, rowR []float64
	)
	for i = 0; i < a.r; i++ {
		rowA = a.data[i*a.c : (i+1)*a.c]
		rowR = res.data[i*res.c : (i+1)*res.c]
		for k = 0; k < a.c; k++ {
			av = rowA[k]
			if av == 0 {
				continue // skip zero for performance
			}
			rowB = b.data[k*b.c : (k+1)*b.c]
			for j, bv := range rowB {
				rowR[j] += av * bv
			}
		}
	}

	return res, nil
}

// MulTA returns aᵀ × b without materialising aᵀ.
//
// Errors:
//   - ErrNilMatrix, ErrDimensionMismatch (a.Rows != b.Rows).
//
// Complexity:
//   - Time O(n*r*c), Space O(r*c) where a is n×r and b is n×c.
func MulTA(a, b *Dense) (*Dense, error) {
	if a == nil || b == nil {
		return nil, matrixErrorf(opMulTA, ErrNilMatrix)
	}
	if a.r != b.r {
		return nil, matrixErrorf(opMulTA, ErrDimensionMismatch)
	}
	res, err := NewDense(a.c, b.c)
	if err != nil {
		return nil, matrixErrorf(opMulTA, err)
	}

	var (
		i, k       int
		av         float64
		rowA, rowB []float64
	)
	// Accumulate outer products row by row: res += a[i,:]ᵀ b[i,:].
	for i = 0; i < a.r; i++ {
		rowA = a.data[i*a.c : (i+1)*a.c]
		rowB = b.data[i*b.c : (i+1)*b.c]
		for k = 0; k < a.c; k++ {
			av = rowA[k]
			if av == 0 {
				continue
			}
			rowR := res.data[k*res.c : (k+1)*res.c]
			for j, bv := range rowB {
				rowR[j] += av * bv
			}
		}
	}

	return res, nil
}

// Transpose returns a new c×r matrix holding mᵀ.
// Complexity: O(r*c).
func Transpose(m *Dense) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opTranspose, err)
	}
	res := &Dense{r: m.c, c: m.r, data: make([]float64, len(m.data))}
	var i, j int
	for i = 0; i < m.r; i++ {
		for j = 0; j < m.c; j++ {
			res.data[j*m.r+i] = m.data[i*m.c+j]
		}
	}

	return res, nil
}

// Scale returns alpha*m.
// Complexity: O(r*c).
func Scale(m *Dense, alpha float64) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opScale, err)
	}
	if isNonFinite(alpha) {
		return nil, matrixErrorf(opScale, ErrNaNInf)
	}
	res := m.Clone()
	for k := range res.data {
		res.data[k] *= alpha
	}

	return res, nil
}

// Hadamard returns the element-wise product a ⊙ b.
// Complexity: O(r*c).
func Hadamard(a, b *Dense) (*Dense, error) {
	if err := ValidateSameShape(a, b); err != nil {
		return nil, matrixErrorf(opHadamard, err)
	}
	res := a.Clone()
	for k, bv := range b.data {
		res.data[k] *= bv
	}

	return res, nil
}

// MatVec returns y = m·x (len(x) == Cols, len(y) == Rows).
// Complexity: O(r*c).
func MatVec(m *Dense, x []float64) ([]float64, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opMatVec, err)
	}
	if err := ValidateVecLen(x, m.c); err != nil {
		return nil, matrixErrorf(opMatVec, err)
	}
	y := make([]float64, m.r)
	var (
		i   int
		acc float64
	)
	for i = 0; i < m.r; i++ {
		acc = ZeroSum
		for j, v := range m.data[i*m.c : (i+1)*m.c] {
			acc += v * x[j]
		}
		y[i] = acc
	}

	return y, nil
}

// VecMat returns y = mᵀ·x (len(x) == Rows, len(y) == Cols).
// Complexity: O(r*c).
func VecMat(m *Dense, x []float64) ([]float64, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opVecMat, err)
	}
	if err := ValidateVecLen(x, m.r); err != nil {
		return nil, matrixErrorf(opVecMat, err)
	}
	y := make([]float64, m.c)
	var (
		i  int
		xv float64
	)
	for i = 0; i < m.r; i++ {
		xv = x[i]
		if xv == 0 {
			continue
		}
		for j, v := range m.data[i*m.c : (i+1)*m.c] {
			y[j] += v * xv
		}
	}

	return y, nil
}

// ScaleRows returns diag(s)·m (row i multiplied by s[i]).
// Complexity: O(r*c).
func ScaleRows(m *Dense, s []float64) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opScaleRows, err)
	}
	if err := ValidateVecLen(s, m.r); err != nil {
		return nil, matrixErrorf(opScaleRows, err)
	}
	res := m.Clone()
	var i, base int
	for i = 0; i < res.r; i++ {
		base = i * res.c
		for j := 0; j < res.c; j++ {
			res.data[base+j] *= s[i]
		}
	}

	return res, nil
}

// ScaleCols returns m·diag(s) (column j multiplied by s[j]).
// Complexity: O(r*c).
func ScaleCols(m *Dense, s []float64) (*Dense, error) {
	if err := ValidateNotNil(m); err != nil {
		return nil, matrixErrorf(opScaleCols, err)
	}
	if err := ValidateVecLen(s, m.c); err != nil {
		return nil, matrixErrorf(opScaleCols, err)
	}
	res := m.Clone()
	var i, base int
	for i = 0; i < res.r; i++ {
		base = i * res.c
		for j := 0; j < res.c; j++ {
			res.data[base+j] *= s[j]
		}
	}

	return res, nil
}
