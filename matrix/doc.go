// Package matrix offers the dense numeric substrate of lvot.
//
// The matrix package provides:
//
//   - Dense, a row-major float64 matrix with safe accessors and strict
//     finite-value ingestion (NewDense, NewDenseFrom, NewFromRows, NewColumn).
//   - Kernels used by the transport solvers: Mul, MulTA, MatVec, VecMat,
//     Transpose, Scale, Hadamard, ScaleRows, ScaleCols.
//   - Reductions for marginals and cost scaling: Sum, RowSums, ColSums, Mean,
//     Max, Median.
//   - Column statistics and a Jacobi eigen solver (Covariance, Eigen,
//     SqrtSym) for Gaussian initialisation.
//   - Stable LogSumExp and tolerant comparisons (AllClose).
//
// Every kernel allocates its result and never mutates its operands; all
// user-triggered failures are reported through the sentinels in errors.go.
//
// See the examples in this package for usage patterns.
package matrix
