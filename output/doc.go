// Package output holds the read-only results of optimal-transport solves.
//
// Every solver result implements Output: the transport matrix, its
// marginals, the objective and the convergence trace, plus Push and Pull to
// propagate per-cell data along the coupling. A plan is stored either dense
// (n×m) or factored as Q diag(1/g) Rᵀ; factored plans propagate through the
// factors and only materialise the dense matrix on request.
//
// Push(z) computes Pᵀz (source → target) and Pull(z) computes P z
// (target → source). With scaleByMarginals the input rows are first divided
// by the source (push) or target (pull) marginals, and each output column is
// rescaled to the mass of the input column, so a distribution pushed forward
// stays a distribution.
//
// Outputs copy everything they receive and return copies of everything they
// hold; they are safe for concurrent readers.
package output
