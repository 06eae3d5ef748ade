// Package sinkhorn implements entropic optimal transport with log-domain
// Sinkhorn iterations, balanced or relaxed on either side (tau_a, tau_b).
//
// The solver only talks to a geometry.Geometry: cost rows are streamed, so
// online point clouds never materialise the n×m cost until the final plan
// is built. Non-convergence is reported in Result.Converged.
package sinkhorn
