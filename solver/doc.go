// Package solver is the entry point of lvot: it turns point clouds or cost
// matrices into optimal-transport problems, runs the matching backend and
// wraps the result as an output.Output.
//
// Three variants share one interface, tagged by Family:
//
//   - Linear: entropic OT between X and Y (sinkhorn), or low-rank OT
//     (lowrank) when a rank is configured.
//   - Quadratic: Gromov-Wasserstein between the intra-domain costs of X and
//     Y, which may live in spaces of different dimension.
//   - Fused: Gromov-Wasserstein plus a linear term on joint features XX, YY,
//     weighted by FusedPenalty(alpha) = (1 − alpha) / alpha.
//
// Configuration is an immutable Config built from functional Options; the
// same Options can be passed to Solve to override a single call:
//
//	sv, _ := solver.NewLinear(solver.WithEpsilon(geometry.FixedEpsilon(0.1)))
//	out, _ := sv.Solve(solver.Problem{X: x, Y: y}, solver.WithRank(solver.LowRank(5)))
//	moved, _ := out.Push(features, true)
//
// Every configuration error (alpha, rank, tau, scale_cost, marginals,
// initializer) is returned before numerical work starts. Non-convergence is
// not an error: inspect Output.Converged.
package solver
