// Package lvot is the optimal-transport solver core behind single-cell
// trajectory, alignment and mapping problems.
//
// 🚀 What is lvot?
//
//	A pure-Go library that couples two cell populations and lets callers
//	move distributions across the coupling:
//		• Linear OT: entropic Sinkhorn, balanced or unbalanced
//		• Quadratic OT: Gromov-Wasserstein between unaligned spaces
//		• Fused OT: Gromov-Wasserstein plus a shared-feature term weighted by alpha
//		• Low rank: every family in factored form for large populations
//		• Push/pull: propagate batches forward and backward through the plan
//
// Under the hood, everything is organized in subpackages:
//
//	matrix/      dense row-major storage, kernels, Jacobi eigen solver
//	geometry/    point clouds and cost matrices, epsilon and cost scaling
//	sinkhorn/    full-rank log-domain Sinkhorn
//	lowrank/     factored Sinkhorn (mirror descent + Dykstra)
//	gromov/      entropic (fused) Gromov-Wasserstein
//	initializer/ named initializers and their registry
//	output/      dense and factored solution views with push/pull
//	solver/      the Linear, Quadratic and Fused solver variants
//	analysis/    cell-transition tables and feature translation
//	config/      TOML/YAML solver settings
//
// ⚡ Quick start
//
//	sv, err := solver.NewLinear(solver.WithRank(solver.LowRank(10)))
//	if err != nil {
//		return err
//	}
//	out, err := sv.Solve(solver.Problem{X: x, Y: y})
//	if err != nil {
//		return err
//	}
//	pushed, err := out.Push(z, true)
//
// The lvot command (cmd/lvot) runs the solvers on synthetic clouds:
//
//	go install github.com/katalvlaran/lvot/cmd/lvot@latest
//	lvot solve --family fused --rank 8
package lvot
