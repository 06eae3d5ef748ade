// Package gromov implements entropic Gromov-Wasserstein and its fused
// variant with the square loss.
//
// Each outer iteration linearises the quadratic objective at the current
// coupling and solves the resulting linear problem with package sinkhorn
// (full rank) or package lowrank (factored couplings). The fused problem
// adds FusedPenalty·Cxy to every linearised cost, so a large penalty makes
// the coupling follow the point-to-point cost and a small one the
// intra-domain structure.
package gromov
