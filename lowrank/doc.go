// Package lowrank implements low-rank Sinkhorn: the coupling is kept as
// P = Q diag(1/g) Rᵀ with Q (n×r), R (m×r), g (r), optimised by mirror
// descent with a Dykstra projection onto the coupling constraints
// (Scetbon, Cuturi & Peyré, "Low-Rank Sinkhorn Factorization", 2021).
//
// FactorDense writes any dense plan as exact factors of rank min(n, m).
package lowrank
