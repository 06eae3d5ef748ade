// Package geometry turns point clouds and precomputed costs into the
// immutable cost structures consumed by the transport solvers.
//
// A Geometry knows its shape, its resolved entropic regularisation and the
// factor its raw cost was divided by. Solvers never touch the storage: they
// stream scaled cost rows (ForEachRow) or use the products ApplyCost,
// ApplyCostT and ApplySquaredCost. A PointCloud built WithBatchSize(k) is
// online and recomputes rows in blocks of k; results match the
// materialised path exactly.
//
// Epsilon is an explicit option type. DefaultEpsilon() resolves to
// DefaultRelativeEpsilon × mean(scaled cost) at construction time and is
// never zero.
package geometry
