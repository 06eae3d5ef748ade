// Package initializer selects, validates and builds the starting points of
// the transport solvers.
//
//	target     names                      default
//	linear     default, gaussian, sorting default  (source potential f)
//	low-rank   rank2, random              rank2    (factors Q, R, g)
//	quadratic  default, random            default  (coupling T)
//
// Select reports ErrUnknownInitializer for names no target knows and
// ErrIncompatibleInitializer for names registered under another target.
// Params keys other than the ones an initializer accepts ("seed",
// "iterations") are rejected with ErrUnknownInitializerParam.
package initializer
