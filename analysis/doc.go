// Package analysis derives cell-level summaries from a transport plan:
// group-to-group transition tables and barycentric translation of features
// between the two sides of a coupling. It only uses the output.Output
// interface, so dense and factored plans are handled alike.
package analysis
