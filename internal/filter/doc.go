// Package filter defines the predicate IR used to select equilibrium records.
//
// Predicates are a sealed set of value types: the marker-method pattern
// prevents external implementations and lets backends switch exhaustively.
// The SQL backend lives in internal/filtersql; Eval is the in-process
// evaluator the scenario harness uses for count assertions over records
// it already holds in memory.
//
// Predicate types:
//   - Between: min <= field <= max
//   - AtMost: field <= max
//   - Positive: field > 0
//   - And: conjunction (empty = always true)
//
// Fields are restricted to the seven fraction columns plus temperature and
// pressure. All comparisons are inclusive except Positive.
package filter
