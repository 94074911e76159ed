// Package gas provides the domain types shared by the hydrate packages.
//
// This package contains type definitions and small pure helpers only. Every
// other internal package imports gas; gas imports nothing internal.
//
// Key design constraints:
//   - Components are a closed set of seven, always iterated in canonical order
//   - A Composition is a fixed array, never a map, so ordering is deterministic
//   - Signature buckets use SignatureEpsilon / TemperatureEpsilon, never a
//     caller-supplied query tolerance
//   - All JSON tags use snake_case
package gas
