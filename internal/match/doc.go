// Package match answers "which pressure does this mixture equilibrate at"
// against stored records.
//
// Engine ranks records by closeness to a query composition and
// temperature. Resolver drives progressive query refinement: given the
// components a caller has chosen so far, it reports which further
// components still have data and what value ranges exist.
//
// Both are stateless and safe for concurrent use; every call reads the
// store through single aggregate or filtered queries.
package match
