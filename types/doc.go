// Package types defines the canonical data model shared across imageflow:
// generation requests and parameters, normalized image references, results,
// history entries, and the structured error type used on every boundary.
//
// Nothing in this package knows about provider wire formats. Providers adapt
// these types to their upstream shapes; the dispatcher and HTTP layer consume
// them unchanged.
package types
