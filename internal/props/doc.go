// Package props provides the constrained value types used for configuration
// object properties, custom variables and import rows.
//
// This package imports nothing internal. Every other internal package that
// handles object state builds on it.
//
// Key design constraints:
//   - NO float types (use Int); floats break deterministic checksums
//   - Null is a first-class value, rendered as JSON null, never as ""
//   - Dict iteration must go through SortedKeys for deterministic output
//   - MarshalCanonical is the only serialization used for checksums
package props
