// Package rel provides the foundational data types for relfold: the
// constrained value system, canonical serialization, content hashing,
// schema declarations and their resolution, and mutation records.
//
// This package contains data definitions and pure functions only. Every
// other package imports rel; rel imports nothing from this module. This
// keeps it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - NO float types anywhere - use int64 for numbers
//   - Relational field values are scalar id references, never nested records
//   - Mutations are immutable values; logs append, never rewrite
//   - All JSON tags use snake_case
package rel
