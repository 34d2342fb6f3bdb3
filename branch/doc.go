// Package branch implements the branch algebra: pure functions that
// insert, update, and delete records in one entity's normalized table.
//
// A Branch is an immutable snapshot value. Every write operation
// returns a new Branch and never modifies its input, so distinct
// snapshots can be shared freely across goroutines. The ordering
// contract is carried by the id sequence: inserts append, deletes
// remove, and a delete followed by a re-insert places the id at the
// end, never at its prior position.
//
// Absence is normal here, not exceptional: updating or deleting an id
// that is not present is a silent no-op, and lookups report misses via
// a comma-ok boolean. The only error a write can produce is an id
// collision on insert (DuplicateIDError) or a structurally invalid id
// (rel.InvalidMutationError) when the algebra is driven directly
// without append-time validation.
package branch
