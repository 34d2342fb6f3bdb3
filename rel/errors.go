package rel

import (
	"errors"
	"fmt"
)

// SchemaError reports a malformed or colliding schema declaration.
// Schema errors are fatal at resolution time and must not be silently
// recovered: an engine running on a half-resolved schema set would
// corrupt every downstream invariant.
type SchemaError struct {
	Entity  string // entity being resolved
	Field   string // offending field, empty for entity-level errors
	Message string
}

func (e *SchemaError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("schema %s: field %s: %s", e.Entity, e.Field, e.Message)
	}
	return fmt.Sprintf("schema %s: %s", e.Entity, e.Message)
}

// IsSchemaError checks if an error is a SchemaError.
func IsSchemaError(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}

// InvalidMutationError reports a mutation that cannot be accepted into a
// log: it targets an unknown entity or carries a structurally invalid
// record. Raised at append time, never deferred to fold time - once a
// mutation is in the log it is structurally valid by construction.
type InvalidMutationError struct {
	Entity  string // target entity of the rejected mutation
	Op      Op     // mutation operation
	Message string
}

func (e *InvalidMutationError) Error() string {
	return fmt.Sprintf("invalid %s mutation for %s: %s", e.Op, e.Entity, e.Message)
}

// IsInvalidMutation checks if an error is an InvalidMutationError.
func IsInvalidMutation(err error) bool {
	var ime *InvalidMutationError
	return errors.As(err, &ime)
}
