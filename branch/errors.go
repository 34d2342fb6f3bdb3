package branch

import (
	"errors"
	"fmt"

	"github.com/relfold/relfold/rel"
)

// DuplicateIDError reports an insert whose id already exists in the
// branch. Surfaced to the caller and recoverable: choose a different id
// (or none, and let the branch assign one).
type DuplicateIDError struct {
	Entity string    // entity whose branch rejected the insert
	ID     rel.Value // colliding id value
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("duplicate id %v in branch %s", e.ID, e.Entity)
}

// IsDuplicateID checks if an error is a DuplicateIDError.
func IsDuplicateID(err error) bool {
	var de *DuplicateIDError
	return errors.As(err, &de)
}
