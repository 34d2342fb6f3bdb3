package session

import (
	"errors"
	"fmt"
)

// SessionClosedError reports a write against a finalized session, or a
// read of a next state that was never computed before finalization.
// Either one is a sequencing bug in the hosting code: a finalized
// session belongs to a completed cycle and the caller should have
// opened a new one.
type SessionClosedError struct {
	// Token identifies the finalized session.
	Token string
}

// Error implements the error interface.
func (e *SessionClosedError) Error() string {
	return fmt.Sprintf("session %s is finalized", e.Token)
}

// IsSessionClosed returns true if the error is a SessionClosedError.
// Uses errors.As to handle wrapped errors.
func IsSessionClosed(err error) bool {
	var se *SessionClosedError
	return errors.As(err, &se)
}
