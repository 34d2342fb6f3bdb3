package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relfold/relfold/session"
)

var _ session.TokenSource = (*ConstantTokenSource)(nil)

func TestConstantTokenSource_ReturnsSameToken(t *testing.T) {
	gen := NewConstantTokenSource("scenario-123")

	// Multiple calls return same token
	assert.Equal(t, "scenario-123", gen.Generate())
	assert.Equal(t, "scenario-123", gen.Generate())
	assert.Equal(t, "scenario-123", gen.Generate())
}

func TestConstantTokenSource_EmptyTokenDefault(t *testing.T) {
	gen := NewConstantTokenSource("")

	// Empty token uses default
	assert.Equal(t, "test-session-default", gen.Generate())
}

func TestConstantTokenSource_OpensEveryCycle(t *testing.T) {
	gen := NewConstantTokenSource("cycle-token")

	// Unlike a sequence source, a constant source never exhausts.
	for i := 0; i < 5; i++ {
		assert.Equal(t, "cycle-token", gen.Generate())
	}
}
