// Package testutil provides deterministic stand-ins for the session
// package's pluggable sources, shared by the harness and CLI tests.
package testutil

// ConstantTokenSource generates the same session token every time.
//
// This enables deterministic scenario execution and golden snapshot
// comparison: the same scenario with the same ConstantTokenSource
// produces byte-identical reports.
//
// Unlike session.FixedTokenSource which returns tokens in sequence and
// panics on exhaustion, this source always returns the same token, so
// a scenario may open any number of cycles with it.
//
// Thread-safety: ConstantTokenSource is stateless and safe for
// concurrent use.
type ConstantTokenSource struct {
	token string
}

// NewConstantTokenSource creates a new constant token source.
//
// The token is typically set in the scenario YAML:
//
//	session_token: "scenario-00000000-0000-0000-0000-000000000001"
//
// If token is empty, Generate() returns "test-session-default".
func NewConstantTokenSource(token string) *ConstantTokenSource {
	if token == "" {
		token = "test-session-default"
	}
	return &ConstantTokenSource{token: token}
}

// Generate returns the constant token.
//
// Implements session.TokenSource.
func (g *ConstantTokenSource) Generate() string {
	return g.token
}
