package session

import (
	"sync"

	"github.com/google/uuid"
)

// TokenSource generates session tokens. A token names one cycle for
// correlation in logs and test traces; it carries no semantics inside
// the engine itself.
type TokenSource interface {
	Generate() string
}

// UUIDTokenSource generates time-sortable UUIDv7 session tokens.
//
// UUIDv7 embeds a timestamp in the most significant bits, so tokens
// sort by session creation time, which helps when reading interleaved
// cycle logs.
//
// Thread-safety: UUIDTokenSource is stateless and safe for concurrent
// use.
type UUIDTokenSource struct{}

// Generate creates a new UUIDv7 and returns it as a hyphenated string.
//
// Panics if UUID generation fails (should never happen in practice).
func (UUIDTokenSource) Generate() string {
	return uuid.Must(uuid.NewV7()).String()
}

// FixedTokenSource returns predetermined tokens for deterministic
// runs. Tests and the scenario harness provide a known sequence and
// compare exact output.
//
// Thread-safety: safe for concurrent use via internal mutex.
type FixedTokenSource struct {
	mu     sync.Mutex
	tokens []string
	idx    int
}

// NewFixedTokenSource creates a source that returns tokens in order.
//
// Example:
//
//	src := NewFixedTokenSource("cycle-1", "cycle-2")
//	src.Generate() // "cycle-1"
//	src.Generate() // "cycle-2"
//	src.Generate() // panic: all tokens exhausted
func NewFixedTokenSource(tokens ...string) *FixedTokenSource {
	return &FixedTokenSource{tokens: tokens}
}

// Generate returns the next predetermined token.
//
// Panics once all tokens have been consumed. This fail-fast behavior
// catches test misconfiguration (more sessions opened than expected).
func (g *FixedTokenSource) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.idx >= len(g.tokens) {
		panic("FixedTokenSource: all tokens exhausted")
	}
	token := g.tokens[g.idx]
	g.idx++
	return token
}
