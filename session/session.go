package session

import (
	"fmt"

	"github.com/relfold/relfold/branch"
	"github.com/relfold/relfold/rel"
)

// Session coordinates one mutation cycle: it owns the log, serves
// current-state reads from the root it was opened against, and folds
// each entity's mutation subsequence into that entity's next branch.
//
// Folds are memoized per entity and invalidated by appends targeting
// that entity, so interleaving reads and writes stays cheap while the
// determinism contract holds: refolding the same subsequence over the
// same current state always reproduces the same branch.
//
// A Session must not be shared across goroutines. See the package
// documentation for the ownership model.
type Session struct {
	schemas rel.SchemaSet
	root    Root
	log     Log
	clock   *Clock
	tokens  TokenSource
	token   string

	finalized bool
	memo      map[string]branch.Branch
}

// Option configures a Session at Open time.
type Option func(*Session)

// WithClock sets the logical clock used to stamp mutations. The
// default is a fresh clock starting at 0; pass NewClockAt to resume
// stamping after reloading a serialized log.
func WithClock(c *Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithTokenSource sets the source of the session token. The default
// generates a UUIDv7; tests pass a FixedTokenSource for reproducible
// traces.
func WithTokenSource(src TokenSource) Option {
	return func(s *Session) {
		s.tokens = src
	}
}

// Open starts a new cycle against root. The schema set must come from
// rel.ResolveSchemas so that every through-entity is present; entities
// without a branch in root start from the empty branch.
func Open(schemas rel.SchemaSet, root Root, opts ...Option) *Session {
	s := &Session{
		schemas: schemas,
		root:    root,
		clock:   NewClock(),
		tokens:  UUIDTokenSource{},
		memo:    make(map[string]branch.Branch),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.token = s.tokens.Generate()
	return s
}

// Token returns the session's cycle token.
func (s *Session) Token() string {
	return s.token
}

// Schemas returns the resolved schema set the session was opened with.
func (s *Session) Schemas() rel.SchemaSet {
	return s.schemas
}

// Finalized reports whether the session has been sealed.
func (s *Session) Finalized() bool {
	return s.finalized
}

// AddMutation validates m, stamps it with the session clock, and
// appends it to the log.
//
// Validation is the append-time gate: a rejected mutation never enters
// the log, so folding accepted mutations can only fail on id
// collisions. Appending to a finalized session fails with
// SessionClosedError.
func (s *Session) AddMutation(m rel.Mutation) error {
	if s.finalized {
		return &SessionClosedError{Token: s.token}
	}
	if err := rel.ValidateMutation(s.schemas, m); err != nil {
		return err
	}
	m.Seq = s.clock.Next()
	s.log.Append(m)
	delete(s.memo, m.Entity)
	return nil
}

// Mutations returns the full log in append order.
func (s *Session) Mutations() []rel.Mutation {
	return s.log.All()
}

// MutationsFor returns entity's mutation subsequence in append order.
func (s *Session) MutationsFor(entity string) []rel.Mutation {
	return s.log.ForEntity(entity)
}

// CurrentState returns entity's branch in the root this session was
// opened against: the pre-fold view, unaffected by anything appended
// this cycle. An entity with no stored branch reads as the empty
// branch.
func (s *Session) CurrentState(entity string) (branch.Branch, error) {
	if _, ok := s.schemas.Get(entity); !ok {
		return branch.Branch{}, fmt.Errorf("unknown entity %q", entity)
	}
	b, _ := s.root.Branch(entity)
	return b, nil
}

// NextState folds entity's mutation subsequence over its current
// state and returns the resulting branch. The result is memoized:
// repeated calls without intervening appends return the identical
// value, and refolding after an append reproduces the same branch the
// determinism contract promises.
//
// On a finalized session only next states computed before sealing
// remain readable; anything else fails with SessionClosedError. A
// fold can fail with branch.DuplicateIDError when a create collides
// with an existing id; shape errors cannot occur here because
// AddMutation already rejected malformed records.
func (s *Session) NextState(entity string) (branch.Branch, error) {
	schema, ok := s.schemas.Get(entity)
	if !ok {
		return branch.Branch{}, fmt.Errorf("unknown entity %q", entity)
	}
	if b, ok := s.memo[entity]; ok {
		return b, nil
	}
	if s.finalized {
		return branch.Branch{}, &SessionClosedError{Token: s.token}
	}

	tbl := branch.NewTable(schema)
	b, _ := s.root.Branch(entity)
	for _, m := range s.log.ForEntity(entity) {
		next, err := tbl.ApplyMutation(b, m)
		if err != nil {
			return branch.Branch{}, fmt.Errorf("fold %s (seq %d): %w", entity, m.Seq, err)
		}
		b = next
	}

	s.memo[entity] = b
	return b, nil
}

// Fold computes every known entity's next state and assembles them
// into a new root. Entities never touched this cycle carry their
// current branch through unchanged.
func (s *Session) Fold() (Root, error) {
	branches := make(map[string]branch.Branch, len(s.schemas))
	for _, entity := range s.schemas.Names() {
		b, err := s.NextState(entity)
		if err != nil {
			return Root{}, err
		}
		branches[entity] = b
	}
	return Root{branches: branches}, nil
}

// Finalize folds every entity, seals the session, and returns the new
// root for the next cycle to open against.
//
// A fold failure leaves the session open so the caller can still read
// the log and current states while diagnosing; the session seals only
// on success. Finalizing twice fails with SessionClosedError.
func (s *Session) Finalize() (Root, error) {
	if s.finalized {
		return Root{}, &SessionClosedError{Token: s.token}
	}
	root, err := s.Fold()
	if err != nil {
		return Root{}, err
	}
	s.finalized = true
	return root, nil
}
