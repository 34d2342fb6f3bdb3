package harness

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/relfold/relfold/branch"
	"github.com/relfold/relfold/internal/testutil"
	"github.com/relfold/relfold/rel"
	"github.com/relfold/relfold/session"
)

// Harness is the scenario execution engine.
// It runs cycles with a shared clock and a constant token source, so
// sequence numbers keep climbing across cycles and reruns of the same
// scenario produce identical reports.
type Harness struct {
	schemas rel.SchemaSet
	clock   *session.Clock
	tokens  session.TokenSource
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Execution flow:
//  1. Compile and resolve the scenario's models
//  2. Seed the initial root state
//  3. Run each cycle: open a session, apply mutations, finalize
//  4. Evaluate assertions against the final root and cycle errors
//
// A cycle error never aborts the run: the root carries over unchanged
// and the error is matched against the cycle's expect_error clause.
// Run itself only fails on scenario authoring problems (unknown seed
// entities, unresolvable models, unknown assertion entities).
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with a caller-supplied logger tracing cycles.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	schemas, err := scenario.CompileSchemas()
	if err != nil {
		return nil, fmt.Errorf("failed to compile models: %w", err)
	}

	for i, a := range scenario.Assertions {
		if a.Entity != "" {
			if _, ok := schemas.Get(a.Entity); !ok {
				return nil, fmt.Errorf("assertions[%d]: unknown entity %q", i, a.Entity)
			}
		}
	}

	root, err := seedRoot(schemas, scenario.Seed)
	if err != nil {
		return nil, fmt.Errorf("failed to seed root: %w", err)
	}

	h := &Harness{
		schemas: schemas,
		clock:   session.NewClock(),
		tokens:  testutil.NewConstantTokenSource(scenario.SessionToken),
		logger:  logger,
	}

	result := NewResult()
	for i, cycle := range scenario.Cycles {
		next, token, err := h.runCycle(root, cycle)
		if err != nil {
			result.AddFoldError(err.Error())
			switch {
			case cycle.ExpectError == "":
				result.AddError(fmt.Sprintf("cycles[%d] (%s): unexpected error: %v", i, cycle.Name, err))
			case !strings.Contains(err.Error(), cycle.ExpectError):
				result.AddError(fmt.Sprintf("cycles[%d] (%s): error %q does not contain %q", i, cycle.Name, err, cycle.ExpectError))
			}
		} else {
			if cycle.ExpectError != "" {
				result.AddError(fmt.Sprintf("cycles[%d] (%s): expected an error containing %q, cycle succeeded", i, cycle.Name, cycle.ExpectError))
			}
			root = next
		}

		result.Cycles = append(result.Cycles, CycleReport{
			Name:      cycle.Name,
			Token:     token,
			Mutations: len(cycle.Mutations),
			Failed:    err != nil,
		})

		h.logger.Info("cycle finished",
			"cycle", cycle.Name,
			"token", token,
			"mutations", len(cycle.Mutations),
			"failed", err != nil,
		)
	}
	result.Final = root

	for _, msg := range EvaluateAssertions(result, scenario.Assertions, root) {
		result.AddError(msg)
	}

	return result, nil
}

// runCycle opens a session against root, applies the cycle's mutations
// and finalizes it. The returned token identifies the session even when
// the cycle fails.
func (h *Harness) runCycle(root session.Root, cycle CycleSpec) (session.Root, string, error) {
	s := session.Open(h.schemas, root,
		session.WithClock(h.clock),
		session.WithTokenSource(h.tokens),
	)

	for i, step := range cycle.Mutations {
		if err := h.applyStep(s, step); err != nil {
			return session.Root{}, s.Token(), fmt.Errorf("mutation %d (%s %s): %w", i, step.Op, step.Entity, err)
		}
	}

	next, err := s.Finalize()
	if err != nil {
		return session.Root{}, s.Token(), err
	}
	return next, s.Token(), nil
}

// applyStep appends one scenario mutation to the session. Creates go
// through the facade path so many-to-many arrays split into
// through-entity creates; updates and deletes append directly.
func (h *Harness) applyStep(s *session.Session, step MutationStep) error {
	switch rel.Op(step.Op) {
	case rel.OpCreate:
		payload, err := toRecord(step.Record)
		if err != nil {
			return err
		}
		_, err = s.Create(step.Entity, payload)
		return err
	case rel.OpUpdate:
		ids, err := toIDs(step.IDs)
		if err != nil {
			return err
		}
		patch, err := toRecord(step.Patch)
		if err != nil {
			return err
		}
		return s.AddMutation(rel.NewUpdate(step.Entity, ids, patch))
	case rel.OpDelete:
		ids, err := toIDs(step.IDs)
		if err != nil {
			return err
		}
		return s.AddMutation(rel.NewDelete(step.Entity, ids))
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

// seedRoot inserts the scenario's seed records entity by entity. Seeds
// run through the insert algebra, so duplicate seed ids are rejected
// and auto-id counters start correctly.
func seedRoot(schemas rel.SchemaSet, seed map[string][]map[string]any) (session.Root, error) {
	entities := make([]string, 0, len(seed))
	for entity := range seed {
		entities = append(entities, entity)
	}
	sort.Strings(entities)

	branches := make(map[string]branch.Branch, len(seed))
	for _, entity := range entities {
		schema, ok := schemas.Get(entity)
		if !ok {
			return session.Root{}, fmt.Errorf("seed references unknown entity %q", entity)
		}
		tbl := branch.NewTable(schema)
		b := tbl.Empty()
		for i, raw := range seed[entity] {
			rec, err := toRecord(raw)
			if err != nil {
				return session.Root{}, fmt.Errorf("seed %s[%d]: %w", entity, i, err)
			}
			b, err = tbl.Insert(b, rec)
			if err != nil {
				return session.Root{}, fmt.Errorf("seed %s[%d]: %w", entity, i, err)
			}
		}
		branches[entity] = b
	}

	return session.RootOf(branches), nil
}

// toRecord converts YAML-parsed fields to a Record. A nil map becomes
// an empty record, never nil.
func toRecord(fields map[string]any) (rel.Record, error) {
	rec := make(rel.Record, len(fields))
	for key, val := range fields {
		v, err := rel.FromAny(val)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", key, err)
		}
		rec[key] = v
	}
	return rec, nil
}

// toIDs converts a YAML-parsed id list to values.
func toIDs(raw []any) ([]rel.Value, error) {
	ids := make([]rel.Value, len(raw))
	for i, val := range raw {
		v, err := rel.FromAny(val)
		if err != nil {
			return nil, fmt.Errorf("ids[%d]: %w", i, err)
		}
		ids[i] = v
	}
	return ids, nil
}
