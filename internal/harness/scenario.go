package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/relfold/relfold/internal/compiler"
	"github.com/relfold/relfold/rel"
)

// Scenario defines a conformance test scenario.
// Scenarios validate fold behavior by seeding a root state, running
// cycles of mutations through sessions, and asserting on the final root.
type Scenario struct {
	// Name uniquely identifies this scenario.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Models is an inline CUE source declaring the entity models.
	// Exactly one of Models and ModelsFile must be set.
	Models string `yaml:"models,omitempty"`

	// ModelsFile is a path to a CUE model file, resolved relative to
	// the scenario file location.
	ModelsFile string `yaml:"models_file,omitempty"`

	// SessionToken is an optional fixed session token for deterministic
	// runs. If empty, every cycle opens with "test-session-default" so
	// golden files stay byte-identical across runs.
	SessionToken string `yaml:"session_token,omitempty"`

	// Seed contains initial records per entity, inserted in order
	// before the first cycle. Entities not listed start empty.
	Seed map[string][]map[string]any `yaml:"seed,omitempty"`

	// Cycles contains the session cycles to run in order. Each cycle
	// opens a fresh session against the current root and folds it into
	// the next one.
	Cycles []CycleSpec `yaml:"cycles"`

	// Assertions validate the final root and recorded cycle errors.
	// Supported types: ids, record, count, absent, error.
	Assertions []Assertion `yaml:"assertions"`
}

// CycleSpec represents one session cycle: an ordered list of mutations
// applied to a fresh session, then finalized.
type CycleSpec struct {
	// Name identifies the cycle in reports and golden files.
	Name string `yaml:"name"`

	// Mutations are applied in order. An empty list is legal and folds
	// the root through unchanged.
	Mutations []MutationStep `yaml:"mutations,omitempty"`

	// ExpectError marks the cycle as expected to fail; the cycle's
	// error message must contain this substring. The root then carries
	// over unchanged into the next cycle.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// MutationStep represents a single mutation in a cycle.
type MutationStep struct {
	// Op is one of "create", "update", "delete".
	Op string `yaml:"op"`

	// Entity names the target entity.
	Entity string `yaml:"entity"`

	// Record is the create payload. Many-to-many fields may hold id
	// arrays; they are split into through-entity creates.
	Record map[string]any `yaml:"record,omitempty"`

	// IDs selects the records for update and delete.
	IDs []any `yaml:"ids,omitempty"`

	// Patch contains the fields merged by update.
	Patch map[string]any `yaml:"patch,omitempty"`
}

// Assertion validates the final root or recorded cycle errors.
type Assertion struct {
	// Type specifies the assertion type:
	// - "ids": entity's id list matches exactly, in order
	// - "record": record fields match (subset semantics)
	// - "count": entity holds exactly N records
	// - "absent": no record stored under the id
	// - "error": a recorded cycle error contains a substring
	Type string `yaml:"type"`

	// Entity names the asserted entity (ids, record, count, absent).
	Entity string `yaml:"entity,omitempty"`

	// IDs is the expected id list (ids). Use [] for an empty branch.
	IDs []any `yaml:"ids,omitempty"`

	// ID addresses a single record (record, absent).
	ID any `yaml:"id,omitempty"`

	// Expect contains expected field values (record). Subset match -
	// only specified fields are validated.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Count is the expected record count (count).
	Count int `yaml:"count,omitempty"`

	// Contains is the expected error substring (error).
	Contains string `yaml:"contains,omitempty"`
}

// Assertion type constants.
const (
	AssertIDs    = "ids"
	AssertRecord = "record"
	AssertCount  = "count"
	AssertAbsent = "absent"
	AssertError  = "error"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed, contains
// unknown fields (typos), or is missing required fields. A relative
// models_file path is resolved against the scenario file's directory.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Parse YAML with strict field validation (catches typos like
	// "assertion:" vs "assertions:")
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	// Resolve the model file relative to the scenario BEFORE validation
	if scenario.ModelsFile != "" && !filepath.IsAbs(scenario.ModelsFile) {
		scenario.ModelsFile = filepath.Join(filepath.Dir(path), scenario.ModelsFile)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// CompileSchemas compiles the scenario's model declarations into a
// resolved schema set, including synthesized through entities.
func (s *Scenario) CompileSchemas() (rel.SchemaSet, error) {
	src := s.Models
	if s.ModelsFile != "" {
		data, err := os.ReadFile(s.ModelsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read models file: %w", err)
		}
		src = string(data)
	}

	ctx := cuecontext.New()
	declared, err := compiler.CompileModels(ctx.CompileString(src))
	if err != nil {
		return nil, err
	}

	if errs := compiler.Validate(declared); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("invalid models: %s", strings.Join(msgs, "; "))
	}

	return rel.ResolveSchemas(declared)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if (s.Models == "") == (s.ModelsFile == "") {
		return fmt.Errorf("exactly one of models and models_file is required")
	}
	if s.ModelsFile != "" {
		if _, err := os.Stat(s.ModelsFile); os.IsNotExist(err) {
			return fmt.Errorf("models file not found: %s", s.ModelsFile)
		}
	}

	if len(s.Cycles) == 0 {
		return fmt.Errorf("cycles list is required and must be non-empty")
	}

	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, cycle := range s.Cycles {
		if cycle.Name == "" {
			return fmt.Errorf("cycles[%d]: name is required", i)
		}
		for j, step := range cycle.Mutations {
			if err := validateStep(&step); err != nil {
				return fmt.Errorf("cycles[%d].mutations[%d]: %w", i, j, err)
			}
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(&assertion); err != nil {
			return fmt.Errorf("assertions[%d]: %w", i, err)
		}
	}

	return nil
}

// validateStep validates a single mutation step based on its op.
func validateStep(step *MutationStep) error {
	if step.Entity == "" {
		return fmt.Errorf("entity is required")
	}

	switch rel.Op(step.Op) {
	case rel.OpCreate:
		if step.Record == nil {
			return fmt.Errorf("create requires a record")
		}
		if step.IDs != nil || step.Patch != nil {
			return fmt.Errorf("create takes a record only")
		}
	case rel.OpUpdate:
		if len(step.IDs) == 0 {
			return fmt.Errorf("update requires a non-empty ids list")
		}
		if step.Patch == nil {
			return fmt.Errorf("update requires a patch")
		}
		if step.Record != nil {
			return fmt.Errorf("update takes ids and a patch, not a record")
		}
	case rel.OpDelete:
		if len(step.IDs) == 0 {
			return fmt.Errorf("delete requires a non-empty ids list")
		}
		if step.Record != nil || step.Patch != nil {
			return fmt.Errorf("delete takes an ids list only")
		}
	default:
		return fmt.Errorf("unknown op %q (want create, update, or delete)", step.Op)
	}

	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("type is required")
	}

	switch a.Type {
	case AssertIDs:
		if a.Entity == "" {
			return fmt.Errorf("entity is required for ids")
		}
		if a.IDs == nil {
			return fmt.Errorf("ids list is required for ids (use [] for an empty branch)")
		}
	case AssertRecord:
		if a.Entity == "" {
			return fmt.Errorf("entity is required for record")
		}
		if a.ID == nil {
			return fmt.Errorf("id is required for record")
		}
		if len(a.Expect) == 0 {
			return fmt.Errorf("expect is required for record")
		}
	case AssertCount:
		if a.Entity == "" {
			return fmt.Errorf("entity is required for count")
		}
		if a.Count < 0 {
			return fmt.Errorf("count must be non-negative")
		}
	case AssertAbsent:
		if a.Entity == "" {
			return fmt.Errorf("entity is required for absent")
		}
		if a.ID == nil {
			return fmt.Errorf("id is required for absent")
		}
	case AssertError:
		if a.Contains == "" {
			return fmt.Errorf("contains is required for error")
		}
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}

	return nil
}
