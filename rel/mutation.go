package rel

import (
	"encoding/json"
	"fmt"
)

// Op tags a mutation record's operation.
type Op string

const (
	// OpCreate inserts a new record built from Payload.
	OpCreate Op = "create"

	// OpUpdate merges Patch (or the Apply result) into every selected
	// record that exists.
	OpUpdate Op = "update"

	// OpDelete removes every selected record that exists.
	OpDelete Op = "delete"
)

// Updater computes a partial record from the existing one. The result
// is merged field by field, like a static patch. Updaters run at fold
// time; keeping relational fields scalar and leaving the id attribute
// alone is the updater's contract (the merge skips the id attribute
// regardless).
type Updater func(Record) Record

// Mutation is one immutable, typed instruction targeting one entity.
// Exactly one component group is populated per operation:
//
//	create: Payload
//	update: IDs + Patch or Apply
//	delete: IDs
//
// Seq is the logical clock stamp assigned when a log accepts the
// mutation; it is zero before that. Mutations are values: once appended
// to a log they must not be modified (callers must not mutate Payload
// or Patch afterwards).
type Mutation struct {
	Op      Op      `json:"op"`
	Entity  string  `json:"entity"`
	Payload Record  `json:"payload,omitempty"`
	IDs     []Value `json:"ids,omitempty"`
	Patch   Record  `json:"patch,omitempty"`
	Apply   Updater `json:"-"`
	Seq     int64   `json:"seq,omitempty"`
}

// NewCreate builds a create mutation for entity from payload.
func NewCreate(entity string, payload Record) Mutation {
	return Mutation{Op: OpCreate, Entity: entity, Payload: payload}
}

// NewUpdate builds an update mutation merging patch into every selected id.
func NewUpdate(entity string, ids []Value, patch Record) Mutation {
	return Mutation{Op: OpUpdate, Entity: entity, IDs: ids, Patch: patch}
}

// NewUpdateFunc builds an update mutation whose patch is computed per
// record at fold time.
func NewUpdateFunc(entity string, ids []Value, apply Updater) Mutation {
	return Mutation{Op: OpUpdate, Entity: entity, IDs: ids, Apply: apply}
}

// NewDelete builds a delete mutation removing every selected id.
func NewDelete(entity string, ids []Value) Mutation {
	return Mutation{Op: OpDelete, Entity: entity, IDs: ids}
}

// ValidateMutation checks m against the schema set. It is the append-time
// gate: a mutation that passes is structurally valid, so folding it can
// only fail on id collisions, never on data shape.
//
// Checks, by operation:
//   - the target entity must exist in the schema set
//   - create: only Payload set; an id attribute value, if present, must
//     be a scalar; declared foreign-key fields must hold a scalar or
//     Null; many-to-many fields must not appear in stored records
//   - update: only IDs plus exactly one of Patch or Apply; every id
//     must be a scalar; a static patch must not touch the id attribute
//     (ids are assigned once and never reassigned) and obeys the same
//     relational-field rules as a payload
//   - delete: only IDs; every id must be a scalar
//
// Undeclared payload fields are implicit attributes and pass; only
// declared relational fields are constrained.
func ValidateMutation(ss SchemaSet, m Mutation) error {
	schema, ok := ss.Get(m.Entity)
	if !ok {
		return &InvalidMutationError{Entity: m.Entity, Op: m.Op, Message: "unknown entity"}
	}

	fail := func(msg string) error {
		return &InvalidMutationError{Entity: m.Entity, Op: m.Op, Message: msg}
	}

	switch m.Op {
	case OpCreate:
		if m.IDs != nil || m.Patch != nil || m.Apply != nil {
			return fail("create takes a payload only")
		}
		if err := validateRecordShape(schema, m.Payload, fail); err != nil {
			return err
		}
		if idVal, present := m.Payload[schema.IDAttribute]; present && !IsScalar(idVal) {
			return fail(fmt.Sprintf("id attribute %q must be a string or integer scalar", schema.IDAttribute))
		}

	case OpUpdate:
		if m.Payload != nil {
			return fail("update takes an id selector and a patch, not a payload")
		}
		if (m.Patch == nil) == (m.Apply == nil) {
			return fail("update requires exactly one of a patch or an updater function")
		}
		if err := validateSelector(m.IDs, fail); err != nil {
			return err
		}
		if m.Patch != nil {
			if _, present := m.Patch[schema.IDAttribute]; present {
				return fail(fmt.Sprintf("id attribute %q cannot be reassigned", schema.IDAttribute))
			}
			if err := validateRecordShape(schema, m.Patch, fail); err != nil {
				return err
			}
		}

	case OpDelete:
		if m.Payload != nil || m.Patch != nil || m.Apply != nil {
			return fail("delete takes an id selector only")
		}
		if err := validateSelector(m.IDs, fail); err != nil {
			return err
		}

	default:
		return fail(fmt.Sprintf("unknown operation %q", m.Op))
	}
	return nil
}

func validateSelector(ids []Value, fail func(string) error) error {
	for i, id := range ids {
		if !IsScalar(id) {
			return fail(fmt.Sprintf("selector id [%d] must be a string or integer scalar", i))
		}
	}
	return nil
}

func validateRecordShape(schema Schema, rec Record, fail func(string) error) error {
	for fname, v := range rec {
		f, declared := schema.Field(fname)
		if !declared {
			continue
		}
		switch f.Kind {
		case KindForeignKey:
			if _, isNull := v.(Null); isNull {
				continue
			}
			if !IsScalar(v) {
				return fail(fmt.Sprintf("foreign key %q must hold a scalar id or null", fname))
			}
		case KindManyToMany:
			return fail(fmt.Sprintf("many-to-many field %q cannot be stored on the record; relate rows through %q", fname, f.Through))
		}
	}
	return nil
}

// mutationUnmarshal mirrors Mutation for JSON decoding: Value-typed
// components need explicit decoding through UnmarshalValue.
type mutationUnmarshal struct {
	Op      Op                `json:"op"`
	Entity  string            `json:"entity"`
	Payload json.RawMessage   `json:"payload,omitempty"`
	IDs     []json.RawMessage `json:"ids,omitempty"`
	Patch   json.RawMessage   `json:"patch,omitempty"`
	Seq     int64             `json:"seq,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler for Mutation. Functional
// updaters have no serialized form; decoded updates always carry a
// static patch.
func (m *Mutation) UnmarshalJSON(data []byte) error {
	var raw mutationUnmarshal
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Mutation{Op: raw.Op, Entity: raw.Entity, Seq: raw.Seq}
	if raw.Payload != nil {
		var payload Object
		if err := payload.UnmarshalJSON(raw.Payload); err != nil {
			return fmt.Errorf("mutation payload: %w", err)
		}
		out.Payload = payload
	}
	if raw.Patch != nil {
		var patch Object
		if err := patch.UnmarshalJSON(raw.Patch); err != nil {
			return fmt.Errorf("mutation patch: %w", err)
		}
		out.Patch = patch
	}
	if raw.IDs != nil {
		out.IDs = make([]Value, len(raw.IDs))
		for i, idRaw := range raw.IDs {
			id, err := UnmarshalValue(idRaw)
			if err != nil {
				return fmt.Errorf("mutation id [%d]: %w", i, err)
			}
			out.IDs[i] = id
		}
	}

	*m = out
	return nil
}
