package session

import (
	"fmt"
	"sort"

	"github.com/relfold/relfold/rel"
)

// Entity is a point-in-time facade over one record: field reads
// resolve against a snapshot captured when the facade was built, never
// a live re-query, and writes become mutations appended to the owning
// session. A write therefore never changes what the facade itself
// shows; its effect appears in the next fold.
type Entity struct {
	session  *Session
	schema   rel.Schema
	id       rel.Value
	snapshot rel.Record
	exists   bool
}

// Get builds a facade over entity's record with the given id,
// capturing a snapshot from the session's current state. A missing
// record is not an error: the facade simply reports Exists false,
// which lets callers probe and still append writes against the id.
func (s *Session) Get(entity string, id rel.Value) (Entity, error) {
	schema, ok := s.schemas.Get(entity)
	if !ok {
		return Entity{}, fmt.Errorf("unknown entity %q", entity)
	}
	if !rel.IsScalar(id) {
		return Entity{}, fmt.Errorf("entity %s: id must be a string or integer scalar", entity)
	}

	cur, _ := s.root.Branch(entity)
	rec, ok := cur.Get(id)
	return Entity{
		session:  s,
		schema:   schema,
		id:       id,
		snapshot: copyRecord(rec),
		exists:   ok,
	}, nil
}

// Create validates payload, appends the create mutation, and returns a
// facade whose snapshot is the pending payload.
//
// Many-to-many fields in the payload are split off before the owner
// record is written: each target id in such a field's array becomes
// one create on the relation's through entity, so the owner record
// itself stays normalized. Splitting requires the owner's id in the
// payload whenever at least one through row must be written, because
// the through rows reference it. Callers creating id-less records
// relate them in a later cycle, once the fold has assigned the id.
//
// Exactly the owner create plus the through creates are appended, in
// that order, with through rows grouped by field name and kept in
// array order within each field.
func (s *Session) Create(entity string, payload rel.Record) (Entity, error) {
	if s.finalized {
		return Entity{}, &SessionClosedError{Token: s.token}
	}
	schema, ok := s.schemas.Get(entity)
	if !ok {
		return Entity{}, &rel.InvalidMutationError{Entity: entity, Op: rel.OpCreate, Message: "unknown entity"}
	}

	owner := make(rel.Record, len(payload))
	var manyFields []string
	for fname, v := range payload {
		if f, declared := schema.Field(fname); declared && f.Kind == rel.KindManyToMany {
			manyFields = append(manyFields, fname)
			continue
		}
		owner[fname] = v
	}
	sort.Strings(manyFields)

	muts := []rel.Mutation{rel.NewCreate(entity, owner)}
	ownerID, hasID := owner[schema.IDAttribute]
	for _, fname := range manyFields {
		f, _ := schema.Field(fname)
		targets, ok := payload[fname].(rel.Array)
		if !ok {
			return Entity{}, &rel.InvalidMutationError{
				Entity: entity, Op: rel.OpCreate,
				Message: fmt.Sprintf("many-to-many field %q takes an array of ids", fname),
			}
		}
		if len(targets) > 0 && !hasID {
			return Entity{}, &rel.InvalidMutationError{
				Entity: entity, Op: rel.OpCreate,
				Message: fmt.Sprintf("relating through %q requires an explicit %s in the payload", fname, schema.IDAttribute),
			}
		}
		for i, target := range targets {
			if !rel.IsScalar(target) {
				return Entity{}, &rel.InvalidMutationError{
					Entity: entity, Op: rel.OpCreate,
					Message: fmt.Sprintf("many-to-many field %q: id [%d] must be a string or integer scalar", fname, i),
				}
			}
			muts = append(muts, rel.NewCreate(f.Through, rel.Record{
				f.FromField: ownerID,
				f.ToField:   target,
			}))
		}
	}

	// Validate the whole split before appending any of it, so a
	// rejected payload leaves the log untouched.
	for _, m := range muts {
		if err := rel.ValidateMutation(s.schemas, m); err != nil {
			return Entity{}, err
		}
	}
	for _, m := range muts {
		if err := s.AddMutation(m); err != nil {
			return Entity{}, err
		}
	}

	var id rel.Value
	if hasID {
		id = ownerID
	}
	return Entity{
		session:  s,
		schema:   schema,
		id:       id,
		snapshot: copyRecord(owner),
		exists:   false,
	}, nil
}

// Name returns the facade's entity name.
func (e Entity) Name() string {
	return e.schema.Name
}

// ID returns the facade's id, or nil for a record created without one
// (the fold assigns its id later).
func (e Entity) ID() rel.Value {
	return e.id
}

// Exists reports whether the facade captured a record present in the
// session's current state. A facade from Create reports false: its
// record is pending until the next fold.
func (e Entity) Exists() bool {
	return e.exists
}

// Record returns a copy of the captured snapshot.
func (e Entity) Record() rel.Record {
	return copyRecord(e.snapshot)
}

// Field returns the snapshot's value for name. The boolean reports
// presence.
func (e Entity) Field(name string) (rel.Value, bool) {
	v, ok := e.snapshot[name]
	return v, ok
}

// Set appends one update mutation assigning value to field. The
// snapshot is untouched; the write lands in the next fold.
func (e Entity) Set(field string, value rel.Value) error {
	return e.Update(rel.Record{field: value})
}

// Update appends exactly one update mutation merging every field of
// patch, the bulk form of Set.
func (e Entity) Update(patch rel.Record) error {
	if e.id == nil {
		return e.unaddressed(rel.OpUpdate)
	}
	return e.session.AddMutation(rel.NewUpdate(e.schema.Name, rel.IDs(e.id), patch))
}

// Delete appends a delete mutation for this id. The facade stays
// readable afterwards: deletion affects future folds, never the
// captured snapshot.
func (e Entity) Delete() error {
	if e.id == nil {
		return e.unaddressed(rel.OpDelete)
	}
	return e.session.AddMutation(rel.NewDelete(e.schema.Name, rel.IDs(e.id)))
}

func (e Entity) unaddressed(op rel.Op) error {
	return &rel.InvalidMutationError{
		Entity: e.schema.Name, Op: op,
		Message: "record has no id yet; it is addressable after the fold assigns one",
	}
}

// Equal reports whether two facades address the same row: same entity
// and same id, regardless of what their snapshots hold. Facades
// without an assigned id never compare equal, not even to themselves:
// two pending creates are distinct rows until the fold names them.
func (e Entity) Equal(other Entity) bool {
	if e.id == nil || other.id == nil {
		return false
	}
	return e.schema.Name == other.schema.Name && e.id == other.id
}

func copyRecord(rec rel.Record) rel.Record {
	if rec == nil {
		return nil
	}
	copied := make(rel.Record, len(rec))
	for k, v := range rec {
		copied[k] = v
	}
	return copied
}
