package branch

import (
	"fmt"

	"github.com/relfold/relfold/rel"
)

// Table binds the branch algebra to one entity schema. A Table is a
// stateless value: it carries the schema needed for id attribute
// lookups and produces new Branch values from old ones.
//
// All operations are total over well-formed inputs and referentially
// transparent. Calling them concurrently against distinct Branch
// values needs no synchronization.
type Table struct {
	schema rel.Schema
}

// NewTable creates a Table for schema.
func NewTable(schema rel.Schema) Table {
	return Table{schema: schema}
}

// Schema returns the schema the table is bound to.
func (t Table) Schema() rel.Schema {
	return t.schema
}

// Empty returns the default state: no ids, no records.
func (t Table) Empty() Branch {
	return Branch{}
}

// Insert adds payload as a new record and appends its id to the end of
// the id sequence.
//
// Semantics:
//   - If the payload carries no id attribute, a fresh integer id is
//     assigned from the branch's monotone counter. The counter only
//     advances, so deleted integer ids are never reused.
//   - A caller-supplied integer id advances the counter past itself;
//     insert never rewrites a supplied id.
//   - An id already present in the branch fails with DuplicateIDError.
//   - A non-scalar id value fails with rel.InvalidMutationError (append
//     validation normally rejects these before they reach a fold).
//
// The input branch is never modified.
func (t Table) Insert(b Branch, payload rel.Record) (Branch, error) {
	idAttr := t.schema.IDAttribute
	nextID := b.nextID

	rec := make(rel.Record, len(payload)+1)
	for k, v := range payload {
		rec[k] = v
	}

	id, supplied := rec[idAttr]
	if supplied {
		if !rel.IsScalar(id) {
			return b, &rel.InvalidMutationError{
				Entity:  t.schema.Name,
				Op:      rel.OpCreate,
				Message: fmt.Sprintf("id attribute %q must be a string or integer scalar", idAttr),
			}
		}
		if n, isInt := id.(rel.Int); isInt && int64(n) >= nextID {
			nextID = int64(n) + 1
		}
	} else {
		id = rel.Int(nextID)
		rec[idAttr] = id
		nextID++
	}

	if _, exists := b.items[id]; exists {
		return b, &DuplicateIDError{Entity: t.schema.Name, ID: id}
	}

	ids := make([]rel.Value, len(b.ids), len(b.ids)+1)
	copy(ids, b.ids)
	ids = append(ids, id)

	items := make(map[rel.Value]rel.Record, len(b.items)+1)
	for k, v := range b.items {
		items[k] = v
	}
	items[id] = rec

	return Branch{ids: ids, items: items, nextID: nextID}, nil
}

// Update merges patch field by field into every selected record that
// exists. Absent ids are silently skipped: a delayed update against an
// already-deleted row is a no-op, not a failure. The id sequence is
// unchanged, and the id attribute is never merged - ids are assigned
// once and never reassigned.
func (t Table) Update(b Branch, ids []rel.Value, patch rel.Record) Branch {
	return t.applyPatch(b, ids, func(rel.Record) rel.Record { return patch })
}

// UpdateFunc is Update with a per-record patch: apply receives each
// existing record and returns the partial record to merge. The existing
// record passed to apply is shared state and must not be modified.
func (t Table) UpdateFunc(b Branch, ids []rel.Value, apply rel.Updater) Branch {
	if apply == nil {
		return b
	}
	return t.applyPatch(b, ids, apply)
}

func (t Table) applyPatch(b Branch, ids []rel.Value, patchFor rel.Updater) Branch {
	idAttr := t.schema.IDAttribute

	var items map[rel.Value]rel.Record
	for _, id := range ids {
		if !rel.IsScalar(id) {
			continue
		}
		source := b.items
		if items != nil {
			source = items
		}
		existing, ok := source[id]
		if !ok {
			continue
		}
		if items == nil {
			items = make(map[rel.Value]rel.Record, len(b.items))
			for k, v := range b.items {
				items[k] = v
			}
		}

		patch := patchFor(existing)
		merged := make(rel.Record, len(existing)+len(patch))
		for k, v := range existing {
			merged[k] = v
		}
		for k, v := range patch {
			if k == idAttr {
				continue
			}
			merged[k] = v
		}
		items[id] = merged
	}

	if items == nil {
		// Nothing selected exists; the input is returned unchanged.
		return b
	}
	return Branch{ids: b.ids, items: items, nextID: b.nextID}
}

// Delete removes every selected id from both the id sequence and the
// record index. Absent ids are silently skipped.
func (t Table) Delete(b Branch, ids []rel.Value) Branch {
	remove := make(map[rel.Value]bool, len(ids))
	for _, id := range ids {
		if !rel.IsScalar(id) {
			continue
		}
		if _, ok := b.items[id]; ok {
			remove[id] = true
		}
	}
	if len(remove) == 0 {
		return b
	}

	ids2 := make([]rel.Value, 0, len(b.ids)-len(remove))
	items := make(map[rel.Value]rel.Record, len(b.items)-len(remove))
	for _, id := range b.ids {
		if remove[id] {
			continue
		}
		ids2 = append(ids2, id)
		items[id] = b.items[id]
	}

	return Branch{ids: ids2, items: items, nextID: b.nextID}
}

// ApplyMutation dispatches one mutation record to the matching
// operation. This is the fold step: given a validated mutation, the
// only possible error is an id collision from a create.
func (t Table) ApplyMutation(b Branch, m rel.Mutation) (Branch, error) {
	switch m.Op {
	case rel.OpCreate:
		return t.Insert(b, m.Payload)
	case rel.OpUpdate:
		if m.Apply != nil {
			return t.UpdateFunc(b, m.IDs, m.Apply), nil
		}
		return t.Update(b, m.IDs, m.Patch), nil
	case rel.OpDelete:
		return t.Delete(b, m.IDs), nil
	default:
		return b, &rel.InvalidMutationError{
			Entity:  m.Entity,
			Op:      m.Op,
			Message: fmt.Sprintf("unknown operation %q", m.Op),
		}
	}
}
