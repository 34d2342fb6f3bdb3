package branch

import (
	"iter"
	"reflect"

	"github.com/relfold/relfold/rel"
)

// Branch is the normalized table of one entity type within a state
// snapshot: an ordered id sequence plus an id-to-record index, and the
// next auto-assigned integer id as engine metadata.
//
// A Branch is a value. The zero Branch is the empty table. Operations
// on Table return new Branch values; nothing ever mutates a Branch in
// place, so holding two snapshots from different fold cycles is always
// safe.
//
// Records returned by reads are shared with the branch and must be
// treated as immutable by callers; the algebra itself always copies
// before modifying.
type Branch struct {
	ids    []rel.Value
	items  map[rel.Value]rel.Record
	nextID int64
}

// Len returns the number of records in the branch.
func (b Branch) Len() int {
	return len(b.ids)
}

// Get returns the record stored under id. The boolean reports presence;
// a miss is a normal outcome, never an error.
func (b Branch) Get(id rel.Value) (rel.Record, bool) {
	if !rel.IsScalar(id) {
		return nil, false
	}
	rec, ok := b.items[id]
	return rec, ok
}

// IDList returns the branch's ids in insertion order. The returned
// slice is a copy: mutating it cannot corrupt the branch.
func (b Branch) IDList() []rel.Value {
	ids := make([]rel.Value, len(b.ids))
	copy(ids, b.ids)
	return ids
}

// List returns the branch's records in id order.
func (b Branch) List() []rel.Record {
	records := make([]rel.Record, len(b.ids))
	for i, id := range b.ids {
		records[i] = b.items[id]
	}
	return records
}

// All returns a lazy iterator over the branch's records in id order.
// The sequence is finite and restartable: each range re-walks from the
// start, and abandoning it early has no side effects.
func (b Branch) All() iter.Seq[rel.Record] {
	return func(yield func(rel.Record) bool) {
		for _, id := range b.ids {
			if !yield(b.items[id]) {
				return
			}
		}
	}
}

// Equal reports whether two branches are equal by value: same id order,
// same records, same auto-id metadata.
func (b Branch) Equal(other Branch) bool {
	if b.nextID != other.nextID || len(b.ids) != len(other.ids) {
		return false
	}
	for i := range b.ids {
		if b.ids[i] != other.ids[i] {
			return false
		}
	}
	return reflect.DeepEqual(b.items, other.items)
}

// CanonicalObject returns the branch as a canonical-JSON-ready Object:
//
//	{"ids": [...], "next_id": n, "records": [...]}
//
// Records appear in id order rather than keyed by id, so a String id
// "1" and an Int id 1 can never collapse onto one JSON key.
func (b Branch) CanonicalObject() rel.Object {
	ids := make(rel.Array, len(b.ids))
	records := make(rel.Array, len(b.ids))
	for i, id := range b.ids {
		ids[i] = id
		records[i] = b.items[id]
	}
	return rel.Object{
		"ids":     ids,
		"next_id": rel.Int(b.nextID),
		"records": records,
	}
}

// CanonicalJSON returns the RFC 8785 canonical serialization of the
// branch. Equal branches produce byte-identical output.
func (b Branch) CanonicalJSON() ([]byte, error) {
	return rel.MarshalCanonical(b.CanonicalObject())
}

// Hash returns the branch's content address. Folding the same mutation
// subsequence over the same starting state always reproduces the same
// hash; that is the determinism contract.
func (b Branch) Hash() (string, error) {
	canonical, err := b.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return rel.HashWithDomain(rel.DomainBranch, canonical), nil
}
