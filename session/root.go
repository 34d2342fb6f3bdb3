package session

import (
	"sort"

	"github.com/relfold/relfold/branch"
	"github.com/relfold/relfold/rel"
)

// Root is one immutable state snapshot: the branches of every entity,
// keyed by entity name. The hosting container assembles a Root from a
// finished cycle's next states and opens the following Session against
// it.
//
// Root is a value with no mutating methods; With returns a new Root.
// The zero Root is the empty snapshot, and an entity with no branch
// reads as the empty branch.
type Root struct {
	branches map[string]branch.Branch
}

// NewRoot returns the empty snapshot.
func NewRoot() Root {
	return Root{}
}

// RootOf builds a Root from a branch map. The map is copied, so the
// caller keeps ownership of its argument.
func RootOf(branches map[string]branch.Branch) Root {
	if len(branches) == 0 {
		return Root{}
	}
	copied := make(map[string]branch.Branch, len(branches))
	for entity, b := range branches {
		copied[entity] = b
	}
	return Root{branches: copied}
}

// Branch returns the branch stored for entity. The boolean reports
// presence; callers treating absence as the empty branch can ignore
// it.
func (r Root) Branch(entity string) (branch.Branch, bool) {
	b, ok := r.branches[entity]
	return b, ok
}

// With returns a new Root holding b under entity, leaving the receiver
// unchanged.
func (r Root) With(entity string, b branch.Branch) Root {
	copied := make(map[string]branch.Branch, len(r.branches)+1)
	for name, existing := range r.branches {
		copied[name] = existing
	}
	copied[entity] = b
	return Root{branches: copied}
}

// Entities returns the entity names with a stored branch, sorted.
func (r Root) Entities() []string {
	names := make([]string, 0, len(r.branches))
	for name := range r.branches {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of stored branches.
func (r Root) Len() int {
	return len(r.branches)
}

// Equal reports whether both roots hold the same entities with equal
// branches. Equality is structural: an entity stored with an empty
// branch is not the same as an entity absent entirely.
func (r Root) Equal(other Root) bool {
	if len(r.branches) != len(other.branches) {
		return false
	}
	for entity, b := range r.branches {
		ob, ok := other.branches[entity]
		if !ok || !b.Equal(ob) {
			return false
		}
	}
	return true
}

// CanonicalObject returns the root as a canonical-JSON-ready Object
// keyed by entity name.
func (r Root) CanonicalObject() rel.Object {
	obj := make(rel.Object, len(r.branches))
	for entity, b := range r.branches {
		obj[entity] = b.CanonicalObject()
	}
	return obj
}

// CanonicalJSON returns the RFC 8785 canonical serialization of the
// root. Equal roots produce byte-identical output.
func (r Root) CanonicalJSON() ([]byte, error) {
	return rel.MarshalCanonical(r.CanonicalObject())
}

// Hash returns the root's content address, the cycle-level analogue of
// Branch.Hash.
func (r Root) Hash() (string, error) {
	canonical, err := r.CanonicalJSON()
	if err != nil {
		return "", err
	}
	return rel.HashWithDomain(rel.DomainRoot, canonical), nil
}
