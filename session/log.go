package session

import (
	"sort"

	"github.com/relfold/relfold/rel"
)

// Log is the ordered, append-only mutation sequence for one cycle.
// Entries are immutable once appended; the log only ever grows.
//
// Order within one entity's subsequence is the fold application order
// and is preserved exactly. Order across entities carries no meaning:
// each mutation touches exactly one branch, so the per-entity
// subsequences fold independently.
type Log struct {
	entries []rel.Mutation
}

// Append adds a mutation to the end of the log.
func (l *Log) Append(m rel.Mutation) {
	l.entries = append(l.entries, m)
}

// Len returns the number of appended mutations.
func (l *Log) Len() int {
	return len(l.entries)
}

// All returns every mutation in append order. The returned slice is a
// copy; the entries themselves are shared and must not be modified.
func (l *Log) All() []rel.Mutation {
	entries := make([]rel.Mutation, len(l.entries))
	copy(entries, l.entries)
	return entries
}

// ForEntity returns, in append order, exactly the subsequence of
// mutations targeting entity. Records are never reordered or
// coalesced, even when several target the same id: later entries win
// on conflicting fields through the fold's merge semantics.
func (l *Log) ForEntity(entity string) []rel.Mutation {
	var entries []rel.Mutation
	for _, m := range l.entries {
		if m.Entity == entity {
			entries = append(entries, m)
		}
	}
	return entries
}

// Entities returns the distinct target entity names present in the
// log, sorted.
func (l *Log) Entities() []string {
	seen := make(map[string]bool, len(l.entries))
	for _, m := range l.entries {
		seen[m.Entity] = true
	}
	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
