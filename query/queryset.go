package query

import (
	"sort"

	"github.com/relfold/relfold/branch"
	"github.com/relfold/relfold/rel"
)

// QuerySet is an ordered selection of one branch's records. A fresh
// set selects everything in branch order; Filter, Exclude, and OrderBy
// derive new sets without touching the receiver.
type QuerySet struct {
	branch branch.Branch
	ids    []rel.Value
}

// New returns a QuerySet selecting every record of b in branch order.
func New(b branch.Branch) QuerySet {
	return QuerySet{branch: b, ids: b.IDList()}
}

// Filter returns the subset of records matching p, keeping their
// relative order.
func (q QuerySet) Filter(p Predicate) QuerySet {
	var ids []rel.Value
	for _, id := range q.ids {
		if rec, ok := q.branch.Get(id); ok && Matches(p, rec) {
			ids = append(ids, id)
		}
	}
	return QuerySet{branch: q.branch, ids: ids}
}

// Exclude returns the subset of records not matching p, keeping their
// relative order.
func (q QuerySet) Exclude(p Predicate) QuerySet {
	return q.Filter(Not{Predicate: p})
}

// OrderBy returns the selection sorted ascending by field. The sort is
// stable, so records with equal keys keep their prior relative order;
// records missing the field sort first.
func (q QuerySet) OrderBy(field string) QuerySet {
	return q.orderBy(field, false)
}

// OrderByDesc returns the selection sorted descending by field, with
// the same stability contract as OrderBy; records missing the field
// sort last.
func (q QuerySet) OrderByDesc(field string) QuerySet {
	return q.orderBy(field, true)
}

func (q QuerySet) orderBy(field string, desc bool) QuerySet {
	type keyed struct {
		id  rel.Value
		key rel.Value
	}
	rows := make([]keyed, len(q.ids))
	for i, id := range q.ids {
		rec, _ := q.branch.Get(id)
		rows[i] = keyed{id: id, key: rec[field]}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if desc {
			return lessValue(rows[j].key, rows[i].key)
		}
		return lessValue(rows[i].key, rows[j].key)
	})
	ids := make([]rel.Value, len(rows))
	for i, row := range rows {
		ids[i] = row.id
	}
	return QuerySet{branch: q.branch, ids: ids}
}

// IDs returns the selected ids in selection order. The returned slice
// is a copy.
func (q QuerySet) IDs() []rel.Value {
	ids := make([]rel.Value, len(q.ids))
	copy(ids, q.ids)
	return ids
}

// All returns the selected records in selection order.
func (q QuerySet) All() []rel.Record {
	records := make([]rel.Record, 0, len(q.ids))
	for _, id := range q.ids {
		if rec, ok := q.branch.Get(id); ok {
			records = append(records, rec)
		}
	}
	return records
}

// Count returns the number of selected records.
func (q QuerySet) Count() int {
	return len(q.ids)
}

// First returns the first selected record. The boolean reports whether
// the selection is non-empty.
func (q QuerySet) First() (rel.Record, bool) {
	for _, id := range q.ids {
		if rec, ok := q.branch.Get(id); ok {
			return rec, true
		}
	}
	return nil, false
}

// Exists reports whether the selection is non-empty.
func (q QuerySet) Exists() bool {
	return len(q.ids) > 0
}

// RelatedIDs returns the target-side ids of every through row whose
// from-side foreign key equals ownerID, in through-branch order. The
// field must be a resolved many-to-many field, which carries the
// through entity's two foreign-key names.
func RelatedIDs(through branch.Branch, field rel.Field, ownerID rel.Value) []rel.Value {
	var ids []rel.Value
	for rec := range through.All() {
		from, ok := rec[field.FromField]
		if !ok || !valueEqual(from, ownerID) {
			continue
		}
		if target, ok := rec[field.ToField]; ok {
			ids = append(ids, target)
		}
	}
	return ids
}

// lessValue is the total order used by OrderBy: absent < null < bool
// < int < string, with arrays and objects unordered at the end. Within
// a kind, false < true, ints compare numerically, strings by byte
// order.
func lessValue(a, b rel.Value) bool {
	ra, rb := kindRank(a), kindRank(b)
	if ra != rb {
		return ra < rb
	}
	switch av := a.(type) {
	case rel.Bool:
		return !bool(av) && bool(b.(rel.Bool))
	case rel.Int:
		return av < b.(rel.Int)
	case rel.String:
		return av < b.(rel.String)
	}
	return false
}

func kindRank(v rel.Value) int {
	switch v.(type) {
	case nil:
		return 0
	case rel.Null:
		return 1
	case rel.Bool:
		return 2
	case rel.Int:
		return 3
	case rel.String:
		return 4
	default:
		return 5
	}
}
