package query

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/relfold/relfold/rel"
)

// Compile-time checks that all predicate types satisfy the sealed
// interface.
var (
	_ Predicate = Eq{}
	_ Predicate = In{}
	_ Predicate = And{}
	_ Predicate = Or{}
	_ Predicate = Not{}
)

func TestMatchesEq(t *testing.T) {
	rec := rel.Record{
		"title":       rel.String("a"),
		"pages":       rel.Int(100),
		"inPrint":     rel.Bool(true),
		"publisherId": rel.Null{},
	}

	tests := []struct {
		name string
		pred Predicate
		want bool
	}{
		{"string match", Eq{Field: "title", Value: rel.String("a")}, true},
		{"string mismatch", Eq{Field: "title", Value: rel.String("b")}, false},
		{"int match", Eq{Field: "pages", Value: rel.Int(100)}, true},
		{"bool match", Eq{Field: "inPrint", Value: rel.Bool(true)}, true},
		{"null matches stored null", Eq{Field: "publisherId", Value: rel.Null{}}, true},
		{"absent field never matches", Eq{Field: "missing", Value: rel.Null{}}, false},
		{"kind mismatch", Eq{Field: "pages", Value: rel.String("100")}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Matches(tt.pred, rec))
		})
	}
}

func TestMatchesEqComposite(t *testing.T) {
	rec := rel.Record{"tags": rel.Array{rel.String("x"), rel.String("y")}}

	// Composite comparisons fall back to deep equality without
	// panicking on the non-comparable dynamic type.
	assert.True(t, Matches(Eq{Field: "tags", Value: rel.Array{rel.String("x"), rel.String("y")}}, rec))
	assert.False(t, Matches(Eq{Field: "tags", Value: rel.Array{rel.String("x")}}, rec))
	assert.False(t, Matches(Eq{Field: "tags", Value: rel.String("x")}, rec))
}

func TestMatchesIn(t *testing.T) {
	rec := rel.Record{"title": rel.String("b")}

	assert.True(t, Matches(In{Field: "title", Values: rel.IDs(rel.String("a"), rel.String("b"))}, rec))
	assert.False(t, Matches(In{Field: "title", Values: rel.IDs(rel.String("x"))}, rec))
	assert.False(t, Matches(In{Field: "title"}, rec), "empty value list matches nothing")
	assert.False(t, Matches(In{Field: "missing", Values: rel.IDs(rel.String("b"))}, rec))
}

func TestMatchesCombinators(t *testing.T) {
	rec := rel.Record{"title": rel.String("a"), "pages": rel.Int(100)}

	titleA := Eq{Field: "title", Value: rel.String("a")}
	titleB := Eq{Field: "title", Value: rel.String("b")}
	pages100 := Eq{Field: "pages", Value: rel.Int(100)}

	assert.True(t, Matches(And{Predicates: []Predicate{titleA, pages100}}, rec))
	assert.False(t, Matches(And{Predicates: []Predicate{titleA, titleB}}, rec))
	assert.True(t, Matches(And{}, rec), "empty conjunction is vacuously true")

	assert.True(t, Matches(Or{Predicates: []Predicate{titleB, pages100}}, rec))
	assert.False(t, Matches(Or{Predicates: []Predicate{titleB}}, rec))
	assert.False(t, Matches(Or{}, rec), "empty disjunction matches nothing")

	assert.False(t, Matches(Not{Predicate: titleA}, rec))
	assert.True(t, Matches(Not{Predicate: titleB}, rec))

	nested := And{Predicates: []Predicate{
		Or{Predicates: []Predicate{titleA, titleB}},
		Not{Predicate: Eq{Field: "pages", Value: rel.Int(1)}},
	}}
	assert.True(t, Matches(nested, rec))
}
