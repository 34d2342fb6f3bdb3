package query

import (
	"reflect"

	"github.com/relfold/relfold/rel"
)

// Predicate represents one filter condition over a record.
//
// This is a sealed interface - only types in this package implement
// it. The marker method pattern prevents external implementations and
// enables exhaustive type switches in the evaluator.
//
// Predicate types:
//   - Eq: field equals a literal value
//   - In: field equals any of a set of literal values
//   - And: all predicates must hold
//   - Or: at least one predicate must hold
//   - Not: the inner predicate must not hold
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Eq matches records whose field equals a literal value.
//
// An absent field never matches anything, including an explicit Null:
// a record storing publisherId null matches Eq{"publisherId", Null{}},
// a record without the field does not.
type Eq struct {
	Field string
	Value rel.Value
}

func (Eq) predicateNode() {}

// In matches records whose field equals any of the listed values.
// An empty value list matches nothing.
type In struct {
	Field  string
	Values []rel.Value
}

func (In) predicateNode() {}

// And matches records satisfying every predicate. An empty predicate
// list is vacuously true.
type And struct {
	Predicates []Predicate
}

func (And) predicateNode() {}

// Or matches records satisfying at least one predicate. An empty
// predicate list matches nothing.
type Or struct {
	Predicates []Predicate
}

func (Or) predicateNode() {}

// Not inverts its inner predicate.
type Not struct {
	Predicate Predicate
}

func (Not) predicateNode() {}

// Matches evaluates p against one record.
func Matches(p Predicate, rec rel.Record) bool {
	switch node := p.(type) {
	case Eq:
		v, ok := rec[node.Field]
		return ok && valueEqual(v, node.Value)

	case In:
		v, ok := rec[node.Field]
		if !ok {
			return false
		}
		for _, candidate := range node.Values {
			if valueEqual(v, candidate) {
				return true
			}
		}
		return false

	case And:
		for _, inner := range node.Predicates {
			if !Matches(inner, rec) {
				return false
			}
		}
		return true

	case Or:
		for _, inner := range node.Predicates {
			if Matches(inner, rec) {
				return true
			}
		}
		return false

	case Not:
		return !Matches(node.Predicate, rec)

	default:
		// Unreachable: the interface is sealed to this package.
		return false
	}
}

// valueEqual compares two values without tripping over non-comparable
// dynamic types: scalar kinds use direct comparison, arrays and
// objects fall back to deep equality.
func valueEqual(a, b rel.Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch a.(type) {
	case rel.String, rel.Int, rel.Bool, rel.Null:
		switch b.(type) {
		case rel.String, rel.Int, rel.Bool, rel.Null:
			return a == b
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
