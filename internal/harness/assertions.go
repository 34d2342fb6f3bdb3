package harness

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/relfold/relfold/branch"
	"github.com/relfold/relfold/rel"
	"github.com/relfold/relfold/session"
)

// AssertionError is returned when an assertion fails.
// It includes expected and actual outcomes to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions checks every assertion against the final root and
// the result's recorded cycle errors. Returns one message per failed
// assertion; an empty slice means all assertions held.
func EvaluateAssertions(result *Result, assertions []Assertion, root session.Root) []string {
	var failures []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertIDs:
			err = assertIDs(root, a)
		case AssertRecord:
			err = assertRecord(root, a)
		case AssertCount:
			err = assertCount(root, a)
		case AssertAbsent:
			err = assertAbsent(root, a)
		case AssertError:
			err = assertErrorLogged(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			failures = append(failures, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return failures
}

// assertIDs checks that the entity's id list matches exactly, in order.
func assertIDs(root session.Root, a Assertion) error {
	want, err := toIDs(a.IDs)
	if err != nil {
		return err
	}

	b := branchFor(root, a.Entity)
	got := b.IDList()

	if len(got) == len(want) {
		match := true
		for i := range got {
			if !reflect.DeepEqual(got[i], want[i]) {
				match = false
				break
			}
		}
		if match {
			return nil
		}
	}

	return &AssertionError{
		Type:     AssertIDs,
		Expected: fmt.Sprintf("%s ids %s", a.Entity, formatValues(want)),
		Actual:   formatValues(got),
	}
}

// assertRecord checks the fields of one record (subset semantics).
func assertRecord(root session.Root, a Assertion) error {
	id, err := rel.FromAny(a.ID)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}

	b := branchFor(root, a.Entity)
	rec, ok := b.Get(id)
	if !ok {
		return &AssertionError{
			Type:     AssertRecord,
			Expected: fmt.Sprintf("%s record with id %s", a.Entity, formatValue(id)),
			Actual:   fmt.Sprintf("not found; branch ids %s", formatValues(b.IDList())),
		}
	}

	fields := make([]string, 0, len(a.Expect))
	for field := range a.Expect {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	for _, field := range fields {
		want, err := rel.FromAny(a.Expect[field])
		if err != nil {
			return fmt.Errorf("expect[%q]: %w", field, err)
		}
		got, present := rec[field]
		if !present {
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("%s[%s].%s = %s", a.Entity, formatValue(id), field, formatValue(want)),
				Actual:   "field absent",
			}
		}
		if !reflect.DeepEqual(got, want) {
			return &AssertionError{
				Type:     AssertRecord,
				Expected: fmt.Sprintf("%s[%s].%s = %s", a.Entity, formatValue(id), field, formatValue(want)),
				Actual:   formatValue(got),
			}
		}
	}

	return nil
}

// assertCount checks the entity's record count.
func assertCount(root session.Root, a Assertion) error {
	b := branchFor(root, a.Entity)
	if b.Len() != a.Count {
		return &AssertionError{
			Type:     AssertCount,
			Expected: fmt.Sprintf("%d records in %s", a.Count, a.Entity),
			Actual:   fmt.Sprintf("%d records", b.Len()),
		}
	}
	return nil
}

// assertAbsent checks that no record is stored under the id.
func assertAbsent(root session.Root, a Assertion) error {
	id, err := rel.FromAny(a.ID)
	if err != nil {
		return fmt.Errorf("id: %w", err)
	}

	b := branchFor(root, a.Entity)
	if _, ok := b.Get(id); ok {
		return &AssertionError{
			Type:     AssertAbsent,
			Expected: fmt.Sprintf("no %s record with id %s", a.Entity, formatValue(id)),
			Actual:   "record found",
		}
	}
	return nil
}

// assertErrorLogged checks that some recorded cycle error contains the
// substring.
func assertErrorLogged(result *Result, a Assertion) error {
	for _, msg := range result.FoldErrors {
		if strings.Contains(msg, a.Contains) {
			return nil
		}
	}

	actual := "no cycle errors"
	if len(result.FoldErrors) > 0 {
		actual = fmt.Sprintf("cycle errors: %s", strings.Join(result.FoldErrors, "; "))
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: fmt.Sprintf("a cycle error containing %q", a.Contains),
		Actual:   actual,
	}
}

// branchFor reads the entity's branch, treating absence as empty the
// way session reads do.
func branchFor(root session.Root, entity string) branch.Branch {
	b, _ := root.Branch(entity)
	return b
}

// formatValue renders one value for assertion messages.
func formatValue(v rel.Value) string {
	data, err := rel.MarshalValue(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// formatValues renders an id list for assertion messages.
func formatValues(vs []rel.Value) string {
	return formatValue(rel.Array(vs))
}
