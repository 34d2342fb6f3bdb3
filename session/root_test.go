package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relfold/relfold/branch"
	"github.com/relfold/relfold/rel"
)

func singleBookBranch(t *testing.T) branch.Branch {
	t.Helper()
	tbl := branch.NewTable(rel.Schema{Name: "Book", IDAttribute: "id", Fields: map[string]rel.Field{
		"title": {Kind: rel.KindAttribute},
	}})
	b, err := tbl.Insert(tbl.Empty(), rel.Record{"id": rel.Int(1), "title": rel.String("a")})
	require.NoError(t, err)
	return b
}

func TestRootZeroValue(t *testing.T) {
	var r Root

	assert.Equal(t, 0, r.Len())
	assert.Empty(t, r.Entities())

	b, ok := r.Branch("Book")
	assert.False(t, ok)
	assert.Equal(t, 0, b.Len(), "absent entity reads as the empty branch")
}

func TestRootOfCopiesInput(t *testing.T) {
	books := singleBookBranch(t)
	input := map[string]branch.Branch{"Book": books}

	r := RootOf(input)
	delete(input, "Book")

	_, ok := r.Branch("Book")
	assert.True(t, ok, "root must not share the caller's map")
}

func TestRootWithLeavesReceiverUnchanged(t *testing.T) {
	r := NewRoot()
	r2 := r.With("Book", singleBookBranch(t))

	assert.Equal(t, 0, r.Len())
	assert.Equal(t, 1, r2.Len())
	assert.Equal(t, []string{"Book"}, r2.Entities())
}

func TestRootEqual(t *testing.T) {
	books := singleBookBranch(t)

	r1 := NewRoot().With("Book", books)
	r2 := NewRoot().With("Book", books)
	assert.True(t, r1.Equal(r2))

	// Structural: storing an empty branch is not the same as absence.
	r3 := r1.With("Author", branch.Branch{})
	assert.False(t, r1.Equal(r3))
	assert.False(t, r3.Equal(r1))

	// A differing branch breaks equality.
	tbl := branch.NewTable(rel.Schema{Name: "Book", IDAttribute: "id"})
	other, err := tbl.Insert(books, rel.Record{"id": rel.Int(2)})
	require.NoError(t, err)
	assert.False(t, r1.Equal(r1.With("Book", other)))
}

func TestRootCanonicalJSON(t *testing.T) {
	r := NewRoot().
		With("Book", singleBookBranch(t)).
		With("Author", branch.Branch{})

	got, err := r.CanonicalJSON()
	require.NoError(t, err)

	want := `{"Author":{"ids":[],"next_id":0,"records":[]},` +
		`"Book":{"ids":[1],"next_id":2,"records":[{"id":1,"title":"a"}]}}`
	assert.Equal(t, want, string(got))
}

func TestRootHashDeterministic(t *testing.T) {
	build := func() Root {
		return NewRoot().With("Book", singleBookBranch(t))
	}

	h1, err := build().Hash()
	require.NoError(t, err)
	h2, err := build().Hash()
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	empty, err := NewRoot().Hash()
	require.NoError(t, err)
	assert.NotEqual(t, h1, empty)
}
