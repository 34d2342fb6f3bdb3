package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relfold/relfold/branch"
	"github.com/relfold/relfold/rel"
)

func TestGetCapturesSnapshot(t *testing.T) {
	schemas := librarySchemas(t)
	s := Open(schemas, seededRoot(t, schemas))

	e, err := s.Get("Book", rel.Int(1))
	require.NoError(t, err)

	assert.Equal(t, "Book", e.Name())
	assert.Equal(t, rel.Int(1), e.ID())
	assert.True(t, e.Exists())

	title, ok := e.Field("title")
	require.True(t, ok)
	assert.Equal(t, rel.String("a"), title)

	// The returned record is a copy: mutating it cannot reach the
	// facade's snapshot.
	rec := e.Record()
	rec["title"] = rel.String("tampered")
	title, _ = e.Field("title")
	assert.Equal(t, rel.String("a"), title)
}

func TestGetAbsentID(t *testing.T) {
	schemas := librarySchemas(t)
	s := Open(schemas, seededRoot(t, schemas))

	e, err := s.Get("Book", rel.Int(99))
	require.NoError(t, err, "probing an absent id is normal, not an error")
	assert.False(t, e.Exists())

	_, ok := e.Field("title")
	assert.False(t, ok)

	// Writes against the absent id still append; the fold skips them.
	require.NoError(t, e.Update(rel.Record{"title": rel.String("ghost")}))
	next, err := s.NextState("Book")
	require.NoError(t, err)
	cur, _ := s.CurrentState("Book")
	assert.True(t, next.Equal(cur))
}

func TestGetErrors(t *testing.T) {
	s := Open(librarySchemas(t), NewRoot())

	_, err := s.Get("Ghost", rel.Int(1))
	assert.Error(t, err)

	_, err = s.Get("Book", rel.Array{rel.Int(1)})
	assert.Error(t, err)
}

func TestFacadeIsPointInTime(t *testing.T) {
	schemas := librarySchemas(t)
	s := Open(schemas, seededRoot(t, schemas))

	e, err := s.Get("Book", rel.Int(1))
	require.NoError(t, err)

	require.NoError(t, e.Set("title", rel.String("c")))

	// The write never touches the snapshot.
	title, _ := e.Field("title")
	assert.Equal(t, rel.String("a"), title)

	// A fresh facade reads current state, which is also pre-fold.
	again, err := s.Get("Book", rel.Int(1))
	require.NoError(t, err)
	title, _ = again.Field("title")
	assert.Equal(t, rel.String("a"), title)

	// Only the fold shows the effect.
	next, err := s.NextState("Book")
	require.NoError(t, err)
	rec, _ := next.Get(rel.Int(1))
	assert.Equal(t, rel.String("c"), rec["title"])
}

func TestSetAppendsSingleUpdate(t *testing.T) {
	schemas := librarySchemas(t)
	s := Open(schemas, seededRoot(t, schemas))

	e, err := s.Get("Book", rel.Int(1))
	require.NoError(t, err)
	require.NoError(t, e.Set("title", rel.String("c")))

	all := s.Mutations()
	require.Len(t, all, 1)
	assert.Equal(t, rel.OpUpdate, all[0].Op)
	assert.Equal(t, []rel.Value{rel.Int(1)}, all[0].IDs)
	assert.Equal(t, rel.Record{"title": rel.String("c")}, all[0].Patch)
}

func TestUpdateBulkAppendsSingleMutation(t *testing.T) {
	schemas := librarySchemas(t)
	s := Open(schemas, seededRoot(t, schemas))

	e, err := s.Get("Book", rel.Int(1))
	require.NoError(t, err)
	require.NoError(t, e.Update(rel.Record{
		"title":       rel.String("c"),
		"publisherId": rel.Int(9),
	}))

	all := s.Mutations()
	require.Len(t, all, 1, "bulk update merges all fields into one mutation")
	assert.Len(t, all[0].Patch, 2)
}

func TestUpdateRejectsIDReassignment(t *testing.T) {
	schemas := librarySchemas(t)
	s := Open(schemas, seededRoot(t, schemas))

	e, err := s.Get("Book", rel.Int(1))
	require.NoError(t, err)

	err = e.Set("id", rel.Int(9))
	require.Error(t, err)
	assert.True(t, rel.IsInvalidMutation(err))
	assert.Empty(t, s.Mutations())
}

func TestDeleteKeepsFacadeReadable(t *testing.T) {
	schemas := librarySchemas(t)
	s := Open(schemas, seededRoot(t, schemas))

	e, err := s.Get("Book", rel.Int(1))
	require.NoError(t, err)
	require.NoError(t, e.Delete())

	// Deletion affects future folds, never the captured snapshot.
	assert.True(t, e.Exists())
	title, ok := e.Field("title")
	require.True(t, ok)
	assert.Equal(t, rel.String("a"), title)

	next, err := s.NextState("Book")
	require.NoError(t, err)
	assert.Equal(t, []rel.Value{rel.Int(2)}, next.IDList())
}

func TestFacadeEqual(t *testing.T) {
	schemas := librarySchemas(t)

	// Two facades for the same row with different cached values:
	// still equal.
	s1 := Open(schemas, seededRoot(t, schemas))
	e1, err := s1.Get("Book", rel.Int(1))
	require.NoError(t, err)

	retitled := seededRoot(t, schemas)
	bookSchema, _ := schemas.Get("Book")
	cur, _ := retitled.Branch("Book")
	tbl := branch.NewTable(bookSchema)
	retitled = retitled.With("Book", tbl.Update(cur, rel.IDs(rel.Int(1)), rel.Record{"title": rel.String("z")}))

	s2 := Open(schemas, retitled)
	e2, err := s2.Get("Book", rel.Int(1))
	require.NoError(t, err)

	assert.True(t, e1.Equal(e2))
	assert.True(t, e2.Equal(e1))

	// Different id or entity: unequal.
	other, err := s1.Get("Book", rel.Int(2))
	require.NoError(t, err)
	assert.False(t, e1.Equal(other))

	publisher, err := s1.Get("Publisher", rel.Int(1))
	require.NoError(t, err)
	assert.False(t, e1.Equal(publisher))
}

func TestPendingFacadesNeverEqual(t *testing.T) {
	s := Open(librarySchemas(t), NewRoot())

	e1, err := s.Create("Book", rel.Record{"title": rel.String("a")})
	require.NoError(t, err)
	e2, err := s.Create("Book", rel.Record{"title": rel.String("a")})
	require.NoError(t, err)

	// Until the fold names them, pending creates are distinct rows.
	assert.False(t, e1.Equal(e2))
	assert.False(t, e1.Equal(e1))
}

func TestCreateReturnsPendingFacade(t *testing.T) {
	schemas := librarySchemas(t)
	s := Open(schemas, seededRoot(t, schemas))

	e, err := s.Create("Book", rel.Record{"id": rel.Int(3), "title": rel.String("c")})
	require.NoError(t, err)

	assert.Equal(t, rel.Int(3), e.ID())
	assert.False(t, e.Exists(), "a created record is pending until the next fold")
	title, _ := e.Field("title")
	assert.Equal(t, rel.String("c"), title)

	next, err := s.NextState("Book")
	require.NoError(t, err)
	assert.Equal(t, []rel.Value{rel.Int(1), rel.Int(2), rel.Int(3)}, next.IDList())
}

func TestCreateWithoutID(t *testing.T) {
	s := Open(librarySchemas(t), NewRoot())

	e, err := s.Create("Book", rel.Record{"title": rel.String("auto")})
	require.NoError(t, err)
	assert.Nil(t, e.ID())

	// Unaddressed until the fold assigns an id.
	err = e.Set("title", rel.String("x"))
	require.Error(t, err)
	assert.True(t, rel.IsInvalidMutation(err))
	err = e.Delete()
	require.Error(t, err)
	assert.True(t, rel.IsInvalidMutation(err))

	next, err := s.NextState("Book")
	require.NoError(t, err)
	rec, ok := next.Get(rel.Int(0))
	require.True(t, ok, "the fold assigns the first fresh id")
	assert.Equal(t, rel.String("auto"), rec["title"])
}

func TestCreateSplitsManyToMany(t *testing.T) {
	schemas := librarySchemas(t)
	s := Open(schemas, NewRoot())

	e, err := s.Create("Author", rel.Record{
		"id":    rel.Int(1),
		"name":  rel.String("Ann"),
		"books": rel.Array{rel.Int(10), rel.Int(20)},
	})
	require.NoError(t, err)

	// The owner record is stored without the relation field.
	_, ok := e.Field("books")
	assert.False(t, ok)

	all := s.Mutations()
	require.Len(t, all, 3)

	assert.Equal(t, "Author", all[0].Entity)
	assert.Equal(t, rel.Record{"id": rel.Int(1), "name": rel.String("Ann")}, all[0].Payload)

	assert.Equal(t, "AuthorBooks", all[1].Entity)
	assert.Equal(t, rel.Record{"fromAuthorId": rel.Int(1), "toBookId": rel.Int(10)}, all[1].Payload)

	assert.Equal(t, "AuthorBooks", all[2].Entity)
	assert.Equal(t, rel.Record{"fromAuthorId": rel.Int(1), "toBookId": rel.Int(20)}, all[2].Payload)

	// Through rows fold into their own branch with fresh ids.
	through, err := s.NextState("AuthorBooks")
	require.NoError(t, err)
	assert.Equal(t, []rel.Value{rel.Int(0), rel.Int(1)}, through.IDList())

	authors, err := s.NextState("Author")
	require.NoError(t, err)
	rec, _ := authors.Get(rel.Int(1))
	_, stored := rec["books"]
	assert.False(t, stored, "no branch record ever embeds a relation")
}

func TestCreateManyToManyRequiresOwnerID(t *testing.T) {
	s := Open(librarySchemas(t), NewRoot())

	_, err := s.Create("Author", rel.Record{
		"name":  rel.String("Ann"),
		"books": rel.Array{rel.Int(10)},
	})
	require.Error(t, err)
	assert.True(t, rel.IsInvalidMutation(err))
	assert.Empty(t, s.Mutations(), "a rejected create leaves the log untouched")
}

func TestCreateEmptyManyToManyArray(t *testing.T) {
	s := Open(librarySchemas(t), NewRoot())

	// Nothing to relate, so no owner id is needed.
	_, err := s.Create("Author", rel.Record{
		"name":  rel.String("Ann"),
		"books": rel.Array{},
	})
	require.NoError(t, err)

	all := s.Mutations()
	require.Len(t, all, 1)
	assert.Equal(t, "Author", all[0].Entity)
}

func TestCreateManyToManyShape(t *testing.T) {
	s := Open(librarySchemas(t), NewRoot())

	// Not an array.
	_, err := s.Create("Author", rel.Record{
		"id":    rel.Int(1),
		"books": rel.String("10"),
	})
	require.Error(t, err)
	assert.True(t, rel.IsInvalidMutation(err))

	// Non-scalar target id.
	_, err = s.Create("Author", rel.Record{
		"id":    rel.Int(1),
		"books": rel.Array{rel.Array{rel.Int(10)}},
	})
	require.Error(t, err)
	assert.True(t, rel.IsInvalidMutation(err))

	assert.Empty(t, s.Mutations())
}

func TestCreateSelfReferenceManyToMany(t *testing.T) {
	schemas, err := rel.ResolveSchemas(map[string]rel.Declaration{
		"Person": {Fields: map[string]rel.Field{
			"name":    {Kind: rel.KindAttribute},
			"friends": {Kind: rel.KindManyToMany, To: rel.SelfReference},
		}},
	})
	require.NoError(t, err)

	s := Open(schemas, NewRoot())
	_, err = s.Create("Person", rel.Record{
		"id":      rel.Int(1),
		"friends": rel.Array{rel.Int(2)},
	})
	require.NoError(t, err)

	all := s.Mutations()
	require.Len(t, all, 2)
	assert.Equal(t, "PersonFriends", all[1].Entity)
	assert.Equal(t, rel.Record{"fromPersonId": rel.Int(1), "toPersonId": rel.Int(2)}, all[1].Payload)
}

func TestCreateErrors(t *testing.T) {
	s := Open(librarySchemas(t), NewRoot())

	_, err := s.Create("Ghost", rel.Record{})
	require.Error(t, err)
	assert.True(t, rel.IsInvalidMutation(err))

	_, err = s.Finalize()
	require.NoError(t, err)

	_, err = s.Create("Book", rel.Record{})
	require.Error(t, err)
	assert.True(t, IsSessionClosed(err))
}
