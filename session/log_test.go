package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relfold/relfold/rel"
)

func TestLogAppendPreservesOrder(t *testing.T) {
	var l Log

	l.Append(rel.NewCreate("Book", rel.Record{"id": rel.Int(1)}))
	l.Append(rel.NewCreate("Publisher", rel.Record{"id": rel.Int(1)}))
	l.Append(rel.NewDelete("Book", rel.IDs(rel.Int(1))))

	all := l.All()
	require.Len(t, all, 3)
	assert.Equal(t, rel.OpCreate, all[0].Op)
	assert.Equal(t, "Book", all[0].Entity)
	assert.Equal(t, "Publisher", all[1].Entity)
	assert.Equal(t, rel.OpDelete, all[2].Op)
}

func TestLogForEntitySubsequence(t *testing.T) {
	var l Log

	// Interleave two entities; the subsequence keeps its relative
	// order and nothing else.
	l.Append(rel.NewCreate("Book", rel.Record{"id": rel.Int(1)}))
	l.Append(rel.NewCreate("Publisher", rel.Record{"id": rel.Int(9)}))
	l.Append(rel.NewUpdate("Book", rel.IDs(rel.Int(1)), rel.Record{"title": rel.String("a")}))
	l.Append(rel.NewUpdate("Book", rel.IDs(rel.Int(1)), rel.Record{"title": rel.String("b")}))
	l.Append(rel.NewDelete("Publisher", rel.IDs(rel.Int(9))))

	books := l.ForEntity("Book")
	require.Len(t, books, 3)
	assert.Equal(t, rel.OpCreate, books[0].Op)
	assert.Equal(t, rel.String("a"), books[1].Patch["title"])
	assert.Equal(t, rel.String("b"), books[2].Patch["title"], "duplicate-id updates keep their order, later wins at fold")

	assert.Empty(t, l.ForEntity("Author"))
}

func TestLogAllReturnsCopy(t *testing.T) {
	var l Log
	l.Append(rel.NewCreate("Book", rel.Record{"id": rel.Int(1)}))

	all := l.All()
	all[0] = rel.NewDelete("Book", rel.IDs(rel.Int(1)))

	assert.Equal(t, rel.OpCreate, l.All()[0].Op)
}

func TestLogEntities(t *testing.T) {
	var l Log
	assert.Empty(t, l.Entities())

	l.Append(rel.NewCreate("Publisher", rel.Record{}))
	l.Append(rel.NewCreate("Book", rel.Record{}))
	l.Append(rel.NewCreate("Book", rel.Record{}))

	assert.Equal(t, []string{"Book", "Publisher"}, l.Entities())
}
