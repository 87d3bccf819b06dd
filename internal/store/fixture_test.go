package store

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleFixture = `
books:
  - id: b1
    title: Dune
    author: Frank Herbert
    genre: Science Fiction
    created_at: 2024-01-10T00:00:00Z
  - id: b2
    title: Hyperion
    author: Dan Simmons
    genre: Science Fiction
users:
  - id: u1
    email: u1@example.com
  - id: admin
    role: admin
ratings:
  - {user: u1, book: b1, score: 5, review: "A classic"}
  - {user: u1, book: b2, score: 3}
owned:
  u1: [b1]
`

func TestParseFixtureAndSeed(t *testing.T) {
	f, err := ParseFixture(strings.NewReader(sampleFixture))
	require.NoError(t, err)
	require.Len(t, f.Books, 2)

	m := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, m.Seed(ctx, f))

	book, err := m.FetchBookByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, "Frank Herbert", book.Author)
	assert.Equal(t, 2024, book.CreatedAt.Year())

	admin, err := m.FetchUserByID(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, "admin", admin.Role)

	ratings, err := m.FetchRatingsForUser(ctx, "u1")
	require.NoError(t, err)
	assert.Len(t, ratings, 2)

	owned, err := m.FetchOwnedBookIDs(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, owned)
}

func TestSeed_RejectsDanglingRating(t *testing.T) {
	f, err := ParseFixture(strings.NewReader(`
books: [{id: b1}]
ratings: [{user: ghost, book: b1, score: 4}]
`))
	require.NoError(t, err)

	err = NewMemoryStore().Seed(context.Background(), f)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSeed_RejectsOutOfRangeScore(t *testing.T) {
	f, err := ParseFixture(strings.NewReader(`
books: [{id: b1}]
users: [{id: u1}]
ratings: [{user: u1, book: b1, score: 9}]
`))
	require.NoError(t, err)
	assert.Error(t, NewMemoryStore().Seed(context.Background(), f))
}

func TestParseFixture_UnknownField(t *testing.T) {
	_, err := ParseFixture(strings.NewReader("books:\n  - id: b1\n    rating: 5\n"))
	assert.Error(t, err)
}
