package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopularityRanker_VolumeBeatsAverage(t *testing.T) {
	env := newTestEnv(t)
	env.book("many", "Genre", "A", 3)
	env.book("few", "Genre", "B", 2)
	env.book("none", "Genre", "C", 1)

	for i := 0; i < 5; i++ {
		env.rate(t, fmt.Sprintf("u%d", i), "many", 4)
	}
	env.rate(t, "u1", "few", 5)
	env.rate(t, "u2", "few", 5)

	books, err := env.svc.Popularity.Popular(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"many", "few", "none"}, bookIDs(books))
}

func TestPopularityRanker_TieBreaks(t *testing.T) {
	env := newTestEnv(t)
	env.book("older", "Genre", "A", 10)
	env.book("newer", "Genre", "B", 1)
	env.book("better", "Genre", "C", 20)
	env.rate(t, "u1", "older", 3)
	env.rate(t, "u1", "newer", 3)
	env.rate(t, "u1", "better", 5)

	books, err := env.svc.Popularity.Popular(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"better", "newer", "older"}, bookIDs(books))
}

func TestPopularityRanker_Limit(t *testing.T) {
	env := newTestEnv(t)
	env.catalogOf(8)

	books, err := env.svc.Popularity.Popular(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, books, 5)

	books, err = env.svc.Popularity.Popular(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, books)
}

func TestPopularityRanker_NewReleases(t *testing.T) {
	env := newTestEnv(t)
	env.book("old", "Genre", "A", 30)
	env.book("fresh", "Genre", "B", 0)
	env.book("mid", "Genre", "C", 10)

	books, err := env.svc.Popularity.NewReleases(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"fresh", "mid"}, bookIDs(books))
}

func TestPopularityRanker_ReflectsRecordedRating(t *testing.T) {
	env := newTestEnv(t)
	env.user("u1")
	env.user("u2")
	env.book("a", "Genre", "A", 2)
	env.book("b", "Genre", "B", 1)
	env.rate(t, "u1", "a", 4)

	books, err := env.svc.Popularity.Popular(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, bookIDs(books))

	ctx := context.Background()
	_, err = env.svc.Statistics.RecordRating(ctx, "u1", "b", 5, nil)
	require.NoError(t, err)
	_, err = env.svc.Statistics.RecordRating(ctx, "u2", "b", 5, nil)
	require.NoError(t, err)

	books, err = env.svc.Popularity.Popular(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "a"}, bookIDs(books))
	assert.Equal(t, 2, books[0].RatingCount, "catalog entry reflects the write-back")
}
