package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/temcen/bookshelf/internal/cache"
	"github.com/temcen/bookshelf/internal/store"
	"github.com/temcen/bookshelf/pkg/models"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishRatingEvent(ctx context.Context, event models.RatingEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func TestStatisticsAggregator_RecordRating(t *testing.T) {
	env := newTestEnv(t)
	env.user("u1")
	env.user("u2")
	env.user("u3")
	env.book("b1", "Fantasy", "A", 1)
	ctx := context.Background()

	for user, score := range map[string]float64{"u1": 5, "u2": 4, "u3": 4} {
		_, err := env.svc.Statistics.RecordRating(ctx, user, "b1", score, nil)
		require.NoError(t, err)
	}

	book, err := env.store.FetchBookByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 4.33, book.AverageRating)
	assert.Equal(t, 3, book.RatingCount)

	user, err := env.store.FetchUserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 5.0, user.AverageRating)
	assert.Equal(t, 1, user.RatingCount)
}

func TestStatisticsAggregator_UpsertReplacesScore(t *testing.T) {
	env := newTestEnv(t)
	env.user("u1")
	env.book("b1", "Fantasy", "A", 1)
	ctx := context.Background()
	review := "changed my mind"

	_, err := env.svc.Statistics.RecordRating(ctx, "u1", "b1", 2, nil)
	require.NoError(t, err)
	rating, err := env.svc.Statistics.RecordRating(ctx, "u1", "b1", 5, &review)
	require.NoError(t, err)
	assert.Equal(t, 5.0, rating.Score)
	require.NotNil(t, rating.ReviewText)

	book, err := env.store.FetchBookByID(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 1, book.RatingCount)
	assert.Equal(t, 5.0, book.AverageRating)
}

func TestStatisticsAggregator_RejectsInvalidInput(t *testing.T) {
	env := newTestEnv(t)
	env.book("b1", "Fantasy", "A", 1)

	for _, score := range []float64{0, 0.99, 5.01, 6, -1} {
		_, err := env.svc.Statistics.RecordRating(context.Background(), "u1", "b1", score, nil)
		assert.ErrorIs(t, err, ErrInvalidInput, "score %v", score)
	}

	_, err := env.svc.Statistics.RecordRating(context.Background(), "", "b1", 3, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)

	ratings, err := env.store.FetchAllRatings(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ratings)
}

func TestStatisticsAggregator_UnknownBook(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.svc.Statistics.RecordRating(context.Background(), "u1", "ghost", 3, nil)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatisticsAggregator_RecomputeIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	env.user("u1")
	env.book("b1", "Fantasy", "A", 1)
	env.book("b2", "Fantasy", "A", 1)
	env.rate(t, "u1", "b1", 3)
	env.rate(t, "u1", "b2", 4)
	ctx := context.Background()

	first, err := env.svc.Statistics.RecomputeUserStats(ctx, "u1")
	require.NoError(t, err)
	second, err := env.svc.Statistics.RecomputeUserStats(ctx, "u1")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, models.DerivedStats{AverageRating: 3.5, RatingCount: 2}, second)

	empty, err := env.svc.Statistics.RecomputeBookStats(ctx, "never-rated")
	require.NoError(t, err)
	assert.Equal(t, models.DerivedStats{}, empty)
}

func TestStatisticsAggregator_InvalidatesDerivedCaches(t *testing.T) {
	env := newTestEnv(t)
	env.user("u1")
	env.book("b1", "Fantasy", "A", 1)
	ctx := context.Background()

	for _, key := range []string{
		cache.AllRatings(), cache.UserRatingsMap("u1"), cache.SimilarUsers("u1"),
		cache.SimilarBooks("b1"), cache.UserBasedRecs("u1"), cache.ItemBasedRecs("u1"),
		cache.PopularBooks(10), cache.BookStatistics("b1"), cache.UserStatistics("u1"), cache.AllBooks(),
	} {
		env.svc.Cache.Set(key, "stale", 0)
	}

	_, err := env.svc.Statistics.RecordRating(ctx, "u1", "b1", 4, nil)
	require.NoError(t, err)

	assert.Equal(t, 0, env.svc.Cache.Len())
}

func TestStatisticsAggregator_PublishesEvent(t *testing.T) {
	env := newTestEnv(t)
	env.user("u1")
	env.book("b1", "Fantasy", "A", 1)

	publisher := new(MockPublisher)
	publisher.On("PublishRatingEvent", mock.Anything, mock.MatchedBy(func(e models.RatingEvent) bool {
		return e.Type == models.EventRatingRecorded &&
			e.UserID == "u1" && e.BookID == "b1" && e.Score == 4 &&
			e.BookStats.RatingCount == 1 && e.EventID != ""
	})).Return(nil).Once()
	env.svc.Statistics.publisher = publisher

	_, err := env.svc.Statistics.RecordRating(context.Background(), "u1", "b1", 4, nil)
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestStatisticsAggregator_PublishFailureDoesNotFailRating(t *testing.T) {
	env := newTestEnv(t)
	env.user("u1")
	env.book("b1", "Fantasy", "A", 1)

	publisher := new(MockPublisher)
	publisher.On("PublishRatingEvent", mock.Anything, mock.Anything).Return(errors.New("broker down"))
	env.svc.Statistics.publisher = publisher

	rating, err := env.svc.Statistics.RecordRating(context.Background(), "u1", "b1", 4, nil)
	require.NoError(t, err)
	assert.Equal(t, 4.0, rating.Score)
}

func TestStatisticsAggregator_UserStatistics(t *testing.T) {
	env := newTestEnv(t)
	env.user("u1")
	env.book("b1", "Fantasy", "A", 1)
	env.book("b2", "Fantasy", "A", 1)
	env.rate(t, "u1", "b1", 5)
	env.rate(t, "u1", "b2", 2)
	env.store.MarkOwned("u1", "b1", "b3")
	ctx := context.Background()

	stats, err := env.svc.Statistics.UserStatistics(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.BooksRead)
	assert.Equal(t, 3.5, stats.AverageRating)
	assert.Equal(t, 2, stats.RatingCount)

	_, err = env.svc.Statistics.UserStatistics(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatisticsAggregator_BookStatistics(t *testing.T) {
	env := newTestEnv(t)
	env.book("b1", "Fantasy", "A", 1)
	env.rate(t, "u1", "b1", 5)
	env.rate(t, "u2", "b1", 5)
	env.rate(t, "u3", "b1", 2)
	ctx := context.Background()

	stats, err := env.svc.Statistics.BookStatistics(ctx, "b1")
	require.NoError(t, err)
	assert.Equal(t, 4.0, stats.AverageRating)
	assert.Equal(t, 3, stats.RatingCount)
	assert.Equal(t, map[int]int{1: 0, 2: 1, 3: 0, 4: 0, 5: 2}, stats.ScoreDistribution)

	_, err = env.svc.Statistics.BookStatistics(ctx, "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeriveStats_Rounding(t *testing.T) {
	ratings := []models.Rating{{Score: 1}, {Score: 2}, {Score: 2}}
	assert.Equal(t, models.DerivedStats{AverageRating: 1.67, RatingCount: 3}, deriveStats(ratings))
	assert.Equal(t, models.DerivedStats{}, deriveStats(nil))
}
