package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/temcen/bookshelf/internal/cache"
	"github.com/temcen/bookshelf/internal/config"
	"github.com/temcen/bookshelf/internal/store"
	"github.com/temcen/bookshelf/pkg/models"
)

// StatisticsAggregator keeps the denormalised average/count on users and
// books in step with the ratings table. Every recompute is a full rescan of
// the subject's ratings, so replaying it is harmless.
type StatisticsAggregator struct {
	store       store.Store
	ratings     *RatingRepository
	cache       *cache.Cache
	invalidator *cache.Invalidator
	publisher   RatingEventPublisher
	metrics     *MetricsCollector
	config      *config.RecommendationConfig
	logger      *logrus.Logger
	now         func() time.Time
}

func NewStatisticsAggregator(
	s store.Store,
	ratings *RatingRepository,
	c *cache.Cache,
	invalidator *cache.Invalidator,
	publisher RatingEventPublisher,
	metrics *MetricsCollector,
	cfg *config.RecommendationConfig,
	logger *logrus.Logger,
) *StatisticsAggregator {
	return &StatisticsAggregator{
		store:       s,
		ratings:     ratings,
		cache:       c,
		invalidator: invalidator,
		publisher:   publisher,
		metrics:     metrics,
		config:      cfg,
		logger:      logger,
		now:         time.Now,
	}
}

// RecordRating upserts the rating, refreshes the user's and the book's
// derived stats and drops every cache entry derived from either.
func (a *StatisticsAggregator) RecordRating(ctx context.Context, userID, bookID string, score float64, review *string) (*models.Rating, error) {
	if userID == "" || bookID == "" {
		return nil, fmt.Errorf("%w: user and book ids are required", ErrInvalidInput)
	}
	if err := ValidateScore(score); err != nil {
		return nil, err
	}

	if _, err := a.store.FetchBookByID(ctx, bookID); err != nil {
		return nil, err
	}

	rating, err := a.ratings.Upsert(ctx, models.Rating{
		UserID:     userID,
		BookID:     bookID,
		Score:      score,
		ReviewText: review,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save rating: %w", err)
	}
	a.metrics.RecordRating()

	userStats, bookStats, err := a.recomputeBoth(ctx, userID, bookID)
	// Ratings changed whether or not the write-back went through.
	a.invalidator.RatingChanged(userID, bookID)
	if err != nil {
		return nil, err
	}

	a.logger.WithFields(logrus.Fields{
		"user_id":      userID,
		"book_id":      bookID,
		"score":        score,
		"book_average": bookStats.AverageRating,
		"book_ratings": bookStats.RatingCount,
	}).Info("Rating recorded")

	a.publish(ctx, models.RatingEvent{
		EventID:    uuid.NewString(),
		Type:       models.EventRatingRecorded,
		UserID:     userID,
		BookID:     bookID,
		Score:      score,
		UserStats:  userStats,
		BookStats:  bookStats,
		OccurredAt: a.now().UTC(),
	})

	return &rating, nil
}

// RatingRemoved refreshes stats after a rating was deleted elsewhere.
func (a *StatisticsAggregator) RatingRemoved(ctx context.Context, userID, bookID string) error {
	_, _, err := a.recomputeBoth(ctx, userID, bookID)
	a.invalidator.RatingChanged(userID, bookID)
	return err
}

func (a *StatisticsAggregator) recomputeBoth(ctx context.Context, userID, bookID string) (models.DerivedStats, models.DerivedStats, error) {
	var userStats, bookStats models.DerivedStats

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		userStats, err = a.RecomputeUserStats(gctx, userID)
		return err
	})
	g.Go(func() error {
		var err error
		bookStats, err = a.RecomputeBookStats(gctx, bookID)
		return err
	})

	if err := g.Wait(); err != nil {
		return models.DerivedStats{}, models.DerivedStats{}, err
	}
	return userStats, bookStats, nil
}

// RecomputeUserStats rescans the user's ratings and writes the result back.
// A user record missing from the store is logged and skipped.
func (a *StatisticsAggregator) RecomputeUserStats(ctx context.Context, userID string) (models.DerivedStats, error) {
	ratings, err := a.store.FetchRatingsForUser(ctx, userID)
	if err != nil {
		return models.DerivedStats{}, fmt.Errorf("user %s ratings: %w", userID, err)
	}

	stats := deriveStats(ratings)
	if err := a.store.WriteUserStats(ctx, userID, stats); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return models.DerivedStats{}, fmt.Errorf("user %s stats write-back: %w", userID, err)
		}
		a.logger.WithField("user_id", userID).Warn("Skipping stats write-back for unknown user")
	}

	a.cache.Delete(cache.UserStatistics(userID))
	return stats, nil
}

// RecomputeBookStats rescans the book's ratings and writes the result back.
func (a *StatisticsAggregator) RecomputeBookStats(ctx context.Context, bookID string) (models.DerivedStats, error) {
	ratings, err := a.store.FetchRatingsForBook(ctx, bookID)
	if err != nil {
		return models.DerivedStats{}, fmt.Errorf("book %s ratings: %w", bookID, err)
	}

	stats := deriveStats(ratings)
	if err := a.store.WriteBookStats(ctx, bookID, stats); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return models.DerivedStats{}, fmt.Errorf("book %s stats write-back: %w", bookID, err)
		}
		a.logger.WithField("book_id", bookID).Warn("Skipping stats write-back for unknown book")
	}

	a.cache.Delete(cache.BookStatistics(bookID))
	return stats, nil
}

func (a *StatisticsAggregator) UserStatistics(ctx context.Context, userID string) (*models.UserStatistics, error) {
	return cache.GetOrLoad(ctx, a.cache, cache.UserStatistics(userID), a.config.Caching.UserStatsTTL, func(ctx context.Context) (*models.UserStatistics, error) {
		if _, err := a.store.FetchUserByID(ctx, userID); err != nil {
			return nil, err
		}

		ratings, err := a.store.FetchRatingsForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		owned, err := a.store.FetchOwnedBookIDs(ctx, userID)
		if err != nil {
			return nil, err
		}

		stats := deriveStats(ratings)
		return &models.UserStatistics{
			UserID:        userID,
			BooksRead:     len(owned),
			AverageRating: stats.AverageRating,
			RatingCount:   stats.RatingCount,
			ComputedAt:    a.now().UTC(),
		}, nil
	})
}

func (a *StatisticsAggregator) BookStatistics(ctx context.Context, bookID string) (*models.BookStatistics, error) {
	return cache.GetOrLoad(ctx, a.cache, cache.BookStatistics(bookID), a.config.Caching.BookStatsTTL, func(ctx context.Context) (*models.BookStatistics, error) {
		if _, err := a.store.FetchBookByID(ctx, bookID); err != nil {
			return nil, err
		}

		ratings, err := a.store.FetchRatingsForBook(ctx, bookID)
		if err != nil {
			return nil, err
		}

		stats := deriveStats(ratings)
		distribution := make(map[int]int, 5)
		for s := int(models.MinScore); s <= int(models.MaxScore); s++ {
			distribution[s] = 0
		}
		for _, r := range ratings {
			distribution[int(math.Round(r.Score))]++
		}

		return &models.BookStatistics{
			BookID:            bookID,
			AverageRating:     stats.AverageRating,
			RatingCount:       stats.RatingCount,
			ScoreDistribution: distribution,
			ComputedAt:        a.now().UTC(),
		}, nil
	})
}

func (a *StatisticsAggregator) RatingsForUser(ctx context.Context, userID string) ([]models.Rating, error) {
	return a.ratings.RatingsForUser(ctx, userID)
}

func (a *StatisticsAggregator) RatingsForBook(ctx context.Context, bookID string) ([]models.Rating, error) {
	return a.ratings.RatingsForBook(ctx, bookID)
}

func (a *StatisticsAggregator) publish(ctx context.Context, event models.RatingEvent) {
	if a.publisher == nil {
		return
	}
	if err := a.publisher.PublishRatingEvent(ctx, event); err != nil {
		a.logger.WithError(err).WithFields(logrus.Fields{
			"user_id": event.UserID,
			"book_id": event.BookID,
		}).Warn("Failed to publish rating event")
	}
}

// deriveStats averages the scores, rounded to two decimals.
func deriveStats(ratings []models.Rating) models.DerivedStats {
	if len(ratings) == 0 {
		return models.DerivedStats{}
	}
	sum := 0.0
	for _, r := range ratings {
		sum += r.Score
	}
	avg := sum / float64(len(ratings))
	return models.DerivedStats{
		AverageRating: math.Round(avg*100) / 100,
		RatingCount:   len(ratings),
	}
}
