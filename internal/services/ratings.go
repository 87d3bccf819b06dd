package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/cache"
	"github.com/temcen/bookshelf/internal/config"
	"github.com/temcen/bookshelf/internal/store"
	"github.com/temcen/bookshelf/pkg/models"
)

// ErrInvalidInput is returned for requests the core refuses to process, such
// as a score outside 1..5.
var ErrInvalidInput = errors.New("invalid input")

func ValidateScore(score float64) error {
	if score < models.MinScore || score > models.MaxScore {
		return fmt.Errorf("%w: score %v must be between %v and %v", ErrInvalidInput, score, models.MinScore, models.MaxScore)
	}
	return nil
}

// RatingRepository reads ratings through the cache and reshapes them into
// rating vectors. Returned slices and maps are shared with the cache and must
// not be modified.
type RatingRepository struct {
	store  store.RatingStore
	cache  *cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewRatingRepository(s store.RatingStore, c *cache.Cache, cfg *config.RecommendationConfig, logger *logrus.Logger) *RatingRepository {
	return &RatingRepository{
		store:  s,
		cache:  c,
		ttl:    cfg.Caching.RatingsTTL,
		logger: logger,
	}
}

func (r *RatingRepository) AllRatings(ctx context.Context) ([]models.Rating, error) {
	return cache.GetOrLoad(ctx, r.cache, cache.AllRatings(), r.ttl, func(ctx context.Context) ([]models.Rating, error) {
		ratings, err := r.store.FetchAllRatings(ctx)
		if err != nil {
			return nil, err
		}
		r.logger.WithField("ratings", len(ratings)).Debug("Loaded all ratings")
		return ratings, nil
	})
}

// UserVector returns the user's scores keyed by book id. A user without
// ratings yields an empty vector.
func (r *RatingRepository) UserVector(ctx context.Context, userID string) (models.RatingVector, error) {
	return cache.GetOrLoad(ctx, r.cache, cache.UserRatingsMap(userID), r.ttl, func(ctx context.Context) (models.RatingVector, error) {
		ratings, err := r.store.FetchRatingsForUser(ctx, userID)
		if err != nil {
			return nil, err
		}
		vec := make(models.RatingVector, len(ratings))
		for _, rating := range ratings {
			vec[rating.BookID] = rating.Score
		}
		return vec, nil
	})
}

// UserVectors groups all ratings by user.
func (r *RatingRepository) UserVectors(ctx context.Context) (map[string]models.RatingVector, error) {
	ratings, err := r.AllRatings(ctx)
	if err != nil {
		return nil, err
	}
	return groupRatings(ratings, func(rt models.Rating) (string, string) { return rt.UserID, rt.BookID }), nil
}

// BookVectors groups all ratings by book.
func (r *RatingRepository) BookVectors(ctx context.Context) (map[string]models.RatingVector, error) {
	ratings, err := r.AllRatings(ctx)
	if err != nil {
		return nil, err
	}
	return groupRatings(ratings, func(rt models.Rating) (string, string) { return rt.BookID, rt.UserID }), nil
}

func groupRatings(ratings []models.Rating, keys func(models.Rating) (outer, inner string)) map[string]models.RatingVector {
	out := make(map[string]models.RatingVector)
	for _, rating := range ratings {
		outer, inner := keys(rating)
		vec, ok := out[outer]
		if !ok {
			vec = make(models.RatingVector)
			out[outer] = vec
		}
		vec[inner] = rating.Score
	}
	return out
}

func (r *RatingRepository) RatingsForUser(ctx context.Context, userID string) ([]models.Rating, error) {
	return r.store.FetchRatingsForUser(ctx, userID)
}

func (r *RatingRepository) RatingsForBook(ctx context.Context, bookID string) ([]models.Rating, error) {
	return r.store.FetchRatingsForBook(ctx, bookID)
}

func (r *RatingRepository) Upsert(ctx context.Context, rating models.Rating) (models.Rating, error) {
	return r.store.UpsertRating(ctx, rating)
}
