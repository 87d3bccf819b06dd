package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/cache"
	"github.com/temcen/bookshelf/internal/config"
	"github.com/temcen/bookshelf/pkg/models"
)

// UserBasedRecommender suggests books liked by users whose ratings point the
// same way as the target user's.
type UserBasedRecommender struct {
	ratings *RatingRepository
	catalog *BookCatalog
	cache   *cache.Cache
	topN    int
	ttl     time.Duration
	logger  *logrus.Logger
}

func NewUserBasedRecommender(
	ratings *RatingRepository,
	catalog *BookCatalog,
	c *cache.Cache,
	cfg *config.RecommendationConfig,
	logger *logrus.Logger,
) *UserBasedRecommender {
	return &UserBasedRecommender{
		ratings: ratings,
		catalog: catalog,
		cache:   c,
		topN:    cfg.SimilarUsers,
		ttl:     cfg.Caching.RecommendationsTTL,
		logger:  logger,
	}
}

// SimilarUsers returns up to topN users with positive similarity, best first.
func (r *UserBasedRecommender) SimilarUsers(ctx context.Context, userID string) ([]models.SimilarityScore, error) {
	return cache.GetOrLoadWhen(ctx, r.cache, cache.SimilarUsers(userID), r.ttl, func(ctx context.Context) ([]models.SimilarityScore, error) {
		target, err := r.ratings.UserVector(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(target) == 0 {
			return []models.SimilarityScore{}, nil
		}

		vectors, err := r.ratings.UserVectors(ctx)
		if err != nil {
			return nil, err
		}

		return rankSimilar(userID, target, vectors, r.topN), nil
	}, nonEmpty[models.SimilarityScore])
}

// Candidates is the full ranked list of unrated books, weighted by
// similarity times the neighbour's rating and summed across neighbours.
func (r *UserBasedRecommender) Candidates(ctx context.Context, userID string) ([]models.RecommendationCandidate, error) {
	return cache.GetOrLoadWhen(ctx, r.cache, cache.UserBasedRecs(userID), r.ttl, func(ctx context.Context) ([]models.RecommendationCandidate, error) {
		target, err := r.ratings.UserVector(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(target) == 0 {
			return []models.RecommendationCandidate{}, nil
		}

		neighbours, err := r.SimilarUsers(ctx, userID)
		if err != nil {
			return nil, err
		}
		if len(neighbours) == 0 {
			return []models.RecommendationCandidate{}, nil
		}

		vectors, err := r.ratings.UserVectors(ctx)
		if err != nil {
			return nil, err
		}

		scores := make(map[string]float64)
		for _, n := range neighbours {
			for bookID, score := range vectors[n.SubjectID] {
				if _, rated := target[bookID]; rated {
					continue
				}
				scores[bookID] += n.Score * score
			}
		}

		candidates := rankCandidates(scores)
		r.logger.WithFields(logrus.Fields{
			"user_id":    userID,
			"neighbours": len(neighbours),
			"candidates": len(candidates),
		}).Debug("Computed user-based candidates")
		return candidates, nil
	}, nonEmpty[models.RecommendationCandidate])
}

func (r *UserBasedRecommender) Recommend(ctx context.Context, userID string, limit int) ([]models.Book, error) {
	candidates, err := r.Candidates(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.catalog.BooksInOrder(ctx, topCandidateIDs(candidates, limit))
}
