package services

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/cache"
	"github.com/temcen/bookshelf/internal/config"
	"github.com/temcen/bookshelf/pkg/models"
)

// ItemBasedRecommender expands the books a user liked into books rated
// similarly by the whole user base.
type ItemBasedRecommender struct {
	ratings        *RatingRepository
	catalog        *BookCatalog
	cache          *cache.Cache
	topN           int
	likedThreshold float64
	ttl            time.Duration
	logger         *logrus.Logger
}

func NewItemBasedRecommender(
	ratings *RatingRepository,
	catalog *BookCatalog,
	c *cache.Cache,
	cfg *config.RecommendationConfig,
	logger *logrus.Logger,
) *ItemBasedRecommender {
	return &ItemBasedRecommender{
		ratings:        ratings,
		catalog:        catalog,
		cache:          c,
		topN:           cfg.SimilarBooks,
		likedThreshold: cfg.LikedThreshold,
		ttl:            cfg.Caching.RecommendationsTTL,
		logger:         logger,
	}
}

// SimilarBooks returns the book's nearest neighbours by item-item cosine
// similarity. The result does not depend on who asks.
func (r *ItemBasedRecommender) SimilarBooks(ctx context.Context, bookID string) ([]models.SimilarityScore, error) {
	return cache.GetOrLoadWhen(ctx, r.cache, cache.SimilarBooks(bookID), r.ttl, func(ctx context.Context) ([]models.SimilarityScore, error) {
		vectors, err := r.ratings.BookVectors(ctx)
		if err != nil {
			return nil, err
		}
		target := vectors[bookID]
		if len(target) == 0 {
			return []models.SimilarityScore{}, nil
		}
		return rankSimilar(bookID, target, vectors, r.topN), nil
	}, nonEmpty[models.SimilarityScore])
}

func (r *ItemBasedRecommender) Candidates(ctx context.Context, userID string) ([]models.RecommendationCandidate, error) {
	return cache.GetOrLoadWhen(ctx, r.cache, cache.ItemBasedRecs(userID), r.ttl, func(ctx context.Context) ([]models.RecommendationCandidate, error) {
		userVec, err := r.ratings.UserVector(ctx, userID)
		if err != nil {
			return nil, err
		}

		seeds := r.seedBooks(userVec)
		if len(seeds) == 0 {
			return []models.RecommendationCandidate{}, nil
		}

		scores := make(map[string]float64)
		for _, seed := range seeds {
			similar, err := r.SimilarBooks(ctx, seed)
			if err != nil {
				return nil, err
			}
			seedRating := userVec[seed]
			for _, s := range similar {
				if _, rated := userVec[s.SubjectID]; rated {
					continue
				}
				scores[s.SubjectID] += s.Score * seedRating
			}
		}

		candidates := rankCandidates(scores)
		r.logger.WithFields(logrus.Fields{
			"user_id":    userID,
			"seeds":      len(seeds),
			"candidates": len(candidates),
		}).Debug("Computed item-based candidates")
		return candidates, nil
	}, nonEmpty[models.RecommendationCandidate])
}

// seedBooks lists books the user rated at or above the liked threshold.
func (r *ItemBasedRecommender) seedBooks(userVec models.RatingVector) []string {
	var seeds []string
	for bookID, score := range userVec {
		if score >= r.likedThreshold {
			seeds = append(seeds, bookID)
		}
	}
	sort.Strings(seeds)
	return seeds
}

func (r *ItemBasedRecommender) Recommend(ctx context.Context, userID string, limit int) ([]models.Book, error) {
	candidates, err := r.Candidates(ctx, userID)
	if err != nil {
		return nil, err
	}
	return r.catalog.BooksInOrder(ctx, topCandidateIDs(candidates, limit))
}
