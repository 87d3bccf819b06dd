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

// RecommendationOrchestrator builds the personalised feed by asking each
// strategy in turn until the target size is reached:
// user-based, then item-based, then popularity.
type RecommendationOrchestrator struct {
	userBased  BookRecommender
	itemBased  BookRecommender
	popularity PopularBooksProvider
	content    SimilarBooksProvider
	rated      RatedBooksProvider
	owned      OwnedBooksFetcher
	cache      *cache.Cache
	metrics    *MetricsCollector
	config     *config.RecommendationConfig
	logger     *logrus.Logger
	now        func() time.Time
}

func NewRecommendationOrchestrator(
	userBased BookRecommender,
	itemBased BookRecommender,
	popularity PopularBooksProvider,
	content SimilarBooksProvider,
	rated RatedBooksProvider,
	owned OwnedBooksFetcher,
	c *cache.Cache,
	metrics *MetricsCollector,
	cfg *config.RecommendationConfig,
	logger *logrus.Logger,
) *RecommendationOrchestrator {
	return &RecommendationOrchestrator{
		userBased:  userBased,
		itemBased:  itemBased,
		popularity: popularity,
		content:    content,
		rated:      rated,
		owned:      owned,
		cache:      c,
		metrics:    metrics,
		config:     cfg,
		logger:     logger,
		now:        time.Now,
	}
}

type strategyStep struct {
	source string
	fetch  func() ([]models.Book, error)
}

// GenerateRecommendations returns at most HybridTarget books, none of which
// the user has rated or already owns, with no book listed twice.
func (o *RecommendationOrchestrator) GenerateRecommendations(ctx context.Context, userID string) (*models.RecommendationResponse, error) {
	start := o.now()
	target := o.config.HybridTarget
	pool := o.config.CandidatePool

	seen, err := o.excludedBooks(ctx, userID)
	if err != nil {
		return nil, err
	}

	steps := []strategyStep{
		{models.SourceUserBased, func() ([]models.Book, error) { return o.userBased.Recommend(ctx, userID, pool) }},
		{models.SourceItemBased, func() ([]models.Book, error) { return o.itemBased.Recommend(ctx, userID, pool) }},
		{models.SourcePopularity, func() ([]models.Book, error) { return o.popularity.Popular(ctx, pool) }},
	}

	recs := make([]models.Recommendation, 0, target)
	strategies := make([]string, 0, len(steps))

	for _, step := range steps {
		if len(recs) >= target {
			break
		}

		books, err := step.fetch()
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			o.metrics.RecordRecommendationError(step.source)
			return nil, fmt.Errorf("%s recommendations for user %s: %w", step.source, userID, err)
		}

		added := 0
		for _, book := range books {
			if len(recs) >= target {
				break
			}
			if _, dup := seen[book.ID]; dup {
				continue
			}
			seen[book.ID] = struct{}{}
			recs = append(recs, models.Recommendation{
				Book:     book,
				Source:   step.source,
				Position: len(recs) + 1,
			})
			added++
		}

		if added > 0 {
			strategies = append(strategies, step.source)
		}
		o.metrics.RecordStrategyContribution(step.source, added)

		if len(recs) < target {
			o.logger.WithFields(logrus.Fields{
				"user_id":  userID,
				"strategy": step.source,
				"have":     len(recs),
				"target":   target,
			}).Debug("Strategy fell short of target, falling back")
		}
	}

	elapsed := o.now().Sub(start)
	o.metrics.RecordRecommendationRequest("hybrid", elapsed)
	o.logger.WithFields(logrus.Fields{
		"user_id":    userID,
		"count":      len(recs),
		"strategies": strategies,
		"latency":    elapsed,
	}).Info("Generated hybrid recommendations")

	return &models.RecommendationResponse{
		UserID:          userID,
		Recommendations: recs,
		Strategies:      strategies,
		GeneratedAt:     o.now(),
	}, nil
}

// GetHybridRecommendations is GenerateRecommendations reduced to the books.
func (o *RecommendationOrchestrator) GetHybridRecommendations(ctx context.Context, userID string) ([]models.Book, error) {
	resp, err := o.GenerateRecommendations(ctx, userID)
	if err != nil {
		return nil, err
	}
	books := make([]models.Book, len(resp.Recommendations))
	for i, r := range resp.Recommendations {
		books[i] = r.Book
	}
	return books, nil
}

// excludedBooks seeds the dedupe set with books the user rated or owns.
func (o *RecommendationOrchestrator) excludedBooks(ctx context.Context, userID string) (map[string]struct{}, error) {
	rated, err := o.rated.UserVector(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("rated books for user %s: %w", userID, err)
	}

	owned, err := cache.GetOrLoad(ctx, o.cache, cache.UserReadBookIDs(userID), o.config.Caching.ReadBooksTTL, func(ctx context.Context) ([]string, error) {
		return o.owned.FetchOwnedBookIDs(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("owned books for user %s: %w", userID, err)
	}

	seen := make(map[string]struct{}, len(rated)+len(owned))
	for id := range rated {
		seen[id] = struct{}{}
	}
	for _, id := range owned {
		seen[id] = struct{}{}
	}
	return seen, nil
}

func (o *RecommendationOrchestrator) GetUserBasedRecommendations(ctx context.Context, userID string, limit int) ([]models.Book, error) {
	defer o.observe(models.SourceUserBased, o.now())
	return o.single(ctx, o.userBased, userID, limit)
}

func (o *RecommendationOrchestrator) GetItemBasedRecommendations(ctx context.Context, userID string, limit int) ([]models.Book, error) {
	defer o.observe(models.SourceItemBased, o.now())
	return o.single(ctx, o.itemBased, userID, limit)
}

// single serves one strategy on its own. The strategy is asked for enough
// extra books to cover the exclusion set, then owned and rated books are
// dropped.
func (o *RecommendationOrchestrator) single(ctx context.Context, rec BookRecommender, userID string, limit int) ([]models.Book, error) {
	if limit <= 0 {
		return []models.Book{}, nil
	}

	excluded, err := o.excludedBooks(ctx, userID)
	if err != nil {
		return nil, err
	}

	books, err := rec.Recommend(ctx, userID, limit+len(excluded))
	if err != nil {
		return nil, err
	}

	out := make([]models.Book, 0, limit)
	for _, book := range books {
		if len(out) >= limit {
			break
		}
		if _, skip := excluded[book.ID]; skip {
			continue
		}
		out = append(out, book)
	}
	return out, nil
}

// GetContentSimilar serves "similar to this book" from catalog metadata only.
func (o *RecommendationOrchestrator) GetContentSimilar(ctx context.Context, bookID string, limit int) ([]models.Book, error) {
	defer o.observe(models.SourceContent, o.now())
	return o.content.Similar(ctx, bookID, limit)
}

func (o *RecommendationOrchestrator) GetPopularBooks(ctx context.Context, limit int) ([]models.Book, error) {
	defer o.observe(models.SourcePopularity, o.now())
	return o.popularity.Popular(ctx, limit)
}

func (o *RecommendationOrchestrator) GetNewReleases(ctx context.Context, limit int) ([]models.Book, error) {
	defer o.observe("new_releases", o.now())
	return o.popularity.NewReleases(ctx, limit)
}

func (o *RecommendationOrchestrator) observe(strategy string, start time.Time) {
	o.metrics.RecordRecommendationRequest(strategy, o.now().Sub(start))
}
