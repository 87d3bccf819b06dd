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

// PopularityRanker is the cold-start fallback: it needs no signal from the
// user and returns something whenever the catalog is non-empty.
type PopularityRanker struct {
	ratings        *RatingRepository
	catalog        *BookCatalog
	cache          *cache.Cache
	popularTTL     time.Duration
	newReleasesTTL time.Duration
	logger         *logrus.Logger
}

func NewPopularityRanker(
	ratings *RatingRepository,
	catalog *BookCatalog,
	c *cache.Cache,
	cfg *config.RecommendationConfig,
	logger *logrus.Logger,
) *PopularityRanker {
	return &PopularityRanker{
		ratings:        ratings,
		catalog:        catalog,
		cache:          c,
		popularTTL:     cfg.Caching.PopularTTL,
		newReleasesTTL: cfg.Caching.NewReleasesTTL,
		logger:         logger,
	}
}

type ratingTally struct {
	count int
	sum   float64
}

func (t ratingTally) average() float64 {
	if t.count == 0 {
		return 0
	}
	return t.sum / float64(t.count)
}

// Popular ranks books by how many ratings they received. Volume wins over
// average: ties fall back to average rating, then newest, then id.
func (p *PopularityRanker) Popular(ctx context.Context, limit int) ([]models.Book, error) {
	if limit <= 0 {
		return []models.Book{}, nil
	}

	return cache.GetOrLoad(ctx, p.cache, cache.PopularBooks(limit), p.popularTTL, func(ctx context.Context) ([]models.Book, error) {
		ratings, err := p.ratings.AllRatings(ctx)
		if err != nil {
			return nil, err
		}
		books, err := p.catalog.AllBooks(ctx)
		if err != nil {
			return nil, err
		}

		tallies := make(map[string]ratingTally, len(books))
		for _, r := range ratings {
			t := tallies[r.BookID]
			t.count++
			t.sum += r.Score
			tallies[r.BookID] = t
		}

		ranked := append([]models.Book(nil), books...)
		sort.SliceStable(ranked, func(i, j int) bool {
			ti, tj := tallies[ranked[i].ID], tallies[ranked[j].ID]
			if ti.count != tj.count {
				return ti.count > tj.count
			}
			if ai, aj := ti.average(), tj.average(); ai != aj {
				return ai > aj
			}
			if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
				return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
			}
			return ranked[i].ID < ranked[j].ID
		})

		if len(ranked) > limit {
			ranked = ranked[:limit]
		}
		p.logger.WithFields(logrus.Fields{
			"limit":   limit,
			"books":   len(books),
			"ratings": len(ratings),
		}).Debug("Ranked popular books")
		return ranked, nil
	})
}

// NewReleases lists the most recently added books.
func (p *PopularityRanker) NewReleases(ctx context.Context, limit int) ([]models.Book, error) {
	if limit <= 0 {
		return []models.Book{}, nil
	}

	return cache.GetOrLoad(ctx, p.cache, cache.NewReleases(limit), p.newReleasesTTL, func(ctx context.Context) ([]models.Book, error) {
		books, err := p.catalog.AllBooks(ctx)
		if err != nil {
			return nil, err
		}

		ranked := append([]models.Book(nil), books...)
		sort.SliceStable(ranked, func(i, j int) bool {
			if !ranked[i].CreatedAt.Equal(ranked[j].CreatedAt) {
				return ranked[i].CreatedAt.After(ranked[j].CreatedAt)
			}
			return ranked[i].ID < ranked[j].ID
		})

		if len(ranked) > limit {
			ranked = ranked[:limit]
		}
		return ranked, nil
	})
}
