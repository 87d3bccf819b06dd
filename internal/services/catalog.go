package services

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/cache"
	"github.com/temcen/bookshelf/internal/config"
	"github.com/temcen/bookshelf/internal/store"
	"github.com/temcen/bookshelf/pkg/models"
)

// BookCatalog is the cached read side of the book collection.
type BookCatalog struct {
	store  store.BookStore
	cache  *cache.Cache
	ttl    time.Duration
	logger *logrus.Logger
}

func NewBookCatalog(s store.BookStore, c *cache.Cache, cfg *config.RecommendationConfig, logger *logrus.Logger) *BookCatalog {
	return &BookCatalog{
		store:  s,
		cache:  c,
		ttl:    cfg.Caching.CatalogTTL,
		logger: logger,
	}
}

// AllBooks returns the shared cached catalog; callers must copy before sorting.
func (c *BookCatalog) AllBooks(ctx context.Context) ([]models.Book, error) {
	return cache.GetOrLoad(ctx, c.cache, cache.AllBooks(), c.ttl, func(ctx context.Context) ([]models.Book, error) {
		return c.store.FetchAllBooks(ctx)
	})
}

func (c *BookCatalog) Book(ctx context.Context, bookID string) (*models.Book, error) {
	return c.store.FetchBookByID(ctx, bookID)
}

// BooksInOrder resolves ids to books keeping the order of ids. Ids with no
// book behind them are skipped.
func (c *BookCatalog) BooksInOrder(ctx context.Context, ids []string) ([]models.Book, error) {
	if len(ids) == 0 {
		return []models.Book{}, nil
	}

	books, err := c.store.FetchBooksByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]models.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	ordered := make([]models.Book, 0, len(ids))
	for _, id := range ids {
		if b, ok := byID[id]; ok {
			ordered = append(ordered, b)
		} else {
			c.logger.WithField("book_id", id).Debug("Recommended book no longer in catalog")
		}
	}
	return ordered, nil
}
