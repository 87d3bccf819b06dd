package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/temcen/bookshelf/internal/cache"
	"github.com/temcen/bookshelf/internal/config"
	"github.com/temcen/bookshelf/internal/store"
	"github.com/temcen/bookshelf/pkg/models"
)

// ContentSimilarityFinder matches books on catalog metadata alone, so it
// works for books nobody has rated yet.
type ContentSimilarityFinder struct {
	catalog *BookCatalog
	cache   *cache.Cache
	ttl     time.Duration
	logger  *logrus.Logger
}

func NewContentSimilarityFinder(catalog *BookCatalog, c *cache.Cache, cfg *config.RecommendationConfig, logger *logrus.Logger) *ContentSimilarityFinder {
	return &ContentSimilarityFinder{
		catalog: catalog,
		cache:   c,
		ttl:     cfg.Caching.CatalogTTL,
		logger:  logger,
	}
}

// Similar returns up to limit books sharing the source book's genre, topped
// up with books by the same author. A missing source book gives an empty list.
func (f *ContentSimilarityFinder) Similar(ctx context.Context, bookID string, limit int) ([]models.Book, error) {
	if limit <= 0 {
		return []models.Book{}, nil
	}

	matches, err := cache.GetOrLoad(ctx, f.cache, cache.ContentSimilarBooks(bookID), f.ttl, func(ctx context.Context) ([]models.Book, error) {
		source, err := f.catalog.Book(ctx, bookID)
		if errors.Is(err, store.ErrNotFound) {
			return []models.Book{}, nil
		}
		if err != nil {
			return nil, err
		}

		books, err := f.catalog.AllBooks(ctx)
		if err != nil {
			return nil, err
		}
		return contentMatches(*source, books), nil
	})
	if err != nil {
		return nil, err
	}

	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

// contentMatches orders genre matches before author-only matches, keeping
// catalog order within each group.
func contentMatches(source models.Book, books []models.Book) []models.Book {
	genre := normalizeTerm(source.Genre)
	author := normalizeTerm(source.Author)

	var byGenre, byAuthor []models.Book
	for _, b := range books {
		if b.ID == source.ID {
			continue
		}
		switch {
		case genre != "" && normalizeTerm(b.Genre) == genre:
			byGenre = append(byGenre, b)
		case author != "" && normalizeTerm(b.Author) == author:
			byAuthor = append(byAuthor, b)
		}
	}

	out := make([]models.Book, 0, len(byGenre)+len(byAuthor))
	out = append(out, byGenre...)
	return append(out, byAuthor...)
}

func normalizeTerm(s string) string {
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(s)))
}
