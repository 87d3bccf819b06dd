package services

import (
	"context"

	"github.com/temcen/bookshelf/internal/cache"
	"github.com/temcen/bookshelf/pkg/models"
)

// BookRecommender produces a ranked list of books for a user.
type BookRecommender interface {
	Recommend(ctx context.Context, userID string, limit int) ([]models.Book, error)
}

type PopularBooksProvider interface {
	Popular(ctx context.Context, limit int) ([]models.Book, error)
	NewReleases(ctx context.Context, limit int) ([]models.Book, error)
}

type SimilarBooksProvider interface {
	Similar(ctx context.Context, bookID string, limit int) ([]models.Book, error)
}

type RatedBooksProvider interface {
	UserVector(ctx context.Context, userID string) (models.RatingVector, error)
}

type OwnedBooksFetcher interface {
	FetchOwnedBookIDs(ctx context.Context, userID string) ([]string, error)
}

// RatingEventPublisher is implemented by the message bus.
type RatingEventPublisher interface {
	PublishRatingEvent(ctx context.Context, event models.RatingEvent) error
}

// RecommendationServiceInterface is the read API the HTTP layer serves.
type RecommendationServiceInterface interface {
	GenerateRecommendations(ctx context.Context, userID string) (*models.RecommendationResponse, error)
	GetUserBasedRecommendations(ctx context.Context, userID string, limit int) ([]models.Book, error)
	GetItemBasedRecommendations(ctx context.Context, userID string, limit int) ([]models.Book, error)
	GetContentSimilar(ctx context.Context, bookID string, limit int) ([]models.Book, error)
	GetPopularBooks(ctx context.Context, limit int) ([]models.Book, error)
	GetNewReleases(ctx context.Context, limit int) ([]models.Book, error)
}

// RatingServiceInterface is the write and statistics API the HTTP layer serves.
type RatingServiceInterface interface {
	RecordRating(ctx context.Context, userID, bookID string, score float64, review *string) (*models.Rating, error)
	UserStatistics(ctx context.Context, userID string) (*models.UserStatistics, error)
	BookStatistics(ctx context.Context, bookID string) (*models.BookStatistics, error)
	RatingsForUser(ctx context.Context, userID string) ([]models.Rating, error)
	RatingsForBook(ctx context.Context, bookID string) ([]models.Rating, error)
}

type CatalogEventHandlerInterface interface {
	HandleCatalogEvent(ctx context.Context, event models.CatalogEvent) error
}

type CacheAdminInterface interface {
	Stats() cache.Stats
	ClearAll()
}
