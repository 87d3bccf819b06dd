// Package store is the document-store boundary the recommendation core reads
// ratings, books and users through.
package store

import (
	"context"
	"errors"

	"github.com/temcen/bookshelf/pkg/models"
)

var (
	// ErrNotFound means the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrUnavailable wraps connectivity and query failures of the backing store.
	ErrUnavailable = errors.New("store unavailable")
)

type RatingStore interface {
	FetchAllRatings(ctx context.Context) ([]models.Rating, error)
	FetchRatingsForUser(ctx context.Context, userID string) ([]models.Rating, error)
	FetchRatingsForBook(ctx context.Context, bookID string) ([]models.Rating, error)
	UpsertRating(ctx context.Context, rating models.Rating) (models.Rating, error)
}

type BookStore interface {
	FetchBookByID(ctx context.Context, bookID string) (*models.Book, error)
	// FetchBooksByIDs returns the books that exist, in no guaranteed order.
	FetchBooksByIDs(ctx context.Context, bookIDs []string) ([]models.Book, error)
	FetchAllBooks(ctx context.Context) ([]models.Book, error)
	WriteBookStats(ctx context.Context, bookID string, stats models.DerivedStats) error
}

type UserStore interface {
	FetchUserByID(ctx context.Context, userID string) (*models.User, error)
	WriteUserStats(ctx context.Context, userID string, stats models.DerivedStats) error
	// FetchOwnedBookIDs lists books the user bought in a completed order or
	// finished reading.
	FetchOwnedBookIDs(ctx context.Context, userID string) ([]string, error)
}

type Store interface {
	RatingStore
	BookStore
	UserStore
	Ping(ctx context.Context) error
}
