package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/temcen/bookshelf/pkg/models"
)

// Querier is satisfied by *pgxpool.Pool and pgxmock pools.
type Querier interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Ping(ctx context.Context) error
}

type PostgresStore struct {
	db Querier
}

func NewPostgresStore(db Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

const ratingColumns = `user_id, book_id, score, review_text, created_at, updated_at`

const bookColumns = `id, title, author, genre, description, publisher, language, pages,
	price, isbn, cover_image_url, average_rating, rating_count, created_at, updated_at`

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return unavailable("ping", err)
	}
	return nil
}

func (s *PostgresStore) FetchAllRatings(ctx context.Context) ([]models.Rating, error) {
	return s.queryRatings(ctx, "fetch all ratings",
		`SELECT `+ratingColumns+` FROM ratings ORDER BY user_id, book_id`)
}

func (s *PostgresStore) FetchRatingsForUser(ctx context.Context, userID string) ([]models.Rating, error) {
	return s.queryRatings(ctx, "fetch ratings for user",
		`SELECT `+ratingColumns+` FROM ratings WHERE user_id = $1 ORDER BY updated_at DESC`, userID)
}

func (s *PostgresStore) FetchRatingsForBook(ctx context.Context, bookID string) ([]models.Rating, error) {
	return s.queryRatings(ctx, "fetch ratings for book",
		`SELECT `+ratingColumns+` FROM ratings WHERE book_id = $1 ORDER BY updated_at DESC`, bookID)
}

func (s *PostgresStore) queryRatings(ctx context.Context, op, query string, args ...interface{}) ([]models.Rating, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var ratings []models.Rating
	for rows.Next() {
		var r models.Rating
		if err := rows.Scan(&r.UserID, &r.BookID, &r.Score, &r.ReviewText, &r.CreatedAt, &r.UpdatedAt); err != nil {
			return nil, unavailable(op, err)
		}
		ratings = append(ratings, r)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}

	return ratings, nil
}

// UpsertRating keeps created_at of an existing rating.
func (s *PostgresStore) UpsertRating(ctx context.Context, rating models.Rating) (models.Rating, error) {
	now := time.Now().UTC()
	query := `
		INSERT INTO ratings (user_id, book_id, score, review_text, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id, book_id) DO UPDATE
		SET score = EXCLUDED.score,
			review_text = EXCLUDED.review_text,
			updated_at = EXCLUDED.updated_at
		RETURNING created_at, updated_at`

	err := s.db.QueryRow(ctx, query, rating.UserID, rating.BookID, rating.Score, rating.ReviewText, now).
		Scan(&rating.CreatedAt, &rating.UpdatedAt)
	if err != nil {
		return models.Rating{}, unavailable("upsert rating", err)
	}

	return rating, nil
}

func (s *PostgresStore) FetchBookByID(ctx context.Context, bookID string) (*models.Book, error) {
	row := s.db.QueryRow(ctx, `SELECT `+bookColumns+` FROM books WHERE id = $1`, bookID)

	book, err := scanBook(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("fetch book", err)
	}
	return &book, nil
}

func (s *PostgresStore) FetchBooksByIDs(ctx context.Context, bookIDs []string) ([]models.Book, error) {
	if len(bookIDs) == 0 {
		return nil, nil
	}
	return s.queryBooks(ctx, "fetch books by ids",
		`SELECT `+bookColumns+` FROM books WHERE id = ANY($1)`, bookIDs)
}

func (s *PostgresStore) FetchAllBooks(ctx context.Context) ([]models.Book, error) {
	return s.queryBooks(ctx, "fetch all books",
		`SELECT `+bookColumns+` FROM books ORDER BY created_at DESC, id`)
}

func (s *PostgresStore) queryBooks(ctx context.Context, op, query string, args ...interface{}) ([]models.Book, error) {
	rows, err := s.db.Query(ctx, query, args...)
	if err != nil {
		return nil, unavailable(op, err)
	}
	defer rows.Close()

	var books []models.Book
	for rows.Next() {
		book, err := scanBook(rows)
		if err != nil {
			return nil, unavailable(op, err)
		}
		books = append(books, book)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(op, err)
	}

	return books, nil
}

func scanBook(row pgx.Row) (models.Book, error) {
	var b models.Book
	err := row.Scan(
		&b.ID, &b.Title, &b.Author, &b.Genre, &b.Description, &b.Publisher, &b.Language, &b.Pages,
		&b.Price, &b.ISBN, &b.CoverImageURL, &b.AverageRating, &b.RatingCount, &b.CreatedAt, &b.UpdatedAt,
	)
	return b, err
}

func (s *PostgresStore) WriteBookStats(ctx context.Context, bookID string, stats models.DerivedStats) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE books SET average_rating = $2, rating_count = $3, updated_at = NOW() WHERE id = $1`,
		bookID, stats.AverageRating, stats.RatingCount)
	if err != nil {
		return unavailable("write book stats", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FetchUserByID(ctx context.Context, userID string) (*models.User, error) {
	var u models.User
	err := s.db.QueryRow(ctx, `
		SELECT id, email, display_name, role, preferred_genres, average_rating, rating_count, created_at, updated_at
		FROM users WHERE id = $1`, userID).
		Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.PreferredGenres, &u.AverageRating, &u.RatingCount, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, unavailable("fetch user", err)
	}
	return &u, nil
}

func (s *PostgresStore) WriteUserStats(ctx context.Context, userID string, stats models.DerivedStats) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE users SET average_rating = $2, rating_count = $3, updated_at = NOW() WHERE id = $1`,
		userID, stats.AverageRating, stats.RatingCount)
	if err != nil {
		return unavailable("write user stats", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FetchOwnedBookIDs(ctx context.Context, userID string) ([]string, error) {
	query := `
		SELECT oi.book_id
		FROM orders o
		JOIN order_items oi ON oi.order_id = o.id
		WHERE o.user_id = $1 AND o.status = 'completed'
		UNION
		SELECT book_id
		FROM user_book_progress
		WHERE user_id = $1 AND status = 'completed'`

	rows, err := s.db.Query(ctx, query, userID)
	if err != nil {
		return nil, unavailable("fetch owned books", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, unavailable("fetch owned books", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("fetch owned books", err)
	}

	return ids, nil
}
