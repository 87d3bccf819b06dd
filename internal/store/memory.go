package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/temcen/bookshelf/pkg/models"
)

type ratingKey struct {
	userID string
	bookID string
}

// MemoryStore keeps every record in process. It backs the "memory" database
// driver and the service tests.
type MemoryStore struct {
	mu      sync.RWMutex
	books   map[string]models.Book
	users   map[string]models.User
	ratings map[ratingKey]models.Rating
	owned   map[string]map[string]struct{}
	now     func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		books:   make(map[string]models.Book),
		users:   make(map[string]models.User),
		ratings: make(map[ratingKey]models.Rating),
		owned:   make(map[string]map[string]struct{}),
		now:     time.Now,
	}
}

func (m *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (m *MemoryStore) PutBook(book models.Book) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = m.now()
	}
	if book.UpdatedAt.IsZero() {
		book.UpdatedAt = book.CreatedAt
	}
	m.books[book.ID] = book
}

// DeleteBook removes the book together with its ratings.
func (m *MemoryStore) DeleteBook(bookID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.books, bookID)
	for k := range m.ratings {
		if k.bookID == bookID {
			delete(m.ratings, k)
		}
	}
}

func (m *MemoryStore) PutUser(user models.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = m.now()
	}
	m.users[user.ID] = user
}

// MarkOwned records a completed purchase or finished read.
func (m *MemoryStore) MarkOwned(userID string, bookIDs ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set, ok := m.owned[userID]
	if !ok {
		set = make(map[string]struct{})
		m.owned[userID] = set
	}
	for _, id := range bookIDs {
		set[id] = struct{}{}
	}
}

func (m *MemoryStore) DeleteRating(userID, bookID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ratings, ratingKey{userID, bookID})
}

func (m *MemoryStore) FetchAllRatings(ctx context.Context) ([]models.Rating, error) {
	return m.filterRatings(ctx, func(models.Rating) bool { return true })
}

func (m *MemoryStore) FetchRatingsForUser(ctx context.Context, userID string) ([]models.Rating, error) {
	return m.filterRatings(ctx, func(r models.Rating) bool { return r.UserID == userID })
}

func (m *MemoryStore) FetchRatingsForBook(ctx context.Context, bookID string) ([]models.Rating, error) {
	return m.filterRatings(ctx, func(r models.Rating) bool { return r.BookID == bookID })
}

func (m *MemoryStore) filterRatings(ctx context.Context, keep func(models.Rating) bool) ([]models.Rating, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("fetch ratings", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []models.Rating
	for _, r := range m.ratings {
		if keep(r) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UserID != out[j].UserID {
			return out[i].UserID < out[j].UserID
		}
		return out[i].BookID < out[j].BookID
	})
	return out, nil
}

func (m *MemoryStore) UpsertRating(ctx context.Context, rating models.Rating) (models.Rating, error) {
	if err := ctx.Err(); err != nil {
		return models.Rating{}, unavailable("upsert rating", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := ratingKey{rating.UserID, rating.BookID}
	now := m.now()
	if existing, ok := m.ratings[key]; ok {
		rating.CreatedAt = existing.CreatedAt
	} else {
		rating.CreatedAt = now
	}
	rating.UpdatedAt = now
	m.ratings[key] = rating
	return rating, nil
}

func (m *MemoryStore) FetchBookByID(ctx context.Context, bookID string) (*models.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("fetch book", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	book, ok := m.books[bookID]
	if !ok {
		return nil, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	return &book, nil
}

func (m *MemoryStore) FetchBooksByIDs(ctx context.Context, bookIDs []string) ([]models.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("fetch books by ids", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Book, 0, len(bookIDs))
	for _, id := range bookIDs {
		if book, ok := m.books[id]; ok {
			out = append(out, book)
		}
	}
	return out, nil
}

func (m *MemoryStore) FetchAllBooks(ctx context.Context) ([]models.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("fetch all books", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]models.Book, 0, len(m.books))
	for _, book := range m.books {
		out = append(out, book)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) WriteBookStats(ctx context.Context, bookID string, stats models.DerivedStats) error {
	if err := ctx.Err(); err != nil {
		return unavailable("write book stats", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	book, ok := m.books[bookID]
	if !ok {
		return fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	book.AverageRating = stats.AverageRating
	book.RatingCount = stats.RatingCount
	book.UpdatedAt = m.now()
	m.books[bookID] = book
	return nil
}

func (m *MemoryStore) FetchUserByID(ctx context.Context, userID string) (*models.User, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("fetch user", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.users[userID]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	return &user, nil
}

func (m *MemoryStore) WriteUserStats(ctx context.Context, userID string, stats models.DerivedStats) error {
	if err := ctx.Err(); err != nil {
		return unavailable("write user stats", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[userID]
	if !ok {
		return fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	user.AverageRating = stats.AverageRating
	user.RatingCount = stats.RatingCount
	user.UpdatedAt = m.now()
	m.users[userID] = user
	return nil
}

func (m *MemoryStore) FetchOwnedBookIDs(ctx context.Context, userID string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("fetch owned books", err)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := make([]string, 0, len(m.owned[userID]))
	for id := range m.owned[userID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)
