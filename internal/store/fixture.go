package store

import (
	"context"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/temcen/bookshelf/pkg/models"
)

// Fixture is a YAML catalog used to seed the memory driver.
type Fixture struct {
	Books []struct {
		ID          string    `yaml:"id"`
		Title       string    `yaml:"title"`
		Author      string    `yaml:"author"`
		Genre       string    `yaml:"genre"`
		Description string    `yaml:"description"`
		Publisher   string    `yaml:"publisher"`
		Language    string    `yaml:"language"`
		Pages       int       `yaml:"pages"`
		Price       float64   `yaml:"price"`
		ISBN        string    `yaml:"isbn"`
		CreatedAt   time.Time `yaml:"created_at"`
	} `yaml:"books"`

	Users []struct {
		ID          string `yaml:"id"`
		Email       string `yaml:"email"`
		DisplayName string `yaml:"display_name"`
		Role        string `yaml:"role"`
	} `yaml:"users"`

	Ratings []struct {
		User   string  `yaml:"user"`
		Book   string  `yaml:"book"`
		Score  float64 `yaml:"score"`
		Review *string `yaml:"review"`
	} `yaml:"ratings"`

	// Owned maps user id to the ids of books they bought or finished.
	Owned map[string][]string `yaml:"owned"`
}

func ParseFixture(r io.Reader) (*Fixture, error) {
	var f Fixture
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to parse fixture: %w", err)
	}
	return &f, nil
}

// Seed loads the fixture into the store. Ratings must reference known users
// and books. Derived stats are left for the caller to recompute.
func (m *MemoryStore) Seed(ctx context.Context, f *Fixture) error {
	for _, b := range f.Books {
		if b.ID == "" {
			return fmt.Errorf("fixture book without id")
		}
		created := b.CreatedAt
		if created.IsZero() {
			created = m.now()
		}
		m.PutBook(models.Book{
			ID:          b.ID,
			Title:       b.Title,
			Author:      b.Author,
			Genre:       b.Genre,
			Description: b.Description,
			Publisher:   b.Publisher,
			Language:    b.Language,
			Pages:       b.Pages,
			Price:       b.Price,
			ISBN:        b.ISBN,
			CreatedAt:   created,
			UpdatedAt:   created,
		})
	}

	for _, u := range f.Users {
		if u.ID == "" {
			return fmt.Errorf("fixture user without id")
		}
		role := u.Role
		if role == "" {
			role = models.RoleUser
		}
		m.PutUser(models.User{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName, Role: role})
	}

	for i, r := range f.Ratings {
		if _, err := m.FetchUserByID(ctx, r.User); err != nil {
			return fmt.Errorf("fixture rating %d: user %q: %w", i, r.User, err)
		}
		if _, err := m.FetchBookByID(ctx, r.Book); err != nil {
			return fmt.Errorf("fixture rating %d: book %q: %w", i, r.Book, err)
		}
		if r.Score < models.MinScore || r.Score > models.MaxScore {
			return fmt.Errorf("fixture rating %d: score %v out of range", i, r.Score)
		}
		if _, err := m.UpsertRating(ctx, models.Rating{UserID: r.User, BookID: r.Book, Score: r.Score, ReviewText: r.Review}); err != nil {
			return err
		}
	}

	for userID, bookIDs := range f.Owned {
		m.MarkOwned(userID, bookIDs...)
	}
	return nil
}
