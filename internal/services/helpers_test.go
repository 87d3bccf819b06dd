package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/temcen/bookshelf/internal/config"
	"github.com/temcen/bookshelf/internal/store"
	"github.com/temcen/bookshelf/pkg/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	return logger
}

func testConfig() *config.Config {
	return &config.Config{
		Auth: config.AuthConfig{
			JWTSecret: "test-secret",
			TokenTTL:  time.Hour,
			RateLimit: config.RateLimitConfig{Default: 100, Admin: 1000, Window: time.Minute},
		},
		Recommendation: config.RecommendationConfig{
			HybridTarget:   10,
			CandidatePool:  20,
			SimilarUsers:   10,
			SimilarBooks:   10,
			LikedThreshold: 4,
			ContentLimit:   5,
			PopularLimit:   10,
			Caching: config.CachingConfig{
				DefaultTTL:         time.Hour,
				RatingsTTL:         time.Hour,
				CatalogTTL:         4 * time.Hour,
				RecommendationsTTL: 6 * time.Hour,
				PopularTTL:         6 * time.Hour,
				NewReleasesTTL:     24 * time.Hour,
				UserStatsTTL:       time.Hour,
				BookStatsTTL:       2 * time.Hour,
				ReadBooksTTL:       time.Hour,
			},
		},
	}
}

type testEnv struct {
	store *store.MemoryStore
	svc   *Services
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	st := store.NewMemoryStore()
	svc := New(testConfig(), testLogger(), st, nil, nil, prometheus.NewRegistry())
	return &testEnv{store: st, svc: svc}
}

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func (e *testEnv) book(id, genre, author string, ageDays int) {
	e.store.PutBook(models.Book{
		ID:        id,
		Title:     "Title " + id,
		Genre:     genre,
		Author:    author,
		CreatedAt: baseTime.AddDate(0, 0, -ageDays),
	})
}

func (e *testEnv) user(id string) {
	e.store.PutUser(models.User{ID: id, Email: id + "@example.com", Role: models.RoleUser})
}

func (e *testEnv) rate(t *testing.T, userID, bookID string, score float64) {
	t.Helper()
	_, err := e.store.UpsertRating(context.Background(), models.Rating{UserID: userID, BookID: bookID, Score: score})
	require.NoError(t, err)
}

// catalogOf adds n books "b00".."b<n-1>" in one genre, newest first.
func (e *testEnv) catalogOf(n int) {
	for i := 0; i < n; i++ {
		e.book(fmt.Sprintf("b%02d", i), "Genre", fmt.Sprintf("Author %d", i), i)
	}
}

func bookIDs(books []models.Book) []string {
	ids := make([]string, len(books))
	for i, b := range books {
		ids[i] = b.ID
	}
	return ids
}
