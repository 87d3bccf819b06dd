package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/temcen/bookshelf/internal/config"
	"github.com/temcen/bookshelf/internal/store"
	"github.com/temcen/bookshelf/pkg/models"
)

func memoryConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DATABASE_DRIVER", "memory")
	t.Setenv("LOGGING_LEVEL", "panic")
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func newTestApp(t *testing.T) *App {
	t.Helper()
	gin.SetMode(gin.TestMode)
	reg := prometheus.NewRegistry()
	a, err := newApp(memoryConfig(t), reg, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })
	return a
}

func (a *App) seedTestCatalog(t *testing.T) *store.MemoryStore {
	t.Helper()
	mem, ok := a.store.(*store.MemoryStore)
	require.True(t, ok)

	now := time.Now().UTC()
	mem.PutUser(models.User{ID: "u1", Role: models.RoleUser})
	mem.PutBook(models.Book{ID: "b1", Title: "Dune", Genre: "Science Fiction", Author: "Frank Herbert", CreatedAt: now.AddDate(0, 0, -3)})
	mem.PutBook(models.Book{ID: "b2", Title: "Hyperion", Genre: "Science Fiction", Author: "Dan Simmons", CreatedAt: now.AddDate(0, 0, -2)})
	mem.PutBook(models.Book{ID: "b3", Title: "Emma", Genre: "Romance", Author: "Jane Austen", CreatedAt: now.AddDate(0, 0, -1)})
	return mem
}

func (a *App) token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := a.services.Auth.GenerateToken(context.Background(), userID, role)
	require.NoError(t, err)
	return "Bearer " + token
}

func (a *App) call(method, path, auth, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, req)
	return w
}

func TestApp_HealthAndMetrics(t *testing.T) {
	a := newTestApp(t)

	w := a.call(http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)

	w = a.call(http.MethodGet, "/metrics", "", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "health_check_status")
}

func TestApp_RequiresAuth(t *testing.T) {
	a := newTestApp(t)

	w := a.call(http.MethodGet, "/api/v1/books/popular", "", "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApp_RateThenRecommend(t *testing.T) {
	a := newTestApp(t)
	a.seedTestCatalog(t)
	auth := a.token(t, "u1", models.RoleUser)

	w := a.call(http.MethodPut, "/api/v1/books/b1/rating", auth, `{"score": 5}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = a.call(http.MethodGet, "/api/v1/books/b1/statistics", auth, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"number_of_ratings":1`)

	w = a.call(http.MethodGet, "/api/v1/books/b1/similar", auth, "")
	require.Equal(t, http.StatusOK, w.Code)
	var similar models.BookListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &similar))
	require.Len(t, similar.Books, 1)
	assert.Equal(t, "b2", similar.Books[0].ID)

	w = a.call(http.MethodGet, "/api/v1/recommendations/u1", auth, "")
	require.Equal(t, http.StatusOK, w.Code)
	var recs models.RecommendationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &recs))
	for _, r := range recs.Recommendations {
		assert.NotEqual(t, "b1", r.Book.ID, "rated book must not be recommended")
	}
	assert.Len(t, recs.Recommendations, 2)

	w = a.call(http.MethodPut, "/api/v1/books/b1/rating", auth, `{"score": 8}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApp_AdminRoutes(t *testing.T) {
	a := newTestApp(t)
	a.seedTestCatalog(t)

	w := a.call(http.MethodGet, "/api/v1/admin/cache/stats", a.token(t, "u1", models.RoleUser), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	admin := a.token(t, "root", models.RoleAdmin)
	w = a.call(http.MethodPost, "/api/v1/admin/events", admin,
		`{"event_id":"e1","type":"book.created","book_id":"b3","occurred_at":"2024-03-01T12:00:00Z"}`)
	assert.Equal(t, http.StatusAccepted, w.Code)

	w = a.call(http.MethodDelete, "/api/v1/admin/cache", admin, "")
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestApp_RejectsInvalidConfig(t *testing.T) {
	cfg := memoryConfig(t)
	cfg.Recommendation.CandidatePool = 1

	_, err := newApp(cfg, prometheus.NewRegistry(), prometheus.NewRegistry())
	assert.Error(t, err)
}

func TestApp_SeedsFromFixture(t *testing.T) {
	gin.SetMode(gin.TestMode)
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
books:
  - {id: b1, title: Dune, genre: Science Fiction, author: Frank Herbert}
users:
  - {id: u1}
  - {id: u2}
ratings:
  - {user: u1, book: b1, score: 5}
  - {user: u2, book: b1, score: 4}
`), 0o600))

	cfg := memoryConfig(t)
	cfg.Database.SeedFile = path
	reg := prometheus.NewRegistry()
	a, err := newApp(cfg, reg, reg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	book, err := a.store.FetchBookByID(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, 4.5, book.AverageRating)
	assert.Equal(t, 2, book.RatingCount)
}
