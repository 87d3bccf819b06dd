package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/middleware"
	"github.com/temcen/bookshelf/internal/services"
	"github.com/temcen/bookshelf/internal/store"
	"github.com/temcen/bookshelf/internal/validation"
	"github.com/temcen/bookshelf/pkg/models"
)

type Handlers struct {
	Health         *HealthHandler
	Recommendation *RecommendationHandler
	Rating         *RatingHandler
	Statistics     *StatisticsHandler
	Admin          *AdminHandler
}

func New(logger *logrus.Logger, svc *services.Services, schemas *validation.SchemaValidator, defaultLimit int) *Handlers {
	validate := validator.New()

	return &Handlers{
		Health:         NewHealthHandler(logger, svc.Health),
		Recommendation: NewRecommendationHandler(svc.Orchestrator, defaultLimit, logger),
		Rating:         NewRatingHandler(svc.Statistics, validate, logger),
		Statistics:     NewStatisticsHandler(svc.Statistics, logger),
		Admin:          NewAdminHandler(svc.CacheAdmin, svc.CatalogEvents, schemas, logger),
	}
}

// respondError maps service errors onto the API error envelope.
func respondError(c *gin.Context, logger *logrus.Logger, err error, message string) {
	status, code := http.StatusInternalServerError, "INTERNAL_ERROR"
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		status, code = http.StatusBadRequest, "INVALID_INPUT"
		message = err.Error()
	case errors.Is(err, store.ErrNotFound):
		status, code = http.StatusNotFound, "NOT_FOUND"
		message = "Resource not found"
	case errors.Is(err, store.ErrUnavailable):
		status, code = http.StatusServiceUnavailable, "STORE_UNAVAILABLE"
	}

	entry := logger.WithError(err).WithFields(logrus.Fields{
		"path":       c.FullPath(),
		"request_id": c.GetString(middleware.ContextRequestID),
	})
	if status >= http.StatusInternalServerError {
		entry.Error(message)
	} else {
		entry.Debug(message)
	}

	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

func badRequest(c *gin.Context, code, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// parseLimit reads ?limit=, falling back to def when absent. Values outside
// 1..MaxListLimit are rejected.
func parseLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 1 || limit > middleware.MaxListLimit {
		badRequest(c, "INVALID_LIMIT", "limit must be an integer between 1 and 100")
		return 0, false
	}
	return limit, true
}

// authorizeUser allows a caller to read their own data; admins may read
// anyone's.
func authorizeUser(c *gin.Context, userID string) bool {
	caller, role := middleware.GetUserFromContext(c)
	if caller == userID || role == models.RoleAdmin {
		return true
	}
	c.JSON(http.StatusForbidden, gin.H{
		"error": gin.H{
			"code":    "FORBIDDEN",
			"message": "Cannot access another user's data",
		},
	})
	return false
}
