package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/middleware"
	"github.com/temcen/bookshelf/internal/services"
	"github.com/temcen/bookshelf/internal/validation"
	"github.com/temcen/bookshelf/pkg/models"
)

// AdminHandler exposes cache maintenance and manual catalog-event replay.
type AdminHandler struct {
	cacheAdmin services.CacheAdminInterface
	events     services.CatalogEventHandlerInterface
	schemas    *validation.SchemaValidator
	logger     *logrus.Logger
}

func NewAdminHandler(cacheAdmin services.CacheAdminInterface, events services.CatalogEventHandlerInterface, schemas *validation.SchemaValidator, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		cacheAdmin: cacheAdmin,
		events:     events,
		schemas:    schemas,
		logger:     logger,
	}
}

func (h *AdminHandler) CacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.cacheAdmin.Stats())
}

func (h *AdminHandler) ClearCache(c *gin.Context) {
	h.cacheAdmin.ClearAll()
	userID, _ := middleware.GetUserFromContext(c)
	h.logger.WithField("user_id", userID).Warn("Cache cleared by admin")
	c.Status(http.StatusNoContent)
}

// ApplyEvent runs a catalog event through the same path as the consumer.
func (h *AdminHandler) ApplyEvent(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		badRequest(c, "BODY_READ_ERROR", "Failed to read request body")
		return
	}

	if result := h.schemas.ValidateCatalogEvent(body); !result.Valid {
		c.JSON(http.StatusBadRequest, result.ToAPIError())
		return
	}

	var event models.CatalogEvent
	if err := json.Unmarshal(body, &event); err != nil {
		badRequest(c, "INVALID_JSON", "Request body must be a catalog event")
		return
	}

	if err := h.events.HandleCatalogEvent(c.Request.Context(), event); err != nil {
		respondError(c, h.logger, err, "Failed to apply catalog event")
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"event_id": event.EventID, "status": "applied"})
}
