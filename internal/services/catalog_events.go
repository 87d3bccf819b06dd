package services

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/temcen/bookshelf/internal/cache"
	"github.com/temcen/bookshelf/pkg/models"
)

// CatalogEventHandler applies changes made by the bookstore CRUD layer to
// the recommendation caches.
type CatalogEventHandler struct {
	invalidator *cache.Invalidator
	statistics  *StatisticsAggregator
	metrics     *MetricsCollector
	logger      *logrus.Logger
}

func NewCatalogEventHandler(invalidator *cache.Invalidator, statistics *StatisticsAggregator, metrics *MetricsCollector, logger *logrus.Logger) *CatalogEventHandler {
	return &CatalogEventHandler{
		invalidator: invalidator,
		statistics:  statistics,
		metrics:     metrics,
		logger:      logger,
	}
}

func (h *CatalogEventHandler) HandleCatalogEvent(ctx context.Context, event models.CatalogEvent) error {
	err := h.apply(ctx, event)

	outcome := "applied"
	if err != nil {
		outcome = "failed"
	}
	h.metrics.RecordCatalogEvent(event.Type, outcome)

	h.logger.WithFields(logrus.Fields{
		"event_id": event.EventID,
		"type":     event.Type,
		"user_id":  event.UserID,
		"book_id":  event.BookID,
		"outcome":  outcome,
	}).Debug("Catalog event handled")

	return err
}

func (h *CatalogEventHandler) apply(ctx context.Context, event models.CatalogEvent) error {
	switch event.Type {
	case models.EventBookCreated, models.EventBookUpdated:
		if err := requireID("book_id", event.BookID); err != nil {
			return err
		}
		h.invalidator.BookChanged(event.BookID)

	case models.EventBookDeleted:
		if err := requireID("book_id", event.BookID); err != nil {
			return err
		}
		h.invalidator.BookDeleted(event.BookID)

	case models.EventOrderCreated, models.EventOrderCompleted, models.EventOrderDeleted:
		if err := requireID("user_id", event.UserID); err != nil {
			return err
		}
		h.invalidator.OrderChanged(event.UserID)

	case models.EventUserUpdated:
		if err := requireID("user_id", event.UserID); err != nil {
			return err
		}
		h.invalidator.ProfileUpdated(event.UserID)

	case models.EventUserDeleted:
		if err := requireID("user_id", event.UserID); err != nil {
			return err
		}
		h.invalidator.UserDeleted(event.UserID)

	case models.EventLibraryUpdated:
		if err := requireID("user_id", event.UserID); err != nil {
			return err
		}
		h.invalidator.LibraryChanged(event.UserID)

	case models.EventRatingDeleted:
		if err := requireID("user_id", event.UserID); err != nil {
			return err
		}
		if err := requireID("book_id", event.BookID); err != nil {
			return err
		}
		return h.statistics.RatingRemoved(ctx, event.UserID, event.BookID)

	default:
		return fmt.Errorf("%w: unknown catalog event type %q", ErrInvalidInput, event.Type)
	}

	return nil
}

func requireID(field, value string) error {
	if value == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	return nil
}
