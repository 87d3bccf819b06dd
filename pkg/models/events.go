package models

import "time"

// Catalog event types emitted by the bookstore CRUD layer.
const (
	EventBookCreated    = "book.created"
	EventBookUpdated    = "book.updated"
	EventBookDeleted    = "book.deleted"
	EventOrderCreated   = "order.created"
	EventOrderCompleted = "order.completed"
	EventOrderDeleted   = "order.deleted"
	EventUserUpdated    = "user.updated"
	EventUserDeleted    = "user.deleted"
	EventRatingDeleted  = "rating.deleted"
	EventLibraryUpdated = "library.updated"

	EventRatingRecorded = "rating.recorded"
)

type CatalogEvent struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	UserID     string    `json:"user_id,omitempty"`
	BookID     string    `json:"book_id,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

type RatingEvent struct {
	EventID    string       `json:"event_id"`
	Type       string       `json:"type"`
	UserID     string       `json:"user_id"`
	BookID     string       `json:"book_id"`
	Score      float64      `json:"score"`
	UserStats  DerivedStats `json:"user_stats"`
	BookStats  DerivedStats `json:"book_stats"`
	OccurredAt time.Time    `json:"occurred_at"`
}
