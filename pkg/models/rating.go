package models

import "time"

const (
	MinScore = 1.0
	MaxScore = 5.0
)

// Rating is keyed by (UserID, BookID). An upsert overwrites Score and
// ReviewText and keeps CreatedAt.
type Rating struct {
	UserID     string    `json:"user_id" db:"user_id"`
	BookID     string    `json:"book_id" db:"book_id"`
	Score      float64   `json:"score" db:"score"`
	ReviewText *string   `json:"review_text,omitempty" db:"review_text"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}

// RatingVector maps subject ids to scores: a user's scores over books, or a
// book's scores over users.
type RatingVector map[string]float64

// Keys returns the vector's ids in no particular order.
func (v RatingVector) Keys() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	return keys
}

type RatingRequest struct {
	Score      float64 `json:"score" validate:"required,min=1,max=5"`
	ReviewText *string `json:"review_text,omitempty" validate:"omitempty,max=5000"`
}
