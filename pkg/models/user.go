package models

import "time"

type User struct {
	ID              string    `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	Role            string    `json:"role" db:"role"`
	PreferredGenres []string  `json:"preferred_genres,omitempty" db:"preferred_genres"`
	AverageRating   float64   `json:"average_rating" db:"average_rating"`
	RatingCount     int       `json:"rating_count" db:"rating_count"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time `json:"updated_at" db:"updated_at"`
}

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)
