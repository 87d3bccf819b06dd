package models

import "time"

// DerivedStats is the denormalised aggregate written back onto users and books.
type DerivedStats struct {
	AverageRating float64 `json:"average_rating"`
	RatingCount   int     `json:"rating_count"`
}

type UserStatistics struct {
	UserID        string    `json:"user_id"`
	BooksRead     int       `json:"books_read"`
	AverageRating float64   `json:"average_rating"`
	RatingCount   int       `json:"number_of_ratings"`
	ComputedAt    time.Time `json:"computed_at"`
}

type BookStatistics struct {
	BookID            string      `json:"book_id"`
	AverageRating     float64     `json:"average_rating"`
	RatingCount       int         `json:"number_of_ratings"`
	ScoreDistribution map[int]int `json:"score_distribution"`
	ComputedAt        time.Time   `json:"computed_at"`
}
