package models

import "time"

type Book struct {
	ID            string    `json:"id" db:"id"`
	Title         string    `json:"title" db:"title"`
	Author        string    `json:"author" db:"author"`
	Genre         string    `json:"genre" db:"genre"`
	Description   string    `json:"description,omitempty" db:"description"`
	Publisher     string    `json:"publisher,omitempty" db:"publisher"`
	Language      string    `json:"language,omitempty" db:"language"`
	Pages         int       `json:"pages,omitempty" db:"pages"`
	Price         float64   `json:"price" db:"price"`
	ISBN          string    `json:"isbn,omitempty" db:"isbn"`
	CoverImageURL string    `json:"cover_image_url,omitempty" db:"cover_image_url"`
	AverageRating float64   `json:"average_rating" db:"average_rating"`
	RatingCount   int       `json:"rating_count" db:"rating_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
