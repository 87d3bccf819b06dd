package models

import "time"

// Recommendation sources, in the order the hybrid feed consults them.
const (
	SourceUserBased  = "user_based"
	SourceItemBased  = "item_based"
	SourcePopularity = "popularity"
	SourceContent    = "content"
)

type SimilarityScore struct {
	SubjectID string  `json:"subject_id"`
	Score     float64 `json:"score"`
}

type RecommendationCandidate struct {
	ItemID         string  `json:"item_id"`
	AggregateScore float64 `json:"aggregate_score"`
}

type Recommendation struct {
	Book     Book   `json:"book"`
	Source   string `json:"source"`
	Position int    `json:"position"`
}

type RecommendationResponse struct {
	UserID          string           `json:"user_id"`
	Recommendations []Recommendation `json:"recommendations"`
	Strategies      []string         `json:"strategies"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

type BookListResponse struct {
	Books       []Book    `json:"books"`
	Count       int       `json:"count"`
	GeneratedAt time.Time `json:"generated_at"`
}
