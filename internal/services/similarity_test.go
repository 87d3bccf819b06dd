package services

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/temcen/bookshelf/pkg/models"
)

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     models.RatingVector
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        models.RatingVector{"x": 5, "y": 3},
			b:        models.RatingVector{"x": 5, "y": 3},
			expected: 1,
		},
		{
			name:     "disjoint vectors",
			a:        models.RatingVector{"x": 5},
			b:        models.RatingVector{"y": 5},
			expected: 0,
		},
		{
			name:     "empty vector",
			a:        models.RatingVector{},
			b:        models.RatingVector{"y": 5},
			expected: 0,
		},
		{
			name:     "magnitudes span the full vectors",
			a:        models.RatingVector{"x": 5, "y": 3},
			b:        models.RatingVector{"x": 4, "z": 2},
			expected: 20 / (math.Sqrt(34) * math.Sqrt(20)),
		},
		{
			name:     "zero magnitude",
			a:        models.RatingVector{"x": 0},
			b:        models.RatingVector{"x": 3},
			expected: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CosineSimilarity(tt.a, tt.b), 1e-9)
		})
	}
}

func TestCosineSimilarity_Symmetric(t *testing.T) {
	vectors := []models.RatingVector{
		{"a": 5, "b": 4, "c": 1},
		{"a": 2, "c": 5},
		{"b": 3, "d": 4, "e": 2},
		{"a": 1},
	}
	for _, a := range vectors {
		assert.InDelta(t, 1.0, CosineSimilarity(a, a), 1e-9)
		for _, b := range vectors {
			assert.InDelta(t, CosineSimilarity(a, b), CosineSimilarity(b, a), 1e-12)
		}
	}
}

func TestRankSimilar(t *testing.T) {
	target := models.RatingVector{"a": 5, "b": 4}
	others := map[string]models.RatingVector{
		"self":  {"a": 5, "b": 4},
		"close": {"a": 5, "b": 4, "c": 1},
		"far":   {"a": 1, "z": 5},
		"none":  {"z": 5},
	}

	ranked := rankSimilar("self", target, others, 10)

	assert.Len(t, ranked, 2)
	assert.Equal(t, "close", ranked[0].SubjectID)
	assert.Equal(t, "far", ranked[1].SubjectID)
	for _, s := range ranked {
		assert.Greater(t, s.Score, 0.0)
	}

	assert.Len(t, rankSimilar("self", target, others, 1), 1)
}

func TestRankCandidates_TiesByID(t *testing.T) {
	ranked := rankCandidates(map[string]float64{"b": 2, "a": 2, "c": 3})
	assert.Equal(t, []string{"c", "a", "b"}, topCandidateIDs(ranked, 10))
	assert.Equal(t, []string{"c"}, topCandidateIDs(ranked, 1))
	assert.Nil(t, topCandidateIDs(ranked, 0))
}
