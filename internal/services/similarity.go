package services

import (
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/temcen/bookshelf/pkg/models"
)

// CosineSimilarity compares two sparse rating vectors. The dot product runs
// over shared keys only while each magnitude uses the whole vector, so two
// users who agree on one book but rated many others score low. No shared
// keys or a zero magnitude gives 0.
func CosineSimilarity(a, b models.RatingVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	shared := make([]string, 0, min(len(a), len(b)))
	for k := range a {
		if _, ok := b[k]; ok {
			shared = append(shared, k)
		}
	}
	if len(shared) == 0 {
		return 0
	}
	sort.Strings(shared)

	xs := make([]float64, len(shared))
	ys := make([]float64, len(shared))
	for i, k := range shared {
		xs[i] = a[k]
		ys[i] = b[k]
	}

	magA := floats.Norm(sortedValues(a), 2)
	magB := floats.Norm(sortedValues(b), 2)
	if magA == 0 || magB == 0 {
		return 0
	}

	return floats.Dot(xs, ys) / (magA * magB)
}

func sortedValues(v models.RatingVector) []float64 {
	keys := v.Keys()
	sort.Strings(keys)
	out := make([]float64, len(keys))
	for i, k := range keys {
		out[i] = v[k]
	}
	return out
}

// rankSimilar scores target against every other vector, keeps positive
// scores and returns the topN best, ties broken by id.
func rankSimilar(targetID string, target models.RatingVector, others map[string]models.RatingVector, topN int) []models.SimilarityScore {
	scores := make([]models.SimilarityScore, 0)
	for id, vec := range others {
		if id == targetID {
			continue
		}
		if s := CosineSimilarity(target, vec); s > 0 {
			scores = append(scores, models.SimilarityScore{SubjectID: id, Score: s})
		}
	}

	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].SubjectID < scores[j].SubjectID
	})

	if topN > 0 && len(scores) > topN {
		scores = scores[:topN]
	}
	return scores
}

// rankCandidates turns accumulated scores into a list sorted by score, ties
// broken by id.
func rankCandidates(scores map[string]float64) []models.RecommendationCandidate {
	out := make([]models.RecommendationCandidate, 0, len(scores))
	for id, s := range scores {
		out = append(out, models.RecommendationCandidate{ItemID: id, AggregateScore: s})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AggregateScore != out[j].AggregateScore {
			return out[i].AggregateScore > out[j].AggregateScore
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out
}

func topCandidateIDs(candidates []models.RecommendationCandidate, limit int) []string {
	if limit <= 0 {
		return nil
	}
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.ItemID
	}
	return ids
}

// nonEmpty keeps "no signal yet" results out of the cache: another user's
// rating can create neighbours without touching this user's keys.
func nonEmpty[E any](s []E) bool {
	return len(s) > 0
}
