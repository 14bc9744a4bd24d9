package retriever

import (
	"math"
	"sort"

	"kbrag/internal/domain"
)

// CosineSimilarity returns dot(a,b) / (|a||b|). Vectors of different length
// or with a zero norm score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Rank scores every record against query, clamps relevance to [0,1] and
// sorts by relevance descending. Records below threshold are flagged, not
// removed.
func Rank(query []float32, records []domain.ChunkRecord, threshold float64) []domain.ScoredChunk {
	scored := make([]domain.ScoredChunk, 0, len(records))
	for _, rec := range records {
		rel := clamp01(CosineSimilarity(query, rec.Vector))
		scored = append(scored, domain.ScoredChunk{
			Record:         rec,
			Relevance:      rel,
			BelowThreshold: rel < threshold,
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Relevance > scored[j].Relevance
	})
	return scored
}

// TopK returns at most k leading entries. k <= 0 returns everything.
func TopK(ranked []domain.ScoredChunk, k int) []domain.ScoredChunk {
	if k <= 0 || k >= len(ranked) {
		return ranked
	}
	return ranked[:k]
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
