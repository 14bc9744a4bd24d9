package port

import (
	"context"

	"kbrag/internal/domain"
)

// Retriever searches stored chunks for a query.
type Retriever interface {
	// Search returns the top limit chunk matches, flagged against threshold.
	Search(ctx context.Context, query, apiKey string, limit int, threshold float64) []domain.ScoredChunk
}
