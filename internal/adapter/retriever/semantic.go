package retriever

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"kbrag/internal/domain"
	"kbrag/internal/logging"
	"kbrag/internal/metrics"
	"kbrag/internal/port"
)

// SemanticRetriever ranks every stored chunk against the embedded query.
type SemanticRetriever struct {
	vectorStore port.VectorStore
	embedder    port.Embedder
	metrics     *metrics.Metrics
}

func NewSemanticRetriever(vectorStore port.VectorStore, embedder port.Embedder, m *metrics.Metrics) *SemanticRetriever {
	return &SemanticRetriever{
		vectorStore: vectorStore,
		embedder:    embedder,
		metrics:     m,
	}
}

// Search never fails: any error is logged and yields an empty result.
func (r *SemanticRetriever) Search(ctx context.Context, query, apiKey string, limit int, threshold float64) []domain.ScoredChunk {
	start := time.Now()
	defer func() { r.metrics.ObserveSearch(time.Since(start).Seconds()) }()

	results, err := r.search(ctx, query, apiKey, limit, threshold)
	if err != nil {
		r.metrics.SearchFailed()
		logging.FromContext(ctx).Error("semantic search failed",
			zap.Int("queryLength", len([]rune(query))),
			zap.Error(err))
		return []domain.ScoredChunk{}
	}
	return results
}

func (r *SemanticRetriever) search(ctx context.Context, query, apiKey string, limit int, threshold float64) ([]domain.ScoredChunk, error) {
	if r.vectorStore == nil || r.embedder == nil {
		return nil, fmt.Errorf("%w: retriever not configured", domain.ErrSearchFailure)
	}

	queryVector, err := r.embedder.Embed(ctx, query, apiKey)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to embed query: %w", domain.ErrSearchFailure, err)
	}
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("%w: %w", domain.ErrSearchFailure, errors.New("embedding returned empty vector"))
	}

	records, err := r.vectorStore.GetAllVectors(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load vectors: %w", domain.ErrSearchFailure, err)
	}
	if len(records) == 0 {
		return []domain.ScoredChunk{}, nil
	}

	return TopK(Rank(queryVector, records, threshold), limit), nil
}
