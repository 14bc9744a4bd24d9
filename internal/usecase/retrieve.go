package usecase

import (
	"context"

	"go.uber.org/zap"

	"kbrag/config"
	"kbrag/internal/adapter/retriever"
	"kbrag/internal/domain"
	"kbrag/internal/logging"
	"kbrag/internal/port"
)

// Retrieval turns a user query into ranked, per-document context.
type Retrieval struct {
	retriever port.Retriever
	store     port.VectorStore
	cfg       config.SearchConfig

	knownDocs int
}

// NewRetrieval creates a retrieval use case.
func NewRetrieval(r port.Retriever, store port.VectorStore, cfg config.SearchConfig) *Retrieval {
	return &Retrieval{
		retriever: r,
		store:     store,
		cfg:       cfg,
	}
}

// Search returns the top limit chunk matches for query. It never fails; an
// empty slice means no context is available.
func (u *Retrieval) Search(ctx context.Context, query, apiKey string, limit int, threshold float64) []domain.ScoredChunk {
	return u.retriever.Search(ctx, query, apiKey, limit, threshold)
}

// SetKnownDocuments sets the size of the knowledge base, including documents
// that have no vectors yet. The candidate pool is sized from the larger of it
// and the number of vectorized documents.
func (u *Retrieval) SetKnownDocuments(n int) {
	u.knownDocs = n
}

// CandidateLimit returns how many chunk matches to rank for the current store.
func (u *Retrieval) CandidateLimit(ctx context.Context) int {
	docs := u.knownDocs
	stats, err := u.store.Stats(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn("failed to read store stats", zap.Error(err))
	} else if stats.TotalDocuments > docs {
		docs = stats.TotalDocuments
	}
	limit := retriever.CandidateLimit(docs)
	if limit < u.minCandidates() {
		limit = u.minCandidates()
	}
	return limit
}

// RetrieveContext searches, then groups and filters the matches by document.
func (u *Retrieval) RetrieveContext(ctx context.Context, query, apiKey string) []domain.RetrievalResult {
	ranked := u.Search(ctx, query, apiKey, u.CandidateLimit(ctx), u.cfg.Threshold)
	results := retriever.Aggregate(ranked, u.cfg.Threshold, u.cfg.MaxResults)

	logging.FromContext(ctx).Debug("retrieved context",
		zap.Int("candidates", len(ranked)),
		zap.Int("documents", len(results)))
	return results
}

// Explain returns every document group of the search, including those below
// the threshold.
func (u *Retrieval) Explain(ctx context.Context, query, apiKey string) []domain.RetrievalResult {
	ranked := u.Search(ctx, query, apiKey, u.CandidateLimit(ctx), u.cfg.Threshold)
	return retriever.AggregateAll(ranked, u.cfg.Threshold)
}

func (u *Retrieval) minCandidates() int {
	if u.cfg.MinCandidates > 0 {
		return u.cfg.MinCandidates
	}
	return retriever.DefaultMinCandidates
}
