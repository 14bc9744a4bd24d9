package retriever

import (
	"math"
	"sort"

	"kbrag/internal/domain"
)

const (
	DefaultThreshold     = 0.2
	DefaultMaxResults    = 3
	DefaultMinCandidates = 20

	boostPerBlock  = 0.1
	maxBoostBlocks = 3
)

type groupKey struct {
	documentID string
	title      string
}

// Boost returns the aggregated relevance of a document group. A single block
// keeps its own relevance; each extra block adds 10% up to three blocks, and
// the result never exceeds 1.
func Boost(maxRelevance float64, blockCount int) float64 {
	if blockCount <= 1 {
		return maxRelevance
	}
	n := blockCount
	if n > maxBoostBlocks {
		n = maxBoostBlocks
	}
	return math.Min(1, maxRelevance*(1+boostPerBlock*float64(n)))
}

// AggregateAll groups ranked chunks by document and returns every group sorted
// by boosted relevance, each flagged against threshold.
func AggregateAll(ranked []domain.ScoredChunk, threshold float64) []domain.RetrievalResult {
	order := make([]groupKey, 0)
	groups := make(map[groupKey]*domain.RetrievalResult)

	for _, sc := range ranked {
		key := groupKey{documentID: sc.Record.DocumentID, title: sc.Record.Title}
		g, ok := groups[key]
		if !ok {
			g = &domain.RetrievalResult{
				DocumentID:   sc.Record.DocumentID,
				Title:        sc.Record.Title,
				Type:         sc.Record.Type,
				Content:      sc.Record.Content,
				ChunkIndex:   sc.Record.ChunkIndex,
				TotalChunks:  sc.Record.TotalChunks,
				MaxRelevance: sc.Relevance,
			}
			groups[key] = g
			order = append(order, key)
		} else if sc.Relevance > g.MaxRelevance {
			g.MaxRelevance = sc.Relevance
			g.Type = sc.Record.Type
			g.Content = sc.Record.Content
			g.ChunkIndex = sc.Record.ChunkIndex
			g.TotalChunks = sc.Record.TotalChunks
		}
		g.BlockCount++
	}

	results := make([]domain.RetrievalResult, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.Relevance = Boost(g.MaxRelevance, g.BlockCount)
		g.BelowThreshold = g.Relevance < threshold
		results = append(results, *g)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Relevance > results[j].Relevance
	})
	return results
}

// Aggregate groups, boosts and filters ranked chunks, keeping at most
// maxResults documents. maxResults <= 0 disables truncation.
func Aggregate(ranked []domain.ScoredChunk, threshold float64, maxResults int) []domain.RetrievalResult {
	results := FilterByThreshold(AggregateAll(ranked, threshold), threshold)
	if maxResults > 0 && len(results) > maxResults {
		results = results[:maxResults]
	}
	return results
}

// FilterByThreshold drops results whose relevance is below threshold.
func FilterByThreshold(results []domain.RetrievalResult, threshold float64) []domain.RetrievalResult {
	kept := make([]domain.RetrievalResult, 0, len(results))
	for _, r := range results {
		if r.Relevance >= threshold {
			kept = append(kept, r)
		}
	}
	return kept
}

// CandidateLimit is how many chunk matches a search should consider so that
// aggregation sees enough documents.
func CandidateLimit(knownDocs int) int {
	if 2*knownDocs > DefaultMinCandidates {
		return 2 * knownDocs
	}
	return DefaultMinCandidates
}
