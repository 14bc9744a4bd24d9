package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"kbrag/config"
	"kbrag/internal/domain"
	"kbrag/internal/logging"
	"kbrag/internal/metrics"
	"kbrag/internal/port"
)

// VectorizerOptions tunes embedding retries and large-document pacing.
type VectorizerOptions struct {
	RetryLengths     []int         // Prefix lengths tried after the full chunk fails
	LargeDocChars    int           // Documents longer than this are paced
	PauseEveryChunks int           // Pause after every N chunks of a large document
	Pause            time.Duration // Pause duration
}

// OptionsFromConfig derives vectorizer options from cfg.
func OptionsFromConfig(cfg *config.Config) VectorizerOptions {
	return VectorizerOptions{
		RetryLengths:     cfg.Embedding.RetryLengths,
		LargeDocChars:    cfg.Ingest.LargeDocChars,
		PauseEveryChunks: cfg.Ingest.PauseEveryChunks,
		Pause:            cfg.Ingest.Pause,
	}
}

// Vectorizer turns documents into stored chunk vectors.
type Vectorizer struct {
	store    port.VectorStore
	embedder port.Embedder
	chunker  port.Chunker
	metrics  *metrics.Metrics
	opts     VectorizerOptions

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewVectorizer creates a vectorizer. m may be nil.
func NewVectorizer(
	store port.VectorStore,
	embedder port.Embedder,
	chunker port.Chunker,
	opts VectorizerOptions,
	m *metrics.Metrics,
) *Vectorizer {
	return &Vectorizer{
		store:    store,
		embedder: embedder,
		chunker:  chunker,
		metrics:  m,
		opts:     opts,
		now:      time.Now,
		sleep:    sleepContext,
	}
}

// StoreDocumentVectors chunks, embeds and stores doc, replacing any vectors
// stored for it before. Chunks that cannot be embedded or stored are skipped.
// It returns the number of chunk vectors stored.
func (v *Vectorizer) StoreDocumentVectors(ctx context.Context, doc domain.Document, apiKey string) (int, error) {
	logger := logging.FromContext(ctx).With(zap.String("documentId", doc.ID), zap.String("title", doc.Title))

	if strings.TrimSpace(doc.Content) == "" {
		logger.Debug("document has no content, nothing to vectorize")
		return 0, nil
	}

	if err := v.store.DeleteDocumentVectors(ctx, doc.ID); err != nil {
		return 0, fmt.Errorf("failed to clear vectors of %s: %w", doc.ID, err)
	}

	stored := 0
	chunks, err := v.embedChunks(ctx, doc, apiKey, func(rec domain.ChunkRecord) {
		if _, err := v.store.AddVectors(ctx, []domain.ChunkRecord{rec}); err != nil {
			v.metrics.ChunkSkipped()
			logger.Warn("failed to store chunk vector", zap.Int("chunkIndex", rec.ChunkIndex), zap.Error(err))
			return
		}
		v.metrics.ChunkStored()
		stored++
	})
	if err != nil {
		return stored, err
	}

	logger.Info("document vectorized", zap.Int("chunks", chunks), zap.Int("stored", stored))
	return stored, nil
}

// ReplaceDocumentVectors embeds doc and swaps its vectors in a single store
// transaction. Chunks that cannot be embedded are skipped like in
// StoreDocumentVectors. When no chunk could be embedded, or the context ends
// first, the stored vectors are left untouched.
func (v *Vectorizer) ReplaceDocumentVectors(ctx context.Context, doc domain.Document, apiKey string) (int, error) {
	var records []domain.ChunkRecord
	chunks, err := v.embedChunks(ctx, doc, apiKey, func(rec domain.ChunkRecord) {
		records = append(records, rec)
	})
	if err != nil {
		return 0, err
	}
	if len(records) == 0 && chunks > 0 {
		return 0, fmt.Errorf("no chunk of %s could be embedded", doc.ID)
	}

	stored, err := v.store.ReplaceDocumentVectors(ctx, doc.ID, records)
	if err != nil {
		return 0, err
	}
	for i := 0; i < len(stored); i++ {
		v.metrics.ChunkStored()
	}
	logging.FromContext(ctx).Info("document re-vectorized",
		zap.String("documentId", doc.ID), zap.Int("chunks", chunks), zap.Int("stored", len(stored)))
	return len(stored), nil
}

// embedChunks chunks doc and passes a record for every chunk that could be
// embedded to emit, skipping the others. The context is checked before each
// chunk and large documents are paced. It returns the number of chunks.
func (v *Vectorizer) embedChunks(ctx context.Context, doc domain.Document, apiKey string, emit func(domain.ChunkRecord)) (int, error) {
	logger := logging.FromContext(ctx).With(zap.String("documentId", doc.ID))

	chunks, truncated := v.chunker.Chunk(doc.Content)
	if truncated {
		logger.Warn("document exceeds chunk limit, trailing content not vectorized",
			zap.Int("chunks", len(chunks)))
	}

	large := v.opts.LargeDocChars > 0 && len([]rune(doc.Content)) > v.opts.LargeDocChars

	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return len(chunks), err
		}

		content, vector, err := v.embedWithRetry(ctx, chunk, apiKey)
		if err != nil {
			v.metrics.ChunkSkipped()
			logger.Warn("skipping chunk after failed embedding attempts",
				zap.Int("chunkIndex", i), zap.Error(err))
		} else {
			emit(domain.ChunkRecord{
				DocumentID:  doc.ID,
				Title:       doc.Title,
				Type:        doc.Type,
				ChunkIndex:  i,
				TotalChunks: len(chunks),
				Content:     content,
				Vector:      vector,
				CreatedAt:   v.now(),
			})
		}

		if large && v.opts.PauseEveryChunks > 0 && (i+1)%v.opts.PauseEveryChunks == 0 && i+1 < len(chunks) {
			if err := v.sleep(ctx, v.opts.Pause); err != nil {
				return len(chunks), err
			}
		}
	}
	return len(chunks), nil
}

// embedWithRetry embeds the full chunk, then successively shorter prefixes of
// it. It returns the text that was embedded.
func (v *Vectorizer) embedWithRetry(ctx context.Context, chunk, apiKey string) (string, []float32, error) {
	vector, err := v.embedder.Embed(ctx, chunk, apiKey)
	if err == nil {
		v.metrics.EmbeddingOutcome("success")
		return chunk, vector, nil
	}
	v.metrics.EmbeddingOutcome("failure")

	runes := []rune(chunk)
	lastErr := err
	for _, n := range v.opts.RetryLengths {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", nil, ctxErr
		}
		text := chunk
		if n < len(runes) {
			text = string(runes[:n])
		}

		logging.FromContext(ctx).Debug("retrying embedding with truncated chunk",
			zap.Int("length", n), zap.Error(lastErr))
		v.metrics.DegradedRetry()

		vector, err = v.embedder.Embed(ctx, text, apiKey)
		if err == nil {
			v.metrics.EmbeddingOutcome("degraded")
			return text, vector, nil
		}
		v.metrics.EmbeddingOutcome("failure")
		lastErr = err
	}
	return "", nil, lastErr
}

// DeleteDocumentVectors removes the vectors of a document. Failures are logged
// and reported as false.
func (v *Vectorizer) DeleteDocumentVectors(ctx context.Context, documentID string) bool {
	if err := v.store.DeleteDocumentVectors(ctx, documentID); err != nil {
		logging.FromContext(ctx).Error("failed to delete document vectors",
			zap.String("documentId", documentID), zap.Error(err))
		return false
	}
	return true
}

// VectorizeResult summarizes a batch run.
type VectorizeResult struct {
	Documents int
	Succeeded int
	Failed    int
	Chunks    int
	Errors    []string
}

// VectorizeDocuments vectorizes docs one after another. progress, if set, is
// called before each document and once more when the batch is done.
func (v *Vectorizer) VectorizeDocuments(
	ctx context.Context,
	docs []domain.Document,
	apiKey string,
	progress func(domain.VectorizeProgress),
) (*VectorizeResult, error) {
	result := &VectorizeResult{Documents: len(docs)}
	state := domain.VectorizeProgress{Total: len(docs)}

	report := func() {
		if progress != nil {
			progress(state)
		}
	}

	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		state.Current = doc.Title
		report()

		n, err := v.vectorize(ctx, doc, apiKey)
		state.Processed++
		result.Chunks += n
		switch {
		case err != nil:
			state.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", doc.Title, err))
			if ctx.Err() != nil {
				result.Failed = state.Failed
				result.Succeeded = state.Success
				report()
				return result, ctx.Err()
			}
		case n == 0:
			state.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: no chunks stored", doc.Title))
		default:
			state.Success++
		}
	}

	state.Current = ""
	report()
	result.Succeeded = state.Success
	result.Failed = state.Failed
	return result, nil
}

// vectorize swaps the vectors of an already stored document atomically and
// stores new documents incrementally.
func (v *Vectorizer) vectorize(ctx context.Context, doc domain.Document, apiKey string) (int, error) {
	existing, err := v.store.GetDocumentVectors(ctx, doc.ID)
	if err == nil && len(existing) > 0 && strings.TrimSpace(doc.Content) != "" {
		return v.ReplaceDocumentVectors(ctx, doc, apiKey)
	}
	return v.StoreDocumentVectors(ctx, doc, apiKey)
}

// IsCurrent reports whether doc has stored vectors created no earlier than
// doc.UpdatedAt. A zero UpdatedAt only requires vectors to exist.
func (v *Vectorizer) IsCurrent(ctx context.Context, doc domain.Document) bool {
	records, err := v.store.GetDocumentVectors(ctx, doc.ID)
	if err != nil || len(records) == 0 {
		return false
	}
	for _, rec := range records {
		if rec.CreatedAt.Before(doc.UpdatedAt) {
			return false
		}
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
