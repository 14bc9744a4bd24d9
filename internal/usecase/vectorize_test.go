package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"kbrag/internal/adapter/chunker"
	"kbrag/internal/adapter/embedding"
	"kbrag/internal/adapter/memstore"
	"kbrag/internal/domain"
	"kbrag/internal/metrics"
)

// scriptedEmbedder fails for inputs accepted by fail and records every input.
type scriptedEmbedder struct {
	fail   func(text string) bool
	inputs []string
}

func (e *scriptedEmbedder) Embed(_ context.Context, text, _ string) ([]float32, error) {
	e.inputs = append(e.inputs, text)
	if e.fail != nil && e.fail(text) {
		return nil, &domain.EmbeddingAPIError{StatusCode: http.StatusInternalServerError}
	}
	return []float32{1, float32(len(text))}, nil
}

func (e *scriptedEmbedder) Dimension() int    { return 2 }
func (e *scriptedEmbedder) ModelName() string { return "scripted" }

func defaultOptions() VectorizerOptions {
	return VectorizerOptions{
		RetryLengths:     []int{2000, 1000},
		LargeDocChars:    1000000,
		PauseEveryChunks: 5,
		Pause:            time.Second,
	}
}

func newTestVectorizer(emb *scriptedEmbedder, opts VectorizerOptions) (*Vectorizer, *memstore.MemoryStore) {
	st := memstore.NewMemoryStore()
	v := NewVectorizer(st, emb, chunker.NewCharChunker(3000, 200, 500), opts, nil)
	v.sleep = func(context.Context, time.Duration) error { return nil }
	return v, st
}

func TestStoreDocumentVectors_ChunksLongDocument(t *testing.T) {
	v, st := newTestVectorizer(&scriptedEmbedder{}, defaultOptions())
	doc := domain.Document{ID: "doc-1", Title: "Guide", Type: "md", Content: strings.Repeat("abcdefghij", 900)}

	n, err := v.StoreDocumentVectors(context.Background(), doc, "key")
	require.NoError(t, err)
	require.Equal(t, 4, n)

	records, err := st.GetDocumentVectors(context.Background(), "doc-1")
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, rec := range records {
		require.Equal(t, i, rec.ChunkIndex)
		require.Equal(t, 4, rec.TotalChunks)
		require.Equal(t, "Guide", rec.Title)
		require.Equal(t, "md", rec.Type)
		require.LessOrEqual(t, len(rec.Content), 3000)
	}
	require.Len(t, records[3].Content, 600)
}

func TestStoreDocumentVectors_BlankContent(t *testing.T) {
	emb := &scriptedEmbedder{}
	v, _ := newTestVectorizer(emb, defaultOptions())

	n, err := v.StoreDocumentVectors(context.Background(), domain.Document{ID: "empty", Content: " \n\t "}, "key")
	require.NoError(t, err)
	require.Equal(t, 0, n)
	require.Empty(t, emb.inputs)
}

func TestStoreDocumentVectors_DegradedRetryOverHTTP(t *testing.T) {
	var calls atomic.Int32
	var lastInput string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Input string `json:"input"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		lastInput = req.Input
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error":{"message":"overloaded"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{{"embedding": []float32{0.5, 0.5}}},
		})
	}))
	t.Cleanup(srv.Close)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	st := memstore.NewMemoryStore()
	emb := embedding.NewOpenAIEmbedder(embedding.Options{BaseURL: srv.URL, Timeout: 5 * time.Second})
	v := NewVectorizer(st, emb, chunker.NewCharChunker(3000, 200, 500), defaultOptions(), m)

	content := strings.Repeat("x", 2500)
	n, err := v.StoreDocumentVectors(context.Background(), domain.Document{ID: "d", Title: "D", Content: content}, "sk-test")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, int32(3), calls.Load())
	require.Len(t, lastInput, 1000)

	records, err := st.GetAllVectors(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, content[:1000], records[0].Content)

	require.Equal(t, 2.0, testutil.ToFloat64(m.DegradedRetries))
	require.Equal(t, 1.0, testutil.ToFloat64(m.ChunksStored))
	require.Equal(t, 2.0, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.EmbeddingRequests.WithLabelValues("degraded")))
}

func TestStoreDocumentVectors_SkipsChunkAfterExhaustedRetries(t *testing.T) {
	// the second chunk starts with "B" and every attempt on it fails
	emb := &scriptedEmbedder{fail: func(text string) bool { return strings.HasPrefix(text, "B") }}
	v, st := newTestVectorizer(emb, defaultOptions())

	content := strings.Repeat("a", 2800) + strings.Repeat("B", 2800) + strings.Repeat("c", 1000)
	n, err := v.StoreDocumentVectors(context.Background(), domain.Document{ID: "d", Content: content}, "key")
	require.NoError(t, err)
	require.Equal(t, 2, n)

	records, err := st.GetDocumentVectors(context.Background(), "d")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, 0, records[0].ChunkIndex)
	require.Equal(t, 2, records[1].ChunkIndex)
	require.Equal(t, 3, records[1].TotalChunks)

	// full text, then the 2000 and 1000 prefixes
	var bAttempts []int
	for _, in := range emb.inputs {
		if strings.HasPrefix(in, "B") {
			bAttempts = append(bAttempts, len(in))
		}
	}
	require.Equal(t, []int{3000, 2000, 1000}, bAttempts)
}

func TestStoreDocumentVectors_ReplacesPriorVectors(t *testing.T) {
	v, st := newTestVectorizer(&scriptedEmbedder{}, defaultOptions())
	ctx := context.Background()

	_, err := v.StoreDocumentVectors(ctx, domain.Document{ID: "d", Content: strings.Repeat("a", 9000)}, "key")
	require.NoError(t, err)
	n, err := v.StoreDocumentVectors(ctx, domain.Document{ID: "d", Content: "short"}, "key")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	records, err := st.GetDocumentVectors(ctx, "d")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "short", records[0].Content)
}

func TestStoreDocumentVectors_PacesLargeDocuments(t *testing.T) {
	opts := defaultOptions()
	opts.LargeDocChars = 100

	st := memstore.NewMemoryStore()
	v := NewVectorizer(st, &scriptedEmbedder{}, chunker.NewCharChunker(30, 0, 500), opts, nil)
	var pauses []time.Duration
	v.sleep = func(_ context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	n, err := v.StoreDocumentVectors(context.Background(), domain.Document{ID: "big", Content: strings.Repeat("z", 330)}, "key")
	require.NoError(t, err)
	require.Equal(t, 11, n)
	require.Equal(t, []time.Duration{time.Second, time.Second}, pauses)
}

func TestVectorizeDocuments_PacesLargeDocumentsOnReingest(t *testing.T) {
	opts := defaultOptions()
	opts.LargeDocChars = 100

	st := memstore.NewMemoryStore()
	v := NewVectorizer(st, &scriptedEmbedder{}, chunker.NewCharChunker(30, 0, 500), opts, nil)
	var pauses int
	v.sleep = func(context.Context, time.Duration) error {
		pauses++
		return nil
	}

	doc := domain.Document{ID: "big", Title: "big", Content: strings.Repeat("z", 330)}
	ctx := context.Background()

	_, err := v.VectorizeDocuments(ctx, []domain.Document{doc}, "key", nil)
	require.NoError(t, err)
	require.Equal(t, 2, pauses)

	result, err := v.VectorizeDocuments(ctx, []domain.Document{doc}, "key", nil)
	require.NoError(t, err)
	require.Equal(t, 11, result.Chunks)
	require.Equal(t, 4, pauses)
}

func TestReplaceDocumentVectors_StopsOnCanceledContext(t *testing.T) {
	emb := &scriptedEmbedder{}
	v, st := newTestVectorizer(emb, defaultOptions())
	ctx := context.Background()

	_, err := v.StoreDocumentVectors(ctx, domain.Document{ID: "d", Content: "old"}, "key")
	require.NoError(t, err)

	canceled, cancel := context.WithCancel(ctx)
	cancel()
	calls := len(emb.inputs)
	_, err = v.ReplaceDocumentVectors(canceled, domain.Document{ID: "d", Content: strings.Repeat("n", 9000)}, "key")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, calls, len(emb.inputs))

	records, err := st.GetDocumentVectors(ctx, "d")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "old", records[0].Content)
}

func TestVectorizeDocuments_ReingestEmbedsEachChunkOnce(t *testing.T) {
	// the middle chunk starts with "B" and fails on every attempt
	emb := &scriptedEmbedder{fail: func(text string) bool { return strings.HasPrefix(text, "B") }}
	v, st := newTestVectorizer(emb, defaultOptions())
	ctx := context.Background()

	doc := domain.Document{ID: "d", Title: "d", Content: strings.Repeat("a", 2800) + strings.Repeat("B", 2800) + strings.Repeat("c", 1000)}

	_, err := v.VectorizeDocuments(ctx, []domain.Document{doc}, "key", nil)
	require.NoError(t, err)
	require.Len(t, emb.inputs, 5)

	emb.inputs = nil
	result, err := v.VectorizeDocuments(ctx, []domain.Document{doc}, "key", nil)
	require.NoError(t, err)
	require.Len(t, emb.inputs, 5)
	require.Equal(t, 2, result.Chunks)
	require.Equal(t, 1, result.Succeeded)

	records, err := st.GetDocumentVectors(ctx, "d")
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, 0, records[0].ChunkIndex)
	require.Equal(t, 2, records[1].ChunkIndex)
}

func TestIsCurrent(t *testing.T) {
	v, _ := newTestVectorizer(&scriptedEmbedder{}, defaultOptions())
	ctx := context.Background()
	stored := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	v.now = func() time.Time { return stored }

	doc := domain.Document{ID: "d", Content: "hello"}
	require.False(t, v.IsCurrent(ctx, doc))

	_, err := v.StoreDocumentVectors(ctx, doc, "key")
	require.NoError(t, err)
	require.True(t, v.IsCurrent(ctx, doc))

	doc.UpdatedAt = stored.Add(-time.Minute)
	require.True(t, v.IsCurrent(ctx, doc))

	doc.UpdatedAt = stored.Add(time.Second)
	require.False(t, v.IsCurrent(ctx, doc))
}

func TestStoreDocumentVectors_CanceledDuringPause(t *testing.T) {
	opts := defaultOptions()
	opts.LargeDocChars = 10

	st := memstore.NewMemoryStore()
	v := NewVectorizer(st, &scriptedEmbedder{}, chunker.NewCharChunker(10, 0, 500), opts, nil)

	ctx, cancel := context.WithCancel(context.Background())
	v.sleep = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}

	n, err := v.StoreDocumentVectors(ctx, domain.Document{ID: "big", Content: strings.Repeat("z", 100)}, "key")
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 5, n)
}

func TestReplaceDocumentVectors_AtomicOnFailure(t *testing.T) {
	emb := &scriptedEmbedder{}
	v, st := newTestVectorizer(emb, defaultOptions())
	ctx := context.Background()

	n, err := v.ReplaceDocumentVectors(ctx, domain.Document{ID: "d", Content: "first version"}, "key")
	require.NoError(t, err)
	require.Equal(t, 1, n)

	emb.fail = func(string) bool { return true }
	_, err = v.ReplaceDocumentVectors(ctx, domain.Document{ID: "d", Content: "second version"}, "key")
	require.Error(t, err)

	records, err := st.GetDocumentVectors(ctx, "d")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "first version", records[0].Content)
}

type failingDeleteStore struct {
	*memstore.MemoryStore
}

func (failingDeleteStore) DeleteDocumentVectors(context.Context, string) error {
	return &domain.StorageError{Op: "delete", Err: errors.New("disk full")}
}

func TestDeleteDocumentVectors(t *testing.T) {
	v, st := newTestVectorizer(&scriptedEmbedder{}, defaultOptions())
	ctx := context.Background()

	_, err := v.StoreDocumentVectors(ctx, domain.Document{ID: "d", Content: "hello"}, "key")
	require.NoError(t, err)
	require.True(t, v.DeleteDocumentVectors(ctx, "d"))
	require.True(t, v.DeleteDocumentVectors(ctx, "d"))

	records, err := st.GetAllVectors(ctx)
	require.NoError(t, err)
	require.Empty(t, records)

	broken := NewVectorizer(failingDeleteStore{memstore.NewMemoryStore()}, &scriptedEmbedder{}, chunker.NewCharChunker(3000, 200, 500), defaultOptions(), nil)
	require.False(t, broken.DeleteDocumentVectors(ctx, "d"))

	_, err = broken.StoreDocumentVectors(ctx, domain.Document{ID: "d", Content: "hello"}, "key")
	require.Error(t, err)
}

func TestVectorizeDocuments_Progress(t *testing.T) {
	emb := &scriptedEmbedder{fail: func(text string) bool { return strings.HasPrefix(text, "bad") }}
	v, _ := newTestVectorizer(emb, defaultOptions())

	docs := []domain.Document{
		{ID: "1", Title: "one", Content: "good content"},
		{ID: "2", Title: "two", Content: "bad content"},
		{ID: "3", Title: "three", Content: "more good content"},
	}

	var updates []domain.VectorizeProgress
	result, err := v.VectorizeDocuments(context.Background(), docs, "key", func(p domain.VectorizeProgress) {
		updates = append(updates, p)
	})
	require.NoError(t, err)
	require.Equal(t, 3, result.Documents)
	require.Equal(t, 2, result.Succeeded)
	require.Equal(t, 1, result.Failed)
	require.Equal(t, 2, result.Chunks)
	require.Len(t, result.Errors, 1)

	require.Len(t, updates, 4)
	require.Equal(t, domain.VectorizeProgress{Total: 3, Current: "one"}, updates[0])
	require.Equal(t, domain.VectorizeProgress{Total: 3, Processed: 3, Success: 2, Failed: 1}, updates[3])
}

func TestVectorizeDocuments_ReplacesExistingDocument(t *testing.T) {
	emb := &scriptedEmbedder{}
	v, st := newTestVectorizer(emb, defaultOptions())
	ctx := context.Background()

	_, err := v.StoreDocumentVectors(ctx, domain.Document{ID: "d", Content: strings.Repeat("a", 9000)}, "key")
	require.NoError(t, err)

	// "z" chunks fail even when truncated and are left out of the swap
	emb.fail = func(text string) bool { return strings.HasPrefix(text, "z") }
	result, err := v.VectorizeDocuments(ctx, []domain.Document{
		{ID: "d", Title: "d", Content: "new text"},
	}, "key", nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Succeeded)

	records, err := st.GetDocumentVectors(ctx, "d")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "new text", records[0].Content)

	content := strings.Repeat("b", 2800) + strings.Repeat("z", 1000)
	result, err = v.VectorizeDocuments(ctx, []domain.Document{{ID: "d", Title: "d", Content: content}}, "key", nil)
	require.NoError(t, err)
	require.Equal(t, 1, result.Chunks)

	records, err = st.GetDocumentVectors(ctx, "d")
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 0, records[0].ChunkIndex)
	require.Equal(t, 2, records[0].TotalChunks)
}
