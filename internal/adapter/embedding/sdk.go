package embedding

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"kbrag/internal/domain"
)

// SDKEmbedder implements the embedder port on top of the go-openai client.
// Clients are created per API key and reused.
type SDKEmbedder struct {
	opts Options

	mu      sync.Mutex
	clients map[string]*openai.Client
}

func NewSDKEmbedder(opts Options) *SDKEmbedder {
	if opts.Model == "" {
		opts.Model = DefaultModel
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Dimension <= 0 {
		opts.Dimension = modelDimensions[opts.Model]
	}
	return &SDKEmbedder{
		opts:    opts,
		clients: make(map[string]*openai.Client),
	}
}

func (e *SDKEmbedder) clientFor(apiKey string) *openai.Client {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clients[apiKey]; ok {
		return c
	}
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimRight(e.opts.BaseURL, "/")
	cfg.HTTPClient = &http.Client{Timeout: e.opts.Timeout}
	c := openai.NewClientWithConfig(cfg)
	e.clients[apiKey] = c
	return c
}

func (e *SDKEmbedder) Embed(ctx context.Context, text, apiKey string) ([]float32, error) {
	if text == "" {
		return nil, errors.New("embedding input is empty")
	}
	if apiKey == "" {
		apiKey = e.opts.APIKey
	}
	if apiKey == "" {
		return nil, errors.New("embedding API key not configured")
	}

	resp, err := e.clientFor(apiKey).CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
		Input: []string{text},
		Model: openai.EmbeddingModel(e.opts.Model),
	})
	if err != nil {
		return nil, mapSDKError(err)
	}
	if len(resp.Data) == 0 {
		return nil, &domain.ParseError{Reason: "data is empty"}
	}
	if len(resp.Data[0].Embedding) == 0 {
		return nil, &domain.ParseError{Reason: "data[0].embedding is empty"}
	}
	return resp.Data[0].Embedding, nil
}

func mapSDKError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &domain.EmbeddingAPIError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message, Err: err}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return &domain.EmbeddingAPIError{StatusCode: reqErr.HTTPStatusCode, Err: err}
	}
	return &domain.EmbeddingAPIError{Err: err}
}

func (e *SDKEmbedder) Dimension() int {
	return e.opts.Dimension
}

func (e *SDKEmbedder) ModelName() string {
	return e.opts.Model
}
