package port

import (
	"context"

	"kbrag/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed returns the embedding of a single text. apiKey overrides the
	// key the embedder was configured with when non-empty.
	Embed(ctx context.Context, text, apiKey string) ([]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore persists chunk vector records.
type VectorStore interface {
	// AddVectors appends records, assigning ID and CreatedAt. The stored
	// records are returned.
	AddVectors(ctx context.Context, records []domain.ChunkRecord) ([]domain.ChunkRecord, error)

	// ReplaceDocumentVectors deletes every record of documentID and inserts
	// records in a single transaction.
	ReplaceDocumentVectors(ctx context.Context, documentID string, records []domain.ChunkRecord) ([]domain.ChunkRecord, error)

	// DeleteDocumentVectors removes every record of documentID. Deleting a
	// document without vectors succeeds.
	DeleteDocumentVectors(ctx context.Context, documentID string) error

	// GetAllVectors returns every stored record.
	GetAllVectors(ctx context.Context) ([]domain.ChunkRecord, error)

	// GetDocumentVectors returns the records of one document ordered by chunk index.
	GetDocumentVectors(ctx context.Context, documentID string) ([]domain.ChunkRecord, error)

	// Stats returns record and document counts.
	Stats(ctx context.Context) (domain.Stats, error)
}
