package domain

import "time"

// Document is a knowledge-base entry. The retrieval subsystem only reads it.
type Document struct {
	ID        string
	Title     string
	Type      string
	Content   string
	Category  string
	UpdatedAt time.Time // last modification of the source, zero if unknown
}

// ChunkRecord is the persisted unit: one embedded chunk of a document.
// The JSON field names are read by the prompt builder and must stay stable.
type ChunkRecord struct {
	ID          uint64    `json:"id"`
	DocumentID  string    `json:"documentId"`
	Title       string    `json:"title"`
	Type        string    `json:"type"`
	ChunkIndex  int       `json:"chunkIndex"`
	TotalChunks int       `json:"totalChunks"`
	Content     string    `json:"content"`
	Vector      []float32 `json:"vector"`
	CreatedAt   time.Time `json:"createdAt"`
}

type ScoredChunk struct {
	Record         ChunkRecord
	Relevance      float64
	BelowThreshold bool
}

// RetrievalResult is one matched document after aggregation.
type RetrievalResult struct {
	DocumentID     string  `json:"documentId"`
	Title          string  `json:"title"`
	Type           string  `json:"type"`
	Content        string  `json:"content"`
	ChunkIndex     int     `json:"chunkIndex"`
	TotalChunks    int     `json:"totalChunks"`
	Relevance      float64 `json:"relevance"`
	MaxRelevance   float64 `json:"maxRelevance"`
	BlockCount     int     `json:"blockCount"`
	BelowThreshold bool    `json:"belowThreshold"`
}

type Stats struct {
	TotalRecords   int
	TotalDocuments int
	Dimension      int
}

// VectorizeProgress mirrors the counters a batch vectorization reports.
type VectorizeProgress struct {
	Total     int
	Processed int
	Success   int
	Failed    int
	Current   string
}
