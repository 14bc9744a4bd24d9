package port

// Chunker splits document text into ordered chunks. truncated reports that
// the chunk cap was reached and trailing content was dropped.
type Chunker interface {
	Chunk(content string) (chunks []string, truncated bool)
}
