package chunker

import "strings"

const (
	DefaultChunkSize = 3000
	DefaultOverlap   = 200
	DefaultMaxChunks = 500
)

// CharChunker splits text into fixed-size character windows. Every window
// after the first starts overlap characters before the previous one ended,
// so text cut at a boundary appears whole in at least one chunk.
type CharChunker struct {
	size      int
	overlap   int
	maxChunks int
}

func NewCharChunker(size, overlap, maxChunks int) *CharChunker {
	if size <= 0 {
		size = DefaultChunkSize
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	return &CharChunker{
		size:      size,
		overlap:   overlap,
		maxChunks: maxChunks,
	}
}

// Chunk returns the ordered chunks of content. Windows that are blank after
// trimming are dropped. truncated is set when the chunk cap stopped chunking
// before the end of content.
func (c *CharChunker) Chunk(content string) ([]string, bool) {
	runes := []rune(content)
	if len(runes) == 0 {
		return nil, false
	}

	var chunks []string
	start := 0
	for start < len(runes) {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}

		text := string(runes[start:end])
		if strings.TrimSpace(text) != "" {
			chunks = append(chunks, text)
		}

		if end == len(runes) {
			break
		}
		if len(chunks) >= c.maxChunks {
			return chunks, true
		}
		start = end - c.overlap
	}

	return chunks, false
}

// Size returns the configured window size.
func (c *CharChunker) Size() int {
	return c.size
}

// Overlap returns the configured overlap.
func (c *CharChunker) Overlap() int {
	return c.overlap
}
