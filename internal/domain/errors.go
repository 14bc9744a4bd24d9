package domain

import (
	"errors"
	"fmt"
)

// ErrSearchFailure marks failures inside the embed-rank pipeline. It is only
// logged; callers of Search never see it.
var ErrSearchFailure = errors.New("search failure")

// EmbeddingAPIError reports a failed call to the embedding endpoint.
// StatusCode is 0 when the request never got an HTTP response.
type EmbeddingAPIError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *EmbeddingAPIError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Body != "":
		return fmt.Sprintf("embedding API returned status %d: %s", e.StatusCode, e.Body)
	case e.StatusCode != 0:
		return fmt.Sprintf("embedding API returned status %d", e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("embedding request failed: %v", e.Err)
	default:
		return "embedding request failed"
	}
}

func (e *EmbeddingAPIError) Unwrap() error {
	return e.Err
}

// ParseError reports an embedding response that does not match the expected schema.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid embedding response: %s: %v", e.Reason, e.Err)
	}
	return "invalid embedding response: " + e.Reason
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// StorageError wraps a persistence failure with the operation that hit it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsEmbeddingAPIError reports whether err carries an EmbeddingAPIError and returns it.
func IsEmbeddingAPIError(err error) (*EmbeddingAPIError, bool) {
	var apiErr *EmbeddingAPIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
