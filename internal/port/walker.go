package port

import "kbrag/internal/domain"

// DocumentSource lists the knowledge-base documents under a root.
type DocumentSource interface {
	Documents(root string) ([]domain.Document, error)
}
