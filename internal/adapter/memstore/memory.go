package memstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"kbrag/internal/domain"
)

// MemoryStore is an in-process VectorStore. It enforces the same invariants
// as the bbolt store.
type MemoryStore struct {
	mu        sync.RWMutex
	nextID    uint64
	dimension int
	records   map[uint64]domain.ChunkRecord
	docIndex  map[string][]uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[uint64]domain.ChunkRecord),
		docIndex: make(map[string][]uint64),
	}
}

func (s *MemoryStore) AddVectors(ctx context.Context, records []domain.ChunkRecord) ([]domain.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(records); err != nil {
		return nil, &domain.StorageError{Op: "add", Err: err}
	}
	return s.insertLocked(records), nil
}

func (s *MemoryStore) ReplaceDocumentVectors(ctx context.Context, documentID string, records []domain.ChunkRecord) ([]domain.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		if r.DocumentID != documentID {
			return nil, &domain.StorageError{Op: "replace", Err: fmt.Errorf("record for document %q in replace of %q", r.DocumentID, documentID)}
		}
	}
	if err := s.validate(records); err != nil {
		return nil, &domain.StorageError{Op: "replace", Err: err}
	}
	s.deleteLocked(documentID)
	return s.insertLocked(records), nil
}

func (s *MemoryStore) validate(records []domain.ChunkRecord) error {
	dimension := s.dimension
	for _, rec := range records {
		if rec.DocumentID == "" {
			return errors.New("record has empty document id")
		}
		if len(rec.Vector) == 0 {
			return errors.New("record has empty vector")
		}
		if rec.ChunkIndex < 0 || rec.ChunkIndex >= rec.TotalChunks {
			return fmt.Errorf("chunk index %d out of range [0, %d)", rec.ChunkIndex, rec.TotalChunks)
		}
		if dimension == 0 {
			dimension = len(rec.Vector)
		} else if len(rec.Vector) != dimension {
			return fmt.Errorf("vector dimension mismatch: expected %d, got %d", dimension, len(rec.Vector))
		}
	}
	return nil
}

func (s *MemoryStore) insertLocked(records []domain.ChunkRecord) []domain.ChunkRecord {
	stored := make([]domain.ChunkRecord, 0, len(records))
	for _, rec := range records {
		s.nextID++
		rec.ID = s.nextID
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = time.Now()
		}
		rec.Vector = append([]float32(nil), rec.Vector...)
		if s.dimension == 0 {
			s.dimension = len(rec.Vector)
		}
		s.records[rec.ID] = rec
		s.docIndex[rec.DocumentID] = append(s.docIndex[rec.DocumentID], rec.ID)
		stored = append(stored, rec)
	}
	return stored
}

func (s *MemoryStore) DeleteDocumentVectors(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(documentID)
	return nil
}

func (s *MemoryStore) deleteLocked(documentID string) {
	for _, id := range s.docIndex[documentID] {
		delete(s.records, id)
	}
	delete(s.docIndex, documentID)
}

func (s *MemoryStore) GetAllVectors(ctx context.Context) ([]domain.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := make([]domain.ChunkRecord, 0, len(s.records))
	for _, rec := range s.records {
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ID < records[j].ID
	})
	return records, nil
}

func (s *MemoryStore) GetDocumentVectors(ctx context.Context, documentID string) ([]domain.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.docIndex[documentID]
	records := make([]domain.ChunkRecord, 0, len(ids))
	for _, id := range ids {
		if rec, ok := s.records[id]; ok {
			records = append(records, rec)
		}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ChunkIndex < records[j].ChunkIndex
	})
	return records, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (domain.Stats, error) {
	if err := ctx.Err(); err != nil {
		return domain.Stats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Stats{
		TotalRecords:   len(s.records),
		TotalDocuments: len(s.docIndex),
		Dimension:      s.dimension,
	}, nil
}
