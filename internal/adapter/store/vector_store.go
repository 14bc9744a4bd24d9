package store

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"
	"go.uber.org/zap"

	"kbrag/internal/domain"
	"kbrag/internal/logging"
)

var (
	bucketVectors    = []byte("vectors")
	bucketDocVectors = []byte("doc_vectors")
	bucketMeta       = []byte("meta")
	keyDimension     = []byte("dimension")
)

// BoltVectorStore persists chunk vector records in BoltDB.
//
// Records live in the vectors bucket keyed by their big-endian sequence id.
// doc_vectors holds one nested bucket per document listing its record ids,
// which is the index used for per-document reads and deletes.
type BoltVectorStore struct {
	db  *bbolt.DB
	now func() time.Time
}

// Open opens (or creates) the store at path.
func Open(path string) (*BoltVectorStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}

	s, err := NewBoltVectorStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewBoltVectorStore creates the buckets on an already open database.
func NewBoltVectorStore(db *bbolt.DB) (*BoltVectorStore, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketVectors, bucketDocVectors, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, &domain.StorageError{Op: "init", Err: err}
	}
	return &BoltVectorStore{db: db, now: time.Now}, nil
}

func (s *BoltVectorStore) DB() *bbolt.DB {
	return s.db
}

func (s *BoltVectorStore) Close() error {
	return s.db.Close()
}

func idKey(id uint64) []byte {
	k := make([]byte, 8)
	binary.BigEndian.PutUint64(k, id)
	return k
}

// AddVectors appends records in one transaction.
func (s *BoltVectorStore) AddVectors(ctx context.Context, records []domain.ChunkRecord) ([]domain.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var stored []domain.ChunkRecord
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		stored, err = s.insert(tx, records)
		return err
	})
	if err != nil {
		return nil, &domain.StorageError{Op: "add", Err: err}
	}
	return stored, nil
}

// ReplaceDocumentVectors swaps the vector set of a document atomically.
func (s *BoltVectorStore) ReplaceDocumentVectors(ctx context.Context, documentID string, records []domain.ChunkRecord) ([]domain.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, r := range records {
		if r.DocumentID != documentID {
			return nil, &domain.StorageError{Op: "replace", Err: fmt.Errorf("record for document %q in replace of %q", r.DocumentID, documentID)}
		}
	}

	var stored []domain.ChunkRecord
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if _, err := deleteDocument(tx, documentID); err != nil {
			return err
		}
		var err error
		stored, err = s.insert(tx, records)
		return err
	})
	if err != nil {
		return nil, &domain.StorageError{Op: "replace", Err: err}
	}
	return stored, nil
}

func (s *BoltVectorStore) insert(tx *bbolt.Tx, records []domain.ChunkRecord) ([]domain.ChunkRecord, error) {
	vectors := tx.Bucket(bucketVectors)
	docVectors := tx.Bucket(bucketDocVectors)
	meta := tx.Bucket(bucketMeta)

	dimension := 0
	if data := meta.Get(keyDimension); len(data) == 8 {
		dimension = int(binary.BigEndian.Uint64(data))
	}

	stored := make([]domain.ChunkRecord, 0, len(records))
	for _, rec := range records {
		if rec.DocumentID == "" {
			return nil, errors.New("record has empty document id")
		}
		if len(rec.Vector) == 0 {
			return nil, errors.New("record has empty vector")
		}
		if rec.ChunkIndex < 0 || rec.ChunkIndex >= rec.TotalChunks {
			return nil, fmt.Errorf("chunk index %d out of range [0, %d)", rec.ChunkIndex, rec.TotalChunks)
		}
		if dimension == 0 {
			dimension = len(rec.Vector)
			if err := meta.Put(keyDimension, idKey(uint64(dimension))); err != nil {
				return nil, err
			}
		} else if len(rec.Vector) != dimension {
			return nil, fmt.Errorf("vector dimension mismatch: expected %d, got %d", dimension, len(rec.Vector))
		}

		id, err := vectors.NextSequence()
		if err != nil {
			return nil, err
		}
		rec.ID = id
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = s.now()
		}

		data, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		if err := vectors.Put(idKey(id), data); err != nil {
			return nil, err
		}

		docBucket, err := docVectors.CreateBucketIfNotExists([]byte(rec.DocumentID))
		if err != nil {
			return nil, err
		}
		if err := docBucket.Put(idKey(id), []byte{}); err != nil {
			return nil, err
		}
		stored = append(stored, rec)
	}
	return stored, nil
}

// DeleteDocumentVectors removes every record of documentID.
func (s *BoltVectorStore) DeleteDocumentVectors(ctx context.Context, documentID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var removed int
	err := s.db.Update(func(tx *bbolt.Tx) error {
		var err error
		removed, err = deleteDocument(tx, documentID)
		return err
	})
	if err != nil {
		return &domain.StorageError{Op: "delete", Err: err}
	}
	logging.FromContext(ctx).Debug("deleted document vectors",
		zap.String("documentId", documentID),
		zap.Int("records", removed),
	)
	return nil
}

func deleteDocument(tx *bbolt.Tx, documentID string) (int, error) {
	docVectors := tx.Bucket(bucketDocVectors)
	docBucket := docVectors.Bucket([]byte(documentID))
	if docBucket == nil {
		return 0, nil
	}

	vectors := tx.Bucket(bucketVectors)
	removed := 0
	c := docBucket.Cursor()
	for k, _ := c.First(); k != nil; k, _ = c.Next() {
		if err := vectors.Delete(k); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, docVectors.DeleteBucket([]byte(documentID))
}

// GetAllVectors returns every record. Corrupted entries are skipped.
func (s *BoltVectorStore) GetAllVectors(ctx context.Context) ([]domain.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	logger := logging.FromContext(ctx)

	var records []domain.ChunkRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			var rec domain.ChunkRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				logger.Warn("skipping corrupted vector record", zap.Binary("key", k), zap.Error(err))
				return nil
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, &domain.StorageError{Op: "get all", Err: err}
	}
	return records, nil
}

// GetDocumentVectors returns the records of documentID ordered by chunk index.
func (s *BoltVectorStore) GetDocumentVectors(ctx context.Context, documentID string) ([]domain.ChunkRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var records []domain.ChunkRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		docBucket := tx.Bucket(bucketDocVectors).Bucket([]byte(documentID))
		if docBucket == nil {
			return nil
		}
		vectors := tx.Bucket(bucketVectors)
		return docBucket.ForEach(func(k, _ []byte) error {
			data := vectors.Get(k)
			if data == nil {
				return nil
			}
			var rec domain.ChunkRecord
			if err := json.Unmarshal(data, &rec); err != nil {
				return nil
			}
			records = append(records, rec)
			return nil
		})
	})
	if err != nil {
		return nil, &domain.StorageError{Op: "get document", Err: err}
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ChunkIndex < records[j].ChunkIndex
	})
	return records, nil
}

// Stats returns record and document counts and the stored dimension.
func (s *BoltVectorStore) Stats(ctx context.Context) (domain.Stats, error) {
	if err := ctx.Err(); err != nil {
		return domain.Stats{}, err
	}
	var stats domain.Stats
	err := s.db.View(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketVectors).ForEach(func(_, _ []byte) error {
			stats.TotalRecords++
			return nil
		}); err != nil {
			return err
		}
		if err := tx.Bucket(bucketDocVectors).ForEach(func(_, v []byte) error {
			if v == nil {
				stats.TotalDocuments++
			}
			return nil
		}); err != nil {
			return err
		}
		if data := tx.Bucket(bucketMeta).Get(keyDimension); len(data) == 8 {
			stats.Dimension = int(binary.BigEndian.Uint64(data))
		}
		return nil
	})
	if err != nil {
		return domain.Stats{}, &domain.StorageError{Op: "stats", Err: err}
	}
	return stats, nil
}

// DocumentIDs lists the ids of documents that have vectors.
func (s *BoltVectorStore) DocumentIDs(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var ids []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocVectors).ForEach(func(k, v []byte) error {
			if v == nil {
				ids = append(ids, string(k))
			}
			return nil
		})
	})
	if err != nil {
		return nil, &domain.StorageError{Op: "list documents", Err: err}
	}
	return ids, nil
}
