package store

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var _ port.DocumentRegistry = (*BoltStore)(nil)

var (
	bucketDocs  = []byte("docs")
	bucketStats = []byte("stats")
)

// BoltStore owns the BoltDB file. It serves as the document registry and
// hands its handle to BoltVectorIndex so both live in one file.
type BoltStore struct {
	db *bbolt.DB
}

func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketDocs, bucketStats} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) DB() *bbolt.DB {
	return s.db
}

type docMeta struct {
	Source     string `json:"source,omitempty"`
	Status     string `json:"status"`
	ChunkCount int    `json:"chunk_count"`
	Stage      string `json:"stage,omitempty"`
	UpdatedAt  int64  `json:"updated_at"`
}

func (m docMeta) toDocument(id string) domain.Document {
	return domain.Document{
		ID:         id,
		Source:     m.Source,
		Status:     domain.DocumentStatus(m.Status),
		ChunkCount: m.ChunkCount,
		Stage:      m.Stage,
		UpdatedAt:  time.Unix(m.UpdatedAt, 0),
	}
}

func (s *BoltStore) PutDoc(doc domain.Document) error {
	if doc.ID == "" {
		return fmt.Errorf("%w: document id is required", domain.ErrInvalidInput)
	}
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now()
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		meta := docMeta{
			Source:     doc.Source,
			Status:     string(doc.Status),
			ChunkCount: doc.ChunkCount,
			Stage:      doc.Stage,
			UpdatedAt:  doc.UpdatedAt.Unix(),
		}
		data, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketDocs).Put([]byte(doc.ID), data)
	})
}

func (s *BoltStore) GetDoc(id string) (domain.Document, error) {
	var doc domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(bucketDocs).Get([]byte(id))
		if data == nil {
			return fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
		}
		var meta docMeta
		if err := json.Unmarshal(data, &meta); err != nil {
			return err
		}
		doc = meta.toDocument(id)
		return nil
	})
	return doc, err
}

func (s *BoltStore) DeleteDoc(id string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).Delete([]byte(id))
	})
}

// ListDocs returns all registered documents sorted by ID.
func (s *BoltStore) ListDocs() ([]domain.Document, error) {
	var docs []domain.Document
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketDocs).ForEach(func(k, v []byte) error {
			var meta docMeta
			if err := json.Unmarshal(v, &meta); err != nil {
				return err
			}
			docs = append(docs, meta.toDocument(string(k)))
			return nil
		})
	})
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, err
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
