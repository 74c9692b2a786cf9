package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"

	"go.etcd.io/bbolt"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var _ port.VectorIndex = (*BoltVectorIndex)(nil)

var (
	bucketNamespaces = []byte("namespaces")
	bucketVectors    = []byte("vectors")
	keySpec          = []byte("spec")
)

// BoltVectorIndex implements VectorIndex on BoltDB. Each namespace is a
// nested bucket under "namespaces" holding its spec and its vectors.
// Search is brute-force cosine similarity over an in-memory copy.
type BoltVectorIndex struct {
	db *bbolt.DB
	mu sync.RWMutex
	// Loaded lazily per namespace.
	cache map[string]*namespaceCache
}

type namespaceCache struct {
	spec    domain.IndexSpec
	vectors map[string]vectorEntry
}

type vectorEntry struct {
	vector   domain.Vector
	metadata map[string]string
}

type storedVector struct {
	Vector   domain.Vector     `json:"v"`
	Metadata map[string]string `json:"m,omitempty"`
}

type storedSpec struct {
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
}

// NewBoltVectorIndex creates a vector index on an open BoltDB handle.
func NewBoltVectorIndex(db *bbolt.DB) (*BoltVectorIndex, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketNamespaces)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create namespaces bucket: %w", err)
	}

	return &BoltVectorIndex{
		db:    db,
		cache: make(map[string]*namespaceCache),
	}, nil
}

func (s *BoltVectorIndex) DescribeNamespace(ctx context.Context, ns string) (domain.IndexSpec, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nc, err := s.load(ns)
	if err != nil {
		return domain.IndexSpec{}, false, err
	}
	if nc == nil {
		return domain.IndexSpec{}, false, nil
	}
	return nc.spec, true, nil
}

func (s *BoltVectorIndex) CreateNamespace(ctx context.Context, ns string, spec domain.IndexSpec) error {
	if ns == "" {
		return fmt.Errorf("namespace name is required")
	}
	if spec.Dimension <= 0 {
		return fmt.Errorf("invalid dimension: %d", spec.Dimension)
	}
	if spec.Metric != domain.MetricCosine {
		return fmt.Errorf("unsupported metric: %q", spec.Metric)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketNamespaces)
		if root.Bucket([]byte(ns)) != nil {
			return fmt.Errorf("namespace already exists: %s", ns)
		}
		b, err := root.CreateBucket([]byte(ns))
		if err != nil {
			return err
		}
		if _, err := b.CreateBucket(bucketVectors); err != nil {
			return err
		}
		data, err := json.Marshal(storedSpec{Dimension: spec.Dimension, Metric: spec.Metric})
		if err != nil {
			return err
		}
		return b.Put(keySpec, data)
	})
	if err != nil {
		return err
	}

	s.cache[ns] = &namespaceCache{spec: spec, vectors: make(map[string]vectorEntry)}
	return nil
}

// load returns the cached namespace, reading it from disk on first use.
// It returns nil when the namespace does not exist. Callers hold s.mu.
func (s *BoltVectorIndex) load(ns string) (*namespaceCache, error) {
	if nc, ok := s.cache[ns]; ok {
		return nc, nil
	}

	var nc *namespaceCache
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNamespaces).Bucket([]byte(ns))
		if b == nil {
			return nil
		}

		var spec storedSpec
		if err := json.Unmarshal(b.Get(keySpec), &spec); err != nil {
			return fmt.Errorf("corrupted spec for namespace %s: %w", ns, err)
		}
		nc = &namespaceCache{
			spec:    domain.IndexSpec{Dimension: spec.Dimension, Metric: spec.Metric},
			vectors: make(map[string]vectorEntry),
		}

		return b.Bucket(bucketVectors).ForEach(func(k, v []byte) error {
			var stored storedVector
			if err := json.Unmarshal(v, &stored); err != nil {
				return nil // Skip corrupted entries
			}
			nc.vectors[string(k)] = vectorEntry{
				vector:   stored.Vector,
				metadata: stored.Metadata,
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	if nc != nil {
		s.cache[ns] = nc
	}
	return nc, nil
}

// Upsert writes all records in one transaction. A record with an existing
// ID replaces it.
func (s *BoltVectorIndex) Upsert(ctx context.Context, ns string, records []domain.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nc, err := s.load(ns)
	if err != nil {
		return err
	}
	if nc == nil {
		return fmt.Errorf("%w: namespace %s does not exist", domain.ErrNamespaceNotReady, ns)
	}

	for _, r := range records {
		if r.ID == "" {
			return fmt.Errorf("record with empty id")
		}
		if len(r.Vector) != nc.spec.Dimension {
			return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d", r.ID, nc.spec.Dimension, len(r.Vector))
		}
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNamespaces).Bucket([]byte(ns)).Bucket(bucketVectors)
		for _, r := range records {
			data, err := json.Marshal(storedVector{Vector: r.Vector, Metadata: r.Metadata})
			if err != nil {
				return err
			}
			if err := b.Put([]byte(r.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, r := range records {
		nc.vectors[r.ID] = vectorEntry{vector: slices.Clone(r.Vector), metadata: maps.Clone(r.Metadata)}
	}
	return nil
}

// Query finds the topK nearest vectors using cosine similarity. A missing
// namespace yields no matches.
func (s *BoltVectorIndex) Query(ctx context.Context, ns string, query domain.Vector, topK int, includeMetadata bool) ([]domain.ScoredRecord, error) {
	s.mu.Lock()
	nc, err := s.load(ns)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if nc == nil || topK <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(query) != nc.spec.Dimension {
		return nil, fmt.Errorf("query dimension mismatch: expected %d, got %d", nc.spec.Dimension, len(query))
	}
	if len(nc.vectors) == 0 {
		return nil, nil
	}

	scores := make([]domain.ScoredRecord, 0, len(nc.vectors))
	for id, entry := range nc.vectors {
		rec := domain.IndexRecord{ID: id}
		if includeMetadata {
			rec.Metadata = maps.Clone(entry.metadata)
		}
		scores = append(scores, domain.ScoredRecord{
			Record: rec,
			Score:  cosineSimilarity(query, entry.vector),
		})
	}

	// Ties broken by id so results are stable across map iteration order.
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Record.ID < scores[j].Record.ID
	})

	if topK > len(scores) {
		topK = len(scores)
	}
	return scores[:topK], nil
}

// Delete removes vectors by their IDs.
func (s *BoltVectorIndex) Delete(ctx context.Context, ns string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	nc, err := s.load(ns)
	if err != nil || nc == nil {
		return err
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketNamespaces).Bucket([]byte(ns)).Bucket(bucketVectors)
		for _, id := range ids {
			if err := b.Delete([]byte(id)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, id := range ids {
		delete(nc.vectors, id)
	}
	return nil
}

// Count returns the number of vectors in the namespace.
func (s *BoltVectorIndex) Count(ctx context.Context, ns string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nc, err := s.load(ns)
	if err != nil || nc == nil {
		return 0, err
	}
	return len(nc.vectors), nil
}

// IDs returns the sorted record IDs stored in the namespace.
func (s *BoltVectorIndex) IDs(ns string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	nc, err := s.load(ns)
	if err != nil || nc == nil {
		return nil, err
	}
	ids := make([]string, 0, len(nc.vectors))
	for id := range nc.vectors {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b domain.Vector) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
