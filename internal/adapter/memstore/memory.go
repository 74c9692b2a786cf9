package memstore

import (
	"context"
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var (
	_ port.VectorIndex      = (*MemoryIndex)(nil)
	_ port.DocumentRegistry = (*MemoryRegistry)(nil)
)

// MemoryIndex is a process-local VectorIndex. Nothing survives a restart.
type MemoryIndex struct {
	mu         sync.RWMutex
	namespaces map[string]*namespace
}

type namespace struct {
	spec    domain.IndexSpec
	records map[string]domain.IndexRecord
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{namespaces: make(map[string]*namespace)}
}

func (s *MemoryIndex) DescribeNamespace(ctx context.Context, ns string) (domain.IndexSpec, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.namespaces[ns]
	if !ok {
		return domain.IndexSpec{}, false, nil
	}
	return n.spec, true, nil
}

func (s *MemoryIndex) CreateNamespace(ctx context.Context, ns string, spec domain.IndexSpec) error {
	if spec.Dimension <= 0 {
		return fmt.Errorf("invalid dimension: %d", spec.Dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.namespaces[ns]; ok {
		return fmt.Errorf("namespace already exists: %s", ns)
	}
	s.namespaces[ns] = &namespace{spec: spec, records: make(map[string]domain.IndexRecord)}
	return nil
}

func (s *MemoryIndex) Upsert(ctx context.Context, ns string, records []domain.IndexRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.namespaces[ns]
	if !ok {
		return fmt.Errorf("%w: namespace %s does not exist", domain.ErrNamespaceNotReady, ns)
	}
	for _, r := range records {
		if len(r.Vector) != n.spec.Dimension {
			return fmt.Errorf("vector dimension mismatch for %s: expected %d, got %d", r.ID, n.spec.Dimension, len(r.Vector))
		}
	}
	for _, r := range records {
		r.Vector = slices.Clone(r.Vector)
		r.Metadata = maps.Clone(r.Metadata)
		n.records[r.ID] = r
	}
	return nil
}

func (s *MemoryIndex) Query(ctx context.Context, ns string, vector domain.Vector, topK int, includeMetadata bool) ([]domain.ScoredRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.namespaces[ns]
	if !ok || topK <= 0 {
		return nil, nil
	}

	scores := make([]domain.ScoredRecord, 0, len(n.records))
	for id, r := range n.records {
		rec := domain.IndexRecord{ID: id}
		if includeMetadata {
			rec.Metadata = maps.Clone(r.Metadata)
		}
		scores = append(scores, domain.ScoredRecord{Record: rec, Score: cosine(vector, r.Vector)})
	}
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].Record.ID < scores[j].Record.ID
	})
	if topK < len(scores) {
		scores = scores[:topK]
	}
	return scores, nil
}

func (s *MemoryIndex) Delete(ctx context.Context, ns string, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n, ok := s.namespaces[ns]; ok {
		for _, id := range ids {
			delete(n.records, id)
		}
	}
	return nil
}

func (s *MemoryIndex) Count(ctx context.Context, ns string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if n, ok := s.namespaces[ns]; ok {
		return len(n.records), nil
	}
	return 0, nil
}

// IDs returns the sorted record IDs in ns.
func (s *MemoryIndex) IDs(ns string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.namespaces[ns]
	if !ok {
		return nil
	}
	ids := make([]string, 0, len(n.records))
	for id := range n.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Record returns a stored record by ID.
func (s *MemoryIndex) Record(ns, id string) (domain.IndexRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.namespaces[ns]
	if !ok {
		return domain.IndexRecord{}, false
	}
	r, ok := n.records[id]
	r.Metadata = maps.Clone(r.Metadata)
	return r, ok
}

func cosine(a, b domain.Vector) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MemoryRegistry is a process-local DocumentRegistry.
type MemoryRegistry struct {
	mu   sync.RWMutex
	docs map[string]domain.Document
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{docs: make(map[string]domain.Document)}
}

func (s *MemoryRegistry) PutDoc(doc domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[doc.ID] = doc
	return nil
}

func (s *MemoryRegistry) GetDoc(id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.docs[id]
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: document %s", domain.ErrNotFound, id)
	}
	return doc, nil
}

func (s *MemoryRegistry) DeleteDoc(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

func (s *MemoryRegistry) ListDocs() ([]domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docs := make([]domain.Document, 0, len(s.docs))
	for _, doc := range s.docs {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}
