package domain

import "time"

// DocumentStatus is the lifecycle state of an ingested document.
type DocumentStatus string

const (
	StatusIngesting DocumentStatus = "ingesting"
	StatusReady     DocumentStatus = "ready"
	StatusFailed    DocumentStatus = "failed"
)

type Document struct {
	ID         string         `json:"id"`
	Source     string         `json:"source,omitempty"`
	Status     DocumentStatus `json:"status"`
	ChunkCount int            `json:"chunk_count"`
	Stage      string         `json:"stage,omitempty"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Chunk is a fixed-width slice of a document's text. Text equals
// raw[ByteStart:ByteEnd] of the text it was cut from.
type Chunk struct {
	DocID         string
	SequenceIndex int
	Text          string
	ByteStart     int
	ByteEnd       int
}

type Vector []float32

// Metadata keys stored on every index record.
const (
	MetaContent = "content"
	MetaTag     = "tag"
	MetaDocID   = "doc_id"
	MetaSeq     = "seq"
)

type IndexRecord struct {
	ID       string            `json:"id"`
	Vector   Vector            `json:"values"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Content returns the chunk text carried in the record metadata.
func (r IndexRecord) Content() string {
	return r.Metadata[MetaContent]
}

type ScoredRecord struct {
	Record IndexRecord
	Score  float64
}

// QueryResult holds matches ordered by descending similarity.
type QueryResult struct {
	Matches []ScoredRecord
}

func (q QueryResult) Len() int {
	return len(q.Matches)
}

// Similarity metrics understood by the vector index.
const (
	MetricCosine = "cosine"
)

// IndexSpec describes the shape every record in a namespace must have.
type IndexSpec struct {
	Dimension int
	Metric    string
}

// Chat roles.
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type GeneratedAnswer struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}
