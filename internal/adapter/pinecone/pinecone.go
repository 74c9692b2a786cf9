// Package pinecone adapts a Pinecone serverless index to port.VectorIndex.
// The index itself is created through the control plane; namespaces are
// partitions of its data plane and need no creation of their own.
package pinecone

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var _ port.VectorIndex = (*Index)(nil)

type Config struct {
	APIKey     string
	IndexName  string
	Host       string // data plane host; resolved via DescribeNamespace when empty
	ControlURL string // control plane override; the SDK default when empty
	Cloud      string
	Region     string
	Timeout    time.Duration
}

// controlPlane is the part of *pinecone.Client the adapter uses.
type controlPlane interface {
	DescribeIndex(ctx context.Context, idxName string) (*pinecone.Index, error)
	CreateServerlessIndex(ctx context.Context, in *pinecone.CreateServerlessIndexRequest) (*pinecone.Index, error)
}

// dataPlane is the part of *pinecone.IndexConnection the adapter uses.
type dataPlane interface {
	UpsertVectors(ctx context.Context, in []*pinecone.Vector) (uint32, error)
	QueryByVectorValues(ctx context.Context, in *pinecone.QueryByVectorValuesRequest) (*pinecone.QueryVectorsResponse, error)
	DeleteVectorsById(ctx context.Context, ids []string) error
	DescribeIndexStats(ctx context.Context) (*pinecone.DescribeIndexStatsResponse, error)
	Close() error
}

type connectFunc func(host, ns string) (dataPlane, error)

type Index struct {
	cfg     Config
	control controlPlane
	connect connectFunc

	mu    sync.Mutex
	host  string
	conns map[string]dataPlane
}

func New(cfg Config) (*Index, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("pinecone API key is required")
	}
	if cfg.IndexName == "" {
		return nil, errors.New("pinecone index name is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	client, err := pinecone.NewClient(pinecone.NewClientParams{
		ApiKey:     cfg.APIKey,
		Host:       cfg.ControlURL,
		RestClient: &http.Client{Timeout: cfg.Timeout},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create pinecone client: %w", err)
	}

	connect := func(host, ns string) (dataPlane, error) {
		conn, err := client.Index(pinecone.NewIndexConnParams{Host: host, Namespace: ns})
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
	return newIndex(cfg, client, connect), nil
}

func newIndex(cfg Config, control controlPlane, connect connectFunc) *Index {
	return &Index{
		cfg:     cfg,
		control: control,
		connect: connect,
		host:    cfg.Host,
		conns:   make(map[string]dataPlane),
	}
}

// DescribeNamespace reports the spec of the backing index. The namespace
// counts as existing only once the index is ready to serve.
func (p *Index) DescribeNamespace(ctx context.Context, ns string) (domain.IndexSpec, bool, error) {
	idx, err := p.control.DescribeIndex(ctx, p.cfg.IndexName)
	if isStatus(err, http.StatusNotFound) {
		return domain.IndexSpec{}, false, nil
	}
	if err != nil {
		return domain.IndexSpec{}, false, classify(fmt.Errorf("pinecone describe index %s: %w", p.cfg.IndexName, err))
	}

	if idx.Host != "" {
		p.mu.Lock()
		if p.host == "" {
			p.host = idx.Host
		}
		p.mu.Unlock()
	}

	spec := domain.IndexSpec{Dimension: int(idx.Dimension), Metric: string(idx.Metric)}
	return spec, idx.Status != nil && idx.Status.Ready, nil
}

// CreateNamespace creates the serverless index. It does not wait for the
// index to become ready.
func (p *Index) CreateNamespace(ctx context.Context, ns string, spec domain.IndexSpec) error {
	_, err := p.control.CreateServerlessIndex(ctx, &pinecone.CreateServerlessIndexRequest{
		Name:      p.cfg.IndexName,
		Dimension: int32(spec.Dimension),
		Metric:    pinecone.IndexMetric(spec.Metric),
		Cloud:     pinecone.Cloud(p.cfg.Cloud),
		Region:    p.cfg.Region,
	})
	if isStatus(err, http.StatusConflict) {
		return nil
	}
	if err != nil {
		return classify(fmt.Errorf("pinecone create index %s: %w", p.cfg.IndexName, err))
	}
	return nil
}

func (p *Index) Upsert(ctx context.Context, ns string, records []domain.IndexRecord) error {
	conn, err := p.conn(ctx, ns)
	if err != nil {
		return err
	}

	vectors := make([]*pinecone.Vector, len(records))
	for i, r := range records {
		md, err := toMetadata(r.Metadata)
		if err != nil {
			return fmt.Errorf("invalid metadata for %s: %w", r.ID, err)
		}
		vectors[i] = &pinecone.Vector{Id: r.ID, Values: r.Vector, Metadata: md}
	}

	if _, err := conn.UpsertVectors(ctx, vectors); err != nil {
		return classify(fmt.Errorf("pinecone upsert: %w", err))
	}
	return nil
}

// Query returns no matches when the index does not exist yet.
func (p *Index) Query(ctx context.Context, ns string, v domain.Vector, topK int, includeMetadata bool) ([]domain.ScoredRecord, error) {
	if topK <= 0 {
		return nil, nil
	}
	conn, err := p.conn(ctx, ns)
	if errors.Is(err, domain.ErrNamespaceNotReady) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	resp, err := conn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          v,
		TopK:            uint32(topK),
		IncludeMetadata: includeMetadata,
	})
	if err != nil {
		return nil, classify(fmt.Errorf("pinecone query: %w", err))
	}

	out := make([]domain.ScoredRecord, 0, len(resp.Matches))
	for _, m := range resp.Matches {
		if m == nil || m.Vector == nil {
			continue
		}
		rec := domain.IndexRecord{ID: m.Vector.Id}
		if includeMetadata {
			rec.Metadata = fromMetadata(m.Vector.Metadata)
		}
		out = append(out, domain.ScoredRecord{Record: rec, Score: float64(m.Score)})
	}
	return out, nil
}

// Delete ignores a missing index; there is nothing to remove.
func (p *Index) Delete(ctx context.Context, ns string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	conn, err := p.conn(ctx, ns)
	if errors.Is(err, domain.ErrNamespaceNotReady) {
		return nil
	}
	if err != nil {
		return err
	}
	if err := conn.DeleteVectorsById(ctx, ids); err != nil {
		return classify(fmt.Errorf("pinecone delete: %w", err))
	}
	return nil
}

func (p *Index) Count(ctx context.Context, ns string) (int, error) {
	conn, err := p.conn(ctx, ns)
	if errors.Is(err, domain.ErrNamespaceNotReady) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	stats, err := conn.DescribeIndexStats(ctx)
	if err != nil {
		return 0, classify(fmt.Errorf("pinecone describe stats: %w", err))
	}
	if summary, ok := stats.Namespaces[ns]; ok && summary != nil {
		return int(summary.VectorCount), nil
	}
	return 0, nil
}

// Close releases the data plane connections.
func (p *Index) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var errs []error
	for ns, c := range p.conns {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(p.conns, ns)
	}
	return errors.Join(errs...)
}

// conn returns the data plane connection for ns, resolving the index host
// on first use.
func (p *Index) conn(ctx context.Context, ns string) (dataPlane, error) {
	host, err := p.dataHost(ctx)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[ns]; ok {
		return c, nil
	}
	c, err := p.connect(host, ns)
	if err != nil {
		return nil, classify(fmt.Errorf("pinecone connect %s: %w", host, err))
	}
	p.conns[ns] = c
	return c, nil
}

func (p *Index) dataHost(ctx context.Context) (string, error) {
	p.mu.Lock()
	host := p.host
	p.mu.Unlock()
	if host != "" {
		return host, nil
	}

	if _, exists, err := p.DescribeNamespace(ctx, ""); err != nil {
		return "", err
	} else if !exists {
		return "", fmt.Errorf("%w: index %s is not ready", domain.ErrNamespaceNotReady, p.cfg.IndexName)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.host == "" {
		return "", fmt.Errorf("%w: index %s has no host", domain.ErrNamespaceNotReady, p.cfg.IndexName)
	}
	return p.host, nil
}

func toMetadata(m map[string]string) (*pinecone.Metadata, error) {
	if len(m) == 0 {
		return nil, nil
	}
	fields := make(map[string]any, len(m))
	for k, v := range m {
		fields[k] = v
	}
	return structpb.NewStruct(fields)
}

func fromMetadata(md *pinecone.Metadata) map[string]string {
	if md == nil {
		return nil
	}
	out := make(map[string]string, len(md.Fields))
	for k, v := range md.AsMap() {
		if s, ok := v.(string); ok {
			out[k] = s
		} else {
			out[k] = fmt.Sprint(v)
		}
	}
	return out
}

func isStatus(err error, code int) bool {
	var pe *pinecone.PineconeError
	return errors.As(err, &pe) && pe.Code == code
}

// classify marks rate limiting, server errors and transport failures as
// transient.
func classify(err error) error {
	var pe *pinecone.PineconeError
	if errors.As(err, &pe) {
		if pe.Code == http.StatusTooManyRequests || pe.Code >= 500 {
			return domain.Transient(err)
		}
		return err
	}

	switch status.Code(err) {
	case codes.Unavailable, codes.ResourceExhausted, codes.DeadlineExceeded, codes.Aborted:
		return domain.Transient(err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.Transient(err)
	}
	return err
}
