package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"docqa/config"
	"docqa/internal/adapter/cache"
	"docqa/internal/adapter/chunker"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/llm"
	"docqa/internal/adapter/memstore"
	"docqa/internal/adapter/pinecone"
	"docqa/internal/adapter/store"
	"docqa/internal/domain"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

// errRebuildRequired is returned when the stored index was built with a
// different chunking or embedding setup.
var errRebuildRequired = errors.New("index rebuild required (run `docqa init --rebuild`)")

// app is the wired pipeline shared by every command.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    *store.BoltStore
	index    port.VectorIndex
	embedder *usecase.EmbeddingOrchestrator
	ingest   *usecase.IngestUseCase
	ask      *usecase.AskUseCase
}

type appOptions struct {
	// withLLM builds the generative model. Without it the ask use case can
	// only Search, and no chat API key is needed.
	withLLM bool
	// allowRebuild skips the configuration-hash check.
	allowRebuild bool
}

func openApp(cfg *config.Config, dir string, logger *zap.Logger, opts appOptions) (*app, error) {
	if err := cfg.EnsureDataDir(dir); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	dbPath := cfg.IndexDBPath(dir)
	st, err := store.NewBoltStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open index store: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, store: st}
	if err := a.wire(opts); err != nil {
		st.Close()
		return nil, err
	}
	return a, nil
}

func (a *app) wire(opts appOptions) error {
	migration, err := a.store.CheckMigration(a.cfg)
	if err != nil {
		return fmt.Errorf("failed to check migration: %w", err)
	}
	if migration.NeedsRebuild && !opts.allowRebuild {
		return fmt.Errorf("%s: %w", migration.Reason, errRebuildRequired)
	}
	if migration.NeedsMigration && !migration.NeedsRebuild {
		a.logger.Info("running schema migration", zap.String("reason", migration.Reason))
		if err := a.store.Migrate(a.cfg); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	emb, err := newEmbedder(a.cfg)
	if err != nil {
		return err
	}
	a.index, err = newVectorIndex(a.cfg, a.store)
	if err != nil {
		return err
	}

	chk, err := chunker.NewFixedChunker(a.cfg.Chunk.Size)
	if err != nil {
		return err
	}

	a.embedder = usecase.NewEmbeddingOrchestrator(emb, usecase.EmbedOptions{
		Dimension:         a.cfg.Embedding.Dimension,
		Concurrency:       a.cfg.Embedding.Concurrency,
		CallTimeout:       a.cfg.Embedding.Timeout(),
		MaxRetries:        a.cfg.Embedding.MaxRetries,
		RequestsPerSecond: a.cfg.Embedding.RequestsPerSecond,
	}, a.logger)

	textCache := cache.NewTextCache(a.cfg.Cache.MaxEntries, time.Duration(a.cfg.Cache.TTLMinutes)*time.Minute)
	ns := a.cfg.Index.Namespace

	a.ingest = usecase.NewIngestUseCase(chk, a.embedder, a.index, a.store, textCache, ns, a.logger)

	var answerer *usecase.Answerer
	if opts.withLLM {
		model, err := newLLM(a.cfg)
		if err != nil {
			return err
		}
		answerer = usecase.NewAnswerer(model, a.logger)
	}
	a.ask = usecase.NewAskUseCase(
		usecase.NewRetriever(a.embedder, a.index, a.logger),
		answerer,
		a.store, textCache, ns, a.cfg.Retrieve.TopK, a.logger,
	)
	return nil
}

func (a *app) Close() error {
	var errs []error
	if c, ok := a.index.(io.Closer); ok {
		errs = append(errs, c.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

// spec is the shape the configured namespace must have.
func (a *app) spec() domain.IndexSpec {
	return domain.IndexSpec{Dimension: a.embedder.Dimension(), Metric: a.cfg.Index.Metric}
}

// ensure checks the namespace before any write. create overrides
// index.auto_create.
func (a *app) ensure(ctx context.Context, create bool) error {
	opts := usecase.EnsureOptions{Create: create || a.cfg.Index.AutoCreate}
	if a.cfg.Index.Provider == "pinecone" {
		opts.WaitReady = 2 * time.Minute
		opts.PollInterval = 5 * time.Second
	}
	return usecase.EnsureNamespace(ctx, a.index, a.cfg.Index.Namespace, a.spec(), opts)
}

func newEmbedder(cfg *config.Config) (port.Embedder, error) {
	switch cfg.Embedding.Provider {
	case "openai":
		emb, err := embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, embedding.Options{
			BaseURL:   cfg.Embedding.BaseURL,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout(),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		return emb, nil
	case "mock":
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Embedding.Provider)
	}
}

func newVectorIndex(cfg *config.Config, st *store.BoltStore) (port.VectorIndex, error) {
	switch cfg.Index.Provider {
	case "bolt":
		idx, err := store.NewBoltVectorIndex(st.DB())
		if err != nil {
			return nil, fmt.Errorf("failed to create vector index: %w", err)
		}
		return idx, nil
	case "memory":
		return memstore.NewMemoryIndex(), nil
	case "pinecone":
		pc := cfg.Index.Pinecone
		idx, err := pinecone.New(pinecone.Config{
			APIKey:    os.Getenv(pc.APIKeyEnv),
			IndexName: cfg.Index.Name,
			Host:      pc.Host,
			Cloud:     pc.Cloud,
			Region:    pc.Region,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create pinecone index (is %s set?): %w", pc.APIKeyEnv, err)
		}
		return idx, nil
	default:
		return nil, fmt.Errorf("unsupported index provider: %s", cfg.Index.Provider)
	}
}

func newLLM(cfg *config.Config) (port.LLM, error) {
	switch cfg.LLM.Provider {
	case "openai":
		model, err := llm.NewOpenAILLMFromEnv(cfg.LLM.APIKeyEnv, llm.Config{
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
			Timeout: time.Duration(cfg.LLM.TimeoutSecs) * time.Second,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create llm: %w", err)
		}
		return model, nil
	case "echo":
		return llm.EchoLLM{}, nil
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.LLM.Provider)
	}
}
