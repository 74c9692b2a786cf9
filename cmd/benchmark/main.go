package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"docqa/config"
	"docqa/internal/adapter/embedding"
	"docqa/internal/adapter/store"
	"docqa/internal/domain"
	"docqa/internal/port"
	"docqa/internal/usecase"
)

func main() {
	projectDir := flag.String("dir", ".", "Project directory holding the local index")
	query := flag.String("q", "", "Query to test")
	topK := flag.Int("k", 10, "Number of results")
	flag.Parse()

	if *query == "" {
		fmt.Println("Usage: go run ./cmd/benchmark -dir ./project -q \"query\"")
		fmt.Println("\nReports:")
		fmt.Println("  1. Embedding setup (model, dimension, records in the namespace)")
		fmt.Println("  2. Semantic similarity of the top matches")
		fmt.Println("  3. Tag balance of the retrieved chunks")
		os.Exit(1)
	}

	cfg, err := config.LoadFromDir(*projectDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if cfg.Index.Provider != "bolt" {
		fmt.Fprintf(os.Stderr, "Benchmark reads the local index only (index.provider is %s)\n", cfg.Index.Provider)
		os.Exit(1)
	}

	st, err := store.NewBoltStore(cfg.IndexDBPath(*projectDir))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening index: %v\n", err)
		os.Exit(1)
	}
	defer st.Close()

	ctx := context.Background()
	embedder, index, err := setupEmbedding(ctx, st, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Semantic search not available: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("SEMANTIC SEARCH BENCHMARK")
	fmt.Println(strings.Repeat("=", 70))

	count, _ := index.Count(ctx, cfg.Index.Namespace)
	fmt.Printf("Records in %s: %d\n", cfg.Index.Namespace, count)
	fmt.Printf("Model: %s (%s)\n", cfg.Embedding.Model, cfg.Embedding.Provider)
	fmt.Printf("Dimension: %d\n", embedder.Dimension())
	fmt.Println()

	fmt.Printf("Query: \"%s\"\n", *query)
	fmt.Println(strings.Repeat("-", 70))

	orch := usecase.NewEmbeddingOrchestrator(embedder, usecase.EmbedOptions{
		Dimension:   cfg.Embedding.Dimension,
		CallTimeout: cfg.Embedding.Timeout(),
		MaxRetries:  cfg.Embedding.MaxRetries,
	}, nil)
	result, err := usecase.NewRetriever(orch, index, nil).Query(ctx, *query, *topK, cfg.Index.Namespace)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Search error: %v\n", err)
		os.Exit(1)
	}
	if result.Len() == 0 {
		fmt.Println("No matches.")
		return
	}

	fmt.Printf("Top %d semantic matches:\n\n", result.Len())

	totalScore := 0.0
	tags := make(map[string]int)
	for i, m := range result.Matches {
		preview := m.Record.Content()
		if len(preview) > 150 {
			preview = preview[:150] + "..."
		}
		preview = strings.ReplaceAll(preview, "\n", " ")

		similarity := m.Score
		totalScore += similarity
		tags[m.Record.Metadata[domain.MetaTag]]++

		rating := "LOW"
		if similarity > 0.7 {
			rating = "HIGH"
		} else if similarity > 0.5 {
			rating = "GOOD"
		} else if similarity > 0.3 {
			rating = "OK"
		}

		fmt.Printf("%d. [%s %.3f] %s\n", i+1, rating, similarity, m.Record.ID)
		fmt.Printf("   %s\n\n", preview)
	}

	avgScore := totalScore / float64(result.Len())
	fmt.Println(strings.Repeat("=", 70))
	fmt.Printf("QUALITY METRICS:\n")
	fmt.Printf("  Average similarity: %.3f\n", avgScore)
	fmt.Printf("  Top-1 similarity:   %.3f\n", result.Matches[0].Score)
	fmt.Printf("  Tags:               %s=%d %s=%d\n",
		usecase.TagDrama, tags[usecase.TagDrama], usecase.TagAction, tags[usecase.TagAction])

	if avgScore > 0.5 {
		fmt.Println("  Status: GOOD - semantic search working well")
	} else if avgScore > 0.3 {
		fmt.Println("  Status: OK - results are somewhat related")
	} else {
		fmt.Println("  Status: POOR - may need better embeddings or re-ingestion")
	}
}

func setupEmbedding(ctx context.Context, st *store.BoltStore, cfg *config.Config) (port.Embedder, port.VectorIndex, error) {
	var embedder port.Embedder
	var err error

	switch cfg.Embedding.Provider {
	case "openai":
		embedder, err = embedding.NewOpenAIEmbedder(cfg.Embedding.APIKeyEnv, cfg.Embedding.Model, embedding.Options{
			BaseURL:   cfg.Embedding.BaseURL,
			Dimension: cfg.Embedding.Dimension,
			Timeout:   cfg.Embedding.Timeout(),
		})
	case "mock":
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimension)
	default:
		return nil, nil, fmt.Errorf("unsupported provider: %s", cfg.Embedding.Provider)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("embedder init failed: %w", err)
	}

	index, err := store.NewBoltVectorIndex(st.DB())
	if err != nil {
		return nil, nil, fmt.Errorf("vector index failed: %w", err)
	}

	count, err := index.Count(ctx, cfg.Index.Namespace)
	if err != nil {
		return nil, nil, err
	}
	if count == 0 {
		return nil, nil, fmt.Errorf("no records in %s - run 'docqa ingest' first", cfg.Index.Namespace)
	}

	return embedder, index, nil
}
