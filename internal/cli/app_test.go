package cli

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"docqa/config"
	"docqa/internal/domain"
	"docqa/internal/usecase"
)

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Embedding.Provider = "mock"
	cfg.Embedding.Dimension = 16
	cfg.LLM.Provider = "echo"
	cfg.Chunk.Size = 10
	return cfg
}

func TestApp_IngestAndAsk(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig()

	a, err := openApp(cfg, dir, zap.NewNop(), appOptions{withLLM: true})
	require.NoError(t, err)
	defer a.Close()

	_, err = a.ingest.Ingest(ctx, usecase.IngestRequest{DocID: "a.txt", Text: "hello"}, nil)
	assert.ErrorIs(t, err, domain.ErrNamespaceNotReady, "ingest needs an initialised namespace")

	require.NoError(t, a.ensure(ctx, true))

	res, err := a.ingest.Ingest(ctx, usecase.IngestRequest{DocID: "a.txt", Text: strings.Repeat("x", 25)}, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)

	out, err := a.ask.Ask(ctx, usecase.AskRequest{Query: "xxxx", DocID: "a.txt"})
	require.NoError(t, err)
	assert.Equal(t, usecase.AnswerTitle, out.Answer.Title)
	assert.Len(t, out.Matches, 3)
}

func TestApp_ConfigChangeRequiresRebuild(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()

	a, err := openApp(cfg, dir, zap.NewNop(), appOptions{})
	require.NoError(t, err)
	require.NoError(t, a.Close())

	cfg.Chunk.Size = 20
	_, err = openApp(cfg, dir, zap.NewNop(), appOptions{})
	assert.ErrorIs(t, err, errRebuildRequired)

	a, err = openApp(cfg, dir, zap.NewNop(), appOptions{allowRebuild: true})
	require.NoError(t, err)
	require.NoError(t, a.Close())
}

func TestApp_NamespaceDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	cfg := testConfig()

	a, err := openApp(cfg, dir, zap.NewNop(), appOptions{})
	require.NoError(t, err)
	require.NoError(t, a.ensure(ctx, true))
	require.NoError(t, a.Close())

	cfg.Embedding.Dimension = 8
	a, err = openApp(cfg, dir, zap.NewNop(), appOptions{allowRebuild: true})
	require.NoError(t, err)
	defer a.Close()
	assert.ErrorIs(t, a.ensure(ctx, true), domain.ErrNamespaceNotReady)
}

func TestApp_UnknownProviders(t *testing.T) {
	cfg := testConfig()
	cfg.Embedding.Provider = "nope"
	_, err := newEmbedder(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.LLM.Provider = "nope"
	_, err = newLLM(cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Embedding.Provider = "openai"
	cfg.Embedding.APIKeyEnv = "DOCQA_TEST_UNSET_KEY"
	_, err = newEmbedder(cfg)
	assert.Error(t, err)
}
