package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestOpenAIEmbedder_Embed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req embeddingRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "hello world", req.Input)
		assert.Equal(t, "text-embedding-ada-002", req.Model)

		_, _ = w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3],"index":0}],"usage":{"prompt_tokens":2,"total_tokens":2}}`))
	}))
	defer srv.Close()

	e := NewOpenAICompatibleEmbedder("sk-test", "text-embedding-ada-002", Options{BaseURL: srv.URL, Dimension: 3})
	vec, err := e.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	assert.Equal(t, domain.Vector{0.1, 0.2, 0.3}, vec)
	assert.Equal(t, 3, e.Dimension())
	assert.Equal(t, "text-embedding-ada-002", e.ModelName())
}

func TestOpenAIEmbedder_StatusClassification(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{"rate limited", http.StatusTooManyRequests, true},
		{"server error", http.StatusBadGateway, true},
		{"unauthorized", http.StatusUnauthorized, false},
		{"bad request", http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope"}}`))
			}))
			defer srv.Close()

			e := NewOpenAICompatibleEmbedder("sk-test", "m", Options{BaseURL: srv.URL})
			_, err := e.Embed(context.Background(), "x")
			require.Error(t, err)
			assert.Equal(t, tt.transient, domain.IsTransient(err))
		})
	}
}

func TestOpenAIEmbedder_EmptyData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	defer srv.Close()

	e := NewOpenAICompatibleEmbedder("sk-test", "m", Options{BaseURL: srv.URL})
	_, err := e.Embed(context.Background(), "x")
	require.Error(t, err)
	assert.False(t, domain.IsTransient(err))
}

func TestNewOpenAIEmbedder_MissingKey(t *testing.T) {
	t.Setenv("DOCQA_TEST_MISSING_KEY", "")
	_, err := NewOpenAIEmbedder("DOCQA_TEST_MISSING_KEY", "m", Options{})
	assert.Error(t, err)
}

func TestNewOpenAICompatibleEmbedder_DimensionByModel(t *testing.T) {
	assert.Equal(t, 3072, NewOpenAICompatibleEmbedder("k", "text-embedding-3-large", Options{}).Dimension())
	assert.Equal(t, 1536, NewOpenAICompatibleEmbedder("k", "text-embedding-ada-002", Options{}).Dimension())
	assert.Equal(t, 64, NewOpenAICompatibleEmbedder("k", "custom", Options{Dimension: 64}).Dimension())
}

func TestMockEmbedder(t *testing.T) {
	e := NewMockEmbedder(32)
	ctx := context.Background()

	a, err := e.Embed(ctx, "The quick brown fox")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "the QUICK brown fox!")
	require.NoError(t, err)

	assert.Len(t, a, 32)
	assert.Equal(t, a, b, "embedding should ignore case and punctuation")

	empty, err := e.Embed(ctx, "")
	require.NoError(t, err)
	assert.Len(t, empty, 32)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = e.Embed(cancelled, "x")
	assert.ErrorIs(t, err, context.Canceled)
}
