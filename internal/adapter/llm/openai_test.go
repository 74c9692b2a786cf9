package llm

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

func TestOpenAILLM_Complete(t *testing.T) {
	var got chatCompletionRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"42"},"finish_reason":"stop"},{"message":{"content":"ignored"}}]}`))
	}))
	defer srv.Close()

	l, err := NewOpenAILLM(Config{APIKey: "sk-test", BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	msgs := []domain.Message{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "ctx"},
		{Role: domain.RoleUser, Content: "q"},
	}
	out, err := l.Complete(context.Background(), msgs)
	require.NoError(t, err)
	assert.Equal(t, "42", out)
	assert.Equal(t, DefaultModel, got.Model)
	assert.Equal(t, msgs, got.Messages)
}

func TestOpenAILLM_Errors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		transient bool
	}{
		{"server error", http.StatusServiceUnavailable, `{}`, true},
		{"rate limited", http.StatusTooManyRequests, `{}`, true},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"bad"}}`, false},
		{"no choices", http.StatusOK, `{"choices":[]}`, false},
		{"api error", http.StatusOK, `{"error":{"message":"quota"}}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			l, err := NewOpenAILLM(Config{APIKey: "k", BaseURL: srv.URL})
			require.NoError(t, err)
			_, err = l.Complete(context.Background(), nil)
			require.Error(t, err)
			assert.Equal(t, tt.transient, domain.IsTransient(err))
		})
	}
}

func TestNewOpenAILLM_RequiresKey(t *testing.T) {
	_, err := NewOpenAILLM(Config{})
	assert.Error(t, err)

	t.Setenv("DOCQA_TEST_LLM_KEY", "")
	_, err = NewOpenAILLMFromEnv("DOCQA_TEST_LLM_KEY", Config{})
	assert.Error(t, err)
}

func TestEchoLLM(t *testing.T) {
	out, err := EchoLLM{}.Complete(context.Background(), []domain.Message{
		{Role: domain.RoleSystem, Content: "sys"},
		{Role: domain.RoleUser, Content: "context"},
		{Role: domain.RoleUser, Content: "question"},
	})
	require.NoError(t, err)
	assert.Equal(t, "question\n\ncontext", out)
	assert.Equal(t, "echo", EchoLLM{}.ModelName())
}
