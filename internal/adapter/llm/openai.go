// Package llm provides generative model adapters.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"docqa/internal/domain"
	"docqa/internal/port"
)

var (
	_ port.LLM = (*OpenAILLM)(nil)
	_ port.LLM = (*EchoLLM)(nil)
)

// Default configuration values.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4"
	DefaultTimeout = 120 * time.Second
)

// Config holds configuration for the OpenAI chat completions adapter.
type Config struct {
	// APIKey is the OpenAI API key (required).
	APIKey string

	// BaseURL is the API base URL. Can point at any OpenAI-compatible server.
	BaseURL string

	// Model is the chat model to use (default: gpt-4).
	Model string

	// Timeout is the request timeout (default: 120s).
	Timeout time.Duration
}

// OpenAILLM calls the /chat/completions endpoint.
type OpenAILLM struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

type chatCompletionRequest struct {
	Model    string           `json:"model"`
	Messages []domain.Message `json:"messages"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// NewOpenAILLMFromEnv reads the API key from apiKeyEnv.
func NewOpenAILLMFromEnv(apiKeyEnv string, cfg Config) (*OpenAILLM, error) {
	cfg.APIKey = os.Getenv(apiKeyEnv)
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key not found in environment variable: %s", apiKeyEnv)
	}
	return NewOpenAILLM(cfg)
}

func NewOpenAILLM(cfg Config) (*OpenAILLM, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &OpenAILLM{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Complete sends the messages and returns the first choice.
func (s *OpenAILLM) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	jsonBody, err := json.Marshal(chatCompletionRequest{Model: s.model, Messages: messages})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", domain.Transient(fmt.Errorf("send request: %w", err))
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("openai error (status %d): %s", resp.StatusCode, string(body))
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			return "", domain.Transient(statusErr)
		}
		return "", statusErr
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(body, &chatResp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("openai error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("openai: no response choices returned")
	}

	return chatResp.Choices[0].Message.Content, nil
}

func (s *OpenAILLM) ModelName() string {
	return s.model
}

// EchoLLM answers without a model by returning the last user message
// followed by the context it was given. Used for offline runs.
type EchoLLM struct{}

func (EchoLLM) Complete(ctx context.Context, messages []domain.Message) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	parts := make([]string, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == domain.RoleUser {
			parts = append(parts, messages[i].Content)
		}
	}
	return strings.Join(parts, "\n\n"), nil
}

func (EchoLLM) ModelName() string {
	return "echo"
}
