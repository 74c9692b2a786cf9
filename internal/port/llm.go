package port

import (
	"context"

	"docqa/internal/domain"
)

// LLM represents a chat-style generative model.
type LLM interface {
	// Complete returns the top response for the ordered messages.
	Complete(ctx context.Context, messages []domain.Message) (string, error)

	// ModelName returns the name of the model.
	ModelName() string
}
