package usecase

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/port"
)

const (
	systemPrompt  = "You are an assistant that answers questions based on the file content."
	contextPrefix = "Here are some relevant sections of the file content:\n\n"
	queryPrefix   = "The user query is: "

	// AnswerTitle is the title of every generated answer.
	AnswerTitle = "Generated Answer"
)

// BuildContext joins the matched chunk texts in result order, separated by
// a blank line.
func BuildContext(result domain.QueryResult) string {
	parts := make([]string, len(result.Matches))
	for i, m := range result.Matches {
		parts[i] = m.Record.Content()
	}
	return strings.Join(parts, "\n\n")
}

// BuildMessages returns the system instruction, the retrieved context and
// the query, in that order.
func BuildMessages(query, contextText string) []domain.Message {
	return []domain.Message{
		{Role: domain.RoleSystem, Content: systemPrompt},
		{Role: domain.RoleUser, Content: contextPrefix + contextText},
		{Role: domain.RoleUser, Content: queryPrefix + query},
	}
}

// Answerer produces an answer from retrieved context with one model call.
type Answerer struct {
	llm    port.LLM
	logger *zap.Logger
}

func NewAnswerer(llm port.LLM, logger *zap.Logger) *Answerer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Answerer{llm: llm, logger: logger}
}

// Answer asks the model once. An empty result still produces a call with an
// empty context.
func (a *Answerer) Answer(ctx context.Context, query string, result domain.QueryResult) (domain.GeneratedAnswer, error) {
	messages := BuildMessages(query, BuildContext(result))

	content, err := a.llm.Complete(ctx, messages)
	if err != nil {
		a.logger.Error("generation failed", zap.String("model", a.llm.ModelName()), zap.Error(err))
		return domain.GeneratedAnswer{}, domain.NewStageError(domain.StageGenerate, domain.ErrProvider, err)
	}

	return domain.GeneratedAnswer{Title: AnswerTitle, Content: content}, nil
}
