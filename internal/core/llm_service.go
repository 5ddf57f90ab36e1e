package core

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
)

const fallbackAnswerLimit = 800

// ChatCompleter produces an answer from a system and a user message using
// the sampling parameters of the resolved model.
type ChatCompleter interface {
	Complete(ctx context.Context, model ModelConfig, system, user string) (string, error)
}

// LLMService wraps the OpenAI chat completion API.
type LLMService struct {
	client openai.Client
}

func NewLLMService(apiKey string, opts ...option.RequestOption) *LLMService {
	opts = append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)
	return &LLMService{client: openai.NewClient(opts...)}
}

func (s *LLMService) Complete(ctx context.Context, model ModelConfig, system, user string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model.Name),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature: openai.Float(model.Temperature),
		MaxTokens:   openai.Int(model.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("chat completion returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}

// Healthy probes the provider with a lightweight model listing.
func (s *LLMService) Healthy(ctx context.Context) bool {
	_, err := s.client.Models.List(ctx)
	return err == nil
}

// FallbackAnswer builds the non-generative substitute used when the LLM call
// fails: the head of the assembled context plus a disclaimer. Callers mark
// model_used with FallbackModelSentinel.
func FallbackAnswer(assembledContext string) string {
	head := strings.TrimSpace(truncate(assembledContext, fallbackAnswerLimit))
	return fmt.Sprintf("I couldn't generate a full answer right now, but here is the most relevant information I found:\n\n%s\n\n(This is an excerpt from the knowledge base, not a generated answer.)", head)
}
