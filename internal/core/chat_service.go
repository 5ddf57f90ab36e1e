package core

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/intima-health/backend/internal/store"
)

// Error codes surfaced in structured responses.
const (
	ErrCodeMissingQuestion = "MISSING_QUESTION"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeNoContext       = "NO_CONTEXT"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

const conversationTitleLength = 50

// ChatRequest is one chat invocation. ConversationID and MessageID are
// client-supplied correlation keys; blanks are filled in server-side.
type ChatRequest struct {
	Question       string `json:"question"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id"`
	Model          string `json:"model"`
	Limit          int    `json:"limit"`
}

// ChatResponse is the structured payload for both full and degraded answers.
type ChatResponse struct {
	Success        bool      `json:"success"`
	Answer         string    `json:"answer"`
	Sources        []string  `json:"sources"`
	ModelUsed      string    `json:"model_used"`
	ConversationID string    `json:"conversation_id"`
	MessageID      string    `json:"message_id"`
	Timestamp      time.Time `json:"timestamp"`
	ContextUsed    bool      `json:"context_used"`
	ShowSources    bool      `json:"show_sources"`
	ErrorCode      string    `json:"error_code,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// SearchRequest is one direct document search invocation.
type SearchRequest struct {
	Question            string `json:"question"`
	Limit               int    `json:"limit"`
	EmbeddingDimensions int    `json:"embedding_dimensions"`
}

// RankedResult is one search hit in rank order.
type RankedResult struct {
	Rank           int     `json:"rank"`
	Title          string  `json:"title"`
	Content        string  `json:"content"`
	FilePath       string  `json:"file_path"`
	ContentPreview string  `json:"content_preview"`
	Score          float32 `json:"score"`
}

// SearchResponse is the payload of the /search endpoint. FallbackUsed marks
// results produced by the lexical fallback instead of vector search.
type SearchResponse struct {
	Results        []RankedResult `json:"results"`
	TotalResults   int            `json:"total_results"`
	Query          string         `json:"query"`
	EmbeddingModel string         `json:"embedding_model"`
	FallbackUsed   bool           `json:"fallback_used"`
}

// ConversationSummary is one entry of the conversation listing.
type ConversationSummary struct {
	ID             string       `json:"id"`
	ConversationID string       `json:"conversation_id"`
	Title          string       `json:"title"`
	CreatedAt      time.Time    `json:"created_at"`
	LastUpdated    time.Time    `json:"last_updated"`
	LastMessage    *LastMessage `json:"last_message"`
}

// LastMessage previews the newest exchange of a conversation.
type LastMessage struct {
	ID        int64     `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatService orchestrates a chat request: validate, retrieve, assemble
// context, generate, persist, respond. Anonymous callers (nil user) skip
// persistence but receive full responses.
type ChatService struct {
	db      *store.SQLiteStore
	rag     *RAGService
	llm     ChatCompleter
	prompts *PromptManager
}

func NewChatService(db *store.SQLiteStore, rag *RAGService, llm ChatCompleter, prompts *PromptManager) *ChatService {
	return &ChatService{db: db, rag: rag, llm: llm, prompts: prompts}
}

// Chat runs the full retrieval-augmented pipeline for one question.
func (s *ChatService) Chat(ctx context.Context, user *store.User, req ChatRequest) (*ChatResponse, error) {
	// 1. Validate.
	if req.Question == "" {
		return &ChatResponse{
			Success:   false,
			ErrorCode: ErrCodeMissingQuestion,
			Error:     "Question is required",
			Timestamp: time.Now(),
		}, nil
	}
	if len(req.Question) > MaxQuestionLength {
		return &ChatResponse{
			Success:   false,
			ErrorCode: ErrCodeInvalidInput,
			Error:     fmt.Sprintf("Question must be at most %d characters", MaxQuestionLength),
			Timestamp: time.Now(),
		}, nil
	}

	limit := ClampLimit(req.Limit, ChatLimitMax, ChatLimitDefault)
	model := ResolveModel(req.Model)

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	messageID := req.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}

	// 2 & 3. Retrieve and assemble context.
	rc := s.rag.Retrieve(ctx, req.Question, limit, DefaultEmbeddingDimensions)

	resp := &ChatResponse{
		ConversationID: conversationID,
		MessageID:      messageID,
		Sources:        rc.Sources,
		Timestamp:      time.Now(),
	}
	if resp.Sources == nil {
		resp.Sources = []string{}
	}

	if rc.Context == "" {
		// No usable content: skip the LLM entirely, but the exchange is
		// still recorded for authenticated users.
		resp.Success = false
		resp.ErrorCode = ErrCodeNoContext
		resp.Answer = noContextAnswer(rc.ErrorType)
		resp.ModelUsed = model.Name
	} else {
		// 4. Generate answer.
		system := s.systemPrompt()
		userMessage := fmt.Sprintf("Context:\n%s\n\nQuestion: %s", rc.Context, req.Question)

		answer, err := s.llm.Complete(ctx, model, system, userMessage)
		if err != nil {
			log.Printf("LLM call failed, substituting context excerpt: %v", err)
			answer = FallbackAnswer(rc.Context)
			resp.ModelUsed = FallbackModelSentinel
		} else {
			resp.ModelUsed = model.Name
		}
		resp.Success = true
		resp.Answer = answer
		resp.ContextUsed = true
		resp.ShowSources = len(resp.Sources) > 0
	}

	// 5. Persist for authenticated users.
	if user != nil {
		if err := s.persistExchange(user, conversationID, messageID, req.Question, resp); err != nil {
			if errors.Is(err, store.ErrConversationTaken) {
				return &ChatResponse{
					Success:   false,
					ErrorCode: ErrCodeInvalidInput,
					Error:     "Conversation ID is already in use",
					Timestamp: time.Now(),
				}, nil
			}
			return nil, err
		}
	}

	return resp, nil
}

func (s *ChatService) persistExchange(user *store.User, conversationID, messageID, question string, resp *ChatResponse) error {
	title := truncate(question, conversationTitleLength)
	conv, err := s.db.GetOrCreateConversation(user.ID, conversationID, title)
	if err != nil {
		return fmt.Errorf("failed to resolve conversation: %w", err)
	}

	msg := store.ChatMessage{
		ConversationID: conv.ID,
		UserID:         user.ID,
		MessageID:      messageID,
		Question:       question,
		Answer:         resp.Answer,
		ModelUsed:      resp.ModelUsed,
		Sources:        resp.Sources,
	}
	if err := s.db.CreateChatMessage(&msg); err != nil {
		return fmt.Errorf("failed to store chat message: %w", err)
	}
	resp.Timestamp = msg.Timestamp

	if err := s.db.TouchConversation(conv.ID); err != nil {
		// The exchange is stored; a stale last_updated is not worth failing
		// the request over.
		log.Printf("Failed to touch conversation %s: %v", conv.ID, err)
	}
	return nil
}

// systemPrompt loads the custom chat prompt when one is configured, else the
// built-in default, and appends the fixed context-handling rules.
func (s *ChatService) systemPrompt() string {
	base, ok := s.prompts.Load("chat_system")
	if !ok {
		base = s.prompts.Default()
	}
	return base + "\n\nAnswer using only the context documents provided in the user message. If they do not contain the answer, say so."
}

// noContextAnswer shapes the canned reply by retrieval failure type.
func noContextAnswer(errorType string) string {
	switch errorType {
	case SearchErrorQuota:
		return "The knowledge base is temporarily unavailable because the search quota was exceeded. Please try again in a few minutes."
	case SearchErrorDimension:
		return "The knowledge base returned a configuration error (embedding dimension mismatch). Please contact support if this persists."
	case SearchErrorGeneric:
		return "I couldn't reach the knowledge base to look up your question. Please try again shortly."
	default:
		return "I don't have any documents related to your question yet, so I can't give you a grounded answer."
	}
}

// Search serves the direct document search endpoint.
func (s *ChatService) Search(ctx context.Context, req SearchRequest) *SearchResponse {
	limit := ClampLimit(req.Limit, SearchLimitMax, SearchLimitDefault)
	dimensions := ClampDimensions(req.EmbeddingDimensions)

	results, usedFallback := s.rag.SearchDocuments(ctx, req.Question, limit, dimensions)

	ranked := make([]RankedResult, 0, len(results))
	for i, r := range results {
		ranked = append(ranked, RankedResult{
			Rank:           i + 1,
			Title:          r.Title,
			Content:        r.Content,
			FilePath:       r.FilePath,
			ContentPreview: truncate(r.Content, 200),
			Score:          r.Score,
		})
	}

	return &SearchResponse{
		Results:        ranked,
		TotalResults:   len(ranked),
		Query:          req.Question,
		EmbeddingModel: string(embeddingModel),
		FallbackUsed:   usedFallback,
	}
}

// History returns the conversation and its messages in append order.
// store.ErrNotFound propagates for unknown, soft-deleted, or foreign
// conversations.
func (s *ChatService) History(user *store.User, conversationID string) (*store.Conversation, []store.ChatMessage, error) {
	conv, err := s.db.GetConversation(user.ID, conversationID)
	if err != nil {
		return nil, nil, err
	}
	messages, err := s.db.GetMessagesByConversation(conv.ID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load history: %w", err)
	}
	return conv, messages, nil
}

// Conversations lists the user's conversations, most recently updated first,
// each with a preview of its newest message.
func (s *ChatService) Conversations(user *store.User) ([]ConversationSummary, error) {
	conversations, err := s.db.GetConversationsByUserID(user.ID)
	if err != nil {
		return nil, err
	}

	summaries := make([]ConversationSummary, 0, len(conversations))
	for _, conv := range conversations {
		summary := ConversationSummary{
			ID:             conv.ID,
			ConversationID: conv.ConversationID,
			Title:          conv.Title,
			CreatedAt:      conv.CreatedAt,
			LastUpdated:    conv.LastUpdated,
		}
		last, err := s.db.GetLastMessage(conv.ID)
		if err != nil {
			log.Printf("Failed to load last message for conversation %s: %v", conv.ID, err)
		} else if last != nil {
			summary.LastMessage = &LastMessage{
				ID:        last.ID,
				Text:      last.Answer,
				Timestamp: last.Timestamp,
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
