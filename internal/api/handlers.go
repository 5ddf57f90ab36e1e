package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/intima-health/backend/internal/auth"
	"github.com/intima-health/backend/internal/core"
	"github.com/intima-health/backend/internal/store"
)

const statsSampleLimit = 5

type contextKey string

const userContextKey contextKey = "user"

// VectorStatsProvider exposes the vector store operations the health and
// stats endpoints need.
type VectorStatsProvider interface {
	Ready(ctx context.Context) bool
	Count(ctx context.Context) (int, error)
	List(ctx context.Context, limit int) ([]core.SearchResult, error)
}

// LLMHealthChecker reports whether the LLM provider is reachable.
type LLMHealthChecker interface {
	Healthy(ctx context.Context) bool
}

type APIHandler struct {
	chatService  *core.ChatService
	db           *store.SQLiteStore
	ingestor     *core.Ingestor
	vectorStore  VectorStatsProvider
	llm          LLMHealthChecker
	prompts      *core.PromptManager
	documentsDir string
}

func NewAPIHandler(cs *core.ChatService, db *store.SQLiteStore, ingestor *core.Ingestor,
	vectorStore VectorStatsProvider, llm LLMHealthChecker, prompts *core.PromptManager,
	documentsDir string) *APIHandler {
	return &APIHandler{
		chatService:  cs,
		db:           db,
		ingestor:     ingestor,
		vectorStore:  vectorStore,
		llm:          llm,
		prompts:      prompts,
		documentsDir: documentsDir,
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// userFromRequest returns the authenticated user, or nil for anonymous calls
// on endpoints that permit them.
func userFromRequest(r *http.Request) *store.User {
	user, _ := r.Context().Value(userContextKey).(*store.User)
	return user
}

// JWTAuthMiddleware requires a valid access token and loads the user.
func (h *APIHandler) JWTAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, err := h.resolveUser(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, user)))
	})
}

// OptionalAuthMiddleware loads the user when a valid token is present but
// lets anonymous requests through. Chat and search accept both.
func (h *APIHandler) OptionalAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if user, err := h.resolveUser(r); err == nil {
			r = r.WithContext(context.WithValue(r.Context(), userContextKey, user))
		}
		next.ServeHTTP(w, r)
	})
}

func (h *APIHandler) resolveUser(r *http.Request) (*store.User, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errors.New("Authorization header is required")
	}

	tokenString := strings.TrimPrefix(authHeader, "Bearer ")
	userID, err := auth.ValidateToken(tokenString, auth.TokenTypeAccess)
	if err != nil {
		return nil, errors.New("Invalid token")
	}

	user, err := h.db.GetUserByID(userID)
	if err != nil {
		log.Printf("Error loading user %d: %v", userID, err)
		return nil, errors.New("Failed to process user identity")
	}
	if user == nil {
		return nil, errors.New("User not found")
	}
	return user, nil
}

// SearchHandler serves POST /api/search.
func (h *APIHandler) SearchHandler(w http.ResponseWriter, r *http.Request) {
	var req core.SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Question == "" {
		writeError(w, http.StatusBadRequest, "Question is required")
		return
	}
	if len(req.Question) > core.MaxQuestionLength {
		writeError(w, http.StatusBadRequest, "Question is too long")
		return
	}

	resp := h.chatService.Search(r.Context(), req)
	writeJSON(w, http.StatusOK, resp)
}

// ChatHandler serves POST /api/chat.
func (h *APIHandler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	var req core.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	resp, err := h.chatService.Chat(r.Context(), userFromRequest(r), req)
	if err != nil {
		log.Printf("Chat request failed: %v", err)
		writeJSON(w, http.StatusInternalServerError, core.ChatResponse{
			Success:   false,
			ErrorCode: core.ErrCodeInternal,
			Error:     "An unexpected error occurred",
			Timestamp: time.Now(),
		})
		return
	}

	status := http.StatusOK
	if resp.ErrorCode == core.ErrCodeMissingQuestion || resp.ErrorCode == core.ErrCodeInvalidInput {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, resp)
}

// HistoryHandler serves GET /api/chat/history?conversation_id=...
func (h *APIHandler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromRequest(r)
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}

	conv, messages, err := h.chatService.History(user, conversationID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "Conversation not found")
			return
		}
		log.Printf("Error loading history for user %d, conversation %s: %v", user.ID, conversationID, err)
		writeError(w, http.StatusInternalServerError, "Failed to load conversation history")
		return
	}

	if messages == nil {
		messages = []store.ChatMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":            true,
		"conversation_id":    conv.ConversationID,
		"conversation_title": conv.Title,
		"messages":           messages,
	})
}

// ConversationsHandler serves GET /api/chat/conversations.
func (h *APIHandler) ConversationsHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromRequest(r)
	summaries, err := h.chatService.Conversations(user)
	if err != nil {
		log.Printf("Error listing conversations for user %d: %v", user.ID, err)
		writeError(w, http.StatusInternalServerError, "Failed to list conversations")
		return
	}
	if summaries == nil {
		summaries = []core.ConversationSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":       true,
		"conversations": summaries,
	})
}

// HealthHandler serves GET /api/health.
func (h *APIHandler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	vectorOK := h.vectorStore.Ready(r.Context())
	llmOK := h.llm.Healthy(r.Context())

	status := "ok"
	if !vectorOK || !llmOK {
		status = "degraded"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status": status,
		"services": map[string]string{
			"vector_store": serviceState(vectorOK),
			"llm":          serviceState(llmOK),
		},
		"models":    core.AllowedModels(),
		"timestamp": time.Now(),
	})
}

func serviceState(ok bool) string {
	if ok {
		return "up"
	}
	return "down"
}

// StatsHandler serves GET /api/stats.
func (h *APIHandler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	total, err := h.vectorStore.Count(r.Context())
	if err != nil {
		log.Printf("Error counting documents: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to read document stats")
		return
	}

	samples := []string{}
	if docs, err := h.vectorStore.List(r.Context(), statsSampleLimit); err != nil {
		log.Printf("Error listing sample documents: %v", err)
	} else {
		for _, doc := range docs {
			samples = append(samples, doc.Title)
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"total_documents":   total,
		"sample_documents":  samples,
		"embedding_model":   "text-embedding-3-large",
		"vector_dimensions": core.DefaultEmbeddingDimensions,
	})
}

// ListPromptsHandler serves GET /api/prompts.
func (h *APIHandler) ListPromptsHandler(w http.ResponseWriter, r *http.Request) {
	names := h.prompts.List()
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"prompts": names})
}

type SavePromptRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// SavePromptHandler serves POST /api/prompts: creates or replaces a system
// prompt template.
func (h *APIHandler) SavePromptHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromRequest(r)
	if !user.IsSuperuser {
		writeError(w, http.StatusForbidden, "Prompt management requires admin privileges")
		return
	}

	var req SavePromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if req.Name == "" || req.Content == "" {
		writeError(w, http.StatusBadRequest, "Name and content are required")
		return
	}

	if err := h.prompts.Save(req.Name, req.Content); err != nil {
		log.Printf("Error saving prompt %s: %v", req.Name, err)
		writeError(w, http.StatusInternalServerError, "Failed to save prompt")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"message": "Prompt saved"})
}

// UploadDocumentHandler serves POST /api/documents: saves the uploaded text
// file, records it, and ingests it into the vector store reactively.
func (h *APIHandler) UploadDocumentHandler(w http.ResponseWriter, r *http.Request) {
	user := userFromRequest(r)
	if !user.IsSuperuser {
		writeError(w, http.StatusForbidden, "Document upload requires admin privileges")
		return
	}

	if err := r.ParseMultipartForm(10 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid multipart form: "+err.Error())
		return
	}

	file, header, err := r.FormFile("document")
	if err != nil {
		writeError(w, http.StatusBadRequest, "document file is required")
		return
	}
	defer file.Close()

	name := filepath.Base(header.Filename)
	if !strings.HasSuffix(name, ".txt") {
		writeError(w, http.StatusBadRequest, "Only .txt documents are supported")
		return
	}

	title := r.FormValue("title")
	if title == "" {
		title = name
	}

	if err := os.MkdirAll(h.documentsDir, 0o755); err != nil {
		log.Printf("Error creating documents directory: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to store document")
		return
	}
	destPath := filepath.Join(h.documentsDir, name)
	dest, err := os.Create(destPath)
	if err != nil {
		log.Printf("Error creating document file %s: %v", destPath, err)
		writeError(w, http.StatusInternalServerError, "Failed to store document")
		return
	}
	if _, err := io.Copy(dest, file); err != nil {
		dest.Close()
		log.Printf("Error writing document file %s: %v", destPath, err)
		writeError(w, http.StatusInternalServerError, "Failed to store document")
		return
	}
	dest.Close()

	doc := store.UploadedDocument{
		Title:      title,
		UploadedBy: user.ID,
		FilePath:   destPath,
	}
	if err := h.db.CreateUploadedDocument(&doc); err != nil {
		log.Printf("Error recording uploaded document: %v", err)
		writeError(w, http.StatusInternalServerError, "Failed to record document")
		return
	}

	documentID, err := h.ingestor.IngestFile(r.Context(), destPath)
	if err != nil {
		// The upload is recorded; ingestion can be retried with -ingest.
		log.Printf("Error ingesting uploaded document %s: %v", destPath, err)
		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"success":  true,
			"id":       doc.ID,
			"title":    doc.Title,
			"ingested": false,
		})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"id":          doc.ID,
		"title":       doc.Title,
		"ingested":    true,
		"document_id": documentID,
	})
}
