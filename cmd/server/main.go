package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	openai "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"github.com/intima-health/backend/internal/api"
	"github.com/intima-health/backend/internal/config"
	"github.com/intima-health/backend/internal/core"
	"github.com/intima-health/backend/internal/store"
)

func main() {
	// Load configuration
	config.LoadConfig()

	// Setup logging
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	if config.AppConfig.LogLevel == "DEBUG" {
		log.Println("Service starting in DEBUG mode")
	}

	// Command line flags for one-off operational tasks
	ingestFlag := flag.Bool("ingest", false, "Ingest all documents from the documents directory and exit")
	initSchemaFlag := flag.Bool("init-schema", false, "Initialize the vector store schema and exit")
	createAdminFlag := flag.String("create-admin", "", "Promote the account with this email to superuser and exit")
	deleteDocFlag := flag.String("delete-doc", "", "Delete the document with this file path from the vector store and exit")
	flag.Parse()

	// Initialize database store
	dbStore, err := store.NewSQLiteStore(config.AppConfig.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer dbStore.Close()

	if *createAdminFlag != "" {
		if err := dbStore.PromoteToSuperuser(*createAdminFlag); err != nil {
			log.Fatalf("Failed to promote %s: %v", *createAdminFlag, err)
		}
		log.Printf("Promoted %s to superuser. Exiting.", *createAdminFlag)
		os.Exit(0)
	}

	// One OpenAI client serves both embeddings and chat completions.
	openaiClient := openai.NewClient(option.WithAPIKey(config.AppConfig.OpenAIAPIKey))
	embedder := core.NewEmbeddingService(openaiClient)
	llmService := core.NewLLMService(config.AppConfig.OpenAIAPIKey)

	// Two vector store sessions: writes run under the admin key, searches
	// under the restricted user key.
	adminStore := core.NewVectorStore(config.AppConfig.WeaviateURL,
		config.AppConfig.WeaviateAdminKey, config.AppConfig.WeaviateUserKey, true, embedder)
	searchStore := core.NewVectorStore(config.AppConfig.WeaviateURL,
		config.AppConfig.WeaviateAdminKey, config.AppConfig.WeaviateUserKey, false, embedder)
	defer adminStore.Close()
	defer searchStore.Close()

	ctx := context.Background()

	if *initSchemaFlag {
		log.Println("Initializing vector store schema...")
		if err := adminStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("Schema initialization failed: %v", err)
		}
		log.Println("Schema initialization completed successfully. Exiting.")
		os.Exit(0)
	}

	if *deleteDocFlag != "" {
		id := core.DocumentID(*deleteDocFlag)
		if err := adminStore.DeleteByID(ctx, id); err != nil {
			log.Fatalf("Failed to delete document %s: %v", *deleteDocFlag, err)
		}
		log.Printf("Deleted document %s (id %s). Exiting.", *deleteDocFlag, id)
		os.Exit(0)
	}

	ingestor := core.NewIngestor(adminStore, config.AppConfig.DocumentsDir)

	if *ingestFlag {
		log.Println("Starting document ingestion...")
		if err := adminStore.EnsureSchema(ctx); err != nil {
			log.Fatalf("Schema initialization failed: %v", err)
		}
		processed, err := ingestor.IngestDirectory(ctx)
		if err != nil {
			log.Fatalf("Document ingestion failed: %v", err)
		}
		log.Printf("Document ingestion complete. Processed %d files. Exiting.", processed)
		os.Exit(0)
	}

	// Ensure the Document collection exists before serving. A down vector
	// store is not fatal; retrieval degrades to the lexical fallback.
	if err := adminStore.EnsureSchema(ctx); err != nil {
		log.Printf("Warning: could not initialize vector store schema: %v", err)
	}

	fallback := core.NewFallbackSearcher(config.AppConfig.DocumentsDir)
	ragService := core.NewRAGService(searchStore, fallback)
	prompts := core.NewPromptManager(config.AppConfig.PromptsDir)
	chatService := core.NewChatService(dbStore, ragService, llmService, prompts)

	// Initialize API Handler and Router
	apiHandler := api.NewAPIHandler(chatService, dbStore, ingestor, searchStore, llmService,
		prompts, config.AppConfig.DocumentsDir)
	router := api.NewRouter(apiHandler)

	// Start HTTP server
	serverAddr := fmt.Sprintf(":%s", config.AppConfig.HTTPPort)

	srv := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // LLM calls can take time
		IdleTimeout:  120 * time.Second,
	}

	// Graceful shutdown handling
	go func() {
		log.Printf("Starting server on %s. Press Ctrl+C to quit.", serverAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Could not listen on %s: %v\n", serverAddr, err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exiting gracefully")
}
