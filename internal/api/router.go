package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"

	"github.com/intima-health/backend/internal/config"
)

func NewRouter(apiHandler *APIHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)       // Basic request logging
	r.Use(middleware.Recoverer)    // Recover from panics
	r.Use(middleware.StripSlashes) // Ensure consistent path handling
	r.Use(allowedHostsMiddleware(config.AppConfig.AllowedHosts))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   config.AppConfig.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Coarse external-facing ceiling; the chat route gets a tighter one
	// below because every request fans out to the LLM.
	r.Use(httprate.LimitByIP(120, time.Minute))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/users/register", apiHandler.RegisterHandler)
		r.Post("/users/login", apiHandler.LoginHandler)
		r.Post("/users/token/refresh", apiHandler.RefreshHandler)
		r.Get("/health", apiHandler.HealthHandler)
		r.Get("/stats", apiHandler.StatsHandler)

		// Retrieval routes; anonymous callers allowed, persistence skipped.
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.OptionalAuthMiddleware)
			r.With(httprate.Limit(30, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
			)).Post("/search", apiHandler.SearchHandler)
			r.With(httprate.Limit(20, time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP, httprate.KeyByEndpoint),
			)).Post("/chat", apiHandler.ChatHandler)
		})

		// User-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(apiHandler.JWTAuthMiddleware)

			r.Get("/users/profile", apiHandler.ProfileHandler)
			r.Post("/users/profile/complete", apiHandler.UpdateProfileHandler)
			r.Put("/users/profile/update", apiHandler.UpdateProfileHandler)

			r.Get("/chat/history", apiHandler.HistoryHandler)
			r.Get("/chat/conversations", apiHandler.ConversationsHandler)

			r.Post("/documents", apiHandler.UploadDocumentHandler)
			r.Get("/prompts", apiHandler.ListPromptsHandler)
			r.Post("/prompts", apiHandler.SavePromptHandler)
		})
	})

	return r
}

// allowedHostsMiddleware rejects requests whose Host header is not in the
// configured list. An empty list allows every host.
func allowedHostsMiddleware(hosts []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(hosts))
	for _, h := range hosts {
		allowed[h] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) > 0 {
				if _, ok := allowed[r.Host]; !ok {
					writeError(w, http.StatusBadRequest, "Invalid host header")
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}
