package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"chatbridge/internal/handlers"
	"chatbridge/internal/middleware"
)

type Handlers struct {
	Auth   *handlers.AuthHandler
	Chat   *handlers.ChatHandler
	Models *handlers.ModelsHandler
	// WebSocket upgrades authenticate with ?token= themselves.
	WebSocket http.HandlerFunc
}

func New(jwtAuth *middleware.JWTAuth, h Handlers, authLimiter *middleware.RateLimiter, frontendURL string) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.CORS(frontendURL))

	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(10, time.Minute)
	}

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/api/v1", func(r chi.Router) {

		// ──── Auth Routes (public) ────
		r.Route("/auth", func(r chi.Router) {
			r.Use(authLimiter.Middleware)
			r.Post("/register", h.Auth.Register)
			r.Post("/login", h.Auth.Login)
			r.Post("/refresh", h.Auth.Refresh)
			r.Post("/logout", h.Auth.Logout)
		})

		// ──── Model Catalog ────
		r.Get("/models", h.Models.List)
		r.Put("/models/selection", h.Models.SetSelection)

		// ──── Chat Routes ────
		r.With(handlers.RequireChatID, jwtAuth.Middleware).Delete("/chat", h.Chat.Delete)

		r.Group(func(r chi.Router) {
			r.Use(jwtAuth.Middleware)

			r.Post("/chat", h.Chat.Send)
			r.Get("/history", h.Chat.History)

			r.Get("/chats/{id}/messages", h.Chat.Messages)
			r.Patch("/chats/{id}/visibility", h.Chat.UpdateVisibility)
			r.Delete("/messages/{id}/trailing", h.Chat.DeleteTrailing)

			r.Get("/vote", h.Chat.Votes)
			r.Patch("/vote", h.Chat.Vote)
		})

		// ──── WebSocket ────
		if h.WebSocket != nil {
			r.Get("/ws", h.WebSocket)
		}
	})

	return r
}
