package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/studygalaxy/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/studygalaxy/internal/api/middlewares"
	"github.com/markdave123-py/studygalaxy/internal/config"
	"github.com/markdave123-py/studygalaxy/internal/realtime"
	"github.com/markdave123-py/studygalaxy/internal/services"
)

// Services is everything the HTTP layer calls into.
type Services struct {
	Users     *services.UserService
	Chatbots  *services.ChatbotService
	Documents *services.DocumentService
	Study     *services.StudyService
	Streaks   *services.StreakService
	Hub       *realtime.Hub
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewRouter builds and wires all routes.
func NewRouter(cfg *config.Config, svc Services) http.Handler {
	authHandler := handlers.NewAuthHandler(svc.Users)
	botHandler := handlers.NewChatbotHandler(svc.Chatbots)
	docHandler := handlers.NewDocumentHandler(svc.Documents, cfg.MaxUploadBytes)
	studyHandler := handlers.NewStudyHandler(svc.Study)
	streakHandler := handlers.NewStreakHandler(svc.Streaks)
	feedHandler := handlers.NewFeedHandler(svc.Hub)

	requireAuth := appMiddleware.JWT([]byte(cfg.JWTSecret))

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", handlers.Health)

		// The feed is long-lived and must not inherit the request timeout.
		api.With(requireAuth).Get("/feed", feedHandler.Subscribe)

		api.Group(func(timed chi.Router) {
			timed.Use(middleware.Timeout(cfg.RequestTimeout))

			// public endpoints
			timed.Post("/signup", authHandler.Signup)
			timed.Post("/login", authHandler.Login)

			// protected endpoints
			timed.Group(func(protected chi.Router) {
				protected.Use(requireAuth)

				protected.Route("/chatbots", func(bots chi.Router) {
					bots.Get("/", botHandler.List)
					bots.Post("/", botHandler.Create)
					bots.Route("/{id}", func(bot chi.Router) {
						bot.Get("/", botHandler.Get)
						bot.Patch("/", botHandler.Update)
						bot.Delete("/", botHandler.Delete)
						bot.Put("/activity", botHandler.UpdateActivity)
						bot.Post("/xp", botHandler.AwardXP)

						bot.Get("/documents", docHandler.ListByChatbot)
						bot.Post("/documents", docHandler.Upload)

						bot.Post("/chat", studyHandler.Chat)
						bot.Post("/summarize", studyHandler.Summarize)
						bot.Post("/short-notes", studyHandler.ShortNotes)
						bot.Post("/quiz", studyHandler.Quiz)
					})
				})

				protected.Route("/documents/{id}", func(doc chi.Router) {
					doc.Get("/", docHandler.Get)
					doc.Delete("/", docHandler.Delete)
					doc.Post("/retry", docHandler.Retry)
					doc.Get("/download", docHandler.Download)
					doc.Get("/chunks", docHandler.Chunks)
				})

				protected.Get("/streak", streakHandler.Get)
				protected.Post("/streak/touch", streakHandler.Touch)
			})
		})
	})

	return r
}

func NewServer(cfg *config.Config, handler http.Handler) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server. Hijacked feed connections are closed
// by the hub, not here.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
