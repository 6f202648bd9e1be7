// Package api exposes the math assistant over JSON HTTP and a WebSocket
// stroke channel.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/abhisek/mathpad/internal/auth"
	"github.com/abhisek/mathpad/internal/logging"
	"github.com/abhisek/mathpad/internal/session"
	"github.com/abhisek/mathpad/internal/store"
)

// Deps are the collaborators of a Server.
type Deps struct {
	Gate     *auth.Gate
	Sessions *session.Manager
	Model    session.Model
	Events   store.EventRepo // optional activity log
	Log      *logging.Logger

	// Provider names the configured model backend for display.
	Provider string

	AllowedOrigins []string
	SecureCookies  bool
}

// Server holds the HTTP handlers.
type Server struct {
	gate     *auth.Gate
	sessions *session.Manager
	model    session.Model
	events   store.EventRepo
	log      *logging.Logger

	provider       string
	allowedOrigins []string
	secureCookies  bool
}

// NewServer creates a Server.
func NewServer(d Deps) *Server {
	log := d.Log
	if log == nil {
		log = logging.Nop()
	}
	return &Server{
		gate:           d.Gate,
		sessions:       d.Sessions,
		model:          d.Model,
		events:         d.Events,
		log:            log,
		provider:       d.Provider,
		allowedOrigins: d.AllowedOrigins,
		secureCookies:  d.SecureCookies,
	}
}

// Routes returns the router. spa, when non-nil, serves every path the API
// does not claim.
func (s *Server) Routes(spa http.Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(RequestLogger(s.log))
	r.Use(chiMiddleware.Recoverer)
	r.Use(CORS(s.allowedOrigins))

	r.Get("/healthz", s.Health)

	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/login", s.Login)
		r.Post("/register", s.Register)
		r.Post("/logout", s.Logout)
		r.Get("/status", s.Status)
	})

	r.Group(func(r chi.Router) {
		r.Use(s.gate.Middleware)

		r.Get("/ws/canvas", s.CanvasSocket)

		r.Route("/api", func(r chi.Router) {
			r.Get("/state", s.GetState)
			r.Get("/options", s.Options)
			r.Put("/mode", s.SelectMode)

			r.Put("/canvas/settings", s.CanvasSettings)
			r.Post("/canvas/events", s.CanvasEvents)
			r.Post("/canvas/clear", s.CanvasClear)
			r.Get("/canvas.png", s.CanvasPNG)

			r.Post("/upload", s.Upload)
			r.Get("/upload.png", s.UploadPNG)

			r.Post("/solve", s.Solve)
			r.Put("/solution/feedback", s.Feedback)
			r.Delete("/solution", s.ClearSolution)
			r.Post("/solution/continue", s.ContinueInChat)

			r.Post("/chat", s.SendChat)
			r.Delete("/chat", s.ClearChat)

			r.Post("/quiz/start", s.StartQuiz)
			r.Post("/quiz/answer", s.AnswerQuiz)
			r.Post("/quiz/restart", s.RestartQuiz)

			r.Post("/classify", s.Classify)
		})
	})

	if spa != nil {
		r.Handle("/*", spa)
	}
	return r
}

// Health reports liveness.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"configured": s.model.Configured(),
	})
}

// record appends an activity event. Failures are logged and otherwise
// ignored.
func (s *Server) record(ctx context.Context, username, kind, detail string) {
	if s.events == nil {
		return
	}
	err := s.events.AppendActivity(context.WithoutCancel(ctx), store.ActivityEventData{
		Username: username,
		Kind:     kind,
		Detail:   detail,
	})
	if err != nil {
		s.log.Warn("failed to record activity", "kind", kind, "user", username, "error", err)
	}
}
