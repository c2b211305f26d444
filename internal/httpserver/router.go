package httpserver

import (
	"log/slog"
	"net/http"

	"amzaki/internal/middleware"
	"amzaki/internal/session"

	"github.com/go-chi/chi/v5"
)

// SessionReader exposes a read-only view of the chat session.
type SessionReader interface {
	Snapshot() session.Snapshot
}

type RouterDeps struct {
	Logger  *slog.Logger
	Session SessionReader
}

// NewRouter builds the debug inspector. It serves read-only endpoints only.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recover(deps.Logger))
	r.Use(middleware.Logging(deps.Logger))

	r.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("pong"))
	})

	r.Get("/session", func(w http.ResponseWriter, r *http.Request) {
		if deps.Session == nil {
			WriteJSONError(w, http.StatusServiceUnavailable, "no_session", "session is not available")
			return
		}
		snap := deps.Session.Snapshot()
		if deps.Logger != nil {
			deps.Logger.Debug("session snapshot served",
				slog.String("request_id", middleware.RequestIDFrom(r.Context())),
				slog.String("session_id", snap.ID),
				slog.String("status", snap.Status),
				slog.Int("turns", len(snap.History)))
		}
		WriteJSON(w, http.StatusOK, snap)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "no such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "inspector is read-only")
	})

	return r
}
