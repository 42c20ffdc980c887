// Package server exposes the scoping engine over HTTP: one chat entry
// point plus session inspection, feedback, and trace endpoints.
package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/scopewell/scope-copilot/internal/model"
	"github.com/scopewell/scope-copilot/internal/scope"
)

// Server wraps the engine behind an HTTP API.
type Server struct {
	engine *scope.Engine
	router chi.Router
}

// New builds the server with all routes configured.
func New(engine *scope.Engine) *Server {
	s := &Server{engine: engine}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", s.handleHealth)
	r.Post("/chat", s.handleChat)
	r.Route("/sessions/{thread_id}", func(r chi.Router) {
		r.Get("/", s.handleGetSession)
		r.Get("/trace", s.handleGetTrace)
		r.Post("/feedback", s.handleFeedback)
	})

	s.router = r
	return s
}

// Handler returns the root HTTP handler for use in tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks serving until the listener fails.
func (s *Server) ListenAndServe(port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	zap.L().Info("starting server", zap.Int("port", port))
	return srv.ListenAndServe()
}

// NewHTTPServer returns a configured http.Server so the caller can manage
// graceful shutdown.
func (s *Server) NewHTTPServer(port int) *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type chatRequest struct {
	ThreadID string `json:"thread_id"`
	Platform string `json:"platform,omitempty"`
	Message  string `json:"message"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ThreadID == "" {
		writeError(w, http.StatusBadRequest, "thread_id is required")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	reply, err := s.engine.HandleMessage(r.Context(), req.ThreadID, req.Platform, req.Message)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

type feedbackRequest struct {
	Field  string               `json:"field"`
	Action model.FeedbackAction `json:"action"`
	Value  any                  `json:"value,omitempty"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Field == "" || req.Action == "" {
		writeError(w, http.StatusBadRequest, "field and action are required")
		return
	}

	entry, err := s.engine.ApplyFeedback(r.Context(), threadID, req.Field, req.Action, req.Value)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"field": req.Field,
		"entry": entry,
	})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	snap, err := s.engine.Snapshot(r.Context(), chi.URLParam(r, "thread_id"))
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "thread_id")
	traces, err := s.engine.Traces(r.Context(), threadID)
	if err != nil {
		s.writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id": threadID,
		"traces":    traces,
	})
}

// writeEngineError maps the engine's error taxonomy onto HTTP statuses,
// keeping enough detail for the user to act on.
func (s *Server) writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case eris.Is(err, model.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, eris.Cause(err).Error())
	case eris.Is(err, model.ErrUnknownPlatform), eris.Is(err, model.ErrUnknownField):
		writeError(w, http.StatusBadRequest, firstLine(err))
	case eris.Is(err, model.ErrValidation):
		writeError(w, http.StatusUnprocessableEntity, firstLine(err))
	case eris.Is(err, model.ErrInvalidProvenanceTransition):
		writeError(w, http.StatusConflict, firstLine(err))
	default:
		zap.L().Error("request failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("response encode failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func firstLine(err error) string {
	msg := err.Error()
	for i, c := range msg {
		if c == '\n' {
			return msg[:i]
		}
	}
	return msg
}
