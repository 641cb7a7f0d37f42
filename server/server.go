// Package server exposes the tutor over HTTP: a chat endpoint for student
// messages, a per-student knowledge graph view for visualization, and a
// health probe.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/mosaicedu/mosaic/core"
	"github.com/mosaicedu/mosaic/logging"
	"github.com/mosaicedu/mosaic/orchestrator"
)

// Options configure the HTTP server.
type Options struct {
	Logger logging.Logger
}

// Server is the HTTP front of the tutor.
type Server struct {
	orch *orchestrator.Orchestrator
	opts Options
}

// New constructs a server around an orchestrator.
func New(orch *orchestrator.Orchestrator, optFns ...func(o *Options)) *Server {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Server{orch: orch, opts: opts}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Get("/graph/{studentID}", s.handleGraph)
	})
	return r
}

// chatRequest is the body of POST /api/chat.
type chatRequest struct {
	StudentID string `json:"student_id"`
	Message   string `json:"message"`
}

// chatResponse is the reply envelope. Clarification asks are normal
// replies from the client's point of view.
type chatResponse struct {
	Text          string `json:"text"`
	Agent         string `json:"agent,omitempty"`
	ConceptID     string `json:"concept_id,omitempty"`
	Clarification bool   `json:"clarification,omitempty"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.StudentID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, "student_id and message are required")
		return
	}

	reply, err := s.orch.HandleTurn(r.Context(), req.StudentID, req.Message)
	if err != nil {
		if ce, ok := core.AsClarification(err); ok {
			writeJSON(w, http.StatusOK, chatResponse{
				Text:          ce.Prompt,
				Agent:         "orchestrator",
				Clarification: true,
			})
			return
		}
		s.opts.Logger.Error("chat turn failed", "student", req.StudentID, "error", err)
		switch {
		case errors.Is(err, core.ErrStateWrite):
			writeError(w, http.StatusInternalServerError, "we could not save your progress, please try again shortly")
		case errors.Is(err, core.ErrUpstreamReasoning):
			writeError(w, http.StatusInternalServerError, "the tutor is having trouble thinking right now, please try again")
		default:
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	writeJSON(w, http.StatusOK, chatResponse{
		Text:      reply.Text,
		Agent:     reply.Agent,
		ConceptID: reply.ConceptID,
	})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	studentID := chi.URLParam(r, "studentID")
	view, err := s.orch.Visualization(r.Context(), studentID)
	if err != nil {
		s.opts.Logger.Error("graph view failed", "student", studentID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
