// Package server exposes the orchestrator over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/thecxx/fcstream"
	"github.com/thecxx/fcstream/event"
	"github.com/thecxx/fcstream/orchestrator"
)

// Server is the HTTP surface of the chat service.
type Server struct {
	svc    *orchestrator.Service
	logger *slog.Logger
	mux    *http.ServeMux
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// New returns a Server routing to svc.
func New(svc *orchestrator.Service, opts ...Option) *Server {
	s := &Server{svc: svc, logger: slog.Default(), mux: http.NewServeMux()}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("POST /api/chat", s.handleChat)
	s.mux.HandleFunc("POST /api/title", s.handleTitle)
	s.mux.HandleFunc("GET /api/conversations", s.handleList)
	s.mux.HandleFunc("GET /api/conversations/{id}", s.handleGet)
	s.mux.HandleFunc("DELETE /api/conversations/{id}", s.handleDelete)
	s.mux.HandleFunc("POST /api/conversations/{id}/title", s.handleTitle)
	s.mux.HandleFunc("GET /api/conversations/{id}/suggestions", s.handleSuggestions)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

type chatRequest struct {
	Message        string `json:"message"`
	ConversationID string `json:"conversation_id"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	Stream         bool   `json:"stream"`
	Options        struct {
		UseFunctionCall bool `json:"use_function_call"`
	} `json:"options"`
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	req := orchestrator.Request{
		ConversationID: body.ConversationID,
		Message:        body.Message,
		Provider:       body.Provider,
		Model:          body.Model,
		UseFunctions:   body.Options.UseFunctionCall,
	}

	if !body.Stream {
		reply, err := s.svc.Send(r.Context(), req)
		if err != nil {
			s.writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reply)
		return
	}

	events, id, err := s.svc.Stream(r.Context(), req)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if err := event.NewSSE(w).Pipe(events); err != nil {
		s.logger.Info("event stream interrupted", "conversation_id", id, "err", err)
	}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Conversations(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	conv, err := s.svc.Conversation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	ok, err := s.svc.DeleteConversation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, orchestrator.ErrConversationNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) handleTitle(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message        string `json:"message"`
		ConversationID string `json:"conversation_id"`
	}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if id := r.PathValue("id"); id != "" {
		body.ConversationID = id
	}
	if body.ConversationID == "" && strings.TrimSpace(body.Message) == "" {
		writeError(w, http.StatusBadRequest, "message or conversation_id is required")
		return
	}

	title, err := s.svc.GenerateTitle(r.Context(), body.ConversationID, body.Message)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"title": title})
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	questions, err := s.svc.SuggestQuestions(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{"questions": questions})
}

// writeFailure maps err to a status and a client-safe message.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrConversationNotFound):
		writeError(w, http.StatusNotFound, orchestrator.ErrConversationNotFound.Error())
		return
	case errors.Is(err, fcstream.ErrUnsupportedProvider):
		writeError(w, http.StatusBadRequest, fcstream.ErrUnsupportedProvider.Error())
		return
	}
	s.logger.Error("request failed", "err", err)
	var te *orchestrator.TurnError
	if errors.As(err, &te) {
		writeError(w, http.StatusBadGateway, te.Redacted())
		return
	}
	writeError(w, http.StatusInternalServerError, "internal error")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
