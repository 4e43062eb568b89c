package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"geminichat/internal/util"
	"geminichat/pkg/ai"
	"geminichat/pkg/conversation"
	"geminichat/pkg/domain"
	"geminichat/services/chat/internal/app"
)

// maxBodyBytes leaves room for an image well past the attachment bound, so
// an oversized image reaches DecodeImage and is reported as such.
const maxBodyBytes = 4 * domain.MaxImageBytes

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App
	// Verifier is optional; without it only anonymous callers are served.
	Verifier IdentityVerifier
}

// Server exposes HTTP endpoints for the chat service.
type Server struct {
	app      *app.App
	verifier IdentityVerifier
	mux      *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:      cfg.App,
		verifier: cfg.Verifier,
		mux:      http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.Chain(s.mux,
		util.WithRequestID,
		util.WithRequestLog,
		util.WithRecover,
		util.WithSecurityHeaders,
		util.WithCORS,
	)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.Handle("GET /api/me", s.withIdentity(http.HandlerFunc(s.handleMe)))
	s.mux.Handle("POST /api/sessions", s.withIdentity(http.HandlerFunc(s.handleNewSession)))
	s.mux.Handle("GET /api/sessions/{id}", s.withIdentity(http.HandlerFunc(s.handleGetSession)))
	s.mux.Handle("POST /api/sessions/{id}/messages", s.withIdentity(http.HandlerFunc(s.handleSubmit)))
	s.mux.Handle("GET /api/summaries", s.withIdentity(http.HandlerFunc(s.handleListSummaries)))
	s.mux.Handle("DELETE /api/summaries", s.withIdentity(http.HandlerFunc(s.handleClearSummaries)))
	s.mux.Handle("GET /api/history", s.withIdentity(http.HandlerFunc(s.handleHistory)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, identityFrom(r))
}

func (s *Server) handleNewSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.NewSession(ownerKey(identityFrom(r)))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.app.Transcript(ownerKey(identityFrom(r)), r.PathValue("id"))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

type submitRequest struct {
	Message       string `json:"message"`
	Image         string `json:"image"`
	ImageMIMEType string `json:"imageMimeType"`
	// Model overrides the configured model for this message only.
	Model string `json:"model"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeAppError(w, r, ai.ErrImageTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	img, err := ai.DecodeImage(req.Image, req.ImageMIMEType)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	sess, err := s.app.Submit(r.Context(), ownerKey(identityFrom(r)), r.PathValue("id"), app.Message{
		Text:  req.Message,
		Image: img,
		Model: req.Model,
	})
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleListSummaries(w http.ResponseWriter, r *http.Request) {
	items, err := s.app.Summaries(r.Context(), ownerKey(identityFrom(r)))
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (s *Server) handleClearSummaries(w http.ResponseWriter, r *http.Request) {
	if err := s.app.ClearSummaries(r.Context(), ownerKey(identityFrom(r))); err != nil {
		writeAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}
	items, err := s.app.History(r.Context(), ownerKey(identityFrom(r)), limit)
	if err != nil {
		writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ai.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, app.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, conversation.ErrExchangeInFlight):
		writeError(w, http.StatusConflict, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed", "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Debug("write response", "err", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
