package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"geminichat/internal/ratelimit"
	"geminichat/internal/util"
	"geminichat/pkg/ai"
	"geminichat/pkg/domain"
	"geminichat/services/gateway/internal/app"
)

// maxBodyBytes leaves room for an image well past the attachment bound, so
// an oversized image reaches DecodeImage and is reported as such.
const maxBodyBytes = 4 * domain.MaxImageBytes

// Config wires required dependencies for the HTTP server.
type Config struct {
	App                        *app.App
	RedisAddr                  string
	RedisPassword              string
	GenerateRateLimitPerMinute int
	TrustedProxyCIDRs          []string
}

// Server exposes the generation endpoint.
type Server struct {
	app            *app.App
	mux            *http.ServeMux
	limiter        ratelimit.Limiter
	trustedProxies proxySet
}

// New constructs the server with routes configured. A zero rate limit
// disables limiting; otherwise Redis is used when configured and an
// in-process limiter when not.
func New(cfg Config) (*Server, error) {
	if cfg.App == nil {
		return nil, errors.New("gateway app required")
	}
	trusted, err := parseProxies(cfg.TrustedProxyCIDRs)
	if err != nil {
		return nil, fmt.Errorf("parse trusted proxies: %w", err)
	}
	s := &Server{
		app:            cfg.App,
		mux:            http.NewServeMux(),
		trustedProxies: trusted,
	}
	if limit := cfg.GenerateRateLimitPerMinute; limit > 0 {
		if strings.TrimSpace(cfg.RedisAddr) != "" {
			s.limiter, err = ratelimit.NewRedisLimiter(cfg.RedisAddr, cfg.RedisPassword, "geminichat:gateway:ratelimit:generate", limit, time.Minute)
		} else {
			s.limiter, err = ratelimit.NewMemoryLimiter(limit, time.Minute)
		}
		if err != nil {
			return nil, fmt.Errorf("init generate limiter: %w", err)
		}
	}
	s.routes()
	return s, nil
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
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/api/gemini", s.handleGenerate)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type generateRequest struct {
	Message       *string `json:"message"`
	Base64Image   string  `json:"base64Image"`
	ImageMIMEType string  `json:"imageMimeType"`
	Model         string  `json:"model"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	if !s.allowRate(w, r) {
		return
	}
	var req generateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusBadRequest, ai.ErrImageTooLarge.Error())
			return
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Message == nil || strings.TrimSpace(*req.Message) == "" {
		writeError(w, http.StatusBadRequest, "No message provided")
		return
	}

	reply, err := s.app.Send(r.Context(), app.Request{
		Message:       *req.Message,
		Base64Image:   req.Base64Image,
		ImageMIMEType: req.ImageMIMEType,
		Model:         req.Model,
	})
	if err != nil {
		writeSendError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"reply": reply})
}

func (s *Server) allowRate(w http.ResponseWriter, r *http.Request) bool {
	if s.limiter == nil {
		return true
	}
	ip := s.trustedProxies.clientIP(r)
	if s.limiter.Allow(r.Context(), ip) {
		return true
	}
	util.LoggerFromContext(r.Context()).Warn("rate limited", "ip", ip, "path", r.URL.Path)
	writeError(w, http.StatusTooManyRequests, "too many requests")
	return false
}

func writeSendError(w http.ResponseWriter, r *http.Request, err error) {
	var gwErr *app.GatewayError
	switch {
	case errors.Is(err, ai.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.As(err, &gwErr):
		util.LoggerFromContext(r.Context()).Error("gemini error", "err", gwErr.Err)
		writeError(w, http.StatusInternalServerError, gwErr.Message)
	default:
		slog.Error("unexpected send error", "err", err)
		writeError(w, http.StatusInternalServerError, "Unknown error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
