// Package server exposes the pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/metapromptlabs/metaprompt/internal/engine"
	"github.com/metapromptlabs/metaprompt/internal/memory"
	"github.com/metapromptlabs/metaprompt/internal/template"
)

// Config holds server configuration.
type Config struct {
	Port     int
	AllowAll bool // allow all CORS origins (dev mode)
}

// Server is the HTTP boundary around the engine.
type Server struct {
	cfg        Config
	engine     *engine.Engine
	memory     *memory.Manager
	logger     *zap.Logger
	router     chi.Router
	httpServer *http.Server
}

// New creates a server wired to the engine and memory manager.
func New(cfg Config, eng *engine.Engine, mem *memory.Manager, logger *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		engine: eng,
		memory: mem,
		logger: logger,
	}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	})

	r.Post("/v1/process", s.handleProcess)
	r.Get("/v1/sessions/{id}/memory", s.handleSessionMemory)

	return r
}

// Router returns the chi router for registering additional routes.
func (s *Server) Router() chi.Router { return s.router }

// processResponse wraps an engine result with the session id, which may
// have been generated server-side.
type processResponse struct {
	SessionID string         `json:"session_id"`
	Result    *engine.Result `json:"result"`
}

type errorResponse struct {
	Error           string   `json:"error"`
	Kind            string   `json:"kind,omitempty"`
	Rules           []string `json:"rules,omitempty"`
	RiskLevel       string   `json:"risk_level,omitempty"`
	Recommendations []string `json:"recommendations,omitempty"`
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	var req engine.PromptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body: " + err.Error()})
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	res, err := s.engine.ProcessPrompt(r.Context(), req)
	if err != nil {
		s.writePipelineError(w, req.SessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, processResponse{SessionID: req.SessionID, Result: res})
}

// writePipelineError maps the pipeline error taxonomy onto HTTP statuses.
// Safety rejections and infrastructure failures never share a status.
func (s *Server) writePipelineError(w http.ResponseWriter, sessionID string, err error) {
	resp := errorResponse{Error: err.Error()}
	status := http.StatusInternalServerError

	if ee, ok := engine.AsError(err); ok {
		resp.Kind = string(ee.Kind)
		switch ee.Kind {
		case engine.KindSafetyViolation:
			status = http.StatusUnprocessableEntity
			if ee.Assessment != nil {
				resp.Rules = ee.Assessment.TriggeredRules
				resp.RiskLevel = ee.Assessment.RiskLevel
				resp.Recommendations = ee.Assessment.Recommendations
			}
		case engine.KindInvalidRequest, engine.KindTemplate:
			status = http.StatusBadRequest
		case engine.KindProvider, engine.KindExhausted:
			status = http.StatusBadGateway
		case engine.KindTimeout:
			status = http.StatusGatewayTimeout
		}
	} else if errors.Is(err, template.ErrTemplateNotFound) {
		status = http.StatusBadRequest
	}

	s.logger.Warn("request failed",
		zap.String("session", sessionID),
		zap.String("kind", resp.Kind),
		zap.Int("status", status),
		zap.Error(err))
	writeJSON(w, status, resp)
}

type memoryResponse struct {
	SessionID string          `json:"session_id"`
	Records   []memory.Record `json:"records"`
}

func (s *Server) handleSessionMemory(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if sessionID == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "session id is required"})
		return
	}

	records := s.memory.Recall(r.Context(), sessionID, 0)
	if records == nil {
		records = []memory.Record{}
	}
	writeJSON(w, http.StatusOK, memoryResponse{SessionID: sessionID, Records: records})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      150 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	s.logger.Info("metaprompt server listening", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
