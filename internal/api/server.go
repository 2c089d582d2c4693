// Package api exposes the HTTP interface for the lead generation service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/leadgenhq/leadgen-engine/internal/config"
	"github.com/leadgenhq/leadgen-engine/internal/leads"
)

// Enqueuer submits a project for background execution.
type Enqueuer interface {
	Enqueue(ctx context.Context, p leads.Project) error
}

// Canceller handles project cancellation requests.
type Canceller interface {
	Cancel(ctx context.Context, projectID string) error
}

// Server wires HTTP handlers to the queue and stores.
type Server struct {
	router    chi.Router
	projects  leads.ProjectStore
	store     leads.LeadStore
	enqueuer  Enqueuer
	canceller Canceller
	idGen     leads.IDGenerator
	clock     leads.Clock
	ws        *WSHub
	cfg       config.Config
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes. A nil ws hub
// disables the events endpoint; a nil gatherer serves the default registry.
func NewServer(
	projects leads.ProjectStore,
	store leads.LeadStore,
	enqueuer Enqueuer,
	canceller Canceller,
	idGen leads.IDGenerator,
	clock leads.Clock,
	ws *WSHub,
	gatherer prometheus.Gatherer,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		projects:  projects,
		store:     store,
		enqueuer:  enqueuer,
		canceller: canceller,
		idGen:     idGen,
		clock:     clock,
		ws:        ws,
		cfg:       cfg,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Group(func(r chi.Router) {
		r.Use(timeoutMiddleware(cfg.ServerTimeout()))
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Route("/v1", func(r chi.Router) {
			r.Route("/projects", func(r chi.Router) {
				r.Post("/", s.createProject)
				r.Route("/{project_id}", func(r chi.Router) {
					r.Get("/", s.getProject)
					r.Post("/cancel", s.cancelProject)
				})
			})
			r.Get("/leads", s.listLeads)
		})
	})

	// The events endpoint hijacks the connection, so it stays outside the
	// timeout handler.
	if ws != nil {
		r.Group(func(r chi.Router) {
			if cfg.Auth.Enabled {
				r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
			}
			r.Get("/v1/events", ws.ServeHTTP)
		})
	}

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type createProjectRequest struct {
	VendorID         string `json:"vendor_id"`
	ProjectName      string `json:"project_name"`
	City             string `json:"city"`
	BusinessCategory string `json:"business_category"`
}

func (s *Server) createProject(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.VendorID == "" || req.City == "" || req.BusinessCategory == "" {
		s.writeError(w, http.StatusBadRequest, "vendor_id, city and business_category are required")
		return
	}

	projectID, err := s.idGen.NewID()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("generate project id: %v", err))
		return
	}
	p := leads.Project{
		ProjectID:        projectID,
		VendorID:         req.VendorID,
		ProjectName:      req.ProjectName,
		City:             req.City,
		BusinessCategory: req.BusinessCategory,
		Status:           leads.StatusRunning,
		CreatedAt:        s.clock.Now(),
	}
	if err := s.projects.Create(r.Context(), p); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("create project: %v", err))
		return
	}
	if err := s.enqueuer.Enqueue(r.Context(), p); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("enqueue project: %v", err))
		return
	}
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"project_id": projectID,
		"status":     string(p.Status),
	})
}

func (s *Server) getProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	p, err := s.projects.Get(r.Context(), projectID)
	if err != nil {
		if errors.Is(err, leads.ErrNotFound) {
			s.writeError(w, http.StatusNotFound, "project not found")
			return
		}
		s.writeError(w, http.StatusInternalServerError, "failed to fetch project")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"project": p})
}

// cancelProject always acknowledges with 200 so the client can treat cancel
// as fire-and-forget, mirroring the queue semantics.
func (s *Server) cancelProject(w http.ResponseWriter, r *http.Request) {
	projectID := chi.URLParam(r, "project_id")
	if err := s.canceller.Cancel(r.Context(), projectID); err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Sprintf("cancel project: %v", err))
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{
		"project_id": projectID,
		"status":     string(leads.StatusCancelled),
	})
}

func (s *Server) listLeads(w http.ResponseWriter, r *http.Request) {
	vendorID := r.URL.Query().Get("vendor_id")
	if vendorID == "" {
		s.writeError(w, http.StatusBadRequest, "vendor_id is required")
		return
	}
	category := r.URL.Query().Get("category")
	records, err := s.store.ListByVendorCategory(r.Context(), vendorID, category)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to fetch leads")
		return
	}
	if records == nil {
		records = []leads.Lead{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"leads": records,
		"count": len(records),
	})
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type requestIDKey struct{}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
