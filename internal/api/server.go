// Package api exposes plan generation, retrieval and feedback over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	perrors "github.com/muaviaUsmani/studyplan/internal/errors"
	"github.com/muaviaUsmani/studyplan/internal/logger"
	"github.com/muaviaUsmani/studyplan/internal/metrics"
	"github.com/muaviaUsmani/studyplan/internal/service"
	"github.com/muaviaUsmani/studyplan/internal/task"
	"github.com/muaviaUsmani/studyplan/internal/timeline"
)

// maxBodyBytes bounds request bodies
const maxBodyBytes = 1 << 20

// Server routes HTTP requests to the plan service
type Server struct {
	svc *service.Service
	log logger.Logger
	mux *http.ServeMux
}

// NewServer creates a server and registers its routes
func NewServer(svc *service.Service, m *metrics.Collector, log logger.Logger) *Server {
	if m == nil {
		m = metrics.Default()
	}
	if log == nil {
		log = logger.Default()
	}

	s := &Server{
		svc: svc,
		log: log.WithComponent(logger.ComponentAPI),
		mux: http.NewServeMux(),
	}

	s.mux.HandleFunc("POST /timeline/generate", s.handleGenerate)
	s.mux.HandleFunc("GET /timeline/latest/{user_id}", s.handleLatest)
	s.mux.HandleFunc("GET /timeline/{plan_id}", s.handleGetPlan)
	s.mux.HandleFunc("POST /timeline/feedback", s.handleFeedback)
	s.mux.HandleFunc("GET /daily/{user_id}", s.handleDaily)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.Handle("GET /metrics", m.Handler())
	return s
}

// Handler returns the routes wrapped with panic recovery and request logging
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.recoverPanics(s.mux))
}

// generateRequest is an input document with an optional clock override
type generateRequest struct {
	task.Input
	Now *time.Time `json:"now,omitempty"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	req.AssignIDs()

	genReq := service.RequestFromInput(&req.Input, metrics.TriggerAPI)
	if req.Now != nil {
		genReq.Now = *req.Now
	}

	p, err := s.svc.Generate(r.Context(), genReq)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleGetPlan(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.GetPlan(r.Context(), r.PathValue("plan_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	p, err := s.svc.Latest(r.Context(), r.PathValue("user_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

type feedbackRequest struct {
	UserID   string           `json:"user_id"`
	Feedback service.Feedback `json:"feedback"`
}

func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	var req feedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.UserID == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	p, err := s.svc.ApplyFeedback(r.Context(), req.UserID, req.Feedback)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleDaily(w http.ResponseWriter, r *http.Request) {
	daily, err := s.svc.Today(r.Context(), r.PathValue("user_id"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, daily)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": s.svc.Now(),
	})
}

// writeServiceError maps service errors to status codes
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, service.ErrNoPlan):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrInvalidFeedback),
		errors.Is(err, service.ErrUnknownAction),
		errors.Is(err, service.ErrUnknownTask),
		errors.Is(err, timeline.ErrInvalidPreferences):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.log.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func (s *Server) recoverPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := perrors.SafeCall(func() error {
			next.ServeHTTP(w, r)
			return nil
		})

		var panicErr *perrors.PanicError
		if errors.As(err, &panicErr) {
			s.log.ErrorContext(r.Context(), "Handler panicked",
				"method", r.Method,
				"path", r.URL.Path,
				"panic", perrors.FormatPanicForLog(panicErr))
			writeError(w, http.StatusInternalServerError, "internal server error")
		}
	})
}

// statusRecorder captures the response status for logging
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.log.Debug("Request handled",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Ignore write error - nothing we can do if client disconnected
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
