// internal/httpapi/server.go
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	apperrors "whitelist-intake/internal/common/errors"
	"whitelist-intake/internal/common/logger"
	"whitelist-intake/internal/review"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const maxEnvelopeSize = 1 << 20

type Dispatcher interface {
	Dispatch(ctx context.Context, a review.Action) (*review.Outcome, error)
}

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

type Server struct {
	dispatcher Dispatcher
	checks     map[string]Check
	logger     logger.Logger
	router     *mux.Router
}

func NewServer(dispatcher Dispatcher, checks map[string]Check, log logger.Logger) *Server {
	s := &Server{
		dispatcher: dispatcher,
		checks:     checks,
		logger:     log.WithFields(map[string]interface{}{"component": "httpapi"}),
		router:     mux.NewRouter(),
	}
	s.router.HandleFunc("/v1/actions", s.handleAction).Methods(http.MethodPost)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/ready", s.handleReady).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.Use(s.logRequests)
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

type errorBody struct {
	Code    apperrors.ErrorCode `json:"code"`
	Message string              `json:"message"`
	Details string              `json:"details,omitempty"`
}

type actionResponse struct {
	Outcome *review.Outcome `json:"outcome,omitempty"`
	Error   *errorBody      `json:"error,omitempty"`
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	var env Envelope
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEnvelopeSize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		s.writeError(w, nil, apperrors.NewInvalidActionError("malformed envelope: "+err.Error()))
		return
	}
	action, err := env.Action()
	if err != nil {
		s.writeError(w, nil, err)
		return
	}

	out, err := s.dispatcher.Dispatch(r.Context(), action)
	if err != nil {
		s.writeError(w, out, err)
		return
	}
	writeJSON(w, http.StatusOK, actionResponse{Outcome: out})
}

func (s *Server) writeError(w http.ResponseWriter, out *review.Outcome, err error) {
	body := &errorBody{Code: apperrors.CodeOf(err), Message: err.Error()}
	var se *apperrors.StandardError
	if errors.As(err, &se) {
		body.Message = se.Message
		body.Details = se.Details
	}
	writeJSON(w, StatusFor(err), actionResponse{Outcome: out, Error: body})
}

// StatusFor maps an error to the HTTP status reported for it.
func StatusFor(err error) int {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrCodeEmptyBatch,
		apperrors.ErrCodeInvalidQuestionIndex,
		apperrors.ErrCodeInvalidAction:
		return http.StatusUnprocessableEntity
	case apperrors.ErrCodeNoActiveCollection,
		apperrors.ErrCodeSessionNotCompleted,
		apperrors.ErrCodeChannelAlreadyActive,
		apperrors.ErrCodeDuplicateOpenApplication,
		apperrors.ErrCodeAlreadyDecided:
		return http.StatusConflict
	case apperrors.ErrCodeSessionNotFound,
		apperrors.ErrCodeApplicationNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeExternalServiceFailure:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	results := make(map[string]string, len(s.checks))
	for name, check := range s.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		results[name] = "ok"
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not_ready"
	}
	writeJSON(w, status, map[string]interface{}{
		"status": state,
		"checks": results,
		"time":   time.Now().Format(time.RFC3339),
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if r.URL.Path == "/metrics" || r.URL.Path == "/health" {
			return
		}
		s.logger.Debug("request handled", map[string]interface{}{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   rec.status,
			"duration": time.Since(start).String(),
		})
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
