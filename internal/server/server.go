package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/callreward/internal/log"
	"github.com/ppiankov/callreward/internal/metrics"
	"github.com/ppiankov/callreward/internal/model"
	"github.com/ppiankov/callreward/internal/pipeline"
	"github.com/ppiankov/callreward/internal/worker"
)

const (
	headerContentType = "Content-Type"
	headerRequestID   = "X-Request-ID"
	contentTypeJSON   = "application/json"

	errorTypeInvalidRequest = "invalid_request_error"
	errorTypeRateLimited    = "rate_limit_error"
	errorTypeTooLarge       = "request_too_large"
)

// Server exposes the reward function over HTTP
type Server struct {
	pipeline *pipeline.Pipeline
	limiter  *worker.Limiter
	metrics  *metrics.Metrics
	logger   log.Logger
	cfg      model.ServerConfig
	workers  int
	handler  http.Handler
	started  time.Time
}

// Option customizes a Server
type Option func(*Server)

// WithMetrics serves m on /metrics and records request metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithLogger sets the request logger
func WithLogger(l log.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// WithLimiter replaces the limiter built from configuration
func WithLimiter(l *worker.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// New creates a server around p
func New(p *pipeline.Pipeline, cfg *model.Config, opts ...Option) *Server {
	s := &Server{
		pipeline: p,
		limiter:  worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize),
		logger:   log.Default,
		cfg:      cfg.Server,
		workers:  cfg.Concurrency.Workers,
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg.MaxBodyBytes <= 0 {
		s.cfg.MaxBodyBytes = 8 << 20
	}
	s.setupHandler()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

func (s *Server) setupHandler() {
	mux := http.NewServeMux()
	mux.Handle("POST /v1/score", s.instrument("/v1/score", true, http.HandlerFunc(s.handleScore)))
	mux.Handle("POST /v1/score/batch", s.instrument("/v1/score/batch", true, http.HandlerFunc(s.handleBatch)))
	mux.Handle("GET /healthz", s.instrument("/healthz", false, http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /metrics", s.metrics.Handler())
	s.handler = mux
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.cfg.WriteTimeout,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	// Idle client limiters are dropped periodically
	go func() {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.limiter.Evict(10 * time.Minute)
			}
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infof("reward server listening on %s", ln.Addr())
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.logger.Infof("shutting down reward server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	}
}

// BatchRequest is the body of POST /v1/score/batch
type BatchRequest struct {
	Requests []model.ScoreRequest `json:"requests"`
}

// BatchResponse is the answer of POST /v1/score/batch
type BatchResponse struct {
	RunID   string               `json:"run_id"`
	Rewards []float64            `json:"rewards"`
	Rows    []model.ScoredSample `json:"rows"`
	Summary model.BatchSummary   `json:"summary"`
}

func (s *Server) handleScore(w http.ResponseWriter, r *http.Request) {
	var req model.ScoreRequest
	if !s.decode(w, r, &req) {
		return
	}

	sample, err := s.pipeline.ScoreRequest(r.Context(), req)
	if err != nil {
		s.writeError(w, err, "request_cancelled", http.StatusServiceUnavailable)
		return
	}
	s.trim(sample)
	s.writeJSON(w, sample)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if !s.decode(w, r, &req) {
		return
	}
	if s.cfg.MaxBatchSize > 0 && len(req.Requests) > s.cfg.MaxBatchSize {
		s.writeError(w, fmt.Errorf("batch of %d exceeds limit of %d", len(req.Requests), s.cfg.MaxBatchSize),
			errorTypeTooLarge, http.StatusRequestEntityTooLarge)
		return
	}

	report := s.pipeline.ScoreBatch(r.Context(), pipeline.RowsFromRequests(req.Requests), s.workers)

	resp := BatchResponse{
		RunID:   report.RunID,
		Rewards: make([]float64, len(report.Rows)),
		Rows:    report.Rows,
		Summary: report.Summary,
	}
	for i := range report.Rows {
		resp.Rewards[i] = report.Rows[i].Reward
		s.trim(&resp.Rows[i])
	}
	s.writeJSON(w, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, map[string]any{
		"status": "ok",
		"uptime": time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) trim(sample *model.ScoredSample) {
	if !s.cfg.IncludeDetails {
		sample.Result = nil
	}
}

// decode reads a JSON body into v, answering 400 or 413 on failure
func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.writeError(w, err, errorTypeTooLarge, http.StatusRequestEntityTooLarge)
			return false
		}
		s.writeError(w, fmt.Errorf("decode body: %w", err), errorTypeInvalidRequest, http.StatusBadRequest)
		return false
	}
	return true
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// writeJSON writes a JSON response.
func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set(headerContentType, contentTypeJSON)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Errorf("server: failed to encode response: %v", err)
	}
}

// writeError writes an error response.
func (s *Server) writeError(w http.ResponseWriter, err error, errorType string, statusCode int) {
	w.Header().Set(headerContentType, contentTypeJSON)
	w.WriteHeader(statusCode)

	var resp errorResponse
	resp.Error.Message = err.Error()
	resp.Error.Type = errorType
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Errorf("server: failed to encode error: %v", err)
	}
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// instrument adds request IDs, rate limiting, metrics and access logs
func (s *Server) instrument(route string, limited bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		done := s.metrics.TrackInFlight()
		defer done()

		id := r.Header.Get(headerRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(headerRequestID, id)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		client := worker.ClientKey(r)

		if limited && !s.limiter.Allow(client) {
			s.metrics.ObserveRateLimited()
			w.Header().Set("Retry-After", "1")
			s.writeError(rec, errors.New("rate limit exceeded"), errorTypeRateLimited, http.StatusTooManyRequests)
		} else {
			next.ServeHTTP(rec, r)
		}

		elapsed := time.Since(start)
		s.metrics.ObserveRequest(route, rec.status, elapsed)
		s.logger.Infow("request",
			"id", id,
			"route", route,
			"client", client,
			"status", rec.status,
			"elapsed", elapsed,
		)
	})
}
