// Package api provides the HTTP REST API server for finsheet.
//
// It exposes endpoints for request planning, normalized datasets,
// two-company comparisons and the run archive.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/seenimoa/finsheet/internal/config"
	"github.com/seenimoa/finsheet/internal/logger"
	"github.com/seenimoa/finsheet/internal/pipeline"
	"github.com/seenimoa/finsheet/internal/provider"
	"github.com/seenimoa/finsheet/internal/report"
	"github.com/seenimoa/finsheet/internal/store"
	"github.com/seenimoa/finsheet/pkg/models"
)

// RunStore is the read side of the run archive.
type RunStore interface {
	Runs(ctx context.Context, ticker string, limit int) ([]store.Run, error)
	GetRun(ctx context.Context, id string) (store.Run, error)
	Dataset(ctx context.Context, runID string) (*models.FinancialDataset, error)
}

// Server is the HTTP API server.
type Server struct {
	router  chi.Router
	cfg     *config.Config
	pipe    *pipeline.Pipeline
	runs    RunStore
	log     *zap.Logger
	version string
	timeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithRunStore enables the /runs endpoints.
func WithRunStore(rs RunStore) Option {
	return func(s *Server) { s.runs = rs }
}

// WithLogger sets the request and error logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithVersion sets the version reported by /health.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// WithRequestTimeout bounds each pipeline call.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) { s.timeout = d }
}

// NewServer creates a configured API server with all routes and middleware.
func NewServer(cfg *config.Config, pipe *pipeline.Pipeline, opts ...Option) *Server {
	if cfg == nil {
		cfg = config.Default()
	}
	srv := &Server{
		cfg:     cfg,
		pipe:    pipe,
		log:     logger.Nop(),
		version: "dev",
		timeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(srv)
	}
	srv.router = srv.buildRouter()
	return srv
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: s.timeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("api listening", zap.String("addr", addr))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down api")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/plan/{ticker}", s.handlePlan)
		r.Get("/dataset/{ticker}", s.handleDataset)
		r.Get("/compare/{a}/{b}", s.handleCompare)

		r.Get("/runs", s.handleRuns)
		r.Get("/runs/{id}", s.handleRun)

		r.Get("/config", s.handleGetConfig)
		r.Get("/config/keys", s.handleGetConfigKeys)
	})

	return r
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

// ════════════════════════════════════════════════════════════════════
// Request / Response types
// ════════════════════════════════════════════════════════════════════

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PlanResponse is the data of GET /api/v1/plan/{ticker}.
type PlanResponse struct {
	Ticker   string                 `json:"ticker"`
	Years    int                    `json:"years"`
	Count    int                    `json:"count"`
	Requests []models.AtomicRequest `json:"requests"`
}

// RunResponse is the data of GET /api/v1/runs/{id}.
type RunResponse struct {
	Run     store.Run                `json:"run"`
	Dataset *models.FinancialDataset `json:"dataset"`
}

// ════════════════════════════════════════════════════════════════════
// Handlers
// ════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"status":  "ok",
			"version": s.version,
			"time":    time.Now().UTC().Format(time.RFC3339),
			"store":   s.runs != nil,
		},
	})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r, chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	reqs, err := s.pipe.Plan(opts)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: PlanResponse{
			Ticker:   strings.ToUpper(strings.TrimSpace(opts.Identifier)),
			Years:    opts.Years,
			Count:    len(reqs),
			Requests: reqs,
		},
	})
}

func (s *Server) handleDataset(w http.ResponseWriter, r *http.Request) {
	opts, err := s.options(r, chi.URLParam(r, "ticker"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	format, err := queryFormat(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.pipe.Run(ctx, opts)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	if format != report.FormatJSON {
		s.writeReport(w, report.Document{Outcome: res.Outcome, Dataset: res.Dataset, Trends: res.Trends}, format)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	a, err := s.options(r, chi.URLParam(r, "a"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	b := a
	b.Identifier = chi.URLParam(r, "b")
	format, err := queryFormat(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	res, err := s.pipe.Compare(ctx, a, b)
	if err != nil {
		s.writePipelineError(w, err)
		return
	}
	if format != report.FormatJSON {
		s.writeReport(w, report.Document{Dataset: res.Dataset, Trends: res.Trends}, format)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run store is disabled")
		return
	}
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := s.runs.Runs(r.Context(), strings.ToUpper(r.URL.Query().Get("ticker")), limit)
	if err != nil {
		s.log.Error("list runs", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list runs")
		return
	}
	if runs == nil {
		runs = []store.Run{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: runs})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeError(w, http.StatusServiceUnavailable, "run store is disabled")
		return
	}
	id := chi.URLParam(r, "id")
	run, err := s.runs.GetRun(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", id))
		return
	}
	if err != nil {
		s.log.Error("get run", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load run")
		return
	}
	ds, err := s.runs.Dataset(r.Context(), id)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		s.log.Error("get run dataset", zap.String("run_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load dataset")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: RunResponse{Run: run, Dataset: ds}})
}

// ════════════════════════════════════════════════════════════════════
// Helpers
// ════════════════════════════════════════════════════════════════════

// options builds pipeline options from config defaults and query
// parameters: years, forward, ratios, trend, ma, window, metrics.
func (s *Server) options(r *http.Request, ticker string) (pipeline.Options, error) {
	opts := pipeline.OptionsFromConfig(s.cfg, ticker)
	q := r.URL.Query()

	ints := []struct {
		key string
		dst *int
	}{
		{"years", &opts.Years},
		{"forward", &opts.ForwardYears},
		{"window", &opts.TrendWindow},
	}
	for _, p := range ints {
		if v := q.Get(p.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return opts, fmt.Errorf("%s must be an integer", p.key)
			}
			*p.dst = n
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"ratios", &opts.EnableRatios},
		{"trend", &opts.EnableTrend},
	}
	for _, p := range bools {
		if v := q.Get(p.key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return opts, fmt.Errorf("%s must be true or false", p.key)
			}
			*p.dst = b
		}
	}

	if v, ok := q["ma"]; ok {
		windows, err := pipeline.ParseWindows(strings.Join(v, ","))
		if err != nil {
			return opts, err
		}
		opts.MAWindows = windows
	}
	if v := q.Get("metrics"); v != "" {
		opts.Metrics = nil
		for _, m := range strings.Split(v, ",") {
			if m = strings.TrimSpace(m); m != "" {
				opts.Metrics = append(opts.Metrics, m)
			}
		}
	}
	return opts, opts.Validate()
}

func queryFormat(r *http.Request) (report.Format, error) {
	v := r.URL.Query().Get("format")
	if v == "" {
		return report.FormatJSON, nil
	}
	return report.ParseFormat(v)
}

// StatusFor maps a pipeline error to an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrInvalidOptions):
		return http.StatusBadRequest
	case provider.IsConfigError(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case provider.IsTransportError(err):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writePipelineError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("pipeline failed", zap.Int("status", status), zap.Error(err))
	}
	writeError(w, status, err.Error())
}

func (s *Server) writeReport(w http.ResponseWriter, doc report.Document, format report.Format) {
	contentType := "text/plain; charset=utf-8"
	switch format {
	case report.FormatCSV:
		contentType = "text/csv; charset=utf-8"
	case report.FormatMarkdown:
		contentType = "text/markdown; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if err := report.Render(w, doc, format); err != nil {
		s.log.Error("render report", zap.Error(err))
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Error("failed to write JSON response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
