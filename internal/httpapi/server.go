// Package httpapi serves the dongpa strategy over a JSON HTTP API.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"dongpa/internal/domain"
	"dongpa/internal/service"
	"dongpa/internal/store"
	"dongpa/internal/strategy"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Strategy is the subset of *service.Service the HTTP layer calls.
type Strategy interface {
	Symbol() string
	Describe(mode string) (domain.Description, error)
	Signal(ctx context.Context, cfg domain.StrategyConfig) (*service.SignalResult, error)
	Backtest(ctx context.Context, req service.BacktestRequest) (*service.BacktestRun, error)
	Compare(ctx context.Context, req service.CompareRequest) (*strategy.Comparison, error)
	Report(ctx context.Context, req service.BacktestRequest) (*strategy.Report, error)
	Runs(ctx context.Context, limit int) ([]store.Run, error)
	Run(ctx context.Context, id string) (*service.RunDetail, error)
	Bars(ctx context.Context, days int) ([]domain.Bar, error)
}

var _ Strategy = (*service.Service)(nil)

// Server serves the strategy HTTP API.
type Server struct {
	svc Strategy
	log *slog.Logger
}

// NewServer creates a Server backed by svc.
func NewServer(svc Strategy, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{svc: svc, log: log.With("component", "httpapi")}
}

// RegisterRoutes registers all API routes on the given mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/bars", s.handleBars)
	mux.HandleFunc("GET /api/bars/latest", s.handleLatestBar)
	mux.HandleFunc("GET /api/dongpa/summary/{mode}", s.handleSummary)
	mux.HandleFunc("POST /api/dongpa/signals", s.handleSignals)
	mux.HandleFunc("POST /api/dongpa/backtest", s.handleBacktest)
	mux.HandleFunc("POST /api/dongpa/compare", s.handleCompare)
	mux.HandleFunc("POST /api/dongpa/report", s.handleReport)
	mux.HandleFunc("GET /api/dongpa/runs", s.handleRuns)
	mux.HandleFunc("GET /api/dongpa/runs/{id}", s.handleRun)
}

// Handler returns an http.Handler with logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return s.logRequests(corsMiddleware(mux))
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
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
		s.log.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"elapsed", time.Since(start),
		)
	})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// fail maps err onto a status code: caller mistakes are 400, missing runs
// 404, anything else 500.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case domain.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrRunNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrNoSource):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	default:
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// decodeBody decodes a JSON body into v. An empty body leaves v unchanged.
func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		if errors.Is(err, domain.ErrUnknownMode) {
			return err
		}
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return nil
}

func queryInt(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid %s parameter %q", domain.ErrInvalidConfig, name, v)
	}
	return n, nil
}

// ---------------------------------------------------------------------------
// Handlers
// ---------------------------------------------------------------------------

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, HealthResponse{Status: "healthy", Symbol: s.svc.Symbol()})
}

func (s *Server) handleBars(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 0)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bars, err := s.svc.Bars(r.Context(), days)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, BarsResponse{Symbol: s.svc.Symbol(), Bars: nonNil(bars)})
}

func (s *Server) handleLatestBar(w http.ResponseWriter, r *http.Request) {
	bars, err := s.svc.Bars(r.Context(), 1)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if len(bars) == 0 {
		writeError(w, http.StatusNotFound, "no bars available")
		return
	}
	writeJSON(w, bars[len(bars)-1])
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	d, err := s.svc.Describe(r.PathValue("mode"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, d)
}

func (s *Server) handleSignals(w http.ResponseWriter, r *http.Request) {
	var cfg domain.StrategyConfig
	if err := decodeBody(r, &cfg); err != nil {
		s.fail(w, r, err)
		return
	}
	sig, err := s.svc.Signal(r.Context(), cfg)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, sig.Rounded())
}

func (s *Server) handleBacktest(w http.ResponseWriter, r *http.Request) {
	var req service.BacktestRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	run, err := s.svc.Backtest(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, run.Rounded())
}

func (s *Server) handleCompare(w http.ResponseWriter, r *http.Request) {
	var req service.CompareRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	cmp, err := s.svc.Compare(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, cmp)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req service.BacktestRequest
	if err := decodeBody(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	rep, err := s.svc.Report(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	out := rep.Rounded()
	out.MonthlyPerformance = nonNil(out.MonthlyPerformance)
	writeJSON(w, out)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit, err := queryInt(r, "limit", 20)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	runs, err := s.svc.Runs(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, RunsResponse{Runs: nonNil(runs)})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.svc.Run(r.Context(), r.PathValue("id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, run)
}

// nonNil turns a nil slice into an empty one so it encodes as [].
func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}
