// Package api exposes the HTTP control surface: obstacle mask upload,
// session start/stop with a cancel-then-restart discipline, field
// snapshots (JSON and PNG), convergence charts, and run history.
package api

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/flowbench-sim/flowbench/internal/config"
	"github.com/flowbench-sim/flowbench/internal/db"
	"github.com/flowbench-sim/flowbench/internal/flow"
	"github.com/flowbench-sim/flowbench/internal/flow/session"
)

// ANSI escape codes for request logging
const (
	colorReset     = "\033[0m"
	colorCyan      = "\033[36m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

// Server wires the solver session runner, the run store, and the
// current obstacle grid behind HTTP handlers.
type Server struct {
	runner *session.Runner
	store  *db.DB
	tuning *config.Tuning

	mu   sync.RWMutex
	grid *flow.Grid // current obstacle grid, replaced on mask upload

	server *http.Server
}

// ServerConfig contains the dependencies for a Server.
type ServerConfig struct {
	Address string
	Store   *db.DB
	Tuning  *config.Tuning
	Grid    *flow.Grid
}

// NewServer creates the HTTP server around an idle session runner.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		runner: session.NewRunner(),
		store:  cfg.Store,
		tuning: cfg.Tuning,
		grid:   cfg.Grid,
	}
	s.server = &http.Server{
		Addr:    cfg.Address,
		Handler: s.loggingMiddleware(s.setupRoutes()),
	}
	return s
}

// Start runs the HTTP server until ctx is cancelled, then shuts down
// gracefully. Any in-flight session is stopped on the way out.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	s.runner.Stop()
	s.runner.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := s.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}
	return nil
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /api/mask", s.handleMaskUpload)
	mux.HandleFunc("POST /api/session/start", s.handleSessionStart)
	mux.HandleFunc("POST /api/session/stop", s.handleSessionStop)
	mux.HandleFunc("GET /api/session", s.handleSessionState)
	mux.HandleFunc("GET /api/session/field", s.handleField)
	mux.HandleFunc("GET /api/session/field.png", s.handleFieldPNG)
	mux.HandleFunc("GET /api/session/convergence", s.handleConvergenceChart)
	mux.HandleFunc("GET /api/runs", s.handleListRuns)
	mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)
	return mux
}

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	default:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	}
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(lrw, r)
		log.Printf("%s%s%s %s %s %s", colorCyan, r.Method, colorReset,
			r.URL.Path, statusCodeColor(lrw.statusCode), time.Since(start).Round(time.Microsecond))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, map[string]string{
		"status":    "ok",
		"service":   "flowbench",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// currentGrid returns the grid new sessions start from.
func (s *Server) currentGrid() *flow.Grid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grid
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

func (s *Server) writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
