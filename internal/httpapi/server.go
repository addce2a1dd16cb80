package httpapi

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"templatefiller/internal/config"
	"templatefiller/internal/logging"
	"templatefiller/internal/metrics"
	"templatefiller/internal/pipeline"
	"templatefiller/internal/records"
	"templatefiller/internal/storage"
)

// multipartOverhead is the slack allowed above the payload limit for form
// fields and part headers.
const multipartOverhead = 1 << 20

//go:embed upload.html
var uploadForm []byte

// Options configures a Server.
type Options struct {
	Config   *config.Config
	Pipeline *pipeline.Pipeline
	Metrics  metrics.Recorder
	// MetricsHandler serves the exposition endpoint when metrics are enabled.
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// Server is the HTTP front end of the pipeline.
type Server struct {
	cfg       *config.Config
	pipeline  *pipeline.Pipeline
	records   *records.Store
	downloads storage.Store
	metrics   metrics.Recorder
	reporter  Reporter
	logger    *slog.Logger
	handler   http.Handler

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
}

// New wires the routes.
func New(opts Options) (*Server, error) {
	if opts.Config == nil {
		return nil, errors.New("httpapi: config is required")
	}
	if opts.Pipeline == nil {
		return nil, errors.New("httpapi: pipeline is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	logger = logging.NewComponentLogger(logger, "api-server")
	recorder := opts.Metrics
	if recorder == nil {
		recorder = metrics.Noop{}
	}

	deps := opts.Pipeline.Deps()
	s := &Server{
		cfg:       opts.Config,
		pipeline:  opts.Pipeline,
		records:   deps.Records,
		downloads: deps.Downloads,
		metrics:   recorder,
		reporter:  Reporter{Debug: opts.Config.Debug, Logger: logger},
		logger:    logger,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /uploads/new-letter", s.handleForm)
	mux.HandleFunc("POST /uploads/new-letter", s.handleNewLetter)
	mux.HandleFunc("POST /uploads/check", s.handleUpload(pipeline.ModeCheck))
	mux.HandleFunc("POST /uploads/nocheck", s.handleUpload(pipeline.ModeNocheck))
	mux.HandleFunc("GET /uploads/check", s.handleLegacyUpload)
	mux.HandleFunc("GET /uploads/nocheck", s.handleLegacyUpload)
	mux.HandleFunc("GET /downloads/{id}", s.handleDownload)
	mux.HandleFunc("GET /api/sessions/{id}", s.handleSession)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if opts.Config.Metrics.Enabled && opts.MetricsHandler != nil {
		mux.Handle("GET "+opts.Config.Metrics.Path, opts.MetricsHandler)
	}
	s.handler = s.withRequestContext(mux)
	return s, nil
}

// Handler returns the routed handler with request middleware applied.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Listen binds the configured address. Serve calls it when needed.
func (s *Server) Listen() (net.Addr, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr(), nil
	}
	bind := strings.TrimSpace(s.cfg.Paths.APIBind)
	listener, err := net.Listen("tcp", bind)
	if err != nil {
		return nil, fmt.Errorf("api listen: %w", err)
	}
	s.listener = listener
	return listener.Addr(), nil
}

// Serve runs the server until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	addr, err := s.Listen()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.server = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       time.Duration(s.cfg.Server.ReadTimeoutSeconds) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Server.WriteTimeoutSeconds) * time.Second,
		IdleTimeout:       60 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}
	server := s.server
	listener := s.listener
	s.mu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	s.logger.Info("api server listening",
		logging.String(logging.FieldEventType, "server_listening"),
		logging.String("address", addr.String()),
	)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logging.WarnWithContext(s.logger, "api server shutdown incomplete", "server_shutdown_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "in-flight uploads were interrupted"),
		)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api serve: %w", err)
	}
	s.logger.Info("api server stopped", logging.String(logging.FieldEventType, "server_stopped"))
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/uploads/new-letter", http.StatusFound)
}

func (s *Server) handleForm(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(uploadForm)
}

// handleLegacyUpload keeps old bookmarks working.
func (s *Server) handleLegacyUpload(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/uploads/new-letter", http.StatusMovedPermanently)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.records.Ping(r.Context()); err != nil {
		s.reporter.WriteError(w, http.StatusServiceUnavailable, "records store unavailable")
		return
	}
	s.reporter.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
