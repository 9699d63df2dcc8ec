// Package server exposes sync, browsing and deletion over HTTP.
package server

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/jonasrichard/mediamosaic/internal/logging"
	"github.com/jonasrichard/mediamosaic/internal/models"
	"github.com/jonasrichard/mediamosaic/internal/sandbox"
	"github.com/jonasrichard/mediamosaic/internal/scanner"
	"github.com/jonasrichard/mediamosaic/internal/syncer"
	ws "github.com/jonasrichard/mediamosaic/internal/websocket"
)

// Syncer queues directory rebuilds. *syncer.Coordinator satisfies it.
type Syncer interface {
	Sync(ctx context.Context, relPath string) (*syncer.Command, error)
	QueueDepth() int
}

// History answers sync status queries. *storage.DB satisfies it.
type History interface {
	ListRuns(ctx context.Context, directory string, limit int) ([]*models.SyncRun, error)
}

// Options configures a Server.
type Options struct {
	Addr string
	// GalleryShell is an HTML file served for synced directories. The
	// built-in shell is used when empty.
	GalleryShell   string
	ImageExtension string
}

// Server is the HTTP front end.
type Server struct {
	opts    Options
	sandbox *sandbox.Sandbox
	syncer  Syncer
	history History
	hub     *ws.Hub
	logger  *slog.Logger

	shellOnce sync.Once
	shell     []byte
	shellErr  error

	httpServer *http.Server
}

// New creates a Server. history and hub may be nil.
func New(opts Options, sb *sandbox.Sandbox, s Syncer, history History, hub *ws.Hub, logger *slog.Logger) *Server {
	if opts.ImageExtension == "" {
		opts.ImageExtension = scanner.DefaultExtension
	}
	return &Server{
		opts:    opts,
		sandbox: sb,
		syncer:  s,
		history: history,
		hub:     hub,
		logger:  logging.Component(logger, "http"),
	}
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/sync/", s.handleSync)
	mux.HandleFunc("/serve/", s.handleServe)
	mux.HandleFunc("/delete/", s.handleDeleteOne)
	mux.HandleFunc("/delete", s.handleDeleteMany)
	mux.HandleFunc("/status/", s.handleStatus)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/", s.handleRoot)

	return s.logRequests(mux)
}

// Start listens on the configured address and serves in the background.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}

	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("listening", "addr", ln.Addr().String(), "root", s.sandbox.Root())
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Error("server error", "error", err)
		}
	}()
	return nil
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// galleryShell returns the configured shell, read once.
func (s *Server) galleryShell() ([]byte, error) {
	s.shellOnce.Do(func() {
		if s.opts.GalleryShell == "" {
			s.shell = []byte(defaultGalleryShell)
			return
		}
		s.shell, s.shellErr = os.ReadFile(s.opts.GalleryShell)
	})
	return s.shell, s.shellErr
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is required by the websocket upgrader.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "status", rec.status, "took", time.Since(start))
	})
}
