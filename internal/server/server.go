// Package server serves the output tree during development. HTML responses
// get a small script that reconnects to the server over a websocket and
// reloads the page after each rebuild; while the last rebuild has failures,
// they also get an overlay listing them.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/spf13/afero"

	"github.com/conneroisu/smol/internal/errors"
	"github.com/conneroisu/smol/internal/logging"
)

const (
	// ReloadPath is where the live reload socket is served.
	ReloadPath = "/_smol/ws"
	// HealthPath reports the server status as JSON.
	HealthPath = "/_smol/health"
)

// Options configure the dev server.
type Options struct {
	Host string
	Port int
	// Root is the output directory being served.
	Root       string
	LiveReload bool
}

// Client represents a WebSocket client
type Client struct {
	conn   *websocket.Conn
	send   chan []byte
	server *Server
}

// Server serves the output tree with live reload capability
type Server struct {
	opts       Options
	files      afero.Fs
	httpServer *http.Server
	logger     logging.Logger

	serverMutex  sync.RWMutex
	clients      map[*websocket.Conn]*Client
	clientsMutex sync.RWMutex
	broadcast    chan []byte

	errorsMutex sync.RWMutex
	buildErrors []errors.BuildError

	shutdownOnce sync.Once
}

// UpdateMessage represents a message sent to the browser
type UpdateMessage struct {
	Type      string    `json:"type"`
	Paths     []string  `json:"paths,omitempty"`
	Errors    []string  `json:"errors,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(s *Server) { s.logger = logger.WithComponent("server") }
}

// New creates a server for the output tree opts.Root inside fs.
func New(fs afero.Fs, opts Options, options ...Option) *Server {
	s := &Server{
		opts:      opts,
		files:     afero.NewBasePathFs(fs, opts.Root),
		logger:    logging.Discard(),
		clients:   make(map[*websocket.Conn]*Client),
		broadcast: make(chan []byte, 16),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.opts.Host, strconv.Itoa(s.opts.Port))
}

// Handler returns the HTTP handler with every route registered.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(HealthPath, s.handleHealth)
	if s.opts.LiveReload {
		mux.HandleFunc(ReloadPath, s.handleWebSocket)
	}
	mux.HandleFunc("/", s.handleFile)
	return mux
}

// Start runs the websocket hub and serves HTTP until ctx is done or
// Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	go s.runWebSocketHub(ctx)

	s.serverMutex.Lock()
	s.httpServer = &http.Server{
		Addr:              s.Addr(),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	server := s.httpServer
	s.serverMutex.Unlock()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Serving site", "url", "http://"+s.Addr(), "root", s.opts.Root)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Shutdown gracefully stops the HTTP server and closes client connections.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.serverMutex.RLock()
		server := s.httpServer
		s.serverMutex.RUnlock()
		if server != nil {
			err = server.Shutdown(ctx)
		}

		s.clientsMutex.Lock()
		for conn := range s.clients {
			s.dropLocked(conn, websocket.StatusGoingAway, "server shutting down")
		}
		s.clientsMutex.Unlock()
	})
	return err
}

// NotifyRebuild records the failures of a rebuild and tells connected
// browsers to reload. Failures stay visible in the overlay until a rebuild
// reports none.
func (s *Server) NotifyRebuild(paths []string, failures []errors.BuildError) {
	s.errorsMutex.Lock()
	s.buildErrors = append([]errors.BuildError(nil), failures...)
	s.errorsMutex.Unlock()

	msg := UpdateMessage{Type: "reload", Paths: paths, Timestamp: time.Now()}
	if len(failures) > 0 {
		msg.Type = "error"
		for i := range failures {
			msg.Errors = append(msg.Errors, failures[i].Error())
		}
	}

	data, err := json.Marshal(msg)
	if err != nil {
		s.logger.Error(context.Background(), err, "Cannot encode update message")
		return
	}

	select {
	case s.broadcast <- data:
	default:
		s.logger.Warn(context.Background(), nil, "Dropping update message, broadcast queue full")
	}
}

// BuildErrors returns the failures currently shown in the overlay.
func (s *Server) BuildErrors() []errors.BuildError {
	s.errorsMutex.RLock()
	defer s.errorsMutex.RUnlock()
	return append([]errors.BuildError(nil), s.buildErrors...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMutex.RLock()
	clients := len(s.clients)
	s.clientsMutex.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"clients": clients,
		"errors":  len(s.BuildErrors()),
	})
}
