package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/gray-logic-biometric/internal/audit"
	"github.com/nerrad567/gray-logic-biometric/internal/capturelog"
	"github.com/nerrad567/gray-logic-biometric/internal/fanout"
	"github.com/nerrad567/gray-logic-biometric/internal/health"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-biometric/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-biometric/internal/station"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// EventSource is where the WebSocket hub gets capture events from.
// *fanout.Dispatcher satisfies it.
type EventSource interface {
	Subscribe(name string, l fanout.Listener) (func(), error)
}

// HealthSource reports the station's overall health.
// *health.Reporter satisfies it.
type HealthSource interface {
	Current() (health.Status, string)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Logger     *logging.Logger
	Station    *station.Station
	Events     EventSource           // optional: no WebSocket events without it
	CaptureLog capturelog.Repository // optional: history endpoints answer 503
	Audit      audit.Repository      // optional: GET /audit answers 503
	Health     HealthSource          // optional: defaults to evaluating the station alone
	Hub        *Hub                  // if set, the server uses this hub instead of creating its own
	Version    string
}

// Server is the HTTP API server for a capture station.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	logger     *logging.Logger
	station    *station.Station
	events     EventSource
	captureLog capturelog.Repository
	audit      audit.Repository
	health     HealthSource
	version    string

	hub *Hub

	mu          sync.Mutex
	server      *http.Server
	listener    net.Listener
	cancel      context.CancelFunc // cancels the hub on Close()
	unsubscribe func()
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Station == nil {
		return nil, fmt.Errorf("station is required")
	}

	s := &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		logger:     deps.Logger,
		station:    deps.Station,
		events:     deps.Events,
		captureLog: deps.CaptureLog,
		audit:      deps.Audit,
		health:     deps.Health,
		version:    deps.Version,
		hub:        deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Station.ID(), deps.Logger)
	}
	return s, nil
}

// Hub returns the server's WebSocket hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the listener, runs the WebSocket hub, subscribes it to capture
// events and serves HTTP in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.server != nil {
		return fmt.Errorf("api server already started")
	}

	addr := net.JoinHostPort(s.cfg.Host, fmt.Sprintf("%d", s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	if s.events != nil {
		unsubscribe, subErr := s.events.Subscribe("websocket", s.hub)
		if subErr != nil {
			s.logger.Warn("websocket hub not subscribed to capture events", "error", subErr)
		} else {
			s.unsubscribe = unsubscribe
		}
	}

	s.listener = ln
	s.server = &http.Server{
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	srv := s.server
	go func() {
		if serveErr := srv.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", serveErr)
		}
	}()

	s.logger.Info("API server listening", "address", ln.Addr().String())
	return nil
}

// Addr returns the bound listener address, or "" before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	s.mu.Lock()
	srv := s.server
	unsubscribe := s.unsubscribe
	cancel := s.cancel
	s.server = nil
	s.listener = nil
	s.unsubscribe = nil
	s.mu.Unlock()

	if srv == nil {
		return nil
	}
	if unsubscribe != nil {
		unsubscribe()
	}
	if cancel != nil {
		cancel()
	}

	ctx, cancelShutdown := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancelShutdown()

	s.logger.Info("API server shutting down")
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
