// Package api provides the HTTP REST API and WebSocket server for
// Homewise Core.
//
// It exposes device, rule, scene, and assistant operations to the
// presentation layer (dashboard, floor plan, chat UI) and broadcasts
// device state changes to WebSocket subscribers.
//
// All responses share one envelope: {"success": bool, "message": string,
// "payload": ...}. Errors use the same shape with success=false.
//
// The server follows the same lifecycle pattern as the other
// infrastructure components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/homewise/homewise-core/internal/assistant"
	"github.com/homewise/homewise-core/internal/audit"
	"github.com/homewise/homewise-core/internal/automation"
	"github.com/homewise/homewise-core/internal/device"
	"github.com/homewise/homewise-core/internal/dispatch"
	"github.com/homewise/homewise-core/internal/infrastructure/config"
	"github.com/homewise/homewise-core/internal/infrastructure/logging"
	"github.com/homewise/homewise-core/internal/scene"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight
// requests to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	WS       config.WebSocketConfig
	Security config.SecurityConfig
	Logger   *logging.Logger

	Devices     *device.Registry
	Dispatcher  *dispatch.Dispatcher
	Rules       *automation.Registry
	Scenes      *scene.Registry
	SceneExec   *scene.Executor
	Interpreter *assistant.Interpreter

	// Activity records logins and assistant commands; ActivityLog serves
	// GET /activity. Both optional.
	Activity    *audit.Recorder
	ActivityLog audit.Repository

	ExternalHub *Hub // If set, the server uses this hub instead of creating its own
	Version     string
}

// Server is the HTTP API server for Homewise Core.
type Server struct {
	cfg    config.APIConfig
	wsCfg  config.WebSocketConfig
	secCfg config.SecurityConfig
	logger *logging.Logger

	devices     *device.Registry
	dispatcher  *dispatch.Dispatcher
	rules       *automation.Registry
	scenes      *scene.Registry
	sceneExec   *scene.Executor
	interpreter *assistant.Interpreter
	activity    *audit.Recorder
	activityLog audit.Repository

	version     string
	server      *http.Server
	hub         *Hub
	externalHub bool
	cancel      context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device registry is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	s := &Server{
		cfg:         deps.Config,
		wsCfg:       deps.WS,
		secCfg:      deps.Security,
		logger:      deps.Logger,
		devices:     deps.Devices,
		dispatcher:  deps.Dispatcher,
		rules:       deps.Rules,
		scenes:      deps.Scenes,
		sceneExec:   deps.SceneExec,
		interpreter: deps.Interpreter,
		activity:    deps.Activity,
		activityLog: deps.ActivityLog,
		version:     deps.Version,
	}

	if deps.ExternalHub != nil {
		s.hub = deps.ExternalHub
		s.externalHub = true
	}

	return s, nil
}

// GetHub returns the WebSocket hub, creating it if needed. Exposed so main
// can wire registry observers and rule/scene callbacks to broadcasts
// before Start.
func (s *Server) GetHub() *Hub {
	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	return s.hub
}

// Start begins listening for HTTP connections.
//
// It starts the WebSocket hub, subscribes to device state changes for
// real-time broadcast, and launches the HTTP listener in a background
// goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.hub == nil {
		s.hub = NewHub(s.wsCfg, s.logger)
	}
	if !s.externalHub {
		go s.hub.Run(srvCtx)
	}

	// Every applied mutation reaches WebSocket subscribers.
	s.devices.Subscribe(func(sc device.StateChange) {
		s.hub.Broadcast(ChannelDeviceState, sc)
	})

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS",
				"address", s.server.Addr,
				"cert", s.cfg.TLS.CertFile,
			)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server. It waits up to 10 seconds
// for in-flight requests to complete.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
