package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/lmaertin/pooldose-go/internal/auth"
	"github.com/lmaertin/pooldose-go/internal/history"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/config"
	"github.com/lmaertin/pooldose-go/internal/infrastructure/logging"
	"github.com/lmaertin/pooldose-go/internal/mapping"
	"github.com/lmaertin/pooldose-go/internal/metrics"
	"github.com/lmaertin/pooldose-go/internal/monitor"
	"github.com/lmaertin/pooldose-go/internal/pooldose"
	"github.com/lmaertin/pooldose-go/internal/values"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// defaultMetricsPath serves Prometheus metrics when none is configured.
const defaultMetricsPath = "/metrics"

// ValueService is the read and write surface over the latest snapshot.
// Satisfied by *monitor.Monitor.
type ValueService interface {
	DeviceID() string
	Snapshot() (values.StructuredSnapshot, bool)
	Value(name string) (values.Decoded, bool)
	Health() monitor.Health
	Write(ctx context.Context, name string, value any, source string) error
}

// DeviceService is the controller identity and control surface.
// Satisfied by *pooldose.Client.
type DeviceService interface {
	StaticValues() (pooldose.StaticValues, error)
	AvailableTypes() map[mapping.Kind][]string
	Mapping() *mapping.Table
	Reboot(ctx context.Context) error
}

// HealthChecker is a component reported by the health endpoint.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Values  ValueService
	Device  DeviceService
	Version string

	// History serves the history and writes endpoints. May be nil.
	History history.Repository

	// Auth guards the write endpoints. Without it they answer 503.
	Auth *auth.Authenticator

	// Metrics is served on MetricsPath. May be nil.
	Metrics     *metrics.Metrics
	MetricsPath string

	// Components are checked by the health endpoint, keyed by name.
	Components map[string]HealthChecker

	// Panel is served for every path outside the API. May be nil.
	Panel http.Handler

	// DB, MQTT and Sinks feed the system metrics endpoint. All optional.
	DB    StatsProvider
	MQTT  ConnectionStatus
	Sinks []string
}

// Server is the HTTP API server.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg         config.APIConfig
	logger      *logging.Logger
	values      ValueService
	device      DeviceService
	history     history.Repository
	auth        *auth.Authenticator
	metrics     *metrics.Metrics
	metricsPath string
	components  map[string]HealthChecker
	db          StatsProvider
	mqtt        ConnectionStatus
	sinks       []string
	panel       http.Handler
	version     string
	startTime   time.Time
	server      *http.Server
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Values == nil {
		return nil, fmt.Errorf("value service is required")
	}
	if deps.Device == nil {
		return nil, fmt.Errorf("device service is required")
	}

	metricsPath := deps.MetricsPath
	if metricsPath == "" {
		metricsPath = defaultMetricsPath
	}

	return &Server{
		cfg:         deps.Config,
		logger:      deps.Logger,
		values:      deps.Values,
		device:      deps.Device,
		history:     deps.History,
		auth:        deps.Auth,
		metrics:     deps.Metrics,
		metricsPath: metricsPath,
		components:  deps.Components,
		db:          deps.DB,
		mqtt:        deps.MQTT,
		sinks:       deps.Sinks,
		panel:       deps.Panel,
		version:     deps.Version,
		startTime:   time.Now(),
	}, nil
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// The server can be stopped with Close().
func (s *Server) Start(_ context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
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

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
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

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
