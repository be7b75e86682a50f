package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/nerrad567/pilight-gateway/internal/audit"
	"github.com/nerrad567/pilight-gateway/internal/catalogstore"
	"github.com/nerrad567/pilight-gateway/internal/gateway"
	"github.com/nerrad567/pilight-gateway/internal/infrastructure/config"
	"github.com/nerrad567/pilight-gateway/internal/infrastructure/logging"
	"github.com/nerrad567/pilight-gateway/internal/protocol"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// CatalogStore persists accepted catalogs. Satisfied by *catalogstore.Store.
type CatalogStore interface {
	Save(ctx context.Context, cat *protocol.Catalog, source string) (*catalogstore.Revision, error)
	List(ctx context.Context, limit int) ([]catalogstore.Revision, error)
}

// RejectionLister queries the rejection audit log.
type RejectionLister interface {
	List(ctx context.Context, filter audit.Filter) (*audit.ListResult, error)
}

// StatsProvider reports gateway counters. Satisfied by *gateway.Gateway.
type StatsProvider interface {
	Stats() gateway.Stats
}

// ConnectionStatus reports broker connectivity. Satisfied by *mqtt.Client.
type ConnectionStatus interface {
	IsConnected() bool
}

// CatalogMetrics records catalog swaps. Satisfied by *influxdb.Client.
type CatalogMetrics interface {
	WriteCatalogLoad(protocols int, source string)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config config.APIConfig
	Logger *logging.Logger

	// Holder serves the active registry. Required.
	Holder *protocol.Holder

	// Strict applies the strict catalog policy to uploaded catalogs.
	Strict bool

	// Optional dependencies.
	Catalogs   CatalogStore
	Rejections RejectionLister
	Gateway    StatsProvider
	MQTT       ConnectionStatus
	Metrics    CatalogMetrics

	Version string
}

// Server is the HTTP API server for the pilight gateway.
//
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	logger     *logging.Logger
	holder     *protocol.Holder
	strict     bool
	catalogs   CatalogStore
	rejections RejectionLister
	gateway    StatsProvider
	mqtt       ConnectionStatus
	metrics    CatalogMetrics
	version    string
	startTime  time.Time
	server     *http.Server

	// replaceMu orders catalog replacements so the active registry always
	// matches the newest stored revision.
	replaceMu sync.Mutex
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Holder == nil {
		return nil, fmt.Errorf("protocol holder is required")
	}

	return &Server{
		cfg:        deps.Config,
		logger:     deps.Logger,
		holder:     deps.Holder,
		strict:     deps.Strict,
		catalogs:   deps.Catalogs,
		rejections: deps.Rejections,
		gateway:    deps.Gateway,
		mqtt:       deps.MQTT,
		metrics:    deps.Metrics,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
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
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
