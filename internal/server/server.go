package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/muurk/salusconnect/internal/logging"
	"github.com/muurk/salusconnect/internal/salus"
)

// shutdownTimeout bounds how long in-flight requests get to finish
const shutdownTimeout = 10 * time.Second

// Thermostat is the part of salus.Client the bridge uses.
type Thermostat interface {
	ListDevices(ctx context.Context) ([]salus.DeviceSummary, error)
	DeviceState(ctx context.Context, id string) (salus.DeviceState, error)
	UpdateTemperature(ctx context.Context, id string, value float64) (int, error)
}

// Publisher receives every successful poll. The MQTT bridge implements it.
type Publisher interface {
	Publish(summaries []salus.DeviceSummary) error
}

// Config holds the bridge configuration
type Config struct {
	// Listen is the address to serve on, e.g. ":8710"
	Listen string

	// TLS is enabled when both paths are set
	CertPath string
	KeyPath  string

	// PollInterval of 0 disables the poller
	PollInterval time.Duration
}

// Server is the LAN bridge: a JSON API, a websocket feed and a metrics
// endpoint in front of one Salus Connect account.
type Server struct {
	config     Config
	thermostat *SerialThermostat
	hub        *Hub
	registry   *prometheus.Registry
	publishers []Publisher
	tlsConfig  *tls.Config
	logger     *zap.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
	latest     []salus.DeviceSummary
	wg         sync.WaitGroup
}

// New creates a Server. The thermostat is wrapped so that calls are serialized.
func New(config Config, thermostat Thermostat, publishers ...Publisher) (*Server, error) {
	if thermostat == nil {
		return nil, errors.New("thermostat client is required")
	}
	if config.Listen == "" {
		config.Listen = ":8710"
	}

	var tlsConfig *tls.Config
	if config.CertPath != "" || config.KeyPath != "" {
		var err error
		tlsConfig, err = NewTLSConfig(config.CertPath, config.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS config: %w", err)
		}
	}

	serial := Serialize(thermostat)
	registry := prometheus.NewRegistry()
	registry.MustRegister(NewMetricsCollector(serial))

	return &Server{
		config:     config,
		thermostat: serial,
		hub:        NewHub(),
		registry:   registry,
		publishers: publishers,
		tlsConfig:  tlsConfig,
		logger:     logging.GetLogger(),
	}, nil
}

// Latest returns the summaries from the most recent successful poll.
func (s *Server) Latest() []salus.DeviceSummary {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]salus.DeviceSummary, len(s.latest))
	copy(out, s.latest)
	return out
}

// Serve runs the bridge on an existing listener until ctx is done.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	if s.tlsConfig != nil {
		listener = tls.NewListener(listener, s.tlsConfig)
		s.logger.Info("TLS enabled", zap.Any("tls_info", GetTLSInfo(s.tlsConfig)))
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.mu.Lock()
	s.httpServer = httpServer
	s.listener = listener
	s.mu.Unlock()

	s.logger.Info("Salus bridge listening",
		zap.String("addr", listener.Addr().String()),
		zap.Bool("tls", s.tlsConfig != nil),
		zap.Duration("poll_interval", s.config.PollInterval),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.hub.Run(runCtx)
	}()

	if s.config.PollInterval > 0 {
		poller := NewPoller(s, s.config.PollInterval)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			poller.Run(runCtx)
		}()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- httpServer.Serve(listener)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutdown requested, stopping bridge...")
		cancel()
		return s.Shutdown(context.Background())
	case err := <-errChan:
		cancel()
		s.wg.Wait()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// Shutdown gracefully stops the HTTP server and background loops
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer := s.httpServer
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	var err error
	if httpServer != nil {
		if err = httpServer.Shutdown(ctx); err != nil {
			s.logger.Warn("HTTP shutdown did not complete", zap.Error(err))
		}
	}
	s.hub.CloseAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Bridge stopped")
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout, forcing close")
	}

	logging.Sync()
	return err
}

// publish records a poll result and fans it out to the hub and publishers.
func (s *Server) publish(summaries []salus.DeviceSummary) {
	s.mu.Lock()
	s.latest = summaries
	s.mu.Unlock()

	if err := s.hub.Broadcast(summaries); err != nil {
		s.logger.Error("Failed to broadcast devices", zap.Error(err))
	}
	for _, p := range s.publishers {
		if err := p.Publish(summaries); err != nil {
			s.logger.Error("Failed to publish devices", zap.Error(err))
		}
	}
}
