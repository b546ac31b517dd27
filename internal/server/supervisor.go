package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/muurk/sockserve/internal/config"
	"github.com/muurk/sockserve/internal/discovery"
	"github.com/muurk/sockserve/internal/engine"
	"github.com/muurk/sockserve/internal/logging"
	"github.com/muurk/sockserve/internal/services"
	"github.com/muurk/sockserve/internal/transport"
	"github.com/muurk/sockserve/internal/version"
	"go.uber.org/zap"
)

// DefaultReadyTimeout is how long Start waits for each server to accept.
const DefaultReadyTimeout = 5 * time.Second

// Options tune a Supervisor beyond what the config file holds.
type Options struct {
	Only         []string      // Run only these servers (empty = all)
	Advertise    bool          // Force mDNS advertisement on
	ReadyTimeout time.Duration // Per-server readiness budget (0 = DefaultReadyTimeout)
}

// member is one configured server and its engine instance.
type member struct {
	spec config.ServerSpec
	kind transport.Kind
	srv  *engine.Server
	stop *engine.ScheduledStop

	mu      sync.Mutex
	lastErr error
}

func (m *member) recordError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *member) err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Supervisor runs every configured server, advertises them, and drains
// them on shutdown.
type Supervisor struct {
	cfg          *config.Config
	members      []*member
	tlsConfig    *tls.Config
	advertise    bool
	advertiser   *discovery.Advertiser
	readyTimeout time.Duration

	mu      sync.Mutex
	started bool
	allDone chan struct{}
}

// New builds a Supervisor from a validated configuration.
func New(cfg *config.Config, opts Options) (*Supervisor, error) {
	specs, err := cfg.Select(opts.Only)
	if err != nil {
		return nil, err
	}
	if len(specs) == 0 {
		return nil, fmt.Errorf("no servers selected")
	}

	s := &Supervisor{
		cfg:          cfg,
		advertise:    cfg.Advertise || opts.Advertise,
		readyTimeout: opts.ReadyTimeout,
	}
	if s.readyTimeout <= 0 {
		s.readyTimeout = DefaultReadyTimeout
	}

	for _, spec := range specs {
		m, err := s.build(spec)
		if err != nil {
			return nil, fmt.Errorf("server %s: %w", spec.Name, err)
		}
		s.members = append(s.members, m)
	}

	return s, nil
}

func (s *Supervisor) build(spec config.ServerSpec) (*member, error) {
	handler, err := services.Lookup(spec.Service)
	if err != nil {
		return nil, err
	}
	kind, err := transport.ParseKind(spec.Transport)
	if err != nil {
		return nil, err
	}

	var opts transport.Options
	opts.WebSocketPath = spec.Path
	if kind == transport.TLS {
		if opts.TLSConfig, err = s.serverTLSConfig(); err != nil {
			return nil, err
		}
	}
	listen, err := transport.ListenFunc(kind, opts)
	if err != nil {
		return nil, err
	}

	m := &member{spec: spec, kind: kind}
	hooks := loggingHooks(spec.Name)
	if kind == transport.TLS {
		hooks = tlsInspectionHooks(spec.Name).Chain(hooks)
	}
	hooks = hooks.Chain(engine.Hooks{OnAcceptError: m.recordError})

	m.srv, err = engine.New(spec.EngineConfig(), handler,
		engine.WithName(spec.Name),
		engine.WithHooks(hooks),
		engine.WithListenFunc(listen),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// serverTLSConfig loads the configured certificate once, or generates a
// self-signed one when no files are configured.
func (s *Supervisor) serverTLSConfig() (*tls.Config, error) {
	if s.tlsConfig != nil {
		return s.tlsConfig, nil
	}

	var err error
	if s.cfg.TLS.Cert != "" {
		s.tlsConfig, err = transport.NewTLSConfig(s.cfg.TLS.Cert, s.cfg.TLS.Key)
	} else {
		s.tlsConfig, err = generateAndLoadCert()
	}
	if err != nil {
		return nil, err
	}

	logging.Info("TLS Configuration",
		zap.Any("tls_info", transport.GetTLSInfo(s.tlsConfig)),
	)
	return s.tlsConfig, nil
}

// generateAndLoadCert creates an in-memory self-signed certificate and
// returns a TLS configuration that serves it.
func generateAndLoadCert() (*tls.Config, error) {
	params := transport.DefaultCertParams()
	if host, err := os.Hostname(); err == nil && host != "" {
		params.Hosts = append(params.Hosts, host)
	}

	logging.Info("Generating self-signed certificate",
		zap.String("CN", params.CommonName),
		zap.Strings("SANs", params.Hosts),
		zap.Int("valid_days", params.ValidDays),
	)

	cert, err := transport.GenerateSelfSigned(params)
	if err != nil {
		return nil, fmt.Errorf("failed to generate certificate: %w", err)
	}

	logging.Info("Certificate generated successfully",
		zap.String("CN", cert.Certificate.Subject.CommonName),
		zap.Time("not_before", cert.Certificate.NotBefore),
		zap.Time("not_after", cert.Certificate.NotAfter),
	)

	return transport.NewTLSConfigFromMemory(cert.CertPEM, cert.KeyPEM)
}

// Start starts every server and waits for each to accept connections.
// If any server fails to become ready, the others are stopped and an
// error is returned.
func (s *Supervisor) Start() error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return fmt.Errorf("supervisor already started")
	}
	s.started = true
	s.mu.Unlock()

	for _, m := range s.members {
		logging.Info("Starting server",
			zap.String("server", m.spec.Name),
			zap.String("service", m.spec.Service),
			zap.String("transport", string(m.kind)),
			zap.String("addr", m.spec.Address),
			zap.Int("max_connections", m.spec.MaxConnections),
		)

		if !m.srv.StartAndWaitReady(s.readyTimeout) {
			err := fmt.Errorf("server %s did not become ready within %v", m.spec.Name, s.readyTimeout)
			if cause := m.err(); cause != nil {
				err = fmt.Errorf("server %s did not become ready: %w", m.spec.Name, cause)
			}
			s.stopAll()
			return err
		}

		if m.spec.StopAfter > 0 {
			stop, err := m.srv.ScheduleStop(m.spec.StopAfter)
			if err != nil {
				s.stopAll()
				return fmt.Errorf("server %s: %w", m.spec.Name, err)
			}
			m.stop = stop
			logging.Info("Scheduled stop",
				zap.String("server", m.spec.Name),
				zap.Time("at", stop.Deadline()),
			)
		}
	}

	if s.advertise {
		s.announce()
	}

	s.watch()
	return nil
}

func (s *Supervisor) announce() {
	s.advertiser = discovery.NewAdvertiser()
	for _, m := range s.members {
		ann := discovery.Announcement{
			Server:    m.spec.Name,
			Service:   m.spec.Service,
			Transport: string(m.kind),
			Port:      port(m.srv.Addr()),
			Version:   version.Version,
		}
		if m.kind == transport.WebSocket {
			ann.Path = m.spec.Path
		}
		if err := s.advertiser.Announce(ann); err != nil {
			logging.Warn("mDNS advertisement failed",
				zap.String("server", m.spec.Name),
				zap.Error(err),
			)
		}
	}
}

// watch closes allDone once every server's accept loop has exited.
func (s *Supervisor) watch() {
	done := make(chan struct{})
	s.mu.Lock()
	s.allDone = done
	s.mu.Unlock()

	dones := make([]<-chan struct{}, len(s.members))
	for i, m := range s.members {
		dones[i] = m.srv.Done()
	}

	go func() {
		for i, d := range dones {
			<-d
			if s.advertiser != nil {
				s.advertiser.Withdraw(s.members[i].spec.Name)
			}
		}
		close(done)
	}()
}

// Done is closed once every server has stopped on its own or by Shutdown.
// It is nil before Start.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allDone
}

// Run blocks until ctx is done, SIGINT or SIGTERM arrives, or every server
// has stopped, then shuts down within the configured shutdown timeout.
func (s *Supervisor) Run(ctx context.Context) error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logging.Info("Shutdown signal received, stopping servers...", zap.String("signal", sig.String()))
	case <-ctx.Done():
		logging.Info("Shutdown requested, stopping servers...")
	case <-s.Done():
		logging.Info("All servers stopped")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	return s.Shutdown(shutdownCtx)
}

// Shutdown stops every server and waits for in-flight connections to
// finish or ctx to end.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	logging.Info("Shutting down servers...")

	if s.advertiser != nil {
		s.advertiser.Shutdown()
	}
	s.stopAll()

	var errs []error
	for _, m := range s.members {
		if err := m.srv.Wait(ctx); err != nil {
			logging.Warn("Shutdown timeout, connections still active",
				zap.String("server", m.spec.Name),
				zap.Int("active", m.srv.Active()),
			)
			errs = append(errs, fmt.Errorf("server %s: %w", m.spec.Name, err))
		}
	}

	if len(errs) == 0 {
		logging.Info("All connections closed gracefully")
	}
	logging.Sync()
	return errors.Join(errs...)
}

func (s *Supervisor) stopAll() {
	for _, m := range s.members {
		if err := m.srv.Stop(); err != nil {
			logging.Debug("Error stopping server", zap.String("server", m.spec.Name), zap.Error(err))
		}
	}
}

// Snapshot returns the current statistics for every server, in config order.
func (s *Supervisor) Snapshot() []engine.Stats {
	out := make([]engine.Stats, len(s.members))
	for i, m := range s.members {
		out[i] = m.srv.Stats()
	}
	return out
}

// Server returns the engine server with the given name, or nil.
func (s *Supervisor) Server(name string) *engine.Server {
	for _, m := range s.members {
		if m.spec.Name == name {
			return m.srv
		}
	}
	return nil
}

// Names lists the supervised servers in config order.
func (s *Supervisor) Names() []string {
	names := make([]string, len(s.members))
	for i, m := range s.members {
		names[i] = m.spec.Name
	}
	return names
}

func port(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
