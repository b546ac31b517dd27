package engine

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/muurk/sockserve/internal/logging"
	"go.uber.org/zap"
)

// Option configures a Server at construction.
type Option func(*Server)

// WithName sets the name used in logs and Stats.
func WithName(name string) Option {
	return func(s *Server) {
		s.name = name
	}
}

// WithHooks installs the server's hooks.
func WithHooks(h Hooks) Option {
	return func(s *Server) {
		s.hooks = h
	}
}

// WithListenFunc replaces the default TCP listener factory.
func WithListenFunc(fn ListenFunc) Option {
	return func(s *Server) {
		if fn != nil {
			s.listen = fn
		}
	}
}

// Server is a reusable accept loop with bounded concurrency.
//
// All mutable state lives behind mu; the accept goroutine, the workers and
// callers of Start/Stop only touch it through the methods below.
type Server struct {
	name    string
	handler Handler
	hooks   Hooks
	listen  ListenFunc

	mu       sync.Mutex
	cfg      Config
	state    State
	changed  chan struct{} // closed and replaced on every state change
	running  bool          // accept goroutine alive
	stopping bool
	readied  bool // reached Ready at least once in this run
	listener Acceptor
	closed   bool // listener has been closed
	preBound bool
	retired  bool // pre-bound listener closed; no restart
	cancel   context.CancelFunc
	done     chan struct{}
	pool     *dispatcher
	sched    *ScheduledStop

	counters counters
}

// New returns a server that binds cfg.Address lazily when started.
func New(cfg Config, h Handler, opts ...Option) (*Server, error) {
	if h == nil {
		return nil, fmt.Errorf("%w: nil handler", ErrInvalidConfig)
	}
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Server{
		name:    "server",
		handler: h,
		listen:  ListenTCP,
		cfg:     cfg,
		state:   StateNotStarted,
		changed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// NewWithListener returns a server that accepts from an already bound
// listener. Once that listener has been closed the server cannot be
// started again.
func NewWithListener(l Acceptor, cfg Config, h Handler, opts ...Option) (*Server, error) {
	if l == nil {
		return nil, fmt.Errorf("%w: nil listener", ErrInvalidConfig)
	}
	cfg.Address = l.Addr().String()
	s, err := New(cfg, h, opts...)
	if err != nil {
		return nil, err
	}
	s.listener = l
	s.preBound = true
	return s, nil
}

// Name returns the server's name.
func (s *Server) Name() string {
	return s.name
}

// Config returns a copy of the current configuration.
func (s *Server) Config() Config {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

// SetMaxConnections changes the concurrency bound.
func (s *Server) SetMaxConnections(n int) error {
	return s.configure(func(c *Config) { c.MaxConnections = n })
}

// SetServerTimeout changes the accept timeout.
func (s *Server) SetServerTimeout(d time.Duration) error {
	return s.configure(func(c *Config) { c.ServerTimeout = d })
}

// SetSocketTimeout changes the idle timeout applied to accepted connections.
func (s *Server) SetSocketTimeout(d time.Duration) error {
	return s.configure(func(c *Config) { c.SocketTimeout = d })
}

// SetBusyTimeout changes the admission poll interval.
func (s *Server) SetBusyTimeout(d time.Duration) error {
	return s.configure(func(c *Config) { c.BusyTimeout = d })
}

func (s *Server) configure(mutate func(*Config)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyConfigured
	}
	next := s.cfg
	mutate(&next)
	if err := next.Validate(); err != nil {
		return err
	}
	s.cfg = next
	return nil
}

// Start launches the accept goroutine and returns without waiting for the
// listener to be bound. It is a no-op while the server is running. If a
// Stop is still winding down the previous accept loop, Start waits for that
// loop to exit and then starts a fresh one, so it must not be called from a
// hook that runs on the accept goroutine.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

// startLocked is called with mu held. It may release mu while waiting for a
// stopping accept loop to exit.
func (s *Server) startLocked() error {
	for s.running && s.stopping {
		done := s.done
		s.mu.Unlock()
		<-done
		s.mu.Lock()
	}
	if s.running {
		return nil
	}
	if s.retired {
		return ErrNotRestartable
	}
	if !s.preBound {
		s.listener = nil
		s.closed = false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.stopping = false
	s.readied = false
	s.pool = newDispatcher(s.name, s.cfg.MaxConnections, s.handler, &s.hooks, &s.counters)
	s.done = make(chan struct{})
	s.setStateLocked(StateStarting)

	go s.run(ctx, s.cfg, s.pool, s.done)
	return nil
}

// StartAndWaitReady starts the server if needed and waits until it is
// ready, it stops, or timeout elapses. It reports whether the server is
// ready.
func (s *Server) StartAndWaitReady(timeout time.Duration) bool {
	if err := s.Start(); err != nil {
		return false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		s.mu.Lock()
		ready := s.isReadyLocked()
		over := !s.running
		changed := s.changed
		s.mu.Unlock()

		if ready {
			return true
		}
		if over {
			return false
		}

		select {
		case <-changed:
		case <-timer.C:
			return s.IsReady()
		}
	}
}

// Stop closes the listener, which unblocks a pending Accept and makes the
// accept loop exit. It cancels any scheduled stop and does not wait for
// connections that are being served. Stop is idempotent and safe to call
// from any goroutine, including from a Handler.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopping = true
	if s.cancel != nil {
		s.cancel()
	}
	if s.sched != nil {
		s.sched.cancel()
		s.sched = nil
	}

	var err error
	if s.listener != nil && !s.closed {
		s.closed = true
		err = s.listener.Close()
		if s.preBound {
			s.retired = true
		}
	}

	if s.running && s.state != StateShuttingDown {
		s.setStateLocked(StateShuttingDown)
	}
	return err
}

// ScheduleStop starts the server if needed and stops it after delay. A
// later call supersedes an earlier one, whose handle then reports
// ErrStopCanceled.
func (s *Server) ScheduleStop(delay time.Duration) (*ScheduledStop, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.startLocked(); err != nil {
		return nil, err
	}
	if s.sched != nil {
		s.sched.cancel()
	}
	s.sched = newScheduledStop(delay, s.Stop)

	logging.Debug("Stop scheduled",
		zap.String("server", s.name),
		zap.Duration("delay", delay),
	)
	return s.sched, nil
}

// IsRunning reports whether the accept goroutine is alive.
func (s *Server) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// IsReady reports whether the server is running, not stopping, and has
// reached the Ready state at least once.
func (s *Server) IsReady() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isReadyLocked()
}

func (s *Server) isReadyLocked() bool {
	return s.running && !s.stopping && s.readied && s.state.Accepting()
}

// State returns the current lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound address, or nil before the listener is bound.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Active returns the number of connections currently being served.
func (s *Server) Active() int {
	s.mu.Lock()
	pool := s.pool
	s.mu.Unlock()
	if pool == nil {
		return 0
	}
	return pool.active()
}

// Done returns a channel closed when the current accept loop has exited.
// Before the first Start it returns a closed channel.
func (s *Server) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return s.done
}

// Wait blocks until the accept loop has exited and every connection it
// dispatched has been released, or ctx is done.
func (s *Server) Wait(ctx context.Context) error {
	s.mu.Lock()
	done, pool := s.done, s.pool
	s.mu.Unlock()

	if done == nil {
		return nil
	}
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return pool.wait(ctx)
}

// Stats is a point-in-time snapshot of a Server.
type Stats struct {
	Name           string
	Addr           string
	State          State
	Active         int
	MaxConnections int
	Accepted       uint64
	Served         uint64
	Failed         uint64
	Rejected       uint64
	BusyEpisodes   uint64
}

// Stats returns a snapshot of the server's counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	st := Stats{
		Name:           s.name,
		Addr:           s.cfg.Address,
		State:          s.state,
		MaxConnections: s.cfg.MaxConnections,
	}
	if s.listener != nil {
		st.Addr = s.listener.Addr().String()
	}
	pool := s.pool
	s.mu.Unlock()

	if pool != nil {
		st.Active = pool.active()
	}
	st.Accepted = s.counters.accepted.Load()
	st.Served = s.counters.served.Load()
	st.Failed = s.counters.failed.Load()
	st.Rejected = s.counters.rejected.Load()
	st.BusyEpisodes = s.counters.busy.Load()
	return st
}

func (s *Server) setStateLocked(st State) {
	if s.state == st {
		return
	}
	s.state = st
	close(s.changed)
	s.changed = make(chan struct{})
}

// advance moves to st unless a stop has been requested.
func (s *Server) advance(st State) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return false
	}
	if st == StateReady {
		s.readied = true
	}
	s.setStateLocked(st)
	return true
}

func (s *Server) isStopping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopping
}

// run is the accept goroutine.
func (s *Server) run(ctx context.Context, cfg Config, pool *dispatcher, done chan struct{}) {
	s.hooks.serverStarting()

	l, err := s.acceptLoop(ctx, cfg, pool)
	if err != nil {
		logging.Error("Accept loop terminated",
			zap.String("server", s.name),
			zap.Error(err),
		)
	}

	if err := s.Stop(); err != nil {
		logging.Warn("Closing listener",
			zap.String("server", s.name),
			zap.Error(err),
		)
	}
	s.hooks.serverStopped(l)

	s.mu.Lock()
	s.running = false
	s.setStateLocked(StateStopped)
	close(done)
	s.mu.Unlock()

	logging.Info("Server stopped",
		zap.String("server", s.name),
		zap.Int("in_flight", pool.active()),
	)
}
