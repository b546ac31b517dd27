package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/muurk/sockserve/internal/logging"
	"go.uber.org/zap"
)

// errStoppedBeforeBind ends a run whose Stop arrived before the listener
// was bound. It is not reported to hooks.
var errStoppedBeforeBind = errors.New("stopped before bind")

// acceptLoop binds the listener and accepts until stopped. It returns the
// listener it served from (nil if binding never happened) and a non-nil
// error only for a failure the hooks were told about.
func (s *Server) acceptLoop(ctx context.Context, cfg Config, pool *dispatcher) (Acceptor, error) {
	l, err := s.bind(cfg)
	if err != nil {
		if errors.Is(err, errStoppedBeforeBind) {
			return nil, nil
		}
		s.hooks.acceptError(err)
		return nil, err
	}

	for !s.isStopping() {
		if !pool.tryReserve() {
			if !s.awaitAdmission(ctx, cfg, pool) {
				break
			}
		}

		if !s.advance(StateReady) {
			pool.unreserve()
			break
		}
		s.hooks.serverReady(pool.active())

		conn, err := s.accept(l, cfg)
		if err != nil {
			pool.unreserve()

			switch {
			case s.isStopping() || errors.Is(err, net.ErrClosed):
				return l, nil
			case isTimeout(err):
				if !pool.quiescent() {
					continue
				}
				logging.Info("Accept timed out with no connections in service; shutting down",
					zap.String("server", s.name),
					zap.Duration("server_timeout", cfg.ServerTimeout),
				)
				s.hooks.serverShuttingDown()
				return l, nil
			default:
				s.hooks.acceptError(err)
				return l, fmt.Errorf("accept: %w", err)
			}
		}
		s.counters.accepted.Add(1)

		conn, err = applySocketTimeout(conn, cfg.SocketTimeout)
		if err != nil {
			pool.unreserve()
			s.counters.rejected.Add(1)
			logging.Warn("Dropping connection after accept",
				zap.String("server", s.name),
				zap.String("remote_addr", remoteAddr(conn)),
				zap.Error(err),
			)
			s.hooks.postAcceptError(conn, err)
			_ = conn.Close()
			continue
		}

		c := newCompletion()
		s.hooks.submitted(conn, c)
		pool.submit(conn, c)
	}
	return l, nil
}

// awaitAdmission blocks while every slot is taken, re-announcing Busy
// every cfg.BusyTimeout. It returns true holding a slot, false if the
// server is stopping.
func (s *Server) awaitAdmission(ctx context.Context, cfg Config, pool *dispatcher) bool {
	since := time.Now()
	s.counters.busy.Add(1)

	for {
		if !s.advance(StateBusy) {
			return false
		}
		s.hooks.serverBusy(since)

		if pool.awaitSlot(ctx, cfg.BusyTimeout) {
			if s.isStopping() {
				pool.unreserve()
				return false
			}
			return true
		}
		if s.isStopping() {
			return false
		}
	}
}

// bind returns the pre-bound listener or creates one.
func (s *Server) bind(cfg Config) (Acceptor, error) {
	s.mu.Lock()
	if s.stopping {
		s.mu.Unlock()
		return nil, errStoppedBeforeBind
	}
	l := s.listener
	s.mu.Unlock()

	if l == nil {
		var err error
		l, err = s.listen(cfg.Address)
		if err != nil {
			return nil, fmt.Errorf("listen on %s: %w", cfg.Address, err)
		}

		s.mu.Lock()
		if s.stopping {
			s.mu.Unlock()
			_ = l.Close()
			return nil, errStoppedBeforeBind
		}
		s.listener = l
		s.closed = false
		s.mu.Unlock()
	}

	logging.Info("Server listening",
		zap.String("server", s.name),
		zap.String("addr", l.Addr().String()),
		zap.Int("max_connections", cfg.MaxConnections),
	)
	s.hooks.serverBound(l.Addr())
	return l, nil
}

func (s *Server) accept(l Acceptor, cfg Config) (net.Conn, error) {
	if cfg.ServerTimeout > 0 {
		if d, ok := l.(deadliner); ok {
			if err := d.SetDeadline(time.Now().Add(cfg.ServerTimeout)); err != nil {
				return nil, err
			}
		}
	}
	return l.Accept()
}

// applySocketTimeout arms the idle timeout on a fresh connection. An error
// here usually means the peer already reset the connection.
func applySocketTimeout(conn net.Conn, d time.Duration) (net.Conn, error) {
	if d <= 0 {
		return conn, nil
	}
	if err := conn.SetReadDeadline(time.Now().Add(d)); err != nil {
		return conn, err
	}
	return &idleConn{Conn: conn, timeout: d}, nil
}

func remoteAddr(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}
