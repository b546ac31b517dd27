package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"time"

	"github.com/muurk/sockserve/internal/engine"
	"github.com/muurk/sockserve/internal/logging"
	"go.uber.org/zap"
)

// handshakeTimeout bounds the TLS handshake forced before serving.
const handshakeTimeout = 10 * time.Second

// loggingHooks reports a server's lifecycle and connections through the
// global logger.
func loggingHooks(name string) engine.Hooks {
	return engine.Hooks{
		OnServerBound: func(addr net.Addr) {
			logging.LogServerEvent(name, "bound", zap.String("addr", addr.String()))
		},
		OnServerReady: func(active int) {
			logging.Debug("Server ready", zap.String("server", name), zap.Int("active", active))
		},
		OnServerBusy: func(since time.Time) {
			logging.Debug("Server busy",
				zap.String("server", name),
				zap.Duration("busy_for", time.Since(since)),
			)
		},
		OnBeforeServe: func(conn net.Conn) {
			logging.LogConnection(remoteAddr(conn), "connection_accepted")
		},
		OnServingException: func(conn net.Conn, err error) {
			var pe *engine.PanicError
			if errors.As(err, &pe) {
				logging.Error("Connection handler panicked",
					zap.String("server", name),
					zap.String("remote_addr", remoteAddr(conn)),
					zap.Any("panic", pe.Value),
					zap.ByteString("stack", pe.Stack),
				)
				return
			}
			logging.Warn("Connection handler failed",
				zap.String("server", name),
				zap.String("remote_addr", remoteAddr(conn)),
				zap.Error(err),
			)
		},
		OnAfterServe: func(conn net.Conn) {
			logging.LogConnection(remoteAddr(conn), "connection_closed")
		},
		OnServerShuttingDown: func() {
			logging.LogServerEvent(name, "idle_shutdown")
		},
		OnServerStopped: func(engine.Acceptor) {
			logging.LogServerEvent(name, "stopped")
		},
		OnAcceptError: func(err error) {
			logging.Error("Failed to accept connection",
				zap.String("server", name),
				zap.Error(err),
			)
		},
		OnPostAcceptError: func(conn net.Conn, err error) {
			logging.Warn("Dropped connection after accept",
				zap.String("server", name),
				zap.String("remote_addr", remoteAddr(conn)),
				zap.Error(err),
			)
		},
	}
}

// tlsInspectionHooks completes the TLS handshake before the handler runs
// and logs the negotiated parameters and the peer's certificate subject.
// A failed handshake is logged; the handler then sees the same error on
// its first read.
func tlsInspectionHooks(name string) engine.Hooks {
	return engine.Hooks{
		OnBeforeServe: func(conn net.Conn) {
			tlsConn, ok := engine.Unwrap(conn).(*tls.Conn)
			if !ok {
				return
			}

			ctx, cancel := context.WithTimeout(context.Background(), handshakeTimeout)
			defer cancel()
			if err := tlsConn.HandshakeContext(ctx); err != nil {
				logging.Warn("TLS handshake failed",
					zap.String("server", name),
					zap.String("remote_addr", remoteAddr(conn)),
					zap.Error(err),
				)
				return
			}

			state := tlsConn.ConnectionState()
			logging.LogTLSHandshake(
				remoteAddr(conn),
				state.Version,
				state.CipherSuite,
				state.ServerName,
				peerSubject(state),
			)
		},
	}
}

func peerSubject(state tls.ConnectionState) string {
	if len(state.PeerCertificates) == 0 {
		return ""
	}
	return state.PeerCertificates[0].Subject.String()
}

func remoteAddr(conn net.Conn) string {
	if conn == nil || conn.RemoteAddr() == nil {
		return ""
	}
	return conn.RemoteAddr().String()
}
