package transport

import (
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/muurk/sockserve/internal/logging"
	"go.uber.org/zap"
)

// NewTLSConfig creates a server TLS configuration from certificate and key files.
func NewTLSConfig(certPath, keyPath string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate: %w", err)
	}

	logging.Info("TLS configuration created from files",
		zap.String("cert", certPath),
		zap.String("key", keyPath),
	)

	return buildServerTLSConfig(cert), nil
}

// NewTLSConfigFromMemory creates a TLS configuration from an in-memory
// certificate and key (PEM format).
func NewTLSConfigFromMemory(certPEM, keyPEM []byte) (*tls.Config, error) {
	cert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to load TLS certificate from memory: %w", err)
	}

	logging.Info("TLS configuration created from in-memory certificate",
		zap.String("source", "self-signed"),
	)

	return buildServerTLSConfig(cert), nil
}

func buildServerTLSConfig(cert tls.Certificate) *tls.Config {
	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,

		// Ask for a client certificate without requiring one so hooks can
		// inspect the peer's credentials when they are offered.
		ClientAuth: tls.RequestClientCert,
	}
}

// GetTLSInfo returns human-readable TLS configuration information
func GetTLSInfo(config *tls.Config) map[string]interface{} {
	return map[string]interface{}{
		"min_version":     logging.TLSVersionName(config.MinVersion),
		"num_certs":       len(config.Certificates),
		"client_auth":     config.ClientAuth.String(),
		"session_tickets": !config.SessionTicketsDisabled,
	}
}

// TLSAcceptor accepts TCP connections and wraps them in server-side TLS.
// Unlike tls.NewListener it keeps SetDeadline, so accept timeouts work.
// The handshake runs lazily on first I/O or an explicit Handshake.
type TLSAcceptor struct {
	inner  *net.TCPListener
	config *tls.Config
}

// ListenTLS binds address and returns a TLS acceptor.
func ListenTLS(address string, config *tls.Config) (*TLSAcceptor, error) {
	if config == nil || (len(config.Certificates) == 0 && config.GetCertificate == nil) {
		return nil, fmt.Errorf("tls listener on %s: no certificate configured", address)
	}

	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve address %s: %w", address, err)
	}
	inner, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return nil, err
	}
	return &TLSAcceptor{inner: inner, config: config}, nil
}

// Accept waits for the next connection.
func (a *TLSAcceptor) Accept() (net.Conn, error) {
	conn, err := a.inner.Accept()
	if err != nil {
		return nil, err
	}
	return tls.Server(conn, a.config), nil
}

// Close stops the listener.
func (a *TLSAcceptor) Close() error {
	return a.inner.Close()
}

// Addr returns the bound address.
func (a *TLSAcceptor) Addr() net.Addr {
	return a.inner.Addr()
}

// SetDeadline bounds the next Accept.
func (a *TLSAcceptor) SetDeadline(t time.Time) error {
	return a.inner.SetDeadline(t)
}
