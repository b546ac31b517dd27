package transport

import (
	"crypto/tls"
	"fmt"
	"strings"

	"github.com/muurk/sockserve/internal/engine"
)

// Kind names a transport family.
type Kind string

const (
	// TCP is a plain stream socket.
	TCP Kind = "tcp"
	// TLS is a stream socket wrapped in server-side TLS.
	TLS Kind = "tls"
	// WebSocket carries the byte stream over WebSocket binary messages.
	WebSocket Kind = "ws"
)

// Kinds lists every supported transport.
var Kinds = []Kind{TCP, TLS, WebSocket}

// ParseKind converts a config value into a Kind. The empty string is TCP.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "tcp":
		return TCP, nil
	case "tls":
		return TLS, nil
	case "ws", "websocket":
		return WebSocket, nil
	default:
		return "", fmt.Errorf("unknown transport %q (valid: tcp, tls, ws)", s)
	}
}

// Options carries transport-specific settings.
type Options struct {
	// TLSConfig is required for the TLS transport.
	TLSConfig *tls.Config
	// WebSocketPath is the upgrade path for the WebSocket transport.
	WebSocketPath string
}

// ListenFunc returns an engine.ListenFunc that binds the given transport.
func ListenFunc(kind Kind, opts Options) (engine.ListenFunc, error) {
	switch kind {
	case TCP:
		return engine.ListenTCP, nil
	case TLS:
		if opts.TLSConfig == nil {
			return nil, fmt.Errorf("transport %s requires a TLS configuration", kind)
		}
		cfg := opts.TLSConfig
		return func(address string) (engine.Acceptor, error) {
			return ListenTLS(address, cfg)
		}, nil
	case WebSocket:
		path := opts.WebSocketPath
		return func(address string) (engine.Acceptor, error) {
			return ListenWebSocket(address, path)
		}, nil
	default:
		return nil, fmt.Errorf("unknown transport %q", kind)
	}
}
