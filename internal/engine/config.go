package engine

import (
	"fmt"
	"time"
)

// Defaults applied by New when a Config field is left at its zero value.
const (
	DefaultMaxConnections = 10
	DefaultBusyTimeout    = time.Second
)

// Config holds the startup parameters of a Server. It is copied into the
// Server at construction and can only be changed through the Server's
// setters while the accept loop is not running.
type Config struct {
	// Address is the listen address handed to the ListenFunc, e.g. ":7007".
	// Ignored when the server was built around a pre-bound Acceptor.
	Address string

	// MaxConnections bounds the number of connections inside Serve at once.
	MaxConnections int

	// ServerTimeout bounds each Accept call. Zero means accept blocks until a
	// connection arrives or the listener is closed. When an accept times out
	// and no connection is in service the server shuts itself down.
	ServerTimeout time.Duration

	// SocketTimeout is the idle read timeout applied to every accepted
	// connection. Zero disables it.
	SocketTimeout time.Duration

	// BusyTimeout is how long the accept loop waits for a free slot before
	// re-checking admission while at capacity.
	BusyTimeout time.Duration
}

// withDefaults returns a copy of c with zero-valued knobs replaced.
func (c Config) withDefaults() Config {
	if c.MaxConnections == 0 {
		c.MaxConnections = DefaultMaxConnections
	}
	if c.BusyTimeout == 0 {
		c.BusyTimeout = DefaultBusyTimeout
	}
	return c
}

// Validate reports the first invalid knob.
func (c Config) Validate() error {
	if c.MaxConnections < 1 {
		return fmt.Errorf("%w: max connections must be at least 1, got %d", ErrInvalidConfig, c.MaxConnections)
	}
	if c.ServerTimeout < 0 {
		return fmt.Errorf("%w: negative server timeout %v", ErrInvalidConfig, c.ServerTimeout)
	}
	if c.SocketTimeout < 0 {
		return fmt.Errorf("%w: negative socket timeout %v", ErrInvalidConfig, c.SocketTimeout)
	}
	if c.BusyTimeout <= 0 {
		return fmt.Errorf("%w: busy timeout must be positive, got %v", ErrInvalidConfig, c.BusyTimeout)
	}
	return nil
}
