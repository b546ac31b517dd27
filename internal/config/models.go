package config

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/muurk/sockserve/internal/engine"
	"github.com/muurk/sockserve/internal/services"
	"github.com/muurk/sockserve/internal/transport"
)

// CurrentVersion is the only config file version this build understands.
const CurrentVersion = 1

// DefaultShutdownTimeout bounds the drain of in-flight connections on exit.
const DefaultShutdownTimeout = 10 * time.Second

// Config represents the entire configuration file.
type Config struct {
	Version         int           `yaml:"version"`
	LogLevel        string        `yaml:"log_level,omitempty"` // debug | info | warn | error
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`    // Drain budget on shutdown
	Advertise       bool          `yaml:"advertise"`           // Announce servers over mDNS
	TLS             TLSFiles      `yaml:"tls"`                 // Certificate for tls servers
	Servers         []ServerSpec  `yaml:"servers"`             // One entry per listener
}

// TLSFiles names a certificate and key on disk.
// Both empty means an in-memory self-signed certificate is generated.
type TLSFiles struct {
	Cert string `yaml:"cert"`
	Key  string `yaml:"key"`
}

// ServerSpec describes one listening server.
type ServerSpec struct {
	Name           string        `yaml:"name"`
	Service        string        `yaml:"service"`         // echo | discard | zero | chargen | daytime
	Transport      string        `yaml:"transport"`       // tcp | tls | ws
	Address        string        `yaml:"address"`         // host:port
	Path           string        `yaml:"path,omitempty"`  // WebSocket upgrade path
	MaxConnections int           `yaml:"max_connections"` // Concurrent connections
	ServerTimeout  time.Duration `yaml:"server_timeout"`  // Idle auto-shutdown, 0 = never
	SocketTimeout  time.Duration `yaml:"socket_timeout"`  // Per-connection idle timeout, 0 = none
	BusyTimeout    time.Duration `yaml:"busy_timeout"`    // Poll interval while saturated
	StopAfter      time.Duration `yaml:"stop_after"`      // >0 schedules a delayed stop
}

// EngineConfig converts the spec into the engine's configuration.
func (s ServerSpec) EngineConfig() engine.Config {
	return engine.Config{
		Address:        s.Address,
		MaxConnections: s.MaxConnections,
		ServerTimeout:  s.ServerTimeout,
		SocketTimeout:  s.SocketTimeout,
		BusyTimeout:    s.BusyTimeout,
	}
}

// ValidationError describes a single invalid field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Reason)
}

// Default returns the built-in configuration: one server per service on
// plain TCP plus TLS and WebSocket echo servers.
func Default() *Config {
	cfg := &Config{
		Version:         CurrentVersion,
		LogLevel:        "info",
		ShutdownTimeout: DefaultShutdownTimeout,
		Servers: []ServerSpec{
			{Name: "echo", Service: "echo", Transport: "tcp", Address: ":7007", SocketTimeout: 30 * time.Second},
			{Name: "discard", Service: "discard", Transport: "tcp", Address: ":7009", SocketTimeout: 30 * time.Second},
			{Name: "daytime", Service: "daytime", Transport: "tcp", Address: ":7013"},
			{Name: "chargen", Service: "chargen", Transport: "tcp", Address: ":7019", MaxConnections: 2},
			{Name: "echo-tls", Service: "echo", Transport: "tls", Address: ":7443", SocketTimeout: 30 * time.Second},
			{Name: "echo-ws", Service: "echo", Transport: "ws", Address: ":7080", Path: "/echo", SocketTimeout: 30 * time.Second},
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills zero values with their defaults.
func (c *Config) ApplyDefaults() {
	if c.Version == 0 {
		c.Version = CurrentVersion
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = DefaultShutdownTimeout
	}
	for i := range c.Servers {
		s := &c.Servers[i]
		if s.Transport == "" {
			s.Transport = string(transport.TCP)
		}
		if s.MaxConnections == 0 {
			s.MaxConnections = engine.DefaultMaxConnections
		}
		if s.BusyTimeout == 0 {
			s.BusyTimeout = engine.DefaultBusyTimeout
		}
		if s.Transport == string(transport.WebSocket) && s.Path == "" {
			s.Path = transport.DefaultWebSocketPath
		}
	}
}

// Validate checks the configuration. The first problem found is returned
// as a *ValidationError.
func (c *Config) Validate() error {
	if c.Version != CurrentVersion {
		return &ValidationError{Field: "version", Reason: fmt.Sprintf("unsupported version %d (expected %d)", c.Version, CurrentVersion)}
	}
	if c.ShutdownTimeout < 0 {
		return &ValidationError{Field: "shutdown_timeout", Reason: "must not be negative"}
	}
	if (c.TLS.Cert == "") != (c.TLS.Key == "") {
		return &ValidationError{Field: "tls", Reason: "cert and key must be set together"}
	}
	if len(c.Servers) == 0 {
		return &ValidationError{Field: "servers", Reason: "at least one server is required"}
	}

	seen := make(map[string]bool, len(c.Servers))
	for i, s := range c.Servers {
		prefix := fmt.Sprintf("servers[%d]", i)
		if s.Name == "" {
			return &ValidationError{Field: prefix + ".name", Reason: "must not be empty"}
		}
		if seen[s.Name] {
			return &ValidationError{Field: prefix + ".name", Reason: fmt.Sprintf("duplicate name %q", s.Name)}
		}
		seen[s.Name] = true

		if _, err := services.Lookup(s.Service); err != nil {
			return &ValidationError{Field: prefix + ".service", Reason: err.Error()}
		}
		if _, err := transport.ParseKind(s.Transport); err != nil {
			return &ValidationError{Field: prefix + ".transport", Reason: err.Error()}
		}
		if s.Address == "" {
			return &ValidationError{Field: prefix + ".address", Reason: "must not be empty"}
		}
		if s.MaxConnections < 1 {
			return &ValidationError{Field: prefix + ".max_connections", Reason: "must be at least 1"}
		}

		durations := []struct {
			name string
			d    time.Duration
		}{
			{"server_timeout", s.ServerTimeout},
			{"socket_timeout", s.SocketTimeout},
			{"busy_timeout", s.BusyTimeout},
			{"stop_after", s.StopAfter},
		}
		for _, d := range durations {
			if d.d < 0 {
				return &ValidationError{Field: prefix + "." + d.name, Reason: "must not be negative"}
			}
		}
	}
	return nil
}

// Select returns the servers whose names are listed, in config order.
// An empty list selects every server.
func (c *Config) Select(names []string) ([]ServerSpec, error) {
	if len(names) == 0 {
		return c.Servers, nil
	}

	wanted := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			wanted[n] = true
		}
	}

	var out []ServerSpec
	for _, s := range c.Servers {
		if wanted[s.Name] {
			out = append(out, s)
			delete(wanted, s.Name)
		}
	}
	if len(wanted) > 0 {
		missing := make([]string, 0, len(wanted))
		for n := range wanted {
			missing = append(missing, n)
		}
		sort.Strings(missing)
		return nil, fmt.Errorf("unknown server(s): %s", strings.Join(missing, ", "))
	}
	return out, nil
}

// Server returns the named server spec, or nil.
func (c *Config) Server(name string) *ServerSpec {
	for i := range c.Servers {
		if c.Servers[i].Name == name {
			return &c.Servers[i]
		}
	}
	return nil
}
