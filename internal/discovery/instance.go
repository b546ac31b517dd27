package discovery

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// Instance represents a sockserve server discovered on the network
type Instance struct {
	// Instance is the mDNS instance name (e.g., "echo@build-host")
	Instance string

	// Server is the server's name from the config file (TXT "server")
	Server string

	// Service is the protocol it runs (TXT "service", e.g. "echo")
	Service string

	// Transport is the transport family (TXT "transport": tcp, tls or ws)
	Transport string

	// Hostname is the mDNS hostname (e.g., "build-host.local.")
	Hostname string

	// IP is the address to connect to, IPv4 preferred
	IP string

	// Port is the listening port
	Port int

	// Metadata contains every TXT record entry
	Metadata map[string]string

	// DiscoveredAt is when the instance was discovered
	DiscoveredAt time.Time
}

// String returns a human-readable string representation of the instance
func (i *Instance) String() string {
	return fmt.Sprintf("%s (%s over %s) at %s", i.Server, i.Service, i.Transport, i.Address())
}

// Address returns host:port for dialing.
func (i *Instance) Address() string {
	return net.JoinHostPort(i.IP, strconv.Itoa(i.Port))
}

// URL returns a URL for the instance, using the ws scheme and TXT "path"
// for WebSocket servers.
func (i *Instance) URL() string {
	switch i.Transport {
	case "ws":
		path := i.GetMetadata("path")
		if path == "" {
			path = "/"
		}
		return "ws://" + i.Address() + path
	case "tls":
		return "tls://" + i.Address()
	default:
		return "tcp://" + i.Address()
	}
}

// GetMetadata retrieves a metadata value by key, or returns empty string if not found
func (i *Instance) GetMetadata(key string) string {
	if i.Metadata == nil {
		return ""
	}
	return i.Metadata[key]
}
