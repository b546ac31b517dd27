package discovery

import (
	"fmt"
	"os"
	"sync"

	"github.com/grandcat/zeroconf"
	"github.com/muurk/sockserve/internal/logging"
	"go.uber.org/zap"
)

// Announcement describes one server to publish.
type Announcement struct {
	Server    string
	Service   string
	Transport string
	Port      int
	Path      string
	Version   string
}

// TXT returns the TXT records for the announcement.
func (a Announcement) TXT() []string {
	txt := []string{
		"server=" + a.Server,
		"service=" + a.Service,
		"transport=" + a.Transport,
	}
	if a.Path != "" {
		txt = append(txt, "path="+a.Path)
	}
	if a.Version != "" {
		txt = append(txt, "version="+a.Version)
	}
	return txt
}

// InstanceName builds the mDNS instance name, "<server>@<host>".
func InstanceName(server string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return server + "@" + host
}

// Advertiser publishes servers over mDNS until Shutdown.
type Advertiser struct {
	mu      sync.Mutex
	servers map[string]*zeroconf.Server
}

// NewAdvertiser creates an empty advertiser.
func NewAdvertiser() *Advertiser {
	return &Advertiser{servers: make(map[string]*zeroconf.Server)}
}

// Announce registers a server. Announcing the same server again replaces
// the earlier registration.
func (a *Advertiser) Announce(ann Announcement) error {
	if ann.Port <= 0 {
		return fmt.Errorf("cannot advertise %s: no port", ann.Server)
	}

	srv, err := zeroconf.Register(InstanceName(ann.Server), ServiceType, ServiceDomain, ann.Port, ann.TXT(), nil)
	if err != nil {
		return fmt.Errorf("failed to register mDNS service for %s: %w", ann.Server, err)
	}

	a.mu.Lock()
	if old, ok := a.servers[ann.Server]; ok {
		old.Shutdown()
	}
	a.servers[ann.Server] = srv
	a.mu.Unlock()

	logging.Info("Advertising server via mDNS",
		zap.String("server", ann.Server),
		zap.String("service_type", ServiceType),
		zap.Int("port", ann.Port),
	)
	return nil
}

// Withdraw removes one server's registration.
func (a *Advertiser) Withdraw(server string) {
	a.mu.Lock()
	srv, ok := a.servers[server]
	delete(a.servers, server)
	a.mu.Unlock()

	if ok {
		srv.Shutdown()
		logging.Debug("Withdrew mDNS advertisement", zap.String("server", server))
	}
}

// Shutdown withdraws every registration.
func (a *Advertiser) Shutdown() {
	a.mu.Lock()
	servers := a.servers
	a.servers = make(map[string]*zeroconf.Server)
	a.mu.Unlock()

	for _, srv := range servers {
		srv.Shutdown()
	}
}
