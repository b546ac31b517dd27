package engine

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"
)

// Acceptor is the listening side of a transport. Every net.Listener is an
// Acceptor; other transport families only need these three operations.
// Close must unblock a pending Accept.
type Acceptor interface {
	Accept() (net.Conn, error)
	Close() error
	Addr() net.Addr
}

// deadliner is implemented by acceptors that support an accept timeout
// (*net.TCPListener and the acceptors in internal/transport).
type deadliner interface {
	SetDeadline(t time.Time) error
}

// ListenFunc creates and binds an Acceptor for an address.
type ListenFunc func(address string) (Acceptor, error)

// ListenTCP is the default ListenFunc. It binds a plain TCP listener; the
// returned *net.TCPListener supports SetDeadline for the server timeout.
func ListenTCP(address string) (Acceptor, error) {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve address %s: %w", address, err)
	}
	return net.ListenTCP("tcp", addr)
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// idleConn refreshes the read deadline before every Read so the socket
// timeout behaves as an idle timeout rather than a connection lifetime.
type idleConn struct {
	net.Conn
	timeout time.Duration
}

func (c *idleConn) Read(b []byte) (int, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, err
	}
	return c.Conn.Read(b)
}

// NetConn returns the wrapped connection.
func (c *idleConn) NetConn() net.Conn {
	return c.Conn
}

// Unwrap returns the connection as accepted from the transport, stripping
// any wrapper the engine added.
func Unwrap(conn net.Conn) net.Conn {
	if ic, ok := conn.(*idleConn); ok {
		return ic.Conn
	}
	return conn
}
