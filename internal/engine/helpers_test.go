package engine

import (
	"errors"
	"io"
	"net"
	"sync"
	"testing"
	"time"
)

// waitFor polls cond until it holds or timeout elapses.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out after %v waiting for %s", timeout, what)
}

func waitDone(t *testing.T, s *Server, timeout time.Duration) {
	t.Helper()
	select {
	case <-s.Done():
	case <-time.After(timeout):
		t.Fatalf("server %s did not stop within %v (state %v)", s.Name(), timeout, s.State())
	}
}

func newTestServer(t *testing.T, cfg Config, h Handler, opts ...Option) *Server {
	t.Helper()
	if cfg.Address == "" {
		cfg.Address = "127.0.0.1:0"
	}
	s, err := New(cfg, h, append([]Option{WithName(t.Name())}, opts...)...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() {
		_ = s.Stop()
		select {
		case <-s.Done():
		case <-time.After(5 * time.Second):
		}
	})
	return s
}

// dialAndDrain connects, reads until the server closes, and reports errors
// through errs.
func dialAndDrain(addr string, errs chan<- error, wg *sync.WaitGroup) {
	defer wg.Done()
	conn, err := net.DialTimeout("tcp", addr, 2*time.Second)
	if err != nil {
		errs <- err
		return
	}
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	if _, err := io.Copy(io.Discard, conn); err != nil {
		errs <- err
	}
}

// fakeAcceptor hands out connections and errors pushed by the test.
type fakeAcceptor struct {
	conns  chan net.Conn
	errs   chan error
	closed chan struct{}
	once   sync.Once
}

func newFakeAcceptor() *fakeAcceptor {
	return &fakeAcceptor{
		conns:  make(chan net.Conn),
		errs:   make(chan error),
		closed: make(chan struct{}),
	}
}

func (f *fakeAcceptor) Accept() (net.Conn, error) {
	select {
	case c := <-f.conns:
		return c, nil
	case err := <-f.errs:
		return nil, err
	case <-f.closed:
		return nil, net.ErrClosed
	}
}

func (f *fakeAcceptor) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeAcceptor) Addr() net.Addr {
	return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 9}
}

// failingCloseAcceptor closes like fakeAcceptor but reports err.
type failingCloseAcceptor struct {
	*fakeAcceptor
	err error
}

func (f *failingCloseAcceptor) Close() error {
	_ = f.fakeAcceptor.Close()
	return f.err
}

// resetConn fails SetReadDeadline the way a connection reset by the peer
// right after accept does.
type resetConn struct {
	net.Conn
	closed chan struct{}
	once   sync.Once
}

func newResetConn() *resetConn {
	server, client := net.Pipe()
	_ = client.Close()
	return &resetConn{Conn: server, closed: make(chan struct{})}
}

func (c *resetConn) SetReadDeadline(time.Time) error {
	return errors.New("connection reset by peer")
}

func (c *resetConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return c.Conn.Close()
}
