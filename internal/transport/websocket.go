package transport

import (
	"errors"
	"io"
	"net"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/muurk/sockserve/internal/logging"
	"go.uber.org/zap"
)

// DefaultWebSocketPath is the upgrade endpoint used when none is configured.
const DefaultWebSocketPath = "/"

// WebSocketAcceptor runs an HTTP server that upgrades requests on one path
// and hands each upgraded socket to Accept as a net.Conn. An upgraded
// socket waits in the upgrade handler until it is accepted, which plays
// the role of the listen backlog.
type WebSocketAcceptor struct {
	ln       net.Listener
	srv      *http.Server
	upgrader websocket.Upgrader

	conns     chan net.Conn
	closed    chan struct{}
	closeOnce sync.Once
	closeErr  error

	mu       sync.Mutex
	deadline time.Time
}

// ListenWebSocket binds address and starts serving upgrades on path.
func ListenWebSocket(address, path string) (*WebSocketAcceptor, error) {
	if path == "" {
		path = DefaultWebSocketPath
	}

	ln, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}

	a := &WebSocketAcceptor{
		ln:     ln,
		conns:  make(chan net.Conn),
		closed: make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(path, a.handleUpgrade)
	a.srv = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := a.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Error("WebSocket HTTP server failed",
				zap.String("addr", ln.Addr().String()),
				zap.Error(err),
			)
		}
	}()

	return a, nil
}

func (a *WebSocketAcceptor) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied with an HTTP error.
		logging.Debug("WebSocket upgrade failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		return
	}

	conn := &wsConn{ws: ws}
	select {
	case a.conns <- conn:
	case <-a.closed:
		_ = conn.Close()
	}
}

// Accept waits for the next upgraded socket.
func (a *WebSocketAcceptor) Accept() (net.Conn, error) {
	a.mu.Lock()
	deadline := a.deadline
	a.mu.Unlock()

	var timeout <-chan time.Time
	if !deadline.IsZero() {
		d := time.Until(deadline)
		if d <= 0 {
			return nil, a.timeoutError()
		}
		t := time.NewTimer(d)
		defer t.Stop()
		timeout = t.C
	}

	select {
	case <-a.closed:
		return nil, &net.OpError{Op: "accept", Net: "ws", Addr: a.Addr(), Err: net.ErrClosed}
	default:
	}

	select {
	case conn := <-a.conns:
		return conn, nil
	case <-a.closed:
		return nil, &net.OpError{Op: "accept", Net: "ws", Addr: a.Addr(), Err: net.ErrClosed}
	case <-timeout:
		return nil, a.timeoutError()
	}
}

func (a *WebSocketAcceptor) timeoutError() error {
	return &net.OpError{Op: "accept", Net: "ws", Addr: a.Addr(), Err: os.ErrDeadlineExceeded}
}

// Close stops the HTTP server and unblocks Accept. Sockets that were
// already accepted stay open.
func (a *WebSocketAcceptor) Close() error {
	a.closeOnce.Do(func() {
		close(a.closed)
		a.closeErr = a.srv.Close()
	})
	return a.closeErr
}

// Addr returns the bound address.
func (a *WebSocketAcceptor) Addr() net.Addr {
	return a.ln.Addr()
}

// SetDeadline bounds subsequent Accept calls. The zero time disables it.
func (a *WebSocketAcceptor) SetDeadline(t time.Time) error {
	a.mu.Lock()
	a.deadline = t
	a.mu.Unlock()
	return nil
}

// wsConn presents a WebSocket as a byte stream. Incoming text and binary
// messages are concatenated; every Write is sent as one binary message.
type wsConn struct {
	ws     *websocket.Conn
	reader io.Reader
	wmu    sync.Mutex
}

func (c *wsConn) Read(b []byte) (int, error) {
	for {
		if c.reader == nil {
			mt, r, err := c.ws.NextReader()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
					return 0, io.EOF
				}
				return 0, err
			}
			if mt != websocket.BinaryMessage && mt != websocket.TextMessage {
				continue
			}
			c.reader = r
		}

		n, err := c.reader.Read(b)
		if err == io.EOF {
			c.reader = nil
			if n > 0 {
				return n, nil
			}
			continue
		}
		return n, err
	}
}

func (c *wsConn) Write(b []byte) (int, error) {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, b); err != nil {
		return 0, err
	}
	return len(b), nil
}

func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.ws.Close()
}

func (c *wsConn) LocalAddr() net.Addr  { return c.ws.LocalAddr() }
func (c *wsConn) RemoteAddr() net.Addr { return c.ws.RemoteAddr() }

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.ws.SetReadDeadline(t); err != nil {
		return err
	}
	return c.ws.SetWriteDeadline(t)
}

func (c *wsConn) SetReadDeadline(t time.Time) error  { return c.ws.SetReadDeadline(t) }
func (c *wsConn) SetWriteDeadline(t time.Time) error { return c.ws.SetWriteDeadline(t) }
