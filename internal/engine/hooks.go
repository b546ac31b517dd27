package engine

import (
	"net"
	"time"
)

// Hooks are the engine's extension points. Every field is optional. Each
// hook runs synchronously on the goroutine that observed the event: the
// accept goroutine for server-level events, the worker goroutine for
// per-connection serve events. A hook that blocks stalls that goroutine.
//
// For a single connection the order is OnSubmitted, OnBeforeServe,
// OnServingException (only on failure), OnAfterServe. There is no ordering
// across connections.
type Hooks struct {
	OnServerStarting     func()
	OnServerBound        func(addr net.Addr)
	OnServerReady        func(active int)
	OnServerBusy         func(busySince time.Time)
	OnSubmitted          func(conn net.Conn, c *Completion)
	OnBeforeServe        func(conn net.Conn)
	OnServingException   func(conn net.Conn, err error)
	OnAfterServe         func(conn net.Conn)
	OnServerShuttingDown func()
	OnServerStopped      func(l Acceptor)
	OnAcceptError        func(err error)
	OnPostAcceptError    func(conn net.Conn, err error)
}

// Chain returns hooks that invoke h first and then next for every event.
func (h Hooks) Chain(next Hooks) Hooks {
	return Hooks{
		OnServerStarting: func() {
			h.serverStarting()
			next.serverStarting()
		},
		OnServerBound: func(addr net.Addr) {
			h.serverBound(addr)
			next.serverBound(addr)
		},
		OnServerReady: func(active int) {
			h.serverReady(active)
			next.serverReady(active)
		},
		OnServerBusy: func(since time.Time) {
			h.serverBusy(since)
			next.serverBusy(since)
		},
		OnSubmitted: func(conn net.Conn, c *Completion) {
			h.submitted(conn, c)
			next.submitted(conn, c)
		},
		OnBeforeServe: func(conn net.Conn) {
			h.beforeServe(conn)
			next.beforeServe(conn)
		},
		OnServingException: func(conn net.Conn, err error) {
			h.servingException(conn, err)
			next.servingException(conn, err)
		},
		OnAfterServe: func(conn net.Conn) {
			h.afterServe(conn)
			next.afterServe(conn)
		},
		OnServerShuttingDown: func() {
			h.serverShuttingDown()
			next.serverShuttingDown()
		},
		OnServerStopped: func(l Acceptor) {
			h.serverStopped(l)
			next.serverStopped(l)
		},
		OnAcceptError: func(err error) {
			h.acceptError(err)
			next.acceptError(err)
		},
		OnPostAcceptError: func(conn net.Conn, err error) {
			h.postAcceptError(conn, err)
			next.postAcceptError(conn, err)
		},
	}
}

func (h *Hooks) serverStarting() {
	if h.OnServerStarting != nil {
		h.OnServerStarting()
	}
}

func (h *Hooks) serverBound(addr net.Addr) {
	if h.OnServerBound != nil {
		h.OnServerBound(addr)
	}
}

func (h *Hooks) serverReady(active int) {
	if h.OnServerReady != nil {
		h.OnServerReady(active)
	}
}

func (h *Hooks) serverBusy(since time.Time) {
	if h.OnServerBusy != nil {
		h.OnServerBusy(since)
	}
}

func (h *Hooks) submitted(conn net.Conn, c *Completion) {
	if h.OnSubmitted != nil {
		h.OnSubmitted(conn, c)
	}
}

func (h *Hooks) beforeServe(conn net.Conn) {
	if h.OnBeforeServe != nil {
		h.OnBeforeServe(conn)
	}
}

func (h *Hooks) servingException(conn net.Conn, err error) {
	if h.OnServingException != nil {
		h.OnServingException(conn, err)
	}
}

func (h *Hooks) afterServe(conn net.Conn) {
	if h.OnAfterServe != nil {
		h.OnAfterServe(conn)
	}
}

func (h *Hooks) serverShuttingDown() {
	if h.OnServerShuttingDown != nil {
		h.OnServerShuttingDown()
	}
}

func (h *Hooks) serverStopped(l Acceptor) {
	if h.OnServerStopped != nil {
		h.OnServerStopped(l)
	}
}

func (h *Hooks) acceptError(err error) {
	if h.OnAcceptError != nil {
		h.OnAcceptError(err)
	}
}

func (h *Hooks) postAcceptError(conn net.Conn, err error) {
	if h.OnPostAcceptError != nil {
		h.OnPostAcceptError(conn, err)
	}
}

// Completion tracks one submitted connection until its handler returns
// and the connection has been closed.
type Completion struct {
	done chan struct{}
	err  error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// Done is closed once the connection has been served and released.
func (c *Completion) Done() <-chan struct{} {
	return c.done
}

// Err returns the handler's error (or *PanicError). Only meaningful after Done.
func (c *Completion) Err() error {
	select {
	case <-c.done:
		return c.err
	default:
		return nil
	}
}

func (c *Completion) finish(err error) {
	c.err = err
	close(c.done)
}
