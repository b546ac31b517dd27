package engine

import (
	"net"
	"runtime/debug"
)

// Handler serves one accepted connection. The engine closes the connection
// after Serve returns, so implementations need not.
type Handler interface {
	Serve(conn net.Conn) error
}

// HandlerFunc adapts an ordinary function to Handler.
type HandlerFunc func(conn net.Conn) error

// Serve calls f(conn).
func (f HandlerFunc) Serve(conn net.Conn) error {
	return f(conn)
}

// safeServe runs h and converts a panic into a *PanicError.
func safeServe(h Handler, conn net.Conn) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Value: r, Stack: debug.Stack()}
		}
	}()
	return h.Serve(conn)
}
