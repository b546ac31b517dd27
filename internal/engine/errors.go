package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyConfigured is returned by the Config setters while the
	// accept loop is running.
	ErrAlreadyConfigured = errors.New("server already started; configuration is frozen")

	// ErrNotRestartable is returned by Start for a server built around a
	// pre-bound listener that has since been closed.
	ErrNotRestartable = errors.New("pre-bound listener was closed; server cannot be restarted")

	// ErrInvalidConfig wraps every Config validation failure.
	ErrInvalidConfig = errors.New("invalid server config")

	// ErrStopCanceled is the result of a ScheduledStop that was canceled
	// or superseded before it fired.
	ErrStopCanceled = errors.New("scheduled stop canceled")
)

// PanicError carries a panic recovered from a Handler.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("handler panic: %v", e.Value)
}

// Unwrap exposes the panic value when it was itself an error.
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
