package engine

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/muurk/sockserve/internal/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// counters are shared between a Server and the dispatchers of its runs.
type counters struct {
	accepted atomic.Uint64
	served   atomic.Uint64
	failed   atomic.Uint64
	rejected atomic.Uint64
	busy     atomic.Uint64
}

// dispatcher runs handlers on at most max goroutines at once.
//
// A slot is reserved by the accept loop before it calls Accept and is
// released by the worker once the connection is closed, so every
// successful submit is matched by exactly one release.
type dispatcher struct {
	name     string
	handler  Handler
	hooks    *Hooks
	counters *counters

	sem     *semaphore.Weighted
	running atomic.Int64
	wg      sync.WaitGroup
}

func newDispatcher(name string, max int, h Handler, hooks *Hooks, c *counters) *dispatcher {
	return &dispatcher{
		name:     name,
		handler:  h,
		hooks:    hooks,
		counters: c,
		sem:      semaphore.NewWeighted(int64(max)),
	}
}

// tryReserve takes a slot without blocking.
func (d *dispatcher) tryReserve() bool {
	return d.sem.TryAcquire(1)
}

// awaitSlot waits up to timeout for a slot to free up.
func (d *dispatcher) awaitSlot(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return d.sem.Acquire(ctx, 1) == nil
}

// unreserve hands back a slot that was never given to a worker.
func (d *dispatcher) unreserve() {
	d.sem.Release(1)
}

// submit serves conn on a new worker. The caller must hold a slot, which
// the worker releases when it is done.
func (d *dispatcher) submit(conn net.Conn, c *Completion) {
	d.running.Add(1)
	d.wg.Add(1)
	go d.run(conn, c)
}

func (d *dispatcher) run(conn net.Conn, c *Completion) {
	var err error
	defer func() {
		if cerr := conn.Close(); cerr != nil {
			logging.Debug("Closing served connection",
				zap.String("server", d.name),
				zap.Error(cerr),
			)
		}
		d.hooks.afterServe(conn)
		d.running.Add(-1)
		d.sem.Release(1)
		c.finish(err)
		d.wg.Done()
	}()

	d.hooks.beforeServe(conn)
	err = safeServe(d.handler, conn)
	d.counters.served.Add(1)
	if err != nil {
		d.counters.failed.Add(1)
		d.hooks.servingException(conn, err)
	}
}

// active is the number of connections currently being served.
func (d *dispatcher) active() int {
	return int(d.running.Load())
}

// quiescent reports whether no connection is being served.
func (d *dispatcher) quiescent() bool {
	return d.running.Load() == 0
}

// wait blocks until every submitted connection has been released.
func (d *dispatcher) wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
