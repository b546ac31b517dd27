// Package engine implements a reusable connection-accepting server.
//
// A Server owns one listener, runs one accept goroutine, and serves every
// accepted connection on a worker goroutine through a Handler. The number of
// connections inside Handler.Serve never exceeds Config.MaxConnections:
// the accept loop reserves a worker slot before it calls Accept, so it never
// takes a connection it cannot hand off immediately.
//
// # State Machine
//
//	NotStarted → Starting → Ready ⇄ Busy → ShuttingDown → Stopped
//	                 ↓                                       ↑
//	                 └──────────── bind failure ─────────────┘
//
// Stopped is not terminal: Start binds a fresh listener. A server created
// with NewWithListener reuses its pre-bound listener and cannot be
// restarted once that listener is closed.
//
// # Accept Loop
//
// Each iteration:
//  1. Admission: if every slot is taken, enter Busy, call OnServerBusy and
//     wait up to BusyTimeout for a completion, then re-check.
//  2. Enter Ready, call OnServerReady and block in Accept (bounded by
//     ServerTimeout when the listener supports deadlines).
//  3. On success arm SocketTimeout; a failure there drops only that
//     connection (OnPostAcceptError). An accept error after Stop ends the
//     loop quietly. A timeout with nothing in service shuts the server
//     down (OnServerShuttingDown). Any other error is fatal (OnAcceptError).
//  4. Call OnSubmitted and start the worker.
//
// Whatever ends the loop, the listener is closed and OnServerStopped runs.
//
// # Workers
//
// A worker calls OnBeforeServe, runs the Handler, reports a returned error
// or recovered panic to OnServingException, closes the connection, calls
// OnAfterServe and only then frees its slot.
//
// # Stopping
//
// Stop closes the listener, which is the only way to unblock an Accept
// without a deadline. It does not wait for connections in service; use
// Wait for that. ScheduleStop arranges a Stop after a delay; a newer
// schedule supersedes an older one.
//
// # Usage
//
//	srv, err := engine.New(engine.Config{
//	    Address:        ":7007",
//	    MaxConnections: 8,
//	    SocketTimeout:  30 * time.Second,
//	}, services.Echo(), engine.WithName("echo"))
//	if err != nil {
//	    return err
//	}
//	if !srv.StartAndWaitReady(5 * time.Second) {
//	    return fmt.Errorf("echo server did not become ready")
//	}
//	defer srv.Stop()
package engine
