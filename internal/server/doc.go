// Package server supervises the set of sockserve listeners described by
// the configuration file.
//
// For every configured server the supervisor looks up the service
// handler, binds the requested transport, and creates an engine.Server
// with logging hooks attached. TLS servers also get a hook that forces
// the handshake before the handler runs and logs the negotiated version,
// cipher suite, SNI name and client certificate subject.
//
// # Usage Example
//
//	cfg, err := config.Load("")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sup, err := server.New(cfg, server.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start waits until every listener is accepting.
//	if err := sup.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Run blocks until a signal arrives or every server stops.
//	if err := sup.Run(context.Background()); err != nil {
//	    log.Println(err)
//	}
//
// # Graceful Shutdown
//
// The supervisor handles SIGINT and SIGTERM signals for graceful shutdown:
//  1. Withdraw mDNS advertisements
//  2. Stop every server so no new connections are accepted
//  3. Wait for in-flight connections until shutdown_timeout expires
//
// Servers that stop on their own (a scheduled stop_after, or the idle
// server_timeout) simply drop out; once all have stopped Run returns.
package server
