// Package transport provides the listening sockets the engine accepts from.
//
// Three families are supported:
//
//   - tcp: a plain *net.TCPListener
//   - tls: TCP with a server-side TLS wrapper that still honours accept deadlines
//   - ws:  an HTTP server that upgrades requests with gorilla/websocket and
//     presents each socket as a net.Conn of concatenated binary messages
//
// All three implement engine.Acceptor plus SetDeadline, so the engine's
// server timeout works the same way on every transport.
//
// The package also loads TLS material from disk or generates a self-signed
// ECDSA certificate in memory for local use.
package transport
