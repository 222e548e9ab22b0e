// Package session owns the per-connection side of NGP.
//
// Ownership boundary:
// - player connection state (stream, receive buffer, name, number)
// - the OPEN/WAIT handshake gate
// - transport timeouts, TLS policy and reconnect backoff
//
// A Player is owned by exactly one goroutine at a time: the lobby during the
// handshake, then the match that paired it.
package session
