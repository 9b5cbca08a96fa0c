// Package chat implements the cache-consistency and realtime-fanout core of
// the platform.
//
// It keeps read-through projections, channel lifecycle rules, and WebSocket
// room fan-out isolated from each other: storage is the durable source of
// truth, cache holds the hot projections, domain owns the mutation rules, and
// app is the transport that keeps connected clients in sync.
package chat
