// Package storage defines the persistence interfaces for the chat backend.
//
// It provides a high-level abstraction for storing accounts, servers,
// members, channels, messages, read markers, mentions, and invites.
// Implementations of these interfaces (e.g., using SQLite) can be found in
// subpackages.
//
// Every call is atomic on its own; no cross-call transactions are offered,
// and multi-record cleanup paths are ordered best-effort deletes.
package storage
