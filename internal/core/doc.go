// Package core implements the in-memory presence layer: the connection
// registry that tracks which identity owns which live connections, the
// broadcaster that fans events out to them, and the router that dispatches
// inbound frames. State is per-process and lost on restart; durable records
// live in the store.
package core
