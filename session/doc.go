// Package session keeps conversation threads between runs.
//
// A run only sees the messages it is started with. The HTTP server uses a
// Store to continue a thread: it prepends the stored messages to the request
// and appends the exchanged messages once the run has finished.
//
// Add additional backends (Redis, Postgres, etc.) in sub‑packages without
// changing any calling code; only the wiring layer decides which
// implementation to instantiate.
package session
