// Package session provides the in-memory per-session state used by the
// proxy: a string key/value memory map per session ID, created on first
// reference and removed by a periodic idle sweep. Evicted sessions can
// be handed to an archiver for write-only history.
package session
