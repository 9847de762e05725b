// Package history records the batch runs of the live session in an in-memory
// SQLite database so the shell can replay them on demand. The store is
// deliberately session-scoped: bvc persists nothing across restarts.
package history
