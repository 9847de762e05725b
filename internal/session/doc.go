// Package session owns the state of one interactive sitting: current
// directory, latest listing, selection set, and run configuration. Snapshot
// freezes that state into the immutable input of a batch run.
package session
