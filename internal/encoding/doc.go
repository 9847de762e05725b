// Package encoding runs a confirmed batch of encode jobs.
//
// The Runner walks Idle -> AwaitingConfirmation -> Running -> Completed and
// back to Idle. It works from an immutable session snapshot, processes jobs
// strictly sequentially, and isolates per-file failures so one bad encode
// never aborts the rest of the batch.
package encoding
