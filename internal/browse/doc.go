// Package browse models the navigable directory index: deterministic listings
// with per-listing entry IDs, file metadata from an injectable prober, and
// path navigation. IDs must be resolved to absolute paths immediately; they
// are reassigned on every listing.
package browse
