// Package ffprobe provides a typed wrapper around ffprobe JSON output.
//
// Inspect executes the ffprobe binary and returns a parsed Result; helper
// methods expose the container duration, size, and bitrate the directory
// listing needs. The package has no bvc-specific dependencies.
package ffprobe
