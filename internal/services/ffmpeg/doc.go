// Package ffmpeg wraps the ffmpeg command-line encoder behind a small Client
// interface so the batch runner can launch transcodes and observe progress
// updates. Tests swap in fakes to exercise batch behaviour without executing
// the real encoder.
package ffmpeg
