// Package config loads, normalizes, and validates bvc configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), and reads TOML files. The Config type centralizes every knob the
// shell needs: encoder binaries, visible extensions, bitrate presets, and log
// routing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
