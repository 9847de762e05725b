// Package main hosts the bvc entrypoint.
//
// The Cobra-based command tree resolves configuration, sets up structured
// logging, and drops the user into the interactive shell where browsing,
// selection, and batch encoding happen. Keep this package lean: new
// functionality belongs in the internal packages first, surfaced here through
// flags or subcommands.
package main
