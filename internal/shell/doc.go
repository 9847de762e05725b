// Package shell implements the interactive command loop. It parses one
// command per line, delegates to the session and the encoding runner, and
// renders listings, summaries, and run results as tables.
package shell
