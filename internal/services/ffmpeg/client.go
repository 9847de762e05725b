package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

var commandContext = exec.CommandContext

// Progress captures encode progress events parsed from ffmpeg's machine
// readable progress stream.
type Progress struct {
	Percent     float64
	OutTimeSecs float64
	Done        bool
}

// Request describes one encode invocation.
type Request struct {
	Input           string
	Output          string
	BitrateKbps     int
	DurationSeconds float64
}

// Client defines encoder behaviour. The core assumes nothing about the
// encoder beyond this contract.
type Client interface {
	Encode(ctx context.Context, req Request, progress func(Progress)) error
}

// Option configures the CLI client.
type Option func(*CLI)

// WithBinary overrides the default binary name.
func WithBinary(binary string) Option {
	return func(c *CLI) {
		if binary != "" {
			c.binary = binary
		}
	}
}

// WithCodec overrides the default video codec.
func WithCodec(codec string) Option {
	return func(c *CLI) {
		if codec != "" {
			c.codec = codec
		}
	}
}

// CLI wraps the ffmpeg command-line encoder.
type CLI struct {
	binary string
	codec  string
}

// NewCLI constructs a CLI client using defaults.
func NewCLI(opts ...Option) *CLI {
	cli := &CLI{binary: "ffmpeg", codec: "libx264"}
	for _, opt := range opts {
		opt(cli)
	}
	return cli
}

func (c *CLI) args(req Request) []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-progress", "pipe:1",
		"-nostats",
		"-i", req.Input,
		"-c:v", c.codec,
		"-b:v", strconv.Itoa(req.BitrateKbps) + "k",
		"-y", req.Output,
	}
}

// Encode launches ffmpeg and blocks until it finishes. Progress events are
// derived from out_time_us lines against the request's source duration.
func (c *CLI) Encode(ctx context.Context, req Request, progress func(Progress)) error {
	if strings.TrimSpace(req.Input) == "" {
		return errors.New("input path required")
	}
	if strings.TrimSpace(req.Output) == "" {
		return errors.New("output path required")
	}
	if req.BitrateKbps <= 0 {
		return fmt.Errorf("target bitrate must be positive, got %d", req.BitrateKbps)
	}

	cmd := commandContext(ctx, c.binary, c.args(req)...) //nolint:gosec
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		update, ok := parseProgressLine(scanner.Text(), req.DurationSeconds)
		if ok && progress != nil {
			progress(update)
		}
	}
	if err := scanner.Err(); err != nil {
		_ = cmd.Wait()
		return fmt.Errorf("read ffmpeg output: %w", err)
	}

	if err := cmd.Wait(); err != nil {
		diagnostic := strings.TrimSpace(stderr.String())
		if diagnostic != "" {
			return fmt.Errorf("ffmpeg encode failed: %w: %s", err, diagnostic)
		}
		return fmt.Errorf("ffmpeg encode failed: %w", err)
	}
	return nil
}

// parseProgressLine interprets one key=value line of ffmpeg -progress output.
func parseProgressLine(line string, durationSeconds float64) (Progress, bool) {
	key, value, found := strings.Cut(strings.TrimSpace(line), "=")
	if !found {
		return Progress{}, false
	}
	switch key {
	case "out_time_us", "out_time_ms":
		// Both keys carry microseconds; ffmpeg kept the historic _ms name.
		micros, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
		if err != nil || micros < 0 {
			return Progress{}, false
		}
		seconds := float64(micros) / 1e6
		update := Progress{OutTimeSecs: seconds}
		if durationSeconds > 0 {
			percent := seconds / durationSeconds * 100
			if percent > 100 {
				percent = 100
			}
			update.Percent = percent
		}
		return update, true
	case "progress":
		if strings.TrimSpace(value) == "end" {
			return Progress{Percent: 100, Done: true}, true
		}
	}
	return Progress{}, false
}

var _ Client = (*CLI)(nil)
