package encoding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"

	"bvc/internal/browse"
	"bvc/internal/fileutil"
	"bvc/internal/logging"
	"bvc/internal/services/ffmpeg"
	"bvc/internal/session"
)

var (
	// ErrNotReady signals a run attempt while another run is pending or the
	// session is missing selection, bitrate, or output.
	ErrNotReady = session.ErrNotReady
	// ErrOutputUnavailable signals that the output directory could not be
	// created or is locked by another session.
	ErrOutputUnavailable = errors.New("output unavailable")
	// ErrEncodeFailed wraps the encoder diagnostic of a single failed job.
	ErrEncodeFailed = errors.New("encode failed")
)

// State is the runner's position in its lifecycle.
type State int

const (
	Idle State = iota
	AwaitingConfirmation
	Running
	Completed
)

func (s State) String() string {
	switch s {
	case AwaitingConfirmation:
		return "awaiting confirmation"
	case Running:
		return "running"
	case Completed:
		return "completed"
	default:
		return "idle"
	}
}

// Status is the outcome of one encode job.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// JobResult is the per-file outcome of a batch run.
type JobResult struct {
	Source string
	Output string
	Status Status
	Err    error
}

// Report is the complete outcome of one batch run.
type Report struct {
	RunID       string
	BitrateKbps int
	OutputDir   string
	Results     []JobResult
	Started     time.Time
	Finished    time.Time
}

// Succeeded counts jobs that produced an output.
func (r Report) Succeeded() int {
	count := 0
	for _, result := range r.Results {
		if result.Status == StatusSucceeded {
			count++
		}
	}
	return count
}

// Summary is shown to the user before confirmation.
type Summary struct {
	Files       []string
	BitrateKbps int
	OutputDir   string
}

// Progress is streamed back to the interpreter during a run.
type Progress struct {
	Index   int
	Total   int
	Source  string
	Percent float64
	Done    bool
}

// Recorder persists finished runs. A nil Recorder disables recording.
type Recorder interface {
	RecordRun(ctx context.Context, report Report) error
}

// Runner executes one batch of encode jobs strictly sequentially. Jobs never
// overlap; a failed job is captured and the remaining jobs still run.
type Runner struct {
	client   ffmpeg.Client
	prober   browse.Prober
	recorder Recorder
	logger   *slog.Logger
	state    State
	snapshot session.Snapshot
	lastRun  *Report
}

// NewRunner constructs a Runner. prober supplies source durations for
// progress percentages and may be nil; recorder may be nil.
func NewRunner(client ffmpeg.Client, prober browse.Prober, recorder Recorder, logger *slog.Logger) *Runner {
	return &Runner{
		client:   client,
		prober:   prober,
		recorder: recorder,
		logger:   logging.NewComponentLogger(logger, "encoding"),
	}
}

// State returns the runner's current lifecycle state.
func (r *Runner) State() State {
	return r.state
}

// LastRun returns the report of the most recently completed run, or nil.
func (r *Runner) LastRun() *Report {
	return r.lastRun
}

// Prepare freezes the session into a run snapshot and produces the summary to
// confirm. Only reachable from Idle with a fully configured session.
func (r *Runner) Prepare(s *session.Session) (Summary, error) {
	if r.state != Idle {
		return Summary{}, fmt.Errorf("%w: a run is already %s", ErrNotReady, r.state)
	}
	snapshot, err := s.Snapshot()
	if err != nil {
		return Summary{}, err
	}
	r.snapshot = snapshot
	r.state = AwaitingConfirmation

	files := make([]string, len(snapshot.Paths))
	for i, path := range snapshot.Paths {
		files[i] = filepath.Base(path)
	}
	return Summary{
		Files:       files,
		BitrateKbps: snapshot.BitrateKbps,
		OutputDir:   snapshot.OutputDir,
	}, nil
}

// Decline discards the pending snapshot and returns to Idle with no side
// effects.
func (r *Runner) Decline() {
	r.snapshot = session.Snapshot{}
	r.state = Idle
}

// Confirm executes the pending snapshot: the output directory is created if
// absent, then each source file is encoded in snapshot order. Every job's
// outcome is captured independently; the full snapshot is always processed
// unless ctx is cancelled, in which case the remaining jobs are marked
// Skipped and completed outputs stay intact. The runner ends back at Idle.
func (r *Runner) Confirm(ctx context.Context, progress func(Progress)) (Report, error) {
	if r.state != AwaitingConfirmation {
		return Report{}, fmt.Errorf("%w: nothing awaiting confirmation", ErrNotReady)
	}
	snapshot := r.snapshot
	r.snapshot = session.Snapshot{}

	if err := fileutil.EnsureDir(snapshot.OutputDir); err != nil {
		r.state = Idle
		return Report{}, fmt.Errorf("%w: %v", ErrOutputUnavailable, err)
	}

	lock := flock.New(filepath.Join(snapshot.OutputDir, ".bvc.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		r.state = Idle
		return Report{}, fmt.Errorf("%w: acquire lock: %v", ErrOutputUnavailable, err)
	}
	if !locked {
		r.state = Idle
		return Report{}, fmt.Errorf("%w: another run is writing to %s", ErrOutputUnavailable, snapshot.OutputDir)
	}
	defer func() {
		_ = lock.Unlock()
	}()

	r.state = Running
	report := Report{
		RunID:       snapshot.RunID,
		BitrateKbps: snapshot.BitrateKbps,
		OutputDir:   snapshot.OutputDir,
		Started:     time.Now(),
	}
	logger := r.logger.With(logging.String(logging.FieldRunID, snapshot.RunID))
	logger.Info("batch run started",
		logging.Int("jobs", len(snapshot.Paths)),
		logging.Int("bitrate_kbps", snapshot.BitrateKbps),
		logging.String("output_dir", snapshot.OutputDir))

	total := len(snapshot.Paths)
	for i, source := range snapshot.Paths {
		if ctx.Err() != nil {
			report.Results = append(report.Results, JobResult{Source: source, Status: StatusSkipped, Err: ctx.Err()})
			continue
		}
		report.Results = append(report.Results, r.encodeOne(ctx, snapshot, source, i, total, progress, logger))
	}

	report.Finished = time.Now()
	r.state = Completed
	logger.Info("batch run completed",
		logging.Int("succeeded", report.Succeeded()),
		logging.Int("total", total))

	if r.recorder != nil {
		if err := r.recorder.RecordRun(ctx, report); err != nil {
			logger.Warn("record run", logging.Error(err))
		}
	}

	r.lastRun = &report
	r.state = Idle
	return report, nil
}

func (r *Runner) encodeOne(ctx context.Context, snapshot session.Snapshot, source string, index, total int, progress func(Progress), logger *slog.Logger) JobResult {
	output := filepath.Join(snapshot.OutputDir, OutputName(filepath.Base(source)))

	var duration float64
	if r.prober != nil {
		if meta, err := r.prober.Probe(ctx, source); err == nil {
			duration = meta.Duration
		}
	}

	req := ffmpeg.Request{
		Input:           source,
		Output:          output,
		BitrateKbps:     snapshot.BitrateKbps,
		DurationSeconds: duration,
	}
	err := r.client.Encode(ctx, req, func(update ffmpeg.Progress) {
		if progress != nil {
			progress(Progress{
				Index:   index,
				Total:   total,
				Source:  source,
				Percent: update.Percent,
				Done:    update.Done,
			})
		}
	})
	if err != nil {
		logger.Warn("encode job failed", logging.String("source", source), logging.Error(err))
		return JobResult{Source: source, Status: StatusFailed, Err: fmt.Errorf("%w: %v", ErrEncodeFailed, err)}
	}
	logger.Info("encode job finished", logging.String("source", source), logging.String("output", output))
	return JobResult{Source: source, Output: output, Status: StatusSucceeded}
}

// OutputName derives the encoded filename from the source name, marking it
// with a "c" suffix before the extension, e.g. movie.mp4 -> moviec.mp4.
func OutputName(name string) string {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	if stem == "" {
		stem = name
		ext = ""
	}
	return stem + "c" + ext
}
