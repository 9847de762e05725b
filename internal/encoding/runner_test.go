package encoding_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/gofrs/flock"

	"bvc/internal/browse"
	"bvc/internal/encoding"
	"bvc/internal/services/ffmpeg"
	"bvc/internal/session"
	"bvc/internal/testsupport"
)

// stubEncoder records requests and fails the sources listed in fail.
type stubEncoder struct {
	requests []ffmpeg.Request
	fail     map[string]bool
	onEncode func(req ffmpeg.Request)
}

func (e *stubEncoder) Encode(_ context.Context, req ffmpeg.Request, progress func(ffmpeg.Progress)) error {
	e.requests = append(e.requests, req)
	if e.onEncode != nil {
		e.onEncode(req)
	}
	if e.fail[filepath.Base(req.Input)] {
		return errors.New("stub encoder: codec exploded")
	}
	if progress != nil {
		progress(ffmpeg.Progress{Percent: 50, OutTimeSecs: req.DurationSeconds / 2})
		progress(ffmpeg.Progress{Percent: 100, Done: true})
	}
	return nil
}

type recordedRun struct {
	reports []encoding.Report
}

func (r *recordedRun) RecordRun(_ context.Context, report encoding.Report) error {
	r.reports = append(r.reports, report)
	return nil
}

func readySession(t *testing.T, names ...string) (*session.Session, string) {
	t.Helper()
	dir := testsupport.MediaDir(t, names...)
	lister := browse.NewLister(testsupport.StubProber{}, nil, nil)
	s, err := session.New(context.Background(), lister, nil, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	s.AddAll()
	if _, err := s.SetBitrate("2500"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.SetOutput("encoded"); err != nil {
		t.Fatal(err)
	}
	return s, dir
}

func TestPrepareRequiresReadySession(t *testing.T) {
	dir := testsupport.MediaDir(t)
	lister := browse.NewLister(testsupport.StubProber{}, nil, nil)
	s, err := session.New(context.Background(), lister, nil, dir, nil)
	if err != nil {
		t.Fatal(err)
	}

	runner := encoding.NewRunner(&stubEncoder{}, nil, nil, nil)
	if _, err := runner.Prepare(s); !errors.Is(err, session.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
	if runner.State() != encoding.Idle {
		t.Fatalf("failed prepare left state %s", runner.State())
	}
}

func TestPrepareProducesSummaryAndDeclineRollsBack(t *testing.T) {
	s, dir := readySession(t, "a.mp4", "b.mkv")
	runner := encoding.NewRunner(&stubEncoder{}, nil, nil, nil)

	summary, err := runner.Prepare(s)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if runner.State() != encoding.AwaitingConfirmation {
		t.Fatalf("state %s after prepare", runner.State())
	}
	if len(summary.Files) != 2 || summary.Files[0] != "a.mp4" {
		t.Fatalf("unexpected summary files: %v", summary.Files)
	}
	if summary.BitrateKbps != 2500 || summary.OutputDir != filepath.Join(dir, "encoded") {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	// Prepare is unreachable while a run is pending.
	if _, err := runner.Prepare(s); !errors.Is(err, encoding.ErrNotReady) {
		t.Fatalf("expected ErrNotReady for nested prepare, got %v", err)
	}

	runner.Decline()
	if runner.State() != encoding.Idle {
		t.Fatalf("state %s after decline", runner.State())
	}
	if got := s.Selected(); len(got) != 2 {
		t.Fatalf("decline disturbed selection: %v", got)
	}
}

func TestConfirmEncodesEverySelectedFileInOrder(t *testing.T) {
	s, dir := readySession(t, "a.mp4", "b.mkv")
	enc := &stubEncoder{}
	recorder := &recordedRun{}
	runner := encoding.NewRunner(enc, testsupport.StubProber{}, recorder, nil)

	if _, err := runner.Prepare(s); err != nil {
		t.Fatal(err)
	}
	report, err := runner.Confirm(context.Background(), nil)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if len(report.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(report.Results))
	}
	outDir := filepath.Join(dir, "encoded")
	wantOutputs := []string{filepath.Join(outDir, "ac.mp4"), filepath.Join(outDir, "bc.mkv")}
	for i, result := range report.Results {
		if result.Status != encoding.StatusSucceeded {
			t.Fatalf("result %d: %+v", i, result)
		}
		if result.Output != wantOutputs[i] {
			t.Fatalf("result %d output %q, want %q", i, result.Output, wantOutputs[i])
		}
	}
	if len(enc.requests) != 2 || enc.requests[0].Input != filepath.Join(dir, "a.mp4") {
		t.Fatalf("unexpected encode order: %+v", enc.requests)
	}
	if enc.requests[0].BitrateKbps != 2500 {
		t.Fatalf("bitrate not threaded: %+v", enc.requests[0])
	}
	if !fileExists(outDir) {
		t.Fatal("output directory was not created")
	}
	if runner.State() != encoding.Idle {
		t.Fatalf("state %s after run", runner.State())
	}
	if len(recorder.reports) != 1 || recorder.reports[0].RunID != report.RunID {
		t.Fatalf("run not recorded: %+v", recorder.reports)
	}

	// Session state survives for a re-run.
	if got := s.Selected(); len(got) != 2 {
		t.Fatalf("selection disturbed by run: %v", got)
	}
	if s.BitrateKbps() != 2500 || s.OutputDir() == "" {
		t.Fatal("run configuration disturbed by run")
	}
}

func TestConfirmIsolatesSingleJobFailure(t *testing.T) {
	s, _ := readySession(t, "a.mp4", "b.mkv", "c.mp4")
	enc := &stubEncoder{fail: map[string]bool{"b.mkv": true}}
	runner := encoding.NewRunner(enc, nil, nil, nil)

	if _, err := runner.Prepare(s); err != nil {
		t.Fatal(err)
	}
	report, err := runner.Confirm(context.Background(), nil)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}

	if len(report.Results) != 3 {
		t.Fatalf("expected full result table, got %d rows", len(report.Results))
	}
	for i, want := range []encoding.Status{encoding.StatusSucceeded, encoding.StatusFailed, encoding.StatusSucceeded} {
		if report.Results[i].Status != want {
			t.Fatalf("result %d status %s, want %s", i, report.Results[i].Status, want)
		}
	}
	failed := report.Results[1]
	if !errors.Is(failed.Err, encoding.ErrEncodeFailed) {
		t.Fatalf("expected ErrEncodeFailed, got %v", failed.Err)
	}
	if report.Succeeded() != 2 {
		t.Fatalf("Succeeded() = %d", report.Succeeded())
	}
	if len(enc.requests) != 3 {
		t.Fatalf("failure aborted the batch: %d requests", len(enc.requests))
	}
}

func TestConfirmFailsWhenOutputDirUncreatable(t *testing.T) {
	s, dir := readySession(t, "a.mp4")
	// Occupy the output path with a file so MkdirAll fails.
	testsupport.WriteFile(t, filepath.Join(dir, "encoded"), 1)

	runner := encoding.NewRunner(&stubEncoder{}, nil, nil, nil)
	if _, err := runner.Prepare(s); err != nil {
		t.Fatal(err)
	}
	_, err := runner.Confirm(context.Background(), nil)
	if !errors.Is(err, encoding.ErrOutputUnavailable) {
		t.Fatalf("expected ErrOutputUnavailable, got %v", err)
	}
	if runner.State() != encoding.Idle {
		t.Fatalf("state %s after aborted run", runner.State())
	}
}

func TestConfirmRefusesContestedOutputDir(t *testing.T) {
	s, dir := readySession(t, "a.mp4")
	outputDir := filepath.Join(dir, "encoded")
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		t.Fatal(err)
	}
	held := flock.New(filepath.Join(outputDir, ".bvc.lock"))
	if err := held.Lock(); err != nil {
		t.Fatal(err)
	}
	defer held.Unlock()

	runner := encoding.NewRunner(&stubEncoder{}, nil, nil, nil)
	if _, err := runner.Prepare(s); err != nil {
		t.Fatal(err)
	}
	_, err := runner.Confirm(context.Background(), nil)
	if !errors.Is(err, encoding.ErrOutputUnavailable) {
		t.Fatalf("expected ErrOutputUnavailable, got %v", err)
	}
}

func TestConfirmCancellationSkipsRemainingJobs(t *testing.T) {
	s, _ := readySession(t, "a.mp4", "b.mkv", "c.mp4")
	ctx, cancel := context.WithCancel(context.Background())
	enc := &stubEncoder{}
	enc.onEncode = func(ffmpeg.Request) {
		// Cancel while the first job is in flight; it runs to completion,
		// the rest are skipped.
		cancel()
	}
	runner := encoding.NewRunner(enc, nil, nil, nil)

	if _, err := runner.Prepare(s); err != nil {
		t.Fatal(err)
	}
	report, err := runner.Confirm(ctx, nil)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if len(report.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(report.Results))
	}
	if report.Results[0].Status != encoding.StatusSucceeded {
		t.Fatalf("first job should have completed: %+v", report.Results[0])
	}
	for _, result := range report.Results[1:] {
		if result.Status != encoding.StatusSkipped {
			t.Fatalf("expected skipped job, got %+v", result)
		}
	}
	if len(enc.requests) != 1 {
		t.Fatalf("cancelled run still launched %d encodes", len(enc.requests))
	}
}

func TestConfirmStreamsProgress(t *testing.T) {
	s, _ := readySession(t, "a.mp4", "b.mkv")
	runner := encoding.NewRunner(&stubEncoder{}, testsupport.StubProber{}, nil, nil)

	if _, err := runner.Prepare(s); err != nil {
		t.Fatal(err)
	}
	var updates []encoding.Progress
	if _, err := runner.Confirm(context.Background(), func(p encoding.Progress) {
		updates = append(updates, p)
	}); err != nil {
		t.Fatal(err)
	}
	if len(updates) != 4 {
		t.Fatalf("expected 4 progress updates, got %d", len(updates))
	}
	if updates[0].Index != 0 || updates[0].Total != 2 {
		t.Fatalf("unexpected first update: %+v", updates[0])
	}
	if !updates[3].Done || updates[3].Index != 1 {
		t.Fatalf("unexpected last update: %+v", updates[3])
	}
}

func TestConfirmWithoutPrepare(t *testing.T) {
	runner := encoding.NewRunner(&stubEncoder{}, nil, nil, nil)
	if _, err := runner.Confirm(context.Background(), nil); !errors.Is(err, encoding.ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}

func TestOutputName(t *testing.T) {
	cases := map[string]string{
		"movie.mp4":   "moviec.mp4",
		"a.b.mkv":     "a.bc.mkv",
		"noextension": "noextensionc",
		".hidden":     ".hiddenc",
	}
	for in, want := range cases {
		if got := encoding.OutputName(in); got != want {
			t.Fatalf("OutputName(%q) = %q, want %q", in, got, want)
		}
	}
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
