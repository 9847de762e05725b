package shell_test

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"bvc/internal/browse"
	"bvc/internal/encoding"
	"bvc/internal/history"
	"bvc/internal/services/ffmpeg"
	"bvc/internal/session"
	"bvc/internal/shell"
	"bvc/internal/testsupport"
)

type stubEncoder struct {
	requests []ffmpeg.Request
	fail     map[string]bool
}

func (e *stubEncoder) Encode(_ context.Context, req ffmpeg.Request, progress func(ffmpeg.Progress)) error {
	e.requests = append(e.requests, req)
	if e.fail[filepath.Base(req.Input)] {
		return errors.New("stub encoder: codec exploded")
	}
	if progress != nil {
		progress(ffmpeg.Progress{Percent: 100, Done: true})
	}
	return nil
}

func presetLookup(name string) (int, bool) {
	switch strings.ToLower(name) {
	case "low":
		return 1000, true
	case "medium":
		return 2500, true
	case "high":
		return 5000, true
	}
	return 0, false
}

type fixture struct {
	dir     string
	session *session.Session
	encoder *stubEncoder
	history *history.Store
}

func newFixture(t *testing.T, names ...string) *fixture {
	t.Helper()
	dir := testsupport.MediaDir(t, names...)
	lister := browse.NewLister(testsupport.StubProber{}, nil, nil)
	s, err := session.New(context.Background(), lister, presetLookup, dir, nil)
	if err != nil {
		t.Fatal(err)
	}
	store, err := history.Open()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return &fixture{dir: dir, session: s, encoder: &stubEncoder{}, history: store}
}

// drive runs the shell over a scripted stdin and returns everything printed.
func (f *fixture) drive(t *testing.T, script string) string {
	t.Helper()
	runner := encoding.NewRunner(f.encoder, testsupport.StubProber{}, f.history, nil)
	var out strings.Builder
	sh := shell.New(shell.Options{
		Session: f.session,
		Runner:  runner,
		History: f.history,
		Input:   strings.NewReader(script),
		Output:  &out,
	})
	if err := sh.Run(context.Background()); err != nil {
		t.Fatalf("shell run: %v", err)
	}
	return out.String()
}

func TestSelectConfigureRunEncodesEverything(t *testing.T) {
	f := newFixture(t, "a.mp4", "b.mkv")
	out := f.drive(t, strings.Join([]string{
		"add 0",
		"add 1",
		"bitrate medium",
		"output encoded",
		"run",
		"y",
		"history",
		"quit",
	}, "\n"))

	for _, want := range []string{
		"Added a.mp4.",
		"Added b.mkv.",
		"Target bitrate set to 2500 kbps.",
		"About to encode 2 files at 2500 kbps",
		"a.mp4 -> ac.mp4",
		"b.mkv -> bc.mkv",
		"Job Results",
		"2 of 2 succeeded",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if len(f.encoder.requests) != 2 {
		t.Fatalf("expected 2 encode requests, got %d", len(f.encoder.requests))
	}
	if got := f.encoder.requests[0].BitrateKbps; got != 2500 {
		t.Fatalf("request bitrate %d", got)
	}
	if want := filepath.Join(f.dir, "encoded", "ac.mp4"); f.encoder.requests[0].Output != want {
		t.Fatalf("request output %q, want %q", f.encoder.requests[0].Output, want)
	}
	if !strings.Contains(out, "Run ") {
		t.Fatalf("history output missing run line:\n%s", out)
	}
}

func TestFailedCdReportsErrorAndKeepsSelection(t *testing.T) {
	f := newFixture(t, "a.mp4")
	out := f.drive(t, strings.Join([]string{
		"add 0",
		"cd no-such-place",
		"view",
		"quit",
	}, "\n"))

	if !strings.Contains(out, "could not find the folder specified") {
		t.Fatalf("missing cd error:\n%s", out)
	}
	if !strings.Contains(out, filepath.Join(f.dir, "a.mp4")) {
		t.Fatalf("selection not shown after failed cd:\n%s", out)
	}
}

func TestBitratePresetIsCaseInsensitive(t *testing.T) {
	f := newFixture(t, "a.mp4")
	out := f.drive(t, "bitrate LOW\nbitrate low\nquit\n")

	if got := strings.Count(out, "Target bitrate set to 1000 kbps."); got != 2 {
		t.Fatalf("expected identical preset handling, got %d confirmations:\n%s", got, out)
	}
}

func TestConfirmationLoopReasksUntilAnswered(t *testing.T) {
	f := newFixture(t, "a.mp4")
	out := f.drive(t, strings.Join([]string{
		"addall",
		"bitrate 2000",
		"output encoded",
		"run",
		"maybe",
		"n",
		"quit",
	}, "\n"))

	if !strings.Contains(out, "Please answer y or n.") {
		t.Fatalf("missing reask:\n%s", out)
	}
	if !strings.Contains(out, "Run cancelled.") {
		t.Fatalf("missing cancellation:\n%s", out)
	}
	if len(f.encoder.requests) != 0 {
		t.Fatalf("declined run still encoded %d files", len(f.encoder.requests))
	}
}

func TestUnknownCommandAndBadIDDoNotTerminate(t *testing.T) {
	f := newFixture(t, "a.mp4")
	out := f.drive(t, strings.Join([]string{
		"frobnicate",
		"add nine",
		"add 42",
		"quit",
	}, "\n"))

	for _, want := range []string{
		"Unknown command \"frobnicate\"",
		"is not a number",
		"no entry with that ID",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestUnreadyRunListsEveryMissingPiece(t *testing.T) {
	f := newFixture(t, "a.mp4")
	out := f.drive(t, "run\nquit\n")

	for _, want := range []string{
		"selection is empty",
		"target bitrate is unset",
		"output directory is unset",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestListingMarksSelectionAndOutputFolder(t *testing.T) {
	f := newFixture(t, "clips", "a.mp4")
	out := f.drive(t, strings.Join([]string{
		"add 1",
		"output 0",
		"quit",
	}, "\n"))

	if !strings.Contains(out, "<- output") {
		t.Fatalf("output folder marker missing:\n%s", out)
	}
	if !strings.Contains(out, "\u2713") {
		t.Fatalf("selection mark missing:\n%s", out)
	}
}

func TestLongFilenamesAreTruncatedInListing(t *testing.T) {
	f := newFixture(t, "an-extremely-long-video-name.mp4")
	out := f.drive(t, "quit\n")

	if !strings.Contains(out, "an-extremely-long...") {
		t.Fatalf("expected truncated name:\n%s", out)
	}
	if strings.Contains(out, "an-extremely-long-video-name.mp4") {
		t.Fatalf("full name leaked into listing:\n%s", out)
	}
}
