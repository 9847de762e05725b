package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"

	"bvc/internal/browse"
	"bvc/internal/encoding"
	"bvc/internal/history"
	"bvc/internal/logging"
	"bvc/internal/session"
)

// Options wires the interpreter to its collaborators.
type Options struct {
	Session *session.Session
	Runner  *encoding.Runner
	History *history.Store
	Input   io.Reader
	Output  io.Writer
	// Interactive enables carriage-return progress redraws. Piped input
	// gets line-per-job progress instead.
	Interactive bool
	Logger      *slog.Logger
}

// Shell reads commands line by line and drives the session and the runner.
// It never terminates on a bad command; only quit/exit (or EOF) end the loop.
type Shell struct {
	session     *session.Session
	runner      *encoding.Runner
	history     *history.Store
	in          *bufio.Scanner
	out         io.Writer
	interactive bool
	logger      *slog.Logger
}

// New builds a Shell. Logger may be nil.
func New(opts Options) *Shell {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Shell{
		session:     opts.Session,
		runner:      opts.Runner,
		history:     opts.History,
		in:          bufio.NewScanner(opts.Input),
		out:         opts.Output,
		interactive: opts.Interactive,
		logger:      logging.NewComponentLogger(logger, "shell"),
	}
}

// Run executes the read-eval-print loop until quit, exit, EOF, or context
// cancellation.
func (sh *Shell) Run(ctx context.Context) error {
	sh.printListing()
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		prompt := sh.session.Cwd()
		if sh.interactive {
			prompt = text.FgCyan.Sprint(prompt)
		}
		fmt.Fprintf(sh.out, "%s >> ", prompt)
		line, ok := sh.readLine()
		if !ok {
			fmt.Fprintln(sh.out)
			return nil
		}
		command, arg := splitCommand(line)
		if command == "" {
			continue
		}
		if command == "quit" || command == "exit" {
			return nil
		}
		if err := sh.dispatch(ctx, command, arg); err != nil {
			fmt.Fprintf(sh.out, "Error: %s\n", errorMessage(err))
			continue
		}
		sh.printListing()
	}
}

func (sh *Shell) dispatch(ctx context.Context, command, arg string) error {
	sh.logger.Debug("command", logging.String("name", command), logging.String("arg", arg))
	var err error
	switch command {
	case "cd":
		err = sh.session.Cd(ctx, arg)
	case "add":
		err = sh.cmdAdd(arg)
	case "addall":
		count := sh.session.AddAll()
		fmt.Fprintf(sh.out, "Added %s.\n", plural(count, "file"))
	case "remove":
		err = sh.cmdRemove(arg)
	case "removeall":
		sh.session.RemoveAll()
		fmt.Fprintln(sh.out, "Selection cleared.")
	case "view":
		sh.cmdView()
	case "bitrate":
		err = sh.cmdBitrate(arg)
	case "output":
		err = sh.cmdOutput(arg)
	case "run":
		err = sh.cmdRun(ctx)
	case "history":
		err = sh.cmdHistory(ctx)
	case "help":
		sh.cmdHelp()
	default:
		fmt.Fprintf(sh.out, "Unknown command %q. Type help for the command list.\n", command)
	}
	return err
}

func (sh *Shell) cmdAdd(arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	entry, added, err := sh.session.Add(id)
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintf(sh.out, "%s is already selected.\n", entry.Name)
		return nil
	}
	fmt.Fprintf(sh.out, "Added %s.\n", entry.Name)
	return nil
}

func (sh *Shell) cmdRemove(arg string) error {
	id, err := parseID(arg)
	if err != nil {
		return err
	}
	path, removed, err := sh.session.Remove(id)
	if err != nil {
		return err
	}
	if !removed {
		fmt.Fprintf(sh.out, "%s was not selected.\n", filepath.Base(path))
		return nil
	}
	fmt.Fprintf(sh.out, "Removed %s.\n", filepath.Base(path))
	return nil
}

func (sh *Shell) cmdView() {
	selected := sh.session.Selected()
	if len(selected) == 0 {
		fmt.Fprintln(sh.out, "Nothing selected.")
		return
	}
	rows := make([][]string, 0, len(selected))
	for i, path := range selected {
		rows = append(rows, []string{fmt.Sprintf("%d", i), path})
	}
	fmt.Fprintln(sh.out, renderTable(
		[]string{"#", "Path"},
		rows,
		[]columnAlignment{alignRight, alignLeft},
	))
	if kbps := sh.session.BitrateKbps(); kbps > 0 {
		fmt.Fprintf(sh.out, "Target bitrate: %s\n", formatBitrate(kbps))
	} else {
		fmt.Fprintln(sh.out, "Target bitrate: unset")
	}
	if out := sh.session.OutputDir(); out != "" {
		fmt.Fprintf(sh.out, "Output directory: %s\n", out)
	} else {
		fmt.Fprintln(sh.out, "Output directory: unset")
	}
}

func (sh *Shell) cmdBitrate(arg string) error {
	kbps, err := sh.session.SetBitrate(arg)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Target bitrate set to %s.\n", formatBitrate(kbps))
	return nil
}

func (sh *Shell) cmdOutput(arg string) error {
	dir, err := sh.session.SetOutput(arg)
	if err != nil {
		return err
	}
	fmt.Fprintf(sh.out, "Output directory set to %s.\n", dir)
	return nil
}

func (sh *Shell) cmdRun(ctx context.Context) error {
	summary, err := sh.runner.Prepare(sh.session)
	if err != nil {
		return err
	}
	sh.printSummary(summary)
	for {
		fmt.Fprint(sh.out, "Proceed? (y/n) ")
		answer, ok := sh.readLine()
		if !ok {
			sh.runner.Decline()
			fmt.Fprintln(sh.out, "\nRun cancelled.")
			return nil
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "y":
			report, err := sh.runner.Confirm(ctx, sh.renderProgress)
			if err != nil {
				return err
			}
			sh.printReport(report)
			return nil
		case "n":
			sh.runner.Decline()
			fmt.Fprintln(sh.out, "Run cancelled.")
			return nil
		default:
			fmt.Fprintln(sh.out, "Please answer y or n.")
		}
	}
}

func (sh *Shell) cmdHistory(ctx context.Context) error {
	if sh.history == nil {
		fmt.Fprintln(sh.out, "History is not available.")
		return nil
	}
	runs, err := sh.history.Runs(ctx)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(sh.out, "No runs yet.")
		return nil
	}
	for _, run := range runs {
		fmt.Fprintf(sh.out, "Run %s | %s | %s | started %s\n",
			run.RunID, formatBitrate(run.BitrateKbps), run.OutputDir,
			run.Started.Format("15:04:05"))
		rows := make([][]string, 0, len(run.Jobs))
		for _, job := range run.Jobs {
			rows = append(rows, []string{
				filepath.Base(job.Source),
				filepath.Base(job.Output),
				string(job.Status),
				job.Error,
			})
		}
		fmt.Fprintln(sh.out, renderTable(
			[]string{"Source", "Output", "Status", "Error"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
		))
	}
	return nil
}

func (sh *Shell) cmdHelp() {
	fmt.Fprint(sh.out, `Commands:
  cd <path|..|id>     change directory
  add <id>            select a file from the listing
  addall              select every file in the listing
  remove <id>         deselect a file
  removeall           clear the selection
  view                show the selection, bitrate and output directory
  bitrate <kbps|name> set the target bitrate (number or preset name)
  output <id|path>    set the output directory
  run                 encode the selection after confirmation
  history             show runs from this session
  help                this text
  quit | exit         leave
`)
}

func (sh *Shell) printListing() {
	listing := sh.session.Listing()
	if listing == nil {
		return
	}
	outputDir := sh.session.OutputDir()
	rows := make([][]string, 0, len(listing.Entries))
	for _, entry := range listing.Entries {
		rows = append(rows, listingRow(entry, sh.session, outputDir))
	}
	fmt.Fprintln(sh.out, renderTable(
		[]string{"ID", "Filename", "Extension", "Size", "Duration", "Bitrate", "Selected"},
		rows,
		[]columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	))
}

func listingRow(entry browse.Entry, s *session.Session, outputDir string) []string {
	id := fmt.Sprintf("%d", entry.ID)
	if entry.Kind == browse.KindFolder {
		marker := ""
		if outputDir != "" && entry.Path == outputDir {
			marker = "<- output"
		}
		return []string{id, truncateName(entry.Name), "Folder", "", "", "", marker}
	}
	selected := ""
	if s.IsSelected(entry.Path) {
		selected = "\u2713"
	}
	return []string{
		id,
		truncateName(entry.Name),
		entry.Extension,
		formatSize(entry.Size),
		formatDuration(entry.Duration),
		formatBitrate(entry.Bitrate),
		selected,
	}
}

func (sh *Shell) printSummary(summary encoding.Summary) {
	fmt.Fprintf(sh.out, "About to encode %s at %s into %s:\n",
		plural(len(summary.Files), "file"), formatBitrate(summary.BitrateKbps), summary.OutputDir)
	for _, file := range summary.Files {
		fmt.Fprintf(sh.out, "  %s -> %s\n",
			filepath.Base(file), encoding.OutputName(filepath.Base(file)))
	}
}

func (sh *Shell) printReport(report encoding.Report) {
	rows := make([][]string, 0, len(report.Results))
	for _, result := range report.Results {
		detail := ""
		if result.Err != nil {
			detail = result.Err.Error()
		}
		rows = append(rows, []string{
			filepath.Base(result.Source),
			filepath.Base(result.Output),
			string(result.Status),
			detail,
		})
	}
	fmt.Fprintln(sh.out, "Job Results")
	fmt.Fprintln(sh.out, renderTable(
		[]string{"Source", "Output", "Status", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
	))
	fmt.Fprintf(sh.out, "%d of %d succeeded in %s.\n",
		report.Succeeded(), len(report.Results),
		report.Finished.Sub(report.Started).Round(10*time.Millisecond))
}

func (sh *Shell) renderProgress(p encoding.Progress) {
	name := filepath.Base(p.Source)
	if sh.interactive {
		fmt.Fprintf(sh.out, "\r%d/%d %s %3.0f%%", p.Index+1, p.Total, name, p.Percent)
		if p.Done {
			fmt.Fprintln(sh.out)
		}
		return
	}
	if p.Done {
		fmt.Fprintf(sh.out, "%d/%d %s done\n", p.Index+1, p.Total, name)
	}
}

func (sh *Shell) readLine() (string, bool) {
	if !sh.in.Scan() {
		return "", false
	}
	return sh.in.Text(), true
}

// splitCommand separates the command word from its argument. The argument is
// everything after the first run of whitespace, so paths with spaces survive
// without quoting.
func splitCommand(line string) (string, string) {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return "", ""
	}
	idx := strings.IndexAny(trimmed, " \t")
	if idx < 0 {
		return strings.ToLower(trimmed), ""
	}
	return strings.ToLower(trimmed[:idx]), strings.TrimSpace(trimmed[idx+1:])
}

var errBadID = errors.New("invalid id")

func parseID(arg string) (int, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return 0, fmt.Errorf("%w: an entry ID is required", errBadID)
	}
	id, err := strconv.Atoi(arg)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", errBadID, arg)
	}
	return id, nil
}

func errorMessage(err error) string {
	switch {
	case errors.Is(err, browse.ErrPathNotFound):
		return "could not find the folder specified"
	case errors.Is(err, browse.ErrNotADirectory):
		return "that path is not a folder"
	case errors.Is(err, browse.ErrUnknownID):
		return "no entry with that ID in the current listing"
	case errors.Is(err, session.ErrNotAFile):
		return "that entry is a folder, not a file"
	case errors.Is(err, session.ErrInvalidBitrate):
		return "bitrate must be a positive number of kbps or a preset name"
	case errors.Is(err, session.ErrInvalidPath):
		return "that path cannot be used as an output directory"
	default:
		return err.Error()
	}
}
