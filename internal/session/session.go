package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"bvc/internal/browse"
	"bvc/internal/logging"
	"bvc/internal/selection"
)

var (
	// ErrNotAFile signals an add of a folder entry.
	ErrNotAFile = errors.New("not a file")
	// ErrInvalidBitrate signals a bitrate token that is neither a positive
	// integer nor a known preset name.
	ErrInvalidBitrate = errors.New("invalid bitrate")
	// ErrInvalidPath signals a syntactically malformed output path.
	ErrInvalidPath = errors.New("invalid path")
	// ErrNotReady signals a run attempt before selection, bitrate, and output
	// are all set.
	ErrNotReady = errors.New("not ready")
)

// Snapshot is an immutable copy of the selection and run configuration, taken
// at confirmation time. Later session mutation never affects an in-flight run.
type Snapshot struct {
	RunID       string
	Paths       []string
	BitrateKbps int
	OutputDir   string
}

// Session carries all state of one interactive sitting: the current directory
// and its listing, the selection set, and the run configuration. It replaces
// ambient process state so tests can drive it against fake directory content.
type Session struct {
	lister    *browse.Lister
	presets   func(name string) (int, bool)
	logger    *slog.Logger
	cwd       string
	listing   *browse.Listing
	selection *selection.Set
	bitrate   int
	outputDir string
}

// New starts a session rooted at startDir and renders its first listing.
// presets resolves named bitrate presets to kbps; nil disables presets.
func New(ctx context.Context, lister *browse.Lister, presets func(string) (int, bool), startDir string, logger *slog.Logger) (*Session, error) {
	if presets == nil {
		presets = func(string) (int, bool) { return 0, false }
	}
	s := &Session{
		lister:    lister,
		presets:   presets,
		logger:    logging.NewComponentLogger(logger, "session"),
		selection: selection.New(),
	}

	absolute, err := filepath.Abs(browse.TrimQuotes(startDir))
	if err != nil {
		return nil, fmt.Errorf("resolve start directory: %w", err)
	}
	dir, err := browse.Navigate(absolute, ".")
	if err != nil {
		return nil, err
	}
	s.cwd = dir
	if err := s.Refresh(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// Cwd returns the session's current directory.
func (s *Session) Cwd() string {
	return s.cwd
}

// Listing returns the most recent directory listing.
func (s *Session) Listing() *browse.Listing {
	return s.listing
}

// Refresh re-lists the current directory, reassigning entry IDs.
func (s *Session) Refresh(ctx context.Context) error {
	listing, err := s.lister.List(ctx, s.cwd)
	if err != nil {
		return err
	}
	s.listing = listing
	return nil
}

// Cd navigates to target and renders its listing. On failure the current
// directory and listing are unchanged.
func (s *Session) Cd(ctx context.Context, target string) error {
	dir, err := browse.Navigate(s.cwd, target)
	if err != nil {
		return err
	}
	listing, err := s.lister.List(ctx, dir)
	if err != nil {
		return err
	}
	s.cwd = dir
	s.listing = listing
	s.logger.Debug("changed directory", logging.String("dir", dir), logging.Int("entries", len(listing.Entries)))
	return nil
}

// Add selects the file entry with the given listing ID. The ID is resolved to
// an absolute path immediately; a duplicate add reports added=false.
func (s *Session) Add(id int) (browse.Entry, bool, error) {
	entry, err := s.listing.Resolve(id)
	if err != nil {
		return browse.Entry{}, false, err
	}
	if !entry.IsFile() {
		return entry, false, fmt.Errorf("%w: %s is a folder", ErrNotAFile, entry.Name)
	}
	return entry, s.selection.Add(entry.Path), nil
}

// AddAll selects every file entry of the current listing and returns the
// number of newly added paths.
func (s *Session) AddAll() int {
	added := 0
	for _, entry := range s.listing.Files() {
		if s.selection.Add(entry.Path) {
			added++
		}
	}
	return added
}

// Remove deselects the entry with the given listing ID. Returns the resolved
// path and whether it was actually selected.
func (s *Session) Remove(id int) (string, bool, error) {
	entry, err := s.listing.Resolve(id)
	if err != nil {
		return "", false, err
	}
	return entry.Path, s.selection.Remove(entry.Path), nil
}

// RemoveAll clears the selection.
func (s *Session) RemoveAll() {
	s.selection.Clear()
}

// Selected returns the selected paths in insertion order.
func (s *Session) Selected() []string {
	return s.selection.Paths()
}

// IsSelected reports whether path is in the selection.
func (s *Session) IsSelected(path string) bool {
	return s.selection.Contains(path)
}

// SetBitrate parses token as a positive integer kbps or a case-insensitive
// preset name and stores the resolved value, which it returns.
func (s *Session) SetBitrate(token string) (int, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return 0, fmt.Errorf("%w: empty value", ErrInvalidBitrate)
	}
	if kbps, err := strconv.Atoi(token); err == nil {
		if kbps <= 0 {
			return 0, fmt.Errorf("%w: %d is not positive", ErrInvalidBitrate, kbps)
		}
		s.bitrate = kbps
		return kbps, nil
	}
	if kbps, ok := s.presets(token); ok {
		s.bitrate = kbps
		return kbps, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidBitrate, token)
}

// BitrateKbps returns the configured target bitrate, 0 when unset.
func (s *Session) BitrateKbps() int {
	return s.bitrate
}

// SetOutput stores the output directory. A numeric token is resolved against
// the current listing and must name a folder; anything else is treated as a
// path, normalized to absolute against the current directory. The directory
// need not exist yet.
func (s *Session) SetOutput(token string) (string, error) {
	token = browse.TrimQuotes(token)
	if token == "" {
		return "", fmt.Errorf("%w: empty value", ErrInvalidPath)
	}

	if id, err := strconv.Atoi(token); err == nil {
		entry, err := s.listing.Resolve(id)
		if err != nil {
			return "", err
		}
		if entry.IsFile() {
			return "", fmt.Errorf("%w: %s is a file", browse.ErrNotADirectory, entry.Name)
		}
		s.outputDir = entry.Path
		return entry.Path, nil
	}

	if strings.ContainsRune(token, 0) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, token)
	}
	dir := token
	if !filepath.IsAbs(dir) {
		dir = filepath.Join(s.cwd, dir)
	}
	dir = filepath.Clean(dir)
	s.outputDir = dir
	return dir, nil
}

// OutputDir returns the configured output directory, "" when unset.
func (s *Session) OutputDir() string {
	return s.outputDir
}

// Snapshot freezes the selection and run configuration for a batch run. The
// error lists every readiness condition that is still missing.
func (s *Session) Snapshot() (Snapshot, error) {
	var missing []string
	if s.selection.Len() == 0 {
		missing = append(missing, "selection is empty")
	}
	if s.bitrate == 0 {
		missing = append(missing, "target bitrate is unset")
	}
	if s.outputDir == "" {
		missing = append(missing, "output directory is unset")
	}
	if len(missing) > 0 {
		return Snapshot{}, fmt.Errorf("%w: %s", ErrNotReady, strings.Join(missing, ", "))
	}
	return Snapshot{
		RunID:       uuid.NewString(),
		Paths:       s.selection.Paths(),
		BitrateKbps: s.bitrate,
		OutputDir:   s.outputDir,
	}, nil
}
