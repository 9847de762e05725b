package browse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bvc/internal/logging"
)

var (
	// ErrPathNotFound signals a navigation target that does not exist.
	ErrPathNotFound = errors.New("path not found")
	// ErrNotADirectory signals a navigation target that exists but is a file.
	ErrNotADirectory = errors.New("not a directory")
	// ErrUnknownID signals an entry ID outside the most recent listing.
	ErrUnknownID = errors.New("unknown ID")
)

// Kind distinguishes listed files from folders.
type Kind int

const (
	KindFile Kind = iota
	KindFolder
)

func (k Kind) String() string {
	if k == KindFolder {
		return "folder"
	}
	return "file"
}

// Entry is one filesystem item in a directory listing. IDs are assigned per
// listing in display order and are only meaningful against that listing.
type Entry struct {
	ID        int
	Name      string
	Path      string
	Kind      Kind
	Extension string
	Size      int64
	Duration  float64
	Bitrate   int
}

// IsFile reports whether the entry is a regular file.
func (e Entry) IsFile() bool {
	return e.Kind == KindFile
}

// Metadata carries the probed media properties of a file.
type Metadata struct {
	Size     int64
	Duration float64
	Bitrate  int
}

// Prober inspects a media file. Injectable so listings can be built without
// touching real media.
type Prober interface {
	Probe(ctx context.Context, path string) (Metadata, error)
}

// Listing is one rendered directory: entries in display order with their IDs.
type Listing struct {
	Dir     string
	Entries []Entry
}

// Resolve maps an ID from this listing back to its entry.
func (l *Listing) Resolve(id int) (Entry, error) {
	if l == nil || id < 0 || id >= len(l.Entries) {
		return Entry{}, fmt.Errorf("%w: %d", ErrUnknownID, id)
	}
	return l.Entries[id], nil
}

// Files returns the file entries of the listing in display order.
func (l *Listing) Files() []Entry {
	if l == nil {
		return nil
	}
	files := make([]Entry, 0, len(l.Entries))
	for _, entry := range l.Entries {
		if entry.IsFile() {
			files = append(files, entry)
		}
	}
	return files
}

// Lister builds directory listings. Listings are recomputed on every call and
// never cached, so staleness cannot silently persist.
type Lister struct {
	prober  Prober
	visible func(ext string) bool
	logger  *slog.Logger
}

// NewLister constructs a Lister. visible filters file extensions (without the
// leading dot); a nil filter shows every file.
func NewLister(prober Prober, visible func(ext string) bool, logger *slog.Logger) *Lister {
	if visible == nil {
		visible = func(string) bool { return true }
	}
	return &Lister{
		prober:  prober,
		visible: visible,
		logger:  logging.NewComponentLogger(logger, "browse"),
	}
}

// List reads dir and returns its visible entries: folders first, then files,
// each group sorted by name ascending (case-insensitive). IDs are assigned
// 0..n-1 in display order. A probe failure on a single file is not fatal; the
// entry is listed with zero metadata.
func (l *Lister) List(ctx context.Context, dir string) (*Listing, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrPathNotFound, dir)
		}
		return nil, fmt.Errorf("read directory %s: %w", dir, err)
	}

	var folders, files []Entry
	for _, dirEntry := range entries {
		name := dirEntry.Name()
		path := filepath.Join(dir, name)
		if dirEntry.IsDir() {
			folders = append(folders, Entry{Name: name, Path: path, Kind: KindFolder})
			continue
		}
		if !dirEntry.Type().IsRegular() {
			continue
		}
		ext := strings.TrimPrefix(filepath.Ext(name), ".")
		if !l.visible(ext) {
			continue
		}
		entry := Entry{Name: name, Path: path, Kind: KindFile, Extension: ext}
		if l.prober != nil {
			meta, err := l.prober.Probe(ctx, path)
			if err != nil {
				l.logger.Warn("probe failed", logging.String("path", path), logging.Error(err))
			} else {
				entry.Size = meta.Size
				entry.Duration = meta.Duration
				entry.Bitrate = meta.Bitrate
			}
		}
		files = append(files, entry)
	}

	byName := func(entries []Entry) {
		sort.Slice(entries, func(i, j int) bool {
			a, b := strings.ToLower(entries[i].Name), strings.ToLower(entries[j].Name)
			if a == b {
				return entries[i].Name < entries[j].Name
			}
			return a < b
		})
	}
	byName(folders)
	byName(files)

	ordered := append(folders, files...)
	for i := range ordered {
		ordered[i].ID = i
	}
	return &Listing{Dir: dir, Entries: ordered}, nil
}

// Navigate resolves target against current and verifies it is an existing
// directory. Target may be absolute, relative, ".", or "..", quoted or not.
func Navigate(current, target string) (string, error) {
	target = TrimQuotes(target)
	if target == "" {
		return "", fmt.Errorf("%w: empty path", ErrPathNotFound)
	}

	var candidate string
	switch {
	case target == ".":
		return current, nil
	case filepath.IsAbs(target):
		candidate = filepath.Clean(target)
	default:
		candidate = filepath.Clean(filepath.Join(current, target))
	}

	info, err := os.Stat(candidate)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrPathNotFound, candidate)
		}
		return "", fmt.Errorf("stat %s: %w", candidate, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s", ErrNotADirectory, candidate)
	}
	return candidate, nil
}

// TrimQuotes strips one pair of surrounding single or double quotes so quoted
// and unquoted paths parse to the same target.
func TrimQuotes(value string) string {
	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		first, last := value[0], value[len(value)-1]
		if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
			return value[1 : len(value)-1]
		}
	}
	return value
}
