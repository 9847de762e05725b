package testsupport

import (
	"context"
	"errors"
	"path/filepath"

	"bvc/internal/browse"
)

// StubProber serves canned metadata keyed by file basename. Paths without an
// entry get deterministic defaults so listings stay reproducible.
type StubProber struct {
	Metadata map[string]browse.Metadata
	Fail     map[string]bool
}

// Probe implements browse.Prober.
func (p StubProber) Probe(_ context.Context, path string) (browse.Metadata, error) {
	name := filepath.Base(path)
	if p.Fail[name] {
		return browse.Metadata{}, errors.New("stub probe failure")
	}
	if meta, ok := p.Metadata[name]; ok {
		return meta, nil
	}
	return browse.Metadata{Size: 1 << 20, Duration: 60, Bitrate: 4000}, nil
}

var _ browse.Prober = StubProber{}
