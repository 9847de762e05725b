package browse

import (
	"context"

	"bvc/internal/media/ffprobe"
)

// FFprobeProber probes media files with the external ffprobe binary.
type FFprobeProber struct {
	Binary string
}

// Probe implements Prober.
func (p FFprobeProber) Probe(ctx context.Context, path string) (Metadata, error) {
	result, err := ffprobe.Inspect(ctx, p.Binary, path)
	if err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Size:     result.SizeBytes(),
		Duration: result.DurationSeconds(),
		Bitrate:  result.BitRateKbps(),
	}, nil
}

var _ Prober = FFprobeProber{}
