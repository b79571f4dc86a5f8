package player

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/audiolibrelab/singalong/internal/api"
	"github.com/audiolibrelab/singalong/internal/audio"
)

// Fetcher retrieves stem bytes
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Loader fetches and decodes the two stems of a track
type Loader struct {
	fetcher Fetcher
}

func NewLoader(f Fetcher) *Loader {
	return &Loader{fetcher: f}
}

// Load fetches both stems concurrently. A stem that is missing or fails to
// fetch or decode is left nil; Load itself never fails.
func (l *Loader) Load(ctx context.Context, dec audio.Decoder, trackID string, urls api.StemURLs) StemPair {
	pair := StemPair{TrackID: trackID}

	var g errgroup.Group
	load := func(stem, url string, dst **audio.Buffer) {
		g.Go(func() error {
			if url == "" {
				slog.Debug("Track has no stem", "track_id", trackID, "stem", stem)
				return nil
			}
			buf, err := l.loadStem(ctx, dec, url)
			if err != nil {
				slog.Warn("Stem unavailable", "track_id", trackID, "stem", stem, "url", url, "error", err)
				return nil
			}
			*dst = buf
			slog.Debug("Stem loaded", "track_id", trackID, "stem", stem, "duration", buf.Duration())
			return nil
		})
	}
	load("instrumental", urls.Instrumental, &pair.Instrumental)
	load("vocals", urls.Vocals, &pair.Vocals)
	_ = g.Wait()

	return pair
}

func (l *Loader) loadStem(ctx context.Context, dec audio.Decoder, url string) (*audio.Buffer, error) {
	if l.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured")
	}
	data, err := l.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	buf, err := dec.DecodeAudioData(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode: %w", err)
	}
	return buf, nil
}
