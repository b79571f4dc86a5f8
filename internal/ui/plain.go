package ui

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	"github.com/audiolibrelab/singalong/internal/api"
	"github.com/audiolibrelab/singalong/internal/lyrics"
	"github.com/audiolibrelab/singalong/internal/player"
)

// IsInteractive reports whether f is a terminal the full UI can drive
func IsInteractive(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// PrintLyrics is the non-interactive player: it activates audio, plays the
// track and prints each lyric line as it comes up until the track ends.
func PrintLyrics(ctx context.Context, ctl Controller, t api.Track, w io.Writer, interval time.Duration) error {
	if err := ctl.Activate(ctx); err != nil {
		return err
	}
	if err := ctl.WaitLoaded(ctx); err != nil {
		return err
	}
	s := ctl.Snapshot()
	if !s.HasInstrumental && !s.HasVocals {
		return fmt.Errorf("no playable stems for track %s", t.ID)
	}
	if err := ctl.Toggle(ctx); err != nil {
		return err
	}

	fmt.Fprintf(w, "%s - %s\n", orDefault(t.Title, t.ID), orDefault(t.Artist, "unknown artist"))
	if !s.PitchSupported {
		fmt.Fprintln(w, "(pitch unsupported)")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := -1
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
		s := ctl.Snapshot()
		if cur := lyrics.At(t.Lyrics, s.Elapsed); cur.Line >= 0 && cur.Line != last {
			last = cur.Line
			fmt.Fprintf(w, "[%s] %s\n", clock(t.Lyrics[cur.Line].Start), t.Lyrics[cur.Line].Text)
		}
		if s.Status == player.StatusEnded {
			return nil
		}
	}
}
