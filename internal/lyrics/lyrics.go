// Package lyrics locates the lyric line and word being sung at a playback
// time.
package lyrics

import "github.com/audiolibrelab/singalong/internal/api"

const (
	// PreviewSeconds is how early a line is shown before it starts
	PreviewSeconds = 2.0

	// DefaultDuration is the track length used when nothing else is known
	DefaultDuration = 12.0
)

// Cursor points at the active line and word. -1 means none.
type Cursor struct {
	Line int
	Word int
}

// TotalDuration is the end time of the last line, or DefaultDuration when
// there are no lines
func TotalDuration(lines []api.KaraokeLine) float64 {
	if len(lines) == 0 {
		return DefaultDuration
	}
	return lines[len(lines)-1].End
}

// At returns the line shown at time t and the word being sung within it
func At(lines []api.KaraokeLine, t float64) Cursor {
	c := Cursor{Line: -1, Word: -1}
	for i, l := range lines {
		if t >= l.Start-PreviewSeconds && t <= l.End {
			c.Line = i
			break
		}
	}
	if c.Line < 0 {
		return c
	}
	for i, w := range lines[c.Line].Words {
		if t >= w.Start && t <= w.End {
			c.Word = i
			break
		}
	}
	return c
}

// WordFill is the sung fraction of a word at time t, from 0 to 1
func WordFill(w api.Word, t float64) float64 {
	switch {
	case t < w.Start:
		return 0
	case t > w.End:
		return 1
	case w.End <= w.Start:
		return 1
	}
	return min(1, (t-w.Start)/(w.End-w.Start))
}
