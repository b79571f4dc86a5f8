package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/audiolibrelab/singalong/internal/api"
	"github.com/audiolibrelab/singalong/internal/lyrics"
	"github.com/audiolibrelab/singalong/internal/player"
)

var (
	nord0  = lipgloss.Color("#2E3440")
	nord3  = lipgloss.Color("#4C566A")
	nord4  = lipgloss.Color("#D8DEE9")
	nord8  = lipgloss.Color("#88C0D0")
	nord9  = lipgloss.Color("#81A1C1")
	nord11 = lipgloss.Color("#BF616A")
	nord13 = lipgloss.Color("#EBCB8B")
	nord14 = lipgloss.Color("#A3BE8C")

	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(nord8)
	artistStyle  = lipgloss.NewStyle().Foreground(nord9)
	sectionStyle = lipgloss.NewStyle().MarginTop(1).Foreground(nord9)
	sungStyle    = lipgloss.NewStyle().Bold(true).Foreground(nord13)
	unsungStyle  = lipgloss.NewStyle().Foreground(nord4)
	nextStyle    = lipgloss.NewStyle().Faint(true).Foreground(nord3)
	warnStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(nord0).Background(nord11)
	infoStyle    = lipgloss.NewStyle().Padding(0, 1).Foreground(nord0).Background(nord13)
	helpStyle    = lipgloss.NewStyle().Faint(true)
)

// Render draws the player screen for one state
func Render(t api.Track, s player.PlaybackState, width int, awaiting bool, lastErr error) string {
	w := max(40, width-4)
	b := &strings.Builder{}

	header := titleStyle.Render(orDefault(t.Title, t.ID))
	if t.Artist != "" {
		header += artistStyle.Render("  " + t.Artist)
	}
	fmt.Fprintln(b, header)
	if badges := renderBadges(s, awaiting); badges != "" {
		fmt.Fprintln(b, badges)
	}

	fmt.Fprintln(b, sectionStyle.Render("Lyrics"))
	cur := lyrics.At(t.Lyrics, s.Elapsed)
	if cur.Line >= 0 {
		fmt.Fprintln(b, "  "+renderLine(t.Lyrics[cur.Line], s.Elapsed))
		if next := cur.Line + 1; next < len(t.Lyrics) {
			fmt.Fprintln(b, "  "+nextStyle.Render(t.Lyrics[next].Text))
		}
	} else {
		fmt.Fprintln(b, "  "+nextStyle.Render("♪"))
	}

	fmt.Fprintln(b, sectionStyle.Render("Progress"))
	fmt.Fprintln(b, "  "+renderBar(ratio(s.Elapsed, s.Duration), w-20, fmt.Sprintf("%s / %s", clock(s.Elapsed), clock(s.Duration)), nord14))

	fmt.Fprintln(b, sectionStyle.Render("Mix"))
	fmt.Fprintf(b, "  Vocals: %3d%%  Key: %s\n", s.Mix.VocalPercent, keyLabel(t.Key, s.Semitones))

	if lastErr != nil {
		fmt.Fprintln(b, "")
		fmt.Fprintln(b, warnStyle.Render(lastErr.Error()))
	}

	fmt.Fprintln(b, "")
	fmt.Fprintln(b, helpStyle.Render("space play/pause  ←/→ seek  ↑/↓ vocals  +/- key  home restart  q quit"))
	return b.String()
}

func renderBadges(s player.PlaybackState, awaiting bool) string {
	var badges []string
	switch {
	case awaiting:
		badges = append(badges, infoStyle.Render("press any key to start audio"))
	case s.Lifecycle == player.Unavailable:
		badges = append(badges, warnStyle.Render("audio unavailable"))
	}
	if s.Lifecycle == player.Ready && !s.PitchSupported {
		badges = append(badges, warnStyle.Render("pitch unsupported"))
	}
	if s.Status == player.StatusEnded {
		badges = append(badges, infoStyle.Render("ended"))
	}
	return strings.Join(badges, " ")
}

// renderLine colours each word by how much of it has been sung. The word in
// progress is split at its fill point.
func renderLine(l api.KaraokeLine, t float64) string {
	if len(l.Words) == 0 {
		return unsungStyle.Render(l.Text)
	}
	parts := make([]string, 0, len(l.Words))
	for _, w := range l.Words {
		fill := lyrics.WordFill(w, t)
		runes := []rune(w.Word)
		n := int(math.Round(fill * float64(len(runes))))
		parts = append(parts, sungStyle.Render(string(runes[:n]))+unsungStyle.Render(string(runes[n:])))
	}
	return strings.Join(parts, " ")
}

func renderBar(r float64, width int, label string, color lipgloss.Color) string {
	if width < 10 {
		width = 10
	}
	filled := int(math.Round(r * float64(width)))
	filled = max(0, min(width, filled))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return lipgloss.NewStyle().Foreground(color).Render(fmt.Sprintf("[%s] %s", bar, label))
}

func ratio(v, total float64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Max(0, math.Min(1, v/total))
}

func clock(sec float64) string {
	s := int(math.Max(0, sec))
	return fmt.Sprintf("%d:%02d", s/60, s%60)
}

func keyLabel(key string, semitones int) string {
	key = orDefault(key, "?")
	if semitones == 0 {
		return key
	}
	return fmt.Sprintf("%s (%+d)", key, semitones)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
