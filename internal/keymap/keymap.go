// Package keymap converts musical keys and semitone offsets into the pitch
// factor applied by the pitch processor.
package keymap

import (
	"log/slog"
	"math"
	"strings"
)

const (
	MinPitchFactor = 0.5
	MaxPitchFactor = 1.5

	// MinSemitones and MaxSemitones bound the key control
	MinSemitones = -6
	MaxSemitones = 6
)

// Keys lists the selectable key names: twelve majors then twelve minors
var Keys = []string{
	"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B",
	"Cm", "C#m", "Dm", "D#m", "Em", "Fm", "F#m", "Gm", "G#m", "Am", "A#m", "Bm",
}

var majorSemitones = map[string]int{
	"C": 0, "C#": 1, "D": 2, "D#": 3, "E": 4, "F": 5,
	"F#": 6, "G": 7, "G#": 8, "A": 9, "A#": 10, "B": 11,
}

// PitchFactor maps a semitone offset to a playback-rate factor, clamped to
// [MinPitchFactor, MaxPitchFactor]
func PitchFactor(semitones float64) float64 {
	f := math.Pow(2, semitones/12)
	return math.Max(MinPitchFactor, math.Min(MaxPitchFactor, f))
}

// SemitonesForKey returns the semitone offset of a key name. Minor keys map
// to their major table value minus 3. Unknown names return 0 and false.
func SemitonesForKey(name string) (int, bool) {
	name = strings.TrimSpace(name)
	if s, ok := majorSemitones[name]; ok {
		return s, true
	}
	if major, ok := strings.CutSuffix(name, "m"); ok {
		if s, ok := majorSemitones[major]; ok {
			return s - 3, true
		}
	}
	slog.Debug("Unknown key name, using offset 0", "key", name)
	return 0, false
}

// KeyIndex returns the position of name in Keys, or 0 when it is absent
func KeyIndex(name string) int {
	for i, k := range Keys {
		if k == name {
			return i
		}
	}
	return 0
}

// KeyByIndex returns the key at index i, or "C" when i is out of range
func KeyByIndex(i int) string {
	if i < 0 || i >= len(Keys) {
		return Keys[0]
	}
	return Keys[i]
}

// ClampSemitones bounds an offset to the key control range
func ClampSemitones(s int) int {
	return max(MinSemitones, min(MaxSemitones, s))
}
