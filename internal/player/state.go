// Package player is the karaoke playback engine: it owns the audio
// context, the stem mix, pitch correction and the transport clock.
package player

import (
	"errors"

	"github.com/audiolibrelab/singalong/internal/audio"
)

var (
	ErrAudioUnavailable = errors.New("audio unavailable")
	ErrNotActivated     = errors.New("audio engine not activated")
	ErrClosed           = errors.New("audio engine closed")
)

// Lifecycle is the engine's activation state
type Lifecycle string

const (
	AwaitingActivation Lifecycle = "awaiting-activation"
	Activating         Lifecycle = "activating"
	Ready              Lifecycle = "ready"
	Unavailable        Lifecycle = "unavailable"
	Closed             Lifecycle = "closed"
)

// Status is the transport state
type Status string

const (
	StatusIdle    Status = "idle"
	StatusPaused  Status = "paused"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

// StemPair holds the decoded stems of one track. It is never modified after
// the loader returns it.
type StemPair struct {
	TrackID      string
	Instrumental *audio.Buffer
	Vocals       *audio.Buffer
}

// Empty reports whether neither stem is present
func (p StemPair) Empty() bool {
	return p.Instrumental == nil && p.Vocals == nil
}

// Longest is the duration of the longer present stem
func (p StemPair) Longest() float64 {
	d := 0.0
	for _, b := range []*audio.Buffer{p.Instrumental, p.Vocals} {
		if b != nil {
			d = max(d, b.Duration())
		}
	}
	return d
}

// MixSettings are the current stem levels
type MixSettings struct {
	VocalPercent      int
	VocalLevel        float64
	InstrumentalLevel float64
}

// PlaybackState is a point-in-time copy of the engine state
type PlaybackState struct {
	Lifecycle Lifecycle
	Status    Status
	Err       error

	TrackID         string
	HasInstrumental bool
	HasVocals       bool

	Elapsed      float64
	PausedOffset float64
	ClockOrigin  float64
	Duration     float64
	Playing      bool

	Mix            MixSettings
	Semitones      int
	PitchFactor    float64
	PitchSupported bool
}
