package player

import (
	"fmt"

	"github.com/audiolibrelab/singalong/internal/audio"
)

// DefaultVocalMix is the initial vocal level in percent
const DefaultVocalMix = 50

// MixGraph holds one persistent gain per stem for the engine lifetime
type MixGraph struct {
	actx         audio.Context
	instrumental audio.GainNode
	vocals       audio.GainNode
	percent      int
}

// NewMixGraph creates both stem gains and connects them to out
func NewMixGraph(actx audio.Context, out audio.Node) (*MixGraph, error) {
	instrumental, err := actx.NewGain()
	if err != nil {
		return nil, fmt.Errorf("failed to create instrumental gain: %w", err)
	}
	vocals, err := actx.NewGain()
	if err != nil {
		return nil, fmt.Errorf("failed to create vocals gain: %w", err)
	}
	for _, g := range []audio.GainNode{instrumental, vocals} {
		if err := g.Connect(out); err != nil {
			return nil, fmt.Errorf("failed to connect stem gain: %w", err)
		}
	}

	m := &MixGraph{actx: actx, instrumental: instrumental, vocals: vocals, percent: 100}
	now := actx.CurrentTime()
	instrumental.Gain().SetValueAtTime(1, now)
	vocals.Gain().SetValueAtTime(1, now)
	return m, nil
}

// SetVocalMix clamps percent to 0..100 and applies it to the vocal gain at
// the current clock time. It returns the applied percent.
func (m *MixGraph) SetVocalMix(percent int) int {
	percent = clampPercent(percent)
	m.percent = percent
	m.vocals.Gain().SetValueAtTime(float64(percent)/100, m.actx.CurrentTime())
	return percent
}

func (m *MixGraph) Settings() MixSettings {
	return MixSettings{
		VocalPercent:      m.percent,
		VocalLevel:        float64(m.percent) / 100,
		InstrumentalLevel: 1,
	}
}

// Instrumental is the gain node instrumental sources connect to
func (m *MixGraph) Instrumental() audio.Node { return m.instrumental }

// Vocals is the gain node vocal sources connect to
func (m *MixGraph) Vocals() audio.Node { return m.vocals }

func clampPercent(p int) int {
	return max(0, min(100, p))
}
