package audio

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/effects/pitch"
)

// pitchKernel shifts both channels by the pitchFactor parameter. A factor of
// 1 passes audio through untouched.
type pitchKernel struct {
	shifters [numChannels]*pitch.PitchShifter
	factor   float64
	channel  []float64
}

func newPitchKernel(sampleRate int) (Kernel, error) {
	k := &pitchKernel{factor: 1}
	for i := range k.shifters {
		s, err := pitch.NewPitchShifter(float64(sampleRate))
		if err != nil {
			return nil, fmt.Errorf("failed to create pitch shifter: %w", err)
		}
		k.shifters[i] = s
	}
	return k, nil
}

func (k *pitchKernel) Process(samples [][2]float64, param func(string) float64) {
	factor := param(PitchFactorParam)
	if factor <= 0 {
		factor = 1
	}
	if factor != k.factor {
		semitones := 12 * math.Log2(factor)
		for _, s := range k.shifters {
			_ = s.SetPitchSemitones(semitones)
		}
		k.factor = factor
	}
	if k.factor == 1 {
		return
	}

	if cap(k.channel) < len(samples) {
		k.channel = make([]float64, len(samples))
	}
	buf := k.channel[:len(samples)]
	for c, s := range k.shifters {
		for i := range samples {
			buf[i] = samples[i][c]
		}
		s.ProcessInPlace(buf)
		for i := range samples {
			samples[i][c] = buf[i]
		}
	}
}
