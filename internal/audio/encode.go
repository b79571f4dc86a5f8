package audio

import (
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes stereo frames as 16-bit PCM WAV
func WriteWAV(w io.WriteSeeker, sampleRate int, frames [][2]float64) error {
	const bitDepth = 16

	enc := wav.NewEncoder(w, sampleRate, bitDepth, numChannels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: numChannels, SampleRate: sampleRate},
		SourceBitDepth: bitDepth,
		Data:           make([]int, 0, len(frames)*numChannels),
	}
	for _, f := range frames {
		buf.Data = append(buf.Data, toPCM16(f[0]), toPCM16(f[1]))
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("failed to write WAV samples: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to finalize WAV: %w", err)
	}
	return nil
}

func toPCM16(v float64) int {
	v = math.Max(-1, math.Min(1, v))
	return int(math.Round(v * 32767))
}
