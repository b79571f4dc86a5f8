package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/go-audio/wav"
	"github.com/gopxl/beep/v2"
	"github.com/tosone/minimp3"
)

// Buffer is decoded stereo audio at a fixed sample rate
type Buffer struct {
	data *beep.Buffer
}

// NewBuffer wraps stereo frames recorded at sampleRate
func NewBuffer(sampleRate int, frames [][2]float64) *Buffer {
	format := beep.Format{SampleRate: beep.SampleRate(sampleRate), NumChannels: numChannels, Precision: 3}
	b := beep.NewBuffer(format)
	b.Append(&frameStreamer{frames: frames})
	return &Buffer{data: b}
}

func (b *Buffer) SampleRate() int { return int(b.data.Format().SampleRate) }

func (b *Buffer) Frames() int { return b.data.Len() }

// Duration is the buffer length in seconds
func (b *Buffer) Duration() float64 {
	return float64(b.data.Len()) / float64(b.data.Format().SampleRate)
}

// Streamer returns a fresh seeker over the whole buffer
func (b *Buffer) Streamer() beep.StreamSeeker {
	return b.data.Streamer(0, b.data.Len())
}

// Decode sniffs WAV or MP3 data and converts it to a stereo buffer at
// sampleRate
func Decode(data []byte, sampleRate, quality int) (*Buffer, error) {
	var (
		frames [][2]float64
		rate   int
		err    error
	)
	switch {
	case isWAV(data):
		frames, rate, err = decodeWAV(data)
	case isMP3(data):
		frames, rate, err = decodeMP3(data)
	default:
		return nil, ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	if rate <= 0 {
		return nil, fmt.Errorf("%w: invalid sample rate %d", ErrUnsupportedFormat, rate)
	}
	return resample(frames, rate, sampleRate, quality), nil
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[0:3]) == "ID3" {
		return true
	}
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}

func decodeWAV(data []byte) ([][2]float64, int, error) {
	d := wav.NewDecoder(bytes.NewReader(data))
	if !d.IsValidFile() {
		return nil, 0, fmt.Errorf("%w: invalid WAV file", ErrUnsupportedFormat)
	}
	pcm, err := d.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode WAV: %w", err)
	}
	channels := pcm.Format.NumChannels
	if channels <= 0 {
		return nil, 0, fmt.Errorf("%w: WAV without channels", ErrUnsupportedFormat)
	}

	bitDepth := int(d.BitDepth)
	if bitDepth <= 0 {
		bitDepth = 16
	}
	scale := float64(int64(1) << (bitDepth - 1))
	offset := 0.0
	if bitDepth == 8 {
		// 8-bit PCM is unsigned
		offset = scale
	}
	sample := func(v int) float64 { return (float64(v) - offset) / scale }

	frames := make([][2]float64, len(pcm.Data)/channels)
	for i := range frames {
		l := sample(pcm.Data[i*channels])
		r := l
		if channels > 1 {
			r = sample(pcm.Data[i*channels+1])
		}
		frames[i] = [2]float64{l, r}
	}
	return frames, pcm.Format.SampleRate, nil
}

func decodeMP3(data []byte) ([][2]float64, int, error) {
	dec, pcm, err := minimp3.DecodeFull(data)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to decode MP3: %w", err)
	}
	defer dec.Close()

	channels := dec.Channels
	if channels <= 0 {
		return nil, 0, fmt.Errorf("%w: MP3 without channels", ErrUnsupportedFormat)
	}
	sample := func(i int) float64 {
		return float64(int16(binary.LittleEndian.Uint16(pcm[i*2:]))) / 32768
	}

	frames := make([][2]float64, len(pcm)/2/channels)
	for i := range frames {
		l := sample(i * channels)
		r := l
		if channels > 1 {
			r = sample(i*channels + 1)
		}
		frames[i] = [2]float64{l, r}
	}
	return frames, dec.SampleRate, nil
}

func resample(frames [][2]float64, from, to, quality int) *Buffer {
	if from == to {
		return NewBuffer(to, frames)
	}
	quality = min(max(quality, 1), 64)
	format := beep.Format{SampleRate: beep.SampleRate(to), NumChannels: numChannels, Precision: 3}
	b := beep.NewBuffer(format)
	b.Append(beep.Resample(quality, beep.SampleRate(from), beep.SampleRate(to), &frameStreamer{frames: frames}))
	return &Buffer{data: b}
}

// frameStreamer streams a fixed slice of frames once
type frameStreamer struct {
	frames [][2]float64
	pos    int
}

func (s *frameStreamer) Stream(samples [][2]float64) (int, bool) {
	if s.pos >= len(s.frames) {
		return 0, false
	}
	n := copy(samples, s.frames[s.pos:])
	s.pos += n
	return n, true
}

func (s *frameStreamer) Err() error { return nil }

// FramesFor returns the number of frames spanning d at sampleRate
func FramesFor(sampleRate int, d time.Duration) int {
	return beep.SampleRate(sampleRate).N(d)
}
