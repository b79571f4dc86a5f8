package audio

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gopxl/beep/v2"
)

const (
	DefaultSampleRate      = 44100
	DefaultBufferSize      = 50 * time.Millisecond
	DefaultResampleQuality = 4

	// channel count of every rendered frame
	numChannels = 2
	// bytes per rendered frame in float32LE stereo
	frameBytes = numChannels * 4
)

// Options configures a graph and its output device
type Options struct {
	SampleRate      int
	Backend         BackendType
	BufferSize      time.Duration
	ResampleQuality int

	// Fetch retrieves processor module manifests for AddModule
	Fetch FetchFunc
}

func (o Options) withDefaults() Options {
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.BufferSize <= 0 {
		o.BufferSize = DefaultBufferSize
	}
	if o.ResampleQuality <= 0 {
		o.ResampleQuality = DefaultResampleQuality
	}
	if o.Backend == "" {
		o.Backend = BackendTypeAuto
	}
	return o
}

// Graph is the in-process audio context: it owns its nodes, renders them
// into stereo float frames and keeps the audio clock.
type Graph struct {
	mu sync.Mutex

	id     string
	opts   Options
	format beep.Format
	state  State
	frames int64

	dest       *destination
	params     []*param
	processors map[string]processorSpec
	device     Device
	scratch    [][2]float64
}

// NewGraph creates a suspended graph with no output device. Callers drive
// it with Render, or hand it to a device through Read.
func NewGraph(opts Options) *Graph {
	opts = opts.withDefaults()
	g := &Graph{
		id:   uuid.NewString(),
		opts: opts,
		format: beep.Format{
			SampleRate:  beep.SampleRate(opts.SampleRate),
			NumChannels: numChannels,
			Precision:   3,
		},
		state:      StateSuspended,
		processors: make(map[string]processorSpec),
	}
	g.dest = &destination{}
	g.dest.g = g
	g.dest.self = g.dest
	return g
}

// NewFactory returns a ContextFactory that opens a graph bound to the
// configured output backend
func NewFactory(opts Options) ContextFactory {
	return func(ctx context.Context) (Context, error) {
		g := NewGraph(opts)
		dev, err := openDevice(ctx, g.opts, g)
		if err != nil {
			return nil, fmt.Errorf("failed to open audio output: %w", err)
		}
		g.device = dev
		slog.Debug("Audio context created", "context_id", g.id, "sample_rate", g.opts.SampleRate, "backend", g.opts.Backend)
		return g, nil
	}
}

func (g *Graph) ID() string { return g.id }

func (g *Graph) SampleRate() int { return g.opts.SampleRate }

func (g *Graph) Format() beep.Format { return g.format }

func (g *Graph) CurrentTime() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.now()
}

func (g *Graph) now() float64 {
	return float64(g.frames) / float64(g.opts.SampleRate)
}

func (g *Graph) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Resume starts the clock and the output device
func (g *Graph) Resume(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	g.mu.Lock()
	switch g.state {
	case StateClosed:
		g.mu.Unlock()
		return ErrContextClosed
	case StateRunning:
		g.mu.Unlock()
		return nil
	}
	g.state = StateRunning
	dev := g.device
	g.mu.Unlock()

	if dev != nil {
		if err := dev.Resume(); err != nil {
			g.mu.Lock()
			if g.state == StateRunning {
				g.state = StateSuspended
			}
			g.mu.Unlock()
			return fmt.Errorf("failed to resume audio output: %w", err)
		}
	}
	return nil
}

// Suspend freezes the clock and stops the output device
func (g *Graph) Suspend() error {
	g.mu.Lock()
	switch g.state {
	case StateClosed:
		g.mu.Unlock()
		return ErrContextClosed
	case StateSuspended:
		g.mu.Unlock()
		return nil
	}
	g.state = StateSuspended
	dev := g.device
	g.mu.Unlock()

	if dev != nil {
		return dev.Suspend()
	}
	return nil
}

// Close releases the output device. Closing twice is a no-op.
func (g *Graph) Close() error {
	g.mu.Lock()
	if g.state == StateClosed {
		g.mu.Unlock()
		return nil
	}
	g.state = StateClosed
	dev := g.device
	g.device = nil
	g.mu.Unlock()

	slog.Debug("Audio context closed", "context_id", g.id)
	if dev != nil {
		return dev.Close()
	}
	return nil
}

func (g *Graph) Destination() Node { return g.dest }

func (g *Graph) NewGain() (GainNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return nil, ErrContextClosed
	}
	n := &gainNode{}
	n.g = g
	n.self = n
	n.gain = g.newParam("gain", 1)
	return n, nil
}

func (g *Graph) NewBufferSource(buf *Buffer) (SourceNode, error) {
	if buf == nil {
		return nil, fmt.Errorf("buffer source needs a buffer")
	}
	if buf.SampleRate() != g.opts.SampleRate {
		return nil, fmt.Errorf("%w: buffer %d Hz, context %d Hz", ErrSampleRateMismatch, buf.SampleRate(), g.opts.SampleRate)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return nil, ErrContextClosed
	}
	n := &sourceNode{buf: buf}
	n.g = g
	n.self = n
	return n, nil
}

func (g *Graph) DecodeAudioData(data []byte) (*Buffer, error) {
	return Decode(data, g.opts.SampleRate, g.opts.ResampleQuality)
}

// Render advances the graph by len(out) frames. The clock and every source
// only move while the graph is running; otherwise out is silence.
func (g *Graph) Render(out [][2]float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.render(out)
}

func (g *Graph) render(out [][2]float64) {
	if g.state != StateRunning {
		clear(out)
		return
	}
	now := g.now()
	for _, p := range g.params {
		p.apply(now)
	}
	g.dest.Stream(out)
	g.frames += int64(len(out))
}

// Read renders float32LE interleaved stereo for an output device
func (g *Graph) Read(p []byte) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return 0, io.EOF
	}
	n := len(p) / frameBytes
	if cap(g.scratch) < n {
		g.scratch = make([][2]float64, n)
	}
	frames := g.scratch[:n]
	g.render(frames)
	for i, f := range frames {
		off := i * frameBytes
		binary.LittleEndian.PutUint32(p[off:], math.Float32bits(float32(f[0])))
		binary.LittleEndian.PutUint32(p[off+4:], math.Float32bits(float32(f[1])))
	}
	return n * frameBytes, nil
}

func (g *Graph) newParam(name string, value float64) *param {
	p := &param{g: g, name: name, value: value}
	g.params = append(g.params, p)
	return p
}

// param is owned by a graph; every access happens under the graph lock
type param struct {
	g      *Graph
	name   string
	value  float64
	events []paramEvent

	bounded  bool
	min, max float64
}

type paramEvent struct {
	value float64
	when  float64
}

func (p *param) Name() string { return p.name }

func (p *param) Value() float64 {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()
	p.apply(p.g.now())
	return p.value
}

func (p *param) SetValueAtTime(value, when float64) {
	p.g.mu.Lock()
	defer p.g.mu.Unlock()

	if p.bounded {
		value = math.Max(p.min, math.Min(p.max, value))
	}

	// events stay ordered by time; equal times keep insertion order
	i := len(p.events)
	for i > 0 && p.events[i-1].when > when {
		i--
	}
	p.events = append(p.events, paramEvent{})
	copy(p.events[i+1:], p.events[i:])
	p.events[i] = paramEvent{value: value, when: when}
	p.apply(p.g.now())
}

func (p *param) apply(now float64) {
	n := 0
	for n < len(p.events) && p.events[n].when <= now {
		p.value = p.events[n].value
		n++
	}
	if n > 0 {
		p.events = append(p.events[:0], p.events[n:]...)
	}
}
