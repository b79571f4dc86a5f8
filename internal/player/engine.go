package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/audiolibrelab/singalong/internal/api"
	"github.com/audiolibrelab/singalong/internal/audio"
	"github.com/audiolibrelab/singalong/internal/keymap"
	"github.com/audiolibrelab/singalong/internal/lyrics"
)

// Options configures an engine
type Options struct {
	// Factory builds the audio context on activation
	Factory audio.ContextFactory

	// Fetcher retrieves stem bytes
	Fetcher Fetcher

	// Frames paces the transport tick; defaults to a TimerScheduler
	Frames FrameScheduler

	// PitchModuleURL locates the pitch processor module. Empty disables
	// pitch correction.
	PitchModuleURL string

	// DefaultMix is the initial vocal level in percent
	DefaultMix int
}

// Engine is the playback engine for one player session. All state lives
// behind one mutex; blocking work (context creation, resume, stem loads)
// runs outside it and re-validates state when it completes.
type Engine struct {
	mu sync.Mutex

	factory   audio.ContextFactory
	frames    FrameScheduler
	loader    *Loader
	moduleURL string

	lifecycle Lifecycle
	err       error
	actx      audio.Context
	mix       *MixGraph
	pitch     *PitchEngine

	track      api.Track
	hasTrack   bool
	trackGen   uint64
	stems      StemPair
	cancelLoad context.CancelFunc
	loadDone   chan struct{}
	loads      sync.WaitGroup

	transport transport

	vocalPercent int
	semitones    int

	observers []func(float64)
}

// New creates an engine awaiting activation
func New(opts Options) *Engine {
	frames := opts.Frames
	if frames == nil {
		frames = NewTimerScheduler(DefaultFrameInterval)
	}
	mix := opts.DefaultMix
	if mix < 0 || mix > 100 {
		mix = DefaultVocalMix
	}
	return &Engine{
		factory:      opts.Factory,
		frames:       frames,
		loader:       NewLoader(opts.Fetcher),
		moduleURL:    opts.PitchModuleURL,
		lifecycle:    AwaitingActivation,
		vocalPercent: mix,
		transport:    transport{duration: lyrics.DefaultDuration},
	}
}

// OnTime registers an observer of every published elapsed time
func (e *Engine) OnTime(fn func(elapsed float64)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, fn)
}

func (e *Engine) publish(observers []func(float64), elapsed float64) {
	for _, fn := range observers {
		fn(elapsed)
	}
}

// SetTrack replaces the current track. The transport rewinds to 0, playing
// sources stop, and stems load again once the engine is ready.
func (e *Engine) SetTrack(t api.Track) error {
	e.mu.Lock()
	if e.lifecycle == Closed {
		e.mu.Unlock()
		return ErrClosed
	}
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	e.haltLocked()

	e.trackGen++
	e.track = t
	e.hasTrack = true
	e.stems = StemPair{TrackID: t.ID}
	e.transport.reset(totalDuration(t, e.stems))
	slog.Info("Track selected", "track_id", t.ID, "title", t.Title)

	if e.lifecycle == Ready {
		e.startLoadLocked()
	}
	observers := e.observers
	e.mu.Unlock()

	e.publish(observers, 0)
	return nil
}

func (e *Engine) startLoadLocked() {
	ctx, cancel := context.WithCancel(context.Background())
	e.cancelLoad = cancel

	done := make(chan struct{})
	e.loadDone = done

	gen, actx, t := e.trackGen, e.actx, e.track
	e.loads.Add(1)
	go func() {
		defer e.loads.Done()
		defer close(done)
		defer cancel()
		pair := e.loader.Load(ctx, actx, t.ID, t.Stems)
		e.finishLoad(gen, actx, pair)
	}()
}

// WaitLoaded blocks until the most recent stem load has finished. It returns
// at once when no load was started.
func (e *Engine) WaitLoaded(ctx context.Context) error {
	e.mu.Lock()
	done := e.loadDone
	e.mu.Unlock()
	if done == nil {
		return nil
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) finishLoad(gen uint64, actx audio.Context, pair StemPair) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.trackGen || actx != e.actx || pair.TrackID != e.track.ID || e.lifecycle != Ready {
		slog.Debug("Discarding stale stems", "track_id", pair.TrackID)
		return
	}
	e.cancelLoad = nil
	e.stems = pair
	t := &e.transport
	t.duration = totalDuration(e.track, pair)
	t.pausedOffset = t.clamp(t.pausedOffset)
	t.elapsed = t.clamp(t.elapsed)
	if pair.Empty() {
		slog.Warn("No playable stems for track", "track_id", pair.TrackID)
		return
	}
	slog.Info("Stems ready", "track_id", pair.TrackID,
		"instrumental", pair.Instrumental != nil, "vocals", pair.Vocals != nil)
}

// SetVocalMix sets the vocal level in percent, clamped to 0..100
func (e *Engine) SetVocalMix(percent int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vocalPercent = clampPercent(percent)
	if e.mix != nil {
		e.mix.SetVocalMix(e.vocalPercent)
	}
}

// SetSemitones sets the pitch offset. Offsets are mapped to a bounded pitch
// factor; writes are dropped when pitch correction is unsupported.
func (e *Engine) SetSemitones(s int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.semitones = s
	if e.pitch != nil {
		e.pitch.SetFactor(keymap.PitchFactor(float64(s)))
	}
}

// SetKey sets the pitch offset from a key name, bounded to the key control
// range; unknown names mean 0
func (e *Engine) SetKey(name string) {
	s, _ := keymap.SemitonesForKey(name)
	e.SetSemitones(keymap.ClampSemitones(s))
}

// PitchSupported reports whether a pitch processor is in the signal path
func (e *Engine) PitchSupported() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pitch != nil && e.pitch.Supported()
}

// Snapshot returns a copy of the current engine state
func (e *Engine) Snapshot() PlaybackState {
	e.mu.Lock()
	defer e.mu.Unlock()

	t := &e.transport
	s := PlaybackState{
		Lifecycle:       e.lifecycle,
		Err:             e.err,
		TrackID:         e.track.ID,
		HasInstrumental: e.stems.Instrumental != nil,
		HasVocals:       e.stems.Vocals != nil,
		Elapsed:         t.elapsed,
		PausedOffset:    t.pausedOffset,
		ClockOrigin:     t.origin,
		Duration:        t.duration,
		Playing:         t.playing,
		Semitones:       e.semitones,
		PitchFactor:     keymap.PitchFactor(float64(e.semitones)),
		Mix: MixSettings{
			VocalPercent:      e.vocalPercent,
			VocalLevel:        float64(e.vocalPercent) / 100,
			InstrumentalLevel: 1,
		},
	}
	if e.pitch != nil {
		s.PitchSupported = e.pitch.Supported()
	}
	switch {
	case e.stems.Empty():
		s.Status = StatusIdle
	case t.playing:
		s.Status = StatusPlaying
	case t.ended:
		s.Status = StatusEnded
	default:
		s.Status = StatusPaused
	}
	return s
}

// Close stops playback, abandons in-flight loads and closes the audio
// context. The engine cannot be used afterwards.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.lifecycle == Closed {
		e.mu.Unlock()
		return nil
	}
	e.lifecycle = Closed
	if e.cancelLoad != nil {
		e.cancelLoad()
		e.cancelLoad = nil
	}
	e.haltLocked()
	actx := e.actx
	e.actx = nil
	e.mu.Unlock()

	e.loads.Wait()
	if actx == nil {
		return nil
	}
	slog.Debug("Closing audio context", "context_id", actx.ID())
	if err := actx.Close(); err != nil {
		return fmt.Errorf("failed to close audio context: %w", err)
	}
	return nil
}

func totalDuration(t api.Track, stems StemPair) float64 {
	if len(t.Lyrics) > 0 {
		return lyrics.TotalDuration(t.Lyrics)
	}
	if d := stems.Longest(); d > 0 {
		return d
	}
	return lyrics.DefaultDuration
}
