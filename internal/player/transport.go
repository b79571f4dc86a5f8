package player

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/audiolibrelab/singalong/internal/audio"
)

// transport is the play/pause/seek state. It is guarded by the engine lock.
type transport struct {
	playing      bool
	ended        bool
	pausedOffset float64
	elapsed      float64
	origin       float64
	duration     float64

	// runGen identifies the current play run; frame callbacks from older
	// runs stop on their own
	runGen   uint64
	frame    FrameHandle
	hasFrame bool
	sources  []audio.SourceNode
}

func (t *transport) reset(duration float64) {
	t.playing = false
	t.ended = false
	t.pausedOffset = 0
	t.elapsed = 0
	t.origin = 0
	t.duration = duration
}

func (t *transport) clamp(v float64) float64 {
	return math.Max(0, math.Min(t.duration, v))
}

// Play starts playback from the paused offset. It is a no-op without
// loaded stems or while already playing. Playing from the end rewinds.
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	if err := e.readyLocked(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.transport.playing || e.stems.Empty() {
		e.mu.Unlock()
		return nil
	}
	actx, gen := e.actx, e.trackGen
	e.mu.Unlock()

	// sources started on a suspended context lose their first samples
	if actx.State() != audio.StateRunning {
		if err := actx.Resume(ctx); err != nil {
			return fmt.Errorf("failed to resume audio context: %w", err)
		}
	}

	e.mu.Lock()
	if e.actx != actx || e.trackGen != gen || e.lifecycle != Ready || e.transport.playing || e.stems.Empty() {
		e.mu.Unlock()
		return nil
	}
	if e.transport.ended {
		e.transport.pausedOffset = 0
		e.transport.ended = false
	}
	e.startLocked()
	elapsed, observers := e.transport.elapsed, e.observers
	e.mu.Unlock()

	e.publish(observers, elapsed)
	return nil
}

// Pause freezes playback at the current position
func (e *Engine) Pause() {
	e.mu.Lock()
	if !e.transport.playing {
		e.mu.Unlock()
		return
	}
	e.pauseLocked()
	elapsed, observers := e.transport.elapsed, e.observers
	e.mu.Unlock()

	e.publish(observers, elapsed)
}

// Toggle pauses while playing and plays otherwise
func (e *Engine) Toggle(ctx context.Context) error {
	e.mu.Lock()
	playing := e.transport.playing
	e.mu.Unlock()

	if playing {
		e.Pause()
		return nil
	}
	return e.Play(ctx)
}

// Seek moves the playhead to target seconds, clamped to the track length.
// The new position is published before Seek returns.
func (e *Engine) Seek(target float64) {
	e.mu.Lock()
	t := &e.transport
	target = t.clamp(target)
	if t.playing {
		e.pauseLocked()
		t.pausedOffset = target
		e.startLocked()
	} else {
		t.pausedOffset = target
		t.elapsed = target
		t.ended = false
	}
	elapsed, observers := t.elapsed, e.observers
	e.mu.Unlock()

	e.publish(observers, elapsed)
}

func (e *Engine) readyLocked() error {
	switch e.lifecycle {
	case Ready:
		return nil
	case Closed:
		return ErrClosed
	case Unavailable:
		return e.err
	}
	return ErrNotActivated
}

// startLocked begins a play run at the paused offset with fresh sources
func (e *Engine) startLocked() {
	t := &e.transport
	if e.stems.Empty() || e.actx == nil || e.mix == nil {
		return
	}
	t.origin = e.actx.CurrentTime() - t.pausedOffset
	e.discardSourcesLocked()

	for _, stem := range []struct {
		name string
		buf  *audio.Buffer
		gain audio.Node
	}{
		{"instrumental", e.stems.Instrumental, e.mix.Instrumental()},
		{"vocals", e.stems.Vocals, e.mix.Vocals()},
	} {
		if stem.buf == nil {
			continue
		}
		src, err := e.startSource(stem.buf, stem.gain, t.pausedOffset)
		if err != nil {
			slog.Warn("Failed to start stem", "track_id", e.stems.TrackID, "stem", stem.name, "error", err)
			continue
		}
		t.sources = append(t.sources, src)
	}

	t.playing = true
	t.ended = false
	t.elapsed = t.pausedOffset
	t.runGen++
	e.requestFrameLocked()
	slog.Debug("Playback started", "track_id", e.stems.TrackID, "offset", t.pausedOffset)
}

func (e *Engine) startSource(buf *audio.Buffer, gain audio.Node, offset float64) (audio.SourceNode, error) {
	src, err := e.actx.NewBufferSource(buf)
	if err != nil {
		return nil, err
	}
	src.SetLoop(true)
	if err := src.Connect(gain); err != nil {
		return nil, err
	}
	if d := buf.Duration(); d > 0 {
		offset = math.Mod(offset, d)
	}
	if err := src.Start(offset); err != nil {
		src.Disconnect()
		return nil, err
	}
	return src, nil
}

func (e *Engine) pauseLocked() {
	t := &e.transport
	if !t.playing {
		return
	}
	t.pausedOffset = t.clamp(e.actx.CurrentTime() - t.origin)
	t.elapsed = t.pausedOffset
	t.playing = false
	e.cancelFrameLocked()
	e.discardSourcesLocked()
	slog.Debug("Playback paused", "track_id", e.stems.TrackID, "offset", t.pausedOffset)
}

// haltLocked stops playback without recording a position
func (e *Engine) haltLocked() {
	e.transport.playing = false
	e.cancelFrameLocked()
	e.discardSourcesLocked()
}

func (e *Engine) discardSourcesLocked() {
	for _, src := range e.transport.sources {
		// sources may already have ended on their own
		if err := src.Stop(); err != nil {
			slog.Debug("Ignoring source stop error", "error", err)
		}
		src.Disconnect()
	}
	e.transport.sources = nil
}

func (e *Engine) requestFrameLocked() {
	e.cancelFrameLocked()
	gen := e.transport.runGen
	e.transport.frame = e.frames.RequestFrame(func() { e.tick(gen) })
	e.transport.hasFrame = true
}

func (e *Engine) cancelFrameLocked() {
	if e.transport.hasFrame {
		e.frames.CancelFrame(e.transport.frame)
		e.transport.hasFrame = false
	}
}

// tick publishes the elapsed time of run gen and stops at the end of the
// track instead of looping
func (e *Engine) tick(gen uint64) {
	e.mu.Lock()
	t := &e.transport
	if !t.playing || gen != t.runGen || e.lifecycle != Ready {
		e.mu.Unlock()
		return
	}
	t.hasFrame = false

	elapsed := t.clamp(e.actx.CurrentTime() - t.origin)
	if elapsed >= t.duration {
		t.pausedOffset = t.duration
		t.elapsed = t.duration
		t.playing = false
		t.ended = true
		e.discardSourcesLocked()
		slog.Debug("Playback reached end", "track_id", e.stems.TrackID, "duration", t.duration)
	} else {
		t.elapsed = elapsed
		e.requestFrameLocked()
	}
	observers := e.observers
	e.mu.Unlock()

	e.publish(observers, elapsed)
}
