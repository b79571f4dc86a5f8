package player

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/audiolibrelab/singalong/internal/audio"
	"github.com/audiolibrelab/singalong/internal/keymap"
)

// Activate builds the audio context on the first user interaction. Later
// calls are no-ops while activation is in flight; once ready they resume a
// suspended context. A context that cannot be created leaves the engine
// Unavailable and is reported, never panicked.
func (e *Engine) Activate(ctx context.Context) error {
	e.mu.Lock()
	switch e.lifecycle {
	case Closed:
		e.mu.Unlock()
		return ErrClosed
	case Activating:
		e.mu.Unlock()
		return nil
	case Unavailable:
		err := e.err
		e.mu.Unlock()
		return err
	case Ready:
		actx := e.actx
		e.mu.Unlock()
		if actx.State() == audio.StateSuspended {
			if err := actx.Resume(ctx); err != nil {
				return fmt.Errorf("failed to resume audio context: %w", err)
			}
		}
		return nil
	}
	e.lifecycle = Activating
	e.mu.Unlock()

	actx, pitch, mix, err := e.buildGraph(ctx)
	if err != nil {
		e.mu.Lock()
		if e.lifecycle == Activating {
			e.lifecycle = Unavailable
			e.err = fmt.Errorf("%w: %v", ErrAudioUnavailable, err)
		}
		err = e.err
		e.mu.Unlock()
		slog.Error("Audio unavailable", "error", err)
		if err == nil {
			return ErrClosed
		}
		return err
	}

	e.mu.Lock()
	if e.lifecycle != Activating {
		// closed while the context was being built
		e.mu.Unlock()
		slog.Debug("Discarding stale audio context", "context_id", actx.ID())
		_ = actx.Close()
		return ErrClosed
	}
	e.actx, e.pitch, e.mix = actx, pitch, mix
	e.lifecycle = Ready
	mix.SetVocalMix(e.vocalPercent)
	pitch.SetFactor(keymap.PitchFactor(float64(e.semitones)))
	if e.hasTrack {
		e.startLoadLocked()
	}
	e.mu.Unlock()

	slog.Info("Audio engine ready", "context_id", actx.ID(), "sample_rate", actx.SampleRate(), "pitch_supported", pitch.Supported())
	if err := actx.Resume(ctx); err != nil {
		slog.Warn("Audio context did not resume on activation", "context_id", actx.ID(), "error", err)
	}
	return nil
}

func (e *Engine) buildGraph(ctx context.Context) (audio.Context, *PitchEngine, *MixGraph, error) {
	if e.factory == nil {
		return nil, nil, nil, fmt.Errorf("no audio backend configured")
	}
	actx, err := e.factory(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	pitch := NewPitchEngine(ctx, actx, e.moduleURL)
	mix, err := NewMixGraph(actx, pitch.Input())
	if err != nil {
		_ = actx.Close()
		return nil, nil, nil, err
	}
	return actx, pitch, mix, nil
}
