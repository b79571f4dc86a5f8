package player

import (
	"context"
	"log/slog"

	"github.com/audiolibrelab/singalong/internal/audio"
)

// PitchEngine owns the optional pitch processor. Without it stems are routed
// straight to the destination and pitch writes are dropped.
type PitchEngine struct {
	actx   audio.Context
	node   audio.ProcessorNode
	factor audio.Param
	input  audio.Node
}

// NewPitchEngine loads the pitch module from moduleURL. Every failure falls
// back to direct routing; an empty URL disables the processor.
func NewPitchEngine(ctx context.Context, actx audio.Context, moduleURL string) *PitchEngine {
	p := &PitchEngine{actx: actx, input: actx.Destination()}
	if moduleURL == "" {
		slog.Info("Pitch module disabled")
		return p
	}

	if err := actx.AddModule(ctx, moduleURL); err != nil {
		slog.Warn("Pitch module unavailable, playing unshifted", "url", moduleURL, "error", err)
		return p
	}
	node, err := actx.NewProcessor(audio.PitchProcessorName)
	if err != nil {
		slog.Warn("Failed to create pitch processor, playing unshifted", "error", err)
		return p
	}
	factor, ok := node.Parameter(audio.PitchFactorParam)
	if !ok {
		slog.Warn("Pitch processor has no pitch parameter, playing unshifted", "param", audio.PitchFactorParam)
		return p
	}
	if err := node.Connect(actx.Destination()); err != nil {
		slog.Warn("Failed to connect pitch processor, playing unshifted", "error", err)
		return p
	}

	p.node = node
	p.factor = factor
	p.input = node
	slog.Debug("Pitch processor ready", "context_id", actx.ID())
	return p
}

// Supported reports whether pitch writes reach a processor
func (p *PitchEngine) Supported() bool { return p.factor != nil }

// Input is where stem gains connect
func (p *PitchEngine) Input() audio.Node { return p.input }

// SetFactor schedules a new pitch factor at the current clock time
func (p *PitchEngine) SetFactor(factor float64) {
	if p.factor == nil {
		return
	}
	p.factor.SetValueAtTime(factor, p.actx.CurrentTime())
}

// Factor returns the processor's pitch factor, 1 when unsupported
func (p *PitchEngine) Factor() float64 {
	if p.factor == nil {
		return 1
	}
	return p.factor.Value()
}
