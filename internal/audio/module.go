package audio

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
)

const (
	PitchProcessorName = "pitch-processor"
	PitchFactorParam   = "pitchFactor"
	KindPitchShift     = "pitch-shift"
)

// Kernel processes one block of stereo frames in place. param returns the
// current value of a named processor parameter.
type Kernel interface {
	Process(samples [][2]float64, param func(name string) float64)
}

// KernelFactory builds a kernel for a processor kind at a sample rate
type KernelFactory func(sampleRate int) (Kernel, error)

var kernels = map[string]KernelFactory{
	KindPitchShift: newPitchKernel,
}

// Module is a processor module manifest
type Module struct {
	Processors []ProcessorSpec `json:"processors"`
}

// ProcessorSpec declares one processor and its parameters
type ProcessorSpec struct {
	Name       string      `json:"name"`
	Kind       string      `json:"kind"`
	Parameters []ParamSpec `json:"parameters"`
}

// ParamSpec declares a processor parameter and its allowed range
type ParamSpec struct {
	Name         string  `json:"name"`
	DefaultValue float64 `json:"defaultValue"`
	MinValue     float64 `json:"minValue"`
	MaxValue     float64 `json:"maxValue"`
}

type processorSpec struct {
	ProcessorSpec
	factory KernelFactory
}

// PitchModule is the manifest served for the pitch processor
func PitchModule() Module {
	return Module{Processors: []ProcessorSpec{{
		Name: PitchProcessorName,
		Kind: KindPitchShift,
		Parameters: []ParamSpec{{
			Name:         PitchFactorParam,
			DefaultValue: 1,
			MinValue:     0.5,
			MaxValue:     1.5,
		}},
	}}}
}

// ParseModule decodes and validates a module manifest
func ParseModule(data []byte) (Module, error) {
	var m Module
	if err := json.Unmarshal(data, &m); err != nil {
		return Module{}, fmt.Errorf("%w: %v", ErrModuleMalformed, err)
	}
	if len(m.Processors) == 0 {
		return Module{}, fmt.Errorf("%w: no processors declared", ErrModuleMalformed)
	}
	for _, p := range m.Processors {
		if p.Name == "" {
			return Module{}, fmt.Errorf("%w: processor without a name", ErrModuleMalformed)
		}
		for _, ps := range p.Parameters {
			if ps.Name == "" {
				return Module{}, fmt.Errorf("%w: processor %s has an unnamed parameter", ErrModuleMalformed, p.Name)
			}
			if ps.MinValue > ps.MaxValue {
				return Module{}, fmt.Errorf("%w: parameter %s range is inverted", ErrModuleMalformed, ps.Name)
			}
		}
	}
	return m, nil
}

func (g *Graph) AddModule(ctx context.Context, url string) error {
	if g.opts.Fetch == nil {
		return fmt.Errorf("no fetcher configured for module %s", url)
	}
	if g.State() == StateClosed {
		return ErrContextClosed
	}

	data, err := g.opts.Fetch(ctx, url)
	if err != nil {
		return fmt.Errorf("failed to fetch module %s: %w", url, err)
	}
	m, err := ParseModule(data)
	if err != nil {
		return err
	}
	return g.Register(m)
}

// Register makes the runnable processors of a module available to
// NewProcessor
func (g *Graph) Register(m Module) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	registered := 0
	for _, p := range m.Processors {
		factory, ok := kernels[p.Kind]
		if !ok {
			slog.Warn("Skipping processor of unknown kind", "processor", p.Name, "kind", p.Kind)
			continue
		}
		g.processors[p.Name] = processorSpec{ProcessorSpec: p, factory: factory}
		registered++
	}
	if registered == 0 {
		return fmt.Errorf("%w: module declares no runnable processors", ErrUnknownProcessor)
	}
	return nil
}

func (g *Graph) NewProcessor(name string) (ProcessorNode, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateClosed {
		return nil, ErrContextClosed
	}
	spec, ok := g.processors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProcessor, name)
	}
	kernel, err := spec.factory(g.opts.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("failed to create processor %s: %w", name, err)
	}

	n := &processorNode{
		name:   name,
		kernel: kernel,
		params: make(map[string]*param, len(spec.Parameters)),
	}
	n.g = g
	n.self = n
	for _, ps := range spec.Parameters {
		p := g.newParam(ps.Name, ps.DefaultValue)
		// a zero range means none was declared
		if ps.MinValue != 0 || ps.MaxValue != 0 {
			p.bounded, p.min, p.max = true, ps.MinValue, ps.MaxValue
		}
		n.params[ps.Name] = p
	}
	return n, nil
}
