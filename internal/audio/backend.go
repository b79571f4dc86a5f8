package audio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// BackendType represents the type of audio output backend
type BackendType string

const (
	BackendTypeOto      BackendType = "oto"
	BackendTypeHeadless BackendType = "headless"
	BackendTypeAuto     BackendType = "auto"
)

// Device pulls rendered PCM from the graph and hands it to an output.
type Device interface {
	// Resume begins (or continues) pulling audio from the graph
	Resume() error

	// Suspend stops pulling audio; the graph clock freezes while suspended
	Suspend() error

	// Close releases the output
	Close() error
}

// openDevice creates the output device for the configured backend
func openDevice(ctx context.Context, opts Options, src io.Reader) (Device, error) {
	switch determineBackend(opts.Backend) {
	case BackendTypeHeadless:
		return newHeadlessDevice(opts.SampleRate, opts.BufferSize, src), nil
	case BackendTypeOto:
		return newOtoDevice(ctx, opts.SampleRate, opts.BufferSize, src)
	default:
		dev, err := newOtoDevice(ctx, opts.SampleRate, opts.BufferSize, src)
		if err != nil {
			slog.Warn("Audio output unavailable, falling back to headless clock", "error", err)
			return newHeadlessDevice(opts.SampleRate, opts.BufferSize, src), nil
		}
		return dev, nil
	}
}

// determineBackend determines which backend to use based on configuration
func determineBackend(name BackendType) BackendType {
	switch BackendType(strings.ToLower(string(name))) {
	case BackendTypeOto:
		return BackendTypeOto
	case BackendTypeHeadless:
		return BackendTypeHeadless
	default:
		return BackendTypeAuto
	}
}

// ParseBackend validates a backend name from configuration
func ParseBackend(name string) (BackendType, error) {
	if name == "" {
		return BackendTypeAuto, nil
	}
	switch b := BackendType(strings.ToLower(name)); b {
	case BackendTypeOto, BackendTypeHeadless, BackendTypeAuto:
		return b, nil
	}
	return "", fmt.Errorf("unknown audio backend %q (valid: oto, headless, auto)", name)
}

// GetAvailableBackends returns list of backends compiled into this binary
func GetAvailableBackends() []BackendType {
	return []BackendType{BackendTypeOto, BackendTypeHeadless, BackendTypeAuto}
}
