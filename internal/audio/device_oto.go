package audio

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"
)

// oto allows one context per process; every graph shares it
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoRate int
	otoErr  error
)

func sharedOtoContext(ctx context.Context, sampleRate int, bufferSize time.Duration) (*oto.Context, error) {
	otoOnce.Do(func() {
		c, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   sampleRate,
			ChannelCount: numChannels,
			Format:       oto.FormatFloat32LE,
			BufferSize:   bufferSize,
		})
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		select {
		case <-ready:
		case <-ctx.Done():
			otoErr = fmt.Errorf("oto context not ready: %w", ctx.Err())
			return
		}
		otoCtx = c
		otoRate = sampleRate
	})
	if otoErr != nil {
		return nil, otoErr
	}
	if otoRate != sampleRate {
		return nil, fmt.Errorf("oto context already running at %d Hz, requested %d Hz", otoRate, sampleRate)
	}
	return otoCtx, nil
}

// otoDevice plays the graph through the system audio output
type otoDevice struct {
	mu     sync.Mutex
	player *oto.Player
}

func newOtoDevice(ctx context.Context, sampleRate int, bufferSize time.Duration, src io.Reader) (*otoDevice, error) {
	c, err := sharedOtoContext(ctx, sampleRate, bufferSize)
	if err != nil {
		return nil, err
	}
	p := c.NewPlayer(src)
	p.SetBufferSize(FramesFor(sampleRate, bufferSize) * frameBytes)
	return &otoDevice{player: p}, nil
}

func (d *otoDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return ErrContextClosed
	}
	d.player.Play()
	return nil
}

func (d *otoDevice) Suspend() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return ErrContextClosed
	}
	d.player.Pause()
	return nil
}

func (d *otoDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.player == nil {
		return nil
	}
	err := d.player.Close()
	d.player = nil
	return err
}
