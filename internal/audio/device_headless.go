package audio

import (
	"io"
	"log/slog"
	"sync"
	"time"
)

// headlessDevice pulls the graph in real time and discards the samples. It
// keeps the clock moving on machines without an audio output.
type headlessDevice struct {
	mu       sync.Mutex
	src      io.Reader
	interval time.Duration
	buf      []byte
	stop     chan struct{}
	done     chan struct{}
}

func newHeadlessDevice(sampleRate int, bufferSize time.Duration, src io.Reader) *headlessDevice {
	return &headlessDevice{
		src:      src,
		interval: bufferSize,
		buf:      make([]byte, FramesFor(sampleRate, bufferSize)*frameBytes),
	}
}

func (d *headlessDevice) Resume() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stop != nil {
		return nil
	}
	d.stop = make(chan struct{})
	d.done = make(chan struct{})
	go d.pull(d.stop, d.done)
	return nil
}

func (d *headlessDevice) pull(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if _, err := d.src.Read(d.buf); err != nil {
				if err != io.EOF {
					slog.Warn("Headless audio pull failed", "error", err)
				}
				return
			}
		}
	}
}

func (d *headlessDevice) Suspend() error {
	d.mu.Lock()
	stop, done := d.stop, d.done
	d.stop, d.done = nil, nil
	d.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (d *headlessDevice) Close() error {
	return d.Suspend()
}
