package audio

import (
	"fmt"
	"slices"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
)

// streamNode is implemented by every node the graph can render
type streamNode interface {
	Node
	beep.Streamer
	base() *node
}

// sinkNode accepts inputs
type sinkNode interface {
	streamNode
	inputSet() *inputs
}

// node holds what every graph node shares. A node feeds at most one sink.
type node struct {
	g      *Graph
	self   streamNode
	output sinkNode
}

func (n *node) base() *node { return n }

func (n *node) Err() error { return nil }

func (n *node) Connect(dst Node) error {
	sink, ok := dst.(sinkNode)
	if !ok || sink.base().g != n.g {
		return ErrInvalidConnection
	}
	if sink.base() == n {
		return fmt.Errorf("%w: node connected to itself", ErrInvalidConnection)
	}

	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	if n.g.state == StateClosed {
		return ErrContextClosed
	}
	if n.output == sink {
		return nil
	}
	if n.output != nil {
		return fmt.Errorf("%w: node already has an output", ErrInvalidConnection)
	}
	n.output = sink
	sink.inputSet().add(n.self)
	return nil
}

func (n *node) Disconnect() {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	if n.output != nil {
		n.output.inputSet().remove(n.self)
		n.output = nil
	}
}

// inputs sums every connected node through a beep mixer. Graph streamers
// never drain, so the mixer keeps all of them.
type inputs struct {
	nodes []beep.Streamer
	mixer beep.Mixer
}

func (in *inputs) add(s beep.Streamer) {
	in.nodes = append(in.nodes, s)
	in.mixer.Add(s)
}

func (in *inputs) remove(s beep.Streamer) {
	in.nodes = slices.DeleteFunc(in.nodes, func(x beep.Streamer) bool { return x == s })
	in.mixer.Clear()
	in.mixer.Add(in.nodes...)
}

func (in *inputs) Stream(samples [][2]float64) (int, bool) {
	if len(in.nodes) == 0 {
		clear(samples)
		return len(samples), true
	}
	n, _ := in.mixer.Stream(samples)
	clear(samples[n:])
	return len(samples), true
}

func (in *inputs) Err() error { return nil }

// destination is the graph output
type destination struct {
	node
	in inputs
}

func (d *destination) inputSet() *inputs { return &d.in }

func (d *destination) Connect(Node) error {
	return fmt.Errorf("%w: destination has no outputs", ErrInvalidConnection)
}

func (d *destination) Stream(samples [][2]float64) (int, bool) {
	return d.in.Stream(samples)
}

type gainNode struct {
	node
	in   inputs
	gain *param
	amp  effects.Gain
}

func (n *gainNode) inputSet() *inputs { return &n.in }

func (n *gainNode) Gain() Param { return n.gain }

func (n *gainNode) Stream(samples [][2]float64) (int, bool) {
	n.amp.Streamer = &n.in
	n.amp.Gain = n.gain.value - 1
	n.amp.Stream(samples)
	return len(samples), true
}

// sourceNode plays a buffer from an offset, optionally looping
type sourceNode struct {
	node
	buf     *Buffer
	loop    bool
	started bool
	stopped bool
	stream  beep.StreamSeeker
}

func (n *sourceNode) Buffer() *Buffer { return n.buf }

func (n *sourceNode) SetLoop(loop bool) {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	n.loop = loop
}

// Start begins playback at offset seconds into the buffer. Offsets past the
// end wrap around the buffer length.
func (n *sourceNode) Start(offset float64) error {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	if n.g.state == StateClosed {
		return ErrContextClosed
	}
	if n.started {
		return ErrSourceStarted
	}
	n.started = true

	frames := n.buf.Frames()
	if frames == 0 {
		return nil
	}
	pos := 0
	if offset > 0 {
		pos = int(offset*float64(n.buf.SampleRate())) % frames
	}
	n.stream = n.buf.data.Streamer(0, frames)
	return n.stream.Seek(pos)
}

func (n *sourceNode) Stop() error {
	n.g.mu.Lock()
	defer n.g.mu.Unlock()
	if !n.started {
		return ErrSourceNotStarted
	}
	if n.stopped {
		return ErrSourceStopped
	}
	n.stopped = true
	return nil
}

func (n *sourceNode) Stream(samples [][2]float64) (int, bool) {
	if n.stream == nil || n.stopped {
		clear(samples)
		return len(samples), true
	}
	filled := 0
	for filled < len(samples) {
		k, ok := n.stream.Stream(samples[filled:])
		filled += k
		if ok && k > 0 {
			continue
		}
		if !n.loop {
			n.stopped = true
			break
		}
		if err := n.stream.Seek(0); err != nil {
			n.stopped = true
			break
		}
	}
	clear(samples[filled:])
	return len(samples), true
}

// processorNode runs a kernel over the sum of its inputs
type processorNode struct {
	node
	in     inputs
	name   string
	kernel Kernel
	params map[string]*param
}

func (n *processorNode) inputSet() *inputs { return &n.in }

func (n *processorNode) Parameter(name string) (Param, bool) {
	p, ok := n.params[name]
	if !ok {
		return nil, false
	}
	return p, true
}

func (n *processorNode) Stream(samples [][2]float64) (int, bool) {
	n.in.Stream(samples)
	n.kernel.Process(samples, n.paramValue)
	return len(samples), true
}

func (n *processorNode) paramValue(name string) float64 {
	if p, ok := n.params[name]; ok {
		return p.value
	}
	return 0
}
