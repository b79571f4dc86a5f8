package player

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/audiolibrelab/singalong/internal/audio"
)

const fakeRate = 10

// fakeContext is an audio.Context whose clock the test moves by hand
type fakeContext struct {
	mu sync.Mutex

	now       float64
	state     audio.State
	moduleErr error
	noParam   bool
	resumeErr error

	dest       *fakeNode
	gains      []*fakeGain
	sources    []*fakeSource
	processors []*fakeProcessor
	events     []string
	closed     bool
}

func newFakeContext() *fakeContext {
	return &fakeContext{state: audio.StateSuspended, dest: &fakeNode{name: "destination"}}
}

func (c *fakeContext) factory() audio.ContextFactory {
	return func(context.Context) (audio.Context, error) { return c, nil }
}

func (c *fakeContext) record(event string) {
	c.events = append(c.events, event)
}

func (c *fakeContext) setNow(t float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *fakeContext) eventLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.events...)
}

func (c *fakeContext) liveSources() []*fakeSource {
	c.mu.Lock()
	defer c.mu.Unlock()
	var live []*fakeSource
	for _, s := range c.sources {
		if s.started && !s.stopped {
			live = append(live, s)
		}
	}
	return live
}

func (c *fakeContext) ID() string      { return "fake" }
func (c *fakeContext) SampleRate() int { return fakeRate }

func (c *fakeContext) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeContext) State() audio.State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *fakeContext) Resume(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.resumeErr != nil {
		return c.resumeErr
	}
	c.state = audio.StateRunning
	c.record("resume")
	return nil
}

func (c *fakeContext) Suspend() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = audio.StateSuspended
	c.record("suspend")
	return nil
}

func (c *fakeContext) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = audio.StateClosed
	c.closed = true
	c.record("close")
	return nil
}

func (c *fakeContext) Destination() audio.Node { return c.dest }

func (c *fakeContext) NewGain() (audio.GainNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	g := &fakeGain{fakeNode: fakeNode{name: fmt.Sprintf("gain%d", len(c.gains))}, gain: &fakeParam{name: "gain", value: 1}}
	c.gains = append(c.gains, g)
	return g, nil
}

func (c *fakeContext) NewBufferSource(buf *audio.Buffer) (audio.SourceNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := &fakeSource{ctx: c, buf: buf}
	c.sources = append(c.sources, s)
	return s, nil
}

func (c *fakeContext) AddModule(context.Context, string) error {
	return c.moduleErr
}

func (c *fakeContext) NewProcessor(name string) (audio.ProcessorNode, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := &fakeProcessor{fakeNode: fakeNode{name: name}, params: map[string]*fakeParam{}}
	if !c.noParam {
		p.params[audio.PitchFactorParam] = &fakeParam{name: audio.PitchFactorParam, value: 1}
	}
	c.processors = append(c.processors, p)
	return p, nil
}

// DecodeAudioData turns "dur:N" into an N second buffer
func (c *fakeContext) DecodeAudioData(data []byte) (*audio.Buffer, error) {
	s, ok := strings.CutPrefix(string(data), "dur:")
	if !ok {
		return nil, audio.ErrUnsupportedFormat
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, audio.ErrUnsupportedFormat
	}
	return audio.NewBuffer(fakeRate, make([][2]float64, int(secs*fakeRate))), nil
}

type fakeNode struct {
	name string
	mu   sync.Mutex
	out  audio.Node
}

func (n *fakeNode) Connect(dst audio.Node) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.out = dst
	return nil
}

func (n *fakeNode) Disconnect() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.out = nil
}

func (n *fakeNode) output() audio.Node {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.out
}

type paramSet struct {
	value, when float64
}

type fakeParam struct {
	mu    sync.Mutex
	name  string
	value float64
	sets  []paramSet
}

func (p *fakeParam) Name() string { return p.name }

func (p *fakeParam) Value() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.value
}

func (p *fakeParam) SetValueAtTime(v, when float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.value = v
	p.sets = append(p.sets, paramSet{v, when})
}

func (p *fakeParam) lastSet() paramSet {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.sets) == 0 {
		return paramSet{}
	}
	return p.sets[len(p.sets)-1]
}

type fakeGain struct {
	fakeNode
	gain *fakeParam
}

func (g *fakeGain) Gain() audio.Param { return g.gain }

type fakeProcessor struct {
	fakeNode
	params map[string]*fakeParam
}

func (p *fakeProcessor) Parameter(name string) (audio.Param, bool) {
	fp, ok := p.params[name]
	if !ok {
		return nil, false
	}
	return fp, true
}

type fakeSource struct {
	fakeNode
	ctx       *fakeContext
	buf       *audio.Buffer
	loop      bool
	started   bool
	stopped   bool
	offset    float64
	stopCalls int
}

func (s *fakeSource) Buffer() *audio.Buffer { return s.buf }

func (s *fakeSource) SetLoop(loop bool) { s.loop = loop }

func (s *fakeSource) Start(offset float64) error {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	if s.started {
		return audio.ErrSourceStarted
	}
	s.started = true
	s.offset = offset
	s.ctx.record("start")
	return nil
}

func (s *fakeSource) Stop() error {
	s.ctx.mu.Lock()
	defer s.ctx.mu.Unlock()
	s.stopCalls++
	if s.stopped {
		return audio.ErrSourceStopped
	}
	s.stopped = true
	return nil
}

// manualFrames queues frame callbacks until the test fires them
type manualFrames struct {
	mu       sync.Mutex
	next     FrameHandle
	pending  map[FrameHandle]func()
	canceled int
}

func newManualFrames() *manualFrames {
	return &manualFrames{pending: make(map[FrameHandle]func())}
}

func (m *manualFrames) RequestFrame(fn func()) FrameHandle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.next++
	m.pending[m.next] = fn
	return m.next
}

func (m *manualFrames) CancelFrame(h FrameHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pending[h]; ok {
		delete(m.pending, h)
		m.canceled++
	}
}

func (m *manualFrames) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.pending)
}

// fire runs every queued callback and reports how many ran
func (m *manualFrames) fire() int {
	m.mu.Lock()
	fns := make([]func(), 0, len(m.pending))
	for h, fn := range m.pending {
		fns = append(fns, fn)
		delete(m.pending, h)
	}
	m.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// fakeFetcher serves canned bodies; gated URLs block until released and
// ignore cancellation
type fakeFetcher struct {
	mu     sync.Mutex
	bodies map[string]string
	gates  map[string]chan struct{}
	calls  []string
}

func newFakeFetcher(bodies map[string]string) *fakeFetcher {
	return &fakeFetcher{bodies: bodies, gates: make(map[string]chan struct{})}
}

func (f *fakeFetcher) gate(url string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan struct{})
	f.gates[url] = ch
	return ch
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	f.mu.Lock()
	f.calls = append(f.calls, url)
	gate := f.gates[url]
	body, ok := f.bodies[url]
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return nil, errors.New("404 not found")
	}
	return []byte(body), nil
}
