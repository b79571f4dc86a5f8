package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"testing"
)

const testRate = 8

func constantFrames(n int, v float64) [][2]float64 {
	frames := make([][2]float64, n)
	for i := range frames {
		frames[i] = [2]float64{v, v}
	}
	return frames
}

func rampFrames(n int) [][2]float64 {
	frames := make([][2]float64, n)
	for i := range frames {
		v := float64(i+1) / 10
		frames[i] = [2]float64{v, v}
	}
	return frames
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-4 }

func runningGraph(t *testing.T) *Graph {
	t.Helper()
	g := NewGraph(Options{SampleRate: testRate})
	if err := g.Resume(context.Background()); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	return g
}

// wire connects buffer → source → gain → destination and starts the source
func wire(t *testing.T, g *Graph, buf *Buffer, loop bool, offset float64) (SourceNode, GainNode) {
	t.Helper()
	src, err := g.NewBufferSource(buf)
	if err != nil {
		t.Fatalf("NewBufferSource failed: %v", err)
	}
	gain, err := g.NewGain()
	if err != nil {
		t.Fatalf("NewGain failed: %v", err)
	}
	if err := src.Connect(gain); err != nil {
		t.Fatalf("Connect source failed: %v", err)
	}
	if err := gain.Connect(g.Destination()); err != nil {
		t.Fatalf("Connect gain failed: %v", err)
	}
	src.SetLoop(loop)
	if err := src.Start(offset); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	return src, gain
}

func TestGraph_ClockOnlyAdvancesWhileRunning(t *testing.T) {
	g := NewGraph(Options{SampleRate: testRate})
	out := make([][2]float64, testRate)

	g.Render(out)
	if g.CurrentTime() != 0 {
		t.Errorf("Expected suspended clock to stay at 0, got %v", g.CurrentTime())
	}

	if err := g.Resume(context.Background()); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	g.Render(out)
	if !approx(g.CurrentTime(), 1) {
		t.Errorf("Expected clock at 1s, got %v", g.CurrentTime())
	}

	if err := g.Suspend(); err != nil {
		t.Fatalf("Suspend failed: %v", err)
	}
	g.Render(out)
	if !approx(g.CurrentTime(), 1) {
		t.Errorf("Expected clock frozen at 1s, got %v", g.CurrentTime())
	}
	if g.State() != StateSuspended {
		t.Errorf("Expected suspended state, got %s", g.State())
	}
}

func TestGainNode_ScalesInput(t *testing.T) {
	g := runningGraph(t)
	_, gain := wire(t, g, NewBuffer(testRate, constantFrames(8, 0.5)), false, 0)
	gain.Gain().SetValueAtTime(0.5, 0)

	out := make([][2]float64, 4)
	g.Render(out)
	for i, f := range out {
		if !approx(f[0], 0.25) || !approx(f[1], 0.25) {
			t.Errorf("Frame %d: expected 0.25, got %v", i, f)
		}
	}
}

func TestParam_ScheduledChangeAppliesAtBlockStart(t *testing.T) {
	g := runningGraph(t)
	_, gain := wire(t, g, NewBuffer(testRate, constantFrames(16, 0.5)), false, 0)
	gain.Gain().SetValueAtTime(0, 0.5)

	out := make([][2]float64, 4)
	g.Render(out)
	if !approx(out[0][0], 0.5) {
		t.Errorf("Expected unity gain before scheduled time, got %v", out[0][0])
	}
	g.Render(out)
	if out[0][0] != 0 {
		t.Errorf("Expected scheduled gain 0 after 0.5s, got %v", out[0][0])
	}
	if gain.Gain().Value() != 0 {
		t.Errorf("Expected param value 0, got %v", gain.Gain().Value())
	}
}

func TestSourceNode_LoopsFromOffset(t *testing.T) {
	g := runningGraph(t)
	// 8 frames is one second; 1.25s wraps to frame 2
	wire(t, g, NewBuffer(testRate, rampFrames(8)), true, 1.25)

	out := make([][2]float64, 8)
	g.Render(out)
	want := []float64{0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.1, 0.2}
	for i, w := range want {
		if !approx(out[i][0], w) {
			t.Errorf("Frame %d: expected %v, got %v", i, w, out[i][0])
		}
	}
}

func TestSourceNode_StopsAtEndWithoutLoop(t *testing.T) {
	g := runningGraph(t)
	wire(t, g, NewBuffer(testRate, rampFrames(3)), false, 0)

	out := make([][2]float64, 6)
	g.Render(out)
	if !approx(out[2][0], 0.3) {
		t.Errorf("Expected last buffer frame 0.3, got %v", out[2][0])
	}
	for i := 3; i < 6; i++ {
		if out[i][0] != 0 {
			t.Errorf("Frame %d: expected silence after end, got %v", i, out[i][0])
		}
	}
}

func TestSourceNode_SingleUse(t *testing.T) {
	g := runningGraph(t)
	src, err := g.NewBufferSource(NewBuffer(testRate, rampFrames(4)))
	if err != nil {
		t.Fatalf("NewBufferSource failed: %v", err)
	}

	if err := src.Stop(); !errors.Is(err, ErrSourceNotStarted) {
		t.Errorf("Expected ErrSourceNotStarted, got %v", err)
	}
	if err := src.Start(0); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := src.Start(0); !errors.Is(err, ErrSourceStarted) {
		t.Errorf("Expected ErrSourceStarted, got %v", err)
	}
	if err := src.Stop(); err != nil {
		t.Errorf("Expected first stop to succeed, got %v", err)
	}
	if err := src.Stop(); !errors.Is(err, ErrSourceStopped) {
		t.Errorf("Expected ErrSourceStopped, got %v", err)
	}
}

func TestNode_ConnectValidation(t *testing.T) {
	g := runningGraph(t)
	other := runningGraph(t)

	a, _ := g.NewBufferSource(NewBuffer(testRate, rampFrames(2)))
	b, _ := g.NewBufferSource(NewBuffer(testRate, rampFrames(2)))
	if err := a.Connect(b); !errors.Is(err, ErrInvalidConnection) {
		t.Errorf("Expected ErrInvalidConnection connecting into a source, got %v", err)
	}

	gain, _ := g.NewGain()
	if err := gain.Connect(other.Destination()); !errors.Is(err, ErrInvalidConnection) {
		t.Errorf("Expected ErrInvalidConnection across graphs, got %v", err)
	}
	if err := gain.Connect(gain); !errors.Is(err, ErrInvalidConnection) {
		t.Errorf("Expected ErrInvalidConnection for self connection, got %v", err)
	}
	if err := g.Destination().Connect(gain); !errors.Is(err, ErrInvalidConnection) {
		t.Errorf("Expected ErrInvalidConnection from destination, got %v", err)
	}
}

func TestNode_DisconnectSilencesOutput(t *testing.T) {
	g := runningGraph(t)
	src, _ := wire(t, g, NewBuffer(testRate, constantFrames(8, 0.5)), true, 0)
	src.Disconnect()

	out := make([][2]float64, 4)
	g.Render(out)
	for i, f := range out {
		if f[0] != 0 {
			t.Errorf("Frame %d: expected silence after disconnect, got %v", i, f[0])
		}
	}
}

func TestGraph_RejectsMismatchedBufferRate(t *testing.T) {
	g := runningGraph(t)
	if _, err := g.NewBufferSource(NewBuffer(testRate*2, rampFrames(2))); !errors.Is(err, ErrSampleRateMismatch) {
		t.Errorf("Expected ErrSampleRateMismatch, got %v", err)
	}
}

func TestGraph_ReadEncodesFloat32Stereo(t *testing.T) {
	g := runningGraph(t)
	wire(t, g, NewBuffer(testRate, constantFrames(4, 0.5)), false, 0)

	p := make([]byte, 2*frameBytes)
	n, err := g.Read(p)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if n != len(p) {
		t.Errorf("Expected %d bytes, got %d", len(p), n)
	}
	for i := 0; i < 4; i++ {
		v := math.Float32frombits(binary.LittleEndian.Uint32(p[i*4:]))
		if !approx(float64(v), 0.5) {
			t.Errorf("Sample %d: expected 0.5, got %v", i, v)
		}
	}
}

func TestGraph_Close(t *testing.T) {
	g := runningGraph(t)
	if err := g.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := g.Close(); err != nil {
		t.Errorf("Expected second close to be a no-op, got %v", err)
	}
	if _, err := g.NewGain(); !errors.Is(err, ErrContextClosed) {
		t.Errorf("Expected ErrContextClosed from NewGain, got %v", err)
	}
	if err := g.Resume(context.Background()); !errors.Is(err, ErrContextClosed) {
		t.Errorf("Expected ErrContextClosed from Resume, got %v", err)
	}
	if _, err := g.Read(make([]byte, frameBytes)); err != io.EOF {
		t.Errorf("Expected io.EOF from Read, got %v", err)
	}
}

func TestGraph_IDsAreUnique(t *testing.T) {
	a, b := NewGraph(Options{}), NewGraph(Options{})
	if a.ID() == b.ID() {
		t.Errorf("Expected unique graph ids, got %s twice", a.ID())
	}
	if a.SampleRate() != DefaultSampleRate {
		t.Errorf("Expected default sample rate %d, got %d", DefaultSampleRate, a.SampleRate())
	}
}
