package audio

import (
	"context"
	"errors"
)

// State represents the lifecycle of an audio context
type State string

const (
	StateSuspended State = "suspended"
	StateRunning   State = "running"
	StateClosed    State = "closed"
)

var (
	ErrContextClosed      = errors.New("audio context closed")
	ErrInvalidConnection  = errors.New("invalid node connection")
	ErrSourceStarted      = errors.New("source node already started")
	ErrSourceNotStarted   = errors.New("source node not started")
	ErrSourceStopped      = errors.New("source node already stopped")
	ErrUnknownProcessor   = errors.New("unknown processor")
	ErrModuleMalformed    = errors.New("malformed processor module")
	ErrUnsupportedFormat  = errors.New("unsupported audio format")
	ErrSampleRateMismatch = errors.New("buffer sample rate does not match context")
)

// Node is a stage in the signal path
type Node interface {
	Connect(dst Node) error
	Disconnect()
}

// Param is an automatable control value owned by a node
type Param interface {
	Name() string
	Value() float64

	// SetValueAtTime schedules value to take effect once the context clock
	// reaches when; times at or before now apply immediately
	SetValueAtTime(value, when float64)
}

// GainNode scales the sum of its inputs
type GainNode interface {
	Node
	Gain() Param
}

// SourceNode plays a decoded buffer. It is single-use: once stopped it
// cannot be started again.
type SourceNode interface {
	Node
	Buffer() *Buffer
	SetLoop(loop bool)
	Start(offset float64) error
	Stop() error
}

// ProcessorNode runs a registered processing kernel over its inputs
type ProcessorNode interface {
	Node
	Parameter(name string) (Param, bool)
}

// Decoder turns encoded audio bytes into a buffer at the context rate
type Decoder interface {
	DecodeAudioData(data []byte) (*Buffer, error)
}

// Context owns every node it creates and the clock they share
type Context interface {
	Decoder

	ID() string
	SampleRate() int

	// CurrentTime is the audio clock in seconds. It only advances while the
	// context is running.
	CurrentTime() float64
	State() State
	Resume(ctx context.Context) error
	Suspend() error
	Close() error

	Destination() Node
	NewGain() (GainNode, error)
	NewBufferSource(buf *Buffer) (SourceNode, error)

	// AddModule fetches a processor module manifest and registers the
	// processors it declares
	AddModule(ctx context.Context, url string) error
	NewProcessor(name string) (ProcessorNode, error)
}

// ContextFactory builds a new audio context
type ContextFactory func(ctx context.Context) (Context, error)

// FetchFunc retrieves a remote asset
type FetchFunc func(ctx context.Context, url string) ([]byte, error)
