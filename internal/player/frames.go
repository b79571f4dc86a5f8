package player

import (
	"sync"
	"time"
)

// DefaultFrameInterval paces the transport tick
const DefaultFrameInterval = 16 * time.Millisecond

// FrameHandle identifies a requested frame callback
type FrameHandle uint64

// FrameScheduler runs a callback on the next display frame
type FrameScheduler interface {
	RequestFrame(fn func()) FrameHandle
	CancelFrame(h FrameHandle)
}

// TimerScheduler fires frames on timers at a fixed interval
type TimerScheduler struct {
	interval time.Duration

	mu     sync.Mutex
	next   FrameHandle
	timers map[FrameHandle]*time.Timer
}

func NewTimerScheduler(interval time.Duration) *TimerScheduler {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &TimerScheduler{interval: interval, timers: make(map[FrameHandle]*time.Timer)}
}

func (s *TimerScheduler) RequestFrame(fn func()) FrameHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	h := s.next
	s.timers[h] = time.AfterFunc(s.interval, func() {
		s.mu.Lock()
		delete(s.timers, h)
		s.mu.Unlock()
		fn()
	})
	return h
}

func (s *TimerScheduler) CancelFrame(h FrameHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[h]; ok {
		t.Stop()
		delete(s.timers, h)
	}
}
