// Package typing turns raw input events into start/stop presence
// notifications with a quiet-period timeout. One Signaler per open
// conversation view; it is never shared across conversations.
package typing

import (
	"sync"
	"time"
)

// DefaultQuietPeriod is the silence after the last input event before
// a "stopped" notification is emitted.
const DefaultQuietPeriod = 2 * time.Second

// Signaler is a two-state (idle/typing) machine. Exactly one started
// notification is emitted per typing burst; stopped is emitted either
// on quiet-period expiry or immediately on message send.
type Signaler struct {
	mu     sync.Mutex
	quiet  time.Duration
	emit   func(isTyping bool)
	timer  *time.Timer
	gen    int
	typing bool
	closed bool
}

// NewSignaler wires the signaler to an emitter. quiet <= 0 falls back
// to DefaultQuietPeriod.
func NewSignaler(quiet time.Duration, emit func(isTyping bool)) *Signaler {
	if quiet <= 0 {
		quiet = DefaultQuietPeriod
	}
	if emit == nil {
		emit = func(bool) {}
	}
	return &Signaler{quiet: quiet, emit: emit}
}

// InputChanged records a local input event. The first event of a burst
// transitions idle → typing and emits started; every event (re)arms
// the quiet-period timer without re-emitting.
func (s *Signaler) InputChanged() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	started := !s.typing
	s.typing = true
	s.rearmLocked()
	s.mu.Unlock()

	if started {
		s.emit(true)
	}
}

// MessageSent force-transitions to idle and emits stopped immediately.
// Sending implies the burst is over even if the quiet period has not
// elapsed.
func (s *Signaler) MessageSent() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.disarmLocked()
	wasTyping := s.typing
	s.typing = false
	s.mu.Unlock()

	if wasTyping {
		s.emit(false)
	}
}

// Close cancels any pending timer without emitting a final stopped
// event; the remote side times out presence independently.
func (s *Signaler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.typing = false
	s.disarmLocked()
}

func (s *Signaler) rearmLocked() {
	s.disarmLocked()
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(s.quiet, func() { s.expire(gen) })
}

func (s *Signaler) disarmLocked() {
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

// expire fires when the quiet period elapsed with no further input.
// The generation guard drops timers that lost a race with a reset.
func (s *Signaler) expire(gen int) {
	s.mu.Lock()
	if s.closed || !s.typing || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.typing = false
	s.timer = nil
	s.mu.Unlock()

	s.emit(false)
}
