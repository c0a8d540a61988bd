package player

import (
	"context"
	"sync"
)

// Silent is a Transport that produces no sound. Loads become playable
// immediately and nothing ever ends on its own; it backs the headless
// commands that drive a session without an audio device.
type Silent struct {
	mu     sync.Mutex
	events chan Event
	closed bool
	source string
}

// NewSilent returns a ready Silent transport
func NewSilent() *Silent {
	return &Silent{events: make(chan Event, 16)}
}

func (s *Silent) Load(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.source = url
	s.emit(Event{Kind: EventCanPlay})
	return nil
}

func (s *Silent) Play(ctx context.Context) error  { return s.check() }
func (s *Silent) Pause(ctx context.Context) error { return s.check() }

func (s *Silent) Seek(ctx context.Context, seconds float64) error { return s.check() }

func (s *Silent) SetVolume(ctx context.Context, volume float64) error { return s.check() }

func (s *Silent) Events() <-chan Event {
	return s.events
}

// Source returns the last loaded URL
func (s *Silent) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Silent) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.events)
	return nil
}

func (s *Silent) check() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// emit drops the event when nobody is reading. Must be called with s.mu held.
func (s *Silent) emit(ev Event) {
	select {
	case s.events <- ev:
	default:
	}
}
