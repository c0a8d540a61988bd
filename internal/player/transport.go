package player

import (
	"context"
	"fmt"
)

// Transport is an audio output that plays one source at a time.
//
// Load replaces the current source and leaves playback paused; the
// transport reports EventCanPlay once the source can be played.
type Transport interface {
	Load(ctx context.Context, url string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	SetVolume(ctx context.Context, volume float64) error // 0.0 - 1.0
	Events() <-chan Event
	Close() error
}

// EventKind identifies a transport notification
type EventKind int

const (
	EventCanPlay EventKind = iota
	EventTimeUpdate
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventCanPlay:
		return "canplay"
	case EventTimeUpdate:
		return "timeupdate"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is a notification from the transport
type Event struct {
	Kind     EventKind
	Position float64 // seconds, EventTimeUpdate only
	Duration float64 // seconds, 0 when unknown
	Err      error   // EventError only
}
