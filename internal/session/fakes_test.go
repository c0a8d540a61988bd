package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/jfmyers9/loopdeck/internal/history"
	"github.com/jfmyers9/loopdeck/internal/player"
	"github.com/jfmyers9/loopdeck/internal/playlist"
	"github.com/jfmyers9/loopdeck/pkg/newsloop"
	"github.com/rs/zerolog"
)

type fakeTransport struct {
	mu      sync.Mutex
	calls   []string
	loaded  string
	volume  float64
	seekTo  float64
	playErr error
	closed  bool
	events  chan player.Event
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{volume: -1, events: make(chan player.Event, 16)}
}

func (f *fakeTransport) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *fakeTransport) Load(ctx context.Context, url string) error {
	f.record("load " + url)
	f.mu.Lock()
	f.loaded = url
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Play(ctx context.Context) error {
	f.record("play")
	return f.playErr
}

func (f *fakeTransport) Pause(ctx context.Context) error {
	f.record("pause")
	return nil
}

func (f *fakeTransport) Seek(ctx context.Context, seconds float64) error {
	f.record(fmt.Sprintf("seek %.1f", seconds))
	f.mu.Lock()
	f.seekTo = seconds
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) SetVolume(ctx context.Context, v float64) error {
	f.mu.Lock()
	f.volume = v
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) Events() <-chan player.Event {
	return f.events
}

func (f *fakeTransport) Close() error {
	f.record("close")
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeTransport) count(call string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == call {
			n++
		}
	}
	return n
}

type fakeLibrary struct {
	mu        sync.Mutex
	tracks    []playlist.Track
	loadErr   error
	refreshes int
	deletes   []string
	onChange  func(playlist.Change)
}

func (f *fakeLibrary) Load(ctx context.Context) error {
	if f.loadErr != nil {
		return f.loadErr
	}
	if f.onChange != nil {
		f.onChange(playlist.Change{Kind: playlist.ChangeLoaded})
	}
	return nil
}

func (f *fakeLibrary) Refresh(ctx context.Context) error {
	f.mu.Lock()
	f.refreshes++
	f.mu.Unlock()
	return nil
}

func (f *fakeLibrary) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	f.deletes = append(f.deletes, id)
	f.mu.Unlock()
	return nil
}

func (f *fakeLibrary) Tracks() []playlist.Track {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]playlist.Track(nil), f.tracks...)
}

func (f *fakeLibrary) Loading() bool             { return false }
func (f *fakeLibrary) Deleting() []string        { return nil }
func (f *fakeLibrary) RecentlyDeleted() []string { return nil }

func (f *fakeLibrary) refreshCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refreshes
}

// fakeStream replays scripted events, then returns io.EOF
type fakeStream struct {
	mu     sync.Mutex
	script []newsloop.Event
	closed int
}

func (s *fakeStream) Next() (newsloop.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed > 0 {
		return newsloop.Event{}, errors.New("stream closed")
	}
	if len(s.script) == 0 {
		return newsloop.Event{}, io.EOF
	}
	ev := s.script[0]
	s.script = s.script[1:]
	return ev, nil
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *fakeStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeStreamer struct {
	mu      sync.Mutex
	opened  []*fakeStream
	failErr error
}

func (f *fakeStreamer) Start(ctx context.Context) (Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failErr != nil {
		return nil, f.failErr
	}
	s := &fakeStream{}
	f.opened = append(f.opened, s)
	return s, nil
}

type fakeJobLog struct {
	mu       sync.Mutex
	started  []string
	outcomes map[string]history.Outcome
}

func (f *fakeJobLog) Start(ctx context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, id)
	return nil
}

func (f *fakeJobLog) Finish(ctx context.Context, id string, outcome history.Outcome, status string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.outcomes == nil {
		f.outcomes = make(map[string]history.Outcome)
	}
	f.outcomes[id] = outcome
	return nil
}

func (f *fakeJobLog) outcome(id string) history.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.outcomes[id]
}

type fakeTimer struct {
	fn      func()
	d       time.Duration
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.stopped = true
	return true
}

type testRig struct {
	c         *Controller
	transport *fakeTransport
	lib       *fakeLibrary
	streamer  *fakeStreamer
	log       *fakeJobLog
	timers    []*fakeTimer
	readers   []string
}

// newTestRig builds a controller whose side effects run inline, so tests
// drive it by calling handle and drain
func newTestRig(t *testing.T, urls ...string) *testRig {
	t.Helper()

	r := &testRig{
		transport: newFakeTransport(),
		lib:       &fakeLibrary{tracks: playlist.Transform(urls)},
		streamer:  &fakeStreamer{},
		log:       &fakeJobLog{},
	}
	r.c = New(r.lib, r.transport, r.streamer, Options{History: r.log}, zerolog.Nop())
	r.c.spawn = func(f func()) { f() }
	r.c.afterFunc = func(d time.Duration, f func()) stopper {
		timer := &fakeTimer{fn: f, d: d}
		r.timers = append(r.timers, timer)
		return timer
	}
	r.c.streamReader = func(job string, s Stream) {
		r.readers = append(r.readers, job)
	}
	t.Cleanup(func() { _ = r.c.Close() })

	r.c.handle(playlistChanged{change: playlist.Change{Kind: playlist.ChangeLoaded}})
	return r
}

// drain handles queued events without blocking
func (r *testRig) drain() {
	for {
		select {
		case ev := <-r.c.inbox:
			r.c.handle(ev)
		default:
			return
		}
	}
}

// fireTimers runs every pending settle timer that was not stopped
func (r *testRig) fireTimers() {
	timers := r.timers
	r.timers = nil
	for _, t := range timers {
		if !t.stopped {
			t.fn()
		}
	}
	r.drain()
}

func (r *testRig) ready(duration float64) {
	r.c.handle(transportEvent{ev: player.Event{Kind: player.EventCanPlay}})
	r.c.handle(transportEvent{ev: player.Event{Kind: player.EventTimeUpdate, Duration: duration}})
}

func (r *testRig) message(data string) {
	r.c.handle(streamMessage{job: r.c.gen.JobID, data: data})
}
