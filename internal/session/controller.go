package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/jfmyers9/loopdeck/internal/history"
	"github.com/jfmyers9/loopdeck/internal/player"
	"github.com/jfmyers9/loopdeck/internal/playlist"
	"github.com/jfmyers9/loopdeck/pkg/newsloop"
	"github.com/rs/zerolog"
)

const (
	// DefaultSettleDelay is how long a successful job keeps its final
	// status before the stream is closed and the playlist refreshed
	DefaultSettleDelay = time.Second

	// DefaultVolume is used when no saved prefs exist
	DefaultVolume = 80

	transportTimeout = 2 * time.Second
	inboxSize        = 256
)

// ErrAlreadyRunning is returned by Run when the controller is already
// running or has run before.
var ErrAlreadyRunning = errors.New("session: controller already running")

// Library is the playlist the controller plays from
type Library interface {
	Load(ctx context.Context) error
	Refresh(ctx context.Context) error
	Delete(ctx context.Context, id string) error
	Tracks() []playlist.Track
	Loading() bool
	Deleting() []string
	RecentlyDeleted() []string
}

// Stream is an open generation event stream
type Stream interface {
	Next() (newsloop.Event, error)
	Close() error
}

// Streamer starts generation jobs
type Streamer interface {
	Start(ctx context.Context) (Stream, error)
}

// JobLog records generation jobs
type JobLog interface {
	Start(ctx context.Context, id string, at time.Time) error
	Finish(ctx context.Context, id string, outcome history.Outcome, status string, at time.Time) error
}

type generationStreamer struct {
	svc *newsloop.GenerationService
}

// NewStreamer adapts the SDK generation service to a Streamer
func NewStreamer(svc *newsloop.GenerationService) Streamer {
	return generationStreamer{svc: svc}
}

func (g generationStreamer) Start(ctx context.Context) (Stream, error) {
	s, err := g.svc.Start(ctx)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Options configures a Controller
type Options struct {
	SettleDelay time.Duration
	Volume      int        // initial volume when Prefs holds nothing
	Prefs       *PrefsFile // optional
	History     JobLog     // optional

	// OnGeneration is called on the loop goroutine after every change to
	// the generation state, once per server status message. It must not
	// block.
	OnGeneration func(Generation)
}

type stopper interface {
	Stop() bool
}

// Controller owns the audio transport and the generation job.
//
// All state is mutated by the goroutine running Run; the exported
// methods only enqueue commands and are safe to call from anywhere.
type Controller struct {
	lib         Library
	transport   player.Transport
	streamer    Streamer
	history     JobLog
	prefs       *PrefsFile
	onGen       func(Generation)
	logger      zerolog.Logger
	settleDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc

	inbox   chan event
	done    chan struct{}
	stopped chan struct{}

	lifeMu  sync.Mutex
	running bool
	closed  bool

	spawn        func(func())
	afterFunc    func(time.Duration, func()) stopper
	streamReader func(job string, s Stream)
	now          func() time.Time

	// loop-owned
	tracks      []playlist.Track
	session     Session
	gen         Generation
	needsLogin  bool
	stream      Stream
	successSeen bool
	settleTimer stopper

	snapMu sync.RWMutex
	snap   Snapshot
	subs   []chan Snapshot
}

// New creates a Controller. Call Run to start it and Close to tear it down.
func New(lib Library, transport player.Transport, streamer Streamer, opts Options, logger zerolog.Logger) *Controller {
	settle := opts.SettleDelay
	if settle <= 0 {
		settle = DefaultSettleDelay
	}

	volume := opts.Volume
	if volume == 0 {
		volume = DefaultVolume
	}
	session := Session{Volume: clampVolume(volume)}
	if opts.Prefs != nil {
		if p, ok := opts.Prefs.Get(); ok {
			session.Volume = p.Volume
			session.IsMuted = p.Muted
		}
	}

	ctx, cancel := context.WithCancel(context.Background())

	c := &Controller{
		lib:         lib,
		transport:   transport,
		streamer:    streamer,
		history:     opts.History,
		prefs:       opts.Prefs,
		onGen:       opts.OnGeneration,
		logger:      logger.With().Str("component", "controller").Logger(),
		settleDelay: settle,
		ctx:         ctx,
		cancel:      cancel,
		inbox:       make(chan event, inboxSize),
		done:        make(chan struct{}),
		stopped:     make(chan struct{}),
		spawn:       func(f func()) { go f() },
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		now:     time.Now,
		tracks:  []playlist.Track{playlist.LoadingTrack},
		session: session,
		gen:     Generation{StatusText: IdleLabel},
	}
	c.streamReader = func(job string, s Stream) { go c.readStream(job, s) }
	c.snap = c.buildSnapshot()
	return c
}

// Run loads the playlist and processes events until ctx is done or
// Close is called. A controller runs at most once.
func (c *Controller) Run(ctx context.Context) error {
	c.lifeMu.Lock()
	if c.closed {
		c.lifeMu.Unlock()
		return nil
	}
	if c.running {
		c.lifeMu.Unlock()
		return ErrAlreadyRunning
	}
	c.running = true
	c.lifeMu.Unlock()
	defer close(c.stopped)

	c.logger.Info().Msg("Session started")
	c.applyVolume()
	c.spawn(func() {
		c.post(loadFinished{err: c.lib.Load(c.ctx)})
	})

	transportEvents := c.transport.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case ev := <-c.inbox:
			c.handle(ev)
		case ev, ok := <-transportEvents:
			if !ok {
				c.logger.Warn().Msg("Audio transport closed")
				transportEvents = nil
				continue
			}
			c.handle(transportEvent{ev: ev})
		}
	}
}

// Close tears the session down: the generation stream is closed, timers
// stop and the transport is paused and released. No state changes
// after Close returns.
func (c *Controller) Close() error {
	c.lifeMu.Lock()
	if c.closed {
		c.lifeMu.Unlock()
		return nil
	}
	c.closed = true
	running := c.running
	c.lifeMu.Unlock()

	close(c.done)
	if running {
		<-c.stopped
	}
	c.cancel()

	if c.gen.JobID != "" {
		c.finishJob(c.gen.JobID, history.OutcomeInterrupted)
	}
	c.closeStream()
	c.stopSettle()

	ctx, cancel := context.WithTimeout(context.Background(), transportTimeout)
	defer cancel()
	if err := c.transport.Pause(ctx); err != nil {
		c.logger.Debug().Err(err).Msg("Failed to pause transport on close")
	}
	err := c.transport.Close()

	c.snapMu.Lock()
	for _, ch := range c.subs {
		close(ch)
	}
	c.subs = nil
	c.snapMu.Unlock()

	c.logger.Info().Msg("Session closed")
	return err
}

// Select plays track i, or toggles play/pause if it is already selected
func (c *Controller) Select(i int) { c.post(cmdSelect{index: i}) }

// Next advances to the next track, wrapping around
func (c *Controller) Next() { c.post(cmdNext{}) }

// Previous goes back one track, wrapping around
func (c *Controller) Previous() { c.post(cmdPrevious{}) }

// TogglePlay toggles between playing and paused
func (c *Controller) TogglePlay() { c.post(cmdTogglePlay{}) }

// SetVolume sets the volume (0-100) and unmutes
func (c *Controller) SetVolume(v int) { c.post(cmdSetVolume{volume: v}) }

// ToggleMute mutes or restores the volume
func (c *Controller) ToggleMute() { c.post(cmdToggleMute{}) }

// Seek jumps to a percentage (0-100) of the current track
func (c *Controller) Seek(percent float64) { c.post(cmdSeek{percent: percent}) }

// Generate starts a generation job, or cancels the running one
func (c *Controller) Generate() { c.post(cmdGenerate{}) }

// Delete deletes the remote file with the given identifier
func (c *Controller) Delete(id string) { c.post(cmdDelete{id: id}) }

// Refresh refetches the playlist
func (c *Controller) Refresh() { c.post(cmdRefresh{}) }

// PlaylistChanged is the playlist store's observer
func (c *Controller) PlaylistChanged(change playlist.Change) {
	c.post(playlistChanged{change: change})
}

// Snapshot returns the latest published state
func (c *Controller) Snapshot() Snapshot {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	return c.snap
}

// Subscribe returns a channel receiving the latest snapshot after every
// change. Slow readers only see the most recent one. The channel closes
// on Close.
func (c *Controller) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, 1)

	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	ch <- c.snap
	c.subs = append(c.subs, ch)
	return ch
}

// post enqueues an event for the loop; dropped after Close
func (c *Controller) post(ev event) {
	select {
	case <-c.done:
	case c.inbox <- ev:
	}
}

// handle applies one event. Only the loop goroutine calls it.
func (c *Controller) handle(ev event) {
	switch e := ev.(type) {
	case cmdSelect:
		c.selectTrack(e.index)
	case cmdNext:
		c.step(1)
	case cmdPrevious:
		c.step(-1)
	case cmdTogglePlay:
		c.togglePlay()
	case cmdSetVolume:
		c.setVolume(e.volume)
	case cmdToggleMute:
		c.toggleMute()
	case cmdSeek:
		c.seek(e.percent)
	case cmdGenerate:
		c.startOrCancel()
	case cmdDelete:
		c.deleteTrack(e.id)
	case cmdRefresh:
		c.refresh()

	case transportEvent:
		c.onTransport(e.ev)
	case playlistChanged:
		c.onPlaylistChanged(e.change)
	case loadFinished:
		c.onLoadFinished(e.err)

	case streamOpened:
		c.onStreamOpened(e)
	case streamMessage:
		c.onStreamMessage(e)
	case streamDone:
		c.onStreamDone(e)
	case streamFailed:
		c.onStreamFailed(e)
	case generationSettled:
		c.onSettled(e)

	default:
		c.logger.Warn().Msgf("Unknown event %T", ev)
		return
	}

	c.publish()
}

func (c *Controller) deleteTrack(id string) {
	if id == "" {
		return
	}
	c.spawn(func() {
		if err := c.lib.Delete(c.ctx, id); err != nil {
			c.logger.Warn().Err(err).Str("id", id).Msg("Delete failed")
		}
	})
}

func (c *Controller) refresh() {
	c.spawn(func() {
		_ = c.lib.Refresh(c.ctx)
	})
}

func (c *Controller) onLoadFinished(err error) {
	if err == nil {
		return
	}
	c.logger.Warn().Err(err).Msg("Session is not authenticated")
	c.needsLogin = true
}

func (c *Controller) buildSnapshot() Snapshot {
	return Snapshot{
		Playlist:        slices.Clone(c.tracks),
		Session:         c.session,
		Generation:      c.gen,
		Deleting:        c.lib.Deleting(),
		RecentlyDeleted: c.lib.RecentlyDeleted(),
		Loading:         c.lib.Loading(),
		NeedsLogin:      c.needsLogin,
	}
}

// publish stores a fresh snapshot and hands it to subscribers
func (c *Controller) publish() {
	snap := c.buildSnapshot()

	c.snapMu.Lock()
	defer c.snapMu.Unlock()
	c.snap = snap
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- snap
	}
}

func (c *Controller) transportContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.ctx, transportTimeout)
}
