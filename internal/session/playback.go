package session

import (
	"math"

	"github.com/jfmyers9/loopdeck/internal/player"
	"github.com/jfmyers9/loopdeck/internal/playlist"
)

func (c *Controller) realTrackCount() int {
	n := 0
	for _, t := range c.tracks {
		if !t.IsSentinel() {
			n++
		}
	}
	return n
}

// selectTrack plays track i, toggling if it is already current
func (c *Controller) selectTrack(i int) {
	if i < 0 || i >= len(c.tracks) || c.tracks[i].IsSentinel() {
		return
	}

	if i == c.session.TrackIndex {
		c.togglePlay()
		return
	}

	c.session.TrackIndex = i
	c.session.IsPlaying = true
	c.loadSource()
}

// step moves by delta with wraparound, keeping the play intent
func (c *Controller) step(delta int) {
	if c.realTrackCount() <= 1 {
		return
	}

	n := len(c.tracks)
	c.session.TrackIndex = ((c.session.TrackIndex+delta)%n + n) % n
	c.loadSource()
}

// loadSource stops the transport and loads the current track. The
// session becomes ready on the transport's can-play event.
func (c *Controller) loadSource() {
	c.session.IsReady = false
	c.session.CurrentTime = 0
	c.session.Duration = 0
	c.session.Progress = 0

	if c.session.TrackIndex < 0 || c.session.TrackIndex >= len(c.tracks) {
		c.session.TrackIndex = 0
	}
	track := c.tracks[c.session.TrackIndex]
	if track.IsSentinel() {
		c.session.IsPlaying = false
		return
	}

	ctx, cancel := c.transportContext()
	defer cancel()
	if err := c.transport.Load(ctx, track.URL); err != nil {
		c.logger.Error().Err(err).Str("title", track.Title).Msg("Failed to load track")
		c.session.IsPlaying = false
		return
	}
	c.logger.Debug().Str("title", track.Title).Int("index", c.session.TrackIndex).Msg("Loading track")
}

func (c *Controller) togglePlay() {
	if !c.session.IsReady {
		// applied once the transport can play
		c.session.IsPlaying = !c.session.IsPlaying
		return
	}

	if c.session.IsPlaying {
		c.pause()
		return
	}
	c.play()
}

// play starts the transport; a rejected play is logged, never fatal
func (c *Controller) play() {
	ctx, cancel := c.transportContext()
	defer cancel()
	if err := c.transport.Play(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Playback was rejected")
		c.session.IsPlaying = false
		return
	}
	c.session.IsPlaying = true
}

func (c *Controller) pause() {
	ctx, cancel := c.transportContext()
	defer cancel()
	if err := c.transport.Pause(ctx); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to pause")
	}
	c.session.IsPlaying = false
}

func clampVolume(v int) int {
	return max(0, min(100, v))
}

func (c *Controller) setVolume(v int) {
	c.session.Volume = clampVolume(v)
	c.session.IsMuted = false
	c.applyVolume()
	c.savePrefs()
}

func (c *Controller) toggleMute() {
	c.session.IsMuted = !c.session.IsMuted
	c.applyVolume()
	c.savePrefs()
}

// applyVolume writes the effective volume to the transport
func (c *Controller) applyVolume() {
	ctx, cancel := c.transportContext()
	defer cancel()
	if err := c.transport.SetVolume(ctx, float64(c.session.EffectiveVolume())/100); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to set volume")
	}
}

func (c *Controller) savePrefs() {
	if c.prefs == nil {
		return
	}
	err := c.prefs.Set(Prefs{Volume: c.session.Volume, Muted: c.session.IsMuted})
	if err != nil {
		c.logger.Warn().Err(err).Msg("Failed to save playback prefs")
	}
}

// seek jumps to percent of the duration. Ignored until ready, when the
// duration is unknown, or when the target falls outside the track.
func (c *Controller) seek(percent float64) {
	if !c.session.IsReady {
		return
	}

	d := c.session.Duration
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return
	}

	t := percent / 100 * d
	if math.IsNaN(t) || t < 0 || t > d {
		return
	}

	ctx, cancel := c.transportContext()
	defer cancel()
	if err := c.transport.Seek(ctx, t); err != nil {
		c.logger.Warn().Err(err).Msg("Seek failed")
		return
	}
	c.session.CurrentTime = t
	c.session.Progress = percent
}

func (c *Controller) onTransport(ev player.Event) {
	switch ev.Kind {
	case player.EventCanPlay:
		c.session.IsReady = true
		if c.session.IsPlaying {
			c.play()
		}

	case player.EventTimeUpdate:
		if !c.session.IsReady {
			return
		}
		c.session.CurrentTime = ev.Position
		c.session.Duration = ev.Duration
		c.session.Progress = 0
		if ev.Duration > 0 && !math.IsInf(ev.Duration, 0) {
			c.session.Progress = min(100, ev.Position/ev.Duration*100)
		}

	case player.EventEnded:
		if c.realTrackCount() > 1 {
			c.step(1)
			return
		}
		// stay on the track, paused at the start
		c.session.IsPlaying = false
		c.loadSource()

	case player.EventError:
		c.logger.Error().Err(ev.Err).Msg("Playback error")
		c.session.IsPlaying = false
		c.session.IsReady = false
	}
}

// onPlaylistChanged picks up a new playlist from the store. Selection
// resets to the newest track; a refresh with new content starts playing.
func (c *Controller) onPlaylistChanged(change playlist.Change) {
	if change.Kind == playlist.ChangeMarks {
		return
	}

	c.tracks = c.lib.Tracks()
	if len(c.tracks) == 0 {
		c.tracks = []playlist.Track{playlist.NoFilesTrack}
	}

	c.session.TrackIndex = 0
	if change.AutoSelect {
		c.session.IsPlaying = true
	}
	c.loadSource()
}
