package session

import (
	"errors"
	"math"
	"testing"

	"github.com/jfmyers9/loopdeck/internal/player"
	"github.com/jfmyers9/loopdeck/internal/playlist"
)

var threeTracks = []string{
	"https://x/b/one.wav?sig=1",
	"https://x/b/two.wav?sig=2",
	"https://x/b/three.wav?sig=3",
}

func TestSelectAnotherTrackWhilePlaying(t *testing.T) {
	r := newTestRig(t, threeTracks...)

	// start track 0
	r.c.handle(cmdSelect{index: 0})
	r.ready(180)
	r.c.handle(transportEvent{ev: player.Event{Kind: player.EventTimeUpdate, Position: 90, Duration: 180}})
	if !r.c.session.IsPlaying || r.c.session.Progress != 50 {
		t.Fatalf("expected track 0 playing at 50%%, got %+v", r.c.session)
	}

	r.c.handle(cmdSelect{index: 1})

	s := r.c.session
	if r.transport.loaded != threeTracks[1] {
		t.Errorf("expected source %q, got %q", threeTracks[1], r.transport.loaded)
	}
	if s.TrackIndex != 1 || s.CurrentTime != 0 || s.Progress != 0 || s.Duration != 0 {
		t.Errorf("expected reset position on track 1, got %+v", s)
	}
	if s.IsReady {
		t.Error("expected not ready until the transport can play")
	}

	plays := r.transport.count("play")
	r.c.handle(transportEvent{ev: player.Event{Kind: player.EventCanPlay}})
	if got := r.transport.count("play"); got != plays+1 {
		t.Errorf("expected playback to resume once ready, got %d play calls", got-plays)
	}
	if !r.c.session.IsPlaying {
		t.Error("expected playing after ready")
	}
}

func TestSelectSameTrackToggles(t *testing.T) {
	r := newTestRig(t, threeTracks...)
	r.ready(100)

	r.c.handle(cmdSelect{index: 0})
	if !r.c.session.IsPlaying {
		t.Fatal("expected select of current track to start playing")
	}
	loads := r.transport.count("load " + threeTracks[0])

	r.c.handle(cmdSelect{index: 0})
	if r.c.session.IsPlaying {
		t.Error("expected second select to pause")
	}
	if got := r.transport.count("load " + threeTracks[0]); got != loads {
		t.Error("toggling must not reload the source")
	}
}

func TestSelectIgnoresInvalidAndPlaceholder(t *testing.T) {
	r := newTestRig(t)
	if got := r.c.tracks; len(got) != 1 || got[0] != playlist.NoFilesTrack {
		t.Fatalf("expected placeholder playlist, got %+v", got)
	}

	r.c.handle(cmdSelect{index: 0})
	r.c.handle(cmdSelect{index: 5})
	r.c.handle(cmdSelect{index: -1})

	if r.c.session.IsPlaying || r.transport.count("play") != 0 {
		t.Error("expected placeholder and out-of-range selects to be ignored")
	}
}

func TestNavigationWraparound(t *testing.T) {
	urls := append(threeTracks, "https://x/b/four.wav")
	r := newTestRig(t, urls...)

	for i := 0; i < len(urls); i++ {
		r.c.handle(cmdNext{})
	}
	if r.c.session.TrackIndex != 0 {
		t.Errorf("expected next applied n times to return to 0, got %d", r.c.session.TrackIndex)
	}

	r.c.handle(cmdPrevious{})
	if r.c.session.TrackIndex != len(urls)-1 {
		t.Errorf("expected previous from 0 to wrap to %d, got %d", len(urls)-1, r.c.session.TrackIndex)
	}
	if r.transport.loaded != urls[len(urls)-1] {
		t.Errorf("expected last track loaded, got %q", r.transport.loaded)
	}
}

func TestNavigationPreservesPlayIntent(t *testing.T) {
	r := newTestRig(t, threeTracks...)

	r.c.handle(cmdNext{})
	if r.c.session.IsPlaying {
		t.Error("next while paused must stay paused")
	}

	r.ready(100)
	r.c.handle(cmdTogglePlay{})
	r.c.handle(cmdNext{})
	if !r.c.session.IsPlaying || r.c.session.IsReady {
		t.Errorf("expected play intent kept while loading, got %+v", r.c.session)
	}
}

func TestNavigationSingleTrack(t *testing.T) {
	r := newTestRig(t, threeTracks[0])
	loads := len(r.transport.calls)

	r.c.handle(cmdNext{})
	r.c.handle(cmdPrevious{})

	if r.c.session.TrackIndex != 0 || len(r.transport.calls) != loads {
		t.Error("expected next/previous to be no-ops with one track")
	}
}

func TestSeekBounds(t *testing.T) {
	tests := []struct {
		name     string
		ready    bool
		duration float64
		percent  float64
		want     float64
	}{
		{name: "middle", ready: true, duration: 200, percent: 50, want: 100},
		{name: "start", ready: true, duration: 200, percent: 0, want: 0},
		{name: "end", ready: true, duration: 200, percent: 100, want: 200},
		{name: "above range", ready: true, duration: 200, percent: 150, want: 7},
		{name: "below range", ready: true, duration: 200, percent: -10, want: 7},
		{name: "zero duration", ready: true, duration: 0, percent: 50, want: 7},
		{name: "infinite duration", ready: true, duration: math.Inf(1), percent: 50, want: 7},
		{name: "not ready", ready: false, duration: 200, percent: 50, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRig(t, threeTracks...)
			if tt.ready {
				r.c.handle(transportEvent{ev: player.Event{Kind: player.EventCanPlay}})
				r.c.handle(transportEvent{ev: player.Event{Kind: player.EventTimeUpdate, Position: 7, Duration: tt.duration}})
			}

			r.c.handle(cmdSeek{percent: tt.percent})

			got := r.c.session.CurrentTime
			if got != tt.want {
				t.Errorf("current time = %v, want %v", got, tt.want)
			}
			if tt.ready && tt.duration > 0 && !math.IsInf(tt.duration, 0) && (got < 0 || got > tt.duration) {
				t.Errorf("current time %v outside [0, %v]", got, tt.duration)
			}
		})
	}
}

func TestVolumeAndMute(t *testing.T) {
	r := newTestRig(t, threeTracks...)

	r.c.handle(cmdSetVolume{volume: 60})
	r.c.handle(cmdToggleMute{})
	if r.transport.volume != 0 {
		t.Errorf("expected muted effective volume 0, got %v", r.transport.volume)
	}
	r.c.handle(cmdToggleMute{})
	if r.transport.volume != 0.6 || r.c.session.EffectiveVolume() != 60 {
		t.Errorf("expected unmute to restore 60, got %v", r.transport.volume)
	}

	r.c.handle(cmdToggleMute{})
	r.c.handle(cmdSetVolume{volume: 40})
	if r.c.session.IsMuted {
		t.Error("expected volume change to unmute")
	}
	if r.transport.volume != 0.4 {
		t.Errorf("expected effective volume 0.4, got %v", r.transport.volume)
	}

	r.c.handle(cmdSetVolume{volume: 150})
	if r.c.session.Volume != 100 || r.transport.volume != 1 {
		t.Errorf("expected clamp to 100, got %d (%v)", r.c.session.Volume, r.transport.volume)
	}
	r.c.handle(cmdSetVolume{volume: -5})
	if r.c.session.Volume != 0 {
		t.Errorf("expected clamp to 0, got %d", r.c.session.Volume)
	}
}

func TestPlayRejected(t *testing.T) {
	r := newTestRig(t, threeTracks...)
	r.transport.playErr = errors.New("autoplay blocked")

	r.c.handle(cmdSelect{index: 1})
	if !r.c.session.IsPlaying {
		t.Fatal("expected play intent before ready")
	}

	r.c.handle(transportEvent{ev: player.Event{Kind: player.EventCanPlay}})
	if r.c.session.IsPlaying {
		t.Error("expected rejected play to force IsPlaying=false")
	}
	if !r.c.session.IsReady {
		t.Error("rejected play must not affect readiness")
	}
}

func TestOperationsBeforeReady(t *testing.T) {
	r := newTestRig(t, threeTracks...)

	r.c.handle(cmdTogglePlay{})
	if !r.c.session.IsPlaying {
		t.Error("expected toggle to record play intent")
	}
	if r.transport.count("play") != 0 {
		t.Error("expected no play call before ready")
	}

	r.c.handle(cmdSeek{percent: 50})
	if len(r.transport.calls) > 0 && r.transport.seekTo != 0 {
		t.Error("expected seek before ready to be ignored")
	}

	r.c.handle(transportEvent{ev: player.Event{Kind: player.EventCanPlay}})
	if r.transport.count("play") != 1 {
		t.Error("expected recorded intent applied on ready")
	}
}

func TestTrackEnded(t *testing.T) {
	t.Run("multiple tracks advance", func(t *testing.T) {
		r := newTestRig(t, threeTracks...)
		r.c.handle(cmdSelect{index: 2})
		r.ready(10)

		r.c.handle(transportEvent{ev: player.Event{Kind: player.EventEnded}})

		if r.c.session.TrackIndex != 0 {
			t.Errorf("expected wraparound to 0, got %d", r.c.session.TrackIndex)
		}
		if !r.c.session.IsPlaying {
			t.Error("expected playback to continue")
		}
		if r.transport.loaded != threeTracks[0] {
			t.Errorf("expected track 0 loaded, got %q", r.transport.loaded)
		}
	})

	t.Run("single track stops at start", func(t *testing.T) {
		r := newTestRig(t, threeTracks[0])
		r.c.handle(cmdSelect{index: 0})
		r.ready(10)
		r.c.handle(transportEvent{ev: player.Event{Kind: player.EventTimeUpdate, Position: 10, Duration: 10}})

		r.c.handle(transportEvent{ev: player.Event{Kind: player.EventEnded}})

		s := r.c.session
		if s.IsPlaying || s.CurrentTime != 0 || s.Progress != 0 || s.TrackIndex != 0 {
			t.Errorf("expected paused at 0 on the same track, got %+v", s)
		}
	})
}

func TestPlaylistChangeResetsSelection(t *testing.T) {
	r := newTestRig(t, threeTracks...)
	r.c.handle(cmdSelect{index: 2})
	r.ready(100)

	r.lib.tracks = playlist.Transform(append([]string{"https://x/b/new.wav"}, threeTracks...))
	r.c.handle(playlistChanged{change: playlist.Change{Kind: playlist.ChangeRefreshed, AutoSelect: true}})

	s := r.c.session
	if s.TrackIndex != 0 || s.IsReady || !s.IsPlaying {
		t.Errorf("expected newest track selected and queued to play, got %+v", s)
	}
	if r.transport.loaded != "https://x/b/new.wav" {
		t.Errorf("expected newest track loaded, got %q", r.transport.loaded)
	}

	snap := r.c.Snapshot()
	if len(snap.Playlist) != 4 {
		t.Errorf("expected snapshot to carry the new playlist, got %d tracks", len(snap.Playlist))
	}
}
