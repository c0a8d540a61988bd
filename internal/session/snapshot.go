package session

import (
	"slices"

	"github.com/jfmyers9/loopdeck/internal/playlist"
)

// Session is the playback state of the single audio transport
type Session struct {
	TrackIndex  int
	IsPlaying   bool // while not ready, the intent to play once ready
	IsMuted     bool
	Volume      int // 0-100, kept while muted
	CurrentTime float64
	Duration    float64
	Progress    float64 // 0-100
	IsReady     bool
}

// EffectiveVolume is the volume actually applied to the transport, 0-100
func (s Session) EffectiveVolume() int {
	if s.IsMuted {
		return 0
	}
	return s.Volume
}

// GenerationStatus is the lifecycle state of a generation job
type GenerationStatus int

const (
	GenerationIdle GenerationStatus = iota
	GenerationRunning
	GenerationTerminal // success seen, waiting to settle
)

func (s GenerationStatus) String() string {
	switch s {
	case GenerationRunning:
		return "running"
	case GenerationTerminal:
		return "terminal"
	default:
		return "idle"
	}
}

// Generation is the visible state of the generation job
type Generation struct {
	Status     GenerationStatus
	StatusText string
	JobID      string // empty while idle
}

// Snapshot is a copy of everything an observer may render
type Snapshot struct {
	Playlist        []playlist.Track
	Session         Session
	Generation      Generation
	Deleting        []string
	RecentlyDeleted []string
	Loading         bool
	NeedsLogin      bool
}

// CurrentTrack returns the selected track
func (s Snapshot) CurrentTrack() (playlist.Track, bool) {
	if s.Session.TrackIndex < 0 || s.Session.TrackIndex >= len(s.Playlist) {
		return playlist.Track{}, false
	}
	return s.Playlist[s.Session.TrackIndex], true
}

// IsDeleting reports whether id has a delete in flight
func (s Snapshot) IsDeleting(id string) bool {
	return id != "" && slices.Contains(s.Deleting, id)
}

// IsRecentlyDeleted reports whether id was just deleted
func (s Snapshot) IsRecentlyDeleted(id string) bool {
	return id != "" && slices.Contains(s.RecentlyDeleted, id)
}
