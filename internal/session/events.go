package session

import (
	"github.com/jfmyers9/loopdeck/internal/player"
	"github.com/jfmyers9/loopdeck/internal/playlist"
)

// event is anything the controller loop consumes
type event interface{}

// user commands
type (
	cmdSelect     struct{ index int }
	cmdNext       struct{}
	cmdPrevious   struct{}
	cmdTogglePlay struct{}
	cmdSetVolume  struct{ volume int }
	cmdToggleMute struct{}
	cmdSeek       struct{ percent float64 }
	cmdGenerate   struct{}
	cmdDelete     struct{ id string }
	cmdRefresh    struct{}
)

// completions and notifications
type (
	transportEvent struct{ ev player.Event }

	playlistChanged struct{ change playlist.Change }

	loadFinished struct{ err error }

	streamOpened struct {
		job    string
		stream Stream
		err    error
	}

	// streamMessage carries one status payload from the generation stream
	streamMessage struct {
		job  string
		data string
	}

	// streamDone is the server's explicit done signal
	streamDone struct{ job string }

	// streamFailed covers transport errors and the stream ending
	streamFailed struct {
		job string
		err error
	}

	generationSettled struct{ job string }
)
