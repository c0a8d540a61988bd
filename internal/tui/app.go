package tui

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/jfmyers9/loopdeck/internal/session"
	"github.com/mattn/go-runewidth"
	"github.com/rivo/tview"
)

const (
	volumeStep = 5
	seekStep   = 5 // percent

	defaultRefreshRate = 250 * time.Millisecond
)

// ErrNeedsLogin is returned by Run when the backend rejected the session
var ErrNeedsLogin = errors.New("not logged in: run 'loopdeck login --token <token>'")

// Config holds TUI configuration options
type Config struct {
	RefreshRate time.Duration // How often to redraw
}

// DefaultConfig returns the default TUI configuration
func DefaultConfig() Config {
	return Config{RefreshRate: defaultRefreshRate}
}

// Controls is what the dashboard drives
type Controls interface {
	Select(i int)
	Next()
	Previous()
	TogglePlay()
	SetVolume(v int)
	ToggleMute()
	Seek(percent float64)
	Generate()
	Delete(id string)
	Refresh()
}

// App is the dashboard: playlist, transport controls and generation status
type App struct {
	app        *tview.Application
	nowPlaying *tview.TextView
	progress   *tview.TextView
	playlist   *tview.TextView
	generation *tview.TextView
	status     *tview.TextView

	config   Config
	controls Controls

	// guarded by mu; written by the snapshot consumer and key handler,
	// read by the refresh ticker
	mu         sync.Mutex
	snap       session.Snapshot
	cursor     int
	needsLogin bool

	// Last-rendered content for change detection
	lastNowPlaying string
	lastProgress   string
	lastPlaylist   string
	lastGeneration string
	lastBarWidth   int

	cancelFunc context.CancelFunc
}

// New creates a dashboard driving controls
func New(cfg Config, controls Controls) *App {
	a := &App{
		app:      tview.NewApplication(),
		config:   cfg,
		controls: controls,
	}
	a.setupUI()
	return a
}

func (a *App) setupUI() {
	a.nowPlaying = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.nowPlaying.SetBorder(true).
		SetTitle(" Now Playing ").
		SetTitleAlign(tview.AlignLeft)

	a.progress = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter)
	a.progress.SetBorder(true)

	a.playlist = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.playlist.SetBorder(true).
		SetTitle(" Playlist ").
		SetTitleAlign(tview.AlignLeft)

	a.generation = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignLeft)
	a.generation.SetBorder(true).
		SetTitle(" Generation ").
		SetTitleAlign(tview.AlignLeft)

	a.status = tview.NewTextView().
		SetDynamicColors(true).
		SetTextAlign(tview.AlignCenter).
		SetText("[gray]q:quit  space:play/pause  n/p:next/prev  enter:play  g:generate  d:delete  m:mute  +/-:volume  ←/→:seek  r:refresh[-]")

	// Top: now playing | generation
	// Middle: progress bar
	// Bottom: playlist
	// Footer: key help
	topRow := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(a.nowPlaying, 0, 2, false).
		AddItem(a.generation, 0, 1, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(topRow, 7, 1, false).
		AddItem(a.progress, 3, 1, false).
		AddItem(a.playlist, 0, 3, false).
		AddItem(a.status, 1, 1, false)

	a.app.SetInputCapture(a.handleKeyEvent)
	a.app.SetRoot(flex, true)
}

// handleKeyEvent maps keys onto controls
func (a *App) handleKeyEvent(event *tcell.EventKey) *tcell.EventKey {
	a.mu.Lock()
	snap := a.snap
	a.mu.Unlock()

	switch event.Key() {
	case tcell.KeyUp:
		a.moveCursor(-1)
		return nil
	case tcell.KeyDown:
		a.moveCursor(1)
		return nil
	case tcell.KeyEnter:
		a.controls.Select(a.cursorIndex())
		return nil
	case tcell.KeyLeft:
		a.controls.Seek(math.Max(0, snap.Session.Progress-seekStep))
		return nil
	case tcell.KeyRight:
		a.controls.Seek(math.Min(100, snap.Session.Progress+seekStep))
		return nil
	}

	switch event.Rune() {
	case 'q', 'Q':
		a.app.Stop()
		return nil
	case ' ':
		a.controls.TogglePlay()
		return nil
	case 'n', 'N':
		a.controls.Next()
		return nil
	case 'p', 'P':
		a.controls.Previous()
		return nil
	case 'k':
		a.moveCursor(-1)
		return nil
	case 'j':
		a.moveCursor(1)
		return nil
	case 'g', 'G':
		a.controls.Generate()
		return nil
	case 'd', 'D':
		i := a.cursorIndex()
		if i < len(snap.Playlist) {
			a.controls.Delete(snap.Playlist[i].Identifier())
		}
		return nil
	case 'm', 'M':
		a.controls.ToggleMute()
		return nil
	case '+', '=':
		a.controls.SetVolume(snap.Session.Volume + volumeStep)
		return nil
	case '-', '_':
		a.controls.SetVolume(snap.Session.Volume - volumeStep)
		return nil
	case 'r', 'R':
		a.controls.Refresh()
		return nil
	}
	return event
}

func (a *App) moveCursor(delta int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := len(a.snap.Playlist)
	if n == 0 {
		a.cursor = 0
		return
	}
	a.cursor = (a.cursor + delta + n) % n
}

func (a *App) cursorIndex() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cursor
}

// Run shows the dashboard until the user quits or ctx is done. It returns
// ErrNeedsLogin when a snapshot reports the session is unauthenticated.
func (a *App) Run(ctx context.Context, updates <-chan session.Snapshot) error {
	ctx, a.cancelFunc = context.WithCancel(ctx)
	defer a.cancelFunc()

	go a.handleUpdates(ctx, updates)

	if err := a.app.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.needsLogin {
		return ErrNeedsLogin
	}
	return nil
}

// handleUpdates keeps the latest snapshot; a single ticker drives redraws
func (a *App) handleUpdates(ctx context.Context, updates <-chan session.Snapshot) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case snap, ok := <-updates:
				if !ok {
					a.app.Stop()
					return
				}
				if a.apply(snap) {
					a.app.Stop()
					return
				}
			}
		}
	}()

	refreshRate := a.config.RefreshRate
	if refreshRate <= 0 {
		refreshRate = defaultRefreshRate
	}
	ticker := time.NewTicker(refreshRate)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.app.Stop()
			return
		case <-ticker.C:
			a.refresh()
		}
	}
}

// apply stores snap and reports whether the dashboard must stop for login
func (a *App) apply(snap session.Snapshot) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	if len(snap.Playlist) != len(a.snap.Playlist) {
		// the playlist was replaced; follow the selection
		a.cursor = snap.Session.TrackIndex
	}
	if a.cursor >= len(snap.Playlist) {
		a.cursor = max(0, len(snap.Playlist)-1)
	}
	a.snap = snap
	if snap.NeedsLogin {
		a.needsLogin = true
	}
	return a.needsLogin
}

func (a *App) refresh() {
	a.app.QueueUpdateDraw(func() {
		a.mu.Lock()
		defer a.mu.Unlock()

		a.updateNowPlaying()
		a.updateProgress()
		a.updatePlaylist()
		a.updateGeneration()
	})
}

func (a *App) updateNowPlaying() {
	text := renderNowPlaying(a.snap)
	if text != a.lastNowPlaying {
		a.lastNowPlaying = text
		a.nowPlaying.SetText(text)
	}
}

func (a *App) updateProgress() {
	_, _, width, _ := a.progress.GetInnerRect()
	barWidth := width - 14 // Account for time display
	// Only update the cached width on a positive value to avoid flicker
	// from transient zero-width layouts.
	if barWidth > 0 {
		a.lastBarWidth = barWidth
	}
	if a.lastBarWidth < 10 {
		a.lastBarWidth = 10
	}

	text := renderProgress(a.snap.Session, a.lastBarWidth)
	if text != a.lastProgress {
		a.lastProgress = text
		a.progress.SetText(text)
	}
}

func (a *App) updatePlaylist() {
	_, _, width, _ := a.playlist.GetInnerRect()
	text := renderPlaylist(a.snap, a.cursor, width)
	if text != a.lastPlaylist {
		a.lastPlaylist = text
		a.playlist.SetText(text)
	}
}

func (a *App) updateGeneration() {
	text := renderGeneration(a.snap)
	if text != a.lastGeneration {
		a.lastGeneration = text
		a.generation.SetText(text)
	}
}

// Stop stops the dashboard
func (a *App) Stop() {
	if a.cancelFunc != nil {
		a.cancelFunc()
	}
	a.app.Stop()
}

func renderNowPlaying(snap session.Snapshot) string {
	track, ok := snap.CurrentTrack()
	if !ok || track.IsSentinel() {
		if ok {
			return fmt.Sprintf("\n[gray]%s\n%s[-]", tview.Escape(track.Title), tview.Escape(track.Artist))
		}
		return "\n[gray]No track selected[-]"
	}

	var sb strings.Builder
	sb.WriteString("\n")
	sb.WriteString(fmt.Sprintf("[white::b]%s[-:-:-]\n", tview.Escape(track.Title)))
	sb.WriteString(fmt.Sprintf("[yellow]%s[-]\n", tview.Escape(track.Artist)))

	stateIcon := "[yellow]⏸[-]" // Pause icon
	if snap.Session.IsPlaying {
		stateIcon = "[green]▶[-]" // Play triangle
	}
	volume := fmt.Sprintf("vol %d%%", snap.Session.Volume)
	if snap.Session.IsMuted {
		volume = "[red]muted[-]"
	}
	sb.WriteString(fmt.Sprintf("\n%s  %s", stateIcon, volume))
	return sb.String()
}

func renderProgress(s session.Session, width int) string {
	if !s.IsReady {
		return "[gray]--:-- " + strings.Repeat("-", width) + " --:--[-]"
	}
	return fmt.Sprintf("%s %s %s",
		formatSeconds(s.CurrentTime),
		buildProgressBar(s.Progress, width),
		formatSeconds(s.Duration))
}

func renderPlaylist(snap session.Snapshot, cursor, width int) string {
	if width <= 0 {
		width = 60
	}

	var sb strings.Builder
	for i, track := range snap.Playlist {
		if i > 0 {
			sb.WriteString("\n")
		}

		marker := "  "
		if i == snap.Session.TrackIndex && !track.IsSentinel() {
			marker = "[green]▶[-] "
		}
		pointer := " "
		if i == cursor {
			pointer = ">"
		}

		id := track.Identifier()
		suffix := ""
		switch {
		case snap.IsDeleting(id):
			suffix = " [yellow]… deleting[-]"
		case snap.IsRecentlyDeleted(id):
			suffix = " [red]✓ deleted[-]"
		}

		line := fmt.Sprintf("%s - %s", track.Title, track.Artist)
		line = runewidth.Truncate(line, max(width-16, 10), "...")
		if i == cursor {
			line = "[::r]" + tview.Escape(line) + "[::-]"
		} else {
			line = tview.Escape(line)
		}
		sb.WriteString(pointer + marker + line + suffix)
	}
	return sb.String()
}

func renderGeneration(snap session.Snapshot) string {
	gen := snap.Generation
	text := tview.Escape(gen.StatusText)

	switch {
	case gen.Status == session.GenerationRunning:
		return fmt.Sprintf("[yellow]● %s[-]\n\n[gray]g: cancel[-]", text)
	case gen.Status == session.GenerationTerminal:
		return fmt.Sprintf("[green]✓ %s[-]", text)
	case gen.StatusText == session.FailedLabel:
		return fmt.Sprintf("[red]✗ %s[-]\n\n[gray]g: retry[-]", text)
	default:
		return fmt.Sprintf("[white]%s[-]\n\n[gray]g: start[-]", text)
	}
}

// buildProgressBar creates a text-based progress bar for a 0-100 percentage
func buildProgressBar(percent float64, width int) string {
	if width <= 0 {
		return ""
	}
	if math.IsNaN(percent) || percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}

	filled := int(percent / 100 * float64(width))
	empty := width - filled

	return "[green]" + strings.Repeat("█", filled) + "[-]" +
		"[gray]" + strings.Repeat("░", empty) + "[-]"
}

// formatSeconds formats seconds as MM:SS, or HH:MM:SS for long tracks
func formatSeconds(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		seconds = 0
	}
	d := time.Duration(seconds * float64(time.Second))

	hours := int(d.Hours())
	minutes := int(d.Minutes()) % 60
	secs := int(d.Seconds()) % 60

	if hours > 0 {
		return fmt.Sprintf("%d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}
