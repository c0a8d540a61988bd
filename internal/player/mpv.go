package player

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// MPVConfig configures the mpv process
type MPVConfig struct {
	Command      string        // mpv binary, defaults to "mpv"
	SocketPath   string        // IPC socket, defaults to a per-process temp path
	StartTimeout time.Duration // how long to wait for the socket to appear
}

// observed property ids
const (
	propTimePos  = 1
	propDuration = 2
)

// MPV drives an idle mpv process over its JSON IPC socket
type MPV struct {
	cmd    *exec.Cmd
	ipc    *ipcConn
	socket string
	logger zerolog.Logger

	events chan Event

	mu       sync.Mutex
	position float64
	duration float64

	closeOnce sync.Once
}

// StartMPV launches mpv in idle mode and connects to its IPC socket
func StartMPV(ctx context.Context, cfg MPVConfig, logger zerolog.Logger) (*MPV, error) {
	command := cfg.Command
	if command == "" {
		command = "mpv"
	}
	socket := cfg.SocketPath
	if socket == "" {
		socket = filepath.Join(os.TempDir(), fmt.Sprintf("loopdeck-mpv-%d.sock", os.Getpid()))
	}
	timeout := cfg.StartTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	_ = os.Remove(socket)

	cmd := exec.Command(command,
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--input-ipc-server="+socket,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start %s: %w", command, err)
	}

	conn, err := dialSocket(ctx, socket, timeout)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	m := newMPV(conn, logger)
	m.cmd = cmd
	m.socket = socket

	if err := m.observe(ctx); err != nil {
		_ = m.Close()
		return nil, err
	}
	return m, nil
}

// dialSocket waits for mpv to create its socket
func dialSocket(ctx context.Context, path string, timeout time.Duration) (net.Conn, error) {
	deadline := time.Now().Add(timeout)
	var lastErr error
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("unix", path, time.Second)
		if err == nil {
			return conn, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil, fmt.Errorf("no mpv socket at %s: %w", path, lastErr)
}

func newMPV(conn net.Conn, logger zerolog.Logger) *MPV {
	m := &MPV{
		ipc:    newIPCConn(conn),
		logger: logger.With().Str("component", "player").Logger(),
		events: make(chan Event, 64),
	}
	go m.forward()
	return m
}

func (m *MPV) observe(ctx context.Context) error {
	if _, err := m.ipc.command(ctx, "observe_property", propTimePos, "time-pos"); err != nil {
		return fmt.Errorf("observe time-pos: %w", err)
	}
	if _, err := m.ipc.command(ctx, "observe_property", propDuration, "duration"); err != nil {
		return fmt.Errorf("observe duration: %w", err)
	}
	return nil
}

// Load replaces the current file, paused
func (m *MPV) Load(ctx context.Context, url string) error {
	if _, err := m.ipc.command(ctx, "set_property", "pause", true); err != nil {
		return fmt.Errorf("pause before load: %w", err)
	}

	m.mu.Lock()
	m.position, m.duration = 0, 0
	m.mu.Unlock()

	if _, err := m.ipc.command(ctx, "loadfile", url, "replace"); err != nil {
		return fmt.Errorf("load %s: %w", url, err)
	}
	return nil
}

// Play resumes playback
func (m *MPV) Play(ctx context.Context) error {
	if _, err := m.ipc.command(ctx, "set_property", "pause", false); err != nil {
		return fmt.Errorf("play: %w", err)
	}
	return nil
}

// Pause pauses playback
func (m *MPV) Pause(ctx context.Context) error {
	if _, err := m.ipc.command(ctx, "set_property", "pause", true); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	return nil
}

// Seek jumps to an absolute position in seconds
func (m *MPV) Seek(ctx context.Context, seconds float64) error {
	if _, err := m.ipc.command(ctx, "seek", seconds, "absolute"); err != nil {
		return fmt.Errorf("seek: %w", err)
	}
	return nil
}

// SetVolume sets output volume from 0.0 to 1.0
func (m *MPV) SetVolume(ctx context.Context, volume float64) error {
	volume = max(0, min(1, volume))
	if _, err := m.ipc.command(ctx, "set_property", "volume", volume*100); err != nil {
		return fmt.Errorf("set volume: %w", err)
	}
	return nil
}

// Events returns transport notifications. The channel closes when the
// mpv connection ends.
func (m *MPV) Events() <-chan Event {
	return m.events
}

// Close asks mpv to quit and releases the socket
func (m *MPV) Close() error {
	var err error
	m.closeOnce.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		_, _ = m.ipc.command(ctx, "quit")
		cancel()

		err = m.ipc.close()

		if m.cmd != nil {
			done := make(chan struct{})
			go func() {
				_ = m.cmd.Wait()
				close(done)
			}()
			select {
			case <-done:
			case <-time.After(2 * time.Second):
				_ = m.cmd.Process.Kill()
				<-done
			}
		}
		if m.socket != "" {
			_ = os.Remove(m.socket)
		}
	})
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

// forward translates mpv events into transport events
func (m *MPV) forward() {
	defer close(m.events)

	for msg := range m.ipc.events {
		ev, ok := m.translate(msg)
		if !ok {
			continue
		}
		m.events <- ev
	}
}

func (m *MPV) translate(msg ipcMessage) (Event, bool) {
	switch msg.Event {
	case "file-loaded":
		return Event{Kind: EventCanPlay}, true

	case "end-file":
		switch msg.Reason {
		case "eof":
			return Event{Kind: EventEnded}, true
		case "error":
			reason := msg.FileError
			if reason == "" {
				reason = "unknown error"
			}
			return Event{Kind: EventError, Err: fmt.Errorf("mpv: playback failed: %s", reason)}, true
		}
		// stop, quit and redirect come from our own commands
		return Event{}, false

	case "property-change":
		var value *float64
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &value); err != nil {
				m.logger.Debug().Err(err).Str("property", msg.Name).Msg("Ignoring non-numeric property")
				return Event{}, false
			}
		}

		m.mu.Lock()
		defer m.mu.Unlock()
		switch msg.Name {
		case "time-pos":
			m.position = 0
			if value != nil {
				m.position = *value
			}
		case "duration":
			m.duration = 0
			if value != nil {
				m.duration = *value
			}
		default:
			return Event{}, false
		}
		return Event{Kind: EventTimeUpdate, Position: m.position, Duration: m.duration}, true
	}

	return Event{}, false
}
