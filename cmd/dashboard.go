package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/jfmyers9/loopdeck/internal/config"
	"github.com/jfmyers9/loopdeck/internal/history"
	"github.com/jfmyers9/loopdeck/internal/player"
	"github.com/jfmyers9/loopdeck/internal/playlist"
	"github.com/jfmyers9/loopdeck/internal/session"
	"github.com/jfmyers9/loopdeck/internal/tui"
	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Open the playlist and generation dashboard",
	Long: `Open a terminal dashboard for your Newsloop audio briefings.

The dashboard includes:
- Playlist of generated audio files, newest first
- Now playing display with progress and volume
- Generation status, streamed live while a job runs

Audio plays through mpv, which must be installed. Logs go to
<data-dir>/loopdeck.log unless --log-file is set.

Keys: space play/pause, n/p next/previous, enter play selected,
g generate (again to cancel), d delete selected, m mute, +/- volume,
left/right seek, r refresh, q quit.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dir, err := resolveDataDir(cfg)
	if err != nil {
		return err
	}

	// the TUI owns the terminal
	path := logFile
	if path == "" {
		path = filepath.Join(dir, "loopdeck.log")
	}
	logger := setupLogger(path, logLevel)

	logger.Info().
		Str("version", version).
		Str("data_dir", dir).
		Msg("Starting loopdeck dashboard")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	hist, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer hist.Close()

	// jobs left running by a session that crashed
	if n, err := hist.MarkInterrupted(ctx, time.Now()); err != nil {
		logger.Warn().Err(err).Msg("Failed to mark interrupted jobs")
	} else if n > 0 {
		logger.Info().Int64("count", n).Msg("Marked stale jobs interrupted")
	}
	if _, err := hist.Cleanup(ctx, historyRetention); err != nil {
		logger.Warn().Err(err).Msg("Failed to prune history")
	}

	prefs, err := session.NewPrefsFile(filepath.Join(dir, "state.json"))
	if err != nil {
		return fmt.Errorf("failed to load saved state: %w", err)
	}

	transport, err := player.StartMPV(ctx, player.MPVConfig{
		Command:    cfg.Player.Command,
		SocketPath: filepath.Join(dir, "mpv.sock"),
	}, logger)
	if err != nil {
		return fmt.Errorf("failed to start audio player: %w", err)
	}

	store := playlist.NewStore(client.Audio(), playlist.Options{DeletedTTL: cfg.Playlist.DeletedTTL}, logger)
	defer store.Close()

	ctrl := session.New(store, transport, session.NewStreamer(client.Generation()), session.Options{
		SettleDelay: cfg.Generation.SettleDelay,
		Volume:      cfg.Player.Volume,
		Prefs:       prefs,
		History:     hist,
	}, logger)
	store.SetOnChange(ctrl.PlaylistChanged)
	defer ctrl.Close()

	updates := ctrl.Subscribe()
	go func() {
		if err := ctrl.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("Session stopped")
		}
	}()

	app := tui.New(tui.Config{RefreshRate: cfg.TUI.RefreshRate}, ctrl)
	if err := app.Run(ctx, updates); err != nil {
		if errors.Is(err, tui.ErrNeedsLogin) {
			return errNeedsLogin
		}
		return err
	}
	return nil
}
