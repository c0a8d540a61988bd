package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/jfmyers9/loopdeck/internal/config"
	"github.com/jfmyers9/loopdeck/internal/history"
	"github.com/jfmyers9/loopdeck/internal/player"
	"github.com/jfmyers9/loopdeck/internal/playlist"
	"github.com/jfmyers9/loopdeck/internal/session"
	"github.com/spf13/cobra"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a new audio briefing",
	Long: `Start a generation job and print its progress until it finishes.

Each status message from the server is printed on its own line. The job
is recorded in the history log. Press Ctrl+C to cancel.`,
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(logFile, logLevel)

	dir, err := resolveDataDir(cfg)
	if err != nil {
		return err
	}

	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	hist, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer hist.Close()

	store := playlist.NewStore(client.Audio(), playlist.Options{DeletedTTL: cfg.Playlist.DeletedTTL}, logger)
	defer store.Close()

	follower := newJobFollower(func(status string) {
		fmt.Println(status)
	})

	ctrl := session.New(store, player.NewSilent(), session.NewStreamer(client.Generation()), session.Options{
		SettleDelay:  cfg.Generation.SettleDelay,
		History:      hist,
		OnGeneration: follower.observe,
	}, logger)
	store.SetOnChange(ctrl.PlaylistChanged)
	defer ctrl.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	updates := ctrl.Subscribe()
	go func() { _ = ctrl.Run(ctx) }()
	ctrl.Generate()

	err = followGeneration(ctx, updates, follower.result)
	if errors.Is(err, context.Canceled) {
		fmt.Println("Generation cancelled")
		return nil
	}
	return err
}

// jobFollower reports every status of the generation job and delivers
// its outcome on result once the job ends.
type jobFollower struct {
	report  func(string)
	started bool
	result  chan error
}

func newJobFollower(report func(string)) *jobFollower {
	return &jobFollower{report: report, result: make(chan error, 1)}
}

// observe runs on the controller's loop goroutine.
func (f *jobFollower) observe(gen session.Generation) {
	switch {
	case gen.JobID != "":
		f.started = true
		f.report(gen.StatusText)
	case gen.StatusText == session.FailedLabel:
		f.report(gen.StatusText)
		f.finish(errors.New("generation failed"))
	case f.started:
		f.finish(nil)
	}
}

func (f *jobFollower) finish(err error) {
	f.started = false
	select {
	case f.result <- err:
	default:
	}
}

// followGeneration waits for the job outcome. Snapshots are only
// watched for a lost login or a closed session.
func followGeneration(ctx context.Context, updates <-chan session.Snapshot, result <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-result:
			return err
		case snap, ok := <-updates:
			if !ok {
				return errors.New("session closed before generation finished")
			}
			if snap.NeedsLogin {
				return errNeedsLogin
			}
		}
	}
}
