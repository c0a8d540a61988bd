package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jfmyers9/loopdeck/internal/config"
	"github.com/jfmyers9/loopdeck/internal/playlist"
	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <identifier>",
	Short: "Delete a generated audio file",
	Long: `Delete one audio file from your Newsloop storage.

The identifier is the last two path segments of the file's URL, as printed
by 'loopdeck tracks --format "{{.ID}}"'.`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(logFile, logLevel)
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	store := playlist.NewStore(client.Audio(), playlist.Options{DeletedTTL: cfg.Playlist.DeletedTTL}, logger)
	defer store.Close()

	id := args[0]
	if err := store.Delete(ctx, id); err != nil {
		return loginHint(err)
	}

	fmt.Printf("✓ Deleted %s (%d files remaining)\n", id, store.RealTrackCount())
	return nil
}
