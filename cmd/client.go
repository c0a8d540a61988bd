package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jfmyers9/loopdeck/internal/config"
	"github.com/jfmyers9/loopdeck/internal/playlist"
	"github.com/jfmyers9/loopdeck/pkg/newsloop"
	"github.com/rs/zerolog"
)

// errNeedsLogin is returned when the backend rejects the stored session
var errNeedsLogin = errors.New("session rejected by the server: run 'loopdeck login --token <credential>'")

// newClient builds an SDK client from the loaded configuration
func newClient(cfg *config.Config, logger zerolog.Logger) (*newsloop.Client, error) {
	client, err := newsloop.NewClient(newsloop.Config{
		BaseURL:       cfg.API.BaseURL,
		SessionCookie: cfg.API.SessionCookie,
		Timeout:       cfg.API.Timeout,
		RateLimit:     cfg.API.RateLimit,
		UserAgent:     "loopdeck/" + version,
		Logger:        sdkLogger{logger: logger.With().Str("component", "newsloop").Logger()},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return client, nil
}

// resolveDataDir returns the data directory, creating it if needed.
// The --data-dir flag wins over config.
func resolveDataDir(cfg *config.Config) (string, error) {
	dir := dataDir
	if dir == "" {
		dir = cfg.DataDir
	}
	if dir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, ".local", "share", "loopdeck")
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// loginHint maps authentication failures onto errNeedsLogin
func loginHint(err error) error {
	if errors.Is(err, playlist.ErrUnauthenticated) || errors.Is(err, newsloop.ErrUnauthorized) {
		return errNeedsLogin
	}
	return err
}
