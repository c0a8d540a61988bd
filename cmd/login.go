package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jfmyers9/loopdeck/internal/config"
	"github.com/spf13/cobra"
)

var loginToken string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to Newsloop",
	Long: `Exchange a Google identity credential for a Newsloop session.

The session cookie set by the server is saved to your config file and
sent by every other command. New accounts should pick their sources
next with 'loopdeck prefs add <handle>'.`,
	RunE: runLogin,
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().StringVar(&loginToken, "token", "", "Google identity credential (JWT)")
	_ = loginCmd.MarkFlagRequired("token")
}

func runLogin(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := setupLogger(logFile, logLevel)

	// start from a clean session
	cfg.API.SessionCookie = ""
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	res, err := client.Auth().SignUpOrLogin(ctx, loginToken)
	if err != nil {
		return fmt.Errorf("login failed: %w", err)
	}

	cookie := client.SessionCookie()
	if cookie == "" {
		return fmt.Errorf("login failed: server did not set a session cookie")
	}
	cfg.API.SessionCookie = cookie
	if err := cfg.Save(); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	fmt.Println("✓ Logged in")
	if res.IsExisting() {
		fmt.Println("Run 'loopdeck dashboard' to play your briefings.")
	} else {
		fmt.Println("Welcome! Choose your sources with 'loopdeck prefs add <handle>'.")
	}
	return nil
}
