package cmd

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jfmyers9/loopdeck/internal/config"
	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show the signed-in user",
	Args:  cobra.NoArgs,
	RunE:  runProfile,
}

func init() {
	rootCmd.AddCommand(profileCmd)
}

func runProfile(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	client, err := newClient(cfg, setupLogger(logFile, logLevel))
	if err != nil {
		return err
	}

	user, err := client.Profile().GetUser(ctx)
	if err != nil {
		return loginHint(err)
	}

	fmt.Printf("Name:  %s\n", user.Name)
	fmt.Printf("Email: %s\n", user.Email)

	// everything else the backend sent, in a stable order
	for _, key := range slices.Sorted(maps.Keys(user.Extra)) {
		switch key {
		case "name", "email", "picture":
			continue
		}
		fmt.Printf("%s: %v\n", key, user.Extra[key])
	}
	return nil
}
