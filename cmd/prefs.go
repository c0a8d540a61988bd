package cmd

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/jfmyers9/loopdeck/internal/config"
	"github.com/jfmyers9/loopdeck/pkg/newsloop"
	"github.com/spf13/cobra"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Manage the sources your briefings are built from",
	Long: `Show or change the source accounts Newsloop reads when generating
your briefings.

  loopdeck prefs get                 list current sources
  loopdeck prefs set <name>...       replace the list
  loopdeck prefs add <handle>        check a handle and append it`,
}

var prefsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "List current sources",
	Args:  cobra.NoArgs,
	RunE: withPreferences(func(ctx context.Context, prefs *newsloop.PreferencesService, args []string) error {
		names, err := prefs.Get(ctx)
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No sources configured")
			return nil
		}
		for _, name := range names {
			fmt.Println(name)
		}
		return nil
	}),
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <name>...",
	Short: "Replace the source list",
	Args:  cobra.MinimumNArgs(1),
	RunE: withPreferences(func(ctx context.Context, prefs *newsloop.PreferencesService, args []string) error {
		names := normalizeHandles(args)
		if err := prefs.Publish(ctx, names); err != nil {
			return err
		}
		fmt.Printf("✓ Saved %d sources\n", len(names))
		return nil
	}),
}

var prefsAddCmd = &cobra.Command{
	Use:   "add <handle>",
	Short: "Check a handle and add it to the source list",
	Args:  cobra.ExactArgs(1),
	RunE: withPreferences(func(ctx context.Context, prefs *newsloop.PreferencesService, args []string) error {
		handle := normalizeHandles(args)[0]

		h, err := prefs.Lookup(ctx, handle)
		if err != nil {
			return fmt.Errorf("handle %q was not accepted: %w", handle, err)
		}

		names, err := prefs.Get(ctx)
		if err != nil {
			return err
		}
		if slices.Contains(names, h.Name) {
			fmt.Printf("%s is already a source\n", h.Name)
			return nil
		}

		if err := prefs.Publish(ctx, append(names, h.Name)); err != nil {
			return err
		}
		fmt.Printf("✓ Added %s (id %s)\n", h.Name, h.ID)
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(prefsCmd)
	prefsCmd.AddCommand(prefsGetCmd, prefsSetCmd, prefsAddCmd)
}

// withPreferences builds the API client and hands its preference service
// to fn
func withPreferences(fn func(context.Context, *newsloop.PreferencesService, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
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

		return loginHint(fn(ctx, client.Preferences(), args))
	}
}

// normalizeHandles trims whitespace and a leading "@", dropping empties
// and duplicates while keeping order
func normalizeHandles(args []string) []string {
	names := make([]string, 0, len(args))
	for _, a := range args {
		name := strings.TrimPrefix(strings.TrimSpace(a), "@")
		if name == "" || slices.Contains(names, name) {
			continue
		}
		names = append(names, name)
	}
	return names
}
