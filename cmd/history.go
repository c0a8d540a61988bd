package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/jfmyers9/loopdeck/internal/config"
	"github.com/jfmyers9/loopdeck/internal/history"
	"github.com/spf13/cobra"
)

const historyRetention = 30 * 24 * time.Hour

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent generation jobs",
	Long: `List the most recent generation jobs started from this machine,
newest first, with how they ended and their last status message.

Jobs older than 30 days are pruned.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of jobs to show")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	dir, err := resolveDataDir(cfg)
	if err != nil {
		return err
	}

	hist, err := history.Open(filepath.Join(dir, "history.db"))
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer hist.Close()

	if _, err := hist.Cleanup(ctx, historyRetention); err != nil {
		return fmt.Errorf("failed to prune history: %w", err)
	}

	jobs, err := hist.Recent(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}

	return writeJobs(os.Stdout, jobs)
}

// writeJobs prints one aligned line per job
func writeJobs(w io.Writer, jobs []history.Job) error {
	if len(jobs) == 0 {
		_, err := fmt.Fprintln(w, "No generation jobs yet")
		return err
	}

	for _, j := range jobs {
		took := "-"
		if d := j.Duration(); d > 0 {
			took = d.Round(time.Second).String()
		}
		line := padToWidth(j.StartedAt.Local().Format("2006-01-02 15:04"), 18) +
			padToWidth(string(j.Outcome), 13) +
			padToWidth(took, 8) +
			j.StatusText
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}
