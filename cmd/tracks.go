package cmd

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/jfmyers9/loopdeck/internal/config"
	"github.com/jfmyers9/loopdeck/internal/playlist"
	"github.com/mattn/go-runewidth"
	"github.com/spf13/cobra"
)

// tracksCmd represents the tracks command
var tracksCmd = &cobra.Command{
	Use:   "tracks",
	Short: "List your generated audio files",
	Long: `Fetch the playlist and print one line per audio file, newest first.

The output format can be customized in ~/.config/loopdeck/config.yaml
using a Go template. Available fields: .Index, .Title, .Artist, .URL, .ID

.ID is the identifier accepted by 'loopdeck delete'.

Exit codes:
  0 - Playlist printed (possibly a placeholder when empty)
  1 - Not logged in or the request failed`,
	RunE: runTracks,
}

func init() {
	rootCmd.AddCommand(tracksCmd)

	// Add format flag to override config
	tracksCmd.Flags().StringP("format", "f", "", "Output format template (overrides config)")
	// Add width flag to set fixed output width
	tracksCmd.Flags().IntP("width", "w", 0, "Fixed output width (0=disabled, overrides config)")
}

// trackRow is the data exposed to the output template
type trackRow struct {
	Index  int
	Title  string
	Artist string
	URL    string
	ID     string
}

func runTracks(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	formatFlag, _ := cmd.Flags().GetString("format")
	if formatFlag != "" {
		cfg.OutputFormat = formatFlag
	}
	width, _ := cmd.Flags().GetInt("width")
	if width == 0 {
		width = cfg.OutputWidth
	}

	logger := setupLogger(logFile, logLevel)
	client, err := newClient(cfg, logger)
	if err != nil {
		return err
	}

	store := playlist.NewStore(client.Audio(), playlist.Options{DeletedTTL: cfg.Playlist.DeletedTTL}, logger)
	defer store.Close()

	if err := store.Load(ctx); err != nil {
		return loginHint(err)
	}

	return writeTracks(os.Stdout, store.Tracks(), cfg.OutputFormat, width)
}

// writeTracks prints one formatted line per track
func writeTracks(w io.Writer, tracks []playlist.Track, format string, width int) error {
	tmpl, err := template.New("output").Parse(format)
	if err != nil {
		return fmt.Errorf("invalid template: %w", err)
	}

	for i, t := range tracks {
		row := trackRow{
			Index:  i + 1,
			Title:  t.Title,
			Artist: t.Artist,
			URL:    t.URL,
			ID:     t.Identifier(),
		}

		line, err := formatTrack(tmpl, row)
		if err != nil {
			return err
		}
		if width > 0 {
			line = padToWidth(line, width)
		}
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

// formatTrack applies the template to one row
func formatTrack(tmpl *template.Template, row trackRow) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, row); err != nil {
		return "", fmt.Errorf("template execution failed: %w", err)
	}
	return buf.String(), nil
}

// padToWidth pads or truncates text to a fixed display width.
// Width is measured in display columns, accounting for Unicode characters.
// If width <= 0, returns text unchanged.
// If text is longer than width, truncates with "..." suffix.
// If text is shorter than width, pads with spaces.
func padToWidth(text string, width int) string {
	if width <= 0 {
		return text
	}

	currentWidth := runewidth.StringWidth(text)

	if currentWidth > width {
		ellipsis := "..."
		ellipsisWidth := runewidth.StringWidth(ellipsis)

		if width <= ellipsisWidth {
			return runewidth.Truncate(ellipsis, width, "")
		}

		// wide runes may leave the truncated text one column short
		result := runewidth.Truncate(text, width-ellipsisWidth, "") + ellipsis
		if resultWidth := runewidth.StringWidth(result); resultWidth < width {
			return result + strings.Repeat(" ", width-resultWidth)
		}
		return result
	} else if currentWidth < width {
		return text + strings.Repeat(" ", width-currentWidth)
	}

	return text
}
