package playlist

import (
	"fmt"
	"net/url"
	"strings"
)

// Track is one playable entry in the playlist
type Track struct {
	Title  string
	Artist string
	URL    string // empty for placeholder entries
}

// Placeholder tracks shown in place of real content
var (
	NoFilesTrack = Track{Title: "No Audio Files", Artist: "Generate to create new audio"}
	ErrorTrack   = Track{Title: "Error Loading Files", Artist: "Please try again later"}
	LoadingTrack = Track{Title: "Loading...", Artist: "Fetching audio files"}
)

// IsSentinel reports whether the track has nothing to play
func (t Track) IsSentinel() bool {
	return t.URL == ""
}

// Identifier returns the object name used to delete the track
func (t Track) Identifier() string {
	return DeriveIdentifier(t.URL)
}

// Transform maps signed audio URLs to tracks, preserving server order.
// An empty listing yields a single NoFilesTrack.
func Transform(urls []string) []Track {
	if len(urls) == 0 {
		return []Track{NoFilesTrack}
	}

	tracks := make([]Track, 0, len(urls))
	for i, u := range urls {
		label := fmt.Sprintf("Audio %d", i+1)
		title := titleFromURL(u)
		if title == "" {
			title = label
		}
		tracks = append(tracks, Track{
			Title:  title,
			Artist: label,
			URL:    u,
		})
	}
	return tracks
}

// titleFromURL returns the decoded filename of u without a trailing .wav
func titleFromURL(u string) string {
	name := stripQuery(u)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}

	if decoded, err := url.PathUnescape(name); err == nil {
		name = decoded
	}

	return strings.TrimSuffix(name, ".wav")
}

// DeriveIdentifier returns the last two path segments of u joined by "/",
// ignoring any query string. URLs with fewer than two segments have no
// identifier.
func DeriveIdentifier(u string) string {
	if u == "" {
		return ""
	}

	parts := strings.Split(stripQuery(u), "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2] + "/" + parts[len(parts)-1]
}

func stripQuery(u string) string {
	if i := strings.Index(u, "?"); i >= 0 {
		return u[:i]
	}
	return u
}
