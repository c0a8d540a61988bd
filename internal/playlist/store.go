package playlist

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/jfmyers9/loopdeck/pkg/newsloop"
	"github.com/rs/zerolog"
)

var (
	// ErrUnauthenticated is returned by Load when the listing endpoint
	// rejects the session. The caller must send the user back to login.
	ErrUnauthenticated = errors.New("playlist: not authenticated")

	// ErrDeleteInFlight is returned when the identifier is already being
	// deleted or was deleted moments ago.
	ErrDeleteInFlight = errors.New("playlist: delete already pending")
)

// DefaultDeletedTTL is how long a deleted marker stays visible
const DefaultDeletedTTL = 3 * time.Second

// Client is the subset of the Newsloop audio API the store needs
type Client interface {
	List(ctx context.Context) ([]string, error)
	Delete(ctx context.Context, objectName string) error
}

// ChangeKind describes what changed in the store
type ChangeKind int

const (
	ChangeLoaded    ChangeKind = iota // initial load applied
	ChangeRefreshed                   // refresh applied
	ChangeMarks                       // deleting or recently-deleted sets changed
)

// Change is passed to the store's observer after every mutation
type Change struct {
	Kind ChangeKind

	// AutoSelect is set on refreshes that produced at least one real track;
	// the player should jump to the newest one and start playing.
	AutoSelect bool
}

// Options configures a Store
type Options struct {
	DeletedTTL time.Duration
	OnChange   func(Change) // called without the store lock held
}

type stopper interface {
	Stop() bool
}

// Store owns the ordered playlist and the deletion markers
type Store struct {
	mu     sync.RWMutex
	client Client
	logger zerolog.Logger

	onChange   func(Change)
	deletedTTL time.Duration
	afterFunc  func(time.Duration, func()) stopper

	tracks          []Track
	loading         bool
	deleting        map[string]struct{}
	recentlyDeleted map[string]struct{}
	expiry          map[string]stopper
	closed          bool
}

// NewStore creates a store holding the loading placeholder
func NewStore(client Client, opts Options, logger zerolog.Logger) *Store {
	ttl := opts.DeletedTTL
	if ttl <= 0 {
		ttl = DefaultDeletedTTL
	}

	return &Store{
		client:     client,
		logger:     logger.With().Str("component", "playlist").Logger(),
		onChange:   opts.OnChange,
		deletedTTL: ttl,
		afterFunc: func(d time.Duration, f func()) stopper {
			return time.AfterFunc(d, f)
		},
		tracks:          []Track{LoadingTrack},
		loading:         true,
		deleting:        make(map[string]struct{}),
		recentlyDeleted: make(map[string]struct{}),
		expiry:          make(map[string]stopper),
	}
}

// SetOnChange replaces the observer
func (s *Store) SetOnChange(fn func(Change)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

// Load fetches the listing for the first time.
//
// A rejected request returns ErrUnauthenticated and leaves the playlist as
// it was. Any other failure replaces the playlist with ErrorTrack and
// returns nil.
func (s *Store) Load(ctx context.Context) error {
	urls, err := s.client.List(ctx)

	s.mu.Lock()
	s.loading = false
	if s.closed {
		s.mu.Unlock()
		return nil
	}

	if err != nil && newsloop.IsStatusError(err) {
		s.mu.Unlock()
		s.logger.Warn().Err(err).Msg("Audio listing rejected")
		return fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}

	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to load audio files")
		s.tracks = []Track{ErrorTrack}
	} else {
		s.tracks = Transform(urls)
		s.logger.Debug().Int("tracks", len(urls)).Msg("Audio files loaded")
	}
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeLoaded})
	return nil
}

// Refresh refetches the listing. Failures are logged and leave the
// playlist unchanged; the error is returned for callers that care.
func (s *Store) Refresh(ctx context.Context) error {
	urls, err := s.client.List(ctx)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Failed to refresh audio files")
		return err
	}

	tracks := Transform(urls)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.tracks = tracks
	s.loading = false
	s.mu.Unlock()

	s.logger.Debug().Int("tracks", len(urls)).Msg("Audio files refreshed")
	s.notify(Change{Kind: ChangeRefreshed, AutoSelect: countReal(tracks) > 0})
	return nil
}

// Delete removes a remote audio file by identifier.
//
// An empty identifier is a no-op. The identifier is marked as deleting for
// the duration of the request; on success it is marked as recently deleted
// for the configured TTL and the playlist is refreshed. Failed deletes are
// not retried.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	_, pending := s.deleting[id]
	_, recent := s.recentlyDeleted[id]
	if pending || recent {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDeleteInFlight, id)
	}
	s.deleting[id] = struct{}{}
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeMarks})

	if err := s.client.Delete(ctx, id); err != nil {
		s.mu.Lock()
		delete(s.deleting, id)
		s.mu.Unlock()
		s.notify(Change{Kind: ChangeMarks})

		s.logger.Warn().Err(err).Str("id", id).Msg("Failed to delete audio file")
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	s.mu.Lock()
	delete(s.deleting, id)
	if !s.closed {
		s.recentlyDeleted[id] = struct{}{}
		s.expiry[id] = s.afterFunc(s.deletedTTL, func() { s.expire(id) })
	}
	s.mu.Unlock()
	s.notify(Change{Kind: ChangeMarks})

	s.logger.Info().Str("id", id).Msg("Audio file deleted")
	_ = s.Refresh(ctx)
	return nil
}

func (s *Store) expire(id string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.recentlyDeleted, id)
	delete(s.expiry, id)
	s.mu.Unlock()

	s.notify(Change{Kind: ChangeMarks})
}

// Close stops pending expiry timers. Nothing is applied or reported
// after Close returns.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	for id, t := range s.expiry {
		t.Stop()
		delete(s.expiry, id)
	}
}

func (s *Store) notify(c Change) {
	s.mu.RLock()
	fn := s.onChange
	closed := s.closed
	s.mu.RUnlock()

	if fn != nil && !closed {
		fn(c)
	}
}

// Tracks returns a copy of the playlist
func (s *Store) Tracks() []Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.tracks)
}

// Len returns the playlist length, placeholders included
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tracks)
}

// Track returns the track at index i
func (s *Store) Track(i int) (Track, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i < 0 || i >= len(s.tracks) {
		return Track{}, false
	}
	return s.tracks[i], true
}

// RealTrackCount returns the number of playable tracks
func (s *Store) RealTrackCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return countReal(s.tracks)
}

// Loading reports whether the first load is still outstanding
func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// IsDeleting reports whether a delete request for id is in flight
func (s *Store) IsDeleting(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.deleting[id]
	return ok
}

// IsRecentlyDeleted reports whether id was deleted within the TTL
func (s *Store) IsRecentlyDeleted(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.recentlyDeleted[id]
	return ok
}

// Deleting returns the in-flight identifiers, sorted
func (s *Store) Deleting() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.deleting))
}

// RecentlyDeleted returns the recently deleted identifiers, sorted
func (s *Store) RecentlyDeleted() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.recentlyDeleted))
}

func countReal(tracks []Track) int {
	n := 0
	for _, t := range tracks {
		if !t.IsSentinel() {
			n++
		}
	}
	return n
}
