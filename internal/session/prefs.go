package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Prefs are the playback settings that survive restarts
type Prefs struct {
	Volume int  `json:"volume"`
	Muted  bool `json:"muted"`
}

// PrefsFile manages Prefs with thread-safe access and persistence
type PrefsFile struct {
	mu       sync.RWMutex
	current  Prefs
	loaded   bool
	filePath string
}

// NewPrefsFile creates a PrefsFile
// If filePath is provided, attempts to restore prefs from disk
func NewPrefsFile(filePath string) (*PrefsFile, error) {
	p := &PrefsFile{
		filePath: filePath,
	}

	if filePath != "" {
		if err := p.restore(); err != nil && !os.IsNotExist(err) {
			// Corrupt or unreadable; the caller can continue with defaults
			return p, err
		}
	}

	return p, nil
}

// Get returns the current prefs and whether any were restored or saved
func (p *PrefsFile) Get() (Prefs, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current, p.loaded
}

// Set replaces the prefs and persists them
func (p *PrefsFile) Set(prefs Prefs) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.loaded && p.current == prefs {
		return nil
	}
	p.current = prefs
	p.loaded = true
	return p.persist()
}

// persist saves the current prefs to disk
// Must be called with lock held
func (p *PrefsFile) persist() error {
	if p.filePath == "" {
		return nil
	}

	data, err := json.MarshalIndent(p.current, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(p.filePath), 0755); err != nil {
		return err
	}

	// Write atomically via temp file + rename
	tmpPath := p.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, p.filePath)
}

func (p *PrefsFile) restore() error {
	data, err := os.ReadFile(p.filePath)
	if err != nil {
		return err
	}

	var prefs Prefs
	if err := json.Unmarshal(data, &prefs); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.current = Prefs{Volume: clampVolume(prefs.Volume), Muted: prefs.Muted}
	p.loaded = true
	return nil
}
