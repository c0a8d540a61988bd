package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	// Output format template for the tracks command
	// Default: "{{.Index}}. {{.Title}} - {{.Artist}}"
	OutputFormat string

	// Fixed output width for the tracks command (0 = disabled)
	OutputWidth int

	// Directory for state, history and logs
	DataDir string

	API        APIConfig
	Player     PlayerConfig
	Playlist   PlaylistConfig
	Generation GenerationConfig
	TUI        TUIConfig
}

// APIConfig holds Newsloop backend settings
type APIConfig struct {
	BaseURL       string
	SessionCookie string
	Timeout       time.Duration
	RateLimit     float64
}

// PlayerConfig holds audio transport settings
type PlayerConfig struct {
	Command string // mpv binary
	Volume  int    // initial volume when no saved state exists
}

// PlaylistConfig holds playlist store settings
type PlaylistConfig struct {
	DeletedTTL time.Duration // how long a deleted marker stays visible
}

// GenerationConfig holds generation job settings
type GenerationConfig struct {
	SettleDelay time.Duration // delay between the success message and closing the stream
}

// TUIConfig holds dashboard settings
type TUIConfig struct {
	RefreshRate time.Duration
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	configDir := getConfigDir()
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	setDefaults(v)

	// Read config file (optional - don't fail if missing)
	_ = v.ReadInConfig()

	// Read from environment variables, e.g. LOOPDECK_API_BASE_URL
	v.SetEnvPrefix("LOOPDECK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("output_format", "{{.Index}}. {{.Title}} - {{.Artist}}")
	v.SetDefault("output_width", 0)
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("api.base_url", "https://newsxapi.newsloop.xyz")
	v.SetDefault("api.session_cookie", "")
	v.SetDefault("api.timeout", 30)
	v.SetDefault("api.rate_limit", 5)
	v.SetDefault("player.command", "mpv")
	v.SetDefault("player.volume", 80)
	v.SetDefault("playlist.deleted_ttl_ms", 3000)
	v.SetDefault("generation.settle_delay_ms", 1000)
	v.SetDefault("tui.refresh_ms", 500)
}

// fromViper maps viper keys onto Config
func fromViper(v *viper.Viper) *Config {
	return &Config{
		OutputFormat: v.GetString("output_format"),
		OutputWidth:  v.GetInt("output_width"),
		DataDir:      v.GetString("data_dir"),
		API: APIConfig{
			BaseURL:       v.GetString("api.base_url"),
			SessionCookie: v.GetString("api.session_cookie"),
			Timeout:       time.Duration(v.GetInt("api.timeout")) * time.Second,
			RateLimit:     v.GetFloat64("api.rate_limit"),
		},
		Player: PlayerConfig{
			Command: v.GetString("player.command"),
			Volume:  clampVolume(v.GetInt("player.volume")),
		},
		Playlist: PlaylistConfig{
			DeletedTTL: time.Duration(v.GetInt("playlist.deleted_ttl_ms")) * time.Millisecond,
		},
		Generation: GenerationConfig{
			SettleDelay: time.Duration(v.GetInt("generation.settle_delay_ms")) * time.Millisecond,
		},
		TUI: TUIConfig{
			RefreshRate: time.Duration(v.GetInt("tui.refresh_ms")) * time.Millisecond,
		},
	}
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "loopdeck")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}

// GetConfigDir returns the configuration directory path (public helper)
func GetConfigDir() string {
	return getConfigDir()
}

func defaultDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(homeDir, ".local", "share", "loopdeck")
}

// Save writes configuration to file
func (c *Config) Save() error {
	return c.SaveTo(filepath.Join(getConfigDir(), "config.yaml"))
}

// SaveTo writes configuration to the given file
func (c *Config) SaveTo(configFile string) error {
	v := viper.New()

	v.Set("output_format", c.OutputFormat)
	v.Set("output_width", c.OutputWidth)
	v.Set("data_dir", c.DataDir)
	v.Set("api.base_url", c.API.BaseURL)
	v.Set("api.session_cookie", c.API.SessionCookie)
	v.Set("api.timeout", int(c.API.Timeout/time.Second))
	v.Set("api.rate_limit", c.API.RateLimit)
	v.Set("player.command", c.Player.Command)
	v.Set("player.volume", c.Player.Volume)
	v.Set("playlist.deleted_ttl_ms", c.Playlist.DeletedTTL.Milliseconds())
	v.Set("generation.settle_delay_ms", c.Generation.SettleDelay.Milliseconds())
	v.Set("tui.refresh_ms", c.TUI.RefreshRate.Milliseconds())

	if err := os.MkdirAll(filepath.Dir(configFile), 0755); err != nil {
		return err
	}

	// Session cookies are credentials; keep the file private
	if err := v.WriteConfigAs(configFile); err != nil {
		return err
	}
	return os.Chmod(configFile, 0600)
}

// LoadFrom reads configuration from a specific file, without environment
// overrides. Used by tests and by --config.
func LoadFrom(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(configFile)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	return fromViper(v), nil
}
