package newsloop

import (
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Config holds client configuration.
type Config struct {
	BaseURL       string        // Optional: API root (defaults to DefaultBaseURL, overridden in tests)
	SessionCookie string        // Optional: Cookie header value carrying the session credentials
	HTTPClient    *http.Client  // Optional: HTTP client (defaults to one with a 30s timeout)
	Logger        Logger        // Optional: Logger interface for debug logging
	RateLimit     float64       // Optional: requests per second (0 disables limiting)
	Burst         int           // Optional: limiter burst (defaults to 1)
	MaxRetries    int           // Optional: attempts for idempotent requests (defaults to 3)
	UserAgent     string        // Optional: User-Agent header
	Timeout       time.Duration // Optional: timeout for the default HTTP client
}

// Logger is an optional interface for logging.
type Logger interface {
	// Debugf logs a debug message with format and arguments.
	Debugf(format string, args ...interface{})
}

// Client is the main entry point for Newsloop API operations.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	jar        http.CookieJar
	limiter    *rate.Limiter
	maxRetries int
	userAgent  string
	logger     Logger

	audio       *AudioService
	generation  *GenerationService
	auth        *AuthService
	profile     *ProfileService
	preferences *PreferencesService
}

const (
	// DefaultBaseURL is the default Newsloop API endpoint.
	DefaultBaseURL = "https://newsxapi.newsloop.xyz"

	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 3
	defaultUserAgent  = "loopdeck/1.0"
)

// NewClient creates a new Newsloop API client.
//
// Returns an error if the base URL cannot be parsed.
func NewClient(cfg Config) (*Client, error) {
	raw := cfg.BaseURL
	if raw == "" {
		raw = DefaultBaseURL
	}
	base, err := url.Parse(strings.TrimRight(raw, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("%w: bad base URL %q", ErrInvalidConfig, raw)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("newsloop: cookie jar: %w", err)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}

	c := &Client{
		baseURL:    base,
		httpClient: httpClient,
		jar:        jar,
		limiter:    limiter,
		maxRetries: maxRetries,
		userAgent:  userAgent,
		logger:     cfg.Logger,
	}

	if cfg.SessionCookie != "" {
		if err := c.SetSessionCookie(cfg.SessionCookie); err != nil {
			return nil, err
		}
	}

	c.audio = &AudioService{client: c}
	c.generation = &GenerationService{client: c}
	c.auth = &AuthService{client: c}
	c.profile = &ProfileService{client: c}
	c.preferences = &PreferencesService{client: c}

	return c, nil
}

// Audio returns the audio file service.
func (c *Client) Audio() *AudioService {
	return c.audio
}

// Generation returns the generation stream service.
func (c *Client) Generation() *GenerationService {
	return c.generation
}

// Auth returns the sign-in service.
func (c *Client) Auth() *AuthService {
	return c.auth
}

// Profile returns the user profile service.
func (c *Client) Profile() *ProfileService {
	return c.profile
}

// Preferences returns the source preference service.
func (c *Client) Preferences() *PreferencesService {
	return c.preferences
}

// SetSessionCookie replaces the session credentials with the cookies in
// header, formatted like a Cookie request header ("a=1; b=2").
func (c *Client) SetSessionCookie(header string) error {
	cookies, err := http.ParseCookie(header)
	if err != nil {
		return fmt.Errorf("%w: session cookie: %v", ErrInvalidConfig, err)
	}
	c.jar.SetCookies(c.baseURL, cookies)
	return nil
}

// SessionCookie returns the cookies the client currently holds for the API,
// formatted like a Cookie request header. The value is suitable for
// persisting and passing back through Config.SessionCookie.
func (c *Client) SessionCookie() string {
	cookies := c.jar.Cookies(c.baseURL)
	parts := make([]string, 0, len(cookies))
	for _, ck := range cookies {
		parts = append(parts, ck.Name+"="+ck.Value)
	}
	return strings.Join(parts, "; ")
}

// endpoint resolves an API path against the base URL.
func (c *Client) endpoint(path string) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

// logDebugf logs a debug message if a logger is configured.
func (c *Client) logDebugf(format string, args ...interface{}) {
	if c.logger != nil {
		c.logger.Debugf(format, args...)
	}
}
