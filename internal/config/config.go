// Package config holds the jukebox server settings.
//
// Values come from an optional TOML file and are then overridden, key by
// key, by environment variables or command-line flags.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/charmbracelet/log"
)

// Defaults.
const (
	DefaultPort            = 3000
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultRateLimit       = 5.0
	DefaultRateBurst       = 10
	DefaultLogLevel        = "info"
)

// Validation errors.
var (
	ErrMissingClientID     = errors.New("missing SPOTIFY_CLIENT_ID")
	ErrMissingClientSecret = errors.New("missing SPOTIFY_CLIENT_SECRET")
	ErrMissingRedirectURI  = errors.New("missing REDIRECT_URI")
	ErrInvalidRedirectURI  = errors.New("REDIRECT_URI must be an absolute http(s) URL")
	ErrInvalidPort         = errors.New("invalid port")
	ErrInvalidTimeout      = errors.New("invalid upstream timeout")
	ErrInvalidRateLimit    = errors.New("invalid rate limit")
	ErrInvalidLogLevel     = errors.New("invalid log level")
	ErrUnknownKey          = errors.New("unknown configuration key")
)

// Config holds server configuration.
type Config struct {
	ClientID        string        `toml:"client_id"`
	ClientSecret    string        `toml:"client_secret"`
	RedirectURI     string        `toml:"redirect_uri"`
	Host            string        `toml:"host"`
	Port            int           `toml:"port"`
	UpstreamTimeout time.Duration `toml:"upstream_timeout"`
	RateLimit       float64       `toml:"rate_limit"`
	RateBurst       int           `toml:"rate_burst"`
	LogLevel        string        `toml:"log_level"`
}

// Field describes one overridable setting.
type Field struct {
	Name  string // flag name
	Env   string // environment variable
	Usage string
}

// Fields lists every setting in the order flags are shown.
var Fields = []Field{
	{Name: "client-id", Env: "SPOTIFY_CLIENT_ID", Usage: "Spotify application client ID"},
	{Name: "client-secret", Env: "SPOTIFY_CLIENT_SECRET", Usage: "Spotify application client secret"},
	{Name: "redirect-uri", Env: "REDIRECT_URI", Usage: "OAuth callback URL registered with Spotify"},
	{Name: "host", Env: "HOST", Usage: "interface to listen on"},
	{Name: "port", Env: "PORT", Usage: "port to listen on"},
	{Name: "upstream-timeout", Env: "UPSTREAM_TIMEOUT", Usage: "timeout for each Spotify request"},
	{Name: "rate-limit", Env: "RATE_LIMIT", Usage: "API requests per second, 0 disables limiting"},
	{Name: "rate-burst", Env: "RATE_BURST", Usage: "API request burst size"},
	{Name: "log-level", Env: "LOG_LEVEL", Usage: "debug, info, warn or error"},
}

// Default returns a Config with every optional value filled in.
func Default() *Config {
	return &Config{
		Port:            DefaultPort,
		UpstreamTimeout: DefaultUpstreamTimeout,
		RateLimit:       DefaultRateLimit,
		RateBurst:       DefaultRateBurst,
		LogLevel:        DefaultLogLevel,
	}
}

// Load reads a TOML file over the defaults.
// Returns the defaults unchanged if the file does not exist.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrUnknownKey, undecoded[0].String())
	}

	return cfg, nil
}

// Set overrides a single setting by its flag name, parsing value as needed.
func (c *Config) Set(name, value string) error {
	value = strings.TrimSpace(value)

	switch name {
	case "client-id":
		c.ClientID = value
	case "client-secret":
		c.ClientSecret = value
	case "redirect-uri":
		c.RedirectURI = value
	case "host":
		c.Host = value
	case "port":
		port, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidPort, value)
		}
		c.Port = port
	case "upstream-timeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidTimeout, value)
		}
		c.UpstreamTimeout = d
	case "rate-limit":
		limit, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidRateLimit, value)
		}
		c.RateLimit = limit
	case "rate-burst":
		burst, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%w: burst %q", ErrInvalidRateLimit, value)
		}
		c.RateBurst = burst
	case "log-level":
		c.LogLevel = value
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKey, name)
	}
	return nil
}

// Validate checks that required values are present and the rest are usable.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return ErrMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrMissingClientSecret
	}
	if c.RedirectURI == "" {
		return ErrMissingRedirectURI
	}

	u, err := url.Parse(c.RedirectURI)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRedirectURI, c.RedirectURI)
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("%w: %d", ErrInvalidPort, c.Port)
	}
	if c.UpstreamTimeout <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, c.UpstreamTimeout)
	}
	if c.RateLimit < 0 || (c.RateLimit > 0 && c.RateBurst < 1) {
		return fmt.Errorf("%w: %v/s burst %d", ErrInvalidRateLimit, c.RateLimit, c.RateBurst)
	}
	if _, err := log.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("%w: %q", ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// Level returns the parsed log level, falling back to info.
func (c *Config) Level() log.Level {
	level, err := log.ParseLevel(c.LogLevel)
	if err != nil {
		return log.InfoLevel
	}
	return level
}
