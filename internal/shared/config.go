package shared

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Feed        FeedConfig        `toml:"feed"`
	Harvest     HarvestConfig     `toml:"harvest"`
	Catalog     CatalogConfig     `toml:"catalog"`
	Playlists   PlaylistsConfig   `toml:"playlists"`
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Log         LogConfig         `toml:"log"`
}

// Duration wraps [time.Duration] so it can be written as "100ms" or "168h" in TOML.
type Duration struct {
	time.Duration
}

// UnmarshalText implements [encoding.TextUnmarshaler].
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("%w: duration %q: %v", ErrInvalidConfig, string(text), err)
	}
	d.Duration = v
	return nil
}

// MarshalText implements [encoding.TextMarshaler].
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// FeedConfig describes the upstream play-history GraphQL endpoint.
type FeedConfig struct {
	Endpoint  string   `toml:"endpoint"`
	Operation string   `toml:"operation"`
	StationID int      `toml:"station_id"`
	PageSize  int      `toml:"page_size"`
	QueryHash string   `toml:"query_hash"`
	Timeout   Duration `toml:"timeout"`
}

// HarvestConfig controls the backward walk through the feed.
type HarvestConfig struct {
	Lookback      Duration `toml:"lookback"`
	PageCap       int      `toml:"page_cap"`
	MaxAttempts   int      `toml:"max_attempts"`
	RetryDelay    Duration `toml:"retry_delay"`
	Backoff       string   `toml:"backoff"`         // fixed or exponential
	MaxRetryDelay Duration `toml:"max_retry_delay"` // cap for exponential backoff
	AllowPartial  bool     `toml:"allow_partial"`
}

// CatalogConfig controls track resolution against the catalog.
type CatalogConfig struct {
	SearchDelay   Duration `toml:"search_delay"`
	Disambiguator string   `toml:"disambiguator"` // album or artist
}

// PlaylistsConfig names the two published playlists and how they are filled.
type PlaylistsConfig struct {
	MostPlayedID   string `toml:"most_played_id"`
	MostPlayedName string `toml:"most_played_name"`
	PlayedOnceID   string `toml:"played_once_id"`
	PlayedOnceName string `toml:"played_once_name"`
	CandidateRank  int    `toml:"candidate_rank"`
	OnceCandidates int    `toml:"once_candidates"`
	MaxTracks      int    `toml:"max_tracks"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the last stored token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	Expiry       time.Time `toml:"expiry,omitempty"`
}

// Map returns the credentials in the form accepted by services.NewSpotifyService.
func (s SpotifyConfig) Map() map[string]string {
	return map[string]string{
		"client_id":     s.ClientID,
		"client_secret": s.ClientSecret,
		"redirect_uri":  s.RedirectURI,
	}
}

// Token returns the stored token, or nil when no access or refresh token is configured.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    "Bearer",
		Expiry:       s.Expiry,
	}
}

// Update stores token in the configuration, keeping the previous refresh token when the new one is empty.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrInvalidCredentials)
	}
	s.AccessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.RefreshToken = token.RefreshToken
	}
	s.Expiry = token.Expiry
	return nil
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains settings for the local OAuth callback server.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Values missing from the file keep the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// Validate checks the values the harvest cannot run without.
func (c *Config) Validate() error {
	switch {
	case c.Feed.Endpoint == "":
		return fmt.Errorf("%w: feed.endpoint is empty", ErrInvalidConfig)
	case c.Feed.PageSize <= 0:
		return fmt.Errorf("%w: feed.page_size must be positive", ErrInvalidConfig)
	case c.Harvest.Lookback.Duration <= 0:
		return fmt.Errorf("%w: harvest.lookback must be positive", ErrInvalidConfig)
	case c.Harvest.PageCap < 0:
		return fmt.Errorf("%w: harvest.page_cap must not be negative", ErrInvalidConfig)
	case c.Harvest.MaxAttempts < 1:
		return fmt.Errorf("%w: harvest.max_attempts must be at least 1", ErrInvalidConfig)
	case c.Harvest.Backoff != "" && c.Harvest.Backoff != "fixed" && c.Harvest.Backoff != "exponential":
		return fmt.Errorf("%w: harvest.backoff must be fixed or exponential", ErrInvalidConfig)
	case c.Catalog.Disambiguator != "album" && c.Catalog.Disambiguator != "artist":
		return fmt.Errorf("%w: catalog.disambiguator must be album or artist", ErrInvalidConfig)
	case c.Playlists.MaxTracks < 1 || c.Playlists.MaxTracks > 100:
		return fmt.Errorf("%w: playlists.max_tracks must be between 1 and 100", ErrInvalidConfig)
	}
	return nil
}

// ApplyEnv loads envPath (a .env file, optional) and lets environment variables override credentials and the database path.
func (c *Config) ApplyEnv(envPath string) error {
	if envPath != "" {
		if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to load env file: %w", err)
		}
	}

	for key, dst := range map[string]*string{
		"SPOTIFY_CLIENT_ID":     &c.Credentials.Spotify.ClientID,
		"SPOTIFY_CLIENT_SECRET": &c.Credentials.Spotify.ClientSecret,
		"SPOTIFY_REDIRECT_URI":  &c.Credentials.Spotify.RedirectURI,
		"FIPLY_DATABASE_PATH":   &c.Database.Path,
	} {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	if err := os.WriteFile(path, buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
