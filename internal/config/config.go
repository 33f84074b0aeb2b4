package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration.
type Config struct {
	Database    DatabaseConfig    `yaml:"database"`
	Server      ServerConfig      `yaml:"server"`
	TMDB        TMDBConfig        `yaml:"tmdb"`
	Auth        AuthConfig        `yaml:"auth"`
	Recommend   RecommendConfig   `yaml:"recommend"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
	Log         LogConfig         `yaml:"log"`
}

// DatabaseConfig configures SQLite storage.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// TMDBConfig configures the external catalog client.
type TMDBConfig struct {
	APIKey       string `yaml:"api_key"`
	Token        string `yaml:"token"` // v4 bearer token, used instead of api_key when set
	BaseURL      string `yaml:"base_url"`
	ImageBaseURL string `yaml:"image_base_url"`
	PosterSize   string `yaml:"poster_size"`
	Timeout      string `yaml:"timeout"`
}

// ParseTimeout returns the request timeout as time.Duration.
func (t TMDBConfig) ParseTimeout() time.Duration {
	d, err := time.ParseDuration(t.Timeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// AuthConfig configures the optional bearer token that gates mutating
// endpoints. An empty token disables auth.
type AuthConfig struct {
	APIToken string `yaml:"api_token"`
}

// RecommendConfig holds engine parameter defaults used when a request
// does not override them.
type RecommendConfig struct {
	MinRating      int     `yaml:"min_rating"`
	YearWindow     int     `yaml:"year_window"`
	MinVoteAverage float64 `yaml:"min_vote_average"`
	MinVoteCount   int     `yaml:"min_vote_count"`
	Pages          int     `yaml:"pages"`
}

// MaintenanceConfig configures the background maintenance loop.
type MaintenanceConfig struct {
	Enabled              bool   `yaml:"enabled"`
	PosterCheckInterval  string `yaml:"poster_check_interval"`
	GenreRefreshInterval string `yaml:"genre_refresh_interval"`
}

// ParsePosterCheckInterval returns the poster backfill interval.
func (m MaintenanceConfig) ParsePosterCheckInterval() time.Duration {
	d, err := time.ParseDuration(m.PosterCheckInterval)
	if err != nil {
		return 6 * time.Hour
	}
	return d
}

// ParseGenreRefreshInterval returns the genre sync interval.
func (m MaintenanceConfig) ParseGenreRefreshInterval() time.Duration {
	d, err := time.ParseDuration(m.GenreRefreshInterval)
	if err != nil {
		return 24 * time.Hour
	}
	return d
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{Path: "./moviewatchlist.db"},
		Server: ServerConfig{
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		TMDB: TMDBConfig{
			BaseURL:      "https://api.themoviedb.org/3",
			ImageBaseURL: "https://image.tmdb.org/t/p",
			PosterSize:   "w500",
			Timeout:      "15s",
		},
		Recommend: RecommendConfig{
			MinRating:      7,
			YearWindow:     10,
			MinVoteAverage: 7.0,
			MinVoteCount:   200,
			Pages:          2,
		},
		Maintenance: MaintenanceConfig{
			Enabled:              false,
			PosterCheckInterval:  "6h",
			GenreRefreshInterval: "24h",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration from a YAML file and applies env var overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides overrides config values with environment variables.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MW_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("MW_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TMDB_API_KEY"); v != "" {
		cfg.TMDB.APIKey = v
	}
	if v := os.Getenv("TMDB_TOKEN"); v != "" {
		cfg.TMDB.Token = v
	}
	if v := os.Getenv("API_TOKEN"); v != "" {
		cfg.Auth.APIToken = v
	}
	if v := os.Getenv("MW_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
