package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL      = "http://localhost:8080"
	DefaultStressURL   = "http://localhost:5000"
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org"
	DefaultDataDir     = "."
	DefaultLogDir      = "logs"
	DefaultConfigFile  = "aldebaran.toml"
)

// Config holds application configuration
type Config struct {
	APIURL      string `toml:"api_url"`
	StressURL   string `toml:"stress_url"`
	GeocoderURL string `toml:"geocoder_url"`

	DataDir string `toml:"data_dir"` // Directory holding the local storage database
	LogDir  string `toml:"log_dir"`
	Debug   bool   `toml:"debug"`

	// Timeout of the shared HTTP client; zero means requests run until they complete or fail
	RequestTimeout time.Duration `toml:"request_timeout"`

	// Origin used to sort hospital results by distance; nil when unknown
	OriginLat *float64 `toml:"origin_lat"`
	OriginLon *float64 `toml:"origin_lon"`

	// Protected route prefixes
	ProtectedPaths []string `toml:"protected_paths"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		APIURL:         DefaultAPIURL,
		StressURL:      DefaultStressURL,
		GeocoderURL:    DefaultGeocoderURL,
		DataDir:        DefaultDataDir,
		LogDir:         DefaultLogDir,
		ProtectedPaths: []string{"/conversation"},
	}
}

// HasOrigin reports whether both origin coordinates are set
func (c Config) HasOrigin() bool {
	return c.OriginLat != nil && c.OriginLon != nil
}

// Load layers the optional TOML file and then the environment (including a
// .env file) over the defaults. Command-line flags are applied by the caller.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		path = DefaultConfigFile
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	_ = godotenv.Load()
	applyEnv(&cfg)

	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.APIURL = getEnv("ALDEBARAN_API_URL", cfg.APIURL)
	cfg.StressURL = getEnv("ALDEBARAN_STRESS_URL", cfg.StressURL)
	cfg.GeocoderURL = getEnv("ALDEBARAN_GEOCODER_URL", cfg.GeocoderURL)
	cfg.DataDir = getEnv("ALDEBARAN_DATA_DIR", cfg.DataDir)
	cfg.LogDir = getEnv("ALDEBARAN_LOG_DIR", cfg.LogDir)
	cfg.Debug = getBoolEnv("ALDEBARAN_DEBUG", cfg.Debug)

	if v := getEnv("ALDEBARAN_REQUEST_TIMEOUT", ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RequestTimeout = d
		} else {
			slog.Warn("ignoring invalid duration", "key", "ALDEBARAN_REQUEST_TIMEOUT", "value", v)
		}
	}
	if lat, ok := getFloatEnv("ALDEBARAN_ORIGIN_LAT"); ok {
		cfg.OriginLat = &lat
	}
	if lon, ok := getFloatEnv("ALDEBARAN_ORIGIN_LON"); ok {
		cfg.OriginLon = &lon
	}
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getFloatEnv(key string) (float64, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		slog.Warn("ignoring invalid number", "key", key, "value", v)
		return 0, false
	}
	return f, true
}
