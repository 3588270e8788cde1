package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// DefaultAPIURL is the public test deployment of the flood warning service.
const DefaultAPIURL = "http://flood-warning-api-test.us-east-1.elasticbeanstalk.com"

// MinRefreshInterval bounds how often watch mode may poll the service.
const MinRefreshInterval = 30 * time.Second

// Config holds all client settings, populated from environment variables.
type Config struct {
	APIURL          string
	APITimeout      time.Duration
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	RefreshInterval time.Duration
	FetchWait       time.Duration

	// Geolocation for default region selection. Home is nil unless both
	// HOME_LAT and HOME_LNG are set.
	GeolocationTimeout time.Duration
	HomeLat            *float64
	HomeLng            *float64

	// RegionsFile overrides the embedded region reference data when set.
	RegionsFile string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	apiTimeout, err := parsePositiveDuration("API_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parsePositiveDuration("REFRESH_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}
	fetchWait, err := parsePositiveDuration("FETCH_WAIT", "30s")
	if err != nil {
		return nil, err
	}
	geoTimeout, err := parsePositiveDuration("GEOLOCATION_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	homeLat, err := parseOptionalFloat("HOME_LAT", -90, 90)
	if err != nil {
		return nil, err
	}
	homeLng, err := parseOptionalFloat("HOME_LNG", -180, 180)
	if err != nil {
		return nil, err
	}
	if (homeLat == nil) != (homeLng == nil) {
		return nil, errors.New("HOME_LAT and HOME_LNG must be set together")
	}

	cfg := &Config{
		APIURL:             sharedcfg.EnvOrDefault("FLOODWATCH_API_URL", DefaultAPIURL),
		APITimeout:         apiTimeout,
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":9090"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "text"),
		ShutdownTimeout:    shutdownTimeout,
		RefreshInterval:    refreshInterval,
		FetchWait:          fetchWait,
		GeolocationTimeout: geoTimeout,
		HomeLat:            homeLat,
		HomeLng:            homeLng,
		RegionsFile:        os.Getenv("REGIONS_FILE"),
	}

	u, err := url.Parse(cfg.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, errors.New("invalid FLOODWATCH_API_URL")
	}
	if cfg.RefreshInterval < MinRefreshInterval {
		return nil, fmt.Errorf("REFRESH_INTERVAL must be at least %s", MinRefreshInterval)
	}

	return cfg, nil
}

// HasHome reports whether a static home location is configured.
func (c *Config) HasHome() bool {
	return c.HomeLat != nil && c.HomeLng != nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseOptionalFloat(key string, lo, hi float64) (*float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v < lo || v > hi {
		return nil, fmt.Errorf("invalid %s", key)
	}
	return &v, nil
}
