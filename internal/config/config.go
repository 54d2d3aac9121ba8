package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream shelter API.
	UpstreamBaseURL  string
	UpstreamPerPage  int
	UpstreamMaxPages int
	UpstreamTimeout  time.Duration

	RefreshInterval time.Duration

	RedisURL string

	// Geo resolution.
	GeoLookupURL     string
	GeoTimeout       time.Duration
	GeoCacheTTL      time.Duration
	HomeCountry      string
	HomeLanguage     string
	DefaultLanguage  string
	DefaultLatitude  float64
	DefaultLongitude float64
	DefaultCity      string
	DefaultTimezone  string

	SessionTTL time.Duration

	// Snapshot publishing configuration.
	KafkaEnabled   bool
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}
	upstreamTimeout, err := parseDuration("UPSTREAM_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := parseDuration("REFRESH_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}
	geoTimeout, err := parseDuration("GEO_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}
	geoCacheTTL, err := parseDuration("GEO_CACHE_TTL", "24h")
	if err != nil {
		return nil, err
	}
	sessionTTL, err := parseDuration("SESSION_TTL", "60m")
	if err != nil {
		return nil, err
	}

	perPage, err := parseInt("UPSTREAM_PER_PAGE", 100)
	if err != nil {
		return nil, err
	}
	maxPages, err := parseInt("UPSTREAM_MAX_PAGES", 200)
	if err != nil {
		return nil, err
	}

	defaultLat, err := parseFloat("DEFAULT_LATITUDE", -30.0346)
	if err != nil {
		return nil, err
	}
	defaultLon, err := parseFloat("DEFAULT_LONGITUDE", -51.2177)
	if err != nil {
		return nil, err
	}

	kafkaEnabled := false
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		UpstreamBaseURL:  envOrDefault("UPSTREAM_BASE_URL", "https://api.sos-rs.com"),
		UpstreamPerPage:  perPage,
		UpstreamMaxPages: maxPages,
		UpstreamTimeout:  upstreamTimeout,

		RefreshInterval: refreshInterval,

		RedisURL: envOrDefault("REDIS_URL", "redis://localhost:6379"),

		GeoLookupURL:     envOrDefault("GEO_LOOKUP_URL", "http://ip-api.com/json"),
		GeoTimeout:       geoTimeout,
		GeoCacheTTL:      geoCacheTTL,
		HomeCountry:      envOrDefault("HOME_COUNTRY", "BR"),
		HomeLanguage:     envOrDefault("HOME_LANGUAGE", "pt-br"),
		DefaultLanguage:  envOrDefault("DEFAULT_LANGUAGE", "en"),
		DefaultLatitude:  defaultLat,
		DefaultLongitude: defaultLon,
		DefaultCity:      envOrDefault("DEFAULT_CITY", "Porto Alegre"),
		DefaultTimezone:  envOrDefault("DEFAULT_TIMEZONE", "America/Sao_Paulo"),

		SessionTTL: sessionTTL,

		KafkaEnabled:   kafkaEnabled,
		KafkaBrokers:   parseBrokers(envOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSinkTopic: envOrDefault("KAFKA_SINK_TOPIC", "shelter-snapshots"),
	}

	if cfg.UpstreamBaseURL == "" {
		return nil, errors.New("UPSTREAM_BASE_URL is required")
	}
	if cfg.UpstreamPerPage <= 0 {
		return nil, errors.New("UPSTREAM_PER_PAGE must be positive")
	}
	if cfg.UpstreamMaxPages <= 0 {
		return nil, errors.New("UPSTREAM_MAX_PAGES must be positive")
	}
	if cfg.RefreshInterval < time.Minute {
		return nil, errors.New("REFRESH_INTERVAL must be at least one minute")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parseDuration(key, fallback string) (time.Duration, error) {
	raw := envOrDefault(key, fallback)
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return d, nil
}

func parseInt(key string, fallback int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return n, nil
}

func parseFloat(key string, fallback float64) (float64, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", key, raw)
	}
	return f, nil
}

func parseBrokers(raw string) []string {
	parts := strings.Split(raw, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
