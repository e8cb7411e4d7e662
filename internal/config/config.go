package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers      []string
	KafkaUpdatesTopic string
	KafkaEventsTopic  string
	KafkaGroupID      string
	KafkaRelayGroupID string
	KafkaTimeout      time.Duration

	RedisURL       string
	RedisTimeout   time.Duration
	DisastersTTL   time.Duration
	WindowCacheTTL time.Duration

	EONETURL          string
	EONETTimeout      time.Duration
	CollectorEnabled  bool
	CollectorInterval time.Duration
	CollectorAnnounce bool

	// Matching configuration. MatchThresholdKm has no default.
	MatchThresholdKm   float64
	EarthRadiusKm      float64
	WindowPad          time.Duration
	ResolveConcurrency int

	// Mapbox geocoding configuration.
	MapboxToken     string
	MapboxEnabled   bool
	MapboxTimeout   time.Duration
	MapboxCacheSize int
	MapboxRPS       float64

	HTTPAddr              string
	LogLevel              string
	LogFormat             string
	ShutdownTimeout       time.Duration
	RelayEnabled          bool
	HotspotMinOccurrences int
}

const (
	minCollectorInterval = time.Minute
	maxCollectorInterval = time.Hour
)

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	threshold, err := parseThreshold()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:      sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaUpdatesTopic: sharedcfg.EnvOrDefault("KAFKA_UPDATES_TOPIC", "disaster-updates"),
		KafkaEventsTopic:  sharedcfg.EnvOrDefault("KAFKA_EVENTS_TOPIC", "calendar-events"),
		KafkaGroupID:      sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "disaster-matcher"),
		KafkaRelayGroupID: sharedcfg.EnvOrDefault("KAFKA_RELAY_GROUP_ID", "disaster-relay"),
		RedisURL:          sharedcfg.EnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		EONETURL:          sharedcfg.EnvOrDefault("EONET_URL", "https://eonet.gsfc.nasa.gov/api/v3/events"),
		HTTPAddr:          sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:          sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:         sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:   shutdownTimeout,
		MatchThresholdKm:  threshold,
		MapboxToken:       os.Getenv("MAPBOX_TOKEN"),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"KAFKA_TIMEOUT", "10s", &cfg.KafkaTimeout},
		{"REDIS_TIMEOUT", "3s", &cfg.RedisTimeout},
		{"DISASTERS_TTL", "1h", &cfg.DisastersTTL},
		{"WINDOW_CACHE_TTL", "30m", &cfg.WindowCacheTTL},
		{"EONET_TIMEOUT", "30s", &cfg.EONETTimeout},
		{"COLLECTOR_INTERVAL", "1m", &cfg.CollectorInterval},
		{"MAPBOX_TIMEOUT", "5s", &cfg.MapboxTimeout},
	}
	for _, d := range durations {
		v, err := parseDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	bools := []struct {
		key string
		def bool
		dst *bool
	}{
		{"COLLECTOR_ENABLED", true, &cfg.CollectorEnabled},
		{"COLLECTOR_ANNOUNCE", true, &cfg.CollectorAnnounce},
		{"RELAY_ENABLED", true, &cfg.RelayEnabled},
		{"MAPBOX_ENABLED", cfg.MapboxToken != "", &cfg.MapboxEnabled},
	}
	for _, b := range bools {
		v, err := parseBool(b.key, b.def)
		if err != nil {
			return nil, err
		}
		*b.dst = v
	}

	if cfg.EarthRadiusKm, err = parsePositiveFloat("EARTH_RADIUS_KM", 6371); err != nil {
		return nil, err
	}
	if cfg.MapboxRPS, err = parsePositiveFloat("MAPBOX_RPS", 10); err != nil {
		return nil, err
	}

	padDays, err := parseInt("WINDOW_PAD_DAYS", 10, 0)
	if err != nil {
		return nil, err
	}
	cfg.WindowPad = time.Duration(padDays) * 24 * time.Hour

	if cfg.ResolveConcurrency, err = parseInt("RESOLVE_CONCURRENCY", 4, 1); err != nil {
		return nil, err
	}
	if cfg.MapboxCacheSize, err = parseInt("MAPBOX_CACHE_SIZE", 1000, 1); err != nil {
		return nil, err
	}
	if cfg.HotspotMinOccurrences, err = parseInt("HOTSPOT_MIN_OCCURRENCES", 3, 1); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_BROKERS is required")
	}
	if c.KafkaUpdatesTopic == "" {
		return errors.New("KAFKA_UPDATES_TOPIC is required")
	}
	if c.KafkaEventsTopic == "" {
		return errors.New("KAFKA_EVENTS_TOPIC is required")
	}
	if c.CollectorInterval < minCollectorInterval || c.CollectorInterval > maxCollectorInterval {
		return fmt.Errorf("COLLECTOR_INTERVAL must be between %s and %s", minCollectorInterval, maxCollectorInterval)
	}
	if c.MapboxEnabled && c.MapboxToken == "" {
		return errors.New("MAPBOX_ENABLED is true but MAPBOX_TOKEN is not set")
	}
	return nil
}

func parseThreshold() (float64, error) {
	s := os.Getenv("MATCH_THRESHOLD_KM")
	if s == "" {
		return 0, errors.New("MATCH_THRESHOLD_KM is required")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, errors.New("invalid MATCH_THRESHOLD_KM: must be a positive number")
	}
	return v, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	v, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return v, nil
}

func parseBool(key string, def bool) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parsePositiveFloat(key string, def float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive number", key)
	}
	return v, nil
}

func parseInt(key string, def, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return v, nil
}
