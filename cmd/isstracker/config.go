package main

import (
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/star/isstracker/internal/fetch"
	"github.com/star/isstracker/internal/observability"
	"github.com/star/isstracker/internal/stream"
	"github.com/star/isstracker/internal/tracker"
)

// fetchConfig groups the upstream endpoints.
type fetchConfig struct {
	Position       fetch.PositionConfig
	PeopleURL      string
	GeocodeURL     string
	RequestTimeout time.Duration // roster and geocoder
}

// newLogger builds the JSON logger. In TUI mode logs go to ISS_LOG_FILE, or
// nowhere, so the dashboard owns the terminal. The returned closer releases
// the log file.
func newLogger(tui bool) (*slog.Logger, func()) {
	level := slog.LevelInfo
	var badLevel string
	if v := os.Getenv("ISS_LOG_LEVEL"); v != "" {
		if err := level.UnmarshalText([]byte(v)); err != nil {
			badLevel = v
			level = slog.LevelInfo
		}
	}

	var out io.Writer = os.Stdout
	closer := func() {}
	var fileErr error
	if tui {
		out = io.Discard
		if path := os.Getenv("ISS_LOG_FILE"); path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				fileErr = err
			} else {
				out = f
				closer = func() { f.Close() }
			}
		}
	}

	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	if badLevel != "" {
		logger.Warn("invalid ISS_LOG_LEVEL value, using default", "value", badLevel, "default", "info")
	}
	if fileErr != nil {
		logger.Warn("could not open ISS_LOG_FILE, discarding logs", "error", fileErr)
	}
	return logger, closer
}

func loadTrackerConfig(logger *slog.Logger) tracker.Config {
	cfg := tracker.DefaultConfig()

	cfg.PositionInterval = envSeconds(logger, "ISS_POSITION_INTERVAL", cfg.PositionInterval)
	cfg.RosterInterval = envSeconds(logger, "ISS_ROSTER_INTERVAL", cfg.RosterInterval)
	cfg.StatsInterval = envSeconds(logger, "ISS_STATS_INTERVAL", cfg.StatsInterval)
	cfg.PathCapacity = envPositiveInt(logger, "ISS_PATH_CAPACITY", cfg.PathCapacity)

	logger.Info("tracker config",
		"position_interval_seconds", cfg.PositionInterval.Seconds(),
		"roster_interval_seconds", cfg.RosterInterval.Seconds(),
		"stats_interval_seconds", cfg.StatsInterval.Seconds(),
		"path_capacity", cfg.PathCapacity,
	)

	return cfg
}

func loadFetchConfig(logger *slog.Logger) fetchConfig {
	cfg := fetchConfig{
		Position: fetch.PositionConfig{
			PrimaryURL:  fetch.DefaultPrimaryURL,
			FallbackURL: fetch.DefaultFallbackURL,
			Timeout:     fetch.DefaultPositionTimeout,
		},
		PeopleURL:      fetch.DefaultPeopleURL,
		GeocodeURL:     fetch.DefaultGeocodeURL,
		RequestTimeout: 10 * time.Second,
	}

	if v := os.Getenv("ISS_POSITION_PRIMARY_URL"); v != "" {
		cfg.Position.PrimaryURL = v
	}
	if v := os.Getenv("ISS_POSITION_FALLBACK_URL"); v != "" {
		cfg.Position.FallbackURL = v
	}
	if v := os.Getenv("ISS_PEOPLE_URL"); v != "" {
		cfg.PeopleURL = v
	}
	if v, ok := os.LookupEnv("ISS_GEOCODE_URL"); ok {
		// An explicitly empty value disables reverse geocoding.
		cfg.GeocodeURL = strings.TrimSpace(v)
	}
	cfg.Position.Timeout = envSeconds(logger, "ISS_POSITION_TIMEOUT", cfg.Position.Timeout)

	logger.Info("fetch config",
		"primary_url", cfg.Position.PrimaryURL,
		"fallback_url", cfg.Position.FallbackURL,
		"people_url", cfg.PeopleURL,
		"geocode_url", cfg.GeocodeURL,
		"position_timeout_seconds", cfg.Position.Timeout.Seconds(),
	)

	return cfg
}

func loadStreamConfig(logger *slog.Logger) stream.Config {
	cfg := stream.Config{
		MaxConcurrentPerIP: stream.DefaultMaxConcurrentPerIP,
		KeepaliveInterval:  stream.DefaultKeepaliveInterval,
		MaxTotal:           stream.DefaultMaxTotal,
	}

	cfg.MaxConcurrentPerIP = envPositiveInt(logger, "ISS_STREAM_MAX_CONCURRENT", cfg.MaxConcurrentPerIP)
	cfg.MaxTotal = envPositiveInt(logger, "ISS_STREAM_MAX_TOTAL", cfg.MaxTotal)
	cfg.KeepaliveInterval = envSeconds(logger, "ISS_STREAM_KEEPALIVE_INTERVAL", cfg.KeepaliveInterval)
	cfg.TrustProxy = envBool(logger, "ISS_TRUST_PROXY", false)

	logger.Info("stream config",
		"max_concurrent_per_ip", cfg.MaxConcurrentPerIP,
		"max_total", cfg.MaxTotal,
		"keepalive_interval_seconds", cfg.KeepaliveInterval.Seconds(),
		"trust_proxy", cfg.TrustProxy,
	)

	return cfg
}

func loadTracingConfig(logger *slog.Logger) observability.TracingConfig {
	cfg := observability.TracingConfig{
		ServiceName: "isstracker",
		Exporter:    "stdout",
		Endpoint:    os.Getenv("ISS_OTLP_ENDPOINT"),
		SampleRatio: 1.0,
	}

	cfg.Enabled = envBool(logger, "ISS_TRACING_ENABLED", false)
	if v := os.Getenv("ISS_TRACING_EXPORTER"); v != "" {
		cfg.Exporter = v
	}
	if v := os.Getenv("ISS_TRACING_SAMPLE_RATIO"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f < 0 || f > 1 {
			logger.Warn("invalid ISS_TRACING_SAMPLE_RATIO value, using default", "value", v, "default", cfg.SampleRatio)
		} else {
			cfg.SampleRatio = f
		}
	}

	return cfg
}

// envSeconds reads a positive whole number of seconds from key.
func envSeconds(logger *slog.Logger, key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def.Seconds())
		return def
	}
	return time.Duration(n) * time.Second
}

func envPositiveInt(logger *slog.Logger, key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return n
}

func envBool(logger *slog.Logger, key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		logger.Warn("invalid "+key+" value, using default", "value", v, "default", def)
		return def
	}
	return b
}
