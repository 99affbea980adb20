package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/star/isstracker/internal/geo"
	"github.com/star/isstracker/internal/metrics"
)

const (
	// DefaultPrimaryURL returns latitude/longitude as numbers plus altitude and velocity.
	DefaultPrimaryURL = "https://api.wheretheiss.at/v1/satellites/25544"

	// DefaultFallbackURL returns latitude/longitude as strings under iss_position.
	DefaultFallbackURL = "http://api.open-notify.org/iss-now.json"

	// DefaultPositionTimeout bounds the primary request only.
	DefaultPositionTimeout = 10 * time.Second
)

// Sample sources.
const (
	SourcePrimary  = "primary"
	SourceFallback = "fallback"
)

// Sample is one position reading.
type Sample struct {
	Point       geo.Point
	AltitudeKm  float64 // 0 when the source does not report it
	VelocityKmh float64 // 0 when the source does not report it
	Source      string
	ObservedAt  time.Time // upstream timestamp; zero when the source does not report it
}

// PositionConfig configures a PositionClient.
type PositionConfig struct {
	PrimaryURL  string
	FallbackURL string
	Timeout     time.Duration // primary request timeout
}

// PositionClient fetches the current ISS position from a primary endpoint,
// making exactly one attempt against a fallback endpoint when that fails.
type PositionClient struct {
	primaryURL  string
	fallbackURL string
	primary     *http.Client
	fallback    *http.Client
	logger      *slog.Logger
}

// NewPositionClient creates a PositionClient. Empty fields in cfg take defaults.
func NewPositionClient(cfg PositionConfig, logger *slog.Logger) *PositionClient {
	if cfg.PrimaryURL == "" {
		cfg.PrimaryURL = DefaultPrimaryURL
	}
	if cfg.FallbackURL == "" {
		cfg.FallbackURL = DefaultFallbackURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultPositionTimeout
	}
	return &PositionClient{
		primaryURL:  cfg.PrimaryURL,
		fallbackURL: cfg.FallbackURL,
		primary:     &http.Client{Timeout: cfg.Timeout},
		// The fallback has no client timeout; only the caller's context bounds
		// it. A hung fallback keeps the position task busy, which shows up as
		// isstracker_ticks_skipped_total{task="position"}.
		fallback: &http.Client{},
		logger:   logger,
	}
}

// Fetch returns the current position. On primary failure it tries the
// fallback once; if that fails too the returned error wraps both causes.
func (c *PositionClient) Fetch(ctx context.Context) (Sample, error) {
	s, err := c.fetchFrom(ctx, c.primary, "position_primary", c.primaryURL)
	if err == nil {
		s.Source = SourcePrimary
		return s, nil
	}

	c.logger.Warn("primary position endpoint failed, trying fallback",
		"component", "fetch",
		"url", c.primaryURL,
		"fallback_url", c.fallbackURL,
		"fallback_timeout", "none",
		"error", err,
	)
	metrics.IncPositionFallbacks()

	s, ferr := c.fetchFrom(ctx, c.fallback, "position_fallback", c.fallbackURL)
	if ferr != nil {
		metrics.IncPositionFailures()
		return Sample{}, fmt.Errorf("position unavailable: primary: %w; fallback: %w", err, ferr)
	}
	s.Source = SourceFallback
	return s, nil
}

func (c *PositionClient) fetchFrom(ctx context.Context, client *http.Client, endpoint, rawURL string) (Sample, error) {
	var p positionPayload
	if err := getJSON(ctx, client, endpoint, rawURL, &p); err != nil {
		return Sample{}, err
	}
	return p.sample()
}

// positionPayload accepts both the primary and fallback response shapes:
//
//	{"latitude": 12.3, "longitude": 45.6, "altitude": 420.1, "velocity": 27580.2, "timestamp": 1770350400}
//	{"iss_position": {"latitude": "12.3", "longitude": "45.6"}, "message": "success", "timestamp": 1770350400}
type positionPayload struct {
	Latitude    coord    `json:"latitude"`
	Longitude   coord    `json:"longitude"`
	Altitude    *float64 `json:"altitude"`
	Velocity    *float64 `json:"velocity"`
	Timestamp   *int64   `json:"timestamp"`
	Message     string   `json:"message"`
	ISSPosition *struct {
		Latitude  coord `json:"latitude"`
		Longitude coord `json:"longitude"`
	} `json:"iss_position"`
}

func (p positionPayload) sample() (Sample, error) {
	if p.Message != "" && p.Message != "success" {
		return Sample{}, fmt.Errorf("%w: message %q", ErrMalformed, p.Message)
	}

	lat, lon := p.Latitude, p.Longitude
	if p.ISSPosition != nil {
		lat, lon = p.ISSPosition.Latitude, p.ISSPosition.Longitude
	}
	if !lat.ok || !lon.ok {
		return Sample{}, fmt.Errorf("%w: missing latitude or longitude", ErrMalformed)
	}

	pt := geo.Point{Lat: lat.v, Lon: lon.v}
	if !pt.Valid() {
		return Sample{}, fmt.Errorf("%w: coordinates out of range (%f, %f)", ErrMalformed, pt.Lat, pt.Lon)
	}

	s := Sample{Point: pt}
	if p.Timestamp != nil && *p.Timestamp > 0 {
		s.ObservedAt = time.Unix(*p.Timestamp, 0).UTC()
	}
	if p.Altitude != nil {
		s.AltitudeKm = *p.Altitude
	}
	if p.Velocity != nil {
		s.VelocityKmh = *p.Velocity
	}
	return s, nil
}

// coord decodes a JSON number or numeric string.
type coord struct {
	v  float64
	ok bool
}

func (c *coord) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid coordinate %s: %w", b, err)
	}
	c.v, c.ok = f, true
	return nil
}
