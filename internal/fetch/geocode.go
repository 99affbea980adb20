package fetch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/star/isstracker/internal/geo"
)

const (
	// DefaultGeocodeURL is a Nominatim-compatible reverse geocoder.
	DefaultGeocodeURL = "https://nominatim.openstreetmap.org/reverse"

	defaultGeocodeZoom = 5
)

// Geocoder labels a position with a human-readable place name.
type Geocoder struct {
	baseURL string
	zoom    int
	client  *http.Client
}

// NewGeocoder creates a Geocoder for baseURL (DefaultGeocodeURL when empty).
func NewGeocoder(baseURL string, timeout time.Duration) *Geocoder {
	if baseURL == "" {
		baseURL = DefaultGeocodeURL
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Geocoder{
		baseURL: baseURL,
		zoom:    defaultGeocodeZoom,
		client:  &http.Client{Timeout: timeout},
	}
}

type geocodePayload struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// Lookup returns the display name for p. Positions over open water come back
// from the geocoder as an error payload and are reported as ErrMalformed.
func (g *Geocoder) Lookup(ctx context.Context, p geo.Point) (string, error) {
	u, err := url.Parse(g.baseURL)
	if err != nil {
		return "", fmt.Errorf("parsing geocode URL: %w", err)
	}
	q := u.Query()
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(p.Lat, 'f', 4, 64))
	q.Set("lon", strconv.FormatFloat(p.Lon, 'f', 4, 64))
	q.Set("zoom", strconv.Itoa(g.zoom))
	u.RawQuery = q.Encode()

	var payload geocodePayload
	if err := getJSON(ctx, g.client, "geocode", u.String(), &payload); err != nil {
		return "", err
	}
	if payload.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrMalformed, payload.Error)
	}
	if payload.DisplayName == "" {
		return "", fmt.Errorf("%w: empty display_name", ErrMalformed)
	}
	return payload.DisplayName, nil
}
