package tracker

import (
	"time"

	"github.com/star/isstracker/internal/geo"
	"github.com/star/isstracker/internal/roster"
	"github.com/star/isstracker/internal/stats"
)

// Position is the most recent successful position reading.
type Position struct {
	Lat         float64   `json:"lat"`
	Lon         float64   `json:"lon"`
	AltitudeKm  float64   `json:"altitude_km,omitempty"`
	VelocityKmh float64   `json:"velocity_kmh,omitempty"`
	Source      string    `json:"source"`
	At          time.Time `json:"at"`
}

// ChartPoint is one (label, value) pair of the speed chart.
type ChartPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Snapshot is an immutable copy of the tracker state handed to renderers.
type Snapshot struct {
	Position    *Position        `json:"position,omitempty"`
	Heading     *float64         `json:"heading,omitempty"`
	Path        []geo.Point      `json:"path,omitempty"`
	PathVisible bool             `json:"path_visible"`
	PathLength  int              `json:"path_length"`
	Location    string           `json:"location"`
	Roster      roster.Roster    `json:"roster"`
	Stats       stats.Statistics `json:"stats"`
	Chart       []ChartPoint     `json:"chart"`
	Terminator  []geo.Point      `json:"terminator"`
	Error       string           `json:"error,omitempty"`
	UpdatedAt   time.Time        `json:"updated_at"`
}

// Renderer consumes snapshots. Render is called after every state change and
// must not block for long.
type Renderer interface {
	Render(Snapshot)
}

// RenderFunc adapts a function to the Renderer interface.
type RenderFunc func(Snapshot)

// Render calls f(s).
func (f RenderFunc) Render(s Snapshot) { f(s) }

// series is a bounded list of chart points, oldest dropped first.
type series struct {
	points   []ChartPoint
	capacity int
}

func newSeries(capacity int) *series {
	if capacity <= 0 {
		capacity = DefaultChartCapacity
	}
	return &series{
		points:   make([]ChartPoint, 0, capacity),
		capacity: capacity,
	}
}

func (s *series) append(p ChartPoint) {
	if len(s.points) >= s.capacity {
		copy(s.points, s.points[1:])
		s.points = s.points[:len(s.points)-1]
	}
	s.points = append(s.points, p)
}

func (s *series) snapshot() []ChartPoint {
	out := make([]ChartPoint, len(s.points))
	copy(out, s.points)
	return out
}
