// Package tracker owns the live ISS tracking state and the periodic tasks that
// refresh it.
//
// Three independent tasks run on their own timers:
//
//	position  every 5s   fetch position, extend the orbit path
//	roster    every 30s  refresh the people-in-space roster
//	stats     every 60s  recompute mission statistics
//
// A successful position poll hands the new point to the geocode task, which
// labels the location without holding up the next poll.
//
// Each task is single-flight: a tick that fires while the previous run of the
// same task is still in flight is skipped. After every state change the tracker
// hands a Snapshot to each registered Renderer; it knows nothing about HTTP or
// terminals.
package tracker

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/star/isstracker/internal/fetch"
	"github.com/star/isstracker/internal/geo"
	"github.com/star/isstracker/internal/metrics"
	"github.com/star/isstracker/internal/orbit"
	"github.com/star/isstracker/internal/roster"
	"github.com/star/isstracker/internal/stats"
)

// DefaultChartCapacity is the number of speed chart points kept.
const DefaultChartCapacity = 20

const (
	// PositionErrorMessage is surfaced when every position endpoint fails.
	PositionErrorMessage = "Unable to fetch ISS position"

	// UnknownLocation labels positions the geocoder cannot name.
	UnknownLocation = "Over the ocean"
)

// Task names used in logs and metrics.
const (
	TaskPosition = "position"
	TaskRoster   = "roster"
	TaskStats    = "stats"
	TaskGeocode  = "geocode"
)

// PositionSource returns the current ISS position.
type PositionSource interface {
	Fetch(ctx context.Context) (fetch.Sample, error)
}

// Geocoder names the place under a position.
type Geocoder interface {
	Lookup(ctx context.Context, p geo.Point) (string, error)
}

// Config holds tracker timing and sizing.
type Config struct {
	PositionInterval time.Duration
	RosterInterval   time.Duration
	StatsInterval    time.Duration
	GeocodeTimeout   time.Duration
	PathCapacity     int
	ChartCapacity    int
	TerminatorStep   float64 // degrees of longitude between terminator vertices
}

// DefaultConfig returns the standard polling schedule.
func DefaultConfig() Config {
	return Config{
		PositionInterval: 5 * time.Second,
		RosterInterval:   30 * time.Second,
		StatsInterval:    60 * time.Second,
		GeocodeTimeout:   10 * time.Second,
		PathCapacity:     orbit.DefaultCapacity,
		ChartCapacity:    DefaultChartCapacity,
		TerminatorStep:   1,
	}
}

// Tracker is the single owner of all tracking state.
type Tracker struct {
	cfg      Config
	position PositionSource
	people   roster.Source
	geocoder Geocoder
	logger   *slog.Logger
	now      func() time.Time

	mu          sync.RWMutex
	path        *orbit.Path
	last        *Position
	location    string
	roster      roster.Roster
	stats       stats.Statistics
	chart       *series
	errMsg      string
	pathVisible bool
	updatedAt   time.Time

	renderMu  sync.Mutex
	renderers []Renderer

	// emitMu orders deliveries: a snapshot is taken and handed out before the
	// next one is taken.
	emitMu sync.Mutex

	positionBusy atomic.Bool
	rosterBusy   atomic.Bool
	statsBusy    atomic.Bool
	geocodeBusy  atomic.Bool

	wg sync.WaitGroup
}

// New creates a Tracker. geocoder may be nil, in which case every position is
// labelled UnknownLocation.
func New(cfg Config, position PositionSource, people roster.Source, geocoder Geocoder, logger *slog.Logger) *Tracker {
	def := DefaultConfig()
	if cfg.PositionInterval <= 0 {
		cfg.PositionInterval = def.PositionInterval
	}
	if cfg.RosterInterval <= 0 {
		cfg.RosterInterval = def.RosterInterval
	}
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = def.StatsInterval
	}
	if cfg.GeocodeTimeout <= 0 {
		cfg.GeocodeTimeout = def.GeocodeTimeout
	}
	if cfg.TerminatorStep <= 0 {
		cfg.TerminatorStep = def.TerminatorStep
	}

	initial := roster.Group(roster.Fallback)
	initial.Source = roster.SourceFallback

	return &Tracker{
		cfg:         cfg,
		position:    position,
		people:      people,
		geocoder:    geocoder,
		logger:      logger,
		now:         time.Now,
		path:        orbit.NewPath(cfg.PathCapacity),
		chart:       newSeries(cfg.ChartCapacity),
		location:    UnknownLocation,
		roster:      initial,
		pathVisible: true,
	}
}

// AddRenderer registers r to receive a snapshot after every state change.
func (t *Tracker) AddRenderer(r Renderer) {
	t.renderMu.Lock()
	t.renderers = append(t.renderers, r)
	t.renderMu.Unlock()
}

// Run starts the periodic tasks and blocks until ctx is cancelled and every
// in-flight task has returned. Each task runs once immediately.
func (t *Tracker) Run(ctx context.Context) {
	t.logger.Info("tracker started",
		"component", "tracker",
		"position_interval_seconds", t.cfg.PositionInterval.Seconds(),
		"roster_interval_seconds", t.cfg.RosterInterval.Seconds(),
		"stats_interval_seconds", t.cfg.StatsInterval.Seconds(),
		"path_capacity", t.path.Capacity(),
	)

	var loops sync.WaitGroup
	for _, task := range []struct {
		name     string
		interval time.Duration
		fn       func(context.Context) bool
	}{
		{TaskPosition, t.cfg.PositionInterval, t.PollPosition},
		{TaskRoster, t.cfg.RosterInterval, t.RefreshRoster},
		{TaskStats, t.cfg.StatsInterval, t.RefreshStats},
	} {
		loops.Add(1)
		go func() {
			defer loops.Done()
			t.schedule(ctx, task.interval, task.fn)
		}()
	}

	loops.Wait()
	t.wg.Wait()
	t.logger.Info("tracker stopped", "component", "tracker")
}

// schedule fires fn now and on every tick. Each firing runs in its own
// goroutine so a slow run never delays the timer; fn itself enforces
// single-flight.
func (t *Tracker) schedule(ctx context.Context, interval time.Duration, fn func(context.Context) bool) {
	fire := func() {
		t.wg.Add(1)
		go func() {
			defer t.wg.Done()
			fn(ctx)
		}()
	}

	fire()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fire()
		}
	}
}

// guard runs fn unless the task is already in flight. It reports whether fn ran.
func (t *Tracker) guard(task string, busy *atomic.Bool, fn func()) bool {
	if !busy.CompareAndSwap(false, true) {
		metrics.IncTickSkipped(task)
		t.logger.Debug("tick skipped, previous run still in flight", "component", "tracker", "task", task)
		return false
	}
	defer busy.Store(false)
	fn()
	return true
}

// PollPosition fetches the current position and updates the path and chart,
// then labels the new position via LabelLocation. On failure the last-known
// position is kept and an error message is surfaced. It returns false if a
// poll was already in flight.
func (t *Tracker) PollPosition(ctx context.Context) bool {
	var fetched *geo.Point
	ran := t.guard(TaskPosition, &t.positionBusy, func() {
		s, err := t.position.Fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.logger.Error("position update failed",
				"component", "tracker",
				"error", err,
			)
			t.mu.Lock()
			t.errMsg = PositionErrorMessage
			t.updatedAt = t.now()
			t.mu.Unlock()
			t.render()
			return
		}

		t.applySample(s)
		t.render()
		p := s.Point
		fetched = &p
	})

	// Outside the position guard: a slow geocoder must not delay the next poll.
	if fetched != nil {
		t.LabelLocation(ctx, *fetched)
	}
	return ran
}

// LabelLocation reverse-geocodes p and stores the result as the location
// label. Lookups are single-flight: while one is in flight, newer positions
// go unlabelled until it returns. It returns false if a lookup was skipped.
func (t *Tracker) LabelLocation(ctx context.Context, p geo.Point) bool {
	return t.guard(TaskGeocode, &t.geocodeBusy, func() {
		label := t.lookupLocation(ctx, p)
		if ctx.Err() != nil {
			return
		}

		t.mu.Lock()
		changed := t.location != label
		t.location = label
		t.mu.Unlock()

		if changed {
			t.render()
		}
	})
}

func (t *Tracker) applySample(s fetch.Sample) {
	now := t.now()
	// Prefer the upstream observation time; fall back to arrival time when it
	// is missing or ahead of the local clock.
	at := s.ObservedAt
	if at.IsZero() || at.After(now) {
		at = now
	}

	t.mu.Lock()
	prev, hadPrev := t.path.Last()
	t.path.Append(orbit.Sample{Point: s.Point, At: at})
	t.last = &Position{
		Lat:         s.Point.Lat,
		Lon:         s.Point.Lon,
		AltitudeKm:  s.AltitudeKm,
		VelocityKmh: s.VelocityKmh,
		Source:      s.Source,
		At:          at,
	}
	t.errMsg = ""
	t.updatedAt = now

	speed := s.VelocityKmh
	if speed <= 0 && hadPrev {
		if dt := at.Sub(prev.At).Hours(); dt > 0 {
			speed = geo.Distance(prev.Point, s.Point) / dt
		}
	}
	if speed > 0 {
		t.chart.append(ChartPoint{
			Label: at.UTC().Format("15:04:05"),
			Value: math.Round(speed*10) / 10,
		})
	}
	n := t.path.Len()
	t.mu.Unlock()

	metrics.SetPathLength(n)
	metrics.SetLastPosition(now)
	t.logger.Debug("position updated",
		"component", "tracker",
		"lat", s.Point.Lat,
		"lon", s.Point.Lon,
		"source", s.Source,
		"path_length", n,
	)
}

func (t *Tracker) lookupLocation(ctx context.Context, p geo.Point) string {
	if t.geocoder == nil {
		return UnknownLocation
	}

	ctx, cancel := context.WithTimeout(ctx, t.cfg.GeocodeTimeout)
	defer cancel()

	name, err := t.geocoder.Lookup(ctx, p)
	if err != nil {
		t.logger.Debug("reverse geocode failed, using placeholder",
			"component", "tracker",
			"lat", p.Lat,
			"lon", p.Lon,
			"error", err,
		)
		return UnknownLocation
	}
	return name
}

// RefreshRoster reloads the crew roster, substituting the static fallback on
// failure. It returns false if a refresh was already in flight.
func (t *Tracker) RefreshRoster(ctx context.Context) bool {
	return t.guard(TaskRoster, &t.rosterBusy, func() {
		r, _ := roster.Load(ctx, t.people, t.logger)

		t.mu.Lock()
		t.roster = r
		t.updatedAt = t.now()
		t.mu.Unlock()

		t.logger.Debug("roster refreshed",
			"component", "tracker",
			"source", r.Source,
			"total", r.Total,
			"crafts", len(r.Crews),
		)
		t.render()
	})
}

// RefreshStats recomputes the mission statistics for the current time. It
// returns false if a refresh was already in flight.
func (t *Tracker) RefreshStats(ctx context.Context) bool {
	return t.guard(TaskStats, &t.statsBusy, func() {
		now := t.now()
		st := stats.Estimate(now)

		t.mu.Lock()
		t.stats = st
		t.updatedAt = now
		t.mu.Unlock()

		t.render()
	})
}

// SetPathVisible shows or hides the orbit path in snapshots. Hiding the path
// does not clear the buffer.
func (t *Tracker) SetPathVisible(visible bool) {
	t.mu.Lock()
	changed := t.pathVisible != visible
	t.pathVisible = visible
	t.mu.Unlock()

	if changed {
		t.logger.Info("orbit path visibility changed", "component", "tracker", "visible", visible)
		t.render()
	}
}

// PathVisible reports whether the orbit path is included in snapshots.
func (t *Tracker) PathVisible() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.pathVisible
}

// Ready reports whether at least one position sample has arrived.
func (t *Tracker) Ready() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.last != nil
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	snap := Snapshot{
		PathVisible: t.pathVisible,
		PathLength:  t.path.Len(),
		Location:    t.location,
		Roster:      t.roster,
		Stats:       t.stats,
		Chart:       t.chart.snapshot(),
		Error:       t.errMsg,
		UpdatedAt:   t.updatedAt,
	}
	if t.last != nil {
		p := *t.last
		snap.Position = &p
	}
	if deg, ok := t.path.Heading(); ok {
		snap.Heading = &deg
	}
	if t.pathVisible {
		snap.Path = t.path.Points()
	}
	t.mu.RUnlock()

	snap.Terminator = geo.Terminator(t.now(), t.cfg.TerminatorStep)
	return snap
}

func (t *Tracker) render() {
	t.emitMu.Lock()
	defer t.emitMu.Unlock()

	t.renderMu.Lock()
	renderers := make([]Renderer, len(t.renderers))
	copy(renderers, t.renderers)
	t.renderMu.Unlock()

	if len(renderers) == 0 {
		return
	}

	snap := t.Snapshot()
	for _, r := range renderers {
		r.Render(snap)
	}
}
