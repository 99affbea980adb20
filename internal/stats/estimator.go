// Package stats estimates cumulative ISS mission figures from elapsed time.
//
// The figures assume a constant orbital speed and period; they are display
// estimates, not orbital mechanics.
package stats

import (
	"math"
	"time"
)

const (
	// VelocityKmh is the assumed constant orbital speed.
	VelocityKmh = 27600.0

	// OrbitsPerDay is the assumed number of orbits completed each day.
	OrbitsPerDay = 15.5

	hoursPerDay = 24.0
	daysPerYear = 365.25
)

// MissionStart is the launch of the first station module (Zarya).
var MissionStart = time.Date(1998, 11, 20, 6, 40, 0, 0, time.UTC)

// Statistics are the derived mission figures at a point in time.
type Statistics struct {
	At           time.Time `json:"at"`
	MissionDays  int       `json:"mission_days"`
	MissionYears float64   `json:"mission_years"`
	Orbits       int64     `json:"orbits"`
	DistanceKm   float64   `json:"distance_km"`
}

// Estimate computes the mission figures at now. Times before MissionStart
// produce zero values.
func Estimate(now time.Time) Statistics {
	elapsed := now.Sub(MissionStart)
	if elapsed < 0 {
		elapsed = 0
	}

	hours := elapsed.Hours()
	days := hours / hoursPerDay

	return Statistics{
		At:           now.UTC(),
		MissionDays:  int(days),
		MissionYears: math.Round(days/daysPerYear*100) / 100,
		Orbits:       int64(days * OrbitsPerDay),
		DistanceKm:   math.Round(hours * VelocityKmh),
	}
}
