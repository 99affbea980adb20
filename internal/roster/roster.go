// Package roster groups the people currently in space by the craft they are
// aboard, falling back to a static crew list when the live source fails.
package roster

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Astronaut is a single person in space.
type Astronaut struct {
	Name  string `json:"name"`
	Craft string `json:"craft"`
}

// Crew is the people aboard one craft, in arrival order.
type Crew struct {
	Craft  string   `json:"craft"`
	People []string `json:"people"`
}

// Roster is the grouped view of everyone in space.
type Roster struct {
	Crews  []Crew `json:"crews"`
	Total  int    `json:"total"`
	Source string `json:"source"`
}

// Source values reported on a Roster.
const (
	SourceLive     = "live"
	SourceFallback = "fallback"
)

// ErrEmpty is wrapped by Load when the live list has nobody in it.
var ErrEmpty = errors.New("empty roster")

// Fallback is shown whenever the live roster cannot be retrieved.
var Fallback = []Astronaut{
	{Name: "Oleg Kononenko", Craft: "ISS"},
	{Name: "Nikolai Chub", Craft: "ISS"},
	{Name: "Tracy Caldwell Dyson", Craft: "ISS"},
	{Name: "Matthew Dominick", Craft: "ISS"},
	{Name: "Michael Barratt", Craft: "ISS"},
	{Name: "Jeanette Epps", Craft: "ISS"},
	{Name: "Alexander Grebenkin", Craft: "ISS"},
	{Name: "Butch Wilmore", Craft: "ISS"},
	{Name: "Sunita Williams", Craft: "ISS"},
	{Name: "Li Guangsu", Craft: "Tiangong"},
	{Name: "Li Cong", Craft: "Tiangong"},
	{Name: "Ye Guangfu", Craft: "Tiangong"},
}

// Source retrieves the live list of people in space.
type Source interface {
	Fetch(ctx context.Context) ([]Astronaut, error)
}

// Group groups people by craft. Crews appear in order of the craft's first
// appearance and people keep their relative order within a crew.
func Group(people []Astronaut) Roster {
	index := make(map[string]int)
	var crews []Crew

	for _, p := range people {
		i, ok := index[p.Craft]
		if !ok {
			i = len(crews)
			index[p.Craft] = i
			crews = append(crews, Crew{Craft: p.Craft})
		}
		crews[i].People = append(crews[i].People, p.Name)
	}

	return Roster{Crews: crews, Total: len(people)}
}

// Load fetches the live roster from src and groups it. Any failure, including
// an empty list, substitutes Fallback so callers never see an empty roster.
// The returned error is informational; the Roster is always usable.
func Load(ctx context.Context, src Source, logger *slog.Logger) (Roster, error) {
	people, err := src.Fetch(ctx)
	if err == nil && len(people) == 0 {
		err = ErrEmpty
	}
	if err != nil {
		logger.Warn("roster fetch failed, using fallback roster",
			"component", "roster",
			"error", err,
			"fallback_count", len(Fallback),
		)
		r := Group(Fallback)
		r.Source = SourceFallback
		return r, fmt.Errorf("loading roster: %w", err)
	}

	r := Group(people)
	r.Source = SourceLive
	return r, nil
}
