package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/star/isstracker/internal/roster"
	"github.com/star/isstracker/internal/stats"
	"github.com/star/isstracker/internal/tracker"
)

type recordingPaths struct {
	calls []bool
}

func (p *recordingPaths) SetPathVisible(v bool) { p.calls = append(p.calls, v) }

type recordingSender struct {
	msgs []tea.Msg
}

func (s *recordingSender) Send(msg tea.Msg) { s.msgs = append(s.msgs, msg) }

func key(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func testSnapshot() tracker.Snapshot {
	heading := 51.0
	return tracker.Snapshot{
		Position:    &tracker.Position{Lat: -12.3456, Lon: 100.5, AltitudeKm: 420.2, Source: "primary"},
		Heading:     &heading,
		PathVisible: true,
		PathLength:  42,
		Location:    "Indian Ocean",
		Roster: roster.Roster{
			Crews: []roster.Crew{
				{Craft: "ISS", People: []string{"Alice", "Carol"}},
				{Craft: "Tiangong", People: []string{"Bo"}},
			},
			Total:  3,
			Source: roster.SourceLive,
		},
		Stats: stats.Statistics{MissionDays: 9000, MissionYears: 24.64, Orbits: 139500, DistanceKm: 5961600000},
		Chart: []tracker.ChartPoint{
			{Label: "12:00:00", Value: 27580},
			{Label: "12:00:05", Value: 27600},
		},
		UpdatedAt: time.Date(2026, 1, 1, 12, 0, 5, 0, time.UTC),
	}
}

func TestViewBeforeFirstSnapshot(t *testing.T) {
	m := New(nil, tracker.Snapshot{})
	if v := m.View(); !strings.Contains(v, "Waiting for first position") {
		t.Errorf("view = %q, want waiting message", v)
	}
}

func TestViewShowsSnapshot(t *testing.T) {
	m := New(nil, tracker.Snapshot{})
	updated, _ := m.Update(SnapshotMsg{Snapshot: testSnapshot()})
	view := updated.View()

	for _, want := range []string{
		"-12.3456",
		"100.5000",
		"Indian Ocean",
		"NE",
		"Path  42 pts",
		"People in space: 3",
		"ISS (2)",
		"Tiangong (1)",
		"Orbits   139500",
		"last 27600",
	} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestViewShowsError(t *testing.T) {
	snap := testSnapshot()
	snap.Error = tracker.PositionErrorMessage

	m, _ := New(nil, snap).Update(tea.WindowSizeMsg{Width: 60, Height: 40})
	if v := m.View(); !strings.Contains(v, tracker.PositionErrorMessage) {
		t.Errorf("view missing error line")
	}
}

func TestToggleKey(t *testing.T) {
	paths := &recordingPaths{}
	var m tea.Model = New(paths, testSnapshot())

	m, cmd := m.Update(key("p"))
	if !strings.Contains(m.View(), "(hidden)") {
		t.Error("view does not mark path hidden after toggle")
	}
	if len(paths.calls) != 0 {
		t.Fatalf("SetPathVisible called inside Update: %v", paths.calls)
	}
	if cmd == nil {
		t.Fatal("toggle returned no command")
	}
	cmd()

	m, cmd = m.Update(key("p"))
	cmd()

	if len(paths.calls) != 2 || paths.calls[0] != false || paths.calls[1] != true {
		t.Errorf("SetPathVisible calls = %v, want [false true]", paths.calls)
	}
}

func TestQuitKeys(t *testing.T) {
	for _, msg := range []tea.KeyMsg{key("q"), {Type: tea.KeyCtrlC}} {
		_, cmd := New(nil, testSnapshot()).Update(msg)
		if cmd == nil {
			t.Fatalf("%q: no command returned", msg.String())
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Errorf("%q: command did not quit", msg.String())
		}
	}
}

func TestRendererSends(t *testing.T) {
	s := &recordingSender{}
	Renderer{Program: s}.Render(testSnapshot())

	if len(s.msgs) != 1 {
		t.Fatalf("sent %d messages, want 1", len(s.msgs))
	}
	msg, ok := s.msgs[0].(SnapshotMsg)
	if !ok || msg.Snapshot.Location != "Indian Ocean" {
		t.Errorf("sent %#v, want SnapshotMsg", s.msgs[0])
	}
}

func TestSparkline(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   string
	}{
		{"empty", nil, ""},
		{"flat", []float64{5, 5, 5}, "▄▄▄"},
		{"rising", []float64{0, 7}, "▁█"},
		{"full range", []float64{0, 1, 2, 3, 4, 5, 6, 7}, "▁▂▃▄▅▆▇█"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sparkline(tt.values); got != tt.want {
				t.Errorf("sparkline(%v) = %q, want %q", tt.values, got, tt.want)
			}
		})
	}
}

func TestCompass(t *testing.T) {
	tests := []struct {
		deg  float64
		want string
	}{
		{0, "N"}, {44, "NE"}, {90, "E"}, {180, "S"}, {269, "W"}, {337, "NW"}, {359, "N"},
	}
	for _, tt := range tests {
		if got := compass(tt.deg); got != tt.want {
			t.Errorf("compass(%v) = %q, want %q", tt.deg, got, tt.want)
		}
	}
}
