// Package ui provides the terminal dashboard using Bubble Tea.
package ui

import (
	"fmt"
	"math"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/star/isstracker/internal/tracker"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205"))

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	rowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("60"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)
)

// SnapshotMsg carries a new tracker snapshot into the program.
type SnapshotMsg struct {
	Snapshot tracker.Snapshot
}

// PathController toggles orbit path visibility.
type PathController interface {
	SetPathVisible(visible bool)
}

// Model is the root Bubble Tea model.
type Model struct {
	paths PathController

	width int
	ready bool
	snap  tracker.Snapshot
	seen  bool
}

// New creates the dashboard model. paths receives "p" key toggles.
func New(paths PathController, initial tracker.Snapshot) Model {
	return Model{paths: paths, snap: initial, seen: !initial.UpdatedAt.IsZero()}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "p":
			visible := !m.snap.PathVisible
			m.snap.PathVisible = visible
			if m.paths != nil {
				// The tracker renders back into this program, so the toggle
				// must run off the event loop.
				paths := m.paths
				return m, func() tea.Msg {
					paths.SetPathVisible(visible)
					return nil
				}
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.ready = true

	case SnapshotMsg:
		m.snap = msg.Snapshot
		m.seen = true
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("ISS Live Tracker"))
	b.WriteString("\n\n")

	if !m.seen {
		b.WriteString(mutedStyle.Render("Waiting for first position..."))
		b.WriteString("\n")
		b.WriteString(m.renderFooter())
		return b.String()
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Render(m.renderPosition()),
		panelStyle.Render(m.renderStats()),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		panelStyle.Render(m.renderCrew()),
		panelStyle.Render(m.renderChart()),
	)

	if m.ready && m.width > 0 && m.width < 80 {
		b.WriteString(lipgloss.JoinVertical(lipgloss.Left, left, right))
	} else {
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	}
	b.WriteString("\n")

	if m.snap.Error != "" {
		b.WriteString(errorStyle.Render("! " + m.snap.Error))
		b.WriteString("\n")
	}

	b.WriteString(m.renderFooter())
	return b.String()
}

func (m Model) renderPosition() string {
	var lines []string
	lines = append(lines, headerStyle.Render("Position"))

	p := m.snap.Position
	if p == nil {
		lines = append(lines, mutedStyle.Render("unknown"))
	} else {
		lines = append(lines,
			rowStyle.Render(fmt.Sprintf("Lat   %8.4f°", p.Lat)),
			rowStyle.Render(fmt.Sprintf("Lon   %8.4f°", p.Lon)),
		)
		if p.AltitudeKm > 0 {
			lines = append(lines, rowStyle.Render(fmt.Sprintf("Alt   %8.1f km", p.AltitudeKm)))
		}
		lines = append(lines, mutedStyle.Render("via "+p.Source))
	}

	if m.snap.Heading != nil {
		lines = append(lines, rowStyle.Render(fmt.Sprintf("Head  %5.1f° %s", *m.snap.Heading, compass(*m.snap.Heading))))
	} else {
		lines = append(lines, mutedStyle.Render("Head  --"))
	}

	lines = append(lines, rowStyle.Render(m.snap.Location))

	path := fmt.Sprintf("Path  %d pts (hidden)", m.snap.PathLength)
	if m.snap.PathVisible {
		path = fmt.Sprintf("Path  %d pts", m.snap.PathLength)
	}
	lines = append(lines, mutedStyle.Render(path))

	return strings.Join(lines, "\n")
}

func (m Model) renderCrew() string {
	r := m.snap.Roster
	lines := []string{headerStyle.Render(fmt.Sprintf("People in space: %d", r.Total))}
	for _, c := range r.Crews {
		lines = append(lines, rowStyle.Render(fmt.Sprintf("%s (%d)", c.Craft, len(c.People))))
		for _, name := range c.People {
			lines = append(lines, mutedStyle.Render("  "+name))
		}
	}
	if r.Source != "" && r.Source != "live" {
		lines = append(lines, mutedStyle.Render("("+r.Source+" list)"))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderStats() string {
	s := m.snap.Stats
	return strings.Join([]string{
		headerStyle.Render("Mission"),
		rowStyle.Render(fmt.Sprintf("Days     %d (%.2f yr)", s.MissionDays, s.MissionYears)),
		rowStyle.Render(fmt.Sprintf("Orbits   %d", s.Orbits)),
		rowStyle.Render(fmt.Sprintf("Distance %.0f km", s.DistanceKm)),
	}, "\n")
}

func (m Model) renderChart() string {
	values := make([]float64, len(m.snap.Chart))
	for i, p := range m.snap.Chart {
		values[i] = p.Value
	}

	lines := []string{headerStyle.Render("Speed (km/h)")}
	if len(values) == 0 {
		lines = append(lines, mutedStyle.Render("no data"))
	} else {
		lines = append(lines,
			rowStyle.Render(sparkline(values)),
			mutedStyle.Render(fmt.Sprintf("last %.0f", values[len(values)-1])),
		)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderFooter() string {
	return mutedStyle.Render("[p] toggle path  [q] quit")
}

var sparkRunes = []rune("▁▂▃▄▅▆▇█")

// sparkline renders values as a one-line bar chart scaled between their
// minimum and maximum. A flat series renders at mid height.
func sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	out := make([]rune, len(values))
	top := len(sparkRunes) - 1
	for i, v := range values {
		idx := top / 2
		if hi > lo {
			idx = int(math.Round((v - lo) / (hi - lo) * float64(top)))
		}
		out[i] = sparkRunes[idx]
	}
	return string(out)
}

// compass names the eight-point direction for a bearing in degrees.
func compass(deg float64) string {
	dirs := []string{"N", "NE", "E", "SE", "S", "SW", "W", "NW"}
	i := int(math.Round(math.Mod(deg, 360)/45)) % len(dirs)
	if i < 0 {
		i += len(dirs)
	}
	return dirs[i]
}

// Sender is the part of *tea.Program the renderer needs.
type Sender interface {
	Send(msg tea.Msg)
}

// Renderer forwards tracker snapshots into a running Bubble Tea program.
type Renderer struct {
	Program Sender
}

// Render implements tracker.Renderer.
func (r Renderer) Render(s tracker.Snapshot) {
	r.Program.Send(SnapshotMsg{Snapshot: s})
}
