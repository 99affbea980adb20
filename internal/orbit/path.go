// Package orbit holds the bounded history of recent ISS positions used to
// draw the trailing ground track and the direction indicator.
package orbit

import (
	"time"

	"github.com/star/isstracker/internal/geo"
)

// DefaultCapacity is the number of samples kept when no capacity is given.
const DefaultCapacity = 100

// Sample is a single position with the time it was observed.
type Sample struct {
	Point geo.Point `json:"point"`
	At    time.Time `json:"at"`
}

// Path is a fixed-capacity FIFO of position samples, oldest first.
// Not safe for concurrent use; the tracker serializes access.
type Path struct {
	buf   []Sample
	start int
	size  int
}

// NewPath creates an empty path holding at most capacity samples.
func NewPath(capacity int) *Path {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Path{buf: make([]Sample, capacity)}
}

// Capacity returns the maximum number of samples retained.
func (p *Path) Capacity() int {
	return len(p.buf)
}

// Len returns the number of samples currently held.
func (p *Path) Len() int {
	return p.size
}

// Append pushes s to the end of the path, evicting the oldest sample when the
// path is full.
func (p *Path) Append(s Sample) {
	if p.size < len(p.buf) {
		p.buf[(p.start+p.size)%len(p.buf)] = s
		p.size++
		return
	}
	p.buf[p.start] = s
	p.start = (p.start + 1) % len(p.buf)
}

// Points returns the held positions, oldest first.
func (p *Path) Points() []geo.Point {
	out := make([]geo.Point, p.size)
	for i := 0; i < p.size; i++ {
		out[i] = p.at(i).Point
	}
	return out
}

// Last returns the newest sample, or false if the path is empty.
func (p *Path) Last() (Sample, bool) {
	if p.size == 0 {
		return Sample{}, false
	}
	return p.at(p.size - 1), true
}

// Heading returns the bearing from the second-newest to the newest sample.
// ok is false until at least two samples are held.
func (p *Path) Heading() (deg float64, ok bool) {
	if p.size < 2 {
		return 0, false
	}
	return geo.Bearing(p.at(p.size-2).Point, p.at(p.size-1).Point), true
}

func (p *Path) at(i int) Sample {
	return p.buf[(p.start+i)%len(p.buf)]
}
