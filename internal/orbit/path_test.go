package orbit

import (
	"math"
	"testing"
	"time"

	"github.com/star/isstracker/internal/geo"
)

var t0 = time.Date(2026, 2, 6, 4, 0, 0, 0, time.UTC)

func sampleAt(i int) Sample {
	return Sample{
		Point: geo.Point{Lat: float64(i%90) / 2, Lon: float64(i%360) - 180},
		At:    t0.Add(time.Duration(i) * 5 * time.Second),
	}
}

func TestPathCapacityFIFO(t *testing.T) {
	p := NewPath(100)

	for i := 0; i < 250; i++ {
		p.Append(sampleAt(i))
		if p.Len() > 100 {
			t.Fatalf("after %d appends Len() = %d, exceeds capacity", i+1, p.Len())
		}
	}

	if p.Len() != 100 {
		t.Fatalf("Len() = %d, want 100", p.Len())
	}

	pts := p.Points()
	for i, pt := range pts {
		want := sampleAt(150 + i).Point
		if pt != want {
			t.Fatalf("Points[%d] = %v, want %v", i, pt, want)
		}
	}
	if last, _ := p.Last(); last != sampleAt(249) {
		t.Errorf("Last() = %+v, want %+v", last, sampleAt(249))
	}
}

func TestPathBelowCapacityKeepsOrder(t *testing.T) {
	p := NewPath(10)
	for i := 0; i < 4; i++ {
		p.Append(sampleAt(i))
	}
	pts := p.Points()
	if len(pts) != 4 {
		t.Fatalf("len(Points) = %d, want 4", len(pts))
	}
	for i, pt := range pts {
		if pt != sampleAt(i).Point {
			t.Errorf("Points[%d] = %v, want %v", i, pt, sampleAt(i).Point)
		}
	}
}

func TestPathDefaultCapacity(t *testing.T) {
	if c := NewPath(0).Capacity(); c != DefaultCapacity {
		t.Errorf("Capacity() = %d, want %d", c, DefaultCapacity)
	}
}

func TestPathHeadingNeedsTwoSamples(t *testing.T) {
	p := NewPath(5)

	if _, ok := p.Heading(); ok {
		t.Error("Heading on empty path should not be ok")
	}

	p.Append(Sample{Point: geo.Point{Lat: 0, Lon: 0}, At: t0})
	if _, ok := p.Heading(); ok {
		t.Error("Heading with one sample should not be ok")
	}

	p.Append(Sample{Point: geo.Point{Lat: 0, Lon: 90}, At: t0.Add(5 * time.Second)})
	deg, ok := p.Heading()
	if !ok {
		t.Fatal("Heading with two samples should be ok")
	}
	if math.Abs(deg-90) > 1e-9 {
		t.Errorf("Heading = %f, want 90", deg)
	}
}

func TestPathHeadingAfterWrap(t *testing.T) {
	p := NewPath(3)
	for i := 0; i < 5; i++ {
		p.Append(Sample{Point: geo.Point{Lat: float64(i), Lon: 0}, At: t0})
	}
	deg, ok := p.Heading()
	if !ok || math.Abs(deg) > 1e-9 {
		t.Errorf("Heading = (%f, %v), want (0, true)", deg, ok)
	}
	last, _ := p.Last()
	if last.Point.Lat != 4 {
		t.Errorf("Last().Lat = %f, want 4", last.Point.Lat)
	}
}

func TestPathPointsIsCopy(t *testing.T) {
	p := NewPath(3)
	p.Append(sampleAt(1))
	got := p.Points()
	got[0].Lat = 77
	if s, _ := p.Last(); s.Point.Lat == 77 {
		t.Error("mutating Points() result changed the path")
	}
}
