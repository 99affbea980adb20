package geo

import (
	"math"
	"testing"
)

func TestBearing(t *testing.T) {
	tests := []struct {
		name string
		from Point
		to   Point
		want float64
	}{
		{"due east on equator", Point{0, 0}, Point{0, 90}, 90},
		{"due west on equator", Point{0, 0}, Point{0, -90}, 270},
		{"due north", Point{0, 0}, Point{45, 0}, 0},
		{"due south", Point{10, 20}, Point{-10, 20}, 180},
		{"north-east", Point{0, 0}, Point{1, 1}, 44.9956},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Bearing(tt.from, tt.to)
			if math.Abs(got-tt.want) > 1e-3 {
				t.Errorf("Bearing(%v, %v) = %.4f, want %.4f", tt.from, tt.to, got, tt.want)
			}
			if got < 0 || got >= 360 {
				t.Errorf("Bearing out of range [0,360): %f", got)
			}
		})
	}
}

func TestBearingSamePointIsDegenerate(t *testing.T) {
	p := Point{Lat: 51.5, Lon: -0.12}
	if got := Bearing(p, p); got != 0 {
		t.Errorf("Bearing(p, p) = %f, want 0", got)
	}
}

func TestDistanceZero(t *testing.T) {
	p := Point{Lat: 40.7128, Lon: -74.006}
	if d := Distance(p, p); d != 0 {
		t.Errorf("Distance(p, p) = %f, want 0", d)
	}
}

func TestDistanceSymmetric(t *testing.T) {
	pairs := [][2]Point{
		{{0, 0}, {0, 90}},
		{{51.5, -0.12}, {40.71, -74.0}},
		{{-33.86, 151.2}, {35.68, 139.69}},
		{{89.9, 0}, {-89.9, 180}},
	}
	for _, p := range pairs {
		ab := Distance(p[0], p[1])
		ba := Distance(p[1], p[0])
		if math.Abs(ab-ba) > 1e-9 {
			t.Errorf("Distance not symmetric: %v->%v = %f, reverse = %f", p[0], p[1], ab, ba)
		}
	}
}

func TestDistanceKnownValues(t *testing.T) {
	// Quarter of the equator.
	got := Distance(Point{0, 0}, Point{0, 90})
	want := math.Pi / 2 * EarthRadiusKm
	if math.Abs(got-want) > 1e-6 {
		t.Errorf("Distance quarter equator = %f, want %f", got, want)
	}

	// London to New York is roughly 5570 km.
	got = Distance(Point{51.5074, -0.1278}, Point{40.7128, -74.006})
	if math.Abs(got-5570) > 20 {
		t.Errorf("Distance London-NYC = %f, want ~5570", got)
	}

	// Antipodal points must not produce NaN.
	got = Distance(Point{0, 0}, Point{0, 180})
	if math.IsNaN(got) || math.Abs(got-math.Pi*EarthRadiusKm) > 1e-6 {
		t.Errorf("Distance antipodal = %f, want %f", got, math.Pi*EarthRadiusKm)
	}
}

func TestPointValid(t *testing.T) {
	tests := []struct {
		p    Point
		want bool
	}{
		{Point{0, 0}, true},
		{Point{90, 180}, true},
		{Point{-90, -180}, true},
		{Point{90.1, 0}, false},
		{Point{0, -180.5}, false},
		{Point{math.NaN(), 0}, false},
	}
	for _, tt := range tests {
		if got := tt.p.Valid(); got != tt.want {
			t.Errorf("%v.Valid() = %v, want %v", tt.p, got, tt.want)
		}
	}
}
