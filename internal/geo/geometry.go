// Package geo provides great-circle geometry on a spherical Earth and the
// day/night terminator used by the map overlay.
package geo

import "math"

// EarthRadiusKm is the mean Earth radius used for haversine distances.
const EarthRadiusKm = 6371.0

// Point is a geographic coordinate in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the point lies within [-90,90] x [-180,180].
func (p Point) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

// Bearing returns the initial compass bearing in degrees [0,360) from one
// point toward another along a great circle. 0 is north, 90 is east.
//
// The bearing between identical points is undefined; Bearing returns 0.
func Bearing(from, to Point) float64 {
	if from == to {
		return 0
	}

	phi1 := degToRad(from.Lat)
	phi2 := degToRad(to.Lat)
	dLambda := degToRad(to.Lon - from.Lon)

	y := math.Sin(dLambda) * math.Cos(phi2)
	x := math.Cos(phi1)*math.Sin(phi2) - math.Sin(phi1)*math.Cos(phi2)*math.Cos(dLambda)

	return normalize360(radToDeg(math.Atan2(y, x)))
}

// Distance returns the haversine great-circle distance between two points in
// kilometres.
func Distance(a, b Point) float64 {
	phi1 := degToRad(a.Lat)
	phi2 := degToRad(b.Lat)
	dPhi := phi2 - phi1
	dLambda := degToRad(b.Lon - a.Lon)

	h := math.Sin(dPhi/2)*math.Sin(dPhi/2) +
		math.Cos(phi1)*math.Cos(phi2)*math.Sin(dLambda/2)*math.Sin(dLambda/2)

	// Clamp to avoid NaN from rounding on antipodal points.
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

func degToRad(d float64) float64 { return d * math.Pi / 180 }
func radToDeg(r float64) float64 { return r * 180 / math.Pi }

// normalize360 normalizes an angle to [0,360) degrees.
func normalize360(a float64) float64 {
	a = math.Mod(a, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 {
		a = 0
	}
	return a
}
