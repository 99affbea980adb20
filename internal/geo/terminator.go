package geo

import (
	"math"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
	"github.com/soniakeys/meeus/v3/sidereal"
	"github.com/soniakeys/meeus/v3/solar"
)

// JulianDate converts t to a Julian Date.
func JulianDate(t time.Time) float64 {
	return julian.TimeToJD(t.UTC())
}

// GMST returns Greenwich Mean Sidereal Time in degrees [0,360).
func GMST(t time.Time) float64 {
	// sidereal.Mean is in seconds of time; 240s of time per degree.
	return normalize360(float64(sidereal.Mean(JulianDate(t))) / 240)
}

// SunPosition returns the Sun's apparent right ascension and declination in
// degrees. UT stands in for dynamical time; the ~70s difference moves the Sun
// by well under the terminator's sampling step.
func SunPosition(t time.Time) (raDeg, decDeg float64) {
	ra, dec := solar.ApparentEquatorial(JulianDate(t))
	return normalize360(radToDeg(float64(ra))), radToDeg(float64(dec))
}

// SubsolarPoint returns the point on Earth where the Sun is at the zenith.
func SubsolarPoint(t time.Time) Point {
	ra, dec := SunPosition(t)
	lon := normalize360(ra-GMST(t)+180) - 180
	return Point{Lat: dec, Lon: lon}
}

// Terminator returns the polygon covering the night side of the Earth at t,
// sampled every step degrees of longitude from -180 to 180. The polygon is
// closed over whichever pole is in darkness, so the first and last vertices
// sit on that pole.
func Terminator(t time.Time, step float64) []Point {
	if step <= 0 {
		step = 1
	}

	ra, dec := SunPosition(t)
	gmst := GMST(t)

	// tan(0) would put the whole curve on the poles.
	if math.Abs(dec) < 1e-6 {
		dec = math.Copysign(1e-6, dec)
	}
	tanDec := math.Tan(degToRad(dec))

	n := int(math.Round(360/step)) + 1
	poly := make([]Point, 0, n+2)

	darkPole := -90.0
	if dec < 0 {
		darkPole = 90.0
	}

	poly = append(poly, Point{Lat: darkPole, Lon: -180})
	for i := 0; i < n; i++ {
		lon := -180 + float64(i)*step
		if lon > 180 {
			lon = 180
		}
		ha := degToRad(gmst + lon - ra)
		lat := radToDeg(math.Atan(-math.Cos(ha) / tanDec))
		poly = append(poly, Point{Lat: lat, Lon: lon})
	}
	poly = append(poly, Point{Lat: darkPole, Lon: 180})

	return poly
}
