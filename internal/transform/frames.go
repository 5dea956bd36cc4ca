// Package transform converts satellite state between the frames the tracker
// touches: TEME from SGP4, Earth-fixed ECEF, geodetic latitude/longitude, and
// the topocentric view from the user's position.
//
// TEME to ECEF uses a GMST-only rotation (IAU-82), ignoring polar motion and
// the equation of the equinoxes. The error is tens of meters, far below what
// a distance readout shows.
package transform

import (
	"math"
	"time"
)

// j2000 is the Julian Date of the J2000.0 epoch.
const j2000 = 2451545.0

// OmegaEarth is Earth's rotation rate in rad/s.
const OmegaEarth = 7.292115146706979e-5

// PositionTEME is a position (km) and velocity (km/s) in the TEME frame.
type PositionTEME struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// PositionECEF is a position (m) and velocity (m/s) in the ECEF frame.
type PositionECEF struct {
	X, Y, Z    float64
	VX, VY, VZ float64
}

// Speed returns the magnitude of the ECEF velocity in m/s.
func (p PositionECEF) Speed() float64 {
	return math.Sqrt(p.VX*p.VX + p.VY*p.VY + p.VZ*p.VZ)
}

// JulianDate converts t to a Julian Date.
func JulianDate(t time.Time) float64 {
	t = t.UTC()
	y := float64(t.Year())
	m := float64(t.Month())
	d := float64(t.Day())
	dayFrac := (float64(t.Hour()) +
		float64(t.Minute())/60.0 +
		(float64(t.Second())+float64(t.Nanosecond())/1e9)/3600.0) / 24.0

	// January and February count as months 13 and 14 of the previous year.
	if m <= 2 {
		y--
		m += 12
	}

	a := math.Floor(y / 100)
	b := 2 - a + math.Floor(a/4)

	return math.Floor(365.25*(y+4716)) + math.Floor(30.6001*(m+1)) + d + b - 1524.5 + dayFrac
}

// GMST returns Greenwich Mean Sidereal Time in radians (IAU-82, Vallado 3-47).
func GMST(t time.Time) float64 {
	tUT1 := (JulianDate(t) - j2000) / 36525.0

	// Seconds of time; 876600h = 3155760000s.
	sec := 67310.54841 +
		(3155760000.0+8640184.812866)*tUT1 +
		0.093104*tUT1*tUT1 -
		6.2e-6*tUT1*tUT1*tUT1

	sec = math.Mod(sec, 86400.0)
	if sec < 0 {
		sec += 86400.0
	}
	return sec / 86400.0 * 2.0 * math.Pi
}

// TEMEToECEF rotates a TEME state into ECEF at time t.
func TEMEToECEF(teme PositionTEME, t time.Time) PositionECEF {
	return TEMEToECEFWithGMST(teme, GMST(t))
}

// TEMEToECEFWithGMST rotates a TEME state about Z by gmst radians and removes
// Earth's rotation from the velocity: v_ecef = R3(θ)·v_teme − ω × r_ecef.
func TEMEToECEFWithGMST(teme PositionTEME, gmst float64) PositionECEF {
	cosG := math.Cos(gmst)
	sinG := math.Sin(gmst)

	x := teme.X*cosG + teme.Y*sinG
	y := -teme.X*sinG + teme.Y*cosG
	z := teme.Z

	vx := teme.VX*cosG + teme.VY*sinG + OmegaEarth*y
	vy := -teme.VX*sinG + teme.VY*cosG - OmegaEarth*x
	vz := teme.VZ

	return PositionECEF{
		X: x * 1000.0, Y: y * 1000.0, Z: z * 1000.0,
		VX: vx * 1000.0, VY: vy * 1000.0, VZ: vz * 1000.0,
	}
}
