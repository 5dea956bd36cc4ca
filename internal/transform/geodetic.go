package transform

import "math"

// WGS-84 ellipsoid.
const (
	wgs84A  = 6378137.0
	wgs84F  = 1.0 / 298.257223563
	wgs84E2 = wgs84F * (2 - wgs84F)
)

const (
	deg2rad = math.Pi / 180.0
	rad2deg = 180.0 / math.Pi
)

// Geodetic is a WGS-84 position: degrees and meters above the ellipsoid.
type Geodetic struct {
	LatDeg, LonDeg, AltM float64
}

// LookAngles is the topocentric view from an observer to a target.
type LookAngles struct {
	AzimuthDeg   float64 `json:"azimuth_deg"`   // 0 = north, clockwise
	ElevationDeg float64 `json:"elevation_deg"` // 0 = horizon, 90 = zenith
	RangeKm      float64 `json:"range_km"`
}

// Visible reports whether the target is above the observer's horizon.
func (l LookAngles) Visible() bool {
	return l.ElevationDeg > 0
}

// ToECEF converts g to ECEF meters.
func (g Geodetic) ToECEF() (x, y, z float64) {
	lat := g.LatDeg * deg2rad
	lon := g.LonDeg * deg2rad
	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)

	// Prime vertical radius of curvature.
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	x = (n + g.AltM) * cosLat * math.Cos(lon)
	y = (n + g.AltM) * cosLat * math.Sin(lon)
	z = (n*(1-wgs84E2) + g.AltM) * sinLat
	return x, y, z
}

// ECEFToGeodetic converts ECEF meters to geodetic coordinates with Bowring's
// iteration, which settles within a few rounds for orbital altitudes.
func ECEFToGeodetic(x, y, z float64) Geodetic {
	lon := math.Atan2(y, x)
	p := math.Hypot(x, y)
	lat := math.Atan2(z, p*(1-wgs84E2))

	var n float64
	for i := 0; i < 5; i++ {
		sinLat := math.Sin(lat)
		n = wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		lat = math.Atan2(z+wgs84E2*n*math.Sin(lat), p)
	}

	sinLat := math.Sin(lat)
	cosLat := math.Cos(lat)
	n = wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)

	var alt float64
	if math.Abs(cosLat) > 1e-10 {
		alt = p/cosLat - n
	} else {
		alt = math.Abs(z)/math.Abs(sinLat) - n*(1-wgs84E2)
	}

	return Geodetic{LatDeg: lat * rad2deg, LonDeg: lon * rad2deg, AltM: alt}
}

// Look computes azimuth, elevation and slant range from observer to target
// using the SEZ rotation (Vallado 4.4).
func Look(observer, target Geodetic) LookAngles {
	ox, oy, oz := observer.ToECEF()
	tx, ty, tz := target.ToECEF()
	rx, ry, rz := tx-ox, ty-oy, tz-oz

	lat := observer.LatDeg * deg2rad
	lon := observer.LonDeg * deg2rad
	sinLat, cosLat := math.Sin(lat), math.Cos(lat)
	sinLon, cosLon := math.Sin(lon), math.Cos(lon)

	south := sinLat*cosLon*rx + sinLat*sinLon*ry - cosLat*rz
	east := -sinLon*rx + cosLon*ry
	zenith := cosLat*cosLon*rx + cosLat*sinLon*ry + sinLat*rz

	rng := math.Sqrt(south*south + east*east + zenith*zenith)
	if rng == 0 {
		return LookAngles{ElevationDeg: 90}
	}

	az := math.Atan2(east, -south)
	if az < 0 {
		az += 2 * math.Pi
	}

	return LookAngles{
		AzimuthDeg:   az * rad2deg,
		ElevationDeg: math.Asin(zenith/rng) * rad2deg,
		RangeKm:      rng / 1000.0,
	}
}
