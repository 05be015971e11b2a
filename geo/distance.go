// Package geo provides great-circle distance math for the catalog's
// radius search and the reconciler's proximity check.
package geo

import "math"

// EarthRadiusKm is the mean earth radius used by the haversine formula.
const EarthRadiusKm = 6371.0088

// Distance returns the great-circle distance in kilometers between two
// WGS-84 coordinate pairs given in degrees. Haversine keeps the result
// finite and non-negative for coincident and antipodal points.
func Distance(aLat, aLon, bLat, bLon float64) float64 {
	phi1 := radians(aLat)
	phi2 := radians(bLat)
	dPhi := radians(bLat - aLat)
	dLambda := radians(bLon - aLon)

	sinPhi := math.Sin(dPhi / 2)
	sinLambda := math.Sin(dLambda / 2)

	h := sinPhi*sinPhi + math.Cos(phi1)*math.Cos(phi2)*sinLambda*sinLambda
	// Floating point can push h a hair past 1 for near-antipodal pairs.
	if h > 1 {
		h = 1
	}

	return 2 * EarthRadiusKm * math.Asin(math.Sqrt(h))
}

// BoundingBox returns the [minLat, maxLat, minLon, maxLon] box that
// encloses the circle of radiusKm around the origin. Used as a cheap SQL
// pre-filter before the exact distance check. Near the poles the
// longitude span degenerates, so it widens to the full range there.
func BoundingBox(lat, lon, radiusKm float64) (minLat, maxLat, minLon, maxLon float64) {
	dLat := degrees(radiusKm / EarthRadiusKm)
	minLat = lat - dLat
	maxLat = lat + dLat
	if minLat < -90 {
		minLat = -90
	}
	if maxLat > 90 {
		maxLat = 90
	}

	cos := math.Cos(radians(lat))
	if cos < 1e-9 {
		return minLat, maxLat, -180, 180
	}
	dLon := degrees(radiusKm / (EarthRadiusKm * cos))
	if dLon >= 180 {
		return minLat, maxLat, -180, 180
	}
	return minLat, maxLat, lon - dLon, lon + dLon
}

func radians(deg float64) float64 { return deg * math.Pi / 180 }

func degrees(rad float64) float64 { return rad * 180 / math.Pi }
