// Package geo implements the pure great-circle math the engine uses to place
// and move arrivals: distance, bearing, forward position advance, and the
// angle-normalization helpers the kinematics integrator and sector state
// machine build on.
package geo

import "math"

// EarthRadiusNM is the mean Earth radius in nautical miles used for all
// great-circle calculations in the engine.
const EarthRadiusNM = 3440.065

func toRad(deg float64) float64 { return deg * math.Pi / 180.0 }
func toDeg(rad float64) float64 { return rad * 180.0 / math.Pi }

// DistanceNM returns the great-circle distance in nautical miles between two
// points given in decimal degrees, using the haversine formula.
func DistanceNM(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := toRad(lat2 - lat1)
	dLon := toRad(lon2 - lon1)
	lat1R, lat2R := toRad(lat1), toRad(lat2)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1R)*math.Cos(lat2R)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return EarthRadiusNM * c
}

// BearingDeg returns the initial great-circle bearing in degrees [0, 360)
// from (lat1, lon1) toward (lat2, lon2).
func BearingDeg(lat1, lon1, lat2, lon2 float64) float64 {
	lat1R, lat2R := toRad(lat1), toRad(lat2)
	dLon := toRad(lon2 - lon1)

	y := math.Sin(dLon) * math.Cos(lat2R)
	x := math.Cos(lat1R)*math.Sin(lat2R) - math.Sin(lat1R)*math.Cos(lat2R)*math.Cos(dLon)

	return NormalizeDeg(toDeg(math.Atan2(y, x)))
}

// Advance returns the destination point reached from (lat, lon) after
// travelling distanceNM nautical miles along headingDeg (degrees true,
// clockwise from north) over the Earth's surface.
func Advance(lat, lon, headingDeg, distanceNM float64) (float64, float64) {
	latR := toRad(lat)
	lonR := toRad(lon)
	brngR := toRad(headingDeg)
	angDist := distanceNM / EarthRadiusNM

	lat2 := math.Asin(math.Sin(latR)*math.Cos(angDist) +
		math.Cos(latR)*math.Sin(angDist)*math.Cos(brngR))
	lon2 := lonR + math.Atan2(
		math.Sin(brngR)*math.Sin(angDist)*math.Cos(latR),
		math.Cos(angDist)-math.Sin(latR)*math.Sin(lat2),
	)

	return toDeg(lat2), normalizeLonDeg(toDeg(lon2))
}

// NormalizeDeg reduces x to the range [0, 360).
func NormalizeDeg(x float64) float64 {
	m := math.Mod(x, 360.0)
	if m < 0 {
		m += 360.0
	}
	return m
}

func normalizeLonDeg(x float64) float64 {
	m := math.Mod(x+180.0, 360.0)
	if m < 0 {
		m += 360.0
	}
	return m - 180.0
}

// ShortestTurn returns the signed angular delta in (-180, +180] that turns
// currentDeg toward targetDeg by the shorter path. A delta of exactly 180
// resolves to +180 (a right turn), matching the tie-break the sector state
// machine and heading integrator rely on.
func ShortestTurn(currentDeg, targetDeg float64) float64 {
	delta := math.Mod(targetDeg-currentDeg, 360.0)
	if delta < 0 {
		delta += 360.0
	}
	// delta is now in [0, 360); fold into (-180, 180] so exactly 180 stays +180.
	if delta > 180.0 {
		delta -= 360.0
	}
	return delta
}
