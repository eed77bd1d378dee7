// Package kinematics implements the per-tick motion integrator of spec
// §4.B: bounded speed ramp, bank-limited turn, glideslope-aware vertical
// profile, and great-circle position advance, applied in the literal order
// the spec requires for repeatability.
package kinematics

import (
	"math"
	"math/rand"

	"github.com/atc-sim/arrival-engine/internal/enginerr"
	"github.com/atc-sim/arrival-engine/internal/flight"
	"github.com/atc-sim/arrival-engine/internal/geo"
)

const (
	minSpeedKts = 140.0
	maxSpeedKts = 550.0
	minAltFt    = 0.0
	maxAltFt    = 60000.0

	// Storage bounds (spec §3), wider than the integrator's operating
	// clamp above: a stored flight may be read in at any speed in 0..600.
	minStoredSpeedKts = 0.0
	maxStoredSpeedKts = 600.0

	accelUpKtsPerSec   = 0.6
	accelDownKtsPerSec = 0.8

	bankAngleDeg  = 25.0
	gravityFtSec2 = 32.174

	capFarClimbFpm    = 2500.0
	capFarDescentFpm  = 3000.0
	capNearFpm        = 1800.0
	nearDistanceNM    = 10.0
	glideslopeFtPerNM = 318.5 // tan(3deg) ~= 0.0524 -> 6076.1 ft/NM * 0.0524

	descentDefaultFpm = -2000.0
	climbDefaultFpm   = 1500.0

	touchdownAGLFt = 50.0
)

// Dt is the fixed integration step the engine ticks at: one simulated
// second.
const Dt = 1.0

// Params carries the airport reference and static bounds the integrator
// needs but that aren't part of the Flight record itself.
type Params struct {
	AirportLat         float64
	AirportLon         float64
	AirportElevationFt float64
}

// Integrate advances flight f by one tick (dt seconds, always 1.0 in this
// engine) using the airport reference in p and the shared PRNG rng for
// bounded drift when a field has no target. It is a pure function: f is not
// mutated, and the same (f, p, rng-state) always advances rng the same
// number of draws in the same order (speed, heading, altitude, position),
// which is what makes §8 P5 determinism possible when rng is a
// deterministically seeded stream consumed in a fixed flight order.
//
// If f's stored fields already violate the §3 bounds, Integrate returns
// enginerr.InvalidState and the zero Flight; the caller must skip the
// flight for this tick without mutating it.
func Integrate(f flight.Flight, p Params, rng *rand.Rand) (flight.Flight, error) {
	if err := validate(f); err != nil {
		return flight.Flight{}, err
	}

	out := f.Clone()

	updateSpeed(&out, rng)
	updateHeading(&out, rng)
	updateAltitude(&out, p, rng)
	updatePosition(&out)

	out.Phase = derivePhase(out, p)

	return out, nil
}

func validate(f flight.Flight) error {
	switch {
	case f.Latitude < -90 || f.Latitude > 90:
		return enginerr.Newf(enginerr.InvalidState, "flight %d: latitude %v out of range", f.ID, f.Latitude)
	case f.Longitude < -180 || f.Longitude > 180:
		return enginerr.Newf(enginerr.InvalidState, "flight %d: longitude %v out of range", f.ID, f.Longitude)
	case f.AltitudeFt < minAltFt || f.AltitudeFt > maxAltFt:
		return enginerr.Newf(enginerr.InvalidState, "flight %d: altitude %v out of range", f.ID, f.AltitudeFt)
	case f.GroundSpeedKts < minStoredSpeedKts || f.GroundSpeedKts > maxStoredSpeedKts:
		return enginerr.Newf(enginerr.InvalidState, "flight %d: speed %v out of range", f.ID, f.GroundSpeedKts)
	case f.HeadingDeg < 0 || f.HeadingDeg >= 360:
		return enginerr.Newf(enginerr.InvalidState, "flight %d: heading %v out of range", f.ID, f.HeadingDeg)
	case f.VerticalSpeedFpm < -6000 || f.VerticalSpeedFpm > 6000:
		return enginerr.Newf(enginerr.InvalidState, "flight %d: vertical speed %v out of range", f.ID, f.VerticalSpeedFpm)
	}
	return nil
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// updateSpeed applies step (1): ramp toward target_speed if set, else
// bounded drift, then clamps to [140, 550] kt.
func updateSpeed(f *flight.Flight, rng *rand.Rand) {
	if f.TargetSpeedKts != nil {
		target := *f.TargetSpeedKts
		diff := target - f.GroundSpeedKts
		if diff >= 0 {
			step := math.Min(diff, accelUpKtsPerSec*Dt)
			f.GroundSpeedKts += step
		} else {
			step := math.Min(-diff, accelDownKtsPerSec*Dt)
			f.GroundSpeedKts -= step
		}
	} else {
		delta := rng.Float64()*10.0 - 5.0 // U[-5, +5]
		f.GroundSpeedKts += delta
	}
	f.GroundSpeedKts = clamp(f.GroundSpeedKts, minSpeedKts, maxSpeedKts)
}

// updateHeading applies step (2): bank-limited turn toward target_heading if
// set, else bounded drift, then normalizes.
func updateHeading(f *flight.Flight, rng *rand.Rand) {
	if f.TargetHeadingDeg != nil {
		delta := geo.ShortestTurn(f.HeadingDeg, *f.TargetHeadingDeg)

		tasFtSec := f.GroundSpeedKts * 1.68781 // kt -> ft/s
		var maxRateDegSec float64
		if tasFtSec > 0 {
			omegaRadSec := gravityFtSec2 * math.Tan(bankAngleDeg*math.Pi/180.0) / tasFtSec
			maxRateDegSec = omegaRadSec * 180.0 / math.Pi
		}
		maxStep := maxRateDegSec * Dt

		var applied float64
		if math.Abs(delta) <= maxStep {
			applied = delta
		} else if delta > 0 {
			applied = maxStep
		} else {
			applied = -maxStep
		}
		f.HeadingDeg = geo.NormalizeDeg(f.HeadingDeg + applied)
	} else {
		delta := rng.Float64()*4.0 - 2.0 // U[-2, +2]
		f.HeadingDeg = geo.NormalizeDeg(f.HeadingDeg + delta)
	}
}

// climbDescentCap returns the vertical speed cap in fpm for the given
// distance to the airport, per spec §4.B.
func climbDescentCap(distanceToAirportNM float64, climbing bool) float64 {
	if distanceToAirportNM < nearDistanceNM {
		return capNearFpm
	}
	if climbing {
		return capFarClimbFpm
	}
	return capFarDescentFpm
}

// updateAltitude applies step (3): determine commanded vertical speed (from
// target_altitude, a glideslope within 10 NM, or bounded drift), clamp it to
// the distance-based cap, then integrate altitude.
func updateAltitude(f *flight.Flight, p Params, rng *rand.Rand) {
	distanceNM := geo.DistanceNM(f.Latitude, f.Longitude, p.AirportLat, p.AirportLon)

	switch {
	case f.TargetAltitudeFt != nil:
		diff := *f.TargetAltitudeFt - f.AltitudeFt
		climbing := diff > 0
		cap := climbDescentCap(distanceNM, climbing)
		defaultRate := descentDefaultFpm
		if climbing {
			defaultRate = climbDefaultFpm
		}
		rate := math.Min(cap, math.Abs(defaultRate))
		if diff < 0 {
			rate = -rate
		} else if diff == 0 {
			rate = 0
		}
		f.VerticalSpeedFpm = rate

	case distanceNM < nearDistanceNM:
		// Glideslope tracking: target_altitude(d) = elevation + d*318.5 ft,
		// clamped at or above airport elevation. The §4.B cap always
		// applies, even when holding the 3-degree profile would need a
		// steeper rate (spec §9 Open Question, resolved here per spec
		// text: "Specification here applies the cap always").
		targetAlt := math.Max(p.AirportElevationFt, p.AirportElevationFt+distanceNM*glideslopeFtPerNM)
		diff := targetAlt - f.AltitudeFt
		climbing := diff > 0
		cap := climbDescentCap(distanceNM, climbing)
		rate := math.Min(cap, math.Abs(diff)*60.0)
		if diff < 0 {
			rate = -rate
		} else if diff == 0 {
			rate = 0
		}
		f.VerticalSpeedFpm = rate

	default:
		delta := rng.Float64()*(400.0/60.0) - (200.0 / 60.0) // U[-200/60, +200/60] fpm*s
		f.VerticalSpeedFpm += delta
		cap := climbDescentCap(distanceNM, f.VerticalSpeedFpm > 0)
		f.VerticalSpeedFpm = clamp(f.VerticalSpeedFpm, -cap, cap)
	}

	f.AltitudeFt += f.VerticalSpeedFpm * (Dt / 60.0)
	if f.AltitudeFt < p.AirportElevationFt {
		f.AltitudeFt = p.AirportElevationFt
	}
}

// updatePosition applies step (4): advance along the current heading by
// speed * dt.
func updatePosition(f *flight.Flight) {
	distanceNM := f.GroundSpeedKts * (Dt / 3600.0)
	lat, lon := geo.Advance(f.Latitude, f.Longitude, f.HeadingDeg, distanceNM)
	f.Latitude = lat
	f.Longitude = lon
}

// IsTouchdown reports whether f has descended below the touchdown AGL
// threshold of spec §4.B/§4.D (< airport elevation + 50 ft AGL).
func IsTouchdown(f flight.Flight, p Params) bool {
	return f.AltitudeFt < p.AirportElevationFt+touchdownAGLFt
}

// derivePhase computes the display-only phase tag of spec §4.B. It is never
// authoritative for control decisions.
func derivePhase(f flight.Flight, p Params) flight.Phase {
	aglFt := f.AltitudeFt - p.AirportElevationFt
	distanceNM := geo.DistanceNM(f.Latitude, f.Longitude, p.AirportLat, p.AirportLon)

	switch {
	case aglFt < touchdownAGLFt:
		return flight.PhaseTouchdown
	case aglFt < 3000 && distanceNM < 3:
		return flight.PhaseFinal
	case f.AltitudeFt >= 3000 && f.AltitudeFt <= 10000 && distanceNM < 10:
		return flight.PhaseApproach
	case f.AltitudeFt >= 10000 && f.AltitudeFt <= 18000:
		return flight.PhaseDescent
	case f.AltitudeFt > 18000:
		return flight.PhaseCruise
	default:
		return flight.PhaseDescent
	}
}
