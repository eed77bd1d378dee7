// Package airspace holds the static configuration of concentric sector
// rings and entry fixes around a single airport, and the pure classification
// and reflection geometry built on top of it (spec §4.C).
package airspace

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/atc-sim/arrival-engine/internal/flight"
	"github.com/atc-sim/arrival-engine/internal/geo"
)

// Airport is the static reference point the whole engine measures distance
// and bearing against. One airport per engine instance (spec §4.C,
// multi-airport is a non-goal).
type Airport struct {
	ICAO        string
	Lat         float64
	Lon         float64
	ElevationFt float64
}

// SectorRing is one concentric ring of managed airspace.
type SectorRing struct {
	Name                flight.Sector
	RInnerNM            float64
	ROuterNM            float64
	AltMinFt            float64
	AltMaxFt            float64
	HysteresisNM        float64
	StableTicksRequired int
}

// EntryFix is a named geographic point on the 30 NM ring used to vector
// newly captured arrivals.
type EntryFix struct {
	Name       string
	Lat        float64
	Lon        float64
	BearingDeg float64
}

// SpawnZone describes the parameters used by the (external) arrival spawner;
// the engine itself never spawns flights, but carries this through from
// config so downstream tooling has one source of truth (spec §6).
type SpawnZone struct {
	RadiusMinNM  float64
	RadiusMaxNM  float64
	AltMinFt     float64
	AltMaxFt     float64
	SpeedMinKts  float64
	SpeedMaxKts  float64
}

// Config is the full static airspace configuration loaded once at startup.
type Config struct {
	Airport    Airport
	Sectors    []SectorRing
	EntryFixes []EntryFix
	Spawn      SpawnZone
}

// DefaultSectors returns the representative-airport ring table of spec §4.C.
func DefaultSectors() []SectorRing {
	return []SectorRing{
		{Name: flight.SectorEntry, RInnerNM: 30, ROuterNM: 60, AltMinFt: 20000, AltMaxFt: 60000, HysteresisNM: 0.5, StableTicksRequired: 2},
		{Name: flight.SectorEnroute, RInnerNM: 10, ROuterNM: 30, AltMinFt: 18000, AltMaxFt: 35000, HysteresisNM: 0.5, StableTicksRequired: 2},
		{Name: flight.SectorApproach, RInnerNM: 3, ROuterNM: 10, AltMinFt: 0, AltMaxFt: 18000, HysteresisNM: 0.3, StableTicksRequired: 2},
		{Name: flight.SectorRunway, RInnerNM: 0, ROuterNM: 3, AltMinFt: 0, AltMaxFt: 3000, HysteresisNM: 0.2, StableTicksRequired: 2},
	}
}

// DefaultEntryFixes returns the eight fixes evenly spaced at 30 NM around
// airportLat/airportLon, at bearings 0, 45, 90, ..., 315.
func DefaultEntryFixes(airportLat, airportLon float64) []EntryFix {
	fixes := make([]EntryFix, 0, 8)
	for i := 0; i < 8; i++ {
		bearing := float64(i) * 45.0
		lat, lon := geo.Advance(airportLat, airportLon, bearing, 30.0)
		fixes = append(fixes, EntryFix{
			Name:       fmt.Sprintf("FIX%03d", int(bearing)),
			Lat:        lat,
			Lon:        lon,
			BearingDeg: bearing,
		})
	}
	return fixes
}

// RingByName returns the ring with the given name, if present.
func RingByName(sectors []SectorRing, name flight.Sector) (SectorRing, bool) {
	for _, s := range sectors {
		if s.Name == name {
			return s, true
		}
	}
	return SectorRing{}, false
}

// Classify returns the smallest-radius sector whose [r_inner, r_outer] range
// contains distanceNM and whose altitude band contains altitudeFt. It
// returns flight.SectorNone if no ring matches: the flight is outside
// managed airspace (spec §4.C).
func Classify(sectors []SectorRing, distanceNM, altitudeFt float64) flight.Sector {
	candidates := make([]SectorRing, 0, len(sectors))
	for _, s := range sectors {
		if distanceNM >= s.RInnerNM && distanceNM <= s.ROuterNM &&
			altitudeFt >= s.AltMinFt && altitudeFt <= s.AltMaxFt {
			candidates = append(candidates, s)
		}
	}
	if len(candidates) == 0 {
		return flight.SectorNone
	}
	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].ROuterNM < candidates[j].ROuterNM
	})
	return candidates[0].Name
}

// NearestEntryFix returns the fix closest to (lat, lon), ties broken by the
// lowest bearing.
func NearestEntryFix(fixes []EntryFix, lat, lon float64) EntryFix {
	best := fixes[0]
	bestDist := geo.DistanceNM(lat, lon, best.Lat, best.Lon)
	for _, f := range fixes[1:] {
		d := geo.DistanceNM(lat, lon, f.Lat, f.Lon)
		if d < bestDist || (d == bestDist && f.BearingDeg < best.BearingDeg) {
			best = f
			bestDist = d
		}
	}
	return best
}

// ReflectHeading returns the reassigned heading for boundary reflection at
// the ENTRY sector's outer edge: the bearing back toward the airport center
// plus uniform jitter in [-20, +20] degrees, normalized to [0, 360) (spec
// §4.C). rng is the scheduler's single seeded PRNG stream (spec §9).
func ReflectHeading(bearingToCenterDeg float64, rng *rand.Rand) float64 {
	jitter := rng.Float64()*40.0 - 20.0
	return geo.NormalizeDeg(bearingToCenterDeg + jitter)
}
