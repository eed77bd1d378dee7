// Package sector implements the per-flight sector state machine of spec
// §4.D: hysteresis-gated transitions between concentric rings, stability
// counting, the inbound-only transition filter, ENTRY boundary reflection,
// and at-most-once threshold events.
package sector

import (
	"math/rand"

	"github.com/atc-sim/arrival-engine/internal/airspace"
	"github.com/atc-sim/arrival-engine/internal/events"
	"github.com/atc-sim/arrival-engine/internal/flight"
	"github.com/atc-sim/arrival-engine/internal/geo"
)

// Result is what Step returns: the updated flight and the domain events
// raised this tick, already in the ascending-distance emission order spec
// §4.D requires (ENTERED_ENTRY_ZONE, HANDOFF_READY, TOUCHDOWN), with
// sector/boundary events interleaved per the position-then-events-per-flight
// ordering of spec §4.F.
type Result struct {
	Flight flight.Flight
	Events []events.Event
}

// Step evaluates one tick of the sector state machine for f, which must
// already have its kinematic fields advanced by kinematics.Integrate and its
// DistanceToAirportNM/LastDistanceNM populated by the caller before Step
// runs (spec §4.H pipeline step 2 precedes step c). cfg is the static
// airspace configuration; rng is the scheduler's shared seeded PRNG stream,
// consumed only when a boundary reflection actually fires.
func Step(f flight.Flight, cfg airspace.Config, rng *rand.Rand) Result {
	out := f.Clone()
	var raised []events.Event

	d := 0.0
	if out.DistanceToAirportNM != nil {
		d = *out.DistanceToAirportNM
	}
	lastD := d
	if out.LastDistanceNM != nil {
		lastD = *out.LastDistanceNM
	}
	inbound := d < lastD

	sGeom := airspace.Classify(cfg.Sectors, d, out.AltitudeFt)

	raised = append(raised, evaluateTransition(&out, cfg.Sectors, sGeom, d, inbound)...)

	// Only a flight that is not already closing on the airport is reflected,
	// so one excursion past the ENTRY outer edge reflects once.
	if out.Sector == flight.SectorEntry && !inbound {
		if ring, ok := airspace.RingByName(cfg.Sectors, flight.SectorEntry); ok {
			if d >= ring.ROuterNM+ring.HysteresisNM {
				bearing := geo.BearingDeg(out.Latitude, out.Longitude, cfg.Airport.Lat, cfg.Airport.Lon)
				out.HeadingDeg = airspace.ReflectHeading(bearing, rng)
				raised = append(raised, events.BoundaryReflection(out.ID, out.HeadingDeg))
			}
		}
	}

	raised = append(raised, evaluateThresholds(&out, cfg, d)...)

	return Result{Flight: out, Events: raised}
}

// evaluateTransition implements spec §4.D steps 2-5: the directed,
// hysteresis-gated, stability-counted sector transition.
func evaluateTransition(f *flight.Flight, sectors []airspace.SectorRing, sGeom flight.Sector, d float64, inbound bool) []events.Event {
	if sGeom == flight.SectorNone {
		// No transition attempted; retain the recorded sector (spec §4.D
		// tie-break). The candidate counter decays since the flight isn't
		// stably classified anywhere; SectorStableTicks is left unchanged.
		f.SectorCandidate = flight.SectorNone
		f.SectorCandidateTicks = 0
		return nil
	}

	if f.Sector == flight.SectorNone {
		// First classification: commit immediately, no hysteresis gate
		// applies since there is no current ring to move from/to.
		f.Sector = sGeom
		f.SectorStableTicks = 0
		f.SectorCandidate = flight.SectorNone
		f.SectorCandidateTicks = 0
		return nil
	}

	candidate := directedCandidate(sectors, f.Sector, sGeom, d, inbound)

	if candidate == flight.SectorNone {
		// No directed threshold satisfied this tick.
		f.SectorCandidate = flight.SectorNone
		f.SectorCandidateTicks = 0
		if f.Sector == sGeom && inbound {
			f.SectorStableTicks++
		}
		return nil
	}

	if candidate != f.SectorCandidate {
		f.SectorCandidate = candidate
		f.SectorCandidateTicks = 1
	} else {
		f.SectorCandidateTicks++
	}

	ring, _ := airspace.RingByName(sectors, candidate)
	if f.SectorCandidateTicks >= ring.StableTicksRequired {
		from := f.Sector
		f.Sector = candidate
		f.SectorStableTicks = 0
		f.SectorCandidate = flight.SectorNone
		f.SectorCandidateTicks = 0
		return []events.Event{events.SectorHandoff(f.ID, string(from), string(candidate))}
	}

	return nil
}

// directedCandidate returns the sector a flight currently in "cur" would
// move to this tick if the directed hysteresis threshold of spec §4.D step 4
// is satisfied, or flight.SectorNone if neither the inward nor outward
// threshold is met.
func directedCandidate(sectors []airspace.SectorRing, cur, sGeom flight.Sector, d float64, inbound bool) flight.Sector {
	curRing, ok := airspace.RingByName(sectors, cur)
	if !ok {
		return flight.SectorNone
	}

	// Moving inward: candidate Y's outer radius equals cur's inner radius.
	if inner, ok := innerNeighbor(sectors, curRing); ok {
		if d <= curRing.RInnerNM-curRing.HysteresisNM && inbound && sGeom == inner.Name {
			return inner.Name
		}
	}

	// Moving outward: candidate is the next sector out.
	if outer, ok := outerNeighbor(sectors, curRing); ok {
		if d >= curRing.ROuterNM+curRing.HysteresisNM && !inbound && sGeom == outer.Name {
			return outer.Name
		}
	}

	return flight.SectorNone
}

// innerNeighbor returns the ring whose outer radius equals ring's inner
// radius (the next ring in).
func innerNeighbor(sectors []airspace.SectorRing, ring airspace.SectorRing) (airspace.SectorRing, bool) {
	for _, s := range sectors {
		if s.ROuterNM == ring.RInnerNM {
			return s, true
		}
	}
	return airspace.SectorRing{}, false
}

// outerNeighbor returns the ring whose inner radius equals ring's outer
// radius (the next ring out).
func outerNeighbor(sectors []airspace.SectorRing, ring airspace.SectorRing) (airspace.SectorRing, bool) {
	for _, s := range sectors {
		if s.RInnerNM == ring.ROuterNM {
			return s, true
		}
	}
	return airspace.SectorRing{}, false
}

// evaluateThresholds implements spec §4.D step 7/8: at-most-once threshold
// events, emitted in ascending-distance order (ENTERED_ENTRY_ZONE at 30NM,
// HANDOFF_READY at 20NM, TOUCHDOWN last), with touchdown finalization.
// Appending in that fixed order is sufficient since a single tick has one
// distance value; there is nothing to sort by within a tick.
func evaluateThresholds(f *flight.Flight, cfg airspace.Config, d float64) []events.Event {
	if f.LastEventFired == nil {
		f.LastEventFired = flight.NewEventSet()
	}

	var names []string

	if d <= 30.0 && !f.LastEventFired.Has(flight.EventEnteredEntryZone) {
		names = append(names, flight.EventEnteredEntryZone)
	}
	if d <= 20.0 && !f.LastEventFired.Has(flight.EventHandoffReady) {
		names = append(names, flight.EventHandoffReady)
	}
	touchingDown := f.AltitudeFt < cfg.Airport.ElevationFt+50.0
	if touchingDown && !f.LastEventFired.Has(flight.EventTouchdown) {
		names = append(names, flight.EventTouchdown)
	}

	raised := make([]events.Event, 0, len(names))
	for _, name := range names {
		f.LastEventFired.Add(name)
		raised = append(raised, events.Threshold(f.ID, name))

		if name == flight.EventTouchdown {
			f.Status = flight.StatusLanded
			f.Controller = flight.ControllerGround
			f.VerticalSpeedFpm = 0
			f.GroundSpeedKts = landingRollSpeedKts
			f.Phase = flight.PhaseTouchdown
		}
	}

	return raised
}

// landingRollSpeedKts is the clamped ground speed assigned on touchdown
// (spec §4.D step 8: "speed clamped to landing roll value").
const landingRollSpeedKts = 30.0
