package sector

import (
	"math/rand"
	"testing"

	"github.com/atc-sim/arrival-engine/internal/airspace"
	"github.com/atc-sim/arrival-engine/internal/events"
	"github.com/atc-sim/arrival-engine/internal/flight"
)

func hasEventType(evs []events.Event, t events.Type) bool {
	for _, e := range evs {
		if e.Type == t {
			return true
		}
	}
	return false
}

func testConfig() airspace.Config {
	return airspace.Config{
		Airport: airspace.Airport{ICAO: "KXXX", Lat: 40.0, Lon: -73.0, ElevationFt: 13},
		Sectors: airspace.DefaultSectors(),
	}
}

func newFlight(distanceNM, lastDistanceNM, altitudeFt float64) flight.Flight {
	d := distanceNM
	ld := lastDistanceNM
	return flight.Flight{
		ID:                  1,
		AltitudeFt:          altitudeFt,
		DistanceToAirportNM: &d,
		LastDistanceNM:      &ld,
		LastEventFired:      flight.NewEventSet(),
	}
}

func TestFirstClassificationCommitsImmediately(t *testing.T) {
	f := newFlight(45, 46, 25000)
	rng := rand.New(rand.NewSource(1))

	res := Step(f, testConfig(), rng)

	if res.Flight.Sector != flight.SectorEntry {
		t.Errorf("sector %v != ENTRY", res.Flight.Sector)
	}
	for _, e := range res.Events {
		if e.Type == "sector.handoff" {
			t.Errorf("unexpected handoff event on first classification: %+v", e)
		}
	}
}

func TestInwardTransitionRequiresStability(t *testing.T) {
	f := newFlight(30.4, 30.6, 25000)
	f.Sector = flight.SectorEntry
	rng := rand.New(rand.NewSource(1))

	// Tick 1: distance crosses the inward threshold (30 - 0.5 = 29.5), but
	// stable_ticks_required is 2, so no handoff should fire yet.
	f.DistanceToAirportNM = flight.Ptr(29.0)
	f.AltitudeFt = 19000
	res := Step(f, testConfig(), rng)
	if hasEventType(res.Events, "sector.handoff") {
		t.Fatal("handoff fired after only one stable tick")
	}

	f = res.Flight
	f.LastDistanceNM = flight.Ptr(29.0)
	f.DistanceToAirportNM = flight.Ptr(28.5)
	res = Step(f, testConfig(), rng)
	if !hasEventType(res.Events, "sector.handoff") {
		t.Fatal("expected handoff to commit on second stable tick")
	}
	if res.Flight.Sector != flight.SectorEnroute {
		t.Errorf("sector %v != ENROUTE", res.Flight.Sector)
	}
}

func TestHysteresisOscillationSuppressesHandoff(t *testing.T) {
	// A flight bouncing +/-0.4 NM around the 30 NM boundary should never
	// satisfy the 0.5 NM hysteresis margin, so no handoff fires (spec P7).
	f := newFlight(30.2, 30.2, 25000)
	f.Sector = flight.SectorEntry
	rng := rand.New(rand.NewSource(7))

	positions := []float64{29.9, 30.3, 29.8, 30.4, 29.9, 30.2}
	last := 30.2
	for _, d := range positions {
		f.LastDistanceNM = flight.Ptr(last)
		f.DistanceToAirportNM = flight.Ptr(d)
		res := Step(f, testConfig(), rng)
		if hasEventType(res.Events, "sector.handoff") {
			t.Fatalf("unexpected handoff during oscillation at d=%v", d)
		}
		f = res.Flight
		last = d
	}
}

func TestBoundaryReflectionFiresAtEntryOuterEdge(t *testing.T) {
	f := newFlight(60.6, 60.0, 25000)
	f.Sector = flight.SectorEntry
	f.HeadingDeg = 0
	f.Latitude, f.Longitude = 40.0, -72.0 // east of the airport
	rng := rand.New(rand.NewSource(1))

	res := Step(f, testConfig(), rng)
	if !hasEventType(res.Events, "sector.boundary_reflection") {
		t.Fatal("expected boundary reflection event")
	}
}

func TestThresholdEventsFireAtMostOnce(t *testing.T) {
	f := newFlight(31, 32, 25000)
	rng := rand.New(rand.NewSource(1))

	res := Step(f, testConfig(), rng)
	f = res.Flight

	f.DistanceToAirportNM = flight.Ptr(29.0)
	f.LastDistanceNM = flight.Ptr(31.0)
	res = Step(f, testConfig(), rng)
	if !hasEventType(res.Events, "aircraft.threshold_event") {
		t.Fatal("expected ENTERED_ENTRY_ZONE threshold event")
	}
	f = res.Flight

	// Re-crossing the same threshold must not re-fire it (I4).
	f.DistanceToAirportNM = flight.Ptr(28.5)
	f.LastDistanceNM = flight.Ptr(29.0)
	res = Step(f, testConfig(), rng)
	for _, e := range res.Events {
		if e.Type == "aircraft.threshold_event" && e.Fields["event_type"] == flight.EventEnteredEntryZone {
			t.Fatal("ENTERED_ENTRY_ZONE fired twice")
		}
	}
}

func TestTouchdownFinalizesFlight(t *testing.T) {
	f := newFlight(0.5, 0.6, 13+10) // 10ft AGL, well under the 50ft threshold
	f.Sector = flight.SectorRunway
	f.Status = flight.StatusActive
	f.Controller = flight.ControllerEngine
	rng := rand.New(rand.NewSource(1))

	res := Step(f, testConfig(), rng)
	if !hasEventType(res.Events, "aircraft.threshold_event") {
		t.Fatal("expected TOUCHDOWN threshold event")
	}
	if res.Flight.Status != flight.StatusLanded {
		t.Errorf("status %v != landed", res.Flight.Status)
	}
	if res.Flight.Controller != flight.ControllerGround {
		t.Errorf("controller %v != GROUND", res.Flight.Controller)
	}
	if res.Flight.VerticalSpeedFpm != 0 {
		t.Errorf("vertical speed %v != 0 after touchdown", res.Flight.VerticalSpeedFpm)
	}
}
