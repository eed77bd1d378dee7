package kinematics

import (
	"math/rand"
	"testing"

	"github.com/atc-sim/arrival-engine/internal/flight"
)

func baseFlight() flight.Flight {
	return flight.Flight{
		ID:             1,
		Latitude:       40.5,
		Longitude:      -73.0,
		AltitudeFt:     18000,
		GroundSpeedKts: 280,
		HeadingDeg:     180,
		FlightType:     flight.TypeArrival,
		Controller:     flight.ControllerEngine,
		Status:         flight.StatusActive,
		LastEventFired: flight.NewEventSet(),
	}
}

func testParams() Params {
	return Params{AirportLat: 40.0, AirportLon: -73.0, AirportElevationFt: 13}
}

func TestIntegrateRejectsInvalidState(t *testing.T) {
	f := baseFlight()
	f.Latitude = 200

	_, err := Integrate(f, testParams(), rand.New(rand.NewSource(1)))
	if err == nil {
		t.Fatal("expected InvalidState error, got nil")
	}
}

func TestSpeedRampRespectsAccelLimits(t *testing.T) {
	f := baseFlight()
	f.GroundSpeedKts = 280
	f.TargetSpeedKts = flight.Ptr(550)

	rng := rand.New(rand.NewSource(1))
	out, err := Integrate(f, testParams(), rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delta := out.GroundSpeedKts - f.GroundSpeedKts; delta > 0.6+1e-9 {
		t.Errorf("speed increased by %v, want <= 0.6", delta)
	}

	f2 := baseFlight()
	f2.GroundSpeedKts = 280
	f2.TargetSpeedKts = flight.Ptr(140)
	out2, err := Integrate(f2, testParams(), rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if delta := f2.GroundSpeedKts - out2.GroundSpeedKts; delta > 0.8+1e-9 {
		t.Errorf("speed decreased by %v, want <= 0.8", delta)
	}
}

func TestSpeedClampedToOperatingRange(t *testing.T) {
	f := baseFlight()
	f.GroundSpeedKts = 140.1
	f.TargetSpeedKts = flight.Ptr(100) // below floor

	rng := rand.New(rand.NewSource(1))
	var out flight.Flight
	var err error
	for i := 0; i < 200; i++ {
		out, err = Integrate(f, testParams(), rng)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		f = out
	}
	if out.GroundSpeedKts < 140.0 {
		t.Errorf("speed %v fell below floor 140", out.GroundSpeedKts)
	}
}

func TestHeadingTurnRespectsBankLimit(t *testing.T) {
	f := baseFlight()
	f.HeadingDeg = 0
	f.GroundSpeedKts = 300
	f.TargetHeadingDeg = flight.Ptr(90) // large turn request in one tick

	rng := rand.New(rand.NewSource(1))
	out, err := Integrate(f, testParams(), rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	turned := out.HeadingDeg - f.HeadingDeg
	if turned < 0 {
		turned += 360
	}
	if turned >= 90 {
		t.Errorf("heading turned %v degrees in one tick, want < 90 (bank-limited)", turned)
	}
	if turned <= 0 {
		t.Errorf("heading did not turn toward target")
	}
}

func TestHeadingReachesTargetWhenWithinRate(t *testing.T) {
	f := baseFlight()
	f.HeadingDeg = 90
	f.GroundSpeedKts = 200
	f.TargetHeadingDeg = flight.Ptr(91) // tiny turn, should complete in one tick

	rng := rand.New(rand.NewSource(1))
	out, err := Integrate(f, testParams(), rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.HeadingDeg != 91 {
		t.Errorf("heading %v != 91", out.HeadingDeg)
	}
}

func TestAltitudeCapAppliesNearAirport(t *testing.T) {
	f := baseFlight()
	f.Latitude, f.Longitude = 40.05, -73.0 // ~3nm from airport
	f.AltitudeFt = 10000
	f.TargetAltitudeFt = flight.Ptr(0)

	rng := rand.New(rand.NewSource(1))
	out, err := Integrate(f, testParams(), rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.VerticalSpeedFpm < -1800.0-1e-9 {
		t.Errorf("vertical speed %v exceeds near-field cap of 1800fpm descent", out.VerticalSpeedFpm)
	}
}

func TestAltitudeNeverBelowAirportElevation(t *testing.T) {
	f := baseFlight()
	f.AltitudeFt = testParams().AirportElevationFt + 20
	f.TargetAltitudeFt = flight.Ptr(-1000)

	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 10; i++ {
		out, err := Integrate(f, testParams(), rng)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.AltitudeFt < testParams().AirportElevationFt {
			t.Fatalf("altitude %v fell below airport elevation", out.AltitudeFt)
		}
		f = out
	}
}

func TestPositionAdvanceBoundedBySpeed(t *testing.T) {
	f := baseFlight()
	f.GroundSpeedKts = 360 // exactly 0.1 NM/s

	rng := rand.New(rand.NewSource(1))
	out, err := Integrate(f, testParams(), rng)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Plausibility bound only (I7/P6 in spirit): the squared lat/lon change in
	// degrees must stay under 1; this does not compare great-circle distance
	// against speed*dt.
	dLat := out.Latitude - f.Latitude
	dLon := out.Longitude - f.Longitude
	approxNM := (dLat*dLat + dLon*dLon) // rough magnitude check, not exact great-circle
	if approxNM > 1.0 {
		t.Errorf("position moved implausibly far in one tick: dLat=%v dLon=%v", dLat, dLon)
	}
}

func TestDeterministicGivenSeed(t *testing.T) {
	f := baseFlight()

	rng1 := rand.New(rand.NewSource(42))
	rng2 := rand.New(rand.NewSource(42))

	out1, _ := Integrate(f, testParams(), rng1)
	out2, _ := Integrate(f, testParams(), rng2)

	if out1.Latitude != out2.Latitude || out1.Longitude != out2.Longitude ||
		out1.GroundSpeedKts != out2.GroundSpeedKts || out1.HeadingDeg != out2.HeadingDeg ||
		out1.AltitudeFt != out2.AltitudeFt || out1.VerticalSpeedFpm != out2.VerticalSpeedFpm {
		t.Errorf("identical seed produced divergent results: %+v != %+v", out1, out2)
	}
}

func TestIsTouchdown(t *testing.T) {
	p := testParams()
	f := baseFlight()

	f.AltitudeFt = p.AirportElevationFt + 100
	if IsTouchdown(f, p) {
		t.Error("should not be touchdown at 100ft AGL")
	}

	f.AltitudeFt = p.AirportElevationFt + 10
	if !IsTouchdown(f, p) {
		t.Error("should be touchdown at 10ft AGL")
	}
}
