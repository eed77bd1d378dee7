// Package scheduler implements component H: the fixed 1 Hz tick loop with
// drift compensation, the per-tick integrate/classify/persist/publish
// pipeline, periodic state snapshots, and graceful shutdown (spec §4.H).
package scheduler

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/atc-sim/arrival-engine/internal/airspace"
	"github.com/atc-sim/arrival-engine/internal/events"
	"github.com/atc-sim/arrival-engine/internal/flight"
	"github.com/atc-sim/arrival-engine/internal/geo"
	"github.com/atc-sim/arrival-engine/internal/kinematics"
	"github.com/atc-sim/arrival-engine/internal/publish"
	"github.com/atc-sim/arrival-engine/internal/sector"
	"github.com/atc-sim/arrival-engine/internal/store"
	"github.com/atc-sim/arrival-engine/internal/telemetry"
)

// snapshotEveryTicks is N in spec §4.H step 3: "every 10 ticks, publish
// engine.state_snapshot".
const snapshotEveryTicks = 10

// warnTickBudget/errorTickBudget are the tick-overrun thresholds of spec §7.
const (
	warnTickBudget  = 100 * time.Millisecond
	errorTickBudget = 200 * time.Millisecond
)

// Params bundles everything a Scheduler needs beyond its collaborators.
type Params struct {
	Airspace    airspace.Config
	TickRate    time.Duration
	Seed        int64
	CallTimeout time.Duration
}

// Scheduler drives the tick loop described in spec §4.H. It is the single
// control thread (spec §5): per-flight processing here runs sequentially in
// stable id-sorted order so the seeded PRNG stream stays deterministic
// (spec §9, P5), even though the spec permits a bounded worker pool for the
// CPU-bound, side-effect-free stages.
type Scheduler struct {
	store     store.Store
	publisher publish.Publisher
	telemetry *telemetry.Sink
	log       *zap.Logger

	airspace    airspace.Config
	kinParams   kinematics.Params
	callTimeout time.Duration

	rng   *rand.Rand
	runID string

	tick int64
}

// New builds a Scheduler. The PRNG is seeded once here and never reseeded;
// every draw for the lifetime of the run comes from this single stream.
func New(st store.Store, pub publish.Publisher, tel *telemetry.Sink, log *zap.Logger, p Params) *Scheduler {
	return &Scheduler{
		store:     st,
		publisher: pub,
		telemetry: tel,
		log:       log,
		airspace:  p.Airspace,
		kinParams: kinematics.Params{
			AirportLat:         p.Airspace.Airport.Lat,
			AirportLon:         p.Airspace.Airport.Lon,
			AirportElevationFt: p.Airspace.Airport.ElevationFt,
		},
		callTimeout: p.CallTimeout,
		rng:         rand.New(rand.NewSource(p.Seed)),
		// run_id is derived deterministically from the seed, not drawn from
		// crypto/rand, so identical seed + identical flight set reproduces
		// byte-identical telemetry lines (spec §4.H, §9, P5).
		runID: uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("atc-engine-seed:%d", p.Seed))).String(),
	}
}

// Run starts the fixed-rate loop. It schedules tick t+1 at
// start+((t+1)*period), not now+period, to eliminate cumulative drift (spec
// §4.H). If duration > 0, Run returns after that many wall-clock seconds
// have elapsed (bounded runs, spec §6 --duration). It returns when ctx is
// cancelled or the duration elapses.
func (s *Scheduler) Run(ctx context.Context, period time.Duration, duration time.Duration) error {
	s.publishStatus(ctx, "started")

	start := time.Now()
	var deadline time.Time
	var stopAt time.Time
	if duration > 0 {
		stopAt = start.Add(duration)
	}

	for t := int64(0); ; t++ {
		deadline = start.Add(period * time.Duration(t+1))
		if !stopAt.IsZero() && deadline.After(stopAt) {
			break
		}

		select {
		case <-ctx.Done():
			s.shutdown(context.Background())
			return nil
		case <-time.After(time.Until(deadline)):
		}

		tickStart := time.Now()
		s.runTick(ctx)
		elapsed := time.Since(tickStart)
		s.reportOverrun(elapsed)

		if ctx.Err() != nil {
			s.shutdown(context.Background())
			return nil
		}
	}

	s.shutdown(context.Background())
	return nil
}

func (s *Scheduler) reportOverrun(elapsed time.Duration) {
	switch {
	case elapsed > errorTickBudget:
		s.log.Error("tick overrun", zap.Duration("elapsed", elapsed), zap.Int64("tick", s.tick))
	case elapsed > warnTickBudget:
		s.log.Warn("tick overrun", zap.Duration("elapsed", elapsed), zap.Int64("tick", s.tick))
	}
}

// runTick executes one pipeline pass (spec §4.H steps 1-4).
func (s *Scheduler) runTick(ctx context.Context) {
	s.tick++

	lctx, lcancel := s.callCtx(ctx)
	flights, err := s.store.ListEngineArrivals(lctx)
	lcancel()
	if err != nil {
		s.log.Warn("list_engine_arrivals failed", zap.Error(err))
		return
	}

	sort.Slice(flights, func(i, j int) bool { return flights[i].ID < flights[j].ID })

	for _, f := range flights {
		s.processFlight(ctx, f)
	}

	if s.tick%snapshotEveryTicks == 0 {
		s.publishSnapshot(ctx, flights)
	}

	s.telemetry.PeriodicFlush(ctx) //nolint:errcheck // best-effort, auto-flush is the hard guarantee
}

func (s *Scheduler) processFlight(ctx context.Context, f flight.Flight) {
	integrated, err := kinematics.Integrate(f, s.kinParams, s.rng)
	if err != nil {
		s.log.Warn("integrate: invalid state, skipping flight", zap.Int64("flight_id", f.ID), zap.Error(err))
		return
	}

	prevDistance := integrated.DistanceToAirportNM
	newDistance := kinematicsDistanceToAirport(integrated, s.airspace.Airport)
	integrated.LastDistanceNM = prevDistance
	integrated.DistanceToAirportNM = &newDistance

	result := sector.Step(integrated, s.airspace, s.rng)
	f2 := result.Flight

	if err := s.persist(ctx, f2); err != nil {
		s.log.Warn("persist failed", zap.Int64("flight_id", f2.ID), zap.Error(err))
	}

	s.publishTickEvents(ctx, f2, result.Events)

	s.telemetry.Append(telemetry.Snapshot{
		RunID: s.runID,
		Tick:  s.tick,
		Data: map[string]any{
			"flight_id":  f2.ID,
			"lat":        f2.Latitude,
			"lon":        f2.Longitude,
			"altitude":   f2.AltitudeFt,
			"speed_kts":  f2.GroundSpeedKts,
			"heading":    f2.HeadingDeg,
			"sector":     string(f2.Sector),
			"phase":      string(f2.Phase),
			"status":     string(f2.Status),
			"controller": string(f2.Controller),
		},
	}) //nolint:errcheck // telemetry write failures are logged internally, not fatal to the tick
}

func (s *Scheduler) persist(ctx context.Context, f flight.Flight) error {
	cctx, cancel := s.callCtx(ctx)
	defer cancel()
	if f.Status == flight.StatusLanded {
		return s.store.FinalizeTouchdown(cctx, f)
	}
	return s.store.PersistTick(cctx, f)
}

func (s *Scheduler) publishTickEvents(ctx context.Context, f flight.Flight, raised []events.Event) {
	position := events.PositionUpdated(f.ID, map[string]any{
		"id":                     f.ID,
		"callsign":               f.Callsign,
		"lat":                    f.Latitude,
		"lon":                    f.Longitude,
		"altitude_ft":            f.AltitudeFt,
		"speed_kts":              f.GroundSpeedKts,
		"heading":                f.HeadingDeg,
		"vertical_speed_fpm":     f.VerticalSpeedFpm,
		"distance_to_airport_nm": f.DistanceToAirportNM,
		"controller":             string(f.Controller),
		"phase":                  string(f.Phase),
	})

	// Ordering guarantee: position_updated precedes threshold/sector events
	// for the same flight in the same tick (spec §4.F).
	all := append([]events.Event{position}, raised...)
	for _, e := range all {
		if e.Fields == nil {
			e.Fields = map[string]any{}
		}
		e.Fields["run_id"] = s.runID
		pctx, pcancel := s.callCtx(ctx)
		err := s.publisher.Publish(pctx, e)
		pcancel()
		if err != nil {
			s.log.Warn("publish failed", zap.Int64("flight_id", f.ID), zap.String("type", string(e.Type)), zap.Error(err))
		}
	}
}

func (s *Scheduler) publishSnapshot(ctx context.Context, flights []flight.Flight) {
	summary := make([]map[string]any, 0, len(flights))
	for _, f := range flights {
		summary = append(summary, map[string]any{
			"id": f.ID, "sector": string(f.Sector), "phase": string(f.Phase),
		})
	}
	e := events.Event{
		Type: events.TypeStateSnapshot,
		Fields: map[string]any{
			"run_id": s.runID, "tick": s.tick, "flights": summary,
		},
	}
	pctx, pcancel := s.callCtx(ctx)
	defer pcancel()
	if err := s.publisher.Publish(pctx, e); err != nil {
		s.log.Warn("state snapshot publish failed", zap.Error(err))
	}
}

func (s *Scheduler) publishStatus(ctx context.Context, status string) {
	e := events.Event{
		Type:   events.TypeSystemStatus,
		Fields: map[string]any{"status": status, "run_id": s.runID},
	}
	pctx, pcancel := s.callCtx(ctx)
	defer pcancel()
	if err := s.publisher.Publish(pctx, e); err != nil {
		s.log.Warn("system status publish failed", zap.String("status", status), zap.Error(err))
	}
}

// shutdown flushes telemetry, publishes the stopped status, and closes the
// store and publisher (spec §4.H shutdown sequence).
func (s *Scheduler) shutdown(ctx context.Context) {
	if err := s.telemetry.Flush(); err != nil {
		s.log.Warn("telemetry flush failed during shutdown", zap.Error(err))
	}
	s.publishStatus(ctx, "stopped")
	s.store.Close()
	if err := s.publisher.Close(); err != nil {
		s.log.Warn("publisher close failed", zap.Error(err))
	}
}

// callCtx bounds a single store/publisher call to the configured per-call
// timeout (spec §5 "Cancellation and timeout"). The caller must invoke the
// returned cancel function once the call completes.
func (s *Scheduler) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

func kinematicsDistanceToAirport(f flight.Flight, airport airspace.Airport) float64 {
	return geo.DistanceNM(f.Latitude, f.Longitude, airport.Lat, airport.Lon)
}
