// Package enginetest provides in-memory fakes for the store and publisher
// interfaces so the scheduler and spawn listener can be exercised
// deterministically without a live Postgres or AMQP broker. The map-plus-
// mutex shape is adapted from the teacher's own in-memory aircraft Store
// (aircraft.go), generalized from "last known ADS-B position" bookkeeping
// to the flight record this engine mutates.
package enginetest

import (
	"context"
	"sync"

	"github.com/atc-sim/arrival-engine/internal/events"
	"github.com/atc-sim/arrival-engine/internal/flight"
)

// Store is an in-memory store.Store. Safe for concurrent use; PersistTick,
// FinalizeTouchdown, and ClaimArrival take the lock per call exactly as the
// per-flight serialization the scheduler relies on (spec §4.H) requires.
type Store struct {
	mu       sync.Mutex
	flights  map[int64]flight.Flight
	Fail     error // when set, every call returns this error instead of acting
	NumCalls int
}

// NewStore builds an empty fake store, optionally seeded with flights.
func NewStore(seed ...flight.Flight) *Store {
	s := &Store{flights: make(map[int64]flight.Flight, len(seed))}
	for _, f := range seed {
		s.flights[f.ID] = f
	}
	return s
}

func (s *Store) ListEngineArrivals(ctx context.Context) ([]flight.Flight, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NumCalls++
	if s.Fail != nil {
		return nil, s.Fail
	}
	var out []flight.Flight
	for _, f := range s.flights {
		if f.IsEngineArrival() {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) PersistTick(ctx context.Context, f flight.Flight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NumCalls++
	if s.Fail != nil {
		return s.Fail
	}
	s.flights[f.ID] = f
	return nil
}

func (s *Store) FinalizeTouchdown(ctx context.Context, f flight.Flight) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NumCalls++
	if s.Fail != nil {
		return s.Fail
	}
	f.Status = flight.StatusLanded
	f.Controller = flight.ControllerGround
	s.flights[f.ID] = f
	return nil
}

func (s *Store) ClaimArrival(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.NumCalls++
	if s.Fail != nil {
		return s.Fail
	}
	f, ok := s.flights[id]
	if !ok {
		return nil
	}
	if f.Status != flight.StatusActive || f.FlightType != flight.TypeArrival {
		return nil
	}
	f.Controller = flight.ControllerEngine
	s.flights[id] = f
	return nil
}

func (s *Store) Close() {}

// Get returns the current stored state for id, for test assertions.
func (s *Store) Get(id int64) (flight.Flight, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.flights[id]
	return f, ok
}

// Publisher is an in-memory events.Event sink.
type Publisher struct {
	mu       sync.Mutex
	Events   []events.Event
	Fail     error
	Disabled bool
}

// NewPublisher builds an empty fake publisher.
func NewPublisher() *Publisher {
	return &Publisher{}
}

func (p *Publisher) Publish(ctx context.Context, e events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.Disabled {
		return p.Fail
	}
	if p.Fail != nil {
		return p.Fail
	}
	p.Events = append(p.Events, e)
	return nil
}

func (p *Publisher) Close() error { return nil }

// All returns a snapshot of every event published so far, for assertions.
func (p *Publisher) All() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]events.Event, len(p.Events))
	copy(out, p.Events)
	return out
}
