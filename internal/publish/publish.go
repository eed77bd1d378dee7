// Package publish implements component F, the event publisher: it wraps
// domain events in the {type, timestamp, data} envelope of spec §4.F and
// ships them over a single fanout exchange, at-least-once, reconnecting with
// backoff on transient failures without ever blocking the tick loop on a
// dead broker.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/streadway/amqp"

	"github.com/atc-sim/arrival-engine/internal/enginerr"
	"github.com/atc-sim/arrival-engine/internal/events"
)

// envelope is the wire format every published message shares (spec §4.F).
type envelope struct {
	Type      events.Type    `json:"type"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// Publisher is what the scheduler drives once per flight per tick, plus the
// periodic snapshot and the start/stop status events.
type Publisher interface {
	Publish(ctx context.Context, e events.Event) error
	Close() error
}

// AMQPPublisher is the streadway/amqp-backed fanout implementation. One
// connection and one channel, publishes sequential (spec §4.H shared
// resources note).
type AMQPPublisher struct {
	url      string
	exchange string

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewAMQPPublisher dials url and declares exchange as a non-durable fanout,
// matching the engine's at-least-once, no-durable-queue-required semantics
// (spec §4.F). A connection failure here is returned as a PublishTransient
// error and no publisher is built.
func NewAMQPPublisher(url, exchange string) (*AMQPPublisher, error) {
	p := &AMQPPublisher{url: url, exchange: exchange}
	if err := p.connect(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *AMQPPublisher) connect() error {
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return enginerr.New(enginerr.PublishTransient, fmt.Errorf("publish: dial: %w", err))
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return enginerr.New(enginerr.PublishTransient, fmt.Errorf("publish: open channel: %w", err))
	}
	if err := ch.ExchangeDeclare(p.exchange, "fanout", false, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return enginerr.New(enginerr.PublishTransient, fmt.Errorf("publish: declare exchange: %w", err))
	}

	p.mu.Lock()
	p.conn, p.ch = conn, ch
	p.mu.Unlock()
	return nil
}

// reconnect retries connect with exponential backoff capped the same way
// the spawn listener caps its own reconnect loop (spec §4.G), so both
// recovery paths behave identically under a prolonged broker outage.
func (p *AMQPPublisher) reconnect(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	bctx := backoff.WithContext(b, ctx)
	return backoff.Retry(p.connect, bctx)
}

// Publish marshals e into the standard envelope and publishes it to the
// fanout exchange. A publish failure triggers a background reconnect and
// returns a PublishTransient error; the caller (scheduler) logs and
// continues per spec §7 without retrying within the same tick.
func (p *AMQPPublisher) Publish(ctx context.Context, e events.Event) error {
	data := make(map[string]any, len(e.Fields)+1)
	for k, v := range e.Fields {
		data[k] = v
	}
	data["flight_id"] = e.FlightID

	body, err := json.Marshal(buildEnvelope(e, data, nowISO8601()))
	if err != nil {
		return enginerr.New(enginerr.PublishTransient, fmt.Errorf("publish: marshal: %w", err))
	}

	p.mu.Lock()
	ch := p.ch
	p.mu.Unlock()
	if ch == nil {
		go p.reconnect(ctx) //nolint:errcheck // best-effort background recovery
		return enginerr.New(enginerr.PublishTransient, fmt.Errorf("publish: channel unavailable"))
	}

	msg := amqp.Publishing{
		DeliveryMode: amqp.Transient,
		ContentType:  "application/json",
		Timestamp:    time.Now(),
		Body:         body,
	}
	if err := ch.Publish(p.exchange, "", false, false, msg); err != nil {
		p.mu.Lock()
		p.ch = nil
		p.mu.Unlock()
		go p.reconnect(ctx) //nolint:errcheck // best-effort background recovery
		return enginerr.New(enginerr.PublishTransient, fmt.Errorf("publish: %w", err))
	}
	return nil
}

// Close tears down the channel and connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch != nil {
		p.ch.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}

var nowISO8601 = func() string {
	return time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
}

// buildEnvelope assembles the wire envelope for e. Split out from Publish so
// the envelope shape can be tested without a live broker connection.
func buildEnvelope(e events.Event, data map[string]any, ts string) envelope {
	return envelope{Type: e.Type, Timestamp: ts, Data: data}
}
