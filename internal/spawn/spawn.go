// Package spawn implements component G: a subscriber on aircraft.created
// that claims newly spawned arrivals for the engine. It runs as its own
// concurrent task communicating with the tick loop only through the store's
// claim_arrival call (spec §4.H concurrency note), and survives transient
// subscription failures with capped exponential backoff (spec §4.G).
package spawn

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/streadway/amqp"
	"go.uber.org/zap"

	"github.com/atc-sim/arrival-engine/internal/store"
)

// createdMessage is the aircraft.created envelope of spec §6:
// {type, timestamp, data: {aircraft: {id, flight_type, ...}}}. Only the
// nested aircraft identity fields matter here; everything else is ignored.
type createdMessage struct {
	Type string `json:"type"`
	Data struct {
		Aircraft struct {
			ID         int64  `json:"id"`
			FlightType string `json:"flight_type"`
		} `json:"aircraft"`
	} `json:"data"`
}

// Listener consumes aircraft.created and claims ARRIVAL flights.
type Listener struct {
	url       string
	queueName string
	store     store.Store
	log       *zap.Logger
}

// New builds a Listener. queueName is the queue bound to the
// aircraft.created routing key; store is used to claim matching arrivals.
func New(url, queueName string, st store.Store, log *zap.Logger) *Listener {
	return &Listener{url: url, queueName: queueName, store: st, log: log}
}

// Run blocks, consuming messages and reconnecting with exponential backoff
// (capped at 30s per spec §4.G) until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	b := backoff.NewExponentialBackOff()
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0

	for {
		if ctx.Err() != nil {
			return
		}
		if err := l.consumeOnce(ctx); err != nil {
			wait := b.NextBackOff()
			l.log.Warn("spawn listener disconnected, backing off",
				zap.Error(err), zap.Duration("wait", wait))
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
			continue
		}
		b.Reset()
	}
}

// consumeOnce dials, declares the queue, and drains deliveries until the
// connection drops or ctx is cancelled. A dropped connection is not a fatal
// error for the engine (spec §4.G): Run reconnects.
func (l *Listener) consumeOnce(ctx context.Context) error {
	conn, err := amqp.Dial(l.url)
	if err != nil {
		return fmt.Errorf("spawn: dial: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("spawn: channel: %w", err)
	}
	defer ch.Close()

	q, err := ch.QueueDeclare(l.queueName, false, true, false, false, nil)
	if err != nil {
		return fmt.Errorf("spawn: declare queue: %w", err)
	}

	deliveries, err := ch.Consume(q.Name, "", true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("spawn: consume: %w", err)
	}

	closed := conn.NotifyClose(make(chan *amqp.Error, 1))

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-closed:
			if err != nil {
				return fmt.Errorf("spawn: connection closed: %w", err)
			}
			return fmt.Errorf("spawn: connection closed")
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("spawn: delivery channel closed")
			}
			l.handle(ctx, d)
		}
	}
}

func (l *Listener) handle(ctx context.Context, d amqp.Delivery) {
	var msg createdMessage
	if err := json.Unmarshal(d.Body, &msg); err != nil {
		l.log.Warn("spawn: malformed aircraft.created payload", zap.Error(err))
		return
	}
	if msg.Data.Aircraft.FlightType != "ARRIVAL" {
		return
	}
	id := msg.Data.Aircraft.ID
	if err := l.store.ClaimArrival(ctx, id); err != nil {
		l.log.Warn("spawn: claim_arrival failed", zap.Int64("id", id), zap.Error(err))
		return
	}
	l.log.Info("spawn: claimed arrival", zap.Int64("id", id))
}
