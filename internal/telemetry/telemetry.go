// Package telemetry implements component I: an append-only, buffered
// JSON-lines snapshot log, one file per engine run named with its UTC start
// timestamp (spec §6 "Telemetry sink").
package telemetry

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// schemaVersion is carried on every line so downstream consumers of the
// append-only log can evolve independently of the engine's internal types.
const schemaVersion = 1

// flushEvery is the number of buffered snapshots between automatic flushes
// (spec §4.H step 4: "every 100 snapshots, flush telemetry").
const flushEvery = 100

// Snapshot is one buffered telemetry line. Data is whatever the caller
// wants recorded for the tick: per-flight kinematic state, sector, events.
type Snapshot struct {
	RunID string
	Tick  int64
	Data  map[string]any
}

// Sink is the append-only telemetry writer the scheduler drives once per
// tick (buffer) and flushes periodically or on shutdown.
type Sink struct {
	mu           sync.Mutex
	f            *os.File
	w            *bufio.Writer
	log          *zap.Logger
	pending      int
	flushLimiter *rate.Limiter
}

// Open creates a new telemetry file under dir named with startUTC (an
// RFC3339-ish, filename-safe UTC timestamp string supplied by the caller,
// since this package never calls time.Now() itself to stay test-friendly).
func Open(dir, startUTC string, log *zap.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("telemetry: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, fmt.Sprintf("run-%s.jsonl", startUTC))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("telemetry: open %s: %w", path, err)
	}
	return &Sink{
		f:   f,
		w:   bufio.NewWriter(f),
		log: log,
		// Caps how often a caller-initiated PeriodicFlush can hit disk,
		// independent of the every-100-snapshots auto-flush in Append.
		flushLimiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}, nil
}

// PeriodicFlush flushes if the flush-rate limiter allows it, otherwise it is
// a no-op. Intended for a caller that wants to flush opportunistically
// between the every-100-snapshot auto-flush without hammering the disk on
// every tick (spec §4.H step 4's "every 100 snapshots" cadence is the hard
// guarantee; this is an optional, rate-limited extra).
func (s *Sink) PeriodicFlush(ctx context.Context) error {
	if !s.flushLimiter.Allow() {
		return nil
	}
	return s.Flush()
}

// Append buffers one snapshot line. It flushes automatically every 100
// appends; callers don't need to call Flush themselves except at shutdown.
func (s *Sink) Append(snap Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	line := map[string]any{
		"schema_version": schemaVersion,
		"run_id":         snap.RunID,
		"tick":           snap.Tick,
	}
	for k, v := range snap.Data {
		line[k] = v
	}

	body, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("telemetry: marshal snapshot: %w", err)
	}
	if _, err := s.w.Write(body); err != nil {
		return fmt.Errorf("telemetry: write: %w", err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("telemetry: write newline: %w", err)
	}

	s.pending++
	if s.pending >= flushEvery {
		if err := s.flushLocked(); err != nil {
			return err
		}
	}
	return nil
}

// Flush forces any buffered lines to disk, for use at shutdown.
func (s *Sink) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.flushLocked()
}

func (s *Sink) flushLocked() error {
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("telemetry: flush: %w", err)
	}
	s.pending = 0
	if s.log != nil {
		s.log.Debug("telemetry flushed")
	}
	return nil
}

// Close flushes and closes the underlying file.
func (s *Sink) Close() error {
	if err := s.Flush(); err != nil {
		s.f.Close()
		return err
	}
	return s.f.Close()
}
