// Package enginerr defines the tagged error kinds of spec §7, so call sites
// can dispatch on Kind with errors.As instead of string-matching or relying
// on exception-style control flow (spec §9).
package enginerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for the purposes of spec §7's recovery policy.
type Kind string

const (
	// ConfigError is fatal at startup (exit 1): missing/invalid airspace
	// config, missing credentials.
	ConfigError Kind = "config_error"
	// StoreTransient is a read/write timeout or connection loss. Logged;
	// the per-flight operation is skipped for this tick; the engine
	// continues.
	StoreTransient Kind = "store_transient"
	// StoreFatal is a schema mismatch or authentication failure. Logged;
	// the engine stops with exit 2.
	StoreFatal Kind = "store_fatal"
	// PublishTransient means the publisher is unavailable. Logged; events
	// for this tick are not published but state is still persisted.
	PublishTransient Kind = "publish_transient"
	// InvalidState means a flight's stored fields violate the §3 bounds.
	// Logged with the flight id; the flight is skipped for this tick with
	// no state mutation.
	InvalidState Kind = "invalid_state"
	// TickOverrun means a tick exceeded its time budget. Warn at 100ms,
	// error (not fatal) at 200ms.
	TickOverrun Kind = "tick_overrun"
)

// Classified wraps an underlying error with the Kind needed to apply §7's
// policy table at the call site.
type Classified struct {
	kind Kind
	err  error
}

// New returns a Classified error of the given kind wrapping err.
func New(kind Kind, err error) *Classified {
	return &Classified{kind: kind, err: err}
}

// Newf builds a Classified error from a format string, like fmt.Errorf.
func Newf(kind Kind, format string, args ...any) *Classified {
	return &Classified{kind: kind, err: fmt.Errorf(format, args...)}
}

// Kind reports the error's classification.
func (c *Classified) Kind() Kind { return c.kind }

// Error implements the error interface.
func (c *Classified) Error() string {
	return fmt.Sprintf("%s: %s", c.kind, c.err)
}

// Unwrap exposes the wrapped error for errors.Is/errors.As.
func (c *Classified) Unwrap() error { return c.err }

// IsKind reports whether err is a Classified error of the given kind.
func IsKind(err error, kind Kind) bool {
	var c *Classified
	if !errors.As(err, &c) {
		return false
	}
	return c.kind == kind
}
