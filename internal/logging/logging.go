// Package logging builds the engine's structured zap logger, replacing the
// teacher's ad hoc fmt.Fprintf(os.Stderr, ...) calls with leveled, named
// sub-loggers per component (spec §9; SPEC_FULL.md AMBIENT STACK/Logging).
package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// New builds the root logger. dev selects zap.NewDevelopment (console,
// colorized) over zap.NewProduction (JSON to stdout), mirroring the
// teacher's flag-driven config style via the --dev / ATC_ENGINE_DEV switch.
func New(dev bool) (*zap.Logger, error) {
	var log *zap.Logger
	var err error
	if dev {
		log, err = zap.NewDevelopment()
	} else {
		log, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("logging: build logger: %w", err)
	}
	return log, nil
}

// Named sub-logger names for the engine's components and its config
// layer. Not every component of spec §2's table has one.
const (
	Scheduler = "engine.scheduler"
	Store     = "engine.store"
	Publisher = "engine.publisher"
	Spawn     = "engine.spawn"
	Telemetry = "engine.telemetry"
	Config    = "engine.config"
)
