// Command atc-engine runs the deterministic arrival simulation loop: it
// loads configuration and the airspace layout, opens the store and
// publisher, starts the spawn-claim listener and telemetry sink, and then
// drives the fixed-rate tick scheduler until interrupted or its configured
// duration elapses (spec §6 "CLI surface").
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/atc-sim/arrival-engine/internal/config"
	"github.com/atc-sim/arrival-engine/internal/enginerr"
	"github.com/atc-sim/arrival-engine/internal/logging"
	"github.com/atc-sim/arrival-engine/internal/publish"
	"github.com/atc-sim/arrival-engine/internal/scheduler"
	"github.com/atc-sim/arrival-engine/internal/spawn"
	"github.com/atc-sim/arrival-engine/internal/store"
	"github.com/atc-sim/arrival-engine/internal/telemetry"
)

func main() {
	configPath := flag.String("config", "", "path to an optional config file (yaml/json/toml, viper-compatible)")
	duration := flag.Duration("duration", 0, "stop automatically after this long (0 = run until interrupted)")
	seed := flag.Int64("seed", 0, "PRNG seed override (0 = use configured/default seed)")
	printConfig := flag.Bool("print-config", false, "print the resolved configuration (secrets redacted) and exit")
	dev := flag.Bool("dev", false, "use human-readable development logging instead of JSON")
	flag.Parse()

	v, err := config.New(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "atc-engine: %s\n", err)
		os.Exit(exitCode(err))
	}
	if *duration > 0 {
		v.Set("duration_seconds", int(duration.Seconds()))
	}
	if *seed != 0 {
		v.Set("seed", *seed)
	}
	if *dev {
		v.Set("dev", true)
	}

	if *printConfig {
		out, err := json.MarshalIndent(config.Redacted(v), "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "atc-engine: marshal config: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(string(out))
		return
	}

	cfg, err := config.Load(v)
	if err != nil {
		fmt.Fprintf(os.Stderr, "atc-engine: %s\n", err)
		os.Exit(exitCode(err))
	}

	log, err := logging.New(cfg.Dev)
	if err != nil {
		fmt.Fprintf(os.Stderr, "atc-engine: build logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync() //nolint:errcheck // best-effort flush on exit

	airspaceCfg, err := config.LoadAirspace(cfg.AirspaceConfig)
	if err != nil {
		log.Sugar().Errorf("load airspace config: %v", err)
		os.Exit(exitCode(err))
	}
	airspaceCfg.Airport.ICAO = cfg.AirportICAO
	if cfg.AirportLat != 0 || cfg.AirportLon != 0 {
		airspaceCfg.Airport.Lat = cfg.AirportLat
		airspaceCfg.Airport.Lon = cfg.AirportLon
	}
	if cfg.AirportElevation != 0 {
		airspaceCfg.Airport.ElevationFt = cfg.AirportElevation
	}

	ctx, cancel := context.WithCancel(context.Background())
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	defer func() {
		signal.Stop(sig)
		cancel()
	}()
	go func() {
		select {
		case <-sig:
			log.Info("shutdown signal received")
			cancel()
		case <-ctx.Done():
		}
	}()

	st, err := store.Open(ctx, cfg.StoreDSN)
	if err != nil {
		log.Sugar().Errorf("open store: %v", err)
		os.Exit(exitCode(err))
	}
	defer st.Close()

	pub, err := publish.NewAMQPPublisher(cfg.PubSubURL, cfg.ChannelName)
	if err != nil {
		log.Sugar().Errorf("open publisher: %v", err)
		os.Exit(exitCode(err))
	}
	defer pub.Close()

	tel, err := telemetry.Open(cfg.TelemetryDir, time.Now().UTC().Format("20060102T150405Z"), log.Named(logging.Telemetry))
	if err != nil {
		log.Sugar().Errorf("open telemetry sink: %v", err)
		os.Exit(1)
	}
	defer tel.Close()

	listener := spawn.New(cfg.PubSubURL, cfg.SpawnQueueName, st, log.Named(logging.Spawn))
	go listener.Run(ctx)

	sched := scheduler.New(st, pub, tel, log.Named(logging.Scheduler), scheduler.Params{
		Airspace:    airspaceCfg,
		TickRate:    time.Duration(float64(time.Second) / cfg.TickRateHz),
		Seed:        cfg.Seed,
		CallTimeout: cfg.CallTimeout,
	})

	if err := sched.Run(ctx, time.Duration(float64(time.Second)/cfg.TickRateHz), cfg.Duration); err != nil {
		log.Sugar().Errorf("scheduler exited with error: %v", err)
		os.Exit(1)
	}
}

// exitCode maps an enginerr.Kind to the process exit codes of spec §7:
// config errors exit 1, fatal store errors exit 2, anything unclassified
// also exits 1.
func exitCode(err error) int {
	if enginerr.IsKind(err, enginerr.StoreFatal) {
		return 2
	}
	return 1
}
