package airspace

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/atc-sim/arrival-engine/internal/flight"
)

// fileLayout mirrors the persisted airspace configuration JSON of spec §6:
// {airport: {...}, sectors: [...], entry_fixes: [...], spawn: {...}}.
type fileLayout struct {
	Airport struct {
		ICAO        string  `json:"icao"`
		Lat         float64 `json:"lat"`
		Lon         float64 `json:"lon"`
		ElevationFt float64 `json:"elevation_ft"`
	} `json:"airport"`
	Sectors []struct {
		Name                string  `json:"name"`
		RInnerNM            float64 `json:"r_inner_nm"`
		ROuterNM            float64 `json:"r_outer_nm"`
		AltMinFt            float64 `json:"alt_min_ft"`
		AltMaxFt            float64 `json:"alt_max_ft"`
		HysteresisNM        float64 `json:"hysteresis_nm"`
		StableTicksRequired int     `json:"stable_ticks_required"`
	} `json:"sectors"`
	EntryFixes []struct {
		Name       string  `json:"name"`
		Lat        float64 `json:"lat"`
		Lon        float64 `json:"lon"`
		BearingDeg float64 `json:"bearing_deg"`
	} `json:"entry_fixes"`
	Spawn struct {
		RadiusMinNM float64 `json:"radius_min_nm"`
		RadiusMaxNM float64 `json:"radius_max_nm"`
		AltMinFt    float64 `json:"alt_min_ft"`
		AltMaxFt    float64 `json:"alt_max_ft"`
		SpeedMinKts float64 `json:"speed_min_kts"`
		SpeedMaxKts float64 `json:"speed_max_kts"`
	} `json:"spawn"`
}

// LoadFile reads and parses the airspace configuration JSON at path into a
// Config. It performs no validation beyond well-formed JSON; call Validate
// on the result.
func LoadFile(path string) (Config, error) {
	body, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("airspace: read %s: %w", path, err)
	}

	var fl fileLayout
	if err := json.Unmarshal(body, &fl); err != nil {
		return Config{}, fmt.Errorf("airspace: parse %s: %w", path, err)
	}

	cfg := Config{
		Airport: Airport{
			ICAO:        fl.Airport.ICAO,
			Lat:         fl.Airport.Lat,
			Lon:         fl.Airport.Lon,
			ElevationFt: fl.Airport.ElevationFt,
		},
		Spawn: SpawnZone{
			RadiusMinNM: fl.Spawn.RadiusMinNM,
			RadiusMaxNM: fl.Spawn.RadiusMaxNM,
			AltMinFt:    fl.Spawn.AltMinFt,
			AltMaxFt:    fl.Spawn.AltMaxFt,
			SpeedMinKts: fl.Spawn.SpeedMinKts,
			SpeedMaxKts: fl.Spawn.SpeedMaxKts,
		},
	}
	for _, s := range fl.Sectors {
		cfg.Sectors = append(cfg.Sectors, SectorRing{
			Name:                flight.Sector(s.Name),
			RInnerNM:            s.RInnerNM,
			ROuterNM:            s.ROuterNM,
			AltMinFt:            s.AltMinFt,
			AltMaxFt:            s.AltMaxFt,
			HysteresisNM:        s.HysteresisNM,
			StableTicksRequired: s.StableTicksRequired,
		})
	}
	for _, f := range fl.EntryFixes {
		cfg.EntryFixes = append(cfg.EntryFixes, EntryFix{
			Name:       f.Name,
			Lat:        f.Lat,
			Lon:        f.Lon,
			BearingDeg: f.BearingDeg,
		})
	}
	return cfg, nil
}

// Validate checks the structural invariants a loaded Config must satisfy
// before the engine trusts it: radii and altitude bands must be monotonic,
// no two rings may share an outer radius or overlap in both radius and
// altitude, every ring needs at least one stable tick required, and there must be at
// least one entry fix (SPEC_FULL.md SUPPLEMENTED FEATURES: config validation
// surface).
func Validate(cfg Config) error {
	if cfg.Airport.ICAO == "" {
		return fmt.Errorf("airspace: airport.icao is required")
	}
	if len(cfg.Sectors) == 0 {
		return fmt.Errorf("airspace: sectors must not be empty")
	}
	if len(cfg.EntryFixes) == 0 {
		return fmt.Errorf("airspace: entry_fixes must not be empty")
	}

	byOuter := make(map[float64]SectorRing, len(cfg.Sectors))
	for _, s := range cfg.Sectors {
		if s.RInnerNM < 0 || s.ROuterNM <= s.RInnerNM {
			return fmt.Errorf("airspace: sector %s has non-monotonic radii [%v, %v]", s.Name, s.RInnerNM, s.ROuterNM)
		}
		if s.AltMaxFt <= s.AltMinFt {
			return fmt.Errorf("airspace: sector %s has non-monotonic altitude band [%v, %v]", s.Name, s.AltMinFt, s.AltMaxFt)
		}
		if s.StableTicksRequired < 1 {
			return fmt.Errorf("airspace: sector %s stable_ticks_required must be >= 1, got %d", s.Name, s.StableTicksRequired)
		}
		if s.HysteresisNM < 0 {
			return fmt.Errorf("airspace: sector %s hysteresis_nm must be >= 0", s.Name)
		}
		if existing, ok := byOuter[s.ROuterNM]; ok {
			return fmt.Errorf("airspace: sectors %s and %s both have outer radius %v", existing.Name, s.Name, s.ROuterNM)
		}
		byOuter[s.ROuterNM] = s
	}

	for _, s := range cfg.Sectors {
		for _, other := range cfg.Sectors {
			if s.Name == other.Name {
				continue
			}
			if overlapsRadius(s, other) && overlapsAltitude(s, other) {
				return fmt.Errorf("airspace: sectors %s and %s overlap in both radius and altitude", s.Name, other.Name)
			}
		}
	}
	return nil
}

func overlapsRadius(a, b SectorRing) bool {
	return a.RInnerNM < b.ROuterNM && b.RInnerNM < a.ROuterNM
}

func overlapsAltitude(a, b SectorRing) bool {
	return a.AltMinFt < b.AltMaxFt && b.AltMinFt < a.AltMaxFt
}
