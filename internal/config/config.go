// Package config loads the environment and JSON-override configuration for
// the screening core, following the same pointer-field JSON-override shape
// the teacher repo uses for its tuning defaults (internal/config/tuning.go).
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// DefaultConfigPath is the optional JSON overrides file. Absence is not an
// error: every field has a built-in default.
const DefaultConfigPath = "config/stx.overrides.json"

// Config holds every environment-derived and tunable setting the core reads
// at startup. Fields absent from the overrides file keep their defaults.
type Config struct {
	// Server
	Port string `json:"-"`

	// Upstream catalog & live TLE credentials. A missing SpacetrackUser or
	// SpacetrackPass disables live fetching; the core still services
	// fleet-mode requests from an uploaded file alone.
	SpacetrackUser string `json:"-"`
	SpacetrackPass string `json:"-"`

	// Text Generator credential. A missing key disables narrative
	// generation; the canned fallback string is used instead.
	XAIAPIKey string `json:"-"`

	// Catalog cache
	CatalogTTL *string `json:"catalog_ttl,omitempty"` // duration string, e.g. "3h"

	// Stage-1 geometric prefilter margins
	Stage1AltMarginKm *float64 `json:"stage1_alt_margin_km,omitempty"`
	Stage1IncMarginDeg *float64 `json:"stage1_inc_margin_deg,omitempty"`

	// Stage-2 coarse temporal screen
	Stage2HorizonDays   *float64 `json:"stage2_horizon_days,omitempty"`
	Stage2Grid          *int     `json:"stage2_grid,omitempty"`
	Stage2ThresholdKm   *float64 `json:"stage2_threshold_km,omitempty"`

	// C8 dense-grid screener
	ScreenerHorizonDays *float64 `json:"screener_horizon_days,omitempty"`
	ScreenerGrid        *int     `json:"screener_grid,omitempty"`
	RICPlotThresholdKm  *float64 `json:"ric_plot_threshold_km,omitempty"`

	// Job manager
	MaxConcurrentJobs *int `json:"max_concurrent_jobs,omitempty"`
	DefaultCatalogLimit *int `json:"default_catalog_limit,omitempty"`

	// External-call timeout shared by catalog fetch, live TLE fetch and
	// narrative generation (spec.md §5).
	ExternalCallTimeout *string `json:"external_call_timeout,omitempty"`

	// Bearer token expected on the HTTP surface. Empty disables auth
	// (tests only — production deployments must set one).
	AuthToken string `json:"-"`
}

// Resolved is the fully-defaulted, typed view of Config used by the rest of
// the core. Duration strings are parsed once here so downstream components
// never handle parse errors.
type Resolved struct {
	Port                string
	SpacetrackUser      string
	SpacetrackPass      string
	XAIAPIKey           string
	AuthToken           string
	CatalogTTL          time.Duration
	Stage1AltMarginKm   float64
	Stage1IncMarginDeg  float64
	Stage2HorizonDays   float64
	Stage2Grid          int
	Stage2ThresholdKm   float64
	ScreenerHorizonDays float64
	ScreenerGrid        int
	// RICPlotThresholdKm is resolved but not passed to the screener, whose
	// RIC plot threshold is fixed at 10 km.
	RICPlotThresholdKm  float64
	MaxConcurrentJobs   int
	DefaultCatalogLimit int
	ExternalCallTimeout time.Duration
}

// Load reads environment variables and, if present, overlays JSON overrides
// from path (DefaultConfigPath if path is empty). A missing overrides file is
// not an error.
func Load(path string) (*Resolved, error) {
	cfg := &Config{
		Port:           os.Getenv("PORT"),
		SpacetrackUser: os.Getenv("SPACETRACK_USER"),
		SpacetrackPass: os.Getenv("SPACETRACK_PASS"),
		XAIAPIKey:      os.Getenv("XAI_API_KEY"),
		AuthToken:      os.Getenv("STX_AUTH_TOKEN"),
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}

	if path == "" {
		path = DefaultConfigPath
	}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config overrides %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config overrides %s: %w", path, err)
	}

	return cfg.resolve()
}

func (c *Config) resolve() (*Resolved, error) {
	r := &Resolved{
		Port:                c.Port,
		SpacetrackUser:      c.SpacetrackUser,
		SpacetrackPass:      c.SpacetrackPass,
		XAIAPIKey:           c.XAIAPIKey,
		AuthToken:           c.AuthToken,
		CatalogTTL:          3 * time.Hour,
		Stage1AltMarginKm:   150,
		Stage1IncMarginDeg:  30,
		Stage2HorizonDays:   7,
		Stage2Grid:          300,
		Stage2ThresholdKm:   80,
		ScreenerHorizonDays: 7,
		ScreenerGrid:        2000,
		RICPlotThresholdKm:  10,
		MaxConcurrentJobs:   8,
		DefaultCatalogLimit: 5000,
		ExternalCallTimeout: 30 * time.Second,
	}

	var err error
	if r.CatalogTTL, err = overrideDuration(c.CatalogTTL, r.CatalogTTL); err != nil {
		return nil, fmt.Errorf("catalog_ttl: %w", err)
	}
	if r.ExternalCallTimeout, err = overrideDuration(c.ExternalCallTimeout, r.ExternalCallTimeout); err != nil {
		return nil, fmt.Errorf("external_call_timeout: %w", err)
	}
	overrideFloat(c.Stage1AltMarginKm, &r.Stage1AltMarginKm)
	overrideFloat(c.Stage1IncMarginDeg, &r.Stage1IncMarginDeg)
	overrideFloat(c.Stage2HorizonDays, &r.Stage2HorizonDays)
	overrideInt(c.Stage2Grid, &r.Stage2Grid)
	overrideFloat(c.Stage2ThresholdKm, &r.Stage2ThresholdKm)
	overrideFloat(c.ScreenerHorizonDays, &r.ScreenerHorizonDays)
	overrideInt(c.ScreenerGrid, &r.ScreenerGrid)
	overrideFloat(c.RICPlotThresholdKm, &r.RICPlotThresholdKm)
	overrideInt(c.MaxConcurrentJobs, &r.MaxConcurrentJobs)
	overrideInt(c.DefaultCatalogLimit, &r.DefaultCatalogLimit)

	return r, nil
}

func overrideFloat(src *float64, dst *float64) {
	if src != nil {
		*dst = *src
	}
}

func overrideInt(src *int, dst *int) {
	if src != nil {
		*dst = *src
	}
}

func overrideDuration(src *string, def time.Duration) (time.Duration, error) {
	if src == nil {
		return def, nil
	}
	return time.ParseDuration(*src)
}

// HasCatalogCredentials reports whether live catalog/TLE fetching is
// possible. A missing credential disables live fetching per spec.md §6; the
// core must still service fleet-mode requests from an uploaded file alone.
func (r *Resolved) HasCatalogCredentials() bool {
	return r.SpacetrackUser != "" && r.SpacetrackPass != ""
}

// HasNarrativeCredentials reports whether the Text Generator can be called.
func (r *Resolved) HasNarrativeCredentials() bool {
	return r.XAIAPIKey != ""
}
