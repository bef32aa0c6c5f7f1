// Package config loads the planner tuning parameters from JSON. Fields are
// pointer-typed so partial configs are safe: anything omitted falls back to
// the documented default via the Get* accessors.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Defaults applied when a field is absent from the config file.
const (
	DefaultCorridorWidthM      = 0.3
	DefaultCorridorLengthM     = 1.0
	DefaultFloorToleranceM     = 0.5
	DefaultOffRouteThresholdM  = 5.0
	DefaultProximityRadiusM    = 1.0
	DefaultDetourDeltaDeg      = 0.0001
	DefaultFallbackAltitudeM   = 0.0
	DefaultFeedAddr            = ":8977"
	DefaultFeedReadBuffer      = 65536
	DefaultStatusLogInterval   = time.Minute
	maxConfigFileSize          = 1 * 1024 * 1024
	statusLogIntervalFieldName = "status_log_interval"
)

// PlannerConfig is the root configuration for the planner daemon and the
// pipeline tunables.
type PlannerConfig struct {
	// Corridor params
	CorridorWidthM  *float64 `json:"corridor_width_m,omitempty"`
	CorridorLengthM *float64 `json:"corridor_length_m,omitempty"`
	FloorToleranceM *float64 `json:"floor_tolerance_m,omitempty"`

	// Route planner params
	OffRouteThresholdM *float64 `json:"off_route_threshold_m,omitempty"`
	ProximityRadiusM   *float64 `json:"proximity_radius_m,omitempty"`
	DetourDeltaDeg     *float64 `json:"detour_delta_deg,omitempty"`

	// Anchor params
	FallbackAltitudeM *float64 `json:"fallback_altitude_m,omitempty"`

	// Feed params
	FeedAddr       *string `json:"feed_addr,omitempty"`
	FeedReadBuffer *int    `json:"feed_read_buffer,omitempty"`

	// Daemon params
	StatusLogInterval *string `json:"status_log_interval,omitempty"` // duration string like "60s"
}

// Load reads a PlannerConfig from a JSON file. The file must carry a .json
// extension and stay under the size cap. Omitted fields retain defaults, so
// partial configs are safe.
func Load(path string) (*PlannerConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	info, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), maxConfigFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &PlannerConfig{}
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects values that would break the geometric filters or the
// planner. Nil fields are always valid (they take defaults).
func (c *PlannerConfig) Validate() error {
	positive := map[string]*float64{
		"corridor_width_m":      c.CorridorWidthM,
		"corridor_length_m":     c.CorridorLengthM,
		"off_route_threshold_m": c.OffRouteThresholdM,
		"proximity_radius_m":    c.ProximityRadiusM,
	}
	for name, v := range positive {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%s must be > 0, got %v", name, *v)
		}
	}
	if c.FloorToleranceM != nil && *c.FloorToleranceM < 0 {
		return fmt.Errorf("floor_tolerance_m must be >= 0, got %v", *c.FloorToleranceM)
	}
	if c.DetourDeltaDeg != nil && *c.DetourDeltaDeg <= 0 {
		return fmt.Errorf("detour_delta_deg must be > 0, got %v", *c.DetourDeltaDeg)
	}
	if c.FeedReadBuffer != nil && *c.FeedReadBuffer <= 0 {
		return fmt.Errorf("feed_read_buffer must be > 0, got %v", *c.FeedReadBuffer)
	}
	if c.StatusLogInterval != nil {
		if _, err := time.ParseDuration(*c.StatusLogInterval); err != nil {
			return fmt.Errorf("%s: %w", statusLogIntervalFieldName, err)
		}
	}
	return nil
}

func getFloat(v *float64, def float64) float64 {
	if v != nil {
		return *v
	}
	return def
}

// GetCorridorWidthM returns the full corridor width in metres.
func (c *PlannerConfig) GetCorridorWidthM() float64 {
	return getFloat(c.CorridorWidthM, DefaultCorridorWidthM)
}

// GetCorridorLengthM returns the corridor length in metres.
func (c *PlannerConfig) GetCorridorLengthM() float64 {
	return getFloat(c.CorridorLengthM, DefaultCorridorLengthM)
}

// GetFloorToleranceM returns the floor-height cutoff below the observer.
func (c *PlannerConfig) GetFloorToleranceM() float64 {
	return getFloat(c.FloorToleranceM, DefaultFloorToleranceM)
}

// GetOffRouteThresholdM returns the off-route distance threshold.
func (c *PlannerConfig) GetOffRouteThresholdM() float64 {
	return getFloat(c.OffRouteThresholdM, DefaultOffRouteThresholdM)
}

// GetProximityRadiusM returns the waypoint/obstacle proximity radius.
func (c *PlannerConfig) GetProximityRadiusM() float64 {
	return getFloat(c.ProximityRadiusM, DefaultProximityRadiusM)
}

// GetDetourDeltaDeg returns the fixed detour displacement in degrees.
func (c *PlannerConfig) GetDetourDeltaDeg() float64 {
	return getFloat(c.DetourDeltaDeg, DefaultDetourDeltaDeg)
}

// GetFallbackAltitudeM returns the anchor altitude used when no observer
// altitude is known.
func (c *PlannerConfig) GetFallbackAltitudeM() float64 {
	return getFloat(c.FallbackAltitudeM, DefaultFallbackAltitudeM)
}

// GetFeedAddr returns the UDP listen address for the snapshot feed.
func (c *PlannerConfig) GetFeedAddr() string {
	if c.FeedAddr != nil {
		return *c.FeedAddr
	}
	return DefaultFeedAddr
}

// GetFeedReadBuffer returns the feed datagram buffer size in bytes.
func (c *PlannerConfig) GetFeedReadBuffer() int {
	if c.FeedReadBuffer != nil {
		return *c.FeedReadBuffer
	}
	return DefaultFeedReadBuffer
}

// GetStatusLogInterval returns how often the daemon logs pipeline stats.
func (c *PlannerConfig) GetStatusLogInterval() time.Duration {
	if c.StatusLogInterval != nil {
		if d, err := time.ParseDuration(*c.StatusLogInterval); err == nil {
			return d
		}
	}
	return DefaultStatusLogInterval
}
