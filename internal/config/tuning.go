package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/greywick-data/potionflow/internal/potion"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// TuningConfig is the externally overridable tuning surface for the
// reconciliation pipeline. Every field is optional; the Get* accessors
// supply the documented defaults so partial config files are safe.
type TuningConfig struct {
	// Drain detection
	NegativeRateThreshold *float64 `json:"negative_rate_threshold,omitempty"` // litres/min, negative
	CloseRateTolerance    *float64 `json:"close_rate_tolerance,omitempty"`    // litres/min
	MinDrainVolume        *float64 `json:"min_drain_volume,omitempty"`        // litres
	EmitOpenDrain         *bool    `json:"emit_open_drain,omitempty"`

	// Ticket matching
	TicketTolerancePct *float64 `json:"ticket_tolerance_pct,omitempty"`
	MatchWindowMinutes *float64 `json:"match_window_minutes,omitempty"`

	// Travel / market handling
	MarketUnloadMinutes *float64 `json:"market_unload_minutes,omitempty"`
	CollectionMinutes   *float64 `json:"collection_minutes,omitempty"`

	// Overflow risk
	HighRiskHours   *float64 `json:"high_risk_hours,omitempty"`
	MediumRiskHours *float64 `json:"medium_risk_hours,omitempty"`

	// Pipeline
	DefaultFillRate *float64 `json:"default_fill_rate,omitempty"` // litres/min
	Workers         *int     `json:"workers,omitempty"`

	// Data retrieval
	BaseURL *string `json:"base_url,omitempty"`
}

// EmptyTuningConfig returns a TuningConfig with all fields unset.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file. Fields omitted
// from the file keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that configured values are usable.
func (c *TuningConfig) Validate() error {
	if c.NegativeRateThreshold != nil && *c.NegativeRateThreshold >= 0 {
		return fmt.Errorf("negative_rate_threshold must be negative, got %f", *c.NegativeRateThreshold)
	}
	if c.MinDrainVolume != nil && *c.MinDrainVolume < 0 {
		return fmt.Errorf("min_drain_volume must be non-negative, got %f", *c.MinDrainVolume)
	}
	if c.TicketTolerancePct != nil && (*c.TicketTolerancePct < 0 || *c.TicketTolerancePct > 100) {
		return fmt.Errorf("ticket_tolerance_pct must be between 0 and 100, got %f", *c.TicketTolerancePct)
	}
	if c.MatchWindowMinutes != nil && *c.MatchWindowMinutes <= 0 {
		return fmt.Errorf("match_window_minutes must be positive, got %f", *c.MatchWindowMinutes)
	}
	if c.HighRiskHours != nil && c.MediumRiskHours != nil && *c.HighRiskHours >= *c.MediumRiskHours {
		return fmt.Errorf("high_risk_hours (%f) must be below medium_risk_hours (%f)", *c.HighRiskHours, *c.MediumRiskHours)
	}
	if c.Workers != nil && *c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", *c.Workers)
	}
	return nil
}

// GetNegativeRateThreshold returns the drain-opening rate threshold or
// the default of -0.05 litres/min.
func (c *TuningConfig) GetNegativeRateThreshold() float64 {
	if c.NegativeRateThreshold == nil {
		return -0.05
	}
	return *c.NegativeRateThreshold
}

// GetCloseRateTolerance returns the drain-closing rate tolerance or the
// default of 0 (any non-negative rate closes the drain).
func (c *TuningConfig) GetCloseRateTolerance() float64 {
	if c.CloseRateTolerance == nil {
		return 0
	}
	return *c.CloseRateTolerance
}

// GetMinDrainVolume returns the minimum collected volume or the default
// of 20 litres.
func (c *TuningConfig) GetMinDrainVolume() float64 {
	if c.MinDrainVolume == nil {
		return 20.0
	}
	return *c.MinDrainVolume
}

// GetEmitOpenDrain returns whether a drain still open at the end of the
// series is emitted (default) or discarded as truncated.
func (c *TuningConfig) GetEmitOpenDrain() bool {
	if c.EmitOpenDrain == nil {
		return true
	}
	return *c.EmitOpenDrain
}

// GetTicketTolerancePct returns the match tolerance or the default of 2%.
func (c *TuningConfig) GetTicketTolerancePct() float64 {
	if c.TicketTolerancePct == nil {
		return 2.0
	}
	return *c.TicketTolerancePct
}

// GetMatchWindowMinutes returns the half-width of the ticket acceptance
// window or the default of 720 minutes (a ticket anywhere on the same
// day as the expected market arrival is a candidate).
func (c *TuningConfig) GetMatchWindowMinutes() float64 {
	if c.MatchWindowMinutes == nil {
		return 720
	}
	return *c.MatchWindowMinutes
}

// GetMarketUnloadMinutes returns the market unload time or the default
// of 15 minutes.
func (c *TuningConfig) GetMarketUnloadMinutes() float64 {
	if c.MarketUnloadMinutes == nil {
		return 15
	}
	return *c.MarketUnloadMinutes
}

// GetCollectionMinutes returns the per-cauldron collection time or the
// default of 15 minutes.
func (c *TuningConfig) GetCollectionMinutes() float64 {
	if c.CollectionMinutes == nil {
		return 15
	}
	return *c.CollectionMinutes
}

// GetHighRiskHours returns the HIGH tier bound or the default of 12 hours.
func (c *TuningConfig) GetHighRiskHours() float64 {
	if c.HighRiskHours == nil {
		return 12
	}
	return *c.HighRiskHours
}

// GetMediumRiskHours returns the MEDIUM tier bound or the default of 24 hours.
func (c *TuningConfig) GetMediumRiskHours() float64 {
	if c.MediumRiskHours == nil {
		return 24
	}
	return *c.MediumRiskHours
}

// GetDefaultFillRate returns the fallback fill rate for cauldrons that
// never filled while observed. Default 0.
func (c *TuningConfig) GetDefaultFillRate() float64 {
	if c.DefaultFillRate == nil {
		return 0
	}
	return *c.DefaultFillRate
}

// GetWorkers returns the per-cauldron analysis pool size or the default of 4.
func (c *TuningConfig) GetWorkers() int {
	if c.Workers == nil {
		return 4
	}
	return *c.Workers
}

// GetBaseURL returns the telemetry API base URL or its default.
func (c *TuningConfig) GetBaseURL() string {
	if c.BaseURL == nil || *c.BaseURL == "" {
		return "https://hackutd2025.eog.systems"
	}
	return *c.BaseURL
}

// Params assembles the pipeline parameter set from the tuning config.
func (c *TuningConfig) Params() potion.Params {
	return potion.Params{
		Detector: potion.DetectorConfig{
			NegativeRateThreshold: c.GetNegativeRateThreshold(),
			CloseRateTolerance:    c.GetCloseRateTolerance(),
			MinDrainVolume:        c.GetMinDrainVolume(),
			EmitOpenDrain:         c.GetEmitOpenDrain(),
		},
		Matcher: potion.MatcherConfig{
			TolerancePct:  c.GetTicketTolerancePct(),
			WindowMinutes: c.GetMatchWindowMinutes(),
		},
		Risk: potion.RiskConfig{
			HighHours:         c.GetHighRiskHours(),
			MediumHours:       c.GetMediumRiskHours(),
			CollectionMinutes: c.GetCollectionMinutes(),
			UnloadMinutes:     c.GetMarketUnloadMinutes(),
		},
		DefaultFillRate: c.GetDefaultFillRate(),
		Workers:         c.GetWorkers(),
	}
}
