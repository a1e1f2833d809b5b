package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmptyTuningConfigDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	if cfg.GetNegativeRateThreshold() != -0.05 {
		t.Errorf("GetNegativeRateThreshold() = %f, want -0.05", cfg.GetNegativeRateThreshold())
	}
	if cfg.GetCloseRateTolerance() != 0 {
		t.Errorf("GetCloseRateTolerance() = %f, want 0", cfg.GetCloseRateTolerance())
	}
	if cfg.GetMinDrainVolume() != 20.0 {
		t.Errorf("GetMinDrainVolume() = %f, want 20", cfg.GetMinDrainVolume())
	}
	if cfg.GetEmitOpenDrain() != true {
		t.Errorf("GetEmitOpenDrain() = %v, want true", cfg.GetEmitOpenDrain())
	}
	if cfg.GetTicketTolerancePct() != 2.0 {
		t.Errorf("GetTicketTolerancePct() = %f, want 2", cfg.GetTicketTolerancePct())
	}
	if cfg.GetMatchWindowMinutes() != 720 {
		t.Errorf("GetMatchWindowMinutes() = %f, want 720", cfg.GetMatchWindowMinutes())
	}
	if cfg.GetMarketUnloadMinutes() != 15 {
		t.Errorf("GetMarketUnloadMinutes() = %f, want 15", cfg.GetMarketUnloadMinutes())
	}
	if cfg.GetCollectionMinutes() != 15 {
		t.Errorf("GetCollectionMinutes() = %f, want 15", cfg.GetCollectionMinutes())
	}
	if cfg.GetHighRiskHours() != 12 {
		t.Errorf("GetHighRiskHours() = %f, want 12", cfg.GetHighRiskHours())
	}
	if cfg.GetMediumRiskHours() != 24 {
		t.Errorf("GetMediumRiskHours() = %f, want 24", cfg.GetMediumRiskHours())
	}
	if cfg.GetDefaultFillRate() != 0 {
		t.Errorf("GetDefaultFillRate() = %f, want 0", cfg.GetDefaultFillRate())
	}
	if cfg.GetWorkers() != 4 {
		t.Errorf("GetWorkers() = %d, want 4", cfg.GetWorkers())
	}
	if cfg.GetBaseURL() != "https://hackutd2025.eog.systems" {
		t.Errorf("GetBaseURL() = %q, want default", cfg.GetBaseURL())
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "negative_rate_threshold": -0.1,
  "min_drain_volume": 50,
  "emit_open_drain": false,
  "ticket_tolerance_pct": 5,
  "workers": 2
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.NegativeRateThreshold == nil || *cfg.NegativeRateThreshold != -0.1 {
		t.Errorf("Expected NegativeRateThreshold -0.1, got %v", cfg.NegativeRateThreshold)
	}
	if cfg.GetMinDrainVolume() != 50 {
		t.Errorf("GetMinDrainVolume() = %f, want 50", cfg.GetMinDrainVolume())
	}
	if cfg.GetEmitOpenDrain() != false {
		t.Errorf("GetEmitOpenDrain() = %v, want false", cfg.GetEmitOpenDrain())
	}
	if cfg.GetTicketTolerancePct() != 5 {
		t.Errorf("GetTicketTolerancePct() = %f, want 5", cfg.GetTicketTolerancePct())
	}
	if cfg.GetWorkers() != 2 {
		t.Errorf("GetWorkers() = %d, want 2", cfg.GetWorkers())
	}

	// Omitted fields keep their defaults.
	if cfg.GetMatchWindowMinutes() != 720 {
		t.Errorf("GetMatchWindowMinutes() = %f, want 720", cfg.GetMatchWindowMinutes())
	}
	if cfg.GetHighRiskHours() != 12 {
		t.Errorf("GetHighRiskHours() = %f, want 12", cfg.GetHighRiskHours())
	}
}

func TestLoadTuningConfigErrors(t *testing.T) {
	tmpDir := t.TempDir()

	writeConfig := func(name, content string) string {
		path := filepath.Join(tmpDir, name)
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
		return path
	}

	tests := []struct {
		name    string
		path    string
		errPart string
	}{
		{"wrong extension", writeConfig("config.yaml", "{}"), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "absent.json"), "stat"},
		{"malformed json", writeConfig("bad.json", "{not json"), "parse"},
		{"positive threshold", writeConfig("thr.json", `{"negative_rate_threshold": 0.1}`), "must be negative"},
		{"negative min volume", writeConfig("vol.json", `{"min_drain_volume": -5}`), "non-negative"},
		{"tolerance out of range", writeConfig("tol.json", `{"ticket_tolerance_pct": 150}`), "between 0 and 100"},
		{"zero window", writeConfig("win.json", `{"match_window_minutes": 0}`), "positive"},
		{"inverted risk bounds", writeConfig("risk.json", `{"high_risk_hours": 24, "medium_risk_hours": 12}`), "below"},
		{"zero workers", writeConfig("wrk.json", `{"workers": 0}`), "at least 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(tt.path)
			if err == nil {
				t.Fatalf("LoadTuningConfig(%s) expected error", tt.path)
			}
			if !strings.Contains(err.Error(), tt.errPart) {
				t.Errorf("error %q does not mention %q", err, tt.errPart)
			}
		})
	}
}

func TestParamsAssembly(t *testing.T) {
	threshold := -0.2
	window := 60.0
	workers := 8
	cfg := &TuningConfig{
		NegativeRateThreshold: &threshold,
		MatchWindowMinutes:    &window,
		Workers:               &workers,
	}

	p := cfg.Params()
	if p.Detector.NegativeRateThreshold != -0.2 {
		t.Errorf("Detector.NegativeRateThreshold = %f, want -0.2", p.Detector.NegativeRateThreshold)
	}
	if p.Detector.MinDrainVolume != 20 {
		t.Errorf("Detector.MinDrainVolume = %f, want default 20", p.Detector.MinDrainVolume)
	}
	if p.Matcher.WindowMinutes != 60 {
		t.Errorf("Matcher.WindowMinutes = %f, want 60", p.Matcher.WindowMinutes)
	}
	if p.Risk.UnloadMinutes != 15 {
		t.Errorf("Risk.UnloadMinutes = %f, want default 15", p.Risk.UnloadMinutes)
	}
	if p.Workers != 8 {
		t.Errorf("Workers = %d, want 8", p.Workers)
	}
}
