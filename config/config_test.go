package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadFileDefaults(t *testing.T) {
	cfg, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if err != nil {
		t.Fatalf("LoadFile with missing file should fall back to defaults: %v", err)
	}
	if cfg.EngineConfig.MinConfidence != 0.6 {
		t.Errorf("default min_confidence = %v, want 0.6", cfg.EngineConfig.MinConfidence)
	}
	if cfg.AccountConfig.Size != 50000 {
		t.Errorf("default account size = %v, want 50000", cfg.AccountConfig.Size)
	}
	if cfg.AccountConfig.MaxRiskPerTrade != 0.02 {
		t.Errorf("default max_risk_per_trade = %v, want 0.02", cfg.AccountConfig.MaxRiskPerTrade)
	}
	if !cfg.EngineConfig.DryRun {
		t.Error("dry_run should default to true")
	}
}

func TestLoadFileOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	body := `{"engine": {"min_confidence": 0.75, "pattern_dir": "defs"}, "account": {"size": 100000}}`
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.EngineConfig.MinConfidence != 0.75 {
		t.Errorf("min_confidence = %v, want file value 0.75", cfg.EngineConfig.MinConfidence)
	}
	if cfg.EngineConfig.PatternDir != "defs" {
		t.Errorf("pattern_dir = %q, want defs", cfg.EngineConfig.PatternDir)
	}
	if cfg.AccountConfig.Size != 100000 {
		t.Errorf("account size = %v, want 100000", cfg.AccountConfig.Size)
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"engine": {"min_confidence": 0.75}}`), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ARK_MIN_CONFIDENCE", "0.9")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.EngineConfig.MinConfidence != 0.9 {
		t.Errorf("min_confidence = %v, environment should win over the file", cfg.EngineConfig.MinConfidence)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name string
		env  map[string]string
	}{
		{"confidence above one", map[string]string{"ARK_MIN_CONFIDENCE": "1.5"}},
		{"negative account", map[string]string{"ARK_ACCOUNT_SIZE": "-10"}},
		{"bad operator policy", map[string]string{"ARK_UNKNOWN_OPERATOR_POLICY": "yolo"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			if _, err := LoadFile(filepath.Join(t.TempDir(), "none.json")); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
