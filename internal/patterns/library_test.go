package patterns

import (
	"testing"

	"github.com/rs/zerolog"
)

// TestLoadLibrarySkipsBadFiles tests that malformed and id-less files are
// skipped without aborting the load
func TestLoadLibrarySkipsBadFiles(t *testing.T) {
	lib, err := LoadLibrary("testdata", zerolog.Nop())
	if err != nil {
		t.Fatalf("Load should tolerate bad files: %v", err)
	}

	// testdata holds 2 valid patterns plus a malformed file and one
	// without a pattern_id
	if lib.Len() != 2 {
		t.Errorf("Expected 2 loaded patterns, got %d", lib.Len())
	}
	if _, ok := lib.Get("low_float_squeezer"); !ok {
		t.Error("low_float_squeezer should load")
	}
	if _, ok := lib.Get("atr_breakout"); !ok {
		t.Error("atr_breakout should load")
	}
	if _, ok := lib.Get("broken"); ok {
		t.Error("Malformed pattern should not load")
	}
}

// TestLoadLibraryMissingDir tests the startup-time fatal
func TestLoadLibraryMissingDir(t *testing.T) {
	if _, err := LoadLibrary("testdata/does-not-exist", zerolog.Nop()); err == nil {
		t.Error("Missing library directory should be a load error")
	}
}

// TestLoadedDefaults tests normalization of optional definition fields
func TestLoadedDefaults(t *testing.T) {
	lib, err := LoadLibrary("testdata", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	def, _ := lib.Get("atr_breakout")
	if def.Direction != DirectionBoth {
		t.Errorf("Expected direction both, got %s", def.Direction)
	}
	if def.ConfidenceWeight != 0.9 {
		t.Errorf("Expected confidence weight 0.9, got %v", def.ConfidenceWeight)
	}

	squeezer, _ := lib.Get("low_float_squeezer")
	if squeezer.RiskManagement == nil || squeezer.RiskManagement.StopLossPercent != 0.05 {
		t.Error("Risk management block should decode")
	}
	if len(squeezer.ProfitTargets) != 3 {
		t.Errorf("Expected 3 profit targets, got %d", len(squeezer.ProfitTargets))
	}
	if len(squeezer.Rules.Required) != 2 || len(squeezer.Rules.Preferred) != 3 {
		t.Error("Rule groups should decode with their operands compiled")
	}
}
