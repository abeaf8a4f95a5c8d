package trade

import (
	"testing"
)

// TestLookupDotPath tests nested field resolution
func TestLookupDotPath(t *testing.T) {
	setup := New(map[string]any{
		"symbol": "GME",
		"indicators": map[string]any{
			"rsi":  55.0,
			"macd": 0.8,
		},
	})

	v, ok := setup.Lookup("indicators.rsi")
	if !ok {
		t.Fatal("Should resolve indicators.rsi")
	}
	if v.(float64) != 55.0 {
		t.Errorf("Expected 55.0, got %v", v)
	}

	if _, ok := setup.Lookup("indicators.atr"); ok {
		t.Error("Should NOT resolve missing nested field")
	}

	if _, ok := setup.Lookup("symbol.nested"); ok {
		t.Error("Should NOT resolve path through a scalar")
	}

	if _, ok := setup.Lookup(""); ok {
		t.Error("Empty path should not resolve")
	}
}

// TestCloneIndependence tests that mutating a clone never leaks back
func TestCloneIndependence(t *testing.T) {
	setup := New(map[string]any{
		"symbol": "AAPL",
		"indicators": map[string]any{
			"rsi": 60.0,
		},
		"warnings": []string{"thin volume"},
	})

	clone := setup.Clone()
	clone.Set("symbol", "TSLA")
	clone["indicators"].(map[string]any)["rsi"] = 99.0
	clone.AppendWarning("late entry")

	if setup.Symbol() != "AAPL" {
		t.Error("Clone mutation leaked into original symbol")
	}
	if rsi, _ := setup.Float("indicators.rsi"); rsi != 60.0 {
		t.Errorf("Clone mutation leaked into nested map: rsi=%v", rsi)
	}
	if len(setup.Warnings()) != 1 {
		t.Errorf("Clone mutation leaked into warnings: %v", setup.Warnings())
	}
}

// TestMergeAbsent tests append-only enrichment semantics
func TestMergeAbsent(t *testing.T) {
	setup := New(map[string]any{
		"symbol":     "GME",
		"confidence": 0.85,
	})

	setup.MergeAbsent(map[string]any{
		"confidence": 0.10, // must not clobber the earlier stage's value
		"pattern":    "low_float_squeezer",
	})

	if setup.Confidence() != 0.85 {
		t.Errorf("MergeAbsent overwrote existing field: %v", setup.Confidence())
	}
	if setup.Str("pattern") != "low_float_squeezer" {
		t.Error("MergeAbsent should fill absent fields")
	}
}

// TestAppendProcessed tests the ordered stage trail
func TestAppendProcessed(t *testing.T) {
	setup := New(nil)
	setup.AppendProcessed("pattern_engine")
	setup.AppendProcessed("trade_scorer")

	got := setup.Processed()
	if len(got) != 2 || got[0] != "pattern_engine" || got[1] != "trade_scorer" {
		t.Errorf("Unexpected stage trail: %v", got)
	}
}

// TestDirectionDefault tests direction normalization
func TestDirectionDefault(t *testing.T) {
	if New(map[string]any{"direction": "SHORT"}).Direction() != DirectionShort {
		t.Error("Direction should be case-insensitive")
	}
	if New(nil).Direction() != DirectionLong {
		t.Error("Missing direction should default to long")
	}
	if New(map[string]any{"direction": "sideways"}).Direction() != DirectionLong {
		t.Error("Unknown direction should default to long")
	}
}

// TestToFloatCoercion tests numeric coercion across JSON shapes
func TestToFloatCoercion(t *testing.T) {
	setup := New(map[string]any{
		"volume": 25000000,
		"price":  22.50,
		"note":   "not a number",
	})

	if v, ok := setup.Float("volume"); !ok || v != 25000000 {
		t.Errorf("int should coerce: %v %v", v, ok)
	}
	if v, ok := setup.Float("price"); !ok || v != 22.50 {
		t.Errorf("float should coerce: %v %v", v, ok)
	}
	if _, ok := setup.Float("note"); ok {
		t.Error("string should not coerce to float")
	}
}
