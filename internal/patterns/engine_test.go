package patterns

import (
	"testing"

	"ark-trading-engine/internal/rules"
	"ark-trading-engine/internal/trade"
)

func squeezerSetup() trade.Setup {
	return trade.New(map[string]any{
		"symbol":         "GME",
		"float":          15.5,
		"short_interest": 45.0,
		"volume":         25000000,
		"avg_volume":     8000000,
		"price":          22.50,
		"price_action":   "tight_consolidation",
		"direction":      "long",
	})
}

func compiled(r rules.Rule) rules.Rule {
	r.Compile()
	return r
}

func squeezerDefinition() *Definition {
	return &Definition{
		PatternID: "low_float_squeezer",
		Name:      "Low Float Squeezer",
		Direction: DirectionLong,
		Rules: RuleGroups{
			Required: []rules.Rule{
				compiled(rules.Rule{Field: "short_interest", Operator: rules.OpGreaterThan, Value: 20}),
				compiled(rules.Rule{Field: "volume", Operator: rules.OpGreaterThan, Value: "2x_avg_volume"}),
			},
			Preferred: []rules.Rule{
				compiled(rules.Rule{Field: "float", Operator: rules.OpLessThan, Value: 20, Weight: 0.15}),
				compiled(rules.Rule{Field: "price_action", Operator: rules.OpPattern, Value: "consolidation", Weight: 0.15}),
				compiled(rules.Rule{Field: "catalyst", Operator: rules.OpExists, Value: true, Weight: 0.10}),
			},
		},
		ConfidenceWeight: 1.0,
	}
}

// TestSqueezerScenario tests the canonical GME-style squeeze match
func TestSqueezerScenario(t *testing.T) {
	engine := NewEngine(NewLibrary(squeezerDefinition()), nil)
	setup := squeezerSetup()

	result := engine.MatchPattern(setup, "low_float_squeezer")
	if !result.Matched {
		t.Fatalf("Squeezer should match: failed required %v", result.FailedRequired)
	}
	if result.Confidence < 0.6 {
		t.Errorf("Matched pattern confidence should be >= 0.6, got %.2f", result.Confidence)
	}
	// float < 20 and consolidation pass, catalyst absent: 0.6 + 0.30
	if diff := result.Confidence - 0.90; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected confidence 0.90, got %v", result.Confidence)
	}
	if result.RequiredScore != 1.0 {
		t.Errorf("All required rules passed, required score should be 1.0, got %v", result.RequiredScore)
	}
	if len(result.MatchedPreferred) != 2 {
		t.Errorf("Expected 2 preferred matches, got %v", result.MatchedPreferred)
	}
}

// TestRequiredRuleGating tests the all-or-nothing required gate
func TestRequiredRuleGating(t *testing.T) {
	engine := NewEngine(NewLibrary(squeezerDefinition()), nil)

	setup := squeezerSetup()
	setup.Set("short_interest", 10.0) // fails the SI gate; all preferred would pass

	result := engine.MatchPattern(setup, "low_float_squeezer")
	if result.Matched {
		t.Error("Pattern should not match when a required rule fails")
	}
	if result.Confidence != 0.0 {
		t.Errorf("Confidence must be 0.0 on required failure, got %v", result.Confidence)
	}
	if result.RequiredScore != 0.0 {
		t.Errorf("Required score must be 0.0 on required failure, got %v", result.RequiredScore)
	}
	if len(result.FailedRequired) != 1 {
		t.Errorf("Expected exactly one failed required rule, got %v", result.FailedRequired)
	}
}

// TestPreferredBoostCap tests that preferred weights cannot exceed 0.4
func TestPreferredBoostCap(t *testing.T) {
	def := squeezerDefinition()
	def.Rules.Preferred = []rules.Rule{
		compiled(rules.Rule{Field: "float", Operator: rules.OpLessThan, Value: 20, Weight: 0.30}),
		compiled(rules.Rule{Field: "price_action", Operator: rules.OpPattern, Value: "consolidation", Weight: 0.30}),
		compiled(rules.Rule{Field: "volume", Operator: rules.OpGreaterThan, Value: 1, Weight: 0.30}),
	}
	engine := NewEngine(NewLibrary(def), nil)

	result := engine.MatchPattern(squeezerSetup(), "low_float_squeezer")
	if result.PreferredScore != 0.4 {
		t.Errorf("Preferred boost should cap at 0.4, got %v", result.PreferredScore)
	}
	if result.Confidence != 1.0 {
		t.Errorf("Confidence should be 1.0 at the cap, got %v", result.Confidence)
	}
}

// TestConfidenceWeightAndCeiling tests the multiplier and the 1.0 clamp
func TestConfidenceWeightAndCeiling(t *testing.T) {
	def := squeezerDefinition()
	def.ConfidenceWeight = 0.8
	engine := NewEngine(NewLibrary(def), nil)

	result := engine.MatchPattern(squeezerSetup(), "low_float_squeezer")
	want := (0.6 + 0.30) * 0.8
	if diff := result.Confidence - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Expected confidence %.3f, got %.3f", want, result.Confidence)
	}

	def2 := squeezerDefinition()
	def2.ConfidenceWeight = 2.0
	engine = NewEngine(NewLibrary(def2), nil)
	if got := engine.MatchPattern(squeezerSetup(), "low_float_squeezer").Confidence; got != 1.0 {
		t.Errorf("Confidence should clamp to 1.0, got %v", got)
	}
}

// TestUnknownPattern tests the error-tagged zero result
func TestUnknownPattern(t *testing.T) {
	engine := NewEngine(NewLibrary(), nil)

	result := engine.MatchPattern(squeezerSetup(), "does_not_exist")
	if result.Matched {
		t.Error("Unknown pattern should not match")
	}
	if result.Confidence != 0.0 {
		t.Errorf("Unknown pattern confidence should be 0.0, got %v", result.Confidence)
	}
	if result.Details["error"] != "pattern not found" {
		t.Errorf("Unknown pattern should carry a not-found detail, got %v", result.Details)
	}
}

// TestMatchAllOrderingAndFilter tests sorting, threshold and direction filter
func TestMatchAllOrderingAndFilter(t *testing.T) {
	strong := squeezerDefinition()

	weak := squeezerDefinition()
	weak.PatternID = "weak_squeezer"
	weak.Rules.Preferred = nil // bare 0.6

	shortOnly := squeezerDefinition()
	shortOnly.PatternID = "short_fade"
	shortOnly.Direction = DirectionShort

	engine := NewEngine(NewLibrary(weak, strong, shortOnly), nil)
	setup := squeezerSetup()

	matches := engine.MatchAll(setup, "", 0.0)
	if len(matches) != 2 {
		t.Fatalf("Expected 2 long matches, got %d", len(matches))
	}
	if matches[0].PatternID != "low_float_squeezer" || matches[1].PatternID != "weak_squeezer" {
		t.Errorf("Matches should sort by confidence descending: %v, %v", matches[0].PatternID, matches[1].PatternID)
	}

	matches = engine.MatchAll(setup, "", 0.8)
	if len(matches) != 1 || matches[0].PatternID != "low_float_squeezer" {
		t.Errorf("Min confidence filter should drop the weak match, got %v", matches)
	}

	// Equal confidence keeps library insertion order (stable tie-break)
	twinA := squeezerDefinition()
	twinA.PatternID = "twin_a"
	twinA.Rules.Preferred = nil
	twinB := squeezerDefinition()
	twinB.PatternID = "twin_b"
	twinB.Rules.Preferred = nil
	engine = NewEngine(NewLibrary(twinA, twinB), nil)
	matches = engine.MatchAll(setup, "", 0.0)
	if matches[0].PatternID != "twin_a" || matches[1].PatternID != "twin_b" {
		t.Errorf("Equal confidence should preserve library order: %v, %v", matches[0].PatternID, matches[1].PatternID)
	}
}

// TestMatchPatternIdempotence tests repeat calls on the same input
func TestMatchPatternIdempotence(t *testing.T) {
	engine := NewEngine(NewLibrary(squeezerDefinition()), nil)
	setup := squeezerSetup()

	first := engine.MatchPattern(setup, "low_float_squeezer")
	second := engine.MatchPattern(setup, "low_float_squeezer")

	if first.Confidence != second.Confidence || first.Matched != second.Matched ||
		first.PreferredScore != second.PreferredScore {
		t.Errorf("MatchPattern should be idempotent: %+v vs %+v", first, second)
	}
}

// TestEnrichSetup tests pattern metadata attachment and the stage trail
func TestEnrichSetup(t *testing.T) {
	def := squeezerDefinition()
	def.EntryStrategy = EntryStrategy{Type: "breakout"}
	def.RiskManagement = &RiskManagement{StopLossType: "percentage", StopLossPercent: 0.05}
	def.ProfitTargets = []ProfitTarget{{Level: 1, Percentage: 0.10, ExitPortion: 0.5}}
	def.Warnings = []string{"squeeze risk"}
	engine := NewEngine(NewLibrary(def), nil)

	setup := squeezerSetup()
	result := engine.MatchPattern(setup, "low_float_squeezer")
	enriched := engine.EnrichSetup(setup, result)

	if enriched.Str("pattern") != "Low Float Squeezer" {
		t.Errorf("Enriched setup missing pattern name: %v", enriched.Str("pattern"))
	}
	if enriched.Confidence() != result.Confidence {
		t.Errorf("Enriched confidence mismatch: %v vs %v", enriched.Confidence(), result.Confidence)
	}
	if _, ok := enriched["risk_management"].(*RiskManagement); !ok {
		t.Error("Enriched setup should carry the pattern risk management block")
	}
	trail := enriched.Processed()
	if len(trail) != 1 || trail[0] != StageName {
		t.Errorf("Stage trail should record the pattern engine: %v", trail)
	}
	if len(enriched.Warnings()) != 1 {
		t.Errorf("Pattern warnings should transfer: %v", enriched.Warnings())
	}
	// Original untouched
	if setup.Has("pattern") || len(setup.Processed()) != 0 {
		t.Error("EnrichSetup must not mutate the input setup")
	}
}
