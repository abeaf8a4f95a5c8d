package policy

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"ark-trading-engine/internal/rules"
	"ark-trading-engine/internal/trade"
)

func gatedSetup() trade.Setup {
	return trade.New(map[string]any{
		"symbol":     "GME",
		"direction":  "long",
		"price":      22.50,
		"volume":     25000000,
		"confidence": 0.85,
		"scores":     map[string]any{"weighted_total": 0.80},
	})
}

func boolPtr(b bool) *bool { return &b }

func testRuleSet() *RuleSet {
	riskRule := rules.Rule{
		Field: "price", Operator: rules.OpGreaterThan, Value: 1.0,
		Severity: rules.SeverityCritical, Message: "sub-dollar tickers are blocked",
	}
	riskRule.Compile()
	qualityRule := rules.Rule{
		Field: "confidence", Operator: rules.OpGreaterOrEqual, Value: 0.6,
		Severity: rules.SeverityWarning, Message: "low-confidence pattern",
	}
	qualityRule.Compile()
	ethicsRule := rules.Rule{
		Field: "symbol", Operator: rules.OpNotContains, Values: []string{"SANCTIONED"},
		Severity: rules.SeverityError,
	}
	ethicsRule.Compile()

	return &RuleSet{
		Enabled: true,
		Categories: map[string][]rules.Rule{
			CategoryRisk:           {riskRule},
			CategoryPatternQuality: {qualityRule},
			CategoryEthics:         {ethicsRule},
		},
	}
}

// TestFailOpenApproval tests that an absent/disabled/empty ruleset approves
func TestFailOpenApproval(t *testing.T) {
	setups := []*Validator{
		NewValidator(nil, nil, zerolog.Nop()),
		NewValidator(&RuleSet{Enabled: false, Categories: map[string][]rules.Rule{
			CategoryRisk: {{Field: "price", Operator: rules.OpGreaterThan, Value: 1}},
		}}, nil, zerolog.Nop()),
		NewValidator(&RuleSet{Enabled: true}, nil, zerolog.Nop()),
	}

	for i, v := range setups {
		decision := v.Validate(gatedSetup())
		if !decision.Approved {
			t.Errorf("Validator %d should fail open, got %+v", i, decision)
		}
	}
}

// TestSeverityPartitioning tests errors vs warnings accumulation
func TestSeverityPartitioning(t *testing.T) {
	v := NewValidator(testRuleSet(), nil, zerolog.Nop())

	setup := gatedSetup()
	setup.Set("price", 0.50)      // critical failure
	setup.Set("confidence", 0.30) // warning failure

	decision := v.Validate(setup)
	if decision.Approved {
		t.Error("Critical failure should block approval")
	}
	if len(decision.Errors) != 1 || decision.Errors[0] != "sub-dollar tickers are blocked" {
		t.Errorf("Expected the risk error message, got %v", decision.Errors)
	}
	if len(decision.Warnings) != 1 {
		t.Errorf("Expected one warning, got %v", decision.Warnings)
	}
}

// TestStrictMode tests that warnings block only under strict_mode
func TestStrictMode(t *testing.T) {
	rs := testRuleSet()
	v := NewValidator(rs, nil, zerolog.Nop())

	setup := gatedSetup()
	setup.Set("confidence", 0.30) // warning only

	if decision := v.Validate(setup); !decision.Approved {
		t.Errorf("Warnings alone should not block in lenient mode: %+v", decision)
	}

	rs.StrictMode = true
	if decision := v.Validate(setup); decision.Approved {
		t.Error("Warnings should block under strict_mode")
	}

	// Clean setup approves even in strict mode
	if decision := v.Validate(gatedSetup()); !decision.Approved {
		t.Errorf("Clean setup should approve in strict mode: %+v", decision)
	}
}

// TestDisabledRuleSkipped tests per-rule enabled flags
func TestDisabledRuleSkipped(t *testing.T) {
	rs := testRuleSet()
	rs.Categories[CategoryRisk][0].Enabled = boolPtr(false)
	v := NewValidator(rs, nil, zerolog.Nop())

	setup := gatedSetup()
	setup.Set("price", 0.50)

	if decision := v.Validate(setup); !decision.Approved {
		t.Errorf("Disabled rule should not evaluate: %+v", decision)
	}
}

// TestAbsenceRule tests field-must-not-exist rules (exists with value false)
func TestAbsenceRule(t *testing.T) {
	rule := rules.Rule{
		Field: "insider_information", Operator: rules.OpExists, Value: false,
		Severity: rules.SeverityCritical, Message: "setup references non-public information",
	}
	rule.Compile()
	rs := &RuleSet{
		Enabled:    true,
		Categories: map[string][]rules.Rule{CategoryEthics: {rule}},
	}
	v := NewValidator(rs, nil, zerolog.Nop())

	if decision := v.Validate(gatedSetup()); !decision.Approved {
		t.Errorf("Setup without the field should approve: %+v", decision)
	}

	tainted := gatedSetup()
	tainted.Set("insider_information", "earnings leak")
	decision := v.Validate(tainted)
	if decision.Approved {
		t.Error("Setup carrying the field should be blocked")
	}
	if len(decision.Errors) != 1 || decision.Errors[0] != "setup references non-public information" {
		t.Errorf("Expected the ethics message, got %v", decision.Errors)
	}
}

// TestGeneratedFailureMessage tests the default message shape
func TestGeneratedFailureMessage(t *testing.T) {
	rule := rules.Rule{Field: "volume", Operator: rules.OpGreaterThan, Value: 100000.0, Severity: rules.SeverityError}
	rule.Compile()
	rs := &RuleSet{
		Enabled:    true,
		Categories: map[string][]rules.Rule{CategoryRisk: {rule}},
	}
	v := NewValidator(rs, nil, zerolog.Nop())

	setup := gatedSetup()
	setup.Set("volume", 10.0)

	decision := v.Validate(setup)
	if len(decision.Errors) != 1 || decision.Errors[0] != "risk: volume gt 100000 failed" {
		t.Errorf("Unexpected generated message: %v", decision.Errors)
	}
}

// TestLoadRuleSet tests document loading and bad-rule tolerance
func TestLoadRuleSet(t *testing.T) {
	doc := map[string]any{
		"enabled":     true,
		"strict_mode": false,
		"categories": map[string]any{
			"risk": []map[string]any{
				{"field": "price", "operator": "gt", "value": 1, "severity": "critical"},
				{"operator": "gt", "value": 1}, // missing field: skipped
			},
			"ethics": []map[string]any{
				{"field": "symbol", "operator": "not_contains", "values": []string{"SCAM"}, "severity": "error"},
			},
		},
	}
	data, _ := json.Marshal(doc)
	path := filepath.Join(t.TempDir(), "hrm.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	rs, err := LoadRuleSet(path, zerolog.Nop())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rs.RuleCount() != 2 {
		t.Errorf("Expected 2 rules after skipping the malformed one, got %d", rs.RuleCount())
	}

	if _, err := LoadRuleSet(filepath.Join(t.TempDir(), "missing.json"), zerolog.Nop()); err == nil {
		t.Error("Missing policy document should be a load error")
	}
}
