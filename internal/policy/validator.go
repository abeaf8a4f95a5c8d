package policy

import (
	"fmt"

	"github.com/rs/zerolog"

	"ark-trading-engine/internal/rules"
	"ark-trading-engine/internal/trade"
)

// StageName is appended to agents_processed when a setup passes the gate.
const StageName = "policy_gate"

// Decision is the outcome of gating one setup.
type Decision struct {
	Approved bool     `json:"approved"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// Validator gates scored setups against the loaded policy ruleset.
// A nil or disabled ruleset fails open: every setup is approved. That is
// deliberate and must stay observable, so fail-open approvals are logged.
type Validator struct {
	ruleset *RuleSet
	eval    *rules.Evaluator
	logger  zerolog.Logger
}

// NewValidator creates a policy validator. ruleset may be nil.
func NewValidator(ruleset *RuleSet, eval *rules.Evaluator, logger zerolog.Logger) *Validator {
	if eval == nil {
		eval = rules.NewEvaluator()
	}
	return &Validator{ruleset: ruleset, eval: eval, logger: logger}
}

// Validate evaluates every enabled rule in every category. Failures of
// critical/error severity block; everything else accumulates as warnings.
// In strict mode warnings block too.
func (v *Validator) Validate(setup trade.Setup) Decision {
	if v.ruleset == nil || !v.ruleset.Enabled || v.ruleset.RuleCount() == 0 {
		v.logger.Debug().Str("symbol", setup.Symbol()).
			Msg("No enabled policy rules; approving by fail-open default")
		return Decision{Approved: true}
	}

	var decision Decision
	for category, categoryRules := range v.ruleset.Categories {
		for i := range categoryRules {
			rule := &categoryRules[i]
			if !rule.IsEnabled() {
				continue
			}
			if v.eval.Evaluate(setup, rule) {
				continue
			}
			msg := rule.Message
			if msg == "" {
				msg = fmt.Sprintf("%s: %s %s %v failed", category, rule.Field, rule.Operator, rule.Value)
			}
			switch rule.Severity {
			case rules.SeverityCritical, rules.SeverityError:
				decision.Errors = append(decision.Errors, msg)
			default:
				decision.Warnings = append(decision.Warnings, msg)
			}
		}
	}

	decision.Approved = len(decision.Errors) == 0 &&
		(!v.ruleset.StrictMode || len(decision.Warnings) == 0)

	if !decision.Approved {
		v.logger.Info().Str("symbol", setup.Symbol()).
			Strs("errors", decision.Errors).
			Strs("warnings", decision.Warnings).
			Msg("Policy gate rejected setup")
	}
	return decision
}
