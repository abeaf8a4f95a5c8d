package patterns

import (
	"fmt"
	"sort"

	"ark-trading-engine/internal/rules"
	"ark-trading-engine/internal/trade"
)

const (
	// baseConfidence is what a pattern earns by passing every required rule.
	baseConfidence = 0.6
	// maxPreferredBoost caps the confidence contribution of preferred rules.
	maxPreferredBoost = 0.4
)

// StageName is appended to agents_processed when the engine enriches a setup.
const StageName = "pattern_engine"

// MatchResult is the outcome of matching one pattern against one setup.
type MatchResult struct {
	PatternID        string         `json:"pattern_id"`
	Matched          bool           `json:"matched"`
	Confidence       float64        `json:"confidence"`
	RequiredScore    float64        `json:"required_score"`
	PreferredScore   float64        `json:"preferred_score"`
	FailedRequired   []string       `json:"failed_required,omitempty"`
	MatchedPreferred []string       `json:"matched_preferred,omitempty"`
	Details          map[string]any `json:"details,omitempty"`
}

// Engine matches trade setups against the pattern library. It holds no
// per-call state, so one engine serves concurrent pipeline invocations.
type Engine struct {
	library *Library
	eval    *rules.Evaluator
}

// NewEngine creates a pattern engine over a loaded library.
func NewEngine(library *Library, eval *rules.Evaluator) *Engine {
	if eval == nil {
		eval = rules.NewEvaluator()
	}
	return &Engine{library: library, eval: eval}
}

// Library returns the engine's pattern library.
func (e *Engine) Library() *Library {
	return e.library
}

// MatchPattern evaluates one pattern against a setup. Required rules are an
// all-or-nothing gate: a single failure zeroes the confidence no matter how
// many preferred rules would have passed. An unknown pattern id yields an
// error-tagged zero result, never a panic.
func (e *Engine) MatchPattern(setup trade.Setup, patternID string) MatchResult {
	result := MatchResult{PatternID: patternID}

	def, ok := e.library.Get(patternID)
	if !ok {
		result.Details = map[string]any{"error": "pattern not found"}
		return result
	}

	for i := range def.Rules.Required {
		rule := &def.Rules.Required[i]
		if !rule.IsEnabled() {
			continue
		}
		if !e.eval.Evaluate(setup, rule) {
			result.FailedRequired = append(result.FailedRequired, ruleLabel(rule))
		}
	}
	if len(result.FailedRequired) > 0 {
		result.RequiredScore = 0.0
		result.Confidence = 0.0
		result.Details = map[string]any{"failed_required": result.FailedRequired}
		return result
	}
	result.RequiredScore = 1.0

	boost := 0.0
	for i := range def.Rules.Preferred {
		rule := &def.Rules.Preferred[i]
		if !rule.IsEnabled() {
			continue
		}
		if e.eval.Evaluate(setup, rule) {
			boost += rule.Weight
			result.MatchedPreferred = append(result.MatchedPreferred, ruleLabel(rule))
		}
	}
	if boost > maxPreferredBoost {
		boost = maxPreferredBoost
	}
	result.PreferredScore = boost

	confidence := (baseConfidence + boost) * def.ConfidenceWeight
	if confidence > 1.0 {
		confidence = 1.0
	}
	result.Confidence = confidence
	result.Matched = true
	result.Details = map[string]any{
		"pattern_name": def.Name,
		"category":     def.Category,
	}
	return result
}

// MatchAll matches the setup against every library pattern whose direction
// is compatible, keeps matches at or above minConfidence, and returns them
// sorted by confidence descending with a stable library-order tie-break.
func (e *Engine) MatchAll(setup trade.Setup, directionFilter string, minConfidence float64) []MatchResult {
	if directionFilter == "" {
		directionFilter = setup.Direction()
	}

	var matches []MatchResult
	for _, def := range e.library.All() {
		if !def.Direction.Allows(directionFilter) {
			continue
		}
		result := e.MatchPattern(setup, def.PatternID)
		if result.Matched && result.Confidence >= minConfidence {
			matches = append(matches, result)
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Confidence > matches[j].Confidence
	})
	return matches
}

// EnrichSetup returns a new setup carrying the matched pattern's metadata.
// Pattern fields are merged append-only so nothing an earlier stage wrote
// is lost, and the engine records itself in the stage trail.
func (e *Engine) EnrichSetup(setup trade.Setup, result MatchResult) trade.Setup {
	enriched := setup.Clone()

	def, ok := e.library.Get(result.PatternID)
	if !ok || !result.Matched {
		enriched.AppendProcessed(StageName)
		return enriched
	}

	fields := map[string]any{
		"pattern":    def.Name,
		"pattern_id": def.PatternID,
		"confidence": result.Confidence,
	}
	if len(def.ScoringWeights) > 0 {
		fields["scoring_weights"] = def.ScoringWeights
	}
	if def.EntryStrategy.Type != "" {
		fields["entry_strategy"] = def.EntryStrategy
	}
	if def.RiskManagement != nil {
		fields["risk_management"] = def.RiskManagement
	}
	if len(def.ProfitTargets) > 0 {
		fields["profit_targets"] = def.ProfitTargets
	}
	enriched.MergeAbsent(fields)

	for _, warning := range def.Warnings {
		enriched.AppendWarning(warning)
	}
	enriched.AppendProcessed(StageName)
	return enriched
}

func ruleLabel(r *rules.Rule) string {
	return fmt.Sprintf("%s %s %v", r.Field, r.Operator, r.Value)
}
