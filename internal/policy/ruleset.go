package policy

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"ark-trading-engine/internal/rules"
)

// Rule categories recognized by the gate. Unknown categories still
// evaluate; the names are only used for reporting.
const (
	CategoryEthics         = "ethics"
	CategoryRisk           = "risk"
	CategoryPatternQuality = "pattern_quality"
)

// RuleSet is the declarative policy document gating scored setups.
type RuleSet struct {
	Enabled    bool                    `json:"enabled"`
	StrictMode bool                    `json:"strict_mode"`
	Categories map[string][]rules.Rule `json:"categories"`
}

// LoadRuleSet reads a policy document from disk. Individual malformed
// rules inside a category are the loader's responsibility to tolerate, but
// an unreadable or unparsable document is a startup error.
func LoadRuleSet(path string, logger zerolog.Logger) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy ruleset %s: %w", path, err)
	}
	var rs RuleSet
	if err := json.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("failed to parse policy ruleset %s: %w", path, err)
	}

	total := 0
	for category, categoryRules := range rs.Categories {
		kept := categoryRules[:0]
		for _, rule := range categoryRules {
			if rule.Field == "" || rule.Operator == "" {
				logger.Warn().Str("category", category).
					Msg("Skipping policy rule without field/operator")
				continue
			}
			kept = append(kept, rule)
		}
		rs.Categories[category] = kept
		total += len(kept)
	}

	logger.Info().Int("rules", total).Bool("strict_mode", rs.StrictMode).
		Bool("enabled", rs.Enabled).Msg("Policy ruleset loaded")
	return &rs, nil
}

// RuleCount returns the number of enabled rules across all categories.
func (rs *RuleSet) RuleCount() int {
	if rs == nil {
		return 0
	}
	count := 0
	for _, categoryRules := range rs.Categories {
		for i := range categoryRules {
			if categoryRules[i].IsEnabled() {
				count++
			}
		}
	}
	return count
}
