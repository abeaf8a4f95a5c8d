package patterns

import (
	"ark-trading-engine/internal/rules"
)

// Direction restricts a pattern to one side of the market.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
	DirectionBoth  Direction = "both"
)

// Allows reports whether the pattern applies to a trade direction.
// Swing setups are treated as long for pattern purposes.
func (d Direction) Allows(tradeDirection string) bool {
	switch d {
	case DirectionBoth, "":
		return true
	case DirectionLong:
		return tradeDirection == "long" || tradeDirection == "swing"
	case DirectionShort:
		return tradeDirection == "short"
	default:
		return false
	}
}

// RuleGroups splits a pattern's rules into the hard gate and the
// confidence boosters.
type RuleGroups struct {
	Required  []rules.Rule `json:"required"`
	Preferred []rules.Rule `json:"preferred"`
}

// EntryStrategy describes how the plan builder should enter the trade.
type EntryStrategy struct {
	Type        string `json:"type"` // market | breakout | pullback | wait_for_confirmation
	Description string `json:"description,omitempty"`
}

// RiskManagement configures stop placement and exposure for a pattern.
type RiskManagement struct {
	StopLossType    string  `json:"stop_loss_type"`              // percentage | atr | support | resistance
	StopLossPercent float64 `json:"stop_loss_percent,omitempty"` // fraction of entry, e.g. 0.05
	ATRMultiplier   string  `json:"atr_multiplier,omitempty"`    // "2x" style, defaults to 2.0
	LevelField      string  `json:"level_field,omitempty"`       // setup field holding the level price
	LevelPrice      float64 `json:"level_price,omitempty"`       // explicit level when no field applies
	MaxPositionSize float64 `json:"max_position_size,omitempty"` // fraction of account, overrides default
}

// ProfitTarget is one exit level of a multi-level target ladder.
type ProfitTarget struct {
	Level       int     `json:"level"`
	Percentage  float64 `json:"percentage"`   // gain from entry as a fraction
	ExitPortion float64 `json:"exit_portion"` // fraction of the position to close
}

// Definition is one declaratively-defined market pattern. Definitions are
// loaded once at startup and never mutated afterwards.
type Definition struct {
	PatternID        string             `json:"pattern_id"`
	Name             string             `json:"name"`
	Direction        Direction          `json:"direction"`
	Category         string             `json:"category"`
	Rules            RuleGroups         `json:"rules"`
	ConfidenceWeight float64            `json:"confidence_weight"`
	ScoringWeights   map[string]float64 `json:"scoring_weights,omitempty"`
	EntryStrategy    EntryStrategy      `json:"entry_strategy"`
	RiskManagement   *RiskManagement    `json:"risk_management,omitempty"`
	ProfitTargets    []ProfitTarget     `json:"profit_targets,omitempty"`
	Warnings         []string           `json:"warnings,omitempty"`
}

// normalize fills defaults after decoding.
func (d *Definition) normalize() {
	if d.Direction == "" {
		d.Direction = DirectionBoth
	}
	if d.ConfidenceWeight <= 0 {
		d.ConfidenceWeight = 1.0
	}
	if d.Name == "" {
		d.Name = d.PatternID
	}
}
