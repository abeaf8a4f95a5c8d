package planner

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"ark-trading-engine/internal/patterns"
	"ark-trading-engine/internal/trade"
)

// StageName is appended to agents_processed when a plan is built.
const StageName = "plan_builder"

// Entry order types
const (
	EntryMarket = "market"
	EntryLimit  = "limit"
)

// Config holds the account parameters the builder sizes against.
type Config struct {
	AccountSize        float64 // account equity in dollars
	MaxRiskPerTrade    float64 // fraction of account risked per trade, default 0.02
	DefaultPositionMax float64 // fraction of account per position, default 0.10
}

// Builder converts an accepted, scored setup into an executable plan.
// Builders are constructed per caller and hold no mutable state, so
// concurrent Build calls on independent setups are safe.
type Builder struct {
	cfg    Config
	logger zerolog.Logger
}

// NewBuilder creates a plan builder. Zero config values fall back to the
// 2% risk / 10% exposure defaults.
func NewBuilder(cfg Config, logger zerolog.Logger) *Builder {
	if cfg.MaxRiskPerTrade <= 0 {
		cfg.MaxRiskPerTrade = 0.02
	}
	if cfg.DefaultPositionMax <= 0 {
		cfg.DefaultPositionMax = 0.10
	}
	return &Builder{cfg: cfg, logger: logger}
}

// Entry describes how the position is opened.
type Entry struct {
	Price float64 `json:"price"`
	Type  string  `json:"type"` // market | limit
}

// Stop describes the protective stop.
type Stop struct {
	Price   float64 `json:"price"`
	Type    string  `json:"type"`    // percentage | atr | support | resistance | fallback
	Percent float64 `json:"percent"` // stop distance as percent of entry
}

// Position is the sized position under the dual risk/exposure cap.
type Position struct {
	Shares  int     `json:"shares"`
	Percent float64 `json:"percent"` // of account
	Dollars float64 `json:"dollars"`
}

// Target is one exit level.
type Target struct {
	Level       int     `json:"level"`
	Price       float64 `json:"price"`
	ExitPortion float64 `json:"exit_portion"`
	GainPercent float64 `json:"gain_percent"`
}

// RiskMetrics summarizes the plan's risk posture.
type RiskMetrics struct {
	RiskDollars     float64 `json:"risk_dollars"`
	RiskPercent     float64 `json:"risk_percent"`
	RiskRewardRatio float64 `json:"risk_reward_ratio"`
	MaxLoss         float64 `json:"max_loss"`
	MaxGain         float64 `json:"max_gain"`
}

// ExecutionPlan is the terminal artifact of the pipeline for an accepted
// setup.
type ExecutionPlan struct {
	Symbol    string      `json:"symbol"`
	Direction string      `json:"direction"`
	Entry     Entry       `json:"entry"`
	Stop      Stop        `json:"stop"`
	Position  Position    `json:"position"`
	Targets   []Target    `json:"targets"`
	Risk      RiskMetrics `json:"risk"`
	Notes     []string    `json:"notes,omitempty"`
}

// Build produces an execution plan from an enriched setup. It never errors
// on degenerate market data; the only hard failure is a missing price.
func (b *Builder) Build(setup trade.Setup) (*ExecutionPlan, error) {
	price := setup.Price()
	if price <= 0 {
		return nil, fmt.Errorf("cannot build plan for %q: missing or invalid price", setup.Symbol())
	}
	direction := setup.Direction()
	long := direction != trade.DirectionShort

	plan := &ExecutionPlan{
		Symbol:    setup.Symbol(),
		Direction: direction,
	}

	plan.Entry = b.resolveEntry(setup, price, long)
	plan.Stop = b.resolveStop(setup, plan.Entry.Price, long)

	riskPerShare := math.Abs(plan.Entry.Price - plan.Stop.Price)
	if riskPerShare == 0 {
		// Degenerate stop at entry: substitute a synthetic 1% risk
		// instead of dividing by zero.
		riskPerShare = plan.Entry.Price * 0.01
		b.logger.Warn().Str("symbol", plan.Symbol).
			Msg("Stop equals entry; substituting 1% synthetic risk")
	}

	plan.Position = b.sizePosition(plan.Entry.Price, riskPerShare)
	plan.Targets = b.resolveTargets(setup, plan.Entry.Price, riskPerShare, long)
	plan.Risk = b.riskMetrics(plan, riskPerShare)
	plan.Notes = b.buildNotes(setup, plan)

	return plan, nil
}

// resolveEntry maps the pattern's entry strategy onto an order.
func (b *Builder) resolveEntry(setup trade.Setup, price float64, long bool) Entry {
	strategy, _ := setup["entry_strategy"].(patterns.EntryStrategy)
	side := 1.0
	if !long {
		side = -1.0
	}

	switch strings.ToLower(strategy.Type) {
	case "breakout":
		// Limit slightly beyond current price in the trade direction so
		// the fill confirms the break.
		return Entry{Price: round2(price * (1 + side*0.005)), Type: EntryLimit}
	case "pullback":
		// Limit 2% against momentum, waiting for the dip.
		return Entry{Price: round2(price * (1 - side*0.02)), Type: EntryLimit}
	case "wait_for_confirmation", "confirmation":
		return Entry{Price: price, Type: EntryLimit}
	default:
		return Entry{Price: price, Type: EntryMarket}
	}
}

// resolveStop places the protective stop from the pattern's risk
// management block, falling back to a flat 5% when nothing is specified.
func (b *Builder) resolveStop(setup trade.Setup, entry float64, long bool) Stop {
	rm, _ := setup["risk_management"].(*patterns.RiskManagement)
	side := 1.0
	if !long {
		side = -1.0
	}

	fallback := func() Stop {
		price := entry * (1 - side*0.05)
		return Stop{Price: round2(price), Type: "fallback", Percent: 5.0}
	}
	if rm == nil {
		return fallback()
	}

	switch strings.ToLower(rm.StopLossType) {
	case "percentage":
		pct := rm.StopLossPercent
		if pct <= 0 {
			return fallback()
		}
		price := entry * (1 - side*pct)
		return Stop{Price: round2(price), Type: "percentage", Percent: pct * 100}
	case "atr":
		atr, ok := setup.Float("indicators.atr")
		if !ok || atr <= 0 {
			return fallback()
		}
		mult := parseATRMultiplier(rm.ATRMultiplier)
		price := entry - side*mult*atr
		if price <= 0 {
			return fallback()
		}
		return Stop{Price: round2(price), Type: "atr", Percent: round2(math.Abs(entry-price) / entry * 100)}
	case "support", "resistance":
		level := rm.LevelPrice
		if rm.LevelField != "" {
			if fieldLevel, ok := setup.Float(rm.LevelField); ok {
				level = fieldLevel
			}
		}
		if level <= 0 {
			return fallback()
		}
		// Slightly beyond the level so ordinary level tests do not stop
		// the trade out.
		price := level * (1 - side*0.01)
		return Stop{Price: round2(price), Type: strings.ToLower(rm.StopLossType), Percent: round2(math.Abs(entry-price) / entry * 100)}
	default:
		return fallback()
	}
}

// parseATRMultiplier decodes "2x" style multipliers, defaulting to 2.0.
func parseATRMultiplier(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(strings.ToLower(s)), "x")
	if s == "" {
		return 2.0
	}
	mult, err := strconv.ParseFloat(s, 64)
	if err != nil || mult <= 0 {
		return 2.0
	}
	return mult
}

// sizePosition applies the dual cap: the risk-based share count and the
// exposure-based share count, whichever is more conservative.
func (b *Builder) sizePosition(entry, riskPerShare float64) Position {
	maxRiskDollars := b.cfg.AccountSize * b.cfg.MaxRiskPerTrade
	maxPositionDollars := b.cfg.AccountSize * b.cfg.DefaultPositionMax

	sharesByRisk := int(math.Floor(maxRiskDollars / riskPerShare))
	sharesByExposure := int(math.Floor(maxPositionDollars / entry))

	shares := sharesByRisk
	if sharesByExposure < shares {
		shares = sharesByExposure
	}
	if shares < 1 {
		shares = 1
	}

	dollars := float64(shares) * entry
	percent := 0.0
	if b.cfg.AccountSize > 0 {
		percent = dollars / b.cfg.AccountSize * 100
	}
	return Position{Shares: shares, Percent: round2(percent), Dollars: round2(dollars)}
}

// MaxPositionOverride lets a pattern tighten (or widen) the exposure cap.
// The builder itself stays immutable; the pipeline calls this to derive a
// per-setup builder when the pattern specifies max_position_size.
func (b *Builder) MaxPositionOverride(fraction float64) *Builder {
	if fraction <= 0 || fraction == b.cfg.DefaultPositionMax {
		return b
	}
	cfg := b.cfg
	cfg.DefaultPositionMax = fraction
	return &Builder{cfg: cfg, logger: b.logger}
}

// resolveTargets uses the pattern's target ladder when present, otherwise
// synthesizes the default 1.5R / 2.5R / 4R ladder.
func (b *Builder) resolveTargets(setup trade.Setup, entry, riskPerShare float64, long bool) []Target {
	side := 1.0
	if !long {
		side = -1.0
	}

	if declared, ok := setup["profit_targets"].([]patterns.ProfitTarget); ok && len(declared) > 0 {
		targets := make([]Target, 0, len(declared))
		for _, pt := range declared {
			price := entry * (1 + side*pt.Percentage)
			targets = append(targets, Target{
				Level:       pt.Level,
				Price:       round2(price),
				ExitPortion: pt.ExitPortion,
				GainPercent: round2(pt.Percentage * 100),
			})
		}
		return targets
	}

	// Default R-multiple ladder
	defaults := []struct {
		multiple float64
		portion  float64
	}{
		{1.5, 0.50},
		{2.5, 0.30},
		{4.0, 0.20},
	}
	targets := make([]Target, 0, len(defaults))
	for i, d := range defaults {
		price := entry + side*d.multiple*riskPerShare
		targets = append(targets, Target{
			Level:       i + 1,
			Price:       round2(price),
			ExitPortion: d.portion,
			GainPercent: round2(math.Abs(price-entry) / entry * 100),
		})
	}
	return targets
}

func (b *Builder) riskMetrics(plan *ExecutionPlan, riskPerShare float64) RiskMetrics {
	shares := float64(plan.Position.Shares)
	riskDollars := riskPerShare * shares

	totalDistance := 0.0
	maxGain := 0.0
	for _, target := range plan.Targets {
		distance := math.Abs(target.Price - plan.Entry.Price)
		totalDistance += distance
		maxGain += distance * target.ExitPortion * shares
	}

	rr := 0.0
	if riskDollars > 0 && len(plan.Targets) > 0 {
		avgDistance := totalDistance / float64(len(plan.Targets))
		rr = avgDistance * shares / riskDollars
	}

	riskPercent := 0.0
	if b.cfg.AccountSize > 0 {
		riskPercent = riskDollars / b.cfg.AccountSize * 100
	}

	return RiskMetrics{
		RiskDollars:     round2(riskDollars),
		RiskPercent:     round2(riskPercent),
		RiskRewardRatio: round2(rr),
		MaxLoss:         round2(riskDollars),
		MaxGain:         round2(maxGain),
	}
}

// buildNotes carries at most three pattern warnings plus generated
// advisories about stop width, reward ratio and match confidence.
func (b *Builder) buildNotes(setup trade.Setup, plan *ExecutionPlan) []string {
	var notes []string

	warnings := setup.Warnings()
	if len(warnings) > 3 {
		warnings = warnings[:3]
	}
	notes = append(notes, warnings...)

	if plan.Stop.Percent > 10 {
		notes = append(notes, fmt.Sprintf("Wide stop (%.1f%%): reduced size or skip", plan.Stop.Percent))
	} else if plan.Stop.Percent < 2 {
		notes = append(notes, fmt.Sprintf("Tight stop (%.1f%%): expect noise stop-outs", plan.Stop.Percent))
	}

	if plan.Risk.RiskRewardRatio > 0 {
		if plan.Risk.RiskRewardRatio < 2.0 {
			notes = append(notes, fmt.Sprintf("Low reward ratio (%.1f:1)", plan.Risk.RiskRewardRatio))
		} else if plan.Risk.RiskRewardRatio > 4.0 {
			notes = append(notes, fmt.Sprintf("Optimistic reward ratio (%.1f:1): verify targets", plan.Risk.RiskRewardRatio))
		}
	}

	if confidence := setup.Confidence(); confidence > 0 {
		if confidence < 0.70 {
			notes = append(notes, fmt.Sprintf("Low pattern confidence (%.0f%%)", confidence*100))
		} else if confidence > 0.85 {
			notes = append(notes, fmt.Sprintf("High pattern confidence (%.0f%%)", confidence*100))
		}
	}

	return notes
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
