package scoring

import (
	"fmt"

	"ark-trading-engine/internal/trade"
)

// StageName is appended to agents_processed when a setup is scored.
const StageName = "trade_scorer"

// Weights distributes the composite score across the four dimensions.
// They should sum to 1.0.
type Weights struct {
	Technical   float64
	Fundamental float64
	Catalyst    float64
	Sentiment   float64
}

// DefaultWeights returns the standard dimension weighting.
func DefaultWeights() Weights {
	return Weights{
		Technical:   0.35, // 35% - most important
		Fundamental: 0.25,
		Catalyst:    0.25,
		Sentiment:   0.15,
	}
}

// WeightsFromMap builds Weights from a pattern's scoring_weights override.
// Missing keys fall back to the defaults.
func WeightsFromMap(m map[string]float64) Weights {
	w := DefaultWeights()
	if v, ok := m["technical"]; ok {
		w.Technical = v
	}
	if v, ok := m["fundamental"]; ok {
		w.Fundamental = v
	}
	if v, ok := m["catalyst"]; ok {
		w.Catalyst = v
	}
	if v, ok := m["sentiment"]; ok {
		w.Sentiment = v
	}
	return w
}

// Breakdown is the scored view of a trade setup. Quality scores measure
// how good the setup looks; Confidence measures how complete the input
// data was, independent of quality.
type Breakdown struct {
	Technical     float64  `json:"technical"`
	Fundamental   float64  `json:"fundamental"`
	Catalyst      float64  `json:"catalyst"`
	Sentiment     float64  `json:"sentiment"`
	WeightedTotal float64  `json:"weighted_total"`
	Confidence    float64  `json:"confidence"`
	Grade         string   `json:"grade"`
	Reasoning     []string `json:"reasoning,omitempty"`
}

// TradeScorer computes dimensional quality scores for trade setups.
// It is stateless: concurrent scoring of independent setups cannot
// interfere, and scoring the same setup twice yields identical results.
type TradeScorer struct{}

// NewTradeScorer creates a trade scorer.
func NewTradeScorer() *TradeScorer {
	return &TradeScorer{}
}

// Score computes the four dimensional scores, the weighted composite and
// the data-completeness confidence. A nil weights argument uses the
// defaults (or a pattern override carried on the setup itself).
func (s *TradeScorer) Score(setup trade.Setup, weights *Weights) *Breakdown {
	w := DefaultWeights()
	if weights != nil {
		w = *weights
	} else if m, ok := setup["scoring_weights"].(map[string]float64); ok {
		w = WeightsFromMap(m)
	}

	b := &Breakdown{}
	direction := setup.Direction()

	b.Technical = clamp01(s.scoreTechnical(setup, direction, b))
	b.Fundamental = clamp01(s.scoreFundamental(setup, direction, b))
	b.Catalyst = clamp01(s.scoreCatalyst(setup, b))
	b.Sentiment = clamp01(s.scoreSentiment(setup, direction, b))

	b.WeightedTotal = clamp01(
		b.Technical*w.Technical +
			b.Fundamental*w.Fundamental +
			b.Catalyst*w.Catalyst +
			b.Sentiment*w.Sentiment)

	b.Confidence = clamp01(s.scoreCompleteness(setup))
	b.Grade = scoreToGrade(b.WeightedTotal)

	if b.Confidence < 0.5 {
		b.Reasoning = append(b.Reasoning,
			fmt.Sprintf("Sparse input data (completeness %.0f%%)", b.Confidence*100))
	}
	return b
}

// scoreToGrade converts the weighted total to a letter grade.
func scoreToGrade(score float64) string {
	if score >= 0.90 {
		return "A+"
	} else if score >= 0.85 {
		return "A"
	} else if score >= 0.75 {
		return "B+"
	} else if score >= 0.70 {
		return "B"
	} else if score >= 0.60 {
		return "C"
	} else if score >= 0.50 {
		return "D"
	}
	return "F"
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
