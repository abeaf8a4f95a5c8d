package scoring

import (
	"fmt"
	"strings"

	"ark-trading-engine/internal/trade"
)

// scoreTechnical sums indicator-based factors. Each factor has a fixed
// maximum so a setup cannot overweight a single signal; the sum is capped
// at 1.0 by the caller.
func (s *TradeScorer) scoreTechnical(setup trade.Setup, direction string, b *Breakdown) float64 {
	score := 0.0
	long := direction != trade.DirectionShort

	// RSI band, direction-aware: longs want 40-70, shorts want 30-60.
	// Adjacent bands earn partial credit, extremes earn minimal credit.
	if rsi, ok := setup.Float("indicators.rsi"); ok {
		lo, hi := 40.0, 70.0
		if !long {
			lo, hi = 30.0, 60.0
		}
		switch {
		case rsi >= lo && rsi <= hi:
			score += 0.25
		case rsi >= lo-10 && rsi <= hi+10:
			score += 0.15
		default:
			score += 0.05
		}
	}

	// MACD crossover aligned with the trade direction
	macd, hasMACD := setup.Float("indicators.macd")
	signal, hasSignal := setup.Float("indicators.macd_signal")
	if hasMACD && hasSignal {
		if (long && macd > signal) || (!long && macd < signal) {
			score += 0.20
			b.Reasoning = append(b.Reasoning, "MACD crossover aligned with direction")
		}
	}

	// Volume relative to average, four tiers
	volume, hasVol := setup.Float("volume")
	avgVolume, hasAvg := setup.Float("avg_volume")
	if hasVol && hasAvg && avgVolume > 0 {
		ratio := volume / avgVolume
		switch {
		case ratio >= 3.0:
			score += 0.25
			b.Reasoning = append(b.Reasoning, fmt.Sprintf("Climax volume (%.1fx average)", ratio))
		case ratio >= 1.5:
			score += 0.15
			b.Reasoning = append(b.Reasoning, fmt.Sprintf("Elevated volume (%.1fx average)", ratio))
		case ratio >= 1.0:
			score += 0.10
		default:
			score += 0.05
		}
	}

	// Price action keywords
	priceAction := strings.ToLower(setup.Str("price_action"))
	for _, keyword := range []string{"breakout", "consolidat", "reversal", "support"} {
		if strings.Contains(priceAction, keyword) {
			score += 0.15
			break
		}
	}

	// A mapped support or resistance level is a tradeable structure
	if setup.Has("support_level") || setup.Has("resistance_level") {
		score += 0.15
	}

	return score
}

// scoreFundamental scores float structure, market cap and borrow dynamics.
func (s *TradeScorer) scoreFundamental(setup trade.Setup, direction string, b *Breakdown) float64 {
	score := 0.0
	long := direction != trade.DirectionShort

	// Market cap sweet spot: $100M-$2B moves hard but is not a shell
	if cap, ok := setup.Float("market_cap"); ok {
		switch {
		case cap >= 100e6 && cap <= 2e9:
			score += 0.20
		case cap > 2e9 && cap <= 10e9:
			score += 0.10
		default:
			score += 0.05
		}
	}

	// Float size (millions of shares), smaller floats squeeze harder
	if flt, ok := setup.Float("float"); ok {
		switch {
		case flt < 10:
			score += 0.30
			b.Reasoning = append(b.Reasoning, fmt.Sprintf("Micro float (%.1fM shares)", flt))
		case flt < 50:
			score += 0.20
		case flt < 200:
			score += 0.10
		default:
			score += 0.05
		}
	}

	// Short interest (percent of float) cuts both ways: squeeze fuel for
	// longs, crowded-short risk for shorts
	if si, ok := setup.Float("short_interest"); ok {
		if long {
			switch {
			case si >= 30:
				score += 0.30
				b.Reasoning = append(b.Reasoning, fmt.Sprintf("Heavy short interest (%.0f%%) squeeze potential", si))
			case si >= 20:
				score += 0.20
			case si >= 10:
				score += 0.10
			}
		} else {
			switch {
			case si <= 5:
				score += 0.30
			case si <= 15:
				score += 0.15
			}
		}
	}

	// Expensive borrows confirm squeeze pressure for longs
	if long {
		if ctb, ok := setup.Float("cost_to_borrow"); ok {
			switch {
			case ctb >= 50:
				score += 0.20
			case ctb >= 20:
				score += 0.10
			}
		}
	}

	return score
}

var strongCatalystKeywords = []string{
	"fda", "approval", "earnings beat", "merger", "acquisition", "buyout",
	"squeeze", "contract award", "partnership",
}

var moderateCatalystKeywords = []string{
	"earnings", "launch", "expansion", "guidance", "upgrade", "contract",
}

// scoreCatalyst scores the narrative driving the trade.
func (s *TradeScorer) scoreCatalyst(setup trade.Setup, b *Breakdown) float64 {
	score := 0.0

	catalyst := strings.ToLower(setup.Str("catalyst"))
	if catalyst != "" {
		matched := 0.15 // any named catalyst is better than none
		for _, keyword := range strongCatalystKeywords {
			if strings.Contains(catalyst, keyword) {
				matched = 0.40
				b.Reasoning = append(b.Reasoning, "Strong catalyst: "+keyword)
				break
			}
		}
		if matched < 0.40 {
			for _, keyword := range moderateCatalystKeywords {
				if strings.Contains(catalyst, keyword) {
					matched = 0.25
					break
				}
			}
		}
		score += matched
	}

	// Qualitative strength can arrive as a label or a 0-1 number
	if raw, ok := setup.Lookup("catalyst_strength"); ok && raw != nil {
		if num, isNum := trade.ToFloat(raw); isNum {
			score += clamp01(num) * 0.30
		} else if label, isStr := raw.(string); isStr {
			switch strings.ToLower(label) {
			case "strong", "high":
				score += 0.30
			case "moderate", "medium":
				score += 0.20
			case "weak", "low":
				score += 0.10
			}
		}
	}

	if beat, ok := setup.Float("earnings_beat_percent"); ok {
		switch {
		case beat >= 20:
			score += 0.30
		case beat >= 10:
			score += 0.20
		case beat > 0:
			score += 0.10
		}
	}

	return score
}

// scoreSentiment scores alignment of crowd positioning with the trade.
func (s *TradeScorer) scoreSentiment(setup trade.Setup, direction string, b *Breakdown) float64 {
	score := 0.0
	long := direction != trade.DirectionShort

	aligned := func(sentiment string) bool {
		return (long && sentiment == trade.SentimentBullish) ||
			(!long && sentiment == trade.SentimentBearish)
	}

	if sentiment := strings.ToLower(setup.Str("sentiment")); sentiment != "" {
		if aligned(sentiment) {
			score += 0.35
			b.Reasoning = append(b.Reasoning, "Overall sentiment aligned with direction")
		} else if sentiment == trade.SentimentNeutral {
			score += 0.15
		}
	}

	if social := strings.ToLower(setup.Str("social_sentiment")); social != "" {
		if aligned(social) {
			score += 0.25
		} else if social == trade.SentimentNeutral {
			score += 0.10
		}
	}

	upgrades, _ := setup.Float("analyst_upgrades")
	downgrades, _ := setup.Float("analyst_downgrades")
	if (long && upgrades > 0) || (!long && downgrades > 0) {
		score += 0.25
	}

	insiderBuying, _ := setup.Lookup("insider_buying")
	insiderSelling, _ := setup.Lookup("insider_selling")
	if (long && insiderBuying == true) || (!long && insiderSelling == true) {
		score += 0.15
	}

	return score
}

var (
	criticalFields  = []string{"symbol", "price", "volume", "direction"}
	importantFields = []string{"float", "market_cap", "catalyst", "indicators"}
	optionalFields  = []string{"sentiment", "short_interest", "analyst_upgrades"}
)

// scoreCompleteness measures how much of the setup's data is present.
// This is data confidence, not trade quality: a fully-populated terrible
// setup scores 1.0 here.
func (s *TradeScorer) scoreCompleteness(setup trade.Setup) float64 {
	presentFraction := func(fields []string) float64 {
		present := 0
		for _, f := range fields {
			if setup.Has(f) {
				present++
			}
		}
		return float64(present) / float64(len(fields))
	}

	return presentFraction(criticalFields)*0.60 +
		presentFraction(importantFields)*0.30 +
		presentFraction(optionalFields)*0.10
}
