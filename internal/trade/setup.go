package trade

import (
	"strings"
)

// Direction values for a trade setup
const (
	DirectionLong  = "long"
	DirectionShort = "short"
	DirectionSwing = "swing"
)

// Sentiment values for a trade setup
const (
	SentimentBullish = "bullish"
	SentimentBearish = "bearish"
	SentimentNeutral = "neutral"
)

// Setup is the record describing a candidate trade. It is a map-backed
// record because upstream collaborators (data aggregator, agent bus) supply
// loosely-shaped JSON and rule definitions address fields by dotted path.
// Pipeline stages never mutate a Setup they received; each stage clones,
// writes its contribution, and returns the new value.
type Setup map[string]any

// New creates a Setup from a plain map. A nil map yields an empty Setup.
func New(fields map[string]any) Setup {
	s := make(Setup, len(fields))
	for k, v := range fields {
		s[k] = v
	}
	return s
}

// Clone returns a deep copy of the setup. Nested maps and slices are
// copied so that enrichment on the clone cannot leak into the original.
func (s Setup) Clone() Setup {
	out := make(Setup, len(s))
	for k, v := range s {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(val))
		for k, inner := range val {
			m[k] = cloneValue(inner)
		}
		return m
	case []any:
		list := make([]any, len(val))
		for i, inner := range val {
			list[i] = cloneValue(inner)
		}
		return list
	case []string:
		list := make([]string, len(val))
		copy(list, val)
		return list
	default:
		return v
	}
}

// Lookup resolves a dotted field path (e.g. "indicators.rsi") into the
// setup. The second return reports whether the full path exists.
func (s Setup) Lookup(path string) (any, bool) {
	if path == "" {
		return nil, false
	}
	parts := strings.Split(path, ".")
	var current any = map[string]any(s)
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			if sm, isSetup := current.(Setup); isSetup {
				m = map[string]any(sm)
			} else {
				return nil, false
			}
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// Has reports whether a field path exists and is non-nil.
func (s Setup) Has(path string) bool {
	v, ok := s.Lookup(path)
	return ok && v != nil
}

// Str returns a string field, or "" when absent or not a string.
func (s Setup) Str(path string) string {
	v, ok := s.Lookup(path)
	if !ok {
		return ""
	}
	str, _ := v.(string)
	return str
}

// Float returns a numeric field coerced to float64. The second return
// reports whether the field exists and is numeric.
func (s Setup) Float(path string) (float64, bool) {
	v, ok := s.Lookup(path)
	if !ok {
		return 0, false
	}
	return ToFloat(v)
}

// ToFloat coerces the common numeric shapes that arrive from JSON and
// native callers. Non-numeric values report false rather than erroring.
func ToFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

// Symbol returns the ticker symbol.
func (s Setup) Symbol() string { return s.Str("symbol") }

// Direction returns the trade direction, defaulting to long when unset.
func (s Setup) Direction() string {
	d := strings.ToLower(s.Str("direction"))
	switch d {
	case DirectionLong, DirectionShort, DirectionSwing:
		return d
	default:
		return DirectionLong
	}
}

// Price returns the current price, 0 when absent.
func (s Setup) Price() float64 {
	p, _ := s.Float("price")
	return p
}

// Confidence returns the pattern-match confidence attached by the
// pattern engine, 0 when the setup has not been matched yet.
func (s Setup) Confidence() float64 {
	c, _ := s.Float("confidence")
	return c
}

// Set writes a stage-owned field on the setup. Callers are expected to
// operate on a clone; stages only Set keys they own (scores, status, ...).
func (s Setup) Set(key string, value any) {
	s[key] = value
}

// MergeAbsent writes each field only when the setup does not already carry
// it. Enrichment is append-only: later stages must never erase what
// earlier stages wrote, so pattern metadata lands through this path.
func (s Setup) MergeAbsent(fields map[string]any) {
	for k, v := range fields {
		if existing, ok := s[k]; !ok || existing == nil {
			s[k] = v
		}
	}
}

// AppendProcessed appends a stage name to the ordered agents_processed
// list, preserving entries written by earlier stages.
func (s Setup) AppendProcessed(stage string) {
	s["agents_processed"] = append(s.Processed(), stage)
}

// Processed returns the ordered list of stage names that touched the setup.
func (s Setup) Processed() []string {
	switch list := s["agents_processed"].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, v := range list {
			if str, ok := v.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

// AppendWarning adds a warning without dropping earlier ones.
func (s Setup) AppendWarning(msg string) {
	s["warnings"] = append(s.Warnings(), msg)
}

// Warnings returns accumulated warnings.
func (s Setup) Warnings() []string {
	switch list := s["warnings"].(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, v := range list {
			if str, ok := v.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
