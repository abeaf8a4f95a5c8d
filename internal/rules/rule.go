package rules

import (
	"encoding/json"
	"strconv"
	"strings"

	"ark-trading-engine/internal/trade"
)

// Operator identifies a comparison in the rule mini-language shared by the
// pattern engine and the policy gate.
type Operator string

const (
	OpEquals         Operator = "eq"
	OpNotEquals      Operator = "not_equals"
	OpGreaterThan    Operator = "gt"
	OpLessThan       Operator = "lt"
	OpGreaterOrEqual Operator = "gte"
	OpLessOrEqual    Operator = "lte"
	OpBetween        Operator = "between"
	OpExists         Operator = "exists"
	OpIn             Operator = "in"
	OpNotContains    Operator = "not_contains"
	OpPattern        Operator = "pattern"
)

// Severity levels for policy rules. Pattern rules leave this empty.
const (
	SeverityCritical = "critical"
	SeverityError    = "error"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

// Rule is a single declarative check against a trade setup field.
// Pattern rules carry Weight (preferred rules only); policy rules carry
// Severity and an optional failure Message.
type Rule struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    any      `json:"value,omitempty"`
	Values   []string `json:"values,omitempty"`
	Weight   float64  `json:"weight,omitempty"`
	Severity string   `json:"severity,omitempty"`
	Message  string   `json:"message,omitempty"`
	Enabled  *bool    `json:"enabled,omitempty"`

	// operand is decoded once at load time so the special
	// "<multiplier>x_<field>" encoding is never string-parsed per
	// evaluation.
	operand operand
}

// IsEnabled reports whether the rule participates in evaluation.
// Rules are enabled unless explicitly switched off.
func (r *Rule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// UnmarshalJSON decodes the rule and compiles its comparison operand.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type plain Rule
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*r = Rule(p)
	r.Compile()
	return nil
}

// Compile resolves the rule's value into a typed operand. Callers that
// build rules in code (tests, inline rulesets) must call Compile before
// evaluation; JSON-loaded rules are compiled automatically.
func (r *Rule) Compile() {
	r.operand = compileOperand(r.Value)
}

// operand is the decoded right-hand side of a numeric comparison: either a
// plain literal or a multiple of another setup field ("2x_avg_volume").
type operand interface {
	resolve(setup trade.Setup) (float64, bool)
}

type literalOperand struct {
	value float64
}

func (o literalOperand) resolve(trade.Setup) (float64, bool) {
	return o.value, true
}

type fieldMultipleOperand struct {
	factor float64
	field  string
}

func (o fieldMultipleOperand) resolve(setup trade.Setup) (float64, bool) {
	base, ok := setup.Float(o.field)
	if !ok {
		return 0, false
	}
	return o.factor * base, true
}

// rawOperand holds values that are not numeric at all (strings for eq,
// lists for between). Numeric resolution fails, which makes the owning
// numeric rule fail instead of erroring.
type rawOperand struct {
	value any
}

func (o rawOperand) resolve(trade.Setup) (float64, bool) {
	f, ok := trade.ToFloat(o.value)
	return f, ok
}

func compileOperand(value any) operand {
	if f, ok := trade.ToFloat(value); ok {
		return literalOperand{value: f}
	}
	if s, ok := value.(string); ok {
		if factor, field, ok := parseFieldMultiple(s); ok {
			return fieldMultipleOperand{factor: factor, field: field}
		}
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return literalOperand{value: f}
		}
	}
	return rawOperand{value: value}
}

// parseFieldMultiple decodes the "<multiplier>x_<field>" form, e.g.
// "2x_avg_volume" meaning twice the value of avg_volume.
func parseFieldMultiple(s string) (factor float64, field string, ok bool) {
	head, rest, found := strings.Cut(s, "x_")
	if !found || rest == "" {
		return 0, "", false
	}
	factor, err := strconv.ParseFloat(head, 64)
	if err != nil || factor <= 0 {
		return 0, "", false
	}
	return factor, rest, true
}

// rangeBounds extracts the inclusive [low, high] pair for a between rule.
func rangeBounds(value any) (low, high float64, ok bool) {
	list, isList := value.([]any)
	if !isList || len(list) != 2 {
		return 0, 0, false
	}
	low, okLow := trade.ToFloat(list[0])
	high, okHigh := trade.ToFloat(list[1])
	if !okLow || !okHigh {
		return 0, 0, false
	}
	return low, high, true
}
