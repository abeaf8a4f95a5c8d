package rules

import (
	"fmt"
	"strings"

	"ark-trading-engine/internal/trade"
)

// UnknownOperatorPolicy controls what happens when a rule names an
// operator the evaluator does not implement.
type UnknownOperatorPolicy int

const (
	// Permissive passes unknown operators. This preserves the historical
	// behavior where a typo in a pattern file loosens instead of blocks.
	Permissive UnknownOperatorPolicy = iota
	// Strict fails unknown operators.
	Strict
)

// ParsePolicy maps a config string to a policy, defaulting to Permissive.
func ParsePolicy(s string) UnknownOperatorPolicy {
	if strings.EqualFold(s, "strict") {
		return Strict
	}
	return Permissive
}

// Evaluator applies rules to trade setups. It is stateless apart from its
// configuration, so a single instance is safe for concurrent use.
type Evaluator struct {
	UnknownOperators UnknownOperatorPolicy
	Keywords         KeywordMatcher
}

// NewEvaluator creates an evaluator with the default keyword matcher and
// permissive unknown-operator handling.
func NewEvaluator() *Evaluator {
	return &Evaluator{
		UnknownOperators: Permissive,
		Keywords:         DefaultKeywordMatcher(),
	}
}

// Evaluate applies a single rule to the setup. Malformed rule values and
// type mismatches fail the rule; they never return an error because a bad
// declarative entry must not abort the whole match.
func (e *Evaluator) Evaluate(setup trade.Setup, r *Rule) bool {
	actual, found := setup.Lookup(r.Field)
	present := found && actual != nil

	if r.Operator == OpExists {
		expected := true
		if b, ok := r.Value.(bool); ok {
			expected = b
		}
		return present == expected
	}
	if !present {
		return false
	}

	switch r.Operator {
	case OpEquals:
		return strings.EqualFold(stringify(actual), stringify(r.Value))
	case OpNotEquals:
		return !strings.EqualFold(stringify(actual), stringify(r.Value))
	case OpGreaterThan, OpLessThan, OpGreaterOrEqual, OpLessOrEqual:
		return e.compareNumeric(setup, actual, r)
	case OpBetween:
		v, ok := trade.ToFloat(actual)
		if !ok {
			return false
		}
		low, high, ok := rangeBounds(r.Value)
		if !ok {
			return false
		}
		return v >= low && v <= high
	case OpIn:
		needle := stringify(actual)
		for _, candidate := range r.Values {
			if strings.EqualFold(needle, candidate) {
				return true
			}
		}
		return false
	case OpNotContains:
		haystack := strings.ToLower(stringify(actual))
		for _, candidate := range r.Values {
			if candidate != "" && strings.Contains(haystack, strings.ToLower(candidate)) {
				return false
			}
		}
		return true
	case OpPattern:
		matcher := e.Keywords
		if matcher == nil {
			matcher = DefaultKeywordMatcher()
		}
		return matcher.Match(stringify(actual), stringify(r.Value))
	default:
		return e.UnknownOperators == Permissive
	}
}

func (e *Evaluator) compareNumeric(setup trade.Setup, actual any, r *Rule) bool {
	v, ok := trade.ToFloat(actual)
	if !ok {
		return false
	}
	op := r.operand
	if op == nil {
		op = compileOperand(r.Value)
	}
	want, ok := op.resolve(setup)
	if !ok {
		return false
	}
	switch r.Operator {
	case OpGreaterThan:
		return v > want
	case OpLessThan:
		return v < want
	case OpGreaterOrEqual:
		return v >= want
	case OpLessOrEqual:
		return v <= want
	}
	return false
}

func stringify(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
