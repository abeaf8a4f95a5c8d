package rules

import "strings"

// KeywordMatcher decides whether a free-text field matches a named market
// situation. The pattern operator is a heuristic, so the matcher is an
// injection point rather than a hardcoded list.
type KeywordMatcher interface {
	Match(actual, want string) bool
}

// VocabularyMatcher matches a small fixed vocabulary of price-action terms
// and falls back to plain case-insensitive substring containment for terms
// outside the vocabulary.
type VocabularyMatcher struct {
	vocab map[string][]string
}

// DefaultKeywordMatcher returns the stock price-action vocabulary.
func DefaultKeywordMatcher() *VocabularyMatcher {
	return &VocabularyMatcher{
		vocab: map[string][]string{
			"consolidation":   {"consolidat", "tight", "range", "coil"},
			"breakout":        {"breakout", "break out", "breaking out", "new high"},
			"failed_breakout": {"failed", "fakeout", "reject", "fail"},
			"reversal":        {"reversal", "revers", "bounce", "bottom"},
			"resistance":      {"resistance", "rejection", "ceiling"},
		},
	}
}

// Match reports whether actual describes the wanted situation.
func (m *VocabularyMatcher) Match(actual, want string) bool {
	text := strings.ToLower(actual)
	key := strings.ToLower(want)
	if synonyms, ok := m.vocab[key]; ok {
		for _, syn := range synonyms {
			if strings.Contains(text, syn) {
				return true
			}
		}
		return false
	}
	// Unknown vocabulary term: plain substring containment.
	return key != "" && strings.Contains(text, key)
}
