// Command evaluate-setup runs a single trade setup JSON file through the
// full signal pipeline and prints the result. Useful for testing pattern
// definitions without standing up the server.
//
// Usage:
//
//	evaluate-setup -patterns ./patterns -setup ./setup.json [-policy ./hrm_rules.json]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"ark-trading-engine/internal/logging"
	"ark-trading-engine/internal/patterns"
	"ark-trading-engine/internal/pipeline"
	"ark-trading-engine/internal/planner"
	"ark-trading-engine/internal/policy"
	"ark-trading-engine/internal/rules"
	"ark-trading-engine/internal/scoring"
	"ark-trading-engine/internal/trade"
)

func main() {
	patternDir := flag.String("patterns", "patterns", "directory of pattern definition JSON files")
	setupPath := flag.String("setup", "", "trade setup JSON file (required)")
	policyPath := flag.String("policy", "", "optional policy ruleset JSON file")
	accountSize := flag.Float64("account", 50000, "account equity in dollars")
	minConfidence := flag.Float64("min-confidence", 0.6, "minimum pattern confidence")
	operatorPolicy := flag.String("unknown-operators", "permissive", "unknown operator policy: permissive or strict")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *setupPath == "" {
		flag.Usage()
		os.Exit(2)
	}

	level := "warn"
	if *verbose {
		level = "debug"
	}
	logger := logging.New(logging.Config{Level: level, Pretty: true}, os.Stderr)

	raw, err := os.ReadFile(*setupPath)
	if err != nil {
		fatal("failed to read setup: %v", err)
	}
	var setup trade.Setup
	if err := json.Unmarshal(raw, &setup); err != nil {
		fatal("failed to parse setup: %v", err)
	}

	library, err := patterns.LoadLibrary(*patternDir, logger)
	if err != nil {
		fatal("failed to load patterns: %v", err)
	}

	evaluator := rules.NewEvaluator()
	evaluator.UnknownOperators = rules.ParsePolicy(*operatorPolicy)

	var ruleset *policy.RuleSet
	if *policyPath != "" {
		ruleset, err = policy.LoadRuleSet(*policyPath, logger)
		if err != nil {
			fatal("failed to load policy ruleset: %v", err)
		}
	}

	pipe := pipeline.New(
		pipeline.Config{MinConfidence: *minConfidence},
		patterns.NewEngine(library, evaluator),
		scoring.NewTradeScorer(),
		policy.NewValidator(ruleset, evaluator, logger),
		planner.NewBuilder(planner.Config{AccountSize: *accountSize}, logger),
		nil, nil, logger,
	)

	result, err := pipe.Process(context.Background(), setup)
	if err != nil {
		fatal("pipeline failed: %v", err)
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fatal("failed to encode result: %v", err)
	}
	fmt.Println(string(out))

	if result.Status == pipeline.StatusRejected {
		os.Exit(1)
	}
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
