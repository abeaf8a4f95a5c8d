package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ark-trading-engine/internal/events"
	"ark-trading-engine/internal/logging"
	"ark-trading-engine/internal/patterns"
	"ark-trading-engine/internal/planner"
	"ark-trading-engine/internal/policy"
	"ark-trading-engine/internal/scoring"
	"ark-trading-engine/internal/trade"
)

// Result statuses
const (
	StatusPlanned  = "planned"
	StatusRejected = "rejected"
)

// Executor is the execution collaborator that receives accepted plans.
// The engine never talks to a broker itself.
type Executor interface {
	Execute(ctx context.Context, result *Result) error
}

// Result is what one pipeline invocation hands back to the caller: either
// a rejection with reasons or the enriched setup with its execution plan.
type Result struct {
	ID          string                 `json:"id"`
	Status      string                 `json:"status"`
	Stage       string                 `json:"stage,omitempty"` // stage that rejected, empty when planned
	Reasons     []string               `json:"reasons,omitempty"`
	Setup       trade.Setup            `json:"setup"`
	Pattern     string                 `json:"pattern,omitempty"`
	Confidence  float64                `json:"confidence"`
	Scores      *scoring.Breakdown     `json:"scores,omitempty"`
	Plan        *planner.ExecutionPlan `json:"plan,omitempty"`
	ProcessedAt time.Time              `json:"processed_at"`
}

// Config tunes the pipeline.
type Config struct {
	MinConfidence float64 // minimum pattern confidence to accept a match
}

// Pipeline chains the four stages: pattern engine, trade scorer, policy
// gate, plan builder. Every stage is stateless, so a single pipeline can
// serve concurrent Process calls for independent setups.
type Pipeline struct {
	engine        *patterns.Engine
	scorer        *scoring.TradeScorer
	validator     *policy.Validator
	builder       *planner.Builder
	executor      Executor
	bus           *events.EventBus
	minConfidence float64
	logger        zerolog.Logger
}

// New creates a pipeline. executor and bus may be nil; the pipeline then
// returns results without routing or publishing.
func New(cfg Config, engine *patterns.Engine, scorer *scoring.TradeScorer,
	validator *policy.Validator, builder *planner.Builder,
	executor Executor, bus *events.EventBus, logger zerolog.Logger) *Pipeline {

	minConfidence := cfg.MinConfidence
	if minConfidence <= 0 {
		minConfidence = 0.6
	}
	return &Pipeline{
		engine:        engine,
		scorer:        scorer,
		validator:     validator,
		builder:       builder,
		executor:      executor,
		bus:           bus,
		minConfidence: minConfidence,
		logger:        logger,
	}
}

// Process runs one trade setup through the full pipeline. It never errors
// on the content of the setup itself: malformed or unmatchable setups come
// back as structured rejections. The error return is reserved for
// collaborator failures (executor).
func (p *Pipeline) Process(ctx context.Context, setup trade.Setup) (*Result, error) {
	// Each run carries its own trace ID, visible in every log line below
	// and in the context handed to the executor.
	ctx, logger := logging.WithTrace(ctx, p.logger)

	result := &Result{
		ID:          uuid.New().String(),
		ProcessedAt: time.Now(),
	}

	if reasons := validateInput(setup); len(reasons) > 0 {
		return p.reject(logger, result, setup, "ingestion", reasons), nil
	}

	// Stage 1: pattern engine
	matches := p.engine.MatchAll(setup, setup.Direction(), p.minConfidence)
	if len(matches) == 0 {
		return p.reject(logger, result, setup, patterns.StageName, []string{
			fmt.Sprintf("no pattern matched at or above %.0f%% confidence", p.minConfidence*100),
		}), nil
	}
	best := matches[0]
	enriched := p.engine.EnrichSetup(setup, best)
	result.Pattern = enriched.Str("pattern")
	result.Confidence = best.Confidence

	logger.Debug().Str("symbol", setup.Symbol()).
		Str("pattern", best.PatternID).
		Float64("confidence", best.Confidence).
		Int("candidates", len(matches)).
		Msg("Pattern matched")
	if p.bus != nil {
		p.bus.Publish(events.Event{
			Type: events.EventPatternMatched,
			Data: map[string]interface{}{
				"symbol":     setup.Symbol(),
				"pattern_id": best.PatternID,
				"confidence": best.Confidence,
				"candidates": len(matches),
			},
		})
	}

	// Stage 2: trade scorer
	breakdown := p.scorer.Score(enriched, nil)
	enriched.Set("scores", map[string]any{
		"technical":      breakdown.Technical,
		"fundamental":    breakdown.Fundamental,
		"catalyst":       breakdown.Catalyst,
		"sentiment":      breakdown.Sentiment,
		"weighted_total": breakdown.WeightedTotal,
	})
	enriched.Set("status", "scored")
	enriched.AppendProcessed(scoring.StageName)
	result.Scores = breakdown

	// Stage 3: policy gate
	decision := p.validator.Validate(enriched)
	enriched.AppendProcessed(policy.StageName)
	for _, warning := range decision.Warnings {
		enriched.AppendWarning(warning)
	}
	if !decision.Approved {
		enriched.Set("validation_errors", decision.Errors)
		if p.bus != nil {
			p.bus.Publish(events.Event{
				Type: events.EventPolicyRejected,
				Data: map[string]interface{}{
					"symbol": setup.Symbol(),
					"errors": decision.Errors,
				},
			})
		}
		return p.reject(logger, result, enriched, policy.StageName, decision.Errors), nil
	}

	// Stage 4: plan builder
	builder := p.builder
	if rm, ok := enriched["risk_management"].(*patterns.RiskManagement); ok && rm.MaxPositionSize > 0 {
		builder = builder.MaxPositionOverride(rm.MaxPositionSize)
	}
	plan, err := builder.Build(enriched)
	if err != nil {
		if p.bus != nil {
			p.bus.PublishPipelineError(setup.Symbol(), err)
		}
		return p.reject(logger, result, enriched, planner.StageName, []string{err.Error()}), nil
	}
	enriched.Set("execution_plan", plan)
	enriched.Set("status", StatusPlanned)
	enriched.AppendProcessed(planner.StageName)

	result.Status = StatusPlanned
	result.Setup = enriched
	result.Plan = plan

	if p.bus != nil {
		p.bus.PublishPlanBuilt(plan.Symbol, plan.Position.Shares, plan.Entry.Price,
			plan.Stop.Price, plan.Risk.RiskDollars)
		p.bus.PublishSignalGenerated(result.ID, plan.Symbol, plan.Direction,
			result.Pattern, result.Confidence, breakdown.WeightedTotal)
	}

	if p.executor != nil {
		if err := p.executor.Execute(ctx, result); err != nil {
			// The plan is still valid; routing is the collaborator's
			// problem and is surfaced to the caller.
			logger.Error().Err(err).Str("symbol", plan.Symbol).
				Msg("Executor rejected routed plan")
			return result, fmt.Errorf("plan built but routing failed: %w", err)
		}
	}

	logger.Info().Str("signal_id", result.ID).
		Str("symbol", plan.Symbol).
		Str("pattern", result.Pattern).
		Float64("confidence", result.Confidence).
		Float64("weighted_total", breakdown.WeightedTotal).
		Int("shares", plan.Position.Shares).
		Msg("Trade signal planned")
	return result, nil
}

func (p *Pipeline) reject(logger zerolog.Logger, result *Result, setup trade.Setup, stage string, reasons []string) *Result {
	rejected := setup.Clone()
	rejected.Set("status", StatusRejected)

	result.Status = StatusRejected
	result.Stage = stage
	result.Reasons = reasons
	result.Setup = rejected

	if p.bus != nil {
		p.bus.PublishSetupRejected(setup.Symbol(), stage, reasons)
	}
	logger.Info().Str("symbol", setup.Symbol()).
		Str("stage", stage).
		Strs("reasons", reasons).
		Msg("Trade setup rejected")
	return result
}

// validateInput checks the bare minimum a setup needs before the pattern
// stage can do anything useful.
func validateInput(setup trade.Setup) []string {
	var reasons []string
	if setup.Symbol() == "" {
		reasons = append(reasons, "missing symbol")
	}
	if setup.Price() <= 0 {
		reasons = append(reasons, "missing or invalid price")
	}
	return reasons
}
