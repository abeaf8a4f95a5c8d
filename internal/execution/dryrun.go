// Package execution holds the routing side of the engine. The pipeline
// hands finished plans to an Executor; the only implementation shipped
// here is a dry-run recorder, since live order routing is a separate
// system.
package execution

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"ark-trading-engine/internal/logging"
	"ark-trading-engine/internal/pipeline"
)

// DryRunExecutor records every routed plan instead of sending it anywhere.
// Safe for concurrent use.
type DryRunExecutor struct {
	mu     sync.Mutex
	routed []*pipeline.Result
	logger zerolog.Logger
}

func NewDryRunExecutor(logger zerolog.Logger) *DryRunExecutor {
	return &DryRunExecutor{logger: logger}
}

// Execute logs and records the plan. It never fails.
func (d *DryRunExecutor) Execute(ctx context.Context, result *pipeline.Result) error {
	d.mu.Lock()
	d.routed = append(d.routed, result)
	count := len(d.routed)
	d.mu.Unlock()

	d.logger.Info().Str("signal_id", result.ID).
		Str("trace_id", logging.TraceID(ctx)).
		Str("symbol", result.Plan.Symbol).
		Str("direction", result.Plan.Direction).
		Int("shares", result.Plan.Position.Shares).
		Float64("entry", result.Plan.Entry.Price).
		Int("total_routed", count).
		Msg("Dry-run executor recorded plan")
	return nil
}

// Routed returns a copy of every result routed so far, oldest first.
func (d *DryRunExecutor) Routed() []*pipeline.Result {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*pipeline.Result, len(d.routed))
	copy(out, d.routed)
	return out
}
