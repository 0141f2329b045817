// Package operatortest provides helpers for testing operators in isolation.
package operatortest

import (
	"context"
	"time"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/logger"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

// Interval is the detection interval used by NewPipeline: one UTC day.
var Interval = model.DetectionInterval{
	Start:    time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
	End:      time.Date(2024, time.March, 2, 0, 0, 0, 0, time.UTC),
	Location: time.UTC,
}

// Clock is the fixed time returned by the application clock.
var Clock = time.Date(2024, time.March, 2, 1, 0, 0, 0, time.UTC)

// NewPipeline returns a run context with a two-worker pool, a nop logger
// and a fixed clock.
func NewPipeline(usage model.Usage, components *pipeline.Components, items pipeline.EnumerationItemManager) *pipeline.Context {
	settings := config.ForkJoinSettings{Parallelism: 2, Timeout: 10 * time.Second}
	app := pipeline.NewApplicationContext(settings, components, items, logger.Nop())
	app.Clock = func() time.Time { return Clock }

	alertID := int64(42)
	return &pipeline.Context{
		Usage:     usage,
		AlertID:   &alertID,
		Namespace: "test",
		Interval:  Interval,
		RunID:     "run-test",
		App:       app,
	}
}

// Run initialises and executes op, returning its outputs.
func Run(ctx context.Context, op operator.Operator, opCtx *operator.Context) (map[string]model.OperatorResult, error) {
	if err := op.Init(ctx, opCtx); err != nil {
		return nil, err
	}
	if err := op.Execute(ctx); err != nil {
		return nil, err
	}
	return op.Outputs(), nil
}
