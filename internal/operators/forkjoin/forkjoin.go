package forkjoin

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/metrics"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// ForkJoin runs the enumerator sub-plan, clones the root sub-plan once per
// item, runs the clones on the shared worker pool and hands the branch
// results to the combiner. Any branch failure or the timeout fails the
// whole node; surviving branches are discarded.
type ForkJoin struct {
	operator.Base
	enumerator string
	root       string
	combiner   string
	dryRun     bool
	timeout    time.Duration
}

// NewForkJoin is the registry factory.
func NewForkJoin() operator.Operator {
	return &ForkJoin{}
}

func (f *ForkJoin) Init(_ context.Context, opCtx *operator.Context) error {
	if err := f.Bind(opCtx); err != nil {
		return err
	}

	name := f.Node().Name
	params := f.Params()
	if err := params.Require(name, config.ParamEnumerator, config.ParamRoot, config.ParamCombiner); err != nil {
		return err
	}
	f.enumerator, _ = params.String(config.ParamEnumerator)
	f.root, _ = params.String(config.ParamRoot)
	f.combiner, _ = params.String(config.ParamCombiner)

	if opCtx.Plan == nil {
		return detecterrors.NewValidationError(name, "fork-join needs access to the enclosing plan", nil)
	}
	for _, key := range []string{config.ParamEnumerator, config.ParamRoot, config.ParamCombiner} {
		ref, _ := params.String(key)
		field := fmt.Sprintf("%s.params.%s", name, key)
		if ref == name {
			return detecterrors.NewValidationError(field, "fork-join cannot reference itself", nil)
		}
		if _, ok := opCtx.Plan.Node(ref); !ok {
			return detecterrors.NewValidationError(field, fmt.Sprintf("references unknown node %q", ref), nil)
		}
	}

	if dryRun, ok := params.Bool("dryRun"); ok {
		f.dryRun = dryRun
	}

	f.timeout = f.Pipeline().App.ForkJoin.Timeout
	if raw, ok := params.String("timeout"); ok && raw != "" {
		timeout, err := time.ParseDuration(raw)
		if err != nil || timeout <= 0 {
			return detecterrors.NewValidationError(name+".params.timeout", fmt.Sprintf("invalid timeout %q", raw), err)
		}
		f.timeout = timeout
	}
	return nil
}

func (f *ForkJoin) Execute(ctx context.Context) error {
	pctx := f.Pipeline()
	plan := f.OperatorContext().Plan

	enumeration, err := f.enumerate(ctx)
	if err != nil {
		return err
	}
	if f.dryRun {
		f.SetOutput(fmt.Sprintf("%s:%s:dryRun", f.Node().Type, f.Node().Name), enumeration)
		return nil
	}

	items, err := ResolveItems(ctx, pctx, enumeration.Items, enumeration.IDKeys)
	if err != nil {
		return err
	}

	branches := make([]operator.SubPlan, len(items))
	for i, item := range items {
		clone, err := plan.Clone(f.root, item.Params)
		if err != nil {
			return detecterrors.NewBranchError(i, item.String(), err)
		}
		branches[i] = clone
	}

	results, err := f.fanOut(ctx, items, branches)
	if err != nil {
		return err
	}

	outputs, err := plan.RunNode(ctx, f.combiner, pctx, map[string]model.OperatorResult{
		CombinerInput: &model.ForkJoinResults{Items: results},
	})
	if err != nil {
		return err
	}
	for key, value := range outputs {
		f.SetOutput(key, value)
	}
	return nil
}

func (f *ForkJoin) enumerate(ctx context.Context) (*model.EnumerationResult, error) {
	outputs, err := f.OperatorContext().Plan.Run(ctx, f.enumerator, f.Pipeline())
	if err != nil {
		return nil, err
	}
	for _, key := range model.SortedKeys(outputs) {
		if result, ok := outputs[key].(*model.EnumerationResult); ok {
			return result, nil
		}
	}
	return nil, detecterrors.NewValidationError(
		f.Node().Name+".params."+config.ParamEnumerator,
		fmt.Sprintf("node %q produced no enumeration result", f.enumerator),
		nil,
	)
}

type branchOutcome struct {
	index  int
	result *model.ForkJoinItemResult
}

// fanOut runs every branch on the shared pool. Each branch returns its own
// result over the channel; the caller orders them by index.
func (f *ForkJoin) fanOut(ctx context.Context, items []*model.EnumerationItem, branches []operator.SubPlan) ([]*model.ForkJoinItemResult, error) {
	pctx := f.Pipeline()
	app := pctx.App

	f.Logger().WithFields(map[string]any{
		"branches":    len(items),
		"parallelism": app.Pool.Size(),
		"timeout":     f.timeout.String(),
	}).Info("fork-join fan-out")

	runCtx := ctx
	if f.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	outcomes := make(chan branchOutcome, len(items))
	group, _ := app.Pool.Group(runCtx)
	for i := range items {
		index, item, branch := i, items[i], branches[i]
		group.Go(func(ctx context.Context) error {
			outputs, err := branch.Run(ctx, f.root, pctx.WithEnumerationItem(item))
			if err != nil {
				if ctx.Err() != nil {
					metrics.ObserveBranch(metrics.OutcomeCanceled)
				} else {
					metrics.ObserveBranch(metrics.OutcomeError)
				}
				return detecterrors.NewBranchError(index, item.String(), err)
			}
			result, err := model.NewForkJoinItemResult(item, outputs, pctx.Usage)
			if err != nil {
				metrics.ObserveBranch(metrics.OutcomeError)
				return detecterrors.NewValidationError("context.usage", err.Error(), err)
			}
			metrics.ObserveBranch(metrics.OutcomeSuccess)
			outcomes <- branchOutcome{index: index, result: result}
			return nil
		})
	}

	// Branches that ignore cancellation keep running after the deadline; the
	// node fails without waiting for them. outcomes is buffered, so their
	// late sends never block.
	done := make(chan error, 1)
	go func() { done <- group.Wait() }()

	var err error
	finished := false
	select {
	case err = <-done:
		finished = true
		if err == nil {
			err = runCtx.Err()
		}
	case <-runCtx.Done():
		err = runCtx.Err()
	}
	if err != nil {
		if errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			err = fmt.Errorf("fork-join timed out after %s: %w", f.timeout, err)
		}
		if !finished {
			f.Logger().Warn("abandoning branches still running after cancellation")
		}
		f.Logger().Error(err, "fork-join failed")
		return nil, err
	}
	close(outcomes)

	results := make([]*model.ForkJoinItemResult, len(items))
	for outcome := range outcomes {
		results[outcome.index] = outcome.result
	}
	return results, nil
}
