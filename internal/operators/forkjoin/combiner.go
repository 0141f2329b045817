package forkjoin

import (
	"context"
	"fmt"
	"strconv"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

const (
	CombinerType = "Combiner"

	// CombinerInput is the input key ForkJoin hands the branch results under.
	CombinerInput = "forkjoin.results"
	// CombinerOutput is the key the flattened result is published under.
	CombinerOutput = "output_CombinerResult"
)

// Combiner flattens branch results into one map keyed "{index}.{key}".
type Combiner struct {
	operator.Base
	branches []*model.ForkJoinItemResult
}

// NewCombiner is the registry factory.
func NewCombiner() operator.Operator {
	return &Combiner{}
}

func (c *Combiner) Init(_ context.Context, opCtx *operator.Context) error {
	if err := c.Bind(opCtx); err != nil {
		return err
	}
	input, ok := c.Inputs()[CombinerInput]
	if !ok {
		return detecterrors.NewValidationError(c.Node().Name+".inputs", fmt.Sprintf("combiner expects input %q from a fork-join", CombinerInput), nil)
	}
	results, ok := input.(*model.ForkJoinResults)
	if !ok {
		return detecterrors.NewValidationError(c.Node().Name+".inputs", fmt.Sprintf("input %q is %T, not fork-join results", CombinerInput, input), nil)
	}
	c.branches = results.Items
	return nil
}

func (c *Combiner) Execute(context.Context) error {
	c.SetOutput(CombinerOutput, model.NewCombinerResult(Flatten(c.branches)))
	return nil
}

// Flatten prefixes every branch output key with the branch index.
func Flatten(branches []*model.ForkJoinItemResult) map[string]model.OperatorResult {
	out := make(map[string]model.OperatorResult)
	for i, branch := range branches {
		prefix := strconv.Itoa(i) + "."
		for key, result := range branch.Outputs() {
			out[prefix+key] = result
		}
	}
	return out
}
