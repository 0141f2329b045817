// Package forkjoin holds the fan-out operators: the Enumerator listing the
// items, ForkJoin cloning and running one sub-plan per item, and the
// Combiner flattening branch results.
package forkjoin

import (
	"context"
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

const (
	EnumeratorType = "Enumerator"

	// EnumeratorOutput is the key the enumeration result is published under.
	EnumeratorOutput = "output_EnumeratorResult"
)

// Enumerator lists the enumeration items of a run. When the run is already
// scoped to one item it returns that item unchanged.
type Enumerator struct {
	operator.Base
	idKeys   []string
	strategy pipeline.EnumerationStrategy
}

// NewEnumerator is the registry factory.
func NewEnumerator() operator.Operator {
	return &Enumerator{}
}

func (e *Enumerator) Init(_ context.Context, opCtx *operator.Context) error {
	if err := e.Bind(opCtx); err != nil {
		return err
	}
	if keys, ok := e.Params().Strings("idKeys"); ok {
		e.idKeys = keys
	}
	if e.Pipeline().EnumerationItem != nil {
		return nil
	}

	spec, err := e.ComponentSpec("type")
	if err != nil {
		return err
	}
	strategy, err := e.Components().Enumerators.New(spec)
	if err != nil {
		return err
	}
	e.strategy = strategy
	return nil
}

func (e *Enumerator) Execute(ctx context.Context) error {
	if item := e.Pipeline().EnumerationItem; item != nil {
		e.SetOutput(EnumeratorOutput, &model.EnumerationResult{Items: []*model.EnumerationItem{item}, IDKeys: e.idKeys})
		return nil
	}

	items, err := e.strategy.Enumerate(ctx, e.Pipeline().Interval)
	if err != nil {
		return err
	}
	for i, item := range items {
		if item == nil {
			return detecterrors.NewValidationError(fmt.Sprintf("%s.items[%d]", e.Node().Name, i), "enumeration item is nil", nil)
		}
		if missing := item.MissingKeys(e.idKeys); len(missing) > 0 {
			return detecterrors.NewValidationError(
				fmt.Sprintf("%s.items[%d]", e.Node().Name, i),
				fmt.Sprintf("item %q is missing id keys %s", item.String(), strings.Join(missing, ", ")),
				nil,
			)
		}
		item.EnsureName()
	}

	e.Logger().With("items", len(items)).Debug("enumeration completed")
	e.SetOutput(EnumeratorOutput, &model.EnumerationResult{Items: items, IDKeys: e.idKeys})
	return nil
}

// ResolveItems applies the usage rule to enumerated items. Detection runs
// stamp the alert id and resolve every item through the item store so
// re-runs reuse the same identities. Evaluation runs use the items as is.
func ResolveItems(ctx context.Context, pctx *pipeline.Context, items []*model.EnumerationItem, idKeys []string) ([]*model.EnumerationItem, error) {
	switch pctx.Usage {
	case model.Evaluation:
		return items, nil
	case model.Detection:
	default:
		return nil, detecterrors.NewValidationError("context.usage", fmt.Sprintf("unsupported usage %q", pctx.Usage), nil)
	}

	store := pctx.App.EnumerationItems
	if store == nil {
		return nil, detecterrors.NewValidationError("enumerationItems", "an enumeration item store is required for DETECTION runs", nil)
	}

	resolved := make([]*model.EnumerationItem, 0, len(items))
	for _, item := range items {
		if item.ID != 0 {
			resolved = append(resolved, item)
			continue
		}
		candidate := item.Clone()
		if pctx.AlertID != nil {
			id := *pctx.AlertID
			candidate.AlertID = &id
		}
		persisted, err := store.FindExistingOrCreate(ctx, candidate, idKeys)
		if err != nil {
			pctx.Logger().With("item", candidate.String()).Error(err, "resolving enumeration item failed")
			return nil, err
		}
		resolved = append(resolved, persisted)
	}
	return resolved, nil
}
