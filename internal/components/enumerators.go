package components

import (
	"context"
	"fmt"
	"sort"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

const (
	StaticEnumeratorType    = "static"
	CartesianEnumeratorType = "cartesian"
)

// StaticEnumerator returns the items declared in the pipeline.
type StaticEnumerator struct {
	items []*model.EnumerationItem
}

// NewStaticEnumerator builds a StaticEnumerator. Params: items, a list of
// maps with name, description and params; a map without a params entry is
// used as the params itself.
func NewStaticEnumerator(spec pipeline.ComponentSpec) (pipeline.EnumerationStrategy, error) {
	raw, ok := spec.Params.List("items")
	if !ok {
		return nil, fmt.Errorf("items must be a list")
	}
	e := &StaticEnumerator{}
	for i, entry := range raw {
		fields, ok := model.AsMap(entry)
		if !ok {
			return nil, fmt.Errorf("items[%d] must be a map, got %T", i, entry)
		}
		item, err := itemFromMap(fields)
		if err != nil {
			return nil, fmt.Errorf("items[%d]: %w", i, err)
		}
		e.items = append(e.items, item)
	}
	return e, nil
}

func itemFromMap(fields map[string]any) (*model.EnumerationItem, error) {
	params, hasParams := fields["params"]
	if !hasParams {
		return &model.EnumerationItem{Params: model.CloneMap(fields)}, nil
	}
	paramMap, ok := model.AsMap(params)
	if !ok {
		return nil, fmt.Errorf("params must be a map, got %T", params)
	}
	return &model.EnumerationItem{
		Name:        model.ToString(fields["name"]),
		Description: model.ToString(fields["description"]),
		Params:      model.CloneMap(paramMap),
	}, nil
}

func (e *StaticEnumerator) Enumerate(context.Context, model.DetectionInterval) ([]*model.EnumerationItem, error) {
	out := make([]*model.EnumerationItem, 0, len(e.items))
	for _, item := range e.items {
		out = append(out, item.Clone())
	}
	return out, nil
}

// CartesianEnumerator returns one item per combination of dimension
// values. Dimensions are iterated in key order, values in declared order.
type CartesianEnumerator struct {
	keys   []string
	values [][]any
}

// NewCartesianEnumerator builds a CartesianEnumerator. Params: dimensions,
// a map from param name to a non-empty list of values.
func NewCartesianEnumerator(spec pipeline.ComponentSpec) (pipeline.EnumerationStrategy, error) {
	dimensions, ok := spec.Params.Map("dimensions")
	if !ok || len(dimensions) == 0 {
		return nil, fmt.Errorf("dimensions must be a non-empty map")
	}
	e := &CartesianEnumerator{}
	for key := range dimensions {
		e.keys = append(e.keys, key)
	}
	sort.Strings(e.keys)
	for _, key := range e.keys {
		values, ok := dimensions[key].([]any)
		if !ok || len(values) == 0 {
			return nil, fmt.Errorf("dimension %q must be a non-empty list", key)
		}
		e.values = append(e.values, values)
	}
	return e, nil
}

func (e *CartesianEnumerator) Enumerate(context.Context, model.DetectionInterval) ([]*model.EnumerationItem, error) {
	combos := []map[string]any{{}}
	for d, key := range e.keys {
		next := make([]map[string]any, 0, len(combos)*len(e.values[d]))
		for _, combo := range combos {
			for _, value := range e.values[d] {
				params := model.CloneMap(combo)
				params[key] = model.CloneValue(value)
				next = append(next, params)
			}
		}
		combos = next
	}

	items := make([]*model.EnumerationItem, 0, len(combos))
	for _, params := range combos {
		item := &model.EnumerationItem{Params: params}
		item.EnsureName()
		items = append(items, item)
	}
	return items, nil
}
