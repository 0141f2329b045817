package forkjoin

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/operator/operatortest"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

type listStrategy struct {
	items []*model.EnumerationItem
}

func (s listStrategy) Enumerate(context.Context, model.DetectionInterval) ([]*model.EnumerationItem, error) {
	return s.items, nil
}

type countingStore struct {
	mu     sync.Mutex
	nextID int64
	calls  int
	byName map[string]*model.EnumerationItem
	err    error
}

func (s *countingStore) FindExistingOrCreate(_ context.Context, item *model.EnumerationItem, _ []string) (*model.EnumerationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.byName == nil {
		s.byName = map[string]*model.EnumerationItem{}
	}
	if existing, ok := s.byName[item.Name]; ok {
		return existing, nil
	}
	s.nextID++
	stored := item.Clone()
	stored.ID = s.nextID
	s.byName[item.Name] = stored
	return stored, nil
}

type nodesOnly map[string]config.PlanNode

func (n nodesOnly) Node(name string) (config.PlanNode, bool) {
	node, ok := n[name]
	return node, ok
}

func (nodesOnly) Run(context.Context, string, *pipeline.Context) (map[string]model.OperatorResult, error) {
	return nil, errors.New("not implemented")
}

func (nodesOnly) RunNode(context.Context, string, *pipeline.Context, map[string]model.OperatorResult) (map[string]model.OperatorResult, error) {
	return nil, errors.New("not implemented")
}

func (nodesOnly) Clone(string, map[string]any) (operator.SubPlan, error) {
	return nil, errors.New("not implemented")
}

func enumeratorContext(pctx *pipeline.Context, params config.Params) *operator.Context {
	return &operator.Context{Pipeline: pctx, Node: config.PlanNode{Name: "enumerate", Type: EnumeratorType, Params: params}}
}

func TestEnumeratorBackfillsNamesAndChecksIDKeys(t *testing.T) {
	t.Parallel()

	components := pipeline.NewComponents()
	components.Enumerators.MustRegister("list", func(pipeline.ComponentSpec) (pipeline.EnumerationStrategy, error) {
		return listStrategy{items: []*model.EnumerationItem{
			{Params: map[string]any{"country": "fr", "device": "mobile"}},
			{Name: "named", Params: map[string]any{"country": "us"}},
		}}, nil
	})
	pctx := operatortest.NewPipeline(model.Detection, components, nil)

	outputs, err := operatortest.Run(context.Background(), NewEnumerator(), enumeratorContext(pctx, config.Params{
		"component.type": "list",
		"idKeys":         []any{"country"},
	}))
	require.NoError(t, err)

	result, ok := outputs[EnumeratorOutput].(*model.EnumerationResult)
	require.True(t, ok)
	require.Equal(t, []string{"country"}, result.IDKeys)
	require.Len(t, result.Items, 2)
	require.Equal(t, "country=fr,device=mobile", result.Items[0].Name)
	require.Equal(t, "named", result.Items[1].Name)

	_, err = operatortest.Run(context.Background(), NewEnumerator(), enumeratorContext(pctx, config.Params{
		"component.type": "list",
		"idKeys":         "device",
	}))
	var validationErr *detecterrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Contains(t, validationErr.Message, "missing id keys device")
}

func TestEnumeratorShortCircuitsOnScopedRun(t *testing.T) {
	t.Parallel()

	item := &model.EnumerationItem{ID: 3, Name: "country=fr", Params: map[string]any{"country": "fr"}}
	pctx := operatortest.NewPipeline(model.Detection, pipeline.NewComponents(), nil).WithEnumerationItem(item)

	outputs, err := operatortest.Run(context.Background(), NewEnumerator(), enumeratorContext(pctx, config.Params{"component.type": "unregistered"}))
	require.NoError(t, err)

	result := outputs[EnumeratorOutput].(*model.EnumerationResult)
	require.Len(t, result.Items, 1)
	require.Same(t, item, result.Items[0])
}

func TestResolveItemsByUsage(t *testing.T) {
	t.Parallel()

	items := []*model.EnumerationItem{
		{Name: "a", Params: map[string]any{"k": "a"}},
		{Name: "b", Params: map[string]any{"k": "b"}},
	}

	store := &countingStore{}
	evaluation := operatortest.NewPipeline(model.Evaluation, nil, store)
	resolved, err := ResolveItems(context.Background(), evaluation, items, nil)
	require.NoError(t, err)
	require.Equal(t, items, resolved)
	require.Zero(t, store.calls)

	detection := operatortest.NewPipeline(model.Detection, nil, store)
	first, err := ResolveItems(context.Background(), detection, items, nil)
	require.NoError(t, err)
	second, err := ResolveItems(context.Background(), detection, items, nil)
	require.NoError(t, err)

	require.Len(t, first, 2)
	for i := range first {
		require.NotZero(t, first[i].ID)
		require.Equal(t, first[i].ID, second[i].ID)
		require.NotNil(t, first[i].AlertID)
		require.Equal(t, int64(42), *first[i].AlertID)
	}
	require.Nil(t, items[0].AlertID)
	require.Zero(t, items[0].ID)

	persisted := []*model.EnumerationItem{{ID: 99, Name: "kept"}}
	kept, err := ResolveItems(context.Background(), detection, persisted, nil)
	require.NoError(t, err)
	require.Same(t, persisted[0], kept[0])
}

func TestResolveItemsErrors(t *testing.T) {
	t.Parallel()

	items := []*model.EnumerationItem{{Name: "a"}}

	_, err := ResolveItems(context.Background(), operatortest.NewPipeline(model.Detection, nil, nil), items, nil)
	var validationErr *detecterrors.ValidationError
	require.ErrorAs(t, err, &validationErr)

	boom := errors.New("store unavailable")
	_, err = ResolveItems(context.Background(), operatortest.NewPipeline(model.Detection, nil, &countingStore{err: boom}), items, nil)
	require.ErrorIs(t, err, boom)

	_, err = ResolveItems(context.Background(), operatortest.NewPipeline(model.Usage("PREVIEW"), nil, nil), items, nil)
	require.ErrorAs(t, err, &validationErr)
}

func TestForkJoinInitValidatesReferences(t *testing.T) {
	t.Parallel()

	pctx := operatortest.NewPipeline(model.Detection, nil, nil)
	plan := nodesOnly{
		"enumerate": {Name: "enumerate"},
		"root":      {Name: "root"},
		"combine":   {Name: "combine"},
	}

	cases := []struct {
		name   string
		params config.Params
		field  string
	}{
		{"missing combiner", config.Params{"enumerator": "enumerate", "root": "root"}, "fork.params.combiner"},
		{"unknown root", config.Params{"enumerator": "enumerate", "root": "ghost", "combiner": "combine"}, "fork.params.root"},
		{"self reference", config.Params{"enumerator": "fork", "root": "root", "combiner": "combine"}, "fork.params.enumerator"},
		{"bad timeout", config.Params{"enumerator": "enumerate", "root": "root", "combiner": "combine", "timeout": "soon"}, "fork.params.timeout"},
	}
	for _, tc := range cases {
		err := NewForkJoin().Init(context.Background(), &operator.Context{
			Pipeline: pctx,
			Node:     config.PlanNode{Name: "fork", Type: config.ForkJoinType, Params: tc.params},
			Plan:     plan,
		})
		var validationErr *detecterrors.ValidationError
		require.ErrorAs(t, err, &validationErr, tc.name)
		require.Equal(t, tc.field, validationErr.Field, tc.name)
	}

	err := NewForkJoin().Init(context.Background(), &operator.Context{
		Pipeline: pctx,
		Node:     config.PlanNode{Name: "fork", Type: config.ForkJoinType, Params: config.Params{"enumerator": "enumerate", "root": "root", "combiner": "combine"}},
	})
	require.Error(t, err)
}

func TestCombinerFlattensBranchResults(t *testing.T) {
	t.Parallel()

	var branches []*model.ForkJoinItemResult
	for i := 0; i < 12; i++ {
		item := &model.EnumerationItem{Name: model.ToString(i)}
		branch, err := model.NewForkJoinItemResult(item, map[string]model.OperatorResult{
			"output_AnomalyDetectorResult": model.NewResult(model.WithAnomalies(nil)),
		}, model.Detection)
		require.NoError(t, err)
		branches = append(branches, branch)
	}

	pctx := operatortest.NewPipeline(model.Detection, nil, nil)
	outputs, err := operatortest.Run(context.Background(), NewCombiner(), &operator.Context{
		Pipeline: pctx,
		Node:     config.PlanNode{Name: "combine", Type: CombinerType},
		Inputs:   map[string]model.OperatorResult{CombinerInput: &model.ForkJoinResults{Items: branches}},
	})
	require.NoError(t, err)

	combined, ok := outputs[CombinerOutput].(*model.CombinerResult)
	require.True(t, ok)
	require.Equal(t, 12, combined.Len())
	keys := combined.Keys()
	require.Equal(t, "0.output_AnomalyDetectorResult", keys[0])
	require.Equal(t, "11.output_AnomalyDetectorResult", keys[11])

	eleventh, ok := combined.Get("11.output_AnomalyDetectorResult")
	require.True(t, ok)
	owner, ok := eleventh.EnumerationItem()
	require.True(t, ok)
	require.Equal(t, "11", owner.Name)
}

func TestCombinerRejectsMissingBranchResults(t *testing.T) {
	t.Parallel()

	pctx := operatortest.NewPipeline(model.Detection, nil, nil)
	err := NewCombiner().Init(context.Background(), &operator.Context{
		Pipeline: pctx,
		Node:     config.PlanNode{Name: "combine", Type: CombinerType},
		Inputs:   map[string]model.OperatorResult{CombinerInput: model.NewResult()},
	})
	var validationErr *detecterrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
}
