package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

func node(name string, deps ...string) config.PlanNode {
	spec := config.PlanNode{Name: name, Type: "Echo"}
	for _, dep := range deps {
		spec.Inputs = append(spec.Inputs, config.Input{SourcePlanNode: dep})
	}
	return spec
}

func TestBuildGraphLevels(t *testing.T) {
	t.Parallel()

	graph, err := BuildGraph([]config.PlanNode{
		node("d", "b", "c"),
		node("a"),
		node("b", "a"),
		node("c", "a"),
	})
	require.NoError(t, err)
	require.Equal(t, [][]string{{"a"}, {"b", "c"}, {"d"}}, graph.Levels)
	require.Equal(t, []string{"d"}, graph.Sinks())

	closure, err := graph.Closure("b")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, closure)
}

func TestBuildGraphRejectsUnknownSource(t *testing.T) {
	t.Parallel()

	_, err := BuildGraph([]config.PlanNode{node("a", "ghost")})
	var validationErr *detecterrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "a.inputs", validationErr.Field)
	require.Contains(t, validationErr.Message, "ghost")
}

func TestBuildGraphRejectsCyclesAndDuplicates(t *testing.T) {
	t.Parallel()

	_, err := BuildGraph([]config.PlanNode{node("a", "c"), node("b", "a"), node("c", "b")})
	require.ErrorContains(t, err, "cycle")

	_, err = BuildGraph([]config.PlanNode{node("a"), node("a")})
	require.ErrorContains(t, err, "duplicate")
}

func TestSinksSkipSubPlanReferences(t *testing.T) {
	t.Parallel()

	graph, err := BuildGraph([]config.PlanNode{
		node("items"),
		node("fetch"),
		node("detect", "fetch"),
		node("combine"),
		{Name: "fanout", Type: config.ForkJoinType, Params: config.Params{"enumerator": "items", "root": "detect", "combiner": "combine"}},
		node("report", "fanout"),
	})
	require.NoError(t, err)
	require.Equal(t, []string{"report"}, graph.Sinks())

	root, err := DefaultRoot(graph)
	require.NoError(t, err)
	require.Equal(t, "report", root)
}

func TestDefaultRootNeedsSingleSink(t *testing.T) {
	t.Parallel()

	graph, err := BuildGraph([]config.PlanNode{node("a"), node("b")})
	require.NoError(t, err)
	_, err = DefaultRoot(graph)
	require.ErrorContains(t, err, "2 sink nodes")
}

func TestGeneratePlanCoversRootClosure(t *testing.T) {
	t.Parallel()

	graph, err := BuildGraph([]config.PlanNode{node("a"), node("b", "a"), node("c", "a"), node("other")})
	require.NoError(t, err)

	plan, err := GeneratePlan(graph, "b")
	require.NoError(t, err)
	require.Equal(t, 2, plan.NodeCount())
	require.Equal(t, "Level 0 (1 nodes): a (Echo)\nLevel 1 (1 nodes): b (Echo)\n", plan.String())

	full, err := GeneratePlan(graph, "")
	require.NoError(t, err)
	require.Equal(t, 4, full.NodeCount())

	_, err = GeneratePlan(graph, "missing")
	require.Error(t, err)
}

func TestSubstituteParamsKeepsTypes(t *testing.T) {
	t.Parallel()

	params := config.Params{
		"threshold": "${limit}",
		"label":     "${country}-sales",
		"nested":    map[string]any{"list": []any{"${country}", 3}},
		"plain":     "no templates",
	}
	out, err := SubstituteParams(params, map[string]any{"limit": 10, "country": "fr"})
	require.NoError(t, err)
	require.Equal(t, 10, out["threshold"])
	require.Equal(t, "fr-sales", out["label"])
	require.Equal(t, map[string]any{"list": []any{"fr", 3}}, out["nested"])
	require.Equal(t, "no templates", out["plain"])
	require.Equal(t, "${limit}", params["threshold"])
}

func TestSubstituteParamsRejectsMissingKeys(t *testing.T) {
	t.Parallel()

	_, err := SubstituteParams(config.Params{"v": "${missing}"}, map[string]any{})
	require.ErrorContains(t, err, "missing")

	_, err = SubstituteParams(config.Params{"v": "a ${x} b ${y}"}, map[string]any{"x": 1})
	require.ErrorContains(t, err, "[y]")
}

func TestCloneSubgraphLeavesSourceUntouched(t *testing.T) {
	t.Parallel()

	fetch := node("fetch")
	fetch.Params = config.Params{"country": "${country}"}
	graph, err := BuildGraph([]config.PlanNode{fetch, node("detect", "fetch"), node("unrelated")})
	require.NoError(t, err)

	clone, err := CloneSubgraph(graph, "detect", map[string]any{"country": "fr"})
	require.NoError(t, err)
	require.Len(t, clone.Nodes, 2)
	require.Equal(t, "fr", clone.Nodes["fetch"].Spec.Params["country"])
	require.Equal(t, "${country}", graph.Nodes["fetch"].Spec.Params["country"])

	_, err = CloneSubgraph(graph, "detect", map[string]any{})
	var validationErr *detecterrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "fetch.params", validationErr.Field)
}

func TestCloneSubgraphExpandsNestedTemplateParams(t *testing.T) {
	t.Parallel()

	tpl, err := config.ParseTemplateBytes("nested.yaml", []byte(`
name: nested
nodes:
  - name: fetch
    type: DataFetcher
    params:
      component:
        type: static
        dataset: ${country}
        filters:
          limit: ${limit}
`))
	require.NoError(t, err)
	graph, err := BuildTemplateGraph(tpl)
	require.NoError(t, err)

	clone, err := CloneSubgraph(graph, "fetch", map[string]any{"country": "fr", "limit": 5})
	require.NoError(t, err)

	component := clone.Nodes["fetch"].Spec.Params.Component()
	require.Equal(t, "fr", component.StringOr("dataset", ""))
	filters, ok := component.Map("filters")
	require.True(t, ok)
	require.Equal(t, 5, filters["limit"])
	require.Equal(t, "${country}", graph.Nodes["fetch"].Spec.Params.Component().StringOr("dataset", ""))
}
