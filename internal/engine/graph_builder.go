package engine

import (
	"fmt"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// BuildGraph constructs the plan graph. Inputs naming a node that is not in
// nodes, duplicate names and cycles are rejected before anything executes.
func BuildGraph(nodes []config.PlanNode) (*Graph, error) {
	graph := NewGraph()

	for _, spec := range nodes {
		if _, err := graph.AddNode(spec); err != nil {
			return nil, err
		}
	}

	for _, spec := range nodes {
		for _, dependency := range spec.Dependencies() {
			if _, ok := graph.Nodes[dependency]; !ok {
				return nil, detecterrors.NewValidationError(
					spec.Name+".inputs",
					fmt.Sprintf("node %q consumes unknown node %q", spec.Name, dependency),
					nil,
				)
			}
			if err := graph.AddEdge(dependency, spec.Name); err != nil {
				return nil, err
			}
		}
	}

	if err := graph.TopologicalSort(); err != nil {
		return nil, err
	}

	return graph, nil
}

// BuildTemplateGraph validates a template and builds its graph.
func BuildTemplateGraph(tpl *config.Template) (*Graph, error) {
	if err := config.ValidateTemplate(tpl); err != nil {
		return nil, err
	}
	return BuildGraph(tpl.Nodes)
}
