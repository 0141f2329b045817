package engine

import (
	"fmt"
	"strings"
)

// ExecutionPlan describes the dependency levels of a graph. Nodes in one
// level have no dependency on each other.
type ExecutionPlan struct {
	Root   string           `json:"root,omitempty" yaml:"root,omitempty"`
	Levels []ExecutionLevel `json:"levels" yaml:"levels"`
}

// ExecutionLevel is one set of mutually independent nodes.
type ExecutionLevel struct {
	Nodes []ExecutionNode `json:"nodes" yaml:"nodes"`
}

// ExecutionNode is a node name with its operator type.
type ExecutionNode struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// GeneratePlan lists the levels of the nodes root depends on, which is
// what an execution of root will run. An empty root covers the whole graph.
func GeneratePlan(graph *Graph, root string) (*ExecutionPlan, error) {
	if graph == nil {
		return nil, fmt.Errorf("graph cannot be nil")
	}

	include := func(string) bool { return true }
	if root != "" {
		closure, err := graph.Closure(root)
		if err != nil {
			return nil, err
		}
		members := make(map[string]struct{}, len(closure))
		for _, name := range closure {
			members[name] = struct{}{}
		}
		include = func(name string) bool {
			_, ok := members[name]
			return ok
		}
	}

	plan := &ExecutionPlan{Root: root}
	for _, names := range graph.Levels {
		var level ExecutionLevel
		for _, name := range names {
			if !include(name) {
				continue
			}
			level.Nodes = append(level.Nodes, ExecutionNode{Name: name, Type: graph.Nodes[name].Spec.Type})
		}
		if len(level.Nodes) > 0 {
			plan.Levels = append(plan.Levels, level)
		}
	}

	return plan, nil
}

// NodeCount returns the number of nodes in the plan.
func (p *ExecutionPlan) NodeCount() int {
	count := 0
	for _, level := range p.Levels {
		count += len(level.Nodes)
	}
	return count
}

// String renders a human readable summary of the plan.
func (p *ExecutionPlan) String() string {
	if p == nil {
		return ""
	}

	var b strings.Builder
	for i, level := range p.Levels {
		names := make([]string, 0, len(level.Nodes))
		for _, node := range level.Nodes {
			names = append(names, fmt.Sprintf("%s (%s)", node.Name, node.Type))
		}
		fmt.Fprintf(&b, "Level %d (%d nodes): %s\n", i, len(level.Nodes), strings.Join(names, ", "))
	}
	return b.String()
}
