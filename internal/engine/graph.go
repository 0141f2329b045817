package engine

import (
	"fmt"
	"sort"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// Node is a vertex of a plan graph.
type Node struct {
	Name       string
	Spec       config.PlanNode
	DependsOn  []*Node
	Dependents []*Node
}

// Graph is the DAG of one pipeline, or of one fork-join clone.
type Graph struct {
	Nodes  map[string]*Node
	Levels [][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{Nodes: make(map[string]*Node)}
}

// AddNode inserts a plan node as a vertex.
func (g *Graph) AddNode(spec config.PlanNode) (*Node, error) {
	if spec.Name == "" {
		return nil, detecterrors.NewValidationError("nodes", "node name cannot be empty", nil)
	}

	if g.Nodes == nil {
		g.Nodes = make(map[string]*Node)
	}

	if _, exists := g.Nodes[spec.Name]; exists {
		return nil, detecterrors.NewValidationError("nodes", fmt.Sprintf("duplicate node name %q", spec.Name), nil)
	}

	node := &Node{Name: spec.Name, Spec: spec}
	g.Nodes[spec.Name] = node
	return node, nil
}

// AddEdge records that to consumes an output of from.
func (g *Graph) AddEdge(from, to string) error {
	source, ok := g.Nodes[from]
	if !ok {
		return detecterrors.NewValidationError("nodes", fmt.Sprintf("unknown source node %q", from), nil)
	}

	target, ok := g.Nodes[to]
	if !ok {
		return detecterrors.NewValidationError("nodes", fmt.Sprintf("unknown target node %q", to), nil)
	}

	source.Dependents = append(source.Dependents, target)
	target.DependsOn = append(target.DependsOn, source)
	return nil
}

// TopologicalSort computes the DAG levels using Kahn's algorithm and fails
// when a cycle leaves nodes unprocessed.
func (g *Graph) TopologicalSort() error {
	indegree := make(map[string]int, len(g.Nodes))
	for name := range g.Nodes {
		indegree[name] = 0
	}

	for _, node := range g.Nodes {
		for _, dep := range node.Dependents {
			indegree[dep.Name]++
		}
	}

	var queue []string
	for name, degree := range indegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}

	processed := 0
	var levels [][]string

	for len(queue) > 0 {
		currentLevel := queue
		sort.Strings(currentLevel)
		levels = append(levels, append([]string(nil), currentLevel...))

		var nextLevel []string
		for _, name := range currentLevel {
			processed++
			for _, dependent := range g.Nodes[name].Dependents {
				indegree[dependent.Name]--
				if indegree[dependent.Name] == 0 {
					nextLevel = append(nextLevel, dependent.Name)
				}
			}
		}

		queue = nextLevel
	}

	if processed != len(g.Nodes) {
		var stuck []string
		for name, degree := range indegree {
			if degree > 0 {
				stuck = append(stuck, name)
			}
		}
		sort.Strings(stuck)
		return detecterrors.NewValidationError("nodes", fmt.Sprintf("cycle detected while sorting graph: %v", stuck), nil)
	}

	g.Levels = levels
	return nil
}

// Spec returns a node declaration.
func (g *Graph) Spec(name string) (config.PlanNode, bool) {
	node, ok := g.Nodes[name]
	if !ok {
		return config.PlanNode{}, false
	}
	return node.Spec, true
}

// Closure returns root and every node it transitively depends on, in
// dependency order.
func (g *Graph) Closure(root string) ([]string, error) {
	if _, ok := g.Nodes[root]; !ok {
		return nil, detecterrors.NewValidationError("nodes", fmt.Sprintf("unknown node %q", root), nil)
	}

	visited := make(map[string]bool)
	var order []string
	var visit func(*Node)
	visit = func(node *Node) {
		if visited[node.Name] {
			return
		}
		visited[node.Name] = true
		deps := append([]*Node(nil), node.DependsOn...)
		sort.Slice(deps, func(i, j int) bool { return deps[i].Name < deps[j].Name })
		for _, dep := range deps {
			visit(dep)
		}
		order = append(order, node.Name)
	}
	visit(g.Nodes[root])
	return order, nil
}

// Sinks returns the nodes nothing depends on, sorted. Nodes a fork-join
// refers to as sub-plans are not sinks.
func (g *Graph) Sinks() []string {
	referenced := make(map[string]struct{})
	for _, node := range g.Nodes {
		for _, ref := range config.SubPlanReferences(node.Spec) {
			referenced[ref] = struct{}{}
		}
	}

	var sinks []string
	for name, node := range g.Nodes {
		if _, ok := referenced[name]; ok {
			continue
		}
		if len(node.Dependents) == 0 {
			sinks = append(sinks, name)
		}
	}
	sort.Strings(sinks)
	return sinks
}
