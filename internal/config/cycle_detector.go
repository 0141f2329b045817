package config

import "sort"

// detectCycle returns the nodes participating in a dependency cycle, or nil
// if the graph is acyclic. Inputs to unknown nodes are ignored here; they
// are reported separately.
func detectCycle(nodes []PlanNode) []string {
	graph := make(map[string][]string, len(nodes))
	for _, node := range nodes {
		graph[node.Name] = nil
	}
	for _, node := range nodes {
		deps := make([]string, 0, len(node.Inputs))
		for _, dep := range node.Dependencies() {
			if _, ok := graph[dep]; ok {
				deps = append(deps, dep)
			}
		}
		graph[node.Name] = deps
	}

	visiting := make(map[string]bool, len(nodes))
	visited := make(map[string]bool, len(nodes))
	var stack []string

	var cycle []string
	var dfs func(string) bool
	dfs = func(node string) bool {
		visiting[node] = true
		stack = append(stack, node)

		for _, dep := range graph[node] {
			if visited[dep] {
				continue
			}
			if visiting[dep] {
				if idx := indexOf(stack, dep); idx >= 0 {
					cycle = append([]string{}, stack[idx:]...)
					cycle = append(cycle, dep)
				}
				return true
			}
			if dfs(dep) {
				return true
			}
		}

		visiting[node] = false
		visited[node] = true
		stack = stack[:len(stack)-1]
		return false
	}

	names := make([]string, 0, len(graph))
	for name := range graph {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if visited[name] {
			continue
		}
		if dfs(name) {
			break
		}
	}

	return cycle
}

func indexOf(slice []string, target string) int {
	for i, v := range slice {
		if v == target {
			return i
		}
	}
	return -1
}
