package config

// Template is a named pipeline declaration: the plan nodes of one alert.
type Template struct {
	Name        string     `yaml:"name" validate:"required"`
	Description string     `yaml:"description,omitempty"`
	Nodes       []PlanNode `yaml:"nodes" validate:"required,min=1,dive"`
}

// PlanNode declares one step of a pipeline graph.
type PlanNode struct {
	Name    string   `yaml:"name" validate:"required,node_name"`
	Type    string   `yaml:"type" validate:"required"`
	Params  Params   `yaml:"params,omitempty"`
	Inputs  []Input  `yaml:"inputs,omitempty" validate:"dive"`
	Outputs []Output `yaml:"outputs,omitempty" validate:"dive"`
}

// Input wires a sibling node output into this node. An empty SourceProperty
// forwards every output of the source node. TargetProperty defaults to
// SourceProperty.
type Input struct {
	TargetProperty string `yaml:"targetProperty,omitempty"`
	SourcePlanNode string `yaml:"sourcePlanNode" validate:"required"`
	SourceProperty string `yaml:"sourceProperty,omitempty"`
}

// Output renames an operator output key before it is published.
type Output struct {
	OutputKey  string `yaml:"outputKey" validate:"required"`
	OutputName string `yaml:"outputName" validate:"required"`
}

// Target returns the key the input is exposed under inside the consumer.
func (i Input) Target() string {
	if i.TargetProperty != "" {
		return i.TargetProperty
	}
	return i.SourceProperty
}

// Dependencies returns the distinct source nodes in declaration order.
func (n PlanNode) Dependencies() []string {
	seen := make(map[string]struct{}, len(n.Inputs))
	deps := make([]string, 0, len(n.Inputs))
	for _, in := range n.Inputs {
		if _, ok := seen[in.SourcePlanNode]; ok {
			continue
		}
		seen[in.SourcePlanNode] = struct{}{}
		deps = append(deps, in.SourcePlanNode)
	}
	return deps
}

// OutputName maps an operator output key to its published name.
func (n PlanNode) OutputName(key string) string {
	for _, out := range n.Outputs {
		if out.OutputKey == key {
			return out.OutputName
		}
	}
	return key
}

// Clone returns a deep copy; the clone shares nothing mutable with n.
func (n PlanNode) Clone() PlanNode {
	out := PlanNode{
		Name:   n.Name,
		Type:   n.Type,
		Params: n.Params.Clone(),
	}
	if n.Inputs != nil {
		out.Inputs = append([]Input(nil), n.Inputs...)
	}
	if n.Outputs != nil {
		out.Outputs = append([]Output(nil), n.Outputs...)
	}
	return out
}

// Node looks up a node by name.
func (t *Template) Node(name string) (PlanNode, bool) {
	for _, node := range t.Nodes {
		if node.Name == name {
			return node, true
		}
	}
	return PlanNode{}, false
}

// Sinks returns the nodes no other node consumes, in declaration order.
func (t *Template) Sinks() []string {
	consumed := make(map[string]struct{})
	for _, node := range t.Nodes {
		for _, dep := range node.Dependencies() {
			consumed[dep] = struct{}{}
		}
		for _, ref := range SubPlanReferences(node) {
			consumed[ref] = struct{}{}
		}
	}

	var sinks []string
	for _, node := range t.Nodes {
		if _, ok := consumed[node.Name]; !ok {
			sinks = append(sinks, node.Name)
		}
	}
	return sinks
}

// Sub-plan parameter names of fork-join nodes.
const (
	ParamEnumerator = "enumerator"
	ParamRoot       = "root"
	ParamCombiner   = "combiner"
)

// ForkJoinType is the operator type whose params reference sub-plans.
const ForkJoinType = "ForkJoin"

// SubPlanReferences returns the node names a fork-join node refers to
// through its params.
func SubPlanReferences(node PlanNode) []string {
	if node.Type != ForkJoinType {
		return nil
	}
	var refs []string
	for _, key := range []string{ParamEnumerator, ParamRoot, ParamCombiner} {
		if name, ok := node.Params.String(key); ok && name != "" {
			refs = append(refs, name)
		}
	}
	return refs
}
