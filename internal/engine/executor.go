package engine

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/logger"
	"github.com/alexisbeaulieu97/detectflow/internal/metrics"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// OutputKey addresses one published output of one node.
type OutputKey struct {
	Node   string
	Output string
}

func (k OutputKey) String() string {
	return k.Node + "." + k.Output
}

// Results holds every output produced by one execution.
type Results map[OutputKey]model.OperatorResult

// NodeOutputs returns the outputs of a single node keyed by output name.
func (r Results) NodeOutputs(node string) map[string]model.OperatorResult {
	out := make(map[string]model.OperatorResult)
	for key, value := range r {
		if key.Node == node {
			out[key.Output] = value
		}
	}
	return out
}

// Keys returns the keys ordered by node then output.
func (r Results) Keys() []OutputKey {
	keys := make([]OutputKey, 0, len(r))
	for key := range r {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Node != keys[j].Node {
			return keys[i].Node < keys[j].Node
		}
		return keys[i].Output < keys[j].Output
	})
	return keys
}

// Executor runs plan graphs. It is safe for concurrent use; all run state
// lives in the per-call resolution.
type Executor struct {
	registry *operator.Registry
	log      *logger.Logger
}

// NewExecutor creates an executor resolving node types through registry.
func NewExecutor(registry *operator.Registry, log *logger.Logger) *Executor {
	return &Executor{registry: registry, log: log}
}

// Execute runs root after everything it depends on and returns every
// output produced, keyed by (node, output name). Any failure aborts the
// whole invocation.
func (e *Executor) Execute(ctx context.Context, graph *Graph, root string, pctx *pipeline.Context) (Results, error) {
	if graph == nil {
		return nil, detecterrors.NewExecutionError(root, fmt.Errorf("graph is nil"))
	}
	if err := pctx.Validate(); err != nil {
		return nil, err
	}
	return e.execute(ctx, &plan{exec: e, graph: graph}, root, pctx)
}

// DefaultRoot picks the single sink of the graph.
func DefaultRoot(graph *Graph) (string, error) {
	sinks := graph.Sinks()
	if len(sinks) != 1 {
		return "", detecterrors.NewValidationError("root", fmt.Sprintf("graph has %d sink nodes %v; choose a root explicitly", len(sinks), sinks), nil)
	}
	return sinks[0], nil
}

func (e *Executor) execute(ctx context.Context, p *plan, root string, pctx *pipeline.Context) (Results, error) {
	r := &resolution{
		plan:    p,
		pctx:    pctx,
		results: make(Results),
		state:   make(map[string]visitState),
	}
	if err := r.resolve(ctx, root); err != nil {
		return nil, err
	}
	return r.results, nil
}

type visitState int

const (
	unvisited visitState = iota
	inProgress
	done
)

// resolution is the state of one executor pass: the memo of resolved nodes
// and the outputs gathered so far. It is never shared between passes.
type resolution struct {
	plan    *plan
	pctx    *pipeline.Context
	results Results
	state   map[string]visitState
}

func (r *resolution) resolve(ctx context.Context, name string) error {
	switch r.state[name] {
	case done:
		return nil
	case inProgress:
		return detecterrors.NewValidationError("nodes", fmt.Sprintf("cycle detected at node %q", name), nil)
	}

	node, ok := r.plan.graph.Nodes[name]
	if !ok {
		return detecterrors.NewValidationError("nodes", fmt.Sprintf("unknown node %q", name), nil)
	}

	r.state[name] = inProgress
	for _, dep := range node.Spec.Dependencies() {
		if err := r.resolve(ctx, dep); err != nil {
			return err
		}
	}

	inputs, err := r.inputsFor(node.Spec)
	if err != nil {
		return err
	}

	outputs, err := r.plan.exec.runNode(ctx, node.Spec, r.pctx, inputs, r.plan)
	if err != nil {
		return err
	}
	for key, value := range outputs {
		r.results[OutputKey{Node: name, Output: key}] = value
	}

	r.state[name] = done
	return nil
}

func (r *resolution) inputsFor(spec config.PlanNode) (map[string]model.OperatorResult, error) {
	inputs := make(map[string]model.OperatorResult, len(spec.Inputs))
	for _, in := range spec.Inputs {
		if in.SourceProperty == "" {
			outputs := r.results.NodeOutputs(in.SourcePlanNode)
			if in.TargetProperty != "" && len(outputs) == 1 {
				for _, value := range outputs {
					inputs[in.TargetProperty] = value
				}
				continue
			}
			for key, value := range outputs {
				inputs[key] = value
			}
			continue
		}

		value, ok := r.results[OutputKey{Node: in.SourcePlanNode, Output: in.SourceProperty}]
		if !ok {
			return nil, detecterrors.NewValidationError(
				spec.Name+".inputs",
				fmt.Sprintf("node %q has no output %q", in.SourcePlanNode, in.SourceProperty),
				nil,
			)
		}
		inputs[in.Target()] = value
	}
	return inputs, nil
}

// runNode instantiates, initialises and executes one operator and returns
// its outputs renamed per the node declaration.
func (e *Executor) runNode(ctx context.Context, spec config.PlanNode, pctx *pipeline.Context, inputs map[string]model.OperatorResult, sub operator.SubPlan) (map[string]model.OperatorResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, detecterrors.NewExecutionError(spec.Name, err)
	}

	op, err := e.registry.New(spec.Type)
	if err != nil {
		return nil, err
	}

	log := e.nodeLogger(pctx, spec)
	log.Debug("executing node")
	log.With("inputs", model.SortedKeys(inputs)).Trace("resolved inputs")

	start := time.Now()
	err = e.initAndExecute(ctx, op, &operator.Context{
		Pipeline: pctx,
		Node:     spec,
		Inputs:   inputs,
		Plan:     sub,
	})
	elapsed := time.Since(start)
	metrics.ObserveOperator(spec.Type, elapsed, err)

	if err != nil {
		log.With("duration", elapsed.String()).Error(err, "node failed")
		return nil, detecterrors.NewExecutionError(spec.Name, err)
	}

	outputs := op.Outputs()
	renamed := make(map[string]model.OperatorResult, len(outputs))
	for key, value := range outputs {
		renamed[spec.OutputName(key)] = value
	}

	log.WithFields(map[string]any{"duration": elapsed.String(), "outputs": len(renamed)}).Debug("node completed")
	return renamed, nil
}

func (e *Executor) initAndExecute(ctx context.Context, op operator.Operator, opCtx *operator.Context) error {
	if err := op.Init(ctx, opCtx); err != nil {
		return err
	}
	return op.Execute(ctx)
}

func (e *Executor) nodeLogger(pctx *pipeline.Context, spec config.PlanNode) *logger.Logger {
	base := pctx.Logger()
	if base == nil {
		base = e.log
	}
	return base.ForNode(spec.Name, spec.Type)
}

// plan binds a graph to the executor; it is the SubPlan operators see.
type plan struct {
	exec  *Executor
	graph *Graph
}

var _ operator.SubPlan = (*plan)(nil)

func (p *plan) Node(name string) (config.PlanNode, bool) {
	return p.graph.Spec(name)
}

func (p *plan) Run(ctx context.Context, node string, pctx *pipeline.Context) (map[string]model.OperatorResult, error) {
	results, err := p.exec.execute(ctx, p, node, pctx)
	if err != nil {
		return nil, err
	}
	return results.NodeOutputs(node), nil
}

func (p *plan) RunNode(ctx context.Context, node string, pctx *pipeline.Context, inputs map[string]model.OperatorResult) (map[string]model.OperatorResult, error) {
	spec, ok := p.graph.Spec(node)
	if !ok {
		return nil, detecterrors.NewValidationError("nodes", fmt.Sprintf("unknown node %q", node), nil)
	}
	return p.exec.runNode(ctx, spec, pctx, inputs, p)
}

func (p *plan) Clone(root string, values map[string]any) (operator.SubPlan, error) {
	graph, err := CloneSubgraph(p.graph, root, values)
	if err != nil {
		return nil, err
	}
	return &plan{exec: p.exec, graph: graph}, nil
}
