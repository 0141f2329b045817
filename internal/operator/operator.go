// Package operator defines the contract every plan node type implements
// and the registry mapping type keys to operator factories.
package operator

import (
	"context"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

// Operator is the executable counterpart of a plan node type.
//
// An operator is created fresh for each node execution and never reused:
//   - Init binds parameters and inputs and checks structural preconditions
//     such as input arity. It must not perform I/O.
//   - Execute performs the work. External resources are acquired and
//     released inside Execute.
//   - Outputs returns the results keyed by output key once Execute has
//     returned without error.
type Operator interface {
	Init(ctx context.Context, opCtx *Context) error
	Execute(ctx context.Context) error
	Outputs() map[string]model.OperatorResult
}

// Context is what an operator receives at Init.
type Context struct {
	Pipeline *pipeline.Context
	Node     config.PlanNode
	Inputs   map[string]model.OperatorResult
	Plan     SubPlan
}

// SubPlan is the view of the enclosing plan offered to operators that run
// parts of it themselves, such as fork-join.
type SubPlan interface {
	// Node returns a declaration from the plan.
	Node(name string) (config.PlanNode, bool)

	// Run executes the named node after its dependencies and returns the
	// node's published outputs.
	Run(ctx context.Context, node string, pctx *pipeline.Context) (map[string]model.OperatorResult, error)

	// RunNode executes a single node with the given inputs, ignoring its
	// declared inputs.
	RunNode(ctx context.Context, node string, pctx *pipeline.Context, inputs map[string]model.OperatorResult) (map[string]model.OperatorResult, error)

	// Clone deep copies the sub-DAG rooted at root, substituting values
	// into every templated parameter. The clone shares no mutable state
	// with the receiver.
	Clone(root string, values map[string]any) (SubPlan, error)
}

// Factory creates a fresh operator.
type Factory func() Operator
