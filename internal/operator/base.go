package operator

import (
	"fmt"
	"sort"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/logger"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// Base carries the state every built-in operator needs. Embed it and call
// Bind from Init.
type Base struct {
	opCtx   *Context
	outputs map[string]model.OperatorResult
}

// Bind stores the operator context.
func (b *Base) Bind(opCtx *Context) error {
	if opCtx == nil {
		return detecterrors.NewValidationError("operator", "operator context is nil", nil)
	}
	if err := opCtx.Pipeline.Validate(); err != nil {
		return err
	}
	if opCtx.Inputs == nil {
		opCtx.Inputs = map[string]model.OperatorResult{}
	}
	b.opCtx = opCtx
	b.outputs = make(map[string]model.OperatorResult)
	return nil
}

// OperatorContext returns the bound context.
func (b *Base) OperatorContext() *Context {
	return b.opCtx
}

// Node returns the plan node declaration.
func (b *Base) Node() config.PlanNode {
	return b.opCtx.Node
}

// Params returns the node params.
func (b *Base) Params() config.Params {
	return b.opCtx.Node.Params
}

// Pipeline returns the run context.
func (b *Base) Pipeline() *pipeline.Context {
	return b.opCtx.Pipeline
}

// Inputs returns the inputs keyed by target property.
func (b *Base) Inputs() map[string]model.OperatorResult {
	return b.opCtx.Inputs
}

// InputKeys returns the input keys in a stable order.
func (b *Base) InputKeys() []string {
	return model.SortedKeys(b.opCtx.Inputs)
}

// Logger returns the run logger with node fields attached.
func (b *Base) Logger() *logger.Logger {
	return b.opCtx.Pipeline.Logger().ForNode(b.opCtx.Node.Name, b.opCtx.Node.Type)
}

// SetOutput publishes a result under key.
func (b *Base) SetOutput(key string, result model.OperatorResult) {
	b.outputs[key] = result
}

// Outputs returns a copy of the published results.
func (b *Base) Outputs() map[string]model.OperatorResult {
	out := make(map[string]model.OperatorResult, len(b.outputs))
	for key, value := range b.outputs {
		out[key] = value
	}
	return out
}

// ExpectInputs fails unless the node has exactly n inputs.
func (b *Base) ExpectInputs(n int) error {
	if got := len(b.opCtx.Inputs); got != n {
		return b.arityError("inputs", n, got)
	}
	return nil
}

// ExpectAtMostOutputs fails when the node renames more than n outputs.
func (b *Base) ExpectAtMostOutputs(n int) error {
	if got := len(b.opCtx.Node.Outputs); got > n {
		return detecterrors.NewValidationError(
			b.opCtx.Node.Name+".outputs",
			fmt.Sprintf("%s node must have at most %d outputs, got %d", b.opCtx.Node.Type, n, got),
			nil,
		)
	}
	return nil
}

// SingleInput returns the only input, failing on any other arity.
func (b *Base) SingleInput() (string, model.OperatorResult, error) {
	if err := b.ExpectInputs(1); err != nil {
		return "", nil, err
	}
	for key, value := range b.opCtx.Inputs {
		return key, value, nil
	}
	return "", nil, nil
}

// InputTables returns every input that carries a table, keyed by input key.
func (b *Base) InputTables() map[string]*model.DataTable {
	tables := make(map[string]*model.DataTable, len(b.opCtx.Inputs))
	for key, value := range b.opCtx.Inputs {
		if table, ok := model.TableOf(value); ok {
			tables[key] = table
		}
	}
	return tables
}

// ComponentSpec builds the spec handed to a component factory. The type is
// read from typeKey in the component params, falling back to the node
// params.
func (b *Base) ComponentSpec(typeKey string) (pipeline.ComponentSpec, error) {
	params := b.Params().Component()
	componentType, ok := params.String(typeKey)
	if !ok || componentType == "" {
		componentType, ok = b.Params().String(typeKey)
	}
	if !ok || componentType == "" {
		return pipeline.ComponentSpec{}, detecterrors.NewValidationError(
			fmt.Sprintf("%s.params.%s.%s", b.opCtx.Node.Name, config.ComponentPrefix, typeKey),
			"required parameter is missing",
			nil,
		)
	}
	return pipeline.ComponentSpec{
		Type:   componentType,
		Node:   b.opCtx.Node.Name,
		Params: params,
		Logger: b.Logger(),
	}, nil
}

// Components returns the component registries.
func (b *Base) Components() *pipeline.Components {
	return b.opCtx.Pipeline.App.Components
}

func (b *Base) arityError(kind string, want, got int) error {
	return detecterrors.NewValidationError(
		b.opCtx.Node.Name+"."+kind,
		fmt.Sprintf("%s node must have exactly %d %s, got %d", b.opCtx.Node.Type, want, kind, got),
		nil,
	)
}

// SortedTableKeys orders a table map for deterministic iteration.
func SortedTableKeys(tables map[string]*model.DataTable) []string {
	keys := make([]string, 0, len(tables))
	for key := range tables {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
