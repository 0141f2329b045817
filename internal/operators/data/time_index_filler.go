package data

import (
	"context"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

const (
	TimeIndexFillerType = "TimeIndexFiller"

	// DefaultIndexFiller is used when the node does not name a filler.
	DefaultIndexFiller = "time"
)

// TimeIndexFiller rewrites its single input table onto a gap-free grid.
// The output keeps the input key unless the node renames it.
type TimeIndexFiller struct {
	operator.Base
	inputKey string
	input    *model.DataTable
	filler   pipeline.IndexFiller
}

// NewTimeIndexFiller is the registry factory.
func NewTimeIndexFiller() operator.Operator {
	return &TimeIndexFiller{}
}

func (f *TimeIndexFiller) Init(_ context.Context, opCtx *operator.Context) error {
	if err := f.Bind(opCtx); err != nil {
		return err
	}

	key, input, err := f.SingleInput()
	if err != nil {
		return err
	}
	if err := f.ExpectAtMostOutputs(1); err != nil {
		return err
	}
	table, ok := model.TableOf(input)
	if !ok {
		table = model.NewDataTable(model.ColumnTimestamp)
	}
	f.inputKey = key
	f.input = table

	component := f.Params().Component()
	filler, err := f.Components().IndexFillers.New(pipeline.ComponentSpec{
		Type:   component.StringOr("type", DefaultIndexFiller),
		Node:   f.Node().Name,
		Params: component,
		Logger: f.Logger(),
	})
	if err != nil {
		return err
	}
	f.filler = filler
	return nil
}

func (f *TimeIndexFiller) Execute(ctx context.Context) error {
	filled, err := f.filler.FillIndex(ctx, f.Pipeline().Interval, f.input)
	if err != nil {
		return err
	}

	outputKey := f.inputKey
	if outputs := f.Node().Outputs; len(outputs) == 1 {
		outputKey = outputs[0].OutputKey
	}
	f.SetOutput(outputKey, model.NewTableResult(filled))
	return nil
}
