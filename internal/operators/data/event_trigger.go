package data

import (
	"context"

	"go.uber.org/multierr"

	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

const EventTriggerType = "EventTrigger"

// EventTrigger forwards every row of every input table to a trigger
// component. The trigger is closed exactly once, even for zero rows.
type EventTrigger struct {
	operator.Base
	trigger pipeline.EventTrigger
}

// NewEventTrigger is the registry factory.
func NewEventTrigger() operator.Operator {
	return &EventTrigger{}
}

func (t *EventTrigger) Init(_ context.Context, opCtx *operator.Context) error {
	if err := t.Bind(opCtx); err != nil {
		return err
	}
	spec, err := t.ComponentSpec("type")
	if err != nil {
		return err
	}
	trigger, err := t.Components().Triggers.New(spec)
	if err != nil {
		return err
	}
	t.trigger = trigger
	return nil
}

func (t *EventTrigger) Execute(ctx context.Context) (err error) {
	defer func() {
		err = multierr.Append(err, t.trigger.Close(ctx))
	}()

	tables := t.InputTables()
	rows := 0
	for _, key := range operator.SortedTableKeys(tables) {
		table := tables[key]
		for i := 0; i < table.Len(); i++ {
			if err := t.trigger.Trigger(ctx, table.RowMap(i)); err != nil {
				t.Logger().WithFields(map[string]any{"input": key, "row": i}).Error(err, "trigger failed")
				return err
			}
			rows++
		}
	}
	t.Logger().With("rows", rows).Debug("rows triggered")
	return nil
}
