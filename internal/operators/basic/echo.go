package basic

import (
	"context"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
)

// EchoOutput is the key of the table Echo publishes when it has a text param.
const EchoOutput = "echo"

// Echo forwards its inputs unchanged. When the text param is set it also
// publishes a one-row table holding the text, which makes templated params
// observable in cloned branches.
type Echo struct {
	operator.Base
}

// NewEcho is the registry factory.
func NewEcho() operator.Operator {
	return &Echo{}
}

func (e *Echo) Init(_ context.Context, opCtx *operator.Context) error {
	return e.Bind(opCtx)
}

func (e *Echo) Execute(context.Context) error {
	for key, value := range e.Inputs() {
		e.SetOutput(key, value)
	}
	if value, ok := e.Params().Get("text"); ok {
		table := model.NewDataTable("text").MustAddRow(model.ToString(value))
		e.SetOutput(EchoOutput, model.NewTableResult(table))
	}
	return nil
}
