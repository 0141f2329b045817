// Package basic holds the trivial operators: Delay sleeps, Echo forwards.
package basic

import (
	"context"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

const (
	DelayType = "Delay"
	EchoType  = "Echo"
)

// Delay waits for the configured period then forwards its inputs.
type Delay struct {
	operator.Base
	delay time.Duration
}

// NewDelay is the registry factory.
func NewDelay() operator.Operator {
	return &Delay{}
}

func (d *Delay) Init(_ context.Context, opCtx *operator.Context) error {
	if err := d.Bind(opCtx); err != nil {
		return err
	}

	raw := d.Params().StringOr("delay", "")
	if raw == "" {
		return nil
	}
	period, err := model.ParsePeriod(raw)
	if err != nil {
		return detecterrors.NewValidationError(d.Node().Name+".params.delay", err.Error(), err)
	}
	if period.Years != 0 || period.Months != 0 {
		return detecterrors.NewValidationError(d.Node().Name+".params.delay", fmt.Sprintf("delay %s must not use calendar units", raw), nil)
	}
	d.delay = time.Duration(period.Days)*24*time.Hour + period.Clock
	return nil
}

func (d *Delay) Execute(ctx context.Context) error {
	if d.delay > 0 {
		d.Logger().With("delay", d.delay.String()).Debug("delaying")
		timer := time.NewTimer(d.delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	for key, value := range d.Inputs() {
		d.SetOutput(key, value)
	}
	return nil
}
