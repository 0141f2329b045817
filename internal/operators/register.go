// Package operators wires every built-in operator into a registry.
package operators

import (
	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/operators/basic"
	"github.com/alexisbeaulieu97/detectflow/internal/operators/data"
	"github.com/alexisbeaulieu97/detectflow/internal/operators/detection"
	"github.com/alexisbeaulieu97/detectflow/internal/operators/forkjoin"
)

// Register adds the built-in operators to reg.
func Register(reg *operator.Registry) error {
	builtins := map[string]operator.Factory{
		data.DataFetcherType:          data.NewDataFetcher,
		data.EventFetcherType:         data.NewEventFetcher,
		data.TimeIndexFillerType:      data.NewTimeIndexFiller,
		data.EventTriggerType:         data.NewEventTrigger,
		data.SqlExecutionType:         data.NewSqlExecution,
		basic.DelayType:               basic.NewDelay,
		basic.EchoType:                basic.NewEcho,
		forkjoin.EnumeratorType:       forkjoin.NewEnumerator,
		config.ForkJoinType:           forkjoin.NewForkJoin,
		forkjoin.CombinerType:         forkjoin.NewCombiner,
		detection.AnomalyDetectorType: detection.NewAnomalyDetector,
		detection.PostProcessorType:   detection.NewPostProcessor,
	}
	for typeKey, factory := range builtins {
		if err := reg.Register(typeKey, factory); err != nil {
			return err
		}
	}
	return nil
}

// NewRegistry returns a registry holding every built-in operator.
func NewRegistry() *operator.Registry {
	reg := operator.NewRegistry()
	if err := Register(reg); err != nil {
		panic(err)
	}
	return reg
}
