package components

import (
	"go.uber.org/multierr"

	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

// RegisterBuiltins adds the built-in components to c.
func RegisterBuiltins(c *pipeline.Components) error {
	return multierr.Combine(
		c.Detectors.Register(ThresholdType, NewThresholdDetector),
		c.DataFetchers.Register(StaticType, NewStaticSource),
		c.DataFetchers.Register(SQLType, NewSQLSource),
		c.IndexFillers.Register(TimeFillerType, NewTimeIndexFiller),
		c.Triggers.Register(LogTriggerType, NewLogTrigger),
		c.PostProcessors.Register(MergerType, NewAnomalyMerger),
		c.PostProcessors.Register(ThresholdType, NewThresholdLabeler),
		c.Enumerators.Register(StaticEnumeratorType, NewStaticEnumerator),
		c.Enumerators.Register(CartesianEnumeratorType, NewCartesianEnumerator),
	)
}

// NewBuiltins returns registries holding every built-in component.
func NewBuiltins() *pipeline.Components {
	c := pipeline.NewComponents()
	if err := RegisterBuiltins(c); err != nil {
		panic(err)
	}
	return c
}
