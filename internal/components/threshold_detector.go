// Package components holds the built-in pluggable bodies operators
// delegate to: detectors, data sources, the time index filler, triggers,
// post-processors and enumeration strategies.
package components

import (
	"context"
	"fmt"
	"math"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

const (
	ThresholdType = "THRESHOLD"

	// CurrentInput is the input key detectors read when given several tables.
	CurrentInput = "current"
)

// ThresholdDetector flags rows whose metric is below min or above max. The
// baseline is the metric clamped into [min, max].
type ThresholdDetector struct {
	min       float64
	max       float64
	timestamp string
	metric    string
}

// NewThresholdDetector builds a ThresholdDetector. Params: min, max,
// timestamp (default "timestamp") and metric (default "value").
func NewThresholdDetector(spec pipeline.ComponentSpec) (pipeline.Detector, error) {
	d := &ThresholdDetector{
		min:       math.Inf(-1),
		max:       math.Inf(1),
		timestamp: spec.Params.StringOr("timestamp", model.ColumnTimestamp),
		metric:    spec.Params.StringOr("metric", model.ColumnValue),
	}
	if v, ok := spec.Params.Float("min"); ok {
		d.min = v
	}
	if v, ok := spec.Params.Float("max"); ok {
		d.max = v
	}
	if d.min > d.max {
		return nil, fmt.Errorf("min %v is greater than max %v", d.min, d.max)
	}
	return d, nil
}

func (d *ThresholdDetector) RunDetection(_ context.Context, _ model.DetectionInterval, inputs map[string]*model.DataTable) (*model.DataTable, error) {
	current, err := currentTable(inputs)
	if err != nil {
		return nil, err
	}

	columns := []string{model.ColumnTimestamp, model.ColumnCurrent, model.ColumnValue}
	hasMin, hasMax := !math.IsInf(d.min, -1), !math.IsInf(d.max, 1)
	if hasMin {
		columns = append(columns, model.ColumnLowerBound)
	}
	if hasMax {
		columns = append(columns, model.ColumnUpperBound)
	}
	columns = append(columns, model.ColumnAnomaly)

	out := model.NewDataTable(columns...)
	if current.Len() > 0 && !current.HasColumn(d.timestamp) {
		return nil, fmt.Errorf("input has no %q column", d.timestamp)
	}
	for i := 0; i < current.Len(); i++ {
		ts, ok := current.Int64(i, d.timestamp)
		if !ok {
			continue
		}
		row := []any{ts}
		value, ok := current.Float64(i, d.metric)
		if !ok {
			row = append(row, nil, nil)
		} else {
			row = append(row, value, math.Min(math.Max(value, d.min), d.max))
		}
		if hasMin {
			row = append(row, d.min)
		}
		if hasMax {
			row = append(row, d.max)
		}
		row = append(row, ok && (value < d.min || value > d.max))
		if err := out.AddRow(row...); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// currentTable picks the "current" input, or the only input.
func currentTable(inputs map[string]*model.DataTable) (*model.DataTable, error) {
	if table, ok := inputs[CurrentInput]; ok {
		return table, nil
	}
	if len(inputs) == 1 {
		for _, table := range inputs {
			return table, nil
		}
	}
	return nil, fmt.Errorf("expected a %q input or exactly one input, got %d inputs", CurrentInput, len(inputs))
}
