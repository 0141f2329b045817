package components

import (
	"context"
	"fmt"
	"math"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

// ThresholdLabeler labels anomalies whose value falls outside [min, max].
// It shares the THRESHOLD key with the detector; the registries are
// separate.
type ThresholdLabeler struct {
	min       float64
	max       float64
	ignore    bool
	metric    string
	timestamp string
}

// NewThresholdLabeler builds a ThresholdLabeler. Params: min, max, ignore
// (default true), metric and timestamp.
func NewThresholdLabeler(spec pipeline.ComponentSpec) (pipeline.PostProcessor, error) {
	l := &ThresholdLabeler{
		min:       math.Inf(-1),
		max:       math.Inf(1),
		ignore:    true,
		metric:    spec.Params.StringOr("metric", model.ColumnCurrent),
		timestamp: spec.Params.StringOr("timestamp", model.ColumnTimestamp),
	}
	if v, ok := spec.Params.Float("min"); ok {
		l.min = v
	}
	if v, ok := spec.Params.Float("max"); ok {
		l.max = v
	}
	if ignore, ok := spec.Params.Bool("ignore"); ok {
		l.ignore = ignore
	}
	if l.min > l.max {
		return nil, fmt.Errorf("min %v is greater than max %v", l.min, l.max)
	}
	return l, nil
}

func (l *ThresholdLabeler) Name() string {
	return ThresholdType
}

func (l *ThresholdLabeler) PostProcess(_ context.Context, _ model.DetectionInterval, results map[string]model.OperatorResult) (map[string]model.OperatorResult, error) {
	for _, result := range results {
		anomalies, ok := result.Anomalies()
		if !ok {
			continue
		}
		series, _ := result.Timeseries()
		for _, anomaly := range anomalies {
			value, ok := l.valueOf(anomaly, series)
			if !ok || (value >= l.min && value <= l.max) {
				continue
			}
			anomaly.AddLabel(model.AnomalyLabel{
				Name:     ThresholdType,
				Ignore:   l.ignore,
				Metadata: l.metadata(value),
			})
		}
	}
	return results, nil
}

// valueOf prefers the anomaly average and falls back to the series row at
// the anomaly start.
func (l *ThresholdLabeler) valueOf(anomaly *model.Anomaly, series *model.DataTable) (float64, bool) {
	if anomaly.AvgCurrentVal != nil {
		return *anomaly.AvgCurrentVal, true
	}
	if series == nil {
		return 0, false
	}
	for i := 0; i < series.Len(); i++ {
		if ts, ok := series.Int64(i, l.timestamp); ok && ts == anomaly.StartTime {
			return series.Float64(i, l.metric)
		}
	}
	return 0, false
}

// metadata omits unset bounds, which are infinite and do not encode.
func (l *ThresholdLabeler) metadata(value float64) map[string]any {
	meta := map[string]any{"value": value}
	if !math.IsInf(l.min, -1) {
		meta["min"] = l.min
	}
	if !math.IsInf(l.max, 1) {
		meta["max"] = l.max
	}
	return meta
}
