// Package detection holds the operators that produce and rewrite anomalies.
package detection

import (
	"context"
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

const (
	AnomalyDetectorType = "AnomalyDetector"

	// AnomalyDetectorOutput is the key the detector result is published under.
	AnomalyDetectorOutput = "output_AnomalyDetectorResult"
)

// AnomalyDetector runs a detector component over its input tables and
// converts the scored series into anomalies stamped with run metadata.
type AnomalyDetector struct {
	operator.Base
	detectorType string
	detector     pipeline.Detector
	granularity  model.Period
	location     *time.Location
	metric       string
	dataset      string
	source       string
}

// NewAnomalyDetector is the registry factory.
func NewAnomalyDetector() operator.Operator {
	return &AnomalyDetector{}
}

func (d *AnomalyDetector) Init(_ context.Context, opCtx *operator.Context) error {
	if err := d.Bind(opCtx); err != nil {
		return err
	}

	name := d.Node().Name
	params := d.Params()
	if err := params.Require(name, "type"); err != nil {
		return err
	}
	d.detectorType, _ = params.String("type")

	component := params.Component()
	rawGranularity, ok := component.String("monitoringGranularity")
	if !ok || rawGranularity == "" {
		return detecterrors.NewValidationError(name+".params.component.monitoringGranularity", "required parameter is missing", nil)
	}
	granularity, err := model.ParsePeriod(rawGranularity)
	if err != nil {
		return detecterrors.NewValidationError(name+".params.component.monitoringGranularity", err.Error(), err)
	}
	d.granularity = granularity

	d.location = d.Pipeline().Interval.Location
	if tz, ok := component.String("timezone"); ok && tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return detecterrors.NewValidationError(name+".params.component.timezone", err.Error(), err)
		}
		d.location = loc
	}

	anomalyParams := params.Sub("anomaly")
	d.metric = anomalyParams.StringOr("metric", "")
	d.dataset = anomalyParams.StringOr("dataset", "")
	d.source = anomalyParams.StringOr("source", "")

	detector, err := d.Components().Detectors.New(pipeline.ComponentSpec{
		Type:   d.detectorType,
		Node:   name,
		Params: component,
		Logger: d.Logger(),
	})
	if err != nil {
		return err
	}
	d.detector = detector
	return nil
}

func (d *AnomalyDetector) Execute(ctx context.Context) error {
	pctx := d.Pipeline()

	scored, err := d.detector.RunDetection(ctx, pctx.Interval, d.InputTables())
	if err != nil {
		return fmt.Errorf("detector %s: %w", d.detectorType, err)
	}
	if scored == nil {
		scored = model.NewDataTable(model.ColumnTimestamp, model.ColumnAnomaly)
	}
	series := scored.SortedBy(model.ColumnTimestamp)

	anomalies, err := BuildAnomalies(series, BuildOptions{
		Detector:    d.detectorType,
		Interval:    pctx.Interval,
		Granularity: d.granularity,
		Location:    d.location,
	})
	if err != nil {
		return err
	}
	d.stamp(anomalies)

	opts := []model.ResultOption{model.WithAnomalies(anomalies), model.WithTimeseries(series)}
	if n := series.Len(); n > 0 {
		if last, ok := series.Int64(n-1, model.ColumnTimestamp); ok {
			opts = append(opts, model.WithLastTimestamp(last))
		}
	}
	if pctx.EnumerationItem != nil {
		opts = append(opts, model.WithEnumerationItem(pctx.EnumerationItem))
	}

	d.Logger().WithFields(map[string]any{"rows": series.Len(), "anomalies": len(anomalies)}).Debug("detection completed")
	d.SetOutput(AnomalyDetectorOutput, model.NewResult(opts...))
	return nil
}

func (d *AnomalyDetector) stamp(anomalies []*model.Anomaly) {
	pctx := d.Pipeline()
	createdAt := pctx.Now()
	for _, anomaly := range anomalies {
		anomaly.Metric = d.metric
		anomaly.Dataset = d.dataset
		anomaly.Source = d.source
		anomaly.Namespace = pctx.Namespace
		anomaly.CreatedAt = createdAt
		if pctx.AlertID != nil {
			id := *pctx.AlertID
			anomaly.AlertID = &id
		}
		if pctx.Usage == model.Detection {
			anomaly.EnumerationItemRef = pctx.EnumerationItem.Ref()
		}
	}
}
