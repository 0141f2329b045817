package detection

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/alexisbeaulieu97/detectflow/internal/config"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/operator/operatortest"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

type fixedDetector struct {
	table  *model.DataTable
	inputs map[string]*model.DataTable
}

func (d *fixedDetector) RunDetection(_ context.Context, _ model.DetectionInterval, inputs map[string]*model.DataTable) (*model.DataTable, error) {
	d.inputs = inputs
	return d.table, nil
}

type labelEverything struct{}

func (labelEverything) Name() string { return "LABEL_ALL" }

func (labelEverything) PostProcess(_ context.Context, _ model.DetectionInterval, results map[string]model.OperatorResult) (map[string]model.OperatorResult, error) {
	for _, result := range results {
		anomalies, ok := result.Anomalies()
		if !ok {
			continue
		}
		for _, anomaly := range anomalies {
			anomaly.AddLabel(model.AnomalyLabel{Name: "reviewed"})
		}
	}
	return results, nil
}

var hour = time.Hour.Milliseconds()

func scoredSeries(start int64, flags ...bool) *model.DataTable {
	table := model.NewDataTable(model.ColumnTimestamp, model.ColumnCurrent, model.ColumnValue, model.ColumnAnomaly)
	for i, flag := range flags {
		table.MustAddRow(start+int64(i)*hour, float64(10*i), 5.0, flag)
	}
	return table
}

func detectorNode() config.PlanNode {
	return config.PlanNode{
		Name: "detector",
		Type: AnomalyDetectorType,
		Params: config.Params{
			"type": "FIXED",
			"component": map[string]any{
				"monitoringGranularity": "PT1H",
			},
			"anomaly.metric":  "views",
			"anomaly.dataset": "pageviews",
		},
	}
}

func runDetector(t *testing.T, usage model.Usage, item *model.EnumerationItem, table *model.DataTable) (model.OperatorResult, error) {
	t.Helper()

	detector := &fixedDetector{table: table}
	components := pipeline.NewComponents()
	components.Detectors.MustRegister("FIXED", func(pipeline.ComponentSpec) (pipeline.Detector, error) {
		return detector, nil
	})
	pctx := operatortest.NewPipeline(usage, components, nil)
	if item != nil {
		pctx = pctx.WithEnumerationItem(item)
	}

	outputs, err := operatortest.Run(context.Background(), NewAnomalyDetector(), &operator.Context{
		Pipeline: pctx,
		Node:     detectorNode(),
		Inputs:   map[string]model.OperatorResult{"current": model.NewTableResult(model.NewDataTable(model.ColumnTimestamp))},
	})
	if err != nil {
		return nil, err
	}
	require.Contains(t, detector.inputs, "current")
	return outputs[AnomalyDetectorOutput], nil
}

func TestBuildAnomaliesBoundaries(t *testing.T) {
	t.Parallel()

	start := operatortest.Interval.StartMillis()
	table := scoredSeries(start, false, true, false, true, false, true)

	anomalies, err := BuildAnomalies(table, BuildOptions{
		Detector:    "FIXED",
		Interval:    operatortest.Interval,
		Granularity: model.MustParsePeriod("PT1H"),
		Location:    time.UTC,
	})
	require.NoError(t, err)
	require.Len(t, anomalies, 3)

	require.Equal(t, start+hour, anomalies[0].StartTime)
	require.Equal(t, start+2*hour, anomalies[0].EndTime)
	require.Equal(t, start+3*hour, anomalies[1].StartTime)
	require.Equal(t, start+4*hour, anomalies[1].EndTime)
	require.Equal(t, start+5*hour, anomalies[2].StartTime)
	require.Equal(t, start+6*hour, anomalies[2].EndTime)

	require.NotNil(t, anomalies[0].AvgCurrentVal)
	require.InDelta(t, 10.0, *anomalies[0].AvgCurrentVal, 1e-9)
	require.InDelta(t, 5.0, *anomalies[0].AvgBaselineVal, 1e-9)
	require.Nil(t, anomalies[0].LowerBound)
	require.Nil(t, anomalies[0].UpperBound)
}

func TestBuildAnomaliesAdjacentRowsAreNotMerged(t *testing.T) {
	t.Parallel()

	start := operatortest.Interval.StartMillis()
	anomalies, err := BuildAnomalies(scoredSeries(start, true, true), BuildOptions{
		Interval:    operatortest.Interval,
		Granularity: model.MustParsePeriod("PT1H"),
	})
	require.NoError(t, err)
	require.Len(t, anomalies, 2)
	require.Equal(t, anomalies[0].EndTime, anomalies[1].StartTime)
}

func TestBuildAnomaliesUsesCalendarGranularity(t *testing.T) {
	t.Parallel()

	interval := model.DetectionInterval{
		Start:    time.Date(2024, time.January, 1, 0, 0, 0, 0, time.UTC),
		End:      time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		Location: time.UTC,
	}
	jan31 := time.Date(2024, time.January, 31, 0, 0, 0, 0, time.UTC).UnixMilli()
	table := model.NewDataTable(model.ColumnTimestamp, model.ColumnAnomaly).MustAddRow(jan31, true)

	anomalies, err := BuildAnomalies(table, BuildOptions{Interval: interval, Granularity: model.MustParsePeriod("P1D")})
	require.NoError(t, err)
	require.Len(t, anomalies, 1)
	require.Equal(t, time.Date(2024, time.February, 1, 0, 0, 0, 0, time.UTC).UnixMilli(), anomalies[0].EndTime)
}

func TestBuildAnomaliesRejectsStartBeforeInterval(t *testing.T) {
	t.Parallel()

	start := operatortest.Interval.StartMillis() - hour
	_, err := BuildAnomalies(scoredSeries(start, true), BuildOptions{
		Detector:    "FIXED",
		Interval:    operatortest.Interval,
		Granularity: model.MustParsePeriod("PT1H"),
	})
	var detectorErr *detecterrors.DetectorError
	require.ErrorAs(t, err, &detectorErr)
	require.Equal(t, "FIXED", detectorErr.Detector)
}

func TestBuildAnomaliesRequiresFlagColumn(t *testing.T) {
	t.Parallel()

	table := model.NewDataTable(model.ColumnTimestamp).MustAddRow(operatortest.Interval.StartMillis())
	_, err := BuildAnomalies(table, BuildOptions{Interval: operatortest.Interval})
	var detectorErr *detecterrors.DetectorError
	require.ErrorAs(t, err, &detectorErr)
}

func TestAnomalyDetectorEmptyInput(t *testing.T) {
	t.Parallel()

	result, err := runDetector(t, model.Detection, nil, model.NewDataTable(model.ColumnTimestamp, model.ColumnAnomaly))
	require.NoError(t, err)

	anomalies, ok := result.Anomalies()
	require.True(t, ok)
	require.Empty(t, anomalies)
	_, ok = result.LastTimestamp()
	require.False(t, ok)
}

func TestAnomalyDetectorStampsDetectionMetadata(t *testing.T) {
	t.Parallel()

	start := operatortest.Interval.StartMillis()
	item := &model.EnumerationItem{ID: 7, Name: "country=fr", Params: map[string]any{"country": "fr"}}
	unsorted := scoredSeries(start, false, true, false)
	unsorted.Rows[0], unsorted.Rows[2] = unsorted.Rows[2], unsorted.Rows[0]

	result, err := runDetector(t, model.Detection, item, unsorted)
	require.NoError(t, err)

	anomalies, ok := result.Anomalies()
	require.True(t, ok)
	require.Len(t, anomalies, 1)

	anomaly := anomalies[0]
	require.Equal(t, start+hour, anomaly.StartTime)
	require.Equal(t, start+2*hour, anomaly.EndTime)
	require.Equal(t, "views", anomaly.Metric)
	require.Equal(t, "pageviews", anomaly.Dataset)
	require.Equal(t, "test", anomaly.Namespace)
	require.Equal(t, operatortest.Clock, anomaly.CreatedAt)
	require.NotNil(t, anomaly.AlertID)
	require.Equal(t, int64(42), *anomaly.AlertID)
	require.Equal(t, &model.EnumerationItemRef{ID: 7}, anomaly.EnumerationItemRef)

	series, ok := result.Timeseries()
	require.True(t, ok)
	first, _ := series.Int64(0, model.ColumnTimestamp)
	require.Equal(t, start, first)

	last, ok := result.LastTimestamp()
	require.True(t, ok)
	require.Equal(t, start+2*hour, last)

	owner, ok := result.EnumerationItem()
	require.True(t, ok)
	require.Same(t, item, owner)
}

func TestAnomalyDetectorEvaluationOmitsItemReference(t *testing.T) {
	t.Parallel()

	item := &model.EnumerationItem{ID: 7, Name: "country=fr"}
	result, err := runDetector(t, model.Evaluation, item, scoredSeries(operatortest.Interval.StartMillis(), true))
	require.NoError(t, err)

	anomalies, _ := result.Anomalies()
	require.Len(t, anomalies, 1)
	require.Nil(t, anomalies[0].EnumerationItemRef)
}

func TestAnomalyDetectorRequiresGranularity(t *testing.T) {
	t.Parallel()

	pctx := operatortest.NewPipeline(model.Detection, pipeline.NewComponents(), nil)
	node := detectorNode()
	node.Params = config.Params{"type": "FIXED"}

	err := NewAnomalyDetector().Init(context.Background(), &operator.Context{Pipeline: pctx, Node: node})
	var validationErr *detecterrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "detector.params.component.monitoringGranularity", validationErr.Field)

	node.Params = config.Params{"component.monitoringGranularity": "PT1H"}
	err = NewAnomalyDetector().Init(context.Background(), &operator.Context{Pipeline: pctx, Node: node})
	require.ErrorAs(t, err, &validationErr)
	require.Equal(t, "detector.params.type", validationErr.Field)
}

func newPostProcessorContext(t *testing.T, inputs map[string]model.OperatorResult) *operator.Context {
	t.Helper()

	components := pipeline.NewComponents()
	components.PostProcessors.MustRegister("LABEL_ALL", func(pipeline.ComponentSpec) (pipeline.PostProcessor, error) {
		return labelEverything{}, nil
	})
	return &operator.Context{
		Pipeline: operatortest.NewPipeline(model.Detection, components, nil),
		Node:     config.PlanNode{Name: "labeler", Type: PostProcessorType, Params: config.Params{"component.type": "LABEL_ALL"}},
		Inputs:   inputs,
	}
}

func anomalyResult(starts ...int64) *model.Result {
	anomalies := make([]*model.Anomaly, 0, len(starts))
	for _, start := range starts {
		anomalies = append(anomalies, &model.Anomaly{StartTime: start, EndTime: start + hour})
	}
	return model.NewResult(model.WithAnomalies(anomalies))
}

func TestPostProcessorSplitsAndRemergesCombiners(t *testing.T) {
	t.Parallel()

	r1 := anomalyResult(1, 2)
	r2 := anomalyResult(3)
	combined := model.NewCombinerResult(map[string]model.OperatorResult{"a": r1, "b": r2})
	table := model.NewTableResult(model.NewDataTable("x"))

	outputs, err := operatortest.Run(context.Background(), NewPostProcessor(), newPostProcessorContext(t, map[string]model.OperatorResult{
		"output_CombinerResult": combined,
		"table":                 table,
	}))
	require.NoError(t, err)
	require.Len(t, outputs, 2)
	require.Same(t, table, outputs["table"])

	remerged, ok := outputs["output_CombinerResult"].(*model.CombinerResult)
	require.True(t, ok)
	require.Equal(t, []string{"a", "b"}, remerged.Keys())

	anomalies, ok := remerged.Anomalies()
	require.True(t, ok)
	require.Len(t, anomalies, 3)
	for _, anomaly := range anomalies {
		require.Len(t, anomaly.Labels, 1)
		require.Equal(t, "reviewed", anomaly.Labels[0].Name)
		require.Equal(t, "LABEL_ALL", anomaly.Labels[0].SourcePostProcessor)
		require.Equal(t, "labeler", anomaly.Labels[0].SourceNodeName)
	}

	original, _ := r1.Anomalies()
	require.Empty(t, original[0].Labels)
}

func TestPostProcessorKeepsExistingProvenance(t *testing.T) {
	t.Parallel()

	result := model.NewResult(model.WithAnomalies([]*model.Anomaly{{
		StartTime: 1,
		EndTime:   2,
		Labels:    []model.AnomalyLabel{{Name: "old", SourcePostProcessor: "EARLIER", SourceNodeName: "first"}},
	}}))

	outputs, err := operatortest.Run(context.Background(), NewPostProcessor(), newPostProcessorContext(t, map[string]model.OperatorResult{
		"detector": result,
	}))
	require.NoError(t, err)

	anomalies, _ := outputs["detector"].Anomalies()
	require.Len(t, anomalies[0].Labels, 2)
	require.Equal(t, "EARLIER", anomalies[0].Labels[0].SourcePostProcessor)
	require.Equal(t, "LABEL_ALL", anomalies[0].Labels[1].SourcePostProcessor)
}

func TestRemergeLastWriteWinsOnCollidingKeys(t *testing.T) {
	t.Parallel()

	first := model.NewCombinerResult(map[string]model.OperatorResult{"0.out": anomalyResult(1)})
	second := model.NewCombinerResult(map[string]model.OperatorResult{"0.out": anomalyResult(2)})

	flat, origins, keys := splitCombiners(map[string]model.OperatorResult{"a": first, "b": second})
	require.Len(t, flat, 1)
	require.Equal(t, "b", origins["0.out"])

	out := remerge(flat, origins, keys)
	require.Equal(t, 0, out["a"].(*model.CombinerResult).Len())
	require.Equal(t, 1, out["b"].(*model.CombinerResult).Len())
}
