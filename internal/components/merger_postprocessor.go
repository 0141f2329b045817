package components

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

const MergerType = "ANOMALY_MERGER"

// AnomalyMerger collapses anomalies of the same series that are separated
// by less than mergeMaxGap, without letting a merged anomaly grow past
// mergeMaxDuration. Each result is merged on its own.
type AnomalyMerger struct {
	maxGap      time.Duration
	maxDuration time.Duration
}

// NewAnomalyMerger builds an AnomalyMerger. Params: mergeMaxGap (default
// PT2H) and mergeMaxDuration (default P7D).
func NewAnomalyMerger(spec pipeline.ComponentSpec) (pipeline.PostProcessor, error) {
	gap, err := clockPeriod(spec, "mergeMaxGap", "PT2H")
	if err != nil {
		return nil, err
	}
	duration, err := clockPeriod(spec, "mergeMaxDuration", "P7D")
	if err != nil {
		return nil, err
	}
	return &AnomalyMerger{maxGap: gap, maxDuration: duration}, nil
}

// clockPeriod parses a fixed-length period param. Days count as 24 hours
// and a zero period disables merging.
func clockPeriod(spec pipeline.ComponentSpec, key, def string) (time.Duration, error) {
	raw := strings.TrimSpace(spec.Params.StringOr(key, def))
	switch strings.ToUpper(raw) {
	case "0", "0S", "PT0S", "P0D":
		return 0, nil
	}
	period, err := model.ParsePeriod(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if period.Years != 0 || period.Months != 0 {
		return 0, fmt.Errorf("%s: years and months are not supported", key)
	}
	return time.Duration(period.Days)*24*time.Hour + period.Clock, nil
}

func (m *AnomalyMerger) Name() string {
	return MergerType
}

func (m *AnomalyMerger) PostProcess(_ context.Context, _ model.DetectionInterval, results map[string]model.OperatorResult) (map[string]model.OperatorResult, error) {
	out := make(map[string]model.OperatorResult, len(results))
	for key, result := range results {
		if _, nested := result.(*model.CombinerResult); nested {
			out[key] = result
			continue
		}
		anomalies, ok := result.Anomalies()
		if !ok {
			out[key] = result
			continue
		}
		merged := m.Merge(anomalies)
		out[key] = model.NewResult(append(model.OptionsOf(result), model.WithAnomalies(merged))...)
	}
	return out, nil
}

type seriesKey struct {
	metric  string
	dataset string
	source  string
	itemID  int64
}

func seriesOf(a *model.Anomaly) seriesKey {
	key := seriesKey{metric: a.Metric, dataset: a.Dataset, source: a.Source}
	if a.EnumerationItemRef != nil {
		key.itemID = a.EnumerationItemRef.ID
	}
	return key
}

// Merge returns merged copies of anomalies. The input is left untouched.
func (m *AnomalyMerger) Merge(anomalies []*model.Anomaly) []*model.Anomaly {
	cloned := model.CloneAnomalies(anomalies)
	if m.maxGap == 0 || len(cloned) < 2 {
		return cloned
	}

	sort.SliceStable(cloned, func(i, j int) bool {
		if cloned[i].StartTime != cloned[j].StartTime {
			return cloned[i].StartTime < cloned[j].StartTime
		}
		return cloned[i].EndTime > cloned[j].EndTime
	})

	var order []seriesKey
	groups := make(map[seriesKey][]*model.Anomaly)
	for _, anomaly := range cloned {
		key := seriesOf(anomaly)
		if _, ok := groups[key]; !ok {
			order = append(order, key)
		}
		groups[key] = append(groups[key], anomaly)
	}

	var merged []*model.Anomaly
	for _, key := range order {
		merged = append(merged, m.mergeSeries(groups[key])...)
	}
	return merged
}

// mergeSeries folds a start-sorted series into parents.
func (m *AnomalyMerger) mergeSeries(series []*model.Anomaly) []*model.Anomaly {
	var parents []*model.Anomaly
	var parent *model.Anomaly
	for _, child := range series {
		if parent != nil && m.shouldMerge(parent, child) {
			if child.EndTime > parent.EndTime {
				parent.EndTime = child.EndTime
			}
			mergeLabels(parent, child)
			continue
		}
		parent = child
		parents = append(parents, parent)
	}
	return parents
}

func (m *AnomalyMerger) shouldMerge(parent, child *model.Anomaly) bool {
	if isIgnored(parent) != isIgnored(child) {
		return false
	}
	gap := m.maxGap.Milliseconds()
	maxDuration := m.maxDuration.Milliseconds()
	return child.StartTime-gap < parent.EndTime &&
		(child.EndTime <= parent.EndTime || child.EndTime-maxDuration < parent.StartTime)
}

func isIgnored(a *model.Anomaly) bool {
	for _, label := range a.Labels {
		if label.Ignore {
			return true
		}
	}
	return false
}

func mergeLabels(parent, child *model.Anomaly) {
	seen := make(map[string]struct{}, len(parent.Labels))
	for _, label := range parent.Labels {
		seen[label.Name] = struct{}{}
	}
	for _, label := range child.Labels {
		if _, ok := seen[label.Name]; ok {
			continue
		}
		seen[label.Name] = struct{}{}
		parent.AddLabel(label.Clone())
	}
}
