package components

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

const StaticType = "static"

// StaticSource serves rows declared inline in the pipeline. Rows outside
// the detection interval are dropped unless clip is false, mimicking a
// source queried for exactly that interval.
type StaticSource struct {
	columns     []string
	rows        []map[string]any
	timestamp   string
	granularity string
	clip        bool
}

// NewStaticSource builds a StaticSource. Params: rows (list of maps),
// columns, timestamp, granularity and clip.
func NewStaticSource(spec pipeline.ComponentSpec) (pipeline.DataFetcher, error) {
	s := &StaticSource{
		timestamp:   spec.Params.StringOr("timestamp", model.ColumnTimestamp),
		granularity: spec.Params.StringOr("granularity", ""),
		clip:        true,
	}
	if clip, ok := spec.Params.Bool("clip"); ok {
		s.clip = clip
	}

	if raw, ok := spec.Params.Get("rows"); ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("rows must be a list, got %T", raw)
		}
		for i, entry := range list {
			row, ok := model.AsMap(entry)
			if !ok {
				return nil, fmt.Errorf("rows[%d] must be a map, got %T", i, entry)
			}
			s.rows = append(s.rows, row)
		}
	}

	if columns, ok := spec.Params.Strings("columns"); ok {
		s.columns = columns
	} else {
		s.columns = inferColumns(s.timestamp, s.rows)
	}
	return s, nil
}

func inferColumns(timestamp string, rows []map[string]any) []string {
	seen := map[string]struct{}{timestamp: {}}
	var rest []string
	for _, row := range rows {
		for key := range row {
			if _, ok := seen[key]; !ok {
				seen[key] = struct{}{}
				rest = append(rest, key)
			}
		}
	}
	sort.Strings(rest)
	return append([]string{timestamp}, rest...)
}

func (s *StaticSource) GetDataTable(_ context.Context, interval model.DetectionInterval) (*model.DataTable, error) {
	table := model.NewDataTable(s.columns...)
	table.SetProperty(model.PropertyMinTimeMillis, strconv.FormatInt(interval.StartMillis(), 10))
	table.SetProperty(model.PropertyMaxTimeMillis, strconv.FormatInt(interval.EndMillis(), 10))
	if s.granularity != "" {
		table.SetProperty(model.PropertyGranularity, s.granularity)
	}

	for i, row := range s.rows {
		ts, err := parseTimestamp(row[s.timestamp])
		if err != nil {
			return nil, fmt.Errorf("rows[%d].%s: %w", i, s.timestamp, err)
		}
		if s.clip && !interval.Contains(ts) {
			continue
		}
		values := make([]any, len(s.columns))
		for j, column := range s.columns {
			if column == s.timestamp {
				values[j] = ts
				continue
			}
			values[j] = model.CloneValue(row[column])
		}
		if err := table.AddRow(values...); err != nil {
			return nil, err
		}
	}
	return table.SortedBy(s.timestamp), nil
}

// parseTimestamp accepts epoch milliseconds or an RFC 3339 string.
func parseTimestamp(value any) (int64, error) {
	if s, ok := value.(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t.UnixMilli(), nil
		}
	}
	if t, ok := value.(time.Time); ok {
		return t.UnixMilli(), nil
	}
	ts, ok := model.ToInt64(value)
	if !ok {
		return 0, fmt.Errorf("cannot read %v as a timestamp", value)
	}
	return ts, nil
}
