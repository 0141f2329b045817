package components

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

const TimeFillerType = "time"

// Null replacement methods of the time index filler.
const (
	KeepNull       = "KEEP_NULL"
	FillWithZeroes = "FILL_WITH_ZEROES"
	FillForward    = "FILL_FORWARD"
	FillBackward   = "FILL_BACKWARD"
)

// Time limit inference strategies of the time index filler.
const (
	FromData                      = "FROM_DATA"
	FromDetectionTime             = "FROM_DETECTION_TIME"
	FromDetectionTimeWithLookback = "FROM_DETECTION_TIME_WITH_LOOKBACK"
)

// TimeIndexFiller rewrites a table onto a regular grid of granularity
// steps. Grid rows without data get nulls, which are then replaced
// separately before and after the detection start.
type TimeIndexFiller struct {
	timestamp    string
	granularity  string
	fillNull     string
	minInference string
	maxInference string
	lookback     model.Period
	hasLookback  bool
}

// NewTimeIndexFiller builds a TimeIndexFiller. Params: timestamp,
// monitoringGranularity, fillNullMethod, minTimeInference,
// maxTimeInference and lookback.
func NewTimeIndexFiller(spec pipeline.ComponentSpec) (pipeline.IndexFiller, error) {
	f := &TimeIndexFiller{
		timestamp:    spec.Params.StringOr("timestamp", model.ColumnTimestamp),
		granularity:  spec.Params.StringOr("monitoringGranularity", ""),
		fillNull:     strings.ToUpper(spec.Params.StringOr("fillNullMethod", FillWithZeroes)),
		minInference: strings.ToUpper(spec.Params.StringOr("minTimeInference", "")),
		maxInference: strings.ToUpper(spec.Params.StringOr("maxTimeInference", "")),
	}

	switch f.fillNull {
	case KeepNull, FillWithZeroes, FillForward, FillBackward:
	default:
		return nil, fmt.Errorf("unknown fillNullMethod %q", f.fillNull)
	}

	if raw := spec.Params.StringOr("lookback", ""); raw != "" {
		lookback, err := model.ParsePeriod(raw)
		if err != nil {
			return nil, fmt.Errorf("lookback: %w", err)
		}
		f.lookback = lookback
		f.hasLookback = true
	}

	for name, strategy := range map[string]string{"minTimeInference": f.minInference, "maxTimeInference": f.maxInference} {
		switch strategy {
		case "", FromData, FromDetectionTime:
		case FromDetectionTimeWithLookback:
			if f.lookback.IsZero() {
				return nil, fmt.Errorf("%s %s requires a lookback", name, strategy)
			}
		default:
			return nil, fmt.Errorf("unknown %s %q", name, strategy)
		}
	}
	return f, nil
}

func (f *TimeIndexFiller) FillIndex(_ context.Context, interval model.DetectionInterval, table *model.DataTable) (*model.DataTable, error) {
	if !table.HasColumn(f.timestamp) {
		return nil, fmt.Errorf("column %q not found in table", f.timestamp)
	}

	granularity, err := f.resolveGranularity(table)
	if err != nil {
		return nil, err
	}

	loc := interval.Location
	if loc == nil {
		loc = time.UTC
	}
	sorted := table.SortedBy(f.timestamp)
	minTime, maxTime, err := f.timeLimits(interval, sorted)
	if err != nil {
		return nil, err
	}

	grid := gridBetween(granularity, time.UnixMilli(minTime).In(loc), time.UnixMilli(maxTime).In(loc))
	filled := f.leftJoin(grid, sorted)
	f.replaceNulls(filled, interval.StartMillis())
	return filled, nil
}

func (f *TimeIndexFiller) resolveGranularity(table *model.DataTable) (model.Period, error) {
	raw := f.granularity
	if raw == "" {
		raw, _ = table.Property(model.PropertyGranularity)
	}
	if raw == "" {
		return model.Period{}, fmt.Errorf("monitoringGranularity is missing from params and table properties")
	}
	granularity, err := model.ParsePeriod(raw)
	if err != nil {
		return model.Period{}, fmt.Errorf("monitoringGranularity: %w", err)
	}
	if granularity.IsZero() {
		return model.Period{}, fmt.Errorf("monitoringGranularity must be positive")
	}
	return granularity, nil
}

// timeLimits returns the [min, max) range of the grid. Table properties win
// when both are present and no inference is configured.
func (f *TimeIndexFiller) timeLimits(interval model.DetectionInterval, table *model.DataTable) (int64, int64, error) {
	custom := f.hasLookback || f.minInference != "" || f.maxInference != ""
	rawMin, hasMin := table.Property(model.PropertyMinTimeMillis)
	rawMax, hasMax := table.Property(model.PropertyMaxTimeMillis)
	if hasMin && hasMax && !custom {
		minTime, err := strconv.ParseInt(rawMin, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("property %s: %w", model.PropertyMinTimeMillis, err)
		}
		maxTime, err := strconv.ParseInt(rawMax, 10, 64)
		if err != nil {
			return 0, 0, fmt.Errorf("property %s: %w", model.PropertyMaxTimeMillis, err)
		}
		return minTime, maxTime, nil
	}

	minStrategy := f.minInference
	if minStrategy == "" {
		minStrategy = FromData
	}
	maxStrategy := f.maxInference
	if maxStrategy == "" {
		maxStrategy = FromDetectionTime
	}

	minTime := f.inferLimit(minStrategy, interval.Start, table, false)
	maxTime := f.inferLimit(maxStrategy, interval.End, table, true)
	return minTime, maxTime, nil
}

// inferLimit applies one strategy. FROM_DATA on an empty table falls back
// to the detection time.
func (f *TimeIndexFiller) inferLimit(strategy string, detectionTime time.Time, table *model.DataTable, upper bool) int64 {
	if strategy == FromData {
		if ts, ok := f.boundaryTimestamp(table, upper); ok {
			if upper {
				return ts + 1
			}
			return ts
		}
		strategy = FromDetectionTime
	}
	if strategy == FromDetectionTimeWithLookback {
		return f.lookback.SubtractFrom(detectionTime).UnixMilli()
	}
	return detectionTime.UnixMilli()
}

func (f *TimeIndexFiller) boundaryTimestamp(table *model.DataTable, last bool) (int64, bool) {
	n := table.Len()
	for k := 0; k < n; k++ {
		i := k
		if last {
			i = n - 1 - k
		}
		if ts, ok := table.Int64(i, f.timestamp); ok {
			return ts, true
		}
	}
	return 0, false
}

// gridBetween lists the bucket starts from the first one at or after
// minTime to the last one strictly before maxTime.
func gridBetween(granularity model.Period, minTime, maxTime time.Time) []int64 {
	first := granularity.Ceil(minTime)
	last := granularity.LastBefore(maxTime)

	var grid []int64
	for t := first; !t.After(last); t = granularity.AddTo(t) {
		grid = append(grid, t.UnixMilli())
	}
	return grid
}

func (f *TimeIndexFiller) leftJoin(grid []int64, table *model.DataTable) *model.DataTable {
	columns := []string{f.timestamp}
	var sources []int
	for i, column := range table.Columns {
		if column == f.timestamp {
			continue
		}
		columns = append(columns, column)
		sources = append(sources, i)
	}

	byTime := make(map[int64][][]any)
	for i := 0; i < table.Len(); i++ {
		ts, ok := table.Int64(i, f.timestamp)
		if !ok {
			continue
		}
		byTime[ts] = append(byTime[ts], table.Rows[i])
	}

	out := model.NewDataTable(columns...)
	for key, value := range table.Properties {
		out.SetProperty(key, value)
	}
	for _, ts := range grid {
		matches := byTime[ts]
		if len(matches) == 0 {
			row := make([]any, len(columns))
			row[0] = ts
			out.Rows = append(out.Rows, row)
			continue
		}
		for _, match := range matches {
			row := make([]any, len(columns))
			row[0] = ts
			for j, src := range sources {
				row[j+1] = model.CloneValue(match[src])
			}
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// replaceNulls applies the configured replacer to the rows before start
// only. Rows from start on always get zeroes.
func (f *TimeIndexFiller) replaceNulls(table *model.DataTable, start int64) {
	split := len(table.Rows)
	for i := range table.Rows {
		if ts, _ := model.ToInt64(table.Rows[i][0]); ts >= start {
			split = i
			break
		}
	}
	replaceSegment(f.fillNull, table.Rows[:split], len(table.Columns))
	replaceSegment(FillWithZeroes, table.Rows[split:], len(table.Columns))
}

func replaceSegment(method string, rows [][]any, width int) {
	for col := 1; col < width; col++ {
		switch method {
		case FillWithZeroes:
			for _, row := range rows {
				if row[col] == nil {
					row[col] = 0.0
				}
			}
		case FillForward:
			var last any
			for _, row := range rows {
				if row[col] == nil {
					row[col] = last
				} else {
					last = row[col]
				}
			}
		case FillBackward:
			var next any
			for i := len(rows) - 1; i >= 0; i-- {
				if rows[i][col] == nil {
					rows[i][col] = next
				} else {
					next = rows[i][col]
				}
			}
		}
	}
}
