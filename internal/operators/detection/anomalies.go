package detection

import (
	"fmt"
	"time"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

// BuildOptions drive the conversion of a scored series into anomalies.
type BuildOptions struct {
	Detector    string
	Interval    model.DetectionInterval
	Granularity model.Period
	Location    *time.Location
}

// BuildAnomalies turns every row flagged in the anomaly column into one
// anomaly. The anomaly ends at the next row's timestamp, or one
// granularity after its start for the last row. The table must be sorted
// by timestamp.
func BuildAnomalies(table *model.DataTable, opts BuildOptions) ([]*model.Anomaly, error) {
	anomalies := []*model.Anomaly{}
	n := table.Len()
	if n == 0 {
		return anomalies, nil
	}
	if !table.HasColumn(model.ColumnTimestamp) {
		return nil, detecterrors.NewDetectorError(opts.Detector, fmt.Sprintf("output has no %q column", model.ColumnTimestamp))
	}
	if !table.HasColumn(model.ColumnAnomaly) {
		return nil, detecterrors.NewDetectorError(opts.Detector, fmt.Sprintf("output has no %q column", model.ColumnAnomaly))
	}

	intervalStart := opts.Interval.StartMillis()
	for i := 0; i < n; i++ {
		flagged, ok := table.Bool(i, model.ColumnAnomaly)
		if !ok || !flagged {
			continue
		}

		start, ok := table.Int64(i, model.ColumnTimestamp)
		if !ok {
			return nil, detecterrors.NewDetectorError(opts.Detector, fmt.Sprintf("row %d has no timestamp", i))
		}
		if start < intervalStart {
			return nil, detecterrors.NewDetectorError(opts.Detector, fmt.Sprintf(
				"anomaly at %d starts before the detection interval start %d", start, intervalStart))
		}

		var end int64
		if i+1 < n {
			next, ok := table.Int64(i+1, model.ColumnTimestamp)
			if !ok {
				return nil, detecterrors.NewDetectorError(opts.Detector, fmt.Sprintf("row %d has no timestamp", i+1))
			}
			end = next
		} else {
			end = opts.Granularity.AddMillis(start, opts.Location)
		}

		anomaly := &model.Anomaly{StartTime: start, EndTime: end}
		anomaly.AvgCurrentVal = optionalFloat(table, i, model.ColumnCurrent)
		anomaly.AvgBaselineVal = optionalFloat(table, i, model.ColumnValue)
		anomaly.LowerBound = optionalFloat(table, i, model.ColumnLowerBound)
		anomaly.UpperBound = optionalFloat(table, i, model.ColumnUpperBound)
		anomalies = append(anomalies, anomaly)
	}
	return anomalies, nil
}

func optionalFloat(table *model.DataTable, row int, column string) *float64 {
	value, ok := table.Float64(row, column)
	if !ok {
		return nil
	}
	return model.Float(value)
}
