package model

import (
	"fmt"
	"sort"
)

// Well known column names shared by detectors, fillers and the anomaly
// construction step.
const (
	ColumnTimestamp  = "timestamp"
	ColumnCurrent    = "current"
	ColumnValue      = "value"
	ColumnLowerBound = "lower_bound"
	ColumnUpperBound = "upper_bound"
	ColumnAnomaly    = "anomaly"
)

// Table properties understood by the index filler.
const (
	PropertyGranularity   = "granularity"
	PropertyMinTimeMillis = "minTimeMillis"
	PropertyMaxTimeMillis = "maxTimeMillis"
)

// DataTable is a small row oriented table. Timestamps are epoch milliseconds.
type DataTable struct {
	Columns    []string
	Rows       [][]any
	Properties map[string]string
}

// NewDataTable creates an empty table with the given columns.
func NewDataTable(columns ...string) *DataTable {
	return &DataTable{Columns: append([]string(nil), columns...), Properties: map[string]string{}}
}

// AddRow appends a row. The number of values must match the column count.
func (t *DataTable) AddRow(values ...any) error {
	if len(values) != len(t.Columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.Columns))
	}
	t.Rows = append(t.Rows, append([]any(nil), values...))
	return nil
}

// MustAddRow is AddRow that panics on arity mismatch.
func (t *DataTable) MustAddRow(values ...any) *DataTable {
	if err := t.AddRow(values...); err != nil {
		panic(err)
	}
	return t
}

// Len returns the number of rows. A nil table has none.
func (t *DataTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.Rows)
}

// ColumnIndex returns the position of a column or -1.
func (t *DataTable) ColumnIndex(name string) int {
	if t == nil {
		return -1
	}
	for i, column := range t.Columns {
		if column == name {
			return i
		}
	}
	return -1
}

// HasColumn reports whether the table defines the column.
func (t *DataTable) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Value returns the raw cell. ok is false when the column is missing, the
// row is out of range or the cell is null.
func (t *DataTable) Value(row int, column string) (any, bool) {
	idx := t.ColumnIndex(column)
	if idx < 0 || row < 0 || row >= t.Len() {
		return nil, false
	}
	value := t.Rows[row][idx]
	return value, value != nil
}

// Int64 returns a cell as int64.
func (t *DataTable) Int64(row int, column string) (int64, bool) {
	value, ok := t.Value(row, column)
	if !ok {
		return 0, false
	}
	return ToInt64(value)
}

// Float64 returns a cell as float64.
func (t *DataTable) Float64(row int, column string) (float64, bool) {
	value, ok := t.Value(row, column)
	if !ok {
		return 0, false
	}
	return ToFloat64(value)
}

// Bool returns a cell as bool.
func (t *DataTable) Bool(row int, column string) (bool, bool) {
	value, ok := t.Value(row, column)
	if !ok {
		return false, false
	}
	return ToBool(value)
}

// RowMap returns a row keyed by column name.
func (t *DataTable) RowMap(row int) map[string]any {
	if row < 0 || row >= t.Len() {
		return nil
	}
	out := make(map[string]any, len(t.Columns))
	for i, column := range t.Columns {
		out[column] = t.Rows[row][i]
	}
	return out
}

// Property returns a table property.
func (t *DataTable) Property(key string) (string, bool) {
	if t == nil || t.Properties == nil {
		return "", false
	}
	value, ok := t.Properties[key]
	return value, ok
}

// SetProperty records a table property.
func (t *DataTable) SetProperty(key, value string) {
	if t.Properties == nil {
		t.Properties = map[string]string{}
	}
	t.Properties[key] = value
}

// Clone copies the table structure and rows. Cell values are shared.
func (t *DataTable) Clone() *DataTable {
	if t == nil {
		return nil
	}
	out := &DataTable{
		Columns:    append([]string(nil), t.Columns...),
		Rows:       make([][]any, len(t.Rows)),
		Properties: make(map[string]string, len(t.Properties)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]any(nil), row...)
	}
	for k, v := range t.Properties {
		out.Properties[k] = v
	}
	return out
}

// SortedBy returns a copy ordered by an integer column. Rows with a missing
// value sort first; ties keep their original order.
func (t *DataTable) SortedBy(column string) *DataTable {
	out := t.Clone()
	if out == nil {
		return nil
	}
	idx := out.ColumnIndex(column)
	if idx < 0 {
		return out
	}
	sort.SliceStable(out.Rows, func(i, j int) bool {
		a, aok := ToInt64(out.Rows[i][idx])
		b, bok := ToInt64(out.Rows[j][idx])
		if !aok || !bok {
			return !aok && bok
		}
		return a < b
	})
	return out
}
