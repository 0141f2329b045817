package model

// OperatorResult is what every plan node emits. Each accessor reports
// whether the capability is present for this variant.
type OperatorResult interface {
	LastTimestamp() (int64, bool)
	Anomalies() ([]*Anomaly, bool)
	Timeseries() (*DataTable, bool)
	RawData() (*DataTable, bool)
	EnumerationItem() (*EnumerationItem, bool)
}

// Result is the plain variant used by fetchers, detectors and most built-in
// operators.
type Result struct {
	lastTimestamp   *int64
	anomalies       []*Anomaly
	hasAnomalies    bool
	timeseries      *DataTable
	rawData         *DataTable
	enumerationItem *EnumerationItem
}

// ResultOption configures a Result.
type ResultOption func(*Result)

// WithLastTimestamp sets the last processed timestamp.
func WithLastTimestamp(ts int64) ResultOption {
	return func(r *Result) {
		r.lastTimestamp = &ts
	}
}

// WithAnomalies sets the anomaly list. An empty list still counts as present.
func WithAnomalies(anomalies []*Anomaly) ResultOption {
	return func(r *Result) {
		r.anomalies = anomalies
		r.hasAnomalies = true
	}
}

// WithTimeseries attaches a time series.
func WithTimeseries(table *DataTable) ResultOption {
	return func(r *Result) {
		r.timeseries = table
	}
}

// WithRawData attaches a raw table.
func WithRawData(table *DataTable) ResultOption {
	return func(r *Result) {
		r.rawData = table
	}
}

// WithEnumerationItem sets the owning enumeration item back-reference.
func WithEnumerationItem(item *EnumerationItem) ResultOption {
	return func(r *Result) {
		r.enumerationItem = item
	}
}

// NewResult builds a plain result.
func NewResult(opts ...ResultOption) *Result {
	r := &Result{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewTableResult wraps a table as both raw data and time series.
func NewTableResult(table *DataTable) *Result {
	return NewResult(WithRawData(table), WithTimeseries(table))
}

var _ OperatorResult = (*Result)(nil)

func (r *Result) LastTimestamp() (int64, bool) {
	if r == nil || r.lastTimestamp == nil {
		return 0, false
	}
	return *r.lastTimestamp, true
}

func (r *Result) Anomalies() ([]*Anomaly, bool) {
	if r == nil || !r.hasAnomalies {
		return nil, false
	}
	return r.anomalies, true
}

func (r *Result) Timeseries() (*DataTable, bool) {
	if r == nil || r.timeseries == nil {
		return nil, false
	}
	return r.timeseries, true
}

func (r *Result) RawData() (*DataTable, bool) {
	if r == nil || r.rawData == nil {
		return nil, false
	}
	return r.rawData, true
}

func (r *Result) EnumerationItem() (*EnumerationItem, bool) {
	if r == nil || r.enumerationItem == nil {
		return nil, false
	}
	return r.enumerationItem, true
}

// Options returns options that reproduce r, so callers can derive a
// modified copy without touching the original.
func (r *Result) Options() []ResultOption {
	return OptionsOf(r)
}

// OptionsOf returns options reproducing every capability present on result.
func OptionsOf(result OperatorResult) []ResultOption {
	if result == nil {
		return nil
	}
	var opts []ResultOption
	if ts, ok := result.LastTimestamp(); ok {
		opts = append(opts, WithLastTimestamp(ts))
	}
	if anomalies, ok := result.Anomalies(); ok {
		opts = append(opts, WithAnomalies(anomalies))
	}
	if ts, ok := result.Timeseries(); ok {
		opts = append(opts, WithTimeseries(ts))
	}
	if raw, ok := result.RawData(); ok {
		opts = append(opts, WithRawData(raw))
	}
	if item, ok := result.EnumerationItem(); ok {
		opts = append(opts, WithEnumerationItem(item))
	}
	return opts
}

// TableOf returns the table carried by a result, preferring raw data over
// the time series.
func TableOf(result OperatorResult) (*DataTable, bool) {
	if result == nil {
		return nil, false
	}
	if raw, ok := result.RawData(); ok {
		return raw, true
	}
	return result.Timeseries()
}
