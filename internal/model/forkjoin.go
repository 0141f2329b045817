package model

import "fmt"

// ForkJoinItemResult is one branch of a fork-join: the branch output map
// and the enumeration item that owns it.
type ForkJoinItemResult struct {
	item    *EnumerationItem
	outputs map[string]OperatorResult
}

// NewForkJoinItemResult builds the per-branch view. Every result keeps its
// last timestamp, anomalies, raw data and owning item. Time series are kept
// for Evaluation runs only. Nested combiner results are shaped recursively.
func NewForkJoinItemResult(item *EnumerationItem, outputs map[string]OperatorResult, usage Usage) (*ForkJoinItemResult, error) {
	if !usage.Valid() {
		return nil, fmt.Errorf("unsupported usage %q for fork-join result shaping", usage)
	}

	shaped := make(map[string]OperatorResult, len(outputs))
	for key, result := range outputs {
		shaped[key] = shapeResult(result, item, usage)
	}
	return &ForkJoinItemResult{item: item, outputs: shaped}, nil
}

// Item returns the owning enumeration item.
func (r *ForkJoinItemResult) Item() *EnumerationItem {
	return r.item
}

// Outputs returns a copy of the shaped branch outputs.
func (r *ForkJoinItemResult) Outputs() map[string]OperatorResult {
	out := make(map[string]OperatorResult, len(r.outputs))
	for key, value := range r.outputs {
		out[key] = value
	}
	return out
}

func shapeResult(result OperatorResult, item *EnumerationItem, usage Usage) OperatorResult {
	switch r := result.(type) {
	case nil:
		return nil
	case *CombinerResult:
		nested := make(map[string]OperatorResult, r.Len())
		for key, value := range r.results {
			nested[key] = shapeResult(value, item, usage)
		}
		return NewCombinerResult(nested)
	case *EnumerationResult:
		return r
	}

	var opts []ResultOption
	if ts, ok := result.LastTimestamp(); ok {
		opts = append(opts, WithLastTimestamp(ts))
	}
	if anomalies, ok := result.Anomalies(); ok {
		opts = append(opts, WithAnomalies(anomalies))
	}
	if raw, ok := result.RawData(); ok {
		opts = append(opts, WithRawData(raw))
	}

	owner := item
	if own, ok := result.EnumerationItem(); ok {
		owner = own
	}
	if owner != nil {
		opts = append(opts, WithEnumerationItem(owner))
	}

	if usage == Evaluation {
		if ts, ok := result.Timeseries(); ok {
			opts = append(opts, WithTimeseries(ts))
		}
	}
	return NewResult(opts...)
}

// ForkJoinResults is the ordered list of branch results handed to a combiner.
type ForkJoinResults struct {
	Items []*ForkJoinItemResult
}

var _ OperatorResult = (*ForkJoinResults)(nil)

func (r *ForkJoinResults) LastTimestamp() (int64, bool) {
	return 0, false
}

func (r *ForkJoinResults) Anomalies() ([]*Anomaly, bool) {
	return nil, false
}

func (r *ForkJoinResults) Timeseries() (*DataTable, bool) {
	return nil, false
}

func (r *ForkJoinResults) RawData() (*DataTable, bool) {
	return nil, false
}

func (r *ForkJoinResults) EnumerationItem() (*EnumerationItem, bool) {
	return nil, false
}
