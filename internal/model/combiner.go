package model

import (
	"sort"
	"strconv"
	"strings"
)

// CombinerResult maps keys to nested results. It aggregates fork-join
// branches under "{branchIndex}.{outputKey}" keys.
type CombinerResult struct {
	results map[string]OperatorResult
}

// NewCombinerResult copies the supplied map into a combiner result.
func NewCombinerResult(results map[string]OperatorResult) *CombinerResult {
	copied := make(map[string]OperatorResult, len(results))
	for key, value := range results {
		copied[key] = value
	}
	return &CombinerResult{results: copied}
}

// Results returns a copy of the key to result mapping.
func (c *CombinerResult) Results() map[string]OperatorResult {
	out := make(map[string]OperatorResult, len(c.results))
	for key, value := range c.results {
		out[key] = value
	}
	return out
}

// Get returns the result stored under key.
func (c *CombinerResult) Get(key string) (OperatorResult, bool) {
	value, ok := c.results[key]
	return value, ok
}

// Len returns the number of entries.
func (c *CombinerResult) Len() int {
	return len(c.results)
}

// Keys returns the keys ordered by branch index, then by output key.
func (c *CombinerResult) Keys() []string {
	return SortedKeys(c.results)
}

var _ OperatorResult = (*CombinerResult)(nil)

func (c *CombinerResult) LastTimestamp() (int64, bool) {
	return 0, false
}

// Anomalies concatenates the anomalies of every constituent in key order.
// The capability is present when at least one constituent has it.
func (c *CombinerResult) Anomalies() ([]*Anomaly, bool) {
	var (
		all   []*Anomaly
		found bool
	)
	for _, key := range c.Keys() {
		anomalies, ok := c.results[key].Anomalies()
		if !ok {
			continue
		}
		found = true
		all = append(all, anomalies...)
	}
	return all, found
}

func (c *CombinerResult) Timeseries() (*DataTable, bool) {
	return nil, false
}

func (c *CombinerResult) RawData() (*DataTable, bool) {
	return nil, false
}

func (c *CombinerResult) EnumerationItem() (*EnumerationItem, bool) {
	return nil, false
}

// SortedKeys orders result keys so that numeric "{i}." prefixes sort by
// value, keeping branch 10 after branch 9.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		return branchKeyLess(keys[i], keys[j])
	})
	return keys
}

func branchKeyLess(a, b string) bool {
	ai, arest, aok := splitBranchKey(a)
	bi, brest, bok := splitBranchKey(b)
	if aok && bok {
		if ai != bi {
			return ai < bi
		}
		return arest < brest
	}
	if aok != bok {
		return aok
	}
	return a < b
}

func splitBranchKey(key string) (int, string, bool) {
	prefix, rest, found := strings.Cut(key, ".")
	if !found {
		return 0, "", false
	}
	idx, err := strconv.Atoi(prefix)
	if err != nil {
		return 0, "", false
	}
	return idx, rest, true
}
