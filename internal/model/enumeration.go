package model

import (
	"fmt"
	"sort"
	"strings"
)

// EnumerationItem is one sub-entity a fork-join fans out over.
type EnumerationItem struct {
	ID          int64          `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Params      map[string]any `json:"params" yaml:"params"`
	AlertID     *int64         `json:"alertId,omitempty" yaml:"alertId,omitempty"`
}

// NameFromParams derives a stable name: sorted key=value pairs joined by commas.
func NameFromParams(params map[string]any) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+ToString(params[key]))
	}
	return strings.Join(parts, ",")
}

// EnsureName back-fills the name from params when it is empty.
func (e *EnumerationItem) EnsureName() {
	if e != nil && e.Name == "" {
		e.Name = NameFromParams(e.Params)
	}
}

// Ref returns a weak reference when the item has been persisted.
func (e *EnumerationItem) Ref() *EnumerationItemRef {
	if e == nil || e.ID == 0 {
		return nil
	}
	return &EnumerationItemRef{ID: e.ID}
}

// MissingKeys lists the keys absent from the item params.
func (e *EnumerationItem) MissingKeys(keys []string) []string {
	var missing []string
	for _, key := range keys {
		if _, ok := e.Params[key]; !ok {
			missing = append(missing, key)
		}
	}
	return missing
}

// Clone returns a deep copy of the item.
func (e *EnumerationItem) Clone() *EnumerationItem {
	if e == nil {
		return nil
	}
	out := *e
	out.Params = CloneMap(e.Params)
	if e.AlertID != nil {
		id := *e.AlertID
		out.AlertID = &id
	}
	return &out
}

func (e *EnumerationItem) String() string {
	if e == nil {
		return "<nil>"
	}
	if e.Name != "" {
		return e.Name
	}
	return NameFromParams(e.Params)
}

// EnumerationResult is the output of an enumerator node.
type EnumerationResult struct {
	Items  []*EnumerationItem
	IDKeys []string
}

var _ OperatorResult = (*EnumerationResult)(nil)

func (r *EnumerationResult) LastTimestamp() (int64, bool) {
	return 0, false
}

func (r *EnumerationResult) Anomalies() ([]*Anomaly, bool) {
	return nil, false
}

func (r *EnumerationResult) Timeseries() (*DataTable, bool) {
	return nil, false
}

func (r *EnumerationResult) RawData() (*DataTable, bool) {
	return nil, false
}

func (r *EnumerationResult) EnumerationItem() (*EnumerationItem, bool) {
	return nil, false
}

func (r *EnumerationResult) String() string {
	return fmt.Sprintf("enumeration(%d items)", len(r.Items))
}
