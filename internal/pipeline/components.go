package pipeline

import (
	"context"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
)

// Detector scores input tables. The returned table carries at least the
// timestamp and anomaly columns.
type Detector interface {
	RunDetection(ctx context.Context, interval model.DetectionInterval, inputs map[string]*model.DataTable) (*model.DataTable, error)
}

// DataFetcher returns one table for the interval.
type DataFetcher interface {
	GetDataTable(ctx context.Context, interval model.DetectionInterval) (*model.DataTable, error)
}

// EventTrigger receives rows one at a time. Close is always called once
// the rows are exhausted, even when there were none.
type EventTrigger interface {
	Trigger(ctx context.Context, row map[string]any) error
	Close(ctx context.Context) error
}

// PostProcessor rewrites a flat map of results, typically by labelling or
// merging anomalies.
type PostProcessor interface {
	Name() string
	PostProcess(ctx context.Context, interval model.DetectionInterval, results map[string]model.OperatorResult) (map[string]model.OperatorResult, error)
}

// IndexFiller rewrites a table onto a canonical time grid.
type IndexFiller interface {
	FillIndex(ctx context.Context, interval model.DetectionInterval, table *model.DataTable) (*model.DataTable, error)
}

// EnumerationStrategy lists the items a fork-join fans out over.
type EnumerationStrategy interface {
	Enumerate(ctx context.Context, interval model.DetectionInterval) ([]*model.EnumerationItem, error)
}

// EnumerationItemManager persists enumeration items. FindExistingOrCreate
// returns the stored item with the same identity, creating it if needed.
// Identity is the alert id plus the id-key subset of params when idKeys is
// non-empty, else the alert id plus name and params.
type EnumerationItemManager interface {
	FindExistingOrCreate(ctx context.Context, item *model.EnumerationItem, idKeys []string) (*model.EnumerationItem, error)
}
