// Package data holds the operators that move tables in and out of a plan:
// fetchers, the time index filler, event triggers and SQL execution.
package data

import (
	"context"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
)

const (
	DataFetcherType  = "DataFetcher"
	EventFetcherType = "EventFetcher"

	// DataFetcherOutput is the key a DataFetcher publishes its table under.
	DataFetcherOutput = "currentData"
	// EventFetcherOutput is the key an EventFetcher publishes its table under.
	EventFetcherOutput = "events"
)

// Fetcher delegates to a data source component and publishes the returned
// table. DataFetcher and EventFetcher differ only in their output key.
type Fetcher struct {
	operator.Base
	outputKey string
	fetcher   pipeline.DataFetcher
}

// NewDataFetcher is the registry factory for DataFetcher.
func NewDataFetcher() operator.Operator {
	return &Fetcher{outputKey: DataFetcherOutput}
}

// NewEventFetcher is the registry factory for EventFetcher.
func NewEventFetcher() operator.Operator {
	return &Fetcher{outputKey: EventFetcherOutput}
}

func (f *Fetcher) Init(_ context.Context, opCtx *operator.Context) error {
	if err := f.Bind(opCtx); err != nil {
		return err
	}
	spec, err := f.ComponentSpec("type")
	if err != nil {
		return err
	}
	fetcher, err := f.Components().DataFetchers.New(spec)
	if err != nil {
		return err
	}
	f.fetcher = fetcher
	return nil
}

func (f *Fetcher) Execute(ctx context.Context) error {
	interval := f.Pipeline().Interval
	table, err := f.fetcher.GetDataTable(ctx, interval)
	if err != nil {
		f.Logger().With("interval", interval.String()).Error(err, "data fetch failed")
		return err
	}
	if table == nil {
		table = model.NewDataTable()
	}
	f.Logger().With("rows", table.Len()).Debug("data fetched")
	f.SetOutput(f.outputKey, model.NewTableResult(table))
	return nil
}
