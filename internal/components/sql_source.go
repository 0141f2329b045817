package components

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/alexisbeaulieu97/detectflow/internal/logger"
	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/pipeline"
	"github.com/alexisbeaulieu97/detectflow/internal/sqltable"
)

const SQLType = "sql"

// SQLSource runs a query against a database/sql driver, pgx by default.
// The query may use the interval macros __startTime and __endTime (epoch
// milliseconds) and __startTimeIso and __endTimeIso (RFC 3339).
type SQLSource struct {
	driver      string
	dsn         string
	query       string
	granularity string
	log         *logger.Logger
}

// NewSQLSource builds a SQLSource. Params: driver, dsn, query and
// granularity.
func NewSQLSource(spec pipeline.ComponentSpec) (pipeline.DataFetcher, error) {
	s := &SQLSource{
		driver:      spec.Params.StringOr("driver", "pgx"),
		dsn:         spec.Params.StringOr("dsn", ""),
		query:       spec.Params.StringOr("query", ""),
		granularity: spec.Params.StringOr("granularity", ""),
		log:         spec.Logger,
	}
	if s.dsn == "" {
		return nil, fmt.Errorf("dsn is required")
	}
	if s.query == "" {
		return nil, fmt.Errorf("query is required")
	}
	switch s.driver {
	case "pgx", "sqlite3":
	default:
		return nil, fmt.Errorf("unsupported driver %q", s.driver)
	}
	return s, nil
}

// ExpandQuery replaces the interval macros in query.
func ExpandQuery(query string, interval model.DetectionInterval) string {
	replacer := strings.NewReplacer(
		"__startTimeIso", interval.Start.UTC().Format(time.RFC3339),
		"__endTimeIso", interval.End.UTC().Format(time.RFC3339),
		"__startTime", strconv.FormatInt(interval.StartMillis(), 10),
		"__endTime", strconv.FormatInt(interval.EndMillis(), 10),
	)
	return replacer.Replace(query)
}

func (s *SQLSource) GetDataTable(ctx context.Context, interval model.DetectionInterval) (table *model.DataTable, err error) {
	query := ExpandQuery(s.query, interval)

	db, err := sql.Open(s.driver, s.dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s data source: %w", s.driver, err)
	}
	defer func() {
		err = multierr.Append(err, db.Close())
	}()

	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		s.log.With("query", query).Error(err, "data source query failed")
		return nil, err
	}
	defer rows.Close()

	table, err = sqltable.FromRows(rows)
	if err != nil {
		s.log.With("query", query).Error(err, "reading data source rows failed")
		return nil, err
	}
	table.SetProperty(model.PropertyMinTimeMillis, strconv.FormatInt(interval.StartMillis(), 10))
	table.SetProperty(model.PropertyMaxTimeMillis, strconv.FormatInt(interval.EndMillis(), 10))
	if s.granularity != "" {
		table.SetProperty(model.PropertyGranularity, s.granularity)
	}
	return table, nil
}
