package data

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/multierr"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
	"github.com/alexisbeaulieu97/detectflow/internal/operator"
	"github.com/alexisbeaulieu97/detectflow/internal/sqltable"
	detecterrors "github.com/alexisbeaulieu97/detectflow/pkg/errors"
)

const SqlExecutionType = "SqlExecution"

// Query is one statement run by SqlExecution. Unnamed queries are published
// under their position.
type Query struct {
	Name string
	SQL  string
}

// SqlExecution loads its input tables into a private in-memory SQLite
// database, runs the configured queries in order and publishes one table
// per query. The database lives only for the duration of Execute.
type SqlExecution struct {
	operator.Base
	queries []Query
}

// NewSqlExecution is the registry factory.
func NewSqlExecution() operator.Operator {
	return &SqlExecution{}
}

func (s *SqlExecution) Init(_ context.Context, opCtx *operator.Context) error {
	if err := s.Bind(opCtx); err != nil {
		return err
	}
	queries, err := parseQueries(s.Node().Name, s.Params()["queries"])
	if err != nil {
		return err
	}
	s.queries = queries
	return nil
}

func parseQueries(node string, raw any) ([]Query, error) {
	field := node + ".params.queries"
	var list []any
	switch v := raw.(type) {
	case nil:
		return nil, detecterrors.NewValidationError(field, "required parameter is missing", nil)
	case string:
		list = []any{v}
	case []string:
		for _, q := range v {
			list = append(list, q)
		}
	case []any:
		list = v
	default:
		return nil, detecterrors.NewValidationError(field, fmt.Sprintf("unsupported queries value of type %T", raw), nil)
	}

	queries := make([]Query, 0, len(list))
	for i, entry := range list {
		var q Query
		if v, ok := entry.(string); ok {
			q.SQL = v
		} else if m, ok := model.AsMap(entry); ok {
			q.Name = model.ToString(m["name"])
			q.SQL = model.ToString(m["sql"])
		} else {
			return nil, detecterrors.NewValidationError(fmt.Sprintf("%s[%d]", field, i), fmt.Sprintf("unsupported query of type %T", entry), nil)
		}
		if q.SQL == "" {
			return nil, detecterrors.NewValidationError(fmt.Sprintf("%s[%d]", field, i), "query is empty", nil)
		}
		queries = append(queries, q)
	}
	if len(queries) == 0 {
		return nil, detecterrors.NewValidationError(field, "at least one query is required", nil)
	}
	return queries, nil
}

func (s *SqlExecution) Execute(ctx context.Context) (err error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return fmt.Errorf("open embedded database: %w", err)
	}
	// One connection keeps the in-memory database alive and private.
	db.SetMaxOpenConns(1)
	defer func() {
		err = multierr.Append(err, db.Close())
	}()

	tables := s.InputTables()
	for _, key := range operator.SortedTableKeys(tables) {
		if err := sqltable.Load(ctx, db, key, tables[key]); err != nil {
			s.Logger().With("table", key).Error(err, "loading input table failed")
			return err
		}
	}

	for i, q := range s.queries {
		table, err := s.runQuery(ctx, db, q)
		if err != nil {
			s.Logger().With("query", q.SQL).Error(err, "sql query failed")
			return err
		}
		key := q.Name
		if key == "" {
			key = strconv.Itoa(i)
		}
		s.SetOutput(key, model.NewTableResult(table))
	}
	return nil
}

func (s *SqlExecution) runQuery(ctx context.Context, db *sql.DB, q Query) (*model.DataTable, error) {
	rows, err := db.QueryContext(ctx, q.SQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return sqltable.FromRows(rows)
}
