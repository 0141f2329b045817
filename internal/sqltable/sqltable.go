// Package sqltable moves DataTables in and out of database/sql.
package sqltable

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
)

// QuoteIdent quotes an identifier for SQLite and Postgres.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// Load creates table name with the columns of t and inserts every row in
// one transaction. Columns are declared without a type so values keep the
// storage class they were inserted with.
func Load(ctx context.Context, db *sql.DB, name string, t *model.DataTable) error {
	if t == nil || len(t.Columns) == 0 {
		return fmt.Errorf("table %q has no columns", name)
	}

	columns := make([]string, len(t.Columns))
	placeholders := make([]string, len(t.Columns))
	for i, column := range t.Columns {
		columns[i] = QuoteIdent(column)
		placeholders[i] = "?"
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", QuoteIdent(name), strings.Join(columns, ", "))
	if _, err := db.ExecContext(ctx, create); err != nil {
		return fmt.Errorf("create table %q: %w", name, err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin load of %q: %w", name, err)
	}
	defer func() { _ = tx.Rollback() }()

	insert := fmt.Sprintf("INSERT INTO %s VALUES (%s)", QuoteIdent(name), strings.Join(placeholders, ", "))
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		return fmt.Errorf("prepare insert into %q: %w", name, err)
	}
	defer stmt.Close()

	for i, row := range t.Rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("insert row %d into %q: %w", i, name, err)
		}
	}
	return tx.Commit()
}

// FromRows drains rows into a DataTable. Byte slices are converted to
// strings.
func FromRows(rows *sql.Rows) (*model.DataTable, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	table := model.NewDataTable(columns...)
	for rows.Next() {
		values := make([]any, len(columns))
		pointers := make([]any, len(columns))
		for i := range values {
			pointers[i] = &values[i]
		}
		if err := rows.Scan(pointers...); err != nil {
			return nil, err
		}
		for i, value := range values {
			if b, ok := value.([]byte); ok {
				values[i] = string(b)
			}
		}
		if err := table.AddRow(values...); err != nil {
			return nil, err
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return table, nil
}
