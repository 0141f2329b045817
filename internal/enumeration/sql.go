package enumeration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/alexisbeaulieu97/detectflow/internal/model"
)

const schema = `CREATE TABLE IF NOT EXISTS enumeration_items (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	alert_id    INTEGER,
	name        TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	params      TEXT NOT NULL,
	created_at  TIMESTAMP NOT NULL,
	updated_at  TIMESTAMP NOT NULL
)`

const indexSchema = `CREATE INDEX IF NOT EXISTS enumeration_items_alert ON enumeration_items (alert_id)`

// SQLStore persists items in a SQLite database.
type SQLStore struct {
	db  *sql.DB
	mu  sync.Mutex
	now func() time.Time
}

// OpenSQLStore opens the SQLite database at dsn and creates the schema if
// needed.
func OpenSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open enumeration store: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{schema, indexSchema} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("migrate enumeration store: %w", err)
		}
	}
	return &SQLStore{db: db, now: time.Now}, nil
}

// FindExistingOrCreate returns the stored item matching item, creating it
// when none exists. Matches found through id keys are refreshed with the
// candidate's name and params.
func (s *SQLStore) FindExistingOrCreate(ctx context.Context, item *model.EnumerationItem, idKeys []string) (*model.EnumerationItem, error) {
	if item == nil {
		return nil, fmt.Errorf("enumeration item is nil")
	}
	candidate := item.Clone()
	candidate.EnsureName()

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin find-or-create: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing, err := s.list(ctx, tx, candidate.AlertID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	for _, stored := range existing {
		if !matches(stored, candidate, idKeys) {
			continue
		}
		if len(idKeys) > 0 && needsUpdate(stored, candidate) {
			if _, err := tx.ExecContext(ctx,
				`UPDATE enumeration_items SET name = ?, description = ?, params = ?, updated_at = ? WHERE id = ?`,
				candidate.Name, candidate.Description, canonical(candidate.Params), now, stored.ID,
			); err != nil {
				return nil, fmt.Errorf("update enumeration item %d: %w", stored.ID, err)
			}
			stored.Name = candidate.Name
			stored.Description = candidate.Description
			stored.Params = model.CloneMap(candidate.Params)
		}
		return stored, tx.Commit()
	}

	res, err := tx.ExecContext(ctx,
		`INSERT INTO enumeration_items (alert_id, name, description, params, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		nullableID(candidate.AlertID), candidate.Name, candidate.Description, canonical(candidate.Params), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert enumeration item %q: %w", candidate.Name, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	candidate.ID = id
	return candidate, tx.Commit()
}

// List returns the items stored for alertID, in creation order.
func (s *SQLStore) List(ctx context.Context, alertID *int64) ([]*model.EnumerationItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.list(ctx, s.db, alertID)
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *SQLStore) list(ctx context.Context, q queryer, alertID *int64) ([]*model.EnumerationItem, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT id, alert_id, name, description, params FROM enumeration_items WHERE alert_id IS ? ORDER BY id`,
		nullableID(alertID),
	)
	if err != nil {
		return nil, fmt.Errorf("list enumeration items: %w", err)
	}
	defer rows.Close()

	var items []*model.EnumerationItem
	for rows.Next() {
		var (
			item   model.EnumerationItem
			alert  sql.NullInt64
			params string
		)
		if err := rows.Scan(&item.ID, &alert, &item.Name, &item.Description, &params); err != nil {
			return nil, err
		}
		if alert.Valid {
			id := alert.Int64
			item.AlertID = &id
		}
		if err := json.Unmarshal([]byte(params), &item.Params); err != nil {
			return nil, fmt.Errorf("decode params of enumeration item %d: %w", item.ID, err)
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
