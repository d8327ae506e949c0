package document

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

var _ Collection = (*SQLiteCollection)(nil)

const (
	sqliteSchemaStmt = `
CREATE TABLE IF NOT EXISTS documents (
	Id TEXT NOT NULL PRIMARY KEY,
	Body TEXT NOT NULL
);
`
	sqliteUpsertStmt = `
INSERT INTO documents (Id, Body)
VALUES (?, ?)
ON CONFLICT(Id) DO UPDATE SET
	Body = excluded.Body
`
	sqliteGetStmt   = `SELECT Body FROM documents WHERE Id = ?`
	sqliteKeysStmt  = `SELECT Id FROM documents`
	sqliteLimitStmt = `SELECT Id FROM documents LIMIT ?`
	sqliteScanStmt  = `SELECT Id, Body FROM documents`
)

// SQLiteCollection keeps documents as JSON text in a single table.
type SQLiteCollection struct {
	db *sql.DB
}

func NewSQLiteCollection(path string) (*SQLiteCollection, error) {
	db, dbErr := sql.Open("sqlite3", path)
	if dbErr != nil {
		return nil, dbErr
	}
	// One connection keeps ":memory:" databases shared across calls.
	db.SetMaxOpenConns(1)

	if _, schemaErr := db.Exec(sqliteSchemaStmt); schemaErr != nil {
		return nil, errors.Join(schemaErr, db.Close())
	}

	return &SQLiteCollection{db: db}, nil
}

func (c *SQLiteCollection) Upsert(ctx context.Context, id string, doc Document) error {
	body, marshalErr := json.Marshal(doc)
	if marshalErr != nil {
		return fmt.Errorf("failed to marshal document: %w", marshalErr)
	}
	_, execErr := c.db.ExecContext(ctx, sqliteUpsertStmt, id, string(body))
	return execErr
}

func (c *SQLiteCollection) Read(ctx context.Context, id string) (Document, error) {
	var body string
	scanErr := c.db.QueryRowContext(ctx, sqliteGetStmt, id).Scan(&body)
	if errors.Is(scanErr, sql.ErrNoRows) {
		return Document{}, ErrDocumentNotFound
	}
	if scanErr != nil {
		return Document{}, scanErr
	}

	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return doc, nil
}

func (c *SQLiteCollection) Keys(ctx context.Context) ([]string, error) {
	return c.queryKeys(ctx, sqliteKeysStmt)
}

func (c *SQLiteCollection) Limit(ctx context.Context, n int) ([]string, error) {
	return c.queryKeys(ctx, sqliteLimitStmt, n)
}

func (c *SQLiteCollection) queryKeys(ctx context.Context, query string, args ...any) (result []string, err error) {
	rows, rowsErr := c.db.QueryContext(ctx, query, args...)
	if rowsErr != nil {
		return nil, rowsErr
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	keys := []string{}
	for rows.Next() {
		var id string
		if scanErr := rows.Scan(&id); scanErr != nil {
			return nil, scanErr
		}
		keys = append(keys, id)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, rowsErr
	}
	return keys, nil
}

func (c *SQLiteCollection) Scan(ctx context.Context, fn func(id string, doc Document) error) (err error) {
	rows, rowsErr := c.db.QueryContext(ctx, sqliteScanStmt)
	if rowsErr != nil {
		return rowsErr
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
	}()

	for rows.Next() {
		var id, body string
		if scanErr := rows.Scan(&id, &body); scanErr != nil {
			return scanErr
		}
		var doc Document
		if unmarshalErr := json.Unmarshal([]byte(body), &doc); unmarshalErr != nil {
			return fmt.Errorf("failed to decode document %s: %w", id, unmarshalErr)
		}
		if fnErr := fn(id, doc); fnErr != nil {
			return fnErr
		}
	}
	return rows.Err()
}

func (c *SQLiteCollection) Close() error {
	return c.db.Close()
}
