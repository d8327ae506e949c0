package document

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ Collection = (*PostgresCollection)(nil)

const defaultPostgresTable = "documents"

// PostgresCollection keeps documents in a jsonb column.
type PostgresCollection struct {
	pool  *pgxpool.Pool
	table string
}

type PostgresOption func(*PostgresCollection)

// WithTable stores documents in the named table instead of "documents".
func WithTable(name string) PostgresOption {
	return func(c *PostgresCollection) {
		c.table = name
	}
}

func NewPostgresCollection(ctx context.Context, dsn string, opts ...PostgresOption) (*PostgresCollection, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	c := &PostgresCollection{pool: pool, table: defaultPostgresTable}
	for _, opt := range opts {
		opt(c)
	}

	if _, err := pool.Exec(ctx, c.stmt(`
CREATE TABLE IF NOT EXISTS %s (
	id   TEXT PRIMARY KEY,
	body JSONB NOT NULL
)`)); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return c, nil
}

func (c *PostgresCollection) stmt(format string) string {
	return fmt.Sprintf(format, pgx.Identifier{c.table}.Sanitize())
}

func (c *PostgresCollection) Upsert(ctx context.Context, id string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}
	_, err = c.pool.Exec(ctx, c.stmt(`
INSERT INTO %s (id, body)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body`), id, body)
	return err
}

func (c *PostgresCollection) Read(ctx context.Context, id string) (Document, error) {
	// Such ids cannot be stored, and postgres refuses them as parameters.
	if id == "" || !utf8.ValidString(id) || strings.ContainsRune(id, 0) {
		return Document{}, ErrDocumentNotFound
	}

	var body []byte
	err := c.pool.QueryRow(ctx, c.stmt(`SELECT body FROM %s WHERE id = $1`), id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return Document{}, ErrDocumentNotFound
	}
	if err != nil {
		return Document{}, err
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return Document{}, fmt.Errorf("failed to decode document %s: %w", id, err)
	}
	return doc, nil
}

func (c *PostgresCollection) Keys(ctx context.Context) ([]string, error) {
	rows, err := c.pool.Query(ctx, c.stmt(`SELECT id FROM %s`))
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (c *PostgresCollection) Limit(ctx context.Context, n int) ([]string, error) {
	rows, err := c.pool.Query(ctx, c.stmt(`SELECT id FROM %s LIMIT $1`), n)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

func (c *PostgresCollection) Scan(ctx context.Context, fn func(id string, doc Document) error) error {
	rows, err := c.pool.Query(ctx, c.stmt(`SELECT id, body FROM %s`))
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var id string
		var body []byte
		if err := rows.Scan(&id, &body); err != nil {
			return err
		}
		var doc Document
		if err := json.Unmarshal(body, &doc); err != nil {
			return fmt.Errorf("failed to decode document %s: %w", id, err)
		}
		if err := fn(id, doc); err != nil {
			return err
		}
	}
	return rows.Err()
}

// Drop removes the collection's table.
func (c *PostgresCollection) Drop(ctx context.Context) error {
	_, err := c.pool.Exec(ctx, c.stmt(`DROP TABLE IF EXISTS %s`))
	return err
}

func (c *PostgresCollection) Close() error {
	c.pool.Close()
	return nil
}
