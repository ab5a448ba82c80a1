// Package postgres stores documents as JSONB rows in a single table keyed by
// (collection, id). Row locks provide the single-document atomicity.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/lms-api/internal/store"
)

const maxAttempts = 8

// Schema creates the documents table.
const Schema = `CREATE TABLE IF NOT EXISTS documents (
	collection TEXT NOT NULL,
	id TEXT NOT NULL,
	body JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (collection, id)
)`

const (
	selectQuery       = `SELECT body FROM documents WHERE collection = $1 AND id = $2`
	selectForUpdate   = `SELECT body FROM documents WHERE collection = $1 AND id = $2 FOR UPDATE`
	selectAllForWrite = `SELECT id, body FROM documents WHERE collection = $1 ORDER BY id FOR UPDATE`
	scanQuery         = `SELECT id, body FROM documents WHERE collection = $1 ORDER BY id`
	insertQuery       = `INSERT INTO documents (collection, id, body) VALUES ($1, $2, $3) ON CONFLICT (collection, id) DO NOTHING`
	updateQuery       = `UPDATE documents SET body = $3, updated_at = now() WHERE collection = $1 AND id = $2`
)

type row struct {
	ID   string `db:"id"`
	Body []byte `db:"body"`
}

// Driver is a store.Driver backed by PostgreSQL.
type Driver struct {
	db *sqlx.DB
}

var _ store.Driver = (*Driver)(nil)

// New wraps an open sqlx database.
func New(db *sqlx.DB) *Driver {
	return &Driver{db: db}
}

// EnsureSchema creates the documents table when missing.
func (d *Driver) EnsureSchema(ctx context.Context) error {
	if _, err := d.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create documents table: %w", err)
	}
	return nil
}

func (d *Driver) Get(ctx context.Context, collection, id string) ([]byte, error) {
	var body []byte
	if err := d.db.GetContext(ctx, &body, selectQuery, collection, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("get %s/%s: %w", collection, id, err)
	}
	return body, nil
}

func (d *Driver) Insert(ctx context.Context, collection, id string, doc []byte) error {
	res, err := d.db.ExecContext(ctx, insertQuery, collection, id, string(doc))
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert %s/%s: %w", collection, id, err)
	}
	if affected == 0 {
		return store.ErrConflict
	}
	return nil
}

func (d *Driver) Modify(ctx context.Context, collection, id string, fn store.ModifyFunc) ([]byte, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		doc, retry, err := d.modifyOnce(ctx, collection, id, fn)
		if err != nil {
			return nil, err
		}
		if !retry {
			return doc, nil
		}
	}
	return nil, fmt.Errorf("modify %s/%s: concurrent inserts kept winning", collection, id)
}

// modifyOnce reports retry when a concurrent insert created the row between
// the locked read and our insert.
func (d *Driver) modifyOnce(ctx context.Context, collection, id string, fn store.ModifyFunc) ([]byte, bool, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var current []byte
	exists := true
	if err := tx.GetContext(ctx, &current, selectForUpdate, collection, id); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, false, fmt.Errorf("lock %s/%s: %w", collection, id, err)
		}
		exists = false
		current = nil
	}

	next, err := fn(current)
	if err != nil {
		return nil, false, err
	}
	if next == nil {
		return current, false, nil
	}

	if exists {
		if _, err := tx.ExecContext(ctx, updateQuery, collection, id, string(next)); err != nil {
			return nil, false, fmt.Errorf("update %s/%s: %w", collection, id, err)
		}
	} else {
		res, err := tx.ExecContext(ctx, insertQuery, collection, id, string(next))
		if err != nil {
			return nil, false, fmt.Errorf("insert %s/%s: %w", collection, id, err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected == 0 {
			return nil, true, nil
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit %s/%s: %w", collection, id, err)
	}
	return next, false, nil
}

func (d *Driver) ModifyAll(ctx context.Context, collection string, fn store.ModifyFunc) (int, error) {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var rows []row
	if err := tx.SelectContext(ctx, &rows, selectAllForWrite, collection); err != nil {
		return 0, fmt.Errorf("lock %s: %w", collection, err)
	}

	changed := 0
	for _, r := range rows {
		next, err := fn(r.Body)
		if err != nil {
			return 0, err
		}
		if next == nil {
			continue
		}
		if _, err := tx.ExecContext(ctx, updateQuery, collection, r.ID, string(next)); err != nil {
			return 0, fmt.Errorf("update %s/%s: %w", collection, r.ID, err)
		}
		changed++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit %s: %w", collection, err)
	}
	return changed, nil
}

func (d *Driver) Scan(ctx context.Context, collection string, fn func(id string, doc []byte) error) error {
	var rows []row
	if err := d.db.SelectContext(ctx, &rows, scanQuery, collection); err != nil {
		return fmt.Errorf("scan %s: %w", collection, err)
	}
	for _, r := range rows {
		if err := fn(r.ID, r.Body); err != nil {
			return err
		}
	}
	return nil
}

func (d *Driver) Close(context.Context) error {
	return d.db.Close()
}
