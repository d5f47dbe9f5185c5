package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"cellule/internal/domain/errs"
)

// sqliteDocs keeps one row per root child in the node table.
type sqliteDocs struct {
	db     SQLDB
	closer func() error
}

// NewSQLiteStore returns a Store persisted in SQLite.
// PRE: db has been initialized with InitDB
// POST: closer (may be nil) runs when the store is closed
func NewSQLiteStore(db SQLDB, closer func() error) Store {
	return newLocalStore(&sqliteDocs{db: db, closer: closer})
}

func (s *sqliteDocs) load(ctx context.Context, key string) (any, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM node WHERE key = ?`, key).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Connectivity("load "+key, err)
	}
	return decodeTree([]byte(raw))
}

func (s *sqliteDocs) save(ctx context.Context, key string, doc any) error {
	if doc == nil {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM node WHERE key = ?`, key); err != nil {
			return errs.Connectivity("delete "+key, err)
		}
		return nil
	}
	v, err := valueOfTree(doc)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO node (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, string(v.Raw()), time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return errs.Connectivity("save "+key, err)
	}
	return nil
}

func (s *sqliteDocs) keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key FROM node ORDER BY key`)
	if err != nil {
		return nil, errs.Connectivity("list keys", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, errs.Connectivity("list keys", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Connectivity("list keys", err)
	}
	return out, nil
}

func (s *sqliteDocs) close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
