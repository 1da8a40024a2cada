// Package store persists translations, verse text and annotations in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/FocuswithJustin/JuniperReader/core/errors"
	"github.com/FocuswithJustin/JuniperReader/internal/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS translations (
	code        TEXT PRIMARY KEY,
	name        TEXT NOT NULL,
	hash        TEXT NOT NULL UNIQUE,
	imported_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS books (
	translation TEXT NOT NULL REFERENCES translations(code) ON DELETE CASCADE,
	book        INTEGER NOT NULL,
	osis        TEXT NOT NULL,
	name        TEXT NOT NULL,
	short_name  TEXT NOT NULL,
	PRIMARY KEY (translation, book)
);

CREATE TABLE IF NOT EXISTS verses (
	translation TEXT NOT NULL REFERENCES translations(code) ON DELETE CASCADE,
	book        INTEGER NOT NULL,
	chapter     INTEGER NOT NULL,
	verse       INTEGER NOT NULL,
	text        TEXT NOT NULL,
	PRIMARY KEY (translation, book, chapter, verse)
);

CREATE TABLE IF NOT EXISTS annotations (
	id        TEXT PRIMARY KEY,
	kind      TEXT NOT NULL,
	book      INTEGER NOT NULL,
	chapter   INTEGER NOT NULL,
	verse     INTEGER NOT NULL,
	timestamp INTEGER NOT NULL,
	note      TEXT NOT NULL DEFAULT '',
	color     INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_annotations_kind_time ON annotations(kind, timestamp);
CREATE INDEX IF NOT EXISTS idx_annotations_kind_coord ON annotations(kind, book, chapter, verse);
`

// Store wraps a SQLite database holding reader data.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sqlite.Open(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	return newStore(db)
}

// OpenReadOnly opens an existing database at path for reading. The schema
// is not applied, so the file must already have been created by Open.
func OpenReadOnly(path string) (*Store, error) {
	db, err := sqlite.OpenReadOnly(path)
	if err != nil {
		return nil, errors.NewIO("open", path, err)
	}
	return &Store{db: db}, nil
}

// OpenMemory opens a throwaway in-memory store.
func OpenMemory() (*Store, error) {
	db, err := sqlite.OpenMemory()
	if err != nil {
		return nil, errors.NewIO("open", ":memory:", err)
	}
	return newStore(db)
}

func newStore(db *sql.DB) (*Store, error) {
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for diagnostics.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}
