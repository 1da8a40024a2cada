// Package sqlite opens SQLite databases with the driver selected at build time.
//
// Build modes:
//   - Default (CGO_ENABLED=0): pure Go modernc.org/sqlite
//   - CGO mode (CGO_ENABLED=1 -tags cgo_sqlite): mattn/go-sqlite3
//
// Use Open() instead of sql.Open() so the registered driver name always matches.
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
)

// DriverType returns "cgo" for mattn/go-sqlite3, "purego" for modernc.org/sqlite.
func DriverType() string {
	return driverType
}

// IsCGO returns true if the CGO implementation is being used.
func IsCGO() bool {
	return driverType == "cgo"
}

// Open opens a SQLite database with foreign keys enforced. The pragma is
// carried in the DSN so every pooled connection gets it.
func Open(dataSourceName string) (*sql.DB, error) {
	db, err := sql.Open(driverName, withParam(dataSourceName, foreignKeysParam))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: opening %s: %w", dataSourceName, err)
	}
	return db, nil
}

// OpenMemory opens a private in-memory database. The pool is pinned to one
// connection because every new connection would see an empty database.
func OpenMemory() (*sql.DB, error) {
	db, err := Open(":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// OpenReadOnly opens an existing SQLite database in read-only mode.
func OpenReadOnly(path string) (*sql.DB, error) {
	db, err := sql.Open(driverName, withParam("file:"+path, "mode=ro"))
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: opening %s read-only: %w", path, err)
	}
	return db, nil
}

func withParam(dsn, param string) string {
	if strings.Contains(dsn, "?") {
		return dsn + "&" + param
	}
	return dsn + "?" + param
}

// Info contains information about the SQLite driver configuration.
type Info struct {
	DriverName string `json:"driver_name"`
	DriverType string `json:"driver_type"`
	IsCGO      bool   `json:"is_cgo"`
	Package    string `json:"package"`
}

// GetInfo returns information about the current SQLite configuration.
func GetInfo() Info {
	return Info{
		DriverName: driverName,
		DriverType: driverType,
		IsCGO:      IsCGO(),
		Package:    driverPackage,
	}
}
