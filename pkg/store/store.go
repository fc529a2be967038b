// Package store provides the relational-backend plumbing shared by the
// bi-temporal edge store and the session transcript store: driver
// selection and connection-pool bootstrap atop database/sql, plus a
// migration runner over golang-migrate/migrate/v4. Grounded on the
// teacher's pkg/databases/registry.go named-provider idiom (a scheme-keyed
// map of constructors), repurposed here from vector-DB clients to plain
// relational backends, since conduit's persisted state (§6) is append-only
// rows rather than embeddings.
package store

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Backend names a supported database/sql driver.
type Backend string

const (
	SQLite   Backend = "sqlite3"
	Postgres Backend = "pgx"
	MySQL    Backend = "mysql"
)

// BackendFromDSN guesses the backend from a DSN's scheme, so callers can
// take one connection string from configuration (spec §6) without naming
// the backend twice.
func BackendFromDSN(dsn string) Backend {
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return Postgres
	case strings.HasPrefix(dsn, "mysql://"):
		return MySQL
	default:
		return SQLite
	}
}

// Open opens and pings a connection pool for backend against dsn.
func Open(backend Backend, dsn string) (*sql.DB, error) {
	db, err := sql.Open(string(backend), dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open %s: %w", backend, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: ping %s: %w", backend, err)
	}
	return db, nil
}
