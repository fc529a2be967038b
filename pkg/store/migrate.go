package store

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

func driverFor(db *sql.DB, backend Backend) (database.Driver, error) {
	switch backend {
	case Postgres:
		return postgres.WithInstance(db, &postgres.Config{})
	case MySQL:
		return mysql.WithInstance(db, &mysql.Config{})
	default:
		return sqlite3.WithInstance(db, &sqlite3.Config{})
	}
}

// Migrate applies every pending *.up.sql migration found under subdir of
// fsys to db, via golang-migrate. Each caller package (edgestore, session)
// embeds its own migrations directory and calls this once before first
// use, per spec §9's "init(home_dir) -> use -> flush -> close" global
// state lifecycle.
func Migrate(db *sql.DB, backend Backend, fsys embed.FS, subdir string) error {
	src, err := iofs.New(fsys, subdir)
	if err != nil {
		return fmt.Errorf("store: migration source: %w", err)
	}
	drv, err := driverFor(db, backend)
	if err != nil {
		return fmt.Errorf("store: database driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, string(backend), drv)
	if err != nil {
		return fmt.Errorf("store: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}
