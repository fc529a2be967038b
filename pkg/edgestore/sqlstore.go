// sqlstore.go wires an optional durable backend for the edge store atop
// database/sql, following the teacher's database/sql bootstrap idiom
// (pool injection, migration-first) as seen in
// nevindra-oasis/store/postgres/postgres.go. The driver is pluggable:
// mattn/go-sqlite3 for local/dev, go-sql-driver/mysql or jackc/pgx/v5's
// stdlib shim for production, with schema migrations applied via
// pkg/store.Migrate (golang-migrate/migrate/v4) by Bootstrap before
// NewSQLStore is used.
package edgestore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/arclane/conduit/pkg/store"
)

// SQLStore persists edges in a SQL table, trading the in-memory Store's
// zero-setup simplicity for durability across restarts. It implements the
// same append-only semantics: rows are inserted, never updated, except
// for the valid_until column, which Expire sets on an existing row
// (mirroring Store.Expire). SQLStore has no Supersede operation; nothing
// in it writes the superseded_at column.
type SQLStore struct {
	db    *sql.DB
	clock Clock
}

// NewSQLStore wraps an externally-owned *sql.DB. The caller is
// responsible for opening the connection, running migrations (the
// embedded migrations that Bootstrap applies), and closing the pool.
func NewSQLStore(db *sql.DB, clock Clock) *SQLStore {
	if clock == nil {
		clock = time.Now
	}
	return &SQLStore{db: db, clock: clock}
}

// Bootstrap opens dsn, applies the embedded migrations, and returns a
// ready-to-use SQLStore. backend picks the golang-migrate database driver;
// store.BackendFromDSN(dsn) is a reasonable default when the caller's
// configuration only carries one connection string.
func Bootstrap(backend store.Backend, dsn string, clock Clock) (*SQLStore, func() error, error) {
	db, err := store.Open(backend, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("edgestore: bootstrap: %w", err)
	}
	if err := store.Migrate(db, backend, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("edgestore: bootstrap: %w", err)
	}
	return NewSQLStore(db, clock), db.Close, nil
}

// CreateEdge inserts a new current edge row.
func (s *SQLStore) CreateEdge(ctx context.Context, source, target, relationship string, weight float64, validFrom time.Time) (Edge, error) {
	now := s.clock()
	if validFrom.IsZero() {
		validFrom = now
	}
	e := Edge{
		ID:           fmt.Sprintf("edge-%d", now.UnixNano()),
		Source:       source,
		Target:       target,
		Relationship: relationship,
		Weight:       weight,
		ValidFrom:    validFrom,
		RecordedAt:   now,
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO conduit_edges (id, source, target, relationship, weight, valid_from, recorded_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Source, e.Target, e.Relationship, e.Weight, e.ValidFrom, e.RecordedAt)
	if err != nil {
		return Edge{}, fmt.Errorf("edgestore: insert edge: %w", err)
	}
	return e, nil
}

// Expire sets valid_until on the named edge.
func (s *SQLStore) Expire(ctx context.Context, edgeID string, at time.Time) error {
	if at.IsZero() {
		at = s.clock()
	}
	res, err := s.db.ExecContext(ctx, `UPDATE conduit_edges SET valid_until = ? WHERE id = ?`, at, edgeID)
	if err != nil {
		return fmt.Errorf("edgestore: expire edge: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrEdgeNotFound
	}
	return nil
}

// QueryAt returns edges matching the bitemporal predicate, scanning into
// Edge values.
func (s *SQLStore) QueryAt(ctx context.Context, validTime, recordTime time.Time) ([]Edge, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, source, target, relationship, weight, valid_from, valid_until, recorded_at, superseded_at FROM conduit_edges ORDER BY recorded_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("edgestore: query: %w", err)
	}
	defer rows.Close()

	var out []Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		if !validAt(e, validTime) {
			continue
		}
		if !recordTime.IsZero() && !recordedAt(e, recordTime) {
			continue
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEdge(r rowScanner) (Edge, error) {
	var e Edge
	var validUntil, supersededAt sql.NullTime
	if err := r.Scan(&e.ID, &e.Source, &e.Target, &e.Relationship, &e.Weight, &e.ValidFrom, &validUntil, &e.RecordedAt, &supersededAt); err != nil {
		return Edge{}, fmt.Errorf("edgestore: scan edge: %w", err)
	}
	if validUntil.Valid {
		e.ValidUntil = &validUntil.Time
	}
	if supersededAt.Valid {
		e.SupersededAt = &supersededAt.Time
	}
	return e, nil
}
