package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arclane/conduit/pkg/message"
	"github.com/arclane/conduit/pkg/store"
)

// Dialect is the closed set of database/sql backends SQLStore supports,
// matching the teacher's SQLSessionService dialect switch.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
)

// backend maps a Dialect onto the pkg/store.Backend (and thus the
// golang-migrate/database/sql driver name) that implements it.
func (d Dialect) backend() store.Backend {
	switch d {
	case DialectPostgres:
		return store.Postgres
	case DialectMySQL:
		return store.MySQL
	default:
		return store.SQLite
	}
}

// Schema is the DDL for the transcript table, one row per turn, ordered
// by an autoincrement-free monotonic turn_number per session.
const Schema = `
CREATE TABLE IF NOT EXISTS conduit_session_turns (
    project      VARCHAR(255) NOT NULL,
    session_id   VARCHAR(255) NOT NULL,
    turn_number  INTEGER NOT NULL,
    role         VARCHAR(50) NOT NULL,
    content      TEXT NOT NULL,
    agent        VARCHAR(255),
    model        VARCHAR(255),
    tool_calls   TEXT,
    created_at   TIMESTAMP NOT NULL,
    PRIMARY KEY (project, session_id, turn_number)
);

CREATE INDEX IF NOT EXISTS idx_conduit_session_turns_session
    ON conduit_session_turns(project, session_id);
`

// SQLStore implements Store over database/sql, supporting sqlite,
// postgres, and mysql per the teacher's SQLSessionService dialect
// pattern. The caller owns the *sql.DB's lifecycle.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an externally-owned db and ensures the transcript
// schema exists, applying Schema directly for callers that manage their
// own connection lifecycle. Bootstrap is preferred for new callers: it
// also owns dialing the connection and runs the embedded migrations
// instead of an ad hoc CREATE TABLE IF NOT EXISTS.
func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("session: database connection is required")
	}
	s := &SQLStore{db: db, dialect: dialect}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return nil, fmt.Errorf("session: init schema: %w", err)
	}
	return s, nil
}

// Bootstrap opens dsn for dialect, applies the embedded migrations, and
// returns a ready SQLStore plus a close func for the pool.
func Bootstrap(dialect Dialect, dsn string) (*SQLStore, func() error, error) {
	backend := dialect.backend()
	db, err := store.Open(backend, dsn)
	if err != nil {
		return nil, nil, fmt.Errorf("session: bootstrap: %w", err)
	}
	if err := store.Migrate(db, backend, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("session: bootstrap: %w", err)
	}
	return &SQLStore{db: db, dialect: dialect}, db.Close, nil
}

// AppendTurn inserts t as the next row for key's transcript. A caller
// supplying TurnNumber zero gets the next sequential number computed
// from the current max.
func (s *SQLStore) AppendTurn(ctx context.Context, key Key, t Turn) error {
	toolCallsJSON, err := json.Marshal(t.ToolCalls)
	if err != nil {
		return fmt.Errorf("session: marshal tool calls: %w", err)
	}

	if t.TurnNumber == 0 {
		var max sql.NullInt64
		row := s.db.QueryRowContext(ctx,
			`SELECT MAX(turn_number) FROM conduit_session_turns WHERE project = ? AND session_id = ?`,
			key.Project, key.SessionID)
		if err := row.Scan(&max); err != nil {
			return fmt.Errorf("session: compute next turn number: %w", err)
		}
		t.TurnNumber = int(max.Int64) + 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO conduit_session_turns
			(project, session_id, turn_number, role, content, agent, model, tool_calls, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		key.Project, key.SessionID, t.TurnNumber, string(t.Role), t.Content,
		t.Agent, t.Model, string(toolCallsJSON), t.CreatedAt)
	if err != nil {
		return fmt.Errorf("session: append turn: %w", err)
	}
	return nil
}

// ListTurns returns key's transcript ordered by turn_number.
func (s *SQLStore) ListTurns(ctx context.Context, key Key) ([]Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT turn_number, role, content, agent, model, tool_calls, created_at
		 FROM conduit_session_turns
		 WHERE project = ? AND session_id = ?
		 ORDER BY turn_number ASC`,
		key.Project, key.SessionID)
	if err != nil {
		return nil, fmt.Errorf("session: list turns: %w", err)
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var (
			t             Turn
			role          string
			agent, model  sql.NullString
			toolCallsJSON string
			createdAt     time.Time
		)
		if err := rows.Scan(&t.TurnNumber, &role, &t.Content, &agent, &model, &toolCallsJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("session: scan turn: %w", err)
		}
		t.Role = message.Role(role)
		t.Agent = agent.String
		t.Model = model.String
		t.CreatedAt = createdAt
		if toolCallsJSON != "" && toolCallsJSON != "null" {
			if err := json.Unmarshal([]byte(toolCallsJSON), &t.ToolCalls); err != nil {
				return nil, fmt.Errorf("session: unmarshal tool calls: %w", err)
			}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrSessionNotFound
	}
	return out, nil
}

// ListSessions returns every distinct session ID recorded under project.
func (s *SQLStore) ListSessions(ctx context.Context, project string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT session_id FROM conduit_session_turns WHERE project = ?`, project)
	if err != nil {
		return nil, fmt.Errorf("session: list sessions: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// DeleteSession removes every turn recorded for key.
func (s *SQLStore) DeleteSession(ctx context.Context, key Key) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM conduit_session_turns WHERE project = ? AND session_id = ?`,
		key.Project, key.SessionID)
	if err != nil {
		return fmt.Errorf("session: delete session: %w", err)
	}
	return nil
}

var _ Store = (*SQLStore)(nil)
