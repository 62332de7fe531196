// Package store persists job snapshots in SQL. SQLite serves single-node
// deployments; a postgres:// DSN switches to pgx.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/tablemorph/tablemorph/internal/common"
)

// Record is one persisted job snapshot. Snapshot carries the full job state
// as JSON; Version guards concurrent writers.
type Record struct {
	ID        string          `json:"id"`
	Status    string          `json:"status"`
	Snapshot  json.RawMessage `json:"snapshot"`
	Version   int64           `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// Store is a SQL-backed job store.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

// Open connects to the database named by the DSN and ensures the schema
// exists. postgres:// DSNs use pgx, everything else is treated as a SQLite
// path.
func Open(ctx context.Context, dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, common.WrapErrorAs(common.ErrDatabase, fmt.Sprintf("open %s", driver), err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, common.WrapErrorAs(common.ErrDatabase, "ping database", err)
	}

	s := &Store{db: db, driver: driver, logger: logger}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("store.open", "driver", driver)
	return s, nil
}

func (s *Store) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		status TEXT NOT NULL,
		snapshot TEXT NOT NULL,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	);`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return common.WrapErrorAs(common.ErrDatabase, "create jobs table", err)
	}
	return nil
}

// bind rewrites ? placeholders to $N for postgres; SQLite takes ? as-is.
func (s *Store) bind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Create inserts a new job at version 1.
func (s *Store) Create(ctx context.Context, id, status string, snapshot json.RawMessage) (*Record, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		s.bind(`INSERT INTO jobs (id, status, snapshot, version, created_at, updated_at) VALUES (?, ?, ?, 1, ?, ?)`),
		id, status, string(snapshot), now, now)
	if err != nil {
		return nil, common.WrapErrorAs(common.ErrDatabase, "insert job", err)
	}
	return &Record{ID: id, Status: status, Snapshot: snapshot, Version: 1, CreatedAt: now, UpdatedAt: now}, nil
}

// Get returns one job by id.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	var rec Record
	var snapshot string
	err := s.db.QueryRowContext(ctx,
		s.bind(`SELECT id, status, snapshot, version, created_at, updated_at FROM jobs WHERE id = ?`), id).
		Scan(&rec.ID, &rec.Status, &snapshot, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, common.WrapErrorAs(common.ErrNotFound, fmt.Sprintf("job %s not found", id), err)
	}
	if err != nil {
		return nil, common.WrapErrorAs(common.ErrDatabase, "query job", err)
	}
	rec.Snapshot = json.RawMessage(snapshot)
	return &rec, nil
}

// Update replaces the snapshot for the given version and bumps it. A stale
// version returns ErrVersionConflict.
func (s *Store) Update(ctx context.Context, id, status string, snapshot json.RawMessage, version int64) (int64, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		s.bind(`UPDATE jobs SET status = ?, snapshot = ?, version = version + 1, updated_at = ? WHERE id = ? AND version = ?`),
		status, string(snapshot), now, id, version)
	if err != nil {
		return 0, common.WrapErrorAs(common.ErrDatabase, "update job", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, common.WrapErrorAs(common.ErrDatabase, "update job", err)
	}
	if affected == 0 {
		s.logger.Warn("store.version_conflict", "job_id", id, "version", version)
		return 0, common.ErrVersionConflict
	}
	return version + 1, nil
}

// List returns jobs newest first, capped at limit (0 means no cap).
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	query := `SELECT id, status, snapshot, version, created_at, updated_at FROM jobs ORDER BY created_at DESC`
	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.QueryContext(ctx, s.bind(query+` LIMIT ?`), limit)
	} else {
		rows, err = s.db.QueryContext(ctx, query)
	}
	if err != nil {
		return nil, common.WrapErrorAs(common.ErrDatabase, "list jobs", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var snapshot string
		if err := rows.Scan(&rec.ID, &rec.Status, &snapshot, &rec.Version, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, common.WrapErrorAs(common.ErrDatabase, "scan job", err)
		}
		rec.Snapshot = json.RawMessage(snapshot)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a job.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.bind(`DELETE FROM jobs WHERE id = ?`), id)
	if err != nil {
		return common.WrapErrorAs(common.ErrDatabase, "delete job", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return common.WrapErrorAs(common.ErrNotFound, fmt.Sprintf("job %s not found", id), nil)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error { return s.db.Close() }
