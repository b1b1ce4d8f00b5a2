// Package sqlite persists access records in a SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tjfontaine/edge-gateway/internal/accesslog"
)

// Store is a SQLite implementation of accesslog.Recorder.
type Store struct {
	db *sql.DB
}

var _ accesslog.Recorder = (*Store)(nil)

// New opens (creating if needed) the database at dbPath.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &Store{db: db}

	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS access_log (
			seq INTEGER PRIMARY KEY AUTOINCREMENT,
			id TEXT NOT NULL UNIQUE,
			request_id TEXT,
			method TEXT NOT NULL,
			uri TEXT NOT NULL,
			status INTEGER NOT NULL DEFAULT 0,
			duration_ms INTEGER NOT NULL,
			user_name TEXT NOT NULL DEFAULT '',
			client_ip TEXT,
			error TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_access_log_created ON access_log(created_at)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute schema statement: %w", err)
		}
	}

	return nil
}

func (s *Store) Record(ctx context.Context, rec *accesslog.Record) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	query := `INSERT INTO access_log
		(id, request_id, method, uri, status, duration_ms, user_name, client_ip, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.RequestID, rec.Method, rec.URI, rec.Status, rec.DurationMs,
		rec.User, rec.ClientIP, rec.Error, rec.CreatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert access record: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, limit int) ([]*accesslog.Record, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT id, request_id, method, uri, status, duration_ms, user_name, client_ip, error, created_at
		FROM access_log ORDER BY seq DESC LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query access records: %w", err)
	}
	defer rows.Close()

	var out []*accesslog.Record
	for rows.Next() {
		var (
			rec       accesslog.Record
			requestID sql.NullString
			clientIP  sql.NullString
			errMsg    sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &requestID, &rec.Method, &rec.URI, &rec.Status,
			&rec.DurationMs, &rec.User, &clientIP, &errMsg, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan access record: %w", err)
		}
		rec.RequestID = requestID.String
		rec.ClientIP = clientIP.String
		rec.Error = errMsg.String
		rec.CreatedAt = time.UnixMilli(createdAt)
		out = append(out, &rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate access records: %w", err)
	}

	return out, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
