// Package ledger records deployment runs in a local SQLite database.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/oklog/ulid/v2"
)

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Run is one deployment attempt.
type Run struct {
	ID          string
	Endpoint    string
	ArtifactURL string
	Status      string
	Error       string
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Duration is the wall-clock time of the run.
func (r Run) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

type DB struct {
	*sql.DB
}

// Open opens (creating if needed) the ledger at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS runs(
		id TEXT PRIMARY KEY,
		endpoint TEXT,
		artifact_url TEXT,
		status TEXT,
		error TEXT,
		started_at REAL,
		finished_at REAL
	)`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create runs table: %w", err)
	}
	return &DB{db}, nil
}

// Record inserts run, assigning a ULID when ID is empty, and returns the id.
func (db *DB) Record(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = ulid.Make().String()
	}
	_, err := db.ExecContext(ctx, `INSERT INTO runs(id,endpoint,artifact_url,status,error,started_at,finished_at)
		VALUES(?,?,?,?,?,?,?)`,
		run.ID, run.Endpoint, run.ArtifactURL, run.Status, run.Error, unixSeconds(run.StartedAt), unixSeconds(run.FinishedAt))
	if err != nil {
		return "", fmt.Errorf("record run: %w", err)
	}
	return run.ID, nil
}

// List returns up to limit runs, newest first. limit <= 0 means all.
func (db *DB) List(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT id,endpoint,artifact_url,status,error,started_at,finished_at FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Run
	for rows.Next() {
		var r Run
		var started, finished float64
		if err := rows.Scan(&r.ID, &r.Endpoint, &r.ArtifactURL, &r.Status, &r.Error, &started, &finished); err != nil {
			return nil, err
		}
		r.StartedAt = fromUnixSeconds(started)
		r.FinishedAt = fromUnixSeconds(finished)
		out = append(out, r)
	}
	return out, rows.Err()
}

func unixSeconds(t time.Time) float64 { return float64(t.UnixNano()) / 1e9 }

func fromUnixSeconds(s float64) time.Time {
	return time.Unix(0, int64(s*1e9)).UTC()
}
