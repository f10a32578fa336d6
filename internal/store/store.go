// Package store persists pipeline runs in SQLite: the run summary, every
// reply row received and the final dataset. Stored replies feed the replay
// transport.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/seenimoa/finsheet/pkg/models"
)

// ErrNotFound is returned when a run id is unknown.
var ErrNotFound = errors.New("run not found")

// timeLayout is fixed-width so created_at sorts lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	ticker      TEXT NOT NULL,
	years       INTEGER NOT NULL,
	anchor_year INTEGER NOT NULL,
	provider    TEXT NOT NULL,
	outcome     TEXT NOT NULL,
	requests    INTEGER NOT NULL,
	replies     INTEGER NOT NULL,
	created_at  TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_ticker ON runs(ticker, created_at);

CREATE TABLE IF NOT EXISTS replies (
	run_id     TEXT NOT NULL,
	seq        INTEGER NOT NULL,
	identifier TEXT NOT NULL,
	mnemonic   TEXT NOT NULL,
	period     TEXT NOT NULL,
	payload    TEXT NOT NULL,
	PRIMARY KEY (run_id, seq),
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS datasets (
	run_id  TEXT PRIMARY KEY,
	payload TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);
`

// Run summarises one pipeline invocation.
type Run struct {
	ID         string         `json:"id"`
	Ticker     string         `json:"ticker"`
	Years      int            `json:"years"`
	AnchorYear int            `json:"anchor_year"`
	Provider   string         `json:"provider"`
	Outcome    models.Outcome `json:"outcome"`
	Requests   int            `json:"requests"`
	Replies    int            `json:"replies"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Store is a SQLite-backed run archive.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path. ":memory:" is accepted.
func Open(path string) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open store %s: %w", path, err)
	}
	// A single connection keeps ":memory:" databases shared and serialises
	// writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// SaveRun writes a run with its replies and dataset in one transaction.
func (s *Store) SaveRun(ctx context.Context, run Run, replies []models.RawReplyRow, ds *models.FinancialDataset) error {
	if run.ID == "" {
		return errors.New("save run: empty id")
	}
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now()
	}
	run.Replies = len(replies)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, ticker, years, anchor_year, provider, outcome, requests, replies, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, strings.ToUpper(run.Ticker), run.Years, run.AnchorYear, run.Provider,
		string(run.Outcome), run.Requests, run.Replies, run.CreatedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO replies (run_id, seq, identifier, mnemonic, period, payload) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare replies: %w", err)
	}
	defer stmt.Close()
	for i, r := range replies {
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode reply %d: %w", i, err)
		}
		k := r.Key()
		if _, err := stmt.ExecContext(ctx, run.ID, i, k.Identifier, k.Mnemonic, k.Period, string(payload)); err != nil {
			return fmt.Errorf("insert reply %d: %w", i, err)
		}
	}

	if ds != nil {
		payload, err := json.Marshal(ds)
		if err != nil {
			return fmt.Errorf("encode dataset: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO datasets (run_id, payload) VALUES (?, ?)`, run.ID, string(payload)); err != nil {
			return fmt.Errorf("insert dataset: %w", err)
		}
	}
	return tx.Commit()
}

// Runs lists runs newest first, optionally filtered by ticker. A
// non-positive limit means no limit.
func (s *Store) Runs(ctx context.Context, ticker string, limit int) ([]Run, error) {
	q := `SELECT id, ticker, years, anchor_year, provider, outcome, requests, replies, created_at FROM runs`
	var args []any
	if ticker != "" {
		q += ` WHERE ticker = ?`
		args = append(args, strings.ToUpper(ticker))
	}
	q += ` ORDER BY created_at DESC, id`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRun returns one run.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, ticker, years, anchor_year, provider, outcome, requests, replies, created_at FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// Replies returns a run's reply rows in arrival order.
func (s *Store) Replies(ctx context.Context, runID string) ([]models.RawReplyRow, error) {
	if _, err := s.GetRun(ctx, runID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM replies WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, fmt.Errorf("query replies: %w", err)
	}
	defer rows.Close()

	var out []models.RawReplyRow
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r models.RawReplyRow
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, fmt.Errorf("decode reply: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Dataset returns the dataset stored with a run.
func (s *Store) Dataset(ctx context.Context, runID string) (*models.FinancialDataset, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM datasets WHERE run_id = ?`, runID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, runID)
	}
	if err != nil {
		return nil, fmt.Errorf("query dataset: %w", err)
	}
	var ds models.FinancialDataset
	if err := json.Unmarshal([]byte(payload), &ds); err != nil {
		return nil, fmt.Errorf("decode dataset: %w", err)
	}
	return &ds, nil
}

// DeleteRun removes a run and everything stored with it.
func (s *Store) DeleteRun(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var outcome, created string
	if err := sc.Scan(&r.ID, &r.Ticker, &r.Years, &r.AnchorYear, &r.Provider, &outcome, &r.Requests, &r.Replies, &created); err != nil {
		return Run{}, err
	}
	r.Outcome = models.Outcome(outcome)
	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return Run{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	r.CreatedAt = t
	return r, nil
}
