// Package checkpoint keeps optimizer progress in a sqlite file so that a long
// enumeration can be stopped and resumed.
package checkpoint

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/cespare/xxhash"
	_ "modernc.org/sqlite"

	"github.com/domino14/bracketsim/optimizer"
)

type Store struct {
	db *sql.DB
}

// Best is a stored candidate.
type Best struct {
	RunID     int64
	Entry     string
	Position  uint64
	Prob      float64
	Choices   optimizer.Choices
	CreatedAt time.Time
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening checkpoint database: %w", err)
	}
	// one writer; sqlite serializes anyway.
	db.SetMaxOpenConns(1)
	if err := createTables(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func createTables(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry TEXT NOT NULL,
		strategy TEXT NOT NULL,
		space INTEGER NOT NULL,
		position INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		position INTEGER NOT NULL,
		prob REAL NOT NULL,
		choices INTEGER NOT NULL,
		fingerprint INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (run_id, fingerprint)
	);

	CREATE INDEX IF NOT EXISTS idx_runs_entry ON runs(entry, strategy, space);
	`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("creating tables: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func fingerprint(c optimizer.Choices) int64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(c))
	return int64(xxhash.Sum64(b[:]))
}

// StartRun creates a run. space identifies the search space the run's
// positions index into; see optimizer.Enumerator.Space.
func (s *Store) StartRun(entry, strategy string, space uint64) (int64, error) {
	res, err := s.db.Exec(`INSERT INTO runs (entry, strategy, space) VALUES (?, ?, ?)`,
		entry, strategy, int64(space))
	if err != nil {
		return 0, fmt.Errorf("inserting run: %w", err)
	}
	return res.LastInsertId()
}

// LatestRun finds the most recent run for entry and strategy over the same
// search space. ok is false if there is none.
func (s *Store) LatestRun(entry, strategy string, space uint64) (id int64, ok bool, err error) {
	row := s.db.QueryRow(`SELECT id FROM runs WHERE entry = ? AND strategy = ? AND space = ?
		ORDER BY id DESC LIMIT 1`, entry, strategy, int64(space))
	err = row.Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("scanning run: %w", err)
	}
	return id, true, nil
}

// Record stores a candidate. A candidate already stored for the run is
// ignored.
func (s *Store) Record(runID int64, c optimizer.Candidate) error {
	_, err := s.db.Exec(`INSERT OR IGNORE INTO bests (run_id, position, prob, choices, fingerprint)
		VALUES (?, ?, ?, ?, ?)`, runID, int64(c.Position), c.Prob, int64(c.Choices), fingerprint(c.Choices))
	if err != nil {
		return fmt.Errorf("inserting best: %w", err)
	}
	return nil
}

func (s *Store) SetPosition(runID int64, position uint64) error {
	res, err := s.db.Exec(`UPDATE runs SET position = ? WHERE id = ?`, int64(position), runID)
	if err != nil {
		return fmt.Errorf("updating position: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("no run with id %d", runID)
	}
	return nil
}

func (s *Store) LastPosition(runID int64) (uint64, error) {
	var pos int64
	err := s.db.QueryRow(`SELECT position FROM runs WHERE id = ?`, runID).Scan(&pos)
	if err != nil {
		return 0, fmt.Errorf("scanning position: %w", err)
	}
	return uint64(pos), nil
}

// Best returns the highest-probability candidate stored for a run, or nil if
// there is none.
func (s *Store) Best(runID int64) (*Best, error) {
	row := s.db.QueryRow(`
		SELECT b.run_id, r.entry, b.position, b.prob, b.choices, b.created_at
		FROM bests b JOIN runs r ON r.id = b.run_id
		WHERE b.run_id = ?
		ORDER BY b.prob DESC, b.id ASC LIMIT 1`, runID)
	var b Best
	var pos, choices int64
	err := row.Scan(&b.RunID, &b.Entry, &pos, &b.Prob, &choices, &b.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scanning best: %w", err)
	}
	b.Position = uint64(pos)
	b.Choices = optimizer.Choices(choices)
	return &b, nil
}

// RunSink records an enumeration into the store.
type RunSink struct {
	Store *Store
	RunID int64
}

func (r *RunSink) Best(ctx context.Context, c optimizer.Candidate) error {
	return r.Store.Record(r.RunID, c)
}

func (r *RunSink) Progress(ctx context.Context, position uint64) error {
	return r.Store.SetPosition(r.RunID, position)
}
