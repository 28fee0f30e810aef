package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteRunStore implements RunStore on a SQLite database file.
type SQLiteRunStore struct {
	mu     sync.Mutex
	db     *sql.DB
	dbPath string
}

// NewSQLiteRunStore opens (or creates) the database at dbPath.
func NewSQLiteRunStore(ctx context.Context, dbPath string) (*SQLiteRunStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0700); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite works best with single writer

	if err := InitSchema(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return &SQLiteRunStore{db: db, dbPath: dbPath}, nil
}

// Path returns the database file.
func (s *SQLiteRunStore) Path() string {
	return s.dbPath
}

// CreateRun stores a new run.
func (s *SQLiteRunStore) CreateRun(ctx context.Context, run Run) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run = prepareRun(run)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, created_at, isolation, admission, population, seed, params)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.CreatedAt.Format(timeLayout), run.Isolation, run.Admission,
		run.Population, strconv.FormatUint(run.Seed, 10), nullBytes(run.Params))
	if err != nil {
		return Run{}, fmt.Errorf("failed to insert run: %w", err)
	}
	return run, nil
}

// AppendDay records the next day of a run and updates the run's summary
// in the same transaction.
func (s *SQLiteRunStore) AppendDay(ctx context.Context, runID string, day Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, err := json.Marshal(day.Events)
	if err != nil {
		return fmt.Errorf("failed to marshal events: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var lastDay int
	err = tx.QueryRowContext(ctx, `SELECT last_day FROM runs WHERE id = ?`, runID).Scan(&lastDay)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return fmt.Errorf("failed to read run: %w", err)
	}
	if day.Day <= lastDay {
		return fmt.Errorf("%w: day %d after day %d", ErrDayOutOfOrder, day.Day, lastDay)
	}

	c := day.Counters
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO days (run_id, day, healthy, infected, recovered, dead, occupied, events)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, day.Day, c.Healthy, c.Infected, c.Recovered, c.Dead, day.Occupied, string(events)); err != nil {
		return fmt.Errorf("failed to insert day: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE runs SET last_day = ?, healthy = ?, infected = ?, recovered = ?, dead = ?
		WHERE id = ?
	`, day.Day, c.Healthy, c.Infected, c.Recovered, c.Dead, runID); err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return tx.Commit()
}

// timeLayout has a fixed width so created_at sorts as text.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

const runColumns = `id, created_at, isolation, admission, population, seed, params,
	last_day, healthy, infected, recovered, dead`

// GetRun returns the run matching id or a unique id prefix.
func (s *SQLiteRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	pattern := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(id) + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' LIMIT 3`, id, pattern)
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	runs, err := scanRuns(rows)
	if err != nil {
		return nil, err
	}

	ids := make([]string, len(runs))
	for i, r := range runs {
		ids[i] = r.ID
	}
	match, err := matchPrefix(id, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", err, id)
	}
	for i := range runs {
		if runs[i].ID == match {
			return &runs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
}

// Days returns a run's trajectory in day order.
func (s *SQLiteRunStore) Days(ctx context.Context, runID string) ([]Day, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE id = ?`, runID).Scan(&exists); err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	if exists == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT day, healthy, infected, recovered, dead, occupied, events
		FROM days WHERE run_id = ? ORDER BY day
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query days: %w", err)
	}
	defer rows.Close()

	var days []Day
	for rows.Next() {
		var d Day
		var events sql.NullString
		if err := rows.Scan(&d.Day, &d.Counters.Healthy, &d.Counters.Infected,
			&d.Counters.Recovered, &d.Counters.Dead, &d.Occupied, &events); err != nil {
			return nil, fmt.Errorf("failed to scan day: %w", err)
		}
		if events.Valid && events.String != "" {
			if err := json.Unmarshal([]byte(events.String), &d.Events); err != nil {
				return nil, fmt.Errorf("failed to decode events of day %d: %w", d.Day, err)
			}
		}
		days = append(days, d)
	}
	return days, rows.Err()
}

// Runs lists runs newest first.
func (s *SQLiteRunStore) Runs(ctx context.Context, limit int) ([]Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	return scanRuns(rows)
}

// DeleteRun removes a run; its days cascade.
func (s *SQLiteRunStore) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, runID)
	if err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// Close closes the database.
func (s *SQLiteRunStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

func scanRuns(rows *sql.Rows) ([]Run, error) {
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var createdAt, seed string
		var params sql.NullString
		if err := rows.Scan(&r.ID, &createdAt, &r.Isolation, &r.Admission, &r.Population,
			&seed, &params, &r.LastDay, &r.Final.Healthy, &r.Final.Infected,
			&r.Final.Recovered, &r.Final.Dead); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("run %s: bad created_at %q: %w", r.ID, createdAt, err)
		}
		r.CreatedAt = t
		if r.Seed, err = strconv.ParseUint(seed, 10, 64); err != nil {
			return nil, fmt.Errorf("run %s: bad seed %q: %w", r.ID, seed, err)
		}
		if params.Valid && params.String != "" {
			r.Params = json.RawMessage(params.String)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

func nullBytes(b []byte) sql.NullString {
	if len(b) == 0 {
		return sql.NullString{}
	}
	return sql.NullString{String: string(b), Valid: true}
}
