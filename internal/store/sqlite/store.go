// Package sqlite implements store.Store on a single SQLite file.
//
// The schema is managed by embedded migrations. Timestamps are stored as
// fixed-width UTC text so range predicates compare lexically.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	sqlite3 "github.com/mattn/go-sqlite3"

	"github.com/jpalmerr/peek/internal/status"
	"github.com/jpalmerr/peek/internal/store"
)

const timeLayout = "2006-01-02T15:04:05.000000000Z"

const selectColumns = `id, url, interval_seconds, search_pattern, last_state, message,
	next_check_at, config_updated_at, next_notification_at`

// Store is a SQLite-backed [store.Store].
type Store struct {
	db *sql.DB
}

var _ store.Store = (*Store)(nil)

// Open opens (creating if needed) the database at path and migrates it.
func Open(ctx context.Context, path string) (*Store, error) {
	// immediate transactions take the write lock up front so concurrent
	// read-modify-writes serialize instead of failing on upgrade
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (store.CheckRecord, error) {
	var (
		rec                                store.CheckRecord
		state                              int
		nextCheck, configUpdated, nextNote string
	)
	if err := row.Scan(&rec.ID, &rec.URL, &rec.IntervalSeconds, &rec.SearchPattern,
		&state, &rec.Message, &nextCheck, &configUpdated, &nextNote); err != nil {
		return store.CheckRecord{}, err
	}
	rec.LastState = status.Code(state)

	var err error
	if rec.NextCheckAt, err = parseTime(nextCheck); err != nil {
		return store.CheckRecord{}, fmt.Errorf("parse next_check_at: %w", err)
	}
	if rec.ConfigUpdatedAt, err = parseTime(configUpdated); err != nil {
		return store.CheckRecord{}, fmt.Errorf("parse config_updated_at: %w", err)
	}
	if rec.NextNotificationAt, err = parseTime(nextNote); err != nil {
		return store.CheckRecord{}, fmt.Errorf("parse next_notification_at: %w", err)
	}
	return rec, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

// Insert implements [store.Store].
func (s *Store) Insert(ctx context.Context, rec store.CheckRecord) (store.CheckRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO check_records (
		id, url, interval_seconds, search_pattern, last_state, message,
		next_check_at, config_updated_at, next_notification_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.URL, rec.IntervalSeconds, rec.SearchPattern, int(rec.LastState), rec.Message,
		formatTime(rec.NextCheckAt), formatTime(rec.ConfigUpdatedAt), formatTime(rec.NextNotificationAt))
	if err != nil {
		if isUniqueViolation(err) {
			return store.CheckRecord{}, fmt.Errorf("insert %s: %w", rec.URL, store.ErrDuplicateURL)
		}
		return store.CheckRecord{}, fmt.Errorf("insert %s: %w", rec.URL, err)
	}
	return rec, nil
}

// Get implements [store.Store].
func (s *Store) Get(ctx context.Context, id string) (store.CheckRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM check_records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.CheckRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.CheckRecord{}, fmt.Errorf("get %s: %w", id, err)
	}
	return rec, nil
}

// GetByURL implements [store.Store].
func (s *Store) GetByURL(ctx context.Context, url string) (store.CheckRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM check_records WHERE url = ?`, url)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.CheckRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.CheckRecord{}, fmt.Errorf("get %s: %w", url, err)
	}
	return rec, nil
}

// List implements [store.Store]. Records are ordered by URL.
func (s *Store) List(ctx context.Context) ([]store.CheckRecord, error) {
	return s.query(ctx, s.db, `SELECT `+selectColumns+` FROM check_records ORDER BY url`)
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func (s *Store) query(ctx context.Context, q querier, query string, args ...any) ([]store.CheckRecord, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []store.CheckRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// UpdateConfig implements [store.Store].
func (s *Store) UpdateConfig(ctx context.Context, id string, intervalSeconds int, searchPattern string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE check_records
		SET interval_seconds = ?, search_pattern = ?, config_updated_at = ?
		WHERE id = ?`, intervalSeconds, searchPattern, formatTime(at), id)
	if err != nil {
		return fmt.Errorf("update config %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update config %s: %w", id, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

// UpdateState implements [store.Store].
func (s *Store) UpdateState(ctx context.Context, id string, fn func(*store.CheckRecord) error) (store.CheckRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.CheckRecord{}, fmt.Errorf("begin update %s: %w", id, err)
	}
	defer func() { _ = tx.Rollback() }()

	stored, err := scanRecord(tx.QueryRowContext(ctx, `SELECT `+selectColumns+` FROM check_records WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return store.CheckRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.CheckRecord{}, fmt.Errorf("read %s: %w", id, err)
	}

	working := stored
	if err := fn(&working); err != nil {
		return store.CheckRecord{}, err
	}
	store.ApplyState(&stored, working)

	_, err = tx.ExecContext(ctx, `UPDATE check_records
		SET last_state = ?, message = ?, next_check_at = ?, next_notification_at = ?
		WHERE id = ?`,
		int(stored.LastState), stored.Message, formatTime(stored.NextCheckAt), formatTime(stored.NextNotificationAt), id)
	if err != nil {
		return store.CheckRecord{}, fmt.Errorf("write %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return store.CheckRecord{}, fmt.Errorf("commit %s: %w", id, err)
	}
	return stored, nil
}

// DeleteStale implements [store.Store].
func (s *Store) DeleteStale(ctx context.Context, cutoff time.Time) ([]store.CheckRecord, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin delete stale: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	bound := formatTime(cutoff)
	stale, err := s.query(ctx, tx, `SELECT `+selectColumns+` FROM check_records
		WHERE config_updated_at < ? ORDER BY url`, bound)
	if err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM check_records WHERE config_updated_at < ?`, bound); err != nil {
		return nil, fmt.Errorf("delete stale: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit delete stale: %w", err)
	}
	return stale, nil
}

// EnsureURLIndex implements [store.Store].
func (s *Store) EnsureURLIndex(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_check_records_url ON check_records (url)`); err != nil {
		return fmt.Errorf("ensure url index: %w", err)
	}
	return nil
}

// Close implements [store.Store].
func (s *Store) Close() error {
	return s.db.Close()
}
