package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/nerrad567/gray-logic-evedoor/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-evedoor/migrations"
)

const (
	defaultEntryLimit = 50
	maxEntryLimit     = 200

	// historyDir is the subdirectory of the host directory holding history databases.
	historyDir = "history"
)

// StoreConfig locates and tunes a SQLite history store.
type StoreConfig struct {
	// Dir is the host-provided directory the store is rooted at.
	Dir string

	// Name is the device's storage key; it becomes the database file name.
	Name string

	WALMode     bool
	BusyTimeout int
}

// SQLiteStore implements Store on a SQLite database.
type SQLiteStore struct {
	db     *database.DB
	closed atomic.Bool
}

// OpenSQLiteStore opens (creating if needed) the history database for a
// device under cfg.Dir and applies the embedded schema.
//
// Parameters:
//   - ctx: Context for connection and migration
//   - cfg: Location and SQLite tuning
//
// Returns:
//   - *SQLiteStore: Store ready for use; caller must Close it
//   - error: If the database cannot be opened or migrated
func OpenSQLiteStore(ctx context.Context, cfg StoreConfig) (*SQLiteStore, error) {
	path := filepath.Join(cfg.Dir, historyDir, storeFileName(cfg.Name))

	db, err := database.Open(ctx, database.Config{
		Path:        path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}

	if err := db.Migrate(ctx, migrations.Source); err != nil {
		db.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("migrating history database: %w", err)
	}

	return NewSQLiteStore(db), nil
}

// NewSQLiteStore wraps an already migrated database.
func NewSQLiteStore(db *database.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// storeFileName turns a storage key such as "Eve door" into "eve_door.db".
func storeFileName(name string) string {
	clean := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return unicode.ToLower(r)
		}
		return '_'
	}, strings.TrimSpace(name))
	if clean == "" {
		clean = "device"
	}
	return clean + ".db"
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.db.Path()
}

// AppendEntry inserts one contact sample.
func (s *SQLiteStore) AppendEntry(ctx context.Context, deviceID string, entry Entry) error {
	if err := s.check(deviceID); err != nil {
		return err
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO history_entries (device_id, recorded_at, contact) VALUES (?, ?, ?)",
		deviceID,
		entry.Time,
		entry.Contact,
	)
	if err != nil {
		return fmt.Errorf("inserting history entry: %w", err)
	}
	return nil
}

// SaveSummary upserts the device's summary row.
func (s *SQLiteStore) SaveSummary(ctx context.Context, deviceID string, summary Summary) error {
	if err := s.check(deviceID); err != nil {
		return err
	}

	var lastEvent sql.NullInt64
	if summary.LastEvent != 0 {
		lastEvent = sql.NullInt64{Int64: summary.LastEvent, Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO history_summary (device_id, times_opened, last_event, updated_at)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(device_id) DO UPDATE SET
		     times_opened = excluded.times_opened,
		     last_event   = excluded.last_event,
		     updated_at   = excluded.updated_at`,
		deviceID,
		summary.TimesOpened,
		lastEvent,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("saving history summary: %w", err)
	}
	return nil
}

// LoadSummary returns the device's summary, or ErrNotFound.
func (s *SQLiteStore) LoadSummary(ctx context.Context, deviceID string) (Summary, error) {
	if err := s.check(deviceID); err != nil {
		return Summary{}, err
	}

	var summary Summary
	var lastEvent sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		"SELECT times_opened, last_event FROM history_summary WHERE device_id = ?",
		deviceID,
	).Scan(&summary.TimesOpened, &lastEvent)
	if errors.Is(err, sql.ErrNoRows) {
		return Summary{}, ErrNotFound
	}
	if err != nil {
		return Summary{}, fmt.Errorf("loading history summary: %w", err)
	}
	if lastEvent.Valid {
		summary.LastEvent = lastEvent.Int64
	}
	return summary, nil
}

// RecentEntries returns entries newest first (default 50, max 200).
func (s *SQLiteStore) RecentEntries(ctx context.Context, deviceID string, limit int) ([]Entry, error) {
	if err := s.check(deviceID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultEntryLimit
	}
	if limit > maxEntryLimit {
		limit = maxEntryLimit
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT recorded_at, contact
		 FROM history_entries
		 WHERE device_id = ?
		 ORDER BY recorded_at DESC, id DESC
		 LIMIT ?`,
		deviceID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying history entries: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, limit)
	for rows.Next() {
		var e Entry
		if err := rows.Scan(&e.Time, &e.Contact); err != nil {
			return nil, fmt.Errorf("scanning history entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating history entries: %w", err)
	}

	return entries, nil
}

// PruneEntries deletes entries recorded before now-olderThan.
//
// Returns:
//   - int64: Number of rows deleted
//   - error: nil on success, otherwise the underlying database error
func (s *SQLiteStore) PruneEntries(ctx context.Context, olderThan time.Duration) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if olderThan <= 0 {
		return 0, fmt.Errorf("olderThan must be positive")
	}

	cutoff := time.Now().Add(-olderThan).Unix()
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM history_entries WHERE recorded_at < ?",
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting history entries: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("checking rows affected: %w", err)
	}
	return n, nil
}

// Close closes the database. Later calls return ErrClosed.
func (s *SQLiteStore) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	return s.db.Close()
}

func (s *SQLiteStore) check(deviceID string) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if deviceID == "" {
		return ErrInvalidDeviceID
	}
	return nil
}
