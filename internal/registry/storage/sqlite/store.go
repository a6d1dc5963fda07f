// Package sqlite provides a SQLite-backed registry storage implementation.
//
// Every mutating method is one serialized transaction: identifier
// allocation, the row insert or update, and the notification append commit
// together or not at all. Readers observe only committed state.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	sqlitemigrate "github.com/formledger/formledger/internal/platform/storage/sqlitemigrate"
	"github.com/formledger/formledger/internal/registry"
	"github.com/formledger/formledger/internal/registry/storage"
	"github.com/formledger/formledger/internal/registry/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

// Store persists registry state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite registry store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := sqlitemigrate.ApplyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// appendNotification assigns the next global sequence number and inserts the
// notification within the caller's transaction.
func appendNotification(ctx context.Context, tx *sql.Tx, note registry.Notification) (registry.Notification, error) {
	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO notification_seq (id, next_seq) VALUES (1, 1)",
	); err != nil {
		return registry.Notification{}, fmt.Errorf("init notification seq: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT next_seq FROM notification_seq WHERE id = 1",
	).Scan(&seq); err != nil {
		return registry.Notification{}, fmt.Errorf("get notification seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE notification_seq SET next_seq = next_seq + 1 WHERE id = 1",
	); err != nil {
		return registry.Notification{}, fmt.Errorf("increment notification seq: %w", err)
	}

	note.Seq = uint64(seq)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO notifications (seq, kind, form_id, actor, content_ref, timestamp)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		int64(note.Seq),
		string(note.Kind),
		int64(note.FormID),
		string(note.Actor),
		string(note.ContentRef),
		toMillis(note.Timestamp),
	); err != nil {
		return registry.Notification{}, fmt.Errorf("append notification: %w", err)
	}
	return note, nil
}

var _ storage.Store = (*Store)(nil)
