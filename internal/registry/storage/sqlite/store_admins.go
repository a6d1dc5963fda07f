package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/formledger/formledger/internal/registry"
)

// InsertAdministrator adds a member to the admin set. Membership is add-only
// and idempotent: re-adding an existing member commits nothing.
func (s *Store) InsertAdministrator(ctx context.Context, admin registry.Administrator) (bool, registry.Notification, error) {
	if err := ctx.Err(); err != nil {
		return false, registry.Notification{}, err
	}
	if s == nil || s.sqlDB == nil {
		return false, registry.Notification{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(string(admin.Identity)) == "" {
		return false, registry.Notification{}, fmt.Errorf("administrator identity is required")
	}
	if admin.AddedAt.IsZero() {
		return false, registry.Notification{}, fmt.Errorf("administrator added_at is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return false, registry.Notification{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO administrators (identity, added_by, added_at) VALUES (?, ?, ?)",
		string(admin.Identity),
		string(admin.AddedBy),
		toMillis(admin.AddedAt),
	)
	if err != nil {
		return false, registry.Notification{}, fmt.Errorf("insert administrator: %w", err)
	}
	inserted, err := result.RowsAffected()
	if err != nil {
		return false, registry.Notification{}, fmt.Errorf("rows affected: %w", err)
	}
	if inserted == 0 {
		// Already a member: nothing to commit, nothing to notify.
		return false, registry.Notification{}, nil
	}

	note, err := appendNotification(ctx, tx, registry.AdministratorAddedNotification(admin))
	if err != nil {
		return false, registry.Notification{}, err
	}

	if err := tx.Commit(); err != nil {
		return false, registry.Notification{}, fmt.Errorf("commit: %w", err)
	}
	return true, note, nil
}

// IsAdministrator reports membership in the admin set.
func (s *Store) IsAdministrator(ctx context.Context, identity registry.Identity) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if s == nil || s.sqlDB == nil {
		return false, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(string(identity)) == "" {
		return false, nil
	}

	var found int
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT 1 FROM administrators WHERE identity = ?",
		string(identity),
	).Scan(&found)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("query administrator: %w", err)
	}
	return true, nil
}

// CountAdministrators returns the size of the admin set.
func (s *Store) CountAdministrators(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int64
	if err := s.sqlDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM administrators",
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count administrators: %w", err)
	}
	return uint64(count), nil
}
