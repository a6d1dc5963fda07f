package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/formledger/formledger/internal/registry"
	"github.com/formledger/formledger/internal/registry/storage"
)

// AppendForm atomically allocates the next dense form identifier, inserts
// the form, and appends its form.created notification.
func (s *Store) AppendForm(ctx context.Context, form registry.Form) (registry.Form, registry.Notification, error) {
	if err := ctx.Err(); err != nil {
		return registry.Form{}, registry.Notification{}, err
	}
	if s == nil || s.sqlDB == nil {
		return registry.Form{}, registry.Notification{}, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(string(form.Creator)) == "" {
		return registry.Form{}, registry.Notification{}, fmt.Errorf("form creator is required")
	}
	if strings.TrimSpace(string(form.ContentRef)) == "" {
		return registry.Form{}, registry.Notification{}, fmt.Errorf("form content ref is required")
	}
	if form.CreatedAt.IsZero() {
		form.CreatedAt = time.Now().UTC()
	}
	form.CreatedAt = form.CreatedAt.UTC().Truncate(time.Millisecond)
	form.Active = true

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return registry.Form{}, registry.Notification{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO form_seq (id, next_id) VALUES (1, 1)",
	); err != nil {
		return registry.Form{}, registry.Notification{}, fmt.Errorf("init form seq: %w", err)
	}

	var nextID int64
	if err := tx.QueryRowContext(ctx,
		"SELECT next_id FROM form_seq WHERE id = 1",
	).Scan(&nextID); err != nil {
		return registry.Form{}, registry.Notification{}, fmt.Errorf("get form seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE form_seq SET next_id = next_id + 1 WHERE id = 1",
	); err != nil {
		return registry.Form{}, registry.Notification{}, fmt.Errorf("increment form seq: %w", err)
	}
	form.ID = uint64(nextID)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO forms (id, creator, content_ref, active, created_at, deactivated_at)
		 VALUES (?, ?, ?, 1, ?, NULL)`,
		int64(form.ID),
		string(form.Creator),
		string(form.ContentRef),
		toMillis(form.CreatedAt),
	); err != nil {
		return registry.Form{}, registry.Notification{}, fmt.Errorf("append form: %w", err)
	}

	note, err := appendNotification(ctx, tx, registry.FormCreatedNotification(form))
	if err != nil {
		return registry.Form{}, registry.Notification{}, err
	}

	if err := tx.Commit(); err != nil {
		return registry.Form{}, registry.Notification{}, fmt.Errorf("commit: %w", err)
	}
	return form, note, nil
}

// DeactivateForm flips a form inactive inside one transaction. Deactivating
// an already-inactive form commits nothing and reports changed=false.
func (s *Store) DeactivateForm(ctx context.Context, id uint64, actor registry.Identity) (registry.Form, bool, registry.Notification, error) {
	if err := ctx.Err(); err != nil {
		return registry.Form{}, false, registry.Notification{}, err
	}
	if s == nil || s.sqlDB == nil {
		return registry.Form{}, false, registry.Notification{}, fmt.Errorf("storage is not configured")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return registry.Form{}, false, registry.Notification{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	form, err := getFormTx(ctx, tx, id)
	if err != nil {
		return registry.Form{}, false, registry.Notification{}, err
	}
	if !form.Active {
		return form, false, registry.Notification{}, nil
	}

	deactivated, _ := registry.DeactivateForm(form, nil)
	if _, err := tx.ExecContext(ctx,
		"UPDATE forms SET active = 0, deactivated_at = ? WHERE id = ?",
		toMillis(*deactivated.DeactivatedAt),
		int64(id),
	); err != nil {
		return registry.Form{}, false, registry.Notification{}, fmt.Errorf("deactivate form: %w", err)
	}

	note, err := appendNotification(ctx, tx, registry.FormDeactivatedNotification(deactivated, actor))
	if err != nil {
		return registry.Form{}, false, registry.Notification{}, err
	}

	if err := tx.Commit(); err != nil {
		return registry.Form{}, false, registry.Notification{}, fmt.Errorf("commit: %w", err)
	}
	return deactivated, true, note, nil
}

// GetForm returns one form by identifier.
func (s *Store) GetForm(ctx context.Context, id uint64) (registry.Form, error) {
	if err := ctx.Err(); err != nil {
		return registry.Form{}, err
	}
	if s == nil || s.sqlDB == nil {
		return registry.Form{}, fmt.Errorf("storage is not configured")
	}

	row := s.sqlDB.QueryRowContext(ctx,
		"SELECT id, creator, content_ref, active, created_at, deactivated_at FROM forms WHERE id = ?",
		int64(id),
	)
	form, err := scanForm(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registry.Form{}, storage.ErrNotFound
		}
		return registry.Form{}, fmt.Errorf("get form: %w", err)
	}
	return form, nil
}

// ListForms returns forms ordered by identifier ascending.
func (s *Store) ListForms(ctx context.Context, afterID uint64, limit int) ([]registry.Form, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, creator, content_ref, active, created_at, deactivated_at
		 FROM forms WHERE id > ? ORDER BY id ASC LIMIT ?`,
		int64(afterID),
		int64(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	defer rows.Close()

	var forms []registry.Form
	for rows.Next() {
		form, err := scanForm(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan form: %w", err)
		}
		forms = append(forms, form)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forms: %w", err)
	}
	return forms, nil
}

// CountForms returns the total number of forms ever created.
func (s *Store) CountForms(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	// The allocator is authoritative: ids are dense, so next_id-1 equals the
	// row count and stays monotonic.
	var nextID int64
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT next_id FROM form_seq WHERE id = 1",
	).Scan(&nextID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("count forms: %w", err)
	}
	return uint64(nextID - 1), nil
}

func getFormTx(ctx context.Context, tx *sql.Tx, id uint64) (registry.Form, error) {
	row := tx.QueryRowContext(ctx,
		"SELECT id, creator, content_ref, active, created_at, deactivated_at FROM forms WHERE id = ?",
		int64(id),
	)
	form, err := scanForm(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return registry.Form{}, storage.ErrNotFound
		}
		return registry.Form{}, fmt.Errorf("get form: %w", err)
	}
	return form, nil
}

func scanForm(scan func(dest ...any) error) (registry.Form, error) {
	var (
		id            int64
		creator       string
		contentRef    string
		active        int64
		createdAt     int64
		deactivatedAt sql.NullInt64
	)
	if err := scan(&id, &creator, &contentRef, &active, &createdAt, &deactivatedAt); err != nil {
		return registry.Form{}, err
	}
	form := registry.Form{
		ID:         uint64(id),
		Creator:    registry.Identity(creator),
		ContentRef: registry.Reference(contentRef),
		Active:     active != 0,
		CreatedAt:  fromMillis(createdAt),
	}
	if deactivatedAt.Valid {
		value := fromMillis(deactivatedAt.Int64)
		form.DeactivatedAt = &value
	}
	return form, nil
}
