package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/formledger/formledger/internal/registry"
)

// ListNotifications returns committed notifications in sequence order.
func (s *Store) ListNotifications(ctx context.Context, afterSeq uint64, limit int) ([]registry.Notification, error) {
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
		`SELECT seq, kind, form_id, actor, content_ref, timestamp
		 FROM notifications WHERE seq > ? ORDER BY seq ASC LIMIT ?`,
		int64(afterSeq),
		int64(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var notes []registry.Notification
	for rows.Next() {
		var (
			seq        int64
			kind       string
			formID     int64
			actor      string
			contentRef string
			timestamp  int64
		)
		if err := rows.Scan(&seq, &kind, &formID, &actor, &contentRef, &timestamp); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		notes = append(notes, registry.Notification{
			Seq:        uint64(seq),
			Kind:       registry.Kind(kind),
			FormID:     uint64(formID),
			Actor:      registry.Identity(actor),
			ContentRef: registry.Reference(contentRef),
			Timestamp:  fromMillis(timestamp),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return notes, nil
}

// LatestNotificationSeq returns the highest committed notification sequence
// number, or zero when no notification exists yet.
func (s *Store) LatestNotificationSeq(ctx context.Context) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var seq int64
	err := s.sqlDB.QueryRowContext(ctx,
		"SELECT seq FROM notifications ORDER BY seq DESC LIMIT 1",
	).Scan(&seq)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("latest notification seq: %w", err)
	}
	return uint64(seq), nil
}
