package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/formledger/formledger/internal/registry"
	"github.com/formledger/formledger/internal/registry/storage"
)

// AppendResponse atomically verifies the target form is present and active,
// assigns the next per-form sequence number, inserts the response, and
// appends its response.submitted notification. The activity check happens
// inside the transaction so a concurrent deactivation can never interleave
// with an accepted submission.
func (s *Store) AppendResponse(ctx context.Context, response registry.Response) (registry.Response, registry.Notification, error) {
	if err := ctx.Err(); err != nil {
		return registry.Response{}, registry.Notification{}, err
	}
	if s == nil || s.sqlDB == nil {
		return registry.Response{}, registry.Notification{}, fmt.Errorf("storage is not configured")
	}
	if response.FormID == 0 {
		return registry.Response{}, registry.Notification{}, storage.ErrNotFound
	}
	if strings.TrimSpace(string(response.Respondent)) == "" {
		return registry.Response{}, registry.Notification{}, fmt.Errorf("response respondent is required")
	}
	if strings.TrimSpace(string(response.ContentRef)) == "" {
		return registry.Response{}, registry.Notification{}, fmt.Errorf("response content ref is required")
	}
	if response.SubmittedAt.IsZero() {
		response.SubmittedAt = time.Now().UTC()
	}
	response.SubmittedAt = response.SubmittedAt.UTC().Truncate(time.Millisecond)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return registry.Response{}, registry.Notification{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	form, err := getFormTx(ctx, tx, response.FormID)
	if err != nil {
		return registry.Response{}, registry.Notification{}, err
	}
	if !form.Active {
		return registry.Response{}, registry.Notification{}, storage.ErrFormInactive
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT OR IGNORE INTO response_seq (form_id, next_seq) VALUES (?, 1)",
		int64(response.FormID),
	); err != nil {
		return registry.Response{}, registry.Notification{}, fmt.Errorf("init response seq: %w", err)
	}

	var seq int64
	if err := tx.QueryRowContext(ctx,
		"SELECT next_seq FROM response_seq WHERE form_id = ?",
		int64(response.FormID),
	).Scan(&seq); err != nil {
		return registry.Response{}, registry.Notification{}, fmt.Errorf("get response seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		"UPDATE response_seq SET next_seq = next_seq + 1 WHERE form_id = ?",
		int64(response.FormID),
	); err != nil {
		return registry.Response{}, registry.Notification{}, fmt.Errorf("increment response seq: %w", err)
	}
	response.Seq = uint64(seq)

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO responses (form_id, seq, respondent, content_ref, submitted_at)
		 VALUES (?, ?, ?, ?, ?)`,
		int64(response.FormID),
		int64(response.Seq),
		string(response.Respondent),
		string(response.ContentRef),
		toMillis(response.SubmittedAt),
	); err != nil {
		return registry.Response{}, registry.Notification{}, fmt.Errorf("append response: %w", err)
	}

	note, err := appendNotification(ctx, tx, registry.ResponseSubmittedNotification(response))
	if err != nil {
		return registry.Response{}, registry.Notification{}, err
	}

	if err := tx.Commit(); err != nil {
		return registry.Response{}, registry.Notification{}, fmt.Errorf("commit: %w", err)
	}
	return response, note, nil
}

// ListResponses returns responses for a form in submission order.
func (s *Store) ListResponses(ctx context.Context, formID uint64, afterSeq uint64, limit int) ([]registry.Response, error) {
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
		`SELECT form_id, seq, respondent, content_ref, submitted_at
		 FROM responses WHERE form_id = ? AND seq > ? ORDER BY seq ASC LIMIT ?`,
		int64(formID),
		int64(afterSeq),
		int64(limit),
	)
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()

	var responses []registry.Response
	for rows.Next() {
		var (
			rowFormID   int64
			seq         int64
			respondent  string
			contentRef  string
			submittedAt int64
		)
		if err := rows.Scan(&rowFormID, &seq, &respondent, &contentRef, &submittedAt); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		responses = append(responses, registry.Response{
			FormID:      uint64(rowFormID),
			Seq:         uint64(seq),
			Respondent:  registry.Identity(respondent),
			ContentRef:  registry.Reference(contentRef),
			SubmittedAt: fromMillis(submittedAt),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate responses: %w", err)
	}
	return responses, nil
}

// CountResponses returns the number of responses recorded for a form.
func (s *Store) CountResponses(ctx context.Context, formID uint64) (uint64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}

	var count int64
	if err := s.sqlDB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM responses WHERE form_id = ?",
		int64(formID),
	).Scan(&count); err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return uint64(count), nil
}
