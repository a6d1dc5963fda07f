// Package storage defines the persistence interfaces for the registry.
package storage

import (
	"context"
	"errors"

	"github.com/formledger/formledger/internal/registry"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrFormInactive indicates an append against a deactivated form.
	ErrFormInactive = errors.New("form is not active")
)

// AdminStore persists the add-only administrator set.
type AdminStore interface {
	// InsertAdministrator adds a member. Re-adding an existing member is a
	// no-op: added is false and no notification is committed.
	InsertAdministrator(ctx context.Context, admin registry.Administrator) (added bool, note registry.Notification, err error)
	IsAdministrator(ctx context.Context, identity registry.Identity) (bool, error)
	CountAdministrators(ctx context.Context) (uint64, error)
}

// FormStore persists forms with dense sequential identifier allocation.
type FormStore interface {
	// AppendForm allocates the next form id and inserts the form together
	// with its form.created notification in one transaction.
	AppendForm(ctx context.Context, form registry.Form) (registry.Form, registry.Notification, error)
	// DeactivateForm flips the form inactive. changed is false when the form
	// was already inactive; no notification is committed in that case.
	DeactivateForm(ctx context.Context, id uint64, actor registry.Identity) (form registry.Form, changed bool, note registry.Notification, err error)
	GetForm(ctx context.Context, id uint64) (registry.Form, error)
	ListForms(ctx context.Context, afterID uint64, limit int) ([]registry.Form, error)
	CountForms(ctx context.Context) (uint64, error)
}

// ResponseStore persists the append-only per-form response ledger.
type ResponseStore interface {
	// AppendResponse checks form existence and activity inside the commit
	// transaction, assigns the next per-form sequence number, and inserts
	// the response together with its response.submitted notification.
	AppendResponse(ctx context.Context, response registry.Response) (registry.Response, registry.Notification, error)
	ListResponses(ctx context.Context, formID uint64, afterSeq uint64, limit int) ([]registry.Response, error)
	CountResponses(ctx context.Context, formID uint64) (uint64, error)
}

// NotificationStore reads the globally ordered notification log.
type NotificationStore interface {
	ListNotifications(ctx context.Context, afterSeq uint64, limit int) ([]registry.Notification, error)
	LatestNotificationSeq(ctx context.Context) (uint64, error)
}

// Store aggregates every registry persistence concern.
type Store interface {
	AdminStore
	FormStore
	ResponseStore
	NotificationStore
}
