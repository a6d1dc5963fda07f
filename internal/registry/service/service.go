// Package service implements the registry operations on top of a storage
// backend. It enforces access control for administrative mutations, maps
// storage sentinels to the registry error taxonomy, and fans committed
// notifications out to live watchers.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/formledger/formledger/internal/pubsub"
	"github.com/formledger/formledger/internal/registry"
	"github.com/formledger/formledger/internal/registry/storage"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// Service coordinates registry operations against a storage backend.
type Service struct {
	store  storage.Store
	broker *pubsub.Broker[registry.Notification]
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the service clock. Used by tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a registry service backed by the given store.
func New(store storage.Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		broker: pubsub.NewBroker[registry.Notification](),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close shuts down the notification fan-out. The store is owned by the
// caller and is not closed here.
func (s *Service) Close() {
	s.broker.Close()
}

// Bootstrap seeds the admin set with identity when the set is empty.
// A non-empty set is left untouched so restarts cannot widen access.
func (s *Service) Bootstrap(ctx context.Context, identity registry.Identity) error {
	normalized, err := registry.NormalizeIdentity(string(identity))
	if err != nil {
		return err
	}
	count, err := s.store.CountAdministrators(ctx)
	if err != nil {
		return fmt.Errorf("count administrators: %w", err)
	}
	if count > 0 {
		return nil
	}
	admin, err := registry.NewAdministrator(normalized, normalized, s.now)
	if err != nil {
		return err
	}
	added, note, err := s.store.InsertAdministrator(ctx, admin)
	if err != nil {
		return fmt.Errorf("insert administrator: %w", err)
	}
	if added {
		s.broker.Publish(note)
	}
	return nil
}

// IsAdministrator reports membership in the admin set.
func (s *Service) IsAdministrator(ctx context.Context, identity registry.Identity) (bool, error) {
	normalized, err := registry.NormalizeIdentity(string(identity))
	if err != nil {
		return false, err
	}
	return s.store.IsAdministrator(ctx, normalized)
}

// AddAdministrator grants admin membership to identity. Only existing
// administrators may grant; re-granting an existing member is a no-op that
// emits no notification and reports added=false.
func (s *Service) AddAdministrator(ctx context.Context, caller, identity registry.Identity) (bool, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return false, err
	}
	admin, err := registry.NewAdministrator(identity, caller, s.now)
	if err != nil {
		return false, err
	}
	added, note, err := s.store.InsertAdministrator(ctx, admin)
	if err != nil {
		return false, fmt.Errorf("insert administrator: %w", err)
	}
	if added {
		s.broker.Publish(note)
	}
	return added, nil
}

// CreateForm registers a new form for caller. Caller must be an
// administrator.
func (s *Service) CreateForm(ctx context.Context, caller registry.Identity, contentRef registry.Reference) (registry.Form, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return registry.Form{}, err
	}
	form, err := registry.NewForm(registry.CreateFormInput{
		Creator:    caller,
		ContentRef: contentRef,
	}, s.now)
	if err != nil {
		return registry.Form{}, err
	}
	form, note, err := s.store.AppendForm(ctx, form)
	if err != nil {
		return registry.Form{}, fmt.Errorf("append form: %w", err)
	}
	s.broker.Publish(note)
	return form, nil
}

// DeactivateForm turns off response acceptance for a form. The transition
// is one-way; repeating it is a no-op without a notification.
func (s *Service) DeactivateForm(ctx context.Context, caller registry.Identity, formID uint64) (registry.Form, error) {
	if err := s.requireAdmin(ctx, caller); err != nil {
		return registry.Form{}, err
	}
	form, changed, note, err := s.store.DeactivateForm(ctx, formID, caller)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return registry.Form{}, registry.ErrFormNotFound
		}
		return registry.Form{}, fmt.Errorf("deactivate form: %w", err)
	}
	if changed {
		s.broker.Publish(note)
	}
	return form, nil
}

// GetForm returns one form by identifier.
func (s *Service) GetForm(ctx context.Context, formID uint64) (registry.Form, error) {
	form, err := s.store.GetForm(ctx, formID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return registry.Form{}, registry.ErrFormNotFound
		}
		return registry.Form{}, fmt.Errorf("get form: %w", err)
	}
	return form, nil
}

// ListForms returns forms ordered by identifier, starting after afterID.
func (s *Service) ListForms(ctx context.Context, afterID uint64, limit int) ([]registry.Form, error) {
	forms, err := s.store.ListForms(ctx, afterID, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list forms: %w", err)
	}
	return forms, nil
}

// FormCount returns the total number of forms ever created.
func (s *Service) FormCount(ctx context.Context) (uint64, error) {
	count, err := s.store.CountForms(ctx)
	if err != nil {
		return 0, fmt.Errorf("count forms: %w", err)
	}
	return count, nil
}

// SubmitResponse appends a response to a form. Participation is open to any
// authenticated identity; the form must exist and be active.
func (s *Service) SubmitResponse(ctx context.Context, respondent registry.Identity, formID uint64, contentRef registry.Reference) (registry.Response, error) {
	response, err := registry.NewResponse(registry.SubmitResponseInput{
		FormID:     formID,
		Respondent: respondent,
		ContentRef: contentRef,
	}, s.now)
	if err != nil {
		return registry.Response{}, err
	}
	response, note, err := s.store.AppendResponse(ctx, response)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return registry.Response{}, registry.ErrFormNotFound
		case errors.Is(err, storage.ErrFormInactive):
			return registry.Response{}, registry.ErrFormInactive
		}
		return registry.Response{}, fmt.Errorf("append response: %w", err)
	}
	s.broker.Publish(note)
	return response, nil
}

// ListFormResponses returns a form's responses in submission order.
// The form must exist; an empty ledger returns an empty slice.
func (s *Service) ListFormResponses(ctx context.Context, formID uint64, afterSeq uint64, limit int) ([]registry.Response, error) {
	if _, err := s.GetForm(ctx, formID); err != nil {
		return nil, err
	}
	responses, err := s.store.ListResponses(ctx, formID, afterSeq, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return responses, nil
}

// FormResponseCount returns the number of responses recorded for a form.
func (s *Service) FormResponseCount(ctx context.Context, formID uint64) (uint64, error) {
	if _, err := s.GetForm(ctx, formID); err != nil {
		return 0, err
	}
	count, err := s.store.CountResponses(ctx, formID)
	if err != nil {
		return 0, fmt.Errorf("count responses: %w", err)
	}
	return count, nil
}

// Notifications returns the committed notification log in sequence order.
func (s *Service) Notifications(ctx context.Context, afterSeq uint64, limit int) ([]registry.Notification, error) {
	notes, err := s.store.ListNotifications(ctx, afterSeq, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notes, nil
}

// LatestNotificationSeq returns the highest committed sequence number.
func (s *Service) LatestNotificationSeq(ctx context.Context) (uint64, error) {
	seq, err := s.store.LatestNotificationSeq(ctx)
	if err != nil {
		return 0, fmt.Errorf("latest notification seq: %w", err)
	}
	return seq, nil
}

// Watch subscribes to notifications committed after the call. Delivery is
// best effort; use Notifications to replay from the durable log.
func (s *Service) Watch(ctx context.Context) <-chan registry.Notification {
	return s.broker.Subscribe(ctx)
}

func (s *Service) requireAdmin(ctx context.Context, caller registry.Identity) error {
	normalized, err := registry.NormalizeIdentity(string(caller))
	if err != nil {
		return err
	}
	ok, err := s.store.IsAdministrator(ctx, normalized)
	if err != nil {
		return fmt.Errorf("check administrator: %w", err)
	}
	if !ok {
		return registry.ErrUnauthorized
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
