package registry

import (
	"time"

	apperrors "github.com/formledger/formledger/internal/platform/errors"
)

var (
	// ErrFormNotFound indicates a form identifier outside the allocated range.
	ErrFormNotFound = apperrors.New(apperrors.CodeNotFound, "form not found")
	// ErrFormInactive indicates a submission against a deactivated form.
	ErrFormInactive = apperrors.New(apperrors.CodeFormInactive, "form is not active")
	// ErrInvalidFormID indicates a non-positive form identifier.
	ErrInvalidFormID = apperrors.New(apperrors.CodeInvalidFormID, "form id must be a positive integer")
)

// Form represents one published questionnaire in the registry.
// Forms are permanent: once created they are never deleted, only their
// acceptance of new responses can be turned off.
type Form struct {
	// ID is the dense sequential identifier (starts at 1).
	// Assigned by storage on append.
	ID uint64
	// Creator is the administrator that created the form (immutable).
	Creator Identity
	// ContentRef points at the form definition document (immutable).
	ContentRef Reference
	// Active reports whether the form accepts new responses.
	Active bool
	// CreatedAt is the timestamp when the form was created.
	CreatedAt time.Time
	// DeactivatedAt is set when the form stops accepting responses.
	DeactivatedAt *time.Time
}

// CreateFormInput describes the data needed to create a form.
type CreateFormInput struct {
	Creator    Identity
	ContentRef Reference
}

// NewForm validates input and builds a form pending identifier allocation.
func NewForm(input CreateFormInput, now func() time.Time) (Form, error) {
	if now == nil {
		now = time.Now
	}
	creator, err := NormalizeIdentity(string(input.Creator))
	if err != nil {
		return Form{}, err
	}
	ref, err := NormalizeReference(string(input.ContentRef))
	if err != nil {
		return Form{}, err
	}
	return Form{
		Creator:    creator,
		ContentRef: ref,
		Active:     true,
		CreatedAt:  now().UTC(),
	}, nil
}

// DeactivateForm turns off response acceptance. The transition is one-way:
// there is no path back to active. Deactivating an inactive form is a no-op.
func DeactivateForm(form Form, now func() time.Time) (Form, bool) {
	if !form.Active {
		return form, false
	}
	if now == nil {
		now = time.Now
	}
	deactivatedAt := now().UTC()
	form.Active = false
	form.DeactivatedAt = &deactivatedAt
	return form, true
}
