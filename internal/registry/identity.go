package registry

import (
	"strings"
	"time"

	apperrors "github.com/formledger/formledger/internal/platform/errors"
)

// Identity is an opaque, already-verified caller identity.
// Verification of "who is calling" happens at the transport boundary; the
// registry only stores and compares identities.
type Identity string

var (
	// ErrIdentityEmpty indicates a missing caller or member identity.
	ErrIdentityEmpty = apperrors.New(apperrors.CodeIdentityEmpty, "identity is required")
	// ErrUnauthorized indicates the caller lacks administrator rights.
	ErrUnauthorized = apperrors.New(apperrors.CodeUnauthorized, "caller is not an administrator")
)

// NormalizeIdentity trims and validates an identity value.
func NormalizeIdentity(value string) (Identity, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrIdentityEmpty
	}
	return Identity(value), nil
}

// Administrator records one member of the admin set.
// Membership is add-only: there is no removal operation.
type Administrator struct {
	Identity Identity
	// AddedBy is the administrator that granted membership. The bootstrap
	// administrator is recorded as added by itself.
	AddedBy Identity
	AddedAt time.Time
}

// NewAdministrator validates a membership grant.
func NewAdministrator(identity, addedBy Identity, now func() time.Time) (Administrator, error) {
	if now == nil {
		now = time.Now
	}
	if strings.TrimSpace(string(identity)) == "" {
		return Administrator{}, ErrIdentityEmpty
	}
	if strings.TrimSpace(string(addedBy)) == "" {
		return Administrator{}, ErrIdentityEmpty
	}
	return Administrator{
		Identity: identity,
		AddedBy:  addedBy,
		AddedAt:  now().UTC(),
	}, nil
}
