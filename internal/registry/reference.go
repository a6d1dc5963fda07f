package registry

import (
	"strings"

	apperrors "github.com/formledger/formledger/internal/platform/errors"
)

// Reference is an opaque content-derived token identifying a document in the
// external content-addressable store. The registry never interprets its
// internal structure; it only stores and returns it verbatim.
type Reference string

// ErrInvalidReference indicates an empty or malformed content reference.
var ErrInvalidReference = apperrors.New(apperrors.CodeInvalidReference, "content reference is required")

// NormalizeReference trims and validates a content reference.
func NormalizeReference(value string) (Reference, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ErrInvalidReference
	}
	return Reference(value), nil
}
