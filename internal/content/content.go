// Package content provides the content-addressable document store the
// registry points into. The registry keeps only references; the documents
// themselves (form definitions, answer sets) live in a store implementing
// this package's interface.
package content

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	apperrors "github.com/formledger/formledger/internal/platform/errors"
	"github.com/formledger/formledger/internal/registry"
)

var (
	// ErrNotFound indicates no document exists for the reference.
	ErrNotFound = apperrors.New(apperrors.CodeNotFound, "document not found")
	// ErrUnavailable indicates the store cannot be reached.
	ErrUnavailable = apperrors.New(apperrors.CodeStoreUnavailable, "content store is unavailable")
)

// Store persists documents addressed by their content.
type Store interface {
	// Put stores a document and returns its content-derived reference.
	// Storing the same bytes twice returns the same reference.
	Put(ctx context.Context, data []byte) (registry.Reference, error)
	// Get retrieves the document for a reference.
	Get(ctx context.Context, ref registry.Reference) ([]byte, error)
}

// Ref computes the content-derived reference for a document.
func Ref(data []byte) registry.Reference {
	sum := sha256.Sum256(data)
	return registry.Reference("sha256:" + hex.EncodeToString(sum[:]))
}

// ParseRef validates a reference's shape and returns its hex digest.
func ParseRef(ref registry.Reference) (string, error) {
	value := strings.TrimSpace(string(ref))
	digest, found := strings.CutPrefix(value, "sha256:")
	if !found || len(digest) != sha256.Size*2 {
		return "", registry.ErrInvalidReference
	}
	if _, err := hex.DecodeString(digest); err != nil {
		return "", registry.ErrInvalidReference
	}
	return digest, nil
}
