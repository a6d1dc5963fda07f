package content

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/formledger/formledger/internal/platform/errors"
	"github.com/formledger/formledger/internal/registry"
)

const defaultHTTPTimeout = 30 * time.Second

// HTTPStore talks to a remote content store over HTTP.
//
// The remote contract is small: POST /documents stores a body and returns
// its reference, GET /documents/{ref} returns the body, GET /healthz
// reports availability. Responses are verified against the locally
// computed reference so a misbehaving remote cannot smuggle content
// behind a reference it does not match.
type HTTPStore struct {
	baseURL string
	client  *http.Client
}

// NewHTTPStore creates a remote content store client.
func NewHTTPStore(baseURL string, client *http.Client) (*HTTPStore, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("content store base URL is required")
	}
	if client == nil {
		client = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &HTTPStore{baseURL: baseURL, client: client}, nil
}

// Put stores a document remotely and returns its verified reference.
func (s *HTTPStore) Put(ctx context.Context, data []byte) (registry.Reference, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/documents", bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("build put request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", apperrors.Wrap(apperrors.CodeStoreUnavailable, "content store is unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", storeStatusError(resp.StatusCode)
	}
	var body struct {
		Ref string `json:"ref"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", apperrors.Wrap(apperrors.CodeStoreUnavailable, "content store returned a malformed response", err)
	}
	ref := registry.Reference(body.Ref)
	if ref != Ref(data) {
		return "", apperrors.WithMetadata(
			apperrors.CodeInvalidReference,
			"content store returned a mismatched reference",
			map[string]string{"Ref": body.Ref},
		)
	}
	return ref, nil
}

// Get retrieves a document by reference and verifies its content.
func (s *HTTPStore) Get(ctx context.Context, ref registry.Reference) ([]byte, error) {
	if _, err := ParseRef(ref); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/documents/"+string(ref), nil)
	if err != nil {
		return nil, fmt.Errorf("build get request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "content store is unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, storeStatusError(resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "read content store response", err)
	}
	if Ref(data) != ref {
		return nil, apperrors.WithMetadata(
			apperrors.CodeInvalidReference,
			"document does not match its reference",
			map[string]string{"Ref": string(ref)},
		)
	}
	return data, nil
}

// Health checks whether the remote content store is reachable.
func (s *HTTPStore) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("build health request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreUnavailable, "content store is unreachable", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return storeStatusError(resp.StatusCode)
	}
	return nil
}

func storeStatusError(status int) error {
	return apperrors.WithMetadata(
		apperrors.CodeStoreUnavailable,
		"content store request failed",
		map[string]string{"Status": fmt.Sprintf("%d", status)},
	)
}

var _ Store = (*HTTPStore)(nil)
