// Package client is the Go facade for the registry HTTP API. It pairs the
// registry (which stores references) with a content store (which stores
// documents), so callers work with whole documents and never handle
// references directly.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/formledger/formledger/internal/content"
	apperrors "github.com/formledger/formledger/internal/platform/errors"
	"github.com/formledger/formledger/internal/registry"
)

const defaultTimeout = 30 * time.Second

// Client talks to a registry server and its content store.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	docs    content.Store
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer identity token used for mutations.
func WithToken(token string) Option {
	return func(c *Client) { c.token = strings.TrimSpace(token) }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.http = httpClient
		}
	}
}

// New creates a registry client. The content store holds the documents the
// registry's references point at.
func New(baseURL string, docs content.Store, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("registry base URL is required")
	}
	if docs == nil {
		return nil, fmt.Errorf("content store is required")
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		docs:    docs,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Form is a registry form together with its resolved definition document.
type Form struct {
	ID            uint64
	Creator       string
	ContentRef    registry.Reference
	Active        bool
	CreatedAt     time.Time
	DeactivatedAt *time.Time
	Document      []byte
}

// Response is a recorded submission together with its resolved answers.
type Response struct {
	FormID      uint64
	Seq         uint64
	Respondent  string
	ContentRef  registry.Reference
	SubmittedAt time.Time
	Document    []byte
}

// PublishForm stores the form definition in the content store, then
// registers the resulting reference as a new form.
func (c *Client) PublishForm(ctx context.Context, document []byte) (Form, error) {
	ref, err := c.docs.Put(ctx, document)
	if err != nil {
		return Form{}, fmt.Errorf("store form document: %w", err)
	}
	var body formBody
	err = c.do(ctx, http.MethodPost, "/v1/forms", map[string]string{"content_ref": string(ref)}, &body)
	if err != nil {
		return Form{}, err
	}
	form, err := body.toForm()
	if err != nil {
		return Form{}, err
	}
	form.Document = document
	return form, nil
}

// SubmitResponse stores the answer document, then records the reference as
// a response against the form.
func (c *Client) SubmitResponse(ctx context.Context, formID uint64, answers []byte) (Response, error) {
	ref, err := c.docs.Put(ctx, answers)
	if err != nil {
		return Response{}, fmt.Errorf("store answer document: %w", err)
	}
	var body responseBody
	path := fmt.Sprintf("/v1/forms/%d/responses", formID)
	err = c.do(ctx, http.MethodPost, path, map[string]string{"content_ref": string(ref)}, &body)
	if err != nil {
		return Response{}, err
	}
	response, err := body.toResponse()
	if err != nil {
		return Response{}, err
	}
	response.Document = answers
	return response, nil
}

// FetchForm returns a form with its definition document resolved from the
// content store.
func (c *Client) FetchForm(ctx context.Context, formID uint64) (Form, error) {
	var body formBody
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/v1/forms/%d", formID), nil, &body); err != nil {
		return Form{}, err
	}
	form, err := body.toForm()
	if err != nil {
		return Form{}, err
	}
	document, err := c.docs.Get(ctx, form.ContentRef)
	if err != nil {
		return Form{}, fmt.Errorf("resolve form document: %w", err)
	}
	form.Document = document
	return form, nil
}

// DeactivateForm turns off response acceptance for a form.
func (c *Client) DeactivateForm(ctx context.Context, formID uint64) (Form, error) {
	var body formBody
	path := fmt.Sprintf("/v1/forms/%d/deactivate", formID)
	if err := c.do(ctx, http.MethodPost, path, nil, &body); err != nil {
		return Form{}, err
	}
	return body.toForm()
}

// FormCount returns the total number of forms ever created.
func (c *Client) FormCount(ctx context.Context) (uint64, error) {
	var body struct {
		Count uint64 `json:"count"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/forms/count", nil, &body); err != nil {
		return 0, err
	}
	return body.Count, nil
}

// FormResponses returns a form's responses with their answer documents
// resolved from the content store.
func (c *Client) FormResponses(ctx context.Context, formID uint64, afterSeq uint64, limit int) ([]Response, error) {
	var body struct {
		Responses []responseBody `json:"responses"`
	}
	path := fmt.Sprintf("/v1/forms/%d/responses?after_seq=%d&limit=%d", formID, afterSeq, limit)
	if limit <= 0 {
		path = fmt.Sprintf("/v1/forms/%d/responses?after_seq=%d", formID, afterSeq)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	responses := make([]Response, 0, len(body.Responses))
	for _, item := range body.Responses {
		response, err := item.toResponse()
		if err != nil {
			return nil, err
		}
		document, err := c.docs.Get(ctx, response.ContentRef)
		if err != nil {
			return nil, fmt.Errorf("resolve response %d document: %w", response.Seq, err)
		}
		response.Document = document
		responses = append(responses, response)
	}
	return responses, nil
}

// AddAdministrator grants admin membership to identity.
func (c *Client) AddAdministrator(ctx context.Context, identity string) error {
	return c.do(ctx, http.MethodPost, "/v1/admins", map[string]string{"identity": identity}, nil)
}

// IsAdministrator reports whether identity is in the admin set.
func (c *Client) IsAdministrator(ctx context.Context, identity string) (bool, error) {
	var body struct {
		Admin bool `json:"is_administrator"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/admins/"+identity, nil, &body); err != nil {
		return false, err
	}
	return body.Admin, nil
}

// Notification mirrors one registry notification log entry.
type Notification struct {
	Seq        uint64
	Kind       registry.Kind
	FormID     uint64
	Actor      string
	ContentRef registry.Reference
	Timestamp  time.Time
}

// Notifications returns the registry notification log after the cursor.
func (c *Client) Notifications(ctx context.Context, afterSeq uint64, limit int) ([]Notification, error) {
	var body struct {
		Notifications []notificationBody `json:"notifications"`
	}
	path := "/v1/notifications?after_seq=" + strconv.FormatUint(afterSeq, 10)
	if limit > 0 {
		path += "&limit=" + strconv.Itoa(limit)
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &body); err != nil {
		return nil, err
	}
	notes := make([]Notification, 0, len(body.Notifications))
	for _, item := range body.Notifications {
		note, err := item.toNotification()
		if err != nil {
			return nil, err
		}
		notes = append(notes, note)
	}
	return notes, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var reader *bytes.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreUnavailable, "registry is unreachable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// decodeError rebuilds a domain error from the wire body so callers can
// match on codes with errors.Is.
func decodeError(resp *http.Response) error {
	var body struct {
		Code     string            `json:"code"`
		Message  string            `json:"message"`
		Metadata map[string]string `json:"metadata"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Code == "" {
		return apperrors.New(apperrors.CodeUnknown, fmt.Sprintf("registry returned status %d", resp.StatusCode))
	}
	return apperrors.WithMetadata(apperrors.Code(body.Code), body.Message, body.Metadata)
}

type formBody struct {
	ID            uint64  `json:"id"`
	Creator       string  `json:"creator"`
	ContentRef    string  `json:"content_ref"`
	Active        bool    `json:"active"`
	CreatedAt     string  `json:"created_at"`
	DeactivatedAt *string `json:"deactivated_at"`
}

func (b formBody) toForm() (Form, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, b.CreatedAt)
	if err != nil {
		return Form{}, fmt.Errorf("parse created_at: %w", err)
	}
	form := Form{
		ID:         b.ID,
		Creator:    b.Creator,
		ContentRef: registry.Reference(b.ContentRef),
		Active:     b.Active,
		CreatedAt:  createdAt,
	}
	if b.DeactivatedAt != nil {
		deactivatedAt, err := time.Parse(time.RFC3339Nano, *b.DeactivatedAt)
		if err != nil {
			return Form{}, fmt.Errorf("parse deactivated_at: %w", err)
		}
		form.DeactivatedAt = &deactivatedAt
	}
	return form, nil
}

type responseBody struct {
	FormID      uint64 `json:"form_id"`
	Seq         uint64 `json:"seq"`
	Respondent  string `json:"respondent"`
	ContentRef  string `json:"content_ref"`
	SubmittedAt string `json:"submitted_at"`
}

func (b responseBody) toResponse() (Response, error) {
	submittedAt, err := time.Parse(time.RFC3339Nano, b.SubmittedAt)
	if err != nil {
		return Response{}, fmt.Errorf("parse submitted_at: %w", err)
	}
	return Response{
		FormID:      b.FormID,
		Seq:         b.Seq,
		Respondent:  b.Respondent,
		ContentRef:  registry.Reference(b.ContentRef),
		SubmittedAt: submittedAt,
	}, nil
}

type notificationBody struct {
	Seq        uint64 `json:"seq"`
	Kind       string `json:"kind"`
	FormID     uint64 `json:"form_id"`
	Actor      string `json:"actor"`
	ContentRef string `json:"content_ref"`
	Timestamp  string `json:"timestamp"`
}

func (b notificationBody) toNotification() (Notification, error) {
	timestamp, err := time.Parse(time.RFC3339Nano, b.Timestamp)
	if err != nil {
		return Notification{}, fmt.Errorf("parse timestamp: %w", err)
	}
	return Notification{
		Seq:        b.Seq,
		Kind:       registry.Kind(b.Kind),
		FormID:     b.FormID,
		Actor:      b.Actor,
		ContentRef: registry.Reference(b.ContentRef),
		Timestamp:  timestamp,
	}, nil
}
