// Package http exposes the registry over a JSON HTTP API.
//
// Reads are open. Mutations require a Bearer identity token signed with
// EdDSA; the verified subject becomes the acting identity. Role checks
// happen in the service layer, not here.
package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/formledger/formledger/internal/id"
	apperrors "github.com/formledger/formledger/internal/platform/errors"
	"github.com/formledger/formledger/internal/registry"
	"github.com/formledger/formledger/internal/registry/service"
)

const tracerName = "formledger/registry/api"

// Handler serves the registry HTTP API.
type Handler struct {
	svc      *service.Service
	identity IdentityConfig
	mux      *http.ServeMux
}

// NewHandler builds the registry API handler.
func NewHandler(svc *service.Service, identity IdentityConfig) *Handler {
	h := &Handler{
		svc:      svc,
		identity: identity,
		mux:      http.NewServeMux(),
	}
	h.mux.HandleFunc("GET /healthz", h.handleHealth)
	h.mux.HandleFunc("POST /v1/forms", h.handleCreateForm)
	h.mux.HandleFunc("GET /v1/forms", h.handleListForms)
	h.mux.HandleFunc("GET /v1/forms/count", h.handleFormCount)
	h.mux.HandleFunc("GET /v1/forms/{id}", h.handleGetForm)
	h.mux.HandleFunc("POST /v1/forms/{id}/deactivate", h.handleDeactivateForm)
	h.mux.HandleFunc("POST /v1/forms/{id}/responses", h.handleSubmitResponse)
	h.mux.HandleFunc("GET /v1/forms/{id}/responses", h.handleListResponses)
	h.mux.HandleFunc("POST /v1/admins", h.handleAddAdministrator)
	h.mux.HandleFunc("GET /v1/admins/{identity}", h.handleCheckAdministrator)
	h.mux.HandleFunc("GET /v1/notifications", h.handleListNotifications)
	h.mux.HandleFunc("GET /v1/notifications/watch", h.handleWatchNotifications)
	return h
}

// ServeHTTP traces the request and dispatches to the route table.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer(tracerName).Start(r.Context(), r.Method+" "+r.URL.Path)
	defer span.End()

	span.SetAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.path", r.URL.Path),
	)
	if requestID, err := id.NewID(); err == nil {
		w.Header().Set("X-Request-Id", requestID)
		span.SetAttributes(attribute.String("http.request_id", requestID))
	}

	recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
	h.mux.ServeHTTP(recorder, r.WithContext(ctx))

	span.SetAttributes(attribute.Int("http.status_code", recorder.status))
	if recorder.status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, http.StatusText(recorder.status))
	}
}

// statusRecorder captures the response status for tracing.
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written bool
}

func (r *statusRecorder) WriteHeader(status int) {
	if !r.written {
		r.status = status
		r.written = true
	}
	r.ResponseWriter.WriteHeader(status)
}

// Flush forwards flushes so server-sent events stream through the recorder.
func (r *statusRecorder) Flush() {
	if flusher, ok := r.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.LatestNotificationSeq(r.Context()); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeStoreUnavailable, "storage is unreachable", err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type createFormRequest struct {
	ContentRef string `json:"content_ref"`
}

func (h *Handler) handleCreateForm(w http.ResponseWriter, r *http.Request) {
	caller, err := bearerIdentity(r, h.identity)
	if err != nil {
		writeError(w, err)
		return
	}
	var req createFormRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidReference, "request body is invalid", err))
		return
	}
	form, err := h.svc.CreateForm(r.Context(), caller, registry.Reference(req.ContentRef))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, encodeForm(form))
}

func (h *Handler) handleListForms(w http.ResponseWriter, r *http.Request) {
	afterID, limit, err := pageParams(r, "after_id")
	if err != nil {
		writeError(w, err)
		return
	}
	forms, err := h.svc.ListForms(r.Context(), afterID, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	bodies := make([]formBody, 0, len(forms))
	for _, form := range forms {
		bodies = append(bodies, encodeForm(form))
	}
	payload := map[string]any{"forms": bodies}
	if len(forms) > 0 {
		payload["next_after_id"] = forms[len(forms)-1].ID
	}
	writeJSON(w, http.StatusOK, payload)
}

func (h *Handler) handleFormCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.svc.FormCount(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"count": count})
}

func (h *Handler) handleGetForm(w http.ResponseWriter, r *http.Request) {
	id, err := formIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	form, err := h.svc.GetForm(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeForm(form))
}

func (h *Handler) handleDeactivateForm(w http.ResponseWriter, r *http.Request) {
	caller, err := bearerIdentity(r, h.identity)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := formIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	form, err := h.svc.DeactivateForm(r.Context(), caller, id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encodeForm(form))
}

type submitResponseRequest struct {
	ContentRef string `json:"content_ref"`
}

func (h *Handler) handleSubmitResponse(w http.ResponseWriter, r *http.Request) {
	respondent, err := bearerIdentity(r, h.identity)
	if err != nil {
		writeError(w, err)
		return
	}
	id, err := formIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req submitResponseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidReference, "request body is invalid", err))
		return
	}
	response, err := h.svc.SubmitResponse(r.Context(), respondent, id, registry.Reference(req.ContentRef))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, encodeResponse(response))
}

func (h *Handler) handleListResponses(w http.ResponseWriter, r *http.Request) {
	id, err := formIDParam(r)
	if err != nil {
		writeError(w, err)
		return
	}
	afterSeq, limit, err := pageParams(r, "after_seq")
	if err != nil {
		writeError(w, err)
		return
	}
	responses, err := h.svc.ListFormResponses(r.Context(), id, afterSeq, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	bodies := make([]responseBody, 0, len(responses))
	for _, response := range responses {
		bodies = append(bodies, encodeResponse(response))
	}
	writeJSON(w, http.StatusOK, map[string]any{"responses": bodies})
}

type addAdministratorRequest struct {
	Identity string `json:"identity"`
}

func (h *Handler) handleAddAdministrator(w http.ResponseWriter, r *http.Request) {
	caller, err := bearerIdentity(r, h.identity)
	if err != nil {
		writeError(w, err)
		return
	}
	var req addAdministratorRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeIdentityEmpty, "request body is invalid", err))
		return
	}
	added, err := h.svc.AddAdministrator(r.Context(), caller, registry.Identity(req.Identity))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity": strings.TrimSpace(req.Identity),
		"added":    added,
	})
}

func (h *Handler) handleCheckAdministrator(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")
	ok, err := h.svc.IsAdministrator(r.Context(), registry.Identity(identity))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"identity":         strings.TrimSpace(identity),
		"is_administrator": ok,
	})
}

func (h *Handler) handleListNotifications(w http.ResponseWriter, r *http.Request) {
	afterSeq, limit, err := pageParams(r, "after_seq")
	if err != nil {
		writeError(w, err)
		return
	}
	notes, err := h.svc.Notifications(r.Context(), afterSeq, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	bodies := make([]notificationBody, 0, len(notes))
	for _, note := range notes {
		bodies = append(bodies, encodeNotification(note))
	}
	writeJSON(w, http.StatusOK, map[string]any{"notifications": bodies})
}

// formIDParam parses the {id} path segment into a form identifier.
func formIDParam(r *http.Request) (uint64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, apperrors.WithMetadata(
			apperrors.CodeInvalidFormID,
			"form id must be a positive integer",
			map[string]string{"Value": raw},
		)
	}
	if id == 0 {
		// Zero parses fine but is outside the allocated range.
		return 0, registry.ErrFormNotFound
	}
	return id, nil
}

// pageParams parses the cursor and limit query parameters. The limit is
// clamped by the service; zero means the default page size.
func pageParams(r *http.Request, cursorName string) (uint64, int, error) {
	var (
		cursor uint64
		limit  int
	)
	if raw := r.URL.Query().Get(cursorName); raw != "" {
		parsed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return 0, 0, apperrors.WithMetadata(
				apperrors.CodeInvalidFormID,
				fmt.Sprintf("%s must be a non-negative integer", cursorName),
				map[string]string{"Value": raw},
			)
		}
		cursor = parsed
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			return 0, 0, apperrors.WithMetadata(
				apperrors.CodeInvalidFormID,
				"limit must be a non-negative integer",
				map[string]string{"Value": raw},
			)
		}
		limit = parsed
	}
	return cursor, limit, nil
}
