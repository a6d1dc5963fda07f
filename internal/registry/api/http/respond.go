package http

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	apperrors "github.com/formledger/formledger/internal/platform/errors"
	"github.com/formledger/formledger/internal/registry"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// formBody is the wire shape of a form.
type formBody struct {
	ID            uint64  `json:"id"`
	Creator       string  `json:"creator"`
	ContentRef    string  `json:"content_ref"`
	Active        bool    `json:"active"`
	CreatedAt     string  `json:"created_at"`
	DeactivatedAt *string `json:"deactivated_at,omitempty"`
}

// responseBody is the wire shape of a response record.
type responseBody struct {
	FormID      uint64 `json:"form_id"`
	Seq         uint64 `json:"seq"`
	Respondent  string `json:"respondent"`
	ContentRef  string `json:"content_ref"`
	SubmittedAt string `json:"submitted_at"`
}

// notificationBody is the wire shape of a notification.
type notificationBody struct {
	Seq        uint64 `json:"seq"`
	Kind       string `json:"kind"`
	FormID     uint64 `json:"form_id,omitempty"`
	Actor      string `json:"actor"`
	ContentRef string `json:"content_ref,omitempty"`
	Timestamp  string `json:"timestamp"`
}

func encodeForm(form registry.Form) formBody {
	body := formBody{
		ID:         form.ID,
		Creator:    string(form.Creator),
		ContentRef: string(form.ContentRef),
		Active:     form.Active,
		CreatedAt:  form.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if form.DeactivatedAt != nil {
		value := form.DeactivatedAt.UTC().Format(time.RFC3339Nano)
		body.DeactivatedAt = &value
	}
	return body
}

func encodeResponse(response registry.Response) responseBody {
	return responseBody{
		FormID:      response.FormID,
		Seq:         response.Seq,
		Respondent:  string(response.Respondent),
		ContentRef:  string(response.ContentRef),
		SubmittedAt: response.SubmittedAt.UTC().Format(time.RFC3339Nano),
	}
}

func encodeNotification(note registry.Notification) notificationBody {
	return notificationBody{
		Seq:        note.Seq,
		Kind:       string(note.Kind),
		FormID:     note.FormID,
		Actor:      string(note.Actor),
		ContentRef: string(note.ContentRef),
		Timestamp:  note.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// writeError maps a domain error to its HTTP status and wire body.
// Non-domain errors are masked as internal errors.
func writeError(w http.ResponseWriter, err error) {
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		log.Printf("internal error: %v", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    string(apperrors.CodeUnknown),
			Message: "internal error",
		})
		return
	}
	writeJSON(w, appErr.Code.HTTPStatus(), errorBody{
		Code:     string(appErr.Code),
		Message:  appErr.Message,
		Metadata: appErr.Metadata,
	})
}

// decodeJSON decodes a request body into dst, rejecting unknown fields.
func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}
