package registry

import "time"

// Response represents one participant submission against a form.
// Responses are append-only: once recorded they are never edited or removed,
// and a response never outlives or is relocated from its form.
type Response struct {
	// FormID is the form this response belongs to.
	FormID uint64
	// Seq is the submission order within the form (starts at 1).
	// Assigned by storage on append.
	Seq uint64
	// Respondent is the identity that submitted the response (immutable).
	Respondent Identity
	// ContentRef points at the answer document (immutable).
	ContentRef Reference
	// SubmittedAt is the timestamp when the response was recorded.
	SubmittedAt time.Time
}

// SubmitResponseInput describes the data needed to record a response.
type SubmitResponseInput struct {
	FormID     uint64
	Respondent Identity
	ContentRef Reference
}

// NewResponse validates input and builds a response pending sequence
// assignment. Form existence and activity are checked at commit time by the
// storage layer; multiple responses per respondent are permitted.
func NewResponse(input SubmitResponseInput, now func() time.Time) (Response, error) {
	if now == nil {
		now = time.Now
	}
	if input.FormID == 0 {
		return Response{}, ErrFormNotFound
	}
	respondent, err := NormalizeIdentity(string(input.Respondent))
	if err != nil {
		return Response{}, err
	}
	ref, err := NormalizeReference(string(input.ContentRef))
	if err != nil {
		return Response{}, err
	}
	return Response{
		FormID:      input.FormID,
		Respondent:  respondent,
		ContentRef:  ref,
		SubmittedAt: now().UTC(),
	}, nil
}
