package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Access control errors
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeIdentityEmpty Code = "IDENTITY_EMPTY"

	// Identity token errors
	CodeIdentityTokenInvalid Code = "IDENTITY_TOKEN_INVALID"
	CodeIdentityTokenExpired Code = "IDENTITY_TOKEN_EXPIRED"

	// Form registry errors
	CodeNotFound         Code = "NOT_FOUND"
	CodeInvalidReference Code = "INVALID_REFERENCE"
	CodeFormInactive     Code = "FORM_INACTIVE"
	CodeInvalidFormID    Code = "INVALID_FORM_ID"

	// Content store errors
	CodeStoreUnavailable Code = "STORE_UNAVAILABLE"
)

// HTTPStatus maps domain codes to HTTP status codes.
func (c Code) HTTPStatus() int {
	switch c {
	// Bad request - validation failures, bad input
	case CodeInvalidReference,
		CodeInvalidFormID,
		CodeIdentityEmpty:
		return http.StatusBadRequest

	// The caller could not be identified
	case CodeIdentityTokenInvalid,
		CodeIdentityTokenExpired:
		return http.StatusUnauthorized

	// Identified but lacks the required role
	case CodeUnauthorized:
		return http.StatusForbidden

	// Resource doesn't exist
	case CodeNotFound:
		return http.StatusNotFound

	// State doesn't allow the operation
	case CodeFormInactive:
		return http.StatusConflict

	case CodeStoreUnavailable:
		return http.StatusBadGateway

	default:
		return http.StatusInternalServerError
	}
}
