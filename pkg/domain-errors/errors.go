// Package domainerrors defines coded errors shared by services and the HTTP
// layer. Services return these for caller-facing failures; stores return the
// sentinels in pkg/platform/sentinel and services translate.
package domainerrors

import "net/http"

// Code identifies a category of domain failure.
type Code string

const (
	CodeBadRequest    Code = "bad_request"
	CodeUnauthorized  Code = "unauthorized"
	CodeForbidden     Code = "forbidden"
	CodeNotFound      Code = "not_found"
	CodeConflict      Code = "conflict"
	CodeAlreadyMerged Code = "already_merged"
	CodeInternal      Code = "internal_error"
)

// Error carries a code plus a human-readable description. The description is
// only serialized for client-caused failures; internal details stay server-side.
type Error struct {
	Code        Code
	Description string
}

func (e *Error) Error() string {
	if e.Description == "" {
		return string(e.Code)
	}
	return string(e.Code) + ": " + e.Description
}

// New builds a coded domain error.
func New(code Code, description string) *Error {
	return &Error{Code: code, Description: description}
}

// CodeOf extracts the domain code from err, or CodeInternal for plain errors.
func CodeOf(err error) Code {
	if de, ok := err.(*Error); ok {
		return de.Code
	}
	return CodeInternal
}

// ToHTTPStatus maps domain codes to HTTP status codes.
func ToHTTPStatus(code Code) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict, CodeAlreadyMerged:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
