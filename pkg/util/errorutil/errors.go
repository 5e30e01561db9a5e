package errorutil

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusBadRequest, details)
}

// NewTokenExpired reports a structurally valid token whose window has elapsed.
func NewTokenExpired() error {
	return NewDomainError("TOKEN_EXPIRED", "token expired", http.StatusBadRequest, nil)
}

// NewTokenInvalid reports a malformed or badly signed token.
func NewTokenInvalid() error {
	return NewDomainError("TOKEN_INVALID", "token invalid", http.StatusBadRequest, nil)
}

// NewTokenRevoked reports a token that was soft-deleted after issuance.
func NewTokenRevoked() error {
	return NewDomainError("TOKEN_REVOKED", "token revoked", http.StatusBadRequest, nil)
}

func NewTokenNotFound() error {
	return NewDomainError("TOKEN_NOT_FOUND", "token not found", http.StatusNotFound, nil)
}

// NewAccessDenied reports a permission check that succeeded but denied access.
// The permission detail travels to the caller unchanged.
func NewAccessDenied(details map[string]any) error {
	return NewDomainError("ACCESS_DENIED", "access denied", http.StatusForbidden, details)
}

func NewUnauthorized(message string) error {
	return NewDomainError("UNAUTHORIZED", message, http.StatusUnauthorized, nil)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// UpstreamError carries a collaborator's non-success envelope. The body is
// relayed to the caller verbatim, never reinterpreted.
type UpstreamError struct {
	Source string
	Status int
	Body   json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream %s returned %d", e.Source, e.Status)
}

// NewUpstreamError wraps a non-success response from a named collaborator.
func NewUpstreamError(source string, status int, body []byte) error {
	raw := make(json.RawMessage, len(body))
	copy(raw, body)
	return &UpstreamError{Source: source, Status: status, Body: raw}
}

// AsUpstream extracts an UpstreamError when err carries one.
func AsUpstream(err error) (*UpstreamError, bool) {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// ToDomainError converts generic errors to DomainError. Anything unclassified
// becomes an internal error so internals never leak to the caller.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}
