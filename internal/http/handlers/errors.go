// Package handlers defines the HTTP-layer error codes used across all API
// endpoints. The constants here form a stable, machine-readable error
// taxonomy that supplements human-readable messages; handlers pick the most
// specific matching code and pass it to fail() together with the HTTP status.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeCreateFailed     = "create_failed"
	ErrCodeListFailed       = "list_failed"
	ErrCodeAlreadyClosed    = "already_closed"
	ErrCodePartnerTaken     = "partner_taken"
	ErrCodeTruceState       = "truce_state"
	ErrCodeMethodNotAllowed = "method_not_allowed"
)
