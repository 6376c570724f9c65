// Package handlers defines the HTTP-layer error codes used across the
// dashboard API. Codes are lowercase snake_case and give clients a stable,
// machine-readable taxonomy alongside the human-readable message; handlers
// pass the most specific matching code to fail() with the HTTP status.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeUnauthorized     = "unauthorized"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific: a dashboard projection query failed server-side.
	ErrCodeQueryFailed = "query_failed"
)
