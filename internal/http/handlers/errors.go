// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// These codes give clients a stable, machine-readable error taxonomy that
// supplements human-readable messages. Codes are lowercase snake_case; every
// error response carries an HTTP status and exactly one of them. Chat adapters
// are expected to branch on the code (for example, to show "try again in N
// minutes" on rate_limited) rather than on the message.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "rate_limited",
//	  "message": "too many distinct items; retry later"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeConflict         = "conflict"
	ErrCodeRateLimited      = "rate_limited"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeTimeout          = "timeout"

	// Gate domain:
	ErrCodeNoSuchRequest       = "no_such_request"
	ErrCodeInvalidTarget       = "invalid_target"
	ErrCodePayloadMissing      = "payload_missing"
	ErrCodeInvalidTransition   = "invalid_transition"
	ErrCodeProviderUnavailable = "provider_unavailable"
)
