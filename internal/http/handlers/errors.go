// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package). These codes provide clients with a stable,
// machine-readable error taxonomy that supplements human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, unauthorized, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., captcha_failed, initdata_invalid) are reserved for
//     business logic errors that cannot be conveyed by status alone.
//   - Error responses written through fail()/Fail carry both an HTTP status and
//     one of these codes. POST /submit_token answers with its own
//     {"success", "error"} body, and the rate limiter's 429 carries the code
//     "rate_limited".
//
// Usage:
//   - Handlers select the most specific matching code and pass it to `fail()` along
//     with the corresponding HTTP status and message.
//   - Clients are expected to branch on these codes for programmatic error handling.
//
// Example response (GET /verify with no site key for the active captcha mode):
//   {
//     "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//     "code": "missing_captcha_key",
//     "message": "no site key configured for captcha mode \"turnstile\""
//   }

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
	ErrCodeMethodNotAllowed  = "method_not_allowed"
	ErrCodeCaptchaFailed     = "captcha_failed"
	ErrCodeInitDataInvalid   = "initdata_invalid"
	ErrCodeMissingCaptchaKey = "missing_captcha_key"
)
