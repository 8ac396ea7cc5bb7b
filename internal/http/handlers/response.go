// Package handlers provides HTTP handler implementations for the public API.
//
// This file defines the standard response utilities used across all
// endpoints: the error envelope, the service-error translation table and the
// success helpers.
//
// Conventions:
//   - All error responses return an ErrorResponse with a stable `code`.
//   - fail() centralizes error formatting and logs 5xx with request context.
//   - failErr() maps service errors to status and code; raw error text from
//     providers or the database is logged, never returned.
//
// Example error response:
//
//	HTTP/1.1 429 Too Many Requests
//	Retry-After: 3000
//	{
//	  "request_id": "123e4567-e89b-12d3-a456-426614174000",
//	  "code": "rate_limited",
//	  "message": "too many distinct items; retry later"
//	}
package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-linkgate/internal/http/middleware"
	"github.com/tbourn/go-linkgate/internal/services"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"no_such_request"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"no gate for this user and content"`
}

// fail aborts the request with a structured error and logs server-side errors
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	resp := ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	}

	if status >= http.StatusInternalServerError {
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, resp)
}

// Fail is the exported variant of fail() for router-level fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// failErr translates a service error into the error envelope.
func failErr(c *gin.Context, err error) {
	var rl *services.RateLimitError
	switch {
	case errors.As(err, &rl):
		c.Header("Retry-After", strconv.Itoa(retryAfterSeconds(rl)))
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, rl.Reason+"; retry later")
	case errors.Is(err, services.ErrRateLimited):
		fail(c, http.StatusTooManyRequests, ErrCodeRateLimited, "rate limited; retry later")
	case errors.Is(err, services.ErrBadRequest):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid user_id, content_id or payload")
	case errors.Is(err, services.ErrContentNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, "content not found")
	case errors.Is(err, services.ErrNoSuchRequest):
		fail(c, http.StatusNotFound, ErrCodeNoSuchRequest, "no gate for this user and content")
	case errors.Is(err, services.ErrDuplicateContent):
		fail(c, http.StatusConflict, ErrCodeConflict, "content already exists")
	case errors.Is(err, services.ErrNotRedeliverable):
		fail(c, http.StatusConflict, ErrCodeConflict, "delivery has not failed")
	case errors.Is(err, services.ErrInvalidTransition):
		fail(c, http.StatusConflict, ErrCodeInvalidTransition, "gate is no longer active")
	case errors.Is(err, services.ErrPayloadMissing):
		fail(c, http.StatusUnprocessableEntity, ErrCodePayloadMissing, "content has no payload")
	case errors.Is(err, services.ErrInvalidTarget):
		logCause(c, err)
		fail(c, http.StatusBadGateway, ErrCodeInvalidTarget, "link provider rejected the target")
	case errors.Is(err, services.ErrProviderUnavailable):
		logCause(c, err)
		fail(c, http.StatusServiceUnavailable, ErrCodeProviderUnavailable, "link provider unavailable; retry later")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		fail(c, http.StatusGatewayTimeout, ErrCodeTimeout, "request timed out")
	default:
		logCause(c, err)
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "internal error")
	}
}

// logCause records the underlying error, which the envelope never carries.
func logCause(c *gin.Context, err error) {
	middleware.LoggerFrom(c).Error().Err(err).Msg("request failed")
}

func retryAfterSeconds(rl *services.RateLimitError) int {
	secs := int(math.Ceil(rl.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// ok writes a success JSON response.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// noContent writes an HTTP 204 No Content response.
func noContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}
