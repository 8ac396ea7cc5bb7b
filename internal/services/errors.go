// Package services defines the gate engine, the unlock dispatcher and the
// content catalog. This file centralizes service-level error values so that
// they can be consistently returned by service methods and checked by
// callers.
//
// Translation into user-facing codes or HTTP status codes is performed at the
// handler layer; raw provider error text never leaves this package's callers.
package services

import (
	"errors"
	"fmt"
	"time"

	"github.com/tbourn/go-linkgate/internal/provider"
	"github.com/tbourn/go-linkgate/internal/repo"
)

var (
	// ErrBadRequest marks malformed identifiers or payloads.
	ErrBadRequest = errors.New("bad request")

	// ErrContentNotFound indicates the content ID is not in the catalog.
	ErrContentNotFound = errors.New("content not found")

	// ErrDuplicateContent is returned when a content ID is registered twice.
	ErrDuplicateContent = errors.New("content already exists")

	// ErrNoSuchRequest is returned when no gate exists for the pair.
	ErrNoSuchRequest = errors.New("no such request")

	// ErrPayloadMissing is returned when content to deliver has no payload.
	ErrPayloadMissing = errors.New("payload missing")

	// ErrRateLimited is the policy rejection; see RateLimitError.
	ErrRateLimited = errors.New("rate limited")

	// ErrDeliveryFailed wraps a transport failure after the delivery marker
	// was claimed; the marker is left failed.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrNotRedeliverable is returned when a redelivery targets a marker that
	// did not fail.
	ErrNotRedeliverable = errors.New("delivery is not in a failed state")
)

// Re-exported so callers can match without importing lower layers.
var (
	ErrProviderUnavailable = provider.ErrProviderUnavailable
	ErrInvalidTarget       = provider.ErrInvalidTarget
	ErrInvalidTransition   = repo.ErrInvalidTransition
)

// RateLimitError carries the retry-after hint of a rate-limit rejection.
// It matches ErrRateLimited with errors.Is.
type RateLimitError struct {
	RetryAfter time.Duration
	Reason     string
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited: %s (retry after %s)", e.Reason, e.RetryAfter.Round(time.Second))
}

// Is reports whether target is ErrRateLimited.
func (e *RateLimitError) Is(target error) bool { return target == ErrRateLimited }
