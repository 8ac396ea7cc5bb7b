// Package provider adapts ad-monetized URL shorteners behind one interface.
//
// A Provider mints a short link wrapping a target URL and later reports
// whether a given user completed the ad flow for that link. Concrete
// variants (AdLinkFly-style query APIs, bearer-token REST APIs, and the
// direct pass-through used for exempt users) are selected from configuration
// by Registry. Decorators add bounded retries with backoff, per-call
// deadlines, idempotent minting and a page-probe fallback.
package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

// Completion is the provider's view of a user's progress through a link.
type Completion int

const (
	CompletionPending Completion = iota
	CompletionCompleted
	CompletionNotFound
)

func (c Completion) String() string {
	switch c {
	case CompletionCompleted:
		return "completed"
	case CompletionNotFound:
		return "not_found"
	default:
		return "pending"
	}
}

// Provider is one shortener account.
type Provider interface {
	ID() string
	// Mint wraps targetURL in a monetized short link.
	Mint(ctx context.Context, targetURL, contentID string) (string, error)
	// Check reports whether userToken completed the flow behind shortURL.
	Check(ctx context.Context, shortURL, userToken string) (Completion, error)
}

var (
	// ErrProviderUnavailable marks transient failures: network errors,
	// deadlines, throttling and 5xx responses. Safe to retry.
	ErrProviderUnavailable = errors.New("provider unavailable")
	// ErrInvalidTarget marks a target the provider refuses to shorten.
	ErrInvalidTarget = errors.New("invalid target")
	// ErrLinkGone marks a short link the provider no longer serves.
	ErrLinkGone = errors.New("link gone")
)

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	return errors.Is(err, ErrProviderUnavailable)
}

// validateTarget rejects anything but absolute http(s) URLs.
func validateTarget(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: %q", ErrInvalidTarget, raw)
	}
	return nil
}

// transportError maps a failed round trip to ErrProviderUnavailable, keeping
// caller cancellation distinguishable. The request URL is dropped since it
// may carry the API key.
func transportError(ctx context.Context, id string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	var uerr *url.Error
	if errors.As(err, &uerr) {
		err = uerr.Err
	}
	return fmt.Errorf("%w: %s: %v", ErrProviderUnavailable, id, err)
}

// statusError classifies a non-2xx response that has no op-specific meaning.
func statusError(id string, code int) error {
	switch {
	case code == http.StatusTooManyRequests || code >= 500:
		return fmt.Errorf("%w: %s responded %d", ErrProviderUnavailable, id, code)
	case code == http.StatusGone:
		return fmt.Errorf("%w: %s responded %d", ErrLinkGone, id, code)
	default:
		return fmt.Errorf("%s: unexpected status %d", id, code)
	}
}
