package provider

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tbourn/go-linkgate/internal/config"
	"github.com/tbourn/go-linkgate/internal/observability"
	"github.com/tbourn/go-linkgate/internal/sysutil"
)

// PageProbe is a second opinion on completion, used when the provider API is
// unavailable or untrusted.
type PageProbe interface {
	Check(ctx context.Context, shortURL, userToken string) (Completion, error)
}

// HTTPPageProbe fetches a page and looks for a completion marker in its body.
// "{short_url}" and "{token}" in URL are substituted (query-escaped).
type HTTPPageProbe struct {
	URL    string
	Marker string
	client *http.Client
}

// NewHTTPPageProbe builds a probe. A nil client selects NewHTTPClient.
func NewHTTPPageProbe(rawURL, marker string, client *http.Client) *HTTPPageProbe {
	if client == nil {
		client = NewHTTPClient()
	}
	return &HTTPPageProbe{URL: rawURL, Marker: marker, client: client}
}

// Check implements PageProbe. 404 means the link is unknown; a page without
// the marker is still pending.
func (p *HTTPPageProbe) Check(ctx context.Context, shortURL, userToken string) (Completion, error) {
	target := strings.NewReplacer(
		"{short_url}", url.QueryEscape(shortURL),
		"{token}", url.QueryEscape(userToken),
	).Replace(p.URL)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return CompletionPending, err
	}
	start := time.Now()
	resp, err := p.client.Do(req)
	observability.ProviderLatency.WithLabelValues("probe", "check").Observe(time.Since(start).Seconds())
	if err != nil {
		return CompletionPending, transportError(ctx, "probe", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return CompletionNotFound, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return CompletionPending, statusError("probe", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return CompletionPending, transportError(ctx, "probe", err)
	}
	if p.Marker != "" && strings.Contains(string(body), p.Marker) {
		return CompletionCompleted, nil
	}
	return CompletionPending, nil
}

// Fallback routes Check through the provider API and a PageProbe according
// to a config.Fallback* policy. Mint always goes to the provider.
type Fallback struct {
	Provider
	probe   PageProbe
	policy  string
	timeout time.Duration
}

// WithFallback wraps p. Each probe call runs under timeout (<= 0 selects the
// default). A nil probe or the "never" policy returns p as is.
func WithFallback(p Provider, probe PageProbe, policy string, timeout time.Duration) Provider {
	if probe == nil || policy == "" || policy == config.FallbackNever {
		return p
	}
	if timeout <= 0 {
		timeout = defaultCallTimeout
	}
	return &Fallback{Provider: p, probe: probe, policy: policy, timeout: timeout}
}

// probeCheck asks the probe under the per-call deadline. An expired deadline
// reads as ErrProviderUnavailable.
func (f *Fallback) probeCheck(ctx context.Context, shortURL, userToken string) (Completion, error) {
	cctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()
	c, err := f.probe.Check(cctx, shortURL, userToken)
	return c, deadlineError(ctx, "probe", err)
}

// Check implements Provider.
func (f *Fallback) Check(ctx context.Context, shortURL, userToken string) (Completion, error) {
	switch f.policy {
	case config.FallbackAlways:
		c, err := f.probeCheck(ctx, shortURL, userToken)
		if err == nil || !IsTransient(err) {
			return c, err
		}
		sysutil.Logger(ctx).Warn().Err(err).Str("provider", f.ID()).Msg("page probe unavailable; asking provider api")
		return f.Provider.Check(ctx, shortURL, userToken)

	default: // on_unavailable
		c, err := f.Provider.Check(ctx, shortURL, userToken)
		if err == nil || !IsTransient(err) {
			return c, err
		}
		sysutil.Logger(ctx).Warn().Err(err).Str("provider", f.ID()).Msg("provider api unavailable; probing page")
		pc, perr := f.probeCheck(ctx, shortURL, userToken)
		if perr != nil {
			if errors.Is(perr, context.Canceled) {
				return CompletionPending, perr
			}
			// report the primary failure; the probe was a best effort
			return CompletionPending, fmt.Errorf("%w (probe: %v)", err, perr)
		}
		return pc, nil
	}
}
