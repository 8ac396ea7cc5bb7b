package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/go-linkgate/internal/observability"
)

// maxBody caps how much of a provider response is read.
const maxBody = 1 << 20

// NewHTTPClient returns a traced client. Per-call deadlines come from the
// request context, not from Client.Timeout.
func NewHTTPClient() *http.Client {
	return &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
}

// do sends req and decodes a JSON body into out when the status is 2xx.
// It returns the status code so callers can give op-specific meaning to
// 404 and 4xx before falling back to statusError.
func do(ctx context.Context, client *http.Client, id, op string, req *http.Request, out any) (int, error) {
	start := time.Now()
	resp, err := client.Do(req.WithContext(ctx))
	observability.ProviderLatency.WithLabelValues(id, op).Observe(time.Since(start).Seconds())
	if err != nil {
		return 0, transportError(ctx, id, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return resp.StatusCode, nil
	}
	if out != nil {
		if err := json.NewDecoder(io.LimitReader(resp.Body, maxBody)).Decode(out); err != nil {
			// a garbled body from a healthy status is treated as a bad gateway
			return resp.StatusCode, fmt.Errorf("%w: %s: decode %s response: %v", ErrProviderUnavailable, id, op, err)
		}
	}
	return resp.StatusCode, nil
}
