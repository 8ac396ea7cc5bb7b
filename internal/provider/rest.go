package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tbourn/go-linkgate/internal/config"
)

// REST talks to shorteners with a bearer-token JSON API:
//
//	POST {base}/v1/links {"destination": target, "reference": contentID}
//	  -> 201 {"id": "...", "url": "https://..."}; 400/422 invalid target
//
//	GET {base}/v1/completions?url={short}&token={token}
//	  -> 200 {"completed": bool}; 404 unknown link; 410 link removed
type REST struct {
	cfg    config.ProviderConfig
	client *http.Client
}

// NewREST builds the adapter. A nil client selects NewHTTPClient.
func NewREST(cfg config.ProviderConfig, client *http.Client) *REST {
	if client == nil {
		client = NewHTTPClient()
	}
	return &REST{cfg: cfg, client: client}
}

func (r *REST) ID() string { return r.cfg.Name }

type restMintRequest struct {
	Destination string `json:"destination"`
	Reference   string `json:"reference,omitempty"`
}

type restMintResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

func (r *REST) newRequest(method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequest(method, r.cfg.BaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey.Reveal())
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// Mint implements Provider.
func (r *REST) Mint(ctx context.Context, targetURL, contentID string) (string, error) {
	if err := validateTarget(targetURL); err != nil {
		return "", err
	}
	req, err := r.newRequest(http.MethodPost, "/v1/links", restMintRequest{Destination: targetURL, Reference: contentID})
	if err != nil {
		return "", err
	}

	var out restMintResponse
	code, err := do(ctx, r.client, r.ID(), "mint", req, &out)
	if err != nil {
		return "", err
	}
	switch {
	case code >= 200 && code <= 299:
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: %s rejected target", ErrInvalidTarget, r.ID())
	default:
		return "", statusError(r.ID(), code)
	}
	if out.URL == "" {
		return "", fmt.Errorf("%w: %s: empty url in mint response", ErrProviderUnavailable, r.ID())
	}
	return out.URL, nil
}

type restCheckResponse struct {
	Completed bool `json:"completed"`
}

// Check implements Provider.
func (r *REST) Check(ctx context.Context, shortURL, userToken string) (Completion, error) {
	q := url.Values{}
	q.Set("url", shortURL)
	q.Set("token", userToken)
	req, err := r.newRequest(http.MethodGet, "/v1/completions?"+q.Encode(), nil)
	if err != nil {
		return CompletionPending, err
	}

	var out restCheckResponse
	code, err := do(ctx, r.client, r.ID(), "check", req, &out)
	if err != nil {
		return CompletionPending, err
	}
	switch {
	case code == http.StatusNotFound:
		return CompletionNotFound, nil
	case code < 200 || code > 299:
		return CompletionPending, statusError(r.ID(), code)
	}
	if out.Completed {
		return CompletionCompleted, nil
	}
	return CompletionPending, nil
}
