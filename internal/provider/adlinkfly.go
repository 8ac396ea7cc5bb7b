package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tbourn/go-linkgate/internal/config"
)

// AdLinkFly talks to shorteners exposing the AdLinkFly query-string API
// (ShrinkMe and most of its clones):
//
//	GET {base}/api?api={key}&url={target}&format=json
//	  -> {"status":"success","shortenedUrl":"https://..."}
//	  -> {"status":"error","message":["Invalid URL."]}
//
//	GET {base}/api/check?api={key}&shortenedUrl={short}&token={token}
//	  -> {"status":"completed"|"pending"}; 404 unknown link; 410 link removed
type AdLinkFly struct {
	cfg    config.ProviderConfig
	client *http.Client
}

// NewAdLinkFly builds the adapter. A nil client selects NewHTTPClient.
func NewAdLinkFly(cfg config.ProviderConfig, client *http.Client) *AdLinkFly {
	if client == nil {
		client = NewHTTPClient()
	}
	return &AdLinkFly{cfg: cfg, client: client}
}

func (a *AdLinkFly) ID() string { return a.cfg.Name }

type adlinkflyMintResponse struct {
	Status       string          `json:"status"`
	ShortenedURL string          `json:"shortenedUrl"`
	Message      json.RawMessage `json:"message"` // string or []string
}

// Mint implements Provider.
func (a *AdLinkFly) Mint(ctx context.Context, targetURL, _ string) (string, error) {
	if err := validateTarget(targetURL); err != nil {
		return "", err
	}
	q := url.Values{}
	q.Set("api", a.cfg.APIKey.Reveal())
	q.Set("url", targetURL)
	q.Set("format", "json")
	req, err := http.NewRequest(http.MethodGet, a.cfg.BaseURL+"/api?"+q.Encode(), nil)
	if err != nil {
		return "", err
	}

	var out adlinkflyMintResponse
	code, err := do(ctx, a.client, a.ID(), "mint", req, &out)
	if err != nil {
		return "", err
	}
	switch {
	case code >= 200 && code <= 299:
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return "", fmt.Errorf("%w: %s rejected target", ErrInvalidTarget, a.ID())
	default:
		return "", statusError(a.ID(), code)
	}

	if !strings.EqualFold(out.Status, "success") || out.ShortenedURL == "" {
		return "", fmt.Errorf("%w: %s rejected target", ErrInvalidTarget, a.ID())
	}
	return out.ShortenedURL, nil
}

type adlinkflyCheckResponse struct {
	Status string `json:"status"`
}

// Check implements Provider.
func (a *AdLinkFly) Check(ctx context.Context, shortURL, userToken string) (Completion, error) {
	q := url.Values{}
	q.Set("api", a.cfg.APIKey.Reveal())
	q.Set("shortenedUrl", shortURL)
	q.Set("token", userToken)
	req, err := http.NewRequest(http.MethodGet, a.cfg.BaseURL+"/api/check?"+q.Encode(), nil)
	if err != nil {
		return CompletionPending, err
	}

	var out adlinkflyCheckResponse
	code, err := do(ctx, a.client, a.ID(), "check", req, &out)
	if err != nil {
		return CompletionPending, err
	}
	switch {
	case code == http.StatusNotFound:
		return CompletionNotFound, nil
	case code < 200 || code > 299:
		return CompletionPending, statusError(a.ID(), code)
	}

	switch strings.ToLower(out.Status) {
	case "completed", "complete", "done":
		return CompletionCompleted, nil
	case "not_found", "invalid":
		return CompletionNotFound, nil
	default:
		return CompletionPending, nil
	}
}
