// Package transport hands unlocked content to the chat platform.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tbourn/go-linkgate/internal/config"
	"github.com/tbourn/go-linkgate/internal/sysutil"
)

// Payload is what gets posted back into the user's chat session.
type Payload struct {
	ContentID string `json:"content_id"`
	Kind      string `json:"kind"`
	Title     string `json:"title"`
	Text      string `json:"text,omitempty"`
	MediaURL  string `json:"media_url,omitempty"`
}

// Sender delivers a payload to one user.
type Sender interface {
	SendMessage(ctx context.Context, userID string, p Payload) error
}

// LogSender writes payloads to the log instead of a chat platform.
type LogSender struct {
	Logger *zerolog.Logger // nil uses the request logger
}

// SendMessage implements Sender.
func (s LogSender) SendMessage(ctx context.Context, userID string, p Payload) error {
	l := s.Logger
	if l == nil {
		l = sysutil.Logger(ctx)
	}
	l.Info().
		Str("user_id", userID).
		Str("content_id", p.ContentID).
		Str("kind", p.Kind).
		Str("title", p.Title).
		Msg("deliver content")
	return nil
}

// WebhookSender posts payloads as JSON to a chat bot webhook.
//
//	POST {webhook} {"user_id":..., "server_id":..., "content":{...}}
//	Authorization: Bot {token}
type WebhookSender struct {
	url      string
	token    config.Secret
	serverID string
	client   *http.Client
}

// NewWebhookSender builds a sender from chat configuration. A nil client
// selects a traced client with a 10s timeout.
func NewWebhookSender(cfg config.ChatConfig, client *http.Client) *WebhookSender {
	if client == nil {
		client = &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
			Timeout:   10 * time.Second,
		}
	}
	return &WebhookSender{url: cfg.WebhookURL, token: cfg.BotToken, serverID: cfg.ServerID, client: client}
}

type webhookMessage struct {
	UserID   string  `json:"user_id"`
	ServerID string  `json:"server_id,omitempty"`
	Content  Payload `json:"content"`
}

// SendMessage implements Sender. Any non-2xx response is an error.
func (s *WebhookSender) SendMessage(ctx context.Context, userID string, p Payload) error {
	body, err := json.Marshal(webhookMessage{UserID: userID, ServerID: s.serverID, Content: p})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: %w", withoutURL(err))
	}
	req.Header.Set("Content-Type", "application/json")
	if !s.token.IsZero() {
		req.Header.Set("Authorization", "Bot "+s.token.Reveal())
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: %w", withoutURL(err))
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("webhook: unexpected status %d", resp.StatusCode)
	}
	return nil
}

// withoutURL unwraps a *url.Error so the webhook URL, which carries its
// token in the path, never reaches logs or stored delivery errors.
func withoutURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return uerr.Err
	}
	return err
}
