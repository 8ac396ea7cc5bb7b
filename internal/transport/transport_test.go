package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-linkgate/internal/config"
)

func TestWebhookSender_PostsJSON(t *testing.T) {
	var got webhookMessage
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	s := NewWebhookSender(config.ChatConfig{BotToken: "bot-tok", ServerID: "guild-1", WebhookURL: srv.URL}, srv.Client())
	p := Payload{ContentID: "c1", Kind: "text", Title: "Hello", Text: "secret text"}
	if err := s.SendMessage(context.Background(), "u1", p); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	if auth != "Bot bot-tok" {
		t.Fatalf("Authorization = %q", auth)
	}
	if got.UserID != "u1" || got.ServerID != "guild-1" || got.Content != p {
		t.Fatalf("body = %+v", got)
	}
}

func TestWebhookSender_Non2xxIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewWebhookSender(config.ChatConfig{WebhookURL: srv.URL}, srv.Client())
	err := s.SendMessage(context.Background(), "u1", Payload{ContentID: "c1"})
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Fatalf("err = %v", err)
	}
}

func TestWebhookSender_ErrorsOmitWebhookURL(t *testing.T) {
	for _, raw := range []string{
		"http://127.0.0.1:1/api/webhooks/42/SUPERSECRETTOKEN",
		"http://127.0.0.1:1/api/webhooks/42/SUPERSECRETTOKEN\x7f",
	} {
		s := NewWebhookSender(config.ChatConfig{WebhookURL: raw}, nil)
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := s.SendMessage(ctx, "u1", Payload{ContentID: "c1"})
		cancel()
		if err == nil {
			t.Fatalf("%q: expected an error", raw)
		}
		if strings.Contains(err.Error(), "SUPERSECRETTOKEN") || strings.Contains(err.Error(), "/api/webhooks") {
			t.Fatalf("error leaks the webhook URL: %v", err)
		}
	}
}

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	l := zerolog.New(&buf)
	if err := (LogSender{Logger: &l}).SendMessage(context.Background(), "u1", Payload{ContentID: "c1", Kind: "image", Title: "Pic"}); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	out := buf.String()
	for _, want := range []string{`"user_id":"u1"`, `"content_id":"c1"`, `"kind":"image"`} {
		if !strings.Contains(out, want) {
			t.Fatalf("log %q missing %s", out, want)
		}
	}
}
