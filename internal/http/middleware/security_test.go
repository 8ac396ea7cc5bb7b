package middleware

import (
	"crypto/tls"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func serveSecurity(t *testing.T, opt SecurityOptions, req *http.Request) http.Header {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header("X-Request-ID", "rid-123"); c.Next() })
	r.Use(SecurityHeaders(opt))
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/gates", func(c *gin.Context) { c.String(http.StatusOK, "gate") })
	r.GET("/l/:token", func(c *gin.Context) { c.String(http.StatusOK, "landing") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header()
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	h := serveSecurity(t, SecurityOptions{}, httptest.NewRequest(http.MethodGet, "/ok", nil))

	if h.Get("X-Content-Type-Options") != "nosniff" ||
		h.Get("X-Frame-Options") != "DENY" ||
		h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("baseline headers missing: %#v", h)
	}
	for _, k := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security"} {
		if h.Get(k) != "" {
			t.Fatalf("unexpected %s: %q", k, h.Get(k))
		}
	}
	if h.Get("Access-Control-Expose-Headers") != "X-Request-ID" {
		t.Fatalf("expose header = %q", h.Get("Access-Control-Expose-Headers"))
	}
}

func TestSecurityHeaders_RouteScopedNoStore(t *testing.T) {
	opt := SecurityOptions{NoStoreRoutes: []string{"/gates", "/l/:token"}}

	for _, p := range []string{"/gates", "/l/tok"} {
		h := serveSecurity(t, opt, httptest.NewRequest(http.MethodGet, p, nil))
		if h.Get("Cache-Control") != "no-store" || h.Get("Pragma") != "no-cache" {
			t.Fatalf("%s headers: %#v", p, h)
		}
	}

	h := serveSecurity(t, opt, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if h.Get("Cache-Control") != "" {
		t.Fatalf("/ok should be cacheable: %#v", h)
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour, EnablePolicy: true}

	h := serveSecurity(t, opt, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if h.Get("Strict-Transport-Security") != "" {
		t.Fatalf("HSTS over plain HTTP: %q", h.Get("Strict-Transport-Security"))
	}
	if h.Get("Permissions-Policy") == "" {
		t.Fatal("expected Permissions-Policy")
	}

	req := httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.TLS = &tls.ConnectionState{}
	h = serveSecurity(t, opt, req)
	if got := h.Get("Strict-Transport-Security"); got != "max-age=3600; includeSubDomains; preload" {
		t.Fatalf("HSTS = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/ok", nil)
	req.Header.Set("X-Forwarded-Proto", "HTTPS")
	h = serveSecurity(t, SecurityOptions{EnableHSTS: true}, req)
	if !strings.HasPrefix(h.Get("Strict-Transport-Security"), "max-age=15552000;") {
		t.Fatalf("default HSTS = %q", h.Get("Strict-Transport-Security"))
	}
}
