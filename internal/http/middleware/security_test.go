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

func secureRouter(opt SecurityOptions, pre ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	for _, h := range pre {
		r.Use(h)
	}
	r.Use(SecurityHeaders(opt))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestSecurityHeaders_Baseline(t *testing.T) {
	w := httptest.NewRecorder()
	secureRouter(SecurityOptions{}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	h := w.Header()
	if h.Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("nosniff = %q", h.Get("X-Content-Type-Options"))
	}
	if h.Get("X-Frame-Options") != "DENY" {
		t.Fatalf("frame options = %q", h.Get("X-Frame-Options"))
	}
	if h.Get("Referrer-Policy") != "no-referrer" {
		t.Fatalf("referrer policy = %q", h.Get("Referrer-Policy"))
	}
	// Opt-in headers stay absent by default.
	for _, absent := range []string{"Permissions-Policy", "Cache-Control", "Strict-Transport-Security"} {
		if h.Get(absent) != "" {
			t.Fatalf("unexpected %s: %q", absent, h.Get(absent))
		}
	}
}

func TestSecurityHeaders_OptIns(t *testing.T) {
	w := httptest.NewRecorder()
	secureRouter(SecurityOptions{NoStore: true, EnablePolicy: true}).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	h := w.Header()
	if h.Get("Cache-Control") != "no-store" {
		t.Fatalf("cache control = %q", h.Get("Cache-Control"))
	}
	if !strings.Contains(h.Get("Permissions-Policy"), "geolocation=()") {
		t.Fatalf("permissions policy = %q", h.Get("Permissions-Policy"))
	}
}

func TestSecurityHeaders_HSTSOnlyOverHTTPS(t *testing.T) {
	opt := SecurityOptions{EnableHSTS: true, HSTSMaxAge: time.Hour}

	// Plain HTTP: never emitted.
	w := httptest.NewRecorder()
	secureRouter(opt).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Header().Get("Strict-Transport-Security") != "" {
		t.Fatal("HSTS emitted over plain HTTP")
	}

	// Direct TLS.
	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.TLS = &tls.ConnectionState{}
	secureRouter(opt).ServeHTTP(w, req)
	if got := w.Header().Get("Strict-Transport-Security"); !strings.Contains(got, "max-age=3600") {
		t.Fatalf("HSTS = %q", got)
	}

	// Behind a terminating proxy.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-Proto", "https")
	secureRouter(opt).ServeHTTP(w, req)
	if w.Header().Get("Strict-Transport-Security") == "" {
		t.Fatal("HSTS missing behind HTTPS proxy")
	}
}

func TestSecurityHeaders_ExposesRequestID(t *testing.T) {
	w := httptest.NewRecorder()
	secureRouter(SecurityOptions{}, RequestID()).
		ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "X-Request-ID") {
		t.Fatalf("expose headers = %q", got)
	}
}
