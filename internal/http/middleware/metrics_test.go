package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_CountersAndPathLabels(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/conflicts/:slug", func(c *gin.Context) {
		c.String(http.StatusOK, "body")
	})
	r.DELETE("/conflicts/:slug", func(c *gin.Context) {
		c.Status(http.StatusNoContent) // no body, size stays -1
	})

	// Baselines so other tests in the package cannot interfere.
	baseOK := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/conflicts/:slug", "200"))
	base404 := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404"))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/conflicts/abc", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/conflicts/abc", nil))

	// The path label must be the registered route pattern, not the raw URL.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/conflicts/:slug", "200")); got != baseOK+1 {
		t.Fatalf("route-pattern counter = %v, want %v", got, baseOK+1)
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/conflicts/abc", "200")); got != 0 {
		t.Fatalf("raw-path counter = %v, want 0", got)
	}
	// Unmatched routes fall back to the raw URL path.
	if got := testutil.ToFloat64(httpReqs.WithLabelValues("GET", "/nope", "404")); got != base404+1 {
		t.Fatalf("fallback counter = %v, want %v", got, base404+1)
	}

	// In-flight gauge returns to zero once requests complete.
	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v, want 0", got)
	}
}
