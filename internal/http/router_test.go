package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/accordhq/go-accord-backend/internal/config"
	"github.com/accordhq/go-accord-backend/internal/repo"
	"github.com/accordhq/go-accord-backend/internal/services"
	"github.com/accordhq/go-accord-backend/internal/ws"
)

func newRouterDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:router_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:   "/api/v1",
		InviteBaseURL: "http://localhost:8080",
		RateRPS:       100,
		RateBurst:     50,
		CORS:          config.CORSConfig{AllowedOrigins: nil}, // AllowAllOrigins branch
		Security:      config.SecurityConfig{},
		OTEL:          config.OTELConfig{ServiceName: "test-svc"},
	}
}

func newTestRouter(t *testing.T, cfg config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	svc := services.NewNegotiationService(newRouterDB(t), nil, nil)
	RegisterRoutes(r, svc, ws.NewHub(), cfg)
	return r
}

func TestRegisterRoutes_HealthMetricsAndFallbacks(t *testing.T) {
	r := newTestRouter(t, testConfig())

	// Liveness endpoint with allow-all CORS.
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("ACAO = %q, want *", got)
	}
	if w.Header().Get("X-Request-ID") == "" {
		t.Fatal("missing X-Request-ID header")
	}

	// Prometheus endpoint is mounted.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("GET /metrics = %d", w.Code)
	}

	// Unknown routes return the standard envelope.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope = %d", w.Code)
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode 404 body: %v", err)
	}
	if resp["code"] != "not_found" {
		t.Fatalf("404 code = %q", resp["code"])
	}

	// Wrong method on a registered route returns 405.
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/v1/conflicts", nil))
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("PUT /api/v1/conflicts = %d", w.Code)
	}
}

func TestRegisterRoutes_ConflictLifecycleEndToEnd(t *testing.T) {
	r := newTestRouter(t, testConfig())

	body, _ := json.Marshal(map[string]any{
		"title": "Chores",
		"items": []map[string]string{{"title": "Dishes", "value": "alternate"}},
	})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/conflicts", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", "u1")
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}

	var created struct {
		Slug      string `json:"slug"`
		InviteURL string `json:"invite_url"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode create: %v", err)
	}
	if created.InviteURL != "http://localhost:8080/api/v1/conflicts/"+created.Slug+"/join" {
		t.Fatalf("invite url = %q", created.InviteURL)
	}

	// Partner joins through the invite path.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/api/v1/conflicts/"+created.Slug+"/join", nil)
	req.Header.Set("X-User-ID", "u2")
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("join = %d, body = %s", w.Code, w.Body.String())
	}

	// Outsiders cannot see the conflict.
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/conflicts/"+created.Slug, nil)
	req.Header.Set("X-User-ID", "stranger")
	req.Header.Set("Accept-Encoding", "identity")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("outsider get = %d", w.Code)
	}
}

func TestRegisterRoutes_CORSAllowlistEchoesOrigin(t *testing.T) {
	cfg := testConfig()
	cfg.CORS.AllowedOrigins = []string{"https://app.example"}
	r := newTestRouter(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://app.example")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("ACAO = %q", got)
	}

	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)
	if got := w.Header().Get("Access-Control-Allow-Origin"); got == "https://evil.example" {
		t.Fatalf("ACAO echoed disallowed origin %q", got)
	}
}
