package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/platformhub/platformhub/internal/config"
)

func headersFor(mw gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := gin.New()
	if mw != nil {
		r.Use(mw)
	}
	r.Any("/", func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestSecurityHeadersMiddleware_APIConfig(t *testing.T) {
	w := headersFor(SecurityHeadersMiddleware(APISecurityHeadersConfig()), httptest.NewRequest(http.MethodGet, "/", nil))

	want := map[string]string{
		"Strict-Transport-Security":    "max-age=31536000; includeSubDomains",
		"X-Frame-Options":              "DENY",
		"X-Content-Type-Options":       "nosniff",
		"Content-Security-Policy":      "default-src 'none'; frame-ancestors 'none'",
		"Referrer-Policy":              "no-referrer",
		"Cross-Origin-Resource-Policy": "same-origin",
	}
	for h, v := range want {
		if got := w.Header().Get(h); got != v {
			t.Errorf("%s = %q, want %q", h, got, v)
		}
	}
}

func TestSecurityHeadersMiddleware_Disabled(t *testing.T) {
	w := headersFor(SecurityHeadersMiddleware(SecurityHeadersConfig{}), httptest.NewRequest(http.MethodGet, "/", nil))

	for _, h := range []string{"Strict-Transport-Security", "X-Frame-Options", "Content-Security-Policy", "Referrer-Policy"} {
		if got := w.Header().Get(h); got != "" {
			t.Errorf("%s = %q, want unset", h, got)
		}
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("nosniff should always be set")
	}
}

// ---------------------------------------------------------------------------
// CORS
// ---------------------------------------------------------------------------

func TestCORSMiddleware_NoOrigins(t *testing.T) {
	if CORSMiddleware(config.CORSConfig{}) != nil {
		t.Error("expected nil handler without configured origins")
	}
}

func TestCORSConfig_Wildcard(t *testing.T) {
	cc := CORSConfig(config.CORSConfig{AllowedOrigins: []string{"https://a.example", "*"}})
	if !cc.AllowAllOrigins || cc.AllowCredentials {
		t.Errorf("wildcard config = %+v", cc)
	}
	if len(cc.AllowMethods) != len(defaultCORSMethods) {
		t.Errorf("AllowMethods = %v", cc.AllowMethods)
	}
}

func TestCORSMiddleware_Preflight(t *testing.T) {
	mw := CORSMiddleware(config.CORSConfig{AllowedOrigins: []string{"https://portal.example"}})

	req := httptest.NewRequest(http.MethodOptions, "/", nil)
	req.Header.Set("Origin", "https://portal.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	w := headersFor(mw, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("preflight status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://portal.example" {
		t.Errorf("Allow-Origin = %q", got)
	}

	other := httptest.NewRequest(http.MethodGet, "/", nil)
	other.Header.Set("Origin", "https://evil.example")
	if w := headersFor(mw, other); w.Code != http.StatusForbidden {
		t.Errorf("disallowed origin status = %d, want 403", w.Code)
	}
}
