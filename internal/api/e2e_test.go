package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/platformhub/platformhub/internal/auth"
	"github.com/platformhub/platformhub/internal/config"
	"github.com/platformhub/platformhub/internal/db/models"
	"github.com/platformhub/platformhub/internal/middleware"
	"github.com/platformhub/platformhub/internal/services"
	"github.com/platformhub/platformhub/internal/services/servicetest"
)

func TestMain(m *testing.M) {
	auth.BcryptCost = bcrypt.MinCost
	os.Exit(m.Run())
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type harness struct {
	t        *testing.T
	router   *gin.Engine
	auth     *services.AuthService
	archiver *servicetest.Archiver
}

func newHarness(t *testing.T, limiter middleware.Limiter) *harness {
	t.Helper()
	tokens, err := auth.NewTokenManager("e2e-secret", "HS256", time.Hour)
	require.NoError(t, err)

	store := servicetest.NewStore()
	archiver := &servicetest.Archiver{}
	authSvc := services.NewAuthService(store.Users(), tokens)
	cfg := &config.Config{App: config.AppConfig{Version: "test"}}
	router := NewEngine(cfg, Dependencies{
		DB:       okPinger{},
		Auth:     authSvc,
		Requests: services.NewRequestService(store.Requests(), store.Audits(), nil),
		Reviews:  services.NewReviewService(store.Requests(), nil, archiver),
		Limiter:  limiter,
	})
	return &harness{t: t, router: router, auth: authSvc, archiver: archiver}
}

func (h *harness) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	h.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(h.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *harness) login(username, password string) *httptest.ResponseRecorder {
	h.t.Helper()
	form := url.Values{"username": {username}, "password": {password}}
	req := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

// account registers username, optionally promotes it and returns a token.
func (h *harness) account(username string, role models.Role) string {
	h.t.Helper()
	w := h.do(http.MethodPost, "/auth/register", "", gin.H{
		"username": username, "email": username + "@example.com", "password": "password123",
	})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	if role != models.RoleDeveloper {
		_, err := h.auth.SetRole(context.Background(), nil, username, role)
		require.NoError(h.t, err)
	}
	w = h.login(username, "password123")
	require.Equal(h.t, http.StatusOK, w.Code, w.Body.String())
	var tok services.Token
	require.NoError(h.t, json.Unmarshal(w.Body.Bytes(), &tok))
	assert.Equal(h.t, "bearer", tok.TokenType)
	return tok.AccessToken
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	return decode[map[string]string](t, w)["error"]
}

func (h *harness) submit(token string, typ, name, env string, params map[string]string) models.ResourceRequest {
	h.t.Helper()
	w := h.do(http.MethodPost, "/requests", token, gin.H{
		"resource_type": typ, "name": name, "environment": env, "parameters": params,
	})
	require.Equal(h.t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.ResourceRequest](h.t, w)
}

func (h *harness) review(token string, id int64, action, comment string) *httptest.ResponseRecorder {
	return h.do(http.MethodPost, "/admin/"+strconv.FormatInt(id, 10)+"/review", token, gin.H{"action": action, "comment": comment})
}

// ---------------------------------------------------------------------------
// Accounts
// ---------------------------------------------------------------------------

func TestE2E_RegisterAndMe(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodPost, "/auth/register", "", gin.H{"username": "alice", "email": "alice@example.com", "password": "password123"})
	require.Equal(t, http.StatusCreated, w.Code)
	user := decode[map[string]interface{}](t, w)
	assert.Equal(t, "alice", user["username"])
	assert.Equal(t, "developer", user["role"])
	assert.NotContains(t, w.Body.String(), "password")

	w = h.do(http.MethodPost, "/auth/register", "", gin.H{"username": "alice", "email": "x@example.com", "password": "password123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Username or email already registered", errorOf(t, w))

	w = h.do(http.MethodPost, "/auth/register", "", gin.H{"username": "bo", "email": "bo@example.com", "password": "password123"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.do(http.MethodPost, "/auth/register", "", gin.H{"username": "bob", "email": "bob@example.com", "password": strings.Repeat("p", 73)})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	tok := h.login("alice", "password123")
	require.Equal(t, http.StatusOK, tok.Code)
	token := decode[services.Token](t, tok).AccessToken

	w = h.do(http.MethodGet, "/auth/me", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "alice", decode[map[string]interface{}](t, w)["username"])
}

func TestE2E_LoginFailuresAreIdentical(t *testing.T) {
	h := newHarness(t, nil)
	h.account("alice", models.RoleDeveloper)

	wrong := h.login("alice", "wrong-password")
	unknown := h.login("nobody", "password123")
	assert.Equal(t, http.StatusUnauthorized, wrong.Code)
	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, wrong.Body.String(), unknown.Body.String())
	assert.Equal(t, "Incorrect username or password", errorOf(t, wrong))
}

func TestE2E_Unauthenticated(t *testing.T) {
	h := newHarness(t, nil)
	for _, path := range []string{"/requests", "/requests/1", "/auth/me", "/admin/pending"} {
		w := h.do(http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := h.do(http.MethodGet, "/requests", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Could not validate credentials", errorOf(t, w))
}

func TestE2E_LoginRateLimited(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimitConfig{RequestsPerMinute: 1, BurstSize: 2})
	defer limiter.Close()
	h := newHarness(t, limiter)

	assert.Equal(t, http.StatusUnauthorized, h.login("nobody", "x").Code)
	assert.Equal(t, http.StatusUnauthorized, h.login("nobody", "x").Code)
	assert.Equal(t, http.StatusTooManyRequests, h.login("nobody", "x").Code)

	// The catalog is not behind the limiter.
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/catalog", "", nil).Code)
}

// ---------------------------------------------------------------------------
// Catalog
// ---------------------------------------------------------------------------

func TestE2E_Catalog(t *testing.T) {
	h := newHarness(t, nil)

	w := h.do(http.MethodGet, "/catalog", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	items := decode[[]map[string]interface{}](t, w)
	require.Len(t, items, 3)
	assert.Equal(t, "k8s_namespace", items[0]["resource_type"])
	assert.Equal(t, "s3_bucket", items[1]["resource_type"])
	assert.Equal(t, "rds_database", items[2]["resource_type"])

	w = h.do(http.MethodGet, "/catalog/rds_database", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "RDS Database", decode[map[string]interface{}](t, w)["display_name"])

	w = h.do(http.MethodGet, "/catalog/vm", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// ---------------------------------------------------------------------------
// Request lifecycle
// ---------------------------------------------------------------------------

func TestE2E_NamespaceApproval(t *testing.T) {
	h := newHarness(t, nil)
	dev := h.account("alice", models.RoleDeveloper)
	approver := h.account("carol", models.RoleApprover)

	req := h.submit(dev, "k8s_namespace", "team-api", "staging", map[string]string{"team": "platform"})
	assert.Equal(t, models.StatusPending, req.Status)
	assert.Nil(t, req.GeneratedManifest)

	w := h.do(http.MethodGet, "/admin/pending", approver, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ResourceRequest](t, w), 1)

	w = h.review(approver, req.ID, "approved", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[models.ResourceRequest](t, w)
	assert.Equal(t, models.StatusApproved, got.Status)
	require.NotNil(t, got.GeneratedManifest)
	assert.Contains(t, *got.GeneratedManifest, "team-api-staging")
	assert.Contains(t, *got.GeneratedManifest, "ResourceQuota")

	path := "/requests/" + strconv.FormatInt(req.ID, 10)
	w = h.do(http.MethodGet, path+"/manifest", dev, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="team-api-staging.yaml"`, w.Header().Get("Content-Disposition"))
	etag := w.Header().Get("ETag")
	assert.NotEmpty(t, etag)
	assert.Equal(t, *got.GeneratedManifest, w.Body.String())

	cached := httptest.NewRequest(http.MethodGet, path+"/manifest", nil)
	cached.Header.Set("Authorization", "Bearer "+dev)
	cached.Header.Set("If-None-Match", etag)
	cw := httptest.NewRecorder()
	h.router.ServeHTTP(cw, cached)
	assert.Equal(t, http.StatusNotModified, cw.Code)

	w = h.do(http.MethodGet, path+"/audit", dev, nil)
	require.Equal(t, http.StatusOK, w.Code)
	trail := decode[[]map[string]interface{}](t, w)
	require.Len(t, trail, 2)
	assert.Equal(t, "created", trail[0]["action"])
	assert.Equal(t, "alice", trail[0]["actor"])
	assert.Equal(t, "approved", trail[1]["action"])
	assert.Equal(t, "carol", trail[1]["actor"])

	assert.Equal(t, []int64{req.ID}, h.archiver.Calls())
}

func TestE2E_BucketApproval(t *testing.T) {
	h := newHarness(t, nil)
	dev := h.account("alice", models.RoleDeveloper)
	admin := h.account("root", models.RoleAdmin)

	req := h.submit(dev, "s3_bucket", "app-assets", "production", map[string]string{"versioning": "false", "region": "us-east-1"})
	w := h.review(admin, req.ID, "approved", "ship it")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m := *decode[models.ResourceRequest](t, w).GeneratedManifest

	assert.Contains(t, m, "app-assets-production")
	assert.Contains(t, m, "aws_s3_bucket")
	assert.Contains(t, m, "block_public_acls")
	assert.Contains(t, m, "us-east-1")
	assert.Contains(t, m, "Suspended")

	w = h.do(http.MethodGet, "/requests/"+strconv.FormatInt(req.ID, 10)+"/manifest", dev, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "app-assets-production.tf")
}

func TestE2E_DatabaseApproval(t *testing.T) {
	h := newHarness(t, nil)
	dev := h.account("alice", models.RoleDeveloper)
	approver := h.account("carol", models.RoleApprover)

	req := h.submit(dev, "rds_database", "orders-db", "dev", nil)
	w := h.review(approver, req.ID, "approved", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	m := *decode[models.ResourceRequest](t, w).GeneratedManifest

	assert.Contains(t, m, "aws_db_instance")
	assert.Contains(t, m, "orders-db-dev")
	assert.Contains(t, m, "storage_encrypted")
}

func TestE2E_Reject(t *testing.T) {
	h := newHarness(t, nil)
	dev := h.account("alice", models.RoleDeveloper)
	approver := h.account("carol", models.RoleApprover)

	req := h.submit(dev, "s3_bucket", "scratch", "dev", nil)
	w := h.review(approver, req.ID, "rejected", "use the shared bucket")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[models.ResourceRequest](t, w)
	assert.Equal(t, models.StatusRejected, got.Status)
	assert.Nil(t, got.GeneratedManifest)
	require.NotNil(t, got.ReviewComment)
	assert.Equal(t, "use the shared bucket", *got.ReviewComment)

	w = h.do(http.MethodGet, "/requests/"+strconv.FormatInt(req.ID, 10)+"/manifest", dev, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "Manifest not available", errorOf(t, w))
	assert.Empty(t, h.archiver.Calls())
}

func TestE2E_ReviewErrors(t *testing.T) {
	h := newHarness(t, nil)
	dev := h.account("alice", models.RoleDeveloper)
	approver := h.account("carol", models.RoleApprover)
	req := h.submit(dev, "s3_bucket", "app-assets", "production", nil)

	w := h.review(dev, req.ID, "approved", "")
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Insufficient permissions", errorOf(t, w))

	w = h.review(approver, 999, "approved", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.review(approver, req.ID, "maybe", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Action must be 'approved' or 'rejected'", errorOf(t, w))

	w = h.do(http.MethodPost, "/admin/abc/review", approver, gin.H{"action": "approved"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	require.Equal(t, http.StatusOK, h.review(approver, req.ID, "approved", "").Code)
	for _, action := range []string{"approved", "rejected"} {
		w = h.review(approver, req.ID, action, "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Request is already approved", errorOf(t, w))
	}
}

func TestE2E_Visibility(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.account("alice", models.RoleDeveloper)
	bob := h.account("bob", models.RoleDeveloper)
	approver := h.account("carol", models.RoleApprover)
	admin := h.account("root", models.RoleAdmin)

	req := h.submit(alice, "s3_bucket", "app-assets", "dev", nil)
	path := "/requests/" + strconv.FormatInt(req.ID, 10)

	w := h.do(http.MethodGet, path, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Not authorized to view this request", errorOf(t, w))
	assert.Equal(t, http.StatusForbidden, h.do(http.MethodGet, path+"/audit", bob, nil).Code)

	for _, token := range []string{alice, approver, admin} {
		assert.Equal(t, http.StatusOK, h.do(http.MethodGet, path, token, nil).Code)
	}

	assert.Equal(t, http.StatusNotFound, h.do(http.MethodGet, "/requests/999", alice, nil).Code)

	w = h.do(http.MethodGet, "/requests", bob, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.ResourceRequest](t, w))

	w = h.do(http.MethodGet, "/requests?status=pending", approver, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.ResourceRequest](t, w), 1)

	assert.Equal(t, http.StatusUnprocessableEntity, h.do(http.MethodGet, "/requests?status=done", approver, nil).Code)
}

func TestE2E_CreateValidation(t *testing.T) {
	h := newHarness(t, nil)
	dev := h.account("alice", models.RoleDeveloper)

	bodies := []gin.H{
		{"resource_type": "vm", "name": "box", "environment": "dev"},
		{"resource_type": "s3_bucket", "name": "Bad_Name", "environment": "dev"},
		{"resource_type": "s3_bucket", "name": "assets", "environment": "prod"},
		{"resource_type": "s3_bucket", "name": "assets", "environment": "dev", "parameters": gin.H{"versioning": "maybe"}},
	}
	long := gin.H{"resource_type": "k8s_namespace", "name": "a" + strings.Repeat("b", 59), "environment": "dev"}
	bodies = append(bodies, long)
	for _, b := range bodies {
		w := h.do(http.MethodPost, "/requests", dev, b)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code, "%v -> %s", b, w.Body.String())
	}

	req := httptest.NewRequest(http.MethodPost, "/requests", strings.NewReader("{not json"))
	req.Header.Set("Authorization", "Bearer "+dev)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestE2E_SetRole(t *testing.T) {
	h := newHarness(t, nil)
	alice := h.account("alice", models.RoleDeveloper)
	approver := h.account("carol", models.RoleApprover)
	admin := h.account("root", models.RoleAdmin)

	w := h.do(http.MethodPut, "/admin/users/alice/role", approver, gin.H{"role": "admin"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(http.MethodPut, "/admin/users/alice/role", admin, gin.H{"role": "superuser"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = h.do(http.MethodPut, "/admin/users/nobody/role", admin, gin.H{"role": "approver"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = h.do(http.MethodPut, "/admin/users/alice/role", admin, gin.H{"role": "approver"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "approver", decode[map[string]interface{}](t, w)["role"])

	// The stored role applies to the existing token immediately.
	assert.Equal(t, http.StatusOK, h.do(http.MethodGet, "/admin/pending", alice, nil).Code)
}

func TestE2E_Health(t *testing.T) {
	h := newHarness(t, nil)
	w := h.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]string{"status": "ok", "version": "test"}, decode[map[string]string](t, w))
	assert.NotEmpty(t, w.Header().Get(middleware.RequestIDHeader))
}
