package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smartcitybq/traffic-admin/internal/config"
	"github.com/smartcitybq/traffic-admin/internal/db"
	"github.com/smartcitybq/traffic-admin/internal/iam"
	"github.com/smartcitybq/traffic-admin/internal/mailer"
	"github.com/smartcitybq/traffic-admin/internal/metrics"
	"github.com/smartcitybq/traffic-admin/internal/ratelimit"
	"gorm.io/gorm"
)

const testJWTSecret = "api-test-secret"

func newTestRouter(t *testing.T, loginPerMinute int) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	r := gin.New()
	RegisterRoutes(r, Deps{
		DB:      conn,
		JWT:     config.JWTConfig{Secret: testJWTSecret, Expiry: time.Hour},
		Mailer:  mailer.New(config.SMTPConfig{}),
		Limiter: ratelimit.NewManager(config.RateLimitConfig{LoginPerMinute: loginPerMinute}, nil, nil),
	})
	return r, conn
}

func doJSON(t *testing.T, r *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, errMarshal := json.Marshal(body)
		if errMarshal != nil {
			t.Fatalf("marshal body: %v", errMarshal)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if errDecode := json.Unmarshal(rec.Body.Bytes(), &out); errDecode != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), errDecode)
	}
	return out
}

// createActiveUser creates a user, completes the forced password change
// over HTTP, and returns a valid bearer token for it.
func createActiveUser(t *testing.T, r *gin.Engine, conn *gorm.DB, email, password string) string {
	t.Helper()
	user, errCreate := iam.CreateUser(context.Background(), conn, iam.CreateUserInput{
		Email:          email,
		Name:           "Test User",
		Identification: "id-" + email,
	})
	if errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}
	if user.PasswordResetToken == nil {
		t.Fatalf("expected reset token on new user")
	}

	rec := doJSON(t, r, http.MethodPost, "/api/auth/change-password", "", gin.H{
		"token":    *user.PasswordResetToken,
		"password": password,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("change password: status %d body %s", rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["access_token"].(string)
	if token == "" {
		t.Fatalf("expected access token after password change")
	}
	return token
}

func TestHealthz(t *testing.T) {
	r, _ := newTestRouter(t, 0)
	rec := doJSON(t, r, http.MethodGet, "/healthz", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestLoginFlow(t *testing.T) {
	r, conn := newTestRouter(t, 0)

	user, errCreate := iam.CreateUser(context.Background(), conn, iam.CreateUserInput{
		Email:          "flow@example.com",
		Name:           "Flow",
		Identification: "flow-1",
	})
	if errCreate != nil {
		t.Fatalf("create user: %v", errCreate)
	}

	// Login before the password change is forced to fail.
	rec := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "flow@example.com", "password": "whatever1"})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("pre-change login status = %d, want 403", rec.Code)
	}
	if mustChange, _ := decodeBody(t, rec)["must_change_password"].(bool); !mustChange {
		t.Fatalf("expected must_change_password flag")
	}

	rec = doJSON(t, r, http.MethodPost, "/api/auth/change-password", "", gin.H{
		"token":    *user.PasswordResetToken,
		"password": "s3cret-pass",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("change password status = %d body %s", rec.Code, rec.Body.String())
	}

	// The reset token is single use.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/change-password", "", gin.H{
		"token":    *user.PasswordResetToken,
		"password": "another-pass",
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("token reuse status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "Flow@Example.com", "password": "s3cret-pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("login status = %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	if body["access_token"] == "" || body["token_type"] != "bearer" {
		t.Fatalf("unexpected login payload: %v", body)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "flow@example.com", "password": "wrong-pass"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("bad password status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "ghost@example.com", "password": "whatever1"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("unknown email status = %d, want 401", rec.Code)
	}
}

func TestLoginRateLimit(t *testing.T) {
	r, _ := newTestRouter(t, 2)

	for i := 0; i < 2; i++ {
		rec := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "rl@example.com", "password": "nope-nope"})
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("attempt %d status = %d, want 401", i+1, rec.Code)
		}
	}

	rec := doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "rl@example.com", "password": "nope-nope"})
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("limited attempt status = %d, want 429", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Fatalf("expected Retry-After header")
	}

	// Other accounts keep their own budget.
	rec = doJSON(t, r, http.MethodPost, "/api/auth/login", "", gin.H{"email": "other@example.com", "password": "nope-nope"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("other key status = %d, want 401", rec.Code)
	}
}

func TestAuthMiddleware(t *testing.T) {
	r, conn := newTestRouter(t, 0)
	token := createActiveUser(t, r, conn, "mw@example.com", "s3cret-pass")

	rec := doJSON(t, r, http.MethodGet, "/api/iam/users", "", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no header status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/iam/users", "not-a-jwt", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token status = %d, want 401", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/iam/users", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid token status = %d body %s", rec.Code, rec.Body.String())
	}

	// Deactivated accounts lose access even with a live token.
	user, errFind := iam.GetUserByEmail(context.Background(), conn, "mw@example.com")
	if errFind != nil {
		t.Fatalf("find user: %v", errFind)
	}
	if errDeactivate := iam.DeactivateUser(context.Background(), conn, user.ID); errDeactivate != nil {
		t.Fatalf("deactivate: %v", errDeactivate)
	}
	rec = doJSON(t, r, http.MethodGet, "/api/iam/users", token, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("deactivated user status = %d, want 403", rec.Code)
	}
}

func TestAuthMe(t *testing.T) {
	r, conn := newTestRouter(t, 0)

	modules, errModules := iam.ListModules(context.Background(), conn, iam.ListFilter{})
	if errModules != nil {
		t.Fatalf("list modules: %v", errModules)
	}
	if len(modules) == 0 {
		t.Fatalf("expected seeded modules")
	}
	moduleIDs := []uint64{modules[0].ID, modules[1].ID}
	role, errRole := iam.CreateRole(context.Background(), conn, iam.CreateRoleInput{
		Name:      "Operators",
		ModuleIDs: &moduleIDs,
	})
	if errRole != nil {
		t.Fatalf("create role: %v", errRole)
	}

	token := createActiveUser(t, r, conn, "me@example.com", "s3cret-pass")
	user, errFind := iam.GetUserByEmail(context.Background(), conn, "me@example.com")
	if errFind != nil {
		t.Fatalf("find user: %v", errFind)
	}
	roleIDs := []uint64{role.ID}
	if _, errUpdate := iam.UpdateUser(context.Background(), conn, user.ID, iam.UpdateUserInput{RoleIDs: &roleIDs}); errUpdate != nil {
		t.Fatalf("assign role: %v", errUpdate)
	}

	rec := doJSON(t, r, http.MethodGet, "/api/auth/me", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("me status = %d body %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	roles, _ := body["roles"].([]any)
	if len(roles) != 1 {
		t.Fatalf("roles = %v, want 1 entry", body["roles"])
	}
	grantedModules, _ := body["modules"].([]any)
	if len(grantedModules) != 2 {
		t.Fatalf("modules = %v, want 2 entries", body["modules"])
	}
}

func TestUserEndpoints(t *testing.T) {
	r, conn := newTestRouter(t, 0)
	token := createActiveUser(t, r, conn, "admin@example.com", "s3cret-pass")

	role, errRole := iam.CreateRole(context.Background(), conn, iam.CreateRoleInput{Name: "Viewers"})
	if errRole != nil {
		t.Fatalf("create role: %v", errRole)
	}

	rec := doJSON(t, r, http.MethodPost, "/api/iam/users", token, gin.H{
		"email":          "new@example.com",
		"name":           "New User",
		"identification": "new-1",
		"role_ids":       []uint64{role.ID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body %s", rec.Code, rec.Body.String())
	}
	created := decodeBody(t, rec)
	userID := uint64(created["id"].(float64))

	rec = doJSON(t, r, http.MethodPost, "/api/iam/users", token, gin.H{
		"email":          "new@example.com",
		"name":           "Duplicate",
		"identification": "new-2",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate email status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/iam/users", token, gin.H{
		"email":          "bad@example.com",
		"name":           "Bad Roles",
		"identification": "bad-1",
		"role_ids":       []uint64{9999},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown role status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/iam/users/%d", userID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if roles, _ := decodeBody(t, rec)["roles"].([]any); len(roles) != 1 {
		t.Fatalf("expected 1 role on created user")
	}

	// An empty role list clears assignments, nil leaves them alone.
	rec = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/iam/users/%d", userID), token, gin.H{
		"name":     "Renamed User",
		"role_ids": []uint64{},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body %s", rec.Code, rec.Body.String())
	}
	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/iam/users/%d", userID), token, nil)
	body := decodeBody(t, rec)
	if body["name"] != "Renamed User" {
		t.Fatalf("name = %v, want Renamed User", body["name"])
	}
	if roles, _ := body["roles"].([]any); len(roles) != 0 {
		t.Fatalf("expected cleared roles, got %v", body["roles"])
	}

	rec = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/iam/users/%d", userID), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/iam/users/%d", userID), token, nil)
	if active, _ := decodeBody(t, rec)["active"].(bool); active {
		t.Fatalf("expected deactivated user after delete")
	}

	rec = doJSON(t, r, http.MethodPut, "/api/iam/users/424242", token, gin.H{"name": "Ghost"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("update missing status = %d, want 404", rec.Code)
	}
}

func TestRoleEndpoints(t *testing.T) {
	r, conn := newTestRouter(t, 0)
	token := createActiveUser(t, r, conn, "roles@example.com", "s3cret-pass")

	modules, errModules := iam.ListModules(context.Background(), conn, iam.ListFilter{})
	if errModules != nil {
		t.Fatalf("list modules: %v", errModules)
	}

	rec := doJSON(t, r, http.MethodPost, "/api/iam/roles", token, gin.H{
		"name":       "Supervisors",
		"module_ids": []uint64{modules[0].ID},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body %s", rec.Code, rec.Body.String())
	}
	roleID := uint64(decodeBody(t, rec)["id"].(float64))

	rec = doJSON(t, r, http.MethodPost, "/api/iam/roles", token, gin.H{"name": "Supervisors"})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate name status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/iam/roles", token, gin.H{
		"name":       "Broken",
		"module_ids": []uint64{9999},
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown module status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/iam/roles/%d", roleID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	if grants, _ := decodeBody(t, rec)["modules"].([]any); len(grants) != 1 {
		t.Fatalf("expected 1 module grant")
	}

	rec = doJSON(t, r, http.MethodGet, "/api/iam/roles/with-modules", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list with modules status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/iam/roles/%d", roleID), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
}

func TestModuleEndpoints(t *testing.T) {
	r, conn := newTestRouter(t, 0)
	token := createActiveUser(t, r, conn, "modules@example.com", "s3cret-pass")

	rec := doJSON(t, r, http.MethodGet, "/api/iam/modules", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	modules, _ := decodeBody(t, rec)["modules"].([]any)
	if len(modules) < 4 {
		t.Fatalf("modules = %d, want at least the seeded set", len(modules))
	}

	first := modules[0].(map[string]any)
	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/iam/modules/%.0f", first["id"].(float64)), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/iam/modules/424242", token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("missing module status = %d, want 404", rec.Code)
	}
}

func TestLocationEndpoints(t *testing.T) {
	r, conn := newTestRouter(t, 0)
	token := createActiveUser(t, r, conn, "locations@example.com", "s3cret-pass")

	rec := doJSON(t, r, http.MethodPost, "/api/traffic/locations", token, gin.H{
		"name":      "Av. Circunvalar y Calle 30",
		"latitude":  10.9878,
		"longitude": -74.7889,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d body %s", rec.Code, rec.Body.String())
	}
	locID := uint64(decodeBody(t, rec)["id"].(float64))

	rec = doJSON(t, r, http.MethodPost, "/api/traffic/locations", token, gin.H{
		"name":      "Out Of Range",
		"latitude":  123.0,
		"longitude": 0.0,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad coordinates status = %d, want 400", rec.Code)
	}

	rec = doJSON(t, r, http.MethodPost, "/api/traffic/locations", token, gin.H{
		"name":      "Av. Circunvalar y Calle 30",
		"latitude":  10.0,
		"longitude": -74.0,
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate name status = %d, want 409", rec.Code)
	}

	rec = doJSON(t, r, http.MethodGet, "/api/traffic/locations?search=circunvalar", token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	if rows, _ := decodeBody(t, rec)["locations"].([]any); len(rows) != 1 {
		t.Fatalf("search results = %v, want 1", rows)
	}

	rec = doJSON(t, r, http.MethodPut, fmt.Sprintf("/api/traffic/locations/%d", locID), token, gin.H{
		"description": "Camera 4, northbound",
		"latitude":    11.0001,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update status = %d body %s", rec.Code, rec.Body.String())
	}
	if desc := decodeBody(t, rec)["description"]; desc != "Camera 4, northbound" {
		t.Fatalf("description = %v", desc)
	}

	rec = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/traffic/locations/%d", locID), token, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", rec.Code)
	}
	rec = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/traffic/locations/%d", locID), token, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}

	// Soft-deleted rows stay readable.
	rec = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/traffic/locations/%d", locID), token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get after delete status = %d", rec.Code)
	}
	if active, _ := decodeBody(t, rec)["active"].(bool); active {
		t.Fatalf("expected inactive location after delete")
	}
}

func TestChartEndpointsUnavailableBackend(t *testing.T) {
	gin.SetMode(gin.TestMode)

	conn, errOpen := db.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()))
	if errOpen != nil {
		t.Fatalf("open db: %v", errOpen)
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	// A manager with no URI fails on first use, standing in for an
	// unreachable Mongo backend.
	charts := metrics.NewManager(config.MongoConfig{})
	r := gin.New()
	RegisterRoutes(r, Deps{
		DB:      conn,
		JWT:     config.JWTConfig{Secret: testJWTSecret, Expiry: time.Hour},
		Mailer:  mailer.New(config.SMTPConfig{}),
		Limiter: ratelimit.NewManager(config.RateLimitConfig{}, nil, nil),
		Charts:  charts,
	})
	token := createActiveUser(t, r, conn, "charts@example.com", "s3cret-pass")

	rec := doJSON(t, r, http.MethodGet, "/api/charts/summary", token, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("summary status = %d, want 500", rec.Code)
	}
	if msg, _ := decodeBody(t, rec)["error"].(string); msg == "" {
		t.Fatalf("expected error body, got %s", rec.Body.String())
	}

	rec = doJSON(t, r, http.MethodGet, "/api/charts/vehicle-timeline", token, nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("timeline status = %d, want 500", rec.Code)
	}
}
