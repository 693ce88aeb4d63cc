package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	masterdata "energy-billing/internal/masterdata/domain"
	mdmemory "energy-billing/internal/masterdata/infrastructure/memory"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if TenantIDFromContext(r.Context()) == "" {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
}

func serve(t *testing.T, method, path, token string) int {
	t.Helper()
	policy := NewDefaultPolicy([]string{"/healthz"}, nil)
	handler := NewMiddleware([]byte("test-secret"), policy, nil).Wrap(okHandler())

	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	return resp.Code
}

func TestAuthMiddleware_NoToken(t *testing.T) {
	if code := serve(t, http.MethodGet, "/api/v1/energy", ""); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestAuthMiddleware_ExemptPath(t *testing.T) {
	policy := NewDefaultPolicy([]string{"/healthz"}, nil)
	handler := NewMiddleware([]byte("test-secret"), policy, nil).Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthMiddleware_ViewerReadsEnergy(t *testing.T) {
	token := mustToken(t, []byte("test-secret"), "tenant-a", "viewer")
	if code := serve(t, http.MethodGet, "/api/v1/energy/realtime", token); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestAuthMiddleware_ViewerForbiddenBillingWrite(t *testing.T) {
	token := mustToken(t, []byte("test-secret"), "tenant-a", "viewer")
	if code := serve(t, http.MethodPut, "/api/v1/billing/usage-facts/u-1", token); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
	if code := serve(t, http.MethodPost, "/api/v1/billing/subscriptions/s-1/cancel", token); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestAuthMiddleware_AdminBillingWrite(t *testing.T) {
	token := mustToken(t, []byte("test-secret"), "tenant-a", "admin")
	if code := serve(t, http.MethodPost, "/api/v1/billing/subscriptions", token); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestAuthMiddleware_WrongSecret(t *testing.T) {
	token := mustToken(t, []byte("other-secret"), "tenant-a", "admin")
	if code := serve(t, http.MethodGet, "/api/v1/energy", token); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestIssueJWTRoundTrip(t *testing.T) {
	secret := []byte("test-secret")
	token, err := IssueJWT(secret, "tenant-a", RoleAdmin, "ops", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	claims, err := ParseJWT(token, secret)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if claims.TenantID != "tenant-a" || claims.Role != "admin" || claims.Subject != "ops" {
		t.Fatalf("unexpected claims: %+v", claims)
	}
	if _, err := IssueJWT(secret, "tenant-a", Role("root"), "ops", time.Hour, time.Now()); err == nil {
		t.Fatalf("expected invalid role error")
	}
}

func TestCompanyChecker(t *testing.T) {
	repo := mdmemory.NewCompanyRepository(masterdata.Company{ID: "c1", TenantID: "tenant-a", CountryID: "KR", Timezone: "Asia/Seoul"})
	checker := NewCompanyChecker(repo)
	ctx := context.Background()

	if err := checker.EnsureCompanyTenant(ctx, "tenant-a", "c1"); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if err := checker.EnsureCompanyTenant(ctx, "tenant-b", "c1"); err != ErrTenantMismatch {
		t.Fatalf("expected tenant mismatch, got %v", err)
	}
	if err := checker.EnsureCompanyTenant(ctx, "tenant-a", "c2"); err != ErrNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func mustToken(t *testing.T, secret []byte, tenantID, role string) string {
	t.Helper()
	claims := Claims{
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Minute)),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}
