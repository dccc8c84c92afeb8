package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware(t *testing.T) {
	f := newHandlerFixture(t)
	h := f.mux()

	userTokens := decodeTokens(t, doJSON(t, h, http.MethodPost, "/auth/login", `{"identifier":"ana","password":"correct-horse"}`, ""))
	adminTokens := decodeTokens(t, doJSON(t, h, http.MethodPost, "/auth/login", `{"identifier":"root","password":"admin-pass"}`, ""))

	tests := []struct {
		name          string
		path          string
		authorization string
		wantStatus    int
	}{
		{name: "missing header", path: "/auth/me", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", path: "/auth/me", authorization: "Basic " + userTokens.AccessToken, wantStatus: http.StatusUnauthorized},
		{name: "empty bearer", path: "/auth/me", authorization: "Bearer   ", wantStatus: http.StatusUnauthorized},
		{name: "garbage token", path: "/auth/me", authorization: "Bearer abc.def.ghi", wantStatus: http.StatusUnauthorized},
		{name: "refresh token as bearer", path: "/auth/me", authorization: "Bearer " + userTokens.RefreshToken, wantStatus: http.StatusUnauthorized},
		{name: "valid user token", path: "/auth/me", authorization: "Bearer " + userTokens.AccessToken, wantStatus: http.StatusOK},
		{name: "lowercase scheme", path: "/auth/me", authorization: "bearer " + userTokens.AccessToken, wantStatus: http.StatusOK},
		{name: "user on admin route", path: "/admin/me", authorization: "Bearer " + userTokens.AccessToken, wantStatus: http.StatusForbidden},
		{name: "admin on admin route", path: "/admin/me", authorization: "Bearer " + adminTokens.AccessToken, wantStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.authorization != "" {
				req.Header.Set("Authorization", tt.authorization)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body.String())
			}
		})
	}
}

func TestRequireRoleWithoutClaims(t *testing.T) {
	called := false
	h := RequireRole("admin", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	if rec.Code != http.StatusUnauthorized || called {
		t.Fatalf("status = %d, called = %v", rec.Code, called)
	}
}
