package handlers

import (
	"encoding/json"
	"net/http"
	"testing"
)

func TestSetupRequired(t *testing.T) {
	f := newFixture(t, false, 0)

	rec := f.do(t, http.MethodGet, "/api/auth/setup", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp map[string]bool
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if !resp["needsSetup"] {
		t.Error("needsSetup = false on empty database")
	}

	f.register(t, "alice", "hunter22")

	rec = f.do(t, http.MethodGet, "/api/auth/setup", nil, nil)
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp["needsSetup"] {
		t.Error("needsSetup = true after an account exists")
	}
}

func TestRegisterAndLogin(t *testing.T) {
	f := newFixture(t, false, 0)
	f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodPost, "/api/auth/login",
		CredentialsRequest{Username: "alice", Password: "hunter22"}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp AuthResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if !resp.Success || resp.Username != "alice" {
		t.Errorf("response = %+v", resp)
	}
	if resp.ExpiresIn <= 0 {
		t.Errorf("ExpiresIn = %d, want > 0", resp.ExpiresIn)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	f := newFixture(t, false, 0)
	f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodPost, "/api/auth/login",
		CredentialsRequest{Username: "alice", Password: "wrong"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t, false, 0)

	tests := []struct {
		name string
		req  CredentialsRequest
		want int
	}{
		{"empty username", CredentialsRequest{Password: "hunter22"}, http.StatusBadRequest},
		{"short password", CredentialsRequest{Username: "bob", Password: "abc"}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/auth/register", tt.req, nil)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	f := newFixture(t, false, 0)
	f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodPost, "/api/auth/register",
		CredentialsRequest{Username: "ALICE", Password: "hunter22"}, nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409 for case-insensitive duplicate", rec.Code)
	}
}

func TestCheckAuth(t *testing.T) {
	f := newFixture(t, false, 0)
	cookie := f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodGet, "/api/auth/check", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d with valid session", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/auth/check", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d without session, want 401", rec.Code)
	}
}

func TestLogoutInvalidatesSession(t *testing.T) {
	f := newFixture(t, false, 0)
	cookie := f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodPost, "/api/auth/logout", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout returned %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/photos", nil, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d after logout, want 401", rec.Code)
	}
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	f := newFixture(t, false, 0)

	paths := []struct {
		method, path string
	}{
		{http.MethodGet, "/api/photos"},
		{http.MethodPost, "/api/icloud/login"},
		{http.MethodGet, "/api/icloud/photos"},
		{http.MethodPost, "/api/password"},
	}
	for _, p := range paths {
		rec := f.do(t, p.method, p.path, nil, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", p.method, p.path, rec.Code)
		}
	}
}

func TestPublicRoutesSkipAuth(t *testing.T) {
	f := newFixture(t, false, 0)

	for _, path := range []string{"/health", "/healthz", "/livez", "/readyz", "/version", "/metrics"} {
		rec := f.do(t, http.MethodGet, path, nil, nil)
		if rec.Code == http.StatusUnauthorized {
			t.Errorf("GET %s = 401, want public", path)
		}
	}
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t, false, 0)
	cookie := f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodPost, "/api/password",
		PasswordChangeRequest{CurrentPassword: "hunter22", NewPassword: "betterpass"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("change returned %d: %s", rec.Code, rec.Body.String())
	}

	rec = f.do(t, http.MethodPost, "/api/auth/login",
		CredentialsRequest{Username: "alice", Password: "betterpass"}, nil)
	if rec.Code != http.StatusOK {
		t.Errorf("login with new password returned %d", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/auth/login",
		CredentialsRequest{Username: "alice", Password: "hunter22"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("login with old password returned %d, want 401", rec.Code)
	}
}

func TestChangePasswordWrongCurrent(t *testing.T) {
	f := newFixture(t, false, 0)
	cookie := f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodPost, "/api/password",
		PasswordChangeRequest{CurrentPassword: "wrong", NewPassword: "betterpass"}, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}
