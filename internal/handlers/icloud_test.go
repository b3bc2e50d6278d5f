package handlers

import (
	"encoding/json"
	"net/http"
	"testing"

	"photovault/internal/database"
	"photovault/internal/importer"
)

func TestICloudLoginWithoutChallenge(t *testing.T) {
	f := newFixture(t, false, 3)
	cookie := f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodPost, "/api/icloud/login",
		ICloudLoginRequest{AppleID: "user@example.com", Password: "applepw"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("login returned %d: %s", rec.Code, rec.Body.String())
	}

	var resp ICloudStatusResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.State != "listing" {
		t.Errorf("state = %s, want listing", resp.State)
	}
}

func TestICloudLoginBadCredentials(t *testing.T) {
	f := newFixture(t, false, 0)
	cookie := f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodPost, "/api/icloud/login",
		ICloudLoginRequest{AppleID: "user@example.com", Password: "wrong"}, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestICloudChallengeFlow(t *testing.T) {
	f := newFixture(t, true, 3)
	cookie := f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodPost, "/api/icloud/login",
		ICloudLoginRequest{AppleID: "user@example.com", Password: "applepw"}, cookie)
	var resp ICloudStatusResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.State != "pending_challenge" {
		t.Fatalf("state = %s, want pending_challenge", resp.State)
	}

	// Library is gated until the code is accepted.
	rec = f.do(t, http.MethodGet, "/api/icloud/photos", nil, cookie)
	if rec.Code != http.StatusForbidden {
		t.Errorf("photos while pending = %d, want 403", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/icloud/verify", ICloudVerifyRequest{Code: "000000"}, cookie)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("bad code = %d, want 401", rec.Code)
	}

	rec = f.do(t, http.MethodPost, "/api/icloud/verify", ICloudVerifyRequest{Code: "123456"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify returned %d: %s", rec.Code, rec.Body.String())
	}
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.State != "listing" {
		t.Errorf("state after verify = %s, want listing", resp.State)
	}

	rec = f.do(t, http.MethodGet, "/api/icloud/photos", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Errorf("photos after verify = %d, want 200", rec.Code)
	}
}

func TestICloudPhotosPage(t *testing.T) {
	f := newFixture(t, false, 45)
	cookie := f.register(t, "alice", "hunter22")
	f.connectICloud(t, cookie, false)

	rec := f.do(t, http.MethodGet, "/api/icloud/photos?page=3", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("photos returned %d: %s", rec.Code, rec.Body.String())
	}

	var page importer.Page
	_ = json.NewDecoder(rec.Body).Decode(&page)
	if page.Page != 3 || page.TotalItems != 45 || page.TotalPages != 3 {
		t.Errorf("page = %d, totals = %d/%d, want 3 and 45/3", page.Page, page.TotalItems, page.TotalPages)
	}
	if len(page.Items) != 5 {
		t.Errorf("items = %d, want 5", len(page.Items))
	}
}

func TestICloudThumbnail(t *testing.T) {
	f := newFixture(t, false, 3)
	cookie := f.register(t, "alice", "hunter22")
	f.connectICloud(t, cookie, false)

	rec := f.do(t, http.MethodGet, "/api/icloud/thumbnail?id=r000&filename=remote_000.jpg", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("thumbnail returned %d: %s", rec.Code, rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("Content-Type = %s, want image/jpeg", ct)
	}
}

func TestICloudImport(t *testing.T) {
	f := newFixture(t, false, 5)
	cookie := f.register(t, "alice", "hunter22")
	f.connectICloud(t, cookie, false)

	rec := f.do(t, http.MethodPost, "/api/icloud/import", ICloudImportRequest{
		Items: []importer.Selection{
			{ID: "r000", Filename: "remote_000.jpg"},
			{ID: "r001", Filename: "remote_001.jpg"},
		},
	}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("import returned %d: %s", rec.Code, rec.Body.String())
	}

	var result importer.Result
	_ = json.NewDecoder(rec.Body).Decode(&result)
	if result.Imported != 2 || result.Skipped != 0 {
		t.Errorf("result = %+v", result)
	}

	// Imported items appear in the local library.
	rec = f.do(t, http.MethodGet, "/api/photos", nil, cookie)
	var listing database.PhotoListing
	_ = json.NewDecoder(rec.Body).Decode(&listing)
	if listing.TotalItems != 2 {
		t.Errorf("local photos = %d, want 2", listing.TotalItems)
	}

	// The remote connection is one-shot.
	rec = f.do(t, http.MethodGet, "/api/icloud/photos", nil, cookie)
	if rec.Code != http.StatusConflict {
		t.Errorf("photos after import = %d, want 409", rec.Code)
	}
}

func TestICloudImportRequiresItems(t *testing.T) {
	f := newFixture(t, false, 3)
	cookie := f.register(t, "alice", "hunter22")
	f.connectICloud(t, cookie, false)

	rec := f.do(t, http.MethodPost, "/api/icloud/import", ICloudImportRequest{}, cookie)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestICloudPhotosWithoutConnection(t *testing.T) {
	f := newFixture(t, false, 3)
	cookie := f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodGet, "/api/icloud/photos", nil, cookie)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestICloudStatus(t *testing.T) {
	f := newFixture(t, false, 3)
	cookie := f.register(t, "alice", "hunter22")

	rec := f.do(t, http.MethodGet, "/api/icloud/status", nil, cookie)
	var resp ICloudStatusResponse
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.State != "unauthenticated" {
		t.Errorf("state = %s, want unauthenticated", resp.State)
	}

	f.connectICloud(t, cookie, false)

	rec = f.do(t, http.MethodGet, "/api/icloud/status", nil, cookie)
	_ = json.NewDecoder(rec.Body).Decode(&resp)
	if resp.State != "listing" {
		t.Errorf("state = %s, want listing", resp.State)
	}
}

func TestICloudLogout(t *testing.T) {
	f := newFixture(t, false, 3)
	cookie := f.register(t, "alice", "hunter22")
	f.connectICloud(t, cookie, false)

	rec := f.do(t, http.MethodPost, "/api/icloud/logout", nil, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("logout returned %d", rec.Code)
	}

	rec = f.do(t, http.MethodGet, "/api/icloud/photos", nil, cookie)
	if rec.Code != http.StatusConflict {
		t.Errorf("photos after logout = %d, want 409", rec.Code)
	}
}
