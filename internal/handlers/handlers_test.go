package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"photovault/internal/database"
	"photovault/internal/icloud"
	"photovault/internal/importer"
	"photovault/internal/media"
	"photovault/internal/remote"
	"photovault/internal/startup"
	"photovault/internal/store"
)

// fakeRemote simulates the remote photo service: 2FA code "123456",
// a fixed-size JPEG library, optional per-item download failures.
type fakeRemote struct {
	requires2FA bool
	items       int
	broken      map[string]bool
	preview     []byte
}

func newFakeRemote(t *testing.T, requires2FA bool, items int) *httptest.Server {
	t.Helper()

	f := &fakeRemote{
		requires2FA: requires2FA,
		items:       items,
		broken:      map[string]bool{},
		preview:     testPNG(t, 240, 160),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/signin", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			AppleID  string `json:"appleId"`
			Password string `json:"password"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Password != "applepw" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid credentials"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"dsid": "d1", "token": "t1", "requires2fa": f.requires2FA,
		})
	})
	mux.HandleFunc("/auth/verify", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Code string `json:"code"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Code != "123456" {
			w.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "invalid code"})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"token": "t2"})
	})
	mux.HandleFunc("/photos", func(w http.ResponseWriter, r *http.Request) {
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		var photos []map[string]interface{}
		for i := offset; i < f.items && i < offset+limit; i++ {
			photos = append(photos, map[string]interface{}{
				"id":       fmt.Sprintf("r%03d", i),
				"filename": fmt.Sprintf("remote_%03d.jpg", i),
				"size":     64,
			})
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"total": f.items, "photos": photos,
		})
	})
	mux.HandleFunc("/photos/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/photos/") : len(r.URL.Path)-len("/download")]
		if f.broken[id] {
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": "not found"})
			return
		}
		if r.URL.Query().Get("variant") == "preview" {
			_, _ = w.Write(f.preview)
			return
		}
		_, _ = w.Write([]byte("original-of-" + id))
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 64, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding png: %v", err)
	}
	return buf.Bytes()
}

type fixture struct {
	h      *Handlers
	router http.Handler
	db     *database.Database
}

func newFixture(t *testing.T, requires2FA bool, remoteItems int) *fixture {
	t.Helper()

	srv := newFakeRemote(t, requires2FA, remoteItems)
	client := icloud.NewClient(srv.URL, icloud.RetryPolicy{MaxAttempts: 1, Delay: time.Millisecond})
	manager := remote.NewManager(client)

	db, err := database.New(context.Background(), filepath.Join(t.TempDir(), "vault.db"))
	if err != nil {
		t.Fatalf("database.New failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	s, err := store.New(db, t.TempDir())
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}

	cache, err := media.NewCache(t.TempDir())
	if err != nil {
		t.Fatalf("media.NewCache failed: %v", err)
	}

	imp := importer.New(manager, s, cache)

	h := New(db, s, manager, imp, cache, &startup.Config{ThumbnailsEnabled: true})
	return &fixture{h: h, router: h.Router(true), db: db}
}

// register creates an account through the API and returns its session
// cookie.
func (f *fixture) register(t *testing.T, username, password string) *http.Cookie {
	t.Helper()

	body, _ := json.Marshal(CredentialsRequest{Username: username, Password: password})
	req := httptest.NewRequest(http.MethodPost, "/api/auth/register", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("register returned %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == SessionCookieName {
			return c
		}
	}
	t.Fatal("register set no session cookie")
	return nil
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshaling body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) upload(t *testing.T, cookie *http.Cookie, filename string, data []byte) *database.Photo {
	t.Helper()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("creating form file: %v", err)
	}
	_, _ = part.Write(data)
	_ = mw.Close()

	req := httptest.NewRequest(http.MethodPost, "/api/photos", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("upload returned %d: %s", rec.Code, rec.Body.String())
	}

	var photo database.Photo
	if err := json.NewDecoder(rec.Body).Decode(&photo); err != nil {
		t.Fatalf("decoding upload response: %v", err)
	}
	return &photo
}

// connectICloud walks the remote login (and 2FA when required) to the
// listing state.
func (f *fixture) connectICloud(t *testing.T, cookie *http.Cookie, requires2FA bool) {
	t.Helper()

	rec := f.do(t, http.MethodPost, "/api/icloud/login",
		ICloudLoginRequest{AppleID: "user@example.com", Password: "applepw"}, cookie)
	if rec.Code != http.StatusOK {
		t.Fatalf("icloud login returned %d: %s", rec.Code, rec.Body.String())
	}

	if requires2FA {
		rec = f.do(t, http.MethodPost, "/api/icloud/verify", ICloudVerifyRequest{Code: "123456"}, cookie)
		if rec.Code != http.StatusOK {
			t.Fatalf("icloud verify returned %d: %s", rec.Code, rec.Body.String())
		}
	}
}
