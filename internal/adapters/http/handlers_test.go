package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"cellule/internal/adapters/http/middleware"
	"cellule/internal/adapters/storage"
	"cellule/internal/adapters/upload"
	"cellule/internal/application/collections"
	"cellule/internal/application/session"
	"cellule/internal/domain/errs"
	"cellule/internal/domain/event"
	"cellule/internal/domain/member"
	"cellule/internal/domain/registration"
	"cellule/internal/metrics"
)

// fakeUploader records uploads and removals.
type fakeUploader struct {
	mu      sync.Mutex
	uploads []upload.File
	removed []string
	err     error
}

func (f *fakeUploader) Upload(_ context.Context, file upload.File, onProgress upload.Progress) (string, error) {
	if _, err := io.Copy(io.Discard, file.Body); err != nil {
		return "", err
	}
	if onProgress != nil {
		onProgress(100)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	f.uploads = append(f.uploads, file)
	return fmt.Sprintf("https://cdn.test/%s/%d/%s", file.Kind, len(f.uploads), file.Name), nil
}

func (f *fakeUploader) Remove(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, url)
	return nil
}

type testApp struct {
	handler  http.Handler
	store    storage.Store
	records  collections.Set
	uploader *fakeUploader
	sessions *session.Manager
	metrics  *metrics.Metrics
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	st := storage.NewMemoryStore()
	up := &fakeUploader{}
	set := collections.NewSet(st, up)
	mgr := session.NewManager(session.DepsFor(st, set), nil, time.Hour)
	m := metrics.New()
	t.Cleanup(func() {
		mgr.Close()
		_ = st.Close()
	})
	h := NewMux(Deps{
		Store:    st,
		Records:  set,
		Sessions: mgr,
		Uploader: up,
		Metrics:  m,
	})
	return &testApp{handler: h, store: st, records: set, uploader: up, sessions: mgr, metrics: m}
}

func (a *testApp) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, target string, body any) *http.Request {
	var r io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// login opens an admin session with the fallback secret and returns its cookie.
func (a *testApp) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := a.do(jsonRequest(http.MethodPost, "/admin/login", map[string]string{"password": "cmc2024"}))
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	t.Fatal("login: no session cookie")
	return nil
}

func (a *testApp) seedRegistration(t *testing.T, nom, prenom string) registration.Registration {
	t.Helper()
	reg, err := a.records.Registrations.Create(context.Background(), registration.Registration{
		Nom: nom, Prenom: prenom, Filiere: "DD", Annee: "1",
		Telephone: "0600000000", Email: strings.ToLower(prenom) + "@x.ma", Interet: "Web",
	})
	if err != nil {
		t.Fatalf("seed registration: %v", err)
	}
	return reg
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (%s)", err, rec.Body.String())
	}
	return v
}

var validRegistration = map[string]string{
	"nom": "Dupont", "prenom": "Jean", "filiere": "ID", "annee": "2",
	"telephone": "0700000000", "email": "jean@x.ma", "interet": "IA",
}

// TestRegister_JSON tests POST /register with a JSON body.
func TestRegister_JSON(t *testing.T) {
	tests := []struct {
		name       string
		drop       string
		wantStatus int
		wantError  string
	}{
		{name: "valid", wantStatus: http.StatusCreated},
		{name: "missing nom", drop: "nom", wantStatus: http.StatusBadRequest, wantError: "Le champ nom est requis"},
		{name: "missing interet", drop: "interet", wantStatus: http.StatusBadRequest, wantError: "Le champ interet est requis"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			body := map[string]string{}
			for k, v := range validRegistration {
				if k != tt.drop {
					body[k] = v
				}
			}
			rec := app.do(jsonRequest(http.MethodPost, "/register", body))
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			resp := decodeBody[map[string]string](t, rec)
			regs, err := app.records.Registrations.List(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if tt.wantError != "" {
				if resp["error"] != tt.wantError {
					t.Errorf("expected error %q, got %q", tt.wantError, resp["error"])
				}
				if len(regs) != 0 {
					t.Errorf("expected nothing stored, got %d", len(regs))
				}
				return
			}
			if resp["message"] != "Inscription enregistrée avec succès !" {
				t.Errorf("unexpected message %q", resp["message"])
			}
			if len(regs) != 1 || regs[0].ID != resp["id"] || regs[0].Validated {
				t.Errorf("unexpected stored registrations %+v", regs)
			}
		})
	}
}

// TestRegister_UnknownField rejects JSON bodies with unexpected fields.
func TestRegister_UnknownField(t *testing.T) {
	app := newTestApp(t)
	rec := app.do(jsonRequest(http.MethodPost, "/register", map[string]any{"nom": "x", "validated": true}))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

// TestRegister_OversizedBody rejects bodies past the cap without storing anything.
func TestRegister_OversizedBody(t *testing.T) {
	app := newTestApp(t)
	big := map[string]any{"nom": strings.Repeat("x", 100<<10), "prenom": "Jean"}

	if rec := app.do(jsonRequest(http.MethodPost, "/register", big)); rec.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("announced length: expected 413, got %d", rec.Code)
	}

	req := jsonRequest(http.MethodPost, "/register", big)
	req.ContentLength = -1
	if rec := app.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("streamed body: expected 400, got %d", rec.Code)
	}

	regs, err := app.records.Registrations.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(regs) != 0 {
		t.Errorf("stored %d registrations from oversized bodies", len(regs))
	}
}

// TestRegister_Form tests the browser form flow: redirect on success, inline error on failure.
func TestRegister_Form(t *testing.T) {
	app := newTestApp(t)

	form := url.Values{}
	for k, v := range validRegistration {
		form.Set(k, v)
	}
	req := httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	rec := app.do(req)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d: %s", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/?inscription=ok#inscription" {
		t.Errorf("unexpected redirect %q", loc)
	}

	form.Del("telephone")
	req = httptest.NewRequest(http.MethodPost, "/register", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/html")
	rec = app.do(req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "Le champ telephone est requis") {
		t.Error("expected the field error in the page")
	}
	if !strings.Contains(body, `value="Dupont"`) {
		t.Error("expected the submitted values to be kept")
	}
}

// TestIndex_RendersCards verifies the public page shows events and members.
func TestIndex_RendersCards(t *testing.T) {
	app := newTestApp(t)
	ctx := context.Background()
	if _, err := app.records.Events.Create(ctx, event.Event{Name: "Hackathon", Description: "**48h** de code", PhotoURL: "https://cdn.test/h.jpg"}); err != nil {
		t.Fatal(err)
	}
	if _, err := app.records.Members.Create(ctx, member.Member{Name: "Sara", Role: "Présidente", PhotoURL: "https://cdn.test/s.jpg"}); err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/?inscription=ok", nil)
	rec := app.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"Hackathon", "<strong>48h</strong>", "Présidente", "registration-form", "Inscription enregistrée avec succès !"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected page to contain %q", want)
		}
	}
	if got := rec.Header().Get("X-Frame-Options"); got != "DENY" {
		t.Errorf("expected security headers, got X-Frame-Options %q", got)
	}
}

// TestAdminLogin tests the login endpoint for both callers.
func TestAdminLogin(t *testing.T) {
	tests := []struct {
		name       string
		password   string
		form       bool
		wantStatus int
		wantCookie bool
	}{
		{name: "json fallback secret", password: "cmc2024", wantStatus: http.StatusOK, wantCookie: true},
		{name: "json wrong secret", password: "nope", wantStatus: http.StatusUnauthorized},
		{name: "form fallback secret", password: "cmc2024", form: true, wantStatus: http.StatusSeeOther, wantCookie: true},
		{name: "form wrong secret", password: "nope", form: true, wantStatus: http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			var req *http.Request
			if tt.form {
				req = httptest.NewRequest(http.MethodPost, "/admin/login", strings.NewReader(url.Values{"password": {tt.password}}.Encode()))
				req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			} else {
				req = jsonRequest(http.MethodPost, "/admin/login", map[string]string{"password": tt.password})
			}
			rec := app.do(req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			gotCookie := false
			for _, c := range rec.Result().Cookies() {
				if c.Name == middleware.SessionCookieName && c.Value != "" {
					gotCookie = true
				}
			}
			if gotCookie != tt.wantCookie {
				t.Errorf("cookie set = %v, want %v", gotCookie, tt.wantCookie)
			}
			if !tt.wantCookie && !strings.Contains(rec.Body.String(), "❌ Mot de passe incorrect") {
				t.Errorf("expected the wrong password message, got %s", rec.Body.String())
			}
			if tt.wantCookie && app.sessions.Count() != 1 {
				t.Errorf("expected one open session, got %d", app.sessions.Count())
			}
			if !tt.wantCookie && app.sessions.Count() != 0 {
				t.Errorf("expected no session, got %d", app.sessions.Count())
			}
		})
	}
}

// TestAdminPage shows the login form to visitors and the dashboard to admins.
func TestAdminPage(t *testing.T) {
	app := newTestApp(t)
	app.seedRegistration(t, "Martin", "Sara")

	for _, path := range []string{"/admin", "/admin.html"} {
		rec := app.do(httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "login-form") {
			t.Errorf("%s: expected login form, got %d", path, rec.Code)
		}
	}

	cookie := app.login(t)
	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.AddCookie(cookie)
	rec := app.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "admin-dashboard") || !strings.Contains(body, "Martin") {
		t.Error("expected the dashboard with the registration row")
	}
	if !strings.Contains(body, `<span id="total-registrations">1</span>`) {
		t.Error("expected the total counter")
	}
}

// TestAdminRoutesRequireSession verifies anonymous callers are rejected.
func TestAdminRoutesRequireSession(t *testing.T) {
	app := newTestApp(t)
	tests := []struct {
		method string
		path   string
		accept string
		want   int
	}{
		{http.MethodGet, "/api/registrations", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/registrations/x/validate", "", http.StatusUnauthorized},
		{http.MethodDelete, "/api/registrations/x", "", http.StatusUnauthorized},
		{http.MethodPost, "/api/events", "", http.StatusUnauthorized},
		{http.MethodDelete, "/api/members/x", "", http.StatusUnauthorized},
		{http.MethodGet, "/admin/export.csv", "text/html", http.StatusSeeOther},
		{http.MethodGet, "/admin/live", "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(tt.method, tt.path, nil)
		if tt.accept != "" {
			req.Header.Set("Accept", tt.accept)
		}
		rec := app.do(req)
		if rec.Code != tt.want {
			t.Errorf("%s %s: expected %d, got %d", tt.method, tt.path, tt.want, rec.Code)
		}
	}

	// A forged cookie is not a session.
	req := httptest.NewRequest(http.MethodGet, "/api/registrations", nil)
	req.AddCookie(&http.Cookie{Name: middleware.SessionCookieName, Value: "forged"})
	if rec := app.do(req); rec.Code != http.StatusUnauthorized {
		t.Errorf("forged cookie: expected 401, got %d", rec.Code)
	}
}

// TestRegistrationsAPI covers search, toggle and delete.
func TestRegistrationsAPI(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)
	first := app.seedRegistration(t, "Dupont", "Jean")
	app.seedRegistration(t, "Martin", "Sara")

	get := func(target string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req.AddCookie(cookie)
		return app.do(req)
	}
	type table struct {
		Rows []struct {
			ID          string `json:"id"`
			Nom         string `json:"nom"`
			Validated   bool   `json:"validated"`
			StatusLabel string `json:"statusLabel"`
		} `json:"rows"`
		Total     int `json:"total"`
		Validated int `json:"validated"`
		Matching  int `json:"matching"`
	}

	all := decodeBody[table](t, get("/api/registrations"))
	if all.Total != 2 || len(all.Rows) != 2 {
		t.Fatalf("expected 2 rows, got %+v", all)
	}

	found := decodeBody[table](t, get("/api/registrations?q=DUPONT"))
	if found.Matching != 1 || found.Rows[0].ID != first.ID {
		t.Fatalf("expected only Dupont, got %+v", found)
	}

	// Toggle twice restores the flag.
	for i, want := range []bool{true, false} {
		req := httptest.NewRequest(http.MethodPost, "/api/registrations/"+first.ID+"/validate", nil)
		req.AddCookie(cookie)
		rec := app.do(req)
		if rec.Code != http.StatusOK {
			t.Fatalf("toggle %d: expected 200, got %d", i, rec.Code)
		}
		row := decodeBody[map[string]any](t, rec)
		if row["validated"] != want {
			t.Errorf("toggle %d: expected validated=%v, got %v", i, want, row["validated"])
		}
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/registrations/"+first.ID, nil)
	req.AddCookie(cookie)
	if rec := app.do(req); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	req = httptest.NewRequest(http.MethodDelete, "/api/registrations/"+first.ID, nil)
	req.AddCookie(cookie)
	if rec := app.do(req); rec.Code != http.StatusNotFound {
		t.Errorf("second delete: expected 404, got %d", rec.Code)
	}
	if left := decodeBody[table](t, get("/api/registrations")); left.Total != 1 {
		t.Errorf("expected 1 registration left, got %d", left.Total)
	}
}

// TestExportRegistrations covers the empty and the populated export.
func TestExportRegistrations(t *testing.T) {
	orig := timeNow
	timeNow = func() time.Time { return time.Date(2024, 3, 5, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { timeNow = orig })

	app := newTestApp(t)
	cookie := app.login(t)

	req := httptest.NewRequest(http.MethodGet, "/admin/export.csv", nil)
	req.AddCookie(cookie)
	rec := app.do(req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("empty export: expected 404, got %d", rec.Code)
	}
	if resp := decodeBody[map[string]string](t, rec); resp["error"] != "Aucune inscription à exporter" {
		t.Errorf("unexpected message %q", resp["error"])
	}

	app.seedRegistration(t, "Dupont", "Jean")
	req = httptest.NewRequest(http.MethodGet, "/admin/export.csv", nil)
	req.AddCookie(cookie)
	rec = app.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: expected 200, got %d", rec.Code)
	}
	if cd := rec.Header().Get("Content-Disposition"); cd != `attachment; filename="inscriptions_cmc_2024-03-05.csv"` {
		t.Errorf("unexpected Content-Disposition %q", cd)
	}
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header + 1 row, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], ",Dupont,Jean,DD,1,0600000000,jean@x.ma,Web,Non") {
		t.Errorf("unexpected row %q", lines[1])
	}
}

func testPNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x++ {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func multipartRequest(t *testing.T, method, target string, fields map[string]string, files map[string][]byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatal(err)
		}
	}
	for field, data := range files {
		fw, err := mw.CreateFormFile(field, field+".png")
		if err != nil {
			t.Fatal(err)
		}
		if _, err := fw.Write(data); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(method, target, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

// TestCreateEvent tests the multipart event flow.
func TestCreateEvent(t *testing.T) {
	tests := []struct {
		name       string
		fields     map[string]string
		withPhoto  bool
		wantStatus int
		wantError  string
	}{
		{
			name:       "with photo and crop",
			fields:     map[string]string{"name": "Hackathon", "description": "48h", "crop_x": "0", "crop_y": "0", "crop_w": "160", "crop_h": "90"},
			withPhoto:  true,
			wantStatus: http.StatusCreated,
		},
		{
			name:       "without photo",
			fields:     map[string]string{"name": "Hackathon", "description": "48h"},
			wantStatus: http.StatusBadRequest,
			wantError:  "Le champ photoUrl est requis",
		},
		{
			name:       "missing name",
			fields:     map[string]string{"description": "48h"},
			withPhoto:  true,
			wantStatus: http.StatusBadRequest,
			wantError:  "Le champ name est requis",
		},
		{
			name:       "partial crop",
			fields:     map[string]string{"name": "Hackathon", "description": "48h", "crop_x": "10"},
			withPhoto:  true,
			wantStatus: http.StatusBadRequest,
			wantError:  "cadrage incomplet",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			cookie := app.login(t)
			files := map[string][]byte{}
			if tt.withPhoto {
				files["photo"] = testPNG(t, 320, 240)
			}
			req := multipartRequest(t, http.MethodPost, "/api/events", tt.fields, files)
			req.AddCookie(cookie)
			rec := app.do(req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			resp := decodeBody[map[string]any](t, rec)
			if tt.wantError != "" {
				if resp["error"] != tt.wantError {
					t.Errorf("expected error %q, got %q", tt.wantError, resp["error"])
				}
				if len(app.uploader.uploads) != 0 {
					t.Errorf("expected no upload, got %d", len(app.uploader.uploads))
				}
				return
			}
			if len(app.uploader.uploads) != 1 || app.uploader.uploads[0].ContentType != "image/jpeg" {
				t.Fatalf("expected one jpeg upload, got %+v", app.uploader.uploads)
			}
			if resp["photoUrl"] != "https://cdn.test/image/1/photo.jpg" {
				t.Errorf("unexpected photoUrl %v", resp["photoUrl"])
			}
			events, _ := app.records.Events.List(context.Background())
			if len(events) != 1 || events[0].Name != "Hackathon" {
				t.Errorf("unexpected events %+v", events)
			}
		})
	}
}

// TestCreateEvent_UploadFailure maps a rejected upload to 502 and stores nothing.
func TestCreateEvent_UploadFailure(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)
	app.uploader.err = &errs.UploadError{Status: 400, Message: "Invalid image file"}

	req := multipartRequest(t, http.MethodPost, "/api/events",
		map[string]string{"name": "Hackathon", "description": "48h"},
		map[string][]byte{"photo": testPNG(t, 64, 64)})
	req.AddCookie(cookie)
	rec := app.do(req)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("expected 502, got %d", rec.Code)
	}
	if resp := decodeBody[map[string]string](t, rec); !strings.Contains(resp["error"], "Invalid image file") {
		t.Errorf("unexpected error %q", resp["error"])
	}
	if events, _ := app.records.Events.List(context.Background()); len(events) != 0 {
		t.Errorf("expected no event, got %d", len(events))
	}
}

// TestMembersAPI covers a text-only update and a delete that removes the photo.
func TestMembersAPI(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)
	ctx := context.Background()
	m, err := app.records.Members.Create(ctx, member.Member{Name: "Sara", Role: "Trésorière", PhotoURL: "https://cdn.test/s.jpg"})
	if err != nil {
		t.Fatal(err)
	}

	req := jsonRequest(http.MethodPut, "/api/members/"+m.ID, map[string]string{"role": "Présidente"})
	req.AddCookie(cookie)
	rec := app.do(req)
	if rec.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if got := decodeBody[map[string]any](t, rec); got["role"] != "Présidente" || got["name"] != "Sara" {
		t.Errorf("unexpected member %+v", got)
	}

	req = jsonRequest(http.MethodPut, "/api/members/"+m.ID, map[string]string{"name": "  "})
	req.AddCookie(cookie)
	if rec := app.do(req); rec.Code != http.StatusBadRequest {
		t.Errorf("blank name: expected 400, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/members/"+m.ID, nil)
	req.AddCookie(cookie)
	if rec := app.do(req); rec.Code != http.StatusNoContent {
		t.Fatalf("delete: expected 204, got %d", rec.Code)
	}
	if len(app.uploader.removed) != 1 || app.uploader.removed[0] != "https://cdn.test/s.jpg" {
		t.Errorf("expected the photo removed, got %v", app.uploader.removed)
	}

	rec = app.do(httptest.NewRequest(http.MethodGet, "/api/members", nil))
	if got := decodeBody[[]map[string]any](t, rec); len(got) != 0 {
		t.Errorf("expected no members, got %d", len(got))
	}
}

// TestChangePassword tests rotation through the JSON endpoint.
func TestChangePassword(t *testing.T) {
	tests := []struct {
		name       string
		body       changePasswordRequest
		wantStatus int
	}{
		{name: "wrong current", body: changePasswordRequest{"nope", "secret1", "secret1"}, wantStatus: http.StatusBadRequest},
		{name: "too short", body: changePasswordRequest{"cmc2024", "abc", "abc"}, wantStatus: http.StatusBadRequest},
		{name: "mismatch", body: changePasswordRequest{"cmc2024", "secret1", "secret2"}, wantStatus: http.StatusBadRequest},
		{name: "ok", body: changePasswordRequest{"cmc2024", "secret1", "secret1"}, wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(t)
			cookie := app.login(t)
			req := jsonRequest(http.MethodPost, "/admin/password", tt.body)
			req.AddCookie(cookie)
			rec := app.do(req)
			if rec.Code != tt.wantStatus {
				t.Fatalf("expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			wrong := app.do(jsonRequest(http.MethodPost, "/admin/login", map[string]string{"password": "cmc2024"}))
			if wrong.Code != http.StatusUnauthorized {
				t.Errorf("old secret: expected 401, got %d", wrong.Code)
			}
			right := app.do(jsonRequest(http.MethodPost, "/admin/login", map[string]string{"password": "secret1"}))
			if right.Code != http.StatusOK {
				t.Errorf("new secret: expected 200, got %d", right.Code)
			}
		})
	}
}

// TestLogout ends the session and clears the cookie.
func TestLogout(t *testing.T) {
	app := newTestApp(t)
	cookie := app.login(t)

	req := httptest.NewRequest(http.MethodPost, "/admin/logout", nil)
	req.AddCookie(cookie)
	rec := app.do(req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if app.sessions.Count() != 0 {
		t.Errorf("expected no session, got %d", app.sessions.Count())
	}
	cleared := false
	for _, c := range rec.Result().Cookies() {
		if c.Name == middleware.SessionCookieName && c.MaxAge < 0 {
			cleared = true
		}
	}
	if !cleared {
		t.Error("expected the cookie to be cleared")
	}

	req = httptest.NewRequest(http.MethodGet, "/api/registrations", nil)
	req.AddCookie(cookie)
	if rec := app.do(req); rec.Code != http.StatusUnauthorized {
		t.Errorf("after logout: expected 401, got %d", rec.Code)
	}
}

// TestHealthzAndMetrics verifies the probe and the Prometheus counters.
func TestHealthzAndMetrics(t *testing.T) {
	app := newTestApp(t)
	if rec := app.do(httptest.NewRequest(http.MethodGet, "/healthz", nil)); rec.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rec.Code)
	}
	if rec := app.do(jsonRequest(http.MethodPost, "/register", validRegistration)); rec.Code != http.StatusCreated {
		t.Fatalf("register: expected 201, got %d", rec.Code)
	}

	rec := app.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	if !strings.Contains(body, "cellule_registrations_submitted_total 1") {
		t.Error("expected the registration counter")
	}
	if !strings.Contains(body, `cellule_http_requests_total{method="POST",route="POST /register",status="201"} 1`) {
		t.Error("expected the request counter labelled by route")
	}
}

// TestErrorStatus maps error kinds to HTTP statuses.
func TestErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		ok     bool
	}{
		{"validation", errs.Required("nom"), http.StatusBadRequest, true},
		{"not found", errs.NotFound("events/1"), http.StatusNotFound, true},
		{"upload rejected", &errs.UploadError{Status: 400, Message: "bad"}, http.StatusBadGateway, true},
		{"upload transport", &errs.UploadError{Err: errs.Connectivity("post", io.EOF)}, http.StatusBadGateway, true},
		{"connectivity", errs.Connectivity("read", io.EOF), http.StatusServiceUnavailable, true},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _, ok := errorStatus(tt.err)
			if status != tt.status || ok != tt.ok {
				t.Errorf("got (%d, %v), want (%d, %v)", status, ok, tt.status, tt.ok)
			}
		})
	}
}
