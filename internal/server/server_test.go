package server

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vakspot/vakspot/internal/auth"
	"github.com/vakspot/vakspot/internal/config"
	"github.com/vakspot/vakspot/internal/models"
	"github.com/vakspot/vakspot/internal/testutil"
)

func testConfig() *config.Config {
	return &config.Config{
		HTTP: config.HTTPConfig{
			Port:        "0",
			PublicURL:   "http://vakspot.test",
			CORSOrigins: []string{"http://localhost:3000"},
		},
		Session: config.SessionConfig{Secret: "test-secret", MaxAge: time.Hour},
		Jobs:    config.JobsConfig{ExpirySchedule: "0 3 * * *", MaxAge: 60 * 24 * time.Hour},
	}
}

func newTestServer(t *testing.T) (*Server, *gorm.DB) {
	t.Helper()
	db := testutil.NewDB(t)
	srv, err := NewWithDB(testConfig(), db, zerolog.Nop(), "test")
	require.NoError(t, err)
	return srv, db
}

// sessionCookie returns a valid session cookie for u
func sessionCookie(t *testing.T, srv *Server, u *models.User) *http.Cookie {
	t.Helper()
	token, err := srv.tokens.Issue(auth.Principal{ID: u.ID, Email: u.Email, Role: u.Role})
	require.NoError(t, err)
	return &http.Cookie{Name: auth.SessionCookie, Value: token}
}

func do(t *testing.T, srv *Server, method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func errorOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	return decode[map[string]any](t, w)["error"].(string)
}

func TestHealthCheck(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)
	body := decode[map[string]any](t, w)
	assert.Equal(t, "online", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestLoginFlow(t *testing.T) {
	srv, db := newTestServer(t)
	hash, err := auth.HashPassword("supersecret")
	require.NoError(t, err)
	testutil.CreateUser(t, db, "jan@example.nl", models.RoleClient, hash)

	w := do(t, srv, http.MethodPost, "/api/auth/login", map[string]string{"email": "jan@example.nl", "password": "wrong-password"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", errorOf(t, w))

	w = do(t, srv, http.MethodPost, "/api/auth/login", map[string]string{"email": "nobody@example.nl", "password": "supersecret"}, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Invalid email or password", errorOf(t, w))

	w = do(t, srv, http.MethodPost, "/api/auth/login", map[string]string{
		"email":        "JAN@example.nl",
		"password":     "supersecret",
		"callback_url": "/client/jobs/new",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	login := decode[LoginResponse](t, w)
	assert.NotEmpty(t, login.Token)
	assert.Equal(t, models.RoleClient, login.User.Role)
	assert.Equal(t, "/client/jobs/new", login.Redirect)

	var cookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	assert.Equal(t, 3600, cookie.MaxAge)

	w = do(t, srv, http.MethodGet, "/api/me", nil, cookie)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "jan@example.nl", decode[map[string]any](t, w)["email"])

	// Bearer tokens work as well as cookies
	req := httptest.NewRequest(http.MethodGet, "/api/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+login.Token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	session := decode[map[string]map[string]any](t, rec)
	assert.Equal(t, "CLIENT", session["user"]["role"])
}

func TestLogin_OffsiteCallbackIgnored(t *testing.T) {
	srv, db := newTestServer(t)
	hash, err := auth.HashPassword("supersecret")
	require.NoError(t, err)
	testutil.CreateUser(t, db, "pro@example.nl", models.RolePro, hash)

	w := do(t, srv, http.MethodPost, "/api/auth/login", map[string]string{
		"email":        "pro@example.nl",
		"password":     "supersecret",
		"callback_url": "//evil.example.com",
	}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/pro/leads", decode[LoginResponse](t, w).Redirect)
}

func TestLogout_ClearsCookies(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodPost, "/api/auth/logout", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	names := map[string]int{}
	for _, c := range w.Result().Cookies() {
		names[c.Name] = c.MaxAge
	}
	assert.Contains(t, names, auth.SessionCookie)
	assert.Contains(t, names, auth.SecureSessionCookie)
	assert.Less(t, names[auth.SessionCookie], 0)
}

func TestSession_InvalidTokenIsAnonymous(t *testing.T) {
	srv, _ := newTestServer(t)

	w := do(t, srv, http.MethodGet, "/api/auth/session", nil, &http.Cookie{Name: auth.SessionCookie, Value: "garbage"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":null}`, w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/jobs", nil, &http.Cookie{Name: auth.SessionCookie, Value: "garbage"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "Unauthorized", errorOf(t, w))
}

func TestGuard(t *testing.T) {
	srv, db := newTestServer(t)
	client := sessionCookie(t, srv, testutil.CreateUser(t, db, "client@example.nl", models.RoleClient, ""))
	pro := sessionCookie(t, srv, testutil.CreateUser(t, db, "pro@example.nl", models.RolePro, ""))
	admin := sessionCookie(t, srv, testutil.CreateUser(t, db, "admin@example.nl", models.RoleAdmin, ""))

	tests := []struct {
		name     string
		path     string
		cookie   *http.Cookie
		status   int
		location string
	}{
		{"anonymous to login with callback", "/client/jobs?tab=open", nil, http.StatusTemporaryRedirect, "/login?callbackUrl=%2Fclient%2Fjobs%3Ftab%3Dopen"},
		{"anonymous admin", "/admin", nil, http.StatusTemporaryRedirect, "/login?callbackUrl=%2Fadmin"},
		{"pro on client area", "/client/jobs", pro, http.StatusTemporaryRedirect, "/pro/leads"},
		{"client on admin area", "/admin/users", client, http.StatusTemporaryRedirect, "/client/jobs"},
		{"admin on pro area", "/pro/leads", admin, http.StatusOK, ""},
		{"client home", "/client/jobs", client, http.StatusOK, ""},
		{"signed in on login", "/login", pro, http.StatusTemporaryRedirect, "/pro/leads"},
		{"anonymous landing", "/", nil, http.StatusOK, ""},
		{"anonymous login", "/login", nil, http.StatusOK, ""},
		{"unknown page", "/nope", nil, http.StatusNotFound, ""},
		{"api is not guarded", "/api/categories", nil, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodGet, tt.path, nil, tt.cookie)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.location, w.Header().Get("Location"))
		})
	}
}

func TestPageShell(t *testing.T) {
	srv, db := newTestServer(t)
	client := sessionCookie(t, srv, testutil.CreateUser(t, db, "client@example.nl", models.RoleClient, ""))

	w := do(t, srv, http.MethodGet, "/client/jobs", nil, client)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), "<title>Mijn klussen · VakSpot</title>")
	assert.Contains(t, w.Body.String(), `data-role="CLIENT"`)
}

func TestAPIRoleChecks(t *testing.T) {
	srv, db := newTestServer(t)
	client := sessionCookie(t, srv, testutil.CreateUser(t, db, "client@example.nl", models.RoleClient, ""))
	admin := sessionCookie(t, srv, testutil.CreateUser(t, db, "admin@example.nl", models.RoleAdmin, ""))

	w := do(t, srv, http.MethodGet, "/api/admin/users", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, srv, http.MethodGet, "/api/admin/users", nil, client)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Forbidden", errorOf(t, w))

	w = do(t, srv, http.MethodGet, "/api/leads", nil, client)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, srv, http.MethodGet, "/api/admin/users", nil, admin)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 2)

	w = do(t, srv, http.MethodGet, "/api/unknown", nil, admin)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRegister(t *testing.T) {
	srv, db := newTestServer(t)
	plumbing := testutil.CreateCategory(t, db, "Loodgieter", "loodgieter")
	painting := testutil.CreateCategory(t, db, "Schilder", "schilder")

	w := do(t, srv, http.MethodPost, "/api/auth/register", map[string]any{
		"email":        "pro@example.nl",
		"password":     "supersecret",
		"name":         "Piet",
		"role":         "PRO",
		"company_name": "Piet Klust",
		"category_ids": []string{plumbing.ID, painting.ID},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var users, profiles, associations int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.ProProfile{}).Count(&profiles).Error)
	require.NoError(t, db.Model(&models.ProCategory{}).Count(&associations).Error)
	assert.Equal(t, int64(1), users)
	assert.Equal(t, int64(1), profiles)
	assert.Equal(t, int64(2), associations)

	w = do(t, srv, http.MethodPost, "/api/auth/register", map[string]any{
		"email": "pro@example.nl", "password": "supersecret", "name": "Piet", "role": "CLIENT",
	}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodPost, "/api/auth/register", map[string]any{
		"email": "root@example.nl", "password": "supersecret", "name": "Root", "role": "ADMIN",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteCategory_InUse(t *testing.T) {
	srv, db := newTestServer(t)
	admin := sessionCookie(t, srv, testutil.CreateUser(t, db, "admin@example.nl", models.RoleAdmin, ""))
	client := testutil.CreateUser(t, db, "client@example.nl", models.RoleClient, "")
	category := testutil.CreateCategory(t, db, "Loodgieter", "loodgieter")
	testutil.CreateJob(t, db, client, category, "Kraan")

	w := do(t, srv, http.MethodDelete, "/api/admin/categories/"+category.ID, nil, admin)
	assert.Equal(t, http.StatusConflict, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.Category{}).Where("id = ?", category.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestJobAndBidFlow(t *testing.T) {
	srv, db := newTestServer(t)
	category := testutil.CreateCategory(t, db, "Loodgieter", "loodgieter")
	clientUser := testutil.CreateUser(t, db, "client@example.nl", models.RoleClient, "")
	proUser, _ := testutil.CreatePro(t, db, "pro@example.nl", category)
	client := sessionCookie(t, srv, clientUser)
	pro := sessionCookie(t, srv, proUser)

	w := do(t, srv, http.MethodPost, "/api/jobs", map[string]any{
		"category_id": category.ID,
		"title":       "Lekkende kraan",
		"city":        "Utrecht",
	}, client)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	jobID := decode[map[string]any](t, w)["id"].(string)

	w = do(t, srv, http.MethodGet, "/api/leads", nil, pro)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]map[string]any](t, w), 1)

	w = do(t, srv, http.MethodPost, "/api/jobs/"+jobID+"/bids", map[string]any{"amount_cents": 15000, "message": "Morgen"}, pro)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	bidID := decode[map[string]any](t, w)["id"].(string)

	w = do(t, srv, http.MethodPost, "/api/jobs/"+jobID+"/bids", map[string]any{"amount_cents": 12000}, pro)
	assert.Equal(t, http.StatusConflict, w.Code)

	w = do(t, srv, http.MethodPost, "/api/bids/"+bidID+"/accept", nil, pro)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(t, srv, http.MethodPost, "/api/bids/"+bidID+"/accept", nil, client)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "ACCEPTED", decode[map[string]any](t, w)["status"])

	w = do(t, srv, http.MethodGet, "/api/jobs/"+jobID, nil, pro)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "IN_PROGRESS", decode[map[string]any](t, w)["status"])

	w = do(t, srv, http.MethodPost, "/api/messages", map[string]any{
		"job_id": jobID, "recipient_id": clientUser.ID, "body": "Ik kom om 9 uur",
	}, pro)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = do(t, srv, http.MethodGet, "/api/messages", nil, client)
	require.Equal(t, http.StatusOK, w.Code)
	conversations := decode[[]map[string]any](t, w)
	require.Len(t, conversations, 1)
	assert.Equal(t, float64(1), conversations[0]["unread"])
}

// newMultipart writes a single "file" part into body and returns its content type
func newMultipart(body *bytes.Buffer, filename string, data []byte) string {
	w := multipart.NewWriter(body)
	part, _ := w.CreateFormFile("file", filename)
	_, _ = part.Write(data)
	_ = w.Close()
	return w.FormDataContentType()
}

func TestPurchaseService_BodyOptional(t *testing.T) {
	srv, db := newTestServer(t)
	category := testutil.CreateCategory(t, db, "Loodgieter", "loodgieter")
	clientUser := testutil.CreateUser(t, db, "client@example.nl", models.RoleClient, "")
	proUser, _ := testutil.CreatePro(t, db, "pro@example.nl", category)
	job := testutil.CreateJob(t, db, clientUser, category, "Kraan")
	other := testutil.CreateJob(t, db, clientUser, category, "Dakgoot")
	testutil.CreateBid(t, db, job, proUser, 10000)
	pro := sessionCookie(t, srv, proUser)

	service := &models.Service{Name: "Uitgelicht", Slug: "uitgelicht", PriceCents: 999, Active: true}
	require.NoError(t, db.Create(service).Error)

	purchase := func(body io.Reader) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/services/"+service.ID+"/purchase", body)
		req.Header.Set("Content-Type", "application/json")
		req.AddCookie(pro)
		w := httptest.NewRecorder()
		srv.Handler().ServeHTTP(w, req)
		return w
	}

	// No body at all
	w := purchase(nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Nil(t, decode[map[string]any](t, w)["job_id"])

	// Chunked body: the reader hides its length, so ContentLength is unknown
	chunked := func(s string) io.Reader { return io.MultiReader(strings.NewReader(s)) }

	w = purchase(chunked(`{"job_id":"` + job.ID + `"}`))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, job.ID, decode[map[string]any](t, w)["job_id"])

	w = purchase(chunked(`{"job_id":"` + other.ID + `"}`))
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = purchase(chunked(""))
	assert.Equal(t, http.StatusCreated, w.Code)

	w = purchase(chunked("{not json"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpload_RejectsNonImages(t *testing.T) {
	srv, db := newTestServer(t)
	client := sessionCookie(t, srv, testutil.CreateUser(t, db, "client@example.nl", models.RoleClient, ""))

	var body bytes.Buffer
	mw := newMultipart(&body, "notes.txt", []byte("just some text"))
	req := httptest.NewRequest(http.MethodPost, "/api/uploads", &body)
	req.Header.Set("Content-Type", mw)
	req.AddCookie(client)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveSessionSecret_Persists(t *testing.T) {
	db := testutil.NewDB(t)

	first, err := resolveSessionSecret(db, "", zerolog.Nop())
	require.NoError(t, err)
	assert.Len(t, first, 64)

	second, err := resolveSessionSecret(db, "", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	configured, err := resolveSessionSecret(db, "from-env", zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, "from-env", configured)
}
