package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	gorilla "github.com/gorilla/websocket"
	"github.com/isdelr/traderlibrary-be/internal/api/handlers"
	"github.com/isdelr/traderlibrary-be/internal/auth"
	"github.com/isdelr/traderlibrary-be/internal/config"
	"github.com/isdelr/traderlibrary-be/internal/database"
	"github.com/isdelr/traderlibrary-be/internal/models"
	"github.com/isdelr/traderlibrary-be/internal/services"
	"github.com/isdelr/traderlibrary-be/internal/store"
	"github.com/isdelr/traderlibrary-be/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type resetInbox struct {
	mu     sync.Mutex
	tokens map[string]string
}

func (i *resetInbox) SendPasswordReset(_ context.Context, a *models.Account, token string) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.tokens[a.Email] = token
	return nil
}

func (i *resetInbox) token(email string) string {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.tokens[email]
}

type testServer struct {
	handler     http.Handler
	store       *store.SQLStore
	inbox       *resetInbox
	hub         *websocket.Hub
	authLimiter *RateLimiter
}

type serverOption func(*config.Config)

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()
	cfg := &config.Config{
		AppEnv:          "test",
		JWTSecret:       "test-secret",
		JWTExpire:       24 * time.Hour,
		JWTIssuer:       "traderlibrary",
		CookieName:      "token",
		CORSOrigins:     []string{"http://localhost:3000", "https://*.traderlibrary.com"},
		RateLimitWindow: 15 * time.Minute,
		RateLimitMax:    1000,
		AuthRateLimit:   1000,
		MaxBodyBytes:    1 << 20,
		ResetTokenTTL:   10 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	ctx := context.Background()
	db, err := database.New(ctx, database.SQLite, filepath.Join(t.TempDir(), "api.db"))
	require.NoError(t, err)
	require.NoError(t, database.Migrate(ctx, db, database.SQLite))
	t.Cleanup(func() { db.Close() })
	st := store.NewSQLStore(db, database.SQLite)

	hubCtx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	hub := websocket.NewHub()
	go hub.Run(hubCtx)

	tokens, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.JWTExpire, cfg.JWTIssuer)
	require.NoError(t, err)
	events := services.NewEventService(st)
	inbox := &resetInbox{tokens: map[string]string{}}
	accounts := services.NewAccountService(st, auth.NewPasswordHasher(bcrypt.MinCost), tokens, events, cfg.ResetTokenTTL).
		WithResetNotifier(inbox).
		WithSessionNotifier(hub)
	admin := services.NewAdminService(st, events, hub)

	authLimiter := NewRateLimiter("auth", cfg.AuthRateLimit, cfg.RateLimitWindow, events)
	router := NewRouter(Dependencies{
		Config:        cfg,
		Accounts:      accounts,
		Admin:         admin,
		Events:        events,
		Authenticator: auth.NewAuthenticator(tokens, st, cfg.CookieName, handlers.RespondError),
		Hub:           hub,
		DB:            st,
		APILimiter:    NewRateLimiter("api", cfg.RateLimitMax, cfg.RateLimitWindow, events),
		AuthLimiter:   authLimiter,
	})
	return &testServer{handler: router, store: st, inbox: inbox, hub: hub, authLimiter: authLimiter}
}

type request struct {
	method string
	path   string
	body   interface{}
	raw    string
	token  string
	cookie *http.Cookie
	header map[string]string
}

func (s *testServer) do(t *testing.T, req request) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var body *bytes.Reader
	switch {
	case req.raw != "":
		body = bytes.NewReader([]byte(req.raw))
	case req.body != nil:
		b, err := json.Marshal(req.body)
		require.NoError(t, err)
		body = bytes.NewReader(b)
	default:
		body = bytes.NewReader(nil)
	}
	r := httptest.NewRequest(req.method, req.path, body)
	r.Header.Set("Content-Type", "application/json")
	if req.token != "" {
		r.Header.Set("Authorization", "Bearer "+req.token)
	}
	if req.cookie != nil {
		r.AddCookie(req.cookie)
	}
	for k, v := range req.header {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, r)

	var out map[string]interface{}
	_ = json.Unmarshal(rec.Body.Bytes(), &out)
	return rec, out
}

func registerBody(username, email string) map[string]interface{} {
	return map[string]interface{}{
		"username":  username,
		"email":     email,
		"password":  "Passw0rd",
		"firstName": "Tom",
		"lastName":  "Trader",
	}
}

func (s *testServer) register(t *testing.T, username, email string) (string, map[string]interface{}) {
	t.Helper()
	rec, body := s.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: registerBody(username, email)})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return body["token"].(string), body["user"].(map[string]interface{})
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == "token" {
			return c
		}
	}
	return nil
}

func TestRegisterEndpoint(t *testing.T) {
	s := newTestServer(t)
	rec, body := s.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: registerBody("trader1", "Trader1@Example.com")})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["token"])
	assert.Equal(t, float64(24*60*60), body["expiresIn"])

	user := body["user"].(map[string]interface{})
	assert.Equal(t, "trader1@example.com", user["email"])
	assert.Equal(t, "Tom Trader", user["fullName"])
	assert.Equal(t, "user", user["role"])
	assert.Equal(t, false, user["hasActiveSubscription"])
	assert.NotContains(t, user, "passwordHash")
	assert.NotContains(t, user, "password")
	assert.NotContains(t, user, "passwordResetToken")

	c := sessionCookie(rec)
	require.NotNil(t, c)
	assert.Equal(t, body["token"], c.Value)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
	assert.False(t, c.Secure)
	assert.Equal(t, "/", c.Path)
}

func TestRegisterErrors(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "trader1", "trader1@example.com")

	rec, body := s.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: registerBody("trader2", "trader1@example.com")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "EMAIL_ALREADY_EXISTS", body["error"])
	assert.Equal(t, false, body["success"])

	rec, body = s.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: registerBody("trader1", "other@example.com")})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "USERNAME_ALREADY_EXISTS", body["error"])

	rec, body = s.do(t, request{method: http.MethodPost, path: "/api/auth/register", raw: "{not json"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_REQUEST_BODY", body["error"])

	weak := registerBody("trader3", "trader3@example.com")
	weak["password"] = "weak"
	rec, body = s.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: weak})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", body["error"])
	errs := body["errors"].([]interface{})
	require.Len(t, errs, 1)
	assert.Equal(t, "password", errs[0].(map[string]interface{})["field"])
}

func TestLoginMeLogout(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "trader1", "trader1@example.com")

	rec, body := s.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"email": "trader1@example.com", "password": "Passw0rd"}})
	require.Equal(t, http.StatusOK, rec.Code)
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.NotNil(t, body["user"].(map[string]interface{})["lastLogin"])

	rec, body = s.do(t, request{method: http.MethodGet, path: "/api/auth/me", cookie: cookie})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "trader1", body["user"].(map[string]interface{})["username"])

	rec, body = s.do(t, request{method: http.MethodGet, path: "/api/auth/me"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "AUTHENTICATION_REQUIRED", body["error"])

	rec, _ = s.do(t, request{method: http.MethodPost, path: "/api/auth/logout", cookie: cookie})
	require.Equal(t, http.StatusOK, rec.Code)
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Equal(t, "none", cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestLoginFailures(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "trader1", "trader1@example.com")

	recUnknown, unknown := s.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"email": "ghost@example.com", "password": "Passw0rd"}})
	recWrong, wrong := s.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"email": "trader1@example.com", "password": "Wr0ngPass"}})

	assert.Equal(t, http.StatusUnauthorized, recUnknown.Code)
	assert.Equal(t, http.StatusUnauthorized, recWrong.Code)
	assert.Equal(t, unknown, wrong)
	assert.Equal(t, "INVALID_CREDENTIALS", wrong["error"])
}

func TestUpdateProfileIgnoresUnlistedFields(t *testing.T) {
	s := newTestServer(t)
	token, user := s.register(t, "trader1", "trader1@example.com")

	rec, body := s.do(t, request{method: http.MethodPut, path: "/api/auth/update-profile", token: token, body: map[string]interface{}{
		"firstName":    "Ada",
		"role":         "admin",
		"email":        "evil@example.com",
		"referralCode": "HIJACK",
		"preferences":  map[string]interface{}{"timezone": "Asia/Tokyo"},
	}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := body["user"].(map[string]interface{})
	assert.Equal(t, "Ada", updated["firstName"])
	assert.Equal(t, "user", updated["role"])
	assert.Equal(t, "trader1@example.com", updated["email"])
	assert.Equal(t, user["referralCode"], updated["referralCode"])
	assert.Equal(t, "Asia/Tokyo", updated["preferences"].(map[string]interface{})["timezone"])
}

func TestChangePasswordInvalidatesOldToken(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "trader1", "trader1@example.com")

	rec, body := s.do(t, request{method: http.MethodPut, path: "/api/auth/change-password", token: token,
		body: map[string]string{"currentPassword": "nope", "newPassword": "N3wPassword"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_CURRENT_PASSWORD", body["error"])

	// Tokens carry whole-second issue times; make sure the change lands in a
	// later second than the token.
	time.Sleep(1100 * time.Millisecond)
	rec, _ = s.do(t, request{method: http.MethodPut, path: "/api/auth/change-password", token: token,
		body: map[string]string{"currentPassword": "Passw0rd", "newPassword": "N3wPassword"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec, body = s.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "PASSWORD_CHANGED", body["error"])
}

func TestForgotAndResetPasswordEndpoints(t *testing.T) {
	s := newTestServer(t)
	s.register(t, "trader1", "trader1@example.com")

	rec, body := s.do(t, request{method: http.MethodPost, path: "/api/auth/forgot-password", body: map[string]string{"email": "ghost@example.com"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "USER_NOT_FOUND", body["error"])

	rec, _ = s.do(t, request{method: http.MethodPost, path: "/api/auth/forgot-password", body: map[string]string{"email": "trader1@example.com"}})
	require.Equal(t, http.StatusOK, rec.Code)
	token := s.inbox.token("trader1@example.com")
	require.NotEmpty(t, token)

	rec, body = s.do(t, request{method: http.MethodPost, path: "/api/auth/reset-password/" + token, body: map[string]string{"password": "Fr3shPass"}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, body["token"])

	rec, body = s.do(t, request{method: http.MethodPost, path: "/api/auth/reset-password/" + token, body: map[string]string{"password": "Fr3shPass"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_RESET_TOKEN", body["error"])

	rec, _ = s.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"email": "trader1@example.com", "password": "Fr3shPass"}})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPremiumAndAdminGating(t *testing.T) {
	s := newTestServer(t)
	userToken, user := s.register(t, "trader1", "trader1@example.com")
	adminToken, adminUser := s.register(t, "boss", "boss@example.com")
	require.NoError(t, s.store.SetRole(context.Background(), adminUser["id"].(string), models.RoleAdmin, time.Now()))

	rec, body := s.do(t, request{method: http.MethodGet, path: "/api/premium/access", token: userToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "PREMIUM_REQUIRED", body["error"])

	rec, body = s.do(t, request{method: http.MethodGet, path: "/api/admin/subscribers", token: userToken})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "INSUFFICIENT_PERMISSIONS", body["error"])

	end := time.Now().Add(24 * time.Hour).UTC()
	rec, body = s.do(t, request{method: http.MethodPut, path: "/api/admin/accounts/" + user["id"].(string) + "/subscription", token: adminToken,
		body: map[string]interface{}{"type": "premium", "isActive": true, "endDate": end}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["user"].(map[string]interface{})["hasActiveSubscription"])

	rec, body = s.do(t, request{method: http.MethodGet, path: "/api/premium/access", token: userToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "premium", body["plan"])

	rec, body = s.do(t, request{method: http.MethodGet, path: "/api/admin/subscribers", token: adminToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["count"])

	rec, body = s.do(t, request{method: http.MethodGet, path: "/api/admin/events?limit=5", token: adminToken})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["events"])

	rec, _ = s.do(t, request{method: http.MethodPut, path: "/api/admin/accounts/" + user["id"].(string) + "/status", token: adminToken,
		body: map[string]bool{"isActive": false}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, body = s.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: userToken})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "ACCOUNT_DEACTIVATED", body["error"])

	rec, body = s.do(t, request{method: http.MethodPut, path: "/api/admin/accounts/missing/role", token: adminToken, body: map[string]string{"role": "premium"}})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "NOT_FOUND", body["error"])
}

func TestSuspiciousInputRejected(t *testing.T) {
	s := newTestServer(t)

	bad := registerBody("trader1", "trader1@example.com")
	bad["firstName"] = "<script>alert(1)</script>"
	rec, body := s.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: bad})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SUSPICIOUS_INPUT", body["error"])

	rec, body = s.do(t, request{method: http.MethodPost, path: "/api/auth/login", raw: `{"email":{"$gt":""},"password":"x"}`})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "SUSPICIOUS_INPUT", body["error"])

	odd := registerBody("trader2", "trader2@example.com")
	odd["password"] = "Pa55<script>"
	rec, _ = s.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: odd})
	assert.Equal(t, http.StatusCreated, rec.Code, "password fields are not pattern-checked")
}

func TestPayloadTooLarge(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.MaxBodyBytes = 64 })
	body := registerBody("trader1", "trader1@example.com")
	body["lastName"] = strings.Repeat("x", 200)
	rec, out := s.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: body})
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "PAYLOAD_TOO_LARGE", out["error"])
}

func TestAuthRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.AuthRateLimit = 2 })
	login := request{method: http.MethodPost, path: "/api/auth/login", body: map[string]string{"email": "a@example.com", "password": "x"}}

	for i := 0; i < 2; i++ {
		rec, _ := s.do(t, login)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	}
	rec, body := s.do(t, login)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "RATE_LIMIT_EXCEEDED", body["error"])
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	rec, _ = s.do(t, request{method: http.MethodGet, path: "/api/health"})
	assert.Equal(t, http.StatusOK, rec.Code, "the auth limiter only covers credential endpoints")
}

func TestHealthWelcomeAndNotFound(t *testing.T) {
	s := newTestServer(t)

	rec, body := s.do(t, request{method: http.MethodGet, path: "/api/health"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, "connected", body["database"])
	assert.Equal(t, "test", body["environment"])
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))

	rec, body = s.do(t, request{method: http.MethodGet, path: "/"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["success"])

	rec, body = s.do(t, request{method: http.MethodGet, path: "/api/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ROUTE_NOT_FOUND", body["error"])

	rec, body = s.do(t, request{method: http.MethodDelete, path: "/api/auth/login"})
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "METHOD_NOT_ALLOWED", body["error"])
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)
	preflight := func(origin string) *httptest.ResponseRecorder {
		rec, _ := s.do(t, request{method: http.MethodOptions, path: "/api/auth/login", header: map[string]string{
			"Origin":                        origin,
			"Access-Control-Request-Method": "POST",
		}})
		return rec
	}

	assert.Equal(t, "http://localhost:3000", preflight("http://localhost:3000").Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "https://app.traderlibrary.com", preflight("https://app.traderlibrary.com").Header().Get("Access-Control-Allow-Origin"))
	assert.Empty(t, preflight("https://evil.example").Header().Get("Access-Control-Allow-Origin"))
}

func TestOriginMatcher(t *testing.T) {
	m := NewOriginMatcher([]string{"http://localhost:3000/", " https://*.traderlibrary.com ", ""})
	tests := map[string]bool{
		"http://localhost:3000":            true,
		"HTTP://LOCALHOST:3000":            true,
		"http://localhost:3001":            false,
		"https://app.traderlibrary.com":    true,
		"https://a.b.traderlibrary.com":    true,
		"https://.traderlibrary.com":       false,
		"https://traderlibrary.com":        false,
		"https://traderlibrary.com.evil.io": false,
	}
	for origin, want := range tests {
		assert.Equal(t, want, m.Allowed(origin), origin)
	}
	assert.True(t, NewOriginMatcher([]string{"*"}).Allowed("https://anything.example"))
}

func TestRateLimiterSweep(t *testing.T) {
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	l := NewRateLimiter("test", 1, time.Minute, nil)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("10.0.0.1")
	assert.True(t, ok)
	ok, retry := l.Allow("10.0.0.1")
	assert.False(t, ok)
	assert.Positive(t, retry)

	now = now.Add(10 * time.Minute)
	l.Allow("10.0.0.2")
	assert.Equal(t, 1, l.Sweep(5*time.Minute))
	ok, _ = l.Allow("10.0.0.1")
	assert.True(t, ok)
}

func TestAccountEventStream(t *testing.T) {
	s := newTestServer(t)
	token, _ := s.register(t, "trader1", "trader1@example.com")

	srv := httptest.NewServer(s.handler)
	defer srv.Close()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/auth/events"

	_, resp, err := gorilla.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	conn, _, err := gorilla.DefaultDialer.Dial(url, http.Header{"Authorization": {"Bearer " + token}})
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg websocket.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.ActionConnected, msg.Action)

	require.NoError(t, conn.WriteJSON(websocket.Message{Action: websocket.ActionPing}))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.ActionPong, msg.Action)

	require.Eventually(t, func() bool { return s.hub.ConnectedClients() == 1 }, 2*time.Second, 10*time.Millisecond)

	rec, _ := s.do(t, request{method: http.MethodPut, path: "/api/auth/change-password", token: token,
		body: map[string]string{"currentPassword": "Passw0rd", "newPassword": "N3wPassword"}})
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, websocket.ActionSessionRevoked, msg.Action)

	_, _, err = conn.ReadMessage()
	assert.True(t, gorilla.IsCloseError(err, gorilla.CloseNormalClosure), "connection is closed after revocation: %v", err)
}
