package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/jrsteele09/go-booking-session/authapi"
	"github.com/jrsteele09/go-booking-session/authapi/fakeapi"
	"github.com/jrsteele09/go-booking-session/authevents"
	"github.com/jrsteele09/go-booking-session/internal/config"
	"github.com/jrsteele09/go-booking-session/server"
	"github.com/jrsteele09/go-booking-session/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const (
	testUserEmail  = "alice@example.com"
	testOwnerEmail = "olive@example.com"
	testPassword   = "password123"
)

type testEnv struct {
	fake   *fakeapi.Server
	api    *authapi.Client
	stores tokenstore.Provider
	bus    *authevents.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	fake := fakeapi.New("test-secret", fakeapi.WithBcryptCost(bcrypt.MinCost))
	apiSrv := httptest.NewServer(fake)
	t.Cleanup(apiSrv.Close)

	_, err := fake.AddUser("alice", "Alice", testUserEmail, testPassword)
	require.NoError(t, err)
	_, err = fake.AddOwner("Olive", testOwnerEmail, "555-0100", testPassword)
	require.NoError(t, err)

	bus := authevents.NewHub(8)
	t.Cleanup(func() { _ = bus.Close() })

	return &testEnv{
		fake:   fake,
		api:    authapi.NewClient(apiSrv.URL),
		stores: tokenstore.MemoryProvider(),
		bus:    bus,
	}
}

func (e *testEnv) deps() server.Deps {
	return server.Deps{API: e.api, Stores: e.stores, Bus: e.bus}
}

func newTestServer(t *testing.T, deps server.Deps) *httptest.Server {
	t.Helper()
	c, err := config.NewFromMap(map[string]string{"ENV": "TEST", "APP_NAME": "Table Booking"})
	require.NoError(t, err)

	s, err := server.New(c, deps)
	require.NoError(t, err)
	t.Cleanup(s.Close)

	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)
	return srv
}

// browser keeps cookies and never follows redirects.
type browser struct {
	t      *testing.T
	base   string
	client *http.Client
}

func newBrowser(t *testing.T, base string) *browser {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &browser{
		t:    t,
		base: base,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// at returns a browser sharing b's cookies but talking to another server.
func (b *browser) at(base string) *browser {
	return &browser{t: b.t, base: base, client: b.client}
}

func (b *browser) get(path string) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.Get(b.base + path)
	require.NoError(b.t, err)
	return resp, readBody(b.t, resp)
}

func (b *browser) post(path string, form url.Values) (*http.Response, string) {
	b.t.Helper()
	resp, err := b.client.PostForm(b.base+path, form)
	require.NoError(b.t, err)
	return resp, readBody(b.t, resp)
}

func (b *browser) loginUser() {
	b.t.Helper()
	resp, _ := b.post("/login", url.Values{"email": {testUserEmail}, "password": {testPassword}})
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(b.t, "/dashboard/user", resp.Header.Get("Location"))
}

func (b *browser) loginOwner() {
	b.t.Helper()
	resp, _ := b.post("/owner-login", url.Values{"email": {testOwnerEmail}, "password": {testPassword}})
	require.Equal(b.t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(b.t, "/dashboard/owner", resp.Header.Get("Location"))
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(b)
}

func TestGuardRedirectsAnonymousBrowser(t *testing.T) {
	env := newTestEnv(t)
	b := newBrowser(t, newTestServer(t, env.deps()).URL)

	tests := []struct {
		path     string
		location string
	}{
		{"/", "/dashboard"},
		{"/dashboard", "/login"},
		{"/dashboard/user", "/login"},
		{"/dashboard/owner", "/login"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, _ := b.get(tt.path)
			require.Equal(t, http.StatusSeeOther, resp.StatusCode)
			require.Equal(t, tt.location, resp.Header.Get("Location"))
		})
	}

	resp, body := b.get("/owner-login")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "restaurant owner")
}

func TestBrowserCookieIssued(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env.deps())

	resp, err := http.Get(srv.URL + "/login")
	require.NoError(t, err)
	readBody(t, resp)

	var found *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == "browser_id" {
			found = c
		}
	}
	require.NotNil(t, found)
	require.True(t, found.HttpOnly)
	require.NotEmpty(t, found.Value)
	require.Equal(t, "no-store", resp.Header.Get("Cache-Control"))
}

func TestLoginFlow(t *testing.T) {
	env := newTestEnv(t)
	b := newBrowser(t, newTestServer(t, env.deps()).URL)

	b.loginUser()

	resp, body := b.get("/dashboard/user")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Welcome, Alice")

	// Signed-in users skip the login page
	resp, _ = b.get("/login")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard/user", resp.Header.Get("Location"))

	// The owner side is still signed out
	resp, _ = b.get("/dashboard/owner")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard/user", resp.Header.Get("Location"))

	resp, _ = b.get("/dashboard")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard/user", resp.Header.Get("Location"))
}

func TestInvalidLoginRendersInlineError(t *testing.T) {
	env := newTestEnv(t)
	b := newBrowser(t, newTestServer(t, env.deps()).URL)

	resp, body := b.post("/login", url.Values{"email": {testUserEmail}, "password": {"wrong-password"}})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Empty(t, resp.Header.Get("Location"))
	require.Contains(t, body, "Invalid email or password")
	require.Contains(t, body, testUserEmail, "email is kept in the form")

	resp, _ = b.get("/dashboard/user")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestOwnerRegister(t *testing.T) {
	env := newTestEnv(t)
	b := newBrowser(t, newTestServer(t, env.deps()).URL)

	resp, body := b.post("/owner-register", url.Values{
		"name":     {"Olive"},
		"email":    {testOwnerEmail},
		"phone":    {"555-0100"},
		"password": {testPassword},
	})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Contains(t, body, "alert")

	resp, _ = b.post("/owner-register", url.Values{
		"name":     {"Oscar"},
		"email":    {"oscar@example.com"},
		"phone":    {"555-0101"},
		"password": {testPassword},
	})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard/owner", resp.Header.Get("Location"))

	resp, body = b.get("/dashboard/owner")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Oscar")
	require.Contains(t, body, "555-0101")
}

func TestRegisterNetworkFailure(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL
	dead.Close()

	deps := server.Deps{
		API:    authapi.NewClient(deadURL, authapi.WithTimeout(time.Second)),
		Stores: tokenstore.MemoryProvider(),
	}
	b := newBrowser(t, newTestServer(t, deps).URL)

	resp, body := b.post("/register", url.Values{
		"username": {"bob"},
		"name":     {"Bob"},
		"email":    {"bob@example.com"},
		"password": {testPassword},
	})
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	require.Contains(t, body, "Registration failed: Network error")
}

func TestLogout(t *testing.T) {
	env := newTestEnv(t)
	b := newBrowser(t, newTestServer(t, env.deps()).URL)
	b.loginUser()
	b.loginOwner()

	resp, _ := b.post("/logout", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))

	resp, _ = b.get("/dashboard/user")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/dashboard/owner", resp.Header.Get("Location"))

	resp, _ = b.get("/dashboard/owner")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// Logging out twice lands on the same page
	resp, _ = b.post("/logout", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestDashboardChooserWhenBothSignedIn(t *testing.T) {
	env := newTestEnv(t)
	b := newBrowser(t, newTestServer(t, env.deps()).URL)
	b.loginUser()
	b.loginOwner()

	resp, body := b.get("/dashboard")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Continue as Alice")
	require.Contains(t, body, "Manage restaurants as Olive")
}

func TestSessionEndpoint(t *testing.T) {
	env := newTestEnv(t)
	b := newBrowser(t, newTestServer(t, env.deps()).URL)

	_, body := b.get("/api/session")
	var anon map[string]any
	require.NoError(t, json.Unmarshal([]byte(body), &anon))
	require.Equal(t, false, anon["isAuthenticated"])

	b.loginUser()
	resp, body := b.get("/api/session")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got struct {
		IsAuthenticated bool   `json:"isAuthenticated"`
		UserState       string `json:"userState"`
		OwnerState      string `json:"ownerState"`
		User            *struct {
			Email string `json:"email"`
		} `json:"user"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &got))
	require.True(t, got.IsAuthenticated)
	require.NotNil(t, got.User)
	require.Equal(t, testUserEmail, got.User.Email)
	require.Equal(t, "authenticated", got.UserState)
	require.Equal(t, "unauthenticated", got.OwnerState)
	require.NotContains(t, body, "eyJ", "tokens never leave the server")
}

func TestRefreshEndpoint(t *testing.T) {
	env := newTestEnv(t)
	b := newBrowser(t, newTestServer(t, env.deps()).URL)

	resp, body := b.post("/owner/auth/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, body, `"redirect":"/owner-login"`)

	b.loginUser()
	resp, body = b.post("/auth/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `"authenticated":true`)
	require.Equal(t, 1, env.fake.Requests(authapi.PathRefresh))

	env.fake.FailNext(authapi.PathRefresh, http.StatusUnauthorized, "Invalid token")
	resp, body = b.post("/auth/refresh", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Contains(t, body, `"redirect":"/login"`)

	resp, _ = b.get("/dashboard/user")
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)
	require.Equal(t, "/login", resp.Header.Get("Location"))
}

func TestPlaceholderWhileSigningIn(t *testing.T) {
	env := newTestEnv(t)
	b := newBrowser(t, newTestServer(t, env.deps()).URL)

	// Pick up the browser cookie first so both requests share a scope
	resp, _ := b.get("/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	release := env.fake.Hold(authapi.PathLogin)
	defer release()

	done := make(chan int, 1)
	go func() {
		resp, err := b.client.PostForm(b.base+"/login", url.Values{"email": {testUserEmail}, "password": {testPassword}})
		if !assert.NoError(t, err) {
			done <- 0
			return
		}
		_ = resp.Body.Close()
		done <- resp.StatusCode
	}()

	require.Eventually(t, func() bool {
		return env.fake.Requests(authapi.PathLogin) == 1
	}, 2*time.Second, 10*time.Millisecond)

	resp, body := b.get("/dashboard/user")
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Equal(t, "1", resp.Header.Get("Retry-After"))
	require.Contains(t, body, "Loading your session")
	require.NotContains(t, body, "Welcome")

	release()
	require.Equal(t, http.StatusSeeOther, <-done)

	resp, _ = b.get("/dashboard/user")
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSessionSharedAcrossInstances(t *testing.T) {
	env := newTestEnv(t)
	a := newBrowser(t, newTestServer(t, env.deps()).URL)
	a.loginUser()

	// A second instance hydrates the same browser scope from the shared store
	b := a.at(newTestServer(t, env.deps()).URL)
	resp, body := b.get("/dashboard/user")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Welcome, "+testUserEmail, "a restored session only knows the token claims")

	resp, _ = a.post("/logout", nil)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	require.Eventually(t, func() bool {
		resp, _ := b.get("/dashboard/user")
		return resp.StatusCode == http.StatusSeeOther && resp.Header.Get("Location") == "/login"
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	deps := env.deps()
	deps.HealthChecks = map[string]func(context.Context) error{
		"store": func(context.Context) error { return nil },
	}
	srv := newTestServer(t, deps)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, `"store":"ok"`)

	deps.HealthChecks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	srv = newTestServer(t, deps)
	resp, err = http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	body = readBody(t, resp)
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	require.Contains(t, body, "connection refused")
}

func TestMetrics(t *testing.T) {
	env := newTestEnv(t)
	srv := newTestServer(t, env.deps())
	b := newBrowser(t, srv.URL)
	b.loginUser()
	b.get("/dashboard/user")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body := readBody(t, resp)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.True(t, strings.Contains(body, "booking_guard_decisions_total"))
	require.Contains(t, body, "booking_session_transitions_total")
}

func TestCorsPreflight(t *testing.T) {
	env := newTestEnv(t)
	c, err := config.NewFromMap(map[string]string{"ENV": "TEST", "ALLOWED_ORIGINS": "https://app.example.com"})
	require.NoError(t, err)
	s, err := server.New(c, env.deps())
	require.NoError(t, err)
	t.Cleanup(s.Close)

	req := httptest.NewRequest(http.MethodOptions, "/api/session", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	require.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}
