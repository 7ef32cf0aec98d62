package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/coastalkoffix/webapp/internal/domain"
	"github.com/coastalkoffix/webapp/internal/service"
	"github.com/coastalkoffix/webapp/internal/session"
	"github.com/coastalkoffix/webapp/pkg/config"
)

// ---------- Fakes ----------

type fakeUserRepo struct {
	mu    sync.Mutex
	seq   int64
	users map[string]*domain.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*domain.User)}
}

func (f *fakeUserRepo) Create(_ context.Context, req *domain.RegisterRequest, passwordHash string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.users[req.Email]; ok {
		return nil, domain.ErrDuplicateEmail
	}

	f.seq++
	u := &domain.User{
		ID:           f.seq,
		FirstName:    req.FirstName,
		Email:        req.Email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}
	f.users[req.Email] = u

	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[email]
	if !ok {
		return nil, nil
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUserRepo) MarkVerified(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[email]
	if !ok {
		return fmt.Errorf("no user for %s", email)
	}
	u.IsVerified = true
	return nil
}

func (f *fakeUserRepo) UpdatePassword(_ context.Context, email, passwordHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[email]
	if !ok {
		return fmt.Errorf("no user for %s", email)
	}
	u.PasswordHash = passwordHash
	return nil
}

type fakeOTPRepo struct {
	mu    sync.Mutex
	codes map[string]string
	last  string
}

func newFakeOTPRepo() *fakeOTPRepo {
	return &fakeOTPRepo{codes: make(map[string]string)}
}

func (f *fakeOTPRepo) Issue(_ context.Context, email string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.last = fmt.Sprintf("%04d", 1000+len(f.codes)+int(time.Now().UnixNano()%1000))
	f.codes[email] = f.last
	return f.last, nil
}

func (f *fakeOTPRepo) Verify(_ context.Context, email, code string) (domain.CodeStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if stored, ok := f.codes[email]; !ok || stored != code {
		return domain.CodeInvalid, nil
	}
	return domain.CodeConsumed, nil
}

func (f *fakeOTPRepo) Clear(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	delete(f.codes, email)
	return nil
}

func (f *fakeOTPRepo) lastCode() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last
}

type stubBus struct{}

func (stubBus) Publish(context.Context, string, interface{}) error { return nil }
func (stubBus) Close() error                                       { return nil }

type stubLimiter struct{ allow bool }

func (s *stubLimiter) CheckRateLimit(context.Context, string, int, time.Duration) (bool, error) {
	return s.allow, nil
}

func (s *stubLimiter) CleanupExpired(context.Context) (int64, error) { return 0, nil }

// ---------- Harness ----------

type testApp struct {
	router  chi.Router
	users   *fakeUserRepo
	codes   *fakeOTPRepo
	limiter *stubLimiter
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := &config.Config{
		Session: config.SessionConfig{
			Secret:     "test-secret",
			CookieName: "ck_session",
			TTL:        24 * time.Hour,
		},
	}

	users := newFakeUserRepo()
	codes := newFakeOTPRepo()
	limiter := &stubLimiter{allow: true}

	sessions := session.NewStore(client, cfg.Session.Secret, cfg.Session.TTL)
	auth := service.NewAuthService(users, codes, stubBus{})
	h := New(auth, users, sessions, limiter, cfg)

	r := chi.NewRouter()
	r.Group(h.Routes)

	return &testApp{router: r, users: users, codes: codes, limiter: limiter}
}

func (a *testApp) get(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testApp) postForm(path string, form url.Values, cookie *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()

	for _, c := range rec.Result().Cookies() {
		if c.Name == "ck_session" && c.Value != "" {
			return c
		}
	}
	t.Fatal("no session cookie set")
	return nil
}

func wantRedirect(t *testing.T, rec *httptest.ResponseRecorder, location string) {
	t.Helper()

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302 (body: %s)", rec.Code, rec.Body.String())
	}
	if got := rec.Header().Get("Location"); got != location {
		t.Fatalf("Location = %q, want %q", got, location)
	}
}

// ---------- Tests ----------

func TestRegisterAndVerifyFlow(t *testing.T) {
	app := newTestApp(t)

	rec := app.postForm("/register", url.Values{
		"firstName": {"Asha"},
		"email":     {"a@x.com"},
		"password":  {"Abc123!x"},
	}, nil)
	wantRedirect(t, rec, "/verify-otp?email=a%40x.com")

	u, _ := app.users.FindByEmail(context.Background(), "a@x.com")
	if u == nil || u.IsVerified {
		t.Fatal("expected unverified user after registration")
	}

	// Wrong code: message, no state change, no session.
	rec = app.postForm("/verify-otp", url.Values{
		"email": {"a@x.com"},
		"otp":   {"0000"},
	}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Invalid OTP") {
		t.Fatalf("wrong code: status %d body %q", rec.Code, rec.Body.String())
	}
	u, _ = app.users.FindByEmail(context.Background(), "a@x.com")
	if u.IsVerified {
		t.Fatal("user verified after wrong code")
	}

	// Correct code: verified, session established, redirected home.
	rec = app.postForm("/verify-otp", url.Values{
		"email": {"a@x.com"},
		"otp":   {app.codes.lastCode()},
	}, nil)
	wantRedirect(t, rec, "/home")
	cookie := sessionCookie(t, rec)

	u, _ = app.users.FindByEmail(context.Background(), "a@x.com")
	if !u.IsVerified {
		t.Fatal("user not verified after correct code")
	}

	rec = app.get("/home", cookie)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Asha") {
		t.Fatalf("/home: status %d body %q", rec.Code, rec.Body.String())
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	app := newTestApp(t)

	rec := app.postForm("/register", url.Values{
		"firstName": {"Asha"},
		"email":     {"a@x.com"},
		"password":  {"weak"},
	}, nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "Password rules not matched") {
		t.Fatalf("status %d body %q", rec.Code, rec.Body.String())
	}

	if u, _ := app.users.FindByEmail(context.Background(), "a@x.com"); u != nil {
		t.Fatal("user persisted despite policy rejection")
	}
}

func TestDuplicateRegistration(t *testing.T) {
	app := newTestApp(t)

	form := url.Values{
		"firstName": {"Asha"},
		"email":     {"a@x.com"},
		"password":  {"Abc123!x"},
	}
	app.postForm("/register", form, nil)

	rec := app.postForm("/register", form, nil)
	if !strings.Contains(rec.Body.String(), "Email already registered") {
		t.Fatalf("body %q", rec.Body.String())
	}
}

func TestSessionGate(t *testing.T) {
	app := newTestApp(t)

	// Anonymous callers are pushed to login from protected pages.
	wantRedirect(t, app.get("/home", nil), "/login")
	wantRedirect(t, app.get("/profile", nil), "/login")

	cookie := loginAs(t, app, "a@x.com")

	// Authenticated callers are pushed off anonymous-only pages.
	wantRedirect(t, app.get("/login", cookie), "/home")
	wantRedirect(t, app.get("/register", cookie), "/home")
	wantRedirect(t, app.get("/", cookie), "/home")
}

func TestLogout(t *testing.T) {
	app := newTestApp(t)
	cookie := loginAs(t, app, "a@x.com")

	wantRedirect(t, app.get("/logout", cookie), "/login")

	// The session is gone server-side; the old cookie no longer works.
	wantRedirect(t, app.get("/home", cookie), "/login")
}

func TestForgotPasswordUnknownEmail(t *testing.T) {
	app := newTestApp(t)

	rec := app.postForm("/forgot-password", url.Values{"email": {"nobody@x.com"}}, nil)
	if !strings.Contains(rec.Body.String(), "Email not registered") {
		t.Fatalf("body %q", rec.Body.String())
	}
	if app.codes.lastCode() != "" {
		t.Fatal("code issued for unregistered email")
	}
}

func TestPasswordResetFlow(t *testing.T) {
	app := newTestApp(t)
	loginAs(t, app, "a@x.com")

	rec := app.postForm("/forgot-password", url.Values{"email": {"a@x.com"}}, nil)
	wantRedirect(t, rec, "/reset-otp?email=a%40x.com")

	rec = app.postForm("/reset-otp", url.Values{
		"email": {"a@x.com"},
		"otp":   {app.codes.lastCode()},
	}, nil)
	wantRedirect(t, rec, "/reset-password?email=a%40x.com")

	rec = app.postForm("/reset-password", url.Values{
		"email":           {"a@x.com"},
		"password":        {"New123!z"},
		"confirmPassword": {"New123!z"},
	}, nil)
	wantRedirect(t, rec, "/login")

	// Old password rejected, new one accepted.
	rec = app.postForm("/login", url.Values{"email": {"a@x.com"}, "password": {"Abc123!x"}}, nil)
	if !strings.Contains(rec.Body.String(), "Incorrect password") {
		t.Fatalf("old password: body %q", rec.Body.String())
	}
	rec = app.postForm("/login", url.Values{"email": {"a@x.com"}, "password": {"New123!z"}}, nil)
	wantRedirect(t, rec, "/home")
}

func TestResetPasswordMismatch(t *testing.T) {
	app := newTestApp(t)
	loginAs(t, app, "a@x.com")

	rec := app.postForm("/reset-password", url.Values{
		"email":           {"a@x.com"},
		"password":        {"New123!z"},
		"confirmPassword": {"Other123!"},
	}, nil)
	if !strings.Contains(rec.Body.String(), "Passwords do not match") {
		t.Fatalf("body %q", rec.Body.String())
	}
}

func TestLoginOutcomes(t *testing.T) {
	app := newTestApp(t)

	rec := app.postForm("/login", url.Values{"email": {"ghost@x.com"}, "password": {"Abc123!x"}}, nil)
	if !strings.Contains(rec.Body.String(), "User not found") {
		t.Fatalf("unknown: body %q", rec.Body.String())
	}

	// Registered but not verified.
	app.postForm("/register", url.Values{
		"firstName": {"Asha"},
		"email":     {"a@x.com"},
		"password":  {"Abc123!x"},
	}, nil)
	rec = app.postForm("/login", url.Values{"email": {"a@x.com"}, "password": {"Abc123!x"}}, nil)
	if !strings.Contains(rec.Body.String(), "Please verify OTP first") {
		t.Fatalf("unverified: body %q", rec.Body.String())
	}
}

func TestRateLimitBlocks(t *testing.T) {
	app := newTestApp(t)
	app.limiter.allow = false

	rec := app.postForm("/login", url.Values{"email": {"a@x.com"}, "password": {"Abc123!x"}}, nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", rec.Code)
	}
}

// loginAs registers, verifies, and logs in a user, returning the session
// cookie from the login response.
func loginAs(t *testing.T, app *testApp, email string) *http.Cookie {
	t.Helper()

	app.postForm("/register", url.Values{
		"firstName": {"Asha"},
		"email":     {email},
		"password":  {"Abc123!x"},
	}, nil)
	app.postForm("/verify-otp", url.Values{
		"email": {email},
		"otp":   {app.codes.lastCode()},
	}, nil)

	rec := app.postForm("/login", url.Values{
		"email":    {email},
		"password": {"Abc123!x"},
	}, nil)
	wantRedirect(t, rec, "/home")

	return sessionCookie(t, rec)
}
