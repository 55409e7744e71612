package auth

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/dunes-blog/internal/metrics"
	"github.com/hongminglow/dunes-blog/internal/models"
	"github.com/hongminglow/dunes-blog/internal/storage"
)

type fakeStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	findErr  error
	touchErr error
	touched  map[string]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{users: map[string]models.User{}, touched: map[string]time.Time{}}
}

func (s *fakeStore) add(t *testing.T, id, username, password, role string) models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	u := models.User{ID: id, Username: username, PasswordHash: string(hash), Role: role, CreatedAt: time.Now().UTC()}
	s.mu.Lock()
	s.users[id] = u
	s.mu.Unlock()
	return u
}

func (s *fakeStore) CreateUser(_ context.Context, u models.User) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
	return u, nil
}

func (s *fakeStore) FindByUsername(_ context.Context, username string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return models.User{}, s.findErr
	}
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, storage.ErrNotFound
}

func (s *fakeStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.findErr != nil {
		return models.User{}, s.findErr
	}
	u, ok := s.users[id]
	if !ok {
		return models.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *fakeStore) TouchLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.touchErr != nil {
		return s.touchErr
	}
	s.touched[id] = at
	return nil
}

func (s *fakeStore) UpdatePassword(context.Context, string, string) error { return nil }
func (s *fakeStore) Close() error                                          { return nil }

func (s *fakeStore) lastTouched(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.touched[id]
	return at, ok
}

type fakeRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func (f *fakeRevocations) Revoke(_ context.Context, id string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revoked == nil {
		f.revoked = map[string]time.Duration{}
	}
	f.revoked[id] = ttl
	return nil
}

func (f *fakeRevocations) IsRevoked(_ context.Context, id string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	_, ok := f.revoked[id]
	return ok, nil
}

type gateFixture struct {
	gate  *Gate
	store *fakeStore
	clock *fakeClock
	reg   *prometheus.Registry
}

func newGateFixture(t *testing.T, opts ...GateOption) *gateFixture {
	t.Helper()
	clock := newTestClock()
	store := newFakeStore()
	store.add(t, "u-admin", "admin", "admin123", models.RoleAdmin)
	store.add(t, "u-user", "writer", "writer123", models.RoleUser)

	reg := prometheus.NewRegistry()
	base := []GateOption{
		WithLogger(zaptest.NewLogger(t)),
		WithMetrics(metrics.NewAuth(reg, "test")),
	}
	gate := NewGate(store, newTestCodec(t, clock), DefaultCookieSettings(true), append(base, opts...)...)
	t.Cleanup(gate.Wait)
	return &gateFixture{gate: gate, store: store, clock: clock, reg: reg}
}

// login performs a login and returns the Set-Cookie value, if any.
func (f *gateFixture) login(t *testing.T, username, password string) (models.Session, *http.Cookie, error) {
	t.Helper()
	rec := httptest.NewRecorder()
	acc := f.gate.Accessor(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	s, err := f.gate.Login(context.Background(), acc, username, password)
	var cookie *http.Cookie
	if cookies := rec.Result().Cookies(); len(cookies) > 0 {
		cookie = cookies[0]
	}
	return s, cookie, err
}

func (f *gateFixture) accessorWith(cookie *http.Cookie) (*Accessor, *httptest.ResponseRecorder) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	rec := httptest.NewRecorder()
	return f.gate.Accessor(rec, req), rec
}

func TestLoginRoundTrip(t *testing.T) {
	f := newGateFixture(t)

	s, cookie, err := f.login(t, "admin", "admin123")
	require.NoError(t, err)
	require.NotNil(t, cookie)
	assert.True(t, s.IsAuthenticated)
	assert.Equal(t, "u-admin", s.UserID)
	assert.Equal(t, "admin", s.Username)
	assert.Equal(t, models.RoleAdmin, s.Role)
	assert.NotEmpty(t, s.ID)

	acc, _ := f.accessorWith(cookie)
	current := f.gate.CurrentSession(context.Background(), acc)
	assert.Equal(t, s.ID, current.ID)
	assert.Equal(t, s.UserID, current.UserID)
	assert.Equal(t, s.Role, current.Role)
	assert.True(t, s.IssuedAt.Equal(current.IssuedAt))

	f.gate.Wait()
	at, ok := f.store.lastTouched("u-admin")
	require.True(t, ok, "last login should be recorded")
	assert.True(t, at.Equal(f.clock.Now()))
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newGateFixture(t)

	_, unknownCookie, unknownErr := f.login(t, "nobody", "admin123")
	_, wrongCookie, wrongErr := f.login(t, "admin", "wrong")
	_, caseCookie, caseErr := f.login(t, "Admin", "admin123")

	for _, err := range []error{unknownErr, wrongErr, caseErr} {
		require.ErrorIs(t, err, ErrInvalidCredentials)
		assert.Equal(t, ErrInvalidCredentials.Error(), err.Error())
	}
	assert.Nil(t, unknownCookie)
	assert.Nil(t, wrongCookie)
	assert.Nil(t, caseCookie)

	expected := `
# HELP test_auth_logins_total Login attempts by outcome.
# TYPE test_auth_logins_total counter
test_auth_logins_total{outcome="invalid_credentials"} 3
`
	require.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "test_auth_logins_total"))
}

func TestLoginMissingFields(t *testing.T) {
	f := newGateFixture(t)
	for _, tc := range [][2]string{{"", "admin123"}, {"admin", ""}, {"", ""}} {
		_, cookie, err := f.login(t, tc[0], tc[1])
		assert.ErrorIs(t, err, ErrMissingFields)
		assert.Nil(t, cookie)
	}
}

func TestLoginMalformedHashFailsClosed(t *testing.T) {
	f := newGateFixture(t)
	f.store.mu.Lock()
	f.store.users["u-plain"] = models.User{ID: "u-plain", Username: "plain", PasswordHash: "admin123", Role: models.RoleAdmin}
	f.store.mu.Unlock()

	_, cookie, err := f.login(t, "plain", "admin123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, cookie)
}

func TestLoginStoreUnavailable(t *testing.T) {
	f := newGateFixture(t)
	cause := errors.New("connection refused")
	f.store.findErr = cause

	_, cookie, err := f.login(t, "admin", "admin123")
	assert.ErrorIs(t, err, ErrCredentialStoreUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrInvalidCredentials)
	assert.Nil(t, cookie)
}

func TestLoginSucceedsWhenLastLoginUpdateFails(t *testing.T) {
	f := newGateFixture(t)
	f.store.touchErr = errors.New("write failed")

	_, cookie, err := f.login(t, "admin", "admin123")
	require.NoError(t, err)
	assert.NotNil(t, cookie)

	f.gate.Wait()
	expected := `
# HELP test_auth_last_login_update_failures_total Best-effort last-login updates that failed.
# TYPE test_auth_last_login_update_failures_total counter
test_auth_last_login_update_failures_total 1
`
	require.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "test_auth_last_login_update_failures_total"))
}

func TestLoginReplacesExistingSession(t *testing.T) {
	f := newGateFixture(t)
	_, userCookie, err := f.login(t, "writer", "writer123")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.AddCookie(&http.Cookie{Name: userCookie.Name, Value: userCookie.Value})
	acc := f.gate.Accessor(rec, req)
	s, err := f.gate.Login(context.Background(), acc, "admin", "admin123")
	require.NoError(t, err)
	assert.Equal(t, s, acc.Session())
	assert.Equal(t, models.RoleAdmin, f.gate.CurrentSession(context.Background(), acc).Role)
}

func TestLogoutIsIdempotent(t *testing.T) {
	f := newGateFixture(t)
	_, cookie, err := f.login(t, "admin", "admin123")
	require.NoError(t, err)

	acc, rec := f.accessorWith(cookie)
	f.gate.Logout(context.Background(), acc)
	f.gate.Logout(context.Background(), acc)
	assert.False(t, f.gate.CurrentSession(context.Background(), acc).IsAuthenticated)

	for _, ck := range rec.Result().Cookies() {
		assert.Empty(t, ck.Value)
		assert.Equal(t, -1, ck.MaxAge)
	}

	anon, anonRec := f.accessorWith(nil)
	f.gate.Logout(context.Background(), anon)
	require.Len(t, anonRec.Result().Cookies(), 1)
}

func TestLogoutWithoutRevocationLeavesOldCookieValid(t *testing.T) {
	f := newGateFixture(t)
	_, cookie, err := f.login(t, "admin", "admin123")
	require.NoError(t, err)

	acc, _ := f.accessorWith(cookie)
	f.gate.Logout(context.Background(), acc)

	replay, _ := f.accessorWith(cookie)
	assert.True(t, f.gate.CurrentSession(context.Background(), replay).IsAuthenticated)
}

func TestLogoutRevokesSession(t *testing.T) {
	revocations := &fakeRevocations{}
	f := newGateFixture(t, WithRevocations(revocations))
	s, cookie, err := f.login(t, "admin", "admin123")
	require.NoError(t, err)

	f.clock.Advance(time.Hour)
	acc, _ := f.accessorWith(cookie)
	f.gate.Logout(context.Background(), acc)

	ttl, ok := revocations.revoked[s.ID]
	require.True(t, ok)
	assert.Equal(t, DefaultMaxAge-time.Hour, ttl)

	replay, _ := f.accessorWith(cookie)
	assert.False(t, f.gate.CurrentSession(context.Background(), replay).IsAuthenticated)
}

func TestRevocationErrorFailsClosed(t *testing.T) {
	revocations := &fakeRevocations{err: errors.New("redis down")}
	f := newGateFixture(t, WithRevocations(revocations))
	_, cookie, err := f.login(t, "admin", "admin123")
	require.NoError(t, err)

	acc, _ := f.accessorWith(cookie)
	_, err = f.gate.RequireAdmin(context.Background(), acc)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRequireAdmin(t *testing.T) {
	f := newGateFixture(t)
	_, adminCookie, err := f.login(t, "admin", "admin123")
	require.NoError(t, err)
	_, userCookie, err := f.login(t, "writer", "writer123")
	require.NoError(t, err)

	acc, _ := f.accessorWith(adminCookie)
	s, err := f.gate.RequireAdmin(context.Background(), acc)
	require.NoError(t, err)
	assert.Equal(t, "admin", s.Username)

	for name, cookie := range map[string]*http.Cookie{
		"anonymous": nil,
		"user role": userCookie,
		"garbage":   {Name: CookieName, Value: "garbage"},
	} {
		acc, _ := f.accessorWith(cookie)
		s, err := f.gate.RequireAdmin(context.Background(), acc)
		assert.ErrorIs(t, err, ErrUnauthorized, name)
		assert.Equal(t, models.Session{}, s, name)
	}
}

func TestStaleCheck(t *testing.T) {
	f := newGateFixture(t, WithStaleCheck(true))
	_, cookie, err := f.login(t, "admin", "admin123")
	require.NoError(t, err)

	acc, _ := f.accessorWith(cookie)
	require.True(t, f.gate.CurrentSession(context.Background(), acc).IsAdmin())

	f.store.mu.Lock()
	u := f.store.users["u-admin"]
	u.Role = models.RoleUser
	f.store.users["u-admin"] = u
	f.store.mu.Unlock()

	acc, _ = f.accessorWith(cookie)
	assert.False(t, f.gate.CurrentSession(context.Background(), acc).IsAuthenticated)

	f.store.mu.Lock()
	delete(f.store.users, "u-admin")
	f.store.mu.Unlock()

	acc, _ = f.accessorWith(cookie)
	assert.False(t, f.gate.CurrentSession(context.Background(), acc).IsAuthenticated)
}

func TestCurrentSessionConcurrent(t *testing.T) {
	f := newGateFixture(t)
	_, cookie, err := f.login(t, "admin", "admin123")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for j := 0; j < 32; j++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			acc, _ := f.accessorWith(cookie)
			assert.True(t, f.gate.CurrentSession(context.Background(), acc).IsAdmin())
		}()
	}
	wg.Wait()
}

func TestSessionContext(t *testing.T) {
	_, ok := SessionFromContext(context.Background())
	assert.False(t, ok)

	s := testSession(time.Now())
	got, ok := SessionFromContext(WithSession(context.Background(), s))
	require.True(t, ok)
	assert.Equal(t, s, got)
}
