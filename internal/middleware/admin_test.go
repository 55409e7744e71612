package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/hongminglow/dunes-blog/internal/auth"
	"github.com/hongminglow/dunes-blog/internal/models"
	"github.com/hongminglow/dunes-blog/internal/storage/jsonfile"
)

const testSecret = "k3p2-this-is-a-test-secret-with-enough-entropy"

func newTestGate(t *testing.T) *auth.Gate {
	t.Helper()
	store, err := jsonfile.Open(filepath.Join(t.TempDir(), "users.json"))
	require.NoError(t, err)
	for _, u := range []struct{ name, role string }{{"admin", models.RoleAdmin}, {"writer", models.RoleUser}} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.name+"-pw"), bcrypt.MinCost)
		require.NoError(t, err)
		_, err = store.CreateUser(context.Background(), models.User{Username: u.name, PasswordHash: string(hash), Role: u.role})
		require.NoError(t, err)
	}
	codec, err := auth.NewCodec([]byte(testSecret))
	require.NoError(t, err)
	gate := auth.NewGate(store, codec, auth.DefaultCookieSettings(false))
	t.Cleanup(gate.Wait)
	return gate
}

func sessionCookie(t *testing.T, gate *auth.Gate, username string) *http.Cookie {
	t.Helper()
	rec := httptest.NewRecorder()
	acc := gate.Accessor(rec, httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))
	_, err := gate.Login(context.Background(), acc, username, username+"-pw")
	require.NoError(t, err)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	return cookies[0]
}

func TestRequireAdmin(t *testing.T) {
	gate := newTestGate(t)
	adminCookie := sessionCookie(t, gate, "admin")
	writerCookie := sessionCookie(t, gate, "writer")

	var reached bool
	var seen models.Session
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		seen, _ = auth.SessionFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	handler := RequireAdmin(gate, AdminOptions{}, next)

	tests := []struct {
		name     string
		path     string
		cookie   *http.Cookie
		status   int
		location string
		reached  bool
	}{
		{"public path", "/api/auth/session", nil, http.StatusOK, "", true},
		{"login page", "/admin/login", nil, http.StatusOK, "", true},
		{"lookalike path", "/administrator", nil, http.StatusOK, "", true},
		{"api anonymous", "/api/admin/dashboard", nil, http.StatusUnauthorized, "", false},
		{"api user role", "/api/admin/dashboard", writerCookie, http.StatusUnauthorized, "", false},
		{"api admin", "/api/admin/dashboard", adminCookie, http.StatusOK, "", true},
		{"page anonymous", "/admin", nil, http.StatusFound, "/admin/login", false},
		{"nested page user role", "/admin/posts/new", writerCookie, http.StatusFound, "/admin/login", false},
		{"dot segments", "/admin/login/../posts", nil, http.StatusFound, "/admin/login", false},
		{"page admin", "/admin/posts", adminCookie, http.StatusOK, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached, seen = false, models.Session{}
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.reached, reached)
			if tt.location != "" {
				assert.Equal(t, tt.location, rec.Header().Get("Location"))
			}
			if tt.status == http.StatusUnauthorized {
				assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())
			}
			if tt.reached && tt.cookie == adminCookie {
				assert.Equal(t, "admin", seen.Username)
			}
		})
	}
}
