package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/hongminglow/dunes-blog/internal/metrics"
)

func TestRouteGroup(t *testing.T) {
	cases := map[string]string{
		"/api/auth/login":       "/api/auth",
		"/api/admin/dashboard":  "/api/admin",
		"/admin":                "/admin",
		"/admin/posts/42":       "/admin",
		"/administrator":        "other",
		"/health":               "/health",
		"/blog/some-post-title": "other",
	}
	for path, want := range cases {
		assert.Equal(t, want, routeGroup(path), path)
	}
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", seen)
}

func TestLoggingAndMetrics(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	reg := prometheus.NewRegistry()
	m := metrics.NewHTTP(reg, "test")

	h := Logging(zap.New(core), Metrics(m, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/auth/session", nil))

	entries := logs.FilterMessage("http request").All()
	if assert.Len(t, entries, 1) {
		fields := entries[0].ContextMap()
		assert.Equal(t, int64(http.StatusTeapot), fields["status"])
		assert.Equal(t, "/api/auth/session", fields["path"])
	}
	n, err := testutil.GatherAndCount(reg, "test_http_request_duration_seconds")
	assert.NoError(t, err)
	assert.Equal(t, 1, n)
}
