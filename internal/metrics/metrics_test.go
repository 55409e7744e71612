package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAuthCounters(t *testing.T) {
	a := NewAuth(prometheus.NewRegistry(), "test")

	a.LoginSucceeded()
	a.LoginFailed("invalid_credentials")
	a.LoginFailed("invalid_credentials")
	a.SessionRejected("revoked")
	a.AdminRejected()
	a.LastLoginFailed()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.logins.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.logins.WithLabelValues("invalid_credentials")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.sessionRejections.WithLabelValues("revoked")))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.adminRejections))
	assert.Equal(t, 1.0, testutil.ToFloat64(a.lastLoginFailures))
}

func TestNilReceiversAreNoops(t *testing.T) {
	var a *Auth
	var h *HTTP
	assert.NotPanics(t, func() {
		a.LoginSucceeded()
		a.LoginFailed("x")
		a.SessionRejected("x")
		a.AdminRejected()
		a.LastLoginFailed()
		h.Start()
		h.Done("GET", "other", "200", 0.1)
	})
}

func TestHTTPCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := NewHTTP(reg, "test")

	h.Start()
	assert.Equal(t, 1.0, testutil.ToFloat64(h.inflight))
	h.Done("GET", "/api/auth", "200", 0.02)
	assert.Equal(t, 0.0, testutil.ToFloat64(h.inflight))
	assert.Equal(t, 1, testutil.CollectAndCount(h.duration, "test_http_request_duration_seconds"))
}
