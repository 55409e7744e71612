// Package metrics defines the Prometheus collectors exported by the service.
//
// Collectors are registered against an injected registerer so tests can use a
// private registry. All methods are safe to call on a nil receiver, which
// disables recording.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Auth holds counters describing authentication outcomes.
type Auth struct {
	logins            *prometheus.CounterVec
	sessionRejections *prometheus.CounterVec
	adminRejections   prometheus.Counter
	lastLoginFailures prometheus.Counter
}

// NewAuth creates the auth collectors and registers them with reg.
func NewAuth(reg prometheus.Registerer, namespace string) *Auth {
	a := &Auth{
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_logins_total",
			Help:      "Login attempts by outcome.",
		}, []string{"outcome"}),
		sessionRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_session_rejections_total",
			Help:      "Session cookies treated as anonymous, by reason.",
		}, []string{"reason"}),
		adminRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_admin_rejections_total",
			Help:      "Requests rejected by the admin gate.",
		}),
		lastLoginFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_last_login_update_failures_total",
			Help:      "Best-effort last-login updates that failed.",
		}),
	}
	reg.MustRegister(a.logins, a.sessionRejections, a.adminRejections, a.lastLoginFailures)
	return a
}

// LoginSucceeded records a successful login.
func (a *Auth) LoginSucceeded() {
	if a == nil {
		return
	}
	a.logins.WithLabelValues("success").Inc()
}

// LoginFailed records a failed login with a coarse outcome label.
func (a *Auth) LoginFailed(outcome string) {
	if a == nil {
		return
	}
	a.logins.WithLabelValues(outcome).Inc()
}

// SessionRejected records a cookie that could not be honoured.
func (a *Auth) SessionRejected(reason string) {
	if a == nil {
		return
	}
	a.sessionRejections.WithLabelValues(reason).Inc()
}

// AdminRejected records a request turned away by the admin gate.
func (a *Auth) AdminRejected() {
	if a == nil {
		return
	}
	a.adminRejections.Inc()
}

// LastLoginFailed records a failed best-effort last-login update.
func (a *Auth) LastLoginFailed() {
	if a == nil {
		return
	}
	a.lastLoginFailures.Inc()
}

// HTTP holds request-level collectors.
type HTTP struct {
	duration *prometheus.HistogramVec
	inflight prometheus.Gauge
}

// NewHTTP creates the HTTP collectors and registers them with reg.
func NewHTTP(reg prometheus.Registerer, namespace string) *HTTP {
	h := &HTTP{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
		}, []string{"method", "route", "status"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_inflight",
			Help:      "Requests currently being served.",
		}),
	}
	reg.MustRegister(h.duration, h.inflight)
	return h
}

// Start marks a request as in flight.
func (h *HTTP) Start() {
	if h == nil {
		return
	}
	h.inflight.Inc()
}

// Done records a finished request.
func (h *HTTP) Done(method, route, status string, seconds float64) {
	if h == nil {
		return
	}
	h.inflight.Dec()
	h.duration.WithLabelValues(method, route, status).Observe(seconds)
}
