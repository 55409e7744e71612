package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hongminglow/dunes-blog/internal/metrics"
)

// Metrics records request duration and in-flight count.
func Metrics(m *metrics.HTTP, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.Start()
		rec := newStatusRecorder(w)
		next.ServeHTTP(rec, r)
		m.Done(r.Method, routeGroup(r.URL.Path), strconv.Itoa(rec.status), time.Since(start).Seconds())
	})
}

// routeGroup maps a path onto a small fixed label set.
func routeGroup(path string) string {
	switch {
	case strings.HasPrefix(path, "/api/auth/"):
		return "/api/auth"
	case hasPrefixSegment(path, "/api/admin"):
		return "/api/admin"
	case hasPrefixSegment(path, "/admin"):
		return "/admin"
	case path == "/health", path == "/metrics":
		return path
	default:
		return "other"
	}
}

// hasPrefixSegment reports whether path is prefix or lies beneath it,
// so "/administrator" does not match "/admin".
func hasPrefixSegment(path, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}
