package middleware

import (
	"net/http"
	"strings"
)

// CORS answers preflight requests and sets Access-Control headers for allowed
// origins. Because the session rides in a cookie, credentials are only
// allowed for origins that are listed explicitly; a "*" entry opens reads to
// any origin without credentials.
func CORS(allowedOrigins []string, next http.Handler) http.Handler {
	wildcard := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, origin := range allowedOrigins {
		origin = strings.ToLower(strings.TrimRight(strings.TrimSpace(origin), "/"))
		if origin == "*" {
			wildcard = true
			continue
		}
		if origin != "" {
			allowed[origin] = struct{}{}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			w.Header().Add("Vary", "Origin")
			_, listed := allowed[strings.ToLower(origin)]
			switch {
			case listed:
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			case wildcard:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			}
			if listed || wildcard {
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, X-Request-ID")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
			}
		}

		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}
