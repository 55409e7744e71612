package middleware

import (
	"net/http"
	pathpkg "path"
	"strings"

	"go.uber.org/zap"

	"github.com/hongminglow/dunes-blog/internal/auth"
	"github.com/hongminglow/dunes-blog/internal/http/respond"
)

// AdminOptions configures the admin chokepoint.
type AdminOptions struct {
	// Prefixes are the protected path trees. Defaults to /admin and /api/admin.
	Prefixes []string
	// LoginPath is the browser login page; it is never gated and is where
	// unauthenticated page requests are redirected.
	LoginPath string
	Logger    *zap.Logger
}

func (o AdminOptions) withDefaults() AdminOptions {
	if len(o.Prefixes) == 0 {
		o.Prefixes = []string{"/admin", "/api/admin"}
	}
	if o.LoginPath == "" {
		o.LoginPath = "/admin/login"
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return o
}

// RequireAdmin wraps the whole router so that every request under a protected
// prefix is checked before any handler runs. API requests are answered with
// 401 JSON; page requests are redirected to the login page. Admitted requests
// carry the session in their context.
func RequireAdmin(gate *auth.Gate, opts AdminOptions, next http.Handler) http.Handler {
	opts = opts.withDefaults()

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !protected(path, opts) {
			next.ServeHTTP(w, r)
			return
		}

		acc := gate.Accessor(w, r)
		session, err := gate.RequireAdmin(r.Context(), acc)
		if err != nil {
			opts.Logger.Info("admin access denied",
				zap.String("path", path),
				zap.String("request_id", RequestIDFrom(r.Context())),
			)
			if strings.HasPrefix(path, "/api/") {
				respond.Error(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			http.Redirect(w, r, opts.LoginPath, http.StatusFound)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.WithSession(r.Context(), session)))
	})
}

func protected(path string, opts AdminOptions) bool {
	path = pathpkg.Clean("/" + path)
	if path == opts.LoginPath {
		return false
	}
	for _, prefix := range opts.Prefixes {
		if hasPrefixSegment(path, prefix) {
			return true
		}
	}
	return false
}
