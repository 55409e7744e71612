package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hongminglow/dunes-blog/internal/metrics"
	"github.com/hongminglow/dunes-blog/internal/models"
	"github.com/hongminglow/dunes-blog/internal/storage"
)

// Login failure outcomes recorded in metrics.
const (
	outcomeInvalidCredentials = "invalid_credentials"
	outcomeMalformedHash      = "malformed_hash"
	outcomeMissingFields      = "missing_fields"
	outcomeStoreError         = "store_error"
)

// Gate is the single authority on who is signed in. It turns credentials
// into sessions, reads sessions back from requests and decides admin access.
type Gate struct {
	store    storage.UserStore
	codec    *Codec
	settings CookieSettings

	logger           *zap.Logger
	revocations      RevocationList
	metrics          *metrics.Auth
	lastLoginTimeout time.Duration
	staleCheck       bool
	now              func() time.Time

	wg sync.WaitGroup
}

// GateOption customises a Gate.
type GateOption func(*Gate)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *zap.Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithRevocations enables the server-side session denylist.
func WithRevocations(list RevocationList) GateOption {
	return func(g *Gate) { g.revocations = list }
}

// WithMetrics records login and rejection counters.
func WithMetrics(m *metrics.Auth) GateOption {
	return func(g *Gate) { g.metrics = m }
}

// WithLastLoginTimeout bounds the background last-login update.
func WithLastLoginTimeout(d time.Duration) GateOption {
	return func(g *Gate) {
		if d > 0 {
			g.lastLoginTimeout = d
		}
	}
}

// WithStaleCheck makes every session lookup confirm the user still exists
// with the same role.
func WithStaleCheck(enabled bool) GateOption {
	return func(g *Gate) { g.staleCheck = enabled }
}

// NewGate wires the credential store and session codec together.
func NewGate(store storage.UserStore, codec *Codec, settings CookieSettings, opts ...GateOption) *Gate {
	g := &Gate{
		store:            store,
		codec:            codec,
		settings:         settings.withDefaults(),
		logger:           zap.NewNop(),
		lastLoginTimeout: 5 * time.Second,
		now:              codec.now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Accessor returns the session accessor for one request.
func (g *Gate) Accessor(w http.ResponseWriter, r *http.Request) *Accessor {
	return NewAccessor(g.codec, g.settings, r, w)
}

// Login checks username and password and, on success, saves a fresh session
// through acc. Unknown users and wrong passwords fail identically.
func (g *Gate) Login(ctx context.Context, acc *Accessor, username, password string) (models.Session, error) {
	if username == "" || password == "" {
		g.metrics.LoginFailed(outcomeMissingFields)
		return models.Session{}, ErrMissingFields
	}

	user, err := g.store.FindByUsername(ctx, username)
	if errors.Is(err, storage.ErrNotFound) {
		burnPasswordCheck(password)
		g.metrics.LoginFailed(outcomeInvalidCredentials)
		g.logger.Info("login rejected", zap.String("username", username), zap.String("reason", "unknown user"))
		return models.Session{}, ErrInvalidCredentials
	}
	if err != nil {
		g.metrics.LoginFailed(outcomeStoreError)
		g.logger.Error("login lookup failed", zap.String("username", username), zap.Error(err))
		return models.Session{}, fmt.Errorf("%w: %w", ErrCredentialStoreUnavailable, err)
	}

	ok, err := VerifyPassword(password, user.PasswordHash)
	if err != nil {
		g.metrics.LoginFailed(outcomeMalformedHash)
		g.logger.Warn("login rejected", zap.String("username", username), zap.String("reason", "malformed stored hash"))
		return models.Session{}, ErrInvalidCredentials
	}
	if !ok {
		g.metrics.LoginFailed(outcomeInvalidCredentials)
		g.logger.Info("login rejected", zap.String("username", username), zap.String("reason", "wrong password"))
		return models.Session{}, ErrInvalidCredentials
	}

	now := g.now()
	session := models.NewSession(uuid.NewString(), user, now)
	if err := acc.Save(session); err != nil {
		return models.Session{}, fmt.Errorf("save session: %w", err)
	}

	g.touchLastLogin(ctx, user.ID, now)
	g.metrics.LoginSucceeded()
	g.logger.Info("login succeeded", zap.String("username", user.Username), zap.String("role", user.Role))
	return session, nil
}

// touchLastLogin updates the user's last login in the background. The update
// outlives the request but not its own timeout, and failures never reach the caller.
func (g *Gate) touchLastLogin(ctx context.Context, userID string, at time.Time) {
	ctx = context.WithoutCancel(ctx)
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, g.lastLoginTimeout)
		defer cancel()
		if err := g.store.TouchLastLogin(ctx, userID, at); err != nil {
			g.metrics.LastLoginFailed()
			g.logger.Warn("update last login failed", zap.String("user_id", userID), zap.Error(err))
		}
	}()
}

// Logout clears the session cookie. It always succeeds. With a revocation
// list configured, a valid inbound session is denylisted until it expires.
func (g *Gate) Logout(ctx context.Context, acc *Accessor) {
	s, err := acc.lookup()
	acc.Destroy()
	if err != nil || !s.IsAuthenticated || g.revocations == nil || s.ID == "" {
		return
	}
	ttl := g.codec.ExpiresAt(s).Sub(g.now())
	if ttl <= 0 {
		return
	}
	if err := g.revocations.Revoke(ctx, s.ID, ttl); err != nil {
		g.logger.Warn("revoke session failed", zap.String("session_id", s.ID), zap.Error(err))
	}
}

// CurrentSession returns the session carried by the request, or the
// anonymous session when there is none or it cannot be trusted.
func (g *Gate) CurrentSession(ctx context.Context, acc *Accessor) models.Session {
	s, err := acc.lookup()
	if errors.Is(err, errNoSession) {
		return models.Session{}
	}
	if err != nil {
		g.reject("invalid", zap.Error(err))
		return models.Session{}
	}

	if g.revocations != nil && s.ID != "" {
		revoked, err := g.revocations.IsRevoked(ctx, s.ID)
		if err != nil {
			g.reject("revocation_error", zap.String("session_id", s.ID), zap.Error(err))
			return models.Session{}
		}
		if revoked {
			g.reject("revoked", zap.String("session_id", s.ID))
			return models.Session{}
		}
	}

	if g.staleCheck {
		user, err := g.store.FindByID(ctx, s.UserID)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			g.reject("stale_user", zap.String("user_id", s.UserID))
			return models.Session{}
		case err != nil:
			g.reject("store_error", zap.String("user_id", s.UserID), zap.Error(err))
			return models.Session{}
		case user.Role != s.Role || user.Username != s.Username:
			g.reject("stale_role", zap.String("user_id", s.UserID))
			return models.Session{}
		}
	}
	return s
}

func (g *Gate) reject(reason string, fields ...zap.Field) {
	g.metrics.SessionRejected(reason)
	g.logger.Debug("session rejected", append(fields, zap.String("reason", reason))...)
}

// RequireAdmin returns the current session if it belongs to an admin.
// Anonymous and non-admin sessions both get ErrUnauthorized.
func (g *Gate) RequireAdmin(ctx context.Context, acc *Accessor) (models.Session, error) {
	s := g.CurrentSession(ctx, acc)
	if !s.IsAdmin() {
		g.metrics.AdminRejected()
		return models.Session{}, ErrUnauthorized
	}
	return s, nil
}

// Wait blocks until background last-login updates have finished.
func (g *Gate) Wait() {
	g.wg.Wait()
}
