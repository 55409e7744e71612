package auth

import (
	"context"
	"time"
)

// RevocationList is a server-side denylist of session IDs. Entries only need
// to live until the session would have expired on its own.
type RevocationList interface {
	Revoke(ctx context.Context, sessionID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, sessionID string) (bool, error)
}
