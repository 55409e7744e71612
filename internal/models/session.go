package models

import "time"

// Session is the client-held authentication state carried in the session cookie.
// Values are never mutated in place; a changed session is a new value that gets
// re-encoded. The zero value is the anonymous session.
type Session struct {
	ID              string
	UserID          string
	Username        string
	Role            string
	IsAuthenticated bool
	IssuedAt        time.Time
}

// NewSession builds an authenticated session for user issued at the given time.
func NewSession(id string, user User, issuedAt time.Time) Session {
	return Session{
		ID:              id,
		UserID:          user.ID,
		Username:        user.Username,
		Role:            user.Role,
		IsAuthenticated: true,
		IssuedAt:        issuedAt.UTC().Truncate(time.Second),
	}
}

// IsAdmin reports whether the session is authenticated with the admin role.
func (s Session) IsAdmin() bool {
	return s.IsAuthenticated && s.Role == RoleAdmin
}
