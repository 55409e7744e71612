package dto

import "github.com/hongminglow/dunes-blog/internal/models"

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type SessionUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type LoginResponse struct {
	Success bool        `json:"success"`
	User    SessionUser `json:"user"`
}

type LogoutResponse struct {
	Success bool `json:"success"`
}

type SessionResponse struct {
	IsAuthenticated bool         `json:"isAuthenticated"`
	User            *SessionUser `json:"user"`
}

type DashboardResponse struct {
	User        SessionUser `json:"user"`
	GeneratedAt string      `json:"generatedAt"`
}

// UserFromSession projects the public identity fields out of a session.
func UserFromSession(s models.Session) SessionUser {
	return SessionUser{ID: s.UserID, Username: s.Username, Role: s.Role}
}
