package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/hongminglow/dunes-blog/internal/auth"
	"github.com/hongminglow/dunes-blog/internal/http/respond"
	"github.com/hongminglow/dunes-blog/internal/models/dto"
)

const maxLoginBody = 1 << 16

// AuthHandler owns the login, logout and session endpoints.
type AuthHandler struct {
	gate   *auth.Gate
	logger *zap.Logger
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(gate *auth.Gate, logger *zap.Logger) *AuthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthHandler{gate: gate, logger: logger}
}

// Register attaches auth routes to the mux.
func (h *AuthHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("/api/auth/login", h.handleLogin)
	mux.HandleFunc("/api/auth/logout", h.handleLogout)
	mux.HandleFunc("/api/auth/session", h.handleSession)
}

func (h *AuthHandler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	var req dto.LoginRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxLoginBody)).Decode(&req); err != nil {
		respond.Error(w, http.StatusBadRequest, "Username and password are required")
		return
	}

	acc := h.gate.Accessor(w, r)
	session, err := h.gate.Login(r.Context(), acc, req.Username, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingFields):
			respond.Error(w, http.StatusBadRequest, "Username and password are required")
		case errors.Is(err, auth.ErrInvalidCredentials):
			respond.Error(w, http.StatusUnauthorized, "Invalid credentials")
		case errors.Is(err, auth.ErrCredentialStoreUnavailable):
			respond.Error(w, http.StatusInternalServerError, "Authentication service unavailable")
		default:
			h.logger.Error("login failed", zap.Error(err))
			respond.Error(w, http.StatusInternalServerError, "Internal server error")
		}
		return
	}

	respond.JSON(w, http.StatusOK, dto.LoginResponse{
		Success: true,
		User:    dto.UserFromSession(session),
	})
}

func (h *AuthHandler) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	h.gate.Logout(r.Context(), h.gate.Accessor(w, r))
	respond.JSON(w, http.StatusOK, dto.LogoutResponse{Success: true})
}

func (h *AuthHandler) handleSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	session := h.gate.CurrentSession(r.Context(), h.gate.Accessor(w, r))
	resp := dto.SessionResponse{IsAuthenticated: session.IsAuthenticated}
	if session.IsAuthenticated {
		user := dto.UserFromSession(session)
		resp.User = &user
	}
	respond.JSON(w, http.StatusOK, resp)
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	respond.Error(w, http.StatusMethodNotAllowed, "Method not allowed")
}
