package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/mvarela/gapfill/internal/auth"
)

// LoginRequest is the POST /api/auth/login body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Login exchanges admin credentials for a bearer token.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.auth == nil {
		NotFound(w, "authentication is disabled")
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid JSON body")
		return
	}

	token, expiresAt, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			Unauthorized(w, "invalid credentials")
			return
		}
		InternalError(w, "failed to issue token")
		return
	}

	JSON(w, http.StatusOK, LoginResponse{Token: token, ExpiresAt: expiresAt})
}
