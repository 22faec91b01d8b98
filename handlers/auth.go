package handlers

import (
	"context"
	"errors"
	"net/http"

	"medialog/models"
	"medialog/services/accounts"
)

type accountService interface {
	Login(ctx context.Context, name, plainPassword string) (models.Session, models.User, error)
	Logout(ctx context.Context, token string) error
	Create(ctx context.Context, name, plainPassword string, isAdmin bool) (models.User, error)
}

var _ accountService = (*accounts.Service)(nil)

// AuthHandler serves login, logout, and account endpoints.
type AuthHandler struct {
	Service accountService
}

func NewAuthHandler(service accountService) *AuthHandler {
	return &AuthHandler{Service: service}
}

type loginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	session, user, err := h.Service.Login(r.Context(), req.Name, req.Password)
	if err != nil {
		if errors.Is(err, accounts.ErrInvalidLogin) {
			writeError(w, http.StatusUnauthorized, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, loginResponse{Token: session.Token, User: user})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerToken(r)
	if token == "" {
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			token = cookie.Value
		}
	}
	if token != "" {
		if err := h.Service.Logout(r.Context(), token); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFrom(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type registerRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// Register creates a new account. Only admins may call it.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	caller, ok := userFrom(r)
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	if !caller.IsAdmin {
		writeError(w, http.StatusForbidden, errors.New("admin access required"))
		return
	}

	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, err := h.Service.Create(r.Context(), req.Name, req.Password, false)
	if err != nil {
		switch {
		case errors.Is(err, accounts.ErrNameTaken):
			writeError(w, http.StatusConflict, err)
		case errors.Is(err, accounts.ErrNameRequired),
			errors.Is(err, accounts.ErrPasswordRequired),
			errors.Is(err, accounts.ErrPasswordTooShort):
			writeError(w, http.StatusBadRequest, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, user)
}
